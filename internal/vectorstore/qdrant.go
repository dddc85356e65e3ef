package vectorstore

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/qdrant/go-client/qdrant"

	"knowledge-graph-service/internal/contextutil"
	"knowledge-graph-service/internal/similarity"
)

// QdrantStore implements VectorStore on one Qdrant collection.
type QdrantStore struct {
	client     *qdrant.Client
	collection string
}

// grpcAddress derives the gRPC host and port from a Qdrant HTTP URL such as
// "http://localhost:6333". The gRPC port is the HTTP port plus one.
func grpcAddress(urlStr string) (string, int, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid Qdrant URL: %w", err)
	}

	host := parsedURL.Hostname()
	if host == "" {
		host = "localhost"
	}

	port := 6334
	if parsedURL.Port() != "" {
		if httpPort, err := strconv.Atoi(parsedURL.Port()); err == nil {
			port = httpPort + 1
		}
	}
	return host, port, nil
}

// NewQdrantStore creates a client for collection at urlStr.
func NewQdrantStore(urlStr, collection string) (*QdrantStore, error) {
	host, port, err := grpcAddress(urlStr)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
	}

	return &QdrantStore{client: client, collection: collection}, nil
}

// Close closes the gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// Ping reports whether the collection is reachable.
func (s *QdrantStore) Ping(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}
	if !exists {
		return fmt.Errorf("collection %s does not exist", s.collection)
	}
	return nil
}

// Upsert inserts or replaces the point for a note. The point id is the note id.
func (s *QdrantStore) Upsert(ctx context.Context, point Point) error {
	logger := contextutil.LoggerFromContext(ctx)

	if len(point.Vec) == 0 {
		return fmt.Errorf("point vector cannot be empty")
	}

	payload := map[string]any{
		"note_id": point.NoteID,
		"user_id": point.UserID,
		"title":   point.Title,
	}
	if !point.CreatedAt.IsZero() {
		payload["created_at"] = point.CreatedAt.UTC().Format(time.RFC3339)
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Wait:           qdrant.PtrOf(true),
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewIDNum(uint64(point.NoteID)),
			Vectors: qdrant.NewVectors(point.Vec...),
			Payload: qdrant.NewValueMap(payload),
		}},
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to upsert point", "collection", s.collection, "note_id", point.NoteID, "error", err)
		return fmt.Errorf("failed to upsert point: %w", err)
	}

	logger.DebugContext(ctx, "upserted point", "collection", s.collection, "note_id", point.NoteID)
	return nil
}

// Nearest searches the collection for the user's notes closest to embedding.
// Qdrant cosine scores in [-1,1] are mapped onto [0,1] before thresholding.
func (s *QdrantStore) Nearest(ctx context.Context, userID, noteID int64, embedding []float32, threshold float64, limit int) ([]similarity.Candidate, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than 0")
	}

	queryReq := &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(embedding...),
		Filter: &qdrant.Filter{
			Must:    []*qdrant.Condition{qdrant.NewMatchInt("user_id", userID)},
			MustNot: []*qdrant.Condition{qdrant.NewHasID(qdrant.NewIDNum(uint64(noteID)))},
		},
		Limit:          qdrant.PtrOf(uint64(limit)),
		ScoreThreshold: qdrant.PtrOf(float32(denormalizeScore(threshold))),
		WithPayload:    qdrant.NewWithPayload(true),
	}

	scoredPoints, err := s.client.Query(ctx, queryReq)
	if err != nil {
		logger.ErrorContext(ctx, "failed to search points", "collection", s.collection, "limit", limit, "error", err)
		return nil, fmt.Errorf("failed to search points: %w", err)
	}

	results := make([]similarity.Candidate, 0, len(scoredPoints))
	for _, point := range scoredPoints {
		results = append(results, candidateFromPayload(point.GetId().GetNum(), point.GetScore(), convertPayloadToMap(point.GetPayload())))
	}

	logger.DebugContext(ctx, "search completed", "collection", s.collection, "limit", limit, "results", len(results))
	return results, nil
}

// Delete removes the point for a note.
func (s *QdrantStore) Delete(ctx context.Context, noteID int64) error {
	logger := contextutil.LoggerFromContext(ctx)

	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelector(qdrant.NewIDNum(uint64(noteID))),
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to delete point", "collection", s.collection, "note_id", noteID, "error", err)
		return fmt.Errorf("failed to delete point: %w", err)
	}

	logger.DebugContext(ctx, "deleted point", "collection", s.collection, "note_id", noteID)
	return nil
}

// SetTitle rewrites the title payload of a note's point without touching its vector.
func (s *QdrantStore) SetTitle(ctx context.Context, noteID int64, title string) error {
	logger := contextutil.LoggerFromContext(ctx)

	_, err := s.client.SetPayload(ctx, &qdrant.SetPayloadPoints{
		CollectionName: s.collection,
		Wait:           qdrant.PtrOf(true),
		Payload:        qdrant.NewValueMap(map[string]any{"title": title}),
		PointsSelector: qdrant.NewPointsSelector(qdrant.NewIDNum(uint64(noteID))),
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to set point title", "collection", s.collection, "note_id", noteID, "error", err)
		return fmt.Errorf("failed to set point title: %w", err)
	}
	return nil
}

// EnsureCollection creates the collection with a cosine vector config when it
// is missing and otherwise checks its vector size.
func (s *QdrantStore) EnsureCollection(ctx context.Context, vectorSize int) error {
	logger := contextutil.LoggerFromContext(ctx)

	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}

	if !exists {
		logger.InfoContext(ctx, "creating collection", "collection", s.collection, "vector_size", vectorSize)
		err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: s.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(vectorSize),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}
		if _, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: s.collection,
			FieldName:      "user_id",
			FieldType:      qdrant.FieldType_FieldTypeInteger.Enum(),
		}); err != nil {
			return fmt.Errorf("failed to create user_id index: %w", err)
		}
		return nil
	}

	info, err := s.client.GetCollectionInfo(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to get collection info: %w", err)
	}

	actualSize := vectorSizeOf(info)
	if actualSize == 0 {
		return fmt.Errorf("could not determine collection vector size")
	}
	if actualSize != vectorSize {
		return fmt.Errorf("collection vector size mismatch: expected %d, got %d", vectorSize, actualSize)
	}

	logger.InfoContext(ctx, "collection validated", "collection", s.collection, "vector_size", vectorSize)
	return nil
}

func vectorSizeOf(info *qdrant.CollectionInfo) int {
	if info == nil || info.Config == nil || info.Config.Params == nil {
		return 0
	}
	if params := info.Config.Params.GetVectorsConfig().GetParams(); params != nil {
		return int(params.Size)
	}
	return 0
}

// normalizeScore maps a cosine score from [-1,1] onto [0,1].
func normalizeScore(s float32) float64 {
	n := (float64(s) + 1) / 2
	if n < 0 {
		return 0
	}
	if n > 1 {
		return 1
	}
	return n
}

func denormalizeScore(threshold float64) float64 {
	return 2*threshold - 1
}

func candidateFromPayload(pointID uint64, score float32, meta map[string]any) similarity.Candidate {
	c := similarity.Candidate{
		NoteID: int64(pointID),
		Score:  normalizeScore(score),
	}
	if v, ok := meta["note_id"].(int64); ok {
		c.NoteID = v
	}
	if v, ok := meta["user_id"].(int64); ok {
		c.UserID = v
	}
	if v, ok := meta["title"].(string); ok {
		c.Title = v
	}
	if v, ok := meta["created_at"].(string); ok {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			c.CreatedAt = t
		}
	}
	return c
}

// convertPayloadToMap converts Qdrant payload to map[string]any.
func convertPayloadToMap(payload map[string]*qdrant.Value) map[string]any {
	result := make(map[string]any, len(payload))
	for k, v := range payload {
		if v == nil {
			continue
		}
		result[k] = convertValue(v)
	}
	return result
}

// convertValue converts a Qdrant Value to Go any type.
func convertValue(v *qdrant.Value) any {
	switch val := v.Kind.(type) {
	case *qdrant.Value_BoolValue:
		return val.BoolValue
	case *qdrant.Value_IntegerValue:
		return val.IntegerValue
	case *qdrant.Value_DoubleValue:
		return val.DoubleValue
	case *qdrant.Value_StringValue:
		return val.StringValue
	case *qdrant.Value_ListValue:
		list := make([]any, len(val.ListValue.Values))
		for i, item := range val.ListValue.Values {
			list[i] = convertValue(item)
		}
		return list
	case *qdrant.Value_StructValue:
		return convertPayloadToMap(val.StructValue.Fields)
	default:
		return nil
	}
}
