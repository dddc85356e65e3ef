package service

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_graph_reader.go -package=mocks knowledge-graph-service/internal/service GraphReader

import (
	"context"

	"knowledge-graph-service/internal/graphstore"
)

const (
	// DefaultGraphLimit is the node count of Visualization when none is given.
	DefaultGraphLimit = 100
	// MaxGraphLimit caps Visualization.
	MaxGraphLimit = 500
	// MaxNeighborDepth bounds Neighbors traversal.
	MaxNeighborDepth = 3
)

// GraphReader reads aggregate views of a user's graph.
type GraphReader interface {
	GetNote(ctx context.Context, userID, noteID int64) (graphstore.Note, error)
	Stats(ctx context.Context, userID int64) (graphstore.Stats, error)
	Visualization(ctx context.Context, userID int64, limit int) (graphstore.Graph, error)
	Neighbors(ctx context.Context, userID, noteID int64, depth int) ([]graphstore.Neighbor, error)
}

// NeighborGraph is the neighbourhood of a center note.
type NeighborGraph struct {
	Center    graphstore.Note       `json:"center"`
	Depth     int                   `json:"depth"`
	Neighbors []graphstore.Neighbor `json:"neighbors"`
}

// GraphService serves statistics and visualization data.
type GraphService struct {
	reader GraphReader
}

// NewGraphService creates a GraphService.
func NewGraphService(reader GraphReader) *GraphService {
	return &GraphService{reader: reader}
}

// Stats counts the user's notes and edges.
func (s *GraphService) Stats(ctx context.Context, userID int64) (graphstore.Stats, error) {
	if userID <= 0 {
		return graphstore.Stats{}, &ValidationError{Field: "user_id", Message: "must be positive"}
	}
	stats, err := s.reader.Stats(ctx, userID)
	if err != nil {
		return graphstore.Stats{}, WrapError(err, "failed to get graph stats")
	}
	return stats, nil
}

// Visualization returns the best connected notes and the edges among them.
func (s *GraphService) Visualization(ctx context.Context, userID int64, limit int) (graphstore.Graph, error) {
	if userID <= 0 {
		return graphstore.Graph{}, &ValidationError{Field: "user_id", Message: "must be positive"}
	}
	graph, err := s.reader.Visualization(ctx, userID, clamp(limit, DefaultGraphLimit, MaxGraphLimit))
	if err != nil {
		return graphstore.Graph{}, WrapError(err, "failed to get graph")
	}
	return graph, nil
}

// Neighbors returns notes reachable from noteID within depth hops.
func (s *GraphService) Neighbors(ctx context.Context, userID, noteID int64, depth int) (NeighborGraph, error) {
	if err := validateIDs(userID, noteID); err != nil {
		return NeighborGraph{}, err
	}
	if depth < 1 || depth > MaxNeighborDepth {
		return NeighborGraph{}, &ValidationError{Field: "depth", Message: "must be between 1 and 3"}
	}

	center, err := s.reader.GetNote(ctx, userID, noteID)
	if err != nil {
		return NeighborGraph{}, mapStoreError(ctx, err, "failed to get center note")
	}

	neighbors, err := s.reader.Neighbors(ctx, userID, noteID, depth)
	if err != nil {
		return NeighborGraph{}, WrapError(err, "failed to get neighbors")
	}
	if neighbors == nil {
		neighbors = []graphstore.Neighbor{}
	}
	return NeighborGraph{Center: center, Depth: depth, Neighbors: neighbors}, nil
}
