// Package graphstore persists notes and their SIMILAR_TO graph in Neo4j.
package graphstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"knowledge-graph-service/internal/contextutil"
)

const constraintViolationCode = "Neo.ClientError.Schema.ConstraintValidationFailed"

var (
	// ErrNoteNotFound is returned when no note matches the user and note id.
	ErrNoteNotFound = errors.New("note not found")
	// ErrDuplicateNote is returned when a note id already exists.
	ErrDuplicateNote = errors.New("note already exists")
	// ErrDimensionMismatch is returned when the vector index was built for another embedding size.
	ErrDimensionMismatch = errors.New("vector index dimension mismatch")
)

// Runner executes Cypher and returns each record as a map keyed by column.
type Runner interface {
	Read(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error)
	Write(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error)
}

// Client wraps a Neo4j driver bound to one database.
type Client struct {
	driver   neo4j.DriverWithContext
	database string
}

// NewClient creates a driver and verifies the server is reachable.
func NewClient(ctx context.Context, uri, username, password, database string) (*Client, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	if database == "" {
		database = "neo4j"
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("failed to connect to neo4j: %w", err)
	}

	return &Client{driver: driver, database: database}, nil
}

// Close releases the driver.
func (c *Client) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}

// Ping checks connectivity.
func (c *Client) Ping(ctx context.Context) error {
	return c.driver.VerifyConnectivity(ctx)
}

// Read runs cypher in a managed read transaction.
func (c *Client) Read(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	session := c.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: c.database, AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return collect(ctx, tx, cypher, params)
	})
	if err != nil {
		return nil, err
	}
	return result.([]map[string]any), nil
}

// Write runs cypher in a managed write transaction.
func (c *Client) Write(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	session := c.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: c.database})
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return collect(ctx, tx, cypher, params)
	})
	if err != nil {
		return nil, err
	}
	return result.([]map[string]any), nil
}

func collect(ctx context.Context, tx neo4j.ManagedTransaction, cypher string, params map[string]any) ([]map[string]any, error) {
	res, err := tx.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	records, err := res.Collect(ctx)
	if err != nil {
		return nil, err
	}
	rows := make([]map[string]any, 0, len(records))
	for _, record := range records {
		rows = append(rows, record.AsMap())
	}
	return rows, nil
}

func schemaStatements(indexName string, dimension int) []string {
	return []string{
		"CREATE CONSTRAINT note_id_unique IF NOT EXISTS FOR (n:Note) REQUIRE n.note_id IS UNIQUE",
		"CREATE INDEX note_user_id IF NOT EXISTS FOR (n:Note) ON (n.user_id)",
		"CREATE INDEX note_created_at IF NOT EXISTS FOR (n:Note) ON (n.created_at)",
		"CREATE INDEX note_title IF NOT EXISTS FOR (n:Note) ON (n.title)",
		"CREATE INDEX note_user_note_id IF NOT EXISTS FOR (n:Note) ON (n.user_id, n.note_id)",
		fmt.Sprintf("CREATE VECTOR INDEX %s IF NOT EXISTS FOR (n:Note) ON (n.embedding) "+
			"OPTIONS {indexConfig: {`vector.dimensions`: %d, `vector.similarity_function`: 'cosine'}}", indexName, dimension),
	}
}

// EnsureSchema creates the note constraint, lookup indexes and the vector index,
// then checks that an existing vector index matches dimension.
func EnsureSchema(ctx context.Context, r Runner, indexName string, dimension int) error {
	logger := contextutil.LoggerFromContext(ctx)

	for _, stmt := range schemaStatements(indexName, dimension) {
		if _, err := r.Write(ctx, stmt, nil); err != nil {
			if !isAlreadyExists(err) {
				return fmt.Errorf("failed to apply schema: %w", err)
			}
		}
	}

	rows, err := r.Read(ctx, "SHOW VECTOR INDEXES YIELD name, options WHERE name = $name RETURN options", map[string]any{"name": indexName})
	if err != nil {
		return fmt.Errorf("failed to read vector index: %w", err)
	}
	if len(rows) > 0 {
		if actual := indexDimension(rows[0]["options"]); actual != 0 && actual != dimension {
			return fmt.Errorf("%w: index %s has %d, configured %d", ErrDimensionMismatch, indexName, actual, dimension)
		}
	}

	logger.InfoContext(ctx, "neo4j schema ready", "vector_index", indexName, "dimension", dimension)
	return nil
}

func indexDimension(options any) int {
	opts, ok := options.(map[string]any)
	if !ok {
		return 0
	}
	cfg, ok := opts["indexConfig"].(map[string]any)
	if !ok {
		return 0
	}
	return int(asInt64(cfg["vector.dimensions"]))
}

func isAlreadyExists(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "already exists") || strings.Contains(msg, "An equivalent")
}

func isConstraintViolation(err error) bool {
	var neoErr *neo4j.Neo4jError
	return errors.As(err, &neoErr) && neoErr.Code == constraintViolationCode
}
