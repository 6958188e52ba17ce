package vectorstore

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_vector_store.go -package=mocks talk-to-krishna/internal/vectorstore VectorStore

import (
	"context"

	"github.com/google/uuid"
)

// PayloadPassageID is the payload key holding the passage id of a point.
const PayloadPassageID = "passage_id"

// passageNamespace seeds deterministic point ids for passages.
var passageNamespace = uuid.MustParse("6f1c1d52-7e0a-4bde-9a43-2b1f3c7d9e10")

// Point represents a vector point with metadata.
type Point struct {
	ID   string
	Vec  []float32
	Meta map[string]any
}

// SearchResult represents a search result from vector search.
type SearchResult struct {
	PointID string
	Score   float32
	Meta    map[string]any
}

// VectorStore defines the interface for vector storage operations.
type VectorStore interface {
	// EnsureCollection creates the collection or validates its vector size.
	EnsureCollection(ctx context.Context, collection string, vectorSize int) error

	// Upsert inserts or updates points in the collection.
	Upsert(ctx context.Context, collection string, points []Point) error

	// Search performs a similarity search with optional filters.
	Search(ctx context.Context, collection string, query []float32, k int, filters map[string]any) ([]SearchResult, error)
}

// PointID returns the stable point id for a passage. Qdrant only accepts
// UUIDs or integers, so passage ids are mapped through a name-based UUID.
func PointID(passageID string) string {
	return uuid.NewSHA1(passageNamespace, []byte(passageID)).String()
}
