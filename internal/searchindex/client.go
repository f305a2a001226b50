package searchindex

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrIndexNotFound is returned when an operation targets a missing index.
	ErrIndexNotFound = errors.New("search index not found")
	// ErrEmptyBatch is returned when a write or delete has no documents.
	ErrEmptyBatch = errors.New("batch cannot be empty")
)

// MaxBatchSize is the largest number of documents a single write or delete
// request may carry.
const MaxBatchSize = 100

// Client is the search store used by the chapter services. Implementations
// must be safe for concurrent use.
type Client interface {
	// CreateOrUpdateIndex creates the index when absent and updates field and
	// configuration definitions when present.
	CreateOrUpdateIndex(ctx context.Context, def *IndexDefinition) error

	// MergeOrUpload writes documents; an existing id is overwritten. The
	// returned slice holds one result per input document, in order.
	MergeOrUpload(ctx context.Context, docs []Document) ([]IndexingResult, error)

	// Delete removes documents by key, one result per key.
	Delete(ctx context.Context, keys []string) ([]IndexingResult, error)

	// Search executes one page of a query.
	Search(ctx context.Context, req *SearchRequest) (*SearchPage, error)
}

// IndexingResult is the per-document outcome of a write or delete.
type IndexingResult struct {
	Key          string
	Succeeded    bool
	ErrorMessage string
	StatusCode   int
}

// QueryType selects how the text of a search request is interpreted.
type QueryType string

const (
	QueryTypeSimple   QueryType = "simple"
	QueryTypeSemantic QueryType = "semantic"
)

// VectorQuery is a k-nearest-neighbour leg of a hybrid search.
type VectorQuery struct {
	Vector []float32
	Field  string
	K      int
}

// SearchRequest describes one search. An empty Text means "match all" under
// the filter.
type SearchRequest struct {
	Text                  string
	Filter                *Filter
	Select                []string
	Top                   int
	Skip                  int
	QueryType             QueryType
	SemanticConfiguration string
	Captions              bool
	Answers               bool
	VectorQueries         []VectorQuery
	IncludeTotalCount     bool
}

// Caption is an extractive passage returned by semantic ranking.
type Caption struct {
	Text       string
	Highlights string
}

// Answer is an extractive answer returned by semantic ranking.
type Answer struct {
	Key   string
	Text  string
	Score float64
}

// Hit is one result document with its ranking signals.
type Hit struct {
	Document      Document
	Score         float64
	RerankerScore float64
	Captions      []Caption
}

// SearchPage is one page of results in the store's relevance order.
type SearchPage struct {
	Hits    []Hit
	Answers []Answer
	Count   int64
	HasMore bool
}

// IsMatchAll reports whether text is the "match everything" query: empty or
// the bare wildcard.
func IsMatchAll(text string) bool {
	t := strings.TrimSpace(text)
	return t == "" || t == "*"
}
