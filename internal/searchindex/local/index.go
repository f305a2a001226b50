// Package local is an embedded search store: bleve for lexical retrieval and
// filtering, in-process cosine kNN for vectors, reciprocal rank fusion for
// hybrid queries. It keeps everything in memory.
package local

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"reflect"
	"sort"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"digital-twin-search/internal/logger"
	"digital-twin-search/internal/searchindex"
)

// Index implements searchindex.Client in memory. It must be created with
// CreateOrUpdateIndex before documents are written.
type Index struct {
	mu    sync.RWMutex
	def   *searchindex.IndexDefinition
	index bleve.Index
	docs  map[string]searchindex.Document
	log   *slog.Logger
}

var _ searchindex.Client = (*Index)(nil)

func New() *Index {
	return &Index{
		docs: make(map[string]searchindex.Document),
		log:  logger.With("search.local"),
	}
}

// CreateOrUpdateIndex (re)builds the bleve index when the definition changes.
// Stored documents survive a definition update.
func (x *Index) CreateOrUpdateIndex(ctx context.Context, def *searchindex.IndexDefinition) error {
	if def == nil || def.KeyField() == "" {
		return fmt.Errorf("index definition must declare a key field")
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if x.index != nil && reflect.DeepEqual(x.def, def) {
		return nil
	}

	idx, err := bleve.NewMemOnly(buildMapping(def))
	if err != nil {
		return fmt.Errorf("failed to create bleve index: %w", err)
	}

	batch := idx.NewBatch()
	for id, doc := range x.docs {
		if err := batch.Index(id, bleveDocument(doc)); err != nil {
			idx.Close()
			return fmt.Errorf("failed to reindex %s: %w", id, err)
		}
	}
	if err := idx.Batch(batch); err != nil {
		idx.Close()
		return fmt.Errorf("failed to reindex documents: %w", err)
	}

	if x.index != nil {
		x.index.Close()
	}
	copied := *def
	x.def = &copied
	x.index = idx
	x.log.Debug("Index definition applied", "index", def.Name, "documents", len(x.docs))
	return nil
}

// MergeOrUpload stores documents. Like a merging store, an incoming document
// without a vector keeps the vector already stored under the same key.
func (x *Index) MergeOrUpload(ctx context.Context, docs []searchindex.Document) ([]searchindex.IndexingResult, error) {
	if len(docs) == 0 {
		return nil, searchindex.ErrEmptyBatch
	}
	if len(docs) > searchindex.MaxBatchSize {
		return nil, fmt.Errorf("batch of %d documents exceeds limit of %d", len(docs), searchindex.MaxBatchSize)
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if x.index == nil {
		return nil, searchindex.ErrIndexNotFound
	}

	dims := 0
	if vf, ok := x.def.VectorField(); ok {
		dims = vf.Dimensions
	}

	results := make([]searchindex.IndexingResult, len(docs))
	for i, doc := range docs {
		results[i].Key = doc.ID
		switch {
		case doc.ID == "":
			results[i].StatusCode = http.StatusBadRequest
			results[i].ErrorMessage = "document key is required"
			continue
		case len(doc.EmbeddingVector) > 0 && len(doc.EmbeddingVector) != dims:
			results[i].StatusCode = http.StatusBadRequest
			results[i].ErrorMessage = fmt.Sprintf("vector field expects %d dimensions, got %d", dims, len(doc.EmbeddingVector))
			continue
		}

		if old, ok := x.docs[doc.ID]; ok && len(doc.EmbeddingVector) == 0 {
			doc.EmbeddingVector = old.EmbeddingVector
		}
		if err := x.index.Index(doc.ID, bleveDocument(doc)); err != nil {
			results[i].StatusCode = http.StatusInternalServerError
			results[i].ErrorMessage = err.Error()
			continue
		}
		x.docs[doc.ID] = doc
		results[i].Succeeded = true
		results[i].StatusCode = http.StatusOK
	}
	return results, nil
}

// Delete removes documents by key. Deleting a missing key succeeds.
func (x *Index) Delete(ctx context.Context, keys []string) ([]searchindex.IndexingResult, error) {
	if len(keys) == 0 {
		return nil, searchindex.ErrEmptyBatch
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if x.index == nil {
		return nil, searchindex.ErrIndexNotFound
	}

	results := make([]searchindex.IndexingResult, len(keys))
	for i, key := range keys {
		results[i].Key = key
		if err := x.index.Delete(key); err != nil {
			results[i].StatusCode = http.StatusInternalServerError
			results[i].ErrorMessage = err.Error()
			continue
		}
		delete(x.docs, key)
		results[i].Succeeded = true
		results[i].StatusCode = http.StatusOK
	}
	return results, nil
}

// Len returns the number of stored documents.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.docs)
}

// Get returns a stored document by key.
func (x *Index) Get(id string) (searchindex.Document, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	doc, ok := x.docs[id]
	return doc, ok
}

// Search runs the lexical leg through bleve and each vector leg over the
// filtered documents, then fuses the legs by reciprocal rank.
func (x *Index) Search(ctx context.Context, req *searchindex.SearchRequest) (*searchindex.SearchPage, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.index == nil {
		return nil, searchindex.ErrIndexNotFound
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var legs [][]searchindex.Hit

	lexical, err := x.lexical(req)
	if err != nil {
		return nil, err
	}
	hasText := !searchindex.IsMatchAll(req.Text)
	if hasText || len(req.VectorQueries) == 0 {
		legs = append(legs, lexical)
	}

	for _, vq := range req.VectorQueries {
		legs = append(legs, x.nearest(vq, req.Filter))
	}

	var ranked []searchindex.Hit
	if len(legs) == 1 {
		ranked = legs[0]
	} else {
		ranked = searchindex.FuseReciprocalRank(searchindex.RRFConstant, legs...)
	}

	page := &searchindex.SearchPage{}
	if req.IncludeTotalCount {
		page.Count = int64(len(ranked))
	}

	semantic := req.QueryType == searchindex.QueryTypeSemantic && hasText
	var cfg searchindex.SemanticConfiguration
	if semantic {
		cfg, _ = x.def.SemanticConfig(req.SemanticConfiguration)
	}
	if semantic && req.Answers {
		page.Answers = extractAnswers(req.Text, ranked, cfg, 1)
	}

	top := req.Top
	if top <= 0 {
		top = searchindex.DefaultPageSize
	}
	start := min(req.Skip, len(ranked))
	end := min(start+top, len(ranked))
	page.HasMore = end < len(ranked)

	for _, h := range ranked[start:end] {
		if semantic {
			caption, score := bestPassage(req.Text, h.Document, cfg)
			h.RerankerScore = score * 4
			if req.Captions && caption.Text != "" {
				h.Captions = []searchindex.Caption{caption}
			}
		}
		h.Document = searchindex.Project(h.Document, req.Select)
		page.Hits = append(page.Hits, h)
	}
	return page, nil
}

func (x *Index) lexical(req *searchindex.SearchRequest) ([]searchindex.Hit, error) {
	var must []query.Query
	for _, c := range req.Filter.Clauses() {
		must = append(must, x.clauseQuery(c))
	}

	if !searchindex.IsMatchAll(req.Text) {
		var should []query.Query
		for _, field := range x.def.SearchableFields() {
			mq := bleve.NewMatchQuery(req.Text)
			mq.SetField(field)
			should = append(should, mq)
		}
		must = append(must, bleve.NewDisjunctionQuery(should...))
	}

	var q query.Query = bleve.NewMatchAllQuery()
	if len(must) > 0 {
		q = bleve.NewConjunctionQuery(must...)
	}

	size := len(x.docs)
	if size == 0 {
		return nil, nil
	}
	sr := bleve.NewSearchRequestOptions(q, size, 0, false)
	if searchindex.IsMatchAll(req.Text) {
		// Filter-only queries have no relevance; keep a stable order.
		sr.SortBy([]string{searchindex.FieldFileName + exactSuffix, "_id"})
	}
	res, err := x.index.Search(sr)
	if err != nil {
		return nil, fmt.Errorf("bleve search failed: %w", err)
	}

	hits := make([]searchindex.Hit, 0, len(res.Hits))
	for _, m := range res.Hits {
		doc, ok := x.docs[m.ID]
		if !ok {
			continue
		}
		hits = append(hits, searchindex.Hit{Document: doc, Score: m.Score})
	}
	return hits, nil
}

func (x *Index) clauseQuery(c searchindex.Clause) query.Query {
	field := filterField(x.def, c.Field)
	switch v := c.Value.(type) {
	case string:
		tq := bleve.NewTermQuery(v)
		tq.SetField(field)
		return tq
	case int, int32, int64, float64:
		n := toFloat(v)
		inclusive := true
		nq := bleve.NewNumericRangeInclusiveQuery(&n, &n, &inclusive, &inclusive)
		nq.SetField(field)
		return nq
	case bool:
		bq := bleve.NewBoolFieldQuery(v)
		bq.SetField(field)
		return bq
	default:
		tq := bleve.NewTermQuery(fmt.Sprint(v))
		tq.SetField(field)
		return tq
	}
}

func (x *Index) nearest(vq searchindex.VectorQuery, filter *searchindex.Filter) []searchindex.Hit {
	k := vq.K
	if k <= 0 {
		k = 50
	}
	var hits []searchindex.Hit
	for _, doc := range x.docs {
		if len(doc.EmbeddingVector) == 0 || len(doc.EmbeddingVector) != len(vq.Vector) || !filter.Matches(doc) {
			continue
		}
		hits = append(hits, searchindex.Hit{Document: doc, Score: cosine(vq.Vector, doc.EmbeddingVector)})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Document.ID < hits[j].Document.ID
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case float64:
		return n
	}
	return 0
}
