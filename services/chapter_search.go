package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"digital-twin-search/internal/ai"
	"digital-twin-search/internal/logger"
	"digital-twin-search/internal/searchindex"
	"digital-twin-search/internal/telemetry"
	"digital-twin-search/models"
)

const (
	// AnswerTop is the result cap of AnswerQuestion and its kNN k.
	AnswerTop = 5
	// DefaultListTop caps the raw slices fetched by a document listing.
	DefaultListTop = 1000
	// DefaultListK is the kNN k of a listing with a query.
	DefaultListK = 50
)

// SearchMode selects the fields a search returns.
type SearchMode int

const (
	// SearchModeFull returns chapter and subchapter text.
	SearchModeFull SearchMode = iota
	// SearchModeMetadata leaves out the large text fields.
	SearchModeMetadata
)

var (
	fullContentFields = []string{
		searchindex.FieldID, searchindex.FieldTenantID, searchindex.FieldChapterID,
		searchindex.FieldFileName, searchindex.FieldFilePath,
		searchindex.FieldChapterTitle, searchindex.FieldChapterText,
		searchindex.FieldChapterFromPage, searchindex.FieldChapterToPage, searchindex.FieldChapterTokenCount,
		searchindex.FieldSubTitle, searchindex.FieldSubText,
		searchindex.FieldSubFromPage, searchindex.FieldSubToPage, searchindex.FieldSubTokenCount,
		searchindex.FieldDocumentTotalTokens, searchindex.FieldCategory, searchindex.FieldCreatedAt,
	}
	metadataFields = []string{
		searchindex.FieldID, searchindex.FieldTenantID, searchindex.FieldChapterID,
		searchindex.FieldFileName, searchindex.FieldFilePath, searchindex.FieldChapterTitle,
		searchindex.FieldChapterFromPage, searchindex.FieldChapterToPage, searchindex.FieldChapterTokenCount,
		searchindex.FieldSubTitle, searchindex.FieldSubFromPage, searchindex.FieldSubToPage, searchindex.FieldSubTokenCount,
		searchindex.FieldDocumentTotalTokens, searchindex.FieldCategory, searchindex.FieldCreatedAt,
	}
)

// SearchParams describes one chapter search.
type SearchParams struct {
	TenantID string
	// FileName limits the search to one document; empty or "*" searches all
	// of the tenant's documents.
	FileName string
	Query    string
	Mode     SearchMode
	Top      int
	K        int
}

// ChapterHit is a search result with its ranking signals.
type ChapterHit struct {
	Slice         models.ChapterSlice
	Score         float64
	RerankerScore float64
	Captions      []searchindex.Caption
}

// SearchOutcome keeps the difference between "no matches" (Err nil, no hits)
// and a failed search (Err wraps ErrSearchFailed or a validation error).
type SearchOutcome struct {
	Hits    []ChapterHit
	Answers []searchindex.Answer
	Count   int64
	Err     error
}

// Slices returns the hit slices in relevance order, never nil.
func (o SearchOutcome) Slices() []models.ChapterSlice {
	out := make([]models.ChapterSlice, 0, len(o.Hits))
	for _, h := range o.Hits {
		out = append(out, h.Slice)
	}
	return out
}

// ChapterSearch is the hybrid query engine over the chapter index.
type ChapterSearch struct {
	store          searchindex.Client
	embeddings     *ai.EmbeddingGenerator
	semanticConfig string
	listTop        int
	metrics        *telemetry.Metrics
	log            *slog.Logger
}

func NewChapterSearch(store searchindex.Client, embeddings *ai.EmbeddingGenerator, log *slog.Logger) *ChapterSearch {
	if log == nil {
		log = logger.With("chapter_search")
	}
	return &ChapterSearch{
		store:          store,
		embeddings:     embeddings,
		semanticConfig: SemanticConfigName,
		listTop:        DefaultListTop,
		metrics:        telemetry.Default(),
		log:            log,
	}
}

// AnswerQuestion returns up to five slices with full content that best
// answer question. Failures are logged and yield an empty list.
func (cs *ChapterSearch) AnswerQuestion(ctx context.Context, question, tenantID, fileName string) []models.ChapterSlice {
	out := cs.SearchChapters(ctx, SearchParams{
		TenantID: tenantID,
		FileName: fileName,
		Query:    question,
		Mode:     SearchModeFull,
		Top:      AnswerTop,
		K:        AnswerTop,
	})
	if out.Err != nil {
		cs.log.Warn("Question not answered", "tenant_id", tenantID, "file_name", fileName, "error", out.Err)
	}
	return out.Slices()
}

// ListDocuments returns the tenant's documents with their chapter lists,
// optionally narrowed to one file or to slices matching query.
func (cs *ChapterSearch) ListDocuments(ctx context.Context, tenantID, fileName, query string) []models.DocumentSummary {
	out := cs.SearchChapters(ctx, SearchParams{
		TenantID: tenantID,
		FileName: fileName,
		Query:    query,
		Mode:     SearchModeMetadata,
		Top:      cs.listTop,
		K:        DefaultListK,
	})
	if out.Err != nil {
		cs.log.Warn("Document listing failed", "tenant_id", tenantID, "file_name", fileName, "error", out.Err)
	}
	return GroupByFile(out.Slices())
}

// ListDocumentMetadata is ListDocuments without chapter lists.
func (cs *ChapterSearch) ListDocumentMetadata(ctx context.Context, tenantID, fileName string) []models.DocumentMetadata {
	docs := cs.ListDocuments(ctx, tenantID, fileName, "")
	out := make([]models.DocumentMetadata, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.Metadata())
	}
	return out
}

// buildRequest composes the filter, projection, semantic and vector parts of
// a search.
func (cs *ChapterSearch) buildRequest(ctx context.Context, p SearchParams) *searchindex.SearchRequest {
	filter := searchindex.Eq(searchindex.FieldTenantID, p.TenantID)
	if !searchindex.IsMatchAll(p.FileName) {
		filter = filter.And(searchindex.FieldFileName, strings.TrimSpace(p.FileName))
	}

	fields := fullContentFields
	if p.Mode == SearchModeMetadata {
		fields = metadataFields
	}

	req := &searchindex.SearchRequest{
		Filter:            filter,
		Select:            fields,
		Top:               p.Top,
		QueryType:         searchindex.QueryTypeSimple,
		IncludeTotalCount: true,
	}

	if searchindex.IsMatchAll(p.Query) {
		return req
	}
	req.Text = p.Query
	req.QueryType = searchindex.QueryTypeSemantic
	req.SemanticConfiguration = cs.semanticConfig
	req.Captions = true
	req.Answers = true

	if vec := cs.embeddings.Generate(ctx, p.Query); len(vec) > 0 {
		req.VectorQueries = []searchindex.VectorQuery{{
			Vector: vec,
			Field:  searchindex.FieldEmbeddingVector,
			K:      p.K,
		}}
	}
	return req
}

// SearchChapters runs one hybrid search and reports the outcome without
// swallowing the error. Results keep the store's relevance order.
func (cs *ChapterSearch) SearchChapters(ctx context.Context, p SearchParams) SearchOutcome {
	if cs.store == nil {
		return SearchOutcome{Err: ErrServiceUnavailable}
	}
	if strings.TrimSpace(p.TenantID) == "" {
		return SearchOutcome{Err: missingField("tenantId")}
	}
	// A bare wildcard would turn a question into an unranked listing.
	if p.Mode == SearchModeFull && searchindex.IsMatchAll(p.Query) {
		return SearchOutcome{Err: missingField("question")}
	}
	if p.Top <= 0 {
		p.Top = AnswerTop
	}
	if p.K <= 0 {
		p.K = p.Top
	}

	op := "answer"
	if p.Mode == SearchModeMetadata {
		op = "list"
	}

	ctx, span := telemetry.Tracer().Start(ctx, "chapter_search."+op)
	defer span.End()
	span.SetAttributes(
		attribute.String("tenant.id", p.TenantID),
		attribute.String("search.file_name", p.FileName),
		attribute.Int("search.top", p.Top),
	)

	start := time.Now()
	req := cs.buildRequest(ctx, p)
	span.SetAttributes(attribute.Bool("search.hybrid", len(req.VectorQueries) > 0))

	page, err := searchindex.SearchAll(ctx, cs.store, req)
	cs.metrics.RecordSearch(op, err == nil, time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search failed")
		cs.log.Error("Chapter search failed",
			"operation", op,
			"tenant_id", p.TenantID,
			"file_name", p.FileName,
			"query", p.Query,
			"error", err)
		return SearchOutcome{Err: fmt.Errorf("%w: %w", ErrSearchFailed, err)}
	}

	out := SearchOutcome{
		Hits:    make([]ChapterHit, 0, len(page.Hits)),
		Answers: page.Answers,
		Count:   page.Count,
	}
	for _, h := range page.Hits {
		out.Hits = append(out.Hits, ChapterHit{
			Slice:         documentToSlice(h.Document),
			Score:         h.Score,
			RerankerScore: h.RerankerScore,
			Captions:      h.Captions,
		})
	}
	span.SetAttributes(attribute.Int("search.hits", len(out.Hits)))
	cs.log.Debug("Chapter search completed", "operation", op, "tenant_id", p.TenantID, "hits", len(out.Hits))
	return out
}
