package services

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
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

// invalidKeyChars matches characters the store does not accept in keys.
var invalidKeyChars = regexp.MustCompile(`[^A-Za-z0-9_\-=]`)

// ChapterIndexer writes chapter slices to the search index.
type ChapterIndexer struct {
	store      searchindex.Client
	embeddings *ai.EmbeddingGenerator
	metrics    *telemetry.Metrics
	log        *slog.Logger
	now        func() time.Time
}

// NewChapterIndexer wires the indexer. A nil store makes every call fail
// without side effects; a nil or unavailable generator indexes without
// vectors.
func NewChapterIndexer(store searchindex.Client, embeddings *ai.EmbeddingGenerator, log *slog.Logger) *ChapterIndexer {
	if log == nil {
		log = logger.With("chapter_indexer")
	}
	return &ChapterIndexer{
		store:      store,
		embeddings: embeddings,
		metrics:    telemetry.Default(),
		log:        log,
		now:        time.Now,
	}
}

func documentKey(parts ...string) string {
	return invalidKeyChars.ReplaceAllString(strings.Join(parts, "-"), "_")
}

func (ix *ChapterIndexer) validate(s models.ChapterSlice) error {
	if ix.store == nil {
		return ErrServiceUnavailable
	}
	if strings.TrimSpace(s.TenantID) == "" {
		return missingField("tenantId")
	}
	if s.ID == "" && strings.TrimSpace(s.ChapterID) == "" {
		return missingField("chapterId")
	}
	return nil
}

// prepare computes the id, projection, embedding and creation time of a
// slice and returns the index document.
func (ix *ChapterIndexer) prepare(ctx context.Context, s models.ChapterSlice) searchindex.Document {
	now := ix.now().UTC()
	if s.ID == "" {
		s.ID = documentKey(s.TenantID, s.ChapterID, fmt.Sprintf("%d", now.UnixNano()))
	}
	s.CombinedContent = BuildCombinedContent(s)
	s.EmbeddingVector = ix.embeddings.Generate(ctx, s.CombinedContent)
	s.CreatedAt = &now
	return sliceToDocument(s)
}

// IndexSlice merges or uploads one slice. The same id overwrites the
// previous document.
func (ix *ChapterIndexer) IndexSlice(ctx context.Context, s models.ChapterSlice) models.IndexResult {
	if err := ix.validate(s); err != nil {
		return models.IndexResult{Success: false, ChapterTitle: s.ChapterTitle, Error: err.Error()}
	}

	ctx, span := telemetry.Tracer().Start(ctx, "chapter_indexer.index_slice")
	defer span.End()

	doc := ix.prepare(ctx, s)
	hasVector := len(doc.EmbeddingVector) > 0
	span.SetAttributes(
		attribute.String("chapter.id", doc.ChapterID),
		attribute.String("document.id", doc.ID),
		attribute.Bool("embedding.present", hasVector),
	)

	res := models.IndexResult{DocumentID: doc.ID, ChapterTitle: doc.ChapterTitle, HasVector: hasVector}

	results, err := ix.store.MergeOrUpload(ctx, []searchindex.Document{doc})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "merge or upload failed")
		ix.metrics.RecordIndexWrite(1, hasVector, false)
		ix.log.Error("Failed to index chapter", "chapter_title", doc.ChapterTitle, "document_id", doc.ID, "error", err)
		res.Error = err.Error()
		return res
	}

	if msgs := failureMessages(resultsByKey([]searchindex.Document{doc}, results)); len(msgs) > 0 {
		span.SetStatus(codes.Error, "document rejected")
		ix.metrics.RecordIndexWrite(1, hasVector, false)
		res.Error = strings.Join(msgs, "; ")
		ix.log.Error("Chapter rejected by search index", "chapter_title", doc.ChapterTitle, "document_id", doc.ID, "error", res.Error)
		return res
	}

	ix.metrics.RecordIndexWrite(1, hasVector, true)
	ix.log.Info("Chapter indexed", "chapter_title", doc.ChapterTitle, "document_id", doc.ID, "has_vector", hasVector)
	res.Success = true
	return res
}

// IndexSlices indexes many slices in store-sized batches. A failed batch
// marks its slices failed and the remaining batches still run.
func (ix *ChapterIndexer) IndexSlices(ctx context.Context, slices []models.ChapterSlice) models.BatchIndexResult {
	out := models.BatchIndexResult{Results: make([]models.IndexResult, 0, len(slices))}

	ctx, span := telemetry.Tracer().Start(ctx, "chapter_indexer.index_slices")
	defer span.End()
	span.SetAttributes(attribute.Int("slices", len(slices)))

	var (
		docs    []searchindex.Document
		pending []int
	)
	flush := func() {
		if len(docs) == 0 {
			return
		}
		results, err := ix.store.MergeOrUpload(ctx, docs)
		matched := resultsByKey(docs, results)
		for i, d := range docs {
			r := &out.Results[pending[i]]
			switch {
			case err != nil:
				r.Error = err.Error()
			case !matched[i].Succeeded:
				r.Error = resultMessage(matched[i])
			default:
				r.Success = true
			}
			ix.metrics.RecordIndexWrite(1, len(d.EmbeddingVector) > 0, r.Success)
		}
		if err != nil {
			span.RecordError(err)
			out.Errors = append(out.Errors, fmt.Sprintf("batch of %d: %v", len(docs), err))
			ix.log.Error("Failed to index chapter batch", "size", len(docs), "error", err)
		}
		docs, pending = docs[:0], pending[:0]
	}

	for _, s := range slices {
		if err := ix.validate(s); err != nil {
			out.Results = append(out.Results, models.IndexResult{ChapterTitle: s.ChapterTitle, Error: err.Error()})
			continue
		}
		doc := ix.prepare(ctx, s)
		out.Results = append(out.Results, models.IndexResult{
			DocumentID:   doc.ID,
			ChapterTitle: doc.ChapterTitle,
			HasVector:    len(doc.EmbeddingVector) > 0,
		})
		docs = append(docs, doc)
		pending = append(pending, len(out.Results)-1)
		if len(docs) == searchindex.MaxBatchSize {
			flush()
		}
	}
	flush()

	for _, r := range out.Results {
		if r.Success {
			out.IndexedCount++
			continue
		}
		out.FailedCount++
		if r.Error != "" {
			out.Errors = append(out.Errors, fmt.Sprintf("%s: %s", r.ChapterTitle, r.Error))
		}
	}
	out.Success = out.FailedCount == 0
	ix.log.Info("Chapter batch indexed", "indexed", out.IndexedCount, "failed", out.FailedCount)
	return out
}

// DeleteSlice removes one document by id.
func (ix *ChapterIndexer) DeleteSlice(ctx context.Context, id string) models.OperationResult {
	if ix.store == nil {
		return models.OperationResult{Error: ErrServiceUnavailable.Error()}
	}
	if strings.TrimSpace(id) == "" {
		return models.OperationResult{Error: missingField("id").Error()}
	}

	results, err := ix.store.Delete(ctx, []string{id})
	if err != nil {
		ix.log.Error("Failed to delete chapter", "document_id", id, "error", err)
		return models.OperationResult{Error: err.Error()}
	}
	if msgs := failureMessages(results); len(msgs) > 0 {
		return models.OperationResult{Error: strings.Join(msgs, "; ")}
	}
	ix.metrics.RecordDeletes(1, 0)
	return models.OperationResult{Success: true, Message: "document " + id + " deleted"}
}

// noResultMessage marks a document the store did not report on.
const noResultMessage = "no result returned for document"

// resultsByKey pairs each document with the store result carrying its key,
// whatever order the store answered in. Repeated keys consume results in
// order. A document left without a result is reported as failed.
func resultsByKey(docs []searchindex.Document, results []searchindex.IndexingResult) []searchindex.IndexingResult {
	byKey := make(map[string][]searchindex.IndexingResult, len(results))
	for _, r := range results {
		byKey[r.Key] = append(byKey[r.Key], r)
	}
	out := make([]searchindex.IndexingResult, len(docs))
	for i, d := range docs {
		queue := byKey[d.ID]
		if len(queue) == 0 {
			out[i] = searchindex.IndexingResult{Key: d.ID, ErrorMessage: noResultMessage}
			continue
		}
		out[i], byKey[d.ID] = queue[0], queue[1:]
	}
	return out
}

func resultMessage(r searchindex.IndexingResult) string {
	if r.ErrorMessage != "" {
		return r.ErrorMessage
	}
	return fmt.Sprintf("status %d", r.StatusCode)
}

func failureMessages(results []searchindex.IndexingResult) []string {
	var msgs []string
	for _, r := range results {
		if r.Succeeded {
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s: %s", r.Key, resultMessage(r)))
	}
	return msgs
}

// SlicesFromExtraction expands a chapter extraction into index slices: one
// per subchapter, or a single chapter-only slice. Ids are derived from the
// chapter id so re-indexing the same extraction overwrites in place.
func SlicesFromExtraction(ext models.ChapterExtraction) []models.ChapterSlice {
	base := models.ChapterSlice{
		TenantID:            ext.TenantID,
		ChapterID:           ext.ChapterID,
		FileName:            ext.FileName,
		FilePath:            ext.FilePath,
		ChapterTitle:        ext.Title,
		ChapterText:         ext.Text,
		ChapterFromPage:     ext.FromPage,
		ChapterToPage:       ext.ToPage,
		ChapterTokenCount:   ext.TokenCount,
		DocumentTotalTokens: ext.DocumentTotalTokens,
		Category:            ext.Category,
	}

	if len(ext.Subchapters) == 0 {
		base.ID = documentKey(ext.ChapterID, "chapter")
		return []models.ChapterSlice{base}
	}

	slices := make([]models.ChapterSlice, 0, len(ext.Subchapters))
	for i, sub := range ext.Subchapters {
		s := base
		s.ID = documentKey(ext.ChapterID, "sub", fmt.Sprintf("%d", i+1))
		s.SubTitle = sub.Title
		s.SubText = sub.Text
		s.SubFromPage = sub.FromPage
		s.SubToPage = sub.ToPage
		s.SubTokenCount = sub.TokenCount
		slices = append(slices, s)
	}
	return slices
}

func sliceToDocument(s models.ChapterSlice) searchindex.Document {
	doc := searchindex.Document{
		ID:                  s.ID,
		TenantID:            s.TenantID,
		ChapterID:           s.ChapterID,
		FileName:            s.FileName,
		FilePath:            s.FilePath,
		ChapterTitle:        s.ChapterTitle,
		ChapterText:         s.ChapterText,
		ChapterFromPage:     s.ChapterFromPage,
		ChapterToPage:       s.ChapterToPage,
		ChapterTokenCount:   s.ChapterTokenCount,
		SubTitle:            s.SubTitle,
		SubText:             s.SubText,
		SubFromPage:         s.SubFromPage,
		SubToPage:           s.SubToPage,
		SubTokenCount:       s.SubTokenCount,
		DocumentTotalTokens: s.DocumentTotalTokens,
		Category:            s.Category,
		CombinedContent:     s.CombinedContent,
		EmbeddingVector:     s.EmbeddingVector,
	}
	if s.CreatedAt != nil {
		doc.CreatedAt = *s.CreatedAt
	}
	return doc
}

func documentToSlice(d searchindex.Document) models.ChapterSlice {
	s := models.ChapterSlice{
		ID:                  d.ID,
		TenantID:            d.TenantID,
		ChapterID:           d.ChapterID,
		FileName:            d.FileName,
		FilePath:            d.FilePath,
		ChapterTitle:        d.ChapterTitle,
		ChapterText:         d.ChapterText,
		ChapterFromPage:     d.ChapterFromPage,
		ChapterToPage:       d.ChapterToPage,
		ChapterTokenCount:   d.ChapterTokenCount,
		SubTitle:            d.SubTitle,
		SubText:             d.SubText,
		SubFromPage:         d.SubFromPage,
		SubToPage:           d.SubToPage,
		SubTokenCount:       d.SubTokenCount,
		DocumentTotalTokens: d.DocumentTotalTokens,
		Category:            d.Category,
		CombinedContent:     d.CombinedContent,
	}
	if !d.CreatedAt.IsZero() {
		t := d.CreatedAt
		s.CreatedAt = &t
	}
	return s
}
