package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"digital-twin-search/internal/logger"
	"digital-twin-search/internal/searchindex"
	"digital-twin-search/internal/telemetry"
	"digital-twin-search/models"
)

const (
	// DeleteLookupLimit is the most ids one DeleteByFile call finds. Larger
	// documents need repeated calls.
	DeleteLookupLimit = 1000
	// DeleteBatchSize matches the store batch-write limit.
	DeleteBatchSize = searchindex.MaxBatchSize
)

// BatchDeleter removes every slice of a file.
type BatchDeleter struct {
	store     searchindex.Client
	batchSize int
	metrics   *telemetry.Metrics
	log       *slog.Logger
}

func NewBatchDeleter(store searchindex.Client, log *slog.Logger) *BatchDeleter {
	if log == nil {
		log = logger.With("batch_deleter")
	}
	return &BatchDeleter{
		store:     store,
		batchSize: DeleteBatchSize,
		metrics:   telemetry.Default(),
		log:       log,
	}
}

// DeleteByFile deletes the slices of fileName, optionally within one tenant.
// Batches run in order; a failing batch is recorded and the rest still run.
// Success is true only when no batch reported an error, and the counts are
// accurate either way.
func (d *BatchDeleter) DeleteByFile(ctx context.Context, fileName, tenantID string) models.DeleteResult {
	res := models.DeleteResult{FileName: fileName, TenantID: tenantID}
	if d.store == nil {
		res.Errors = []string{ErrServiceUnavailable.Error()}
		return res
	}
	if strings.TrimSpace(fileName) == "" {
		res.Errors = []string{missingField("fileName").Error()}
		return res
	}

	ctx, span := telemetry.Tracer().Start(ctx, "batch_deleter.delete_by_file")
	defer span.End()
	span.SetAttributes(attribute.String("search.file_name", fileName))

	filter := searchindex.Eq(searchindex.FieldFileName, fileName)
	if tenantID != "" {
		filter = filter.And(searchindex.FieldTenantID, tenantID)
	}

	page, err := d.store.Search(ctx, &searchindex.SearchRequest{
		Filter: filter,
		Select: []string{searchindex.FieldID},
		Top:    DeleteLookupLimit,
	})
	if err != nil {
		span.RecordError(err)
		d.log.Error("Failed to look up documents to delete", "file_name", fileName, "tenant_id", tenantID, "error", err)
		res.Errors = []string{fmt.Sprintf("lookup failed: %v", err)}
		return res
	}

	ids := make([]string, 0, len(page.Hits))
	for _, h := range page.Hits {
		ids = append(ids, h.Document.ID)
	}
	res.FoundCount = len(ids)
	if page.HasMore {
		d.log.Warn("Delete lookup limit reached; remaining documents need another run",
			"file_name", fileName, "limit", DeleteLookupLimit)
	}

	if len(ids) == 0 {
		res.Success = true
		res.Message = "no documents found for " + fileName
		return res
	}

	for start := 0; start < len(ids); start += d.batchSize {
		end := min(start+d.batchSize, len(ids))
		batch := ids[start:end]
		res.BatchCount++

		results, err := d.store.Delete(ctx, batch)
		if err != nil {
			span.RecordError(err)
			d.log.Error("Delete batch failed", "file_name", fileName, "batch", res.BatchCount, "size", len(batch), "error", err)
			res.Errors = append(res.Errors, fmt.Sprintf("batch %d: %v", res.BatchCount, err))
			continue
		}
		for _, r := range results {
			if r.Succeeded {
				res.DeletedCount++
				continue
			}
			res.Errors = append(res.Errors, fmt.Sprintf("batch %d: %s: %s", res.BatchCount, r.Key, r.ErrorMessage))
		}
	}

	d.metrics.RecordDeletes(res.DeletedCount, res.FoundCount-res.DeletedCount)
	span.SetAttributes(
		attribute.Int("delete.found", res.FoundCount),
		attribute.Int("delete.deleted", res.DeletedCount),
		attribute.Int("delete.errors", len(res.Errors)),
	)

	res.Success = len(res.Errors) == 0
	res.Message = fmt.Sprintf("deleted %d of %d documents in %d batches", res.DeletedCount, res.FoundCount, res.BatchCount)
	d.log.Info("Delete by file finished",
		"file_name", fileName,
		"tenant_id", tenantID,
		"found", res.FoundCount,
		"deleted", res.DeletedCount,
		"errors", len(res.Errors))
	return res
}
