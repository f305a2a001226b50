package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"digital-twin-search/internal/config"
	"digital-twin-search/internal/logger"
	"digital-twin-search/models"
	"digital-twin-search/services"
)

const (
	TaskIndexChapter   = "chapter:index"
	TaskDeleteDocument = "document:delete"
	TaskReconcileIndex = "index:reconcile"
)

// Queue names and their worker weights.
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// ReconcileUniqueTTL bounds how long a pending reconcile task blocks
// identical enqueues from other workers.
const ReconcileUniqueTTL = 10 * time.Minute

var taskNamespace = uuid.MustParse("6f1d3c1e-5a0b-4f7e-9c55-1f0c2f6f4a10")

// IndexChapterPayload carries either a chapter extraction, ready-made slices,
// or both.
type IndexChapterPayload struct {
	Extraction *models.ChapterExtraction `json:"extraction,omitempty"`
	Slices     []models.ChapterSlice     `json:"slices,omitempty"`
}

type DeleteDocumentPayload struct {
	TenantID string `json:"tenant_id,omitempty"`
	FileName string `json:"file_name"`
}

// taskID derives a stable id so enqueuing the same work twice while it is
// still pending is rejected by the queue.
func taskID(kind string, payload []byte) string {
	return uuid.NewSHA1(taskNamespace, append([]byte(kind+":"), payload...)).String()
}

// Task creators
func NewIndexChapterTask(p IndexChapterPayload) (*asynq.Task, error) {
	if p.Extraction == nil && len(p.Slices) == 0 {
		return nil, errors.New("index task needs an extraction or slices")
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskIndexChapter,
		payload,
		asynq.TaskID(taskID(TaskIndexChapter, payload)),
		asynq.MaxRetry(5),
		asynq.Timeout(10*time.Minute),
		asynq.Queue(QueueDefault),
	), nil
}

func NewDeleteDocumentTask(tenantID, fileName string) (*asynq.Task, error) {
	if strings.TrimSpace(fileName) == "" {
		return nil, errors.New("delete task needs a file name")
	}
	payload, err := json.Marshal(DeleteDocumentPayload{TenantID: tenantID, FileName: fileName})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskDeleteDocument,
		payload,
		asynq.TaskID(taskID(TaskDeleteDocument, payload)),
		asynq.MaxRetry(3),
		asynq.Timeout(5*time.Minute),
		asynq.Queue(QueueCritical),
	), nil
}

// NewReconcileIndexTask is unique while pending, so every worker may
// enqueue it on the same tick and the schema is reconciled once.
func NewReconcileIndexTask() *asynq.Task {
	return asynq.NewTask(TaskReconcileIndex, nil, reconcileTaskOptions()...)
}

func reconcileTaskOptions() []asynq.Option {
	return []asynq.Option{
		asynq.Unique(ReconcileUniqueTTL),
		asynq.MaxRetry(2),
		asynq.Timeout(2 * time.Minute),
		asynq.Queue(QueueLow),
	}
}

// RedisConnOpt maps the Redis configuration onto asynq connection options.
func RedisConnOpt(cfg *config.Config) (asynq.RedisClientOpt, error) {
	opt, err := config.RedisOptions(cfg)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}
	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Username:  opt.Username,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: opt.TLSConfig,
	}, nil
}

// Enqueue submits a task. A task already pending under the same id or
// uniqueness lock is not an error.
func Enqueue(ctx context.Context, client *asynq.Client, task *asynq.Task) (string, error) {
	info, err := client.EnqueueContext(ctx, task)
	if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to enqueue %s: %w", task.Type(), err)
	}
	return info.ID, nil
}

// Task handlers
type TaskProcessor struct {
	indexer *services.ChapterIndexer
	deleter *services.BatchDeleter
	schema  *services.IndexSchemaManager
	log     *slog.Logger
}

func NewTaskProcessor(indexer *services.ChapterIndexer, deleter *services.BatchDeleter, schema *services.IndexSchemaManager) *TaskProcessor {
	return &TaskProcessor{
		indexer: indexer,
		deleter: deleter,
		schema:  schema,
		log:     logger.With("queue"),
	}
}

// Register adds every handler to mux.
func (p *TaskProcessor) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskIndexChapter, p.IndexChapter)
	mux.HandleFunc(TaskDeleteDocument, p.DeleteDocument)
	mux.HandleFunc(TaskReconcileIndex, p.ReconcileIndex)
}

func (p *TaskProcessor) IndexChapter(ctx context.Context, t *asynq.Task) error {
	var payload IndexChapterPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	slices := payload.Slices
	if payload.Extraction != nil {
		slices = append(slices, services.SlicesFromExtraction(*payload.Extraction)...)
	}
	if len(slices) == 0 {
		return fmt.Errorf("no slices in payload: %w", asynq.SkipRetry)
	}

	res := p.indexer.IndexSlices(ctx, slices)
	p.log.Info("Index task processed", "indexed", res.IndexedCount, "failed", res.FailedCount)
	if res.Success {
		return nil
	}
	if res.IndexedCount == 0 && allMissingField(res.Results) {
		return fmt.Errorf("invalid slices: %s: %w", strings.Join(res.Errors, "; "), asynq.SkipRetry)
	}
	// Successful slices are overwritten in place on retry.
	return fmt.Errorf("%d of %d slices failed: %s", res.FailedCount, len(slices), strings.Join(res.Errors, "; "))
}

func allMissingField(results []models.IndexResult) bool {
	for _, r := range results {
		if !r.Success && !strings.HasPrefix(r.Error, services.ErrMissingField.Error()) {
			return false
		}
	}
	return true
}

func (p *TaskProcessor) DeleteDocument(ctx context.Context, t *asynq.Task) error {
	var payload DeleteDocumentPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	res := p.deleter.DeleteByFile(ctx, payload.FileName, payload.TenantID)
	if res.Success {
		p.log.Info("Delete task processed", "file_name", payload.FileName, "deleted", res.DeletedCount)
		return nil
	}
	if strings.TrimSpace(payload.FileName) == "" {
		return fmt.Errorf("missing file name: %w", asynq.SkipRetry)
	}
	return fmt.Errorf("deleted %d of %d documents: %s", res.DeletedCount, res.FoundCount, strings.Join(res.Errors, "; "))
}

func (p *TaskProcessor) ReconcileIndex(ctx context.Context, t *asynq.Task) error {
	res := p.schema.CreateOrUpdateIndex(ctx)
	if !res.Success {
		return errors.New(res.Error)
	}
	return nil
}
