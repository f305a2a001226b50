package queue

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"digital-twin-search/internal/searchindex/local"
	"digital-twin-search/models"
	"digital-twin-search/services"
)

func newProcessor(t *testing.T) (*TaskProcessor, *local.Index) {
	t.Helper()
	store := local.New()
	schema := services.NewIndexSchemaManager(store, services.ChapterIndexDefinition("queue-test", 4, "en.lucene"), nil)
	require.True(t, schema.CreateOrUpdateIndex(context.Background()).Success)
	return NewTaskProcessor(
		services.NewChapterIndexer(store, nil, nil),
		services.NewBatchDeleter(store, nil),
		schema,
	), store
}

func extraction() *models.ChapterExtraction {
	return &models.ChapterExtraction{
		TenantID:  "twin-42",
		ChapterID: "ch1",
		FileName:  "Lease.pdf",
		Title:     "1. Terms",
		Text:      "Rent is due monthly.",
		Subchapters: []models.SubchapterExtract{
			{Title: "1.1 Amount", Text: "Rent is 900.", TokenCount: 5},
			{Title: "1.2 Date", Text: "Due on the first.", TokenCount: 5},
		},
	}
}

func TestTaskIDIsStable(t *testing.T) {
	a := taskID(TaskIndexChapter, []byte(`{"x":1}`))
	assert.Equal(t, a, taskID(TaskIndexChapter, []byte(`{"x":1}`)))
	assert.NotEqual(t, a, taskID(TaskDeleteDocument, []byte(`{"x":1}`)))
	assert.NotEqual(t, a, taskID(TaskIndexChapter, []byte(`{"x":2}`)))
}

func TestNewTasksValidateInput(t *testing.T) {
	_, err := NewIndexChapterTask(IndexChapterPayload{})
	assert.Error(t, err)
	_, err = NewDeleteDocumentTask("T1", " ")
	assert.Error(t, err)

	task, err := NewDeleteDocumentTask("T1", "Lease.pdf")
	require.NoError(t, err)
	assert.Equal(t, TaskDeleteDocument, task.Type())
	assert.Equal(t, TaskReconcileIndex, NewReconcileIndexTask().Type())
}

func TestIndexChapterTaskIndexesExtraction(t *testing.T) {
	p, store := newProcessor(t)
	task, err := NewIndexChapterTask(IndexChapterPayload{Extraction: extraction()})
	require.NoError(t, err)

	require.NoError(t, p.IndexChapter(context.Background(), task))
	assert.Equal(t, 2, store.Len())
	_, ok := store.Get("ch1-sub-2")
	assert.True(t, ok)

	// Redelivery overwrites in place.
	require.NoError(t, p.IndexChapter(context.Background(), task))
	assert.Equal(t, 2, store.Len())
}

func TestIndexChapterTaskSkipsRetryOnInvalidInput(t *testing.T) {
	p, _ := newProcessor(t)

	err := p.IndexChapter(context.Background(), asynq.NewTask(TaskIndexChapter, []byte("{not json")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	payload, _ := json.Marshal(IndexChapterPayload{Slices: []models.ChapterSlice{{ID: "x", FileName: "F.pdf"}}})
	err = p.IndexChapter(context.Background(), asynq.NewTask(TaskIndexChapter, payload))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Contains(t, err.Error(), "tenantId")
}

func TestDeleteDocumentTask(t *testing.T) {
	p, store := newProcessor(t)
	ctx := context.Background()
	task, _ := NewIndexChapterTask(IndexChapterPayload{Extraction: extraction()})
	require.NoError(t, p.IndexChapter(ctx, task))

	del, err := NewDeleteDocumentTask("twin-42", "Lease.pdf")
	require.NoError(t, err)
	require.NoError(t, p.DeleteDocument(ctx, del))
	assert.Zero(t, store.Len())

	payload, _ := json.Marshal(DeleteDocumentPayload{TenantID: "twin-42"})
	err = p.DeleteDocument(ctx, asynq.NewTask(TaskDeleteDocument, payload))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestReconcileIndexTask(t *testing.T) {
	p, _ := newProcessor(t)
	assert.NoError(t, p.ReconcileIndex(context.Background(), NewReconcileIndexTask()))

	broken := NewTaskProcessor(nil, nil, services.NewIndexSchemaManager(nil, nil, nil))
	assert.Error(t, broken.ReconcileIndex(context.Background(), NewReconcileIndexTask()))
}

func TestReconcileTaskIsUnique(t *testing.T) {
	var unique []asynq.Option
	for _, opt := range reconcileTaskOptions() {
		if opt.Type() == asynq.UniqueOpt {
			unique = append(unique, opt)
		}
	}
	require.Len(t, unique, 1)
	assert.Equal(t, ReconcileUniqueTTL, unique[0].Value())
}

func TestReconcileEnqueuedOncePerTick(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR_TEST")
	if addr == "" {
		t.Skip("REDIS_ADDR_TEST not set, skipping Redis integration test")
	}
	client := asynq.NewClient(asynq.RedisClientOpt{Addr: addr, DB: 15})
	defer client.Close()
	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: addr, DB: 15})
	defer inspector.Close()
	defer inspector.DeleteAllPendingTasks(QueueLow)

	ctx := context.Background()
	first, err := Enqueue(ctx, client, NewReconcileIndexTask())
	require.NoError(t, err)
	assert.NotEmpty(t, first)

	second, err := Enqueue(ctx, client, NewReconcileIndexTask())
	require.NoError(t, err)
	assert.Empty(t, second)
}

func TestSchedulerRegistersReconcileJob(t *testing.T) {
	s := NewScheduler()
	require.NoError(t, s.ScheduleJob(TaskReconcileIndex, "0 */6 * * *", func() error { return nil }))
	assert.Equal(t, []string{TaskReconcileIndex}, s.Tags())
	assert.Error(t, s.ScheduleJob(TaskReconcileIndex, "0 */6 * * *", func() error { return nil }))
}
