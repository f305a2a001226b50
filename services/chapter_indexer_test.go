package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"digital-twin-search/internal/ai"
	"digital-twin-search/internal/searchindex"
	"digital-twin-search/models"
)

func leaseSlice() models.ChapterSlice {
	return models.ChapterSlice{
		ID:                "lease-ch1",
		TenantID:          "twin-42",
		ChapterID:         "ch1",
		FileName:          "Lease.pdf",
		FilePath:          "twin-42/Lease.pdf",
		ChapterTitle:      "1. Terms",
		ChapterText:       "The tenant agrees that the rent is due monthly on the first day.",
		ChapterFromPage:   1,
		ChapterToPage:     3,
		ChapterTokenCount: 40,
	}
}

func TestIndexSliceIsIdempotentPerID(t *testing.T) {
	store := newLocalStore(t)
	ix := NewChapterIndexer(store, newGenerator(&bagOfWords{}), quietLog)
	ctx := context.Background()

	first := ix.IndexSlice(ctx, leaseSlice())
	require.True(t, first.Success, first.Error)
	assert.Equal(t, "lease-ch1", first.DocumentID)
	assert.True(t, first.HasVector)

	updated := leaseSlice()
	updated.ChapterTitle = "1. Terms (amended)"
	second := ix.IndexSlice(ctx, updated)
	require.True(t, second.Success, second.Error)

	assert.Equal(t, 1, store.Len())
	doc, ok := store.Get("lease-ch1")
	require.True(t, ok)
	assert.Equal(t, "1. Terms (amended)", doc.ChapterTitle)
	assert.Equal(t, BuildCombinedContent(updated), doc.CombinedContent)
	assert.Len(t, doc.EmbeddingVector, testDims)
	assert.False(t, doc.CreatedAt.IsZero())
}

func TestIndexSliceGeneratesID(t *testing.T) {
	store := newLocalStore(t)
	ix := NewChapterIndexer(store, nil, quietLog)
	ix.now = func() time.Time { return time.Unix(0, 1700000000123456789) }

	s := leaseSlice()
	s.ID = ""
	s.ChapterID = "ch/1"
	res := ix.IndexSlice(context.Background(), s)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "twin-42-ch_1-1700000000123456789", res.DocumentID)

	_, ok := store.Get(res.DocumentID)
	assert.True(t, ok)
}

func TestIndexSliceWithoutEmbeddingsStillIndexes(t *testing.T) {
	for name, gen := range map[string]*ai.EmbeddingGenerator{
		"no generator":     nil,
		"no provider":      newGenerator(nil),
		"provider failing": newGenerator(&bagOfWords{err: errors.New("quota exceeded")}),
	} {
		t.Run(name, func(t *testing.T) {
			store := newLocalStore(t)
			res := NewChapterIndexer(store, gen, quietLog).IndexSlice(context.Background(), leaseSlice())
			require.True(t, res.Success, res.Error)
			assert.False(t, res.HasVector)

			doc, ok := store.Get("lease-ch1")
			require.True(t, ok)
			assert.Nil(t, doc.EmbeddingVector)
		})
	}
}

func TestIndexSliceTruncatesEmbeddingInputOnly(t *testing.T) {
	provider := &bagOfWords{}
	store := newLocalStore(t)
	ix := NewChapterIndexer(store, newGenerator(provider), quietLog)

	s := leaseSlice()
	s.ChapterText = strings.Repeat("a", 10000)
	res := ix.IndexSlice(context.Background(), s)
	require.True(t, res.Success, res.Error)

	combined := BuildCombinedContent(s)
	require.Greater(t, utf8.RuneCountInString(combined), 10000)
	assert.Equal(t, 8000, utf8.RuneCountInString(provider.lastInput()))
	assert.True(t, strings.HasPrefix(combined, provider.lastInput()))

	doc, _ := store.Get("lease-ch1")
	assert.Equal(t, combined, doc.CombinedContent)
}

func TestIndexSliceValidation(t *testing.T) {
	ctx := context.Background()

	res := NewChapterIndexer(nil, nil, quietLog).IndexSlice(ctx, leaseSlice())
	assert.False(t, res.Success)
	assert.Equal(t, ErrServiceUnavailable.Error(), res.Error)

	store := &recordingStore{Client: newLocalStore(t)}
	ix := NewChapterIndexer(store, nil, quietLog)

	s := leaseSlice()
	s.TenantID = ""
	res = ix.IndexSlice(ctx, s)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "tenantId")

	s = leaseSlice()
	s.ID, s.ChapterID = "", ""
	res = ix.IndexSlice(ctx, s)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "chapterId")

	assert.Empty(t, store.writes)
}

func TestIndexSliceSurfacesDocumentFailure(t *testing.T) {
	store := &recordingStore{
		Client:     newLocalStore(t),
		rejectKeys: map[string]string{"lease-ch1": "field chapterText too large"},
	}
	res := NewChapterIndexer(store, nil, quietLog).IndexSlice(context.Background(), leaseSlice())
	assert.False(t, res.Success)
	assert.Equal(t, "lease-ch1", res.DocumentID)
	assert.Contains(t, res.Error, "field chapterText too large")
}

func TestIndexSlicesWritesStoreSizedBatches(t *testing.T) {
	store := &recordingStore{
		Client:     newLocalStore(t),
		rejectKeys: map[string]string{"s-7": "rejected"},
	}
	ix := NewChapterIndexer(store, newGenerator(&bagOfWords{}), quietLog)

	var slices []models.ChapterSlice
	for i := 0; i < 250; i++ {
		s := leaseSlice()
		s.ID = fmt.Sprintf("s-%d", i)
		slices = append(slices, s)
	}
	bad := leaseSlice()
	bad.ID, bad.TenantID = "no-tenant", ""
	slices = append(slices, bad)

	out := ix.IndexSlices(context.Background(), slices)
	require.Len(t, store.writes, 3)
	assert.Len(t, store.writes[0], 100)
	assert.Len(t, store.writes[1], 100)
	assert.Len(t, store.writes[2], 50)

	assert.False(t, out.Success)
	assert.Equal(t, 249, out.IndexedCount)
	assert.Equal(t, 2, out.FailedCount)
	require.Len(t, out.Results, 251)
	assert.False(t, out.Results[7].Success)
	assert.Equal(t, "rejected", out.Results[7].Error)
	assert.True(t, out.Results[8].HasVector)
	assert.Len(t, out.Errors, 2)
}

func TestIndexSlicesMatchesResultsByKey(t *testing.T) {
	store := &recordingStore{
		Client:         newLocalStore(t),
		reverseResults: true,
		dropResults:    1,
	}
	ix := NewChapterIndexer(store, nil, quietLog)

	var slices []models.ChapterSlice
	for _, id := range []string{"a", "b", "c"} {
		s := leaseSlice()
		s.ID = id
		slices = append(slices, s)
	}

	// Results come back as c, b, a with a dropped.
	out := ix.IndexSlices(context.Background(), slices)
	assert.False(t, out.Success)
	assert.Equal(t, 2, out.IndexedCount)
	assert.Equal(t, 1, out.FailedCount)
	require.Len(t, out.Results, 3)
	assert.False(t, out.Results[0].Success)
	assert.Equal(t, noResultMessage, out.Results[0].Error)
	assert.True(t, out.Results[1].Success)
	assert.True(t, out.Results[2].Success)
}

func TestIndexSliceWithoutStoreResultFails(t *testing.T) {
	store := &recordingStore{Client: newLocalStore(t), dropResults: 1}
	res := NewChapterIndexer(store, nil, quietLog).IndexSlice(context.Background(), leaseSlice())
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, noResultMessage)
}

func TestDeleteSlice(t *testing.T) {
	store := newLocalStore(t)
	ix := NewChapterIndexer(store, nil, quietLog)
	ctx := context.Background()
	require.True(t, ix.IndexSlice(ctx, leaseSlice()).Success)

	res := ix.DeleteSlice(ctx, "lease-ch1")
	assert.True(t, res.Success, res.Error)
	assert.Zero(t, store.Len())

	res = ix.DeleteSlice(ctx, " ")
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "id")
}

func TestSlicesFromExtraction(t *testing.T) {
	ext := models.ChapterExtraction{
		TenantID:            "twin-42",
		ChapterID:           "ch1",
		FileName:            "Lease.pdf",
		Title:               "1. Terms",
		Text:                "Terms text",
		FromPage:            1,
		ToPage:              5,
		TokenCount:          100,
		DocumentTotalTokens: 900,
		Category:            "Lease",
		Subchapters: []models.SubchapterExtract{
			{Title: "1.1 Rent", Text: "Rent text", FromPage: 2, ToPage: 3, TokenCount: 40},
			{Title: "1.2 Deposit", Text: "Deposit text", FromPage: 4, ToPage: 5, TokenCount: 30},
		},
	}

	slices := SlicesFromExtraction(ext)
	require.Len(t, slices, 2)
	assert.Equal(t, "ch1-sub-1", slices[0].ID)
	assert.Equal(t, "ch1-sub-2", slices[1].ID)
	for _, s := range slices {
		assert.Equal(t, "ch1", s.ChapterID)
		assert.Equal(t, "twin-42", s.TenantID)
		assert.Equal(t, "Lease.pdf", s.FileName)
		assert.Equal(t, 900, s.DocumentTotalTokens)
		assert.Equal(t, "Lease", s.Category)
		assert.Equal(t, models.LevelSubchapter, SliceLevel(s))
	}
	assert.Equal(t, "1.2 Deposit", slices[1].SubTitle)
	assert.Equal(t, 4, slices[1].SubFromPage)

	ext.Subchapters = nil
	slices = SlicesFromExtraction(ext)
	require.Len(t, slices, 1)
	assert.Equal(t, "ch1-chapter", slices[0].ID)
	assert.Equal(t, models.LevelChapter, SliceLevel(slices[0]))
}

func TestSliceDocumentRoundTrip(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s := leaseSlice()
	s.CreatedAt = &now
	s.EmbeddingVector = []float32{1}

	doc := sliceToDocument(s)
	assert.Equal(t, now, doc.CreatedAt)
	assert.Equal(t, []float32{1}, doc.EmbeddingVector)

	back := documentToSlice(searchindex.Document{ID: "x"})
	assert.Nil(t, back.CreatedAt)
	assert.Empty(t, back.ChapterText)
}
