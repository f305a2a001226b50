package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"digital-twin-search/models"
)

func TestGroupByFileCountsDistinctChapters(t *testing.T) {
	slices := []models.ChapterSlice{
		{ID: "a-1", ChapterID: "A", FileName: "Lease.pdf", ChapterTitle: "1. Terms",
			ChapterFromPage: 1, ChapterToPage: 5, ChapterTokenCount: 100,
			SubTitle: "1.1 Rent", SubFromPage: 3, SubToPage: 4, SubTokenCount: 40},
		{ID: "b", ChapterID: "B", FileName: "Lease.pdf", ChapterTitle: "2. Deposit",
			ChapterFromPage: 2, ChapterToPage: 3, ChapterTokenCount: 60},
	}

	docs := GroupByFile(slices)
	require.Len(t, docs, 1)
	doc := docs[0]
	assert.Equal(t, 2, doc.TotalChapters)
	assert.Equal(t, 200, doc.TotalTokens)
	assert.Equal(t, 5, doc.TotalPages)
	require.Len(t, doc.Chapters, 2)

	sub := doc.Chapters[0]
	assert.Equal(t, models.LevelSubchapter, sub.Level)
	assert.Equal(t, "1", sub.ChapterNumber)
	assert.Equal(t, "1.1 Rent", sub.Title)
	assert.Equal(t, "1. Terms", sub.ChapterTitle)
	assert.Equal(t, 3, sub.FromPage)
	assert.Equal(t, 4, sub.ToPage)
	assert.Equal(t, 40, sub.TokenCount)

	chapter := doc.Chapters[1]
	assert.Equal(t, models.LevelChapter, chapter.Level)
	assert.Equal(t, "2", chapter.ChapterNumber)
	assert.Equal(t, "2. Deposit", chapter.Title)
	assert.Equal(t, 60, chapter.TokenCount)
}

func TestGroupByFileSubchaptersOfOneChapterCountOnce(t *testing.T) {
	var slices []models.ChapterSlice
	for _, sub := range []string{"a", "b", "c"} {
		slices = append(slices, models.ChapterSlice{
			ID: sub, ChapterID: "C1", FileName: "F.pdf",
			SubTitle: sub, SubTokenCount: 10,
		})
	}
	docs := GroupByFile(slices)
	require.Len(t, docs, 1)
	assert.Equal(t, 1, docs[0].TotalChapters)
	assert.Len(t, docs[0].Chapters, 3)
}

func TestGroupByFilePageSpan(t *testing.T) {
	tests := []struct {
		name   string
		slices []models.ChapterSlice
		want   int
	}{
		{"chapter contains subchapter", []models.ChapterSlice{
			{ChapterFromPage: 1, ChapterToPage: 5, SubFromPage: 3, SubToPage: 4},
		}, 5},
		{"chapter start missing falls back to subchapter", []models.ChapterSlice{
			{ChapterToPage: 9, SubFromPage: 4, SubToPage: 6},
		}, 6},
		{"no pages clamps to one", []models.ChapterSlice{{}}, 1},
		{"inverted range clamps to one", []models.ChapterSlice{
			{ChapterFromPage: 8, ChapterToPage: 2},
		}, 1},
		{"span across slices", []models.ChapterSlice{
			{ChapterFromPage: 10, ChapterToPage: 12},
			{ChapterFromPage: 2, ChapterToPage: 4},
		}, 11},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := range tt.slices {
				tt.slices[i].FileName = "F.pdf"
			}
			docs := GroupByFile(tt.slices)
			require.Len(t, docs, 1)
			assert.Equal(t, tt.want, docs[0].TotalPages)
		})
	}
}

func TestGroupByFileSortsByFileName(t *testing.T) {
	docs := GroupByFile([]models.ChapterSlice{
		{ChapterID: "1", FileName: "c.pdf"},
		{ChapterID: "2", FileName: "a.pdf"},
		{ChapterID: "3", FileName: "b.pdf"},
		{ChapterID: "4", FileName: "a.pdf"},
	})
	var names []string
	for _, d := range docs {
		names = append(names, d.FileName)
	}
	assert.Equal(t, []string{"a.pdf", "b.pdf", "c.pdf"}, names)
	assert.Equal(t, 2, docs[0].TotalChapters)
}

func TestGroupByFileEmpty(t *testing.T) {
	assert.Empty(t, GroupByFile(nil))
	assert.NotNil(t, GroupByFile(nil))
}

func TestChapterNumber(t *testing.T) {
	assert.Equal(t, "1", ChapterNumber("1. Terms"))
	assert.Equal(t, "12", ChapterNumber("12. Annexes"))
	assert.Equal(t, "3", ChapterNumber("  3.Scope"))
	assert.Equal(t, "1", ChapterNumber("Introduction"))
	assert.Equal(t, "1", ChapterNumber("Chapter 4. Rent"))
	assert.Equal(t, "1", ChapterNumber(""))
}

func TestSliceLevel(t *testing.T) {
	assert.Equal(t, models.LevelSubchapter, SliceLevel(models.ChapterSlice{SubTitle: "x", SubTokenCount: 1}))
	assert.Equal(t, models.LevelChapter, SliceLevel(models.ChapterSlice{SubTitle: "x"}))
	assert.Equal(t, models.LevelChapter, SliceLevel(models.ChapterSlice{SubTokenCount: 5}))
}

func TestDocumentSummaryMetadata(t *testing.T) {
	docs := GroupByFile([]models.ChapterSlice{
		{ID: "1", ChapterID: "A", TenantID: "T1", FileName: "F.pdf", FilePath: "t1/F.pdf", Category: "Lease", ChapterTokenCount: 5},
		{ID: "2", ChapterID: "A", TenantID: "T1", FileName: "F.pdf", SubTitle: "s", SubTokenCount: 3},
	})
	require.Len(t, docs, 1)
	meta := docs[0].Metadata()
	assert.Equal(t, models.DocumentMetadata{
		TenantID:      "T1",
		FileName:      "F.pdf",
		FilePath:      "t1/F.pdf",
		Category:      "Lease",
		TotalChapters: 1,
		TotalSlices:   2,
		TotalTokens:   8,
		TotalPages:    1,
	}, meta)
}
