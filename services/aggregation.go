package services

import (
	"regexp"
	"sort"
	"strings"

	"digital-twin-search/models"
)

var chapterNumberPattern = regexp.MustCompile(`^\s*(\d+)\.`)

// ChapterNumber extracts the leading "N." number of a chapter title, or "1".
func ChapterNumber(title string) string {
	if m := chapterNumberPattern.FindStringSubmatch(title); m != nil {
		return m[1]
	}
	return "1"
}

// SliceLevel is 2 for a subchapter entry and 1 for a chapter-only entry.
func SliceLevel(s models.ChapterSlice) int {
	if s.HasSubchapter() {
		return models.LevelSubchapter
	}
	return models.LevelChapter
}

// Summarize reduces a slice to its listing entry. Subchapter title, pages and
// tokens win over the chapter ones when present.
func Summarize(s models.ChapterSlice) models.ChapterSummary {
	sum := models.ChapterSummary{
		ID:            s.ID,
		ChapterID:     s.ChapterID,
		ChapterNumber: ChapterNumber(s.ChapterTitle),
		Title:         s.ChapterTitle,
		ChapterTitle:  s.ChapterTitle,
		FromPage:      s.ChapterFromPage,
		ToPage:        s.ChapterToPage,
		Level:         SliceLevel(s),
		TokenCount:    s.ChapterTokenCount,
	}
	if strings.TrimSpace(s.SubTitle) != "" {
		sum.Title = s.SubTitle
	}
	if s.SubFromPage > 0 {
		sum.FromPage = s.SubFromPage
		sum.ToPage = s.SubToPage
	}
	if s.SubTokenCount > 0 {
		sum.TokenCount = s.SubTokenCount
	}
	return sum
}

// effectiveFromPage is the lower non-zero start page of the chapter and
// subchapter pair, or 0 when both are unset.
func effectiveFromPage(s models.ChapterSlice) int {
	switch {
	case s.ChapterFromPage <= 0:
		return max(s.SubFromPage, 0)
	case s.SubFromPage <= 0:
		return s.ChapterFromPage
	}
	return min(s.ChapterFromPage, s.SubFromPage)
}

type fileGroup struct {
	summary  models.DocumentSummary
	chapters map[string]struct{}
	minPage  int
	maxPage  int
}

// GroupByFile groups slices by file name into document summaries sorted by
// file name. Chapters are counted by distinct chapter id, not by slice.
func GroupByFile(slices []models.ChapterSlice) []models.DocumentSummary {
	groups := make(map[string]*fileGroup)
	for _, s := range slices {
		g, ok := groups[s.FileName]
		if !ok {
			g = &fileGroup{
				summary: models.DocumentSummary{
					TenantID: s.TenantID,
					FileName: s.FileName,
					Chapters: []models.ChapterSummary{},
				},
				chapters: make(map[string]struct{}),
			}
			groups[s.FileName] = g
		}

		if g.summary.FilePath == "" {
			g.summary.FilePath = s.FilePath
		}
		if g.summary.Category == "" {
			g.summary.Category = s.Category
		}
		if s.ChapterID != "" {
			g.chapters[s.ChapterID] = struct{}{}
		}
		g.summary.TotalTokens += s.ChapterTokenCount + s.SubTokenCount

		if from := effectiveFromPage(s); from > 0 && (g.minPage == 0 || from < g.minPage) {
			g.minPage = from
		}
		g.maxPage = max(g.maxPage, s.ChapterToPage, s.SubToPage)

		g.summary.Chapters = append(g.summary.Chapters, Summarize(s))
	}

	out := make([]models.DocumentSummary, 0, len(groups))
	for _, g := range groups {
		g.summary.TotalChapters = len(g.chapters)
		g.summary.TotalPages = max(g.maxPage-g.minPage+1, 1)
		out = append(out, g.summary)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].FileName < out[j].FileName
	})
	return out
}
