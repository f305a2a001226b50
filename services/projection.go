package services

import (
	"fmt"
	"strings"

	"digital-twin-search/models"
)

const projectionSeparator = ". "

// BuildCombinedContent renders a slice as one labelled sentence list. It is
// both the embedding input and the stored combinedContent field, so the output
// depends on the slice fields only and empty fields are skipped.
func BuildCombinedContent(s models.ChapterSlice) string {
	var parts []string
	add := func(label, value string) {
		if v := strings.TrimSpace(value); v != "" {
			parts = append(parts, label+": "+v)
		}
	}
	addCount := func(label string, n int) {
		if n > 0 {
			parts = append(parts, fmt.Sprintf("%s: %d", label, n))
		}
	}

	add("File", s.FileName)
	add("Path", s.FilePath)
	add("Chapter", s.ChapterTitle)
	add("Chapter text", s.ChapterText)
	add("Chapter pages", pageRange(s.ChapterFromPage, s.ChapterToPage))
	add("Subchapter", s.SubTitle)
	add("Subchapter text", s.SubText)
	add("Subchapter pages", pageRange(s.SubFromPage, s.SubToPage))
	addCount("Document tokens", s.DocumentTotalTokens)
	addCount("Chapter tokens", s.ChapterTokenCount)
	addCount("Subchapter tokens", s.SubTokenCount)

	return strings.Join(parts, projectionSeparator)
}

func pageRange(from, to int) string {
	switch {
	case from <= 0 && to <= 0:
		return ""
	case to <= 0 || to == from:
		return fmt.Sprintf("%d", from)
	case from <= 0:
		return fmt.Sprintf("%d", to)
	}
	return fmt.Sprintf("%d-%d", from, to)
}
