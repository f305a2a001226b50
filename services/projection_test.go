package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"digital-twin-search/models"
)

func TestBuildCombinedContent(t *testing.T) {
	s := models.ChapterSlice{
		FileName:            "Lease.pdf",
		FilePath:            "twin-42/Lease.pdf",
		ChapterTitle:        "1. Terms",
		ChapterText:         "The rent is due monthly.",
		ChapterFromPage:     1,
		ChapterToPage:       5,
		SubTitle:            "1.1 Rent",
		SubText:             "Pay by transfer.",
		SubFromPage:         3,
		SubToPage:           3,
		DocumentTotalTokens: 900,
		ChapterTokenCount:   120,
		SubTokenCount:       30,
	}

	want := "File: Lease.pdf. Path: twin-42/Lease.pdf. Chapter: 1. Terms. " +
		"Chapter text: The rent is due monthly.. Chapter pages: 1-5. " +
		"Subchapter: 1.1 Rent. Subchapter text: Pay by transfer.. Subchapter pages: 3. " +
		"Document tokens: 900. Chapter tokens: 120. Subchapter tokens: 30"
	assert.Equal(t, want, BuildCombinedContent(s))
	assert.Equal(t, BuildCombinedContent(s), BuildCombinedContent(s))
}

func TestBuildCombinedContentSkipsEmptyFields(t *testing.T) {
	s := models.ChapterSlice{
		FileName:     "F.pdf",
		ChapterTitle: "  ",
		ChapterText:  "Body",
	}
	assert.Equal(t, "File: F.pdf. Chapter text: Body", BuildCombinedContent(s))
	assert.Empty(t, BuildCombinedContent(models.ChapterSlice{}))
}

func TestPageRange(t *testing.T) {
	assert.Equal(t, "", pageRange(0, 0))
	assert.Equal(t, "4", pageRange(4, 0))
	assert.Equal(t, "4", pageRange(4, 4))
	assert.Equal(t, "7", pageRange(0, 7))
	assert.Equal(t, "2-7", pageRange(2, 7))
}
