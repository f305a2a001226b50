package models

import "time"

// ChapterSlice is one chapter, or one subchapter within a chapter, of a
// processed source document. It is the unit written to the search index.
type ChapterSlice struct {
	ID        string `json:"id" yaml:"id"`
	TenantID  string `json:"tenantId" yaml:"tenantId"`
	ChapterID string `json:"chapterId" yaml:"chapterId"`

	FileName string `json:"fileName" yaml:"fileName"`
	FilePath string `json:"filePath,omitempty" yaml:"filePath,omitempty"`

	ChapterTitle      string `json:"chapterTitle" yaml:"chapterTitle"`
	ChapterText       string `json:"chapterText,omitempty" yaml:"chapterText,omitempty"`
	ChapterFromPage   int    `json:"chapterFromPage" yaml:"chapterFromPage"`
	ChapterToPage     int    `json:"chapterToPage" yaml:"chapterToPage"`
	ChapterTokenCount int    `json:"chapterTokenCount" yaml:"chapterTokenCount"`

	// Empty subchapter fields mean the slice is chapter-only.
	SubTitle      string `json:"subTitle,omitempty" yaml:"subTitle,omitempty"`
	SubText       string `json:"subText,omitempty" yaml:"subText,omitempty"`
	SubFromPage   int    `json:"subFromPage" yaml:"subFromPage"`
	SubToPage     int    `json:"subToPage" yaml:"subToPage"`
	SubTokenCount int    `json:"subTokenCount" yaml:"subTokenCount"`

	DocumentTotalTokens int    `json:"documentTotalTokens" yaml:"documentTotalTokens"`
	Category            string `json:"category,omitempty" yaml:"category,omitempty"`

	// Computed at index time.
	CombinedContent string     `json:"combinedContent,omitempty" yaml:"-"`
	EmbeddingVector []float32  `json:"-" yaml:"-"`
	CreatedAt       *time.Time `json:"createdAt,omitempty" yaml:"-"`
}

// HasSubchapter reports whether the slice carries subchapter content.
func (s ChapterSlice) HasSubchapter() bool {
	return s.SubTitle != "" && s.SubTokenCount > 0
}

// ChapterExtraction is the externally produced result of splitting a document
// into chapters. One extraction yields one or more ChapterSlices.
type ChapterExtraction struct {
	TenantID            string              `json:"tenantId" yaml:"tenantId"`
	ChapterID           string              `json:"chapterId" yaml:"chapterId"`
	FileName            string              `json:"fileName" yaml:"fileName"`
	FilePath            string              `json:"filePath,omitempty" yaml:"filePath,omitempty"`
	Title               string              `json:"title" yaml:"title"`
	Text                string              `json:"text" yaml:"text"`
	FromPage            int                 `json:"fromPage" yaml:"fromPage"`
	ToPage              int                 `json:"toPage" yaml:"toPage"`
	TokenCount          int                 `json:"tokenCount" yaml:"tokenCount"`
	DocumentTotalTokens int                 `json:"documentTotalTokens" yaml:"documentTotalTokens"`
	Category            string              `json:"category,omitempty" yaml:"category,omitempty"`
	Subchapters         []SubchapterExtract `json:"subchapters,omitempty" yaml:"subchapters,omitempty"`
}

// SubchapterExtract is a subchapter inside a ChapterExtraction.
type SubchapterExtract struct {
	Title      string `json:"title" yaml:"title"`
	Text       string `json:"text" yaml:"text"`
	FromPage   int    `json:"fromPage" yaml:"fromPage"`
	ToPage     int    `json:"toPage" yaml:"toPage"`
	TokenCount int    `json:"tokenCount" yaml:"tokenCount"`
}
