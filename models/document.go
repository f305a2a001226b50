package models

// Chapter hierarchy levels.
const (
	LevelChapter    = 1
	LevelSubchapter = 2
)

// ChapterSummary is a ChapterSlice reduced to what a document listing shows.
type ChapterSummary struct {
	ID            string `json:"id"`
	ChapterID     string `json:"chapterId"`
	ChapterNumber string `json:"chapterNumber"`
	Title         string `json:"title"`
	ChapterTitle  string `json:"chapterTitle"`
	FromPage      int    `json:"fromPage"`
	ToPage        int    `json:"toPage"`
	Level         int    `json:"level"`
	TokenCount    int    `json:"tokenCount"`
}

// DocumentSummary groups every slice that shares a file name.
type DocumentSummary struct {
	TenantID      string           `json:"tenantId"`
	FileName      string           `json:"fileName"`
	FilePath      string           `json:"filePath,omitempty"`
	Category      string           `json:"category,omitempty"`
	TotalChapters int              `json:"totalChapters"`
	TotalTokens   int              `json:"totalTokens"`
	TotalPages    int              `json:"totalPages"`
	Chapters      []ChapterSummary `json:"chapters"`
}

// DocumentMetadata is the lightweight listing variant of DocumentSummary; it
// carries no chapter list.
type DocumentMetadata struct {
	TenantID      string `json:"tenantId"`
	FileName      string `json:"fileName"`
	FilePath      string `json:"filePath,omitempty"`
	Category      string `json:"category,omitempty"`
	TotalChapters int    `json:"totalChapters"`
	TotalSlices   int    `json:"totalSlices"`
	TotalTokens   int    `json:"totalTokens"`
	TotalPages    int    `json:"totalPages"`
}

// Metadata drops the chapter list.
func (d DocumentSummary) Metadata() DocumentMetadata {
	return DocumentMetadata{
		TenantID:      d.TenantID,
		FileName:      d.FileName,
		FilePath:      d.FilePath,
		Category:      d.Category,
		TotalChapters: d.TotalChapters,
		TotalSlices:   len(d.Chapters),
		TotalTokens:   d.TotalTokens,
		TotalPages:    d.TotalPages,
	}
}
