// Package searchindex defines the search store contract shared by the chapter
// indexing services and the concrete backends (Azure AI Search, MongoDB Atlas,
// embedded bleve).
package searchindex

import "time"

// Index field names. The schema, the indexer and the query engine all refer to
// these constants so field names cannot drift between them.
const (
	FieldID                  = "id"
	FieldTenantID            = "tenantId"
	FieldChapterID           = "chapterId"
	FieldFileName            = "fileName"
	FieldFilePath            = "filePath"
	FieldChapterTitle        = "chapterTitle"
	FieldChapterText         = "chapterText"
	FieldChapterFromPage     = "chapterFromPage"
	FieldChapterToPage       = "chapterToPage"
	FieldChapterTokenCount   = "chapterTokenCount"
	FieldSubTitle            = "subTitle"
	FieldSubText             = "subText"
	FieldSubFromPage         = "subFromPage"
	FieldSubToPage           = "subToPage"
	FieldSubTokenCount       = "subTokenCount"
	FieldDocumentTotalTokens = "documentTotalTokens"
	FieldCategory            = "category"
	FieldCombinedContent     = "combinedContent"
	FieldEmbeddingVector     = "embeddingVector"
	FieldCreatedAt           = "createdAt"
)

// AllFields lists every schema field in declaration order.
var AllFields = []string{
	FieldID, FieldTenantID, FieldChapterID, FieldFileName, FieldFilePath,
	FieldChapterTitle, FieldChapterText, FieldChapterFromPage, FieldChapterToPage, FieldChapterTokenCount,
	FieldSubTitle, FieldSubText, FieldSubFromPage, FieldSubToPage, FieldSubTokenCount,
	FieldDocumentTotalTokens, FieldCategory, FieldCombinedContent, FieldEmbeddingVector, FieldCreatedAt,
}

// Document is the exact payload stored in the index. Backends serialise it
// with the json tags (REST stores) or bson tags (MongoDB).
type Document struct {
	ID                  string    `json:"id" bson:"_id"`
	TenantID            string    `json:"tenantId" bson:"tenantId"`
	ChapterID           string    `json:"chapterId" bson:"chapterId"`
	FileName            string    `json:"fileName" bson:"fileName"`
	FilePath            string    `json:"filePath" bson:"filePath"`
	ChapterTitle        string    `json:"chapterTitle" bson:"chapterTitle"`
	ChapterText         string    `json:"chapterText" bson:"chapterText"`
	ChapterFromPage     int       `json:"chapterFromPage" bson:"chapterFromPage"`
	ChapterToPage       int       `json:"chapterToPage" bson:"chapterToPage"`
	ChapterTokenCount   int       `json:"chapterTokenCount" bson:"chapterTokenCount"`
	SubTitle            string    `json:"subTitle" bson:"subTitle"`
	SubText             string    `json:"subText" bson:"subText"`
	SubFromPage         int       `json:"subFromPage" bson:"subFromPage"`
	SubToPage           int       `json:"subToPage" bson:"subToPage"`
	SubTokenCount       int       `json:"subTokenCount" bson:"subTokenCount"`
	DocumentTotalTokens int       `json:"documentTotalTokens" bson:"documentTotalTokens"`
	Category            string    `json:"category" bson:"category"`
	CombinedContent     string    `json:"combinedContent" bson:"combinedContent"`
	EmbeddingVector     []float32 `json:"embeddingVector,omitempty" bson:"embeddingVector,omitempty"`
	CreatedAt           time.Time `json:"createdAt" bson:"createdAt"`
}

// Project returns a copy of doc keeping only the named fields; every other
// field is reset to its zero value. An empty field list keeps everything.
func Project(doc Document, fields []string) Document {
	if len(fields) == 0 {
		return doc
	}
	var out Document
	for _, f := range fields {
		switch f {
		case FieldID:
			out.ID = doc.ID
		case FieldTenantID:
			out.TenantID = doc.TenantID
		case FieldChapterID:
			out.ChapterID = doc.ChapterID
		case FieldFileName:
			out.FileName = doc.FileName
		case FieldFilePath:
			out.FilePath = doc.FilePath
		case FieldChapterTitle:
			out.ChapterTitle = doc.ChapterTitle
		case FieldChapterText:
			out.ChapterText = doc.ChapterText
		case FieldChapterFromPage:
			out.ChapterFromPage = doc.ChapterFromPage
		case FieldChapterToPage:
			out.ChapterToPage = doc.ChapterToPage
		case FieldChapterTokenCount:
			out.ChapterTokenCount = doc.ChapterTokenCount
		case FieldSubTitle:
			out.SubTitle = doc.SubTitle
		case FieldSubText:
			out.SubText = doc.SubText
		case FieldSubFromPage:
			out.SubFromPage = doc.SubFromPage
		case FieldSubToPage:
			out.SubToPage = doc.SubToPage
		case FieldSubTokenCount:
			out.SubTokenCount = doc.SubTokenCount
		case FieldDocumentTotalTokens:
			out.DocumentTotalTokens = doc.DocumentTotalTokens
		case FieldCategory:
			out.Category = doc.Category
		case FieldCombinedContent:
			out.CombinedContent = doc.CombinedContent
		case FieldEmbeddingVector:
			out.EmbeddingVector = doc.EmbeddingVector
		case FieldCreatedAt:
			out.CreatedAt = doc.CreatedAt
		}
	}
	return out
}

// StringField returns the value of a string-typed field, used by backends
// that evaluate filters in process.
func (d Document) StringField(name string) (string, bool) {
	switch name {
	case FieldID:
		return d.ID, true
	case FieldTenantID:
		return d.TenantID, true
	case FieldChapterID:
		return d.ChapterID, true
	case FieldFileName:
		return d.FileName, true
	case FieldFilePath:
		return d.FilePath, true
	case FieldChapterTitle:
		return d.ChapterTitle, true
	case FieldChapterText:
		return d.ChapterText, true
	case FieldSubTitle:
		return d.SubTitle, true
	case FieldSubText:
		return d.SubText, true
	case FieldCategory:
		return d.Category, true
	case FieldCombinedContent:
		return d.CombinedContent, true
	}
	return "", false
}

// IntField returns the value of an integer-typed field.
func (d Document) IntField(name string) (int, bool) {
	switch name {
	case FieldChapterFromPage:
		return d.ChapterFromPage, true
	case FieldChapterToPage:
		return d.ChapterToPage, true
	case FieldChapterTokenCount:
		return d.ChapterTokenCount, true
	case FieldSubFromPage:
		return d.SubFromPage, true
	case FieldSubToPage:
		return d.SubToPage, true
	case FieldSubTokenCount:
		return d.SubTokenCount, true
	case FieldDocumentTotalTokens:
		return d.DocumentTotalTokens, true
	}
	return 0, false
}
