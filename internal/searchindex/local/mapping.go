package local

import (
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/analysis/lang/es"
	"github.com/blevesearch/bleve/v2/mapping"

	"digital-twin-search/internal/searchindex"
)

// exactSuffix names the keyword twin of a field that is both searchable and
// filterable.
const exactSuffix = "__exact"

// analyzerFor maps a store analyzer name ("es.microsoft", "en.lucene", ...)
// to a bleve analyzer.
func analyzerFor(name string) string {
	lang := strings.ToLower(name)
	if i := strings.IndexByte(lang, '.'); i > 0 {
		lang = lang[:i]
	}
	switch lang {
	case "es", "spanish":
		return es.AnalyzerName
	case "en", "english":
		return en.AnalyzerName
	case "keyword":
		return keyword.Name
	}
	return standard.Name
}

// filterField is the bleve field a filter clause on name must target.
func filterField(def *searchindex.IndexDefinition, name string) string {
	if f, ok := def.Field(name); ok && f.Type == searchindex.TypeString && f.Searchable {
		return name + exactSuffix
	}
	return name
}

// buildMapping translates an index definition into a bleve mapping. Vector
// fields are not indexed by bleve; kNN runs over the stored documents.
func buildMapping(def *searchindex.IndexDefinition) *mapping.IndexMappingImpl {
	docMapping := bleve.NewDocumentMapping()
	defaultAnalyzer := standard.Name

	for _, f := range def.Fields {
		switch f.Type {
		case searchindex.TypeString:
			if f.Searchable {
				text := bleve.NewTextFieldMapping()
				text.Analyzer = analyzerFor(f.Analyzer)
				text.Store = false
				text.IncludeTermVectors = false
				docMapping.AddFieldMappingsAt(f.Name, text)
				if f.Analyzer != "" {
					defaultAnalyzer = text.Analyzer
				}
			}
			if f.Filterable || f.Key || !f.Searchable {
				kw := bleve.NewKeywordFieldMapping()
				kw.Store = false
				if f.Searchable {
					kw.Name = f.Name + exactSuffix
				}
				docMapping.AddFieldMappingsAt(f.Name, kw)
			}
		case searchindex.TypeInt32, searchindex.TypeInt64:
			num := bleve.NewNumericFieldMapping()
			num.Store = false
			docMapping.AddFieldMappingsAt(f.Name, num)
		case searchindex.TypeDateTimeOffset:
			dt := bleve.NewDateTimeFieldMapping()
			dt.Store = false
			docMapping.AddFieldMappingsAt(f.Name, dt)
		}
	}

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = defaultAnalyzer
	return indexMapping
}

// bleveDocument is the payload handed to bleve for one stored document.
func bleveDocument(doc searchindex.Document) map[string]interface{} {
	return map[string]interface{}{
		searchindex.FieldID:                  doc.ID,
		searchindex.FieldTenantID:            doc.TenantID,
		searchindex.FieldChapterID:           doc.ChapterID,
		searchindex.FieldFileName:            doc.FileName,
		searchindex.FieldFilePath:            doc.FilePath,
		searchindex.FieldChapterTitle:        doc.ChapterTitle,
		searchindex.FieldChapterText:         doc.ChapterText,
		searchindex.FieldChapterFromPage:     float64(doc.ChapterFromPage),
		searchindex.FieldChapterToPage:       float64(doc.ChapterToPage),
		searchindex.FieldChapterTokenCount:   float64(doc.ChapterTokenCount),
		searchindex.FieldSubTitle:            doc.SubTitle,
		searchindex.FieldSubText:             doc.SubText,
		searchindex.FieldSubFromPage:         float64(doc.SubFromPage),
		searchindex.FieldSubToPage:           float64(doc.SubToPage),
		searchindex.FieldSubTokenCount:       float64(doc.SubTokenCount),
		searchindex.FieldDocumentTotalTokens: float64(doc.DocumentTotalTokens),
		searchindex.FieldCategory:            doc.Category,
		searchindex.FieldCombinedContent:     doc.CombinedContent,
		searchindex.FieldCreatedAt:           doc.CreatedAt,
	}
}
