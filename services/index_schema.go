package services

import (
	"context"
	"log/slog"

	"digital-twin-search/internal/logger"
	"digital-twin-search/internal/searchindex"
	"digital-twin-search/models"
)

// Names shared by the schema, the indexer and the query engine.
const (
	DefaultIndexName    = "nostructured-index"
	VectorProfileName   = "chapter-vector-profile"
	VectorAlgorithmName = "chapter-hnsw"
	SemanticConfigName  = "chapter-semantic-config"
	DefaultTextAnalyzer = "es.microsoft"
)

// ChapterIndexDefinition is the chapter index schema. dims is the fixed
// embedding length; changing it requires rebuilding the index.
func ChapterIndexDefinition(name string, dims int, analyzer string) *searchindex.IndexDefinition {
	if name == "" {
		name = DefaultIndexName
	}
	if analyzer == "" {
		analyzer = DefaultTextAnalyzer
	}

	keyword := func(n string, t searchindex.FieldType) searchindex.Field {
		return searchindex.Field{Name: n, Type: t, Filterable: true, Sortable: true, Facetable: true, Retrievable: true}
	}
	text := func(n string) searchindex.Field {
		return searchindex.Field{Name: n, Type: searchindex.TypeString, Searchable: true, Retrievable: true, Analyzer: analyzer}
	}

	fileName := keyword(searchindex.FieldFileName, searchindex.TypeString)
	fileName.Searchable = true

	return &searchindex.IndexDefinition{
		Name: name,
		Fields: []searchindex.Field{
			{Name: searchindex.FieldID, Type: searchindex.TypeString, Key: true, Filterable: true, Retrievable: true},
			keyword(searchindex.FieldTenantID, searchindex.TypeString),
			keyword(searchindex.FieldChapterID, searchindex.TypeString),
			fileName,
			{Name: searchindex.FieldFilePath, Type: searchindex.TypeString, Retrievable: true},
			text(searchindex.FieldChapterTitle),
			text(searchindex.FieldChapterText),
			keyword(searchindex.FieldChapterFromPage, searchindex.TypeInt32),
			keyword(searchindex.FieldChapterToPage, searchindex.TypeInt32),
			keyword(searchindex.FieldChapterTokenCount, searchindex.TypeInt32),
			text(searchindex.FieldSubTitle),
			text(searchindex.FieldSubText),
			keyword(searchindex.FieldSubFromPage, searchindex.TypeInt32),
			keyword(searchindex.FieldSubToPage, searchindex.TypeInt32),
			keyword(searchindex.FieldSubTokenCount, searchindex.TypeInt32),
			keyword(searchindex.FieldDocumentTotalTokens, searchindex.TypeInt32),
			keyword(searchindex.FieldCategory, searchindex.TypeString),
			text(searchindex.FieldCombinedContent),
			{
				Name:          searchindex.FieldEmbeddingVector,
				Type:          searchindex.TypeSingleVector,
				Searchable:    true,
				Retrievable:   true,
				Dimensions:    dims,
				VectorProfile: VectorProfileName,
			},
			keyword(searchindex.FieldCreatedAt, searchindex.TypeDateTimeOffset),
		},
		VectorSearch: &searchindex.VectorSearch{
			Algorithms: []searchindex.VectorAlgorithm{{
				Name: VectorAlgorithmName,
				Kind: "hnsw",
				HNSWParameters: &searchindex.HNSWParameters{
					M:              4,
					EfConstruction: 400,
					EfSearch:       500,
					Metric:         "cosine",
				},
			}},
			Profiles: []searchindex.VectorProfile{{Name: VectorProfileName, Algorithm: VectorAlgorithmName}},
		},
		Semantic: &searchindex.SemanticSettings{
			Configurations: []searchindex.SemanticConfiguration{{
				Name: SemanticConfigName,
				PrioritizedFields: searchindex.PrioritizedFields{
					TitleField: &searchindex.SemanticField{FieldName: searchindex.FieldSubTitle},
					ContentFields: []searchindex.SemanticField{
						{FieldName: searchindex.FieldSubText},
						{FieldName: searchindex.FieldChapterText},
						{FieldName: searchindex.FieldCombinedContent},
						{FieldName: searchindex.FieldChapterTitle},
					},
					KeywordFields: []searchindex.SemanticField{
						{FieldName: searchindex.FieldChapterID},
						{FieldName: searchindex.FieldTenantID},
						{FieldName: searchindex.FieldFileName},
					},
				},
			}},
		},
	}
}

// IndexSchemaManager creates and reconciles the chapter index.
type IndexSchemaManager struct {
	store      searchindex.Client
	definition *searchindex.IndexDefinition
	log        *slog.Logger
}

func NewIndexSchemaManager(store searchindex.Client, def *searchindex.IndexDefinition, log *slog.Logger) *IndexSchemaManager {
	if log == nil {
		log = logger.With("index_schema")
	}
	return &IndexSchemaManager{store: store, definition: def, log: log}
}

// Definition returns the schema this manager applies.
func (m *IndexSchemaManager) Definition() *searchindex.IndexDefinition {
	return m.definition
}

// CreateOrUpdateIndex applies the schema. It is safe to call repeatedly and
// reports failures in the result instead of returning an error.
func (m *IndexSchemaManager) CreateOrUpdateIndex(ctx context.Context) models.OperationResult {
	if m.store == nil || m.definition == nil {
		return models.OperationResult{Success: false, Error: ErrServiceUnavailable.Error()}
	}

	if err := m.store.CreateOrUpdateIndex(ctx, m.definition); err != nil {
		m.log.Error("Failed to create or update search index", "index", m.definition.Name, "error", err)
		return models.OperationResult{Success: false, Error: err.Error()}
	}

	m.log.Info("Search index ready", "index", m.definition.Name, "fields", len(m.definition.Fields))
	return models.OperationResult{Success: true, Message: "index " + m.definition.Name + " created or updated"}
}
