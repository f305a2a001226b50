package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"digital-twin-search/internal/searchindex"
	"digital-twin-search/internal/searchindex/local"
)

func TestChapterIndexDefinition(t *testing.T) {
	def := ChapterIndexDefinition("", 3072, "")
	assert.Equal(t, DefaultIndexName, def.Name)
	assert.Equal(t, searchindex.FieldID, def.KeyField())

	for _, name := range searchindex.AllFields {
		_, ok := def.Field(name)
		assert.True(t, ok, "field %s missing", name)
	}

	vf, ok := def.VectorField()
	require.True(t, ok)
	assert.Equal(t, 3072, vf.Dimensions)
	assert.Equal(t, VectorProfileName, vf.VectorProfile)
	require.Len(t, def.VectorSearch.Profiles, 1)
	assert.Equal(t, VectorAlgorithmName, def.VectorSearch.Profiles[0].Algorithm)
	assert.Equal(t, "hnsw", def.VectorSearch.Algorithms[0].Kind)

	text, _ := def.Field(searchindex.FieldChapterText)
	assert.True(t, text.Searchable)
	assert.False(t, text.Filterable)
	assert.Equal(t, DefaultTextAnalyzer, text.Analyzer)

	tenant, _ := def.Field(searchindex.FieldTenantID)
	assert.True(t, tenant.Filterable)
	assert.True(t, tenant.Facetable)
	assert.False(t, tenant.Searchable)

	fileName, _ := def.Field(searchindex.FieldFileName)
	assert.True(t, fileName.Filterable)
	assert.True(t, fileName.Searchable)

	sem, ok := def.SemanticConfig(SemanticConfigName)
	require.True(t, ok)
	assert.Equal(t, searchindex.FieldSubTitle, sem.PrioritizedFields.TitleField.FieldName)
	var content, keywords []string
	for _, f := range sem.PrioritizedFields.ContentFields {
		content = append(content, f.FieldName)
	}
	for _, f := range sem.PrioritizedFields.KeywordFields {
		keywords = append(keywords, f.FieldName)
	}
	assert.Equal(t, []string{
		searchindex.FieldSubText, searchindex.FieldChapterText,
		searchindex.FieldCombinedContent, searchindex.FieldChapterTitle,
	}, content)
	assert.Equal(t, []string{searchindex.FieldChapterID, searchindex.FieldTenantID, searchindex.FieldFileName}, keywords)
}

type failingSchemaStore struct {
	searchindex.Client
}

func (failingSchemaStore) CreateOrUpdateIndex(context.Context, *searchindex.IndexDefinition) error {
	return errors.New("quota of indexes exceeded")
}

func TestCreateOrUpdateIndex(t *testing.T) {
	ctx := context.Background()
	def := ChapterIndexDefinition("chapters", testDims, "en.lucene")

	store := local.New()
	m := NewIndexSchemaManager(store, def, quietLog)
	first := m.CreateOrUpdateIndex(ctx)
	assert.True(t, first.Success, first.Error)
	second := m.CreateOrUpdateIndex(ctx)
	assert.True(t, second.Success, second.Error)

	res := NewIndexSchemaManager(failingSchemaStore{}, def, quietLog).CreateOrUpdateIndex(ctx)
	assert.False(t, res.Success)
	assert.Equal(t, "quota of indexes exceeded", res.Error)

	res = NewIndexSchemaManager(nil, def, quietLog).CreateOrUpdateIndex(ctx)
	assert.False(t, res.Success)
	assert.Equal(t, ErrServiceUnavailable.Error(), res.Error)
}
