package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"digital-twin-search/internal/searchindex"
	"digital-twin-search/models"
)

func seed(t *testing.T, ix *ChapterIndexer, slices ...models.ChapterSlice) {
	t.Helper()
	out := ix.IndexSlices(context.Background(), slices)
	require.True(t, out.Success, out.Errors)
}

func scopedSlices() []models.ChapterSlice {
	mk := func(id, tenant, file, title, text string) models.ChapterSlice {
		return models.ChapterSlice{
			ID: id, TenantID: tenant, ChapterID: id, FileName: file,
			ChapterTitle: title, ChapterText: text,
			ChapterFromPage: 1, ChapterToPage: 2, ChapterTokenCount: 10,
		}
	}
	return []models.ChapterSlice{
		mk("t1-f-1", "T1", "F.pdf", "1. Parties", "The landlord and the tenant."),
		mk("t1-f-2", "T1", "F.pdf", "2. Rent", "Rent is paid monthly."),
		mk("t1-g-1", "T1", "G.pdf", "1. Insurance", "The policy covers fire."),
		mk("t2-f-1", "T2", "F.pdf", "1. Rent", "Rent of another tenant."),
	}
}

func TestAnswerQuestionEndToEnd(t *testing.T) {
	store := newLocalStore(t)
	gen := newGenerator(&bagOfWords{})
	seed(t, NewChapterIndexer(store, gen, quietLog),
		models.ChapterSlice{
			ID: "lease-1", TenantID: "twin-42", ChapterID: "c1", FileName: "Lease.pdf",
			ChapterTitle: "1. Terms", ChapterText: "The tenant agrees that rent is due monthly.",
			ChapterFromPage: 1, ChapterToPage: 2, ChapterTokenCount: 12,
		},
		models.ChapterSlice{
			ID: "policy-1", TenantID: "twin-42", ChapterID: "p1", FileName: "Policy.pdf",
			ChapterTitle: "1. Coverage", ChapterText: "Fire and flood damage are covered.",
		},
	)

	results := NewChapterSearch(store, gen, quietLog).AnswerQuestion(context.Background(), "when is rent due?", "twin-42", "")
	require.NotEmpty(t, results)
	assert.Equal(t, "Lease.pdf", results[0].FileName)
	assert.Contains(t, results[0].ChapterText, "rent is due monthly")
}

func TestAnswerQuestionBuildsHybridRequest(t *testing.T) {
	store := &recordingStore{Client: newLocalStore(t)}
	gen := newGenerator(&bagOfWords{})
	var slices []models.ChapterSlice
	for i := 0; i < 8; i++ {
		slices = append(slices, models.ChapterSlice{
			ID: fmt.Sprintf("r-%d", i), TenantID: "T1", ChapterID: fmt.Sprintf("c%d", i), FileName: "F.pdf",
			ChapterTitle: "Rent", ChapterText: fmt.Sprintf("Rent clause number %d.", i),
		})
	}
	seed(t, NewChapterIndexer(store, gen, quietLog), slices...)

	results := NewChapterSearch(store, gen, quietLog).AnswerQuestion(context.Background(), "rent clause", "T1", "F.pdf")
	assert.Len(t, results, AnswerTop)

	require.NotEmpty(t, store.searches)
	req := store.searches[0]
	assert.Equal(t, "rent clause", req.Text)
	assert.Equal(t, searchindex.QueryTypeSemantic, req.QueryType)
	assert.Equal(t, SemanticConfigName, req.SemanticConfiguration)
	assert.True(t, req.Captions)
	assert.True(t, req.Answers)
	assert.Equal(t, "tenantId eq 'T1' and fileName eq 'F.pdf'", req.Filter.OData())
	assert.Contains(t, req.Select, searchindex.FieldChapterText)
	assert.NotContains(t, req.Select, searchindex.FieldEmbeddingVector)
	require.Len(t, req.VectorQueries, 1)
	assert.Equal(t, AnswerTop, req.VectorQueries[0].K)
	assert.Equal(t, searchindex.FieldEmbeddingVector, req.VectorQueries[0].Field)
	assert.Len(t, req.VectorQueries[0].Vector, testDims)
}

func TestAnswerQuestionWithoutEmbeddings(t *testing.T) {
	store := &recordingStore{Client: newLocalStore(t)}
	seed(t, NewChapterIndexer(store, nil, quietLog), scopedSlices()...)

	results := NewChapterSearch(store, nil, quietLog).AnswerQuestion(context.Background(), "rent", "T1", "")
	require.Len(t, results, 1)
	assert.Equal(t, "t1-f-2", results[0].ID)
	assert.Empty(t, store.searches[0].VectorQueries)
}

func TestAnswerQuestionRejectsMissingInput(t *testing.T) {
	store := &recordingStore{Client: newLocalStore(t)}
	cs := NewChapterSearch(store, nil, quietLog)
	ctx := context.Background()

	assert.Empty(t, cs.AnswerQuestion(ctx, "", "T1", ""))
	assert.Empty(t, cs.AnswerQuestion(ctx, "rent", " ", ""))
	assert.Empty(t, store.searches)

	out := cs.SearchChapters(ctx, SearchParams{TenantID: "T1", Mode: SearchModeFull})
	assert.ErrorIs(t, out.Err, ErrMissingField)

	out = NewChapterSearch(nil, nil, quietLog).SearchChapters(ctx, SearchParams{TenantID: "T1", Query: "x"})
	assert.ErrorIs(t, out.Err, ErrServiceUnavailable)
}

func TestAnswerQuestionRejectsWildcard(t *testing.T) {
	store := &recordingStore{Client: newLocalStore(t)}
	seed(t, NewChapterIndexer(store, nil, quietLog), scopedSlices()...)
	cs := NewChapterSearch(store, nil, quietLog)
	ctx := context.Background()

	assert.Empty(t, cs.AnswerQuestion(ctx, "*", "T1", ""))
	assert.Empty(t, cs.AnswerQuestion(ctx, " * ", "T1", "F.pdf"))
	assert.Empty(t, store.searches)

	out := cs.SearchChapters(ctx, SearchParams{TenantID: "T1", Query: "*", Mode: SearchModeFull})
	assert.ErrorIs(t, out.Err, ErrMissingField)

	// Listings still treat the wildcard as match-all.
	assert.Len(t, cs.ListDocuments(ctx, "T1", "", "*"), 2)
}

func TestSearchFailureIsSwallowedPubliclyButReported(t *testing.T) {
	store := &recordingStore{Client: newLocalStore(t), failSearch: errInjected}
	cs := NewChapterSearch(store, nil, quietLog)
	ctx := context.Background()

	results := cs.AnswerQuestion(ctx, "rent", "T1", "")
	assert.NotNil(t, results)
	assert.Empty(t, results)
	assert.Empty(t, cs.ListDocuments(ctx, "T1", "", ""))

	out := cs.SearchChapters(ctx, SearchParams{TenantID: "T1", Query: "rent"})
	assert.ErrorIs(t, out.Err, ErrSearchFailed)
	assert.ErrorIs(t, out.Err, errInjected)

	store.failSearch = nil
	out = cs.SearchChapters(ctx, SearchParams{TenantID: "T1", Query: "rent"})
	assert.NoError(t, out.Err)
	assert.Empty(t, out.Hits)
}

func TestListDocumentsFilterScoping(t *testing.T) {
	store := newLocalStore(t)
	seed(t, NewChapterIndexer(store, nil, quietLog), scopedSlices()...)
	cs := NewChapterSearch(store, nil, quietLog)
	ctx := context.Background()

	docs := cs.ListDocuments(ctx, "T1", "F.pdf", "")
	require.Len(t, docs, 1)
	assert.Equal(t, "F.pdf", docs[0].FileName)
	assert.Equal(t, "T1", docs[0].TenantID)
	assert.Equal(t, 2, docs[0].TotalChapters)
	for _, c := range docs[0].Chapters {
		assert.Contains(t, []string{"t1-f-1", "t1-f-2"}, c.ID)
	}

	for _, fileName := range []string{"", "*"} {
		docs = cs.ListDocuments(ctx, "T1", fileName, "")
		require.Len(t, docs, 2, "fileName %q", fileName)
		assert.Equal(t, "F.pdf", docs[0].FileName)
		assert.Equal(t, "G.pdf", docs[1].FileName)
	}

	docs = cs.ListDocuments(ctx, "T2", "", "")
	require.Len(t, docs, 1)
	assert.Equal(t, 1, docs[0].TotalChapters)
}

func TestListDocumentsIsMetadataOnly(t *testing.T) {
	store := &recordingStore{Client: newLocalStore(t)}
	seed(t, NewChapterIndexer(store, nil, quietLog), scopedSlices()...)
	cs := NewChapterSearch(store, nil, quietLog)

	out := cs.SearchChapters(context.Background(), SearchParams{TenantID: "T1", Mode: SearchModeMetadata, Top: DefaultListTop})
	require.NoError(t, out.Err)
	require.Len(t, out.Hits, 3)
	for _, h := range out.Hits {
		assert.Empty(t, h.Slice.ChapterText)
		assert.Empty(t, h.Slice.CombinedContent)
		assert.NotEmpty(t, h.Slice.ChapterTitle)
	}

	req := store.searches[0]
	for _, f := range []string{searchindex.FieldChapterText, searchindex.FieldSubText, searchindex.FieldCombinedContent, searchindex.FieldEmbeddingVector} {
		assert.NotContains(t, req.Select, f)
	}
	assert.Empty(t, req.Text)
	assert.False(t, req.Captions)
}

func TestListDocumentsWithQuery(t *testing.T) {
	store := newLocalStore(t)
	seed(t, NewChapterIndexer(store, nil, quietLog), scopedSlices()...)

	docs := NewChapterSearch(store, nil, quietLog).ListDocuments(context.Background(), "T1", "", "insurance")
	require.Len(t, docs, 1)
	assert.Equal(t, "G.pdf", docs[0].FileName)
}

func TestListDocumentMetadata(t *testing.T) {
	store := newLocalStore(t)
	seed(t, NewChapterIndexer(store, nil, quietLog), scopedSlices()...)

	meta := NewChapterSearch(store, nil, quietLog).ListDocumentMetadata(context.Background(), "T1", "")
	require.Len(t, meta, 2)
	assert.Equal(t, "F.pdf", meta[0].FileName)
	assert.Equal(t, 2, meta[0].TotalChapters)
	assert.Equal(t, 2, meta[0].TotalSlices)
	assert.Equal(t, 20, meta[0].TotalTokens)
}
