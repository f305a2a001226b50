package searchindex

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterOData(t *testing.T) {
	tests := []struct {
		name   string
		filter *Filter
		want   string
	}{
		{"nil filter", nil, ""},
		{"single clause", Eq(FieldTenantID, "T1"), "tenantId eq 'T1'"},
		{"conjunction", Eq(FieldTenantID, "T1").And(FieldFileName, "F.pdf"), "tenantId eq 'T1' and fileName eq 'F.pdf'"},
		{"quote doubling", Eq(FieldFileName, "O'Brien's lease.pdf"), "fileName eq 'O''Brien''s lease.pdf'"},
		{"injection attempt", Eq(FieldFileName, "x' or tenantId ne '"), "fileName eq 'x'' or tenantId ne '''"},
		{"integer", Eq(FieldChapterFromPage, 3), "chapterFromPage eq 3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.OData())
		})
	}
}

func TestFilterMatches(t *testing.T) {
	doc := Document{ID: "1", TenantID: "T1", FileName: "F.pdf", ChapterFromPage: 4}

	assert.True(t, (*Filter)(nil).Matches(doc))
	assert.True(t, Eq(FieldTenantID, "T1").Matches(doc))
	assert.True(t, Eq(FieldTenantID, "T1").And(FieldFileName, "F.pdf").Matches(doc))
	assert.False(t, Eq(FieldTenantID, "T1").And(FieldFileName, "G.pdf").Matches(doc))
	assert.True(t, Eq(FieldChapterFromPage, 4).Matches(doc))
	assert.False(t, Eq("unknownField", "x").Matches(doc))
}

func TestFilterClausesAreCopied(t *testing.T) {
	f := Eq(FieldTenantID, "T1")
	clauses := f.Clauses()
	clauses[0].Value = "T2"
	assert.Equal(t, "tenantId eq 'T1'", f.OData())
}

func TestProjectKeepsOnlySelectedFields(t *testing.T) {
	doc := Document{ID: "1", TenantID: "T1", ChapterText: "long text", SubText: "more", ChapterToPage: 9}

	p := Project(doc, []string{FieldID, FieldChapterToPage})
	assert.Equal(t, "1", p.ID)
	assert.Equal(t, 9, p.ChapterToPage)
	assert.Empty(t, p.TenantID)
	assert.Empty(t, p.ChapterText)

	assert.Equal(t, doc, Project(doc, nil))
}

func TestFuseReciprocalRank(t *testing.T) {
	lexical := []Hit{{Document: Document{ID: "a"}}, {Document: Document{ID: "b"}}}
	vector := []Hit{{Document: Document{ID: "b"}}, {Document: Document{ID: "c"}}}

	fused := FuseReciprocalRank(60, lexical, vector)
	require.Len(t, fused, 3)
	assert.Equal(t, "b", fused[0].Document.ID)
	assert.InDelta(t, 1.0/62+1.0/61, fused[0].Score, 1e-12)
	assert.Equal(t, "a", fused[1].Document.ID)
	assert.Equal(t, "c", fused[2].Document.ID)
}

type pagingClient struct {
	Client
	docs  []Document
	calls int
}

func (p *pagingClient) Search(_ context.Context, req *SearchRequest) (*SearchPage, error) {
	p.calls++
	const pageSize = 3
	end := req.Skip + pageSize
	if end > req.Skip+req.Top {
		end = req.Skip + req.Top
	}
	if end > len(p.docs) {
		end = len(p.docs)
	}
	page := &SearchPage{HasMore: end < len(p.docs)}
	for _, d := range p.docs[req.Skip:end] {
		page.Hits = append(page.Hits, Hit{Document: d})
	}
	return page, nil
}

func TestSearchAllPagesUntilTop(t *testing.T) {
	c := &pagingClient{}
	for _, id := range []string{"1", "2", "3", "4", "5", "6", "7"} {
		c.docs = append(c.docs, Document{ID: id})
	}

	res, err := SearchAll(context.Background(), c, &SearchRequest{Top: 5})
	require.NoError(t, err)
	require.Len(t, res.Hits, 5)
	assert.Equal(t, "5", res.Hits[4].Document.ID)
	assert.Equal(t, 2, c.calls)

	c.calls = 0
	res, err = SearchAll(context.Background(), c, &SearchRequest{Top: 100})
	require.NoError(t, err)
	assert.Len(t, res.Hits, 7)
	assert.Equal(t, 3, c.calls)
}
