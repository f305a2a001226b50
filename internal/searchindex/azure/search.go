package azure

import (
	"context"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"digital-twin-search/internal/searchindex"
	"digital-twin-search/internal/telemetry"
)

type vectorQuery struct {
	Kind   string    `json:"kind"`
	Vector []float32 `json:"vector"`
	Fields string    `json:"fields"`
	K      int       `json:"k"`
}

type searchBody struct {
	Search                string        `json:"search"`
	Filter                string        `json:"filter,omitempty"`
	Select                string        `json:"select,omitempty"`
	Top                   int           `json:"top,omitempty"`
	Skip                  int           `json:"skip,omitempty"`
	Count                 bool          `json:"count,omitempty"`
	QueryType             string        `json:"queryType,omitempty"`
	SemanticConfiguration string        `json:"semanticConfiguration,omitempty"`
	Captions              string        `json:"captions,omitempty"`
	Answers               string        `json:"answers,omitempty"`
	VectorQueries         []vectorQuery `json:"vectorQueries,omitempty"`
}

type searchResult struct {
	Score         float64  `json:"@search.score"`
	RerankerScore *float64 `json:"@search.rerankerScore"`
	Captions      []struct {
		Text       string `json:"text"`
		Highlights string `json:"highlights"`
	} `json:"@search.captions"`
	searchindex.Document
}

type searchResponse struct {
	Count   *int64 `json:"@odata.count"`
	Answers []struct {
		Key   string  `json:"key"`
		Text  string  `json:"text"`
		Score float64 `json:"score"`
	} `json:"@search.answers"`
	NextPage map[string]any `json:"@search.nextPageParameters"`
	Value    []searchResult `json:"value"`
}

// buildSearchBody translates a neutral request into the REST body. The
// filter is rendered once by the Filter builder, which owns quote escaping.
func buildSearchBody(req *searchindex.SearchRequest) searchBody {
	body := searchBody{
		Search: req.Text,
		Filter: req.Filter.OData(),
		Select: strings.Join(req.Select, ","),
		Top:    req.Top,
		Skip:   req.Skip,
		Count:  req.IncludeTotalCount,
	}
	if searchindex.IsMatchAll(body.Search) {
		body.Search = "*"
	}
	if req.QueryType == searchindex.QueryTypeSemantic {
		body.QueryType = string(searchindex.QueryTypeSemantic)
		body.SemanticConfiguration = req.SemanticConfiguration
		if req.Captions {
			body.Captions = "extractive"
		}
		if req.Answers {
			body.Answers = "extractive|count-3"
		}
	}
	for _, vq := range req.VectorQueries {
		body.VectorQueries = append(body.VectorQueries, vectorQuery{
			Kind:   "vector",
			Vector: vq.Vector,
			Fields: vq.Field,
			K:      vq.K,
		})
	}
	return body
}

// Search executes one page of a query. Fusion of lexical, semantic and
// vector signals is done by the service.
func (c *Client) Search(ctx context.Context, req *searchindex.SearchRequest) (*searchindex.SearchPage, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "azure.search")
	defer span.End()

	body := buildSearchBody(req)
	span.SetAttributes(
		attribute.String("search.filter", body.Filter),
		attribute.Int("search.top", body.Top),
		attribute.Int("search.skip", body.Skip),
		attribute.Int("search.vector_queries", len(body.VectorQueries)),
		attribute.String("search.query_type", body.QueryType),
	)

	var resp searchResponse
	if _, err := c.do(ctx, http.MethodPost, c.docsPath("search"), body, &resp); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search failed")
		return nil, err
	}

	page := &searchindex.SearchPage{
		HasMore: resp.NextPage != nil || (req.Top > 0 && len(resp.Value) == req.Top),
	}
	if resp.Count != nil {
		page.Count = *resp.Count
	}
	for _, a := range resp.Answers {
		page.Answers = append(page.Answers, searchindex.Answer{Key: a.Key, Text: a.Text, Score: a.Score})
	}
	for _, v := range resp.Value {
		hit := searchindex.Hit{Document: v.Document, Score: v.Score}
		if v.RerankerScore != nil {
			hit.RerankerScore = *v.RerankerScore
		}
		for _, cp := range v.Captions {
			hit.Captions = append(hit.Captions, searchindex.Caption{Text: cp.Text, Highlights: cp.Highlights})
		}
		page.Hits = append(page.Hits, hit)
	}
	span.SetAttributes(attribute.Int("search.hits", len(page.Hits)))
	return page, nil
}
