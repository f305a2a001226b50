package searchindex

import (
	"context"
	"sort"
)

// DefaultPageSize is used when a request does not set Top.
const DefaultPageSize = 50

// SearchAll pages through a query until req.Top hits are collected or the
// store reports no more results. Answers are taken from the first page.
func SearchAll(ctx context.Context, c Client, req *SearchRequest) (*SearchPage, error) {
	limit := req.Top
	if limit <= 0 {
		limit = DefaultPageSize
	}

	out := &SearchPage{}
	page := *req
	for len(out.Hits) < limit {
		page.Top = limit - len(out.Hits)
		res, err := c.Search(ctx, &page)
		if err != nil {
			return nil, err
		}
		if page.Skip == req.Skip {
			out.Answers = res.Answers
			out.Count = res.Count
		}
		out.Hits = append(out.Hits, res.Hits...)
		out.HasMore = res.HasMore
		if !res.HasMore || len(res.Hits) == 0 {
			break
		}
		page.Skip += len(res.Hits)
	}
	if len(out.Hits) > limit {
		out.Hits = out.Hits[:limit]
		out.HasMore = true
	}
	return out, nil
}

// RRFConstant is the rank offset of reciprocal rank fusion.
const RRFConstant = 60

// FuseReciprocalRank merges ranked hit lists by reciprocal rank fusion. A
// document's fused score is the sum of 1/(k+rank) over every list it appears
// in. The first occurrence of a document provides its Hit payload.
func FuseReciprocalRank(k int, lists ...[]Hit) []Hit {
	if k <= 0 {
		k = RRFConstant
	}
	scores := make(map[string]float64)
	hits := make(map[string]Hit)
	var order []string
	for _, list := range lists {
		for rank, h := range list {
			id := h.Document.ID
			scores[id] += 1.0 / float64(k+rank+1)
			if _, seen := hits[id]; !seen {
				hits[id] = h
				order = append(order, id)
			} else if len(h.Captions) > 0 && len(hits[id].Captions) == 0 {
				merged := hits[id]
				merged.Captions = h.Captions
				hits[id] = merged
			}
		}
	}

	fused := make([]Hit, 0, len(order))
	for _, id := range order {
		h := hits[id]
		h.Score = scores[id]
		fused = append(fused, h)
	}
	sort.SliceStable(fused, func(i, j int) bool {
		return fused[i].Score > fused[j].Score
	})
	return fused
}
