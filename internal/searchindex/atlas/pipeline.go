package atlas

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"digital-twin-search/internal/searchindex"
)

// scoreField receives the $meta relevance score of a pipeline stage.
const scoreField = "_score"

// equalsFilters renders filter clauses as Atlas Search equals operators.
func equalsFilters(f *searchindex.Filter) bson.A {
	var out bson.A
	for _, c := range f.Clauses() {
		out = append(out, bson.M{"equals": bson.M{"path": fieldPath(c.Field), "value": c.Value}})
	}
	return out
}

// matchFilter renders filter clauses as an MQL equality document, used by
// $vectorSearch pre-filters and plain finds.
func matchFilter(f *searchindex.Filter) bson.M {
	out := bson.M{}
	clauses := f.Clauses()
	if len(clauses) == 1 {
		c := clauses[0]
		out[fieldPath(c.Field)] = bson.M{"$eq": c.Value}
		return out
	}
	if len(clauses) > 1 {
		and := make(bson.A, 0, len(clauses))
		for _, c := range clauses {
			and = append(and, bson.M{fieldPath(c.Field): bson.M{"$eq": c.Value}})
		}
		out["$and"] = and
	}
	return out
}

// searchPipeline is the lexical leg: a compound $search with the question in
// must and the equality clauses in filter.
func searchPipeline(indexName string, fields []string, req *searchindex.SearchRequest, limit int) mongo.Pipeline {
	compound := bson.M{
		"must": bson.A{bson.M{"text": bson.M{"query": req.Text, "path": fields}}},
	}
	if filters := equalsFilters(req.Filter); len(filters) > 0 {
		compound["filter"] = filters
	}
	return mongo.Pipeline{
		{{Key: "$search", Value: bson.M{"index": indexName, "compound": compound}}},
		{{Key: "$limit", Value: limit}},
		{{Key: "$set", Value: bson.M{scoreField: bson.M{"$meta": "searchScore"}}}},
	}
}

// vectorPipeline is one kNN leg over the HNSW vector index.
func vectorPipeline(indexName string, vq searchindex.VectorQuery, filter *searchindex.Filter) mongo.Pipeline {
	k := vq.K
	if k <= 0 {
		k = 50
	}
	stage := bson.M{
		"index":         indexName,
		"path":          vq.Field,
		"queryVector":   vq.Vector,
		"numCandidates": k * 10,
		"limit":         k,
	}
	if !filter.Empty() {
		stage["filter"] = matchFilter(filter)
	}
	return mongo.Pipeline{
		{{Key: "$vectorSearch", Value: stage}},
		{{Key: "$set", Value: bson.M{scoreField: bson.M{"$meta": "vectorSearchScore"}}}},
	}
}

// projection maps a Select list onto a find/aggregate projection.
func projection(fields []string) bson.M {
	if len(fields) == 0 {
		return nil
	}
	out := bson.M{}
	for _, f := range fields {
		out[fieldPath(f)] = 1
	}
	return out
}
