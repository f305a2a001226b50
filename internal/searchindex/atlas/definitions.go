package atlas

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson"

	"digital-twin-search/internal/searchindex"
)

// Atlas search index types.
const (
	indexTypeSearch = "search"
	indexTypeVector = "vectorSearch"
)

// luceneAnalyzer maps a store analyzer name ("es.microsoft") to the Atlas
// Search analyzer for the same language.
func luceneAnalyzer(name string) string {
	lang := strings.ToLower(name)
	if i := strings.IndexByte(lang, '.'); i > 0 {
		lang = lang[:i]
	}
	switch lang {
	case "es", "spanish":
		return "lucene.spanish"
	case "en", "english":
		return "lucene.english"
	case "fr", "french":
		return "lucene.french"
	case "pt", "portuguese":
		return "lucene.portuguese"
	case "keyword":
		return "lucene.keyword"
	}
	return "lucene.standard"
}

// fieldPath maps an index field name to its document path. The key is
// stored as _id.
func fieldPath(name string) string {
	if name == searchindex.FieldID {
		return "_id"
	}
	return name
}

// textIndexDefinition builds the Atlas Search (lexical) index. Searchable
// strings get the language analyzer; filterable strings are also indexed as
// tokens so the equals operator can match them exactly.
func textIndexDefinition(def *searchindex.IndexDefinition) bson.M {
	fields := bson.M{}
	for _, f := range def.Fields {
		if f.Key || f.IsVector() {
			continue
		}
		switch f.Type {
		case searchindex.TypeString:
			var types bson.A
			if f.Searchable {
				types = append(types, bson.M{"type": "string", "analyzer": luceneAnalyzer(f.Analyzer)})
			}
			if f.Filterable || f.Sortable || f.Facetable {
				types = append(types, bson.M{"type": "token"})
			}
			switch len(types) {
			case 0:
			case 1:
				fields[f.Name] = types[0]
			default:
				fields[f.Name] = types
			}
		case searchindex.TypeInt32, searchindex.TypeInt64:
			fields[f.Name] = bson.M{"type": "number"}
		case searchindex.TypeDateTimeOffset:
			fields[f.Name] = bson.M{"type": "date"}
		}
	}
	return bson.M{
		"mappings": bson.M{
			"dynamic": false,
			"fields":  fields,
		},
	}
}

// vectorIndexDefinition builds the Atlas Vector Search index: the vector
// field plus every filterable scalar as a pre-filter path. Atlas builds an
// HNSW graph; the similarity comes from the algorithm configuration.
func vectorIndexDefinition(def *searchindex.IndexDefinition) (bson.M, bool) {
	vf, ok := def.VectorField()
	if !ok {
		return nil, false
	}

	similarity := "cosine"
	if def.VectorSearch != nil {
		for _, p := range def.VectorSearch.Profiles {
			if p.Name != vf.VectorProfile {
				continue
			}
			for _, a := range def.VectorSearch.Algorithms {
				if a.Name == p.Algorithm && a.HNSWParameters != nil && a.HNSWParameters.Metric != "" {
					similarity = atlasSimilarity(a.HNSWParameters.Metric)
				}
			}
		}
	}

	fields := bson.A{bson.M{
		"type":          "vector",
		"path":          vf.Name,
		"numDimensions": vf.Dimensions,
		"similarity":    similarity,
	}}
	for _, f := range def.Fields {
		if f.Filterable && !f.Key && !f.IsVector() {
			fields = append(fields, bson.M{"type": "filter", "path": f.Name})
		}
	}
	return bson.M{"fields": fields}, true
}

func atlasSimilarity(metric string) string {
	switch strings.ToLower(metric) {
	case "euclidean":
		return "euclidean"
	case "dotproduct":
		return "dotProduct"
	}
	return "cosine"
}
