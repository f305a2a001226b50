package searchindex

// FieldType names follow the Entity Data Model types used by Azure AI Search;
// other backends translate them.
type FieldType string

const (
	TypeString         FieldType = "Edm.String"
	TypeInt32          FieldType = "Edm.Int32"
	TypeInt64          FieldType = "Edm.Int64"
	TypeDateTimeOffset FieldType = "Edm.DateTimeOffset"
	TypeSingleVector   FieldType = "Collection(Edm.Single)"
)

// Field describes one index field and its capabilities.
type Field struct {
	Name          string    `json:"name"`
	Type          FieldType `json:"type"`
	Key           bool      `json:"key,omitempty"`
	Searchable    bool      `json:"searchable"`
	Filterable    bool      `json:"filterable"`
	Sortable      bool      `json:"sortable"`
	Facetable     bool      `json:"facetable"`
	Retrievable   bool      `json:"retrievable"`
	Analyzer      string    `json:"analyzer,omitempty"`
	Dimensions    int       `json:"dimensions,omitempty"`
	VectorProfile string    `json:"vectorSearchProfile,omitempty"`
}

// IsVector reports whether the field stores embeddings.
func (f Field) IsVector() bool { return f.Type == TypeSingleVector }

// HNSWParameters tunes the graph-based approximate nearest neighbour search.
type HNSWParameters struct {
	M              int    `json:"m"`
	EfConstruction int    `json:"efConstruction"`
	EfSearch       int    `json:"efSearch"`
	Metric         string `json:"metric"`
}

// VectorAlgorithm is a named algorithm configuration.
type VectorAlgorithm struct {
	Name           string          `json:"name"`
	Kind           string          `json:"kind"`
	HNSWParameters *HNSWParameters `json:"hnswParameters,omitempty"`
}

// VectorProfile binds vector fields to an algorithm configuration.
type VectorProfile struct {
	Name      string `json:"name"`
	Algorithm string `json:"algorithm"`
}

// VectorSearch groups algorithm configurations and profiles.
type VectorSearch struct {
	Algorithms []VectorAlgorithm `json:"algorithms"`
	Profiles   []VectorProfile   `json:"profiles"`
}

// SemanticField references a field by name inside a semantic configuration.
type SemanticField struct {
	FieldName string `json:"fieldName"`
}

// PrioritizedFields are the inputs of semantic ranking, in priority order.
type PrioritizedFields struct {
	TitleField    *SemanticField  `json:"titleField,omitempty"`
	ContentFields []SemanticField `json:"prioritizedContentFields"`
	KeywordFields []SemanticField `json:"prioritizedKeywordsFields"`
}

// SemanticConfiguration is a named semantic ranking setup.
type SemanticConfiguration struct {
	Name              string            `json:"name"`
	PrioritizedFields PrioritizedFields `json:"prioritizedFields"`
}

// SemanticSettings holds the semantic configurations of an index.
type SemanticSettings struct {
	Configurations []SemanticConfiguration `json:"configurations"`
}

// IndexDefinition is the full schema of a search index.
type IndexDefinition struct {
	Name         string            `json:"name"`
	Fields       []Field           `json:"fields"`
	VectorSearch *VectorSearch     `json:"vectorSearch,omitempty"`
	Semantic     *SemanticSettings `json:"semantic,omitempty"`
}

// Field returns the named field definition.
func (d *IndexDefinition) Field(name string) (Field, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// KeyField returns the name of the key field, or "" when none is declared.
func (d *IndexDefinition) KeyField() string {
	for _, f := range d.Fields {
		if f.Key {
			return f.Name
		}
	}
	return ""
}

// SearchableFields returns the names of full-text searchable string fields.
func (d *IndexDefinition) SearchableFields() []string {
	var out []string
	for _, f := range d.Fields {
		if f.Searchable && f.Type == TypeString {
			out = append(out, f.Name)
		}
	}
	return out
}

// VectorField returns the first vector field of the definition.
func (d *IndexDefinition) VectorField() (Field, bool) {
	for _, f := range d.Fields {
		if f.IsVector() {
			return f, true
		}
	}
	return Field{}, false
}

// SemanticConfig returns the named semantic configuration.
func (d *IndexDefinition) SemanticConfig(name string) (SemanticConfiguration, bool) {
	if d.Semantic == nil {
		return SemanticConfiguration{}, false
	}
	for _, c := range d.Semantic.Configurations {
		if c.Name == name {
			return c, true
		}
	}
	return SemanticConfiguration{}, false
}
