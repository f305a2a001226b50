package ai

import (
	"log/slog"
	"strings"

	"digital-twin-search/internal/config"
)

// modelDimensions describes the output size of a known embedding model.
type modelDimensions struct {
	// max is the native (largest) output size.
	max       int
	// reducible models honour a smaller requested size.
	reducible bool
}

var knownModels = map[string]map[string]modelDimensions{
	config.ProviderGoogle: {
		"embedding-001":        {max: 768},
		"text-embedding-004":   {max: 768},
		"gemini-embedding-001": {max: 3072},
	},
	config.ProviderOpenAI: {
		"text-embedding-3-large": {max: 3072, reducible: true},
		"text-embedding-3-small": {max: 1536, reducible: true},
		"text-embedding-ada-002": {max: 1536},
	},
}

// SupportsDimensions reports whether model can produce vectors of dims
// entries. known is false for models missing from the table; Azure
// deployments are named by the operator and are never known.
func SupportsDimensions(provider, model string, dims int) (ok, known bool) {
	models, found := knownModels[provider]
	if !found {
		return true, false
	}
	md, found := models[strings.TrimPrefix(model, "models/")]
	if !found {
		return true, false
	}
	if md.reducible {
		return dims > 0 && dims <= md.max, true
	}
	return dims == md.max, true
}

// checkModelDimensions warns when the configured model cannot produce
// VECTOR_DIM sized vectors, since every vector it returns would then be
// discarded.
func checkModelDimensions(cfg *config.Config, model string, log *slog.Logger) bool {
	ok, known := SupportsDimensions(cfg.EmbeddingsProvider, model, cfg.VectorDimensions)
	if known && !ok {
		log.Warn("Embedding model cannot produce the configured vector size; vectors will be dropped",
			"provider", cfg.EmbeddingsProvider,
			"model", model,
			"vector_dim", cfg.VectorDimensions)
	}
	return ok
}
