package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"digital-twin-search/internal/ai"
	"digital-twin-search/internal/config"
	"digital-twin-search/internal/logger"
	"digital-twin-search/internal/searchindex"
	"digital-twin-search/internal/searchindex/atlas"
	"digital-twin-search/internal/searchindex/azure"
	"digital-twin-search/internal/searchindex/local"
)

// Runtime owns the long-lived clients and the services built on them.
// Processes create one at startup and Close it on shutdown.
type Runtime struct {
	Config     *config.Config
	Store      searchindex.Client
	Embeddings *ai.EmbeddingGenerator
	Schema     *IndexSchemaManager
	Indexer    *ChapterIndexer
	Search     *ChapterSearch
	Deleter    *BatchDeleter

	mongo *mongo.Client
	redis *redis.Client
	log   *slog.Logger
}

// NewStore builds the search backend selected by cfg. Missing credentials
// yield a nil store, which the services treat as unavailable.
func NewStore(cfg *config.Config, mc *mongo.Client) (searchindex.Client, error) {
	switch cfg.SearchBackend {
	case config.BackendAzure:
		c, err := azure.New(azure.Options{
			Endpoint:   cfg.AzureSearchEndpoint,
			APIKey:     cfg.AzureSearchKey,
			APIVersion: cfg.AzureSearchAPIVersion,
			IndexName:  cfg.SearchIndexName,
			HTTPClient: &http.Client{Timeout: cfg.SearchTimeout},
		})
		if errors.Is(err, azure.ErrNotConfigured) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return c, nil
	case config.BackendAtlas:
		if mc == nil {
			return nil, nil
		}
		coll := mc.Database(cfg.DBName).Collection(cfg.ChaptersCollection)
		return atlas.New(coll, atlas.Options{
			TextIndexName:   cfg.AtlasSearchIndex,
			VectorIndexName: cfg.AtlasVectorIndex,
			SearchFields:    runtimeDefinition(cfg).SearchableFields(),
		}), nil
	case config.BackendLocal:
		return local.New(), nil
	}
	return nil, fmt.Errorf("unknown search backend %q", cfg.SearchBackend)
}

// runtimeDefinition is the chapter index definition selected by cfg.
func runtimeDefinition(cfg *config.Config) *searchindex.IndexDefinition {
	return ChapterIndexDefinition(cfg.SearchIndexName, cfg.VectorDimensions, cfg.SearchTextAnalyzer)
}

func NewRuntime(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	rt := &Runtime{Config: cfg, log: logger.With("runtime")}

	if cfg.RedisURL != "" {
		rdb, err := config.NewRedisClient(cfg)
		if err != nil {
			rt.log.Warn("Redis unavailable; embedding cache is process-local", "error", err)
		} else {
			rt.redis = rdb
		}
	}

	if cfg.SearchBackend == config.BackendAtlas && cfg.MongoURI != "" {
		mc, err := config.ConnectMongoDB(cfg)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.mongo = mc
	}

	store, err := NewStore(cfg, rt.mongo)
	if err != nil {
		rt.Close()
		return nil, err
	}
	if store == nil {
		rt.log.Warn("Search backend not configured; operations will report unavailable", "backend", cfg.SearchBackend)
	}
	rt.Store = store

	emb, err := ai.NewEmbeddingGeneratorFromConfig(ctx, cfg, rt.redis)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Embeddings = emb

	rt.Schema = NewIndexSchemaManager(store, runtimeDefinition(cfg), nil)
	rt.Indexer = NewChapterIndexer(store, emb, nil)
	rt.Search = NewChapterSearch(store, emb, nil)
	rt.Deleter = NewBatchDeleter(store, nil)
	return rt, nil
}

// Close releases the clients owned by the runtime.
func (rt *Runtime) Close() {
	if rt.Embeddings != nil {
		if err := rt.Embeddings.Close(); err != nil {
			rt.log.Warn("Failed to close embeddings provider", "error", err)
		}
	}
	if rt.redis != nil {
		rt.redis.Close()
	}
	if rt.mongo != nil {
		if err := rt.mongo.Disconnect(context.Background()); err != nil {
			rt.log.Warn("Failed to disconnect MongoDB", "error", err)
		}
	}
}
