package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Search backends.
const (
	BackendAzure = "azure"
	BackendAtlas = "atlas"
	BackendLocal = "local"
)

// Embedding providers.
const (
	ProviderAzureOpenAI = "azure-openai"
	ProviderOpenAI      = "openai"
	ProviderGoogle      = "google"
	ProviderNone        = "none"
)

type Config struct {
	// Search store
	SearchBackend         string `yaml:"search_backend"`
	AzureSearchEndpoint   string `yaml:"azure_search_endpoint"`
	AzureSearchKey        string `yaml:"azure_search_key"`
	AzureSearchAPIVersion string `yaml:"azure_search_api_version"`
	SearchIndexName       string `yaml:"search_index_name"`
	SearchTextAnalyzer    string `yaml:"search_text_analyzer"`
	SearchTimeout         time.Duration

	// MongoDB Atlas Search/Vector Search
	MongoURI           string `yaml:"mongo_uri"`
	DBName             string `yaml:"db_name"`
	ChaptersCollection string `yaml:"chapters_collection"`
	AtlasSearchIndex   string `yaml:"atlas_search_index"`
	AtlasVectorIndex   string `yaml:"atlas_vector_index"`

	// Embeddings configuration
	EmbeddingsProvider         string `yaml:"embeddings_provider"`
	AzureOpenAIEndpoint        string `yaml:"azure_openai_endpoint"`
	AzureOpenAIKey             string `yaml:"azure_openai_key"`
	AzureOpenAIAPIVersion      string `yaml:"azure_openai_api_version"`
	AzureOpenAIEmbeddingDeploy string `yaml:"azure_openai_embedding_deployment"`
	OpenAIAPIKey               string `yaml:"openai_api_key"`
	OpenAIEmbeddingsModel      string `yaml:"openai_embeddings_model"`
	GeminiAPIKey               string `yaml:"gemini_api_key"`
	GoogleEmbeddingsModel      string `yaml:"google_embeddings_model"`
	VectorDimensions           int    `yaml:"vector_dimensions"`
	EmbeddingMaxChars          int    `yaml:"embedding_max_chars"`
	EmbeddingRPM               int    `yaml:"embedding_rpm"`
	EmbeddingTimeout           time.Duration
	EmbeddingCacheSize         int `yaml:"embedding_cache_size"`
	EmbeddingCacheTTL          time.Duration

	// Redis Configuration
	RedisURL      string `yaml:"redis_url"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	// Logging / telemetry
	LogLevel     string `yaml:"log_level"`
	OTelEnabled  bool   `yaml:"otel_enabled"`
	OTelEndpoint string `yaml:"otel_endpoint"`
	ServiceName  string `yaml:"service_name"`

	// Worker
	WorkerConcurrency  int    `yaml:"worker_concurrency"`
	IndexReconcileCron string `yaml:"index_reconcile_cron"`
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		SearchBackend:         getEnv("SEARCH_BACKEND", BackendLocal),
		AzureSearchEndpoint:   getEnv("AZURE_SEARCH_ENDPOINT", ""),
		AzureSearchKey:        getEnv("AZURE_SEARCH_KEY", ""),
		AzureSearchAPIVersion: getEnv("AZURE_SEARCH_API_VERSION", "2024-07-01"),
		SearchIndexName:       getEnv("SEARCH_INDEX_NAME", "nostructured-index"),
		SearchTextAnalyzer:    getEnv("SEARCH_TEXT_ANALYZER", "es.microsoft"),
		SearchTimeout:         time.Duration(getEnvInt("SEARCH_TIMEOUT_SECONDS", 30)) * time.Second,

		MongoURI:           getEnv("MONGO_URI", "mongodb://localhost:27017/digital_twin"),
		DBName:             getEnv("DB_NAME", "digital_twin"),
		ChaptersCollection: getEnv("MONGODB_CHAPTERS_COLLECTION", "document_chapters"),
		AtlasSearchIndex:   getEnv("MONGODB_SEARCH_INDEX", "document_chapters_text"),
		AtlasVectorIndex:   getEnv("MONGODB_VECTOR_INDEX", "document_chapters_vector"),

		EmbeddingsProvider:         getEnv("EMBEDDINGS_PROVIDER", ProviderAzureOpenAI),
		AzureOpenAIEndpoint:        getEnv("AZURE_OPENAI_ENDPOINT", ""),
		AzureOpenAIKey:             getEnv("AZURE_OPENAI_KEY", ""),
		AzureOpenAIAPIVersion:      getEnv("AZURE_OPENAI_API_VERSION", "2024-06-01"),
		AzureOpenAIEmbeddingDeploy: getEnv("AZURE_OPENAI_EMBEDDING_DEPLOYMENT", "text-embedding-3-large"),
		OpenAIAPIKey:               getEnv("OPENAI_API_KEY", ""),
		OpenAIEmbeddingsModel:      getEnv("OPENAI_EMBEDDINGS_MODEL", "text-embedding-3-large"),
		GeminiAPIKey:               getEnv("GEMINI_API_KEY", ""),
		GoogleEmbeddingsModel:      getEnv("GOOGLE_EMBEDDINGS_MODEL", "text-embedding-004"),
		VectorDimensions:           getEnvInt("VECTOR_DIM", 3072),
		EmbeddingMaxChars:          getEnvInt("EMBEDDING_MAX_CHARS", 8000),
		EmbeddingRPM:               getEnvInt("EMBEDDING_RPM", 600),
		EmbeddingTimeout:           time.Duration(getEnvInt("EMBEDDING_TIMEOUT_SECONDS", 30)) * time.Second,
		EmbeddingCacheSize:         getEnvInt("EMBEDDING_CACHE_SIZE", 2048),
		EmbeddingCacheTTL:          time.Duration(getEnvInt("EMBEDDING_CACHE_TTL_HOURS", 24)) * time.Hour,

		// Redis Configuration
		RedisURL:      getEnv("REDIS_URL", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		LogLevel:     getEnv("LOG_LEVEL", "info"),
		OTelEnabled:  getEnvBool("OTEL_ENABLED", false),
		OTelEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		ServiceName:  getEnv("OTEL_SERVICE_NAME", "digital-twin-search"),

		WorkerConcurrency:  getEnvInt("WORKER_CONCURRENCY", 10),
		IndexReconcileCron: getEnv("INDEX_RECONCILE_CRON", "0 */6 * * *"),
	}

	if path := getEnv("CONFIG_FILE", ""); path != "" {
		if err := cfg.ApplyFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyFile overlays the non-empty values of a YAML file onto cfg.
func (c *Config) ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error reading config file %s: %w", path, err)
	}
	var overlay Config
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("error parsing config file %s: %w", path, err)
	}
	c.merge(&overlay)
	return nil
}

func (c *Config) merge(o *Config) {
	setString(&c.SearchBackend, o.SearchBackend)
	setString(&c.AzureSearchEndpoint, o.AzureSearchEndpoint)
	setString(&c.AzureSearchKey, o.AzureSearchKey)
	setString(&c.AzureSearchAPIVersion, o.AzureSearchAPIVersion)
	setString(&c.SearchIndexName, o.SearchIndexName)
	setString(&c.SearchTextAnalyzer, o.SearchTextAnalyzer)
	setString(&c.MongoURI, o.MongoURI)
	setString(&c.DBName, o.DBName)
	setString(&c.ChaptersCollection, o.ChaptersCollection)
	setString(&c.AtlasSearchIndex, o.AtlasSearchIndex)
	setString(&c.AtlasVectorIndex, o.AtlasVectorIndex)
	setString(&c.EmbeddingsProvider, o.EmbeddingsProvider)
	setString(&c.AzureOpenAIEndpoint, o.AzureOpenAIEndpoint)
	setString(&c.AzureOpenAIKey, o.AzureOpenAIKey)
	setString(&c.AzureOpenAIAPIVersion, o.AzureOpenAIAPIVersion)
	setString(&c.AzureOpenAIEmbeddingDeploy, o.AzureOpenAIEmbeddingDeploy)
	setString(&c.OpenAIAPIKey, o.OpenAIAPIKey)
	setString(&c.OpenAIEmbeddingsModel, o.OpenAIEmbeddingsModel)
	setString(&c.GeminiAPIKey, o.GeminiAPIKey)
	setString(&c.GoogleEmbeddingsModel, o.GoogleEmbeddingsModel)
	setString(&c.RedisURL, o.RedisURL)
	setString(&c.RedisPassword, o.RedisPassword)
	setString(&c.LogLevel, o.LogLevel)
	setString(&c.OTelEndpoint, o.OTelEndpoint)
	setString(&c.ServiceName, o.ServiceName)
	setString(&c.IndexReconcileCron, o.IndexReconcileCron)
	setInt(&c.VectorDimensions, o.VectorDimensions)
	setInt(&c.EmbeddingMaxChars, o.EmbeddingMaxChars)
	setInt(&c.EmbeddingRPM, o.EmbeddingRPM)
	setInt(&c.EmbeddingCacheSize, o.EmbeddingCacheSize)
	setInt(&c.RedisDB, o.RedisDB)
	setInt(&c.WorkerConcurrency, o.WorkerConcurrency)
	if o.OTelEnabled {
		c.OTelEnabled = true
	}
}

// Validate checks startup invariants. Missing endpoints or keys are not
// errors: the affected component reports itself unavailable instead.
func (c *Config) Validate() error {
	var errs []error
	switch c.SearchBackend {
	case BackendAzure, BackendAtlas, BackendLocal:
	default:
		errs = append(errs, fmt.Errorf("SEARCH_BACKEND %q is not one of azure, atlas, local", c.SearchBackend))
	}
	switch c.EmbeddingsProvider {
	case ProviderAzureOpenAI, ProviderOpenAI, ProviderGoogle, ProviderNone:
	default:
		errs = append(errs, fmt.Errorf("unknown embeddings provider: %s", c.EmbeddingsProvider))
	}
	// The vector field of an existing index is bound to this value.
	if c.VectorDimensions <= 0 {
		errs = append(errs, fmt.Errorf("VECTOR_DIM must be positive, got %d", c.VectorDimensions))
	}
	if c.EmbeddingMaxChars <= 0 {
		errs = append(errs, fmt.Errorf("EMBEDDING_MAX_CHARS must be positive, got %d", c.EmbeddingMaxChars))
	}
	if strings.TrimSpace(c.SearchIndexName) == "" {
		errs = append(errs, errors.New("SEARCH_INDEX_NAME is required"))
	}
	return errors.Join(errs...)
}

// SearchConfigured reports whether the selected backend has what it needs to
// connect.
func (c *Config) SearchConfigured() bool {
	switch c.SearchBackend {
	case BackendAzure:
		return c.AzureSearchEndpoint != "" && c.AzureSearchKey != ""
	case BackendAtlas:
		return c.MongoURI != ""
	case BackendLocal:
		return true
	}
	return false
}

// EmbeddingsConfigured reports whether the selected embeddings provider has
// credentials.
func (c *Config) EmbeddingsConfigured() bool {
	switch c.EmbeddingsProvider {
	case ProviderAzureOpenAI:
		return c.AzureOpenAIEndpoint != "" && c.AzureOpenAIKey != "" && c.AzureOpenAIEmbeddingDeploy != ""
	case ProviderOpenAI:
		return c.OpenAIAPIKey != ""
	case ProviderGoogle:
		return c.GeminiAPIKey != ""
	}
	return false
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
