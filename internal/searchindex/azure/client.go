// Package azure is the Azure AI Search backend. It talks to the data-plane
// REST API directly: index definitions, document batches and searches.
package azure

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"digital-twin-search/internal/logger"
	"digital-twin-search/internal/searchindex"
	"digital-twin-search/internal/telemetry"
)

// DefaultAPIVersion is the data-plane API version requests are made with.
const DefaultAPIVersion = "2024-07-01"

// ErrNotConfigured is returned by New when endpoint or key is missing.
var ErrNotConfigured = errors.New("azure search endpoint and key are required")

// Error is a non-success response from the service.
type Error struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("azure search: %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("azure search: %d: %s", e.StatusCode, e.Message)
}

// Is maps a 404 onto searchindex.ErrIndexNotFound.
func (e *Error) Is(target error) bool {
	return target == searchindex.ErrIndexNotFound && e.StatusCode == http.StatusNotFound
}

type Options struct {
	Endpoint   string
	APIKey     string
	APIVersion string
	IndexName  string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client implements searchindex.Client over the Azure AI Search REST API.
type Client struct {
	endpoint   string
	apiKey     string
	apiVersion string
	index      string
	http       *http.Client
	log        *slog.Logger
}

var _ searchindex.Client = (*Client)(nil)

func New(opts Options) (*Client, error) {
	if opts.Endpoint == "" || opts.APIKey == "" {
		return nil, ErrNotConfigured
	}
	if opts.IndexName == "" {
		return nil, errors.New("azure search index name is required")
	}
	if opts.APIVersion == "" {
		opts.APIVersion = DefaultAPIVersion
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.Logger == nil {
		opts.Logger = logger.With("search.azure")
	}
	return &Client{
		endpoint:   strings.TrimRight(opts.Endpoint, "/"),
		apiKey:     opts.APIKey,
		apiVersion: opts.APIVersion,
		index:      opts.IndexName,
		http:       opts.HTTPClient,
		log:        opts.Logger,
	}, nil
}

func (c *Client) url(path string) string {
	return c.endpoint + path + "?api-version=" + url.QueryEscape(c.apiVersion)
}

// do sends body as JSON and decodes a 2xx response into out (if non-nil).
func (c *Client) do(ctx context.Context, method, path string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("api-key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("azure search request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(data))}
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(data, &envelope) == nil && envelope.Error.Message != "" {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		// 207 is a success status, so only true failures reach here.
		return resp.StatusCode, apiErr
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// CreateOrUpdateIndex PUTs the full index definition.
func (c *Client) CreateOrUpdateIndex(ctx context.Context, def *searchindex.IndexDefinition) error {
	ctx, span := telemetry.Tracer().Start(ctx, "azure.create_or_update_index")
	defer span.End()
	span.SetAttributes(attribute.String("search.index", def.Name))

	status, err := c.do(ctx, http.MethodPut, "/indexes/"+url.PathEscape(def.Name), def, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create index failed")
		return err
	}
	c.log.Info("Index definition applied", "index", def.Name, "status", status)
	return nil
}

type indexAction struct {
	Action string `json:"@search.action"`
	searchindex.Document
}

type indexResponse struct {
	Value []struct {
		Key          string `json:"key"`
		Status       bool   `json:"status"`
		ErrorMessage string `json:"errorMessage"`
		StatusCode   int    `json:"statusCode"`
	} `json:"value"`
}

func (r indexResponse) results() []searchindex.IndexingResult {
	out := make([]searchindex.IndexingResult, 0, len(r.Value))
	for _, v := range r.Value {
		out = append(out, searchindex.IndexingResult{
			Key:          v.Key,
			Succeeded:    v.Status,
			ErrorMessage: v.ErrorMessage,
			StatusCode:   v.StatusCode,
		})
	}
	return out
}

// MergeOrUpload posts one document batch with the mergeOrUpload action. A 207
// response carries per-document failures in the results.
func (c *Client) MergeOrUpload(ctx context.Context, docs []searchindex.Document) ([]searchindex.IndexingResult, error) {
	if len(docs) == 0 {
		return nil, searchindex.ErrEmptyBatch
	}
	if len(docs) > searchindex.MaxBatchSize {
		return nil, fmt.Errorf("batch of %d documents exceeds limit of %d", len(docs), searchindex.MaxBatchSize)
	}

	ctx, span := telemetry.Tracer().Start(ctx, "azure.merge_or_upload")
	defer span.End()
	span.SetAttributes(attribute.Int("search.batch_size", len(docs)))

	actions := make([]indexAction, len(docs))
	for i, d := range docs {
		actions[i] = indexAction{Action: "mergeOrUpload", Document: d}
	}

	var resp indexResponse
	if _, err := c.do(ctx, http.MethodPost, c.docsPath("index"), map[string]any{"value": actions}, &resp); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "index batch failed")
		return nil, err
	}
	return resp.results(), nil
}

// Delete posts one batch of delete actions keyed by id.
func (c *Client) Delete(ctx context.Context, keys []string) ([]searchindex.IndexingResult, error) {
	if len(keys) == 0 {
		return nil, searchindex.ErrEmptyBatch
	}
	if len(keys) > searchindex.MaxBatchSize {
		return nil, fmt.Errorf("batch of %d keys exceeds limit of %d", len(keys), searchindex.MaxBatchSize)
	}

	ctx, span := telemetry.Tracer().Start(ctx, "azure.delete")
	defer span.End()
	span.SetAttributes(attribute.Int("search.batch_size", len(keys)))

	actions := make([]map[string]string, len(keys))
	for i, k := range keys {
		actions[i] = map[string]string{"@search.action": "delete", searchindex.FieldID: k}
	}

	var resp indexResponse
	if _, err := c.do(ctx, http.MethodPost, c.docsPath("index"), map[string]any{"value": actions}, &resp); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete batch failed")
		return nil, err
	}
	return resp.results(), nil
}

func (c *Client) docsPath(op string) string {
	return "/indexes/" + url.PathEscape(c.index) + "/docs/" + op
}
