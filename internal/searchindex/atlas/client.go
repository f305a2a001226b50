// Package atlas is the MongoDB Atlas backend: documents live in a regular
// collection, lexical retrieval goes through an Atlas Search index and kNN
// through an Atlas Vector Search index.
package atlas

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"digital-twin-search/internal/logger"
	"digital-twin-search/internal/searchindex"
	"digital-twin-search/internal/telemetry"
)

type Options struct {
	TextIndexName   string
	VectorIndexName string

	// SearchFields are the paths queried by $search, normally the
	// searchable fields of the index definition. Defaults to combinedContent.
	SearchFields []string
	Logger       *slog.Logger
}

// Client implements searchindex.Client on one collection.
type Client struct {
	coll        *mongo.Collection
	textIndex   string
	vectorIndex string
	fields      []string
	log         *slog.Logger
}

var _ searchindex.Client = (*Client)(nil)

func New(coll *mongo.Collection, opts Options) *Client {
	if opts.TextIndexName == "" {
		opts.TextIndexName = "default"
	}
	if opts.VectorIndexName == "" {
		opts.VectorIndexName = "vector_index"
	}
	if len(opts.SearchFields) == 0 {
		opts.SearchFields = []string{searchindex.FieldCombinedContent}
	}
	if opts.Logger == nil {
		opts.Logger = logger.With("search.atlas")
	}
	return &Client{
		coll:        coll,
		textIndex:   opts.TextIndexName,
		vectorIndex: opts.VectorIndexName,
		fields:      append([]string(nil), opts.SearchFields...),
		log:         opts.Logger,
	}
}

// CreateOrUpdateIndex creates or updates both Atlas search indexes. Atlas
// builds them asynchronously; queries may return nothing until they are ready.
func (c *Client) CreateOrUpdateIndex(ctx context.Context, def *searchindex.IndexDefinition) error {
	ctx, span := telemetry.Tracer().Start(ctx, "atlas.create_or_update_index")
	defer span.End()

	if err := c.ensureSearchIndex(ctx, c.textIndex, indexTypeSearch, textIndexDefinition(def)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "text index")
		return err
	}
	if vdef, ok := vectorIndexDefinition(def); ok {
		if err := c.ensureSearchIndex(ctx, c.vectorIndex, indexTypeVector, vdef); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "vector index")
			return err
		}
	}
	return nil
}

func (c *Client) ensureSearchIndex(ctx context.Context, name, typ string, definition bson.M) error {
	view := c.coll.SearchIndexes()

	cursor, err := view.List(ctx, options.SearchIndexes().SetName(name))
	if err != nil {
		return fmt.Errorf("failed to list search indexes: %w", err)
	}
	exists := cursor.Next(ctx)
	cursor.Close(ctx)

	if exists {
		if err := view.UpdateOne(ctx, name, definition); err != nil {
			return fmt.Errorf("failed to update search index %s: %w", name, err)
		}
		c.log.Info("Search index updated", "index", name, "type", typ)
		return nil
	}

	_, err = view.CreateOne(ctx, mongo.SearchIndexModel{
		Definition: definition,
		Options:    options.SearchIndexes().SetName(name).SetType(typ),
	})
	if err != nil {
		return fmt.Errorf("failed to create search index %s: %w", name, err)
	}
	c.log.Info("Search index created", "index", name, "type", typ)
	return nil
}

// setDocument is the $set payload of an upsert. A missing vector is left out
// so the stored one survives, matching merge semantics.
func setDocument(doc searchindex.Document) (bson.M, error) {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var out bson.M
	if err := bson.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	delete(out, "_id")
	return out, nil
}

// MergeOrUpload upserts documents with an unordered bulk write so one bad
// document does not stop the rest.
func (c *Client) MergeOrUpload(ctx context.Context, docs []searchindex.Document) ([]searchindex.IndexingResult, error) {
	if len(docs) == 0 {
		return nil, searchindex.ErrEmptyBatch
	}

	ctx, span := telemetry.Tracer().Start(ctx, "atlas.merge_or_upload")
	defer span.End()
	span.SetAttributes(attribute.Int("search.batch_size", len(docs)))

	results := make([]searchindex.IndexingResult, len(docs))
	models := make([]mongo.WriteModel, 0, len(docs))
	modelIndex := make([]int, 0, len(docs))
	for i, d := range docs {
		results[i].Key = d.ID
		if d.ID == "" {
			results[i].StatusCode = http.StatusBadRequest
			results[i].ErrorMessage = "document key is required"
			continue
		}
		set, err := setDocument(d)
		if err != nil {
			results[i].StatusCode = http.StatusBadRequest
			results[i].ErrorMessage = err.Error()
			continue
		}
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": d.ID}).
			SetUpdate(bson.M{"$set": set}).
			SetUpsert(true))
		modelIndex = append(modelIndex, i)
	}
	if len(models) == 0 {
		return results, nil
	}

	failed := map[int]string{}
	_, err := c.coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if err != nil {
		var bwe mongo.BulkWriteException
		if !errors.As(err, &bwe) || len(bwe.WriteErrors) == 0 {
			span.RecordError(err)
			span.SetStatus(codes.Error, "bulk write failed")
			return nil, fmt.Errorf("bulk write failed: %w", err)
		}
		for _, we := range bwe.WriteErrors {
			failed[we.Index] = we.Message
		}
	}

	for mi, di := range modelIndex {
		if msg, ok := failed[mi]; ok {
			results[di].StatusCode = http.StatusInternalServerError
			results[di].ErrorMessage = msg
			continue
		}
		results[di].Succeeded = true
		results[di].StatusCode = http.StatusOK
	}
	return results, nil
}

// Delete removes documents by _id in one statement.
func (c *Client) Delete(ctx context.Context, keys []string) ([]searchindex.IndexingResult, error) {
	if len(keys) == 0 {
		return nil, searchindex.ErrEmptyBatch
	}

	ctx, span := telemetry.Tracer().Start(ctx, "atlas.delete")
	defer span.End()

	res, err := c.coll.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": keys}})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
		return nil, fmt.Errorf("delete failed: %w", err)
	}
	span.SetAttributes(attribute.Int64("search.deleted", res.DeletedCount))

	results := make([]searchindex.IndexingResult, len(keys))
	for i, k := range keys {
		results[i] = searchindex.IndexingResult{Key: k, Succeeded: true, StatusCode: http.StatusOK}
	}
	return results, nil
}

type scoredDocument struct {
	searchindex.Document `bson:",inline"`
	Score                float64 `bson:"_score"`
}

func (c *Client) aggregate(ctx context.Context, pipeline mongo.Pipeline) ([]searchindex.Hit, error) {
	cursor, err := c.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []scoredDocument
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	hits := make([]searchindex.Hit, len(rows))
	for i, r := range rows {
		hits[i] = searchindex.Hit{Document: r.Document, Score: r.Score}
	}
	return hits, nil
}

// Search runs the lexical and vector legs as separate aggregations and fuses
// them by reciprocal rank. Filter-only requests use a plain find.
func (c *Client) Search(ctx context.Context, req *searchindex.SearchRequest) (*searchindex.SearchPage, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "atlas.search")
	defer span.End()

	top := req.Top
	if top <= 0 {
		top = searchindex.DefaultPageSize
	}
	hasText := !searchindex.IsMatchAll(req.Text)

	if !hasText && len(req.VectorQueries) == 0 {
		return c.find(ctx, req, top)
	}

	var legs [][]searchindex.Hit
	if hasText {
		hits, err := c.aggregate(ctx, searchPipeline(c.textIndex, c.fields, req, req.Skip+top+1))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "$search failed")
			return nil, fmt.Errorf("$search failed: %w", err)
		}
		legs = append(legs, hits)
	}
	for _, vq := range req.VectorQueries {
		hits, err := c.aggregate(ctx, vectorPipeline(c.vectorIndex, vq, req.Filter))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "$vectorSearch failed")
			return nil, fmt.Errorf("$vectorSearch failed: %w", err)
		}
		legs = append(legs, hits)
	}

	ranked := legs[0]
	if len(legs) > 1 {
		ranked = searchindex.FuseReciprocalRank(searchindex.RRFConstant, legs...)
	}

	page := &searchindex.SearchPage{}
	if req.IncludeTotalCount {
		page.Count = int64(len(ranked))
	}
	start := min(req.Skip, len(ranked))
	end := min(start+top, len(ranked))
	page.HasMore = end < len(ranked)
	for _, h := range ranked[start:end] {
		h.Document = searchindex.Project(h.Document, req.Select)
		page.Hits = append(page.Hits, h)
	}
	span.SetAttributes(attribute.Int("search.hits", len(page.Hits)))
	return page, nil
}

func (c *Client) find(ctx context.Context, req *searchindex.SearchRequest, top int) (*searchindex.SearchPage, error) {
	filter := matchFilter(req.Filter)
	opts := options.Find().
		SetSort(bson.D{{Key: "fileName", Value: 1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(req.Skip)).
		SetLimit(int64(top + 1))
	if p := projection(req.Select); p != nil {
		opts.SetProjection(p)
	}

	cursor, err := c.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find failed: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []searchindex.Document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode documents: %w", err)
	}

	page := &searchindex.SearchPage{HasMore: len(docs) > top}
	if page.HasMore {
		docs = docs[:top]
	}
	for _, d := range docs {
		page.Hits = append(page.Hits, searchindex.Hit{Document: d, Score: 1})
	}
	if req.IncludeTotalCount {
		n, err := c.coll.CountDocuments(ctx, filter)
		if err != nil {
			return nil, fmt.Errorf("count failed: %w", err)
		}
		page.Count = n
	}
	return page, nil
}
