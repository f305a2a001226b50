package services

import (
	"context"
	"errors"
	"hash/fnv"
	"io"
	"log/slog"
	"math"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"digital-twin-search/internal/ai"
	"digital-twin-search/internal/searchindex"
	"digital-twin-search/internal/searchindex/local"
)

const testDims = 8

var quietLog = slog.New(slog.NewTextHandler(io.Discard, nil))

// bagOfWords embeds text as hashed word counts, so texts sharing words are
// close under cosine similarity.
type bagOfWords struct {
	mu     sync.Mutex
	err    error
	inputs []string
}

func (b *bagOfWords) Name() string { return "bag-of-words" }

func (b *bagOfWords) Embed(_ context.Context, text string, dims int) ([]float32, error) {
	b.mu.Lock()
	b.inputs = append(b.inputs, text)
	err := b.err
	b.mu.Unlock()
	if err != nil {
		return nil, err
	}

	vec := make([]float32, dims)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(strings.Trim(w, ".,:?!")))
		vec[h.Sum32()%uint32(dims)]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v * v)
	}
	if norm > 0 {
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / math.Sqrt(norm))
		}
	}
	return vec, nil
}

func (b *bagOfWords) Close() error { return nil }

func (b *bagOfWords) lastInput() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.inputs) == 0 {
		return ""
	}
	return b.inputs[len(b.inputs)-1]
}

func newGenerator(p ai.EmbeddingProvider) *ai.EmbeddingGenerator {
	return ai.NewEmbeddingGenerator(p, ai.GeneratorOptions{
		Model:             "test",
		Dimensions:        testDims,
		RequestsPerMinute: 600000,
		Logger:            quietLog,
	})
}

func newLocalStore(t *testing.T) *local.Index {
	t.Helper()
	store := local.New()
	def := ChapterIndexDefinition("chapters-test", testDims, "en.lucene")
	require.NoError(t, store.CreateOrUpdateIndex(context.Background(), def))
	return store
}

var errInjected = errors.New("injected failure")

// recordingStore wraps a store, records calls and injects failures.
type recordingStore struct {
	searchindex.Client

	mu           sync.Mutex
	writes       [][]searchindex.Document
	deletes      [][]string
	searches     []searchindex.SearchRequest
	failDeleteOn int
	failSearch   error
	rejectKeys   map[string]string

	// dropResults removes that many results from the end of each write
	// response; reverseResults answers writes in reverse order.
	dropResults    int
	reverseResults bool
}

func (r *recordingStore) MergeOrUpload(ctx context.Context, docs []searchindex.Document) ([]searchindex.IndexingResult, error) {
	r.mu.Lock()
	r.writes = append(r.writes, append([]searchindex.Document(nil), docs...))
	r.mu.Unlock()

	res, err := r.Client.MergeOrUpload(ctx, docs)
	if err != nil {
		return nil, err
	}
	for i := range res {
		if msg, ok := r.rejectKeys[res[i].Key]; ok {
			res[i].Succeeded = false
			res[i].StatusCode = 400
			res[i].ErrorMessage = msg
		}
	}
	if r.reverseResults {
		slices.Reverse(res)
	}
	res = res[:max(len(res)-r.dropResults, 0)]
	return res, nil
}

func (r *recordingStore) Delete(ctx context.Context, keys []string) ([]searchindex.IndexingResult, error) {
	r.mu.Lock()
	r.deletes = append(r.deletes, append([]string(nil), keys...))
	n := len(r.deletes)
	r.mu.Unlock()

	if n == r.failDeleteOn {
		return nil, errInjected
	}
	return r.Client.Delete(ctx, keys)
}

func (r *recordingStore) Search(ctx context.Context, req *searchindex.SearchRequest) (*searchindex.SearchPage, error) {
	r.mu.Lock()
	r.searches = append(r.searches, *req)
	err := r.failSearch
	r.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return r.Client.Search(ctx, req)
}
