package embcache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/simproj/internal/db"
	"github.com/kailas-cloud/simproj/internal/domain"
)

// fakeEmbedder returns vec for every text and bills tokensPerText each.
type fakeEmbedder struct {
	vec           []float32
	tokensPerText int
	err           error
	short         bool

	embedCalls int
	batches    [][]string
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	f.embedCalls++
	if f.err != nil {
		return domain.EmbeddingResult{}, f.err
	}
	return domain.EmbeddingResult{Embedding: f.vec, PromptTokens: f.tokensPerText, TotalTokens: f.tokensPerText}, nil
}

func (f *fakeEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	f.batches = append(f.batches, texts)
	if f.err != nil {
		return domain.BatchEmbeddingResult{}, f.err
	}
	n := len(texts)
	if f.short {
		n--
	}
	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, n)}
	for i := range out.Embeddings {
		out.Embeddings[i] = f.vec
	}
	out.PromptTokens = f.tokensPerText * len(texts)
	out.TotalTokens = f.tokensPerText * len(texts)
	return out, nil
}

// memKV is an in-memory kv that records the TTL of every write.
type memKV struct {
	mu      sync.Mutex
	data    map[string][]byte
	ttls    map[string]time.Duration
	readErr error
}

func newMemKV() *memKV {
	return &memKV{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *memKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *memKV) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	m.ttls[key] = ttl
	return nil
}

var testSpace = Space{Model: "minilm", Dimensions: 384}

func (m *memKV) seed(text string, vec []float32) {
	m.data[testSpace.key(text)] = []byte(db.EncodeVector(vec))
}

func newCache(t *testing.T, inner *fakeEmbedder) (*CachedEmbedder, *memKV) {
	t.Helper()
	store := newMemKV()
	return New(inner, store, testSpace, 0, nil, zap.NewNop()), store
}

var errProviderDown = errors.New("provider down")
