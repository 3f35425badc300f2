package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/Lllllllleong/tenderflow/internal/dispatch"
	"github.com/Lllllllleong/tenderflow/internal/inference"
	"github.com/Lllllllleong/tenderflow/internal/models"
	"github.com/Lllllllleong/tenderflow/internal/objectstore"
	"github.com/Lllllllleong/tenderflow/internal/progress"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	keys    []string
	data    map[string][]byte
	listErr error
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (m *memStore) add(tenderID, name string, data []byte) {
	key := objectstore.DocumentKey(tenderID, name)
	m.keys = append(m.keys, key)
	if data != nil {
		m.data[key] = data
	}
}

func (m *memStore) List(ctx context.Context, prefix string) ([]string, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []string
	for _, k := range m.keys {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out, nil
}

func (m *memStore) Fetch(ctx context.Context, key string) ([]byte, error) {
	d, ok := m.data[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", objectstore.ErrNotFound, key)
	}
	return d, nil
}

// fakeText answers FORM for prompts containing formMarker and fails for prompts containing failMarker.
type fakeText struct {
	formMarker string
	failMarker string
	calls      atomic.Int32
}

func (f *fakeText) InferText(ctx context.Context, prompt string) (string, error) {
	f.calls.Add(1)
	if f.failMarker != "" && strings.Contains(prompt, f.failMarker) {
		return "", errors.New("503 service unavailable")
	}
	if f.formMarker != "" && strings.Contains(prompt, f.formMarker) {
		return "FORM", nil
	}
	if text, ok := strings.CutPrefix(prompt, inference.TranslatePrompt); ok {
		return "OTHER translated: " + strings.TrimSpace(text), nil
	}
	return "OTHER", nil
}

type fakeImage struct {
	answer string
	err    error
	calls  atomic.Int32
}

func (f *fakeImage) InferImage(ctx context.Context, jpeg []byte, instruction string) (string, error) {
	f.calls.Add(1)
	return f.answer, f.err
}

type fakeEmbedder struct {
	err   error
	calls atomic.Int32
}

func (f *fakeEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t))}
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return []float32{float32(len(text))}, nil
}

type fakeChunks struct {
	mu      sync.Mutex
	saved   []models.EmbeddedChunk
	deleted []string
}

func (f *fakeChunks) Save(ctx context.Context, chunks []models.EmbeddedChunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, chunks...)
	return nil
}

func (f *fakeChunks) DeleteResults(ctx context.Context, tenderID, document string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, document)
	kept := f.saved[:0]
	for _, c := range f.saved {
		if c.TenderID != tenderID || c.DocumentName != document {
			kept = append(kept, c)
		}
	}
	f.saved = kept
	return nil
}

func (f *fakeChunks) Count(ctx context.Context, tenderID, document string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.saved {
		if c.TenderID == tenderID && c.DocumentName == document {
			n++
		}
	}
	return n, nil
}

func newDispatcher(t *testing.T) *dispatch.Dispatcher {
	t.Helper()
	d, err := dispatch.New(2, 3)
	require.NoError(t, err)
	t.Cleanup(d.Release)
	return d
}

func newLedger(t *testing.T, ledger progress.Ledger) *progress.Badger {
	t.Helper()
	store, err := progress.NewBadger("", ledger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}
