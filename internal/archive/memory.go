package archive

import (
	"context"
	"sort"
	"sync"
)

// MemoryWriter is an in-process sink used when no external storage is
// configured, and by tests.
type MemoryWriter struct {
	mu   sync.RWMutex
	recs map[string]Record
}

func NewMemoryWriter() *MemoryWriter {
	return &MemoryWriter{recs: make(map[string]Record)}
}

func (w *MemoryWriter) Save(_ context.Context, rec Record) error {
	w.mu.Lock()
	w.recs[rec.SessionID] = rec
	w.mu.Unlock()
	return nil
}

func (w *MemoryWriter) Get(sessionID string) (Record, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	rec, ok := w.recs[sessionID]
	return rec, ok
}

func (w *MemoryWriter) Load(_ context.Context, sessionID string) (*Record, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	rec, ok := w.recs[sessionID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// Recent lists stored records, most recently ended first.
func (w *MemoryWriter) Recent(_ context.Context, limit int64) ([]*Record, error) {
	if limit <= 0 {
		limit = 20
	}
	w.mu.RLock()
	out := make([]*Record, 0, len(w.recs))
	for id := range w.recs {
		rec := w.recs[id]
		out = append(out, &rec)
	}
	w.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].EndedAt.After(out[j].EndedAt) })
	if int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (w *MemoryWriter) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.recs)
}

func (w *MemoryWriter) Close() error { return nil }
