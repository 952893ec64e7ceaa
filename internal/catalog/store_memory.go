package catalog

import (
	"context"
	"sync"
)

// MemStore is a typed in-memory Store. It does not backfill ids.
type MemStore struct {
	mu       sync.RWMutex
	products []Product

	// SaveErr, when set, is returned by Save without storing anything.
	SaveErr error
	saves   int
}

func NewMemStore(seed ...Product) *MemStore {
	return &MemStore{products: cloneProducts(seed)}
}

func (s *MemStore) Ping(ctx context.Context) error { return nil }

func (s *MemStore) Load(ctx context.Context) ([]Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneProducts(s.products), nil
}

func (s *MemStore) Save(ctx context.Context, products []Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveErr != nil {
		return &StorageError{Op: "write", Source: "memory", Err: s.SaveErr}
	}
	s.products = cloneProducts(products)
	s.saves++
	return nil
}

// Saves reports how many successful saves happened.
func (s *MemStore) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

// MemoryBackend holds the raw document in memory.
type MemoryBackend struct {
	mu          sync.Mutex
	doc         []byte
	exists      bool
	quarantined [][]byte
}

func NewMemoryBackend(doc []byte) *MemoryBackend {
	b := &MemoryBackend{}
	if doc != nil {
		b.doc = append([]byte(nil), doc...)
		b.exists = true
	}
	return b
}

func (b *MemoryBackend) Source() string                 { return "memory" }
func (b *MemoryBackend) Ping(ctx context.Context) error { return nil }

func (b *MemoryBackend) Read(ctx context.Context) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.exists {
		return nil, ErrNoDocument
	}
	return append([]byte(nil), b.doc...), nil
}

func (b *MemoryBackend) Write(ctx context.Context, doc []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.doc = append([]byte(nil), doc...)
	b.exists = true
	return nil
}

func (b *MemoryBackend) Quarantine(ctx context.Context, doc []byte) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.quarantined = append(b.quarantined, append([]byte(nil), doc...))
	return "memory:quarantine", nil
}

// Document returns a copy of the stored bytes.
func (b *MemoryBackend) Document() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.doc...)
}

func (b *MemoryBackend) Quarantined() [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.quarantined
}

func cloneProducts(in []Product) []Product {
	out := make([]Product, len(in))
	for i, p := range in {
		if p.Image != nil {
			img := *p.Image
			p.Image = &img
		}
		out[i] = p
	}
	return out
}
