package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"

	"go.uber.org/zap"
)

type Store interface {
	Load(ctx context.Context) ([]Product, error)
	Save(ctx context.Context, products []Product) error
	Ping(ctx context.Context) error
}

var ErrNoDocument = errors.New("document does not exist")

// Backend persists the encoded collection as one opaque document.
type Backend interface {
	Source() string
	// Read returns ErrNoDocument when nothing has been written yet.
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, doc []byte) error
	// Quarantine keeps an unparseable document somewhere it will not be
	// overwritten and returns where it went.
	Quarantine(ctx context.Context, doc []byte) (string, error)
	Ping(ctx context.Context) error
}

// DocumentStore encodes the whole collection as one indented JSON array.
type DocumentStore struct {
	backend Backend
	ids     IDAllocator
	log     *zap.Logger

	mu      sync.Mutex
	corrupt []byte
}

func NewDocumentStore(backend Backend, ids IDAllocator, log *zap.Logger) *DocumentStore {
	if ids == nil {
		ids = UUIDs{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &DocumentStore{backend: backend, ids: ids, log: log}
}

func (s *DocumentStore) Ping(ctx context.Context) error {
	return s.backend.Ping(ctx)
}

// Load reads the collection and assigns ids to records that lack one. The
// backfilled collection is written back right away so ids stay stable.
func (s *DocumentStore) Load(ctx context.Context) ([]Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.backend.Read(ctx)
	if errors.Is(err, ErrNoDocument) {
		s.corrupt = nil
		return []Product{}, nil
	}
	if err != nil {
		return nil, &StorageError{Op: "read", Source: s.backend.Source(), Err: err}
	}

	products, err := decodeProducts(raw)
	if err != nil {
		s.corrupt = raw
		return nil, &CorruptDataError{Source: s.backend.Source(), Err: err}
	}
	s.corrupt = nil

	if n := backfillIDs(products, s.ids); n > 0 {
		s.log.Info("assigned missing product ids",
			zap.Int("count", n),
			zap.String("source", s.backend.Source()),
		)
		if err := s.write(ctx, products); err != nil {
			return nil, err
		}
	}
	return products, nil
}

// Save replaces the stored collection. If the last Load found a corrupt
// document, that document is quarantined first.
func (s *DocumentStore) Save(ctx context.Context, products []Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.corrupt != nil {
		loc, err := s.backend.Quarantine(ctx, s.corrupt)
		if err != nil {
			return &StorageError{Op: "quarantine", Source: s.backend.Source(), Err: err}
		}
		s.log.Warn("quarantined corrupt catalog document",
			zap.String("source", s.backend.Source()),
			zap.String("quarantine", loc),
		)
		s.corrupt = nil
	}
	return s.write(ctx, products)
}

func (s *DocumentStore) write(ctx context.Context, products []Product) error {
	doc, err := encodeProducts(products)
	if err != nil {
		return &StorageError{Op: "encode", Source: s.backend.Source(), Err: err}
	}
	if err := s.backend.Write(ctx, doc); err != nil {
		return &StorageError{Op: "write", Source: s.backend.Source(), Err: err}
	}
	return nil
}

func decodeProducts(raw []byte) ([]Product, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return []Product{}, nil
	}
	var products []Product
	if err := json.Unmarshal(raw, &products); err != nil {
		return nil, err
	}
	if products == nil {
		products = []Product{}
	}
	return products, nil
}

func encodeProducts(products []Product) ([]byte, error) {
	if products == nil {
		products = []Product{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(products); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func backfillIDs(products []Product, ids IDAllocator) int {
	n := 0
	for i := range products {
		if products[i].ID.IsZero() {
			products[i].ID = nextFreeID(ids, products)
			n++
		}
	}
	return n
}
