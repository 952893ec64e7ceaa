package catalog_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MenuStore/internal/assets"
	"MenuStore/internal/catalog"
)

type fakeAssets struct {
	mu      sync.Mutex
	n       int
	stored  map[string]bool
	removed []string
	putErr  error
}

func newFakeAssets() *fakeAssets { return &fakeAssets{stored: map[string]bool{}} }

func (f *fakeAssets) Put(ctx context.Context, up assets.Upload) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return "", f.putErr
	}
	if _, err := io.ReadAll(up.Body); err != nil {
		return "", err
	}
	f.n++
	ref := assets.Prefix + up.Filename
	f.stored[ref] = true
	return ref, nil
}

func (f *fakeAssets) Remove(ctx context.Context, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.stored, ref)
	f.removed = append(f.removed, ref)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []catalog.Event
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, ev catalog.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) types() []catalog.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]catalog.EventType, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

func tea() catalog.Input {
	return catalog.Input{Name: "Tea", Price: catalog.ParsePrice("2"), Description: "Hot", Category: "Drinks"}
}

func upload(name string) *assets.Upload {
	return &assets.Upload{Filename: name, Body: strings.NewReader("\x89PNG")}
}

func TestCatalog_CreateAssignsUniqueIDs(t *testing.T) {
	ctx := context.Background()
	c := catalog.New(catalog.Deps{Store: catalog.NewMemStore()})

	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		p, err := c.Create(ctx, tea(), nil)
		require.NoError(t, err)
		require.False(t, p.ID.IsZero())
		require.False(t, seen[p.ID.String()], "duplicate id %s", p.ID)
		seen[p.ID.String()] = true
		assert.Nil(t, p.Image)
	}

	products, err := c.List(ctx)
	require.NoError(t, err)
	assert.Len(t, products, 20)
}

func TestCatalog_CreateConcurrent(t *testing.T) {
	ctx := context.Background()
	c := catalog.New(catalog.Deps{Store: catalog.NewMemStore()})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Create(ctx, tea(), nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	products, err := c.List(ctx)
	require.NoError(t, err)
	assert.Len(t, products, 16)
}

func TestCatalog_CreateValidation(t *testing.T) {
	store := catalog.NewMemStore()
	fa := newFakeAssets()
	c := catalog.New(catalog.Deps{Store: store, Assets: fa})

	_, err := c.Create(context.Background(), catalog.Input{Name: "Tea"}, upload("a.png"))

	var ve *catalog.ValidationError
	require.True(t, errors.As(err, &ve), "got %v", err)
	assert.Equal(t, []string{"price", "description", "category"}, ve.Fields)
	assert.Zero(t, store.Saves())
	assert.Zero(t, fa.n, "upload stored for an invalid request")
}

func TestCatalog_CreateWithImage(t *testing.T) {
	fa := newFakeAssets()
	c := catalog.New(catalog.Deps{Store: catalog.NewMemStore(), Assets: fa})

	p, err := c.Create(context.Background(), tea(), upload("tea.png"))
	require.NoError(t, err)
	require.NotNil(t, p.Image)
	assert.Equal(t, "uploads/tea.png", *p.Image)
}

func TestCatalog_CreateSaveFailureRemovesUpload(t *testing.T) {
	store := catalog.NewMemStore()
	store.SaveErr = errors.New("disk full")
	fa := newFakeAssets()
	c := catalog.New(catalog.Deps{Store: store, Assets: fa})

	_, err := c.Create(context.Background(), tea(), upload("tea.png"))

	var se *catalog.StorageError
	require.True(t, errors.As(err, &se), "got %v", err)
	assert.Equal(t, []string{"uploads/tea.png"}, fa.removed)
	assert.Empty(t, fa.stored)
}

func TestCatalog_UploadsDisabled(t *testing.T) {
	c := catalog.New(catalog.Deps{Store: catalog.NewMemStore()})

	_, err := c.Create(context.Background(), tea(), upload("tea.png"))

	var ve *catalog.ValidationError
	require.True(t, errors.As(err, &ve), "got %v", err)
	assert.Equal(t, []string{"image"}, ve.Fields)
}

func TestCatalog_UpdateMergesAndReplacesImage(t *testing.T) {
	ctx := context.Background()
	old := burger(t)
	fa := newFakeAssets()
	c := catalog.New(catalog.Deps{Store: catalog.NewMemStore(old), Assets: fa})

	got, err := c.Update(ctx, "b1", catalog.Input{Price: catalog.ParsePrice("10.5")}, upload("new.png"))
	require.NoError(t, err)

	assert.Equal(t, "Burger", got.Name)
	assert.Equal(t, "10.5", got.Price.String())
	assert.Equal(t, "uploads/new.png", *got.Image)
	assert.Equal(t, []string{"uploads/old.png"}, fa.removed)

	stored, err := c.Get(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, got, stored)
}

func TestCatalog_UpdateWithoutImageKeepsIt(t *testing.T) {
	fa := newFakeAssets()
	c := catalog.New(catalog.Deps{Store: catalog.NewMemStore(burger(t)), Assets: fa})

	got, err := c.Update(context.Background(), "b1", catalog.Input{Category: "Grill"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "uploads/old.png", *got.Image)
	assert.Empty(t, fa.removed)
}

func TestCatalog_UpdateUnknown(t *testing.T) {
	store := catalog.NewMemStore(burger(t))
	fa := newFakeAssets()
	c := catalog.New(catalog.Deps{Store: store, Assets: fa})

	_, err := c.Update(context.Background(), "nope", catalog.Input{Name: "X"}, upload("x.png"))
	assert.ErrorIs(t, err, catalog.ErrNotFound)
	assert.Zero(t, store.Saves())
	assert.Equal(t, []string{"uploads/x.png"}, fa.removed)
}

func TestCatalog_DeleteUnknownIsNotFoundAndWritesNothing(t *testing.T) {
	ctx := context.Background()
	store := catalog.NewMemStore(burger(t))
	c := catalog.New(catalog.Deps{Store: store})

	for i := 0; i < 2; i++ {
		_, err := c.Delete(ctx, "999")
		assert.ErrorIs(t, err, catalog.ErrNotFound)
	}
	assert.Zero(t, store.Saves())

	products, err := c.List(ctx)
	require.NoError(t, err)
	assert.Len(t, products, 1)
}

func TestCatalog_DeleteRemovesRecordAndImage(t *testing.T) {
	ctx := context.Background()
	fa := newFakeAssets()
	pub := &recordingPublisher{}
	other := catalog.Product{ID: catalog.IntID(2), Name: "Fries"}
	c := catalog.New(catalog.Deps{Store: catalog.NewMemStore(burger(t), other), Assets: fa, Events: pub})

	removed, err := c.Delete(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "Burger", removed.Name)
	assert.Equal(t, []string{"uploads/old.png"}, fa.removed)

	_, err = c.Get(ctx, "b1")
	assert.ErrorIs(t, err, catalog.ErrNotFound)

	products, err := c.List(ctx)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "2", products[0].ID.String())

	assert.Equal(t, []catalog.EventType{catalog.EventDeleted}, pub.types())
}

func TestCatalog_PublishFailureDoesNotFailWrite(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	c := catalog.New(catalog.Deps{Store: catalog.NewMemStore(), Events: pub})

	_, err := c.Create(context.Background(), tea(), nil)
	require.NoError(t, err)
	assert.Equal(t, []catalog.EventType{catalog.EventCreated}, pub.types())
}

func TestCatalog_CorruptDocumentServesEmpty(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := catalog.NewMetrics(reg)
	store := catalog.NewDocumentStore(catalog.NewMemoryBackend([]byte("[oops")), nil, nil)
	c := catalog.New(catalog.Deps{Store: store, Metrics: m})

	products, err := c.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, products)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CorruptLoads))
}

func TestCatalog_StoreErrorMetric(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := catalog.NewMetrics(reg)
	store := catalog.NewMemStore()
	store.SaveErr = errors.New("nope")
	c := catalog.New(catalog.Deps{Store: store, Metrics: m})

	_, err := c.Create(context.Background(), tea(), nil)
	require.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreErrors.WithLabelValues("save")))
}

func TestCatalog_BurgerScenario(t *testing.T) {
	ctx := context.Background()
	c := catalog.New(catalog.Deps{Store: catalog.NewMemStore()})

	created, err := c.Create(ctx, catalog.Input{
		Name:        "Burger",
		Price:       catalog.ParsePrice("9.99"),
		Description: "Beef patty",
		Category:    "Mains",
	}, nil)
	require.NoError(t, err)

	updated, err := c.Update(ctx, created.ID.String(), catalog.Input{Price: catalog.ParsePrice("10.5")}, nil)
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "10.5", updated.Price.String())
	assert.Equal(t, "Beef patty", updated.Description)

	_, err = c.Delete(ctx, created.ID.String())
	require.NoError(t, err)

	products, err := c.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, products)
}

type blockingPublisher struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (p *blockingPublisher) Publish(ctx context.Context, ev catalog.Event) error {
	p.once.Do(func() { close(p.started) })
	select {
	case <-p.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestCatalog_SlowPublisherDoesNotBlockReads(t *testing.T) {
	ctx := context.Background()
	pub := &blockingPublisher{started: make(chan struct{}), release: make(chan struct{})}
	c := catalog.New(catalog.Deps{Store: catalog.NewMemStore(), Events: pub})

	created := make(chan error, 1)
	go func() {
		_, err := c.Create(ctx, tea(), nil)
		created <- err
	}()
	<-pub.started

	listed := make(chan int, 1)
	go func() {
		products, err := c.List(ctx)
		assert.NoError(t, err)
		listed <- len(products)
	}()

	select {
	case n := <-listed:
		assert.Equal(t, 1, n)
	case <-time.After(time.Second):
		t.Fatalf("List blocked behind a pending publish")
	}

	close(pub.release)
	require.NoError(t, <-created)
}
