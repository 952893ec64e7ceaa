package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"MenuStore/internal/assets"
)

var errUploadsDisabled = &ValidationError{Fields: []string{"image"}, Reason: "image uploads are disabled"}

type Deps struct {
	Store   Store
	IDs     IDAllocator
	Assets  assets.Store
	Events  Publisher
	Log     *zap.Logger
	Metrics *Metrics
}

// Catalog runs every operation as load, mutate, save while holding one
// mutex, so no two requests interleave on the stored document. Asset removal
// and event publishing happen after the mutex is released.
type Catalog struct {
	mu sync.Mutex

	store   Store
	ids     IDAllocator
	assets  assets.Store
	events  Publisher
	log     *zap.Logger
	metrics *Metrics
	now     func() time.Time
}

func New(d Deps) *Catalog {
	c := &Catalog{
		store:   d.Store,
		ids:     d.IDs,
		assets:  d.Assets,
		events:  d.Events,
		log:     d.Log,
		metrics: d.Metrics,
		now:     time.Now,
	}
	if c.ids == nil {
		c.ids = UUIDs{}
	}
	if c.events == nil {
		c.events = NopPublisher{}
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	return c
}

func (c *Catalog) Ping(ctx context.Context) error {
	return c.store.Ping(ctx)
}

func (c *Catalog) List(ctx context.Context) ([]Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.load(ctx)
}

func (c *Catalog) Get(ctx context.Context, id string) (Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	products, err := c.load(ctx)
	if err != nil {
		return Product{}, err
	}
	i := indexOf(products, id)
	if i < 0 {
		return Product{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return products[i], nil
}

// Create validates in, stores the optional upload, and appends the new
// record. The upload is removed again if the record cannot be saved.
func (c *Catalog) Create(ctx context.Context, in Input, up *assets.Upload) (Product, error) {
	if err := ValidateCreate(in); err != nil {
		return Product{}, err
	}

	image, err := c.putAsset(ctx, up)
	if err != nil {
		return Product{}, err
	}

	p, err := c.create(ctx, in, image)
	if err != nil {
		c.discardAsset(ctx, image)
		return Product{}, err
	}

	c.publish(ctx, EventCreated, p)
	return p, nil
}

func (c *Catalog) create(ctx context.Context, in Input, image *string) (Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	products, err := c.load(ctx)
	if err != nil {
		return Product{}, err
	}

	p := newProduct(nextFreeID(c.ids, products), in, image)
	if err := c.save(ctx, append(products, p)); err != nil {
		return Product{}, err
	}
	return p, nil
}

func (c *Catalog) Update(ctx context.Context, id string, in Input, up *assets.Upload) (Product, error) {
	if err := ValidatePatch(in); err != nil {
		return Product{}, err
	}

	image, err := c.putAsset(ctx, up)
	if err != nil {
		return Product{}, err
	}

	p, old, err := c.update(ctx, id, in, image)
	if err != nil {
		c.discardAsset(ctx, image)
		return Product{}, err
	}

	if image != nil && old.Image != nil && *old.Image != *image {
		c.discardAsset(ctx, old.Image)
	}

	c.publish(ctx, EventUpdated, p)
	return p, nil
}

// update returns the merged record and the one it replaced.
func (c *Catalog) update(ctx context.Context, id string, in Input, image *string) (Product, Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	products, err := c.load(ctx)
	if err != nil {
		return Product{}, Product{}, err
	}

	i := indexOf(products, id)
	if i < 0 {
		return Product{}, Product{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	old := products[i]
	products[i] = Merge(old, in, image)

	if err := c.save(ctx, products); err != nil {
		return Product{}, Product{}, err
	}
	return products[i], old, nil
}

// Delete removes the record and then, best effort, its image. An unknown id
// leaves the stored document untouched.
func (c *Catalog) Delete(ctx context.Context, id string) (Product, error) {
	removed, err := c.delete(ctx, id)
	if err != nil {
		return Product{}, err
	}

	c.discardAsset(ctx, removed.Image)
	c.publish(ctx, EventDeleted, removed)
	return removed, nil
}

func (c *Catalog) delete(ctx context.Context, id string) (Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	products, err := c.load(ctx)
	if err != nil {
		return Product{}, err
	}

	i := indexOf(products, id)
	if i < 0 {
		return Product{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	removed := products[i]
	rest := make([]Product, 0, len(products)-1)
	rest = append(rest, products[:i]...)
	rest = append(rest, products[i+1:]...)

	if err := c.save(ctx, rest); err != nil {
		return Product{}, err
	}
	return removed, nil
}

func (c *Catalog) load(ctx context.Context) ([]Product, error) {
	products, err := c.store.Load(ctx)

	var corrupt *CorruptDataError
	if errors.As(err, &corrupt) {
		c.metrics.corruptLoad()
		c.log.Warn("catalog document is corrupt, serving an empty collection",
			zap.String("source", corrupt.Source),
			zap.Error(corrupt.Err),
		)
		c.metrics.setProducts(0)
		return []Product{}, nil
	}
	if err != nil {
		c.metrics.storeError("load")
		c.log.Error("load catalog failed", zap.Error(err))
		return nil, err
	}

	c.metrics.setProducts(len(products))
	return products, nil
}

func (c *Catalog) save(ctx context.Context, products []Product) error {
	if err := c.store.Save(ctx, products); err != nil {
		c.metrics.storeError("save")
		c.log.Error("save catalog failed", zap.Error(err), zap.Int("products", len(products)))
		return err
	}
	c.metrics.setProducts(len(products))
	return nil
}

func (c *Catalog) putAsset(ctx context.Context, up *assets.Upload) (*string, error) {
	if up == nil {
		return nil, nil
	}
	if c.assets == nil {
		return nil, errUploadsDisabled
	}
	ref, err := c.assets.Put(ctx, *up)
	if err != nil {
		return nil, err
	}
	return &ref, nil
}

func (c *Catalog) discardAsset(ctx context.Context, ref *string) {
	if ref == nil || c.assets == nil {
		return
	}
	if err := c.assets.Remove(context.WithoutCancel(ctx), *ref); err != nil {
		c.log.Warn("remove asset failed", zap.String("image", *ref), zap.Error(err))
	}
}

func (c *Catalog) publish(ctx context.Context, typ EventType, p Product) {
	ev := Event{Type: typ, Product: p, At: c.now().UTC()}
	if err := c.events.Publish(ctx, ev); err != nil {
		c.log.Warn("publish event failed",
			zap.String("type", string(typ)),
			zap.String("id", p.ID.String()),
			zap.Error(err),
		)
	}
}
