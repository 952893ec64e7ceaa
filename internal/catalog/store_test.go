package catalog_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MenuStore/internal/catalog"
)

type seqIDs struct{ n int }

func (s *seqIDs) NextID() catalog.ID {
	s.n++
	return catalog.StringID(fmt.Sprintf("id-%d", s.n))
}

const menuDoc = `[
  {
    "id": "b1",
    "name": "Burger",
    "price": 9.5,
    "description": "Beef",
    "category": "Mains",
    "image": null
  }
]
`

func TestDocumentStore_MissingDocumentIsEmpty(t *testing.T) {
	s := catalog.NewDocumentStore(catalog.NewMemoryBackend(nil), nil, nil)

	products, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, products)
	assert.Empty(t, products)
}

func TestDocumentStore_BlankOrNullDocumentIsEmpty(t *testing.T) {
	for _, doc := range []string{"", "  \n", "null"} {
		s := catalog.NewDocumentStore(catalog.NewMemoryBackend([]byte(doc)), nil, nil)

		products, err := s.Load(context.Background())
		require.NoError(t, err, "doc %q", doc)
		assert.Empty(t, products, "doc %q", doc)
	}
}

func TestDocumentStore_SaveLoadIsByteStable(t *testing.T) {
	ctx := context.Background()
	b := catalog.NewMemoryBackend([]byte(menuDoc))
	s := catalog.NewDocumentStore(b, nil, nil)

	products, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, products, 1)

	require.NoError(t, s.Save(ctx, products))
	assert.Equal(t, menuDoc, string(b.Document()))
}

func TestDocumentStore_KeepsLegacyIDAndPriceForms(t *testing.T) {
	ctx := context.Background()
	doc := `[{"id":3,"name":"Fries","price":"2.50","description":"Salted","category":"Sides","image":"uploads/f.png"}]`
	b := catalog.NewMemoryBackend([]byte(doc))
	s := catalog.NewDocumentStore(b, nil, nil)

	products, err := s.Load(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, products))

	again, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, products, again)
	assert.Contains(t, string(b.Document()), `"id": 3,`)
	assert.Contains(t, string(b.Document()), `"price": "2.50",`)
}

func TestDocumentStore_BackfillsAndPersistsIDs(t *testing.T) {
	ctx := context.Background()
	doc := `[{"name":"A","price":1,"description":"a","category":"x","image":null},
{"id":"","name":"B","price":2,"description":"b","category":"x","image":null},
{"id":"keep","name":"C","price":3,"description":"c","category":"x","image":null}]`
	b := catalog.NewMemoryBackend([]byte(doc))
	s := catalog.NewDocumentStore(b, &seqIDs{}, nil)

	products, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, products, 3)
	assert.Equal(t, "id-1", products[0].ID.String())
	assert.Equal(t, "id-2", products[1].ID.String())
	assert.Equal(t, "keep", products[2].ID.String())

	// A fresh store over the same bytes must see the same ids.
	reloaded, err := catalog.NewDocumentStore(b, &seqIDs{n: 100}, nil).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, products, reloaded)
}

func TestDocumentStore_BackfillSkipsTakenIDs(t *testing.T) {
	doc := `[{"id":"id-1","name":"A"},{"name":"B"}]`
	s := catalog.NewDocumentStore(catalog.NewMemoryBackend([]byte(doc)), &seqIDs{}, nil)

	products, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "id-2", products[1].ID.String())
}

func TestDocumentStore_CorruptDocumentIsQuarantinedOnSave(t *testing.T) {
	ctx := context.Background()
	b := catalog.NewMemoryBackend([]byte(`[{"id":"x",`))
	s := catalog.NewDocumentStore(b, nil, nil)

	_, err := s.Load(ctx)
	var corrupt *catalog.CorruptDataError
	require.True(t, errors.As(err, &corrupt), "got %v", err)
	assert.Equal(t, "memory", corrupt.Source)
	assert.Empty(t, b.Quarantined())

	require.NoError(t, s.Save(ctx, []catalog.Product{}))
	require.Len(t, b.Quarantined(), 1)
	assert.Equal(t, `[{"id":"x",`, string(b.Quarantined()[0]))
	assert.Equal(t, "[]\n", string(b.Document()))

	require.NoError(t, s.Save(ctx, []catalog.Product{}))
	assert.Len(t, b.Quarantined(), 1)
}

func TestDocumentStore_WrongShapeIsCorrupt(t *testing.T) {
	s := catalog.NewDocumentStore(catalog.NewMemoryBackend([]byte(`{"products":[]}`)), nil, nil)

	_, err := s.Load(context.Background())
	var corrupt *catalog.CorruptDataError
	assert.True(t, errors.As(err, &corrupt), "got %v", err)
}

type failingBackend struct {
	*catalog.MemoryBackend
	readErr  error
	writeErr error
}

func (b failingBackend) Read(ctx context.Context) ([]byte, error) {
	if b.readErr != nil {
		return nil, b.readErr
	}
	return b.MemoryBackend.Read(ctx)
}

func (b failingBackend) Write(ctx context.Context, doc []byte) error {
	if b.writeErr != nil {
		return b.writeErr
	}
	return b.MemoryBackend.Write(ctx, doc)
}

func TestDocumentStore_BackendErrorsAreStorageErrors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")

	{
		s := catalog.NewDocumentStore(failingBackend{MemoryBackend: catalog.NewMemoryBackend(nil), readErr: boom}, nil, nil)
		_, err := s.Load(ctx)

		var se *catalog.StorageError
		require.True(t, errors.As(err, &se), "got %v", err)
		assert.Equal(t, "read", se.Op)
		assert.ErrorIs(t, err, boom)
	}

	{
		s := catalog.NewDocumentStore(failingBackend{MemoryBackend: catalog.NewMemoryBackend(nil), writeErr: boom}, nil, nil)
		err := s.Save(ctx, []catalog.Product{})

		var se *catalog.StorageError
		require.True(t, errors.As(err, &se), "got %v", err)
		assert.Equal(t, "write", se.Op)
	}
}

func TestDocumentStore_UnknownKeysSurviveSave(t *testing.T) {
	ctx := context.Background()
	doc := `[
  {
    "id": "b1",
    "name": "Burger",
    "price": 9.5,
    "description": "Beef",
    "category": "Mains",
    "image": null,
    "allergens": [
      "gluten"
    ],
    "note": "<b>house</b> & grill"
  }
]
`
	b := catalog.NewMemoryBackend([]byte(doc))
	s := catalog.NewDocumentStore(b, nil, nil)

	products, err := s.Load(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, products))
	assert.Equal(t, doc, string(b.Document()))
}
