package client_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"MenuStore/internal/assets"
	"MenuStore/internal/auth"
	"MenuStore/internal/catalog"
	"MenuStore/internal/client"
)

const password = "kitchen"

func newCatalogTS(t *testing.T) *httptest.Server {
	t.Helper()

	gate, err := auth.NewGate(password, bcrypt.MinCost, auth.NewTokenMaker("0123456789abcdef0123456789abcdef"), time.Minute)
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}

	s := &catalog.Server{
		Catalog: catalog.New(catalog.Deps{
			Store:  catalog.NewMemStore(),
			Assets: assets.NewLocalStore(t.TempDir(), 0),
		}),
		RequireAuth: auth.Require(gate),
		Auth:        (&auth.Server{Log: zap.NewNop(), Gate: gate}).Routes(),
	}

	ts := httptest.NewServer(catalog.NewHandler(s, catalog.HTTPDeps{Log: zap.NewNop(), Service: "catalog"}))
	t.Cleanup(ts.Close)
	return ts
}

func TestClient_RoundTrip(t *testing.T) {
	ctx := context.Background()
	ts := newCatalogTS(t)

	anon := client.New(ts.URL+"/", "")
	if _, err := anon.Create(ctx, catalog.Input{Name: "x"}, nil); !errors.Is(err, client.ErrForbidden) {
		t.Fatalf("anonymous create: %v", err)
	}

	tok, err := anon.Token(ctx, password)
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	c := client.New(ts.URL, tok)

	if _, err := c.Create(ctx, catalog.Input{Name: "x"}, nil); !errors.Is(err, client.ErrBadRequest) {
		t.Fatalf("invalid create: %v", err)
	}

	p, err := c.Create(ctx, catalog.Input{
		Name:        "Burger",
		Price:       catalog.ParsePrice("9.99"),
		Description: "Beef patty",
		Category:    "Mains",
	}, &client.Image{Filename: "burger.png", Data: []byte("\x89PNG\r\n\x1a\n\x00\x00")})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.Image == nil {
		t.Fatalf("image missing")
	}

	updated, err := c.Update(ctx, p.ID.String(), catalog.Input{Category: "Grill"}, nil)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Category != "Grill" || updated.Name != "Burger" || *updated.Image != *p.Image {
		t.Fatalf("updated=%+v", updated)
	}

	got, err := anon.Get(ctx, p.ID.String())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Category != "Grill" {
		t.Fatalf("got=%+v", got)
	}

	list, err := anon.List(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("List: %v %v", list, err)
	}

	removed, err := c.Delete(ctx, p.ID.String())
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if removed.ID != p.ID {
		t.Fatalf("removed=%+v", removed)
	}

	if _, err := c.Delete(ctx, p.ID.String()); !errors.Is(err, client.ErrNotFound) {
		t.Fatalf("second delete: %v", err)
	}
}

func TestClient_Unavailable(t *testing.T) {
	ts := newCatalogTS(t)
	url := ts.URL
	ts.Close()

	_, err := client.New(url, "").List(context.Background())
	if !errors.Is(err, client.ErrUnavailable) {
		t.Fatalf("err=%v", err)
	}
}
