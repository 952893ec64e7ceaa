package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"MenuStore/internal/assets"
	"MenuStore/pkg/kit"
)

const (
	maxBodyBytes   = 1 << 20
	formFieldImage = "image"
)

type Server struct {
	Catalog *Catalog
	Log     *zap.Logger

	// RequireAuth guards the mutating routes when set.
	RequireAuth func(http.Handler) http.Handler
	// Auth is mounted under /auth when set.
	Auth http.Handler

	MaxUploadBytes int64
	UploadDir      string
	StaticDir      string
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 1*time.Second)
		defer cancel()

		if err := s.Catalog.Ping(ctx); err != nil {
			s.logger().Warn("readyz failed", zap.Error(err))
			kit.WriteError(w, r, http.StatusServiceUnavailable, "not ready", nil)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	r.Get("/products", s.list)
	r.Get("/products/{id}", s.get)

	r.Group(func(pr chi.Router) {
		if s.RequireAuth != nil {
			pr.Use(s.RequireAuth)
		}
		pr.Post("/products", s.create)
		pr.Put("/products/{id}", s.update)
		pr.Delete("/products/{id}", s.delete)
	})

	if s.Auth != nil {
		r.Mount("/auth", s.Auth)
	}
	if s.UploadDir != "" {
		r.Handle("/uploads/*", noSniff(http.StripPrefix("/uploads/", http.FileServer(http.Dir(s.UploadDir)))))
	}
	if s.StaticDir != "" {
		r.NotFound(http.FileServer(http.Dir(s.StaticDir)).ServeHTTP)
	}

	return r
}

// noSniff stops browsers from reinterpreting stored uploads as another type.
func noSniff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	products, err := s.Catalog.List(r.Context())
	if err != nil {
		s.writeCatalogError(w, r, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, products)
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	p, err := s.Catalog.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeCatalogError(w, r, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, p)
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	in, up, cleanup, err := s.decodeInput(w, r)
	if err != nil {
		s.writeDecodeError(w, r, err)
		return
	}
	defer cleanup()

	p, err := s.Catalog.Create(r.Context(), in, up)
	if err != nil {
		s.writeCatalogError(w, r, err)
		return
	}
	kit.WriteJSON(w, http.StatusCreated, p)
}

func (s *Server) update(w http.ResponseWriter, r *http.Request) {
	in, up, cleanup, err := s.decodeInput(w, r)
	if err != nil {
		s.writeDecodeError(w, r, err)
		return
	}
	defer cleanup()

	p, err := s.Catalog.Update(r.Context(), chi.URLParam(r, "id"), in, up)
	if err != nil {
		s.writeCatalogError(w, r, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, p)
}

type deleteResp struct {
	Message string  `json:"message"`
	Product Product `json:"product"`
}

func (s *Server) delete(w http.ResponseWriter, r *http.Request) {
	p, err := s.Catalog.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeCatalogError(w, r, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, deleteResp{Message: "product deleted", Product: p})
}

// decodeInput accepts JSON, urlencoded forms and multipart forms. Only a
// multipart form can carry an image.
func (s *Server) decodeInput(w http.ResponseWriter, r *http.Request) (Input, *assets.Upload, func(), error) {
	noop := func() {}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch mediaType {
	case "multipart/form-data":
		limit := s.maxUpload()
		r.Body = http.MaxBytesReader(w, r.Body, limit+maxBodyBytes)
		if err := r.ParseMultipartForm(limit); err != nil {
			return Input{}, nil, noop, err
		}
		cleanup := func() { _ = r.MultipartForm.RemoveAll() }

		in := formInput(r)
		f, hdr, err := r.FormFile(formFieldImage)
		if errors.Is(err, http.ErrMissingFile) {
			return in, nil, cleanup, nil
		}
		if err != nil {
			cleanup()
			return Input{}, nil, noop, err
		}
		return in, &assets.Upload{Filename: hdr.Filename, Body: f}, func() {
			_ = f.Close()
			cleanup()
		}, nil

	case "application/x-www-form-urlencoded":
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := r.ParseForm(); err != nil {
			return Input{}, nil, noop, err
		}
		return formInput(r), nil, noop, nil

	default:
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		var in Input
		err := json.NewDecoder(r.Body).Decode(&in)
		if err != nil && !errors.Is(err, io.EOF) {
			return Input{}, nil, noop, err
		}
		return in, nil, noop, nil
	}
}

func formInput(r *http.Request) Input {
	return Input{
		Name:        r.PostFormValue("name"),
		Price:       ParsePrice(r.PostFormValue("price")),
		Description: r.PostFormValue("description"),
		Category:    r.PostFormValue("category"),
	}
}

func (s *Server) writeDecodeError(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		kit.WriteError(w, r, http.StatusRequestEntityTooLarge, "request body is too large", map[string]any{"max_bytes": tooLarge.Limit})
		return
	}
	kit.WriteError(w, r, http.StatusBadRequest, "bad request body", map[string]any{"cause": err.Error()})
}

func (s *Server) writeCatalogError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *ValidationError

	switch {
	case errors.As(err, &ve):
		kit.WriteError(w, r, http.StatusBadRequest, ve.Reason, map[string]any{"fields": ve.Fields})
	case errors.Is(err, ErrNotFound):
		kit.WriteError(w, r, http.StatusNotFound, "not found", map[string]any{"id": chi.URLParam(r, "id")})
	case errors.Is(err, assets.ErrNotImage), errors.Is(err, assets.ErrEmpty):
		kit.WriteError(w, r, http.StatusBadRequest, err.Error(), map[string]any{"fields": []string{formFieldImage}})
	case errors.Is(err, assets.ErrTooLarge):
		kit.WriteError(w, r, http.StatusRequestEntityTooLarge, "upload is too large", map[string]any{"max_bytes": s.maxUpload()})
	default:
		s.logger().Error("catalog request failed",
			zap.Error(err),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
		)
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
	}
}

func (s *Server) maxUpload() int64 {
	if s.MaxUploadBytes > 0 {
		return s.MaxUploadBytes
	}
	return assets.DefaultMaxBytes
}

func (s *Server) logger() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}
