package catalog

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"MenuStore/pkg/kit"
)

const defaultService = "catalog"

// HTTPDeps carries the cross-cutting pieces of the handler. A nil Registry
// turns request metrics off.
type HTTPDeps struct {
	Log      *zap.Logger
	Service  string
	Registry *prometheus.Registry

	MetricsEnabled bool
	MetricsToken   string

	// CORSOrigin is sent as Access-Control-Allow-Origin; empty disables CORS.
	CORSOrigin string
}

func (d HTTPDeps) withDefaults() HTTPDeps {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Service == "" {
		d.Service = defaultService
	}
	return d
}

func NewHandler(s *Server, deps HTTPDeps) http.Handler {
	deps = deps.withDefaults()
	if s.Log == nil {
		s.Log = deps.Log
	}

	r := chi.NewRouter()
	r.Use(middlewares(deps)...)

	if deps.Registry != nil {
		m := kit.NewMetrics(deps.Registry)
		r.Use(m.Middleware(deps.Service, kit.ChiRoutePattern))
		if deps.MetricsEnabled {
			scrape := promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{Registry: deps.Registry})
			r.With(kit.MetricsAuth(deps.MetricsToken)).Handle("/metrics", scrape)
		}
	}

	r.Mount("/", s.Routes())
	return r
}

func middlewares(deps HTTPDeps) []func(http.Handler) http.Handler {
	mw := []func(http.Handler) http.Handler{
		chimw.RequestID,
		kit.Recoverer,
		kit.Logging(deps.Log),
		chimw.CleanPath,
	}
	if deps.CORSOrigin != "" {
		mw = append(mw, kit.CORS(deps.CORSOrigin))
	}
	return mw
}
