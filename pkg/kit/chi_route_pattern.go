package kit

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// UnmatchedRoute labels requests that no route pattern matched, such as
// static files and 404s, so the path label stays bounded.
const UnmatchedRoute = "unmatched"

func ChiRoutePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if rp := rctx.RoutePattern(); rp != "" && rp != "/*" {
			return rp
		}
	}
	return UnmatchedRoute
}
