package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"MenuStore/pkg/kit"
)

const (
	maxBodyBytes     = 1 << 20
	tokenLimitPerMin = 5
	limitWindow      = 60 * time.Second
)

// Require rejects requests whose bearer token the gate does not accept.
func Require(g *Gate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok, ok := kit.BearerToken(r)
			if !ok || !g.Verify(tok) {
				kit.WriteError(w, r, http.StatusForbidden, "forbidden", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type Server struct {
	Log  *zap.Logger
	Gate *Gate
	// TrustedProxies are allowed to report the client address for rate
	// limiting.
	TrustedProxies []netip.Prefix
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	limiter := kit.NewIPRateLimiter(tokenLimitPerMin, limitWindow).TrustProxies(s.TrustedProxies...)
	r.With(limiter.Middleware).Post("/token", s.handleToken)

	return r
}

type tokenReq struct {
	Password string `json:"password"`
}

type tokenResp struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req tokenReq
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", map[string]any{"cause": err.Error()})
		return
	}

	if strings.TrimSpace(req.Password) == "" {
		kit.WriteError(w, r, http.StatusBadRequest, "password required", nil)
		return
	}

	tok, ttl, err := s.Gate.Issue(req.Password)
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		kit.WriteError(w, r, http.StatusUnauthorized, "invalid credentials", nil)
		return
	case errors.Is(err, ErrTokensDisabled):
		kit.WriteError(w, r, http.StatusNotFound, "token issuing is disabled", nil)
		return
	case err != nil:
		if s.Log != nil {
			s.Log.Error("token issue", zap.Error(err))
		}
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
		return
	}

	kit.WriteJSON(w, http.StatusOK, tokenResp{
		AccessToken: tok,
		TokenType:   "Bearer",
		ExpiresIn:   int64(ttl.Seconds()),
	})
}
