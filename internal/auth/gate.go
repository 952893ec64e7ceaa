// Package auth gates the mutating catalog routes behind one shared secret.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const RoleEditor = "editor"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokensDisabled     = errors.New("token issuing is disabled")
)

// Gate holds the shared secret as a bcrypt hash. Callers present either the
// secret itself or an editor token issued in exchange for it. Once the secret
// is known, its SHA-256 digest is compared instead so that junk bearer tokens
// never cost a bcrypt round.
type Gate struct {
	hash   []byte
	digest atomic.Pointer[[sha256.Size]byte]
	tokens *TokenMaker
	ttl    time.Duration
}

func NewGate(secret string, cost int, tokens *TokenMaker, ttl time.Duration) (*Gate, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		return nil, err
	}
	g := &Gate{hash: hash, tokens: tokens, ttl: ttl}
	d := sha256.Sum256([]byte(secret))
	g.digest.Store(&d)
	return g, nil
}

func NewGateFromHash(hash string, tokens *TokenMaker, ttl time.Duration) (*Gate, error) {
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, err
	}
	return &Gate{hash: []byte(hash), tokens: tokens, ttl: ttl}, nil
}

func (g *Gate) Verify(token string) bool {
	if token == "" {
		return false
	}
	if g.tokens != nil && strings.Count(token, ".") == 2 {
		if c, err := g.tokens.Parse(token); err == nil && c.Role == RoleEditor {
			return true
		}
	}
	return g.checkSecret(token)
}

// Issue exchanges the shared secret for a short-lived editor token.
func (g *Gate) Issue(secret string) (string, time.Duration, error) {
	if g.tokens == nil {
		return "", 0, ErrTokensDisabled
	}
	if !g.checkSecret(secret) {
		return "", 0, ErrInvalidCredentials
	}
	tok, err := g.tokens.New(RoleEditor, g.ttl)
	if err != nil {
		return "", 0, err
	}
	return tok, g.ttl, nil
}

// checkSecret falls back to bcrypt only until the first successful match.
func (g *Gate) checkSecret(secret string) bool {
	d := sha256.Sum256([]byte(secret))
	if known := g.digest.Load(); known != nil {
		return subtle.ConstantTimeCompare(d[:], known[:]) == 1
	}
	if bcrypt.CompareHashAndPassword(g.hash, []byte(secret)) != nil {
		return false
	}
	g.digest.Store(&d)
	return true
}
