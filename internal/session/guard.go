package session

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// ExpiryBuffer is subtracted from the embedded expiry so that requests in flight do not
// race the server-side expiry.
const ExpiryBuffer = 30 * time.Second

// Guard decides whether the stored credential is usable. It is the only component that
// touches the Store.
type Guard struct {
	store Store
	now   func() time.Time
}

type Option func(*Guard)

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(g *Guard) { g.now = now }
}

func NewGuard(store Store, opts ...Option) *Guard {
	g := &Guard{
		store: store,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// IsExpired reports true for anything that does not decode to a payload with an exp
// claim at least ExpiryBuffer in the future.
func (g *Guard) IsExpired(token string) bool {
	exp, ok := g.expiry(token)
	if !ok {
		return true
	}
	deadline := exp.Add(-ExpiryBuffer).UnixMilli()
	return g.now().UnixMilli() >= deadline
}

func (g *Guard) IsValid(token string) bool {
	return strings.TrimSpace(token) != "" && !g.IsExpired(token)
}

// IsLoggedIn is true when a credential is stored and not expired.
func (g *Guard) IsLoggedIn() bool {
	_, ok := g.Token()
	return ok
}

// Token returns the stored credential only if it is still valid.
func (g *Guard) Token() (string, bool) {
	if g == nil || g.store == nil {
		return "", false
	}
	token, ok := g.store.Load()
	if !ok || !g.IsValid(token) {
		return "", false
	}
	return token, true
}

// Expiry returns the embedded expiry of the stored credential, if any.
func (g *Guard) Expiry() (time.Time, bool) {
	if g == nil || g.store == nil {
		return time.Time{}, false
	}
	token, ok := g.store.Load()
	if !ok {
		return time.Time{}, false
	}
	return g.expiry(token)
}

func (g *Guard) Set(token string) error {
	return g.store.Save(strings.TrimSpace(token))
}

// Clear removes the stored credential (logout or stale-token detection).
func (g *Guard) Clear() error {
	if g == nil || g.store == nil {
		return nil
	}
	return g.store.Delete()
}

// expiry reads exp from the payload segment only. The header and signature are not
// inspected.
func (g *Guard) expiry(token string) (time.Time, bool) {
	parts := strings.Split(strings.TrimSpace(token), ".")
	if len(parts) != 3 {
		return time.Time{}, false
	}
	payload, err := jwt.DecodeSegment(parts[1])
	if err != nil {
		return time.Time{}, false
	}
	var claims jwt.RegisteredClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
