// Admin RPC guard for the update verbs enumerated in §6. These verbs are
// rare but high-blast-radius (they change admission policy and pacing for
// an entire fleet at once), so when NTS_ADMIN_SECRET is set the cmd/ntsd
// update verbs require a bearer token signed with that HMAC secret before
// writing to the etcd keys the watcher applies to Manager; with the
// variable unset they run without a token. golang-jwt/jwt/v5 is already a
// direct dependency of the teacher
// (go.mod); this is the first place NTS itself uses it.
package config

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/time/rate"
)

// AdminClaims is the expected claim shape of an admin bearer token.
type AdminClaims struct {
	jwt.RegisteredClaims
	Scope string `json:"scope"`
}

// AdminAuthenticator validates bearer tokens presented to the admin update
// verbs and rate-limits Authorize calls with one limiter shared by every
// caller of this authenticator —
// grounded on nomad/drainerv2's use of golang.org/x/time/rate to bound how
// often it re-reads state (LimitStateQueriesPerSecond in
// _examples/hashicorp-nomad/nomad/drainerv2/drainer.go).
type AdminAuthenticator struct {
	secret      []byte
	requiredScope string
	limiter     *rate.Limiter
}

// NewAdminAuthenticator builds an authenticator keyed on secret, requiring
// tokens to carry requiredScope, and limiting admin calls to maxPerSecond
// with a burst of int(maxPerSecond)+1.
func NewAdminAuthenticator(secret []byte, requiredScope string, maxPerSecond float64) *AdminAuthenticator {
	return &AdminAuthenticator{
		secret:        secret,
		requiredScope: requiredScope,
		limiter:       rate.NewLimiter(rate.Limit(maxPerSecond), int(maxPerSecond)+1),
	}
}

// Authorize validates tokenString and consumes one slot of the rate
// limiter's budget. It returns an error if the token is invalid, expired,
// missing the required scope, or the caller is over the admin rate limit.
func (a *AdminAuthenticator) Authorize(tokenString string) error {
	if !a.limiter.Allow() {
		return fmt.Errorf("admin rate limit exceeded")
	}

	claims := &AdminClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return fmt.Errorf("invalid admin token: %w", err)
	}
	if !token.Valid {
		return fmt.Errorf("invalid admin token")
	}
	if claims.Scope != a.requiredScope {
		return fmt.Errorf("admin token missing required scope %q", a.requiredScope)
	}
	return nil
}

// IssueToken mints a short-lived admin token; intended for test harnesses
// and the cmd/ntsd admin CLI, not for production secret distribution.
func (a *AdminAuthenticator) IssueToken(scope string, ttl time.Duration) (string, error) {
	claims := AdminClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
		Scope: scope,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}
