package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
)

type contextKey string

const callerKey contextKey = "caller"

// ErrNoSession is returned when a session-authenticated endpoint is called
// without an authenticated caller.
var ErrNoSession = errors.New("no authenticated session")

// ContextWithCaller returns a new context carrying the caller identity.
func ContextWithCaller(ctx context.Context, caller string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, callerKey, caller)
}

// CallerFromContext retrieves the caller identity from the context, if any.
func CallerFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	caller, ok := ctx.Value(callerKey).(string)
	if !ok || caller == "" {
		return "", false
	}
	return caller, true
}

// CheckSecret verifies the shared trigger secret, passed either in the
// X-Sync-Secret header or as a bearer credential.
func CheckSecret(r *http.Request, secret string) bool {
	if secret == "" {
		return false
	}
	candidate := r.Header.Get("X-Sync-Secret")
	if candidate == "" {
		if bearer := r.Header.Get("Authorization"); strings.HasPrefix(bearer, "Bearer ") {
			candidate = strings.TrimPrefix(bearer, "Bearer ")
		}
	}
	if candidate == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(secret)) == 1
}

// SessionValidator resolves the authenticated user for UI-triggered calls.
// Session handling itself lives outside this service; implementations adapt
// whatever the fronting layer provides.
type SessionValidator interface {
	Validate(r *http.Request) (string, error)
}

// HeaderSessionValidator trusts a user header injected by the upstream
// session layer after it has authenticated the request.
type HeaderSessionValidator struct {
	Header string
}

func (v HeaderSessionValidator) Validate(r *http.Request) (string, error) {
	header := v.Header
	if header == "" {
		header = "X-Session-User"
	}
	user := strings.TrimSpace(r.Header.Get(header))
	if user == "" {
		return "", ErrNoSession
	}
	return user, nil
}
