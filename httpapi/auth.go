package httpapi

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
)

// ErrUnauthenticated is returned when a request carries no valid credentials.
var ErrUnauthenticated = errors.New("not authenticated")

// Principal is the caller identity attached to an authenticated request.
type Principal struct {
	Subject string
}

// Authenticator resolves the principal behind a request.
type Authenticator interface {
	Authenticate(r *http.Request) (*Principal, error)
}

// StaticToken accepts a single shared bearer token.
type StaticToken struct {
	Token   string
	Subject string
}

// Authenticate implements Authenticator.
func (a StaticToken) Authenticate(r *http.Request) (*Principal, error) {
	token, ok := bearerToken(r)
	if !ok || a.Token == "" {
		return nil, ErrUnauthenticated
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(a.Token)) != 1 {
		return nil, ErrUnauthenticated
	}
	subject := a.Subject
	if subject == "" {
		subject = "api"
	}
	return &Principal{Subject: subject}, nil
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

type principalKey struct{}

// PrincipalFrom returns the principal stored by the auth middleware, if any.
func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok
}

func requireAuth(auth Authenticator, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := auth.Authenticate(r)
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="listings"`)
			writeError(w, http.StatusUnauthorized, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalKey{}, p)))
	})
}
