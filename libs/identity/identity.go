package identity

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/studymatch/studymatch/libs/auth"
	"github.com/studymatch/studymatch/libs/httpx"
)

// ErrUnauthenticated is returned when no valid caller identity can be
// resolved from the request.
var ErrUnauthenticated = errors.New("unauthenticated")

// Provider resolves the acting user for a request. Every owner-scoped
// operation goes through this before touching any slot.
type Provider interface {
	ResolveCaller(r *http.Request) (string, error)
}

// TokenVerifier resolves callers from Bearer JWTs: RS256 via JWKS when the
// token header names a key id, HS256 with the shared secret otherwise.
type TokenVerifier struct {
	secret string
	jwks   *auth.JWKSClient
}

func NewTokenVerifier(secret string, jwks *auth.JWKSClient) *TokenVerifier {
	return &TokenVerifier{secret: secret, jwks: jwks}
}

func (v *TokenVerifier) ResolveCaller(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") || len(strings.TrimSpace(authHeader)) <= len("Bearer ") {
		return "", ErrUnauthenticated
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))

	var claims *auth.Claims
	var err error
	if v.jwks != nil {
		header, herr := auth.ParseHeader(token)
		if herr != nil {
			return "", ErrUnauthenticated
		}
		if header.Alg == "RS256" && header.Kid != "" {
			pub, kerr := v.jwks.Get(header.Kid)
			if kerr != nil {
				return "", ErrUnauthenticated
			}
			claims, err = auth.VerifyRS256(token, pub)
		} else {
			claims, err = auth.ParseAndVerifyHS256(token, v.secret)
		}
	} else {
		claims, err = auth.ParseAndVerifyHS256(token, v.secret)
	}
	if err != nil || claims.Sub == "" {
		return "", ErrUnauthenticated
	}
	return claims.Sub, nil
}

type ctxKey int

const ctxKeyCaller ctxKey = iota

// CallerFromContext returns the user id resolved by Middleware, or "".
func CallerFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyCaller).(string)
	return v
}

// Middleware rejects unauthenticated requests with 401 and stores the
// resolved caller id on the request context for handlers.
func Middleware(provider Provider) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, err := provider.ResolveCaller(r)
			if err != nil {
				http.Error(w, "missing or invalid Authorization header", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), ctxKeyCaller, caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
