package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/plateful/marketplace-api/internal/domain/auth"
)

// actorKey is the context key for the authenticated actor.
type actorKey struct{}

// ActorFromContext extracts the authenticated actor from the context.
func ActorFromContext(ctx context.Context) (auth.Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(auth.Actor)
	return a, ok
}

// Authenticator validates bearer tokens and exposes route middleware for
// authentication and role checks.
type Authenticator struct {
	secret []byte
}

// NewAuthenticator creates an Authenticator verifying HS256 tokens signed
// with the given secret.
func NewAuthenticator(secret []byte) *Authenticator {
	return &Authenticator{secret: secret}
}

// Require rejects requests without a valid bearer token and stores the
// actor (user id + role from the token claims) in the request context.
func (a *Authenticator) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		actor, err := a.parse(raw)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), actorKey{}, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole rejects authenticated requests whose actor does not hold the
// given role.
func (a *Authenticator) RequireRole(role auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFromContext(r.Context())
			if !ok || !actor.Is(role) {
				writeError(w, http.StatusForbidden,
					fmt.Sprintf("access denied: %s role required", role))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// parse verifies the token signature and extracts the actor claims.
func (a *Authenticator) parse(raw string) (auth.Actor, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return auth.Actor{}, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return auth.Actor{}, jwt.ErrTokenInvalidClaims
	}

	sub, _ := claims["sub"].(string)
	role, _ := claims["role"].(string)
	if sub == "" || role == "" {
		return auth.Actor{}, jwt.ErrTokenInvalidClaims
	}

	return auth.Actor{UserID: sub, Role: auth.Role(role)}, nil
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(h, prefix) {
		return "", false
	}
	return strings.TrimSpace(h[len(prefix):]), true
}
