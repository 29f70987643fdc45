package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/warp/commission-engine/commission"
)

// =============================================================================
// TENANT SCOPE - Every grid, policy and quote call runs inside one scope
// =============================================================================

// ScopeHeader carries the scope when no JWT secret is configured.
const ScopeHeader = "X-Org-ID"

// ScopeClaim is the JWT claim holding the scope.
const ScopeClaim = "org_id"

var errMissingScope = errors.New("missing organization scope")

type scopeKey struct{}

// WithScope returns a context carrying scope.
func WithScope(ctx context.Context, scope commission.Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, scope)
}

// ScopeFrom returns the request's scope, or "" outside RequireScope.
func ScopeFrom(ctx context.Context) commission.Scope {
	scope, _ := ctx.Value(scopeKey{}).(commission.Scope)
	return scope
}

// RequireScope resolves the tenant scope and rejects the request with 401
// when there is none. With a secret, the scope comes only from a verified
// HS256 bearer token; the header is ignored.
func RequireScope(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var (
				scope commission.Scope
				err   error
			)
			if secret != "" {
				scope, err = scopeFromToken(r, []byte(secret))
			} else {
				scope = commission.Scope(strings.TrimSpace(r.Header.Get(ScopeHeader)))
				if scope == "" {
					err = errMissingScope
				}
			}
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Unauthorized", err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithScope(r.Context(), scope)))
		})
	}
}

func scopeFromToken(r *http.Request, secret []byte) (commission.Scope, error) {
	header := r.Header.Get("Authorization")
	tokenString, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(tokenString) == "" {
		return "", errors.New("missing bearer token")
	}

	token, err := jwt.Parse(strings.TrimSpace(tokenString), func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", errors.New("invalid token claims")
	}
	orgID, _ := claims[ScopeClaim].(string)
	if strings.TrimSpace(orgID) == "" {
		return "", errMissingScope
	}
	return commission.Scope(strings.TrimSpace(orgID)), nil
}

// SignScopeToken issues an HS256 token for scope. Used by tests and local tooling.
func SignScopeToken(secret string, scope commission.Scope, claims jwt.MapClaims) (string, error) {
	mc := jwt.MapClaims{ScopeClaim: string(scope)}
	for k, v := range claims {
		mc[k] = v
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, mc).SignedString([]byte(secret))
}
