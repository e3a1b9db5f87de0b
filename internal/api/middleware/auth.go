package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/airsense/airsense/internal/api/models"
	"github.com/airsense/airsense/internal/auth"
)

type claimsKey struct{}

type requestInfoKey struct{}

// requestInfo is filled in by inner middleware and read by Logger after the
// handler returns.
type requestInfo struct {
	clientID string
}

func withRequestInfo(ctx context.Context, info *requestInfo) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, info)
}

// attachRequestInfo returns the requestInfo of r, adding one to its context
// when the outermost middleware has not done so yet.
func attachRequestInfo(r *http.Request) (*requestInfo, *http.Request) {
	if info, ok := r.Context().Value(requestInfoKey{}).(*requestInfo); ok {
		return info, r
	}
	info := &requestInfo{}
	return info, r.WithContext(withRequestInfo(r.Context(), info))
}

// TokenValidator validates bearer tokens.
type TokenValidator interface {
	Validate(token string) (*auth.Claims, error)
}

// Auth validates the bearer token and requires scope when it is not empty.
func Auth(tokens TokenValidator, scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				writeUnauthorized(w, r, "missing or malformed bearer token")
				return
			}

			claims, err := tokens.Validate(tokenString)
			if err != nil {
				switch {
				case errors.Is(err, auth.ErrTokenExpired):
					writeUnauthorized(w, r, "access token has expired")
				default:
					writeUnauthorized(w, r, "invalid access token")
				}
				return
			}

			if info, ok := r.Context().Value(requestInfoKey{}).(*requestInfo); ok {
				info.clientID = claims.ClientID()
			}

			if scope != "" {
				if err := claims.RequireScope(scope); err != nil {
					problem := models.NewForbidden(GetRequestID(r.Context()), err.Error())
					problem.Instance = r.URL.Path
					problem.Write(w)
					return
				}
			}

			ctx := context.WithValue(r.Context(), claimsKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

// writeUnauthorized lives here because the response package imports this one.
func writeUnauthorized(w http.ResponseWriter, r *http.Request, detail string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="airsense"`)
	problem := models.NewUnauthorized(GetRequestID(r.Context()), detail)
	problem.Instance = r.URL.Path
	problem.Write(w)
}

// GetClaims returns the validated token claims, or nil.
func GetClaims(ctx context.Context) *auth.Claims {
	if c, ok := ctx.Value(claimsKey{}).(*auth.Claims); ok {
		return c
	}
	return nil
}

// GetClientID returns the authenticated client ID, or "".
func GetClientID(ctx context.Context) string {
	if c := GetClaims(ctx); c != nil {
		return c.ClientID()
	}
	return ""
}
