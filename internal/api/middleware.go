package api

import (
	"context"
	"net/http"
	"strings"

	"coursehub/internal/auth"
	"coursehub/internal/models"
)

type contextKey string

const claimsKey contextKey = "claims"

type AuthMiddleware struct {
	jwtService *auth.JWTService
}

func NewAuthMiddleware(jwtService *auth.JWTService) *AuthMiddleware {
	return &AuthMiddleware{jwtService: jwtService}
}

// RequireAuth accepts "Bearer <jwt>" as well as a bare token in the
// Authorization header.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
		if authHeader == "" {
			unauthorized(w, "Authorization header required")
			return
		}

		token := authHeader
		if scheme, rest, ok := strings.Cut(authHeader, " "); ok {
			if !strings.EqualFold(scheme, "bearer") {
				unauthorized(w, "Invalid authorization header format")
				return
			}
			token = strings.TrimSpace(rest)
		}

		claims, err := m.jwtService.ValidateToken(token)
		if err != nil {
			unauthorized(w, "Invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole must run after RequireAuth.
func RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetClaims(r)
			if claims == nil {
				unauthorized(w, "Authentication required")
				return
			}
			for _, role := range roles {
				if claims.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			forbidden(w, "Insufficient role for this action")
		})
	}
}

func GetClaims(r *http.Request) *auth.Claims {
	if v := r.Context().Value(claimsKey); v != nil {
		if claims, ok := v.(*auth.Claims); ok {
			return claims
		}
	}
	return nil
}

// canActFor reports whether the caller may read or change data owned by
// userID. Admins act for anyone; users only for themselves.
func canActFor(r *http.Request, userID string) bool {
	claims := GetClaims(r)
	if claims == nil {
		return false
	}
	if claims.Role == models.RoleAdmin {
		return true
	}
	return claims.UserID != "" && claims.UserID == userID
}

// senderForRole maps a token role to the chat side it speaks for.
// Instructors have no chat identity.
func senderForRole(role models.Role) (models.Sender, bool) {
	switch role {
	case models.RoleUser:
		return models.SenderUser, true
	case models.RoleAdmin:
		return models.SenderAdmin, true
	default:
		return "", false
	}
}
