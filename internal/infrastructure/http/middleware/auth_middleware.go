package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	apperrors "github.com/Auremas/voxanalyze-mvp/errors"
	"github.com/Auremas/voxanalyze-mvp/internal/domain/entities"
	"github.com/Auremas/voxanalyze-mvp/pkg/jwt"
)

// PrincipalContextKey is the echo context key for the authenticated caller
const PrincipalContextKey = "principal"

// AuthMiddleware validates access tokens and injects the caller
// principal into the request context.
type AuthMiddleware struct {
	jwtManager *jwt.Manager
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(jwtManager *jwt.Manager) *AuthMiddleware {
	return &AuthMiddleware{jwtManager: jwtManager}
}

// Authenticate validates the JWT and sets the principal into context
func (m *AuthMiddleware) Authenticate() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := extractToken(c)
			if token == "" {
				return respondAppError(c, apperrors.ErrUnauthenticated())
			}

			claims, err := m.jwtManager.ValidateAccessToken(token)
			if err != nil {
				if errors.Is(err, jwt.ErrExpired) {
					return respondAppError(c, apperrors.ErrTokenExpired())
				}
				return respondAppError(c, apperrors.ErrInvalidToken())
			}

			c.Set(PrincipalContextKey, entities.Principal{
				UserID: claims.UserID,
				Email:  claims.Email,
				Role:   entities.UserRole(claims.Role),
			})
			return next(c)
		}
	}
}

// RequireRole restricts a route to the given roles. Must run after
// Authenticate.
func (m *AuthMiddleware) RequireRole(roles ...entities.UserRole) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			principal, ok := GetPrincipal(c)
			if !ok {
				return respondAppError(c, apperrors.ErrUnauthenticated())
			}

			for _, role := range roles {
				if principal.Role == role {
					return next(c)
				}
			}
			return respondAppError(c, apperrors.ErrForbidden(c.Request().Method+" "+c.Path()))
		}
	}
}

// GetPrincipal retrieves the authenticated principal from echo context
func GetPrincipal(c echo.Context) (entities.Principal, bool) {
	principal, ok := c.Get(PrincipalContextKey).(entities.Principal)
	return principal, ok
}

// extractToken reads the bearer token from the Authorization header,
// falling back to the access_token cookie.
func extractToken(c echo.Context) string {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
	}

	cookie, err := c.Cookie("access_token")
	if err == nil {
		return cookie.Value
	}
	return ""
}

func respondAppError(c echo.Context, appErr apperrors.AppError) error {
	status := appErr.HTTPCode
	if status == 0 {
		status = http.StatusUnauthorized
	}
	return c.JSON(status, map[string]interface{}{
		"code":    appErr.Code,
		"message": appErr.Message,
	})
}
