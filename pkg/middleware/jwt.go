package middleware

import (
	"bitwise74/auth-api/internal/apperr"
	"bitwise74/auth-api/internal/model"
	"context"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	AccessCookie  = "access_token"
	RefreshCookie = "refresh_token"
)

type Authenticator interface {
	Authenticate(ctx context.Context, raw string) (*model.User, error)
}

// NewJWTMiddleware only lets requests with a valid access token through and
// sets userID for the handlers behind it. The token is read from the
// access_token cookie, falling back to a Bearer header.
func NewJWTMiddleware(a Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := AccessToken(c)
		if raw == "" {
			RespondError(c, apperr.Unauthenticated())
			return
		}

		user, err := a.Authenticate(c.Request.Context(), raw)
		if err != nil {
			RespondError(c, err)
			return
		}

		c.Set("userID", user.ID)
		c.Set("user", user)
		c.Next()
	}
}

// AccessToken reads the access token from the cookie or a Bearer header.
func AccessToken(c *gin.Context) string {
	if v, err := c.Cookie(AccessCookie); err == nil && v != "" {
		return v
	}

	scheme, token, ok := strings.Cut(c.GetHeader("Authorization"), " ")
	if ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return ""
}
