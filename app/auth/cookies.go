// Package auth contains the /auth endpoints
package auth

import (
	"bitwise74/auth-api/internal"
	"bitwise74/auth-api/internal/apperr"
	"bitwise74/auth-api/internal/model"
	"bitwise74/auth-api/internal/service"
	"bitwise74/auth-api/pkg/middleware"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const refreshPath = "/auth"

type userView struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Email            string `json:"email"`
	Status           string `json:"status"`
	TwoFactorEnabled bool   `json:"twoFactorEnabled"`
}

func viewOf(u *model.User) userView {
	return userView{
		ID:               u.ID,
		Name:             u.Name,
		Email:            u.Email,
		Status:           string(u.Status),
		TwoFactorEnabled: u.TwoFactorEnabled,
	}
}

func setCookie(c *gin.Context, d *internal.Deps, name, value, path string, ttl time.Duration) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		MaxAge:   int(ttl / time.Second),
		Secure:   d.Config.Host.SSL.Enabled,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func setSession(c *gin.Context, d *internal.Deps, s *service.Session) {
	setCookie(c, d, middleware.AccessCookie, s.AccessToken, "/", d.Config.JWT.AccessTTL)
	setCookie(c, d, middleware.RefreshCookie, s.RefreshToken, refreshPath, d.Config.JWT.RefreshTTL)
}

// A negative MaxAge tells the browser to drop the cookie now.
func clearRefresh(c *gin.Context, d *internal.Deps) {
	setCookie(c, d, middleware.RefreshCookie, "", refreshPath, -time.Second)
}

func clearSession(c *gin.Context, d *internal.Deps) {
	setCookie(c, d, middleware.AccessCookie, "", "/", -time.Second)
	clearRefresh(c, d)
}

// respondLogin either sets the session cookies or hands back the 2FA
// challenge, never both.
func respondLogin(c *gin.Context, d *internal.Deps, res *service.LoginResult) {
	if res.TwoFactorRequired() {
		c.JSON(http.StatusOK, gin.H{
			"twoFactorRequired": true,
			"challengeToken":    res.ChallengeToken,
			"expiresAt":         res.ChallengeExpiresAt,
		})
		return
	}

	setSession(c, d, res.Session)
	c.JSON(http.StatusOK, gin.H{
		"user": viewOf(res.Session.User),
	})
}

func bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		middleware.RespondError(c, apperr.Validation("invalid_body", "Invalid request body"))
		return false
	}
	return true
}
