package auth

import (
	"bitwise74/auth-api/internal"
	"bitwise74/auth-api/pkg/middleware"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type loginBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func Login(c *gin.Context, d *internal.Deps) {
	var data loginBody
	if !bind(c, &data) {
		return
	}

	res, err := d.Auth.Login(c.Request.Context(), data.Email, data.Password)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	respondLogin(c, d, res)
}

type googleBody struct {
	Code string `json:"code"`
}

func Google(c *gin.Context, d *internal.Deps) {
	var data googleBody
	if !bind(c, &data) {
		return
	}

	res, err := d.Auth.GoogleLogin(c.Request.Context(), data.Code)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	respondLogin(c, d, res)
}

func Refresh(c *gin.Context, d *internal.Deps) {
	raw, _ := c.Cookie(middleware.RefreshCookie)

	sess, err := d.Auth.Refresh(c.Request.Context(), raw)
	if err != nil {
		clearRefresh(c, d)
		middleware.RespondError(c, err)
		return
	}

	setSession(c, d, sess)
	c.JSON(http.StatusOK, gin.H{
		"user": viewOf(sess.User),
	})
}

func Logout(c *gin.Context, d *internal.Deps) {
	raw, _ := c.Cookie(middleware.RefreshCookie)

	if err := d.Auth.Logout(c.Request.Context(), raw); err != nil {
		zap.L().Warn("Failed to revoke refresh token", zap.Error(err), zap.String("requestID", c.GetString("requestID")))
	}

	clearSession(c, d)
	c.JSON(http.StatusOK, gin.H{
		"message": "Logged out",
	})
}

func Me(c *gin.Context, d *internal.Deps) {
	user, err := d.Auth.Me(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user": viewOf(user),
	})
}
