package auth

import (
	"bitwise74/auth-api/internal"
	"bitwise74/auth-api/pkg/middleware"
	"net/http"

	"github.com/gin-gonic/gin"
)

func RequestReset(c *gin.Context, d *internal.Deps) {
	var data emailBody
	if !bind(c, &data) {
		return
	}

	if err := d.Auth.RequestPasswordReset(c.Request.Context(), data.Email); err != nil {
		middleware.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "If an account with that email exists, a reset link is on its way",
	})
}

type resetBody struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func ResetPassword(c *gin.Context, d *internal.Deps) {
	var data resetBody
	if !bind(c, &data) {
		return
	}

	if err := d.Auth.ResetPassword(c.Request.Context(), data.Token, data.Password); err != nil {
		middleware.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Password updated",
	})
}
