package auth

import (
	"bitwise74/auth-api/internal"
	"bitwise74/auth-api/pkg/middleware"
	"net/http"

	"github.com/gin-gonic/gin"
)

type tokenBody struct {
	Token string `json:"token"`
}

// VerifyEmail accepts the token from the mailed link as a query parameter
// or from a JSON body.
func VerifyEmail(c *gin.Context, d *internal.Deps) {
	token := c.Query("token")
	if c.Request.Method == http.MethodPost && token == "" {
		var data tokenBody
		if !bind(c, &data) {
			return
		}
		token = data.Token
	}

	if err := d.Auth.VerifyEmail(c.Request.Context(), token); err != nil {
		middleware.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Email verified",
	})
}
