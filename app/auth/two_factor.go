package auth

import (
	"bitwise74/auth-api/internal"
	"bitwise74/auth-api/pkg/middleware"
	"net/http"

	"github.com/gin-gonic/gin"
)

func EnableTwoFactor(c *gin.Context, d *internal.Deps) {
	key, err := d.Auth.EnableTwoFactor(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"secret":     key.Secret,
		"otpauthUrl": key.URL,
		"qrCode":     key.QRCode,
	})
}

type verifyTwoFactorBody struct {
	Code           string `json:"code"`
	ChallengeToken string `json:"challengeToken"`
}

// VerifyTwoFactor answers a login challenge when one is given. Otherwise the
// caller must be signed in and the code confirms a pending setup.
func VerifyTwoFactor(c *gin.Context, d *internal.Deps) {
	var data verifyTwoFactorBody
	if !bind(c, &data) {
		return
	}

	ctx := c.Request.Context()

	if data.ChallengeToken != "" {
		sess, err := d.Auth.CompleteTwoFactorLogin(ctx, data.ChallengeToken, data.Code)
		if err != nil {
			middleware.RespondError(c, err)
			return
		}

		setSession(c, d, sess)
		c.JSON(http.StatusOK, gin.H{
			"user": viewOf(sess.User),
		})
		return
	}

	user, err := d.Auth.Authenticate(ctx, middleware.AccessToken(c))
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.Set("userID", user.ID)

	if err := d.Auth.ConfirmTwoFactor(ctx, user.ID, data.Code); err != nil {
		middleware.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"twoFactorEnabled": true,
	})
}
