package auth

import (
	"bitwise74/auth-api/internal"
	"bitwise74/auth-api/internal/service"
	"bitwise74/auth-api/pkg/middleware"
	"net/http"

	"github.com/gin-gonic/gin"
)

type registerBody struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func Register(c *gin.Context, d *internal.Deps) {
	var data registerBody
	if !bind(c, &data) {
		return
	}

	user, err := d.Auth.Register(c.Request.Context(), service.RegisterInput{
		Name:     data.Name,
		Email:    data.Email,
		Password: data.Password,
	})
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"user": viewOf(user),
	})
}

type emailBody struct {
	Email string `json:"email"`
}

func ResendVerification(c *gin.Context, d *internal.Deps) {
	var data emailBody
	if !bind(c, &data) {
		return
	}

	if err := d.Auth.ResendVerification(c.Request.Context(), data.Email); err != nil {
		middleware.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "If the account exists and is not verified yet, a new link is on its way",
	})
}
