package root

import (
	"bitwise74/auth-api/internal"
	"bitwise74/auth-api/pkg/middleware"
	"net/http"

	"github.com/gin-gonic/gin"
)

func Health(c *gin.Context, d *internal.Deps) {
	if err := d.Store.Ping(c.Request.Context()); err != nil {
		middleware.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}
