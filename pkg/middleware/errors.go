package middleware

import (
	"bitwise74/auth-api/internal/apperr"
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RespondError aborts the request with the JSON error body every endpoint
// shares. Causes are logged, never sent to the client.
func RespondError(c *gin.Context, err error) {
	requestID := c.GetString("requestID")

	var ae *apperr.Error
	if !errors.As(err, &ae) {
		ae = apperr.Internal(err)
	}

	switch ae.Kind {
	case apperr.KindInternal:
		zap.L().Error("Request failed", zap.Error(err), zap.String("requestID", requestID))
	case apperr.KindUnavailable:
		zap.L().Warn("Dependency unavailable", zap.Error(err), zap.String("requestID", requestID))
	}

	c.AbortWithStatusJSON(apperr.Status(ae.Kind), gin.H{
		"error":     ae.Message,
		"code":      ae.Code,
		"requestID": requestID,
	})
}
