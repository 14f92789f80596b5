package middleware

import (
	"bitwise74/auth-api/internal/apperr"
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const turnstileVerifyURL = "https://challenges.cloudflare.com/turnstile/v0/siteverify"

type turnstileResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
}

type TurnstileConfig struct {
	Enabled     bool
	SecretToken string
	// Defaults to Cloudflare's siteverify endpoint
	VerifyURL string
	Client    *http.Client
}

// NewTurnstileMiddleware checks the TurnstileToken header against Cloudflare
// before letting the request through. It is a no-op when disabled.
func NewTurnstileMiddleware(cfg TurnstileConfig) gin.HandlerFunc {
	if cfg.VerifyURL == "" {
		cfg.VerifyURL = turnstileVerifyURL
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 5 * time.Second}
	}

	return func(c *gin.Context) {
		if !cfg.Enabled {
			c.Next()
			return
		}

		token := c.Request.Header.Get("TurnstileToken")
		if token == "" {
			RespondError(c, apperr.Validation("turnstile_missing", "Missing or invalid turnstile token"))
			return
		}

		jsonBody, err := json.Marshal(gin.H{
			"secret":   cfg.SecretToken,
			"response": token,
			"remoteip": c.ClientIP(),
		})
		if err != nil {
			RespondError(c, apperr.Internal(err))
			return
		}

		req, err := http.NewRequestWithContext(c.Request.Context(), http.MethodPost, cfg.VerifyURL, bytes.NewReader(jsonBody))
		if err != nil {
			RespondError(c, apperr.Internal(err))
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := cfg.Client.Do(req)
		if err != nil {
			RespondError(c, apperr.Wrap(apperr.KindUnavailable, "turnstile_unavailable", "Captcha verification unavailable", err))
			return
		}
		defer resp.Body.Close()

		var res turnstileResponse
		if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
			RespondError(c, apperr.Wrap(apperr.KindUnavailable, "turnstile_unavailable", "Captcha verification unavailable", err))
			return
		}

		if !res.Success {
			zap.L().Debug("Turnstile rejected token", zap.Strings("codes", res.ErrorCodes))
			RespondError(c, apperr.New(apperr.KindUnauthorized, "turnstile_failed", "Captcha verification failed"))
			return
		}

		c.Next()
	}
}
