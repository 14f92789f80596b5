package app

import (
	"bitwise74/auth-api/app/auth"
	"bitwise74/auth-api/app/root"
	"bitwise74/auth-api/internal"
	"bitwise74/auth-api/pkg/middleware"
	"context"
	"time"

	cache "github.com/chenyahui/gin-cache"
	"github.com/chenyahui/gin-cache/persist"
	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewRouter wires every endpoint. Background work owned by the router stops
// with ctx.
func NewRouter(ctx context.Context, d *internal.Deps) *gin.Engine {
	router := gin.New()

	router.Use(
		cors.New(cors.Config{
			AllowOrigins:     d.Config.Host.CORS,
			AllowMethods:     []string{"GET", "POST", "HEAD", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "TurnstileToken"},
			ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
		gin.Recovery(),
		middleware.NewRequestIDMiddleware(),
		ginzap.GinzapWithConfig(zap.L(), &ginzap.Config{
			TimeFormat: "15:04:05.000",
			UTC:        true,
			Skipper: func(c *gin.Context) bool {
				return c.Request.Method == "HEAD"
			},
			Context: func(c *gin.Context) []zapcore.Field {
				fields := []zapcore.Field{}

				if v := c.GetString("requestID"); v != "" {
					fields = append(fields, zap.String("request_id", v))
				}

				if v := c.GetString("userID"); v != "" {
					fields = append(fields, zap.String("userID", v))
				}

				return fields
			},
		}),
	)

	router.HandleMethodNotAllowed = true

	jwt := middleware.NewJWTMiddleware(d.Auth)
	turnstile := middleware.NewTurnstileMiddleware(middleware.TurnstileConfig{
		Enabled:     d.Config.Security.Turnstile.Enabled,
		SecretToken: d.Config.Security.Turnstile.SecretToken,
	})

	limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		RequestsPerSecond: d.Config.Security.RateLimit,
		Burst:             d.Config.Security.RateLimit * 2,
	})
	go limiter.Cleanup(ctx)

	healthCache := persist.NewMemoryStore(time.Minute)

	// HEAD /health			-> Used to check if the server is alive
	router.HEAD("/health", func(c *gin.Context) { root.Health(c, d) })

	// GET /health			-> Same, with a JSON body
	router.GET("/health", cache.CacheByRequestURI(healthCache, 5*time.Second), func(c *gin.Context) { root.Health(c, d) })

	a := router.Group("/auth", limiter.Middleware(), middleware.BodySizeLimiter(1<<20))
	{
		// POST /auth/register			-> Creates a pending account and mails a confirmation link
		a.POST("/register", turnstile, func(c *gin.Context) { auth.Register(c, d) })

		// POST|GET /auth/verify_email		-> Activates an account
		a.POST("/verify_email", func(c *gin.Context) { auth.VerifyEmail(c, d) })
		a.GET("/verify_email", func(c *gin.Context) { auth.VerifyEmail(c, d) })

		// POST /auth/resend_verification	-> Mails a fresh confirmation link
		a.POST("/resend_verification", turnstile, func(c *gin.Context) { auth.ResendVerification(c, d) })

		// POST /auth/login			-> Sets session cookies or returns a 2FA challenge
		a.POST("/login", func(c *gin.Context) { auth.Login(c, d) })

		// POST /auth/google			-> Signs in with a Google authorization code
		a.POST("/google", func(c *gin.Context) { auth.Google(c, d) })

		// GET /auth/refresh			-> Rotates the refresh token and sets new cookies
		a.GET("/refresh", func(c *gin.Context) { auth.Refresh(c, d) })

		// POST /auth/logout			-> Revokes the refresh token and clears cookies
		a.POST("/logout", func(c *gin.Context) { auth.Logout(c, d) })

		// POST /auth/enable_2fa		-> Starts two-factor setup
		a.POST("/enable_2fa", jwt, func(c *gin.Context) { auth.EnableTwoFactor(c, d) })

		// POST /auth/verify_2fa		-> Confirms setup or answers a login challenge
		a.POST("/verify_2fa", func(c *gin.Context) { auth.VerifyTwoFactor(c, d) })

		// POST /auth/request_reset		-> Mails a password reset link
		a.POST("/request_reset", turnstile, func(c *gin.Context) { auth.RequestReset(c, d) })

		// POST /auth/reset_password		-> Sets a new password from a reset link
		a.POST("/reset_password", func(c *gin.Context) { auth.ResetPassword(c, d) })

		// GET /auth/me				-> Returns the signed in user
		a.GET("/me", jwt, func(c *gin.Context) { auth.Me(c, d) })
	}

	return router
}
