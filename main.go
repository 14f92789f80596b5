package main

import (
	"bitwise74/auth-api/app"
	"bitwise74/auth-api/config"
	"bitwise74/auth-api/internal/service"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	gin.SetMode(gin.ReleaseMode)

	// A missing .env is fine, the environment may already be set
	_ = godotenv.Load()

	cfg, err := config.Setup()
	if errors.Is(err, config.ErrMissingSecret) {
		fmt.Println("WARNING: You haven't set a JWT secret, so one has been generated for you. Please set it as an environment variable (JWT_SECRET) or in the config.toml file.\nYour random JWT secret:\n\n" + config.GenSecret() + "\n\nPaste it into your config.toml file.")
		os.Exit(0)
	}
	if err != nil {
		panic(err)
	}

	if err := app.SetupLogger(cfg.App.LogLevel); err != nil {
		panic(err)
	}
	defer zap.L().Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := app.NewDeps(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize dependencies", zap.Error(err))
	}

	go service.TokenCleanup(ctx, cfg.Cleanup.TokenInterval, d.Store)
	go service.AccountCleanup(ctx, cfg.Cleanup.AccountInterval, cfg.Cleanup.PendingMaxAge, d.Store)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Host.Port),
		Handler:           app.NewRouter(ctx, d),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zap.L().Info("Server starting", zap.String("addr", srv.Addr), zap.Bool("ssl", cfg.Host.SSL.Enabled))

		var err error
		if cfg.Host.SSL.Enabled {
			err = srv.ListenAndServeTLS(cfg.Host.SSL.CertificatePath, cfg.Host.SSL.CertificateKeyPath)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Error("Server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	zap.L().Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zap.L().Error("Failed to shut down cleanly", zap.Error(err))
	}

	if err := d.Close(); err != nil {
		zap.L().Error("Failed to release resources", zap.Error(err))
	}
}
