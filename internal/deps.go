package internal

import (
	"bitwise74/auth-api/config"
	"bitwise74/auth-api/internal/service"
	"bitwise74/auth-api/internal/store"
	"errors"
	"io"

	"gorm.io/gorm"
)

// Deps is handed to every handler.
type Deps struct {
	Config *config.Config
	DB     *gorm.DB
	Store  *store.Store
	Auth   *service.AuthService

	// Released by Close, in order
	Closers []io.Closer
}

// Close waits for background mail and releases held connections.
func (d *Deps) Close() error {
	if d.Auth != nil {
		d.Auth.Wait()
	}

	var errs []error
	for _, c := range d.Closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if d.DB != nil {
		if sqlDB, err := d.DB.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}

	return errors.Join(errs...)
}
