// Package config contains code to set the default values and read
// config files to be used throughout the whole application
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	configPath = pflag.String("config", ".", "Directory containing config.toml")

	validLogLevels     = []string{"debug", "info", "warn", "error", "fatal"}
	validDBDrivers     = []string{"sqlite", "postgres"}
	validMailProviders = []string{"smtp", "sendgrid", "log"}
)

// ErrMissingSecret is returned when no JWT secret is configured. The caller
// is expected to print GenSecret() and stop.
var ErrMissingSecret = errors.New("jwt.secret is not set")

type Config struct {
	App      App      `mapstructure:"app"`
	Host     Host     `mapstructure:"host"`
	JWT      JWT      `mapstructure:"jwt"`
	Token    Token    `mapstructure:"token"`
	DB       DB       `mapstructure:"db"`
	Mail     Mail     `mapstructure:"mail"`
	OAuth    OAuth    `mapstructure:"oauth"`
	Security Security `mapstructure:"security"`
	Redis    Redis    `mapstructure:"redis"`
	TOTP     TOTP     `mapstructure:"totp"`
	Cleanup  Cleanup  `mapstructure:"cleanup"`
}

type App struct {
	LogLevel string `mapstructure:"log_level"`
	// Base for links sent in mails, e.g. https://example.com
	PublicURL string `mapstructure:"public_url"`
}

type Host struct {
	Port   int      `mapstructure:"port"`
	Domain string   `mapstructure:"domain"`
	CORS   []string `mapstructure:"cors"`
	SSL    SSL      `mapstructure:"ssl"`
}

type SSL struct {
	Enabled            bool   `mapstructure:"enabled"`
	CertificatePath    string `mapstructure:"certificate_path"`
	CertificateKeyPath string `mapstructure:"certificate_key_path"`
}

type JWT struct {
	Secret string `mapstructure:"secret"`
	KeyID  string `mapstructure:"key_id"`
	// kid=secret pairs still accepted for verification after a rotation
	PreviousSecrets []string      `mapstructure:"previous_secrets"`
	AccessTTL       time.Duration `mapstructure:"access_ttl"`
	RefreshTTL      time.Duration `mapstructure:"refresh_ttl"`
	ResetTTL        time.Duration `mapstructure:"reset_ttl"`
	ChallengeTTL    time.Duration `mapstructure:"challenge_ttl"`
}

type Token struct {
	ConfirmationTTL time.Duration `mapstructure:"confirmation_ttl"`
	ResendCooldown  time.Duration `mapstructure:"resend_cooldown"`
}

type DB struct {
	Driver       string        `mapstructure:"driver"`
	DSN          string        `mapstructure:"dsn"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxOpenConns int           `mapstructure:"max_open_conns"`
}

type Mail struct {
	Provider       string        `mapstructure:"provider"`
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	Sender         string        `mapstructure:"sender"`
	SenderName     string        `mapstructure:"sender_name"`
	SendGridAPIKey string        `mapstructure:"sendgrid_api_key"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

type OAuth struct {
	Google  Google        `mapstructure:"google"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type Google struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURL  string `mapstructure:"redirect_url"`
}

type Security struct {
	RateLimit     int           `mapstructure:"rate_limit"`
	MaxAttempts   int           `mapstructure:"max_attempts"`
	LockoutWindow time.Duration `mapstructure:"lockout_window"`
	Turnstile     Turnstile     `mapstructure:"turnstile"`
}

type Turnstile struct {
	Enabled     bool   `mapstructure:"enabled"`
	SecretToken string `mapstructure:"secret_token"`
}

type Redis struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type TOTP struct {
	Issuer string `mapstructure:"issuer"`
}

type Cleanup struct {
	TokenInterval   time.Duration `mapstructure:"token_interval"`
	AccountInterval time.Duration `mapstructure:"account_interval"`
	PendingMaxAge   time.Duration `mapstructure:"pending_max_age"`
}

var defaults = map[string]any{
	"app.log_level":  "info",
	"app.public_url": "http://localhost:8080",

	"host.port":                     8080,
	"host.domain":                   "localhost",
	"host.cors":                     []string{"http://localhost:5173"},
	"host.ssl.enabled":              false,
	"host.ssl.certificate_path":     "",
	"host.ssl.certificate_key_path": "",

	"jwt.secret":           "",
	"jwt.key_id":           "v1",
	"jwt.previous_secrets": []string{},
	"jwt.access_ttl":       "15m",
	"jwt.refresh_ttl":      "168h",
	"jwt.reset_ttl":        "30m",
	"jwt.challenge_ttl":    "5m",

	"token.confirmation_ttl": "24h",
	"token.resend_cooldown":  "2m",

	"db.driver":         "sqlite",
	"db.dsn":            "database.db",
	"db.timeout":        "5s",
	"db.max_open_conns": 10,

	"mail.provider":         "log",
	"mail.host":             "",
	"mail.port":             587,
	"mail.username":         "",
	"mail.password":         "",
	"mail.sender":           "no-reply@localhost",
	"mail.sender_name":      "Auth API",
	"mail.sendgrid_api_key": "",
	"mail.timeout":          "10s",

	"oauth.google.client_id":     "",
	"oauth.google.client_secret": "",
	"oauth.google.redirect_url":  "",
	"oauth.timeout":              "10s",

	"security.rate_limit":             10,
	"security.max_attempts":           5,
	"security.lockout_window":         "15m",
	"security.turnstile.enabled":      false,
	"security.turnstile.secret_token": "",

	"redis.addr":     "",
	"redis.password": "",
	"redis.db":       0,

	"totp.issuer": "Auth API",

	"cleanup.token_interval":   "1h",
	"cleanup.account_interval": "24h",
	"cleanup.pending_max_age":  "168h",
}

func GenSecret() string {
	b := make([]byte, 64)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// Setup parses flags and loads the configuration through the global viper
// instance.
func Setup() (*Config, error) {
	pflag.Parse()
	viper.BindPFlags(pflag.CommandLine)

	viper.AddConfigPath(*configPath)
	return Load(viper.GetViper())
}

// Load applies defaults and environment bindings to v, reads config.toml if
// one is present and validates the result. Environment variables are the
// upper-cased key with dots replaced, e.g. JWT_SECRET or DB_DSN.
func Load(v *viper.Viper) (*Config, error) {
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, val := range defaults {
		v.SetDefault(key, val)
		v.BindEnv(key)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file, %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to decode config, %w", err)
	}

	if err := c.validate(); err != nil {
		return nil, err
	}

	return &c, nil
}

func (c *Config) validate() error {
	if !slices.Contains(validLogLevels, c.App.LogLevel) {
		return errors.New("invalid log level provided")
	}

	if c.Host.Port <= 0 {
		return errors.New("invalid port provided")
	}

	if len(c.Host.CORS) == 0 {
		return errors.New("no cors origins provided")
	}

	if c.Security.RateLimit <= 0 {
		return errors.New("security.rate_limit must be bigger than 0")
	}

	if c.Host.SSL.Enabled {
		if c.Host.SSL.CertificatePath == "" {
			return errors.New("no ssl certificate path provided")
		}

		if c.Host.SSL.CertificateKeyPath == "" {
			return errors.New("no ssl certificate key path provided")
		}
	}

	if c.JWT.Secret == "" {
		return ErrMissingSecret
	}

	if _, err := c.JWT.Previous(); err != nil {
		return err
	}

	for name, d := range map[string]time.Duration{
		"jwt.access_ttl":           c.JWT.AccessTTL,
		"jwt.refresh_ttl":          c.JWT.RefreshTTL,
		"jwt.reset_ttl":            c.JWT.ResetTTL,
		"jwt.challenge_ttl":        c.JWT.ChallengeTTL,
		"token.confirmation_ttl":   c.Token.ConfirmationTTL,
		"db.timeout":               c.DB.Timeout,
		"mail.timeout":             c.Mail.Timeout,
		"oauth.timeout":            c.OAuth.Timeout,
		"cleanup.token_interval":   c.Cleanup.TokenInterval,
		"cleanup.account_interval": c.Cleanup.AccountInterval,
		"cleanup.pending_max_age":  c.Cleanup.PendingMaxAge,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be bigger than 0", name)
		}
	}

	if c.JWT.RefreshTTL <= c.JWT.AccessTTL {
		return errors.New("jwt.refresh_ttl must be longer than jwt.access_ttl")
	}

	if !slices.Contains(validDBDrivers, c.DB.Driver) {
		return errors.New("invalid database driver provided")
	}

	if c.DB.DSN == "" {
		return errors.New("no database dsn provided")
	}

	switch c.Mail.Provider {
	case "smtp":
		if c.Mail.Host == "" || c.Mail.Port <= 0 {
			return errors.New("smtp mail provider needs mail.host and mail.port")
		}
	case "sendgrid":
		if c.Mail.SendGridAPIKey == "" {
			return errors.New("sendgrid mail provider needs mail.sendgrid_api_key")
		}
	}

	if !slices.Contains(validMailProviders, c.Mail.Provider) {
		return errors.New("invalid mail provider provided")
	}

	if c.Mail.Sender == "" {
		return errors.New("no mail sender address provided")
	}

	if c.Security.MaxAttempts <= 0 || c.Security.LockoutWindow <= 0 {
		return errors.New("security.max_attempts and security.lockout_window must be bigger than 0")
	}

	if c.Security.Turnstile.Enabled && c.Security.Turnstile.SecretToken == "" {
		return errors.New("turnstile secret token is missing")
	}

	return nil
}

// Previous parses PreviousSecrets into a kid -> secret map.
func (j JWT) Previous() (map[string][]byte, error) {
	out := make(map[string][]byte, len(j.PreviousSecrets))
	for _, pair := range j.PreviousSecrets {
		kid, secret, ok := strings.Cut(pair, "=")
		if !ok || kid == "" || secret == "" {
			return nil, fmt.Errorf("invalid jwt.previous_secrets entry %q, want kid=secret", pair)
		}
		if kid == j.KeyID {
			return nil, fmt.Errorf("jwt.previous_secrets reuses active key id %q", kid)
		}
		out[kid] = []byte(secret)
	}
	return out, nil
}

// GoogleEnabled reports whether Google sign-in has credentials.
func (o OAuth) GoogleEnabled() bool {
	return o.Google.ClientID != "" && o.Google.ClientSecret != ""
}
