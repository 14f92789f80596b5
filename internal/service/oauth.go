package service

import (
	"bitwise74/auth-api/config"
	"bitwise74/auth-api/internal/apperr"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// Identity is what a provider vouches for after a successful code exchange.
type Identity struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
}

type OAuthProvider interface {
	Exchange(ctx context.Context, code string) (*Identity, error)
}

type GoogleOAuth struct {
	cfg         *oauth2.Config
	userInfoURL string
	client      *http.Client
}

func NewGoogleOAuth(c config.OAuth) *GoogleOAuth {
	return &GoogleOAuth{
		cfg: &oauth2.Config{
			ClientID:     c.Google.ClientID,
			ClientSecret: c.Google.ClientSecret,
			RedirectURL:  c.Google.RedirectURL,
			Endpoint:     endpoints.Google,
			Scopes:       []string{"openid", "email", "profile"},
		},
		userInfoURL: googleUserInfoURL,
		client:      &http.Client{Timeout: c.Timeout},
	}
}

type googleUserInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

// Exchange trades an authorization code for the user's Google identity.
// A code Google refuses is Unauthorized, anything else going wrong on the
// way is ServiceUnavailable.
func (g *GoogleOAuth) Exchange(ctx context.Context, code string) (*Identity, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, g.client)

	tok, err := g.cfg.Exchange(ctx, code)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil && re.Response.StatusCode < 500 {
			return nil, apperr.Wrap(apperr.KindUnauthorized, "oauth_rejected", "Authorization code rejected", err)
		}
		return nil, apperr.OAuthUnavailable(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userInfoURL, nil)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	res, err := g.cfg.Client(ctx, tok).Do(req)
	if err != nil {
		return nil, apperr.OAuthUnavailable(err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, apperr.OAuthUnavailable(err)
	}

	if res.StatusCode != http.StatusOK {
		return nil, apperr.OAuthUnavailable(fmt.Errorf("userinfo responded with status %d", res.StatusCode))
	}

	var info googleUserInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, apperr.OAuthUnavailable(fmt.Errorf("failed to parse userinfo, %w", err))
	}

	if info.Sub == "" || info.Email == "" {
		return nil, apperr.Wrap(apperr.KindUnauthorized, "oauth_rejected", "Identity provider returned no email", nil)
	}

	return &Identity{
		Subject:       info.Sub,
		Email:         info.Email,
		EmailVerified: info.EmailVerified,
		Name:          info.Name,
	}, nil
}
