package service

import (
	"bitwise74/auth-api/config"
	"bitwise74/auth-api/internal/apperr"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type fakeGoogle struct {
	tokenStatus    int
	userInfoStatus int
	userInfo       map[string]any
}

func (f *fakeGoogle) server(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.Form.Get("grant_type"))

		w.Header().Set("Content-Type", "application/json")
		if f.tokenStatus != http.StatusOK {
			w.WriteHeader(f.tokenStatus)
			w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Write([]byte(`{"access_token":"at-123","token_type":"Bearer","expires_in":3600}`))
	})

	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer at-123", r.Header.Get("Authorization"))

		w.WriteHeader(f.userInfoStatus)
		json.NewEncoder(w).Encode(f.userInfo)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestGoogle(srv *httptest.Server) *GoogleOAuth {
	g := NewGoogleOAuth(config.OAuth{
		Google:  config.Google{ClientID: "id", ClientSecret: "secret", RedirectURL: "http://localhost/cb"},
		Timeout: 2 * time.Second,
	})
	g.cfg.Endpoint = oauth2.Endpoint{TokenURL: srv.URL + "/token", AuthStyle: oauth2.AuthStyleInParams}
	g.userInfoURL = srv.URL + "/userinfo"
	return g
}

func TestGoogleExchange(t *testing.T) {
	f := &fakeGoogle{
		tokenStatus:    http.StatusOK,
		userInfoStatus: http.StatusOK,
		userInfo:       map[string]any{"sub": "g-1", "email": "alice@example.com", "email_verified": true, "name": "Alice"},
	}
	g := newTestGoogle(f.server(t))

	id, err := g.Exchange(context.Background(), "good-code")
	require.NoError(t, err)
	assert.Equal(t, &Identity{Subject: "g-1", Email: "alice@example.com", EmailVerified: true, Name: "Alice"}, id)
}

func TestGoogleExchangeRejectedCode(t *testing.T) {
	f := &fakeGoogle{tokenStatus: http.StatusBadRequest}
	g := newTestGoogle(f.server(t))

	_, err := g.Exchange(context.Background(), "bad-code")
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
	assert.True(t, apperr.Is(err, "oauth_rejected"))
}

func TestGoogleExchangeProviderDown(t *testing.T) {
	f := &fakeGoogle{tokenStatus: http.StatusBadGateway}
	g := newTestGoogle(f.server(t))

	_, err := g.Exchange(context.Background(), "code")
	assert.Equal(t, apperr.KindUnavailable, apperr.KindOf(err))
}

func TestGoogleExchangeUserInfoFailure(t *testing.T) {
	f := &fakeGoogle{tokenStatus: http.StatusOK, userInfoStatus: http.StatusInternalServerError, userInfo: map[string]any{}}
	g := newTestGoogle(f.server(t))

	_, err := g.Exchange(context.Background(), "code")
	assert.True(t, apperr.Is(err, "oauth_unavailable"))
}

func TestGoogleExchangeNetworkError(t *testing.T) {
	f := &fakeGoogle{}
	srv := f.server(t)
	g := newTestGoogle(srv)
	srv.Close()

	_, err := g.Exchange(context.Background(), "code")
	assert.Equal(t, apperr.KindUnavailable, apperr.KindOf(err))
}
