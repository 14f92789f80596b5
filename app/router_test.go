package app

import (
	"bitwise74/auth-api/config"
	"bitwise74/auth-api/internal"
	"bitwise74/auth-api/internal/service"
	"bitwise74/auth-api/internal/store"
	"bitwise74/auth-api/internal/testdb"
	"bitwise74/auth-api/pkg/security"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pquerna/otp/totp"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var tokenInLink = regexp.MustCompile(`token=([^\s"&<]+)`)

type mailbox struct {
	mu   sync.Mutex
	sent []*service.Mail
}

func (m *mailbox) Send(_ context.Context, mail *service.Mail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, mail)
	return nil
}

func (m *mailbox) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func (m *mailbox) lastToken(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()

	require.NotEmpty(t, m.sent)
	match := tokenInLink.FindStringSubmatch(m.sent[len(m.sent)-1].Text)
	require.Len(t, match, 2)

	tok, err := url.QueryUnescape(match[1])
	require.NoError(t, err)
	return tok
}

type testServer struct {
	router *gin.Engine
	deps   *internal.Deps
	mail   *mailbox
	// Cookies the "browser" currently holds
	jar map[string]string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	v := viper.New()
	v.Set("jwt.secret", "0123456789abcdef0123456789abcdef")
	cfg, err := config.Load(v)
	require.NoError(t, err)

	gdb := testdb.New(t)
	s := store.New(gdb, 5*time.Second)

	issuer, err := security.NewTokenIssuer(cfg.JWT.KeyID, []byte(cfg.JWT.Secret), nil)
	require.NoError(t, err)

	attempts := service.NewMemoryAttempts(cfg.Security.MaxAttempts, cfg.Security.LockoutWindow)
	mail := &mailbox{}

	d := &internal.Deps{
		Config: cfg,
		DB:     gdb,
		Store:  s,
		Auth: service.NewAuthService(service.AuthDeps{
			Store:    s,
			Argon:    &security.ArgonHash{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32},
			Issuer:   issuer,
			TOTP:     security.NewTOTP(cfg.TOTP.Issuer),
			Mailer:   mail,
			Attempts: attempts,
		}, service.AuthConfigFrom(cfg)),
	}
	t.Cleanup(func() {
		d.Auth.Wait()
		attempts.Close()
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	return &testServer{
		router: NewRouter(ctx, d),
		deps:   d,
		mail:   mail,
		jar:    map[string]string{},
	}
}

// do sends a request carrying the jar's cookies and applies any Set-Cookie
// headers from the response to the jar.
func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for name, value := range ts.jar {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}

	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	for _, c := range w.Result().Cookies() {
		if c.MaxAge < 0 || c.Value == "" {
			delete(ts.jar, c.Name)
			continue
		}
		ts.jar[c.Name] = c.Value
	}

	return w
}

func cookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m), w.Body.String())
	return m
}

func TestAliceEndToEnd(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/auth/register", gin.H{
		"name": "Alice", "email": "alice@example.com", "password": "Secret123!",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	user := decode(t, w)["user"].(map[string]any)
	assert.Equal(t, "PENDING", user["status"])
	assert.NotContains(t, w.Body.String(), "password")

	// Unverified accounts can't log in yet
	w = ts.do(t, http.MethodPost, "/auth/login", gin.H{"email": "alice@example.com", "password": "Secret123!"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid_credentials", decode(t, w)["code"])

	w = ts.do(t, http.MethodGet, "/auth/verify_email?token="+url.QueryEscape(ts.mail.lastToken(t)), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ts.do(t, http.MethodPost, "/auth/login", gin.H{"email": "alice@example.com", "password": "Secret123!"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	access := cookie(w, "access_token")
	refresh := cookie(w, "refresh_token")
	require.NotNil(t, access)
	require.NotNil(t, refresh)

	assert.True(t, access.HttpOnly)
	assert.True(t, refresh.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, access.SameSite)
	assert.Equal(t, "/", access.Path)
	assert.Equal(t, "/auth", refresh.Path)
	assert.Equal(t, int((15 * time.Minute).Seconds()), access.MaxAge)
	assert.Equal(t, int((168 * time.Hour).Seconds()), refresh.MaxAge)

	w = ts.do(t, http.MethodGet, "/auth/me", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice@example.com", decode(t, w)["user"].(map[string]any)["email"])

	w = ts.do(t, http.MethodGet, "/auth/refresh", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	newAccess := cookie(w, "access_token")
	newRefresh := cookie(w, "refresh_token")
	require.NotNil(t, newAccess)
	require.NotNil(t, newRefresh)
	assert.NotEqual(t, refresh.Value, newRefresh.Value)

	// The rotated token is dead
	ts.jar["refresh_token"] = refresh.Value
	w = ts.do(t, http.MethodGet, "/auth/refresh", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid_refresh_token", decode(t, w)["code"])
	cleared := cookie(w, "refresh_token")
	require.NotNil(t, cleared)
	assert.Negative(t, cleared.MaxAge)

	ts.jar["refresh_token"] = newRefresh.Value
	w = ts.do(t, http.MethodPost, "/auth/logout", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, ts.jar)

	ts.jar["refresh_token"] = newRefresh.Value
	w = ts.do(t, http.MethodGet, "/auth/refresh", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRegisterErrors(t *testing.T) {
	ts := newTestServer(t)

	body := gin.H{"name": "Alice", "email": "alice@example.com", "password": "Secret123!"}
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/auth/register", body).Code)

	w := ts.do(t, http.MethodPost, "/auth/register", body)
	require.Equal(t, http.StatusConflict, w.Code)
	res := decode(t, w)
	assert.Equal(t, "email_taken", res["code"])
	assert.NotEmpty(t, res["requestID"])

	w = ts.do(t, http.MethodPost, "/auth/register", gin.H{"name": "Bob", "email": "bob", "password": "Secret123!"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_email", decode(t, w)["code"])

	req := httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVerifyEmailErrors(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/auth/verify_email", gin.H{"token": "unknown"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "token_not_found", decode(t, w)["code"])

	w = ts.do(t, http.MethodGet, "/auth/verify_email", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTwoFactorOverHTTP(t *testing.T) {
	ts := newTestServer(t)

	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/auth/register", gin.H{
		"name": "Alice", "email": "alice@example.com", "password": "Secret123!",
	}).Code)
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/auth/verify_email", gin.H{"token": ts.mail.lastToken(t)}).Code)

	// Needs a session
	w := ts.do(t, http.MethodPost, "/auth/enable_2fa", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/auth/login", gin.H{"email": "alice@example.com", "password": "Secret123!"}).Code)

	w = ts.do(t, http.MethodPost, "/auth/enable_2fa", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	setup := decode(t, w)
	secret := setup["secret"].(string)
	assert.Contains(t, setup["otpauthUrl"], "otpauth://totp/")
	assert.Contains(t, setup["qrCode"], "data:image/png;base64,")

	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)

	w = ts.do(t, http.MethodPost, "/auth/verify_2fa", gin.H{"code": code})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/auth/logout", nil).Code)

	w = ts.do(t, http.MethodPost, "/auth/login", gin.H{"email": "alice@example.com", "password": "Secret123!"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Result().Cookies(), "no cookies before the second factor")

	res := decode(t, w)
	assert.Equal(t, true, res["twoFactorRequired"])
	challenge := res["challengeToken"].(string)

	w = ts.do(t, http.MethodPost, "/auth/verify_2fa", gin.H{"code": "000000", "challengeToken": challenge})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, w.Result().Cookies())

	// Reusing the setup code is refused
	w = ts.do(t, http.MethodPost, "/auth/verify_2fa", gin.H{"code": code, "challengeToken": challenge})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Next time step, still inside the accepted skew
	code, err = totp.GenerateCode(secret, time.Now().Add(30*time.Second))
	require.NoError(t, err)

	w = ts.do(t, http.MethodPost, "/auth/verify_2fa", gin.H{"code": code, "challengeToken": challenge})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotNil(t, cookie(w, "access_token"))
	assert.NotNil(t, cookie(w, "refresh_token"))
}

func TestRequestResetNoEnumeration(t *testing.T) {
	ts := newTestServer(t)

	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/auth/register", gin.H{
		"name": "Alice", "email": "alice@example.com", "password": "Secret123!",
	}).Code)
	sent := ts.mail.count()

	known := ts.do(t, http.MethodPost, "/auth/request_reset", gin.H{"email": "alice@example.com"})
	unknown := ts.do(t, http.MethodPost, "/auth/request_reset", gin.H{"email": "nobody@example.com"})

	assert.Equal(t, http.StatusOK, known.Code)
	assert.Equal(t, known.Code, unknown.Code)
	assert.Equal(t, known.Body.String(), unknown.Body.String())

	ts.deps.Auth.Wait()
	assert.Equal(t, sent+1, ts.mail.count())

	w := ts.do(t, http.MethodPost, "/auth/reset_password", gin.H{"token": ts.mail.lastToken(t), "password": "NewSecret123!"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ts.do(t, http.MethodPost, "/auth/reset_password", gin.H{"token": "forged", "password": "NewSecret123!"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid_reset_token", decode(t, w)["code"])
}

func TestGoogleDisabled(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/auth/google", gin.H{"code": "abc"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "oauth_disabled", decode(t, w)["code"])
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])

	w = ts.do(t, http.MethodHead, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
