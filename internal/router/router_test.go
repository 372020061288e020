package router

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/FACorreiaa/go-docanalysis-auth/app/observability/metrics"
	"github.com/FACorreiaa/go-docanalysis-auth/config"
	"github.com/FACorreiaa/go-docanalysis-auth/internal/api/auth"
)

func newTestRouter(t *testing.T, rateLimit int) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := auth.NewMemoryStore(auth.NewBcryptHasher(bcrypt.MinCost), logger)
	require.NoError(t, err)

	metrics.InitAppMetrics()
	service := auth.NewAuthService(store,
		auth.NewTokenManager(config.JWTConfig{SecretKey: "secret", Issuer: "test", AccessTokenTTL: time.Hour}),
		auth.NewTokenDenylist(time.Minute), metrics.Get(), logger)

	return SetupRouter(&Config{
		AuthHandler:    auth.NewAuthHandler(service, logger),
		TokenValidator: service,
		Logger:         logger,
		Backend:        store.Backend(),
		AllowedOrigins: []string{"http://localhost:5173"},
		LoginRateLimit: rateLimit,
		Timeout:        5 * time.Second,
	})
}

func do(t *testing.T, h http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoints(t *testing.T) {
	h := newTestRouter(t, 0)

	w := do(t, h, http.MethodGet, "/ping", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())

	w = do(t, h, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","backend":"memory"}`, w.Body.String())
}

func TestProtectedRoutes(t *testing.T) {
	h := newTestRouter(t, 0)

	w := do(t, h, http.MethodGet, "/api/v1/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, h, http.MethodGet, "/api/v1/admin/users", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, h, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email": "user@example.com", "username": "user", "password": "secret1",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(t, h, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "user@example.com", "password": "secret1",
	})
	require.Equal(t, http.StatusOK, w.Code)
	var login struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))

	w = do(t, h, http.MethodGet, "/api/v1/auth/me", login.AccessToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, http.MethodGet, "/api/v1/admin/users", login.AccessToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestLoginRateLimit(t *testing.T) {
	h := newTestRouter(t, 2)
	creds := map[string]string{"email": "nobody@example.com", "password": "whatever"}

	for i := 0; i < 2; i++ {
		w := do(t, h, http.MethodPost, "/api/v1/auth/login", "", creds)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	}
	w := do(t, h, http.MethodPost, "/api/v1/auth/login", "", creds)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	h := newTestRouter(t, 0)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/auth/login", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
}
