package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alfagnish/users-api/internal/config"
	"github.com/alfagnish/users-api/internal/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type envelope struct {
	Success bool            `json:"success"`
	Count   *int            `json:"count"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Stack   string          `json:"stack"`
}

func testConfig() *config.Config {
	return &config.Config{
		ListenAddr:     ":0",
		FrontendURL:    "http://localhost:3000",
		Env:            "production",
		LogLevel:       "info",
		MaxJSONBodyMB:  10,
		RateLimitBurst: 20,
	}
}

func newTestServer(t *testing.T, cfg *config.Config) http.Handler {
	t.Helper()
	return New(cfg, users.NewSeededStore(), zap.NewNop())
}

func do(t *testing.T, h http.Handler, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func TestHealth(t *testing.T) {
	h := newTestServer(t, testConfig())

	rec, env := do(t, h, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"message":"Servidor OK"}`, rec.Body.String())
	assert.True(t, env.Success)
}

func TestListUsers(t *testing.T) {
	h := newTestServer(t, testConfig())

	rec, env := do(t, h, http.MethodGet, "/api/users", "")

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, env.Count)
	assert.Equal(t, 3, *env.Count)

	var data []users.User
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Len(t, data, 3)
	assert.Equal(t, "Juan Pérez", data[0].Name)
}

func TestCreateThenGet(t *testing.T) {
	h := newTestServer(t, testConfig())

	rec, env := do(t, h, http.MethodPost, "/api/users", `{"name":"Ana","email":"ana@x.com","age":22}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created users.User
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, 4, created.ID)
	assert.Equal(t, "Ana", created.Name)
	assert.Equal(t, 22.0, created.Age)

	rec, env = do(t, h, http.MethodGet, "/api/users/4", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var fetched users.User
	require.NoError(t, json.Unmarshal(env.Data, &fetched))
	assert.Equal(t, created.ID, fetched.ID)
	assert.Equal(t, created.Email, fetched.Email)
	assert.True(t, created.CreatedAt.Time().Equal(fetched.CreatedAt.Time()))
}

func TestCreateMissingFields(t *testing.T) {
	h := newTestServer(t, testConfig())

	rec, _ := do(t, h, http.MethodPost, "/api/users", `{"name":"Ana"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":"Por favor proporciona name, email y age"}`, rec.Body.String())
}

func TestCreateDuplicateEmailIs500(t *testing.T) {
	h := newTestServer(t, testConfig())

	rec, env := do(t, h, http.MethodPost, "/api/users", `{"name":"Otro Juan","email":"juan@email.com","age":40}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "El email ya está registrado", env.Error)
	assert.Empty(t, env.Stack)
}

func TestGetUnknownUser(t *testing.T) {
	h := newTestServer(t, testConfig())

	for _, target := range []string{"/api/users/999", "/api/users/abc"} {
		rec, _ := do(t, h, http.MethodGet, target, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, target)
		assert.JSONEq(t, `{"success":false,"error":"Usuario no encontrado"}`, rec.Body.String(), target)
	}
}

func TestUpdateUser(t *testing.T) {
	h := newTestServer(t, testConfig())

	rec, env := do(t, h, http.MethodPut, "/api/users/2", `{"age":31,"id":99}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var u users.User
	require.NoError(t, json.Unmarshal(env.Data, &u))
	assert.Equal(t, 2, u.ID)
	assert.Equal(t, "María García", u.Name)
	assert.Equal(t, 31.0, u.Age)

	rec, _ = do(t, h, http.MethodPut, "/api/users/999", `{"age":31}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteThenGet(t *testing.T) {
	h := newTestServer(t, testConfig())

	rec, _ := do(t, h, http.MethodDelete, "/api/users/1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"message":"Usuario eliminado"}`, rec.Body.String())

	rec, _ = do(t, h, http.MethodGet, "/api/users/1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, h, http.MethodDelete, "/api/users/1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUnknownRoute(t *testing.T) {
	h := newTestServer(t, testConfig())

	tests := []struct {
		method, target, want string
	}{
		{http.MethodGet, "/nope?x=1", "Ruta no encontrada - /nope?x=1"},
		{http.MethodPatch, "/api/users/1", "Ruta no encontrada - /api/users/1"},
		{http.MethodGet, "/api/users/1/extra", "Ruta no encontrada - /api/users/1/extra"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			rec, env := do(t, h, tt.method, tt.target, "")
			assert.Equal(t, http.StatusNotFound, rec.Code)
			assert.False(t, env.Success)
			assert.Equal(t, tt.want, env.Error)
		})
	}
}

func TestStackOnlyInDevelopment(t *testing.T) {
	cfg := testConfig()
	cfg.Env = config.EnvDevelopment
	h := newTestServer(t, cfg)

	_, env := do(t, h, http.MethodGet, "/api/users/999", "")
	assert.Contains(t, env.Stack, "Error: Usuario no encontrado")
}

func TestBodyLimit(t *testing.T) {
	cfg := testConfig()
	cfg.MaxJSONBodyMB = 1
	h := newTestServer(t, cfg)

	big := `{"name":"` + strings.Repeat("a", 2<<20) + `","email":"big@x.com","age":1}`
	rec, _ := do(t, h, http.MethodPost, "/api/users", big)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestSecurityAndCORSHeaders(t *testing.T) {
	h := newTestServer(t, testConfig())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "SAMEORIGIN", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSPreflight(t *testing.T) {
	h := newTestServer(t, testConfig())

	req := httptest.NewRequest(http.MethodOptions, "/api/users/1", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodDelete)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Contains(t, []int{http.StatusOK, http.StatusNoContent}, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodDelete)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitRPS = 1
	cfg.RateLimitBurst = 2
	h := newTestServer(t, cfg)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec, _ := do(t, h, http.MethodGet, "/health", "")
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimit_IgnoresForwardedForByDefault(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitRPS = 1
	cfg.RateLimitBurst = 1
	h := newTestServer(t, cfg)

	codes := make([]int, 0, 5)
	for i := 1; i <= 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.0.0.%d", i))
		req.Header.Set("X-Real-IP", fmt.Sprintf("10.0.1.%d", i))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{200, 429, 429, 429, 429}, codes)
}

func TestRateLimit_TrustProxyKeysOnForwardedFor(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitRPS = 1
	cfg.RateLimitBurst = 1
	cfg.TrustProxy = true
	h := newTestServer(t, cfg)

	get := func(xff string) int {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("X-Forwarded-For", xff)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}
	assert.Equal(t, http.StatusOK, get("10.0.0.1"))
	assert.Equal(t, http.StatusOK, get("10.0.0.2"))
	assert.Equal(t, http.StatusTooManyRequests, get("10.0.0.1"))
}

func TestRateLimit_RejectionCarriesCORS(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitRPS = 1
	cfg.RateLimitBurst = 1
	h := newTestServer(t, cfg)

	var rec *httptest.ResponseRecorder
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, req)
	}

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestHeadFollowsGetRoutes(t *testing.T) {
	h := newTestServer(t, testConfig())

	for _, target := range []string{"/health", "/api/users", "/api/users/1"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodHead, target, nil))
		assert.Equal(t, http.StatusOK, rec.Code, target)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestServer(t, testConfig())
	do(t, h, http.MethodGet, "/api/users/1", "")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `usersapi_http_requests_total{method="GET",route="/api/users/{id}",status="200"} 1`)
	assert.Contains(t, body, "usersapi_users 3")
}
