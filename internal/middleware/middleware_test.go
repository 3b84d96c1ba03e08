package middleware

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func signToken(t *testing.T, secret, subject string, ttl time.Duration) string {
	t.Helper()
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func newAuthApp(allowAnonymous bool) *fiber.App {
	app := fiber.New()
	app.Use(AuthMiddleware(NewTokenValidator(testSecret), allowAnonymous))
	app.Get("/api/v1/whoami", func(c fiber.Ctx) error {
		return c.SendString(UserID(c))
	})
	app.Get("/api/v1/health", func(c fiber.Ctx) error {
		return c.SendString("ok")
	})
	return app
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func TestAuth_ValidToken(t *testing.T) {
	app := newAuthApp(false)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, "user-42", time.Hour))

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "user-42", readBody(t, resp))
}

func TestAuth_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic abc"},
		{"bad signature", "Bearer " + signToken(t, "another-secret-another-secret-xx", "user-42", time.Hour)},
		{"expired", "Bearer " + signToken(t, testSecret, "user-42", -time.Minute)},
		{"garbage", "Bearer not-a-jwt"},
	}

	app := newAuthApp(false)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/whoami", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		})
	}
}

func TestAuth_Anonymous(t *testing.T) {
	app := newAuthApp(true)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/whoami", nil))
	require.NoError(t, err)
	assert.Equal(t, AnonymousUserID, readBody(t, resp))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/whoami", nil)
	req.Header.Set("X-Device-ID", "pixel-7")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "device:pixel-7", readBody(t, resp))
}

func TestAuth_PublicPathBypass(t *testing.T) {
	app := newAuthApp(false)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRateLimiter_BlocksOverLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	app := fiber.New()
	app.Use(NewRateLimiter(rdb, 2, 60).Handler())
	app.Get("/", func(c fiber.Ctx) error { return c.SendString("ok") })

	for i := 0; i < 2; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "2", resp.Header.Get("X-RateLimit-Limit"))
	}

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "0", resp.Header.Get("X-RateLimit-Remaining"))

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "rate limit exceeded", body["error"])
}

func TestRateLimiter_FailOpen(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })

	for _, limiter := range []*RateLimiter{NewRateLimiter(nil, 1, 60), NewRateLimiter(rdb, 1, 60)} {
		app := fiber.New()
		app.Use(limiter.Handler())
		app.Get("/", func(c fiber.Ctx) error { return c.SendString("ok") })

		for i := 0; i < 3; i++ {
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
			require.NoError(t, err)
			assert.Equal(t, http.StatusOK, resp.StatusCode)
		}
	}
}
