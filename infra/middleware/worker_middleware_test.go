package middleware

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"jobtrack_worker/pkg/apperr"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApp(handlers ...fiber.Handler) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler()})
	app.Use(RequestID())
	for _, h := range handlers {
		app.Use(h)
	}
	return app
}

func decodeError(t *testing.T, app *fiber.App, req *httptestRequest) (int, ErrorResponse) {
	t.Helper()
	r := httptest.NewRequest(req.method, req.path, nil)
	for k, v := range req.headers {
		r.Header.Set(k, v)
	}
	resp, err := app.Test(r, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body ErrorResponse
	if resp.StatusCode >= 400 {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	}
	return resp.StatusCode, body
}

type httptestRequest struct {
	method  string
	path    string
	headers map[string]string
}

func TestErrorHandlerMapping(t *testing.T) {
	app := newApp()
	app.Get("/app", func(c *fiber.Ctx) error { return apperr.NotFound("staged import") })
	app.Get("/wrapped", func(c *fiber.Ctx) error {
		return errors.Join(errors.New("context"), apperr.Conflict("already reviewed"))
	})
	app.Get("/fiber", func(c *fiber.Ctx) error { return fiber.ErrUnsupportedMediaType })
	app.Get("/plain", func(c *fiber.Ctx) error { return errors.New("disk on fire") })

	tests := []struct {
		path     string
		wantCode int
		wantErr  string
	}{
		{"/app", 404, apperr.CodeNotFound},
		{"/wrapped", 409, apperr.CodeConflict},
		{"/fiber", 415, "UNSUPPORTED_MEDIA_TYPE"},
		{"/plain", 500, apperr.CodeInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			status, body := decodeError(t, app, &httptestRequest{method: fiber.MethodGet, path: tt.path})
			assert.Equal(t, tt.wantCode, status)
			assert.Equal(t, tt.wantErr, body.Error.Code)
			assert.NotEmpty(t, body.RequestID)
		})
	}

	t.Run("panic", func(t *testing.T) {
		recovering := newApp(Recover())
		recovering.Get("/panic", func(c *fiber.Ctx) error { panic("boom") })
		status, body := decodeError(t, recovering, &httptestRequest{method: fiber.MethodGet, path: "/panic"})
		assert.Equal(t, 500, status)
		assert.Equal(t, apperr.CodeInternalError, body.Error.Code)
	})
}

func TestSharedSecret(t *testing.T) {
	app := newApp(SharedSecret("topsecret"))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })

	status, _ := decodeError(t, app, &httptestRequest{method: fiber.MethodGet, path: "/",
		headers: map[string]string{SecretHeader: "topsecret"}})
	assert.Equal(t, 200, status)

	status, body := decodeError(t, app, &httptestRequest{method: fiber.MethodGet, path: "/",
		headers: map[string]string{SecretHeader: "topsecreT"}})
	assert.Equal(t, 401, status)
	assert.Equal(t, apperr.CodeUnauthorized, body.Error.Code)

	empty := newApp(SharedSecret(""))
	empty.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })
	status, _ = decodeError(t, empty, &httptestRequest{method: fiber.MethodGet, path: "/",
		headers: map[string]string{SecretHeader: ""}})
	assert.Equal(t, 401, status, "an unset secret never authenticates")
}

func TestRateLimiter(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	app := newApp(rl.Handler())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })
	get := &httptestRequest{method: fiber.MethodGet, path: "/"}

	for i := 0; i < 2; i++ {
		status, _ := decodeError(t, app, get)
		require.Equal(t, 200, status)
	}
	status, body := decodeError(t, app, get)
	assert.Equal(t, 429, status)
	assert.Equal(t, apperr.CodeRateLimited, body.Error.Code)

	now = now.Add(61 * time.Second)
	status, _ = decodeError(t, app, get)
	assert.Equal(t, 200, status, "window resets")
}

func TestRequireJSONAndBodySize(t *testing.T) {
	app := newApp(RequireJSON(), MaxBodySize(16))
	app.Post("/", func(c *fiber.Ctx) error { return c.SendString("ok") })

	send := func(contentType, body string) int {
		r := httptest.NewRequest(fiber.MethodPost, "/", strings.NewReader(body))
		r.Header.Set(fiber.HeaderContentType, contentType)
		resp, err := app.Test(r, -1)
		require.NoError(t, err)
		return resp.StatusCode
	}

	assert.Equal(t, 200, send(fiber.MIMEApplicationJSON, `{"a":1}`))
	assert.Equal(t, 415, send(fiber.MIMETextPlain, `{"a":1}`))
	assert.Equal(t, 413, send(fiber.MIMEApplicationJSON, `{"records":[1,2,3,4,5]}`))
}
