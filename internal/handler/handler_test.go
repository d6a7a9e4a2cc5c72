package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MML0/Assistant-Bot/internal/config"
	"github.com/MML0/Assistant-Bot/internal/middleware"
)

type fakeOpsStore struct {
	pingErr   error
	users     int64
	messages  int64
	swept     int64
	sweptWith string
}

func (f *fakeOpsStore) Ping(context.Context) error                { return f.pingErr }
func (f *fakeOpsStore) CountUsers(context.Context) (int64, error) { return f.users, nil }
func (f *fakeOpsStore) CountMessages(context.Context) (int64, error) {
	return f.messages, nil
}
func (f *fakeOpsStore) DowngradeExpired(_ context.Context, _ time.Time, baselineModel string) (int64, error) {
	f.sweptWith = baselineModel
	return f.swept, nil
}

func newTestApp(store *fakeOpsStore, adminToken string) *fiber.App {
	cfg := &config.Config{}
	cfg.Server.AdminToken = adminToken
	cfg.LLM.DefaultModel = "gpt-4.1-mini"

	h := New(cfg, store)
	app := fiber.New()
	app.Get("/health", h.Health)
	internal := app.Group("/internal", middleware.AdminAuth(cfg.Server.AdminToken))
	internal.Get("/stats", h.Stats)
	internal.Post("/cron/expire", h.CronExpire)
	return app
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestHealthOK(t *testing.T) {
	app := newTestApp(&fakeOpsStore{}, "")

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", decodeBody(t, resp)["status"])
}

func TestHealthDegraded(t *testing.T) {
	app := newTestApp(&fakeOpsStore{pingErr: errors.New("connection refused")}, "")

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "degraded", decodeBody(t, resp)["status"])
}

func TestStatsRequiresToken(t *testing.T) {
	app := newTestApp(&fakeOpsStore{users: 3, messages: 42}, "secret")

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/internal/stats", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req := httptest.NewRequest(http.MethodGet, "/internal/stats", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/internal/stats", nil)
	req.Header.Set("Authorization", "Bearer secret")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, float64(3), body["user_count"])
	assert.Equal(t, float64(42), body["message_count"])
}

func TestInternalDisabledWithoutToken(t *testing.T) {
	app := newTestApp(&fakeOpsStore{}, "")

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/internal/stats", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestCronExpire(t *testing.T) {
	store := &fakeOpsStore{swept: 5}
	app := newTestApp(store, "secret")

	req := httptest.NewRequest(http.MethodPost, "/internal/cron/expire", nil)
	req.Header.Set("Authorization", "Bearer secret")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, float64(5), body["downgraded"])
	assert.Equal(t, "gpt-4.1-mini", store.sweptWith)
}
