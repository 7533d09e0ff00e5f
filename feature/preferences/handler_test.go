package preferences

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"prefs-manager/core/audit"
	"prefs-manager/core/prefs"
	"prefs-manager/core/reconcile"
	"prefs-manager/core/validate"
	"prefs-manager/provider/memory"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestApp(t *testing.T) (*fiber.App, *prefs.Injector, *audit.Logger) {
	t.Helper()

	validator := validate.New()
	validator.Register("ui.theme", validate.OneOf(prefs.String("light"), prefs.String("dark")))

	auditLog := audit.New(100, zap.NewNop())
	injector := prefs.NewInjector(prefs.Config{
		Providers: []prefs.Provider{
			memory.New("primary", prefs.PriorityHigh),
			memory.New("secondary", prefs.PriorityLow),
		},
		ValidationEnabled: true,
		Validator:         validator,
		Audit:             auditLog,
	})
	require.NoError(t, injector.Initialize(context.Background()))

	app := fiber.New()
	feature := NewFeature(injector, auditLog, prefs.StrategyHighestPriority, 0, zap.NewNop())
	require.NoError(t, feature.Load(app))
	return app, injector, auditLog
}

func decodeBody(t *testing.T, r io.Reader) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(r).Decode(&body))
	return body
}

func TestHandleSetAndGet(t *testing.T) {
	app, _, _ := setupTestApp(t)

	req := httptest.NewRequest("PUT", "/preferences/ui.theme", bytes.NewBufferString(`{"value":"dark"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/preferences/ui.theme", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	body := decodeBody(t, resp.Body)
	assert.Equal(t, "dark", body["value"])
}

func TestHandleGet_NotFound(t *testing.T) {
	app, _, _ := setupTestApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/preferences/missing", nil))
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
}

func TestHandleGet_Default(t *testing.T) {
	app, _, _ := setupTestApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/preferences/missing?default=%22fallback%22", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	body := decodeBody(t, resp.Body)
	assert.Equal(t, "fallback", body["value"])
}

func TestHandleSet_ValidationFailure(t *testing.T) {
	app, _, _ := setupTestApp(t)

	req := httptest.NewRequest("PUT", "/preferences/ui.theme", bytes.NewBufferString(`{"value":"neon"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 422, resp.StatusCode)

	// The rejected value must not be readable afterwards.
	resp, err = app.Test(httptest.NewRequest("GET", "/preferences/ui.theme", nil))
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
}

func TestHandleSet_SkipValidation(t *testing.T) {
	app, _, _ := setupTestApp(t)

	req := httptest.NewRequest("PUT", "/preferences/ui.theme?validate=false", bytes.NewBufferString(`{"value":"neon"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestHandleSet_MalformedBody(t *testing.T) {
	app, _, _ := setupTestApp(t)

	req := httptest.NewRequest("PUT", "/preferences/k", bytes.NewBufferString(`{broken`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)

	req = httptest.NewRequest("PUT", "/preferences/k", bytes.NewBufferString(`{"novalue":1}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestHandleDelete(t *testing.T) {
	app, _, _ := setupTestApp(t)

	req := httptest.NewRequest("PUT", "/preferences/k", bytes.NewBufferString(`{"value":1}`))
	req.Header.Set("Content-Type", "application/json")
	_, err := app.Test(req)
	require.NoError(t, err)

	resp, err := app.Test(httptest.NewRequest("DELETE", "/preferences/k", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("DELETE", "/preferences/k", nil))
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
}

func TestHandleListAndClear(t *testing.T) {
	app, _, _ := setupTestApp(t)

	for _, kv := range []struct{ key, body string }{
		{"a", `{"value":1}`},
		{"b", `{"value":true}`},
	} {
		req := httptest.NewRequest("PUT", "/preferences/"+kv.key, bytes.NewBufferString(kv.body))
		req.Header.Set("Content-Type", "application/json")
		_, err := app.Test(req)
		require.NoError(t, err)
	}

	resp, err := app.Test(httptest.NewRequest("GET", "/preferences/", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	body := decodeBody(t, resp.Body)
	assert.Equal(t, float64(2), body["count"])

	resp, err = app.Test(httptest.NewRequest("POST", "/preferences/clear", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/preferences/", nil))
	require.NoError(t, err)
	body = decodeBody(t, resp.Body)
	assert.Equal(t, float64(0), body["count"])
}

func TestHandleAudit(t *testing.T) {
	app, _, _ := setupTestApp(t)

	req := httptest.NewRequest("PUT", "/preferences/k?validate=false", bytes.NewBufferString(`{"value":1}`))
	req.Header.Set("Content-Type", "application/json")
	_, err := app.Test(req)
	require.NoError(t, err)

	resp, err := app.Test(httptest.NewRequest("GET", "/preferences/audit?action=SET", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	body := decodeBody(t, resp.Body)
	assert.Equal(t, float64(1), body["count"])

	resp, err = app.Test(httptest.NewRequest("GET", "/preferences/audit?since=not-a-time", nil))
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestHandleReconcile(t *testing.T) {
	app, injector, _ := setupTestApp(t)

	// Seed one provider directly so the pair diverges.
	providers := injector.Providers()
	require.NoError(t, providers[0].Set(context.Background(), "theme", prefs.String("dark")))

	resp, err := app.Test(httptest.NewRequest("GET", "/preferences/reconcile", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	body := decodeBody(t, resp.Body)
	assert.Equal(t, float64(0), body["executed"], "dry run never repairs")
	plan := body["plan"].(map[string]any)
	summary := plan["summary"].(map[string]any)
	assert.Equal(t, float64(1), summary["missing"])

	// apply + confirm repairs the lagging provider.
	resp, err = app.Test(httptest.NewRequest("GET", "/preferences/reconcile?apply=true&confirm=true", nil))
	require.NoError(t, err)
	body = decodeBody(t, resp.Body)
	assert.Equal(t, float64(1), body["executed"])

	has, err := providers[1].Has(context.Background(), "theme")
	require.NoError(t, err)
	assert.True(t, has)
}

func TestHandleReconcile_SnapshotReuse(t *testing.T) {
	// Provider names unique to this test so the shared snapshot store
	// key does not collide with other tests.
	auditLog := audit.New(100, zap.NewNop())
	injector := prefs.NewInjector(prefs.Config{
		Providers: []prefs.Provider{
			memory.New("reuse-primary", prefs.PriorityHigh),
			memory.New("reuse-secondary", prefs.PriorityLow),
		},
		Audit: auditLog,
	})
	require.NoError(t, injector.Initialize(context.Background()))

	app := fiber.New()
	feature := NewFeature(injector, auditLog, prefs.StrategyHighestPriority, time.Minute, zap.NewNop())
	require.NoError(t, feature.Load(app))

	providers := injector.Providers()
	defer reconcile.InvalidateSnapshot(providers)
	require.NoError(t, providers[0].Set(context.Background(), "theme", prefs.String("dark")))

	reconcileSummary := func() map[string]any {
		resp, err := app.Test(httptest.NewRequest("GET", "/preferences/reconcile", nil))
		require.NoError(t, err)
		body := decodeBody(t, resp.Body)
		return body["plan"].(map[string]any)["summary"].(map[string]any)
	}

	// The first dry run snapshots the providers and stores the result.
	assert.Equal(t, float64(1), reconcileSummary()["missing"])

	// A write landing after the snapshot stays invisible within the TTL.
	require.NoError(t, providers[0].Set(context.Background(), "lang", prefs.String("en")))
	summary := reconcileSummary()
	assert.Equal(t, float64(1), summary["keys_checked"])
	assert.Equal(t, float64(1), summary["missing"])

	// Applying repairs drops the snapshot, so the next run sees both keys.
	resp, err := app.Test(httptest.NewRequest("GET", "/preferences/reconcile?apply=true&confirm=true", nil))
	require.NoError(t, err)
	body := decodeBody(t, resp.Body)
	assert.Equal(t, float64(1), body["executed"])

	summary = reconcileSummary()
	assert.Equal(t, float64(2), summary["keys_checked"])
	assert.Equal(t, float64(1), summary["missing"])
}
