package loader

import (
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFeature struct {
	name    string
	enabled bool
	loadErr error
	loaded  bool
}

func (f *stubFeature) Name() string    { return f.name }
func (f *stubFeature) IsEnabled() bool { return f.enabled }
func (f *stubFeature) Load(fiber.Router) error {
	f.loaded = true
	return f.loadErr
}

func TestManager_LoadAll(t *testing.T) {
	app := fiber.New()
	m := NewManager(nil)

	enabled := &stubFeature{name: "a", enabled: true}
	disabled := &stubFeature{name: "b", enabled: false}
	m.Register(enabled)
	m.Register(disabled)

	require.NoError(t, m.LoadAll(app))
	assert.True(t, enabled.loaded)
	assert.False(t, disabled.loaded, "disabled features stay unloaded")
}

func TestManager_LoadAllStopsOnError(t *testing.T) {
	app := fiber.New()
	m := NewManager(nil)

	failing := &stubFeature{name: "bad", enabled: true, loadErr: assert.AnError}
	after := &stubFeature{name: "after", enabled: true}
	m.Register(failing)
	m.Register(after)

	err := m.LoadAll(app)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")
	assert.False(t, after.loaded, "features after the failure stay unloaded")
}
