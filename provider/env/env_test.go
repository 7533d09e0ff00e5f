package env

import (
	"context"
	"testing"

	"prefs-manager/core/prefs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvider_KeyMapping(t *testing.T) {
	ctx := context.Background()
	p := New("env", prefs.PriorityLow, "", map[string]string{
		"PREFS_UI_THEME": "dark",
		"UNRELATED":      "ignored",
	})
	require.NoError(t, p.Initialize(ctx))

	md, ok, err := p.Get(ctx, "ui.theme")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, md.Value.Equal(prefs.String("dark")))

	all, err := p.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1, "unprefixed variables are invisible")
	_, ok = all["ui.theme"]
	assert.True(t, ok)
}

func TestProvider_WritesStayInSnapshot(t *testing.T) {
	ctx := context.Background()
	caller := map[string]string{"PREFS_A": "1"}
	p := New("env", prefs.PriorityLow, "", caller)
	require.NoError(t, p.Initialize(ctx))

	require.NoError(t, p.Set(ctx, "b", prefs.String("x")))
	has, err := p.Has(ctx, "b")
	require.NoError(t, err)
	assert.True(t, has)
	_, leaked := caller["PREFS_B"]
	assert.False(t, leaked, "writes must not reach the caller's map")
}

func TestProvider_ClearOnlyRemovesPrefixed(t *testing.T) {
	ctx := context.Background()
	p := New("env", prefs.PriorityLow, "", map[string]string{
		"PREFS_A": "1",
		"PATH":    "/usr/bin",
	})
	require.NoError(t, p.Initialize(ctx))
	require.NoError(t, p.Clear(ctx))

	all, err := p.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestProvider_DeleteAndRoundTrip(t *testing.T) {
	ctx := context.Background()
	p := New("env", prefs.PriorityLow, "", nil)
	require.NoError(t, p.Initialize(ctx))

	want := prefs.ObjectValue(prefs.NewObject().Set("size", prefs.Number(12)))
	require.NoError(t, p.Set(ctx, "font", want))

	md, ok, err := p.Get(ctx, "font")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, md.Value.Equal(want))

	removed, err := p.Delete(ctx, "font")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = p.Delete(ctx, "font")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestCoerce(t *testing.T) {
	assert.True(t, Coerce("true").Equal(prefs.Bool(true)))
	assert.True(t, Coerce("false").Equal(prefs.Bool(false)))
	assert.True(t, Coerce("null").Equal(prefs.Null()))
	assert.True(t, Coerce("42").Equal(prefs.Number(42)))
	assert.True(t, Coerce("-1.5").Equal(prefs.Number(-1.5)))
	assert.True(t, Coerce("hello").Equal(prefs.String("hello")))
	assert.True(t, Coerce(`[1,2]`).Equal(prefs.Array(prefs.Number(1), prefs.Number(2))))

	obj := Coerce(`{"a":1}`)
	assert.Equal(t, prefs.KindObject, obj.Kind())

	// Malformed JSON falls back to a plain string.
	assert.True(t, Coerce(`{broken`).Equal(prefs.String(`{broken`)))
}

func TestSnapshot(t *testing.T) {
	snap := Snapshot([]string{"A=1", "B=x=y", "MALFORMED"})
	assert.Equal(t, "1", snap["A"])
	assert.Equal(t, "x=y", snap["B"])
	_, ok := snap["MALFORMED"]
	assert.False(t, ok)
}
