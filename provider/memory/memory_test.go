package memory

import (
	"context"
	"testing"

	"prefs-manager/core/prefs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvider_CRUD(t *testing.T) {
	ctx := context.Background()
	p := New("memory", prefs.PriorityHigh)
	require.NoError(t, p.Initialize(ctx))

	_, ok, err := p.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, p.Set(ctx, "k", prefs.String("v")))

	md, ok, err := p.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "k", md.Key)
	assert.Equal(t, "memory", md.Source)
	assert.Equal(t, prefs.PriorityHigh, md.Priority)
	assert.True(t, md.Value.Equal(prefs.String("v")))
	assert.False(t, md.Timestamp.IsZero())

	has, err := p.Has(ctx, "k")
	require.NoError(t, err)
	assert.True(t, has)

	removed, err := p.Delete(ctx, "k")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = p.Delete(ctx, "k")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestProvider_GetAllAndClear(t *testing.T) {
	ctx := context.Background()
	p := New("memory", prefs.PriorityNormal)

	require.NoError(t, p.Set(ctx, "a", prefs.Number(1)))
	require.NoError(t, p.Set(ctx, "b", prefs.Number(2)))

	all, err := p.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, p.Clear(ctx))
	all, err = p.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestProvider_IsolatesStoredValues(t *testing.T) {
	ctx := context.Background()
	p := New("memory", prefs.PriorityNormal)

	obj := prefs.NewObject().Set("a", prefs.Number(1))
	require.NoError(t, p.Set(ctx, "k", prefs.ObjectValue(obj)))

	// Mutating the caller's object must not reach the store.
	obj.Set("a", prefs.Number(99))

	md, ok, err := p.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	stored, _ := md.Value.AsObject()
	a, _ := stored.Get("a")
	assert.True(t, a.Equal(prefs.Number(1)))
}
