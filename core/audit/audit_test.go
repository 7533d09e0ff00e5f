package audit

import (
	"testing"
	"time"

	"prefs-manager/core/prefs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_BufferAndFilter(t *testing.T) {
	l := New(10, nil)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	l.Log(prefs.AuditEntry{Timestamp: base, Action: prefs.AuditSet, Key: "theme", Source: "injector"})
	l.Log(prefs.AuditEntry{Timestamp: base.Add(time.Minute), Action: prefs.AuditGet, Key: "theme", Source: "cache"})
	l.Log(prefs.AuditEntry{Timestamp: base.Add(2 * time.Minute), Action: prefs.AuditSet, Key: "lang", Source: "injector"})

	all := l.Entries(Filter{})
	require.Len(t, all, 3)
	assert.NotEmpty(t, all[0].ID)

	sets := l.Entries(Filter{Action: prefs.AuditSet})
	require.Len(t, sets, 2)

	theme := l.Entries(Filter{Key: "theme"})
	require.Len(t, theme, 2)

	recent := l.Entries(Filter{Since: base.Add(90 * time.Second)})
	require.Len(t, recent, 1)
	assert.Equal(t, "lang", recent[0].Key)
}

func TestLogger_BoundedBuffer(t *testing.T) {
	l := New(3, nil)

	for i := 0; i < 5; i++ {
		l.Log(prefs.AuditEntry{Action: prefs.AuditGet, Key: "k", Source: "test"})
	}

	assert.Equal(t, 3, l.Len(), "oldest entries dropped past the bound")
}

func TestLogger_FillsTimestamp(t *testing.T) {
	l := New(10, nil)
	l.Log(prefs.AuditEntry{Action: prefs.AuditGet, Key: "k"})

	entries := l.Entries(Filter{})
	require.Len(t, entries, 1)
	assert.False(t, entries[0].Timestamp.IsZero())
}

func TestLogger_Clear(t *testing.T) {
	l := New(10, nil)
	l.Log(prefs.AuditEntry{Action: prefs.AuditGet, Key: "k"})
	l.Clear()
	assert.Equal(t, 0, l.Len())
}
