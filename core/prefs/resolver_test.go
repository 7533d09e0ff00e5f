package prefs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var resolverBase = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func record(source string, priority Priority, value Value, offset time.Duration) Metadata {
	return Metadata{
		Key:       "theme",
		Value:     value,
		Priority:  priority,
		Source:    source,
		Timestamp: resolverBase.Add(offset),
	}
}

func TestResolveConflict_EmptyInput(t *testing.T) {
	_, err := ResolveConflict(nil, StrategyHighestPriority)
	assert.Error(t, err)
	var conflict *ConflictError
	assert.ErrorAs(t, err, &conflict)
}

func TestResolveConflict_SingleRecordShortCircuit(t *testing.T) {
	rec := record("file", PriorityLow, String("light"), 0)

	// A one-element input returns unchanged under every strategy,
	// including error.
	for _, strategy := range []Strategy{
		StrategyHighestPriority, StrategyLowestPriority,
		StrategyMerge, StrategyOverride, StrategyError,
	} {
		t.Run(string(strategy), func(t *testing.T) {
			got, err := ResolveConflict([]Metadata{rec}, strategy)
			require.NoError(t, err)
			assert.Equal(t, rec, got)
		})
	}
}

func TestResolveConflict_HighestPriority(t *testing.T) {
	records := []Metadata{
		record("a", PriorityLow, String("low"), 0),
		record("b", PriorityHigh, String("high"), 0),
		record("c", PriorityNormal, String("normal"), 0),
	}

	got, err := ResolveConflict(records, StrategyHighestPriority)
	require.NoError(t, err)
	assert.Equal(t, PriorityHigh, got.Priority)
	assert.Equal(t, "b", got.Source)
}

func TestResolveConflict_HighestPriority_NewestWinsTie(t *testing.T) {
	records := []Metadata{
		record("old", PriorityNormal, String("old"), 0),
		record("new", PriorityNormal, String("new"), time.Minute),
	}

	got, err := ResolveConflict(records, StrategyHighestPriority)
	require.NoError(t, err)
	assert.Equal(t, "new", got.Source)
}

func TestResolveConflict_LowestPriority_OldestWinsTie(t *testing.T) {
	// Mirrored tie-break: lowest_priority prefers the OLDER record at
	// equal priority, the opposite of highest_priority.
	records := []Metadata{
		record("old", PriorityNormal, String("old"), 0),
		record("new", PriorityNormal, String("new"), time.Minute),
	}

	got, err := ResolveConflict(records, StrategyLowestPriority)
	require.NoError(t, err)
	assert.Equal(t, "old", got.Source)
}

func TestResolveConflict_LowestPriority(t *testing.T) {
	records := []Metadata{
		record("a", PriorityHigh, String("high"), 0),
		record("b", PriorityLowest, String("lowest"), 0),
	}

	got, err := ResolveConflict(records, StrategyLowestPriority)
	require.NoError(t, err)
	assert.Equal(t, "b", got.Source)
}

func TestResolveConflict_Override_IgnoresPriority(t *testing.T) {
	records := []Metadata{
		record("high-old", PriorityHighest, String("a"), 0),
		record("low-new", PriorityLowest, String("b"), time.Hour),
	}

	got, err := ResolveConflict(records, StrategyOverride)
	require.NoError(t, err)
	assert.Equal(t, "low-new", got.Source)
}

func TestResolveConflict_Error(t *testing.T) {
	records := []Metadata{
		record("a", PriorityLow, String("x"), 0),
		record("b", PriorityHigh, String("y"), 0),
	}

	_, err := ResolveConflict(records, StrategyError)
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "theme", conflict.Key)
	assert.Equal(t, []string{"a", "b"}, conflict.Sources)
}

func TestResolveConflict_UnknownStrategy(t *testing.T) {
	records := []Metadata{
		record("a", PriorityLow, String("x"), 0),
		record("b", PriorityHigh, String("y"), 0),
	}

	_, err := ResolveConflict(records, Strategy("bogus"))
	var cfgErr *ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestResolveConflict_Merge_DisjointKeys(t *testing.T) {
	records := []Metadata{
		record("a", PriorityLow, ObjectValue(NewObject().Set("a", Number(1))), 0),
		record("b", PriorityHigh, ObjectValue(NewObject().Set("b", Number(2))), 0),
	}

	got, err := ResolveConflict(records, StrategyMerge)
	require.NoError(t, err)

	obj, ok := got.Value.AsObject()
	require.True(t, ok)
	a, _ := obj.Get("a")
	b, _ := obj.Get("b")
	assert.True(t, a.Equal(Number(1)))
	assert.True(t, b.Equal(Number(2)))
	assert.Equal(t, "merged[a,b]", got.Source)
}

func TestResolveConflict_Merge_HigherPriorityOverrides(t *testing.T) {
	records := []Metadata{
		record("low", PriorityLow, ObjectValue(NewObject().Set("a", Number(1))), 0),
		record("high", PriorityHigh, ObjectValue(NewObject().Set("a", Number(2))), 0),
	}

	got, err := ResolveConflict(records, StrategyMerge)
	require.NoError(t, err)

	obj, _ := got.Value.AsObject()
	a, _ := obj.Get("a")
	assert.True(t, a.Equal(Number(2)))
}

func TestResolveConflict_Merge_Nested(t *testing.T) {
	low := NewObject().
		Set("ui", ObjectValue(NewObject().Set("theme", String("light")).Set("font", String("mono")))).
		Set("lang", String("en"))
	high := NewObject().
		Set("ui", ObjectValue(NewObject().Set("theme", String("dark"))))

	records := []Metadata{
		record("low", PriorityLow, ObjectValue(low), 0),
		record("high", PriorityHigh, ObjectValue(high), 0),
	}

	got, err := ResolveConflict(records, StrategyMerge)
	require.NoError(t, err)

	obj, _ := got.Value.AsObject()
	ui, _ := obj.Get("ui")
	uiObj, ok := ui.AsObject()
	require.True(t, ok)

	theme, _ := uiObj.Get("theme")
	font, _ := uiObj.Get("font")
	lang, _ := obj.Get("lang")
	assert.True(t, theme.Equal(String("dark")), "nested key overridden by higher priority")
	assert.True(t, font.Equal(String("mono")), "nested key unique to lower priority kept")
	assert.True(t, lang.Equal(String("en")))
}

func TestResolveConflict_Merge_NonObjectDegeneratesToLast(t *testing.T) {
	// All-or-nothing: one non-object value disables merging entirely
	// and the last record in (priority, timestamp) order wins.
	records := []Metadata{
		record("a", PriorityLow, ObjectValue(NewObject().Set("a", Number(1))), 0),
		record("b", PriorityNormal, String("plain"), 0),
		record("c", PriorityHigh, ObjectValue(NewObject().Set("c", Number(3))), 0),
	}

	got, err := ResolveConflict(records, StrategyMerge)
	require.NoError(t, err)
	obj, ok := got.Value.AsObject()
	require.True(t, ok)
	_, hasA := obj.Get("a")
	assert.False(t, hasA, "no partial merge across the type boundary")
	assert.Equal(t, "merged[a,b,c]", got.Source)
}

func TestResolveConflict_Merge_SourceLabelUsesInputOrder(t *testing.T) {
	// Input order is deliberately not priority order; the label must
	// follow the input.
	records := []Metadata{
		record("zeta", PriorityHigh, ObjectValue(NewObject().Set("z", Number(1))), 0),
		record("alpha", PriorityLow, ObjectValue(NewObject().Set("a", Number(2))), 0),
	}

	got, err := ResolveConflict(records, StrategyMerge)
	require.NoError(t, err)
	assert.Equal(t, "merged[zeta,alpha]", got.Source)
}

func TestResolveConflict_Deterministic(t *testing.T) {
	records := []Metadata{
		record("a", PriorityLow, ObjectValue(NewObject().Set("x", Number(1))), 0),
		record("b", PriorityHigh, ObjectValue(NewObject().Set("y", Number(2))), time.Second),
	}

	first, err := ResolveConflict(records, StrategyMerge)
	require.NoError(t, err)
	for n := 0; n < 5; n++ {
		again, err := ResolveConflict(records, StrategyMerge)
		require.NoError(t, err)
		assert.Equal(t, first.Source, again.Source)
		assert.Equal(t, first.Timestamp, again.Timestamp)
		assert.True(t, first.Value.Equal(again.Value))
	}
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("merge")
	require.NoError(t, err)
	assert.Equal(t, StrategyMerge, s)

	_, err = ParseStrategy("nope")
	assert.Error(t, err)
}
