package prefs

import (
	"sort"
	"strings"
)

// Strategy names the policy used to pick one winner among multiple
// providers' records for the same key.
type Strategy string

const (
	// StrategyHighestPriority keeps the record with the greatest
	// priority; equal priorities break toward the newest timestamp.
	StrategyHighestPriority Strategy = "highest_priority"
	// StrategyLowestPriority keeps the record with the smallest
	// priority; equal priorities break toward the oldest timestamp.
	// The mirrored tie-break (newest-wins-high, oldest-wins-low) is
	// deliberate.
	StrategyLowestPriority Strategy = "lowest_priority"
	// StrategyMerge deep-merges object values in ascending
	// (priority, timestamp) order.
	StrategyMerge Strategy = "merge"
	// StrategyOverride keeps the newest record outright, ignoring
	// priority.
	StrategyOverride Strategy = "override"
	// StrategyError refuses to resolve: any multi-record input fails
	// with a Conflict error. Used when ambiguity must surface.
	StrategyError Strategy = "error"
)

// ParseStrategy maps a strategy name to its Strategy. Unknown names
// return a Configuration error.
func ParseStrategy(name string) (Strategy, error) {
	switch Strategy(name) {
	case StrategyHighestPriority, StrategyLowestPriority, StrategyMerge, StrategyOverride, StrategyError:
		return Strategy(name), nil
	default:
		return "", &ConfigError{Reason: "unknown conflict strategy: " + name}
	}
}

// ResolveConflict deterministically selects or synthesizes one winning
// record from records, which must all share one key. A single record is
// returned unchanged regardless of strategy. An empty input fails with
// a Conflict error; the injector guarantees non-empty input in
// practice.
func ResolveConflict(records []Metadata, strategy Strategy) (Metadata, error) {
	if len(records) == 0 {
		return Metadata{}, &ConflictError{}
	}
	if len(records) == 1 {
		return records[0], nil
	}

	switch strategy {
	case StrategyHighestPriority:
		winner := records[0]
		for _, r := range records[1:] {
			if r.Priority > winner.Priority ||
				(r.Priority == winner.Priority && r.Timestamp.After(winner.Timestamp)) {
				winner = r
			}
		}
		return winner, nil

	case StrategyLowestPriority:
		winner := records[0]
		for _, r := range records[1:] {
			if r.Priority < winner.Priority ||
				(r.Priority == winner.Priority && r.Timestamp.Before(winner.Timestamp)) {
				winner = r
			}
		}
		return winner, nil

	case StrategyMerge:
		return mergeRecords(records), nil

	case StrategyOverride:
		winner := records[0]
		for _, r := range records[1:] {
			if r.Timestamp.After(winner.Timestamp) {
				winner = r
			}
		}
		return winner, nil

	case StrategyError:
		sources := make([]string, len(records))
		for i, r := range records {
			sources[i] = r.Source
		}
		return Metadata{}, &ConflictError{Key: records[0].Key, Sources: sources}

	default:
		return Metadata{}, &ConfigError{Reason: "unknown conflict strategy: " + string(strategy)}
	}
}

// mergeRecords deep-merges records sorted ascending by
// (priority, timestamp) so higher-priority (or newer) keys override at
// every nesting level. If any contributing value is not an object the
// merge degenerates to the value of the last record in sort order; no
// partial merge across type boundaries is attempted. The result is a
// copy of the highest-ranked record with the merged value and a
// composite source label listing contributors in input order.
func mergeRecords(records []Metadata) Metadata {
	// Composite label uses the pre-sort input order.
	sources := make([]string, len(records))
	for i, r := range records {
		sources[i] = r.Source
	}
	label := "merged[" + strings.Join(sources, ",") + "]"

	sorted := make([]Metadata, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Priority != sorted[j].Priority {
			return sorted[i].Priority < sorted[j].Priority
		}
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	allObjects := true
	for _, r := range sorted {
		if r.Value.Kind() != KindObject {
			allObjects = false
			break
		}
	}

	top := sorted[len(sorted)-1].Clone()
	if !allObjects {
		return top.WithSource(label)
	}

	merged := sorted[0].Value
	for _, r := range sorted[1:] {
		merged = deepMerge(merged, r.Value)
	}
	return top.WithValue(merged).WithSource(label)
}

// deepMerge overlays b onto a. Where both sides hold objects the merge
// recurses per key; otherwise b replaces a. Key order follows a, with
// keys unique to b appended in their own order.
func deepMerge(a, b Value) Value {
	aObj, aOK := a.AsObject()
	bObj, bOK := b.AsObject()
	if !aOK || !bOK {
		return b.Clone()
	}

	out := aObj.Clone()
	for _, k := range bObj.Keys() {
		bVal, _ := bObj.Get(k)
		if aVal, exists := out.Get(k); exists {
			out.Set(k, deepMerge(aVal, bVal))
		} else {
			out.Set(k, bVal.Clone())
		}
	}
	return ObjectValue(out)
}
