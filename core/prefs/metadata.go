package prefs

import "time"

// Priority is the band deciding which provider wins a conflict.
// Providers are assigned one of the five named bands at construction.
type Priority int

const (
	PriorityLowest  Priority = 0
	PriorityLow     Priority = 25
	PriorityNormal  Priority = 50
	PriorityHigh    Priority = 75
	PriorityHighest Priority = 100
)

// ParsePriority maps a band name to its Priority. Unknown names return
// a Configuration error.
func ParsePriority(name string) (Priority, error) {
	switch name {
	case "lowest":
		return PriorityLowest, nil
	case "low":
		return PriorityLow, nil
	case "normal":
		return PriorityNormal, nil
	case "high":
		return PriorityHigh, nil
	case "highest":
		return PriorityHighest, nil
	default:
		return 0, &ConfigError{Reason: "unknown priority band: " + name}
	}
}

// Metadata is one observation of a preference by one provider.
// Records are treated as immutable: every transformation (merge,
// decrypt, cache insert) derives a new record via Clone or the With*
// helpers instead of mutating in place.
type Metadata struct {
	// Key identifies the preference across all providers.
	Key string `json:"key"`
	// Value is the observed preference value.
	Value Value `json:"value"`
	// Priority is the band of the provider that produced the record.
	Priority Priority `json:"priority"`
	// Source names the origin provider, or a synthesized label such as
	// "merged[a,b]" after a merge resolution, or "cache".
	Source string `json:"source"`
	// Timestamp is the observation instant, used for recency tie-breaks.
	Timestamp time.Time `json:"timestamp"`
	// Encrypted records that the stored value is ciphertext.
	Encrypted bool `json:"encrypted,omitempty"`
	// Validated records that the value passed validation on write.
	Validated bool `json:"validated,omitempty"`
	// TTL overrides the cache default lifetime when non-zero.
	TTL time.Duration `json:"ttl,omitempty"`
}

// Clone returns a deep copy of the record.
func (m Metadata) Clone() Metadata {
	out := m
	out.Value = m.Value.Clone()
	return out
}

// WithValue returns a copy of the record carrying a different value.
func (m Metadata) WithValue(v Value) Metadata {
	out := m
	out.Value = v
	return out
}

// WithSource returns a copy of the record carrying a different source
// label.
func (m Metadata) WithSource(source string) Metadata {
	out := m
	out.Source = source
	return out
}
