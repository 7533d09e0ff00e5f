package reconcile

import (
	"time"

	"prefs-manager/core/prefs"
)

// DriftType classifies how a provider diverges from the desired state.
type DriftType string

const (
	// DriftMissing means the provider lacks a key the truth holds.
	DriftMissing DriftType = "missing"
	// DriftStale means the provider holds a different value than the truth.
	DriftStale DriftType = "stale"
	// DriftExtra means the provider holds a key the truth does not.
	DriftExtra DriftType = "extra"
)

// Finding describes one divergence between a provider and the truth.
type Finding struct {
	// Provider is the name of the diverging provider.
	Provider string `json:"provider"`

	// Key is the preference key.
	Key string `json:"key"`

	// Type classifies the divergence.
	Type DriftType `json:"type"`

	// Want is the desired value; nil for extra findings.
	Want *prefs.Value `json:"want,omitempty"`

	// Have is the provider's current value; nil for missing findings.
	Have *prefs.Value `json:"have,omitempty"`
}

// Summary provides aggregate counts for a reconcile plan.
type Summary struct {
	// Providers is the number of providers inspected.
	Providers int `json:"providers"`

	// KeysChecked is the number of keys in the desired state.
	KeysChecked int `json:"keys_checked"`

	// Missing counts keys absent from some provider.
	Missing int `json:"missing"`

	// Stale counts keys holding an outdated value in some provider.
	Stale int `json:"stale"`

	// Extra counts keys a provider holds beyond the desired state.
	Extra int `json:"extra"`
}

// Plan contains the findings and aggregate summary of one reconcile run.
type Plan struct {
	// Findings lists every detected divergence, ordered by provider
	// then key for deterministic output.
	Findings []Finding `json:"findings"`

	// Summary provides aggregate counts.
	Summary Summary `json:"summary"`
}

// Options controls plan building and application.
type Options struct {
	// RemoveExtra enables deletion of keys outside the desired state.
	RemoveExtra bool

	// DryRun prevents execution of any mutations if true.
	DryRun bool

	// Confirmed indicates the caller has confirmed destructive actions.
	// If false, mutations will not execute regardless of DryRun.
	Confirmed bool

	// SnapshotTTL reuses a cached provider snapshot for this long, so
	// repeated runs do not hammer every backend. Zero snapshots fresh
	// on every run.
	SnapshotTTL time.Duration
}
