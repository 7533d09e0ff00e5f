package reconcile

import (
	"context"
	"fmt"
	"sort"

	"prefs-manager/core/prefs"

	"golang.org/x/sync/errgroup"
)

// Snapshot concurrently loads the full contents of every provider,
// keyed by provider name.
func Snapshot(ctx context.Context, providers []prefs.Provider) (map[string]map[string]prefs.Metadata, error) {
	states := make([]map[string]prefs.Metadata, len(providers))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range providers {
		i, p := i, p
		g.Go(func() error {
			all, err := p.GetAll(gctx)
			if err != nil {
				return fmt.Errorf("snapshot provider %s: %w", p.Name(), err)
			}
			states[i] = all
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]map[string]prefs.Metadata, len(providers))
	for i, p := range providers {
		out[p.Name()] = states[i]
	}
	return out, nil
}

// Truth resolves each key across the snapshot with the given strategy,
// producing the desired state providers should converge on.
func Truth(states map[string]map[string]prefs.Metadata, strategy prefs.Strategy) (map[string]prefs.Value, error) {
	byKey := make(map[string][]prefs.Metadata)
	for _, state := range states {
		for key, md := range state {
			byKey[key] = append(byKey[key], md)
		}
	}

	truth := make(map[string]prefs.Value, len(byKey))
	for key, records := range byKey {
		// Stable input order so resolution is deterministic across runs
		sort.SliceStable(records, func(i, j int) bool {
			return records[i].Source < records[j].Source
		})
		winner, err := prefs.ResolveConflict(records, strategy)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", key, err)
		}
		truth[key] = winner.Value
	}
	return truth, nil
}

// BuildPlan compares each provider state against the desired truth and
// returns the divergences. Extra findings are reported only when
// opts.RemoveExtra is set, since they are otherwise not actionable.
func BuildPlan(truth map[string]prefs.Value, states map[string]map[string]prefs.Metadata, opts Options) *Plan {
	plan := &Plan{
		Summary: Summary{
			Providers:   len(states),
			KeysChecked: len(truth),
		},
	}

	for name, state := range states {
		for key, want := range truth {
			md, ok := state[key]
			if !ok {
				plan.Summary.Missing++
				w := want.Clone()
				plan.Findings = append(plan.Findings, Finding{
					Provider: name,
					Key:      key,
					Type:     DriftMissing,
					Want:     &w,
				})
				continue
			}
			if !md.Value.Equal(want) {
				plan.Summary.Stale++
				w := want.Clone()
				h := md.Value.Clone()
				plan.Findings = append(plan.Findings, Finding{
					Provider: name,
					Key:      key,
					Type:     DriftStale,
					Want:     &w,
					Have:     &h,
				})
			}
		}

		if opts.RemoveExtra {
			for key, md := range state {
				if _, ok := truth[key]; ok {
					continue
				}
				plan.Summary.Extra++
				h := md.Value.Clone()
				plan.Findings = append(plan.Findings, Finding{
					Provider: name,
					Key:      key,
					Type:     DriftExtra,
					Have:     &h,
				})
			}
		}
	}

	// Sort findings for deterministic output
	sort.Slice(plan.Findings, func(i, j int) bool {
		a, b := plan.Findings[i], plan.Findings[j]
		if a.Provider != b.Provider {
			return a.Provider < b.Provider
		}
		return a.Key < b.Key
	})

	return plan
}

// Apply executes the plan's repairs against the providers. Missing and
// stale findings are written back; extra findings are deleted when
// opts.RemoveExtra is set. Requires opts.Confirmed=true and
// opts.DryRun=false to actually execute.
func Apply(ctx context.Context, providers []prefs.Provider, plan *Plan, opts Options) (executed int, err error) {
	if !opts.Confirmed || opts.DryRun {
		return 0, nil
	}

	byName := make(map[string]prefs.Provider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}

	for _, finding := range plan.Findings {
		p, ok := byName[finding.Provider]
		if !ok {
			return executed, fmt.Errorf("apply: unknown provider %s", finding.Provider)
		}

		switch finding.Type {
		case DriftMissing, DriftStale:
			if finding.Want == nil {
				return executed, fmt.Errorf("apply %s/%s: finding has no desired value", finding.Provider, finding.Key)
			}
			if err := p.Set(ctx, finding.Key, *finding.Want); err != nil {
				return executed, fmt.Errorf("apply %s/%s: %w", finding.Provider, finding.Key, err)
			}
			executed++
		case DriftExtra:
			if !opts.RemoveExtra {
				continue
			}
			if _, err := p.Delete(ctx, finding.Key); err != nil {
				return executed, fmt.Errorf("apply %s/%s: %w", finding.Provider, finding.Key, err)
			}
			executed++
		}
	}
	return executed, nil
}

// Run is a convenience wrapper that snapshots, resolves, plans and
// optionally applies in one call. The snapshot is served from the
// shared store for opts.SnapshotTTL and dropped after repairs execute.
func Run(ctx context.Context, providers []prefs.Provider, strategy prefs.Strategy, opts Options) (*Plan, int, error) {
	states, err := GetOrBuildSnapshot(ctx, providers, opts.SnapshotTTL)
	if err != nil {
		return nil, 0, err
	}
	truth, err := Truth(states, strategy)
	if err != nil {
		return nil, 0, err
	}
	plan := BuildPlan(truth, states, opts)

	executed, err := Apply(ctx, providers, plan, opts)
	if executed > 0 {
		// Repairs changed provider contents; the next run must re-snapshot.
		InvalidateSnapshot(providers)
	}
	return plan, executed, err
}
