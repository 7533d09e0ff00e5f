// Package memory provides the in-memory preference provider. It is the
// fastest source and the usual top-priority overlay for runtime
// overrides; contents are lost on shutdown.
package memory

import (
	"context"
	"sync"
	"time"

	"prefs-manager/core/prefs"
)

// Provider stores preferences in a mutex-guarded map. Records are
// cloned on the way in and out so callers never share mutable state
// with the store.
type Provider struct {
	mu       sync.RWMutex
	name     string
	priority prefs.Priority
	data     map[string]prefs.Metadata
}

// New returns an empty in-memory provider.
func New(name string, priority prefs.Priority) *Provider {
	if name == "" {
		name = "memory"
	}
	return &Provider{
		name:     name,
		priority: priority,
		data:     make(map[string]prefs.Metadata),
	}
}

func (p *Provider) Name() string             { return p.name }
func (p *Provider) Priority() prefs.Priority { return p.priority }

// Initialize is a no-op; the map is ready at construction.
func (p *Provider) Initialize(context.Context) error { return nil }

func (p *Provider) Get(_ context.Context, key string) (prefs.Metadata, bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	md, ok := p.data[key]
	if !ok {
		return prefs.Metadata{}, false, nil
	}
	return md.Clone(), true, nil
}

func (p *Provider) GetAll(context.Context) (map[string]prefs.Metadata, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make(map[string]prefs.Metadata, len(p.data))
	for k, md := range p.data {
		out[k] = md.Clone()
	}
	return out, nil
}

func (p *Provider) Set(_ context.Context, key string, value prefs.Value) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.data[key] = prefs.Metadata{
		Key:       key,
		Value:     value.Clone(),
		Priority:  p.priority,
		Source:    p.name,
		Timestamp: time.Now(),
	}
	return nil
}

func (p *Provider) Has(_ context.Context, key string) (bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.data[key]
	return ok, nil
}

func (p *Provider) Delete(_ context.Context, key string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, ok := p.data[key]
	delete(p.data, key)
	return ok, nil
}

func (p *Provider) Clear(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.data = make(map[string]prefs.Metadata)
	return nil
}
