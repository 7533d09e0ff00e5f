// Package file provides the file-backed preference provider: a single
// JSON document on disk, loaded on Initialize and flushed on every
// mutation. Key order in the document is preserved across rewrites.
package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"prefs-manager/core/prefs"
)

// Provider persists preferences as one JSON document:
//
//	{"preferences": {...}, "timestamps": {"key": "RFC3339"}}
//
// The timestamps block records per-key write instants for recency
// tie-breaks; keys without one fall back to the load instant.
type Provider struct {
	mu       sync.RWMutex
	name     string
	priority prefs.Priority
	path     string

	doc        *prefs.Object // ordered key -> value
	timestamps map[string]time.Time
	loaded     time.Time
}

// New returns a provider persisting to path. The file is not touched
// until Initialize.
func New(name string, priority prefs.Priority, path string) *Provider {
	if name == "" {
		name = "file"
	}
	return &Provider{
		name:       name,
		priority:   priority,
		path:       path,
		doc:        prefs.NewObject(),
		timestamps: make(map[string]time.Time),
	}
}

func (p *Provider) Name() string             { return p.name }
func (p *Provider) Priority() prefs.Priority { return p.priority }

// Initialize loads the document. A missing file is an empty store; a
// malformed one is an error.
func (p *Provider) Initialize(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.loaded = time.Now()

	data, err := os.ReadFile(p.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", p.path, err)
	}

	doc, err := prefs.ParseValue(data)
	if err != nil {
		return fmt.Errorf("parse %s: %w", p.path, err)
	}
	root, ok := doc.AsObject()
	if !ok {
		return fmt.Errorf("parse %s: document root must be an object", p.path)
	}

	if raw, ok := root.Get("preferences"); ok {
		if obj, ok := raw.AsObject(); ok {
			p.doc = obj.Clone()
		}
	}
	if raw, ok := root.Get("timestamps"); ok {
		if obj, ok := raw.AsObject(); ok {
			for _, key := range obj.Keys() {
				v, _ := obj.Get(key)
				if s, ok := v.AsString(); ok {
					if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
						p.timestamps[key] = ts
					}
				}
			}
		}
	}
	return nil
}

func (p *Provider) Get(_ context.Context, key string) (prefs.Metadata, bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	value, ok := p.doc.Get(key)
	if !ok {
		return prefs.Metadata{}, false, nil
	}
	return p.record(key, value), true, nil
}

func (p *Provider) GetAll(context.Context) (map[string]prefs.Metadata, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make(map[string]prefs.Metadata, p.doc.Len())
	for _, key := range p.doc.Keys() {
		value, _ := p.doc.Get(key)
		out[key] = p.record(key, value)
	}
	return out, nil
}

func (p *Provider) Set(_ context.Context, key string, value prefs.Value) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.doc.Set(key, value.Clone())
	p.timestamps[key] = time.Now()
	return p.flush()
}

func (p *Provider) Has(_ context.Context, key string) (bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.doc.Get(key)
	return ok, nil
}

func (p *Provider) Delete(_ context.Context, key string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.doc.Get(key); !ok {
		return false, nil
	}
	p.doc.Delete(key)
	delete(p.timestamps, key)
	return true, p.flush()
}

func (p *Provider) Clear(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.doc = prefs.NewObject()
	p.timestamps = make(map[string]time.Time)
	return p.flush()
}

// record builds metadata for one key. Caller holds at least a read
// lock.
func (p *Provider) record(key string, value prefs.Value) prefs.Metadata {
	ts := p.loaded
	if written, ok := p.timestamps[key]; ok {
		ts = written
	}
	return prefs.Metadata{
		Key:       key,
		Value:     value.Clone(),
		Priority:  p.priority,
		Source:    p.name,
		Timestamp: ts,
	}
}

// flush rewrites the document. Caller holds the write lock. The write
// goes through a temp file and rename so a crash mid-write cannot
// truncate the store.
func (p *Provider) flush() error {
	root := prefs.NewObject()
	root.Set("preferences", prefs.ObjectValue(p.doc))

	stamps := prefs.NewObject()
	for _, key := range p.doc.Keys() {
		if ts, ok := p.timestamps[key]; ok {
			stamps.Set(key, prefs.String(ts.Format(time.RFC3339Nano)))
		}
	}
	root.Set("timestamps", prefs.ObjectValue(stamps))

	data, err := prefs.ObjectValue(root).MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode %s: %w", p.path, err)
	}

	dir := filepath.Dir(p.path)
	tmp, err := os.CreateTemp(dir, ".prefs-*.json")
	if err != nil {
		return fmt.Errorf("write %s: %w", p.path, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", p.path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", p.path, err)
	}
	if err := os.Rename(tmp.Name(), p.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", p.path, err)
	}
	return nil
}
