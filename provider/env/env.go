// Package env provides the environment-variable preference provider.
//
// The provider never touches ambient process state: it operates on an
// environment snapshot injected at construction (typically built from
// os.Environ by the caller), which keeps it testable without process
// isolation and makes writes visible only through the snapshot.
package env

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"prefs-manager/core/prefs"
)

// DefaultPrefix selects which snapshot entries are preference-bearing.
const DefaultPrefix = "PREFS_"

// Provider maps prefixed environment variables to preference keys:
// PREFS_UI_THEME becomes "ui.theme". Values are coerced from strings
// to the closest Value shape (bool, number, JSON document, string).
type Provider struct {
	mu       sync.RWMutex
	name     string
	priority prefs.Priority
	prefix   string
	vars     map[string]string
	loaded   time.Time
	written  map[string]time.Time
}

// New returns a provider over the given snapshot. An empty prefix
// falls back to DefaultPrefix. The snapshot is copied; later changes
// to the caller's map are not observed.
func New(name string, priority prefs.Priority, prefix string, snapshot map[string]string) *Provider {
	if name == "" {
		name = "env"
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}
	vars := make(map[string]string, len(snapshot))
	for k, v := range snapshot {
		vars[k] = v
	}
	return &Provider{
		name:     name,
		priority: priority,
		prefix:   prefix,
		vars:     vars,
		written:  make(map[string]time.Time),
	}
}

// Snapshot converts os.Environ-style "KEY=value" pairs into the map
// New expects.
func Snapshot(environ []string) map[string]string {
	out := make(map[string]string, len(environ))
	for _, kv := range environ {
		if idx := strings.IndexByte(kv, '='); idx > 0 {
			out[kv[:idx]] = kv[idx+1:]
		}
	}
	return out
}

func (p *Provider) Name() string             { return p.name }
func (p *Provider) Priority() prefs.Priority { return p.priority }

// Initialize records the load instant used as the timestamp for keys
// present in the snapshot.
func (p *Provider) Initialize(context.Context) error {
	p.mu.Lock()
	p.loaded = time.Now()
	p.mu.Unlock()
	return nil
}

func (p *Provider) Get(_ context.Context, key string) (prefs.Metadata, bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	raw, ok := p.vars[p.varName(key)]
	if !ok {
		return prefs.Metadata{}, false, nil
	}
	return p.record(key, raw), true, nil
}

func (p *Provider) GetAll(context.Context) (map[string]prefs.Metadata, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make(map[string]prefs.Metadata)
	for name, raw := range p.vars {
		if !strings.HasPrefix(name, p.prefix) {
			continue
		}
		key := p.prefKey(name)
		out[key] = p.record(key, raw)
	}
	return out, nil
}

func (p *Provider) Set(_ context.Context, key string, value prefs.Value) error {
	raw, err := serialize(value)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.vars[p.varName(key)] = raw
	p.written[key] = time.Now()
	p.mu.Unlock()
	return nil
}

func (p *Provider) Has(_ context.Context, key string) (bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.vars[p.varName(key)]
	return ok, nil
}

func (p *Provider) Delete(_ context.Context, key string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	name := p.varName(key)
	_, ok := p.vars[name]
	delete(p.vars, name)
	delete(p.written, key)
	return ok, nil
}

// Clear removes every prefixed variable; the rest of the snapshot is
// left alone.
func (p *Provider) Clear(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for name := range p.vars {
		if strings.HasPrefix(name, p.prefix) {
			delete(p.vars, name)
		}
	}
	p.written = make(map[string]time.Time)
	return nil
}

// varName maps "ui.theme" to "PREFS_UI_THEME".
func (p *Provider) varName(key string) string {
	return p.prefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// prefKey maps "PREFS_UI_THEME" back to "ui.theme".
func (p *Provider) prefKey(name string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(name, p.prefix), "_", "."))
}

// record builds metadata for a raw variable. Caller holds at least a
// read lock.
func (p *Provider) record(key, raw string) prefs.Metadata {
	ts := p.loaded
	if written, ok := p.written[key]; ok {
		ts = written
	}
	return prefs.Metadata{
		Key:       key,
		Value:     Coerce(raw),
		Priority:  p.priority,
		Source:    p.name,
		Timestamp: ts,
	}
}

// Coerce converts an environment string to the closest Value shape:
// booleans, then numbers, then JSON documents, then plain strings.
// Quoted JSON strings stay strings with the quotes intact; only
// object/array documents are parsed structurally.
func Coerce(raw string) prefs.Value {
	switch raw {
	case "true":
		return prefs.Bool(true)
	case "false":
		return prefs.Bool(false)
	case "null":
		return prefs.Null()
	}
	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		return prefs.Number(n)
	}
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		if v, err := prefs.ParseValue([]byte(trimmed)); err == nil {
			return v
		}
	}
	return prefs.String(raw)
}

// serialize renders a Value back into an environment string: plain
// strings stay raw, everything else is compact JSON.
func serialize(value prefs.Value) (string, error) {
	if s, ok := value.AsString(); ok {
		return s, nil
	}
	data, err := value.MarshalJSON()
	if err != nil {
		return "", err
	}
	return string(data), nil
}
