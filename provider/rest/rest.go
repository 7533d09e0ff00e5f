// Package rest provides the HTTP-backed preference provider. It speaks
// a small JSON contract against a remote preference service:
//
//	GET    /preferences           list every record
//	GET    /preferences/{key}     one record or 404
//	PUT    /preferences/{key}     upsert a record
//	DELETE /preferences/{key}     remove a record, 404 when absent
//	DELETE /preferences           remove every record
//
// Records travel as {"key": ..., "value": ..., "updated_at": RFC3339}.
// Transient failures (transport errors and 5xx responses) are retried
// with bounded exponential backoff.
package rest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"prefs-manager/core/prefs"
)

const (
	defaultTimeout = 10 * time.Second
	maxAttempts    = 3
	baseBackoff    = 100 * time.Millisecond
)

// Provider proxies preference operations to a remote HTTP service.
type Provider struct {
	name     string
	priority prefs.Priority
	base     string
	client   *http.Client
}

// Options tunes the HTTP behaviour; the zero value uses defaults.
type Options struct {
	// Timeout bounds each individual request attempt.
	Timeout time.Duration
	// Client overrides the HTTP client, used by tests.
	Client *http.Client
}

// New returns a provider against baseURL, e.g. "http://prefs:8080".
func New(name string, priority prefs.Priority, baseURL string, opts Options) *Provider {
	if name == "" {
		name = "rest"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := opts.Client
	if client == nil {
		// Strict transport timeouts so a dead remote cannot hang calls
		client = &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   timeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				ForceAttemptHTTP2:     true,
				MaxIdleConns:          100,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   timeout,
				ExpectContinueTimeout: 1 * time.Second,
				ResponseHeaderTimeout: timeout,
			},
		}
	}
	return &Provider{
		name:     name,
		priority: priority,
		base:     strings.TrimSuffix(baseURL, "/"),
		client:   client,
	}
}

func (p *Provider) Name() string             { return p.name }
func (p *Provider) Priority() prefs.Priority { return p.priority }

// Initialize probes the remote listing endpoint so a misconfigured
// base URL fails fast instead of on first use.
func (p *Provider) Initialize(ctx context.Context) error {
	resp, err := p.do(ctx, http.MethodGet, p.base+"/preferences", nil)
	if err != nil {
		return fmt.Errorf("probe %s: %w", p.base, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("probe %s: unexpected status %d", p.base, resp.StatusCode)
	}
	return nil
}

func (p *Provider) Get(ctx context.Context, key string) (prefs.Metadata, bool, error) {
	resp, err := p.do(ctx, http.MethodGet, p.keyURL(key), nil)
	if err != nil {
		return prefs.Metadata{}, false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return prefs.Metadata{}, false, nil
	default:
		return prefs.Metadata{}, false, fmt.Errorf("get %s: unexpected status %d", key, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return prefs.Metadata{}, false, fmt.Errorf("get %s: %w", key, err)
	}
	md, err := p.decodeRecord(key, body)
	if err != nil {
		return prefs.Metadata{}, false, err
	}
	return md, true, nil
}

func (p *Provider) GetAll(ctx context.Context) (map[string]prefs.Metadata, error) {
	resp, err := p.do(ctx, http.MethodGet, p.base+"/preferences", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list preferences: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("list preferences: %w", err)
	}

	doc, err := prefs.ParseValue(body)
	if err != nil {
		return nil, fmt.Errorf("list preferences: %w", err)
	}
	items, ok := doc.AsArray()
	if !ok {
		return nil, fmt.Errorf("list preferences: response is not an array")
	}

	out := make(map[string]prefs.Metadata, len(items))
	for _, item := range items {
		obj, ok := item.AsObject()
		if !ok {
			return nil, fmt.Errorf("list preferences: record is not an object")
		}
		rawKey, _ := obj.Get("key")
		key, ok := rawKey.AsString()
		if !ok || key == "" {
			return nil, fmt.Errorf("list preferences: record without key")
		}
		md, err := p.recordFromObject(key, obj)
		if err != nil {
			return nil, err
		}
		out[key] = md
	}
	return out, nil
}

func (p *Provider) Set(ctx context.Context, key string, value prefs.Value) error {
	payload := prefs.NewObject().Set("value", value)
	body, err := prefs.ObjectValue(payload).MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	resp, err := p.do(ctx, http.MethodPut, p.keyURL(key), body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("put %s: unexpected status %d", key, resp.StatusCode)
	}
	return nil
}

func (p *Provider) Has(ctx context.Context, key string) (bool, error) {
	_, ok, err := p.Get(ctx, key)
	return ok, err
}

func (p *Provider) Delete(ctx context.Context, key string) (bool, error) {
	resp, err := p.do(ctx, http.MethodDelete, p.keyURL(key), nil)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("delete %s: unexpected status %d", key, resp.StatusCode)
	}
}

func (p *Provider) Clear(ctx context.Context) error {
	resp, err := p.do(ctx, http.MethodDelete, p.base+"/preferences", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("clear preferences: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (p *Provider) keyURL(key string) string {
	return p.base + "/preferences/" + url.PathEscape(key)
}

// do issues one request with retries. Transport errors and 5xx
// responses retry with exponential backoff until maxAttempts; any
// other response returns immediately.
func (p *Provider) do(ctx context.Context, method, rawURL string, body []byte) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := baseBackoff << (attempt - 1)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", method, rawURL, err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := p.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}
		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("%s %s: status %d", method, rawURL, resp.StatusCode)
			continue
		}
		return resp, nil
	}
	return nil, fmt.Errorf("%s %s: %w", method, rawURL, lastErr)
}

// decodeRecord parses one record envelope.
func (p *Provider) decodeRecord(key string, body []byte) (prefs.Metadata, error) {
	doc, err := prefs.ParseValue(body)
	if err != nil {
		return prefs.Metadata{}, fmt.Errorf("parse %s: %w", key, err)
	}
	obj, ok := doc.AsObject()
	if !ok {
		return prefs.Metadata{}, fmt.Errorf("parse %s: record is not an object", key)
	}
	return p.recordFromObject(key, obj)
}

func (p *Provider) recordFromObject(key string, obj *prefs.Object) (prefs.Metadata, error) {
	value, ok := obj.Get("value")
	if !ok {
		return prefs.Metadata{}, fmt.Errorf("parse %s: record without value", key)
	}

	ts := time.Now()
	if raw, ok := obj.Get("updated_at"); ok {
		if s, ok := raw.AsString(); ok {
			if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
				ts = parsed
			}
		}
	}

	return prefs.Metadata{
		Key:       key,
		Value:     value,
		Priority:  p.priority,
		Source:    p.name,
		Timestamp: ts,
	}, nil
}
