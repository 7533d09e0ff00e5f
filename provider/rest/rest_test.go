package rest

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"prefs-manager/core/prefs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRemote is a minimal in-memory implementation of the wire
// contract the provider speaks.
type fakeRemote struct {
	mu    sync.Mutex
	store map[string]string // key -> value JSON
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{store: make(map[string]string)}
}

func (f *fakeRemote) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/preferences", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		switch r.Method {
		case http.MethodGet:
			w.Header().Set("Content-Type", "application/json")
			out := "["
			first := true
			for k, v := range f.store {
				if !first {
					out += ","
				}
				first = false
				out += `{"key":"` + k + `","value":` + v + `,"updated_at":"2026-01-02T03:04:05Z"}`
			}
			out += "]"
			w.Write([]byte(out))
		case http.MethodDelete:
			f.store = make(map[string]string)
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/preferences/", func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Path[len("/preferences/"):]
		f.mu.Lock()
		defer f.mu.Unlock()
		switch r.Method {
		case http.MethodGet:
			v, ok := f.store[key]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"key":"` + key + `","value":` + v + `,"updated_at":"2026-01-02T03:04:05Z"}`))
		case http.MethodPut:
			doc, err := io.ReadAll(r.Body)
			if err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			parsed, err := prefs.ParseValue(doc)
			if err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			obj, _ := parsed.AsObject()
			value, ok := obj.Get("value")
			if !ok {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			data, _ := value.MarshalJSON()
			f.store[key] = string(data)
			w.WriteHeader(http.StatusNoContent)
		case http.MethodDelete:
			if _, ok := f.store[key]; !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			delete(f.store, key)
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
	return mux
}

func newTestProvider(t *testing.T) (*Provider, *fakeRemote) {
	t.Helper()
	remote := newFakeRemote()
	srv := httptest.NewServer(remote.handler())
	t.Cleanup(srv.Close)
	return New("rest", prefs.PriorityLow, srv.URL, Options{Client: srv.Client()}), remote
}

func TestProvider_RoundTrip(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestProvider(t)
	require.NoError(t, p.Initialize(ctx))

	want := prefs.ObjectValue(prefs.NewObject().Set("theme", prefs.String("dark")))
	require.NoError(t, p.Set(ctx, "ui", want))

	md, ok, err := p.Get(ctx, "ui")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "ui", md.Key)
	assert.Equal(t, "rest", md.Source)
	assert.True(t, md.Value.Equal(want))
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), md.Timestamp)
}

func TestProvider_GetMissing(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestProvider(t)

	_, ok, err := p.Get(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestProvider_DeleteReportsPresence(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestProvider(t)

	require.NoError(t, p.Set(ctx, "k", prefs.Number(1)))
	removed, err := p.Delete(ctx, "k")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = p.Delete(ctx, "k")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestProvider_GetAllAndClear(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestProvider(t)

	require.NoError(t, p.Set(ctx, "a", prefs.Number(1)))
	require.NoError(t, p.Set(ctx, "b", prefs.Bool(true)))

	all, err := p.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.True(t, all["a"].Value.Equal(prefs.Number(1)))

	require.NoError(t, p.Clear(ctx))
	all, err = p.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestProvider_RetriesServerErrors(t *testing.T) {
	ctx := context.Background()

	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"key":"k","value":"v"}`))
	}))
	defer srv.Close()

	p := New("rest", prefs.PriorityLow, srv.URL, Options{Client: srv.Client()})
	md, ok, err := p.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, md.Value.Equal(prefs.String("v")))
	assert.Equal(t, 3, calls)
}

func TestProvider_GivesUpAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()

	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := New("rest", prefs.PriorityLow, srv.URL, Options{Client: srv.Client()})
	_, _, err := p.Get(ctx, "k")
	require.Error(t, err)
	assert.Equal(t, maxAttempts, calls)
}

func TestProvider_InitializeFailsOnBadBase(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p := New("rest", prefs.PriorityLow, srv.URL+"/wrong", Options{Client: srv.Client()})
	assert.Error(t, p.Initialize(context.Background()))
}
