package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuroplatform/simforms/pkg/schema"
	"github.com/neuroplatform/simforms/pkg/testsupport"
)

func TestFetchSpec_Success(t *testing.T) {
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/openapi.json", r.URL.Path)
		auth = r.Header.Get("Authorization")
		_, _ = w.Write(testsupport.SimulationSpec())
	}))
	defer server.Close()

	client := New(server.URL + "/")
	ctx := ContextWithToken(context.Background(), "secret")

	doc, err := client.FetchSpec(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret", auth)
	assert.Equal(t, "3.1.0", doc.Payload()["openapi"])
	assert.Equal(t, server.URL+"/openapi.json", doc.Location())

	cached, ok := client.Cache().Current()
	require.True(t, ok)
	assert.Equal(t, doc.Checksum(), cached.Checksum())
}

func TestFetchSpec_NotFound(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	_, err := New(server.URL).FetchSpec(context.Background())
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "OpenAPI specification not found"), err.Error())
	assert.True(t, IsKind(err, KindProtocol))
}

func TestFetchSpec_Failures(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
		prefix  string
		kind    ErrorKind
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
			prefix: "Failed to fetch OpenAPI specification: 502",
			kind:   KindProtocol,
		},
		{
			name: "array body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`["not", "an", "object"]`))
			},
			prefix: "Invalid OpenAPI specification format",
			kind:   KindFormat,
		},
		{
			name: "html body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`<html></html>`))
			},
			prefix: "Invalid OpenAPI specification format",
			kind:   KindFormat,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(tc.handler)
			defer server.Close()

			_, err := New(server.URL).FetchSpec(context.Background())
			require.Error(t, err)
			assert.True(t, strings.HasPrefix(err.Error(), tc.prefix), err.Error())
			assert.True(t, IsKind(err, tc.kind))
		})
	}
}

func TestFetchSpec_Connectivity(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	base := server.URL
	server.Close()

	_, err := New(base).FetchSpec(context.Background())
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "Unable to connect to API server at "+base), err.Error())
	assert.True(t, IsKind(err, KindConnectivity))

	_, err = New("not a url").FetchSpec(context.Background())
	require.Error(t, err)
	assert.Equal(t, "Invalid API URL", err.Error())
	assert.ErrorIs(t, err, ErrInvalidBaseURL)
}

func TestFetchSpec_SharesInFlightRequest(t *testing.T) {
	var hits atomic.Int32
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		_, _ = w.Write(testsupport.SimulationSpec())
	}))
	defer server.Close()

	client := New(server.URL)
	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.FetchSpec(context.Background())
			errs <- err
		}()
	}
	// Let the first request reach the handler before releasing it.
	for hits.Load() == 0 {
		runtime.Gosched()
	}
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.LessOrEqual(t, hits.Load(), int32(4))
	assert.GreaterOrEqual(t, hits.Load(), int32(1))
}

func TestFetchSpec_CancelledCallerDoesNotFailOthers(t *testing.T) {
	var hits atomic.Int32
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		_, _ = w.Write(testsupport.SimulationSpec())
	}))
	defer server.Close()

	client := New(server.URL)
	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := client.FetchSpec(ctx)
		first <- err
	}()
	for hits.Load() == 0 {
		runtime.Gosched()
	}

	second := make(chan error, 1)
	go func() {
		_, err := client.FetchSpec(context.Background())
		second <- err
	}()

	cancel()
	err := <-first
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, IsKind(err, KindConnectivity))

	close(release)
	require.NoError(t, <-second)
	_, ok := client.Cache().Current()
	assert.True(t, ok)
}

func TestSpecCache_LatestRequestWins(t *testing.T) {
	cache := NewSpecCache()
	older := cache.Begin()
	newer := cache.Begin()

	newDoc := schema.MustNewDocument(schema.SourceFromFS("new.json"), []byte(`{"v": 2}`))
	oldDoc := schema.MustNewDocument(schema.SourceFromFS("old.json"), []byte(`{"v": 1}`))

	current, ok := cache.Store(newer, newDoc)
	require.True(t, ok)
	assert.Equal(t, newDoc.Checksum(), current.Checksum())

	current, ok = cache.Store(older, oldDoc)
	assert.False(t, ok, "stale fetch must be discarded")
	assert.Equal(t, newDoc.Checksum(), current.Checksum())

	cached, _ := cache.Current()
	assert.Equal(t, "new.json", cached.Location())
}

func TestForms_PrefixesPaths(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/forms", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{"forms": []string{"generate/simulation-config", "generate/morphology-metrics"}})
	}))
	defer server.Close()

	forms, err := New(server.URL).Forms(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"/generate/simulation-config", "/generate/morphology-metrics"}, forms)
}

func TestInvoke(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/generate/simulation-config":
			var body map[string]any
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(map[string]any{"id": "campaign-1", "echo": body["type"]})
		case "/plain":
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte("bad input"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := New(server.URL)
	ctx := context.Background()

	ok := client.Invoke(ctx, "post", "/generate/simulation-config", map[string]any{"type": "SimulationsForm"})
	assert.True(t, ok.OK)
	assert.Equal(t, http.StatusCreated, ok.Status)
	assert.Equal(t, map[string]any{"id": "campaign-1", "echo": "SimulationsForm"}, ok.Data)

	plain := client.Invoke(ctx, http.MethodPost, "/plain", map[string]any{})
	assert.False(t, plain.OK)
	assert.Equal(t, http.StatusUnprocessableEntity, plain.Status)
	assert.Equal(t, "bad input", plain.Detail())
}

func TestInvoke_TransportFailureNormalized(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	base := server.URL
	server.Close()

	result := New(base).Invoke(context.Background(), http.MethodPost, "/generate/x", map[string]any{"a": 1})
	assert.False(t, result.OK)
	assert.Equal(t, http.StatusInternalServerError, result.Status)
	assert.Contains(t, result.Detail(), "Unable to connect to API server")

	invalid := New("::").Invoke(context.Background(), http.MethodPost, "/x", nil)
	assert.Equal(t, http.StatusInternalServerError, invalid.Status)
	assert.Equal(t, "Invalid API URL", invalid.Detail())
}

func TestResult_FieldErrors(t *testing.T) {
	result := Result{Status: 422, Data: map[string]any{
		"detail": []any{
			map[string]any{"loc": []any{"body", "initialize", "simulation_length"}, "msg": "field required"},
			map[string]any{"loc": []any{"body", "stimuli", "stim_0", "amplitude", 1.0}, "msg": "value is not a valid float"},
			map[string]any{"loc": []any{"body"}, "msg": ""},
		},
	}}

	assert.Equal(t, map[string][]string{
		"body.initialize.simulation_length": {"field required"},
		"body.stimuli.stim_0.amplitude.1":   {"value is not a valid float"},
	}, result.FieldErrors())

	assert.Nil(t, Result{Data: map[string]any{"detail": "boom"}}.FieldErrors())
}
