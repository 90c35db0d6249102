package utils

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(url string, retries uint) *APIClient {
	c := NewAPIClient(url, time.Second, retries)
	c.InitialInterval = time.Millisecond
	c.Header.Set("Authorization", "Bearer key")
	return c
}

func TestDoJSONRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		var in map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		_ = json.NewEncoder(w).Encode(map[string]string{"echo": in["name"]})
	}))
	defer srv.Close()

	var out struct {
		Echo string `json:"echo"`
	}
	err := newTestClient(srv.URL, 3).DoJSON(context.Background(), http.MethodPost, "/x", map[string]string{"name": "yoma"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "yoma", out.Echo)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestDoJSONClientErrorIsPermanent(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad wallet", http.StatusBadRequest)
	}))
	defer srv.Close()

	err := newTestClient(srv.URL, 3).DoJSON(context.Background(), http.MethodGet, "/x", nil, nil)
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusBadRequest))
	assert.Contains(t, err.Error(), "bad wallet")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestDoJSONGivesUpAfterMaxRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := newTestClient(srv.URL, 2).DoJSON(context.Background(), http.MethodGet, "/x", nil, nil)
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusServiceUnavailable))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestDoJSONOnceDoesNotRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "v-1"})
	}))
	defer srv.Close()

	err := newTestClient(srv.URL, 3).DoJSONOnce(context.Background(), http.MethodPost, "/buy", map[string]string{"sku": "airtime"}, nil)
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusBadGateway))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
