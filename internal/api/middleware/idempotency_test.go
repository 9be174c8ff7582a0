package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// fakeStore is a map-backed Store; expirations are ignored.
type fakeStore struct {
	data map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string]string)}
}

func (s *fakeStore) Get(ctx context.Context, key string) *redis.StringCmd {
	if v, ok := s.data[key]; ok {
		return redis.NewStringResult(v, nil)
	}
	return redis.NewStringResult("", redis.Nil)
}

func (s *fakeStore) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	if _, ok := s.data[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	s.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (s *fakeStore) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	s.data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (s *fakeStore) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := s.data[k]; ok {
			delete(s.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func doRequest(t *testing.T, h http.Handler, key string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/events", nil)
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestIdempotencyRejectsDuplicateAfterSuccess(t *testing.T) {
	store := newFakeStore()
	calls := 0
	h := Idempotency(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusAccepted)
	}))

	first := doRequest(t, h, "k1")
	require.Equal(t, http.StatusAccepted, first.Code)
	require.Equal(t, "COMPLETED", store.data["ingest:idem:k1"])

	second := doRequest(t, h, "k1")
	require.Equal(t, http.StatusConflict, second.Code)
	require.Equal(t, "true", second.Header().Get("X-Idempotency-Hit"))
	require.Equal(t, 1, calls)
}

func TestIdempotencyAllowsRetryAfterFailedIngest(t *testing.T) {
	store := newFakeStore()
	calls := 0
	h := Idempotency(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))

	first := doRequest(t, h, "k1")
	require.Equal(t, http.StatusBadGateway, first.Code)
	// The failed attempt must not pin the key.
	require.NotContains(t, store.data, "ingest:idem:k1")

	second := doRequest(t, h, "k1")
	require.Equal(t, http.StatusAccepted, second.Code)
	require.Equal(t, 2, calls)
	require.Equal(t, "COMPLETED", store.data["ingest:idem:k1"])
}

func TestIdempotencyPassesThroughWithoutKey(t *testing.T) {
	store := newFakeStore()
	h := Idempotency(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	w := doRequest(t, h, "")
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Empty(t, store.data)
}

func TestIdempotencyRejectsConcurrentRequest(t *testing.T) {
	store := newFakeStore()
	store.data["ingest:idem:k1"] = "PROCESSING"
	// Get sees the in-progress marker, so even the concurrent path reports
	// a conflict without reaching the handler.
	h := Idempotency(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run while the key is held")
	}))

	w := doRequest(t, h, "k1")
	require.Equal(t, http.StatusConflict, w.Code)
}
