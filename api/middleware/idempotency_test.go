package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	pkgerrors "github.com/plusonehq/plusone-backend/pkg/errors"
)

type fakeStore struct {
	data map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string]string)}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	str, _ := value.(string)
	f.data[key] = str
	return true, nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("fake:%s:%s", scope, id)
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

// apiRouter mounts the middleware the way the real router does: with Use on
// the /api/v1 sub-router, where chi has only resolved the partial pattern at
// middleware time.
func apiRouter(store *fakeStore, handler http.HandlerFunc) http.Handler {
	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(Idempotency(store, nil))
		r.Post("/intents", handler)
		r.Route("/orders/{orderId}", func(r chi.Router) {
			r.Get("/", handler)
			r.Post("/link", handler)
			r.Post("/statuses", handler)
		})
	})
	return r
}

func TestGuardTTLSelection(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		want   time.Duration
		ok     bool
	}{
		{"intent", http.MethodPost, "/api/v1/intents", defaultIdempotencyTTL, true},
		{"status record", http.MethodPost, "/api/v1/orders/42/statuses", defaultIdempotencyTTL, true},
		{"link", http.MethodPost, "/api/v1/orders/42/link", criticalIdempotencyTTL, true},
		{"admin delete", http.MethodDelete, "/api/v1/admin/orders/42", criticalIdempotencyTTL, true},
		{"order detail", http.MethodGet, "/api/v1/orders/42", 0, false},
		{"history", http.MethodGet, "/api/v1/orders/42/history", 0, false},
	}

	for _, tt := range tests {
		ttl, ok := guardTTL(tt.method, tt.path)
		if ok != tt.ok {
			t.Fatalf("%s: expected ok=%v got %v", tt.name, tt.ok, ok)
		}
		if ok && ttl != tt.want {
			t.Fatalf("%s: expected ttl=%v got %v", tt.name, tt.want, ttl)
		}
	}
}

func TestIdempotencyGuardEngagesOnSubRouter(t *testing.T) {
	store := newFakeStore()
	handlerCalled := false
	router := apiRouter(store, func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		w.WriteHeader(http.StatusCreated)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/intents", strings.NewReader(`{"user_id":1}`))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without Idempotency-Key, got %d", resp.Code)
	}
	if handlerCalled {
		t.Fatalf("handler should not run without idempotency key")
	}

	// Unguarded reads pass through without a key.
	read := httptest.NewRequest(http.MethodGet, "/api/v1/orders/7", nil)
	readResp := httptest.NewRecorder()
	router.ServeHTTP(readResp, read)
	if readResp.Code != http.StatusCreated {
		t.Fatalf("expected unguarded route to reach handler, got %d", readResp.Code)
	}
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	store := newFakeStore()
	var calls int
	router := apiRouter(store, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	first := httptest.NewRequest(http.MethodPost, "/api/v1/orders/7/link", strings.NewReader(`{"external_order_id":555}`))
	first.Header.Set("Idempotency-Key", "abc")
	firstResp := httptest.NewRecorder()
	router.ServeHTTP(firstResp, first)
	if firstResp.Code != http.StatusAccepted {
		t.Fatalf("expected first response 202 got %d", firstResp.Code)
	}

	replay := httptest.NewRequest(http.MethodPost, "/api/v1/orders/7/link", strings.NewReader(`{"external_order_id":555}`))
	replay.Header.Set("Idempotency-Key", "abc")
	replayResp := httptest.NewRecorder()
	router.ServeHTTP(replayResp, replay)

	if replayResp.Code != http.StatusAccepted {
		t.Fatalf("expected replay status 202 got %d", replayResp.Code)
	}
	if replayResp.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("expected content-type header preserved")
	}
	if strings.TrimSpace(replayResp.Body.String()) != `{"ok":true}` {
		t.Fatalf("expected stored body got %s", replayResp.Body.String())
	}
	if calls != 1 {
		t.Fatalf("handler executed %d times, expected 1", calls)
	}
}

func TestIdempotencyDetectsBodyChange(t *testing.T) {
	store := newFakeStore()
	router := apiRouter(store, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	first := httptest.NewRequest(http.MethodPost, "/api/v1/intents", strings.NewReader(`{"user_id":1,"product_id":2,"post_id":3}`))
	first.Header.Set("Idempotency-Key", "xyz")
	router.ServeHTTP(httptest.NewRecorder(), first)

	changed := httptest.NewRequest(http.MethodPost, "/api/v1/intents", strings.NewReader(`{"user_id":1,"product_id":2,"post_id":4}`))
	changed.Header.Set("Idempotency-Key", "xyz")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, changed)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse error response: %v", err)
	}
	if payload.Error.Code != string(pkgerrors.CodeIdempotency) {
		t.Fatalf("expected error code %s got %s", pkgerrors.CodeIdempotency, payload.Error.Code)
	}
}

func TestIdempotencySkipsServerErrors(t *testing.T) {
	store := newFakeStore()
	var calls int
	router := apiRouter(store, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	})

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/intents", strings.NewReader(`{"user_id":1}`))
		req.Header.Set("Idempotency-Key", "retry-me")
		router.ServeHTTP(httptest.NewRecorder(), req)
	}

	if calls != 2 {
		t.Fatalf("server errors must not be replayed; handler ran %d times", calls)
	}
	if len(store.data) != 0 {
		t.Fatalf("expected no stored record for a failed request, found %d", len(store.data))
	}
}
