package idempotency

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

var mwNow = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

func newGuard(t *testing.T, store Store, next http.HandlerFunc) http.Handler {
	t.Helper()
	mw := Middleware(store, WithClock(func() time.Time { return mwNow }))
	return mw(next)
}

func postOrder(key, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	return req
}

func wantErrorCode(t *testing.T, payload []byte, want string) {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	if body.Error != want {
		t.Fatalf("error code = %q, want %q", body.Error, want)
	}
}

func TestMiddlewareRequiresKeyHeader(t *testing.T) {
	called := false
	handler := newGuard(t, NewMemoryStore(), func(http.ResponseWriter, *http.Request) {
		called = true
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, postOrder("", `{"cartId":"c1"}`))

	if called {
		t.Fatal("handler ran without an idempotency key")
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	wantErrorCode(t, rec.Body.Bytes(), "idempotency_key_required")
}

func TestMiddlewareSkipsReads(t *testing.T) {
	called := false
	handler := newGuard(t, NewMemoryStore(), func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/order-1", nil))

	if !called || rec.Code != http.StatusOK {
		t.Fatalf("GET should pass through, called=%v status=%d", called, rec.Code)
	}
}

func TestMiddlewareReplaysStoredResponse(t *testing.T) {
	calls := 0
	handler := newGuard(t, NewMemoryStore(), func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"order-1"}`))
	})

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, postOrder("key-1", `{"cartId":"c1"}`))
	if calls != 1 || first.Code != http.StatusCreated {
		t.Fatalf("first request: calls=%d status=%d", calls, first.Code)
	}

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, postOrder("key-1", `{"cartId":"c1"}`))

	if calls != 1 {
		t.Fatalf("handler ran again on replay, calls=%d", calls)
	}
	if second.Code != http.StatusCreated {
		t.Fatalf("replay status = %d, want 201", second.Code)
	}
	if second.Header().Get(replayHeaderName) != "true" {
		t.Fatal("replay header missing")
	}
	if ct := second.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("replayed content-type = %q", ct)
	}
	if second.Body.String() != first.Body.String() {
		t.Fatalf("replayed body %q differs from original %q", second.Body.String(), first.Body.String())
	}
}

func TestMiddlewareRejectsKeyReuseWithDifferentBody(t *testing.T) {
	handler := newGuard(t, NewMemoryStore(), func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, postOrder("key-1", `{"cartId":"c1"}`))
	if first.Code != http.StatusOK {
		t.Fatalf("first request status = %d", first.Code)
	}

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, postOrder("key-1", `{"cartId":"other"}`))
	if second.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", second.Code)
	}
	wantErrorCode(t, second.Body.Bytes(), "idempotency_key_conflict")
}

func TestMiddlewareScopesKeysByCustomer(t *testing.T) {
	calls := 0
	handler := newGuard(t, NewMemoryStore(), func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	})

	for _, customer := range []string{"shopper-a", "shopper-b"} {
		req := postOrder("shared-key", `{"cartId":"c1"}`)
		req.Header.Set("X-Customer-Id", customer)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("customer %s: status = %d, want 201", customer, rec.Code)
		}
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want one per customer scope", calls)
	}
}

func TestMiddlewarePendingReservationConflicts(t *testing.T) {
	store := NewMemoryStore()
	handler := newGuard(t, store, func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run while the key is pending")
	})

	req := postOrder("key-1", `{"cartId":"c1"}`)
	body, err := readAndReplayBody(req)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	identity := extractRequester(req)
	scoped := scopedKey("key-1", identity)
	if _, err := store.Reserve(req.Context(), scoped, requestFingerprint(req, body, identity), mwNow, time.Hour); err != nil {
		t.Fatalf("seed reservation: %v", err)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	wantErrorCode(t, rec.Body.Bytes(), "idempotency_in_progress")
}

func TestMiddlewareReleasesKeyWhenSaveFails(t *testing.T) {
	store := &failingSaveStore{}
	handler := newGuard(t, store, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("ok"))
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, postOrder("key-1", `{"cartId":"c1"}`))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	wantErrorCode(t, rec.Body.Bytes(), "idempotency_store_error")
	if !store.released {
		t.Fatal("reservation was not released after save failure")
	}
}

type failingSaveStore struct {
	released bool
}

func (s *failingSaveStore) Reserve(context.Context, string, string, time.Time, time.Duration) (Reservation, error) {
	return Reservation{State: ReservationStateNew}, nil
}

func (s *failingSaveStore) SaveResponse(context.Context, string, string, Response, time.Time, time.Duration) error {
	return errors.New("save failed")
}

func (s *failingSaveStore) Release(context.Context, string, string) error {
	s.released = true
	return nil
}

func (s *failingSaveStore) CleanupExpired(context.Context, time.Time, int) (int, error) {
	return 0, nil
}
