package idempotency

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultHeaderName  = "Idempotency-Key"
	replayHeaderName   = "X-Idempotent-Replay"
	customerHeaderName = "X-Customer-Id"
)

// Logger is the printf-style logger the middleware reports store errors to.
type Logger interface {
	Printf(format string, args ...any)
}

type middlewareConfig struct {
	headerName string
	ttl        time.Duration
	methods    map[string]struct{}
	clock      func() time.Time
	logger     Logger
}

// MiddlewareOption customises the middleware.
type MiddlewareOption func(*middlewareConfig)

// WithHeader changes the header the key is read from.
func WithHeader(name string) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		if name = strings.TrimSpace(name); name != "" {
			cfg.headerName = name
		}
	}
}

// WithTTL changes how long completed records are retained.
func WithTTL(ttl time.Duration) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		if ttl > 0 {
			cfg.ttl = ttl
		}
	}
}

// WithMethods restricts which HTTP methods are guarded.
func WithMethods(methods ...string) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		if len(methods) == 0 {
			return
		}
		cfg.methods = make(map[string]struct{}, len(methods))
		for _, m := range methods {
			if m = strings.ToUpper(strings.TrimSpace(m)); m != "" {
				cfg.methods[m] = struct{}{}
			}
		}
	}
}

// WithLogger sets the logger for persistence failures.
func WithLogger(logger Logger) MiddlewareOption {
	return func(cfg *middlewareConfig) { cfg.logger = logger }
}

// WithClock overrides the time source for tests.
func WithClock(clock func() time.Time) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		if clock != nil {
			cfg.clock = clock
		}
	}
}

func mutatingMethods() map[string]struct{} {
	return map[string]struct{}{
		http.MethodPost:   {},
		http.MethodPut:    {},
		http.MethodPatch:  {},
		http.MethodDelete: {},
	}
}

// Middleware enforces idempotency on mutating requests: it requires the
// key header, replays stored responses, rejects concurrent use of a key,
// and records the handler's response for future replays.
func Middleware(store Store, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	if store == nil {
		return func(next http.Handler) http.Handler { return next }
	}

	cfg := middlewareConfig{
		headerName: defaultHeaderName,
		ttl:        DefaultTTL,
		methods:    mutatingMethods(),
		clock:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if len(cfg.methods) == 0 {
		cfg.methods = mutatingMethods()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, guarded := cfg.methods[r.Method]; !guarded {
				next.ServeHTTP(w, r)
				return
			}
			serveGuarded(store, cfg, next, w, r)
		})
	}
}

func serveGuarded(store Store, cfg middlewareConfig, next http.Handler, w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(r.Header.Get(cfg.headerName))
	if key == "" {
		respondError(w, http.StatusBadRequest, "idempotency_key_required", "missing idempotency key header")
		return
	}

	body, err := readAndReplayBody(r)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "idempotency_read_body_failed", "unable to read request body")
		return
	}

	identity := extractRequester(r)
	fingerprint := requestFingerprint(r, body, identity)
	scoped := scopedKey(key, identity)
	now := cfg.clock().UTC()

	reservation, err := store.Reserve(r.Context(), scoped, fingerprint, now, cfg.ttl)
	switch {
	case errors.Is(err, ErrFingerprintMismatch):
		respondError(w, http.StatusConflict, "idempotency_key_conflict", "idempotency key already used for a different request")
		return
	case err != nil:
		if cfg.logger != nil {
			cfg.logger.Printf("idempotency: store error: %v", err)
		}
		respondError(w, http.StatusInternalServerError, "idempotency_store_error", "unable to process idempotency key")
		return
	}

	switch reservation.State {
	case ReservationStateCompleted:
		writeReplay(w, reservation.Record)
		return
	case ReservationStatePending:
		respondError(w, http.StatusConflict, "idempotency_in_progress", "another request is processing this idempotency key")
		return
	}

	rec := &bufferedResponse{parent: w, header: make(http.Header)}
	next.ServeHTTP(rec, r)

	saved := Response{Status: rec.statusOrOK(), Headers: rec.header.Clone(), Body: rec.bytes()}
	if err := store.SaveResponse(r.Context(), scoped, fingerprint, saved, cfg.clock().UTC(), cfg.ttl); err != nil {
		if cfg.logger != nil {
			cfg.logger.Printf("idempotency: failed to persist response for key %s (identity %s): %v", key, identity, err)
		}
		if releaseErr := store.Release(r.Context(), scoped, fingerprint); releaseErr != nil && cfg.logger != nil {
			cfg.logger.Printf("idempotency: failed to release key %s after save failure: %v", key, releaseErr)
		}
		respondError(w, http.StatusInternalServerError, "idempotency_store_error", "unable to persist idempotency state")
		return
	}

	if err := rec.flush(); err != nil && cfg.logger != nil {
		cfg.logger.Printf("idempotency: failed to flush response for key %s: %v", key, err)
	}
}

func readAndReplayBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	if err := r.Body.Close(); err != nil {
		return nil, err
	}
	r.Body = io.NopCloser(bytes.NewReader(data))
	return data, nil
}

// extractRequester scopes keys by the caller-declared customer ID. Without
// one the key lives in a shared anonymous scope; the storage-level dedupe
// in the order transaction stays authoritative either way.
func extractRequester(r *http.Request) string {
	if customer := strings.ToLower(strings.TrimSpace(r.Header.Get(customerHeaderName))); customer != "" {
		return customer
	}
	return "anonymous"
}

func requestFingerprint(r *http.Request, body []byte, identity string) string {
	parts := []string{
		strings.ToUpper(r.Method),
		r.URL.Path,
		r.URL.RawQuery,
		r.Host,
		r.Header.Get("Content-Type"),
		identity,
	}
	if len(body) > 0 {
		parts = append(parts, sha256Hex(body))
	} else {
		parts = append(parts, "")
	}
	return sha256Hex([]byte(strings.Join(parts, "|")))
}

func scopedKey(key, identity string) string {
	key = strings.TrimSpace(key)
	if identity = strings.TrimSpace(identity); identity == "" {
		identity = "anonymous"
	}
	if key == "" {
		return identity
	}
	return key + "|" + identity
}

func writeReplay(w http.ResponseWriter, record Record) {
	for name := range w.Header() {
		w.Header().Del(name)
	}
	for name, values := range headersFromRecord(record.ResponseHeaders) {
		for _, v := range values {
			w.Header().Add(name, v)
		}
	}
	w.Header().Set(replayHeaderName, "true")

	status := record.ResponseStatus
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if len(record.ResponseBody) > 0 {
		_, _ = w.Write(record.ResponseBody)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":   code,
		"message": message,
	})
}

// bufferedResponse holds the handler output until the record is saved, so
// a store failure can still turn into an error response.
type bufferedResponse struct {
	parent http.ResponseWriter
	header http.Header
	status int
	body   bytes.Buffer
}

func (b *bufferedResponse) Header() http.Header { return b.header }

func (b *bufferedResponse) WriteHeader(status int) {
	if status > 0 {
		b.status = status
	}
}

func (b *bufferedResponse) Write(data []byte) (int, error) {
	if b.status == 0 {
		b.status = http.StatusOK
	}
	return b.body.Write(data)
}

func (b *bufferedResponse) statusOrOK() int {
	if b.status == 0 {
		return http.StatusOK
	}
	return b.status
}

func (b *bufferedResponse) bytes() []byte {
	if b.body.Len() == 0 {
		return nil
	}
	return b.body.Bytes()
}

func (b *bufferedResponse) flush() error {
	dst := b.parent.Header()
	for name := range dst {
		dst.Del(name)
	}
	for name, values := range b.header {
		for _, v := range values {
			dst.Add(name, v)
		}
	}
	b.parent.WriteHeader(b.statusOrOK())
	if b.body.Len() == 0 {
		return nil
	}
	_, err := b.parent.Write(b.body.Bytes())
	return err
}
