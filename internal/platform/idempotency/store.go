// Package idempotency makes mutating endpoints safe to retry: the first
// request under a key runs and its response is recorded, later requests
// with the same key replay the stored response.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"
)

// DefaultTTL bounds how long completed records are kept.
const DefaultTTL = 24 * time.Hour

// Status is the lifecycle state of a record.
type Status string

const (
	// StatusPending marks a key reserved by an in-flight request.
	StatusPending Status = "pending"
	// StatusCompleted marks a key whose response is stored and replayable.
	StatusCompleted Status = "completed"
)

// ReservationState is the outcome of a Reserve call.
type ReservationState int

const (
	// ReservationStateNew lets the caller proceed with the handler.
	ReservationStateNew ReservationState = iota
	// ReservationStateCompleted means the stored response should be replayed.
	ReservationStateCompleted
	// ReservationStatePending means another request holds the key right now.
	ReservationStatePending
)

// Reservation is the Reserve result, carrying the record when one exists.
type Reservation struct {
	State  ReservationState
	Record Record
}

// Record is the persisted state for one idempotency key.
type Record struct {
	Key             string
	Fingerprint     string
	Status          Status
	ResponseStatus  int
	ResponseHeaders map[string][]string
	ResponseBody    []byte
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ExpiresAt       time.Time
}

// Response is the handler output to store for replays.
type Response struct {
	Status  int
	Headers http.Header
	Body    []byte
}

// Store persists reservations and completed responses.
type Store interface {
	Reserve(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Reservation, error)
	SaveResponse(ctx context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error
	Release(ctx context.Context, key, fingerprint string) error
	CleanupExpired(ctx context.Context, now time.Time, limit int) (int, error)
}

// ErrFingerprintMismatch means the key was reused for a different request.
var ErrFingerprintMismatch = errors.New("idempotency: key reserved for different request fingerprint")

// recordID derives the storage ID from the key alone; fingerprint
// comparison happens against the stored record so that reuse with a
// different payload is detected rather than silently forked.
func recordID(key string) string {
	return sha256Hex([]byte(strings.TrimSpace(key)))
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Hop-by-hop and per-response headers that must not be replayed.
var volatileHeaders = map[string]struct{}{
	"Content-Length":      {},
	"Date":                {},
	"Connection":          {},
	"Keep-Alive":          {},
	"Proxy-Authenticate":  {},
	"Proxy-Authorization": {},
	"Te":                  {},
	"Trailers":            {},
	"Transfer-Encoding":   {},
	"Upgrade":             {},
}

func sanitizeHeaders(header http.Header) map[string][]string {
	var kept map[string][]string
	for name, values := range header {
		canonical := http.CanonicalHeaderKey(name)
		if _, skip := volatileHeaders[canonical]; skip {
			continue
		}
		if kept == nil {
			kept = make(map[string][]string, len(header))
		}
		kept[canonical] = append([]string(nil), values...)
	}
	return kept
}

func headersFromRecord(values map[string][]string) http.Header {
	header := make(http.Header, len(values))
	for name, vals := range values {
		header[name] = append([]string(nil), vals...)
	}
	return header
}
