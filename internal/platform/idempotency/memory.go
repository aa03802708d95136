package idempotency

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps records in process memory. It backs tests and local
// runs without a Firestore emulator.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func expiredAt(rec Record, now time.Time) bool {
	return !rec.ExpiresAt.IsZero() && !now.Before(rec.ExpiresAt)
}

// Reserve claims the key for this fingerprint. An expired record is
// treated as absent and re-reserved.
func (s *MemoryStore) Reserve(_ context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Reservation, error) {
	now = now.UTC()
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := recordID(key)
	rec, ok := s.records[id]
	if !ok || expiredAt(rec, now) {
		rec = Record{
			Key:         key,
			Fingerprint: fingerprint,
			Status:      StatusPending,
			CreatedAt:   now,
			UpdatedAt:   now,
			ExpiresAt:   now.Add(ttl),
		}
		s.records[id] = rec
		return Reservation{State: ReservationStateNew, Record: rec}, nil
	}

	if rec.Fingerprint != fingerprint {
		return Reservation{}, ErrFingerprintMismatch
	}
	state := ReservationStatePending
	if rec.Status == StatusCompleted {
		state = ReservationStateCompleted
	}
	return Reservation{State: state, Record: rec}, nil
}

// SaveResponse marks the key completed with the response to replay.
func (s *MemoryStore) SaveResponse(_ context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error {
	now = now.UTC()
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := recordID(key)
	rec, ok := s.records[id]
	if ok && rec.Fingerprint != fingerprint {
		return ErrFingerprintMismatch
	}
	if !ok || rec.CreatedAt.IsZero() {
		rec.Key = key
		rec.Fingerprint = fingerprint
		rec.CreatedAt = now
	}

	rec.Status = StatusCompleted
	rec.ResponseStatus = resp.Status
	rec.ResponseHeaders = sanitizeHeaders(resp.Headers)
	rec.ResponseBody = nil
	if len(resp.Body) > 0 {
		rec.ResponseBody = append([]byte(nil), resp.Body...)
	}
	rec.UpdatedAt = now
	rec.ExpiresAt = now.Add(ttl)
	s.records[id] = rec
	return nil
}

// Release drops the reservation so the key can be retried.
func (s *MemoryStore) Release(_ context.Context, key, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, recordID(key))
	return nil
}

// CleanupExpired removes up to limit expired records.
func (s *MemoryStore) CleanupExpired(_ context.Context, now time.Time, limit int) (int, error) {
	now = now.UTC()
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 || limit > len(s.records) {
		limit = len(s.records)
	}
	removed := 0
	for id, rec := range s.records {
		if removed >= limit {
			break
		}
		if expiredAt(rec, now) {
			delete(s.records, id)
			removed++
		}
	}
	return removed, nil
}
