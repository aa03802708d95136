package idempotency

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	defaultCollection  = "idempotency_keys"
	defaultMaxAttempts = 5
)

// FirestoreStore persists idempotency records in a Firestore collection.
type FirestoreStore struct {
	client      *firestore.Client
	collection  string
	maxAttempts int
}

// FirestoreOption customises the FirestoreStore.
type FirestoreOption func(*FirestoreStore)

// WithCollection overrides the collection name.
func WithCollection(name string) FirestoreOption {
	return func(s *FirestoreStore) {
		if name != "" {
			s.collection = name
		}
	}
}

// WithMaxAttempts bounds transaction retries.
func WithMaxAttempts(attempts int) FirestoreOption {
	return func(s *FirestoreStore) {
		if attempts > 0 {
			s.maxAttempts = attempts
		}
	}
}

// NewFirestoreStore builds a store on the given client.
func NewFirestoreStore(client *firestore.Client, opts ...FirestoreOption) *FirestoreStore {
	s := &FirestoreStore{
		client:      client,
		collection:  defaultCollection,
		maxAttempts: defaultMaxAttempts,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

type storedRecord struct {
	Key             string              `firestore:"key"`
	Fingerprint     string              `firestore:"fingerprint"`
	Status          string              `firestore:"status"`
	ResponseStatus  int                 `firestore:"response_status"`
	ResponseHeaders map[string][]string `firestore:"response_headers"`
	ResponseBody    []byte              `firestore:"response_body"`
	CreatedAt       time.Time           `firestore:"created_at"`
	UpdatedAt       time.Time           `firestore:"updated_at"`
	ExpiresAt       time.Time           `firestore:"expires_at"`
}

func (r storedRecord) toRecord() Record {
	return Record{
		Key:             r.Key,
		Fingerprint:     r.Fingerprint,
		Status:          Status(r.Status),
		ResponseStatus:  r.ResponseStatus,
		ResponseHeaders: r.ResponseHeaders,
		ResponseBody:    r.ResponseBody,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
		ExpiresAt:       r.ExpiresAt,
	}
}

func pendingRecord(key, fingerprint string, now time.Time, ttl time.Duration) storedRecord {
	return storedRecord{
		Key:         key,
		Fingerprint: fingerprint,
		Status:      string(StatusPending),
		CreatedAt:   now,
		UpdatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
}

func (s *FirestoreStore) doc(key string) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(recordID(key))
}

func (s *FirestoreStore) attempts() int {
	if s.maxAttempts > 0 {
		return s.maxAttempts
	}
	return 1
}

// Reserve claims the key inside a transaction so two concurrent requests
// with the same key cannot both run the handler.
func (s *FirestoreStore) Reserve(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Reservation, error) {
	now = now.UTC()
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	ref := s.doc(key)

	var result Reservation
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) != codes.NotFound {
				return err
			}
			rec := pendingRecord(key, fingerprint, now, ttl)
			if err := tx.Set(ref, rec); err != nil {
				return err
			}
			result = Reservation{State: ReservationStateNew, Record: rec.toRecord()}
			return nil
		}

		var rec storedRecord
		if err := snap.DataTo(&rec); err != nil {
			return err
		}
		if rec.Fingerprint != fingerprint {
			return ErrFingerprintMismatch
		}

		if !rec.ExpiresAt.IsZero() && !now.Before(rec.ExpiresAt) {
			rec = pendingRecord(key, fingerprint, now, ttl)
			if err := tx.Set(ref, rec); err != nil {
				return err
			}
			result = Reservation{State: ReservationStateNew, Record: rec.toRecord()}
			return nil
		}

		state := ReservationStatePending
		if rec.Status == string(StatusCompleted) {
			state = ReservationStateCompleted
		}
		result = Reservation{State: state, Record: rec.toRecord()}
		return nil
	}, firestore.MaxAttempts(s.attempts()))

	return result, err
}

// SaveResponse stores the completed response under the key.
func (s *FirestoreStore) SaveResponse(ctx context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error {
	now = now.UTC()
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	ref := s.doc(key)

	headers := sanitizeHeaders(resp.Headers)
	var body []byte
	if len(resp.Body) > 0 {
		body = append([]byte(nil), resp.Body...)
	}

	return s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		var rec storedRecord
		snap, err := tx.Get(ref)
		switch {
		case err == nil:
			if err := snap.DataTo(&rec); err != nil {
				return err
			}
			if rec.Fingerprint != fingerprint {
				return ErrFingerprintMismatch
			}
			if rec.CreatedAt.IsZero() {
				rec.CreatedAt = now
			}
		case status.Code(err) == codes.NotFound:
			rec = storedRecord{Key: key, Fingerprint: fingerprint, CreatedAt: now}
		default:
			return err
		}

		rec.Status = string(StatusCompleted)
		rec.ResponseStatus = resp.Status
		rec.ResponseHeaders = headers
		rec.ResponseBody = body
		rec.UpdatedAt = now
		rec.ExpiresAt = now.Add(ttl)
		return tx.Set(ref, rec)
	}, firestore.MaxAttempts(s.attempts()))
}

// Release deletes the reservation so the caller may retry.
func (s *FirestoreStore) Release(ctx context.Context, key, _ string) error {
	_, err := s.doc(key).Delete(ctx)
	if status.Code(err) == codes.NotFound {
		return nil
	}
	return err
}

// CleanupExpired deletes up to limit expired records in one batch.
func (s *FirestoreStore) CleanupExpired(ctx context.Context, now time.Time, limit int) (int, error) {
	now = now.UTC()
	if limit <= 0 {
		limit = 100
	}

	docs, err := s.client.Collection(s.collection).
		Where("expires_at", "<=", now).
		Limit(limit).
		Documents(ctx).GetAll()
	if err != nil {
		return 0, err
	}
	if len(docs) == 0 {
		return 0, nil
	}

	batch := s.client.Batch()
	for _, doc := range docs {
		batch.Delete(doc.Ref)
	}
	if _, err := batch.Commit(ctx); err != nil {
		return 0, err
	}
	return len(docs), nil
}
