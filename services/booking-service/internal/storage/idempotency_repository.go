package storage

import (
	"context"
	"errors"
	"sync"

	"github.com/jackc/pgx/v5"

	"github.com/md-rashed-zaman/meetslot/libs/db"
)

type IdempotencyRecord struct {
	IdempotencyKey  string
	EventID         string
	StatusCode      int
	ResponsePayload []byte
}

// IdempotencyLease holds a key exclusively until Finalize or Release.
type IdempotencyLease interface {
	// Replay returns the stored response when the key was already completed.
	Replay() (status int, body []byte, ok bool)
	Finalize(ctx context.Context, eventID string, status int, body []byte) error
	Release(ctx context.Context)
}

// IdempotencyRepository locks the key row for the duration of a booking, so a
// retry with the same key waits and then replays the first response.
type IdempotencyRepository struct {
	pool *db.Pool
}

func NewIdempotencyRepository(pool *db.Pool) *IdempotencyRepository {
	return &IdempotencyRepository{pool: pool}
}

func (r *IdempotencyRepository) Acquire(ctx context.Context, key string) (IdempotencyLease, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	rec, err := lockIdempotencyKey(ctx, tx, key)
	if err != nil {
		_ = tx.Rollback(ctx)
		return nil, err
	}
	return &pgLease{tx: tx, rec: rec}, nil
}

func lockIdempotencyKey(ctx context.Context, tx pgx.Tx, key string) (IdempotencyRecord, error) {
	rec, err := selectIdempotencyForUpdate(ctx, tx, key)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return IdempotencyRecord{}, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO booking_idempotency_keys (idempotency_key)
		VALUES ($1)
		ON CONFLICT (idempotency_key) DO NOTHING
	`, key)
	if err != nil {
		return IdempotencyRecord{}, err
	}
	return selectIdempotencyForUpdate(ctx, tx, key)
}

func selectIdempotencyForUpdate(ctx context.Context, tx pgx.Tx, key string) (IdempotencyRecord, error) {
	var rec IdempotencyRecord
	var responseText string
	err := tx.QueryRow(ctx, `
		SELECT idempotency_key,
			COALESCE(event_id, ''),
			COALESCE(status_code, 0),
			COALESCE(response_payload::text, '')
		FROM booking_idempotency_keys
		WHERE idempotency_key = $1
		FOR UPDATE
	`, key).Scan(&rec.IdempotencyKey, &rec.EventID, &rec.StatusCode, &responseText)
	if err != nil {
		return IdempotencyRecord{}, err
	}
	if responseText != "" {
		rec.ResponsePayload = []byte(responseText)
	}
	return rec, nil
}

type pgLease struct {
	tx  pgx.Tx
	rec IdempotencyRecord
}

func (l *pgLease) Replay() (int, []byte, bool) {
	if l.rec.StatusCode == 0 {
		return 0, nil, false
	}
	return l.rec.StatusCode, l.rec.ResponsePayload, true
}

func (l *pgLease) Finalize(ctx context.Context, eventID string, status int, body []byte) error {
	_, err := l.tx.Exec(ctx, `
		UPDATE booking_idempotency_keys
		SET event_id = NULLIF($2, ''),
			status_code = $3,
			response_payload = $4,
			updated_at = now()
		WHERE idempotency_key = $1
	`, l.rec.IdempotencyKey, eventID, status, body)
	if err != nil {
		return err
	}
	return l.tx.Commit(ctx)
}

// Release rolls back, leaving the key free for a later retry. It is a no-op
// after Finalize.
func (l *pgLease) Release(ctx context.Context) {
	_ = l.tx.Rollback(ctx)
}

// MemoryIdempotency is the in-process variant used without a database.
type MemoryIdempotency struct {
	mu   sync.Mutex
	keys map[string]*memoryKey
}

type memoryKey struct {
	lock   chan struct{}
	status int
	body   []byte
}

func NewMemoryIdempotency() *MemoryIdempotency {
	return &MemoryIdempotency{keys: map[string]*memoryKey{}}
}

func (m *MemoryIdempotency) Acquire(ctx context.Context, key string) (IdempotencyLease, error) {
	m.mu.Lock()
	k, ok := m.keys[key]
	if !ok {
		k = &memoryKey{lock: make(chan struct{}, 1)}
		m.keys[key] = k
	}
	m.mu.Unlock()

	select {
	case k.lock <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &memoryLease{key: k}, nil
}

type memoryLease struct {
	key  *memoryKey
	once sync.Once
}

func (l *memoryLease) Replay() (int, []byte, bool) {
	if l.key.status == 0 {
		return 0, nil, false
	}
	return l.key.status, l.key.body, true
}

func (l *memoryLease) Finalize(_ context.Context, _ string, status int, body []byte) error {
	l.key.status = status
	l.key.body = append([]byte(nil), body...)
	l.Release(context.Background())
	return nil
}

func (l *memoryLease) Release(context.Context) {
	l.once.Do(func() { <-l.key.lock })
}
