package storage

import (
	"context"
	"sync"

	"github.com/md-rashed-zaman/meetslot/libs/db"
)

const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

// Notification is one confirmation email attempt.
type Notification struct {
	EventID    string
	Recipients []string
	Subject    string
	Status     string
	Error      string
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Insert(ctx context.Context, n Notification) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO notifications (event_id, recipients, subject, status, error_reason)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''))
	`, n.EventID, n.Recipients, n.Subject, n.Status, n.Error)
	return err
}

type Memory struct {
	mu  sync.Mutex
	All []Notification
}

func (m *Memory) Insert(_ context.Context, n Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.All = append(m.All, n)
	return nil
}
