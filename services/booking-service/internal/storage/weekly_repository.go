package storage

import (
	"context"
	"encoding/json"

	"github.com/md-rashed-zaman/meetslot/libs/db"
	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/model"
)

// WeeklyRepository keeps the single weekly availability row.
type WeeklyRepository struct {
	pool *db.Pool
}

func NewWeeklyRepository(pool *db.Pool) *WeeklyRepository {
	return &WeeklyRepository{pool: pool}
}

// Get returns an empty template when nothing has been saved yet.
func (r *WeeklyRepository) Get(ctx context.Context) (model.WeeklyAvailability, error) {
	var (
		w    model.WeeklyAvailability
		days []byte
	)
	err := r.pool.QueryRow(ctx, `SELECT timezone, days FROM weekly_availability WHERE id = 1`).Scan(&w.Timezone, &days)
	if IsNotFound(err) {
		return model.WeeklyAvailability{}, nil
	}
	if err != nil {
		return model.WeeklyAvailability{}, err
	}
	if err := json.Unmarshal(days, &w.Days); err != nil {
		return model.WeeklyAvailability{}, err
	}
	return w, nil
}

func (r *WeeklyRepository) Save(ctx context.Context, w model.WeeklyAvailability) error {
	days, err := json.Marshal(w.Days)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO weekly_availability (id, timezone, days, updated_at)
		VALUES (1, $1, $2, now())
		ON CONFLICT (id) DO UPDATE SET timezone = EXCLUDED.timezone, days = EXCLUDED.days, updated_at = now()
	`, w.Timezone, days)
	return err
}
