package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/md-rashed-zaman/meetslot/libs/db"
	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/model"
)

// LocationRepository stores one row per civil date in location_schedule.
type LocationRepository struct {
	pool *db.Pool
}

func NewLocationRepository(pool *db.Pool) *LocationRepository {
	return &LocationRepository{pool: pool}
}

const selectLocation = `
	SELECT to_char(date, 'YYYY-MM-DD'), morning, afternoon, timezone, updated_at
	FROM location_schedule`

func (r *LocationRepository) Get(ctx context.Context, date string) (model.LocationScheduleEntry, bool, error) {
	rows, err := r.pool.Query(ctx, selectLocation+` WHERE date = $1::text::date`, date)
	if err != nil {
		return model.LocationScheduleEntry{}, false, err
	}
	e, err := pgx.CollectExactlyOneRow(rows, scanLocation)
	if IsNotFound(err) {
		return model.LocationScheduleEntry{}, false, nil
	}
	if err != nil {
		return model.LocationScheduleEntry{}, false, err
	}
	return e, true, nil
}

func (r *LocationRepository) List(ctx context.Context) ([]model.LocationScheduleEntry, error) {
	rows, err := r.pool.Query(ctx, selectLocation+` ORDER BY date`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanLocation)
}

// Upsert merges entries: empty fields leave the stored value untouched.
func (r *LocationRepository) Upsert(ctx context.Context, entries []model.LocationScheduleEntry) error {
	if len(entries) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(`
			INSERT INTO location_schedule (date, morning, afternoon, timezone, updated_at)
			VALUES ($1::text::date, $2, $3, $4, now())
			ON CONFLICT (date) DO UPDATE SET
				morning = COALESCE(NULLIF(EXCLUDED.morning, ''), location_schedule.morning),
				afternoon = COALESCE(NULLIF(EXCLUDED.afternoon, ''), location_schedule.afternoon),
				timezone = COALESCE(NULLIF(EXCLUDED.timezone, ''), location_schedule.timezone),
				updated_at = now()
		`, e.Date, e.Morning, e.Afternoon, e.Timezone)
	}
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return tx.SendBatch(ctx, batch).Close()
	})
}

// Clear removes a half-day label (or the whole day for TimeOfDayAll) and
// drops rows left with no labels.
func (r *LocationRepository) Clear(ctx context.Context, dates []string, part model.TimeOfDay) error {
	if len(dates) == 0 {
		return nil
	}
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		switch part {
		case model.TimeOfDayMorning:
			_, err = tx.Exec(ctx, `UPDATE location_schedule SET morning = '', updated_at = now() WHERE date = ANY($1::text[]::date[])`, dates)
		case model.TimeOfDayAfternoon:
			_, err = tx.Exec(ctx, `UPDATE location_schedule SET afternoon = '', updated_at = now() WHERE date = ANY($1::text[]::date[])`, dates)
		default:
			_, err = tx.Exec(ctx, `DELETE FROM location_schedule WHERE date = ANY($1::text[]::date[])`, dates)
		}
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			DELETE FROM location_schedule
			WHERE date = ANY($1::text[]::date[]) AND morning = '' AND afternoon = ''
		`, dates)
		return err
	})
}

// ReplaceAll swaps the whole table for entries in one transaction.
func (r *LocationRepository) ReplaceAll(ctx context.Context, entries []model.LocationScheduleEntry) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM location_schedule`); err != nil {
			return err
		}
		rows := make([][]any, 0, len(entries))
		now := time.Now().UTC()
		for _, e := range entries {
			if e.Empty() {
				continue
			}
			date, err := time.Parse("2006-01-02", e.Date)
			if err != nil {
				return err
			}
			rows = append(rows, []any{date, e.Morning, e.Afternoon, e.Timezone, now})
		}
		_, err := tx.CopyFrom(ctx,
			pgx.Identifier{"location_schedule"},
			[]string{"date", "morning", "afternoon", "timezone", "updated_at"},
			pgx.CopyFromRows(rows),
		)
		return err
	})
}

func scanLocation(row pgx.CollectableRow) (model.LocationScheduleEntry, error) {
	var e model.LocationScheduleEntry
	err := row.Scan(&e.Date, &e.Morning, &e.Afternoon, &e.Timezone, &e.UpdatedAt)
	return e, err
}
