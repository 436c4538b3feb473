package storage

import (
	"context"
	"fmt"

	"github.com/studymatch/studymatch/libs/db"
	"github.com/studymatch/studymatch/libs/schedule"
)

// SnapshotSlot is one stored row of an owner's mirrored weekly schedule,
// matching the slot shape carried by availability snapshot events.
type SnapshotSlot struct {
	ID          string `json:"id"`
	DayOfWeek   int    `json:"day_of_week"`
	StartMinute int    `json:"start_minute"`
	EndMinute   int    `json:"end_minute"`
}

// ScheduleRepository keeps a local read model of every user's availability,
// rebuilt from full-owner snapshots as events arrive.
type ScheduleRepository struct {
	pool *db.Pool
}

func NewScheduleRepository(pool *db.Pool) *ScheduleRepository {
	return &ScheduleRepository{pool: pool}
}

// ReplaceOwner swaps the owner's mirrored schedule for the snapshot in one
// transaction. Snapshots are full state, so replace is idempotent and safe
// under event reordering within an owner.
func (r *ScheduleRepository) ReplaceOwner(ctx context.Context, ownerID string, slots []SnapshotSlot) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM schedule_snapshots WHERE owner_id = $1`, ownerID); err != nil {
		return fmt.Errorf("clear snapshot: %w", err)
	}
	for _, s := range slots {
		_, err := tx.Exec(ctx, `
			INSERT INTO schedule_snapshots (slot_id, owner_id, day_of_week, start_minute, end_minute)
			VALUES ($1, $2, $3, $4, $5)
		`, s.ID, ownerID, s.DayOfWeek, s.StartMinute, s.EndMinute)
		if err != nil {
			return fmt.Errorf("insert snapshot row: %w", err)
		}
	}
	return tx.Commit(ctx)
}

// FindByOwner returns the mirrored schedule for one owner. An owner with no
// stored slots yields an empty slice, not an error.
func (r *ScheduleRepository) FindByOwner(ctx context.Context, ownerID string) ([]schedule.Slot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT slot_id, day_of_week, start_minute, end_minute
		FROM schedule_snapshots
		WHERE owner_id = $1
		ORDER BY day_of_week, start_minute
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query snapshot: %w", err)
	}
	defer rows.Close()

	var slots []schedule.Slot
	for rows.Next() {
		var s schedule.Slot
		if err := rows.Scan(&s.ID, &s.Weekday, &s.Interval.Start, &s.Interval.End); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		slots = append(slots, s)
	}
	return slots, rows.Err()
}

// FindOthers returns every other owner's mirrored schedule, keyed by owner.
func (r *ScheduleRepository) FindOthers(ctx context.Context, ownerID string) (map[string][]schedule.Slot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT owner_id, slot_id, day_of_week, start_minute, end_minute
		FROM schedule_snapshots
		WHERE owner_id <> $1
		ORDER BY owner_id, day_of_week, start_minute
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]schedule.Slot)
	for rows.Next() {
		var owner string
		var s schedule.Slot
		if err := rows.Scan(&owner, &s.ID, &s.Weekday, &s.Interval.Start, &s.Interval.End); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		out[owner] = append(out[owner], s)
	}
	return out, rows.Err()
}
