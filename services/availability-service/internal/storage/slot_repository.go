package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/studymatch/studymatch/libs/db"
	"github.com/studymatch/studymatch/services/availability-service/internal/manager"
	"github.com/studymatch/studymatch/services/availability-service/internal/model"
	"github.com/studymatch/studymatch/services/availability-service/internal/outbox"
)

// SlotRepository is the Postgres slot store. Every write also appends the
// owner's full post-change snapshot to the outbox inside the same
// transaction, so downstream consumers see exactly the committed state.
//
// The table carries an exclusion constraint on (owner_id, day_of_week,
// minute range); concurrent writers that both pass the manager's snapshot
// check cannot both commit overlapping rows.
type SlotRepository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewSlotRepository(pool *db.Pool, outboxRepo *outbox.Repository) *SlotRepository {
	return &SlotRepository{pool: pool, outbox: outboxRepo}
}

var _ manager.SlotStore = (*SlotRepository)(nil)

const slotColumns = `id, owner_id, day_of_week, start_minute, end_minute, created_at, updated_at`

func (r *SlotRepository) FindByOwner(ctx context.Context, ownerID string) ([]model.AvailabilitySlot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+slotColumns+`
		FROM availability_slots
		WHERE owner_id = $1
		ORDER BY day_of_week, start_minute
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSlots(rows)
}

func (r *SlotRepository) FindByOwnerExcluding(ctx context.Context, ownerID, slotID string) ([]model.AvailabilitySlot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+slotColumns+`
		FROM availability_slots
		WHERE owner_id = $1 AND id <> $2
		ORDER BY day_of_week, start_minute
	`, ownerID, slotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSlots(rows)
}

func (r *SlotRepository) FindByID(ctx context.Context, slotID string) (model.AvailabilitySlot, error) {
	var s model.AvailabilitySlot
	err := r.pool.QueryRow(ctx, `
		SELECT `+slotColumns+`
		FROM availability_slots
		WHERE id = $1
	`, slotID).Scan(&s.ID, &s.OwnerID, &s.DayOfWeek, &s.StartMinute, &s.EndMinute, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.AvailabilitySlot{}, manager.ErrNotFound
	}
	if err != nil {
		return model.AvailabilitySlot{}, err
	}
	return s, nil
}

func (r *SlotRepository) CreateMany(ctx context.Context, ownerID string, slots []model.AvailabilitySlot) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, s := range slots {
		id := s.ID
		if id == "" {
			id = uuid.NewString()
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO availability_slots (id, owner_id, day_of_week, start_minute, end_minute)
			VALUES ($1, $2, $3, $4, $5)
		`, id, ownerID, s.DayOfWeek, s.StartMinute, s.EndMinute)
		if err != nil {
			return 0, mapWriteError(err)
		}
	}

	if err := r.appendSnapshotEvent(ctx, tx, ownerID); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, mapWriteError(err)
	}
	return len(slots), nil
}

func (r *SlotRepository) UpdateOne(ctx context.Context, slotID string, patch model.SlotPatch) (model.AvailabilitySlot, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.AvailabilitySlot{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var s model.AvailabilitySlot
	err = tx.QueryRow(ctx, `
		UPDATE availability_slots
		SET day_of_week = COALESCE($2, day_of_week),
			start_minute = COALESCE($3, start_minute),
			end_minute = COALESCE($4, end_minute),
			updated_at = now()
		WHERE id = $1
		RETURNING `+slotColumns+`
	`, slotID, patch.DayOfWeek, patch.StartMinute, patch.EndMinute).
		Scan(&s.ID, &s.OwnerID, &s.DayOfWeek, &s.StartMinute, &s.EndMinute, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.AvailabilitySlot{}, manager.ErrNotFound
	}
	if err != nil {
		return model.AvailabilitySlot{}, mapWriteError(err)
	}

	if err := r.appendSnapshotEvent(ctx, tx, s.OwnerID); err != nil {
		return model.AvailabilitySlot{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.AvailabilitySlot{}, mapWriteError(err)
	}
	return s, nil
}

func (r *SlotRepository) DeleteOne(ctx context.Context, slotID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var ownerID string
	err = tx.QueryRow(ctx, `
		DELETE FROM availability_slots
		WHERE id = $1
		RETURNING owner_id
	`, slotID).Scan(&ownerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return manager.ErrNotFound
	}
	if err != nil {
		return err
	}

	if err := r.appendSnapshotEvent(ctx, tx, ownerID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// SnapshotPayload is the wire form of EventTypeSlotsChanged.
type SnapshotPayload struct {
	OwnerID   string         `json:"owner_id"`
	Slots     []SnapshotSlot `json:"slots"`
	ChangedAt time.Time      `json:"changed_at"`
}

type SnapshotSlot struct {
	ID          string `json:"id"`
	DayOfWeek   int    `json:"day_of_week"`
	StartMinute int    `json:"start_minute"`
	EndMinute   int    `json:"end_minute"`
}

func (r *SlotRepository) appendSnapshotEvent(ctx context.Context, tx pgx.Tx, ownerID string) error {
	rows, err := tx.Query(ctx, `
		SELECT `+slotColumns+`
		FROM availability_slots
		WHERE owner_id = $1
		ORDER BY day_of_week, start_minute
	`, ownerID)
	if err != nil {
		return err
	}
	defer rows.Close()
	slots, err := scanSlots(rows)
	if err != nil {
		return err
	}

	payload := SnapshotPayload{
		OwnerID:   ownerID,
		Slots:     make([]SnapshotSlot, 0, len(slots)),
		ChangedAt: time.Now().UTC(),
	}
	for _, s := range slots {
		payload.Slots = append(payload.Slots, SnapshotSlot{
			ID:          s.ID,
			DayOfWeek:   s.DayOfWeek,
			StartMinute: s.StartMinute,
			EndMinute:   s.EndMinute,
		})
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return r.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "availability",
		AggregateID:   ownerID,
		EventType:     outbox.EventTypeSlotsChanged,
		Payload:       body,
	})
}

func scanSlots(rows pgx.Rows) ([]model.AvailabilitySlot, error) {
	var out []model.AvailabilitySlot
	for rows.Next() {
		var s model.AvailabilitySlot
		if err := rows.Scan(&s.ID, &s.OwnerID, &s.DayOfWeek, &s.StartMinute, &s.EndMinute, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 23P01 exclusion_violation: the no-overlap constraint caught a
		// concurrent writer. 23505 covers duplicate ids.
		if pgErr.Code == "23P01" || pgErr.Code == "23505" {
			return manager.ErrStoreConflict
		}
	}
	return err
}
