package manager

import (
	"context"
	"errors"
	"log/slog"

	"github.com/studymatch/studymatch/libs/schedule"
	"github.com/studymatch/studymatch/services/availability-service/internal/model"
)

// ErrStoreConflict is how a SlotStore implementation reports that the
// storage layer itself rejected overlapping rows (the exclusion constraint
// closing the check-then-act race). The manager translates it into a
// ConflictError.
var ErrStoreConflict = errors.New("store rejected overlapping slots")

// SlotStore is the durable per-owner slot collection. Implementations
// return ErrNotFound from this package for missing slot ids and
// ErrStoreConflict for storage-level overlap rejections.
type SlotStore interface {
	FindByOwner(ctx context.Context, ownerID string) ([]model.AvailabilitySlot, error)
	FindByOwnerExcluding(ctx context.Context, ownerID, slotID string) ([]model.AvailabilitySlot, error)
	FindByID(ctx context.Context, slotID string) (model.AvailabilitySlot, error)
	CreateMany(ctx context.Context, ownerID string, slots []model.AvailabilitySlot) (int, error)
	UpdateOne(ctx context.Context, slotID string, patch model.SlotPatch) (model.AvailabilitySlot, error)
	DeleteOne(ctx context.Context, slotID string) error
}

// Manager orchestrates slot create/update/delete for one resolved owner,
// running the conflict gate before any write reaches the store.
type Manager struct {
	store  SlotStore
	logger *slog.Logger
}

func New(store SlotStore, logger *slog.Logger) *Manager {
	return &Manager{store: store, logger: logger}
}

// CreateSlots validates and persists a batch of candidate slots for the
// owner. The batch is all-or-nothing: one conflicting candidate blocks
// every candidate, and no partial commit ever happens.
//
// Candidates are checked against the owner's stored slots and against each
// other; the stored-state check uses schedule.FindConflicts, whose contract
// deliberately excludes intra-batch pairs, so those are gathered separately
// here.
func (m *Manager) CreateSlots(ctx context.Context, ownerID string, candidates []model.AvailabilitySlot) (int, error) {
	if len(candidates) == 0 {
		return 0, validationErrorf("no slots submitted")
	}
	for _, c := range candidates {
		if err := validateSlot(c); err != nil {
			return 0, err
		}
	}

	existing, err := m.store.FindByOwner(ctx, ownerID)
	if err != nil {
		return 0, &StoreError{Op: "find by owner", Err: err}
	}

	candSlots := model.ScheduleSlots(candidates)
	conflicts := schedule.FindConflicts(candSlots, model.ScheduleSlots(existing))
	conflicts = append(conflicts, intraBatchConflicts(candSlots)...)
	if len(conflicts) > 0 {
		return 0, &ConflictError{Conflicts: conflicts}
	}

	count, err := m.store.CreateMany(ctx, ownerID, candidates)
	if err != nil {
		if errors.Is(err, ErrStoreConflict) {
			// A concurrent write for the same owner won the race; the
			// exclusion constraint caught what our snapshot check missed.
			return 0, &ConflictError{}
		}
		return 0, &StoreError{Op: "create many", Err: err}
	}
	m.logger.Info("slots created", "owner_id", ownerID, "count", count)
	return count, nil
}

// UpdateSlot merges the patch onto the stored slot and persists it, after
// re-running conflict detection against the owner's other slots whenever a
// timing field changed.
func (m *Manager) UpdateSlot(ctx context.Context, ownerID, slotID string, patch model.SlotPatch) (model.AvailabilitySlot, error) {
	current, err := m.store.FindByID(ctx, slotID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.AvailabilitySlot{}, ErrNotFound
		}
		return model.AvailabilitySlot{}, &StoreError{Op: "find by id", Err: err}
	}
	if current.OwnerID != ownerID {
		return model.AvailabilitySlot{}, ErrNotOwner
	}

	merged := current
	if patch.DayOfWeek != nil {
		merged.DayOfWeek = *patch.DayOfWeek
	}
	if patch.StartMinute != nil {
		merged.StartMinute = *patch.StartMinute
	}
	if patch.EndMinute != nil {
		merged.EndMinute = *patch.EndMinute
	}
	if err := validateSlot(merged); err != nil {
		return model.AvailabilitySlot{}, err
	}

	timingChanged := merged.DayOfWeek != current.DayOfWeek ||
		merged.StartMinute != current.StartMinute ||
		merged.EndMinute != current.EndMinute
	if timingChanged {
		siblings, err := m.store.FindByOwnerExcluding(ctx, ownerID, slotID)
		if err != nil {
			return model.AvailabilitySlot{}, &StoreError{Op: "find siblings", Err: err}
		}
		conflicts := schedule.FindConflicts(
			[]schedule.Slot{merged.ScheduleSlot()},
			model.ScheduleSlots(siblings),
		)
		if len(conflicts) > 0 {
			return model.AvailabilitySlot{}, &ConflictError{Conflicts: conflicts}
		}
	}

	updated, err := m.store.UpdateOne(ctx, slotID, patch)
	if err != nil {
		if errors.Is(err, ErrStoreConflict) {
			return model.AvailabilitySlot{}, &ConflictError{}
		}
		if errors.Is(err, ErrNotFound) {
			return model.AvailabilitySlot{}, ErrNotFound
		}
		return model.AvailabilitySlot{}, &StoreError{Op: "update one", Err: err}
	}
	m.logger.Info("slot updated", "owner_id", ownerID, "slot_id", slotID)
	return updated, nil
}

// DeleteSlot removes an owned slot. Deletion cannot introduce overlaps, so
// no conflict check runs.
func (m *Manager) DeleteSlot(ctx context.Context, ownerID, slotID string) error {
	current, err := m.store.FindByID(ctx, slotID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return &StoreError{Op: "find by id", Err: err}
	}
	if current.OwnerID != ownerID {
		return ErrNotOwner
	}

	if err := m.store.DeleteOne(ctx, slotID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return &StoreError{Op: "delete one", Err: err}
	}
	m.logger.Info("slot deleted", "owner_id", ownerID, "slot_id", slotID)
	return nil
}

// ListSlots returns the owner's full weekly schedule.
func (m *Manager) ListSlots(ctx context.Context, ownerID string) ([]model.AvailabilitySlot, error) {
	slots, err := m.store.FindByOwner(ctx, ownerID)
	if err != nil {
		return nil, &StoreError{Op: "find by owner", Err: err}
	}
	return slots, nil
}

// WeeklyOverlap computes the per-day and total shared minutes between two
// owners' stored schedules.
func (m *Manager) WeeklyOverlap(ctx context.Context, ownerA, ownerB string) (perDay [7]int, total int, err error) {
	slotsA, err := m.store.FindByOwner(ctx, ownerA)
	if err != nil {
		return perDay, 0, &StoreError{Op: "find by owner", Err: err}
	}
	slotsB, err := m.store.FindByOwner(ctx, ownerB)
	if err != nil {
		return perDay, 0, &StoreError{Op: "find by owner", Err: err}
	}
	perDay, total = schedule.WeekOverlap(model.ScheduleSlots(slotsA), model.ScheduleSlots(slotsB))
	return perDay, total, nil
}

func validateSlot(s model.AvailabilitySlot) *ValidationError {
	if s.DayOfWeek < 0 || s.DayOfWeek > 6 {
		return validationErrorf("day_of_week %d outside 0..6", s.DayOfWeek)
	}
	if s.StartMinute < 0 || s.EndMinute > schedule.MinutesPerDay {
		return validationErrorf("slot range outside the day")
	}
	if s.EndMinute <= s.StartMinute {
		return validationErrorf("end_time must be after start_time")
	}
	return nil
}

func intraBatchConflicts(candidates []schedule.Slot) []schedule.Conflict {
	var conflicts []schedule.Conflict
	for i, c := range candidates {
		var hits []schedule.Slot
		for j, other := range candidates {
			if i == j || c.Weekday != other.Weekday {
				continue
			}
			if c.Overlaps(other.Interval) {
				hits = append(hits, other)
			}
		}
		if len(hits) > 0 {
			conflicts = append(conflicts, schedule.Conflict{Candidate: c, Existing: hits})
		}
	}
	return conflicts
}
