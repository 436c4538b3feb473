package scoring

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/studymatch/studymatch/libs/schedule"
)

// ScheduleSource is the local availability read model the scorer reads from.
type ScheduleSource interface {
	FindByOwner(ctx context.Context, ownerID string) ([]schedule.Slot, error)
	FindOthers(ctx context.Context, ownerID string) (map[string][]schedule.Slot, error)
}

// RankedMatch is one entry of a user's match ranking.
type RankedMatch struct {
	UserID        string `json:"user_id"`
	SharedMinutes int    `json:"shared_minutes"`
}

// RankStore keeps the per-user match rankings. Scores are symmetric:
// SetScore and DropPair affect both users' rankings.
type RankStore interface {
	SetScore(ctx context.Context, ownerID, otherID string, minutes int) error
	DropPair(ctx context.Context, ownerID, otherID string) error
	Top(ctx context.Context, ownerID string, limit int) ([]RankedMatch, error)
}

// Scorer recomputes match scores whenever a user's availability changes.
// The score between two users is their total shared weekly minutes.
type Scorer struct {
	schedules ScheduleSource
	ranks     RankStore
	logger    *slog.Logger
}

func New(schedules ScheduleSource, ranks RankStore, logger *slog.Logger) *Scorer {
	return &Scorer{schedules: schedules, ranks: ranks, logger: logger}
}

// Rescore recomputes the changed owner's overlap against every other known
// schedule. Pairs with zero shared minutes are dropped from both rankings so
// emptied availability cannot leave stale matches behind.
func (s *Scorer) Rescore(ctx context.Context, ownerID string) error {
	ownerSlots, err := s.schedules.FindByOwner(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("load owner schedule: %w", err)
	}
	others, err := s.schedules.FindOthers(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("load other schedules: %w", err)
	}

	scored := 0
	for otherID, otherSlots := range others {
		total := schedule.TotalOverlap(ownerSlots, otherSlots)
		if total == 0 {
			if err := s.ranks.DropPair(ctx, ownerID, otherID); err != nil {
				return fmt.Errorf("drop pair %s/%s: %w", ownerID, otherID, err)
			}
			continue
		}
		if err := s.ranks.SetScore(ctx, ownerID, otherID, total); err != nil {
			return fmt.Errorf("set score %s/%s: %w", ownerID, otherID, err)
		}
		scored++
	}

	s.logger.Info("rescored availability", "owner_id", ownerID, "candidates", len(others), "matches", scored)
	return nil
}
