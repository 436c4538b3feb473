package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/studymatch/studymatch/libs/identity"
	"github.com/studymatch/studymatch/libs/schedule"
	"github.com/studymatch/studymatch/services/matching-service/internal/scoring"
)

// MatchesHandler serves ranked study-partner suggestions built from the
// mirrored availability snapshots.
type MatchesHandler struct {
	ranks     scoring.RankStore
	schedules scoring.ScheduleSource
	logger    *slog.Logger
}

func NewMatchesHandler(ranks scoring.RankStore, schedules scoring.ScheduleSource, logger *slog.Logger) *MatchesHandler {
	return &MatchesHandler{ranks: ranks, schedules: schedules, logger: logger}
}

type breakdownResponse struct {
	UserID       string      `json:"user_id"`
	PerDay       map[int]int `json:"per_day_minutes"`
	TotalMinutes int         `json:"total_minutes"`
}

// List returns the caller's matches ordered by shared weekly minutes.
func (h *MatchesHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 100 {
			http.Error(w, "limit must be 1..100", http.StatusBadRequest)
			return
		}
		limit = n
	}

	callerID := identity.CallerFromContext(r.Context())
	matches, err := h.ranks.Top(r.Context(), callerID, limit)
	if err != nil {
		h.logger.Error("rank lookup failed", "err", err, "owner_id", callerID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if matches == nil {
		matches = []scoring.RankedMatch{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(matches)
}

// Breakdown reports the day-by-day shared minutes between the caller and one
// candidate, recomputed from the snapshots rather than the cached score.
func (h *MatchesHandler) Breakdown(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	otherID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if otherID == "" {
		http.Error(w, "user_id required", http.StatusBadRequest)
		return
	}

	callerID := identity.CallerFromContext(r.Context())
	callerSlots, err := h.schedules.FindByOwner(r.Context(), callerID)
	if err != nil {
		h.logger.Error("snapshot lookup failed", "err", err, "owner_id", callerID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	otherSlots, err := h.schedules.FindByOwner(r.Context(), otherID)
	if err != nil {
		h.logger.Error("snapshot lookup failed", "err", err, "owner_id", otherID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	perDay, total := schedule.WeekOverlap(callerSlots, otherSlots)
	resp := breakdownResponse{UserID: otherID, PerDay: map[int]int{}, TotalMinutes: total}
	for day, minutes := range perDay {
		if minutes > 0 {
			resp.PerDay[day] = minutes
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
