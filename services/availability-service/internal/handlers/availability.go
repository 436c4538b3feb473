package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/studymatch/studymatch/libs/identity"
	"github.com/studymatch/studymatch/libs/schedule"
	"github.com/studymatch/studymatch/services/availability-service/internal/manager"
	"github.com/studymatch/studymatch/services/availability-service/internal/model"
)

// AvailabilityHandler exposes the weekly-availability API. The caller
// identity is resolved by identity.Middleware before any of these run.
type AvailabilityHandler struct {
	manager *manager.Manager
	logger  *slog.Logger
}

func NewAvailabilityHandler(mgr *manager.Manager, logger *slog.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{manager: mgr, logger: logger}
}

type slotPayload struct {
	DayOfWeek int    `json:"day_of_week"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type slotResponse struct {
	ID        string `json:"id"`
	DayOfWeek int    `json:"day_of_week"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type createSlotsRequest struct {
	Slots []slotPayload `json:"slots"`
}

type createSlotsResponse struct {
	Created int `json:"created"`
}

type gridRequest struct {
	UnitMinutes int              `json:"unit_minutes"`
	Days        map[string][]int `json:"days"`
}

type updateSlotRequest struct {
	SlotID    string  `json:"slot_id"`
	DayOfWeek *int    `json:"day_of_week"`
	StartTime *string `json:"start_time"`
	EndTime   *string `json:"end_time"`
}

type conflictPair struct {
	Candidate slotPayload    `json:"candidate"`
	Existing  []slotResponse `json:"existing"`
}

type conflictResponse struct {
	Error     string         `json:"error"`
	Conflicts []conflictPair `json:"conflicts,omitempty"`
}

type overlapResponse struct {
	UserID       string      `json:"user_id"`
	PerDay       map[int]int `json:"per_day_minutes"`
	TotalMinutes int         `json:"total_minutes"`
}

// Slots serves GET (list own slots) and POST (batch create) on the
// collection path.
func (h *AvailabilityHandler) Slots(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.create(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *AvailabilityHandler) list(w http.ResponseWriter, r *http.Request) {
	ownerID := identity.CallerFromContext(r.Context())
	slots, err := h.manager.ListSlots(r.Context(), ownerID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	out := make([]slotResponse, 0, len(slots))
	for _, s := range slots {
		out = append(out, toSlotResponse(s))
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func (h *AvailabilityHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createSlotsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	candidates := make([]model.AvailabilitySlot, 0, len(req.Slots))
	for _, p := range req.Slots {
		slot, errMsg := slotFromPayload(p)
		if errMsg != "" {
			http.Error(w, errMsg, http.StatusBadRequest)
			return
		}
		candidates = append(candidates, slot)
	}

	ownerID := identity.CallerFromContext(r.Context())
	count, err := h.manager.CreateSlots(r.Context(), ownerID, candidates)
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(createSlotsResponse{Created: count})
}

// Grid accepts raw UI grid selections (per-day unit start minutes on a
// fixed granularity), consolidates them into minimal ranges and stores the
// result as a regular batch create.
func (h *AvailabilityHandler) Grid(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req gridRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if req.UnitMinutes <= 0 {
		req.UnitMinutes = 60
	}

	unitsByDay := make(map[int][]int, len(req.Days))
	for key, units := range req.Days {
		day, err := strconv.Atoi(strings.TrimSpace(key))
		if err != nil || day < 0 || day > 6 {
			http.Error(w, "day keys must be integers 0..6", http.StatusBadRequest)
			return
		}
		for _, u := range units {
			if u < 0 || u+req.UnitMinutes > schedule.MinutesPerDay {
				http.Error(w, "selected unit outside the day", http.StatusBadRequest)
				return
			}
			if u%req.UnitMinutes != 0 {
				http.Error(w, "selected unit not aligned to unit_minutes", http.StatusBadRequest)
				return
			}
		}
		unitsByDay[day] = units
	}

	var candidates []model.AvailabilitySlot
	for day, ranges := range schedule.ConsolidateWeek(unitsByDay, req.UnitMinutes) {
		for _, iv := range ranges {
			candidates = append(candidates, model.AvailabilitySlot{
				DayOfWeek:   day,
				StartMinute: iv.Start,
				EndMinute:   iv.End,
			})
		}
	}

	ownerID := identity.CallerFromContext(r.Context())
	count, err := h.manager.CreateSlots(r.Context(), ownerID, candidates)
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(createSlotsResponse{Created: count})
}

// Slot serves PATCH (partial update, slot_id in body) and DELETE
// (slot_id query parameter) for a single slot.
func (h *AvailabilityHandler) Slot(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPatch:
		h.update(w, r)
	case http.MethodDelete:
		h.delete(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *AvailabilityHandler) update(w http.ResponseWriter, r *http.Request) {
	var req updateSlotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.SlotID = strings.TrimSpace(req.SlotID)
	if req.SlotID == "" {
		http.Error(w, "slot_id required", http.StatusBadRequest)
		return
	}

	var patch model.SlotPatch
	if req.DayOfWeek != nil {
		patch.DayOfWeek = req.DayOfWeek
	}
	if req.StartTime != nil {
		if !schedule.ClockPattern.MatchString(*req.StartTime) {
			http.Error(w, "start_time must be HH:MM", http.StatusBadRequest)
			return
		}
		m := schedule.MinutesOfDay(*req.StartTime)
		patch.StartMinute = &m
	}
	if req.EndTime != nil {
		if !schedule.ClockPattern.MatchString(*req.EndTime) {
			http.Error(w, "end_time must be HH:MM", http.StatusBadRequest)
			return
		}
		m := schedule.MinutesOfDay(*req.EndTime)
		patch.EndMinute = &m
	}

	ownerID := identity.CallerFromContext(r.Context())
	updated, err := h.manager.UpdateSlot(r.Context(), ownerID, req.SlotID, patch)
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(toSlotResponse(updated))
}

func (h *AvailabilityHandler) delete(w http.ResponseWriter, r *http.Request) {
	slotID := strings.TrimSpace(r.URL.Query().Get("slot_id"))
	if slotID == "" {
		http.Error(w, "slot_id required", http.StatusBadRequest)
		return
	}

	ownerID := identity.CallerFromContext(r.Context())
	if err := h.manager.DeleteSlot(r.Context(), ownerID, slotID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Overlap reports the shared weekly minutes between the caller and another
// user, per day and in total. The total is the raw compatibility signal the
// matching feature ranks on.
func (h *AvailabilityHandler) Overlap(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	otherID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if otherID == "" {
		http.Error(w, "user_id required", http.StatusBadRequest)
		return
	}

	ownerID := identity.CallerFromContext(r.Context())
	perDay, total, err := h.manager.WeeklyOverlap(r.Context(), ownerID, otherID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := overlapResponse{UserID: otherID, PerDay: map[int]int{}, TotalMinutes: total}
	for day, minutes := range perDay {
		if minutes > 0 {
			resp.PerDay[day] = minutes
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (h *AvailabilityHandler) writeError(w http.ResponseWriter, err error) {
	var verr *manager.ValidationError
	if errors.As(err, &verr) {
		http.Error(w, verr.Reason, http.StatusBadRequest)
		return
	}

	var cerr *manager.ConflictError
	if errors.As(err, &cerr) {
		resp := conflictResponse{Error: "requested ranges overlap existing availability"}
		for _, c := range cerr.Conflicts {
			pair := conflictPair{Candidate: slotPayload{
				DayOfWeek: c.Candidate.Weekday,
				StartTime: schedule.Clock(c.Candidate.Start),
				EndTime:   schedule.Clock(c.Candidate.End),
			}}
			for _, e := range c.Existing {
				pair.Existing = append(pair.Existing, slotResponse{
					ID:        e.ID,
					DayOfWeek: e.Weekday,
					StartTime: schedule.Clock(e.Start),
					EndTime:   schedule.Clock(e.End),
				})
			}
			resp.Conflicts = append(resp.Conflicts, pair)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(resp)
		return
	}

	if errors.Is(err, manager.ErrNotFound) {
		http.Error(w, "slot not found", http.StatusNotFound)
		return
	}
	if errors.Is(err, manager.ErrNotOwner) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	h.logger.Error("availability request failed", "err", err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func slotFromPayload(p slotPayload) (model.AvailabilitySlot, string) {
	if p.DayOfWeek < 0 || p.DayOfWeek > 6 {
		return model.AvailabilitySlot{}, "day_of_week must be 0..6"
	}
	if !schedule.ClockPattern.MatchString(p.StartTime) {
		return model.AvailabilitySlot{}, "start_time must be HH:MM"
	}
	if !schedule.ClockPattern.MatchString(p.EndTime) {
		return model.AvailabilitySlot{}, "end_time must be HH:MM"
	}
	return model.AvailabilitySlot{
		DayOfWeek:   p.DayOfWeek,
		StartMinute: schedule.MinutesOfDay(p.StartTime),
		EndMinute:   schedule.MinutesOfDay(p.EndTime),
	}, ""
}

func toSlotResponse(s model.AvailabilitySlot) slotResponse {
	return slotResponse{
		ID:        s.ID,
		DayOfWeek: s.DayOfWeek,
		StartTime: schedule.Clock(s.StartMinute),
		EndTime:   schedule.Clock(s.EndMinute),
	}
}
