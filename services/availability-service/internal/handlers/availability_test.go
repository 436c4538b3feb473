package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/studymatch/studymatch/libs/identity"
	"github.com/studymatch/studymatch/services/availability-service/internal/manager"
	"github.com/studymatch/studymatch/services/availability-service/internal/model"
)

type staticProvider struct{ caller string }

func (p staticProvider) ResolveCaller(*http.Request) (string, error) {
	if p.caller == "" {
		return "", identity.ErrUnauthenticated
	}
	return p.caller, nil
}

type memStore struct {
	slots  []model.AvailabilitySlot
	nextID int
}

func (s *memStore) FindByOwner(_ context.Context, ownerID string) ([]model.AvailabilitySlot, error) {
	var out []model.AvailabilitySlot
	for _, slot := range s.slots {
		if slot.OwnerID == ownerID {
			out = append(out, slot)
		}
	}
	return out, nil
}

func (s *memStore) FindByOwnerExcluding(ctx context.Context, ownerID, slotID string) ([]model.AvailabilitySlot, error) {
	all, _ := s.FindByOwner(ctx, ownerID)
	var out []model.AvailabilitySlot
	for _, slot := range all {
		if slot.ID != slotID {
			out = append(out, slot)
		}
	}
	return out, nil
}

func (s *memStore) FindByID(_ context.Context, slotID string) (model.AvailabilitySlot, error) {
	for _, slot := range s.slots {
		if slot.ID == slotID {
			return slot, nil
		}
	}
	return model.AvailabilitySlot{}, manager.ErrNotFound
}

func (s *memStore) CreateMany(_ context.Context, ownerID string, slots []model.AvailabilitySlot) (int, error) {
	for _, slot := range slots {
		s.nextID++
		slot.ID = fmt.Sprintf("slot-%d", s.nextID)
		slot.OwnerID = ownerID
		s.slots = append(s.slots, slot)
	}
	return len(slots), nil
}

func (s *memStore) UpdateOne(_ context.Context, slotID string, patch model.SlotPatch) (model.AvailabilitySlot, error) {
	for i, slot := range s.slots {
		if slot.ID != slotID {
			continue
		}
		if patch.DayOfWeek != nil {
			slot.DayOfWeek = *patch.DayOfWeek
		}
		if patch.StartMinute != nil {
			slot.StartMinute = *patch.StartMinute
		}
		if patch.EndMinute != nil {
			slot.EndMinute = *patch.EndMinute
		}
		s.slots[i] = slot
		return slot, nil
	}
	return model.AvailabilitySlot{}, manager.ErrNotFound
}

func (s *memStore) DeleteOne(_ context.Context, slotID string) error {
	for i, slot := range s.slots {
		if slot.ID == slotID {
			s.slots = append(s.slots[:i], s.slots[i+1:]...)
			return nil
		}
	}
	return manager.ErrNotFound
}

func newTestServer(t *testing.T, store *memStore, caller string) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(testWriter{t}, nil))
	h := NewAvailabilityHandler(manager.New(store, logger), logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/availability", h.Slots)
	mux.HandleFunc("/api/v1/availability/grid", h.Grid)
	mux.HandleFunc("/api/v1/availability/slot", h.Slot)
	mux.HandleFunc("/api/v1/availability/overlap", h.Overlap)

	srv := httptest.NewServer(identity.Middleware(staticProvider{caller: caller})(mux))
	t.Cleanup(srv.Close)
	return srv
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimSpace(string(p)))
	return len(p), nil
}

func doJSON(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestCreateAndListSlots(t *testing.T) {
	store := &memStore{}
	srv := newTestServer(t, store, "alice")

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/availability",
		`{"slots":[{"day_of_week":1,"start_time":"09:00","end_time":"11:00"},{"day_of_week":3,"start_time":"14:30","end_time":"16:00"}]}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	var created createSlotsResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatal(err)
	}
	if created.Created != 2 {
		t.Fatalf("created = %d, want 2", created.Created)
	}

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/availability", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var listed []slotResponse
	if err := json.NewDecoder(resp.Body).Decode(&listed); err != nil {
		t.Fatal(err)
	}
	if len(listed) != 2 {
		t.Fatalf("listed %d slots, want 2", len(listed))
	}
	if listed[0].StartTime != "09:00" || listed[0].EndTime != "11:00" {
		t.Fatalf("unexpected first slot: %+v", listed[0])
	}
}

func TestCreateRejectsMalformedClock(t *testing.T) {
	srv := newTestServer(t, &memStore{}, "alice")

	for _, body := range []string{
		`{"slots":[{"day_of_week":1,"start_time":"9:00","end_time":"11:00"}]}`,
		`{"slots":[{"day_of_week":1,"start_time":"09:00","end_time":"24:00"}]}`,
		`{"slots":[{"day_of_week":7,"start_time":"09:00","end_time":"11:00"}]}`,
	} {
		resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/availability", body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, want 400", body, resp.StatusCode)
		}
	}
}

func TestCreateConflictReportsPairs(t *testing.T) {
	store := &memStore{slots: []model.AvailabilitySlot{
		{ID: "s1", OwnerID: "alice", DayOfWeek: 1, StartMinute: 540, EndMinute: 660},
	}}
	srv := newTestServer(t, store, "alice")

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/availability",
		`{"slots":[{"day_of_week":1,"start_time":"10:00","end_time":"12:00"}]}`)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}

	var body conflictResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.Conflicts) != 1 {
		t.Fatalf("conflicts = %d, want 1", len(body.Conflicts))
	}
	pair := body.Conflicts[0]
	if pair.Candidate.StartTime != "10:00" {
		t.Errorf("candidate start = %s, want 10:00", pair.Candidate.StartTime)
	}
	if len(pair.Existing) != 1 || pair.Existing[0].ID != "s1" {
		t.Errorf("existing = %+v, want slot s1", pair.Existing)
	}
	if len(store.slots) != 1 {
		t.Errorf("store has %d slots after rejected batch, want 1", len(store.slots))
	}
}

func TestGridConsolidatesBeforeCreate(t *testing.T) {
	store := &memStore{}
	srv := newTestServer(t, store, "alice")

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/availability/grid",
		`{"unit_minutes":60,"days":{"1":[540,600,660],"4":[840]}}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	var created createSlotsResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatal(err)
	}
	if created.Created != 2 {
		t.Fatalf("created = %d, want 2 consolidated ranges", created.Created)
	}

	for _, slot := range store.slots {
		if slot.DayOfWeek == 1 && (slot.StartMinute != 540 || slot.EndMinute != 720) {
			t.Errorf("monday range = [%d,%d), want [540,720)", slot.StartMinute, slot.EndMinute)
		}
	}
}

func TestGridRejectsBadDayKey(t *testing.T) {
	srv := newTestServer(t, &memStore{}, "alice")

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/availability/grid",
		`{"unit_minutes":60,"days":{"7":[540]}}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestGridRejectsMisalignedUnit(t *testing.T) {
	store := &memStore{}
	srv := newTestServer(t, store, "alice")

	// 570 is not on the hourly grid; accepting it would store less time
	// than the client selected.
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/availability/grid",
		`{"unit_minutes":60,"days":{"1":[540,570]}}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if len(store.slots) != 0 {
		t.Fatalf("store has %d slots after rejected grid, want 0", len(store.slots))
	}
}

func TestUpdateSlotOwnership(t *testing.T) {
	store := &memStore{slots: []model.AvailabilitySlot{
		{ID: "s1", OwnerID: "bob", DayOfWeek: 2, StartMinute: 600, EndMinute: 720},
	}}
	srv := newTestServer(t, store, "alice")

	resp := doJSON(t, http.MethodPatch, srv.URL+"/api/v1/availability/slot",
		`{"slot_id":"s1","start_time":"11:00"}`)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodPatch, srv.URL+"/api/v1/availability/slot",
		`{"slot_id":"missing","start_time":"11:00"}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestUpdateSlotChangesTiming(t *testing.T) {
	store := &memStore{slots: []model.AvailabilitySlot{
		{ID: "s1", OwnerID: "alice", DayOfWeek: 2, StartMinute: 600, EndMinute: 720},
	}}
	srv := newTestServer(t, store, "alice")

	resp := doJSON(t, http.MethodPatch, srv.URL+"/api/v1/availability/slot",
		`{"slot_id":"s1","end_time":"13:30"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var updated slotResponse
	if err := json.NewDecoder(resp.Body).Decode(&updated); err != nil {
		t.Fatal(err)
	}
	if updated.EndTime != "13:30" || updated.StartTime != "10:00" {
		t.Fatalf("updated = %+v", updated)
	}
}

func TestDeleteSlot(t *testing.T) {
	store := &memStore{slots: []model.AvailabilitySlot{
		{ID: "s1", OwnerID: "alice", DayOfWeek: 2, StartMinute: 600, EndMinute: 720},
	}}
	srv := newTestServer(t, store, "alice")

	resp := doJSON(t, http.MethodDelete, srv.URL+"/api/v1/availability/slot?slot_id=s1", "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.StatusCode)
	}
	if len(store.slots) != 0 {
		t.Fatalf("store has %d slots after delete, want 0", len(store.slots))
	}

	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/v1/availability/slot?slot_id=s1", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("repeat delete status = %d, want 404", resp.StatusCode)
	}
}

func TestOverlapReportsSharedMinutes(t *testing.T) {
	store := &memStore{slots: []model.AvailabilitySlot{
		{ID: "s1", OwnerID: "alice", DayOfWeek: 1, StartMinute: 540, EndMinute: 720},
		{ID: "s2", OwnerID: "bob", DayOfWeek: 1, StartMinute: 600, EndMinute: 780},
		{ID: "s3", OwnerID: "bob", DayOfWeek: 5, StartMinute: 540, EndMinute: 600},
	}}
	srv := newTestServer(t, store, "alice")

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/availability/overlap?user_id=bob", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body overlapResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.TotalMinutes != 120 {
		t.Errorf("total = %d, want 120", body.TotalMinutes)
	}
	if body.PerDay[1] != 120 {
		t.Errorf("monday overlap = %d, want 120", body.PerDay[1])
	}
	if _, ok := body.PerDay[5]; ok {
		t.Errorf("friday should be omitted with zero overlap")
	}
}

func TestUnauthenticatedRequestRejected(t *testing.T) {
	srv := newTestServer(t, &memStore{}, "")

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/availability", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}
