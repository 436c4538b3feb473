package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/studymatch/studymatch/libs/identity"
	"github.com/studymatch/studymatch/libs/schedule"
	"github.com/studymatch/studymatch/services/matching-service/internal/scoring"
)

type staticProvider struct{ caller string }

func (p staticProvider) ResolveCaller(*http.Request) (string, error) {
	if p.caller == "" {
		return "", identity.ErrUnauthenticated
	}
	return p.caller, nil
}

type fixedRanks struct {
	matches map[string][]scoring.RankedMatch
}

func (f fixedRanks) SetScore(context.Context, string, string, int) error { return nil }
func (f fixedRanks) DropPair(context.Context, string, string) error     { return nil }

func (f fixedRanks) Top(_ context.Context, ownerID string, limit int) ([]scoring.RankedMatch, error) {
	out := f.matches[ownerID]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fixedSchedules struct {
	byOwner map[string][]schedule.Slot
}

func (f fixedSchedules) FindByOwner(_ context.Context, ownerID string) ([]schedule.Slot, error) {
	return f.byOwner[ownerID], nil
}

func (f fixedSchedules) FindOthers(context.Context, string) (map[string][]schedule.Slot, error) {
	return nil, nil
}

func newTestServer(t *testing.T, ranks scoring.RankStore, schedules scoring.ScheduleSource, caller string) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewMatchesHandler(ranks, schedules, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/matches", h.List)
	mux.HandleFunc("/api/v1/matches/breakdown", h.Breakdown)

	srv := httptest.NewServer(identity.Middleware(staticProvider{caller: caller})(mux))
	t.Cleanup(srv.Close)
	return srv
}

func TestListReturnsRankedMatches(t *testing.T) {
	ranks := fixedRanks{matches: map[string][]scoring.RankedMatch{
		"alice": {
			{UserID: "carol", SharedMinutes: 240},
			{UserID: "bob", SharedMinutes: 120},
		},
	}}
	srv := newTestServer(t, ranks, fixedSchedules{}, "alice")

	resp, err := http.Get(srv.URL + "/api/v1/matches")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var matches []scoring.RankedMatch
	if err := json.NewDecoder(resp.Body).Decode(&matches); err != nil {
		t.Fatal(err)
	}
	if len(matches) != 2 || matches[0].UserID != "carol" {
		t.Fatalf("matches = %+v, want carol first", matches)
	}
}

func TestListEmptyRankingIsAnEmptyArray(t *testing.T) {
	srv := newTestServer(t, fixedRanks{}, fixedSchedules{}, "alice")

	resp, err := http.Get(srv.URL + "/api/v1/matches")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if string(body) != "[]\n" {
		t.Fatalf("body = %q, want empty json array", body)
	}
}

func TestListRejectsBadLimit(t *testing.T) {
	srv := newTestServer(t, fixedRanks{}, fixedSchedules{}, "alice")

	for _, limit := range []string{"0", "-1", "101", "abc"} {
		resp, err := http.Get(srv.URL + "/api/v1/matches?limit=" + limit)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("limit %s: status = %d, want 400", limit, resp.StatusCode)
		}
	}
}

func TestBreakdownComputesPerDayMinutes(t *testing.T) {
	schedules := fixedSchedules{byOwner: map[string][]schedule.Slot{
		"alice": {
			{Weekday: 1, Interval: schedule.Interval{Start: 540, End: 720}},
			{Weekday: 3, Interval: schedule.Interval{Start: 840, End: 960}},
		},
		"bob": {
			{Weekday: 1, Interval: schedule.Interval{Start: 600, End: 780}},
			{Weekday: 3, Interval: schedule.Interval{Start: 840, End: 900}},
		},
	}}
	srv := newTestServer(t, fixedRanks{}, schedules, "alice")

	resp, err := http.Get(srv.URL + "/api/v1/matches/breakdown?user_id=bob")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body breakdownResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.TotalMinutes != 180 {
		t.Errorf("total = %d, want 180", body.TotalMinutes)
	}
	if body.PerDay[1] != 120 || body.PerDay[3] != 60 {
		t.Errorf("per day = %v, want monday 120 wednesday 60", body.PerDay)
	}
}

func TestBreakdownRequiresUserID(t *testing.T) {
	srv := newTestServer(t, fixedRanks{}, fixedSchedules{}, "alice")

	resp, err := http.Get(srv.URL + "/api/v1/matches/breakdown")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}
