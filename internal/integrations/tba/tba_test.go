package tba

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return &Client{BaseURL: server.URL, AuthKey: "tba-test", HTTP: server.Client()}
}

func TestProfileFetchesTeamAwardsAndEvents(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-TBA-Auth-Key"); got != "tba-test" {
			t.Fatalf("unexpected X-TBA-Auth-Key header: %q", got)
		}
		var payload any
		switch r.URL.Path {
		case "/team/frc2976":
			payload = map[string]any{"team_number": 2976, "nickname": "Spartabots", "city": "Sammamish", "state_prov": "WA", "rookie_year": 2009}
		case "/team/frc2976/awards":
			payload = []map[string]any{{"name": "Chairman's", "event_key": "2019wasno"}, {"name": "Spirit", "event_key": "2022pncmp"}}
		case "/team/frc2976/events/simple":
			payload = []map[string]any{
				{"key": "2019wasno", "name": "Glacier Peak", "start_date": "2019-03-01"},
				{"key": "2022pncmp", "name": "PNW Championship", "start_date": "2022-04-06"},
			}
		default:
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(payload)
	})

	p, err := c.Profile(context.Background(), 2976)
	if err != nil {
		t.Fatalf("Profile failed: %v", err)
	}
	if p.Team.Nickname != "Spartabots" || len(p.Awards) != 2 || len(p.Events) != 2 {
		t.Fatalf("unexpected profile: %+v", p)
	}

	card := FormatTeam(p)
	if card.Title != "FRC Team 2976: Spartabots" {
		t.Fatalf("unexpected title: %q", card.Title)
	}
	if card.URL != "https://www.thebluealliance.com/team/2976" {
		t.Fatalf("unexpected URL: %q", card.URL)
	}
	byTitle := map[string]string{}
	for _, f := range card.Fields {
		byTitle[f.Title] = f.Value
	}
	if byTitle["Location"] != "Sammamish, WA" {
		t.Fatalf("unexpected location: %q", byTitle["Location"])
	}
	if byTitle["Motto"] != "_none_" || byTitle["Website"] != "_none_" {
		t.Fatalf("expected placeholders, got motto=%q website=%q", byTitle["Motto"], byTitle["Website"])
	}
	if !strings.HasPrefix(byTitle["Awards won"], "2 (latest <https://www.thebluealliance.com/event/2022pncmp|") {
		t.Fatalf("unexpected awards: %q", byTitle["Awards won"])
	}
	events := strings.Split(byTitle["Events"], "\n")
	if len(events) != 2 || !strings.Contains(events[0], "`04/06/2022` - PNW Championship") {
		t.Fatalf("expected newest event first, got %q", byTitle["Events"])
	}
}

func TestTeamNotFound(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	_, err := c.Profile(context.Background(), 8999)
	if !errors.Is(err, ErrTeamNotFound) {
		t.Fatalf("expected ErrTeamNotFound, got %v", err)
	}
}

func TestProfileToleratesAwardFailure(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/team/frc1" {
			_, _ = w.Write([]byte(`{"team_number": 1, "nickname": "One"}`))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	})
	p, err := c.Profile(context.Background(), 1)
	if err != nil {
		t.Fatalf("Profile failed: %v", err)
	}
	if p.Awards != nil || p.Events != nil {
		t.Fatalf("expected awards and events to be left out, got %+v", p)
	}
	for _, f := range FormatTeam(p).Fields {
		if f.Title == "Awards won" || f.Title == "Events" {
			t.Fatalf("unexpected field %q", f.Title)
		}
	}
}

func TestFormatEventsTruncates(t *testing.T) {
	var events []SimpleEvent
	for _, d := range []string{"2015-03-01", "2016-03-01", "2017-03-01", "2018-03-01", "2019-03-01", "2020-03-01", "2021-03-01"} {
		events = append(events, SimpleEvent{Key: d, Name: "Event " + d, StartDate: d})
	}
	out := formatEvents(events)
	lines := strings.Split(out, "\n")
	if len(lines) != 6 {
		t.Fatalf("expected 5 events plus a tail line, got %d: %q", len(lines), out)
	}
	if lines[5] != "...and 2 more" {
		t.Fatalf("unexpected tail: %q", lines[5])
	}
	if !strings.Contains(lines[0], "2021") {
		t.Fatalf("expected newest first, got %q", lines[0])
	}
}

func TestFormatTeamNoAwardsYet(t *testing.T) {
	card := FormatTeam(Profile{Team: Team{TeamNumber: 9000}, Awards: []Award{}})
	found := false
	for _, f := range card.Fields {
		if f.Title == "Awards won" {
			found = true
			if f.Value != "0 (yet)" {
				t.Fatalf("unexpected awards value: %q", f.Value)
			}
		}
	}
	if !found {
		t.Fatal("expected an awards field")
	}
}

func TestParseTeamNumber(t *testing.T) {
	for _, ok := range []string{"1", " 2976 ", "9000"} {
		if _, err := ParseTeamNumber(ok); err != nil {
			t.Fatalf("ParseTeamNumber(%q) failed: %v", ok, err)
		}
	}
	for _, bad := range []string{"0", "9001", "abc", "-4", ""} {
		if _, err := ParseTeamNumber(bad); err == nil {
			t.Fatalf("ParseTeamNumber(%q) should fail", bad)
		}
	}
}
