// Package tba is a small client for The Blue Alliance v3 API.
package tba

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"clubbot/internal/httpx"
)

const (
	DefaultBaseURL = "https://www.thebluealliance.com/api/v3"
	siteURL        = "https://www.thebluealliance.com"
	MaxTeamNumber  = 9000
	recentEvents   = 5
	apiDateLayout  = "2006-01-02"
)

var ErrTeamNotFound = errors.New("team not found")

type Team struct {
	Key        string `json:"key"`
	TeamNumber int    `json:"team_number"`
	Nickname   string `json:"nickname"`
	Name       string `json:"name"`
	City       string `json:"city"`
	StateProv  string `json:"state_prov"`
	Country    string `json:"country"`
	Website    string `json:"website"`
	RookieYear int    `json:"rookie_year"`
	Motto      string `json:"motto"`
}

type Award struct {
	Name     string `json:"name"`
	EventKey string `json:"event_key"`
	Year     int    `json:"year"`
}

type SimpleEvent struct {
	Key       string `json:"key"`
	Name      string `json:"name"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Year      int    `json:"year"`
}

type Client struct {
	BaseURL string
	AuthKey string
	HTTP    *http.Client
}

// NewClient uses the shared external HTTP client.
func NewClient(authKey string) *Client {
	return &Client{BaseURL: DefaultBaseURL, AuthKey: authKey, HTTP: httpx.Client()}
}

// ParseTeamNumber accepts 1 through MaxTeamNumber.
func ParseTeamNumber(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 || n > MaxTeamNumber {
		return 0, fmt.Errorf("%s isn't a number between 1-%d", s, MaxTeamNumber)
	}
	return n, nil
}

func (c *Client) Team(ctx context.Context, number int) (Team, error) {
	var t Team
	err := c.get(ctx, fmt.Sprintf("/team/frc%d", number), &t)
	return t, err
}

func (c *Client) Awards(ctx context.Context, number int) ([]Award, error) {
	var awards []Award
	err := c.get(ctx, fmt.Sprintf("/team/frc%d/awards", number), &awards)
	return awards, err
}

func (c *Client) Events(ctx context.Context, number int) ([]SimpleEvent, error) {
	var events []SimpleEvent
	err := c.get(ctx, fmt.Sprintf("/team/frc%d/events/simple", number), &events)
	return events, err
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(c.BaseURL, "/")+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("X-TBA-Auth-Key", c.AuthKey)
	req.Header.Set("Accept", "application/json")

	client := c.HTTP
	if client == nil {
		client = httpx.Client()
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", path, err)
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return ErrTeamNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("TBA API returned %d: %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

// Profile is a team with its awards and events. Awards and Events are nil
// when their lookups failed.
type Profile struct {
	Team   Team
	Awards []Award
	Events []SimpleEvent
}

// Profile fetches the team, then its awards and events. Only the team
// lookup is fatal; the others are logged and left out.
func (c *Client) Profile(ctx context.Context, number int) (Profile, error) {
	team, err := c.Team(ctx, number)
	if err != nil {
		return Profile{}, err
	}
	p := Profile{Team: team}
	if p.Awards, err = c.Awards(ctx, number); err != nil {
		log.Printf("tba awards error team=%d: %v", number, err)
	}
	if p.Events, err = c.Events(ctx, number); err != nil {
		log.Printf("tba events error team=%d: %v", number, err)
	}
	return p, nil
}

type Field struct {
	Title string
	Value string
	Short bool
}

type Card struct {
	Title  string
	URL    string
	Fields []Field
}

// FormatTeam lays out a profile as titled fields.
func FormatTeam(p Profile) Card {
	t := p.Team
	motto := "_none_"
	if t.Motto != "" {
		motto = fmt.Sprintf("%q", t.Motto)
	}
	location := "unknown"
	if t.City != "" {
		location = t.City + ", " + t.StateProv
	}
	website := t.Website
	if website == "" {
		website = "_none_"
	}

	card := Card{
		Title: fmt.Sprintf("FRC Team %d: %s", t.TeamNumber, t.Nickname),
		URL:   fmt.Sprintf("%s/team/%d", siteURL, t.TeamNumber),
		Fields: []Field{
			{Title: "Team number", Value: strconv.Itoa(t.TeamNumber), Short: true},
			{Title: "Nickname", Value: t.Nickname, Short: true},
			{Title: "Location", Value: location, Short: true},
			{Title: "Motto", Value: motto, Short: true},
			{Title: "Website", Value: website, Short: true},
			{Title: "Rookie year", Value: strconv.Itoa(t.RookieYear), Short: true},
		},
	}

	if p.Awards != nil {
		won := "0 (yet)"
		if n := len(p.Awards); n > 0 {
			latest := p.Awards[n-1].EventKey
			won = fmt.Sprintf("%d (latest <%s/event/%s|%s>)", n, siteURL, latest, latest)
		}
		card.Fields = append(card.Fields, Field{Title: "Awards won", Value: won, Short: true})
	}

	if len(p.Events) > 0 {
		card.Fields = append(card.Fields, Field{Title: "Events", Value: formatEvents(p.Events)})
	}
	return card
}

func formatEvents(events []SimpleEvent) string {
	sorted := append([]SimpleEvent(nil), events...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].StartDate > sorted[j].StartDate })
	if len(sorted) > recentEvents {
		sorted = sorted[:recentEvents]
	}

	lines := make([]string, 0, len(sorted)+1)
	for _, ev := range sorted {
		date := ev.StartDate
		if d, err := time.Parse(apiDateLayout, ev.StartDate); err == nil {
			date = d.Format("01/02/2006")
		}
		lines = append(lines, fmt.Sprintf("<%s/event/%s|`%s` - %s>", siteURL, ev.Key, date, ev.Name))
	}
	if extra := len(events) - len(sorted); extra > 0 {
		lines = append(lines, fmt.Sprintf("...and %d more", extra))
	}
	return strings.Join(lines, "\n")
}
