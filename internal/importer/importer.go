// Package importer loads a JSON export of the attendance document store
// into sqlite.
package importer

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"clubbot/internal/domain"
	"clubbot/internal/storage/sqlite"
)

// Export mirrors the document store layout:
//
//	{"members": {name: {...}}, "log": {name: {"meetings": ..., "subtract": ...}},
//	 "corrections": {name: {submitted: {"request": ..., "date": ...}}}}
type Export struct {
	Members     map[string]exportMember                `json:"members"`
	Log         map[string]domain.MemberLog            `json:"log"`
	Corrections map[string]map[string]exportCorrection `json:"corrections"`
}

type exportMember struct {
	Name    string `json:"-" validate:"required,max=100"`
	SlackID string `json:"slackId" validate:"omitempty,alphanum"`
	// Older exports keyed the chat ID by platform.
	DiscordID    string          `json:"discordId"`
	Groups       string          `json:"groups" validate:"omitempty,printascii"`
	Present      bool            `json:"present"`
	Requirements map[string]bool `json:"requirements"`
}

type exportCorrection struct {
	Request string `json:"request"`
	Date    string `json:"date"`
}

type Summary struct {
	Members     int
	Sessions    int
	Corrections int
}

var (
	validate      = validator.New()
	durationRegex = regexp.MustCompile(`^\d{1,2}:\d{2}$`)
)

func Parse(r io.Reader) (Export, error) {
	var exp Export
	dec := json.NewDecoder(r)
	if err := dec.Decode(&exp); err != nil {
		return exp, fmt.Errorf("decode export: %w", err)
	}
	return exp, nil
}

// Snapshot validates exp and converts it to storage rows. All problems are
// reported together.
func (exp Export) Snapshot() (sqlite.Snapshot, error) {
	var snap sqlite.Snapshot
	var problems []string

	for _, name := range sortedKeys(exp.Members) {
		m := exp.Members[name]
		m.Name = name
		if m.SlackID == "" {
			m.SlackID = m.DiscordID
		}
		if err := validate.Struct(m); err != nil {
			problems = append(problems, fmt.Sprintf("member %q: %s", name, describe(err)))
			continue
		}
		snap.Members = append(snap.Members, domain.Member{Name: name, SlackID: m.SlackID, Groups: m.Groups, Present: m.Present})
		if len(m.Requirements) > 0 {
			if snap.Requirements == nil {
				snap.Requirements = make(map[string]map[string]bool)
			}
			snap.Requirements[name] = m.Requirements
		}
	}

	snap.Logs = make(map[string]domain.MemberLog, len(exp.Log))
	for _, name := range sortedKeys(exp.Log) {
		ml := exp.Log[name]
		for _, date := range sortedKeys(ml.Subtract) {
			if v := ml.Subtract[date]; v != nil && !durationRegex.MatchString(*v) {
				problems = append(problems, fmt.Sprintf("log %q subtract %s: %q is not H:MM", name, date, *v))
			}
		}
		for _, date := range sortedKeys(ml.Meetings) {
			if _, err := time.Parse(domain.DateLayout, date); err != nil {
				problems = append(problems, fmt.Sprintf("log %q: meeting date %q is not YYYY-MM-DD", name, date))
			}
		}
		snap.Logs[name] = ml
	}

	for _, name := range sortedKeys(exp.Corrections) {
		for _, submitted := range sortedKeys(exp.Corrections[name]) {
			c := exp.Corrections[name][submitted]
			at, err := time.Parse(time.RFC3339, submitted)
			if err != nil {
				problems = append(problems, fmt.Sprintf("correction %q: bad submitted time %q", name, submitted))
				continue
			}
			snap.Corrections = append(snap.Corrections, domain.Correction{Name: name, Request: c.Request, Date: c.Date, Submitted: at})
		}
	}

	if len(problems) > 0 {
		return snap, errors.New(strings.Join(problems, "; "))
	}
	return snap, nil
}

// ImportFile reads, validates and writes a whole export in one transaction.
func ImportFile(db *sql.DB, path string) (Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return Summary{}, err
	}
	defer f.Close()

	exp, err := Parse(f)
	if err != nil {
		return Summary{}, err
	}
	snap, err := exp.Snapshot()
	if err != nil {
		return Summary{}, fmt.Errorf("invalid export %s: %w", path, err)
	}
	sessions, err := sqlite.ImportSnapshot(db, snap)
	if err != nil {
		return Summary{}, fmt.Errorf("import %s: %w", path, err)
	}
	return Summary{Members: len(snap.Members), Sessions: sessions, Corrections: len(snap.Corrections)}, nil
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	var parts []string
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return strings.Join(parts, ", ")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
