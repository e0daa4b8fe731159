package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"clubbot/internal/domain"
)

func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS members (
		name     TEXT PRIMARY KEY,
		slack_id TEXT NOT NULL DEFAULT '',
		groups   TEXT NOT NULL DEFAULT '',
		present  INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_members_slack_id ON members(slack_id);

	CREATE TABLE IF NOT EXISTS meetings (
		member     TEXT NOT NULL,
		date       TEXT NOT NULL,
		idx        INTEGER NOT NULL,
		start_time TEXT NOT NULL,
		end_time   TEXT,
		PRIMARY KEY (member, date, idx)
	);
	CREATE INDEX IF NOT EXISTS idx_meetings_date ON meetings(date);

	CREATE TABLE IF NOT EXISTS subtractions (
		member   TEXT NOT NULL,
		date     TEXT NOT NULL,
		duration TEXT NOT NULL,
		PRIMARY KEY (member, date)
	);

	CREATE TABLE IF NOT EXISTS corrections (
		id        INTEGER PRIMARY KEY AUTOINCREMENT,
		name      TEXT NOT NULL,
		request   TEXT NOT NULL,
		date      TEXT NOT NULL DEFAULT '',
		submitted DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_corrections_submitted ON corrections(submitted);

	CREATE TABLE IF NOT EXISTS requirements (
		member      TEXT NOT NULL,
		requirement TEXT NOT NULL,
		met         INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (member, requirement)
	);
	`
	_, err = db.Exec(schema)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// Ping is used by the readiness probe.
func Ping(ctx context.Context, db *sql.DB) error {
	return db.PingContext(ctx)
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func UpsertMember(db *sql.DB, m domain.Member) error {
	return upsertMember(db, m)
}

func upsertMember(e execer, m domain.Member) error {
	if strings.TrimSpace(m.Name) == "" {
		return errors.New("member name is required")
	}
	_, err := e.Exec(
		`INSERT INTO members (name, slack_id, groups, present) VALUES (?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET slack_id = excluded.slack_id, groups = excluded.groups, present = excluded.present`,
		m.Name, m.SlackID, m.Groups, m.Present,
	)
	return err
}

func GetMembers(db *sql.DB) ([]domain.Member, error) {
	rows, err := db.Query(`SELECT name, slack_id, groups, present FROM members ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []domain.Member
	for rows.Next() {
		var m domain.Member
		if err := rows.Scan(&m.Name, &m.SlackID, &m.Groups, &m.Present); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// InsertSession writes start<idx>/end<idx> for a member's date. An empty end
// stores an open session.
func InsertSession(db *sql.DB, member, date string, idx int, start, end string) error {
	return insertSession(db, member, date, idx, start, end)
}

func insertSession(e execer, member, date string, idx int, start, end string) error {
	var endVal sql.NullString
	if end != "" {
		endVal = sql.NullString{String: end, Valid: true}
	}
	_, err := e.Exec(
		`INSERT INTO meetings (member, date, idx, start_time, end_time) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(member, date, idx) DO UPDATE SET start_time = excluded.start_time, end_time = excluded.end_time`,
		member, date, idx, start, endVal,
	)
	return err
}

// GetMemberLog returns the meetings and subtractions recorded for one member.
// An unknown member yields an empty log.
func GetMemberLog(db *sql.DB, member string) (domain.MemberLog, error) {
	logs, err := loadLogs(db, "WHERE member = ?", member)
	if err != nil {
		return domain.MemberLog{}, err
	}
	return logs[member], nil
}

// GetAllMemberLogs returns every member's log keyed by member name.
func GetAllMemberLogs(db *sql.DB) (map[string]domain.MemberLog, error) {
	return loadLogs(db, "")
}

func loadLogs(db *sql.DB, where string, args ...any) (map[string]domain.MemberLog, error) {
	out := make(map[string]domain.MemberLog)

	rows, err := db.Query(`SELECT member, date, idx, start_time, end_time FROM meetings `+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var member, date, start string
		var idx int
		var end sql.NullString
		if err := rows.Scan(&member, &date, &idx, &start, &end); err != nil {
			return nil, err
		}
		ml := out[member]
		if ml.Meetings == nil {
			ml.Meetings = make(domain.MeetingLog)
		}
		day := ml.Meetings[date]
		if day == nil {
			day = make(domain.DayLog)
			ml.Meetings[date] = day
		}
		day[domain.StartKey(idx)] = start
		if end.Valid {
			day[domain.EndKey(idx)] = end.String
		}
		out[member] = ml
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	subRows, err := db.Query(`SELECT member, date, duration FROM subtractions `+where, args...)
	if err != nil {
		return nil, err
	}
	defer subRows.Close()
	for subRows.Next() {
		var member, date, duration string
		if err := subRows.Scan(&member, &date, &duration); err != nil {
			return nil, err
		}
		ml := out[member]
		if ml.Subtract == nil {
			ml.Subtract = make(domain.SubtractLog)
		}
		d := duration
		ml.Subtract[date] = &d
		out[member] = ml
	}
	return out, subRows.Err()
}

// SetSubtraction records an H:MM deduction for a member's date. A nil
// duration removes it.
func SetSubtraction(db *sql.DB, member, date string, duration *string) error {
	return setSubtraction(db, member, date, duration)
}

func setSubtraction(e execer, member, date string, duration *string) error {
	if duration == nil {
		_, err := e.Exec(`DELETE FROM subtractions WHERE member = ? AND date = ?`, member, date)
		return err
	}
	_, err := e.Exec(
		`INSERT INTO subtractions (member, date, duration) VALUES (?, ?, ?)
		 ON CONFLICT(member, date) DO UPDATE SET duration = excluded.duration`,
		member, date, *duration,
	)
	return err
}

// SignedInOn lists members with at least one session on date, sorted.
func SignedInOn(db *sql.DB, date string) ([]string, error) {
	rows, err := db.Query(`SELECT DISTINCT member FROM meetings WHERE date = ? ORDER BY member`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func InsertCorrection(db *sql.DB, c domain.Correction) (int64, error) {
	return insertCorrection(db, c)
}

func insertCorrection(e execer, c domain.Correction) (int64, error) {
	submitted := c.Submitted
	if submitted.IsZero() {
		submitted = time.Now().UTC()
	}
	res, err := e.Exec(
		`INSERT INTO corrections (name, request, date, submitted) VALUES (?, ?, ?, ?)`,
		c.Name, c.Request, c.Date, submitted,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func GetCorrections(db *sql.DB) ([]domain.Correction, error) {
	rows, err := db.Query(`SELECT id, name, request, date, submitted FROM corrections ORDER BY submitted, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Correction
	for rows.Next() {
		var c domain.Correction
		if err := rows.Scan(&c.ID, &c.Name, &c.Request, &c.Date, &c.Submitted); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func SetRequirement(db *sql.DB, member, requirement string, met bool) error {
	return setRequirement(db, member, requirement, met)
}

func setRequirement(e execer, member, requirement string, met bool) error {
	_, err := e.Exec(
		`INSERT INTO requirements (member, requirement, met) VALUES (?, ?, ?)
		 ON CONFLICT(member, requirement) DO UPDATE SET met = excluded.met`,
		member, requirement, met,
	)
	return err
}

// GetRequirements returns requirement name to met for one member.
func GetRequirements(db *sql.DB, member string) (map[string]bool, error) {
	rows, err := db.Query(`SELECT requirement, met FROM requirements WHERE member = ?`, member)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var name string
		var met bool
		if err := rows.Scan(&name, &met); err != nil {
			return nil, err
		}
		out[name] = met
	}
	return out, rows.Err()
}

// Snapshot is a full export of the document store.
type Snapshot struct {
	Members     []domain.Member
	Logs        map[string]domain.MemberLog
	Corrections []domain.Correction
	// Requirements maps member name to their preseason checklist.
	Requirements map[string]map[string]bool
}

// ImportSnapshot writes s in a single transaction. Existing rows for the
// same keys are overwritten; nothing is deleted.
func ImportSnapshot(db *sql.DB, s Snapshot) (sessions int, err error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	for _, m := range s.Members {
		if err := upsertMember(tx, m); err != nil {
			return 0, fmt.Errorf("member %q: %w", m.Name, err)
		}
	}

	names := make([]string, 0, len(s.Logs))
	for name := range s.Logs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		ml := s.Logs[name]
		for date, day := range ml.Meetings {
			for i := 0; ; i++ {
				start, ok := day[domain.StartKey(i)]
				if !ok {
					break
				}
				if err := insertSession(tx, name, date, i, start, day[domain.EndKey(i)]); err != nil {
					return 0, fmt.Errorf("session %s/%s/%d: %w", name, date, i, err)
				}
				sessions++
			}
		}
		for date, d := range ml.Subtract {
			if err := setSubtraction(tx, name, date, d); err != nil {
				return 0, fmt.Errorf("subtraction %s/%s: %w", name, date, err)
			}
		}
	}

	for member, reqs := range s.Requirements {
		for name, met := range reqs {
			if err := setRequirement(tx, member, name, met); err != nil {
				return 0, fmt.Errorf("requirement %s/%s: %w", member, name, err)
			}
		}
	}

	for _, c := range s.Corrections {
		if _, err := insertCorrection(tx, c); err != nil {
			return 0, fmt.Errorf("correction for %q: %w", c.Name, err)
		}
	}
	return sessions, tx.Commit()
}
