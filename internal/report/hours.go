// Package report turns attendance ledgers into the summaries the bot posts:
// per-member status, leaderboards, CSV exports and cohort statistics.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"clubbot/internal/domain"
	"clubbot/internal/ledger"
)

const hour = int64(3600)

// HoursNeeded is the season requirement in seconds for a member's groups.
func HoursNeeded(m domain.Member) int64 {
	switch {
	case m.IsBoard():
		return 80 * hour
	case m.InGroup("nonmember"):
		return 60 * hour
	default:
		return 40 * hour
	}
}

type MemberStatus struct {
	Member  domain.Member
	Result  ledger.Result
	Needed  int64
	Percent int
}

// Status aggregates one member's log against their requirement.
func Status(m domain.Member, log domain.MemberLog, table bool, now time.Time) MemberStatus {
	res := ledger.Aggregate(log.Meetings, log.Subtract, ledger.Options{Table: table, Now: now})
	needed := HoursNeeded(m)
	return MemberStatus{
		Member:  m,
		Result:  res,
		Needed:  needed,
		Percent: int(roundHalfUp(float64(res.TotalSeconds) / float64(needed) * 100)),
	}
}

func (s MemberStatus) Met() bool {
	return s.Result.TotalSeconds >= s.Needed
}

// Remaining renders the time still owed, or ":zero:" once the requirement
// is met.
func (s MemberStatus) Remaining() string {
	if s.Met() {
		return ":zero:"
	}
	return ledger.FormatSeconds(s.Needed - s.Result.TotalSeconds)
}

// Summary is the one-line description posted with a member's log.
func (s MemberStatus) Summary() string {
	name := s.Member.Name
	if s.Result.TotalSeconds <= 0 {
		return fmt.Sprintf("*%s* is not logged in and has :zero: *hours*. They still need to log *%s*.", name, s.Remaining())
	}
	state := "not logged in"
	if s.Result.LoggedIn {
		state = "logged in"
	}
	return fmt.Sprintf("*%s* is currently *%s*. They have *%s* hours.", name, state, s.Result.Formatted)
}

type Entry struct {
	Rank      int
	Name      string
	Seconds   int64
	Formatted string
}

const leaderboardSize = 10

// Leaderboard ranks members that have any meetings by total time, highest
// first, and keeps the top ten. Board members are left out unless
// includeBoard is set. Equal totals keep roster order.
func Leaderboard(members []domain.Member, logs map[string]domain.MemberLog, includeBoard bool, now time.Time) []Entry {
	var entries []Entry
	for _, m := range members {
		if m.IsBoard() && !includeBoard {
			continue
		}
		log, ok := logs[m.Name]
		if !ok || len(log.Meetings) == 0 {
			continue
		}
		res := ledger.Aggregate(log.Meetings, log.Subtract, ledger.Options{Now: now})
		entries = append(entries, Entry{Name: m.Name, Seconds: res.TotalSeconds, Formatted: res.Formatted})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Seconds > entries[j].Seconds })
	if len(entries) > leaderboardSize {
		entries = entries[:leaderboardSize]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

// FormatLeaderboard renders entries as a fixed-width table with names
// right-aligned.
func FormatLeaderboard(entries []Entry) string {
	width := 5
	for _, e := range entries {
		if len(e.Name) > width {
			width = len(e.Name)
		}
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "  # | %*s | TIME\n", width, "NAME")
	for _, e := range entries {
		fmt.Fprintf(&sb, "#%2d | %*s | %s\n", e.Rank, width, e.Name, e.Formatted)
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

type AttendanceRow struct {
	Name    string
	Seconds int64
}

// AttendanceRows lists every roster member, with zero for members that
// never signed in.
func AttendanceRows(members []domain.Member, logs map[string]domain.MemberLog, now time.Time) []AttendanceRow {
	rows := make([]AttendanceRow, 0, len(members))
	for _, m := range members {
		row := AttendanceRow{Name: m.Name}
		if log, ok := logs[m.Name]; ok && len(log.Meetings) > 0 {
			row.Seconds = ledger.Aggregate(log.Meetings, log.Subtract, ledger.Options{Now: now}).TotalSeconds
		}
		rows = append(rows, row)
	}
	return rows
}

// FormatCSV renders name,seconds lines. The file form carries a header.
func FormatCSV(rows []AttendanceRow, header bool) string {
	var sb strings.Builder
	if header {
		sb.WriteString("Name,Seconds\n")
	}
	for i, r := range rows {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "%s,%d", r.Name, r.Seconds)
	}
	return sb.String()
}
