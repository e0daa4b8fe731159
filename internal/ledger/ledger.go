// Package ledger totals a member's attendance from their meeting and
// subtraction logs.
package ledger

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"clubbot/internal/domain"
)

type RowKind int

const (
	RowClosed RowKind = iota
	RowOpen
	RowStale
	RowSubtraction
)

type Row struct {
	Kind     RowKind
	Date     string
	Start    string // HH:MM, empty for subtractions
	End      string // HH:MM, empty for stale and subtraction rows
	Duration int64
}

type Result struct {
	TotalSeconds int64
	Formatted    string
	LoggedIn     bool
	Table        string
	Rows         []Row
	// Malformed lists entries that could not be parsed, as "date/key".
	Malformed []string
}

type Options struct {
	// Table builds Rows and Table. Callers that only need totals skip it.
	Table bool
	// Now decides which date is "today" and ends today's open session.
	// Zero means time.Now().
	Now time.Time
}

const tableHeader = "|| day | |start| | end | |hours||\n"

// Aggregate totals closed sessions, today's open session and subtractions.
// Nil logs contribute nothing. It never fails: unparseable entries add zero
// and are reported in Result.Malformed.
func Aggregate(meetings domain.MeetingLog, subtract domain.SubtractLog, opts Options) Result {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	today := now.Format(domain.DateLayout)

	var res Result
	var table strings.Builder
	if opts.Table {
		table.WriteString(tableHeader)
	}

	for _, date := range sortedKeys(subtract) {
		value := subtract[date]
		if value == nil {
			continue
		}
		deduct, err := ParseClock(*value)
		if err != nil {
			res.Malformed = append(res.Malformed, date+"/subtract")
			continue
		}
		secs := Diff(Clock{}, deduct)
		res.TotalSeconds -= secs
		if opts.Table {
			res.Rows = append(res.Rows, Row{Kind: RowSubtraction, Date: date, Duration: secs})
			fmt.Fprintf(&table, "-|%s| | >:( | | >:( | -%s||\n", ShortDate(date), FormatSeconds(secs))
		}
	}

	for _, date := range sortedKeys(meetings) {
		day := meetings[date]
		for i := 0; day[domain.StartKey(i)] != ""; i++ {
			startRaw := day[domain.StartKey(i)]
			start, err := ParseClock(startRaw)
			if err != nil {
				res.Malformed = append(res.Malformed, date+"/"+domain.StartKey(i))
				continue
			}
			short := ShortDate(date)

			if endRaw := day[domain.EndKey(i)]; endRaw != "" {
				end, err := ParseClock(endRaw)
				if err != nil {
					res.Malformed = append(res.Malformed, date+"/"+domain.EndKey(i))
					continue
				}
				diff := Diff(start, end)
				res.TotalSeconds += diff
				if opts.Table {
					res.Rows = append(res.Rows, Row{Kind: RowClosed, Date: date, Start: start.Short(), End: end.Short(), Duration: diff})
					fmt.Fprintf(&table, "||%s| |%s| |%s| |%s||\n", short, start.Short(), end.Short(), FormatSeconds(diff))
				}
				continue
			}

			if date == today {
				// Counted on the assumption they sign out later today.
				res.LoggedIn = true
				end := ClockOf(now)
				diff := Diff(start, end)
				res.TotalSeconds += diff
				if opts.Table {
					res.Rows = append(res.Rows, Row{Kind: RowOpen, Date: date, Start: start.Short(), End: end.Short(), Duration: diff})
					fmt.Fprintf(&table, "+|%s| |%s| |%s| |%s||\n", short, start.Short(), end.Short(), FormatSeconds(diff))
				}
				continue
			}

			if opts.Table {
				res.Rows = append(res.Rows, Row{Kind: RowStale, Date: date, Start: start.Short()})
				fmt.Fprintf(&table, "+|%s| |%s| |  ~  | |00:00||\n", short, start.Short())
			}
		}
	}

	res.Formatted = FormatSeconds(res.TotalSeconds)
	res.Table = table.String()
	return res
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
