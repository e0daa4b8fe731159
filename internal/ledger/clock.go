package ledger

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Clock is a wall-clock time of day as stored in meeting logs ("18:5:0").
// Components are not range checked; stored values are never zero padded.
type Clock struct {
	H, M, S int
}

// ParseClock accepts "H:M:S" or "H:M" (seconds default to zero).
func ParseClock(s string) (Clock, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return Clock{}, fmt.Errorf("invalid clock %q: want H:M:S", s)
	}
	var vals [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return Clock{}, fmt.Errorf("invalid clock %q: %w", s, err)
		}
		vals[i] = v
	}
	return Clock{H: vals[0], M: vals[1], S: vals[2]}, nil
}

func ClockOf(t time.Time) Clock {
	return Clock{H: t.Hour(), M: t.Minute(), S: t.Second()}
}

func (c Clock) String() string {
	return fmt.Sprintf("%d:%d:%d", c.H, c.M, c.S)
}

// Short renders HH:MM.
func (c Clock) Short() string {
	return fmt.Sprintf("%02d:%02d", c.H, c.M)
}

// Diff subtracts each component independently. A session that crosses
// midnight comes out negative.
func Diff(start, end Clock) int64 {
	hours := end.H - start.H
	minutes := end.M - start.M
	seconds := end.S - start.S
	return int64(hours*3600 + minutes*60 + seconds)
}

// FormatSeconds renders a duration as HH:MM. Minutes are rounded half up,
// so 3599s renders as "00:60".
func FormatSeconds(seconds int64) string {
	if seconds < 0 {
		if abs := FormatSeconds(-seconds); abs != "00:00" {
			return "-" + abs
		}
		return "00:00"
	}
	hours := seconds / 3600
	minutes := int64(math.Floor(float64(seconds%3600)/60 + 0.5))
	return fmt.Sprintf("%02d:%02d", hours, minutes)
}

// ShortDate turns YYYY-MM-DD into MM/DD.
func ShortDate(date string) string {
	parts := strings.Split(date, "-")
	if len(parts) != 3 {
		return date
	}
	return parts[1] + "/" + parts[2]
}
