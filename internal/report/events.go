package report

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"clubbot/internal/domain"
)

type Countdown struct {
	Label   string
	Minutes int64
	Hours   int64
	Days    float64
}

// TimeUntil measures the distance between now and ev. Events in the past
// are labeled "since" instead of "till".
func TimeUntil(ev domain.Event, now time.Time) (Countdown, error) {
	at, err := time.Parse(time.RFC3339, ev.Timestamp)
	if err != nil {
		return Countdown{}, fmt.Errorf("event %q: %w", ev.Name, err)
	}
	seconds := at.Sub(now).Seconds()
	direction := "till"
	if seconds <= 0 {
		direction = "since"
	}
	absMin := math.Abs(seconds / 60)
	return Countdown{
		Label:   fmt.Sprintf("Time %s %s", direction, ev.Name),
		Minutes: int64(roundHalfUp(absMin)),
		Hours:   int64(roundHalfUp(absMin / 60)),
		Days:    roundHalfUp(absMin/144) / 10,
	}, nil
}

func (c Countdown) String() string {
	return fmt.Sprintf("%d minutes = %d hours = *%s days*", c.Minutes, c.Hours, strconv.FormatFloat(c.Days, 'f', -1, 64))
}
