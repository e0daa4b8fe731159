package report

import (
	"math"
	"sort"
	"strconv"
)

// Totals outside this window are treated as test accounts or bad data.
const (
	statsMinSeconds = 5 * hour
	statsMaxSeconds = 1000 * hour
)

type Stats struct {
	N      int
	Total  float64
	Mean   float64
	Median float64
	StdDev float64
}

// CohortStats summarizes totals strictly between five and a thousand hours.
// StdDev is the population standard deviation.
func CohortStats(totals []int64) Stats {
	var kept []float64
	for _, t := range totals {
		if t > statsMinSeconds && t < statsMaxSeconds {
			kept = append(kept, float64(t))
		}
	}
	n := len(kept)
	if n == 0 {
		return Stats{}
	}
	sort.Float64s(kept)

	var s Stats
	s.N = n
	for _, v := range kept {
		s.Total += v
	}
	s.Mean = s.Total / float64(n)
	if n%2 == 0 {
		s.Median = (kept[n/2-1] + kept[n/2]) / 2
	} else {
		s.Median = kept[n/2]
	}
	var sq float64
	for _, v := range kept {
		sq += (v - s.Mean) * (v - s.Mean)
	}
	s.StdDev = math.Sqrt(sq / float64(n))
	return s
}

// FormatHours renders seconds as hours with at most one decimal, e.g. "12.5".
func FormatHours(seconds float64) string {
	return strconv.FormatFloat(roundHalfUp(seconds/360)/10, 'f', -1, 64)
}

func roundHalfUp(x float64) float64 {
	return math.Floor(x + 0.5)
}
