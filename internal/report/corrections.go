package report

import (
	"fmt"
	"sort"
	"time"

	"clubbot/internal/domain"
)

// CorrectionsPerPage is how many corrections fit in one posted message.
const CorrectionsPerPage = 3

// SortCorrections orders corrections oldest first.
func SortCorrections(cs []domain.Correction) []domain.Correction {
	out := append([]domain.Correction(nil), cs...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Submitted.Before(out[j].Submitted) })
	return out
}

// FilterCorrections keeps corrections submitted for name (exact match).
func FilterCorrections(cs []domain.Correction, name string) []domain.Correction {
	var out []domain.Correction
	for _, c := range cs {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// PageCorrections splits cs into pages of at most perPage entries.
func PageCorrections(cs []domain.Correction, perPage int) [][]domain.Correction {
	if perPage <= 0 {
		perPage = CorrectionsPerPage
	}
	var pages [][]domain.Correction
	for start := 0; start < len(cs); start += perPage {
		end := start + perPage
		if end > len(cs) {
			end = len(cs)
		}
		pages = append(pages, cs[start:end])
	}
	return pages
}

func PageTitle(page, pages int) string {
	return fmt.Sprintf("Corrections (%d/%d)", page+1, pages)
}

// CorrectionField renders one correction as a title and body.
func CorrectionField(c domain.Correction, loc *time.Location) (string, string) {
	submitted := c.Submitted
	if loc != nil {
		submitted = submitted.In(loc)
	}
	title := fmt.Sprintf("*%s* @ (%s)", c.Name, submitted.Format("1/2 3:04 pm"))
	body := fmt.Sprintf("`[%s]` - %s", c.Date, c.Request)
	return title, body
}
