package report

import "sort"

type RequirementStatus struct {
	Met     []string
	Missing []string
}

func (r RequirementStatus) Total() int {
	return len(r.Met) + len(r.Missing)
}

func (r RequirementStatus) Done() bool {
	return len(r.Missing) == 0
}

// Requirements splits a member's preseason checklist into met and missing
// items, each sorted by name.
func Requirements(reqs map[string]bool) RequirementStatus {
	var s RequirementStatus
	for name, met := range reqs {
		if met {
			s.Met = append(s.Met, name)
		} else {
			s.Missing = append(s.Missing, name)
		}
	}
	sort.Strings(s.Met)
	sort.Strings(s.Missing)
	return s
}
