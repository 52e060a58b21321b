package query

import "slices"

// Subject is what the gate and the should boost see of a candidate card.
// All string values are already normalized.
type Subject struct {
	OpenToWork    bool
	SalaryMin     *int64
	Company       string
	Domain        string
	SubDomain     string
	LocationTags  []string
	Phrases       []string
	FuzzyLocation bool // a fuzzy location match above threshold was found
}

// Admits reports whether s satisfies every hard constraint.
//
// Salary: the candidate's asking minimum must fall inside the requested
// window; candidates without a known salary are excluded once a window is set.
// Location: exact tag membership or a fuzzy location match.
func (m Must) Admits(s Subject) bool {
	if m.OpenToWorkOnly && !s.OpenToWork {
		return false
	}
	if m.HasSalary() {
		if s.SalaryMin == nil {
			return false
		}
		if m.SalaryMin != nil && *s.SalaryMin < *m.SalaryMin {
			return false
		}
		if m.SalaryMax != nil && *s.SalaryMin > *m.SalaryMax {
			return false
		}
	}
	if len(m.Companies) > 0 && !slices.Contains(m.Companies, s.Company) {
		return false
	}
	if len(m.Domains) > 0 && !slices.Contains(m.Domains, s.Domain) && !slices.Contains(m.Domains, s.SubDomain) {
		return false
	}
	if len(m.Locations) > 0 && !s.FuzzyLocation && !anyIn(m.Locations, s.LocationTags) {
		return false
	}
	return true
}

// Overlap returns the fraction of should items s satisfies, in [0,1], and
// the items that matched in should order.
func (sh Should) Overlap(s Subject) (float64, []string) {
	total := sh.Size()
	if total == 0 {
		return 0, nil
	}
	var matched []string
	for _, t := range sh.Terms {
		if slices.Contains(s.Phrases, t) {
			matched = append(matched, t)
		}
	}
	for _, c := range sh.Companies {
		if c == s.Company {
			matched = append(matched, c)
		}
	}
	for _, d := range sh.Domains {
		if d == s.Domain || d == s.SubDomain {
			matched = append(matched, d)
		}
	}
	return float64(len(matched)) / float64(total), matched
}

func anyIn(want, have []string) bool {
	for _, w := range want {
		if slices.Contains(have, w) {
			return true
		}
	}
	return false
}
