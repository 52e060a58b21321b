// Package query turns a raw natural-language search into cleaned text plus
// hard (must) and soft (should) constraints.
package query

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kailas-cloud/talentdex/internal/domain"
	"github.com/kailas-cloud/talentdex/internal/domain/text"
)

// Query limits.
const (
	// MaxQueryLength is the maximum raw query length in bytes.
	MaxQueryLength = 4096
	// MaxListFilter bounds every list-valued filter.
	MaxListFilter = 32
)

// Filters are the explicit structured options sent alongside the query.
type Filters struct {
	OpenToWorkOnly     bool
	PreferredLocations []string
	SalaryMin          *int64
	SalaryMax          *int64
	Companies          []string
	Domains            []string
}

// Must holds hard constraints. A candidate failing any of them is excluded.
type Must struct {
	OpenToWorkOnly bool     `json:"open_to_work_only,omitempty"`
	SalaryMin      *int64   `json:"salary_min,omitempty"`
	SalaryMax      *int64   `json:"salary_max,omitempty"`
	Locations      []string `json:"locations,omitempty"`
	Companies      []string `json:"companies,omitempty"`
	Domains        []string `json:"domains,omitempty"`
}

// HasSalary reports whether a salary window is set.
func (m Must) HasSalary() bool { return m.SalaryMin != nil || m.SalaryMax != nil }

// Should holds soft constraints that only boost ranking.
type Should struct {
	Terms     []string `json:"terms,omitempty"`
	Companies []string `json:"companies,omitempty"`
	Domains   []string `json:"domains,omitempty"`
}

// Size returns the number of should items.
func (s Should) Size() int { return len(s.Terms) + len(s.Companies) + len(s.Domains) }

// Constraints is the persisted form of a parsed query.
type Constraints struct {
	Must   Must   `json:"must"`
	Should Should `json:"should"`
}

// Query is a validated, normalized search query.
type Query struct {
	original string
	cleaned  string
	must     Must
	should   Should
}

// Reconstruct creates a Query without validation (storage hydration).
func Reconstruct(original, cleaned string, c Constraints) Query {
	return Query{original: original, cleaned: cleaned, must: c.Must, should: c.Should}
}

// Original returns the raw query as submitted.
func (q Query) Original() string { return q.original }

// Cleaned returns the normalized query text.
func (q Query) Cleaned() string { return q.cleaned }

// Must returns the hard constraints.
func (q Query) Must() Must { return q.must }

// Should returns the soft constraints.
func (q Query) Should() Should { return q.should }

// Constraints returns the persisted form of must and should.
func (q Query) Constraints() Constraints {
	return Constraints{Must: q.must, Should: q.should}
}

// Vocabulary is the set of known domains recognized inside free text.
type Vocabulary struct {
	domains []string
}

// NewVocabulary normalizes the known domain names. Multi-word domains are allowed.
func NewVocabulary(domains []string) Vocabulary {
	return Vocabulary{domains: text.NormalizeAll(domains)}
}

// Domains returns the normalized vocabulary.
func (v Vocabulary) Domains() []string { return v.domains }

var companyPattern = regexp.MustCompile(`(?:^|\s)(?:at\s+|@)([\p{L}\p{N}][\p{L}\p{N}&.\-]*)`)

var notCompany = map[string]struct{}{
	"least": {}, "most": {}, "scale": {}, "home": {}, "a": {}, "an": {}, "the": {},
	"least.": {}, "all": {}, "once": {}, "times": {}, "night": {},
}

// Normalize validates raw and f and builds the Query. Empty or oversized
// queries and malformed filters fail with domain.ErrValidation.
func Normalize(raw string, f Filters, vocab Vocabulary) (Query, error) {
	if len(raw) > MaxQueryLength {
		return Query{}, domain.NewValidationError("query", fmt.Sprintf("too long (max %d bytes)", MaxQueryLength))
	}
	cleaned := text.NormalizeQuery(raw)
	if cleaned == "" {
		return Query{}, domain.NewValidationError("query", "must not be empty")
	}

	must, err := mustFromFilters(f)
	if err != nil {
		return Query{}, err
	}

	should := Should{
		Terms:     text.Terms(cleaned),
		Companies: extractCompanies(cleaned),
		Domains:   matchDomains(cleaned, vocab),
	}

	return Query{original: raw, cleaned: cleaned, must: must, should: should}, nil
}

func mustFromFilters(f Filters) (Must, error) {
	if f.SalaryMin != nil && *f.SalaryMin < 0 {
		return Must{}, domain.NewValidationError("salary_min", "must be non-negative")
	}
	if f.SalaryMax != nil && *f.SalaryMax < 0 {
		return Must{}, domain.NewValidationError("salary_max", "must be non-negative")
	}
	if f.SalaryMin != nil && f.SalaryMax != nil && *f.SalaryMin > *f.SalaryMax {
		return Must{}, domain.NewValidationError("salary_min", "must not exceed salary_max")
	}
	for name, list := range map[string][]string{
		"preferred_locations": f.PreferredLocations,
		"companies":           f.Companies,
		"domains":             f.Domains,
	} {
		if len(list) > MaxListFilter {
			return Must{}, domain.NewValidationError(name, fmt.Sprintf("too many values (max %d)", MaxListFilter))
		}
	}

	return Must{
		OpenToWorkOnly: f.OpenToWorkOnly,
		SalaryMin:      f.SalaryMin,
		SalaryMax:      f.SalaryMax,
		Locations:      text.NormalizeAll(f.PreferredLocations),
		Companies:      text.NormalizeAll(f.Companies),
		Domains:        text.NormalizeAll(f.Domains),
	}, nil
}

func extractCompanies(cleaned string) []string {
	matches := companyPattern.FindAllStringSubmatch(cleaned, -1)
	var raw []string
	for _, m := range matches {
		name := strings.TrimRight(m[1], ".-")
		if _, skip := notCompany[name]; skip || name == "" {
			continue
		}
		raw = append(raw, name)
	}
	return text.NormalizeAll(raw)
}

func matchDomains(cleaned string, vocab Vocabulary) []string {
	if len(vocab.domains) == 0 {
		return nil
	}
	padded := " " + strings.Join(text.Tokenize(cleaned), " ") + " "
	var out []string
	for _, d := range vocab.domains {
		if strings.Contains(padded, " "+d+" ") {
			out = append(out, d)
		}
	}
	return out
}
