package query

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/kailas-cloud/talentdex/internal/domain"
)

func i64(v int64) *int64 { return &v }

func TestNormalize_CleansText(t *testing.T) {
	q, err := Normalize("  Senior   GO Engineer ", Filters{}, Vocabulary{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Original() != "  Senior   GO Engineer " {
		t.Errorf("Original() = %q", q.Original())
	}
	if q.Cleaned() != "senior go engineer" {
		t.Errorf("Cleaned() = %q", q.Cleaned())
	}
	want := []string{"senior", "go", "engineer"}
	if !reflect.DeepEqual(q.Should().Terms, want) {
		t.Errorf("Terms = %v, want %v", q.Should().Terms, want)
	}
}

func TestNormalize_Empty(t *testing.T) {
	for _, raw := range []string{"", "   ", "\t\n"} {
		_, err := Normalize(raw, Filters{}, Vocabulary{})
		if !errors.Is(err, domain.ErrValidation) {
			t.Errorf("Normalize(%q) err = %v, want ErrValidation", raw, err)
		}
	}
}

func TestNormalize_TooLong(t *testing.T) {
	_, err := Normalize(strings.Repeat("a", MaxQueryLength+1), Filters{}, Vocabulary{})
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
}

func TestNormalize_FilterValidation(t *testing.T) {
	tests := []struct {
		name string
		f    Filters
	}{
		{"min above max", Filters{SalaryMin: i64(200), SalaryMax: i64(100)}},
		{"negative min", Filters{SalaryMin: i64(-1)}},
		{"negative max", Filters{SalaryMax: i64(-1)}},
		{"too many locations", Filters{PreferredLocations: make([]string, MaxListFilter+1)}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Normalize("go", tc.f, Vocabulary{})
			if !errors.Is(err, domain.ErrValidation) {
				t.Errorf("err = %v, want ErrValidation", err)
			}
		})
	}
}

func TestNormalize_MustFromFilters(t *testing.T) {
	q, err := Normalize("backend", Filters{
		OpenToWorkOnly:     true,
		PreferredLocations: []string{"Berlin", " berlin", "São Paulo"},
		SalaryMin:          i64(80000),
		SalaryMax:          i64(120000),
		Companies:          []string{"Stripe"},
	}, Vocabulary{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := q.Must()
	if !m.OpenToWorkOnly {
		t.Error("OpenToWorkOnly = false")
	}
	if !reflect.DeepEqual(m.Locations, []string{"berlin", "sao paulo"}) {
		t.Errorf("Locations = %v", m.Locations)
	}
	if !reflect.DeepEqual(m.Companies, []string{"stripe"}) {
		t.Errorf("Companies = %v", m.Companies)
	}
	if *m.SalaryMin != 80000 || *m.SalaryMax != 120000 {
		t.Errorf("salary = %d..%d", *m.SalaryMin, *m.SalaryMax)
	}
}

func TestNormalize_ShouldCompaniesAndDomains(t *testing.T) {
	vocab := NewVocabulary([]string{"Fintech", "Machine Learning", "Payments"})
	q, err := Normalize("Engineer who worked at Stripe on machine learning for @Adyen", Filters{}, vocab)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(q.Should().Companies, []string{"stripe", "adyen"}) {
		t.Errorf("Companies = %v", q.Should().Companies)
	}
	if !reflect.DeepEqual(q.Should().Domains, []string{"machine learning"}) {
		t.Errorf("Domains = %v", q.Should().Domains)
	}
}

func TestNormalize_AtLeastIsNotACompany(t *testing.T) {
	q, _ := Normalize("at least 5 years of go", Filters{}, Vocabulary{})
	if len(q.Should().Companies) != 0 {
		t.Errorf("Companies = %v, want none", q.Should().Companies)
	}
}

func TestReconstruct(t *testing.T) {
	c := Constraints{Must: Must{OpenToWorkOnly: true}, Should: Should{Terms: []string{"go"}}}
	q := Reconstruct("Go", "go", c)
	if !reflect.DeepEqual(q.Constraints(), c) {
		t.Errorf("Constraints() = %+v", q.Constraints())
	}
}

func TestMustAdmits(t *testing.T) {
	base := Subject{
		OpenToWork:   true,
		SalaryMin:    i64(100000),
		Company:      "stripe",
		Domain:       "payments",
		SubDomain:    "ledgers",
		LocationTags: []string{"berlin", "germany"},
	}

	tests := []struct {
		name string
		must Must
		mod  func(s *Subject)
		want bool
	}{
		{"no constraints", Must{}, nil, true},
		{"open to work required and set", Must{OpenToWorkOnly: true}, nil, true},
		{"open to work required and unset", Must{OpenToWorkOnly: true}, func(s *Subject) { s.OpenToWork = false }, false},
		{"salary inside window", Must{SalaryMin: i64(90000), SalaryMax: i64(110000)}, nil, true},
		{"salary at lower edge", Must{SalaryMin: i64(100000)}, nil, true},
		{"salary below window", Must{SalaryMin: i64(120000)}, nil, false},
		{"salary above window", Must{SalaryMax: i64(90000)}, nil, false},
		{"salary unknown", Must{SalaryMin: i64(1)}, func(s *Subject) { s.SalaryMin = nil }, false},
		{"company match", Must{Companies: []string{"adyen", "stripe"}}, nil, true},
		{"company miss", Must{Companies: []string{"adyen"}}, nil, false},
		{"domain via sub-domain", Must{Domains: []string{"ledgers"}}, nil, true},
		{"domain miss", Must{Domains: []string{"gaming"}}, nil, false},
		{"location exact", Must{Locations: []string{"munich", "berlin"}}, nil, true},
		{"location miss", Must{Locations: []string{"munich"}}, nil, false},
		{"location fuzzy", Must{Locations: []string{"berlni"}}, func(s *Subject) { s.FuzzyLocation = true }, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := base
			if tc.mod != nil {
				tc.mod(&s)
			}
			if got := tc.must.Admits(s); got != tc.want {
				t.Errorf("Admits() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestShouldOverlap(t *testing.T) {
	sh := Should{Terms: []string{"go", "kafka"}, Companies: []string{"stripe"}, Domains: []string{"payments"}}
	s := Subject{Phrases: []string{"go", "engineer"}, Company: "stripe", Domain: "fintech"}

	frac, matched := sh.Overlap(s)
	if frac != 0.5 {
		t.Errorf("overlap = %v, want 0.5", frac)
	}
	if !reflect.DeepEqual(matched, []string{"go", "stripe"}) {
		t.Errorf("matched = %v", matched)
	}

	if frac, matched := (Should{}).Overlap(s); frac != 0 || matched != nil {
		t.Errorf("empty should = %v %v", frac, matched)
	}
}
