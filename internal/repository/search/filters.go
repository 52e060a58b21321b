package search

import (
	"fmt"

	"github.com/kailas-cloud/talentdex/internal/domain/search/filter"
	"github.com/kailas-cloud/talentdex/internal/domain/search/query"
	cardrepo "github.com/kailas-cloud/talentdex/internal/repository/card"
)

// mustFilter translates hard constraints into an index filter. Only
// searchable cards are ever matched. withLocation adds the exact location
// tag predicate, which the fuzzy-aware channels leave to the ranker.
func mustFilter(m query.Must, withLocation bool) (filter.Expression, error) {
	one := 1.0
	searchable, err := rangeCond(cardrepo.FieldSearchable, &one, &one)
	if err != nil {
		return filter.Expression{}, err
	}
	must := []filter.Condition{searchable}

	if m.OpenToWorkOnly {
		c, err := rangeCond(cardrepo.FieldOpenToWork, &one, &one)
		if err != nil {
			return filter.Expression{}, err
		}
		must = append(must, c)
	}
	if m.HasSalary() {
		c, err := rangeCond(cardrepo.FieldSalaryMin, toFloat(m.SalaryMin), toFloat(m.SalaryMax))
		if err != nil {
			return filter.Expression{}, err
		}
		must = append(must, c)
	}
	if len(m.Companies) > 0 {
		c, err := filter.NewMatchAny(cardrepo.FieldCompanyNorm, m.Companies)
		if err != nil {
			return filter.Expression{}, fmt.Errorf("company filter: %w", err)
		}
		must = append(must, c)
	}
	if withLocation && len(m.Locations) > 0 {
		c, err := filter.NewMatchAny(cardrepo.FieldLocationTags, m.Locations)
		if err != nil {
			return filter.Expression{}, fmt.Errorf("location filter: %w", err)
		}
		must = append(must, c)
	}

	// Domain matches either the domain or the sub-domain.
	var should []filter.Condition
	if len(m.Domains) > 0 {
		for _, key := range []string{cardrepo.FieldDomainNorm, cardrepo.FieldSubDomainNorm} {
			c, err := filter.NewMatchAny(key, m.Domains)
			if err != nil {
				return filter.Expression{}, fmt.Errorf("domain filter: %w", err)
			}
			should = append(should, c)
		}
	}

	return filter.NewExpression(must, should, nil)
}

// hasPredicates reports whether m constrains anything beyond searchability.
func hasPredicates(m query.Must) bool {
	return m.OpenToWorkOnly || m.HasSalary() ||
		len(m.Companies) > 0 || len(m.Domains) > 0 || len(m.Locations) > 0
}

func rangeCond(key string, gte, lte *float64) (filter.Condition, error) {
	r, err := filter.NewRangeFilter(nil, gte, nil, lte)
	if err != nil {
		return filter.Condition{}, fmt.Errorf("%s range: %w", key, err)
	}
	return filter.NewRange(key, r)
}

func toFloat(v *int64) *float64 {
	if v == nil {
		return nil
	}
	f := float64(*v)
	return &f
}
