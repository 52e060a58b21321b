// Package person holds the profile attributes search filters and unlocks read.
package person

import (
	"fmt"
	"strings"
)

// Visibility controls whether a person's cards are searchable at all.
type Visibility string

const (
	// VisibilityPublic exposes published cards to search.
	VisibilityPublic Visibility = "public"
	// VisibilityHidden keeps every card out of search.
	VisibilityHidden Visibility = "hidden"
)

// Contact is the private part of a profile revealed by an unlock.
type Contact struct {
	Email        string
	EmailVisible bool
	Phone        string
	LinkedInURL  string
	Other        string
}

// Person is a searchable profile.
type Person struct {
	ID            string
	DisplayName   string
	OpenToWork    bool
	OpenToContact bool
	SalaryMin     *int64
	SalaryMax     *int64
	Visibility    Visibility
	Contact       Contact
}

// Validate checks invariants enforced before a person is persisted.
func (p *Person) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("person id is required")
	}
	if p.SalaryMin != nil && *p.SalaryMin < 0 {
		return fmt.Errorf("salary_min must be non-negative")
	}
	if p.SalaryMax != nil && *p.SalaryMax < 0 {
		return fmt.Errorf("salary_max must be non-negative")
	}
	if p.SalaryMin != nil && p.SalaryMax != nil && *p.SalaryMin > *p.SalaryMax {
		return fmt.Errorf("salary_min must not exceed salary_max")
	}
	switch p.Visibility {
	case VisibilityPublic, VisibilityHidden:
	case "":
		p.Visibility = VisibilityPublic
	default:
		return fmt.Errorf("unknown visibility %q", p.Visibility)
	}
	return nil
}

// Searchable reports whether the person's published cards may appear in results.
func (p *Person) Searchable() bool {
	return p.Visibility != VisibilityHidden
}
