// Package card holds the experience card aggregate: the unit that is indexed,
// retrieved and ranked.
package card

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/kailas-cloud/talentdex/internal/domain/text"
)

var idRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

const (
	// MaxDepth bounds the card tree: a parent (0), its children (1) and grandchildren (2).
	MaxDepth = 2
	// MaxFieldSize bounds every free-text field in bytes.
	MaxFieldSize = 8192
)

// Status is the editorial state of a card.
type Status string

const (
	// StatusDraft is machine-generated or unfinished and never searchable.
	StatusDraft Status = "draft"
	// StatusPublished is visible to search when the card and owner are visible.
	StatusPublished Status = "published"
)

// Draft is the writable input of a card.
type Draft struct {
	ID          string
	PersonID    string
	ParentID    string
	Depth       int
	Title       string
	Context     string
	Outcome     string
	Company     string
	Team        string
	Domain      string
	SubDomain   string
	City        string
	Country     string
	Remote      bool
	Status      Status
	Hidden      bool
	HumanEdited bool
	Locked      bool
	SourceID    string
}

// Owner is the per-person state denormalized onto every card at write time
// so the index can filter without a join.
type Owner struct {
	OpenToWork bool
	SalaryMin  *int64
	SalaryMax  *int64
	Searchable bool
}

// Card is the experience card aggregate (immutable value object).
type Card struct {
	id          string
	personID    string
	parentID    string
	depth       int
	title       string
	context     string
	outcome     string
	company     string
	team        string
	domain      string
	subDomain   string
	city        string
	country     string
	remote      bool
	status      Status
	hidden      bool
	humanEdited bool
	locked      bool
	sourceID    string
	updatedAt   time.Time
	owner       Owner
	vector      []float32
}

// New validates a draft and creates a Card stamped with updatedAt.
func New(d Draft, updatedAt time.Time) (Card, error) {
	if err := validateID("card id", d.ID); err != nil {
		return Card{}, err
	}
	if strings.TrimSpace(d.PersonID) == "" {
		return Card{}, fmt.Errorf("person id is required")
	}
	if d.Depth < 0 || d.Depth > MaxDepth {
		return Card{}, fmt.Errorf("depth must be between 0 and %d", MaxDepth)
	}
	if d.Depth == 0 && d.ParentID != "" {
		return Card{}, fmt.Errorf("a root card cannot have a parent")
	}
	if d.Depth > 0 {
		if err := validateID("parent id", d.ParentID); err != nil {
			return Card{}, err
		}
		if d.ParentID == d.ID {
			return Card{}, fmt.Errorf("a card cannot be its own parent")
		}
	}
	if strings.TrimSpace(d.Title) == "" {
		return Card{}, fmt.Errorf("title is required")
	}
	for name, v := range map[string]string{"title": d.Title, "context": d.Context, "outcome": d.Outcome} {
		if len(v) > MaxFieldSize {
			return Card{}, fmt.Errorf("%s too large (max %d bytes)", name, MaxFieldSize)
		}
	}
	status := d.Status
	switch status {
	case StatusDraft, StatusPublished:
	case "":
		status = StatusPublished
	default:
		return Card{}, fmt.Errorf("unknown status %q", d.Status)
	}

	return Card{
		id:          d.ID,
		personID:    d.PersonID,
		parentID:    d.ParentID,
		depth:       d.Depth,
		title:       text.CollapseSpace(d.Title),
		context:     strings.TrimSpace(d.Context),
		outcome:     strings.TrimSpace(d.Outcome),
		company:     strings.TrimSpace(d.Company),
		team:        strings.TrimSpace(d.Team),
		domain:      strings.TrimSpace(d.Domain),
		subDomain:   strings.TrimSpace(d.SubDomain),
		city:        strings.TrimSpace(d.City),
		country:     strings.TrimSpace(d.Country),
		remote:      d.Remote,
		status:      status,
		hidden:      d.Hidden,
		humanEdited: d.HumanEdited,
		locked:      d.Locked,
		sourceID:    d.SourceID,
		updatedAt:   updatedAt.UTC(),
	}, nil
}

// Reconstruct creates a Card without validation (storage hydration).
func Reconstruct(d Draft, updatedAt time.Time, owner Owner, vector []float32) Card {
	return Card{
		id: d.ID, personID: d.PersonID, parentID: d.ParentID, depth: d.Depth,
		title: d.Title, context: d.Context, outcome: d.Outcome,
		company: d.Company, team: d.Team, domain: d.Domain, subDomain: d.SubDomain,
		city: d.City, country: d.Country, remote: d.Remote,
		status: d.Status, hidden: d.Hidden, humanEdited: d.HumanEdited, locked: d.Locked,
		sourceID: d.SourceID, updatedAt: updatedAt.UTC(), owner: owner, vector: vector,
	}
}

func validateID(name, id string) error {
	if id == "" {
		return fmt.Errorf("%s is required", name)
	}
	if len(id) > 128 {
		return fmt.Errorf("%s too long (max 128)", name)
	}
	if !idRegex.MatchString(id) {
		return fmt.Errorf("%s must be alphanumeric with underscores and hyphens", name)
	}
	return nil
}

// ID returns the card identifier.
func (c *Card) ID() string { return c.id }

// PersonID returns the owning person.
func (c *Card) PersonID() string { return c.personID }

// ParentID returns the parent card id, empty for roots.
func (c *Card) ParentID() string { return c.parentID }

// Depth returns the tree depth, 0 for roots.
func (c *Card) Depth() int { return c.depth }

// IsParent reports whether the card is a root of its tree.
func (c *Card) IsParent() bool { return c.depth == 0 }

// Title returns the card headline.
func (c *Card) Title() string { return c.title }

// Context returns the situation the work happened in.
func (c *Card) Context() string { return c.context }

// Outcome returns what the work achieved.
func (c *Card) Outcome() string { return c.outcome }

// Company returns the raw company name.
func (c *Card) Company() string { return c.company }

// Team returns the raw team name.
func (c *Card) Team() string { return c.team }

// Domain returns the raw domain.
func (c *Card) Domain() string { return c.domain }

// SubDomain returns the raw sub-domain.
func (c *Card) SubDomain() string { return c.subDomain }

// City returns the raw city.
func (c *Card) City() string { return c.city }

// Country returns the raw country.
func (c *Card) Country() string { return c.country }

// Remote reports whether the work was remote.
func (c *Card) Remote() bool { return c.remote }

// Status returns the editorial state.
func (c *Card) Status() Status { return c.status }

// Hidden reports whether the owner hid this card.
func (c *Card) Hidden() bool { return c.hidden }

// HumanEdited reports whether a person edited the card text.
func (c *Card) HumanEdited() bool { return c.humanEdited }

// Locked reports whether the card is protected from machine rewrites.
func (c *Card) Locked() bool { return c.locked }

// Curated reports whether the card outranks machine drafts on ties.
func (c *Card) Curated() bool { return c.humanEdited || c.locked }

// SourceID returns the raw record the card was derived from, if any.
func (c *Card) SourceID() string { return c.sourceID }

// UpdatedAt returns the last write time.
func (c *Card) UpdatedAt() time.Time { return c.updatedAt }

// Owner returns the denormalized person state.
func (c *Card) Owner() Owner { return c.owner }

// Vector returns the embedding vector.
func (c *Card) Vector() []float32 { return c.vector }

// Draft returns the writable view of the card.
func (c *Card) Draft() Draft {
	return Draft{
		ID: c.id, PersonID: c.personID, ParentID: c.parentID, Depth: c.depth,
		Title: c.title, Context: c.context, Outcome: c.outcome,
		Company: c.company, Team: c.team, Domain: c.domain, SubDomain: c.subDomain,
		City: c.city, Country: c.country, Remote: c.remote, Status: c.status,
		Hidden: c.hidden, HumanEdited: c.humanEdited, Locked: c.locked, SourceID: c.sourceID,
	}
}

// WithOwner returns a copy carrying the given owner state.
func (c *Card) WithOwner(o Owner) Card {
	cp := *c
	cp.owner = o
	return cp
}

// WithVector returns a copy with the given vector set.
func (c *Card) WithVector(v []float32) Card {
	cp := *c
	cp.vector = v
	return cp
}

// Searchable reports whether the card may appear in search results.
func (c *Card) Searchable() bool {
	return c.status == StatusPublished && !c.hidden && c.owner.Searchable
}

// CompanyNorm returns the normalized company used by filters.
func (c *Card) CompanyNorm() string { return text.NormalizeField(c.company) }

// TeamNorm returns the normalized team.
func (c *Card) TeamNorm() string { return text.NormalizeField(c.team) }

// DomainNorm returns the normalized domain.
func (c *Card) DomainNorm() string { return text.NormalizeField(c.domain) }

// SubDomainNorm returns the normalized sub-domain.
func (c *Card) SubDomainNorm() string { return text.NormalizeField(c.subDomain) }

// LocationTags returns the normalized city and country, plus "remote" for remote work.
func (c *Card) LocationTags() []string {
	raw := []string{c.city, c.country}
	if c.remote {
		raw = append(raw, "remote")
	}
	return text.NormalizeAll(raw)
}

// LocationText returns the location tags as one string for fuzzy matching.
func (c *Card) LocationText() string {
	return strings.Join(c.LocationTags(), " ")
}

// SearchDocument concatenates every searchable field into one normalized text.
func (c *Card) SearchDocument() string {
	parts := []string{
		c.title, c.context, c.outcome,
		c.company, c.team, c.domain, c.subDomain,
		c.city, c.country,
	}
	var nonEmpty []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return text.NormalizeQuery(strings.Join(nonEmpty, " "))
}

// SearchPhrases returns the term and bigram set of the search document.
func (c *Card) SearchPhrases() []string {
	return text.Phrases(c.SearchDocument())
}

// EmbeddingText is the text sent to the embedder for this card.
func (c *Card) EmbeddingText() string {
	var b strings.Builder
	b.WriteString(c.title)
	for _, p := range []string{c.context, c.outcome} {
		if p != "" {
			b.WriteString(". ")
			b.WriteString(p)
		}
	}
	for _, p := range []string{c.company, c.domain, c.subDomain} {
		if p != "" {
			b.WriteString(" | ")
			b.WriteString(p)
		}
	}
	return b.String()
}
