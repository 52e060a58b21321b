// Package card stores experience cards as Redis hashes under one FT index
// per embedding schema version.
package card

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/talentdex/internal/domain"
)

// Hash field names shared by the card repository and the search channels.
const (
	FieldID            = "id"
	FieldPersonID      = "person_id"
	FieldParentID      = "parent_id"
	FieldDepth         = "depth"
	FieldTitle         = "title"
	FieldContext       = "context"
	FieldOutcome       = "outcome"
	FieldCompany       = "company"
	FieldTeam          = "team"
	FieldDomain        = "domain"
	FieldSubDomain     = "sub_domain"
	FieldCompanyNorm   = "company_norm"
	FieldTeamNorm      = "team_norm"
	FieldDomainNorm    = "domain_norm"
	FieldSubDomainNorm = "sub_domain_norm"
	FieldCity          = "city"
	FieldCountry       = "country"
	FieldRemote        = "is_remote"
	FieldLocationText  = "location_text"
	FieldLocationTags  = "location_tags"
	FieldSearchDoc     = "search_document"
	FieldSearchPhrases = "search_phrases"
	FieldEmbedding     = "embedding"
	FieldVisible       = "visible"
	FieldHumanEdited   = "human_edited"
	FieldLocked        = "locked"
	FieldStatus        = "status"
	FieldSourceID      = "source_id"
	FieldUpdatedAt     = "updated_at"
	FieldOpenToWork    = "open_to_work"
	FieldSalaryMin     = "salary_min"
	FieldSalaryMax     = "salary_max"
	FieldOwnerVisible  = "owner_visible"
	FieldSearchable    = "searchable"
)

// ListSeparator joins multi-valued TAG fields.
const ListSeparator = ","

// SummaryFields are the hash fields the search channels read back.
// The embedding and long free text are left out.
var SummaryFields = []string{
	FieldID, FieldPersonID, FieldParentID, FieldDepth, FieldTitle,
	FieldCompanyNorm, FieldDomainNorm, FieldSubDomainNorm,
	FieldLocationText, FieldLocationTags, FieldSearchPhrases,
	FieldHumanEdited, FieldLocked, FieldUpdatedAt,
	FieldOpenToWork, FieldSalaryMin,
}

// Layout names the keys and index of one embedding schema version.
type Layout struct {
	keyPrefix string
	schema    domain.VectorSchema
}

// NewLayout creates a layout. keyPrefix is the global storage prefix (e.g. "talentdex:").
func NewLayout(keyPrefix string, schema domain.VectorSchema) Layout {
	return Layout{keyPrefix: keyPrefix, schema: schema}
}

// Schema returns the vector schema the layout is pinned to.
func (l Layout) Schema() domain.VectorSchema { return l.schema }

// CardPrefix is the key prefix every card hash of this version shares.
func (l Layout) CardPrefix() string {
	return fmt.Sprintf("%scard:%s:", l.keyPrefix, l.schema.Tag())
}

// Key returns the hash key of card id.
func (l Layout) Key(id string) string { return l.CardPrefix() + id }

// IndexName returns the FT index name.
func (l Layout) IndexName() string {
	return fmt.Sprintf("%scards:%s:idx", l.keyPrefix, l.schema.Tag())
}

// CardID extracts the card id from a hash key.
func (l Layout) CardID(key string) string {
	return strings.TrimPrefix(key, l.CardPrefix())
}
