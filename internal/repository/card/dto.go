package card

import (
	"encoding/binary"
	"math"
	"strconv"
	"strings"
	"time"

	domcard "github.com/kailas-cloud/talentdex/internal/domain/card"
)

// buildHashFields flattens a card into HSET fields. Normalized and derived
// fields are computed here so every write keeps them consistent.
func buildHashFields(c *domcard.Card) map[string]string {
	owner := c.Owner()
	m := map[string]string{
		FieldID:            c.ID(),
		FieldPersonID:      c.PersonID(),
		FieldParentID:      c.ParentID(),
		FieldDepth:         strconv.Itoa(c.Depth()),
		FieldTitle:         c.Title(),
		FieldContext:       c.Context(),
		FieldOutcome:       c.Outcome(),
		FieldCompany:       c.Company(),
		FieldTeam:          c.Team(),
		FieldDomain:        c.Domain(),
		FieldSubDomain:     c.SubDomain(),
		FieldCompanyNorm:   c.CompanyNorm(),
		FieldTeamNorm:      c.TeamNorm(),
		FieldDomainNorm:    c.DomainNorm(),
		FieldSubDomainNorm: c.SubDomainNorm(),
		FieldCity:          c.City(),
		FieldCountry:       c.Country(),
		FieldRemote:        boolField(c.Remote()),
		FieldLocationText:  c.LocationText(),
		FieldLocationTags:  strings.Join(c.LocationTags(), ListSeparator),
		FieldSearchDoc:     c.SearchDocument(),
		FieldSearchPhrases: strings.Join(c.SearchPhrases(), ListSeparator),
		FieldEmbedding:     vectorToBytes(c.Vector()),
		FieldVisible:       boolField(!c.Hidden()),
		FieldHumanEdited:   boolField(c.HumanEdited()),
		FieldLocked:        boolField(c.Locked()),
		FieldStatus:        string(c.Status()),
		FieldSourceID:      c.SourceID(),
		FieldUpdatedAt:     strconv.FormatInt(c.UpdatedAt().UnixMilli(), 10),
		FieldOpenToWork:    boolField(owner.OpenToWork),
		FieldOwnerVisible:  boolField(owner.Searchable),
		FieldSearchable:    boolField(c.Searchable()),
	}
	// Absent salary fields keep the card out of numeric salary filters.
	if owner.SalaryMin != nil {
		m[FieldSalaryMin] = strconv.FormatInt(*owner.SalaryMin, 10)
	}
	if owner.SalaryMax != nil {
		m[FieldSalaryMax] = strconv.FormatInt(*owner.SalaryMax, 10)
	}
	return m
}

// parseHashFields rebuilds a card from a full hash.
func parseHashFields(m map[string]string) domcard.Card {
	d := domcard.Draft{
		ID:          m[FieldID],
		PersonID:    m[FieldPersonID],
		ParentID:    m[FieldParentID],
		Depth:       atoi(m[FieldDepth]),
		Title:       m[FieldTitle],
		Context:     m[FieldContext],
		Outcome:     m[FieldOutcome],
		Company:     m[FieldCompany],
		Team:        m[FieldTeam],
		Domain:      m[FieldDomain],
		SubDomain:   m[FieldSubDomain],
		City:        m[FieldCity],
		Country:     m[FieldCountry],
		Remote:      parseBool(m[FieldRemote]),
		Status:      domcard.Status(m[FieldStatus]),
		Hidden:      !parseBool(m[FieldVisible]),
		HumanEdited: parseBool(m[FieldHumanEdited]),
		Locked:      parseBool(m[FieldLocked]),
		SourceID:    m[FieldSourceID],
	}
	owner := domcard.Owner{
		OpenToWork: parseBool(m[FieldOpenToWork]),
		SalaryMin:  parseOptInt(m[FieldSalaryMin]),
		SalaryMax:  parseOptInt(m[FieldSalaryMax]),
		Searchable: parseBool(m[FieldOwnerVisible]),
	}
	return domcard.Reconstruct(d, ParseMillis(m[FieldUpdatedAt]), owner, bytesToVector(m[FieldEmbedding]))
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func parseBool(s string) bool { return s == "1" }

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func parseOptInt(s string) *int64 {
	if s == "" {
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}

// ParseMillis parses a unix-millisecond field; malformed values read as the zero time.
func ParseMillis(s string) time.Time {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

// SplitList splits a multi-valued TAG field.
func SplitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ListSeparator)
}

// vectorToBytes serializes []float32 to a binary string (4 bytes per float, little-endian).
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

// bytesToVector deserializes a binary string back to []float32.
func bytesToVector(s string) []float32 {
	b := []byte(s)
	if len(b) == 0 || len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
