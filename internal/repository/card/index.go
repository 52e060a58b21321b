package card

import "github.com/kailas-cloud/talentdex/internal/db"

// HNSWConfig holds HNSW index parameters for the card embedding field.
type HNSWConfig struct {
	M           int
	EFConstruct int
	EFRuntime   int
}

// searchDocWeight boosts the main document over the location text in BM25.
const searchDocWeight = 1.0

// buildIndex returns the FT index definition for the layout.
func buildIndex(l Layout, hnsw HNSWConfig) (*db.IndexDefinition, error) {
	return db.NewIndex(l.IndexName()).
		Prefix(l.CardPrefix()).
		Numeric(FieldSearchable).
		Numeric(FieldOpenToWork).
		Numeric(FieldSalaryMin).
		Numeric(FieldDepth).
		SortableNumeric(FieldUpdatedAt).
		Tag(FieldPersonID).
		Tag(FieldCompanyNorm).
		Tag(FieldDomainNorm).
		Tag(FieldSubDomainNorm).
		TagList(FieldLocationTags, ListSeparator).
		WeightedText(FieldSearchDoc, searchDocWeight).
		Text(FieldLocationText).
		VectorHNSW(FieldEmbedding, l.schema.Dimensions, db.DistanceCosine,
			hnsw.M, hnsw.EFConstruct, hnsw.EFRuntime).
		Build()
}
