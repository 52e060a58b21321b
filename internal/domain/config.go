package domain

import "fmt"

// VectorSchema pins the embedding layout every indexed card must follow.
// Version is bumped whenever Dimensions or Model change so old and new
// cards never share an index.
type VectorSchema struct {
	Version             int
	Model               string
	Dimensions          int
	DocumentInstruction string
	QueryInstruction    string
}

// DefaultVectorSchema returns the schema used when config omits one.
func DefaultVectorSchema() VectorSchema {
	return VectorSchema{
		Version:             1,
		Model:               "text-embedding-3-small",
		Dimensions:          1024,
		DocumentInstruction: "",
		QueryInstruction:    "",
	}
}

// Tag renders the schema version as it appears in key and index names.
func (s VectorSchema) Tag() string {
	return fmt.Sprintf("v%d", s.Version)
}

// InstructionFor returns the prefix embedded in front of text spent on p.
func (s VectorSchema) InstructionFor(p Purpose) string {
	if p == PurposeQuery {
		return s.QueryInstruction
	}
	return s.DocumentInstruction
}

// FitDimension returns v resized to dim: shorter vectors are zero-padded,
// longer ones truncated. The input slice is never modified.
func FitDimension(v []float32, dim int) []float32 {
	if dim <= 0 {
		return nil
	}
	out := make([]float32, dim)
	copy(out, v)
	return out
}
