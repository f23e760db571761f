package tokenizer

import (
	"fmt"
	"strings"
)

// ModelID identifies a tokenizer model from the supported catalog.
type ModelID string

// The supported catalog. Requests naming any other identifier are rejected
// before a load is attempted.
const (
	ModelGPT4o          ModelID = "gpt-4o"
	ModelGPT4oMini      ModelID = "gpt-4o-mini"
	ModelGPT4           ModelID = "gpt-4"
	ModelGPT35Turbo     ModelID = "gpt-3.5-turbo"
	ModelTextEmbedding3 ModelID = "text-embedding-3-small"
)

// DefaultModel is used when no model is selected at startup.
const DefaultModel = ModelGPT4o

// CatalogEntry pairs a model identifier with a human-readable description.
type CatalogEntry struct {
	ID          ModelID
	Description string
}

var catalog = []CatalogEntry{
	{ModelGPT4o, "GPT-4o (o200k_base encoding)"},
	{ModelGPT4oMini, "GPT-4o mini (o200k_base encoding)"},
	{ModelGPT4, "GPT-4 (cl100k_base encoding)"},
	{ModelGPT35Turbo, "GPT-3.5 Turbo (cl100k_base encoding)"},
	{ModelTextEmbedding3, "text-embedding-3-small (cl100k_base encoding)"},
}

// Catalog returns the fixed table of supported models, in a stable order.
func Catalog() []CatalogEntry {
	out := make([]CatalogEntry, len(catalog))
	copy(out, catalog)
	return out
}

// Supported reports whether the identifier is in the catalog.
func Supported(id ModelID) bool {
	for _, entry := range catalog {
		if entry.ID == id {
			return true
		}
	}
	return false
}

// CatalogString renders the catalog for error messages and startup help.
func CatalogString() string {
	var b strings.Builder
	for i, entry := range catalog {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s (%s)", entry.ID, entry.Description)
	}
	return b.String()
}
