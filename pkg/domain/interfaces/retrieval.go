package interfaces

import (
	"context"

	"github.com/inkwell-lab/inkwell/pkg/domain/model"
)

// IndexRecord is one document to index for retrieval.
type IndexRecord struct {
	ID       string
	Kind     string
	Text     string
	Metadata map[string]string
}

// SearchQuery shapes one retrieval call.
type SearchQuery struct {
	Text string

	// Limit caps the total hits returned after dedup.
	Limit int

	// PerKind caps hits per record kind. Zero means no per-kind cap.
	PerKind int

	// Kinds restricts the search to the named kinds. Empty means all.
	Kinds []string
}

// Index defines the retrieval layer over indexed memory records.
type Index interface {
	// Upsert indexes or re-indexes records.
	Upsert(ctx context.Context, records []IndexRecord) error

	// Search returns hits ranked by blended score, deduplicated by ID.
	Search(ctx context.Context, query SearchQuery) ([]model.RagHit, error)
}
