package interfaces

import (
	"context"

	"github.com/inkwell-lab/inkwell/pkg/domain/model"
)

// ContextRecord is one memory record offered to the classifier for duplicate
// detection and target resolution. Score is the retrieval similarity against
// the current utterance.
type ContextRecord struct {
	ID    string
	Kind  string
	Text  string
	Score float64
}

// ClassifyInput bundles everything the classifier may consult for one
// utterance.
type ClassifyInput struct {
	Utterance model.Utterance

	// Records are recent memory records, newest first.
	Records []ContextRecord

	// ActiveEntryID names the entry currently under discussion, if the
	// conversation has an active window.
	ActiveEntryID string

	// RecentUserTexts are the user's last few utterances, newest first.
	RecentUserTexts []string
}

// Classifier resolves an utterance to a raw classification. Implementations
// must be safe for concurrent use.
type Classifier interface {
	Classify(ctx context.Context, input *ClassifyInput) (*model.Classification, error)
}
