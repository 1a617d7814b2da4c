package model

import (
	"strings"
	"time"

	"github.com/inkwell-lab/inkwell/pkg/domain/types"
)

// Utterance is one user submission. Created once per send, never mutated.
type Utterance struct {
	Text        string
	SubmittedAt time.Time
}

// IntentCandidate is one (label, confidence) pair from the classifier.
type IntentCandidate struct {
	Label      types.IntentLabel
	Confidence float64
}

// DuplicateMatch describes a high-similarity memory record the classifier
// matched against the utterance.
type DuplicateMatch struct {
	ID    string
	Kind  string
	Score float64
	Text  string
}

// RoutingHint carries the classifier's opaque target-entry resolution. The
// planner only checks presence of TargetEntryID; the resolution logic itself
// belongs to the classifier collaborator.
type RoutingHint struct {
	TargetEntryID    types.EntryID
	TargetEntryType  string
	ClassificationID string
}

// Classification is the raw result from the external classifier.
type Classification struct {
	Label           types.IntentLabel
	Confidence      float64
	Reasons         []string
	Candidates      []IntentCandidate
	Slots           map[string]string
	TargetEntryID   types.EntryID
	TargetEntryType string
	DuplicateMatch  *DuplicateMatch
}

// CanonicalIntent is the normalized classification result used by all
// downstream stages. Immutable once built.
type CanonicalIntent struct {
	ID            string
	RawLabel      types.IntentLabel
	DisplayLabel  string
	Confidence    float64
	Subsystem     types.Subsystem
	Probabilities map[types.IntentLabel]float64
	Slots         map[string]string
	Routing       *RoutingHint
	Reasons       []string
}

// SecondBest returns the strongest non-primary candidate, if any.
func (x *CanonicalIntent) SecondBest() (types.IntentLabel, float64) {
	var best types.IntentLabel
	var conf float64
	for label, p := range x.Probabilities {
		if label == x.RawLabel {
			continue
		}
		if p > conf {
			best, conf = label, p
		}
	}
	return best, conf
}

// DisplayLabelFor converts a raw label to its human-readable form,
// e.g. "entry_create" -> "Entry Create".
func DisplayLabelFor(label types.IntentLabel) string {
	words := strings.Split(string(label), "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
