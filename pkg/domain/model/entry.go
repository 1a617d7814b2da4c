package model

import (
	"strings"
	"time"

	"github.com/inkwell-lab/inkwell/pkg/domain/types"
)

// AppendSeparator joins appended content to an existing entry body.
const AppendSeparator = "\n\n"

// IntentMeta tags a persisted entry with the classification that produced it.
type IntentMeta struct {
	ClassificationID string
	Label            types.IntentLabel
	Confidence       float64
	Subsystem        types.Subsystem
}

// Entry is one persisted journal entry.
type Entry struct {
	ID        types.EntryID
	UserID    types.UserID
	Content   string
	Summary   string
	Tags      []string
	Intent    *IntentMeta
	GoalID    types.GoalID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Append joins additional content onto the entry body.
func (e *Entry) Append(content string) {
	if e.Content == "" {
		e.Content = content
		return
	}
	e.Content += AppendSeparator + content
}

// summaryMaxLength caps derived entry summaries.
const summaryMaxLength = 120

// Summarize derives a short summary from free text, cutting at a word
// boundary where possible.
func Summarize(text string) string {
	text = strings.TrimSpace(text)
	if len(text) <= summaryMaxLength {
		return text
	}
	cut := text[:summaryMaxLength]
	if idx := strings.LastIndexByte(cut, ' '); idx > summaryMaxLength/2 {
		cut = cut[:idx]
	}
	return cut + "…"
}
