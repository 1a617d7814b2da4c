package model

import (
	"fmt"
	"sort"
)

// Lever is an evidence-backed factor contributing to the diagnosis,
// optionally grounded by a receipt citation such as "goal:<id>".
type Lever struct {
	Label    string
	Evidence string
	Receipt  string
}

// SynthesisAction is the one reversible action proposed to the user.
type SynthesisAction struct {
	Title    string
	Detail   string
	Receipts map[string]string
}

// ConfidenceVector scores the turn's grounding and planning quality.
type ConfidenceVector struct {
	Retrieval float64
	Plan      float64
	Overall   float64
}

// Synthesis is the full synthesized result for one turn.
type Synthesis struct {
	Diagnosis  string
	Levers     []Lever
	Action     SynthesisAction
	Reply      string
	Learned    string
	Ethical    string
	Confidence ConfidenceVector
}

// ReceiptsFooter returns deduplicated, sorted citations from levers and the
// action, suitable for appending to the reply.
func (s *Synthesis) ReceiptsFooter() []string {
	seen := map[string]struct{}{}
	var out []string
	add := func(line string) {
		if _, ok := seen[line]; ok {
			return
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	for _, lever := range s.Levers {
		if lever.Receipt != "" {
			add(fmt.Sprintf("%s · %s", lever.Receipt, lever.Label))
		}
	}
	for key, value := range s.Action.Receipts {
		if value != "" {
			add(fmt.Sprintf("%s:%s", key, value))
		}
	}
	sort.Strings(out)
	return out
}
