package model

import (
	"fmt"
	"regexp"
)

// Redaction is the masked form of an utterance plus a summary of what was
// replaced. Only masked text may reach prompts or trace records.
type Redaction struct {
	Masked  string
	Summary map[string]int
}

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?\d[\d\s\-().]{7,}\d`)
	digitPattern = regexp.MustCompile(`\b\d{6,}\b`)
)

// Redact masks emails, phone numbers, and long digit runs. The summary maps
// each placeholder to the length of the text it replaced.
func Redact(text string) Redaction {
	summary := map[string]int{}
	counter := 0

	mask := func(input string, pattern *regexp.Regexp, tag string) string {
		return pattern.ReplaceAllStringFunc(input, func(match string) string {
			counter++
			placeholder := fmt.Sprintf("[%s_%d]", tag, counter)
			summary[placeholder] = len(match)
			return placeholder
		})
	}

	masked := mask(text, emailPattern, "EMAIL")
	masked = mask(masked, phonePattern, "PHONE")
	masked = mask(masked, digitPattern, "NUM")

	return Redaction{Masked: masked, Summary: summary}
}
