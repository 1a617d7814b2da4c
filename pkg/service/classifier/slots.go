package classifier

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/inkwell-lab/inkwell/pkg/domain/types"
)

var weekdayOrder = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

var monthOrder = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

var (
	weekdayPattern  = regexp.MustCompile(`(?i)\b(next|this)?\s*(sunday|monday|tuesday|wednesday|thursday|friday|saturday)\b`)
	isoDatePattern  = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	slashPattern    = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})(?:/(\d{2,4}))?\b`)
	monthPattern    = regexp.MustCompile(`(?i)\b(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\s+(\d{1,2})(?:,?\s*(\d{4}))?\b`)
	timePattern     = regexp.MustCompile(`(?i)\b(?:at|@)?\s*(\d{1,2})(?::(\d{2}))?\s*(am|pm)?\b`)
	durationPattern = regexp.MustCompile(`(?i)for\s+(\d{1,2})\s*(minutes?|hours?)`)
	goalTitle       = regexp.MustCompile(`(?i)(?:goal|aim|plan)\s+(?:to|is to)?\s*(.+)$`)
	journalTitle    = regexp.MustCompile(`(?i)(?:about|on)\s+([^.!?]+)`)
	tonightPattern  = regexp.MustCompile(`(?i)\btonight\b`)
	todayPattern    = regexp.MustCompile(`(?i)\btoday\b`)
	tomorrowPattern = regexp.MustCompile(`(?i)\btomorrow\b`)
	dayAfterPattern = regexp.MustCompile(`(?i)\bday after tomorrow\b`)
)

func findWeekday(text string, now time.Time) (time.Time, bool) {
	m := weekdayPattern.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}
	hint := strings.ToLower(m[1])
	target, ok := weekdayOrder[strings.ToLower(m[2])]
	if !ok {
		return time.Time{}, false
	}

	daysAhead := (int(target) - int(now.Weekday()) + 7) % 7
	if daysAhead == 0 && hint != "this" {
		daysAhead = 7
	}
	return now.AddDate(0, 0, daysAhead), true
}

func findRelativeDay(text string, now time.Time) (time.Time, bool) {
	switch {
	case dayAfterPattern.MatchString(text):
		return now.AddDate(0, 0, 2), true
	case tomorrowPattern.MatchString(text):
		return now.AddDate(0, 0, 1), true
	case todayPattern.MatchString(text):
		return now, true
	}
	return time.Time{}, false
}

func findExplicitDate(text string, now time.Time) (time.Time, bool) {
	if m := isoDatePattern.FindStringSubmatch(text); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), true
	}
	if m := slashPattern.FindStringSubmatch(text); m != nil {
		month, _ := strconv.Atoi(m[1])
		day, _ := strconv.Atoi(m[2])
		year := now.Year()
		if m[3] != "" {
			y, _ := strconv.Atoi(m[3])
			if len(m[3]) == 2 {
				y += 2000
			}
			year = y
		}
		if month >= 1 && month <= 12 {
			return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), true
		}
	}
	if m := monthPattern.FindStringSubmatch(text); m != nil {
		month, ok := monthOrder[strings.ToLower(m[1])]
		if ok {
			day, _ := strconv.Atoi(m[2])
			year := now.Year()
			if m[3] != "" {
				year, _ = strconv.Atoi(m[3])
			}
			return time.Date(year, month, day, 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// applyTime lays a clock time found in the text over the seed date. The
// second return reports whether an explicit time was applied.
func applyTime(text string, seed time.Time) (time.Time, bool) {
	m := timePattern.FindStringSubmatch(text)
	if m == nil {
		return seed, false
	}

	hours, _ := strconv.Atoi(m[1])
	if hours > 23 {
		hours = 23
	}
	minutes := 0
	if m[2] != "" {
		minutes, _ = strconv.Atoi(m[2])
		if minutes > 59 {
			minutes = 59
		}
	}
	switch strings.ToLower(m[3]) {
	case "pm":
		if hours < 12 {
			hours += 12
		}
	case "am":
		if hours == 12 {
			hours = 0
		}
	}

	return time.Date(seed.Year(), seed.Month(), seed.Day(), hours, minutes, 0, 0, seed.Location()), true
}

func ensureFuture(date, now time.Time) time.Time {
	if date.Before(now) {
		return date.AddDate(0, 0, 7)
	}
	return date
}

// deriveSlots extracts structured slots (start/end/due/ts/title/duration)
// from the utterance for the resolved label.
func deriveSlots(text string, label types.IntentLabel, now time.Time) map[string]string {
	slots := map[string]string{}

	candidate, found := findExplicitDate(text, now)
	if !found {
		candidate, found = findRelativeDay(text, now)
	}
	if !found {
		candidate, found = findWeekday(text, now)
	}
	if !found && tonightPattern.MatchString(text) {
		candidate = time.Date(now.Year(), now.Month(), now.Day(), 20, 0, 0, 0, now.Location())
		found = true
	}

	seed := now
	if found {
		seed = candidate
	}
	withTime, timeApplied := applyTime(text, seed)
	if timeApplied {
		candidate = withTime
		found = true
	}

	if found {
		switch label {
		case types.IntentScheduleCreate:
			adjusted := ensureFuture(candidate, now)
			slots["start"] = adjusted.UTC().Format(time.RFC3339)
			if !timeApplied {
				slots["end"] = adjusted.Add(time.Hour).UTC().Format(time.RFC3339)
			}
		case types.IntentGoalCreate:
			slots["due"] = candidate.UTC().Format(time.DateOnly)
		case types.IntentEntryCreate:
			slots["ts"] = candidate.UTC().Format(time.RFC3339)
		}
	}

	if m := durationPattern.FindStringSubmatch(text); m != nil {
		qty, _ := strconv.Atoi(m[1])
		if strings.HasPrefix(strings.ToLower(m[2]), "hour") {
			qty *= 60
		}
		slots["duration_minutes"] = strconv.Itoa(qty)
	}

	if label == types.IntentGoalCreate {
		if m := goalTitle.FindStringSubmatch(text); m != nil && m[1] != "" {
			slots["title"] = titleCase(strings.TrimSpace(m[1]))
		}
	}
	if label == types.IntentEntryCreate {
		if m := journalTitle.FindStringSubmatch(text); m != nil && m[1] != "" {
			slots["title"] = titleCase(strings.TrimSpace(m[1]))
		}
	}

	// A start without an end but with a duration resolves to a bounded block.
	if start, ok := slots["start"]; ok {
		if _, hasEnd := slots["end"]; !hasEnd {
			if mins, ok := slots["duration_minutes"]; ok {
				if startAt, err := time.Parse(time.RFC3339, start); err == nil {
					n, _ := strconv.Atoi(mins)
					slots["end"] = startAt.Add(time.Duration(n) * time.Minute).Format(time.RFC3339)
				}
			} else if startAt, err := time.Parse(time.RFC3339, start); err == nil {
				slots["end"] = startAt.Add(time.Hour).Format(time.RFC3339)
			}
		}
	}

	return slots
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}
