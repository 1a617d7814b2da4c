package retrieval

import (
	"math"
	"sort"
	"time"
)

// ContextRecord is one memory record being re-ranked for a turn.
type ContextRecord struct {
	ID    string
	Kind  string
	Text  string
	TS    time.Time
	Score float64
}

// ScoredContextRecord carries the composite re-rank score plus its factor
// breakdown for telemetry.
type ScoredContextRecord struct {
	ContextRecord
	Composite float64
	Scoring   map[string]float64
}

// ScoreOptions tune the optional factors. Zero value disables them.
type ScoreOptions struct {
	UserTimezone       string
	CoachingSuggestion string
	Now                time.Time
}

var priorityWeightByKind = map[string]float64{
	"goal":     1,
	"schedule": 0.75,
	"entry":    0.55,
	"event":    0.45,
	"pref":     0.35,
}

var relationshipWeightByKind = map[string]float64{
	"goal":     0.85,
	"schedule": 0.7,
	"entry":    0.5,
	"event":    0.4,
	"pref":     0.35,
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func logistic(v float64) float64 {
	return 1 / (1 + math.Exp(-v))
}

func kindWeight(weights map[string]float64, kind string) float64 {
	if w, ok := weights[kind]; ok {
		return w
	}
	return 0.4
}

// ScoreContextRecords re-ranks records by a composite of recency, kind
// priority, semantic similarity, affect, relationship strength, time of day,
// and coaching fit. Returned highest-composite first.
func ScoreContextRecords(records []ContextRecord, opts *ScoreOptions) []ScoredContextRecord {
	if len(records) == 0 {
		return nil
	}

	var meanTS float64
	for _, record := range records {
		meanTS += float64(record.TS.UnixMilli())
	}
	meanTS /= float64(len(records))

	var variance float64
	for _, record := range records {
		d := float64(record.TS.UnixMilli()) - meanTS
		variance += d * d
	}
	variance /= float64(len(records))
	stdTS := math.Sqrt(variance)
	if stdTS == 0 {
		stdTS = 1
	}

	now := time.Now().UTC()
	if opts != nil && !opts.Now.IsZero() {
		now = opts.Now
	}

	scored := make([]ScoredContextRecord, 0, len(records))
	for _, record := range records {
		recencyZ := (float64(record.TS.UnixMilli()) - meanTS) / stdTS
		recency := logistic(recencyZ)
		priority := kindWeight(priorityWeightByKind, record.Kind)
		semantic := clamp01((record.Score + 1) / 2)
		affect := 0.5
		relationship := kindWeight(relationshipWeightByKind, record.Kind)

		timeOfDay := 0.5
		if opts != nil && opts.UserTimezone != "" {
			recordHour := record.TS.UTC().Hour()
			nowHour := now.UTC().Hour()
			hourDiff := math.Abs(float64(recordHour - nowHour))
			hourDiff = math.Min(hourDiff, 24-hourDiff)
			timeOfDay = math.Max(0, 1-hourDiff/12)
		}

		coaching := 0.5
		if opts != nil && opts.CoachingSuggestion != "" {
			switch opts.CoachingSuggestion {
			case "goal_check":
				coaching = 0.35
				if record.Kind == "goal" {
					coaching = 1
				}
			case "reflection":
				coaching = 0.35
				if record.Kind == "entry" {
					coaching = 1
				}
			default:
				coaching = 0.6
			}
		}

		composite := 0.3*recency +
			0.25*priority +
			0.15*semantic +
			0.1*affect +
			0.1*relationship +
			0.05*clamp01(timeOfDay) +
			0.05*clamp01(coaching)

		scored = append(scored, ScoredContextRecord{
			ContextRecord: record,
			Composite:     composite,
			Scoring: map[string]float64{
				"recency":      round3(recency),
				"priority":     round3(priority),
				"semantic":     round3(semantic),
				"affect":       round3(affect),
				"relationship": round3(relationship),
				"timeOfDay":    round3(clamp01(timeOfDay)),
				"coaching":     round3(clamp01(coaching)),
			},
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Composite > scored[j].Composite
	})
	return scored
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
