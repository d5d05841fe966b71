package anki

import (
	"math"
	"time"
)

// The foreign engine stores ease as a fixed-point integer (2500 = 2.5) and,
// for review cards, due as a day offset from the collection creation time.
const easeScale = 1000

// The mastery projection saturates as intervals approach this horizon.
const masteryHorizonDays = 90

// ScheduleOptions carries the configured ease bounds.
type ScheduleOptions struct {
	MinEaseFactor     float64
	DefaultEaseFactor float64
}

// DefaultScheduleOptions mirrors the application defaults.
func DefaultScheduleOptions() ScheduleOptions {
	return ScheduleOptions{MinEaseFactor: 1.3, DefaultEaseFactor: 2.5}
}

// ReviewState is the application-side review representation seeded from a
// foreign card.
type ReviewState struct {
	DueAt          time.Time
	IntervalDays   int
	EaseFactor     float64
	Mastery        float64
	LastReviewedAt *time.Time
	Lapses         int
}

// TranslateSchedule converts one foreign card's scheduling fields into the
// application's review state. Only review cards with a positive interval
// carry a real schedule; everything else becomes due at the start of today
// with no review history. A non-positive ease factor is treated as unset and
// takes the configured default rather than the minimum floor; the floor only
// clamps real but implausibly low values.
func TranslateSchedule(card CardRow, created time.Time, opts ScheduleOptions) ReviewState {
	state := ReviewState{
		IntervalDays: max(card.Interval, 0),
		Lapses:       max(card.Lapses, 0),
	}

	if card.Type == CardTypeReview && card.Interval > 0 {
		dueAt := created.AddDate(0, 0, int(card.Due))
		last := dueAt.AddDate(0, 0, -card.Interval)
		state.DueAt = dueAt
		state.LastReviewedAt = &last
	} else {
		now := time.Now()
		state.DueAt = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	}

	if card.Factor > 0 {
		state.EaseFactor = math.Max(float64(card.Factor)/easeScale, opts.MinEaseFactor)
	} else {
		state.EaseFactor = opts.DefaultEaseFactor
	}

	state.Mastery = masteryEstimate(state.IntervalDays)
	return state
}

// masteryEstimate is a saturating curve over interval length: 0 for
// unscheduled cards, approaching 1 near the horizon. It seeds the initial
// mastery display only; the live scheduler owns it afterwards.
func masteryEstimate(intervalDays int) float64 {
	if intervalDays <= 0 {
		return 0
	}
	m := math.Log1p(float64(intervalDays)) / math.Log1p(masteryHorizonDays)
	return math.Min(math.Max(m, 0), 1)
}
