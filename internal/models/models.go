package models

import "time"

// Deck is an imported study deck. IDs are generated at import time; the
// foreign archive's own deck ids are not carried over.
type Deck struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Cards       []Card    `json:"cards"`
	CreatedAt   time.Time `json:"created_at"`
}

// Card is one renderable question/answer pair with its translated review
// state. SourceID keeps the foreign card id as an opaque string for
// traceability only.
type Card struct {
	ID             string     `json:"id"`
	SourceID       string     `json:"source_id,omitempty"`
	Front          string     `json:"front"`
	Back           string     `json:"back"`
	Styling        string     `json:"styling,omitempty"`
	DueAt          time.Time  `json:"due_at"`
	IntervalDays   int        `json:"interval_days" validate:"gte=0"`
	EaseFactor     float64    `json:"ease_factor" validate:"gt=0"`
	Mastery        float64    `json:"mastery" validate:"gte=0,lte=1"`
	LastReviewedAt *time.Time `json:"last_reviewed_at,omitempty"`
	Lapses         int        `json:"lapses" validate:"gte=0"`
}

// DeckFilter narrows deck listings.
type DeckFilter struct {
	Name   string
	Limit  int
	Offset int
}

// DeckSummary is a deck row without its cards, plus a card count.
type DeckSummary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CardCount   int       `json:"card_count"`
	CreatedAt   time.Time `json:"created_at"`
}
