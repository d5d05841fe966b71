package repository

import (
	"context"

	"github.com/rfaria/studydeck/internal/models"
)

// DeckRepository persists imported decks and their cards.
type DeckRepository interface {
	// BulkAdd inserts the decks with all their cards in one transaction.
	BulkAdd(ctx context.Context, decks []models.Deck) error
	// List returns deck summaries matching the filter.
	List(ctx context.Context, filter models.DeckFilter) ([]models.DeckSummary, error)
	// Get returns one deck with its cards, or nil when it does not exist.
	Get(ctx context.Context, id string) (*models.Deck, error)
	// Delete removes a deck and, through the schema, its cards.
	Delete(ctx context.Context, id string) error
}
