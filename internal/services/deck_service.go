package services

import (
	"context"
	"database/sql"
	"errors"

	apperrors "github.com/rfaria/studydeck/internal/errors"
	"github.com/rfaria/studydeck/internal/models"
	"github.com/rfaria/studydeck/internal/repository"
)

// DeckService handles deck listing and lookup business logic
type DeckService interface {
	ListDecks(ctx context.Context, filter models.DeckFilter) ([]models.DeckSummary, error)
	GetDeck(ctx context.Context, id string) (*models.Deck, error)
	DeleteDeck(ctx context.Context, id string) error
}

type deckService struct {
	decks repository.DeckRepository
}

// NewDeckService creates a new DeckService
func NewDeckService(decks repository.DeckRepository) DeckService {
	return &deckService{decks: decks}
}

func (s *deckService) ListDecks(ctx context.Context, filter models.DeckFilter) ([]models.DeckSummary, error) {
	return s.decks.List(ctx, filter)
}

func (s *deckService) GetDeck(ctx context.Context, id string) (*models.Deck, error) {
	deck, err := s.decks.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if deck == nil {
		return nil, apperrors.NewNotFoundError("deck", id)
	}
	return deck, nil
}

func (s *deckService) DeleteDeck(ctx context.Context, id string) error {
	err := s.decks.Delete(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.NewNotFoundError("deck", id)
	}
	return err
}
