package services

import (
	"context"

	"github.com/rfaria/studydeck/internal/importer"
	"github.com/rfaria/studydeck/internal/logger"
	"github.com/rfaria/studydeck/internal/models"
	"github.com/rfaria/studydeck/internal/repository"
)

// ImportSummary reports what one import produced.
type ImportSummary struct {
	Decks []models.DeckSummary `json:"decks"`
	Cards int                  `json:"cards"`
}

// ImportService handles deck-package import business logic
type ImportService interface {
	ImportArchive(ctx context.Context, data []byte) (*ImportSummary, error)
}

type importService struct {
	importer *importer.Importer
	decks    repository.DeckRepository
}

// NewImportService creates a new ImportService
func NewImportService(imp *importer.Importer, decks repository.DeckRepository) ImportService {
	return &importService{importer: imp, decks: decks}
}

// ImportArchive runs the import pipeline on the archive bytes and persists
// the resulting decks.
func (s *importService) ImportArchive(ctx context.Context, data []byte) (*ImportSummary, error) {
	log := logger.FromContext(ctx).WithPrefix("import_service")
	log.Info("importing archive (%d bytes)", len(data))

	decks, err := s.importer.Import(ctx, data)
	if err != nil {
		log.Error("import failed: %v", err)
		return nil, err
	}

	if err := s.decks.BulkAdd(ctx, decks); err != nil {
		log.Error("failed to persist imported decks: %v", err)
		return nil, err
	}

	summary := &ImportSummary{Decks: make([]models.DeckSummary, 0, len(decks))}
	for _, d := range decks {
		summary.Cards += len(d.Cards)
		summary.Decks = append(summary.Decks, models.DeckSummary{
			ID:          d.ID,
			Name:        d.Name,
			Description: d.Description,
			CardCount:   len(d.Cards),
			CreatedAt:   d.CreatedAt,
		})
	}
	log.Info("imported %d decks with %d cards", len(summary.Decks), summary.Cards)
	return summary, nil
}
