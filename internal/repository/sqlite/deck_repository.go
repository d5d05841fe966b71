package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Masterminds/squirrel"

	"github.com/rfaria/studydeck/internal/logger"
	"github.com/rfaria/studydeck/internal/models"
	"github.com/rfaria/studydeck/internal/repository"
)

var sqlBuilder = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question)

type deckRepository struct {
	db *sql.DB
}

// NewDeckRepository creates a new DeckRepository implementation
func NewDeckRepository(db *sql.DB) repository.DeckRepository {
	return &deckRepository{db: db}
}

func (r *deckRepository) BulkAdd(ctx context.Context, decks []models.Deck) error {
	log := logger.FromContext(ctx).WithPrefix("deck_repo")
	log.Debug("bulk adding %d decks", len(decks))

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		log.Error("failed to begin transaction: %v", err)
		return err
	}
	defer tx.Rollback()

	deckStmt, err := tx.PrepareContext(ctx, `
INSERT INTO decks (id, name, description, created_at)
VALUES (?, ?, ?, ?)
`)
	if err != nil {
		return err
	}
	defer deckStmt.Close()

	cardStmt, err := tx.PrepareContext(ctx, `
INSERT INTO cards (id, deck_id, source_id, front, back, styling, due_at, interval_days, ease_factor, mastery, last_reviewed_at, lapses)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`)
	if err != nil {
		return err
	}
	defer cardStmt.Close()

	for _, d := range decks {
		if _, err := deckStmt.ExecContext(ctx, d.ID, d.Name, d.Description, d.CreatedAt); err != nil {
			log.Error("failed to insert deck %s: %v", d.ID, err)
			return err
		}
		for _, c := range d.Cards {
			if _, err := cardStmt.ExecContext(ctx, c.ID, d.ID, c.SourceID, c.Front, c.Back, c.Styling,
				c.DueAt, c.IntervalDays, c.EaseFactor, c.Mastery, c.LastReviewedAt, c.Lapses); err != nil {
				log.Error("failed to insert card %s: %v", c.ID, err)
				return err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		log.Error("failed to commit bulk add: %v", err)
		return err
	}
	log.Debug("bulk add committed")
	return nil
}

func (r *deckRepository) List(ctx context.Context, filter models.DeckFilter) ([]models.DeckSummary, error) {
	log := logger.FromContext(ctx).WithPrefix("deck_repo")
	log.Debug("listing decks: name=%q, limit=%d, offset=%d", filter.Name, filter.Limit, filter.Offset)

	query := sqlBuilder.Select(
		"d.id", "d.name", "d.description", "COUNT(c.id) AS card_count", "d.created_at",
	).From("decks d").
		LeftJoin("cards c ON c.deck_id = d.id").
		GroupBy("d.id").
		OrderBy("d.created_at DESC")

	if filter.Name != "" {
		query = query.Where(squirrel.Like{"d.name": "%" + filter.Name + "%"})
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query = query.Limit(uint64(limit)).Offset(uint64(offset))

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Error("failed to build query: %v", err)
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		log.Error("failed to list decks: %v", err)
		return nil, err
	}
	defer rows.Close()

	var decks []models.DeckSummary
	for rows.Next() {
		var d models.DeckSummary
		if err := rows.Scan(&d.ID, &d.Name, &d.Description, &d.CardCount, &d.CreatedAt); err != nil {
			log.Error("failed to scan deck row: %v", err)
			return nil, err
		}
		decks = append(decks, d)
	}
	log.Debug("found %d decks", len(decks))
	return decks, rows.Err()
}

func (r *deckRepository) Get(ctx context.Context, id string) (*models.Deck, error) {
	log := logger.FromContext(ctx).WithPrefix("deck_repo")
	log.Debug("getting deck: id=%s", id)

	var d models.Deck
	err := r.db.QueryRowContext(ctx, `
SELECT id, name, description, created_at
FROM decks
WHERE id = ?
`, id).Scan(&d.ID, &d.Name, &d.Description, &d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		log.Debug("deck not found: id=%s", id)
		return nil, nil
	}
	if err != nil {
		log.Error("failed to get deck: %v", err)
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT id, source_id, front, back, styling, due_at, interval_days, ease_factor, mastery, last_reviewed_at, lapses
FROM cards
WHERE deck_id = ?
ORDER BY rowid
`, id)
	if err != nil {
		log.Error("failed to query deck cards: %v", err)
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var c models.Card
		var lastReviewed sql.NullTime
		if err := rows.Scan(&c.ID, &c.SourceID, &c.Front, &c.Back, &c.Styling,
			&c.DueAt, &c.IntervalDays, &c.EaseFactor, &c.Mastery, &lastReviewed, &c.Lapses); err != nil {
			log.Error("failed to scan card row: %v", err)
			return nil, err
		}
		if lastReviewed.Valid {
			t := lastReviewed.Time
			c.LastReviewedAt = &t
		}
		d.Cards = append(d.Cards, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	log.Debug("deck found: name=%s, cards=%d", d.Name, len(d.Cards))
	return &d, nil
}

func (r *deckRepository) Delete(ctx context.Context, id string) error {
	log := logger.FromContext(ctx).WithPrefix("deck_repo")
	log.Debug("deleting deck: id=%s", id)

	res, err := r.db.ExecContext(ctx, `DELETE FROM decks WHERE id = ?`, id)
	if err != nil {
		log.Error("failed to delete deck: %v", err)
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
