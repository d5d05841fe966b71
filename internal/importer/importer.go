// Package importer turns a foreign deck-package archive into the
// application's deck and card records. The whole transformation is one pure
// function of the archive bytes; the Importer wraps it with a worker-pool
// execution path and a same-logic synchronous fallback.
package importer

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/rfaria/studydeck/internal/anki"
	apperrors "github.com/rfaria/studydeck/internal/errors"
	"github.com/rfaria/studydeck/internal/logger"
	"github.com/rfaria/studydeck/internal/models"
	"github.com/rfaria/studydeck/internal/worker"
)

// Options configures an import run.
type Options struct {
	Schedule anki.ScheduleOptions
}

// DefaultOptions mirrors the application defaults.
func DefaultOptions() Options {
	return Options{Schedule: anki.DefaultScheduleOptions()}
}

// Importer runs imports, preferring the worker pool and falling back to the
// calling goroutine when the pool path is unavailable or fails.
type Importer struct {
	pool *worker.Pool
	opts Options
}

// New creates an Importer. pool may be nil, in which case every import runs
// synchronously.
func New(pool *worker.Pool, opts Options) *Importer {
	return &Importer{pool: pool, opts: opts}
}

// Import parses the archive and returns the resulting decks. The archive
// bytes are handed to the worker job as-is; a defensive copy is retained
// first so the fallback path still has intact input if the worker path
// fails. The copy is a deliberate memory cost paid for that resilience.
func (im *Importer) Import(ctx context.Context, data []byte) ([]models.Deck, error) {
	log := logger.FromContext(ctx).WithPrefix("importer")

	retained := append([]byte(nil), data...)

	if im.pool != nil {
		decks, err := im.runOnPool(ctx, data)
		if err == nil {
			return decks, nil
		}
		log.Warn("worker import failed, re-running synchronously: %v", err)
	}

	// The fallback runs the same transformation on the retained copy; its
	// error, if any, is the one surfaced to the caller.
	return BuildDecks(ctx, retained, im.opts)
}

// response is the single message sent back over the worker boundary.
type response struct {
	decks []models.Deck
	err   error
}

type archiveJob struct {
	data []byte
	opts Options
	resp chan response
}

func (j *archiveJob) Name() string { return "import_package" }

func (j *archiveJob) Run(ctx context.Context) error {
	decks, err := BuildDecks(ctx, j.data, j.opts)
	j.resp <- response{decks: decks, err: err}
	close(j.resp)
	return err
}

func (im *Importer) runOnPool(ctx context.Context, data []byte) ([]models.Deck, error) {
	job := &archiveJob{data: data, opts: im.opts, resp: make(chan response, 1)}
	if err := im.pool.Submit(job); err != nil {
		return nil, apperrors.NewTransportError("could not hand import to worker pool", err)
	}

	select {
	case res, ok := <-job.resp:
		if !ok {
			return nil, apperrors.NewTransportError("worker finished without a response", nil)
		}
		return res.decks, res.err
	case <-ctx.Done():
		return nil, apperrors.NewTransportError("import interrupted while waiting for worker", ctx.Err())
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// BuildDecks is the whole import pipeline: open the archive, read the
// collection, render and translate every card, and assemble non-empty
// decks. It is deterministic for a given archive and clock, which is what
// lets the worker path and the fallback path share one implementation.
func BuildDecks(ctx context.Context, data []byte, opts Options) ([]models.Deck, error) {
	log := logger.FromContext(ctx).WithPrefix("importer")
	start := time.Now()

	pkg, err := anki.OpenPackage(data)
	if err != nil {
		return nil, err
	}
	col, err := anki.ReadCollection(pkg.DB)
	if err != nil {
		return nil, err
	}

	notes := make(map[int64]anki.Note, len(col.Notes))
	for _, n := range col.Notes {
		notes[n.ID] = n
	}

	// Deck membership follows card iteration order; deck emission follows
	// first appearance.
	cardsByDeck := map[int64][]models.Card{}
	var deckOrder []int64
	skipped := 0

	for _, row := range col.Cards {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		card, err := buildCard(row, notes, col, pkg.Media, opts)
		if err != nil {
			log.Debug("skipping card: %v", err)
			skipped++
			continue
		}
		if _, seen := cardsByDeck[row.DeckID]; !seen {
			deckOrder = append(deckOrder, row.DeckID)
		}
		cardsByDeck[row.DeckID] = append(cardsByDeck[row.DeckID], card)
	}

	var decks []models.Deck
	for _, deckID := range deckOrder {
		cards := cardsByDeck[deckID]
		if len(cards) == 0 {
			continue
		}
		info := col.Decks[deckID]
		name := info.Name
		if name == "" {
			name = fmt.Sprintf("Imported deck %d", deckID)
		}
		decks = append(decks, models.Deck{
			ID:          NewID(),
			Name:        name,
			Description: info.Description,
			Cards:       cards,
			CreatedAt:   time.Now().UTC(),
		})
	}

	log.Info("import built %d decks (%d cards, %d skipped) in %v",
		len(decks), len(col.Cards)-skipped, skipped, time.Since(start))
	return decks, nil
}

// buildCard renders and translates one card row. Any lookup or rendering
// failure only drops this card.
func buildCard(row anki.CardRow, notes map[int64]anki.Note, col *anki.Collection, media map[string]anki.MediaFile, opts Options) (models.Card, error) {
	note, ok := notes[row.NoteID]
	if !ok {
		return models.Card{}, apperrors.NewCardSkipError(row.ID, fmt.Sprintf("note %d not found", row.NoteID))
	}
	model, ok := col.Models[note.ModelID]
	if !ok {
		return models.Card{}, apperrors.NewCardSkipError(row.ID, fmt.Sprintf("model %d not found", note.ModelID))
	}

	// Cloze models carry the cloze index in the card ordinal and always
	// render through their single template; standard models index templates
	// by ordinal.
	var tmpl anki.Template
	switch {
	case model.Type == anki.ModelTypeCloze && len(model.Templates) > 0:
		tmpl = model.Templates[0]
	case row.Ord >= 0 && row.Ord < len(model.Templates):
		tmpl = model.Templates[row.Ord]
	default:
		return models.Card{}, apperrors.NewCardSkipError(row.ID, fmt.Sprintf("template ordinal %d out of range for model %q", row.Ord, model.Name))
	}

	fields := anki.FieldMap(model, note)

	front, err := anki.RenderTemplate(tmpl.QuestionFormat, fields, row.Ord, false, "")
	if err != nil {
		return models.Card{}, apperrors.NewCardSkipError(row.ID, fmt.Sprintf("front render failed: %v", err))
	}
	back, err := anki.RenderTemplate(tmpl.AnswerFormat, fields, row.Ord, true, front)
	if err != nil {
		return models.Card{}, apperrors.NewCardSkipError(row.ID, fmt.Sprintf("back render failed: %v", err))
	}

	front = anki.ResolveMedia(front, media)
	back = anki.ResolveMedia(back, media)

	state := anki.TranslateSchedule(row, col.Created, opts.Schedule)

	card := models.Card{
		ID:             NewID(),
		SourceID:       strconv.FormatInt(row.ID, 10),
		Front:          front,
		Back:           back,
		Styling:        model.CSS,
		DueAt:          state.DueAt,
		IntervalDays:   state.IntervalDays,
		EaseFactor:     state.EaseFactor,
		Mastery:        state.Mastery,
		LastReviewedAt: state.LastReviewedAt,
		Lapses:         state.Lapses,
	}
	if err := validate.Struct(card); err != nil {
		return models.Card{}, apperrors.NewCardSkipError(row.ID, fmt.Sprintf("translated card failed validation: %v", err))
	}
	return card, nil
}

// NewID generates a fresh random identifier.
func NewID() string {
	b := make([]byte, 12)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
