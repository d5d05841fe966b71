package importer_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rfaria/studydeck/internal/anki"
	apperrors "github.com/rfaria/studydeck/internal/errors"
	"github.com/rfaria/studydeck/internal/importer"
	"github.com/rfaria/studydeck/internal/models"
	"github.com/rfaria/studydeck/internal/testutil"
	"github.com/rfaria/studydeck/internal/worker"
)

var created = time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)

func basicModel() anki.Model {
	return anki.Model{
		Name: "Basic",
		Type: anki.ModelTypeStandard,
		Fields: []anki.Field{
			{Name: "Front", Ord: 0},
			{Name: "Back", Ord: 1},
		},
		Templates: []anki.Template{
			{Name: "Card 1", Ord: 0, QuestionFormat: "{{Front}}", AnswerFormat: "{{FrontSide}}<hr id=answer>{{Back}}"},
		},
		CSS: ".card { color: black; }",
	}
}

func clozeModel() anki.Model {
	return anki.Model{
		Name:   "Cloze",
		Type:   anki.ModelTypeCloze,
		Fields: []anki.Field{{Name: "Text", Ord: 0}},
		Templates: []anki.Template{
			{Name: "Cloze", Ord: 0, QuestionFormat: "{{cloze:Text}}", AnswerFormat: "{{cloze:Text}}"},
		},
	}
}

// basicPackage builds an archive with one deck and two regular cards.
func basicPackage(t *testing.T, media map[string][]byte) []byte {
	dbBytes := testutil.BuildCollectionDB(t,
		testutil.ModelsJSON(t, map[int64]anki.Model{1000: basicModel()}),
		testutil.DecksJSON(t, map[int64]anki.DeckInfo{1: {Name: "Geography", Description: "world capitals"}}),
		created.Unix(),
		[]anki.Note{
			{ID: 10, ModelID: 1000, Fields: []string{"Capital of France?", "Paris"}},
			{ID: 11, ModelID: 1000, Fields: []string{"Capital of Japan?", "Tokyo"}},
		},
		[]anki.CardRow{
			{ID: 100, NoteID: 10, DeckID: 1, Ord: 0, Type: anki.CardTypeReview, Due: 15, Interval: 10, Factor: 2500, Lapses: 1},
			{ID: 101, NoteID: 11, DeckID: 1, Ord: 0, Type: anki.CardTypeReview, Due: 20, Interval: 5, Factor: 2300},
		},
	)
	return testutil.BuildPackage(t, dbBytes, media)
}

func TestBuildDecks_Basic(t *testing.T) {
	data := basicPackage(t, nil)

	decks, err := importer.BuildDecks(context.Background(), data, importer.DefaultOptions())
	require.NoError(t, err)

	require.Len(t, decks, 1)
	deck := decks[0]
	assert.NotEmpty(t, deck.ID)
	assert.Equal(t, "Geography", deck.Name)
	assert.Equal(t, "world capitals", deck.Description)
	require.Len(t, deck.Cards, 2)

	first := deck.Cards[0]
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, "100", first.SourceID)
	assert.Equal(t, "Capital of France?", first.Front)
	assert.Equal(t, "Capital of France?Paris", first.Back)
	assert.Equal(t, ".card { color: black; }", first.Styling)
	assert.Equal(t, time.Date(2021, 1, 16, 0, 0, 0, 0, time.UTC), first.DueAt)
	require.NotNil(t, first.LastReviewedAt)
	assert.Equal(t, time.Date(2021, 1, 6, 0, 0, 0, 0, time.UTC), *first.LastReviewedAt)
	assert.Equal(t, 10, first.IntervalDays)
	assert.Equal(t, 2.5, first.EaseFactor)
	assert.Equal(t, 1, first.Lapses)
}

func TestBuildDecks_EmptyDecksDiscarded(t *testing.T) {
	// The second deck's only card points at a missing model, so the card is
	// skipped and the deck never materializes.
	dbBytes := testutil.BuildCollectionDB(t,
		testutil.ModelsJSON(t, map[int64]anki.Model{1000: basicModel()}),
		testutil.DecksJSON(t, map[int64]anki.DeckInfo{
			1: {Name: "Kept"},
			2: {Name: "Dropped"},
		}),
		created.Unix(),
		[]anki.Note{
			{ID: 10, ModelID: 1000, Fields: []string{"q", "a"}},
			{ID: 11, ModelID: 9999, Fields: []string{"orphan"}},
		},
		[]anki.CardRow{
			{ID: 100, NoteID: 10, DeckID: 1, Ord: 0, Type: anki.CardTypeNew},
			{ID: 101, NoteID: 11, DeckID: 2, Ord: 0, Type: anki.CardTypeNew},
		},
	)
	data := testutil.BuildPackage(t, dbBytes, nil)

	decks, err := importer.BuildDecks(context.Background(), data, importer.DefaultOptions())
	require.NoError(t, err)

	require.Len(t, decks, 1)
	assert.Equal(t, "Kept", decks[0].Name)
	for _, d := range decks {
		assert.NotEmpty(t, d.Cards, "no deck may be emitted without cards")
	}
}

func TestBuildDecks_ClozeFanOut(t *testing.T) {
	dbBytes := testutil.BuildCollectionDB(t,
		testutil.ModelsJSON(t, map[int64]anki.Model{2000: clozeModel()}),
		testutil.DecksJSON(t, map[int64]anki.DeckInfo{1: {Name: "Cloze deck"}}),
		created.Unix(),
		[]anki.Note{{ID: 10, ModelID: 2000, Fields: []string{"{{c1::Paris}} is the capital of {{c2::France}}"}}},
		[]anki.CardRow{
			{ID: 100, NoteID: 10, DeckID: 1, Ord: 0, Type: anki.CardTypeNew},
			{ID: 101, NoteID: 10, DeckID: 1, Ord: 1, Type: anki.CardTypeNew},
		},
	)
	data := testutil.BuildPackage(t, dbBytes, nil)

	decks, err := importer.BuildDecks(context.Background(), data, importer.DefaultOptions())
	require.NoError(t, err)

	require.Len(t, decks, 1)
	require.Len(t, decks[0].Cards, 2, "one card per cloze index")

	first, second := decks[0].Cards[0], decks[0].Cards[1]
	assert.Equal(t, `<span class="cloze">[...]</span> is the capital of France`, first.Front)
	assert.Equal(t, `<span class="cloze"><b>Paris</b></span> is the capital of France`, first.Back)
	assert.Equal(t, `Paris is the capital of <span class="cloze">[...]</span>`, second.Front)
	assert.Equal(t, `Paris is the capital of <span class="cloze"><b>France</b></span>`, second.Back)
}

func TestBuildDecks_BadCardSkippedRestKept(t *testing.T) {
	dbBytes := testutil.BuildCollectionDB(t,
		testutil.ModelsJSON(t, map[int64]anki.Model{1000: basicModel()}),
		testutil.DecksJSON(t, map[int64]anki.DeckInfo{1: {Name: "Deck"}}),
		created.Unix(),
		[]anki.Note{{ID: 10, ModelID: 1000, Fields: []string{"q", "a"}}},
		[]anki.CardRow{
			{ID: 100, NoteID: 10, DeckID: 1, Ord: 5, Type: anki.CardTypeNew}, // ordinal out of range
			{ID: 101, NoteID: 10, DeckID: 1, Ord: 0, Type: anki.CardTypeNew},
			{ID: 102, NoteID: 99, DeckID: 1, Ord: 0, Type: anki.CardTypeNew}, // missing note
		},
	)
	data := testutil.BuildPackage(t, dbBytes, nil)

	decks, err := importer.BuildDecks(context.Background(), data, importer.DefaultOptions())
	require.NoError(t, err, "per-card failures must not abort the import")

	require.Len(t, decks, 1)
	require.Len(t, decks[0].Cards, 1)
	assert.Equal(t, "101", decks[0].Cards[0].SourceID)
}

func TestBuildDecks_RenderFailureSkipsOnlyThatCard(t *testing.T) {
	// A template whose conditional nesting exceeds the resolution cap fails
	// its cards closed; cards on healthy models are unaffected.
	depth := 60
	runaway := basicModel()
	runaway.Templates[0].QuestionFormat = strings.Repeat("{{#Front}}", depth) + "{{Front}}" + strings.Repeat("{{/Front}}", depth)

	dbBytes := testutil.BuildCollectionDB(t,
		testutil.ModelsJSON(t, map[int64]anki.Model{1000: basicModel(), 2000: runaway}),
		testutil.DecksJSON(t, map[int64]anki.DeckInfo{1: {Name: "Deck"}}),
		created.Unix(),
		[]anki.Note{
			{ID: 10, ModelID: 1000, Fields: []string{"q", "a"}},
			{ID: 11, ModelID: 2000, Fields: []string{"q2", "a2"}},
		},
		[]anki.CardRow{
			{ID: 100, NoteID: 10, DeckID: 1, Ord: 0, Type: anki.CardTypeNew},
			{ID: 101, NoteID: 11, DeckID: 1, Ord: 0, Type: anki.CardTypeNew},
		},
	)
	data := testutil.BuildPackage(t, dbBytes, nil)

	decks, err := importer.BuildDecks(context.Background(), data, importer.DefaultOptions())
	require.NoError(t, err, "a runaway template drops its card, not the import")

	require.Len(t, decks, 1)
	require.Len(t, decks[0].Cards, 1)
	assert.Equal(t, "100", decks[0].Cards[0].SourceID)
}

func TestBuildDecks_MediaEmbedded(t *testing.T) {
	db := testutil.BuildCollectionDB(t,
		testutil.ModelsJSON(t, map[int64]anki.Model{1000: basicModel()}),
		testutil.DecksJSON(t, map[int64]anki.DeckInfo{1: {Name: "Media deck"}}),
		created.Unix(),
		[]anki.Note{{ID: 10, ModelID: 1000, Fields: []string{`<img src="map.png">`, `[sound:answer.mp3]`}}},
		[]anki.CardRow{{ID: 100, NoteID: 10, DeckID: 1, Ord: 0, Type: anki.CardTypeNew}},
	)
	data := testutil.BuildPackage(t, db, map[string][]byte{
		"map.png":    []byte("png-bytes"),
		"answer.mp3": []byte("mp3-bytes"),
	})

	decks, err := importer.BuildDecks(context.Background(), data, importer.DefaultOptions())
	require.NoError(t, err)

	require.Len(t, decks, 1)
	require.Len(t, decks[0].Cards, 1)
	card := decks[0].Cards[0]
	assert.Contains(t, card.Front, "data:image/png;base64,")
	assert.Contains(t, card.Back, "<audio controls")
	assert.Contains(t, card.Back, "data:audio/mpeg;base64,")
}

func TestBuildDecks_MissingDatabase(t *testing.T) {
	data := testutil.BuildArchive(t, map[string][]byte{"media": []byte("{}")})

	decks, err := importer.BuildDecks(context.Background(), data, importer.DefaultOptions())
	require.Error(t, err)
	assert.Nil(t, decks, "no partial decks on fatal failure")
	assert.ErrorIs(t, err, &apperrors.AppError{Code: apperrors.ErrCodeStructural})
	assert.Contains(t, err.Error(), "collection")
}

func TestBuildDecks_DeckOrderFollowsCardOrder(t *testing.T) {
	dbBytes := testutil.BuildCollectionDB(t,
		testutil.ModelsJSON(t, map[int64]anki.Model{1000: basicModel()}),
		testutil.DecksJSON(t, map[int64]anki.DeckInfo{
			1: {Name: "First seen"},
			2: {Name: "Second seen"},
		}),
		created.Unix(),
		[]anki.Note{
			{ID: 10, ModelID: 1000, Fields: []string{"q1", "a1"}},
			{ID: 11, ModelID: 1000, Fields: []string{"q2", "a2"}},
		},
		[]anki.CardRow{
			{ID: 100, NoteID: 10, DeckID: 2, Ord: 0, Type: anki.CardTypeNew},
			{ID: 101, NoteID: 11, DeckID: 1, Ord: 0, Type: anki.CardTypeNew},
		},
	)
	data := testutil.BuildPackage(t, dbBytes, nil)

	decks, err := importer.BuildDecks(context.Background(), data, importer.DefaultOptions())
	require.NoError(t, err)

	require.Len(t, decks, 2)
	assert.Equal(t, "Second seen", decks[0].Name)
	assert.Equal(t, "First seen", decks[1].Name)
}

// stripGenerated zeroes freshly generated identifiers and timestamps so two
// runs over the same archive can be compared structurally.
func stripGenerated(decks []models.Deck) []models.Deck {
	out := make([]models.Deck, len(decks))
	copy(out, decks)
	for i := range out {
		out[i].ID = ""
		out[i].CreatedAt = time.Time{}
		cards := make([]models.Card, len(out[i].Cards))
		copy(cards, out[i].Cards)
		for j := range cards {
			cards[j].ID = ""
		}
		out[i].Cards = cards
	}
	return out
}

func TestImport_WorkerAndFallbackProduceSameDecks(t *testing.T) {
	data := basicPackage(t, map[string][]byte{"map.png": []byte("png")})

	pool := worker.NewPool(1, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)
	defer pool.Stop()

	viaWorker, err := importer.New(pool, importer.DefaultOptions()).Import(ctx, data)
	require.NoError(t, err)

	viaFallback, err := importer.New(nil, importer.DefaultOptions()).Import(context.Background(), data)
	require.NoError(t, err)

	assert.Equal(t, stripGenerated(viaFallback), stripGenerated(viaWorker),
		"both execution paths must produce structurally identical results")
}

func TestImport_FallsBackWhenPoolNotRunning(t *testing.T) {
	data := basicPackage(t, nil)

	// The pool exists but was never started, so the worker path cannot be
	// used and the import must transparently run synchronously.
	pool := worker.NewPool(1, 4)

	decks, err := importer.New(pool, importer.DefaultOptions()).Import(context.Background(), data)
	require.NoError(t, err)
	require.Len(t, decks, 1)
	assert.Len(t, decks[0].Cards, 2)
}

func TestImport_InputBufferSurvivesImport(t *testing.T) {
	data := basicPackage(t, nil)
	original := append([]byte(nil), data...)

	_, err := importer.New(nil, importer.DefaultOptions()).Import(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, original, data, "the caller's buffer is never mutated")
}

func TestImport_FatalErrorSurfacedOnce(t *testing.T) {
	pool := worker.NewPool(1, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)
	defer pool.Stop()

	_, err := importer.New(pool, importer.DefaultOptions()).Import(ctx, []byte("not an archive"))
	require.Error(t, err)
	assert.ErrorIs(t, err, &apperrors.AppError{Code: apperrors.ErrCodeStructural},
		"the fallback's error is the one surfaced to the caller")
}
