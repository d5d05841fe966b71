// Package anki reads third-party deck packages: a zip archive holding a
// SQLite collection database plus binary media assets. Everything in this
// package is read-only with respect to the archive; it produces plain
// values for the importer to assemble.
package anki

import "time"

// Card states used by the foreign scheduler.
const (
	CardTypeNew      = 0
	CardTypeLearning = 1
	CardTypeReview   = 2
)

// Model type discriminator.
const (
	ModelTypeStandard = 0
	ModelTypeCloze    = 1
)

// Field is one named field slot of a model, in definition order.
type Field struct {
	Name string `json:"name"`
	Ord  int    `json:"ord"`
}

// Template is a front/back format-string pair belonging to a model.
type Template struct {
	Name           string `json:"name"`
	Ord            int    `json:"ord"`
	QuestionFormat string `json:"qfmt"`
	AnswerFormat   string `json:"afmt"`
}

// Model is a foreign card-type definition.
type Model struct {
	Name      string     `json:"name"`
	Type      int        `json:"type"`
	Fields    []Field    `json:"flds"`
	Templates []Template `json:"tmpls"`
	CSS       string     `json:"css"`
}

// DeckInfo is a foreign deck definition.
type DeckInfo struct {
	Name        string `json:"name"`
	Description string `json:"desc"`
}

// Note is one content record. Fields are already split out of the packed
// column, in model field order.
type Note struct {
	ID      int64
	ModelID int64
	Fields  []string
}

// CardRow is one card row with its raw scheduling state.
type CardRow struct {
	ID       int64
	NoteID   int64
	DeckID   int64
	Ord      int
	Type     int
	Due      int64
	Interval int
	Factor   int
	Lapses   int
}

// Collection is everything read out of the embedded database.
type Collection struct {
	Models  map[int64]Model
	Decks   map[int64]DeckInfo
	Created time.Time
	Notes   []Note
	Cards   []CardRow
}

// MediaFile is one binary asset from the archive, keyed by the filename
// templates and note content refer to.
type MediaFile struct {
	Name string
	Data []byte
	MIME string
}

// Package is one opened archive: the embedded database bytes and the
// media files resolved through the manifest.
type Package struct {
	DB    []byte
	Media map[string]MediaFile
}
