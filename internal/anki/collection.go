package anki

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	apperrors "github.com/rfaria/studydeck/internal/errors"
	"github.com/rfaria/studydeck/internal/logger"
)

// Note field values are packed into a single column separated by 0x1f.
const fieldSeparator = "\x1f"

// The query engine is shared process state: the first caller pays the
// initialization cost, every later caller reuses the same handle, and it is
// never torn down within the process lifetime. Initialization just proves
// the driver can open and query a database; per-import connections are
// opened against each archive's own collection file.
var (
	engineOnce sync.Once
	engineErr  error
)

func initEngine() error {
	engineOnce.Do(func() {
		db, err := sql.Open("sqlite3", ":memory:")
		if err != nil {
			engineErr = err
			return
		}
		defer db.Close()
		engineErr = db.Ping()
	})
	return engineErr
}

// ReadCollection initializes the query engine if needed, loads the database
// bytes, and extracts models, decks, notes and cards. The absence of the
// single collection row or unparsable JSON payloads mean the file is not a
// valid package and abort the import.
func ReadCollection(dbBytes []byte) (*Collection, error) {
	log := logger.Default().WithPrefix("collection")

	if err := initEngine(); err != nil {
		return nil, apperrors.NewEngineInitError(err)
	}

	// The driver wants a file, so the blob is staged in a temp file opened
	// read-only and removed when the call returns.
	tmp, err := os.CreateTemp("", "studydeck-collection-*.db")
	if err != nil {
		return nil, apperrors.NewEngineInitError(err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(dbBytes); err != nil {
		tmp.Close()
		return nil, apperrors.NewEngineInitError(err)
	}
	if err := tmp.Close(); err != nil {
		return nil, apperrors.NewEngineInitError(err)
	}

	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro&immutable=1", tmp.Name()))
	if err != nil {
		return nil, apperrors.NewEngineInitError(err)
	}
	defer db.Close()

	col, err := readCollectionRow(db)
	if err != nil {
		return nil, err
	}

	col.Notes, err = readNotes(db, col.Models)
	if err != nil {
		return nil, err
	}

	col.Cards, err = readCards(db)
	if err != nil {
		return nil, err
	}

	log.Debug("collection read: %d models, %d decks, %d notes, %d cards",
		len(col.Models), len(col.Decks), len(col.Notes), len(col.Cards))
	return col, nil
}

func readCollectionRow(db *sql.DB) (*Collection, error) {
	var modelsJSON, decksJSON string
	var created int64
	err := db.QueryRow(`SELECT models, decks, crt FROM col LIMIT 1`).Scan(&modelsJSON, &decksJSON, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewStructuralError("collection database has no collection row", nil)
	}
	if err != nil {
		return nil, apperrors.NewStructuralError("failed to read collection row", err)
	}

	models, err := parseKeyedJSON[Model](modelsJSON)
	if err != nil {
		return nil, apperrors.NewStructuralError("collection models are malformed", err)
	}
	decks, err := parseKeyedJSON[DeckInfo](decksJSON)
	if err != nil {
		return nil, apperrors.NewStructuralError("collection decks are malformed", err)
	}

	return &Collection{
		Models:  models,
		Decks:   decks,
		Created: time.Unix(created, 0).UTC(),
	}, nil
}

// parseKeyedJSON decodes a JSON object keyed by stringified numeric ids.
func parseKeyedJSON[T any](raw string) (map[int64]T, error) {
	var byKey map[string]T
	if err := json.Unmarshal([]byte(raw), &byKey); err != nil {
		return nil, err
	}
	out := make(map[int64]T, len(byKey))
	for key, v := range byKey {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("non-numeric id %q: %w", key, err)
		}
		out[id] = v
	}
	return out, nil
}

func readNotes(db *sql.DB, models map[int64]Model) ([]Note, error) {
	rows, err := db.Query(`SELECT id, mid, flds FROM notes`)
	if err != nil {
		return nil, apperrors.NewStructuralError("failed to read notes", err)
	}
	defer rows.Close()

	var notes []Note
	for rows.Next() {
		var n Note
		var flds string
		if err := rows.Scan(&n.ID, &n.ModelID, &flds); err != nil {
			return nil, apperrors.NewStructuralError("failed to scan note row", err)
		}
		fieldCount := 0
		if m, ok := models[n.ModelID]; ok {
			fieldCount = len(m.Fields)
		}
		n.Fields = splitFields(flds, fieldCount)
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStructuralError("failed to read notes", err)
	}
	return notes, nil
}

// splitFields splits the packed field column. The split never assumes the
// note matches the model's declared field count: missing trailing fields
// become empty strings, extras are kept.
func splitFields(packed string, declared int) []string {
	fields := strings.Split(packed, fieldSeparator)
	for len(fields) < declared {
		fields = append(fields, "")
	}
	return fields
}

func readCards(db *sql.DB) ([]CardRow, error) {
	rows, err := db.Query(`SELECT id, nid, did, ord, type, due, ivl, factor, lapses FROM cards`)
	if err != nil {
		return nil, apperrors.NewStructuralError("failed to read cards", err)
	}
	defer rows.Close()

	var cards []CardRow
	for rows.Next() {
		var c CardRow
		if err := rows.Scan(&c.ID, &c.NoteID, &c.DeckID, &c.Ord, &c.Type, &c.Due, &c.Interval, &c.Factor, &c.Lapses); err != nil {
			return nil, apperrors.NewStructuralError("failed to scan card row", err)
		}
		cards = append(cards, c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStructuralError("failed to read cards", err)
	}
	return cards, nil
}

// FieldMap pairs a note's values with its model's field names.
func FieldMap(model Model, note Note) map[string]string {
	out := make(map[string]string, len(model.Fields))
	for i, f := range model.Fields {
		if i < len(note.Fields) {
			out[f.Name] = note.Fields[i]
		} else {
			out[f.Name] = ""
		}
	}
	return out
}
