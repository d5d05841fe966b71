package testutil

import (
	"archive/zip"
	"bytes"
	"database/sql"
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/rfaria/studydeck/internal/anki"
	"github.com/rfaria/studydeck/internal/db"
)

// NewTestDB creates an in-memory application database with all migrations
// applied. It is closed automatically when the test finishes.
func NewTestDB(t *testing.T) *db.DB {
	t.Helper()

	database, err := db.Open("file::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	return database
}

// MustClose closes a resource and fails the test on error.
func MustClose(t *testing.T, closer interface{ Close() error }) {
	t.Helper()
	require.NoError(t, closer.Close())
}

// ModelsJSON marshals models the way the foreign collection stores them:
// a JSON object keyed by stringified model id.
func ModelsJSON(t *testing.T, models map[int64]anki.Model) string {
	t.Helper()

	byKey := make(map[string]anki.Model, len(models))
	for id, m := range models {
		byKey[strconv.FormatInt(id, 10)] = m
	}
	raw, err := json.Marshal(byKey)
	require.NoError(t, err)
	return string(raw)
}

// DecksJSON marshals deck definitions keyed by stringified deck id.
func DecksJSON(t *testing.T, decks map[int64]anki.DeckInfo) string {
	t.Helper()

	byKey := make(map[string]anki.DeckInfo, len(decks))
	for id, d := range decks {
		byKey[strconv.FormatInt(id, 10)] = d
	}
	raw, err := json.Marshal(byKey)
	require.NoError(t, err)
	return string(raw)
}

// BuildCollectionDB creates a real SQLite collection database with the
// given content and returns its raw bytes. Note fields are packed with the
// foreign 0x1f separator.
func BuildCollectionDB(t *testing.T, modelsJSON, decksJSON string, created int64, notes []anki.Note, cards []anki.CardRow) []byte {
	t.Helper()

	tmp, err := os.CreateTemp(t.TempDir(), "collection-*.db")
	require.NoError(t, err)
	require.NoError(t, tmp.Close())

	conn, err := sql.Open("sqlite3", tmp.Name())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Exec(`
CREATE TABLE col (id INTEGER PRIMARY KEY, crt INTEGER, models TEXT, decks TEXT);
CREATE TABLE notes (id INTEGER PRIMARY KEY, mid INTEGER, flds TEXT);
CREATE TABLE cards (id INTEGER PRIMARY KEY, nid INTEGER, did INTEGER, ord INTEGER, type INTEGER, due INTEGER, ivl INTEGER, factor INTEGER, lapses INTEGER);
`)
	require.NoError(t, err)

	_, err = conn.Exec(`INSERT INTO col (id, crt, models, decks) VALUES (1, ?, ?, ?)`, created, modelsJSON, decksJSON)
	require.NoError(t, err)

	for _, n := range notes {
		_, err = conn.Exec(`INSERT INTO notes (id, mid, flds) VALUES (?, ?, ?)`,
			n.ID, n.ModelID, strings.Join(n.Fields, "\x1f"))
		require.NoError(t, err)
	}
	for _, c := range cards {
		_, err = conn.Exec(`INSERT INTO cards (id, nid, did, ord, type, due, ivl, factor, lapses) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, c.NoteID, c.DeckID, c.Ord, c.Type, c.Due, c.Interval, c.Factor, c.Lapses)
		require.NoError(t, err)
	}
	require.NoError(t, conn.Close())

	data, err := os.ReadFile(tmp.Name())
	require.NoError(t, err)
	return data
}

// BuildArchive zips the given entries into an in-memory archive.
func BuildArchive(t *testing.T, entries map[string][]byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// BuildPackage assembles a complete deck package: the collection database
// under the newest accepted filename, a media manifest, and the media files
// themselves stored under opaque numeric names.
func BuildPackage(t *testing.T, dbBytes []byte, media map[string][]byte) []byte {
	t.Helper()

	entries := map[string][]byte{"collection.anki21": dbBytes}

	manifest := map[string]string{}
	i := 0
	for filename, data := range media {
		stored := strconv.Itoa(i)
		manifest[stored] = filename
		entries[stored] = data
		i++
	}
	manifestJSON, err := json.Marshal(manifest)
	require.NoError(t, err)
	entries["media"] = manifestJSON

	return BuildArchive(t, entries)
}
