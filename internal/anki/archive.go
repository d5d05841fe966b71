package anki

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	apperrors "github.com/rfaria/studydeck/internal/errors"
	"github.com/rfaria/studydeck/internal/logger"
)

// Database filenames inside the archive, newest format first.
var collectionNames = []string{"collection.anki21", "collection.anki2"}

const manifestName = "media"

// OpenPackage reads the raw archive bytes and extracts the embedded
// collection database and the media files listed in the manifest. A missing
// or malformed manifest is tolerated: the package comes back with an empty
// media set and the import proceeds with unresolved references. Only the
// absence of both accepted database filenames is fatal.
func OpenPackage(data []byte) (*Package, error) {
	log := logger.Default().WithPrefix("archive")

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, apperrors.NewStructuralError("file is not a valid deck package archive", err)
	}

	entries := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		entries[f.Name] = f
	}

	var dbBytes []byte
	for _, name := range collectionNames {
		f, ok := entries[name]
		if !ok {
			continue
		}
		dbBytes, err = readEntry(f)
		if err != nil {
			return nil, apperrors.NewStructuralError(fmt.Sprintf("failed to read %s from archive", name), err)
		}
		log.Debug("found collection database: %s (%d bytes)", name, len(dbBytes))
		break
	}
	if dbBytes == nil {
		return nil, apperrors.NewStructuralError(
			fmt.Sprintf("archive does not contain a collection database (expected %s or %s)", collectionNames[0], collectionNames[1]), nil)
	}

	media := readMedia(entries, log)
	return &Package{DB: dbBytes, Media: media}, nil
}

// readMedia loads the manifest and the assets it names. The manifest maps
// opaque stored names to the filenames referenced by templates and content.
func readMedia(entries map[string]*zip.File, log *logger.Logger) map[string]MediaFile {
	media := map[string]MediaFile{}

	manifest, ok := entries[manifestName]
	if !ok {
		log.Warn("archive has no media manifest, proceeding without media")
		return media
	}

	raw, err := readEntry(manifest)
	if err != nil {
		log.Warn("failed to read media manifest, proceeding without media: %v", err)
		return media
	}

	var names map[string]string // stored name -> referenced filename
	if err := json.Unmarshal(raw, &names); err != nil {
		log.Warn("media manifest is malformed, proceeding without media: %v", err)
		return media
	}

	for stored, filename := range names {
		f, ok := entries[stored]
		if !ok {
			log.Debug("manifest names %s (%s) but archive has no such entry", stored, filename)
			continue
		}
		data, err := readEntry(f)
		if err != nil {
			log.Warn("failed to read media entry %s (%s): %v", stored, filename, err)
			continue
		}
		media[filename] = MediaFile{
			Name: filename,
			Data: data,
			MIME: MIMEForFilename(filename),
		}
	}

	log.Debug("loaded %d media files", len(media))
	return media
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
