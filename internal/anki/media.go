package anki

import (
	"encoding/base64"
	"path/filepath"
	"regexp"
	"strings"
)

// Media references in rendered HTML are rewritten into self-contained data
// URIs so the resulting cards do not depend on files on disk. Image
// references with no matching media file are left untouched (a broken
// reference, not an error); sound references with no match are dropped.

var (
	imgSrcRe = regexp.MustCompile(`(<img\b[^>]*\bsrc=)(?:"([^"]*)"|'([^']*)'|([^\s"'>]+))`)
	soundRe  = regexp.MustCompile(`\[sound:([^\]]+)\]`)
)

var mimeByExtension = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
	".mp3":  "audio/mpeg",
	".ogg":  "audio/ogg",
	".wav":  "audio/wav",
	".m4a":  "audio/mp4",
	".opus": "audio/opus",
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".ogv":  "video/ogg",
}

// MIMEForFilename infers a MIME type from the file extension, defaulting to
// a generic binary type.
func MIMEForFilename(name string) string {
	if mime, ok := mimeByExtension[strings.ToLower(filepath.Ext(name))]; ok {
		return mime
	}
	return "application/octet-stream"
}

// ResolveMedia rewrites img src attributes and [sound:...] markers in the
// rendered HTML against the package's media set. Double-quoted, single-quoted
// and unquoted src values are all recognized; resolved ones come back
// double-quoted.
func ResolveMedia(html string, media map[string]MediaFile) string {
	html = imgSrcRe.ReplaceAllStringFunc(html, func(m string) string {
		sub := imgSrcRe.FindStringSubmatch(m)
		name := sub[2]
		if name == "" {
			name = sub[3]
		}
		if name == "" {
			name = sub[4]
		}
		f, ok := media[name]
		if !ok {
			return m
		}
		return sub[1] + `"` + dataURI(f) + `"`
	})

	return soundRe.ReplaceAllStringFunc(html, func(m string) string {
		name := soundRe.FindStringSubmatch(m)[1]
		f, ok := media[name]
		if !ok {
			return ""
		}
		if strings.HasPrefix(f.MIME, "video/") {
			return `<video controls playsinline src="` + dataURI(f) + `"></video>`
		}
		return `<audio controls src="` + dataURI(f) + `"></audio>`
	})
}

func dataURI(f MediaFile) string {
	return "data:" + f.MIME + ";base64," + base64.StdEncoding.EncodeToString(f.Data)
}
