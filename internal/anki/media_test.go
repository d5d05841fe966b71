package anki_test

import (
	"encoding/base64"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rfaria/studydeck/internal/anki"
)

func mediaSet(files map[string][]byte) map[string]anki.MediaFile {
	out := map[string]anki.MediaFile{}
	for name, data := range files {
		out[name] = anki.MediaFile{Name: name, Data: data, MIME: anki.MIMEForFilename(name)}
	}
	return out
}

func TestMIMEForFilename(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		expected string
	}{
		{name: "jpg", filename: "photo.jpg", expected: "image/jpeg"},
		{name: "jpeg", filename: "photo.jpeg", expected: "image/jpeg"},
		{name: "png", filename: "diagram.png", expected: "image/png"},
		{name: "gif", filename: "anim.gif", expected: "image/gif"},
		{name: "svg", filename: "icon.svg", expected: "image/svg+xml"},
		{name: "mp3", filename: "audio.mp3", expected: "audio/mpeg"},
		{name: "ogg", filename: "audio.ogg", expected: "audio/ogg"},
		{name: "wav", filename: "audio.wav", expected: "audio/wav"},
		{name: "m4a", filename: "audio.m4a", expected: "audio/mp4"},
		{name: "opus", filename: "audio.opus", expected: "audio/opus"},
		{name: "mp4", filename: "clip.mp4", expected: "video/mp4"},
		{name: "webm", filename: "clip.webm", expected: "video/webm"},
		{name: "ogv", filename: "clip.ogv", expected: "video/ogg"},
		{name: "uppercase extension", filename: "PHOTO.PNG", expected: "image/png"},
		{name: "unknown extension", filename: "data.xyz", expected: "application/octet-stream"},
		{name: "no extension", filename: "file", expected: "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, anki.MIMEForFilename(tt.filename))
		})
	}
}

func TestResolveMedia_ImageEmbedded(t *testing.T) {
	payload := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a}
	media := mediaSet(map[string][]byte{"diagram.png": payload})

	out := anki.ResolveMedia(`before <img src="diagram.png"> after`, media)

	expected := fmt.Sprintf(`before <img src="data:image/png;base64,%s"> after`,
		base64.StdEncoding.EncodeToString(payload))
	assert.Equal(t, expected, out)
}

func TestResolveMedia_ImageWithAttributes(t *testing.T) {
	media := mediaSet(map[string][]byte{"x.gif": []byte("gif")})

	out := anki.ResolveMedia(`<img class="pic" src="x.gif" alt="x">`, media)

	assert.Contains(t, out, `class="pic"`)
	assert.Contains(t, out, `alt="x"`)
	assert.Contains(t, out, "data:image/gif;base64,")
	assert.NotContains(t, out, `src="x.gif"`)
}

func TestResolveMedia_ImageQuotingForms(t *testing.T) {
	media := mediaSet(map[string][]byte{"diagram.png": []byte("png")})

	tests := []struct {
		name string
		html string
	}{
		{name: "double quoted", html: `<img src="diagram.png">`},
		{name: "single quoted", html: `<img src='diagram.png'>`},
		{name: "unquoted", html: `<img src=diagram.png>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := anki.ResolveMedia(tt.html, media)
			assert.Contains(t, out, `src="data:image/png;base64,`)
			assert.NotContains(t, out, "diagram.png")
		})
	}
}

func TestResolveMedia_UnknownImageLeftUntouched(t *testing.T) {
	html := `<img src="missing.png">`

	out := anki.ResolveMedia(html, mediaSet(map[string][]byte{"other.png": []byte("x")}))

	assert.Equal(t, html, out, "a broken image reference is not an error")
}

func TestResolveMedia_SoundEmbedded(t *testing.T) {
	payload := []byte("mp3-bytes")
	media := mediaSet(map[string][]byte{"foo.mp3": payload})

	out := anki.ResolveMedia(`listen: [sound:foo.mp3]`, media)

	require.True(t, strings.HasPrefix(out, "listen: <audio controls "))
	assert.Contains(t, out, "data:audio/mpeg;base64,")

	// The payload must round-trip through the embedded representation.
	start := strings.Index(out, "base64,") + len("base64,")
	end := strings.Index(out[start:], `"`)
	decoded, err := base64.StdEncoding.DecodeString(out[start : start+end])
	require.NoError(t, err)
	assert.Equal(t, payload, decoded)
}

func TestResolveMedia_VideoSoundUsesVideoElement(t *testing.T) {
	media := mediaSet(map[string][]byte{"clip.mp4": []byte("mp4")})

	out := anki.ResolveMedia(`[sound:clip.mp4]`, media)

	assert.True(t, strings.HasPrefix(out, "<video "))
	assert.Contains(t, out, "controls")
	assert.Contains(t, out, "playsinline")
	assert.Contains(t, out, "data:video/mp4;base64,")
}

func TestResolveMedia_UnknownSoundDropped(t *testing.T) {
	out := anki.ResolveMedia(`before [sound:missing.mp3] after`, mediaSet(nil))

	assert.Equal(t, "before  after", out, "an unmatched sound reference resolves to an empty string")
}

func TestResolveMedia_MultipleReferences(t *testing.T) {
	media := mediaSet(map[string][]byte{
		"a.png": []byte("a"),
		"b.mp3": []byte("b"),
	})

	out := anki.ResolveMedia(`<img src="a.png"> [sound:b.mp3] <img src="a.png">`, media)

	assert.Equal(t, 2, strings.Count(out, "data:image/png;base64,"))
	assert.Equal(t, 1, strings.Count(out, "data:audio/mpeg;base64,"))
}
