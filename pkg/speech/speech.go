// Package speech turns microphone audio into recognition events and spoken
// text into speaker audio.
//
// Listener implements guidance.SpeechInput: it reads an audioio.Source,
// cuts utterances out of the stream with an energy VAD and hands each one
// to a Transcriber. Speaker implements guidance.SpeechOutput on top of a
// tts.Provider and an audioio.Sink.
package speech

import (
	"context"
	"errors"
	"strings"

	"github.com/teslashibe/go-guide/pkg/audioio"
)

// Transcriber converts one utterance of PCM audio into text candidates,
// most likely first.
type Transcriber interface {
	Transcribe(ctx context.Context, audio audioio.AudioChunk, locale string) ([]string, error)
	Name() string
}

var (
	// ErrNoMatch is reported when an utterance produced no usable text.
	ErrNoMatch = errors.New("speech: no match")

	ErrNoAPIKey = errors.New("speech: API key required")
)

// Language reduces a BCP-47 locale such as "en-IN" to its language
// subtag. An empty locale yields "".
func Language(locale string) string {
	locale = strings.TrimSpace(locale)
	if i := strings.IndexAny(locale, "-_"); i >= 0 {
		locale = locale[:i]
	}
	return strings.ToLower(locale)
}

// cleanCandidates trims each candidate and drops empties and duplicates.
func cleanCandidates(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, c := range in {
		c = strings.TrimSpace(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}
