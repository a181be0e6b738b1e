// Package wake detects activation phrases ("hey lucy", "hi lucy", ...)
// in transcribed speech.
//
// Matching keyword phrases against STT transcriptions reuses the
// existing transcription engine rather than requiring a separate
// always-on wake-word model, keeping resource usage low on consumer
// hardware.
package wake

import (
	"strings"
	"sync"
	"unicode"
)

// DefaultPhrases returns the built-in wake phrases.
func DefaultPhrases() []string {
	return []string{
		"hey lucy",
		"hi lucy",
		"ok lucy",
		"okay lucy",
		"hey luce",
	}
}

// Detector matches wake phrases against transcribed speech.
type Detector struct {
	mu      sync.RWMutex
	phrases []string
}

// NewDetector creates a detector with the given phrases, or the
// defaults when none are provided. Phrases are normalized to
// lowercase and trimmed.
func NewDetector(phrases []string) *Detector {
	if phrases == nil {
		phrases = DefaultPhrases()
	}
	normalized := make([]string, 0, len(phrases))
	for _, p := range phrases {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			normalized = append(normalized, p)
		}
	}
	return &Detector{phrases: normalized}
}

// Detect reports whether the transcription contains any wake phrase.
// The transcription is lowercased and stripped of punctuation before
// substring matching, so "hey, Lucy!" matches "hey lucy". An empty
// transcription never matches.
func (d *Detector) Detect(transcription string) bool {
	if transcription == "" {
		return false
	}

	clean := normalize(transcription)

	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, phrase := range d.phrases {
		if strings.Contains(clean, phrase) {
			return true
		}
	}
	return false
}

// Add registers a new wake phrase. Adding a phrase that is already
// present (under case-insensitive, trimmed comparison) is a no-op.
func (d *Detector) Add(phrase string) {
	normalized := strings.ToLower(strings.TrimSpace(phrase))
	if normalized == "" {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, p := range d.phrases {
		if p == normalized {
			return
		}
	}
	d.phrases = append(d.phrases, normalized)
}

// Remove deletes a wake phrase. Removing an absent phrase is a no-op.
func (d *Detector) Remove(phrase string) {
	normalized := strings.ToLower(strings.TrimSpace(phrase))

	d.mu.Lock()
	defer d.mu.Unlock()
	for i, p := range d.phrases {
		if p == normalized {
			d.phrases = append(d.phrases[:i], d.phrases[i+1:]...)
			return
		}
	}
}

// Phrases returns a copy of the current wake phrase list.
func (d *Detector) Phrases() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]string, len(d.phrases))
	copy(out, d.phrases)
	return out
}

// normalize lowercases text and drops every rune that is neither
// alphanumeric nor whitespace, tolerating STT punctuation noise.
func normalize(text string) string {
	text = strings.ToLower(text)
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, text)
}
