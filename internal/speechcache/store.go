// Package speechcache deduplicates speech synthesis by content: one
// synthesis per distinct (text, expression sequence) pair, with the
// resulting audio persisted to a backing directory that can be swept
// by age independently of the in-memory index.
package speechcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/normanking/lucyd/internal/metrics"
)

// ErrEmptyText is returned when synthesis is requested for empty or
// whitespace-only text.
var ErrEmptyText = errors.New("cannot synthesize empty text")

// SynthesizeFunc produces audio bytes for the given text and
// expression tags. It is invoked only on cache miss.
type SynthesizeFunc func(ctx context.Context, text string, expressions []string) ([]byte, error)

// Entry records one cached synthesis result.
type Entry struct {
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
}

// SweepFailure is one file the sweep could not delete.
type SweepFailure struct {
	Path string
	Err  error
}

// SweepReport aggregates the outcome of a Sweep pass. Individual
// deletion failures are reported here rather than failing the sweep.
type SweepReport struct {
	Scanned  int
	Removed  int
	Failures []SweepFailure
}

// call tracks an in-flight synthesis so concurrent requests for the
// same key share one result instead of synthesizing twice.
type call struct {
	done chan struct{}
	path string
	err  error
}

// Store is a content-addressed cache of synthesized audio files.
type Store struct {
	dir    string
	logger zerolog.Logger

	mu       sync.Mutex
	entries  map[string]Entry
	inflight map[string]*call
}

// NewStore creates a store backed by dir, creating it if needed.
func NewStore(dir string, logger zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create audio output dir: %w", err)
	}
	return &Store{
		dir:      dir,
		logger:   logger.With().Str("component", "speechcache").Logger(),
		entries:  make(map[string]Entry),
		inflight: make(map[string]*call),
	}, nil
}

// KeyFor returns the deterministic digest identifying a synthesis
// request. The expression order is part of the key: the same text
// delivered with reordered expressions is a different utterance.
func KeyFor(text string, expressions []string) string {
	sum := sha256.Sum256([]byte(text + "|" + strings.Join(expressions, ",")))
	return hex.EncodeToString(sum[:])
}

// GetOrSynthesize returns the path of the cached audio for (text,
// expressions), invoking synthesize only when no usable entry exists.
// A hit whose backing file has disappeared is treated as a miss.
// Concurrent callers with the same key wait for the first synthesis
// rather than duplicating it.
func (s *Store) GetOrSynthesize(ctx context.Context, text string, expressions []string, synthesize SynthesizeFunc) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyText
	}

	key := KeyFor(text, expressions)

	s.mu.Lock()
	if entry, ok := s.entries[key]; ok {
		if _, err := os.Stat(entry.Path); err == nil {
			s.mu.Unlock()
			metrics.SpeechCacheHits.Inc()
			s.logger.Debug().Str("key", key[:8]).Str("path", entry.Path).Msg("Cache hit")
			return entry.Path, nil
		}
		// Backing file gone; drop the stale entry and re-synthesize.
		delete(s.entries, key)
		s.logger.Debug().Str("key", key[:8]).Msg("Stale cache entry dropped")
	}
	if c, ok := s.inflight[key]; ok {
		s.mu.Unlock()
		select {
		case <-c.done:
			if c.err != nil {
				return "", c.err
			}
			metrics.SpeechCacheHits.Inc()
			return c.path, nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	c := &call{done: make(chan struct{})}
	s.inflight[key] = c
	s.mu.Unlock()

	metrics.SpeechCacheMisses.Inc()
	c.path, c.err = s.synthesizeAndStore(ctx, key, text, expressions, synthesize)

	s.mu.Lock()
	delete(s.inflight, key)
	if c.err == nil {
		s.entries[key] = Entry{Path: c.path, CreatedAt: time.Now()}
	}
	s.mu.Unlock()
	close(c.done)

	return c.path, c.err
}

func (s *Store) synthesizeAndStore(ctx context.Context, key, text string, expressions []string, synthesize SynthesizeFunc) (string, error) {
	start := time.Now()
	audio, err := synthesize(ctx, text, expressions)
	if err != nil {
		return "", fmt.Errorf("synthesis failed: %w", err)
	}
	metrics.SynthesisLatency.Observe(time.Since(start).Seconds())

	name := fmt.Sprintf("tts_%d_%s.wav", time.Now().UnixMilli(), key[:8])
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, audio, 0o644); err != nil {
		return "", fmt.Errorf("write audio file: %w", err)
	}

	s.logger.Info().
		Str("key", key[:8]).
		Str("path", path).
		Int("audioBytes", len(audio)).
		Msg("Synthesized and cached")
	return path, nil
}

// Sweep deletes backing audio files older than maxAge along with their
// cache entries. Deletion failures are collected in the report, not
// returned as an error.
func (s *Store) Sweep(maxAge time.Duration) SweepReport {
	var report SweepReport
	cutoff := time.Now().Add(-maxAge)

	files, err := filepath.Glob(filepath.Join(s.dir, "tts_*.wav"))
	if err != nil {
		// Glob only fails on a malformed pattern, which is fixed here.
		return report
	}

	removed := make(map[string]struct{})
	for _, path := range files {
		info, err := os.Stat(path)
		if err != nil {
			report.Failures = append(report.Failures, SweepFailure{Path: path, Err: err})
			continue
		}
		report.Scanned++
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			report.Failures = append(report.Failures, SweepFailure{Path: path, Err: err})
			continue
		}
		removed[path] = struct{}{}
		report.Removed++
	}

	if len(removed) > 0 {
		s.mu.Lock()
		for key, entry := range s.entries {
			if _, ok := removed[entry.Path]; ok {
				delete(s.entries, key)
			}
		}
		s.mu.Unlock()
	}

	s.logger.Info().
		Int("scanned", report.Scanned).
		Int("removed", report.Removed).
		Int("failures", len(report.Failures)).
		Msg("Cache sweep complete")
	return report
}

// Clear drops all in-memory entries. Backing files are left for Sweep.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]Entry)
}

// Len returns the number of indexed entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Dir returns the backing audio directory.
func (s *Store) Dir() string {
	return s.dir
}
