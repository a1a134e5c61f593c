// Package wake watches the idle audio stream for a trigger phrase.
// The acoustic engine is a capability behind an interface; the spotter
// owns the policy around it: the cooldown gate, session resets and the
// upkeep of the custom keyword file.
package wake

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "log/slog"

	"aria/internal/allowlist"
	"aria/internal/audio"
)

// Engine is a streaming keyword decoder session.
type Engine interface {
	// Accept feeds one chunk; a non-empty return is a detected keyword.
	Accept(chunk []int16) (string, error)
	// Reset starts a fresh decoder session.
	Reset()
	// SetKeywords replaces the trigger phrase set.
	SetKeywords(phrases []string)
	Close() error
}

type Config struct {
	Keywords     []string
	KeywordsPath string
	Cooldown     time.Duration
	// Transliterate derives a decoder-friendly form of an allow-list
	// keyword for the custom keyword file. Identity when nil.
	Transliterate func(string) string
}

type Spotter struct {
	engine   Engine // nil means the component is inert
	cooldown time.Duration
	phrases  []string

	keywordsPath  string
	transliterate func(string) string
	files         *allowlist.List
	filesMtime    time.Time
	lastSync      time.Time

	lastTrigger time.Time
	now         func() time.Time
}

// NewSpotter wraps engine. A nil engine (e.g. missing model assets)
// yields a spotter whose Process always returns nothing instead of an
// error: the assistant keeps running, it just cannot be woken by voice.
func NewSpotter(engine Engine, cfg Config, files *allowlist.List) *Spotter {
	if engine == nil {
		log.Error("Wake engine unavailable, wake word detection disabled")
	}

	s := &Spotter{
		engine:        engine,
		cooldown:      cfg.Cooldown,
		phrases:       cfg.Keywords,
		keywordsPath:  cfg.KeywordsPath,
		transliterate: cfg.Transliterate,
		files:         files,
		now:           time.Now,
	}
	if s.transliterate == nil {
		s.transliterate = func(w string) string { return w }
	}
	if engine != nil {
		engine.SetKeywords(cfg.Keywords)
		s.syncKeywordFile()
	}
	return s
}

// Process feeds one chunk and returns the detected keyword, or "".
// The cooldown is a hard gate checked before any decoding work.
func (s *Spotter) Process(chunk audio.Chunk) string {
	if s.engine == nil || len(chunk) == 0 {
		return ""
	}

	now := s.now()
	if !s.lastTrigger.IsZero() && now.Sub(s.lastTrigger) < s.cooldown {
		return ""
	}

	s.maybeSync(now)

	keyword, err := s.engine.Accept(chunk)
	if err != nil {
		log.Error("Wake engine failed", "err", err)
		return ""
	}
	if keyword == "" {
		return ""
	}

	s.lastTrigger = now
	s.engine.Reset()
	log.Info("Wake word detected", "keyword", keyword)
	return keyword
}

func (s *Spotter) Close() error {
	if s.engine == nil {
		return nil
	}
	return s.engine.Close()
}

// maybeSync regenerates the keyword file when the operator allow-list
// changed. Stat'ed at most once per second: Process runs at chunk rate.
func (s *Spotter) maybeSync(now time.Time) {
	if s.files == nil || s.keywordsPath == "" {
		return
	}
	if now.Sub(s.lastSync) < time.Second {
		return
	}
	s.lastSync = now

	mtime := s.files.ModTime()
	if mtime.Equal(s.filesMtime) {
		return
	}
	s.filesMtime = mtime
	s.syncKeywordFile()
}

func (s *Spotter) syncKeywordFile() {
	if s.keywordsPath == "" {
		return
	}

	var lines []string
	for _, p := range s.phrases {
		lines = append(lines, s.transliterate(p))
	}
	if s.files != nil {
		for _, kw := range s.files.Keywords() {
			lines = append(lines, s.transliterate(kw))
		}
	}

	if err := writeKeywordFile(s.keywordsPath, lines); err != nil {
		log.Warn("Failed to write keyword file", "path", s.keywordsPath, "err", err)
	}
}

func writeKeywordFile(path string, lines []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create keyword dir: %w", err)
	}
	data := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		return fmt.Errorf("write keyword file: %w", err)
	}
	return nil
}
