// Package allowlist reads the operator-maintained keyword→target
// mappings that bound what the assistant may open. Lists are
// read-mostly snapshots refreshed by file modification time.
package allowlist

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	log "log/slog"

	"gopkg.in/yaml.v3"
)

// Entry maps spoken keywords onto one target. Path is set for file
// entries, URL for website entries.
type Entry struct {
	Keywords []string `yaml:"keywords"`
	Path     string   `yaml:"path,omitempty"`
	URL      string   `yaml:"url,omitempty"`
}

type document struct {
	Files    []Entry `yaml:"files"`
	Websites []Entry `yaml:"websites"`
}

// List is one allow-list file. Order matters: it is the tie-break for
// normalization. Concurrent use is safe.
type List struct {
	path    string
	web     bool // websites root key, canonical-keyword normalization
	mu      sync.Mutex
	entries []Entry
	mtime   time.Time
	loaded  bool
}

func NewFileList(path string) *List { return &List{path: path} }

func NewWebList(path string) *List { return &List{path: path, web: true} }

func (l *List) Path() string { return l.path }

// Ensure writes an empty document if the list file does not exist yet.
func (l *List) Ensure() error {
	if _, err := os.Stat(l.path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create allowlist dir: %w", err)
	}
	root := "files"
	if l.web {
		root = "websites"
	}
	data := []byte(root + ": []\n")
	if err := os.WriteFile(l.path, data, 0o644); err != nil {
		return fmt.Errorf("write allowlist: %w", err)
	}
	return nil
}

// Invalidate drops the cached snapshot so the next access re-reads the
// file regardless of its modification time.
func (l *List) Invalidate() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loaded = false
	l.mtime = time.Time{}
}

// ModTime returns the modification time of the backing file, zero when
// it is missing.
func (l *List) ModTime() time.Time {
	fi, err := os.Stat(l.path)
	if err != nil {
		return time.Time{}
	}
	return fi.ModTime()
}

func (l *List) refresh() {
	mtime := l.ModTime()
	if l.loaded && mtime.Equal(l.mtime) {
		return
	}

	l.entries = nil
	l.loaded = true
	l.mtime = mtime

	data, err := os.ReadFile(l.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn("Failed to read allowlist", "path", l.path, "err", err)
		}
		return
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		log.Warn("Failed to parse allowlist", "path", l.path, "err", err)
		return
	}

	if l.web {
		l.entries = doc.Websites
	} else {
		l.entries = doc.Files
	}
}

// Entries returns the current snapshot.
func (l *List) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refresh()
	return l.entries
}

// Keywords flattens all entries' keywords in list order, deduplicated
// case-insensitively.
func (l *List) Keywords() []string {
	var out []string
	seen := make(map[string]struct{})
	for _, e := range l.Entries() {
		for _, kw := range e.Keywords {
			kw = strings.TrimSpace(kw)
			if kw == "" {
				continue
			}
			norm := strings.ToLower(kw)
			if _, ok := seen[norm]; ok {
				continue
			}
			seen[norm] = struct{}{}
			out = append(out, kw)
		}
	}
	return out
}

// Normalize maps a raw target span onto an allow-list keyword using
// case-insensitive bidirectional substring containment: the raw target
// matches a keyword if either string contains the other. First match
// wins. For website lists the entry's first keyword is returned as the
// canonical form; for file lists the matched keyword itself.
func (l *List) Normalize(target string) (string, bool) {
	t := strings.ToLower(strings.TrimSpace(target))
	if t == "" {
		return "", false
	}

	if l.web {
		for _, e := range l.Entries() {
			if len(e.Keywords) == 0 {
				continue
			}
			canonical := strings.TrimSpace(e.Keywords[0])
			for _, kw := range e.Keywords {
				if contains(t, kw) {
					return canonical, true
				}
			}
		}
		return "", false
	}

	for _, kw := range l.Keywords() {
		if contains(t, kw) {
			return kw, true
		}
	}
	return "", false
}

// Resolve maps a normalized target onto the entry's path or URL.
func (l *List) Resolve(target string) (string, bool) {
	t := strings.ToLower(strings.TrimSpace(target))
	if t == "" {
		return "", false
	}
	for _, e := range l.Entries() {
		for _, kw := range e.Keywords {
			if !contains(t, kw) {
				continue
			}
			if l.web {
				return e.URL, e.URL != ""
			}
			return e.Path, e.Path != ""
		}
	}
	return "", false
}

func contains(targetNorm, keyword string) bool {
	k := strings.ToLower(strings.TrimSpace(keyword))
	if k == "" {
		return false
	}
	return strings.Contains(targetNorm, k) || strings.Contains(k, targetNorm)
}
