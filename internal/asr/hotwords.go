package asr

import (
	"strings"
	"sync"
	"time"
	"unicode"

	"aria/internal/allowlist"
)

// Base command phrases always present in the boost vocabulary.
var baseHotwords = []string{"打开", "开启", "帮我打开", "打开一下"}

// HotwordCache builds the boost string handed to the backend: the base
// phrases plus every allow-list keyword containing at least one CJK
// character, case-insensitively deduplicated, space joined. Rebuilt
// only when the allow-list file's mtime changes; the list rarely moves
// and recomputing per utterance would be wasted work.
type HotwordCache struct {
	files *allowlist.List

	mu    sync.Mutex
	text  string
	mtime time.Time
	valid bool
}

func NewHotwordCache(files *allowlist.List) *HotwordCache {
	return &HotwordCache{files: files}
}

func (h *HotwordCache) Text() string {
	h.mu.Lock()
	defer h.mu.Unlock()

	mtime := h.files.ModTime()
	if h.valid && mtime.Equal(h.mtime) {
		return h.text
	}

	h.text = h.build()
	h.mtime = mtime
	h.valid = true
	return h.text
}

// Invalidate forces a rebuild on the next Text call.
func (h *HotwordCache) Invalidate() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.valid = false
}

func (h *HotwordCache) build() string {
	var words []string
	seen := make(map[string]struct{})

	add := func(w string) {
		w = strings.TrimSpace(w)
		if w == "" {
			return
		}
		norm := strings.ToLower(w)
		if _, ok := seen[norm]; ok {
			return
		}
		seen[norm] = struct{}{}
		words = append(words, w)
	}

	for _, w := range baseHotwords {
		add(w)
	}
	for _, kw := range h.files.Keywords() {
		if hasCJK(kw) {
			add(kw)
		}
	}

	return strings.Join(words, " ")
}

func hasCJK(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}
