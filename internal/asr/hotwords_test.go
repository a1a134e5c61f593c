package asr

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"aria/internal/allowlist"
)

func writeFileList(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestHotwords_CJKFilterAndDedup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file_config.yaml")
	writeFileList(t, path, `files:
  - keywords: ["英雄联盟", "lol", "Wegame"]
    path: /a
  - keywords: ["网易云音乐", "英雄联盟"]
    path: /b
`)

	h := NewHotwordCache(allowlist.NewFileList(path))
	text := h.Text()
	words := strings.Fields(text)

	want := []string{"打开", "开启", "帮我打开", "打开一下", "英雄联盟", "网易云音乐"}
	if len(words) != len(want) {
		t.Fatalf("hotwords = %v, want %v", words, want)
	}
	for i := range want {
		if words[i] != want[i] {
			t.Errorf("hotwords[%d] = %q, want %q", i, words[i], want[i])
		}
	}

	// Pure-ASCII keywords never reach the boost vocabulary.
	if strings.Contains(text, "lol") || strings.Contains(text, "Wegame") {
		t.Errorf("hotwords %q must not contain non-CJK keywords", text)
	}
}

func TestHotwords_CachedByMtime(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file_config.yaml")
	writeFileList(t, path, `files:
  - keywords: ["英雄联盟"]
    path: /a
`)

	list := allowlist.NewFileList(path)
	h := NewHotwordCache(list)

	first := h.Text()
	if !strings.Contains(first, "英雄联盟") {
		t.Fatalf("hotwords = %q, want 英雄联盟 present", first)
	}

	// Same mtime: the cached text is reused even if we poke the cache.
	if again := h.Text(); again != first {
		t.Errorf("Text() = %q on unchanged file, want cached %q", again, first)
	}

	writeFileList(t, path, `files:
  - keywords: ["网易云音乐"]
    path: /b
`)
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}
	list.Invalidate()

	updated := h.Text()
	if !strings.Contains(updated, "网易云音乐") || strings.Contains(updated, "英雄联盟") {
		t.Errorf("Text() after mtime change = %q, want rebuilt vocabulary", updated)
	}
}

func TestHotwords_Invalidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file_config.yaml")
	writeFileList(t, path, `files: []`)

	h := NewHotwordCache(allowlist.NewFileList(path))
	_ = h.Text()
	h.Invalidate()

	if got := h.Text(); !strings.HasPrefix(got, "打开") {
		t.Errorf("Text() after Invalidate = %q, want base phrases", got)
	}
}

func TestHasCJK(t *testing.T) {
	tests := []struct {
		s    string
		want bool
	}{
		{"英雄联盟", true},
		{"lol", false},
		{"b站", true},
		{"", false},
		{"ＷｅＧａｍｅ", false},
	}
	for _, tt := range tests {
		if got := hasCJK(tt.s); got != tt.want {
			t.Errorf("hasCJK(%q) = %v, want %v", tt.s, got, tt.want)
		}
	}
}

func TestPCMToWAV_Header(t *testing.T) {
	wav := pcmToWAV([]int16{0, 1, -1, 32767}, 16000)

	if len(wav) != 44+8 {
		t.Fatalf("len = %d, want 52", len(wav))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		t.Error("missing RIFF/WAVE markers")
	}
	if string(wav[36:40]) != "data" {
		t.Error("missing data chunk marker")
	}
}

func TestBuild_UnknownBackend(t *testing.T) {
	if _, err := build("carrier-pigeon", Config{}); err == nil {
		t.Error("build must reject unknown backend names")
	}
}

func TestOpenAIBackend_RequiresKey(t *testing.T) {
	if _, err := NewOpenAIBackend("", "", ""); err == nil {
		t.Error("NewOpenAIBackend must fail without an API key")
	}
}
