package record

import (
	"testing"

	"aria/internal/audio"
)

// fakeSource replays a scripted chunk sequence; once exhausted it
// repeats the last chunk so Capture always hits its stop condition.
type fakeSource struct {
	preroll []int16
	chunks  []audio.Chunk
	pos     int
}

func (f *fakeSource) Read() (audio.Chunk, error) {
	if f.pos >= len(f.chunks) {
		return f.chunks[len(f.chunks)-1], nil
	}
	c := f.chunks[f.pos]
	f.pos++
	return c, nil
}

func (f *fakeSource) SnapshotPreRoll() []int16 { return f.preroll }
func (f *fakeSource) FlushPreRoll()            {}

func flat(v int16, n int) audio.Chunk {
	c := make(audio.Chunk, n)
	for i := range c {
		c[i] = v
	}
	return c
}

func TestSilentClassification(t *testing.T) {
	r := New(16000, 512)
	r.SilenceThreshold = 500

	tests := []struct {
		name  string
		chunk audio.Chunk
		want  bool
	}{
		{"below threshold", flat(499, 512), true},
		{"exactly threshold", flat(500, 512), false},
		{"above threshold", flat(2000, 512), false},
		{"empty chunk", nil, true},
		{"zero samples", flat(0, 512), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.silent(tt.chunk); got != tt.want {
				t.Errorf("silent(%s) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestSilenceLimit_Ramp(t *testing.T) {
	r := New(16000, 512)
	r.SilenceLimitSec = 1.5
	r.WakeupLimitSec = 2.5
	r.WakeupRampSec = 1.0

	if got := r.silenceLimit(0); got != 2.5 {
		t.Errorf("silenceLimit(0) = %v, want 2.5", got)
	}
	if got := r.silenceLimit(0.5); got != 2.0 {
		t.Errorf("silenceLimit(0.5) = %v, want 2.0", got)
	}
	if got := r.silenceLimit(1.0); got != 1.5 {
		t.Errorf("silenceLimit(1.0) = %v, want 1.5", got)
	}
	if got := r.silenceLimit(5.0); got != 1.5 {
		t.Errorf("silenceLimit(5.0) = %v, want 1.5", got)
	}
}

func TestSilenceLimit_MonotonicNonIncreasing(t *testing.T) {
	r := New(16000, 512)
	r.SilenceLimitSec = 1.0
	r.WakeupLimitSec = 3.0
	r.WakeupRampSec = 2.0

	prev := r.silenceLimit(0)
	for e := 0.05; e <= 4.0; e += 0.05 {
		cur := r.silenceLimit(e)
		if cur > prev {
			t.Fatalf("silenceLimit(%v) = %v > previous %v, must be non-increasing", e, cur, prev)
		}
		prev = cur
	}
	if prev != 1.0 {
		t.Errorf("final limit = %v, want steady-state 1.0", prev)
	}
}

func TestSilenceLimit_ZeroRampIsConstant(t *testing.T) {
	r := New(16000, 512)
	r.SilenceLimitSec = 1.5
	r.WakeupLimitSec = 2.5
	r.WakeupRampSec = 0

	for _, e := range []float64{0, 0.1, 1, 10} {
		if got := r.silenceLimit(e); got != 1.5 {
			t.Errorf("silenceLimit(%v) = %v, want constant 1.5 with zero ramp", e, got)
		}
	}
}

func TestCapture_StopsOnSilence(t *testing.T) {
	r := New(16000, 512)
	r.SilenceThreshold = 500
	r.SilenceLimitSec = 0.064 // 2 chunks at 512/16000
	r.WakeupLimitSec = 0.064
	r.WakeupRampSec = 0
	r.MaxRecordingSec = 10

	var chunks []audio.Chunk
	for i := 0; i < 5; i++ {
		chunks = append(chunks, flat(3000, 512))
	}
	for i := 0; i < 20; i++ {
		chunks = append(chunks, flat(0, 512))
	}

	src := &fakeSource{preroll: []int16{7, 7, 7}, chunks: chunks}

	got, err := r.Capture(src)
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}

	if got[0] != 7 {
		t.Errorf("capture must be seeded with the pre-roll snapshot, got[0] = %d", got[0])
	}

	// 5 speech + 3 silent chunks (limit 2, stop when count exceeds it).
	want := 3 + 8*512
	if len(got) != want {
		t.Errorf("len = %d, want %d", len(got), want)
	}
}

func TestCapture_HardCap(t *testing.T) {
	r := New(16000, 512)
	r.SilenceThreshold = 500
	r.SilenceLimitSec = 5
	r.WakeupLimitSec = 5
	r.WakeupRampSec = 0
	r.MaxRecordingSec = 0.128 // 4 chunks

	src := &fakeSource{chunks: []audio.Chunk{flat(3000, 512)}}

	got, err := r.Capture(src)
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	if len(got) != 4*512 {
		t.Errorf("len = %d, want %d (hard cap)", len(got), 4*512)
	}
}

func TestRMS(t *testing.T) {
	if got := RMS(nil); got != 0 {
		t.Errorf("RMS(nil) = %v, want 0", got)
	}
	if got := RMS([]int16{100, -100, 100, -100}); got != 100 {
		t.Errorf("RMS(±100) = %v, want 100", got)
	}
}
