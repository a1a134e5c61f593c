package audioconv

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

func TestDownmix(t *testing.T) {
	in := []float32{1, 0, 0.5, 0.5, -1, 1}
	got := downmix(in, 2)
	want := []float32{0.5, 0.5, 0}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if math.Abs(float64(got[i]-want[i])) > 1e-6 {
			t.Errorf("frame[%d] = %f, want %f", i, got[i], want[i])
		}
	}
}

func TestResampleLinear(t *testing.T) {
	in := []float32{0, 1, 0, -1}

	got := resampleLinear(in, 48000, 16000)
	if want := 2; len(got) != want {
		t.Errorf("48k->16k len = %d, want %d", len(got), want)
	}

	// Same rate is a pass-through, not a copy.
	if out := resampleLinear(in, 16000, 16000); &out[0] != &in[0] {
		t.Error("same-rate resample must not reallocate")
	}

	up := resampleLinear([]float32{0, 1}, 8000, 16000)
	if len(up) != 4 {
		t.Fatalf("8k->16k len = %d, want 4", len(up))
	}
	if up[0] != 0 || math.Abs(float64(up[1]-0.5)) > 1e-6 {
		t.Errorf("interpolation = %v", up[:2])
	}
}

func TestInt16ToFloat32Range(t *testing.T) {
	got := int16ToFloat32([]int16{-32768, 0, 32767})
	if got[0] != -1 || got[1] != 0 {
		t.Errorf("conversion = %v", got)
	}
	if got[2] >= 1 || got[2] < 0.999 {
		t.Errorf("max sample = %f, want just under 1", got[2])
	}
}

func TestDecodeWAVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}

	src := make([]int, 1600)
	for i := range src {
		src[i] = int(8000 * math.Sin(2*math.Pi*440*float64(i)/16000))
	}

	enc := wav.NewEncoder(f, TargetRate, 16, 1, 1)
	if err := enc.Write(&audio.IntBuffer{
		Data:           src,
		Format:         &audio.Format{NumChannels: 1, SampleRate: TargetRate},
		SourceBitDepth: 16,
	}); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()

	got, err := DecodeFilePCM16(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(src) {
		t.Fatalf("samples = %d, want %d", len(got), len(src))
	}
	for i := range src {
		if d := int(got[i]) - src[i]; d > 2 || d < -2 {
			t.Fatalf("sample[%d] = %d, want %d (±2)", i, got[i], src[i])
		}
	}
}

func TestDecodeFileUnknownFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "noise.bin")
	if err := os.WriteFile(path, []byte("not audio at all"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := DecodeFile(path); err == nil {
		t.Fatal("want error for unknown format")
	}
}
