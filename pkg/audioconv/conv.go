// Package audioconv decodes common audio containers into the mono
// 16 kHz PCM the speech stack consumes. Used by the offline
// transcription tool; the live path gets its PCM straight from the
// microphone.
package audioconv

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	popus "github.com/pekim/opus"
)

const TargetRate = 16000

// DecodeFile picks a decoder by extension, falling back to sniffing the
// first bytes when the extension is missing or unknown.
func DecodeFile(path string) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return decodeWAV(f)
	case ".mp3":
		return decodeMP3(f)
	case ".ogg", ".oga":
		return decodeOgg(f)
	}

	br := bufio.NewReader(f)
	magic, _ := br.Peek(4)
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	switch string(magic) {
	case "RIFF":
		return decodeWAV(f)
	case "OggS":
		return decodeOgg(f)
	case "ID3\x03", "ID3\x04":
		return decodeMP3(f)
	}
	return nil, fmt.Errorf("unsupported audio format: %s", path)
}

// DecodeFilePCM16 is DecodeFile for consumers that want int16 samples.
func DecodeFilePCM16(path string) ([]int16, error) {
	x, err := DecodeFile(path)
	if err != nil {
		return nil, err
	}
	out := make([]int16, len(x))
	for i, v := range x {
		s := v * 32767
		if s > 32767 {
			s = 32767
		} else if s < -32768 {
			s = -32768
		}
		out[i] = int16(s)
	}
	return out, nil
}

func decodeWAV(r io.ReadSeeker) ([]float32, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, errors.New("invalid wav")
	}
	pb, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, err
	}
	if pb == nil || len(pb.Data) == 0 {
		return nil, errors.New("empty wav")
	}

	bd := int(dec.BitDepth)
	if bd == 0 {
		bd = 16
	}
	x := intToFloat32(pb.Data, bd)

	ch, sr := 1, 44100
	if pb.Format != nil {
		if pb.Format.NumChannels > 0 {
			ch = pb.Format.NumChannels
		}
		if pb.Format.SampleRate > 0 {
			sr = pb.Format.SampleRate
		}
	}
	return toMono16k(x, ch, sr), nil
}

func decodeMP3(r io.Reader) ([]float32, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, err
	}
	var raw bytes.Buffer
	if _, err := io.Copy(&raw, dec); err != nil {
		return nil, err
	}
	ints := make([]int16, raw.Len()/2)
	if err := binary.Read(bytes.NewReader(raw.Bytes()), binary.LittleEndian, &ints); err != nil {
		return nil, err
	}
	x := int16ToFloat32(ints)

	sr := dec.SampleRate()
	if sr <= 0 {
		sr = 44100
	}
	// go-mp3 always emits interleaved stereo.
	return toMono16k(x, 2, sr), nil
}

// decodeOgg tries Vorbis first, then Opus in the same container.
func decodeOgg(r io.ReadSeeker) ([]float32, error) {
	if x, err := decodeVorbis(r); err == nil {
		return x, nil
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	x, err := decodeOpus(r)
	if err != nil {
		return nil, fmt.Errorf("ogg is neither vorbis nor opus: %w", err)
	}
	return x, nil
}

func decodeVorbis(r io.Reader) ([]float32, error) {
	pcm, format, err := oggvorbis.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if format == nil || format.Channels <= 0 || format.SampleRate <= 0 {
		return nil, errors.New("invalid vorbis stream")
	}
	return toMono16k(pcm, format.Channels, format.SampleRate), nil
}

func decodeOpus(r io.ReadSeeker) ([]float32, error) {
	dec, err := popus.NewDecoder(r)
	if err != nil {
		return nil, err
	}
	defer dec.Destroy()

	ch := dec.ChannelCount()
	if ch <= 0 {
		ch = 1
	}

	// Opus always decodes at 48 kHz.
	var pcm48 []float32
	buf := make([]int16, 48_000*ch/2)
	for {
		n, err := dec.Read(buf)
		if n > 0 {
			pcm48 = append(pcm48, int16ToFloat32(buf[:n*ch])...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	if len(pcm48) == 0 {
		return nil, errors.New("empty opus stream")
	}
	return toMono16k(pcm48, ch, 48000), nil
}

func toMono16k(x []float32, channels, rate int) []float32 {
	if channels > 1 {
		x = downmix(x, channels)
	}
	if rate != TargetRate {
		x = resampleLinear(x, rate, TargetRate)
	}
	return x
}

func intToFloat32(data []int, bitDepth int) []float32 {
	out := make([]float32, len(data))
	scale := 1.0 / float64(int64(1)<<(bitDepth-1))
	for i, v := range data {
		s := float64(v) * scale
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		out[i] = float32(s)
	}
	return out
}

func int16ToFloat32(data []int16) []float32 {
	out := make([]float32, len(data))
	for i, v := range data {
		out[i] = float32(v) / 32768.0
	}
	return out
}

func downmix(in []float32, channels int) []float32 {
	frames := len(in) / channels
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		sum := 0.0
		for c := 0; c < channels; c++ {
			sum += float64(in[i*channels+c])
		}
		out[i] = float32(sum / float64(channels))
	}
	return out
}

func resampleLinear(in []float32, inSR, outSR int) []float32 {
	if inSR == outSR || len(in) == 0 {
		return in
	}
	ratio := float64(outSR) / float64(inSR)
	out := make([]float32, int(math.Ceil(float64(len(in))*ratio)))
	for i := range out {
		src := float64(i) / ratio
		i0 := int(src)
		if i0 >= len(in)-1 {
			out[i] = in[len(in)-1]
			continue
		}
		a := float32(src - float64(i0))
		out[i] = in[i0]*(1-a) + in[i0+1]*a
	}
	return out
}
