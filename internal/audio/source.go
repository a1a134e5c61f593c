// Package audio owns the microphone. One Source produces fixed-size
// PCM chunks and feeds a short pre-roll ring as a side effect of every
// read.
package audio

import (
	"fmt"

	"github.com/gordonklaus/portaudio"
)

// Reader is the capture contract the recorder and pipeline consume.
type Reader interface {
	// Read blocks until one chunk is available.
	Read() (Chunk, error)
	// SnapshotPreRoll returns the concatenated pre-roll without blocking.
	SnapshotPreRoll() []int16
	// FlushPreRoll drops buffered pre-roll audio.
	FlushPreRoll()
}

type Source struct {
	rate    int
	chunk   int
	stream  *portaudio.Stream
	buf     []int16
	preroll *PreRoll
	inited  bool
}

func NewSource(sampleRate, chunkSize int, preRollSec float64) *Source {
	chunksPerSec := float64(sampleRate) / float64(chunkSize)
	return &Source{
		rate:    sampleRate,
		chunk:   chunkSize,
		buf:     make([]int16, chunkSize),
		preroll: NewPreRoll(int(chunksPerSec * preRollSec)),
	}
}

// Open acquires the capture device. Failure here is fatal to the
// pipeline: there is nothing to listen with.
func (s *Source) Open() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("init portaudio: %w", err)
	}
	s.inited = true

	stream, err := portaudio.OpenDefaultStream(1, 0, float64(s.rate), len(s.buf), s.buf)
	if err != nil {
		s.Close()
		return fmt.Errorf("open capture stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		s.Close()
		return fmt.Errorf("start capture stream: %w", err)
	}

	s.stream = stream
	return nil
}

// Close releases the stream and portaudio. Safe on all exit paths,
// including a partially failed Open.
func (s *Source) Close() {
	if s.stream != nil {
		s.stream.Stop()
		s.stream.Close()
		s.stream = nil
	}
	if s.inited {
		portaudio.Terminate()
		s.inited = false
	}
}

func (s *Source) Read() (Chunk, error) {
	if err := s.stream.Read(); err != nil {
		return nil, fmt.Errorf("read capture stream: %w", err)
	}
	c := make(Chunk, len(s.buf))
	copy(c, s.buf)
	s.preroll.Append(c)
	return c, nil
}

func (s *Source) SnapshotPreRoll() []int16 { return s.preroll.Snapshot() }

func (s *Source) FlushPreRoll() { s.preroll.Flush() }

func (s *Source) SampleRate() int { return s.rate }

func (s *Source) ChunkSize() int { return s.chunk }
