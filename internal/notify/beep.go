// Package notify plays the short acknowledgment cue after a wake
// trigger, so the user knows the recorder is live before speaking.
package notify

import (
	"fmt"
	"math"
	"os"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
)

const toneRate = beep.SampleRate(44100)

type Cue struct {
	path string

	initOnce sync.Once
	initErr  error
	rate     beep.SampleRate
}

// NewCue uses the mp3 at path, or a synthesized tone when path is
// empty or the file is unreadable at play time.
func NewCue(path string) *Cue {
	return &Cue{path: path}
}

// Play blocks until the cue has finished, keeping it clear of the
// recording that starts right after.
func (c *Cue) Play() error {
	streamer, rate, err := c.open()
	if err != nil {
		return err
	}
	if sc, ok := streamer.(beep.StreamSeekCloser); ok {
		defer sc.Close()
	}

	c.initOnce.Do(func() {
		c.rate = rate
		c.initErr = speaker.Init(rate, rate.N(time.Second/10))
	})
	if c.initErr != nil {
		return fmt.Errorf("init speaker: %w", c.initErr)
	}
	if rate != c.rate {
		streamer = beep.Resample(4, rate, c.rate, streamer)
	}

	done := make(chan bool)
	speaker.Play(beep.Seq(streamer, beep.Callback(func() {
		done <- true
	})))
	<-done
	return nil
}

func (c *Cue) open() (beep.Streamer, beep.SampleRate, error) {
	if c.path == "" {
		return tone(880, 150*time.Millisecond), toneRate, nil
	}

	f, err := os.Open(c.path)
	if err != nil {
		return tone(880, 150*time.Millisecond), toneRate, nil
	}

	streamer, format, err := mp3.Decode(f)
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("decode cue %s: %w", c.path, err)
	}
	return streamer, format.SampleRate, nil
}

// tone is the built-in fallback: a fixed sine burst, no asset needed.
func tone(freq float64, d time.Duration) beep.Streamer {
	total := toneRate.N(d)
	pos := 0
	step := 2 * math.Pi * freq / float64(toneRate)

	return beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		if pos >= total {
			return 0, false
		}
		n := len(samples)
		if rem := total - pos; n > rem {
			n = rem
		}
		for i := 0; i < n; i++ {
			// Short attack/release ramp to avoid clicks.
			v := 0.4 * math.Sin(step*float64(pos))
			edge := total - pos
			if pos < 200 {
				v *= float64(pos) / 200
			} else if edge < 200 {
				v *= float64(edge) / 200
			}
			samples[i][0] = v
			samples[i][1] = v
			pos++
		}
		return n, true
	})
}
