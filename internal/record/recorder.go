// Package record captures one utterance from the microphone, ending on
// sustained silence or a hard duration cap.
package record

import (
	"math"

	log "log/slog"

	"aria/internal/audio"
)

// Recorder is the energy-based end-pointer run while the pipeline is
// listening. The silence limit is time-adaptive: generous right after
// wake-up so the user may pause to think, ramping linearly down to the
// steady-state limit so ordinary commands stay snappy.
type Recorder struct {
	SilenceThreshold float64
	SilenceLimitSec  float64
	WakeupLimitSec   float64
	WakeupRampSec    float64
	MaxRecordingSec  float64

	chunksPerSec float64
}

func New(sampleRate, chunkSize int) *Recorder {
	return &Recorder{
		SilenceThreshold: 500,
		SilenceLimitSec:  1.5,
		WakeupLimitSec:   2.5,
		WakeupRampSec:    1.0,
		MaxRecordingSec:  10.0,
		chunksPerSec:     float64(sampleRate) / float64(chunkSize),
	}
}

// Capture reads from src until silence persists past the current limit
// or the hard cap is reached. The pre-roll snapshot seeds the result so
// speech spoken just before the trigger was confirmed is kept.
func (r *Recorder) Capture(src audio.Reader) ([]int16, error) {
	out := append([]int16(nil), src.SnapshotPreRoll()...)

	var (
		read          int
		silenceChunks int
	)
	maxChunks := int(r.MaxRecordingSec * r.chunksPerSec)

	log.Info("Recording started", "preroll_samples", len(out))

	for read < maxChunks {
		chunk, err := src.Read()
		if err != nil {
			return nil, err
		}
		out = append(out, chunk...)
		read++

		elapsed := float64(read) / r.chunksPerSec
		limit := r.silenceLimit(elapsed)
		maxSilence := int(limit * r.chunksPerSec)
		if maxSilence < 1 {
			maxSilence = 1
		}

		if r.silent(chunk) {
			silenceChunks++
		} else {
			silenceChunks = 0
		}

		if silenceChunks > maxSilence {
			log.Info("Silence detected, recording stopped", "elapsed_sec", elapsed)
			break
		}
	}

	return out, nil
}

// silenceLimit interpolates between the wake-up limit and the steady
// limit over the ramp window: start*(1-e/r) + end*(e/r).
func (r *Recorder) silenceLimit(elapsedSec float64) float64 {
	start := r.WakeupLimitSec
	end := r.SilenceLimitSec
	ramp := r.WakeupRampSec

	if ramp <= 0 {
		return end
	}
	if elapsedSec <= 0 {
		return math.Max(start, end)
	}
	if elapsedSec >= ramp {
		return end
	}
	t := elapsedSec / ramp
	return start*(1-t) + end*t
}

// silent reports whether the chunk's RMS energy is below the threshold.
// Energy exactly at the threshold counts as speech.
func (r *Recorder) silent(chunk audio.Chunk) bool {
	if len(chunk) == 0 {
		return true
	}
	return RMS(chunk) < r.SilenceThreshold
}

// RMS is the root mean square of raw 16-bit samples.
func RMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}
