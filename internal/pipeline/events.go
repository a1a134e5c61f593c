package pipeline

import "time"

// State is the pipeline's single active phase. Transitions happen only
// inside the orchestrator loop.
type State int

const (
	StateIdle State = iota
	StateListening
	StateThinking
	StateExecuting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateListening:
		return "LISTENING"
	case StateThinking:
		return "THINKING"
	case StateExecuting:
		return "EXECUTING"
	}
	return "UNKNOWN"
}

// RunMode is orthogonal to State and checked once per loop tick.
type RunMode int

const (
	ModeRunning RunMode = iota
	ModePaused
)

func (m RunMode) String() string {
	if m == ModePaused {
		return "PAUSED"
	}
	return "RUNNING"
}

// Event types pushed through the sink, one per pipeline milestone.
const (
	EventLoopStarted      = "loop_started"
	EventStateChanged     = "state_changed"
	EventRunModeChanged   = "run_mode_changed"
	EventWakewordDetected = "wakeword_detected"
	EventRecordingStarted = "recording_started"
	EventRecordingStopped = "recording_stopped"
	EventASRResult        = "asr_result"
	EventIntentParsed     = "intent_parsed"
	EventActionStarted    = "action_started"
	EventActionFinished   = "action_finished"
	EventError            = "error"
	EventFatalError       = "fatal_error"
)

type Event struct {
	Type string         `json:"type"`
	TS   time.Time      `json:"ts"`
	Data map[string]any `json:"data"`
}

// Sink receives every event. Sink panics are caught and logged, never
// allowed to break the loop.
type Sink func(Event)
