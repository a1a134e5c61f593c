// Package pipeline is the voice command orchestrator: one loop that
// owns the microphone and sequences wake spotting, capture,
// transcription, intent resolution and dispatch, narrating every step
// to an event sink.
package pipeline

import (
	"fmt"
	"sync"
	"time"

	log "log/slog"

	"aria/internal/audio"
	"aria/internal/dispatch"
	"aria/internal/intent"
)

// Source is the exclusive audio input of the loop.
type Source interface {
	audio.Reader
	Open() error
	Close()
}

type Spotter interface {
	Process(chunk audio.Chunk) string
}

type Recorder interface {
	Capture(src audio.Reader) ([]int16, error)
}

type Transcriber interface {
	Transcribe(pcm []int16) string
}

type Resolver interface {
	Parse(text string) intent.Result
}

type Dispatcher interface {
	ExecuteAll(res intent.Result) dispatch.Result
}

type Deps struct {
	Source      Source
	Spotter     Spotter
	Recorder    Recorder
	Transcriber Transcriber
	Resolver    Resolver
	Dispatcher  Dispatcher
	Sink        Sink
	// WakeCue plays the acknowledgment sound after a trigger. Optional.
	WakeCue func()
}

// Status is a read-only snapshot for the control surface.
type Status struct {
	State      string          `json:"state"`
	RunMode    string          `json:"run_mode"`
	LastText   string          `json:"last_asr_text"`
	LastIntent intent.Result   `json:"last_intent"`
	LastResult dispatch.Result `json:"last_action_result"`
}

type Pipeline struct {
	deps Deps

	mu         sync.Mutex
	state      State
	mode       RunMode
	lastText   string
	lastParse  intent.Result
	lastResult dispatch.Result

	// Session data, touched only by the loop goroutine.
	utterance []int16
	parsed    intent.Result

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	// sleep is swapped out by tests.
	sleep func(time.Duration)
}

func New(deps Deps) *Pipeline {
	return &Pipeline{
		deps:  deps,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
		sleep: time.Sleep,
	}
}

// Start launches the loop in its own goroutine.
func (p *Pipeline) Start() {
	go p.run()
}

// Stop requests exit at the next tick boundary and waits for the
// microphone to be released.
func (p *Pipeline) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
	<-p.done
}

// Done is closed once the loop has exited.
func (p *Pipeline) Done() <-chan struct{} { return p.done }

func (p *Pipeline) Pause() {
	p.mu.Lock()
	p.mode = ModePaused
	p.mu.Unlock()
	log.Info("Pipeline paused")
	p.emit(EventRunModeChanged, map[string]any{"mode": ModePaused.String()})
}

func (p *Pipeline) Resume() {
	p.mu.Lock()
	p.mode = ModeRunning
	p.mu.Unlock()
	log.Info("Pipeline resumed")
	p.emit(EventRunModeChanged, map[string]any{"mode": ModeRunning.String()})
}

func (p *Pipeline) Snapshot() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Status{
		State:      p.state.String(),
		RunMode:    p.mode.String(),
		LastText:   p.lastText,
		LastIntent: p.lastParse,
		LastResult: p.lastResult,
	}
}

func (p *Pipeline) runMode() RunMode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mode
}

func (p *Pipeline) curState() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Pipeline) setState(s State) {
	p.mu.Lock()
	from := p.state
	p.state = s
	p.mu.Unlock()
	p.emit(EventStateChanged, map[string]any{"from": from.String(), "to": s.String()})
}

// emit pushes one event through the sink, swallowing sink panics.
func (p *Pipeline) emit(typ string, data map[string]any) {
	if p.deps.Sink == nil {
		return
	}
	if data == nil {
		data = map[string]any{}
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error("Event sink panicked", "event", typ, "err", r)
		}
	}()
	p.deps.Sink(Event{Type: typ, TS: time.Now(), Data: data})
}

func (p *Pipeline) run() {
	defer close(p.done)

	log.Info("Pipeline loop starting")
	p.emit(EventLoopStarted, nil)

	if err := p.deps.Source.Open(); err != nil {
		// The one unrecoverable failure: nothing to listen with.
		log.Error("Failed to open audio source", "err", err)
		p.emit(EventFatalError, map[string]any{"message": err.Error()})
		return
	}
	defer p.deps.Source.Close()

	for {
		select {
		case <-p.stop:
			log.Info("Pipeline loop stopping")
			return
		default:
		}

		if p.runMode() == ModePaused {
			p.sleep(500 * time.Millisecond)
			continue
		}

		if err := p.tick(); err != nil {
			log.Error("Error in pipeline loop", "err", err)
			p.emit(EventError, map[string]any{"message": err.Error()})
			p.setState(StateIdle)
			p.sleep(time.Second)
		}
	}
}

// tick advances the state machine by one step. Any failure — returned
// or panicked — degrades to IDLE in the caller.
func (p *Pipeline) tick() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", p.curState(), r)
		}
	}()

	switch p.curState() {
	case StateIdle:
		return p.tickIdle()
	case StateListening:
		return p.tickListening()
	case StateThinking:
		return p.tickThinking()
	case StateExecuting:
		return p.tickExecuting()
	}
	return nil
}

func (p *Pipeline) tickIdle() error {
	chunk, err := p.deps.Source.Read()
	if err != nil {
		return fmt.Errorf("read audio: %w", err)
	}

	keyword := p.deps.Spotter.Process(chunk)
	if keyword == "" {
		return nil
	}

	p.emit(EventWakewordDetected, map[string]any{"keyword": keyword})
	if p.deps.WakeCue != nil {
		p.deps.WakeCue()
	}
	p.setState(StateListening)
	return nil
}

func (p *Pipeline) tickListening() error {
	p.emit(EventRecordingStarted, nil)

	pcm, err := p.deps.Recorder.Capture(p.deps.Source)
	if err != nil {
		return fmt.Errorf("capture: %w", err)
	}

	p.emit(EventRecordingStopped, map[string]any{"bytes": len(pcm) * 2})
	p.utterance = pcm
	p.setState(StateThinking)
	return nil
}

func (p *Pipeline) tickThinking() error {
	text := p.deps.Transcriber.Transcribe(p.utterance)
	p.utterance = nil
	p.emit(EventASRResult, map[string]any{"text": text})

	parsed := p.deps.Resolver.Parse(text)
	p.emit(EventIntentParsed, map[string]any{"actions": parsed.Actions, "reply": parsed.Reply})

	p.mu.Lock()
	p.lastText = text
	p.lastParse = parsed
	p.mu.Unlock()

	p.parsed = parsed
	p.setState(StateExecuting)
	return nil
}

func (p *Pipeline) tickExecuting() error {
	parsed := p.parsed
	p.emit(EventActionStarted, map[string]any{"actions": parsed.Actions, "reply": parsed.Reply})

	result := p.deps.Dispatcher.ExecuteAll(parsed)

	p.mu.Lock()
	p.lastResult = result
	p.mu.Unlock()

	p.emit(EventActionFinished, map[string]any{"success": result.Success, "message": result.Message})
	log.Info("Execution done", "success", result.Success, "msg", result.Message)

	p.setState(StateIdle)

	// Cooldown plus pre-roll flush, so the assistant's own audible
	// feedback cannot re-trigger wake detection.
	p.sleep(time.Second)
	p.deps.Source.FlushPreRoll()
	return nil
}
