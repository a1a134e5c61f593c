package pipeline

import (
	"errors"
	"sync"
	"testing"
	"time"

	"aria/internal/audio"
	"aria/internal/dispatch"
	"aria/internal/intent"
)

type fakeSource struct {
	mu      sync.Mutex
	openErr error
	reads   int
	closed  bool
	flushes int
}

func (f *fakeSource) Open() error { return f.openErr }

func (f *fakeSource) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeSource) Read() (audio.Chunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	return make(audio.Chunk, 512), nil
}

func (f *fakeSource) SnapshotPreRoll() []int16 { return nil }

func (f *fakeSource) FlushPreRoll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushes++
}

func (f *fakeSource) stats() (reads, flushes int, closed bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads, f.flushes, f.closed
}

// fakeSpotter triggers once on the nth processed chunk.
type fakeSpotter struct {
	mu        sync.Mutex
	triggerAt int
	processed int
	fired     bool
}

func (f *fakeSpotter) Process(chunk audio.Chunk) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processed++
	if !f.fired && f.processed >= f.triggerAt {
		f.fired = true
		return "小安小安"
	}
	return ""
}

func (f *fakeSpotter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.processed
}

type fakeRecorder struct {
	pcm []int16
	err error
}

func (f *fakeRecorder) Capture(src audio.Reader) ([]int16, error) { return f.pcm, f.err }

type fakeTranscriber struct{ text string }

func (f *fakeTranscriber) Transcribe(pcm []int16) string { return f.text }

type fakeResolver struct{ res intent.Result }

func (f *fakeResolver) Parse(text string) intent.Result { return f.res }

type fakeDispatcher struct {
	mu     sync.Mutex
	calls  int
	result dispatch.Result
}

func (f *fakeDispatcher) ExecuteAll(res intent.Result) dispatch.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.result
}

// recorder for emitted events, safe across goroutines.
type eventLog struct {
	mu     sync.Mutex
	events []Event
	onType map[string]func()
}

func newEventLog() *eventLog {
	return &eventLog{onType: map[string]func(){}}
}

func (l *eventLog) sink(e Event) {
	l.mu.Lock()
	events := append(l.events, e)
	l.events = events
	fn := l.onType[e.Type]
	l.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (l *eventLog) types() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.events))
	for i, e := range l.events {
		out[i] = e.Type
	}
	return out
}

func (l *eventLog) countOf(typ string) int {
	n := 0
	for _, t := range l.types() {
		if t == typ {
			n++
		}
	}
	return n
}

func newTestPipeline(src *fakeSource, log *eventLog) (*Pipeline, *fakeSpotter, *fakeDispatcher) {
	spotter := &fakeSpotter{triggerAt: 2}
	disp := &fakeDispatcher{result: dispatch.Result{Success: true, Message: "已为您打开英雄联盟"}}
	p := New(Deps{
		Source:      src,
		Spotter:     spotter,
		Recorder:    &fakeRecorder{pcm: make([]int16, 1024)},
		Transcriber: &fakeTranscriber{text: "帮我打开英雄联盟"},
		Resolver: &fakeResolver{res: intent.Result{
			Actions: []intent.Action{{Intent: intent.OpenFile, Target: "英雄联盟"}},
			Reply:   "好的",
		}},
		Dispatcher: disp,
		Sink:       log.sink,
	})
	p.sleep = func(time.Duration) {}
	return p, spotter, disp
}

func TestFatalOnSourceOpenFailure(t *testing.T) {
	src := &fakeSource{openErr: errors.New("no capture device")}
	log := newEventLog()
	p, _, _ := newTestPipeline(src, log)

	p.run() // returns immediately on the fatal path

	if got := log.countOf(EventFatalError); got != 1 {
		t.Fatalf("fatal_error events = %d, want exactly 1", got)
	}
	if got := log.countOf(EventStateChanged); got != 0 {
		t.Errorf("state_changed events = %d, want 0 after a fatal init failure", got)
	}
	if reads, _, _ := src.stats(); reads != 0 {
		t.Errorf("source reads = %d, want 0", reads)
	}
}

func TestPausedSuppressesAllTransitions(t *testing.T) {
	src := &fakeSource{}
	log := newEventLog()
	p, spotter, _ := newTestPipeline(src, log)
	spotter.triggerAt = 1 // would fire on the very first chunk

	p.Pause()

	var sleeps int
	p.sleep = func(time.Duration) {
		sleeps++
		if sleeps >= 5 {
			p.stopOnce.Do(func() { close(p.stop) })
		}
	}

	p.run()

	if got := log.countOf(EventStateChanged); got != 0 {
		t.Errorf("state_changed events while paused = %d, want 0", got)
	}
	if spotter.count() != 0 {
		t.Errorf("spotter processed %d chunks while paused, want 0", spotter.count())
	}
	if got := p.Snapshot().State; got != "IDLE" {
		t.Errorf("state = %s, want IDLE", got)
	}
	if _, _, closed := src.stats(); !closed {
		t.Error("source must be released when the loop exits")
	}
}

func TestHappyPathEventOrder(t *testing.T) {
	src := &fakeSource{}
	log := newEventLog()
	p, _, disp := newTestPipeline(src, log)

	var cueCalls int
	p.deps.WakeCue = func() { cueCalls++ }

	log.onType[EventActionFinished] = func() {
		p.stopOnce.Do(func() { close(p.stop) })
	}

	p.run()

	want := []string{
		EventLoopStarted,
		EventWakewordDetected,
		EventStateChanged, // IDLE -> LISTENING
		EventRecordingStarted,
		EventRecordingStopped,
		EventStateChanged, // LISTENING -> THINKING
		EventASRResult,
		EventIntentParsed,
		EventStateChanged, // THINKING -> EXECUTING
		EventActionStarted,
		EventActionFinished,
	}
	got := log.types()
	if len(got) < len(want) {
		t.Fatalf("events = %v, want at least %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event[%d] = %s, want %s (full: %v)", i, got[i], want[i], got)
		}
	}

	if cueCalls != 1 {
		t.Errorf("wake cue calls = %d, want 1", cueCalls)
	}

	disp.mu.Lock()
	calls := disp.calls
	disp.mu.Unlock()
	if calls != 1 {
		t.Errorf("dispatcher calls = %d, want 1", calls)
	}

	st := p.Snapshot()
	if st.State != "IDLE" {
		t.Errorf("final state = %s, want IDLE", st.State)
	}
	if st.LastText != "帮我打开英雄联盟" {
		t.Errorf("last text = %q", st.LastText)
	}
	if !st.LastResult.Success {
		t.Errorf("last result = %+v, want success", st.LastResult)
	}

	if _, flushes, _ := src.stats(); flushes != 1 {
		t.Errorf("pre-roll flushes = %d, want 1 after EXECUTING", flushes)
	}
}

func TestRecorderErrorDegradesToIdle(t *testing.T) {
	src := &fakeSource{}
	log := newEventLog()
	p, _, _ := newTestPipeline(src, log)
	p.deps.Recorder = &fakeRecorder{err: errors.New("stream gone")}

	log.onType[EventError] = func() {
		p.stopOnce.Do(func() { close(p.stop) })
	}

	p.run()

	if got := log.countOf(EventError); got == 0 {
		t.Fatal("want an error event for the failed capture")
	}
	if got := p.Snapshot().State; got != "IDLE" {
		t.Errorf("state after error = %s, want IDLE", got)
	}
	if got := log.countOf(EventFatalError); got != 0 {
		t.Errorf("fatal_error events = %d, want 0 for a transient failure", got)
	}
}

func TestSinkPanicIsContained(t *testing.T) {
	p := New(Deps{Sink: func(Event) { panic("ui went away") }})

	// Must not propagate.
	p.emit(EventASRResult, map[string]any{"text": "hi"})
}

func TestResolverPanicIsTransient(t *testing.T) {
	src := &fakeSource{}
	log := newEventLog()
	p, _, _ := newTestPipeline(src, log)
	p.deps.Resolver = panickyResolver{}

	log.onType[EventError] = func() {
		p.stopOnce.Do(func() { close(p.stop) })
	}

	p.run()

	if got := log.countOf(EventError); got == 0 {
		t.Fatal("want an error event for the panicking resolver")
	}
	if got := p.Snapshot().State; got != "IDLE" {
		t.Errorf("state after panic = %s, want IDLE", got)
	}
}

type panickyResolver struct{}

func (panickyResolver) Parse(text string) intent.Result { panic("bad model state") }

func TestPauseResumeEvents(t *testing.T) {
	log := newEventLog()
	p := New(Deps{Sink: log.sink})

	p.Pause()
	if got := p.Snapshot().RunMode; got != "PAUSED" {
		t.Errorf("run mode = %s, want PAUSED", got)
	}
	p.Resume()
	if got := p.Snapshot().RunMode; got != "RUNNING" {
		t.Errorf("run mode = %s, want RUNNING", got)
	}

	if got := log.countOf(EventRunModeChanged); got != 2 {
		t.Errorf("run_mode_changed events = %d, want 2", got)
	}
}
