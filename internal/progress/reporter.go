package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Phase names a stage of a run.
type Phase string

const (
	PhaseFetch  Phase = "fetch"
	PhaseUpload Phase = "upload"
)

// Event is the outcome of one job.
type Event struct {
	Phase Phase

	// Source is what the job read: a URL when fetching, a local path when
	// uploading.
	Source string

	// Target is what the job produced: a local path or an object URI.
	Target string

	Err      error
	Attempts int
	Cached   bool
	Bytes    int64
}

// Options configures the progress reporter.
type Options struct {
	// Output is where to write progress output.
	// Default: os.Stderr
	Output io.Writer

	// Buffer is the number of events that can be queued before Report
	// starts dropping them.
	// Default: 1024
	Buffer int
}

type messageKind int

const (
	msgEvent messageKind = iota
	msgBegin
	msgEnd
)

type message struct {
	kind  messageKind
	phase Phase
	total int
	event Event
}

type phaseState struct {
	total     int
	completed int
	failed    int
	cached    int
	bytes     int64
	started   time.Time
}

// Reporter renders job outcomes as they arrive. Report never blocks the
// caller; rendering happens on a separate goroutine.
type Reporter struct {
	opts Options

	ch      chan message
	done    chan struct{}
	dropped atomic.Int64

	dropMu     sync.Mutex
	phaseDrops map[Phase]int

	mu      sync.RWMutex
	started bool
	stopped bool

	// owned by the render goroutine
	phases map[Phase]*phaseState
}

// NewReporter creates a new progress reporter.
func NewReporter(opts Options) *Reporter {
	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	if opts.Buffer <= 0 {
		opts.Buffer = 1024
	}

	return &Reporter{
		opts:   opts,
		ch:     make(chan message, opts.Buffer),
		done:   make(chan struct{}),
		phases: make(map[Phase]*phaseState),

		phaseDrops: make(map[Phase]int),
	}
}

// Start begins rendering.
func (r *Reporter) Start() {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true
	go r.loop()
}

// Stop drains queued events and stops rendering.
func (r *Reporter) Stop() {
	if r == nil {
		return
	}
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	started := r.started
	close(r.ch)
	r.mu.Unlock()

	if !started {
		go r.loop()
	}
	<-r.done

	if n := r.dropped.Load(); n > 0 {
		fmt.Fprintf(r.opts.Output, "[tlcfetch] %d progress events dropped\n", n)
	}
}

// Begin announces a phase with total jobs.
func (r *Reporter) Begin(phase Phase, total int) {
	r.send(message{kind: msgBegin, phase: phase, total: total}, true)
}

// End prints the completion line for phase once all its events are rendered.
func (r *Reporter) End(phase Phase) {
	r.send(message{kind: msgEnd, phase: phase}, true)
}

// Report queues ev for rendering. When the queue is full the event is
// dropped and counted.
func (r *Reporter) Report(ev Event) {
	r.send(message{kind: msgEvent, phase: ev.Phase, event: ev}, false)
}

// Dropped returns the number of events dropped so far.
func (r *Reporter) Dropped() int64 {
	if r == nil {
		return 0
	}
	return r.dropped.Load()
}

func (r *Reporter) send(m message, wait bool) {
	if r == nil {
		return
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.stopped {
		return
	}

	if wait {
		r.ch <- m
		return
	}
	select {
	case r.ch <- m:
	default:
		r.dropped.Add(1)
		r.dropMu.Lock()
		r.phaseDrops[m.phase]++
		r.dropMu.Unlock()
	}
}

func (r *Reporter) loop() {
	defer close(r.done)
	for m := range r.ch {
		switch m.kind {
		case msgBegin:
			r.phases[m.phase] = &phaseState{total: m.total, started: time.Now()}
			fmt.Fprintf(r.opts.Output, "[tlcfetch] Starting %s: %d jobs\n", m.phase, m.total)
		case msgEnd:
			r.printPhaseEnd(m.phase)
		case msgEvent:
			r.printEvent(m.event)
		}
	}
}

func (r *Reporter) state(phase Phase) *phaseState {
	st, ok := r.phases[phase]
	if !ok {
		st = &phaseState{started: time.Now()}
		r.phases[phase] = st
	}
	return st
}

func (r *Reporter) printEvent(ev Event) {
	st := r.state(ev.Phase)
	st.completed++
	st.bytes += ev.Bytes
	if ev.Err != nil {
		st.failed++
	}
	if ev.Cached {
		st.cached++
	}

	fmt.Fprintf(r.opts.Output, "[tlcfetch] %s %d/%d | %s\n", ev.Phase, st.completed, st.total, describe(ev))
}

func (r *Reporter) printPhaseEnd(phase Phase) {
	st := r.state(phase)

	r.dropMu.Lock()
	drops := r.phaseDrops[phase]
	r.dropMu.Unlock()
	var hidden string
	if drops > 0 {
		hidden = fmt.Sprintf(" (%d not shown)", drops)
	}

	fmt.Fprintf(r.opts.Output, "[tlcfetch] Finished %s: %d/%d%s | %d ok (%d cached) | %d failed | %s in %s\n",
		phase,
		st.completed,
		st.total,
		hidden,
		st.completed-st.failed,
		st.cached,
		st.failed,
		formatBytes(st.bytes),
		formatDuration(time.Since(st.started)),
	)
}

func describe(ev Event) string {
	switch {
	case ev.Phase == PhaseUpload && ev.Err != nil:
		return fmt.Sprintf("Upload failed %s -> %v", ev.Source, ev.Err)
	case ev.Phase == PhaseUpload:
		return fmt.Sprintf("Uploaded %s -> %s", ev.Source, ev.Target)
	case ev.Err != nil:
		return fmt.Sprintf("Failed: %s -> %v", ev.Source, ev.Err)
	case ev.Cached:
		return fmt.Sprintf("Already present: %s", ev.Target)
	default:
		return fmt.Sprintf("Downloaded: %s (%s, %d attempts)", ev.Target, formatBytes(ev.Bytes), ev.Attempts)
	}
}

// formatBytes formats bytes as a human-readable string.
func formatBytes(b int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
		TB = GB * 1024
	)

	switch {
	case b >= TB:
		return fmt.Sprintf("%.2f TB", float64(b)/float64(TB))
	case b >= GB:
		return fmt.Sprintf("%.2f GB", float64(b)/float64(GB))
	case b >= MB:
		return fmt.Sprintf("%.2f MB", float64(b)/float64(MB))
	case b >= KB:
		return fmt.Sprintf("%.2f KB", float64(b)/float64(KB))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

// formatDuration formats a duration as a human-readable string.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %dm %ds", h, m, s)
}
