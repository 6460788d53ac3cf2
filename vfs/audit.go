package vfs

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vfsim/vfsim/internal/util"
)

// Event describes one operation attempt, successful or not.
type Event struct {
	ID      uuid.UUID
	Op      string
	Path    string
	User    string
	Success bool
	Detail  string
	At      time.Time
}

// Recorder receives one Event per operation attempt. Recorders are purely
// observational: the filesystem never depends on them for correctness and
// ignores anything they do.
type Recorder interface {
	Record(Event)
}

// LogRecorder writes events to the structured log.
type LogRecorder struct {
	logger util.Logger
}

func NewLogRecorder() *LogRecorder {
	return &LogRecorder{logger: util.GetLogger("audit")}
}

func (r *LogRecorder) Record(ev Event) {
	evt := r.logger.Info()
	if !ev.Success {
		evt = r.logger.Warn()
	}
	evt.Str("id", ev.ID.String()).
		Str("op", ev.Op).
		Str("path", ev.Path).
		Str("user", ev.User).
		Bool("success", ev.Success)
	if ev.Detail != "" {
		evt = evt.Str("detail", ev.Detail)
	}
	evt.Msg("operation")
}

// MemoryRecorder keeps the most recent events in memory, oldest first.
type MemoryRecorder struct {
	mu     sync.Mutex
	events []Event
	max    int
}

// NewMemoryRecorder keeps up to max events; max <= 0 means unbounded.
func NewMemoryRecorder(max int) *MemoryRecorder {
	return &MemoryRecorder{max: max}
}

func (r *MemoryRecorder) Record(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	if r.max > 0 && len(r.events) > r.max {
		r.events = r.events[len(r.events)-r.max:]
	}
}

// Events returns a copy of the recorded events, oldest first.
func (r *MemoryRecorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

type multiRecorder []Recorder

// MultiRecorder fans events out to every given recorder in order.
func MultiRecorder(recorders ...Recorder) Recorder {
	return multiRecorder(recorders)
}

func (m multiRecorder) Record(ev Event) {
	for _, r := range m {
		r.Record(ev)
	}
}
