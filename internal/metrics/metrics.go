// Package metrics is a small backend-agnostic facade for request metrics.
// Core packages record through the package-level functions; the process
// picks a concrete backend once at startup with SetBackend.
package metrics

import (
	"sync"
	"time"
)

// Labels are metric dimensions.
type Labels map[string]string

// Backend receives metric updates.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
}

// Flusher is implemented by backends that buffer updates.
type Flusher interface {
	Flush() error
}

// Metric names.
const (
	StageTotal         = "askcsv_stage_total"
	StageDuration      = "askcsv_stage_duration_seconds"
	GenerationAttempts = "askcsv_generation_attempts_total"
)

// Nop discards every update.
type Nop struct{}

func (Nop) IncCounter(string, float64, Labels)       {}
func (Nop) ObserveHistogram(string, float64, Labels) {}

var (
	mu      sync.RWMutex
	backend Backend = Nop{}
)

// SetBackend installs b as the process-wide backend. A nil b restores Nop.
func SetBackend(b Backend) {
	if b == nil {
		b = Nop{}
	}
	mu.Lock()
	backend = b
	mu.Unlock()
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// IncCounter forwards to the installed backend.
func IncCounter(name string, delta float64, labels Labels) {
	current().IncCounter(name, delta, labels)
}

// ObserveHistogram forwards to the installed backend.
func ObserveHistogram(name string, value float64, labels Labels) {
	current().ObserveHistogram(name, value, labels)
}

// Flush flushes the installed backend when it buffers.
func Flush() error {
	if f, ok := current().(Flusher); ok {
		return f.Flush()
	}
	return nil
}

// RecordStage counts one pipeline stage outcome and its duration.
func RecordStage(stage, status string, d time.Duration) {
	l := Labels{"stage": stage, "status": status}
	IncCounter(StageTotal, 1, l)
	ObserveHistogram(StageDuration, d.Seconds(), l)
}

// RecordGeneration counts one generator backend attempt.
func RecordGeneration(backendName, status string) {
	IncCounter(GenerationAttempts, 1, Labels{"backend": backendName, "status": status})
}
