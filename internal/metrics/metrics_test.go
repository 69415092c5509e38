package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu       sync.Mutex
	counters map[string]float64
	samples  map[string][]float64
	flushed  int
}

func newRecorder() *recorder {
	return &recorder{counters: map[string]float64{}, samples: map[string][]float64{}}
}

func (r *recorder) IncCounter(name string, delta float64, labels Labels) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[name+"|"+labels["stage"]+labels["backend"]+"|"+labels["status"]] += delta
}

func (r *recorder) ObserveHistogram(name string, value float64, labels Labels) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := name + "|" + labels["stage"] + "|" + labels["status"]
	r.samples[k] = append(r.samples[k], value)
}

func (r *recorder) Flush() error {
	r.flushed++
	return nil
}

func TestRecordStageAndGeneration(t *testing.T) {
	r := newRecorder()
	SetBackend(r)
	t.Cleanup(func() { SetBackend(nil) })

	RecordStage("execute", "ok", 1500*time.Millisecond)
	RecordStage("execute", "ok", 500*time.Millisecond)
	RecordGeneration("gemini", "error")

	require.Equal(t, 2.0, r.counters[StageTotal+"|execute|ok"])
	require.Equal(t, []float64{1.5, 0.5}, r.samples[StageDuration+"|execute|ok"])
	require.Equal(t, 1.0, r.counters[GenerationAttempts+"|gemini|error"])

	require.NoError(t, Flush())
	require.Equal(t, 1, r.flushed)
}

func TestNopIsDefault(t *testing.T) {
	SetBackend(nil)
	require.IsType(t, Nop{}, current())
	require.NoError(t, Flush())
	RecordStage("generate", "error", time.Second)
}
