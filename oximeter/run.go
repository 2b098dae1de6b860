package oximeter

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/oxitrack/oxitrack/internal/berrymed"
	"github.com/oxitrack/oxitrack/timeseries"
)

// Column labels of the acquisition table.
const (
	IndexLabel   = "TIME"
	ChannelPulse = "PULSE"
	ChannelSpO2  = "SPO2"
	ChannelPleth = "PLETH"
)

// RawRecord is one diagnostic log entry: the raw sample as pulled from the
// peripheral (invalid ones included) and its elapsed time since run start.
type RawRecord struct {
	Elapsed float64
	Sample  berrymed.Sample
}

// Run owns the data of one acquisition: the validated time series, the full
// raw-sample log and the start instant. A run is written exclusively by its
// acquisition goroutine and becomes read-only once finalized.
type Run struct {
	mu        sync.RWMutex
	series    *timeseries.Set
	rawLog    []RawRecord
	start     time.Time
	finalized atomic.Bool
}

func newRun() *Run {
	return &Run{
		series: timeseries.NewSet(IndexLabel, ChannelPulse, ChannelSpO2, ChannelPleth),
		start:  time.Now(),
	}
}

// logRaw records a pulled sample in the diagnostic log.
func (r *Run) logRaw(elapsed float64, s berrymed.Sample) {
	r.mu.Lock()
	r.rawLog = append(r.rawLog, RawRecord{Elapsed: elapsed, Sample: s})
	r.mu.Unlock()
}

// appendValid pushes a validated sample into the time series.
func (r *Run) appendValid(elapsed float64, s berrymed.Sample) {
	_ = r.series.Append(elapsed, float64(s.PulseRate), float64(s.SpO2), float64(s.Pleth))
}

func (r *Run) finalize() {
	r.finalized.Store(true)
}

// Finalized reports whether the run's loop has exited; a finalized run is
// read-only and safe to share.
func (r *Run) Finalized() bool { return r.finalized.Load() }

// Series returns the validated time series accumulator.
func (r *Run) Series() *timeseries.Set { return r.series }

// Table renders the validated series as a row-aligned table.
func (r *Run) Table() *timeseries.Table { return r.series.Table() }

// Len returns the count of validated samples.
func (r *Run) Len() int { return r.series.Len() }

// RawLog returns a snapshot of the diagnostic log, invalid samples included.
func (r *Run) RawLog() []RawRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]RawRecord(nil), r.rawLog...)
}

// Start returns the run's monotonic start instant.
func (r *Run) Start() time.Time { return r.start }
