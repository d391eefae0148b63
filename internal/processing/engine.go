// Package processing turns raw samples into calibrated, filtered
// measurements: soft-zero subtraction, counts-to-SI conversion, and an
// optional per-channel IIR low-pass, then fans out to a visualization
// callback and a bounded logger queue.
package processing

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/LoomDeBWiles/cof-tester-sub000/api"
	"github.com/LoomDeBWiles/cof-tester-sub000/internal/filter"
	"github.com/LoomDeBWiles/cof-tester-sub000/internal/queueutil"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultLoggerQueueCapacity bounds the processed-sample queue consumed by
// the writer; sized so a typical 10s acquisition burst fits without drop.
const DefaultLoggerQueueCapacity = 20_000

// DefaultInputQueueCapacity bounds the async submit_sample path.
const DefaultInputQueueCapacity = 2_000

// VisualizationCallback receives every processed sample synchronously; it
// must be fast, as the processing worker invokes it inline.
type VisualizationCallback func(api.Sample)

// Config parameterizes a new Engine.
type Config struct {
	Calibration        api.CalibrationInfo
	FilterCutoffHz     float64
	FilterSampleRateHz float64
	FilterEnabled      bool
	LoggerQueueCapacity int
	InputQueueCapacity  int
}

// Stats is a point-in-time snapshot of processing statistics.
type Stats struct {
	SamplesProcessed    uint64
	SamplesDroppedInput uint64
	SamplesDroppedLogger uint64
}

// Engine applies soft-zero subtraction, SI conversion, and filtering to a
// sample stream, in order, and fans the result out to a visualization
// callback and a logger queue.
type Engine struct {
	log zerolog.Logger

	calMu sync.RWMutex
	cal   api.CalibrationInfo

	offsetsMu sync.RWMutex
	offsets   api.SoftZeroOffsets

	filterMu sync.Mutex
	pipeline *filter.Pipeline

	vizMu sync.RWMutex
	viz   VisualizationCallback

	LoggerQueue *queueutil.Bounded

	input     *queueutil.Bounded
	stopCh    chan struct{}
	workerWG  sync.WaitGroup
	running   atomic.Bool

	samplesProcessed     atomic.Uint64
	samplesDroppedInput  atomic.Uint64
	samplesDroppedLogger atomic.Uint64
}

// New constructs an Engine. The filter is built eagerly (even if disabled)
// so SetFilterEnabled has coefficients ready.
func New(cfg Config) (*Engine, error) {
	if cfg.LoggerQueueCapacity <= 0 {
		cfg.LoggerQueueCapacity = DefaultLoggerQueueCapacity
	}
	if cfg.InputQueueCapacity <= 0 {
		cfg.InputQueueCapacity = DefaultInputQueueCapacity
	}
	cutoff := cfg.FilterCutoffHz
	rate := cfg.FilterSampleRateHz
	if cutoff <= 0 {
		cutoff = 10.0
	}
	if rate <= 0 {
		rate = 1000.0
	}
	pipeline, err := filter.NewPipeline(cutoff, rate)
	if err != nil {
		return nil, err
	}
	pipeline.SetEnabled(cfg.FilterEnabled)

	return &Engine{
		log:         log.With().Str("component", "processing").Logger(),
		cal:         cfg.Calibration,
		pipeline:    pipeline,
		LoggerQueue: queueutil.NewBounded(cfg.LoggerQueueCapacity),
		input:       queueutil.NewBounded(cfg.InputQueueCapacity),
	}, nil
}

// SetCalibration atomically swaps the calibration used for SI conversion.
func (e *Engine) SetCalibration(cal api.CalibrationInfo) {
	e.calMu.Lock()
	defer e.calMu.Unlock()
	e.cal = cal
}

// Calibration returns the current calibration.
func (e *Engine) Calibration() api.CalibrationInfo {
	e.calMu.RLock()
	defer e.calMu.RUnlock()
	return e.cal
}

// SetOffsets atomically swaps the soft-zero offsets.
func (e *Engine) SetOffsets(o api.SoftZeroOffsets) {
	e.offsetsMu.Lock()
	defer e.offsetsMu.Unlock()
	e.offsets = o
}

// Offsets returns the current soft-zero offsets.
func (e *Engine) Offsets() api.SoftZeroOffsets {
	e.offsetsMu.RLock()
	defer e.offsetsMu.RUnlock()
	return e.offsets
}

// SetFilterEnabled enables or disables the IIR stage; enabling re-primes on
// the next sample.
func (e *Engine) SetFilterEnabled(enabled bool) {
	e.filterMu.Lock()
	defer e.filterMu.Unlock()
	e.pipeline.SetEnabled(enabled)
}

// ResetFilter zeroes filter state; the next sample re-primes.
func (e *Engine) ResetFilter() {
	e.filterMu.Lock()
	defer e.filterMu.Unlock()
	e.pipeline.Reset()
}

// SetVisualizationCallback installs (or clears, with nil) the synchronous
// per-sample callback.
func (e *Engine) SetVisualizationCallback(cb VisualizationCallback) {
	e.vizMu.Lock()
	defer e.vizMu.Unlock()
	e.viz = cb
}

// ProcessSample runs one sample through soft-zero subtraction, SI
// conversion, and filtering synchronously, then fans out. Returns the
// processed sample.
func (e *Engine) ProcessSample(s api.Sample) api.Sample {
	offsets := e.Offsets()
	adjusted := offsets.Apply(s.Counts)

	cal := e.Calibration()
	forceN, torqueNm := cal.ConvertCountsToSI(adjusted)

	e.filterMu.Lock()
	filtered := e.pipeline.Apply([6]float64{
		forceN[0], forceN[1], forceN[2],
		torqueNm[0], torqueNm[1], torqueNm[2],
	})
	e.filterMu.Unlock()

	out := s.WithConverted(adjusted,
		[3]float64{filtered[0], filtered[1], filtered[2]},
		[3]float64{filtered[3], filtered[4], filtered[5]},
	)

	e.samplesProcessed.Add(1)

	e.vizMu.RLock()
	viz := e.viz
	e.vizMu.RUnlock()
	if viz != nil {
		viz(out)
	}

	if !e.LoggerQueue.TryPush(out) {
		e.samplesDroppedLogger.Add(1)
	}

	return out
}

// SubmitSample enqueues s for asynchronous processing by Start's worker.
// Returns false (and counts a drop) if the input queue is full.
func (e *Engine) SubmitSample(s api.Sample) bool {
	if e.input.TryPush(s) {
		return true
	}
	e.samplesDroppedInput.Add(1)
	return false
}

// Start spawns the worker draining SubmitSample's input queue. It is a
// no-op if already running.
func (e *Engine) Start() {
	if !e.running.CompareAndSwap(false, true) {
		return
	}
	e.stopCh = make(chan struct{})
	e.workerWG.Add(1)
	go e.worker()
}

// Stop signals the worker to exit, waiting up to 2s. Samples still in the
// input queue when the worker sees the signal are not processed.
func (e *Engine) Stop() {
	if !e.running.CompareAndSwap(true, false) {
		return
	}
	close(e.stopCh)
	done := make(chan struct{})
	go func() {
		e.workerWG.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		e.log.Warn().Msg("processing worker join timed out")
	}
}

func (e *Engine) worker() {
	defer e.workerWG.Done()
	for {
		select {
		case <-e.stopCh:
			return
		default:
		}
		v, ok := e.input.PopWait(100 * time.Millisecond)
		if !ok {
			continue
		}
		e.ProcessSample(v.(api.Sample))
	}
}

// Statistics returns a snapshot of processing statistics.
func (e *Engine) Statistics() Stats {
	return Stats{
		SamplesProcessed:     e.samplesProcessed.Load(),
		SamplesDroppedInput:  e.samplesDroppedInput.Load(),
		SamplesDroppedLogger: e.samplesDroppedLogger.Load(),
	}
}
