// Package acquisition owns the receive worker, raw ring, tiered buffer,
// and fan-out to an optional sample callback. It is the leaf-most owner in
// the pipeline: the controller owns it, it owns everything beneath it.
package acquisition

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/LoomDeBWiles/cof-tester-sub000/api"
	"github.com/LoomDeBWiles/cof-tester-sub000/internal/queueutil"
	"github.com/LoomDeBWiles/cof-tester-sub000/internal/rdt"
	"github.com/LoomDeBWiles/cof-tester-sub000/internal/ring"
	"github.com/LoomDeBWiles/cof-tester-sub000/internal/tiered"
	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultBufferCapacity is the raw ring's default capacity: one minute at
// 1kHz.
const DefaultBufferCapacity = 60_000

// DefaultReceiveTimeout bounds how long the receive worker blocks on a
// single socket read; it doubles as the upper bound on stop latency.
const DefaultReceiveTimeout = 100 * time.Millisecond

// fanoutQueueCapacity is the depth of the bounded callback fan-out queue.
const fanoutQueueCapacity = 1000

// receiveBatchSize is the max samples drained from the UDP client per
// ReceiveBatch call.
const receiveBatchSize = 100

// SampleCallback receives decimated samples from the fan-out worker.
// Implementations must be fast: the fan-out worker invokes it
// synchronously and a slow callback starves the bounded queue.
type SampleCallback func(api.Sample)

// Config parameterizes a new Engine.
type Config struct {
	IP               string
	Port             int
	BufferCapacity   int
	ReceiveTimeout   time.Duration
	DecimationFactor int
}

// Stats is a point-in-time snapshot of acquisition statistics.
type Stats struct {
	State             State
	RingStats         ring.Stats
	PacketsReceived    uint64
	PacketsLost        uint64
	ReceiveErrors      uint64
	SamplesPerSecond   float64
}

// LossRatio returns PacketsLost/(PacketsReceived+PacketsLost), or 0 if no
// packets have been observed.
func (s Stats) LossRatio() float64 {
	total := s.PacketsReceived + s.PacketsLost
	if total == 0 {
		return 0
	}
	return float64(s.PacketsLost) / float64(total)
}

// Engine owns the datagram client, raw ring, tiered buffer, and the
// dedicated receive and fan-out workers.
type Engine struct {
	cfg Config
	log zerolog.Logger

	Ring  *ring.Ring
	Tiers *tiered.Buffer

	stateMu sync.Mutex
	state   State

	client *rdt.Client

	stopCh        chan struct{}
	receiveDoneCh chan struct{}
	fanoutDoneCh  chan struct{}

	callbackMu sync.Mutex
	callback   SampleCallback
	fanout     *queueutil.Bounded

	packetsReceived atomic.Uint64
	packetsLost     atomic.Uint64
	receiveErrors   atomic.Uint64
	decimationCtr   atomic.Uint64

	rateMu      sync.Mutex
	rateSamples []rateSample
	currentRate atomic.Uint64 // bits of float64, see math.Float64bits
}

type rateSample struct {
	t               time.Time
	packetsReceived uint64
}

// New constructs an Engine in the Stopped state.
func New(cfg Config) *Engine {
	if cfg.BufferCapacity <= 0 {
		cfg.BufferCapacity = DefaultBufferCapacity
	}
	if cfg.ReceiveTimeout <= 0 {
		cfg.ReceiveTimeout = DefaultReceiveTimeout
	}
	if cfg.DecimationFactor <= 0 {
		cfg.DecimationFactor = 1
	}
	return &Engine{
		cfg:    cfg,
		log:    log.With().Str("component", "acquisition").Logger(),
		Ring:   ring.New(cfg.BufferCapacity),
		Tiers:  tiered.NewBuffer(),
		fanout: queueutil.NewBounded(fanoutQueueCapacity),
		state:  StateStopped,
	}
}

// SetCallback installs (or clears, with nil) the fan-out sample callback.
// Takes effect from the next Start.
func (e *Engine) SetCallback(cb SampleCallback) {
	e.callbackMu.Lock()
	defer e.callbackMu.Unlock()
	e.callback = cb
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return e.state
}

// Start transitions Stopped -> Starting -> Running, clearing the ring,
// tiers, and statistics, then spawns the receive worker (and, if a
// callback is registered, the fan-out worker).
func (e *Engine) Start() error {
	e.stateMu.Lock()
	if e.state == StateRunning || e.state == StateStarting {
		e.stateMu.Unlock()
		return fmt.Errorf("acquisition: already %s", e.state)
	}
	e.state = StateStarting
	e.stateMu.Unlock()

	runID := xid.New().String()
	e.log = e.log.With().Str("run_id", runID).Logger()

	e.Ring.Clear()
	e.Tiers.Clear()
	e.packetsReceived.Store(0)
	e.packetsLost.Store(0)
	e.receiveErrors.Store(0)
	e.decimationCtr.Store(0)
	e.rateMu.Lock()
	e.rateSamples = nil
	e.rateMu.Unlock()

	client, err := rdt.Dial(e.cfg.IP, e.cfg.Port)
	if err != nil {
		e.stateMu.Lock()
		e.state = StateError
		e.stateMu.Unlock()
		return err
	}
	if err := client.StartStreaming(0); err != nil {
		client.Close()
		e.stateMu.Lock()
		e.state = StateError
		e.stateMu.Unlock()
		return err
	}
	e.client = client

	e.stopCh = make(chan struct{})
	e.receiveDoneCh = make(chan struct{})
	go e.receiveLoop()

	e.callbackMu.Lock()
	hasCallback := e.callback != nil
	e.callbackMu.Unlock()
	if hasCallback {
		e.fanoutDoneCh = make(chan struct{})
		go e.fanoutLoop()
	}

	e.stateMu.Lock()
	e.state = StateRunning
	e.stateMu.Unlock()
	e.log.Info().Str("ip", e.cfg.IP).Int("port", e.cfg.Port).Msg("acquisition started")
	return nil
}

// Stop is a no-op on a non-running engine. Otherwise it signals both
// workers to stop, joins them with bounded timeouts, and closes the
// client.
func (e *Engine) Stop() error {
	e.stateMu.Lock()
	if e.state != StateRunning {
		e.stateMu.Unlock()
		return nil
	}
	e.state = StateStopping
	e.stateMu.Unlock()

	close(e.stopCh)
	waitClosed(e.receiveDoneCh, 2*time.Second)
	if e.fanoutDoneCh != nil {
		waitClosed(e.fanoutDoneCh, 1*time.Second)
	}
	if e.client != nil {
		_ = e.client.StopStreaming()
		_ = e.client.Close()
	}

	e.stateMu.Lock()
	e.state = StateStopped
	e.stateMu.Unlock()
	e.log.Info().Msg("acquisition stopped")
	return nil
}

// Reset clears an Error state back to Stopped. It is invalid to call while
// Running.
func (e *Engine) Reset() error {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	if e.state == StateRunning {
		return fmt.Errorf("acquisition: cannot reset while running")
	}
	e.state = StateStopped
	return nil
}

func waitClosed(ch <-chan struct{}, timeout time.Duration) {
	select {
	case <-ch:
	case <-time.After(timeout):
	}
}

// Statistics returns a snapshot of current acquisition statistics.
func (e *Engine) Statistics() Stats {
	return Stats{
		State:            e.State(),
		RingStats:        e.Ring.Stats(),
		PacketsReceived:  e.packetsReceived.Load(),
		PacketsLost:      e.packetsLost.Load(),
		ReceiveErrors:    e.receiveErrors.Load(),
		SamplesPerSecond: e.samplesPerSecond(),
	}
}

func (e *Engine) receiveLoop() {
	defer close(e.receiveDoneCh)
	for {
		select {
		case <-e.stopCh:
			return
		default:
		}

		samples, err := e.client.ReceiveBatch(e.cfg.ReceiveTimeout, receiveBatchSize)
		if err != nil {
			e.receiveErrors.Add(1)
			e.log.Debug().Err(err).Msg("receive error")
			time.Sleep(10 * time.Millisecond)
			continue
		}
		for _, s := range samples {
			e.packetsReceived.Add(1)
			e.updateRate()

			k := e.decimationCtr.Add(1)
			if k%uint64(e.cfg.DecimationFactor) != 0 {
				continue
			}
			e.Ring.Append(s)
			e.Tiers.AddSample(s.TMonotonicNs, s.Counts)

			e.callbackMu.Lock()
			hasCallback := e.callback != nil
			e.callbackMu.Unlock()
			if hasCallback {
				e.fanout.TryPush(s)
			}
		}
		e.packetsLost.Store(e.client.Statistics().PacketsLost)
	}
}

func (e *Engine) fanoutLoop() {
	defer close(e.fanoutDoneCh)
	for {
		select {
		case <-e.stopCh:
			return
		default:
		}
		v, ok := e.fanout.PopWait(100 * time.Millisecond)
		if !ok {
			continue
		}
		sample := v.(api.Sample)
		e.callbackMu.Lock()
		cb := e.callback
		e.callbackMu.Unlock()
		if cb != nil {
			cb(sample)
		}
	}
}

// updateRate maintains a rolling 2-second window of (t, packetsReceived)
// samples and recomputes the instantaneous rate as
// (countNew-countOld)/(tNew-tOld).
func (e *Engine) updateRate() {
	now := time.Now()
	received := e.packetsReceived.Load()

	e.rateMu.Lock()
	defer e.rateMu.Unlock()

	e.rateSamples = append(e.rateSamples, rateSample{t: now, packetsReceived: received})
	cutoff := now.Add(-2 * time.Second)
	i := 0
	for i < len(e.rateSamples) && e.rateSamples[i].t.Before(cutoff) {
		i++
	}
	e.rateSamples = e.rateSamples[i:]

	if len(e.rateSamples) < 2 {
		return
	}
	oldest := e.rateSamples[0]
	newest := e.rateSamples[len(e.rateSamples)-1]
	dt := newest.t.Sub(oldest.t).Seconds()
	if dt <= 0 {
		return
	}
	rate := float64(newest.packetsReceived-oldest.packetsReceived) / dt
	e.storeRate(rate)
}
