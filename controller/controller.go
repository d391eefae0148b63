// Package controller is the top-level facade: it wires the acquisition
// engine, the processing engine, the async file writer, and the bias
// service into one runnable pipeline, and supervises its own
// coordination goroutines (the logger drain and the calibration reload
// watcher) with an errgroup.Group layered on top of each component's own
// dedicated-worker stop signal. The diagnostics poller is started and
// stopped separately, through StartDiagnosticsPoller/StopDiagnosticsPoller.
package controller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/LoomDeBWiles/cof-tester-sub000/api"
	"github.com/LoomDeBWiles/cof-tester-sub000/internal/acquisition"
	"github.com/LoomDeBWiles/cof-tester-sub000/internal/bias"
	"github.com/LoomDeBWiles/cof-tester-sub000/internal/calibration"
	"github.com/LoomDeBWiles/cof-tester-sub000/internal/diagnostics"
	"github.com/LoomDeBWiles/cof-tester-sub000/internal/logformat"
	"github.com/LoomDeBWiles/cof-tester-sub000/internal/processing"
	"github.com/LoomDeBWiles/cof-tester-sub000/internal/writer"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Config parameterizes a Controller. OutputPath == "" disables logging to
// disk; acquisition, processing, and visualization still run.
type Config struct {
	SensorIP string
	UDPPort  int
	TCPPort  int
	HTTPPort int

	BufferCapacity   int
	DecimationFactor int
	CalibrationTimeout time.Duration

	FilterEnabled      bool
	FilterCutoffHz     float64
	FilterSampleRateHz float64

	OutputPath      string
	OutputFormat    logformat.Format
	RotateSizeBytes int64
	RotateInterval  time.Duration

	// CalibrationRefreshInterval, if positive, re-fetches calibration from
	// the sensor on that interval and pushes any change into the
	// processing engine. Zero disables the watcher.
	CalibrationRefreshInterval time.Duration

	VisualizationCallback processing.VisualizationCallback
}

// DefaultConfig returns a Config with the same defaults the component
// packages themselves apply.
func DefaultConfig(sensorIP string) Config {
	return Config{
		SensorIP:           sensorIP,
		UDPPort:            49152,
		TCPPort:            49151,
		HTTPPort:           80,
		BufferCapacity:     acquisition.DefaultBufferCapacity,
		DecimationFactor:   1,
		CalibrationTimeout: 2 * time.Second,
		FilterCutoffHz:     10.0,
		FilterSampleRateHz: 1000.0,
		OutputFormat:       logformat.FormatCSV,
	}
}

// Controller owns one complete acquisition-through-logging pipeline.
type Controller struct {
	cfg Config
	log zerolog.Logger

	acq   *acquisition.Engine
	proc  *processing.Engine
	wr    *writer.Writer
	bias  *bias.Service
	coll  *diagnostics.Collector
	poll  *diagnostics.Poller

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	group   *errgroup.Group
}

// New wires a Controller's components without starting anything. Fetching
// calibration and opening sockets happens in Start.
func New(cfg Config) (*Controller, error) {
	if cfg.SensorIP == "" {
		return nil, fmt.Errorf("controller: SensorIP is required")
	}
	if cfg.CalibrationTimeout <= 0 {
		cfg.CalibrationTimeout = 2 * time.Second
	}

	biasSvc := bias.New(bias.Config{IP: cfg.SensorIP, UDPPort: cfg.UDPPort, TCPPort: cfg.TCPPort, Timeout: cfg.CalibrationTimeout})

	c := &Controller{
		cfg:  cfg,
		log:  log.With().Str("component", "controller").Logger(),
		bias: biasSvc,
	}
	return c, nil
}

// Start fetches calibration, builds the acquisition/processing/writer
// stack, and starts every component plus the controller's own supervised
// goroutines. It returns once acquisition is streaming.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return fmt.Errorf("controller: already started")
	}

	cal, err := calibration.GetWithFallback(ctx, c.cfg.SensorIP, c.cfg.HTTPPort, c.cfg.TCPPort, c.cfg.CalibrationTimeout)
	if err != nil {
		return err
	}

	proc, err := processing.New(processing.Config{
		Calibration:        cal,
		FilterCutoffHz:     c.cfg.FilterCutoffHz,
		FilterSampleRateHz: c.cfg.FilterSampleRateHz,
		FilterEnabled:      c.cfg.FilterEnabled,
	})
	if err != nil {
		return err
	}
	proc.SetVisualizationCallback(c.cfg.VisualizationCallback)
	c.proc = proc

	var wr *writer.Writer
	if c.cfg.OutputPath != "" {
		wr = writer.New(writer.Config{
			Path:            c.cfg.OutputPath,
			Header: logformat.MetadataHeader(c.cfg.OutputFormat, logformat.MetadataHeaderOptions{
				SerialNumber:    cal.SerialNumber,
				FirmwareVersion: cal.FirmwareVersion,
				Calibration:     &cal,
			}),
			LineTerminator:  c.cfg.OutputFormat.LineTerminator(),
			Formatter:       func(row any) string { return logformat.FormatRow(c.cfg.OutputFormat, row.(api.Sample)) },
			RotateSizeBytes: c.cfg.RotateSizeBytes,
			RotateInterval:  c.cfg.RotateInterval,
		})
		if err := wr.Start(); err != nil {
			return err
		}
	}
	c.wr = wr

	acq := acquisition.New(acquisition.Config{
		IP:               c.cfg.SensorIP,
		Port:             c.cfg.UDPPort,
		BufferCapacity:   c.cfg.BufferCapacity,
		DecimationFactor: c.cfg.DecimationFactor,
	})
	acq.SetCallback(func(s api.Sample) { proc.ProcessSample(s) })
	if err := acq.Start(); err != nil {
		if wr != nil {
			wr.Stop()
		}
		return err
	}
	c.acq = acq

	c.coll = diagnostics.NewCollector(acq, proc, wr)

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	group, gctx := errgroup.WithContext(ctx)
	c.group = group

	if wr != nil {
		group.Go(func() error { return c.runLoggerDrain(gctx) })
	}
	if c.cfg.CalibrationRefreshInterval > 0 {
		group.Go(func() error { return c.runCalibrationWatcher(gctx) })
	}

	c.started = true
	c.log.Info().Str("sensor_ip", c.cfg.SensorIP).Msg("controller started")
	return nil
}

// Stop halts acquisition, drains and stops the writer, and joins the
// controller's own goroutines.
func (c *Controller) Stop() {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return
	}
	c.started = false
	acq, wr, cancel, group := c.acq, c.wr, c.cancel, c.group
	c.mu.Unlock()

	if acq != nil {
		_ = acq.Stop()
	}
	if cancel != nil {
		cancel()
	}
	if group != nil {
		_ = group.Wait()
	}
	if wr != nil {
		wr.Stop()
	}
	c.log.Info().Msg("controller stopped")
}

// runLoggerDrain pumps processed samples off the processing engine's
// logger queue and into the writer until ctx is cancelled.
func (c *Controller) runLoggerDrain(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		v, ok := c.proc.LoggerQueue.PopWait(100 * time.Millisecond)
		if !ok {
			continue
		}
		c.wr.Write(v)
	}
}

// runCalibrationWatcher periodically re-fetches calibration and pushes any
// change into the processing engine, so a mid-run recalibration on the
// sensor takes effect without a restart.
func (c *Controller) runCalibrationWatcher(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.CalibrationRefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			cal, err := calibration.GetWithFallback(ctx, c.cfg.SensorIP, c.cfg.HTTPPort, c.cfg.TCPPort, c.cfg.CalibrationTimeout)
			if err != nil {
				c.log.Warn().Err(err).Msg("calibration refresh failed")
				continue
			}
			if cal != c.proc.Calibration() {
				c.proc.SetCalibration(cal)
				c.log.Info().Msg("calibration refreshed")
			}
		}
	}
}

// ApplyBias drives the bias service and, when it captures a new soft-zero
// offset (ModeSoft, or ModeDevice with a fallback), propagates it into the
// processing engine so ProcessSample actually applies it.
func (c *Controller) ApplyBias(mode bias.Mode, currentCounts *[6]int32, fallback bool) error {
	if err := c.bias.ApplyBias(mode, currentCounts, fallback); err != nil {
		return err
	}
	if offsets, ok := c.bias.SoftZeroOffset(); ok {
		c.mu.Lock()
		proc := c.proc
		c.mu.Unlock()
		if proc != nil {
			proc.SetOffsets(offsets)
		}
	}
	return nil
}

// Statistics aggregates acquisition, processing, and (if configured)
// writer statistics into one snapshot.
type Statistics struct {
	Acquisition acquisition.Stats
	Processing  processing.Stats
	Writer      writer.Stats
	HasWriter   bool
}

// Statistics returns a snapshot across every wired component.
func (c *Controller) Statistics() Statistics {
	c.mu.Lock()
	acq, proc, wr := c.acq, c.proc, c.wr
	c.mu.Unlock()

	var stats Statistics
	if acq != nil {
		stats.Acquisition = acq.Statistics()
	}
	if proc != nil {
		stats.Processing = proc.Statistics()
	}
	if wr != nil {
		stats.Writer = wr.Statistics()
		stats.HasWriter = true
	}
	return stats
}

// Collector returns the Prometheus collector wrapping this controller's
// components, valid after Start.
func (c *Controller) Collector() *diagnostics.Collector {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.coll
}

// StartDiagnosticsPoller begins pushing periodic Snapshot updates to
// target. It is independent of Start/Stop and may be attached any time
// after Start.
func (c *Controller) StartDiagnosticsPoller(target diagnostics.Target, interval time.Duration, droppedByApp func() uint64) error {
	c.mu.Lock()
	acq := c.acq
	c.mu.Unlock()
	if acq == nil {
		return fmt.Errorf("controller: not started")
	}

	provider := func() (diagnostics.Snapshot, bool) {
		var dropped uint64
		if droppedByApp != nil {
			dropped = droppedByApp()
		}
		return diagnostics.SnapshotFromAcquisition(acq.Statistics(), dropped, false)
	}
	poller, err := diagnostics.NewPoller(target, provider, interval)
	if err != nil {
		return err
	}
	poller.Start()

	c.mu.Lock()
	c.poll = poller
	c.mu.Unlock()
	return nil
}

// StopDiagnosticsPoller stops a poller started by StartDiagnosticsPoller,
// if any.
func (c *Controller) StopDiagnosticsPoller() {
	c.mu.Lock()
	poller := c.poll
	c.poll = nil
	c.mu.Unlock()
	if poller != nil {
		poller.Stop()
	}
}
