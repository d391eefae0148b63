// Package writer implements the asynchronous, bounded-queue file writer:
// a dedicated worker drains formatted rows, batches them, flushes on a
// timer or batch-size threshold, and rotates output files by size or time.
// The producer-facing Write call never blocks.
package writer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/LoomDeBWiles/cof-tester-sub000/api"
	"github.com/LoomDeBWiles/cof-tester-sub000/internal/logname"
	"github.com/LoomDeBWiles/cof-tester-sub000/internal/queueutil"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"
)

// Defaults mirror a 1kHz acquisition sustaining ~10s of burst in queue.
const (
	DefaultQueueCapacity = 10_000
	DefaultFlushInterval = 250 * time.Millisecond
	flushBatchThreshold  = 1000
	maxFlushLatencySamples = 100
)

// RowFormatter renders one row to a line, without a trailing terminator.
type RowFormatter func(row any) string

// Config parameterizes a new Writer.
type Config struct {
	Path            string
	QueueCapacity   int
	FlushInterval   time.Duration
	Header          string
	LineTerminator  string
	Formatter       RowFormatter
	RotateSizeBytes int64
	RotateInterval  time.Duration
}

// Stats is a point-in-time snapshot of writer statistics.
type Stats struct {
	State              State
	SamplesWritten     uint64
	SamplesDropped     uint64
	BytesWritten       uint64
	Flushes            uint64
	FlushLatencyAvgMs  float64
	QueueSize          int
	QueueCapacity      int
}

// DropRatio returns SamplesDropped/(SamplesWritten+SamplesDropped), or 0.
func (s Stats) DropRatio() float64 {
	total := s.SamplesWritten + s.SamplesDropped
	if total == 0 {
		return 0
	}
	return float64(s.SamplesDropped) / float64(total)
}

// Writer is the asynchronous, rotation-aware file writer.
type Writer struct {
	cfg Config
	log zerolog.Logger

	queue *queueutil.Bounded

	stateMu sync.Mutex
	state   State
	lastErr error

	stopCh   chan struct{}
	workerWG sync.WaitGroup

	samplesWritten uint64
	samplesDropped uint64
	bytesWritten   uint64
	flushes        uint64

	latencyMu sync.Mutex
	latencies []float64

	// writer-goroutine-owned, never touched by the producer
	file           *os.File
	partNumber     int
	rotating       bool
	bytesThisFile  int64
	lastRotationAt time.Time
}

// New constructs a Writer in the Stopped state.
func New(cfg Config) *Writer {
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = DefaultQueueCapacity
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}
	if cfg.LineTerminator == "" {
		cfg.LineTerminator = "\n"
	}
	if cfg.Formatter == nil {
		cfg.Formatter = func(row any) string { return fmt.Sprintf("%v", row) }
	}
	return &Writer{
		cfg:      cfg,
		log:      log.With().Str("component", "writer").Logger(),
		queue:    queueutil.NewBounded(cfg.QueueCapacity),
		state:    StateStopped,
		rotating: cfg.RotateSizeBytes > 0 || cfg.RotateInterval > 0,
	}
}

// State returns the current lifecycle state.
func (w *Writer) State() State {
	w.stateMu.Lock()
	defer w.stateMu.Unlock()
	return w.state
}

// LastError returns the error that drove the writer into the Error state,
// or nil.
func (w *Writer) LastError() error {
	w.stateMu.Lock()
	defer w.stateMu.Unlock()
	return w.lastErr
}

// Start opens the output file and spawns the writer worker.
func (w *Writer) Start() error {
	w.stateMu.Lock()
	if w.state == StateRunning {
		w.stateMu.Unlock()
		return fmt.Errorf("writer: already running")
	}
	w.state = StateRunning
	w.lastErr = nil
	w.stateMu.Unlock()

	w.samplesWritten = 0
	w.samplesDropped = 0
	w.bytesWritten = 0
	w.flushes = 0
	w.latencyMu.Lock()
	w.latencies = nil
	w.latencyMu.Unlock()
	w.partNumber = 0
	w.bytesThisFile = 0

	if err := os.MkdirAll(filepath.Dir(w.cfg.Path), 0o755); err != nil {
		w.stateMu.Lock()
		w.state = StateError
		w.lastErr = err
		w.stateMu.Unlock()
		return err
	}

	w.stopCh = make(chan struct{})
	w.workerWG.Add(1)
	go w.workerLoop()
	return nil
}

// Stop signals the worker to drain, final-flush, and durably close,
// waiting up to 2s.
func (w *Writer) Stop() {
	w.stateMu.Lock()
	if w.state != StateRunning {
		w.stateMu.Unlock()
		return
	}
	w.state = StateStopping
	w.stateMu.Unlock()

	close(w.stopCh)
	done := make(chan struct{})
	go func() {
		w.workerWG.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		w.log.Warn().Msg("writer worker join timed out")
	}

	w.stateMu.Lock()
	if w.state == StateStopping {
		w.state = StateStopped
	}
	w.stateMu.Unlock()
}

// Write tries to enqueue row, returning false (and counting a drop) if the
// writer is not running or the queue is full. Never blocks.
func (w *Writer) Write(row any) bool {
	if w.State() != StateRunning {
		atomic.AddUint64(&w.samplesDropped, 1)
		return false
	}
	if w.queue.TryPush(row) {
		return true
	}
	atomic.AddUint64(&w.samplesDropped, 1)
	return false
}

// Statistics returns a snapshot of writer statistics.
func (w *Writer) Statistics() Stats {
	w.latencyMu.Lock()
	var avg float64
	if n := len(w.latencies); n > 0 {
		var sum float64
		for _, v := range w.latencies {
			sum += v
		}
		avg = sum / float64(n)
	}
	w.latencyMu.Unlock()

	return Stats{
		State:             w.State(),
		SamplesWritten:    atomic.LoadUint64(&w.samplesWritten),
		SamplesDropped:    atomic.LoadUint64(&w.samplesDropped),
		BytesWritten:      atomic.LoadUint64(&w.bytesWritten),
		Flushes:           atomic.LoadUint64(&w.flushes),
		FlushLatencyAvgMs: avg,
		QueueSize:         w.queue.Len(),
		QueueCapacity:     w.queue.Capacity(),
	}
}

func (w *Writer) workerLoop() {
	defer w.workerWG.Done()

	if err := w.openNextFile(); err != nil {
		w.fail(err)
		return
	}
	defer w.closeCurrentFile()

	if err := w.writeHeader(); err != nil {
		w.fail(err)
		return
	}

	var buffer []string
	lastFlush := time.Now()

	for {
		select {
		case <-w.stopCh:
			if len(buffer) > 0 {
				if err := w.flushBuffer(buffer); err != nil {
					w.fail(err)
					return
				}
			}
			w.drainRemaining()
			return
		default:
		}

		elapsed := time.Since(lastFlush)
		timeout := w.cfg.FlushInterval - elapsed
		if timeout < time.Millisecond {
			timeout = time.Millisecond
		}

		v, ok := w.queue.PopWait(timeout)
		if ok {
			if err := w.checkRotation(); err != nil {
				w.fail(err)
				return
			}
			buffer = append(buffer, w.cfg.Formatter(v)+w.cfg.LineTerminator)
		}

		if time.Since(lastFlush) >= w.cfg.FlushInterval || len(buffer) >= flushBatchThreshold {
			if len(buffer) > 0 {
				if err := w.flushBuffer(buffer); err != nil {
					w.fail(err)
					return
				}
				buffer = nil
			}
			lastFlush = time.Now()
		}
	}
}

func (w *Writer) fail(err error) {
	w.stateMu.Lock()
	w.state = StateError
	w.lastErr = err
	w.stateMu.Unlock()
	w.log.Error().Err(err).Msg("writer failed")
}

func (w *Writer) drainRemaining() {
	for {
		v, ok := w.queue.Pop()
		if !ok {
			return
		}
		line := w.cfg.Formatter(v) + w.cfg.LineTerminator
		if _, err := w.file.WriteString(line); err != nil {
			w.fail(classifyIOError(err))
			return
		}
		w.bytesThisFile += int64(len(line))
		atomic.AddUint64(&w.samplesWritten, 1)
		atomic.AddUint64(&w.bytesWritten, uint64(len(line)))
	}
}

func (w *Writer) flushBuffer(buffer []string) error {
	start := time.Now()
	data := strings.Join(buffer, "")
	if _, err := w.file.WriteString(data); err != nil {
		return classifyIOError(err)
	}
	if err := w.file.Sync(); err != nil {
		return classifyIOError(err)
	}
	elapsedMs := float64(time.Since(start).Microseconds()) / 1000.0

	atomic.AddUint64(&w.samplesWritten, uint64(len(buffer)))
	atomic.AddUint64(&w.bytesWritten, uint64(len(data)))
	atomic.AddUint64(&w.flushes, 1)
	w.bytesThisFile += int64(len(data))

	w.latencyMu.Lock()
	w.latencies = append(w.latencies, elapsedMs)
	if len(w.latencies) > maxFlushLatencySamples {
		w.latencies = w.latencies[len(w.latencies)-maxFlushLatencySamples:]
	}
	w.latencyMu.Unlock()
	return nil
}

// checkRotation closes and reopens the output file if a size or time
// rotation boundary has been crossed since the last rotation.
func (w *Writer) checkRotation() error {
	if !w.rotating {
		return nil
	}
	sizeExceeded := w.cfg.RotateSizeBytes > 0 && w.bytesThisFile >= w.cfg.RotateSizeBytes
	timeExceeded := w.cfg.RotateInterval > 0 && time.Since(w.lastRotationAt) >= w.cfg.RotateInterval
	if !sizeExceeded && !timeExceeded {
		return nil
	}
	w.closeCurrentFile()
	if err := w.openNextFile(); err != nil {
		return err
	}
	return w.writeHeader()
}

func (w *Writer) currentPath() (string, error) {
	ext := strings.TrimPrefix(filepath.Ext(w.cfg.Path), ".")
	base := strings.TrimSuffix(filepath.Base(w.cfg.Path), filepath.Ext(w.cfg.Path))
	dir := filepath.Dir(w.cfg.Path)
	if !w.rotating {
		return w.cfg.Path, nil
	}
	w.partNumber++
	return logname.GenerateFilepath(dir, ext, base, time.Now(), w.partNumber)
}

func (w *Writer) openNextFile() error {
	path, err := w.currentPath()
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return classifyIOError(err)
	}
	w.file = f
	w.bytesThisFile = 0
	w.lastRotationAt = time.Now()
	return nil
}

func (w *Writer) writeHeader() error {
	if w.cfg.Header == "" {
		return nil
	}
	header := w.cfg.Header
	if !strings.HasSuffix(header, "\n") {
		header += w.cfg.LineTerminator
	}
	n, err := w.file.WriteString(header)
	if err != nil {
		return classifyIOError(err)
	}
	w.bytesThisFile += int64(n)
	atomic.AddUint64(&w.bytesWritten, uint64(n))
	return nil
}

func (w *Writer) closeCurrentFile() {
	if w.file == nil {
		return
	}
	durableClose(w.file)
	w.file = nil
}

// durableClose flushes and fsyncs the file, then fsyncs its parent
// directory where the platform supports it, before closing.
func durableClose(f *os.File) {
	_ = f.Sync()
	if dir, err := os.Open(filepath.Dir(f.Name())); err == nil {
		_ = unix.Fsync(int(dir.Fd()))
		_ = dir.Close()
	}
	_ = f.Close()
}

func classifyIOError(err error) error {
	if errors.Is(err, syscall.ENOSPC) {
		return api.Wrap(api.ErrDiskFull, err, "")
	}
	return api.Wrap(api.ErrFileWrite, err, "")
}
