package diagnostics

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Target is the duck-typed consumer a Poller pushes snapshot fields into.
type Target interface {
	UpdateSampleRate(rateHz float64)
	UpdateBufferStatus(fillPercent float64)
	UpdatePacketLoss(count uint64)
	UpdateDroppedCount(count uint64)
	ShowWarning(message string)
	ClearWarning()
}

// SnapshotProvider produces the next Snapshot to push, or (_, false) when
// there is nothing to show this tick.
type SnapshotProvider func() (Snapshot, bool)

// Poller periodically pulls a Snapshot and applies it to a Target. If the
// target panics, the poller stops rather than loop against a broken
// consumer.
type Poller struct {
	target   Target
	provider SnapshotProvider
	interval time.Duration
	log      zerolog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewPoller constructs a Poller. interval must be positive.
func NewPoller(target Target, provider SnapshotProvider, interval time.Duration) (*Poller, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("diagnostics: interval must be positive, got %s", interval)
	}
	return &Poller{
		target:   target,
		provider: provider,
		interval: interval,
		log:      log.With().Str("component", "diagnostics").Logger(),
	}, nil
}

// Start begins periodic polling. It is a no-op if already running.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	go p.loop(p.stopCh, p.doneCh)
}

// Stop halts polling and waits for the loop goroutine to exit.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	stopCh := p.stopCh
	doneCh := p.doneCh
	p.mu.Unlock()

	close(stopCh)
	<-doneCh
}

// IsRunning reports whether the poller is currently active.
func (p *Poller) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Poller) loop(stopCh, doneCh chan struct{}) {
	defer close(doneCh)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if !p.tick() {
				p.stopFromWithinLoop()
				return
			}
		}
	}
}

// stopFromWithinLoop marks the poller stopped without trying to close
// stopCh a second time (Stop already owns that channel's lifecycle).
func (p *Poller) stopFromWithinLoop() {
	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
}

// tick pulls one snapshot and applies it, catching a panicking target so a
// single bad consumer never wedges the poller into a crash loop. Returns
// false if polling should stop.
func (p *Poller) tick() (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Warn().Interface("panic", r).Msg("diagnostics target panicked, stopping poller")
			p.bestEffortWarning(fmt.Sprintf("Diagnostics update stopped: %v", r))
			ok = false
		}
	}()

	snapshot, show := p.provider()
	if !show {
		return true
	}

	p.target.UpdateSampleRate(snapshot.SampleRateHz)
	p.target.UpdateBufferStatus(snapshot.BufferFillPercent)
	p.target.UpdatePacketLoss(snapshot.PacketsLost)
	p.target.UpdateDroppedCount(snapshot.DroppedByApp)
	if snapshot.WarningMessage != "" {
		p.target.ShowWarning(snapshot.WarningMessage)
	} else {
		p.target.ClearWarning()
	}
	return true
}

func (p *Poller) bestEffortWarning(message string) {
	defer func() { _ = recover() }()
	p.target.ShowWarning(message)
}
