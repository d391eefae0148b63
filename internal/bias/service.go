// Package bias implements device-level hardware tare (UDP primary, TCP
// fallback) and app-level soft-zero capture/apply.
package bias

import (
	"fmt"
	"sync"
	"time"

	"github.com/LoomDeBWiles/cof-tester-sub000/api"
	"github.com/LoomDeBWiles/cof-tester-sub000/internal/rdt"
	"github.com/LoomDeBWiles/cof-tester-sub000/internal/tcpcmd"
)

// Mode selects how ApplyBias zeroes the sensor.
type Mode int

const (
	ModeDevice Mode = iota
	ModeSoft
)

// Config parameterizes a new Service.
type Config struct {
	IP      string
	UDPPort int
	TCPPort int
	Timeout time.Duration
}

// Service tracks an active soft-zero offset and drives device-level tare.
type Service struct {
	ip      string
	udpPort int
	tcpPort int
	timeout time.Duration

	mu       sync.RWMutex
	softZero *api.SoftZeroOffsets
}

// New constructs a Service with the given sensor address.
func New(cfg Config) *Service {
	if cfg.UDPPort <= 0 {
		cfg.UDPPort = 49152
	}
	if cfg.TCPPort <= 0 {
		cfg.TCPPort = 49151
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	return &Service{ip: cfg.IP, udpPort: cfg.UDPPort, tcpPort: cfg.TCPPort, timeout: cfg.Timeout}
}

// HasSoftZero reports whether a soft-zero offset is currently active.
func (s *Service) HasSoftZero() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.softZero != nil
}

// SoftZeroOffset returns the active soft-zero offset, or (zero, false).
func (s *Service) SoftZeroOffset() (api.SoftZeroOffsets, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.softZero == nil {
		return api.SoftZeroOffsets{}, false
	}
	return *s.softZero, true
}

// ApplyDeviceBias sends a hardware tare: SET_BIAS over UDP first, falling
// back to the TCP stream-form tare on failure. Clears any active soft zero
// on success.
func (s *Service) ApplyDeviceBias() error {
	if err := s.sendUDPBias(); err == nil {
		s.clearSoftZeroLocked()
		return nil
	} else if tcpErr := s.sendTCPBias(); tcpErr == nil {
		s.clearSoftZeroLocked()
		return nil
	} else {
		return api.Wrap(api.ErrBias, nil, fmt.Sprintf("UDP: %s; TCP: %s", err, tcpErr))
	}
}

func (s *Service) sendUDPBias() error {
	client, err := rdt.Dial(s.ip, s.udpPort)
	if err != nil {
		return err
	}
	defer client.Close()
	return client.SendBias()
}

func (s *Service) sendTCPBias() error {
	client := tcpcmd.New(s.ip, s.tcpPort, s.timeout)
	defer client.Close()
	return client.SendBias()
}

func (s *Service) clearSoftZeroLocked() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.softZero = nil
}

// ApplySoftZero captures currentCounts as the active offset, replacing any
// prior value.
func (s *Service) ApplySoftZero(currentCounts [6]int32) {
	offsets := api.SoftZeroOffsets{
		ForceCounts:  [3]int32{currentCounts[0], currentCounts[1], currentCounts[2]},
		TorqueCounts: [3]int32{currentCounts[3], currentCounts[4], currentCounts[5]},
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.softZero = &offsets
}

// ClearSoftZero clears any active soft-zero offset.
func (s *Service) ClearSoftZero() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.softZero = nil
}

// ApplyBias applies bias per mode. For ModeDevice, a failure falls back to
// soft-zero capture from currentCounts when fallback is true and
// currentCounts is non-nil; otherwise the device error is returned. For
// ModeSoft, currentCounts is required.
func (s *Service) ApplyBias(mode Mode, currentCounts *[6]int32, fallback bool) error {
	switch mode {
	case ModeDevice:
		err := s.ApplyDeviceBias()
		if err == nil {
			return nil
		}
		if fallback && currentCounts != nil {
			s.ApplySoftZero(*currentCounts)
			return nil
		}
		return err
	case ModeSoft:
		if currentCounts == nil {
			return fmt.Errorf("bias: current counts required for soft bias mode")
		}
		s.ApplySoftZero(*currentCounts)
		return nil
	default:
		return fmt.Errorf("bias: unknown mode %v", mode)
	}
}

// AdjustSample subtracts the active soft-zero offset from counts, or
// returns counts unchanged if none is active.
func (s *Service) AdjustSample(counts [6]int32) [6]int32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.softZero == nil {
		return counts
	}
	return s.softZero.Apply(counts)
}
