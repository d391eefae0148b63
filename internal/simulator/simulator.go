// Package simulator implements an in-process ATI NETrs-style sensor
// emulator: UDP RDT streaming, the TCP command channel, and the HTTP
// calibration endpoint, with optional fault injection for exercising loss,
// reordering, and disconnect handling without real hardware.
package simulator

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"math/rand"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/LoomDeBWiles/cof-tester-sub000/internal/wire"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Default ports mirror the real sensor's, except HTTP which defaults to an
// unprivileged port for local testing.
const (
	DefaultUDPPort      = wire.DefaultRdtPort
	DefaultTCPPort      = wire.DefaultTcpPort
	DefaultHTTPPort     = 8080
	DefaultSampleRateHz = 1000
)

// FaultConfig injects network-level faults into the simulated stream. The
// *Probability fields are per-packet probabilities in [0.0, 1.0]; the
// others set the reorder delay (packets), burst length (packets), and
// disconnect duration.
type FaultConfig struct {
	LossProbability        float64
	ReorderProbability     float64
	ReorderDelayPackets    int
	BurstLossProbability   float64
	BurstLossLength        int
	DisconnectProbability  float64
	DisconnectDuration     time.Duration
}

// Config parameterizes a Simulator.
type Config struct {
	UDPPort, TCPPort, HTTPPort int
	SampleRateHz               int
	Seed                       int64
	HasSeed                    bool

	CountsPerForce, CountsPerTorque int
	SerialNumber, FirmwareVersion   string
	ForceUnitsCode, TorqueUnitsCode int

	SignalAmplitude   int
	SignalFrequencyHz float64 // 0 means a flat DC signal, not "unset"
	NoiseStddev       float64

	Faults FaultConfig
}

func (c Config) withDefaults() Config {
	if c.UDPPort == 0 {
		c.UDPPort = DefaultUDPPort
	}
	if c.TCPPort == 0 {
		c.TCPPort = DefaultTCPPort
	}
	if c.HTTPPort == 0 {
		c.HTTPPort = DefaultHTTPPort
	}
	if c.SampleRateHz <= 0 {
		c.SampleRateHz = DefaultSampleRateHz
	}
	if c.CountsPerForce <= 0 {
		c.CountsPerForce = 1_000_000
	}
	if c.CountsPerTorque <= 0 {
		c.CountsPerTorque = 1_000_000
	}
	if c.SerialNumber == "" {
		c.SerialNumber = "SIM-001"
	}
	if c.FirmwareVersion == "" {
		c.FirmwareVersion = "1.0.0"
	}
	if c.ForceUnitsCode == 0 {
		c.ForceUnitsCode = 2 // N
	}
	if c.TorqueUnitsCode == 0 {
		c.TorqueUnitsCode = 3 // N-m
	}
	if c.SignalAmplitude == 0 {
		c.SignalAmplitude = 100_000
	}
	if c.NoiseStddev == 0 {
		c.NoiseStddev = 1000
	}
	if c.Faults.BurstLossLength <= 0 {
		c.Faults.BurstLossLength = 3
	}
	if c.Faults.ReorderDelayPackets <= 0 {
		c.Faults.ReorderDelayPackets = 2
	}
	if c.Faults.DisconnectDuration <= 0 {
		c.Faults.DisconnectDuration = 100 * time.Millisecond
	}
	return c
}

// Simulator is a simulated sensor answering UDP, TCP, and HTTP traffic on
// its own listeners. It is not safe to Start twice concurrently.
type Simulator struct {
	cfg Config
	log zerolog.Logger
	rng *rand.Rand

	udpConn      *net.UDPConn
	tcpListener  net.Listener
	httpServer   *http.Server
	httpListener net.Listener

	stateMu         sync.Mutex
	running         bool
	startTime       time.Time
	streaming       bool
	streamingAddr   *net.UDPAddr
	rdtSequence     uint32
	ftSequence      uint32
	biasOffset      [6]int32
	burstRemaining  int
	disconnectUntil time.Time
	reorderBuf      [][]byte

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New constructs a stopped Simulator.
func New(cfg Config) *Simulator {
	cfg = cfg.withDefaults()
	seed := cfg.Seed
	if !cfg.HasSeed {
		seed = time.Now().UnixNano()
	}
	return &Simulator{
		cfg: cfg,
		log: log.With().Str("component", "simulator").Logger(),
		rng: rand.New(rand.NewSource(seed)),
	}
}

// Start opens the UDP, TCP, and HTTP listeners and spawns their serving
// goroutines. It returns once all three listeners are bound.
func (s *Simulator) Start() error {
	s.stateMu.Lock()
	if s.running {
		s.stateMu.Unlock()
		return fmt.Errorf("simulator: already running")
	}
	s.running = true
	s.startTime = time.Now()
	s.stateMu.Unlock()

	udpConn, err := net.ListenUDP("udp", &net.UDPAddr{Port: s.cfg.UDPPort})
	if err != nil {
		return fmt.Errorf("simulator: listen UDP %d: %w", s.cfg.UDPPort, err)
	}
	s.udpConn = udpConn

	tcpListener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.TCPPort))
	if err != nil {
		udpConn.Close()
		return fmt.Errorf("simulator: listen TCP %d: %w", s.cfg.TCPPort, err)
	}
	s.tcpListener = tcpListener

	httpListener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.HTTPPort))
	if err != nil {
		udpConn.Close()
		tcpListener.Close()
		return fmt.Errorf("simulator: listen HTTP %d: %w", s.cfg.HTTPPort, err)
	}
	s.httpListener = httpListener

	mux := http.NewServeMux()
	mux.HandleFunc(wire.CalibrationEndpoint, s.serveCalibration)
	s.httpServer = &http.Server{Handler: mux}

	s.stopCh = make(chan struct{})
	s.wg.Add(4)
	go s.udpLoop()
	go s.tcpAcceptLoop()
	go s.streamLoop()
	go func() {
		defer s.wg.Done()
		_ = s.httpServer.Serve(httpListener)
	}()

	s.log.Info().
		Int("udp_port", s.cfg.UDPPort).
		Int("tcp_port", s.cfg.TCPPort).
		Int("http_port", s.cfg.HTTPPort).
		Msg("sensor simulator started")
	return nil
}

// Stop closes all listeners and waits for their goroutines to exit. It is
// a no-op if not running.
func (s *Simulator) Stop() {
	s.stateMu.Lock()
	if !s.running {
		s.stateMu.Unlock()
		return
	}
	s.running = false
	s.stateMu.Unlock()

	close(s.stopCh)
	if s.udpConn != nil {
		s.udpConn.Close()
	}
	if s.tcpListener != nil {
		s.tcpListener.Close()
	}
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		_ = s.httpServer.Shutdown(ctx)
		cancel()
	}
	s.wg.Wait()
	s.log.Info().Msg("sensor simulator stopped")
}

// UDPAddr, TCPAddr, and HTTPAddr return the bound listener addresses, valid
// only after a successful Start. A Config port of 0 selects the default
// port, not an ephemeral one.
func (s *Simulator) UDPAddr() net.Addr {
	if s.udpConn == nil {
		return nil
	}
	return s.udpConn.LocalAddr()
}

func (s *Simulator) TCPAddr() net.Addr {
	if s.tcpListener == nil {
		return nil
	}
	return s.tcpListener.Addr()
}

func (s *Simulator) HTTPAddr() net.Addr {
	if s.httpListener == nil {
		return nil
	}
	return s.httpListener.Addr()
}

func (s *Simulator) udpLoop() {
	defer s.wg.Done()
	buf := make([]byte, wire.RdtRequestSize)
	for {
		select {
		case <-s.stopCh:
			return
		default:
		}
		_ = s.udpConn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		n, addr, err := s.udpConn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return
		}
		if n != wire.RdtRequestSize {
			continue
		}
		s.handleUDPRequest(buf[:n], addr)
	}
}

func (s *Simulator) handleUDPRequest(data []byte, addr *net.UDPAddr) {
	header := binary.BigEndian.Uint16(data[0:2])
	if header != wire.RdtHeader {
		return
	}
	command := binary.BigEndian.Uint16(data[2:4])

	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	switch command {
	case wire.RdtStartRealtime, wire.RdtStartBuffered:
		s.streamingAddr = addr
		s.streaming = true
		s.rdtSequence = 0
		s.ftSequence = 0
		s.reorderBuf = nil
		s.burstRemaining = 0
		s.disconnectUntil = time.Time{}
	case wire.RdtStop:
		s.streaming = false
	case wire.RdtSetBias:
		s.biasOffset = s.generateSampleLocked()
	}
}

// streamLoop ticks at the configured sample rate for the simulator's whole
// lifetime; whether anything is actually sent depends on the streaming
// flag set by UDP START_REALTIME/STOP commands.
func (s *Simulator) streamLoop() {
	defer s.wg.Done()
	interval := time.Second / time.Duration(s.cfg.SampleRateHz)
	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.emitSample()
		}
	}
}

func (s *Simulator) emitSample() {
	s.stateMu.Lock()
	if !s.streaming || s.streamingAddr == nil {
		s.stateMu.Unlock()
		return
	}
	now := time.Now()
	if !s.disconnectUntil.IsZero() {
		if now.Before(s.disconnectUntil) {
			s.stateMu.Unlock()
			return
		}
		s.disconnectUntil = time.Time{}
	}

	counts := s.generateSampleLocked()
	resp := encodeRDTResponse(s.rdtSequence, s.ftSequence, counts)
	drop := s.shouldDropPacketLocked()
	s.rdtSequence++
	s.ftSequence++

	var payload []byte
	if !drop {
		payload = s.resolveSendPacketLocked(resp)
	}
	if f := s.cfg.Faults.DisconnectProbability; f > 0 && s.rng.Float64() < f {
		s.disconnectUntil = now.Add(s.cfg.Faults.DisconnectDuration)
	}
	addr := s.streamingAddr
	s.stateMu.Unlock()

	if payload != nil {
		_, _ = s.udpConn.WriteToUDP(payload, addr)
	}
}

// generateSampleLocked synthesizes six phase-offset sinusoids with noise,
// then subtracts the active bias offset. Caller must hold stateMu.
func (s *Simulator) generateSampleLocked() [6]int32 {
	t := time.Since(s.startTime).Seconds()
	freq := s.cfg.SignalFrequencyHz
	amp := float64(s.cfg.SignalAmplitude)
	phases := [6]float64{0, math.Pi / 3, 2 * math.Pi / 3, math.Pi, 4 * math.Pi / 3, 5 * math.Pi / 3}

	var counts [6]int32
	for i, phase := range phases {
		base := amp * math.Sin(2*math.Pi*freq*t+phase)
		noise := s.rng.NormFloat64() * s.cfg.NoiseStddev
		counts[i] = int32(base+noise) - s.biasOffset[i]
	}
	return counts
}

// shouldDropPacketLocked applies single-packet and burst loss faults.
// Caller must hold stateMu.
func (s *Simulator) shouldDropPacketLocked() bool {
	f := s.cfg.Faults
	if s.burstRemaining > 0 {
		s.burstRemaining--
		return true
	}
	if f.BurstLossProbability > 0 && s.rng.Float64() < f.BurstLossProbability {
		s.burstRemaining = f.BurstLossLength - 1
		return true
	}
	if f.LossProbability > 0 && s.rng.Float64() < f.LossProbability {
		return true
	}
	return false
}

// resolveSendPacketLocked applies the reorder fault: it may buffer resp and
// return an older buffered packet instead, or flush a buffered packet when
// reordering isn't active this tick. Caller must hold stateMu.
func (s *Simulator) resolveSendPacketLocked(resp []byte) []byte {
	f := s.cfg.Faults
	if f.ReorderProbability > 0 && s.rng.Float64() < f.ReorderProbability {
		s.reorderBuf = append(s.reorderBuf, resp)
		if len(s.reorderBuf) >= f.ReorderDelayPackets {
			oldest := s.reorderBuf[0]
			s.reorderBuf = s.reorderBuf[1:]
			return oldest
		}
		return resp
	}
	if len(s.reorderBuf) > 0 {
		oldest := s.reorderBuf[0]
		s.reorderBuf = s.reorderBuf[1:]
		return oldest
	}
	return resp
}

func encodeRDTResponse(rdtSeq, ftSeq uint32, counts [6]int32) []byte {
	buf := make([]byte, wire.RdtResponseSize)
	binary.BigEndian.PutUint32(buf[0:4], rdtSeq)
	binary.BigEndian.PutUint32(buf[4:8], ftSeq)
	binary.BigEndian.PutUint32(buf[8:12], 0) // status
	for i, c := range counts {
		off := 12 + i*4
		binary.BigEndian.PutUint32(buf[off:off+4], uint32(c))
	}
	return buf
}

func (s *Simulator) tcpAcceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.tcpListener.Accept()
		if err != nil {
			return
		}
		s.wg.Add(1)
		go s.handleTCPConn(conn)
	}
}

func (s *Simulator) handleTCPConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	buf := make([]byte, wire.CalInfoRequestSize)
	for {
		_ = conn.SetReadDeadline(time.Now().Add(time.Second))
		if _, err := readFull(conn, buf); err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return
		}

		switch buf[0] {
		case wire.CmdReadCalInfo:
			if _, err := conn.Write(s.buildCalInfoResponse()); err != nil {
				return
			}
		case wire.CmdReadFT:
			sysCommands := binary.BigEndian.Uint16(buf[18:20])
			if sysCommands&0x0001 != 0 {
				s.stateMu.Lock()
				s.biasOffset = s.generateSampleLocked()
				s.stateMu.Unlock()
			}
		case wire.CmdWriteTransform:
			// accepted silently; the sensor does not respond to this command.
		}
	}
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (s *Simulator) buildCalInfoResponse() []byte {
	resp := make([]byte, wire.CalInfoResponseSize)
	binary.BigEndian.PutUint16(resp[0:2], wire.StreamResponseHeader)
	resp[2] = byte(s.cfg.ForceUnitsCode)
	resp[3] = byte(s.cfg.TorqueUnitsCode)
	binary.BigEndian.PutUint32(resp[4:8], uint32(s.cfg.CountsPerForce))
	binary.BigEndian.PutUint32(resp[8:12], uint32(s.cfg.CountsPerTorque))
	for i := 0; i < 6; i++ {
		binary.BigEndian.PutUint16(resp[12+i*2:14+i*2], 1) // unused scale factors
	}
	return resp
}

func (s *Simulator) serveCalibration(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != wire.CalibrationEndpoint {
		http.NotFound(w, r)
		return
	}
	xmlDoc := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<netftapi2>
    <cfgcpf>%d</cfgcpf>
    <cfgcpt>%d</cfgcpt>
    <cfgfu>%d</cfgfu>
    <cfgtu>%d</cfgtu>
    <setserial>%s</setserial>
    <setfwver>%s</setfwver>
</netftapi2>`, s.cfg.CountsPerForce, s.cfg.CountsPerTorque, s.cfg.ForceUnitsCode, s.cfg.TorqueUnitsCode,
		s.cfg.SerialNumber, s.cfg.FirmwareVersion)
	w.Header().Set("Content-Type", "application/xml")
	_, _ = w.Write([]byte(xmlDoc))
}
