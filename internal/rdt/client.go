// Package rdt implements the UDP datagram client for the RDT streaming
// protocol: connection lifecycle, request encoding, and wrap-safe
// sequence-gap loss detection.
package rdt

import (
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/LoomDeBWiles/cof-tester-sub000/api"
	"github.com/LoomDeBWiles/cof-tester-sub000/internal/wire"
)

// recvBufferBytes is the requested OS socket receive buffer size: large
// enough to absorb scheduling jitter at 1kHz without drops.
const recvBufferBytes = 2 * 1024 * 1024

// Stats is a snapshot of loss-tracking counters.
type Stats struct {
	PacketsReceived uint64
	PacketsLost     uint64
	LastRdtSequence int64 // -1 before the first packet arrives
}

// Client streams samples from a sensor over UDP and tracks sequence-gap
// packet loss.
type Client struct {
	conn *net.UDPConn

	mu              sync.Mutex
	packetsReceived uint64
	packetsLost     uint64
	lastRdtSequence int64
}

// Dial opens a UDP socket bound to an ephemeral local port and connected to
// ip:port, with an enlarged receive buffer.
func Dial(ip string, port int) (*Client, error) {
	addr := net.ParseIP(ip)
	if addr == nil {
		return nil, api.Wrap(api.ErrSocket, nil, "invalid IP address "+strconv.Quote(ip))
	}
	raddr := &net.UDPAddr{IP: addr, Port: port}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, api.Wrap(api.ErrConnectionRefused, err, "dial RDT port")
	}
	_ = conn.SetReadBuffer(recvBufferBytes)
	return &Client{conn: conn, lastRdtSequence: -1}, nil
}

// StartStreaming sends a START_REALTIME request. sampleCount of 0 means an
// open-ended stream.
func (c *Client) StartStreaming(sampleCount uint32) error {
	req := wire.EncodeRequest(wire.RdtStartRealtime, sampleCount)
	return c.send(req[:])
}

// StopStreaming sends a STOP request.
func (c *Client) StopStreaming() error {
	req := wire.EncodeRequest(wire.RdtStop, 0)
	return c.send(req[:])
}

// SendBias sends a SET_BIAS (hardware tare) request.
func (c *Client) SendBias() error {
	req := wire.EncodeRequest(wire.RdtSetBias, 0)
	return c.send(req[:])
}

func (c *Client) send(b []byte) error {
	_, err := c.conn.Write(b)
	if err != nil {
		return api.Wrap(api.ErrSocket, err, "send RDT request")
	}
	return nil
}

// ReceiveBatch reads up to maxSamples datagrams, blocking for at most
// timeout for the first one. It returns the samples received before the
// deadline; a timeout with zero samples already read is not an error —
// the caller is expected to retry.
func (c *Client) ReceiveBatch(timeout time.Duration, maxSamples int) ([]api.Sample, error) {
	samples := make([]api.Sample, 0, maxSamples)
	buf := make([]byte, wire.RdtResponseSize+64)

	for len(samples) < maxSamples {
		if err := c.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return samples, api.Wrap(api.ErrSocket, err, "set read deadline")
		}
		n, err := c.conn.Read(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				return samples, nil
			}
			return samples, api.Wrap(api.ErrSocket, err, "receive RDT datagram")
		}
		tNs := uint64(time.Now().UnixNano())

		resp, perr := wire.DecodeResponse(buf[:n])
		if perr != nil {
			continue
		}
		c.recordArrival(resp.RdtSequence)
		samples = append(samples, resp.ToSample(tNs))
	}
	return samples, nil
}

// recordArrival updates loss-tracking counters using wrap-safe sequence
// arithmetic: expected = (last+1) mod 2^32; lost = (received - expected)
// mod 2^32.
func (c *Client) recordArrival(received uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.packetsReceived++
	if c.lastRdtSequence >= 0 {
		expected := uint32(c.lastRdtSequence+1) & 0xFFFFFFFF
		if received != expected {
			lost := received - expected // unsigned subtraction wraps mod 2^32
			c.packetsLost += uint64(lost)
		}
	}
	c.lastRdtSequence = int64(received)
}

// Statistics returns a snapshot of the current loss-tracking counters.
func (c *Client) Statistics() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		PacketsReceived: c.packetsReceived,
		PacketsLost:     c.packetsLost,
		LastRdtSequence: c.lastRdtSequence,
	}
}

// Close closes the underlying UDP socket.
func (c *Client) Close() error {
	return c.conn.Close()
}
