// Package tcpcmd implements the TCP stream command channel used for
// calibration retrieval, tool-transform configuration, and the bias
// fallback path.
package tcpcmd

import (
	"io"
	"net"
	"strconv"
	"time"

	"github.com/LoomDeBWiles/cof-tester-sub000/api"
	"github.com/LoomDeBWiles/cof-tester-sub000/internal/wire"
)

// Client is a lazily-connected TCP command client.
type Client struct {
	addr    string
	timeout time.Duration
	conn    net.Conn
}

// New constructs a Client for host:port with the given per-operation
// timeout. The connection is established lazily on first use.
func New(ip string, port int, timeout time.Duration) *Client {
	return &Client{addr: net.JoinHostPort(ip, strconv.Itoa(port)), timeout: timeout}
}

func (c *Client) ensureConnected() (net.Conn, error) {
	if c.conn != nil {
		return c.conn, nil
	}
	d := net.Dialer{Timeout: c.timeout}
	conn, err := d.Dial("tcp", c.addr)
	if err != nil {
		return nil, api.Wrap(api.ErrConnectionRefused, err, "dial stream command channel")
	}
	c.conn = conn
	return conn, nil
}

func (c *Client) sendReceive(request []byte, responseSize int) ([]byte, error) {
	conn, err := c.ensureConnected()
	if err != nil {
		return nil, err
	}
	if err := conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		return nil, api.Wrap(api.ErrSocket, err, "set deadline")
	}
	if _, err := conn.Write(request); err != nil {
		return nil, api.Wrap(api.ErrSocket, err, "send request")
	}

	response := make([]byte, 0, responseSize)
	buf := make([]byte, responseSize)
	for len(response) < responseSize {
		n, err := conn.Read(buf[:responseSize-len(response)])
		if n > 0 {
			response = append(response, buf[:n]...)
		}
		if err != nil {
			if err == io.EOF {
				return nil, api.Wrap(api.ErrNetworkDisconnect, err, "connection closed by sensor")
			}
			return nil, api.Wrap(api.ErrSocket, err, "receive response")
		}
	}
	return response, nil
}

// ReadCalibration issues READCALINFO and parses the response.
func (c *Client) ReadCalibration() (api.CalibrationInfo, error) {
	req := wire.BuildCalInfoRequest()
	resp, err := c.sendReceive(req[:], wire.CalInfoResponseSize)
	if err != nil {
		return api.CalibrationInfo{}, err
	}
	return wire.DecodeCalInfoResponse(resp)
}

// WriteTransform pushes a tool transform to the sensor. The sensor does
// not respond to this command.
func (c *Client) WriteTransform(t wire.ToolTransform) error {
	req, err := wire.BuildTransformRequest(t)
	if err != nil {
		return err
	}
	conn, err := c.ensureConnected()
	if err != nil {
		return err
	}
	if _, err := conn.Write(req[:]); err != nil {
		return api.Wrap(api.ErrSocket, err, "send transform")
	}
	return nil
}

// SendBias issues the TCP fallback tare command (READFT with the bias bit
// set). The sensor does not respond to this command.
func (c *Client) SendBias() error {
	req := wire.BuildBiasRequest()
	conn, err := c.ensureConnected()
	if err != nil {
		return err
	}
	if _, err := conn.Write(req[:]); err != nil {
		return api.Wrap(api.ErrSocket, err, "send bias")
	}
	return nil
}

// Close closes the underlying connection, if open.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}
