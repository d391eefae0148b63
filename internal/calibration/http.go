// Package calibration fetches sensor calibration data over HTTP, with a
// TCP stream-command fallback when the HTTP endpoint is unreachable.
package calibration

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/LoomDeBWiles/cof-tester-sub000/api"
	"github.com/LoomDeBWiles/cof-tester-sub000/internal/tcpcmd"
	"github.com/LoomDeBWiles/cof-tester-sub000/internal/wire"
)

// HTTPClient fetches the calibration XML document over HTTP.
//
// A plain net/http.Client is used deliberately: this is a single GET of a
// small document with no batching, streaming, or connection-reuse pressure
// — exactly the case the standard library already serves best, and no
// third-party HTTP client in the reference pack offers anything this
// call site would benefit from.
type HTTPClient struct {
	ip      string
	port    int
	timeout time.Duration
	hc      *http.Client
}

// NewHTTPClient constructs an HTTPClient for ip:port.
func NewHTTPClient(ip string, port int, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		ip:      ip,
		port:    port,
		timeout: timeout,
		hc:      &http.Client{Timeout: timeout},
	}
}

// GetRawXML fetches the raw calibration document body.
func (c *HTTPClient) GetRawXML(ctx context.Context) ([]byte, error) {
	url := (&urlBuilder{ip: c.ip, port: c.port, path: wire.CalibrationEndpoint}).build()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, api.Wrap(api.ErrHTTPCalibration, err, "build request")
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, api.Wrap(api.ErrHTTPCalibration, err, "GET calibration document")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, api.Wrap(api.ErrHTTPCalibration, nil, "non-200 response")
	}
	return io.ReadAll(resp.Body)
}

// GetCalibration fetches and parses the calibration document.
func (c *HTTPClient) GetCalibration(ctx context.Context) (api.CalibrationInfo, error) {
	body, err := c.GetRawXML(ctx)
	if err != nil {
		return api.CalibrationInfo{}, err
	}
	return wire.ParseCalibrationXML(body)
}

type urlBuilder struct {
	ip   string
	port int
	path string
}

func (u *urlBuilder) build() string {
	host := u.ip
	if u.port != 80 {
		host = host + ":" + strconv.Itoa(u.port)
	}
	return "http://" + host + u.path
}

// GetWithFallback fetches calibration over HTTP, falling back to the TCP
// stream-command channel (READCALINFO) if the HTTP fetch fails.
func GetWithFallback(ctx context.Context, ip string, httpPort, tcpPort int, timeout time.Duration) (api.CalibrationInfo, error) {
	httpClient := NewHTTPClient(ip, httpPort, timeout)
	cal, err := httpClient.GetCalibration(ctx)
	if err == nil {
		return cal, nil
	}

	tcpClient := tcpcmd.New(ip, tcpPort, timeout)
	defer tcpClient.Close()
	cal, tcpErr := tcpClient.ReadCalibration()
	if tcpErr != nil {
		return api.CalibrationInfo{}, api.Wrap(api.ErrCalibrationUnavailable, err,
			"HTTP failed ("+err.Error()+"); TCP fallback failed ("+tcpErr.Error()+")")
	}
	return cal, nil
}
