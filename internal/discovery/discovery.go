// Package discovery scans an IPv4 subnet for ATI NETrs-style sensors by
// probing each host's HTTP calibration endpoint concurrently.
package discovery

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/LoomDeBWiles/cof-tester-sub000/internal/calibration"
	"golang.org/x/sync/errgroup"
)

// DefaultProbeTimeout is tuned so a /24 scan finishes in well under 10s.
const DefaultProbeTimeout = 150 * time.Millisecond

// DefaultMaxConcurrentProbes bounds simultaneous in-flight probes.
const DefaultMaxConcurrentProbes = 100

// Sensor describes one discovered host.
type Sensor struct {
	IP              string
	SerialNumber    string
	FirmwareVersion string
}

// ProgressFunc is invoked after each host probe completes, with the
// cumulative completed/total counts.
type ProgressFunc func(completed, total int)

// Config parameterizes ScanSubnet.
type Config struct {
	HTTPPort       int
	ProbeTimeout   time.Duration
	MaxConcurrency int
	OnProgress     ProgressFunc
}

// ParseSubnet parses a CIDR string into the list of host IPs it covers
// (excluding network and broadcast addresses for subnets wider than /31).
func ParseSubnet(cidr string) ([]string, error) {
	_, ipnet, err := net.ParseCIDR(cidr)
	if err != nil {
		return nil, fmt.Errorf("discovery: invalid subnet %q: %w", cidr, err)
	}
	var hosts []string
	for ip := ipnet.IP.Mask(ipnet.Mask); ipnet.Contains(ip); incIP(ip) {
		hosts = append(hosts, ip.String())
	}
	ones, bits := ipnet.Mask.Size()
	if bits-ones >= 2 && len(hosts) >= 2 {
		hosts = hosts[1 : len(hosts)-1] // drop network and broadcast addresses
	}
	return hosts, nil
}

func incIP(ip net.IP) {
	for i := len(ip) - 1; i >= 0; i-- {
		ip[i]++
		if ip[i] != 0 {
			return
		}
	}
}

// ScanSubnet probes every host address in cidr and returns the sensors
// that answered. Probe failures (timeout, connection refused, non-sensor
// response) are not reported as scan errors — only a malformed subnet
// string is.
func ScanSubnet(ctx context.Context, cidr string, cfg Config) ([]Sensor, error) {
	hosts, err := ParseSubnet(cidr)
	if err != nil {
		return nil, err
	}
	return scanHosts(ctx, hosts, cfg), nil
}

func scanHosts(ctx context.Context, hosts []string, cfg Config) []Sensor {
	if cfg.HTTPPort <= 0 {
		cfg.HTTPPort = 80
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = DefaultProbeTimeout
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = DefaultMaxConcurrentProbes
	}

	total := len(hosts)
	var (
		mu         sync.Mutex
		discovered []Sensor
		completed  int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.MaxConcurrency)

	for _, host := range hosts {
		host := host
		g.Go(func() error {
			sensor, ok := probeHost(gctx, host, cfg.HTTPPort, cfg.ProbeTimeout)
			mu.Lock()
			completed++
			if ok {
				discovered = append(discovered, sensor)
			}
			n := completed
			mu.Unlock()
			if cfg.OnProgress != nil {
				cfg.OnProgress(n, total)
			}
			return nil
		})
	}
	_ = g.Wait()

	return discovered
}

func probeHost(ctx context.Context, ip string, httpPort int, timeout time.Duration) (Sensor, bool) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client := calibration.NewHTTPClient(ip, httpPort, timeout)
	cal, err := client.GetCalibration(ctx)
	if err != nil {
		return Sensor{}, false
	}
	return Sensor{
		IP:              ip,
		SerialNumber:    cal.SerialNumber,
		FirmwareVersion: cal.FirmwareVersion,
	}, true
}
