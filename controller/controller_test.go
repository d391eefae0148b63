package controller

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/LoomDeBWiles/cof-tester-sub000/internal/bias"
	"github.com/LoomDeBWiles/cof-tester-sub000/internal/logformat"
	"github.com/LoomDeBWiles/cof-tester-sub000/internal/simulator"
	"github.com/stretchr/testify/require"
)

func freeTestPort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func startTestSimulator(t *testing.T) (udpPort, tcpPort, httpPort int) {
	t.Helper()
	udpPort = freeTestPort(t)
	tcpPort = freeTestPort(t)
	httpPort = freeTestPort(t)

	sim := simulator.New(simulator.Config{
		UDPPort:      udpPort,
		TCPPort:      tcpPort,
		HTTPPort:     httpPort,
		SampleRateHz: 2000,
		HasSeed:      true,
		Seed:         1,
	})
	require.NoError(t, sim.Start())
	t.Cleanup(sim.Stop)
	return
}

func TestControllerStartStopAgainstSimulator(t *testing.T) {
	udpPort, tcpPort, httpPort := startTestSimulator(t)

	cfg := DefaultConfig("127.0.0.1")
	cfg.UDPPort = udpPort
	cfg.TCPPort = tcpPort
	cfg.HTTPPort = httpPort
	cfg.CalibrationTimeout = 500 * time.Millisecond

	c, err := New(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Start(ctx))
	defer c.Stop()

	require.Eventually(t, func() bool {
		return c.Statistics().Acquisition.PacketsReceived > 0
	}, time.Second, 10*time.Millisecond)
}

func TestControllerLogsToFile(t *testing.T) {
	udpPort, tcpPort, httpPort := startTestSimulator(t)

	dir := t.TempDir()
	outPath := filepath.Join(dir, "run.csv")

	cfg := DefaultConfig("127.0.0.1")
	cfg.UDPPort = udpPort
	cfg.TCPPort = tcpPort
	cfg.HTTPPort = httpPort
	cfg.CalibrationTimeout = 500 * time.Millisecond
	cfg.OutputPath = outPath
	cfg.OutputFormat = logformat.FormatCSV

	c, err := New(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Start(ctx))

	require.Eventually(t, func() bool {
		return c.Statistics().Writer.SamplesWritten > 0
	}, time.Second, 10*time.Millisecond)
	c.Stop()

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	require.Contains(t, string(data), "t_monotonic_ns")
}

func TestControllerApplyBiasSoftModePropagatesOffsets(t *testing.T) {
	udpPort, tcpPort, httpPort := startTestSimulator(t)

	cfg := DefaultConfig("127.0.0.1")
	cfg.UDPPort = udpPort
	cfg.TCPPort = tcpPort
	cfg.HTTPPort = httpPort
	cfg.CalibrationTimeout = 500 * time.Millisecond

	c, err := New(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Start(ctx))
	defer c.Stop()

	counts := [6]int32{10, 20, 30, 40, 50, 60}
	require.NoError(t, c.ApplyBias(bias.ModeSoft, &counts, false))

	offsets := c.proc.Offsets()
	require.Equal(t, [3]int32{10, 20, 30}, offsets.ForceCounts)
	require.Equal(t, [3]int32{40, 50, 60}, offsets.TorqueCounts)
}

func TestControllerStartFailsWithoutSensorIP(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}

func TestControllerStartFailsWhenCalibrationUnreachable(t *testing.T) {
	cfg := DefaultConfig("127.0.0.1")
	cfg.HTTPPort = freeTestPort(t)
	cfg.TCPPort = freeTestPort(t)
	cfg.CalibrationTimeout = 100 * time.Millisecond

	c, err := New(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.Error(t, c.Start(ctx))
}
