package tcpcmd

import (
	"net"
	"testing"
	"time"

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

func startSimulator(t *testing.T) (udpPort, tcpPort, httpPort int) {
	t.Helper()
	udpPort, tcpPort, httpPort = freeTestPort(t), freeTestPort(t), freeTestPort(t)
	sim := simulator.New(simulator.Config{
		UDPPort:         udpPort,
		TCPPort:         tcpPort,
		HTTPPort:        httpPort,
		CountsPerForce:  1_000_000,
		CountsPerTorque: 2_000_000,
		HasSeed:         true,
		Seed:            1,
	})
	require.NoError(t, sim.Start())
	t.Cleanup(sim.Stop)
	return
}

func TestReadCalibrationMatchesSimulatorConfig(t *testing.T) {
	_, tcpPort, _ := startSimulator(t)

	c := New("127.0.0.1", tcpPort, 2*time.Second)
	defer c.Close()

	cal, err := c.ReadCalibration()
	require.NoError(t, err)
	require.Equal(t, float64(1_000_000), cal.CountsPerForce)
	require.Equal(t, float64(2_000_000), cal.CountsPerTorque)
}

func TestSendBiasDoesNotError(t *testing.T) {
	_, tcpPort, _ := startSimulator(t)

	c := New("127.0.0.1", tcpPort, 2*time.Second)
	defer c.Close()

	require.NoError(t, c.SendBias())
}

func TestReadCalibrationFailsWhenUnreachable(t *testing.T) {
	c := New("127.0.0.1", freeTestPort(t), 100*time.Millisecond)
	defer c.Close()

	_, err := c.ReadCalibration()
	require.Error(t, err)
}
