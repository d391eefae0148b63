package acquisition

import (
	"testing"

	"github.com/LoomDeBWiles/cof-tester-sub000/api"
	"github.com/stretchr/testify/require"
)

func TestNewEngineStartsStopped(t *testing.T) {
	e := New(Config{IP: "127.0.0.1", Port: 49999})
	require.Equal(t, StateStopped, e.State())
	require.Equal(t, DefaultBufferCapacity, e.cfg.BufferCapacity)
	require.Equal(t, DefaultReceiveTimeout, e.cfg.ReceiveTimeout)
	require.Equal(t, 1, e.cfg.DecimationFactor)
}

func TestStopIsNoOpOnStoppedEngine(t *testing.T) {
	// Stop on an engine that was never started returns no error and leaves
	// it Stopped.
	e := New(Config{IP: "127.0.0.1", Port: 49999})
	require.NoError(t, e.Stop())
	require.Equal(t, StateStopped, e.State())
}

func TestResetRejectsWhileRunningState(t *testing.T) {
	e := New(Config{IP: "127.0.0.1", Port: 49999})
	e.state = StateRunning
	err := e.Reset()
	require.Error(t, err)
	require.Equal(t, StateRunning, e.State())
}

func TestResetClearsErrorState(t *testing.T) {
	e := New(Config{IP: "127.0.0.1", Port: 49999})
	e.state = StateError
	require.NoError(t, e.Reset())
	require.Equal(t, StateStopped, e.State())
}

func TestStatisticsLossRatio(t *testing.T) {
	s := Stats{PacketsReceived: 97, PacketsLost: 3}
	require.InDelta(t, 0.03, s.LossRatio(), 1e-9)

	s2 := Stats{}
	require.Equal(t, float64(0), s2.LossRatio())
}

func TestRateTrackingRoundTrip(t *testing.T) {
	e := New(Config{IP: "127.0.0.1", Port: 49999})
	require.Equal(t, float64(0), e.samplesPerSecond())
	e.storeRate(123.5)
	require.InDelta(t, 123.5, e.samplesPerSecond(), 1e-9)
}

func TestSetCallbackIsRetrievable(t *testing.T) {
	e := New(Config{IP: "127.0.0.1", Port: 49999})
	e.callbackMu.Lock()
	hasCallback := e.callback != nil
	e.callbackMu.Unlock()
	require.False(t, hasCallback)

	e.SetCallback(func(s api.Sample) {})
	e.callbackMu.Lock()
	hasCallback = e.callback != nil
	e.callbackMu.Unlock()
	require.True(t, hasCallback)
}
