package processing

import (
	"testing"
	"time"

	"github.com/LoomDeBWiles/cof-tester-sub000/api"
	"github.com/stretchr/testify/require"
)

func mustEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	e, err := New(cfg)
	require.NoError(t, err)
	return e
}

func TestProcessSampleConvertsToSI(t *testing.T) {
	cal, err := api.NewCalibrationInfo(100, 10)
	require.NoError(t, err)
	e := mustEngine(t, Config{Calibration: cal})

	in := api.Sample{Counts: [6]int32{100, 200, 300, 10, 20, 30}}
	out := e.ProcessSample(in)

	require.NotNil(t, out.ForceN)
	require.InDelta(t, 1.0, out.ForceN[0], 1e-9)
	require.InDelta(t, 2.0, out.ForceN[1], 1e-9)
	require.InDelta(t, 3.0, out.ForceN[2], 1e-9)
	require.InDelta(t, 1.0, out.TorqueNm[0], 1e-9)
	require.InDelta(t, 2.0, out.TorqueNm[1], 1e-9)
	require.InDelta(t, 3.0, out.TorqueNm[2], 1e-9)
}

func TestProcessSampleSubtractsSoftZeroBeforeConversion(t *testing.T) {
	cal, err := api.NewCalibrationInfo(100, 10)
	require.NoError(t, err)
	e := mustEngine(t, Config{Calibration: cal})
	e.SetOffsets(api.SoftZeroOffsets{
		ForceCounts:  [3]int32{100, 200, 300},
		TorqueCounts: [3]int32{10, 20, 30},
	})

	in := api.Sample{Counts: [6]int32{100, 200, 300, 10, 20, 30}}
	out := e.ProcessSample(in)

	require.Equal(t, [6]int32{0, 0, 0, 0, 0, 0}, out.Counts)
	require.InDelta(t, 0, out.ForceN[0], 1e-9)
	require.InDelta(t, 0, out.TorqueNm[2], 1e-9)
}

func TestProcessSampleFilterDisabledIsIdentityPassthrough(t *testing.T) {
	cal, err := api.NewCalibrationInfo(1, 1)
	require.NoError(t, err)
	e := mustEngine(t, Config{Calibration: cal, FilterEnabled: false})

	in := api.Sample{Counts: [6]int32{1, 2, 3, 4, 5, 6}}
	out := e.ProcessSample(in)
	require.InDelta(t, 1, out.ForceN[0], 1e-9)
	require.InDelta(t, 6, out.TorqueNm[2], 1e-9)
}

func TestProcessSampleFilterEnabledPrimesBumpless(t *testing.T) {
	cal, err := api.NewCalibrationInfo(1, 1)
	require.NoError(t, err)
	e := mustEngine(t, Config{
		Calibration:        cal,
		FilterEnabled:      true,
		FilterCutoffHz:     10,
		FilterSampleRateHz: 1000,
	})

	in := api.Sample{Counts: [6]int32{1, 2, 3, 4, 5, 6}}
	out := e.ProcessSample(in)
	require.InDelta(t, 1, out.ForceN[0], 1e-6)
	require.InDelta(t, 6, out.TorqueNm[2], 1e-6)

	out2 := e.ProcessSample(in)
	require.InDelta(t, 1, out2.ForceN[0], 1e-3)
}

func TestDropsOnFullLoggerQueueAreCounted(t *testing.T) {
	cal, err := api.NewCalibrationInfo(1, 1)
	require.NoError(t, err)
	e := mustEngine(t, Config{Calibration: cal, LoggerQueueCapacity: 2})

	for i := 0; i < 5; i++ {
		e.ProcessSample(api.Sample{})
	}
	stats := e.Statistics()
	require.Equal(t, uint64(5), stats.SamplesProcessed)
	require.Equal(t, uint64(3), stats.SamplesDroppedLogger)
}

func TestSubmitSampleDropsOnFullInputQueue(t *testing.T) {
	cal, err := api.NewCalibrationInfo(1, 1)
	require.NoError(t, err)
	e := mustEngine(t, Config{Calibration: cal, InputQueueCapacity: 1})

	require.True(t, e.SubmitSample(api.Sample{}))
	require.False(t, e.SubmitSample(api.Sample{}))
	require.Equal(t, uint64(1), e.Statistics().SamplesDroppedInput)
}

func TestVisualizationCallbackInvokedSynchronously(t *testing.T) {
	cal, err := api.NewCalibrationInfo(1, 1)
	require.NoError(t, err)
	e := mustEngine(t, Config{Calibration: cal})

	var got api.Sample
	called := false
	e.SetVisualizationCallback(func(s api.Sample) {
		called = true
		got = s
	})
	in := api.Sample{Counts: [6]int32{1, 2, 3, 4, 5, 6}}
	e.ProcessSample(in)
	require.True(t, called)
	require.InDelta(t, 1, got.ForceN[0], 1e-9)
}

func TestAsyncWorkerProcessesSubmittedSamples(t *testing.T) {
	cal, err := api.NewCalibrationInfo(1, 1)
	require.NoError(t, err)
	e := mustEngine(t, Config{Calibration: cal})
	e.Start()
	defer e.Stop()

	require.True(t, e.SubmitSample(api.Sample{Counts: [6]int32{1, 2, 3, 4, 5, 6}}))

	v, ok := e.LoggerQueue.PopWait(time.Second)
	require.True(t, ok)
	s := v.(api.Sample)
	require.InDelta(t, 1, s.ForceN[0], 1e-9)
}
