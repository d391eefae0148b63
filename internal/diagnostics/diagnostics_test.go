package diagnostics

import (
	"sync"
	"testing"
	"time"

	"github.com/LoomDeBWiles/cof-tester-sub000/internal/acquisition"
	"github.com/LoomDeBWiles/cof-tester-sub000/internal/ring"
	"github.com/stretchr/testify/require"
)

func TestBuildWarningEmptyWhenNothingWrong(t *testing.T) {
	require.Equal(t, "", BuildWarning(acquisition.Stats{}, 0))
}

func TestBuildWarningComposesNonZeroCounters(t *testing.T) {
	stats := acquisition.Stats{PacketsReceived: 97, PacketsLost: 3, ReceiveErrors: 2}
	msg := BuildWarning(stats, 5)
	require.Contains(t, msg, "Packet loss: 3")
	require.Contains(t, msg, "Receive errors: 2")
	require.Contains(t, msg, "Dropped by app: 5")
}

func TestSnapshotFromAcquisitionHiddenWhenStopped(t *testing.T) {
	stats := acquisition.Stats{State: acquisition.StateStopped}
	_, show := SnapshotFromAcquisition(stats, 0, false)
	require.False(t, show)

	_, show = SnapshotFromAcquisition(stats, 0, true)
	require.True(t, show)
}

func TestSnapshotFromAcquisitionFieldsPopulated(t *testing.T) {
	stats := acquisition.Stats{
		State:            acquisition.StateRunning,
		SamplesPerSecond: 1000,
		RingStats:        ring.Stats{Capacity: 100, Size: 50},
		PacketsLost:      2,
	}
	snap, show := SnapshotFromAcquisition(stats, 7, false)
	require.True(t, show)
	require.Equal(t, float64(1000), snap.SampleRateHz)
	require.InDelta(t, 50.0, snap.BufferFillPercent, 1e-9)
	require.Equal(t, uint64(2), snap.PacketsLost)
	require.Equal(t, uint64(7), snap.DroppedByApp)
}

type fakeTarget struct {
	mu       sync.Mutex
	rate     float64
	fill     float64
	lost     uint64
	dropped  uint64
	warning  string
	cleared  bool
	panicOn  int
	calls    int
}

func (f *fakeTarget) UpdateSampleRate(r float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.panicOn > 0 && f.calls == f.panicOn {
		panic("boom")
	}
	f.rate = r
}
func (f *fakeTarget) UpdateBufferStatus(p float64) { f.mu.Lock(); f.fill = p; f.mu.Unlock() }
func (f *fakeTarget) UpdatePacketLoss(c uint64)    { f.mu.Lock(); f.lost = c; f.mu.Unlock() }
func (f *fakeTarget) UpdateDroppedCount(c uint64)  { f.mu.Lock(); f.dropped = c; f.mu.Unlock() }
func (f *fakeTarget) ShowWarning(m string)         { f.mu.Lock(); f.warning = m; f.mu.Unlock() }
func (f *fakeTarget) ClearWarning()                { f.mu.Lock(); f.cleared = true; f.mu.Unlock() }

func TestNewPollerRejectsNonPositiveInterval(t *testing.T) {
	_, err := NewPoller(&fakeTarget{}, func() (Snapshot, bool) { return Snapshot{}, true }, 0)
	require.Error(t, err)
}

func TestPollerPushesSnapshotFields(t *testing.T) {
	target := &fakeTarget{}
	provider := func() (Snapshot, bool) {
		return Snapshot{SampleRateHz: 42, WarningMessage: "uh oh"}, true
	}
	p, err := NewPoller(target, provider, 10*time.Millisecond)
	require.NoError(t, err)
	p.Start()
	defer p.Stop()

	require.Eventually(t, func() bool {
		target.mu.Lock()
		defer target.mu.Unlock()
		return target.rate == 42 && target.warning == "uh oh"
	}, time.Second, 10*time.Millisecond)
}

func TestPollerStopsOnTargetPanic(t *testing.T) {
	target := &fakeTarget{panicOn: 1}
	provider := func() (Snapshot, bool) { return Snapshot{SampleRateHz: 1}, true }
	p, err := NewPoller(target, provider, 10*time.Millisecond)
	require.NoError(t, err)
	p.Start()

	require.Eventually(t, func() bool { return !p.IsRunning() }, time.Second, 10*time.Millisecond)
}

func TestPollerSkipsTickWhenProviderReturnsNoShow(t *testing.T) {
	target := &fakeTarget{}
	calls := 0
	provider := func() (Snapshot, bool) {
		calls++
		return Snapshot{}, false
	}
	p, err := NewPoller(target, provider, 10*time.Millisecond)
	require.NoError(t, err)
	p.Start()
	time.Sleep(50 * time.Millisecond)
	p.Stop()

	target.mu.Lock()
	defer target.mu.Unlock()
	require.Equal(t, 0, target.calls)
	require.True(t, calls > 0)
}
