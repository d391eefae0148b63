// Package diagnostics derives a UI-ready status snapshot from acquisition
// statistics and periodically pushes it to a duck-typed target.
package diagnostics

import (
	"fmt"
	"strings"

	"github.com/LoomDeBWiles/cof-tester-sub000/internal/acquisition"
)

// Snapshot is the diagnostic view pushed to a status target.
type Snapshot struct {
	SampleRateHz       float64
	BufferFillPercent  float64
	PacketsLost        uint64
	DroppedByApp       uint64
	WarningMessage     string
}

// BuildWarning composes a human-readable warning from non-zero loss/error/
// drop counters, or "" if there is nothing to report.
func BuildWarning(stats acquisition.Stats, droppedByApp uint64) string {
	var parts []string
	if stats.PacketsLost > 0 {
		parts = append(parts, fmt.Sprintf("Packet loss: %d (%.1f%%)", stats.PacketsLost, stats.LossRatio()*100))
	}
	if stats.ReceiveErrors > 0 {
		parts = append(parts, fmt.Sprintf("Receive errors: %d", stats.ReceiveErrors))
	}
	if droppedByApp > 0 {
		parts = append(parts, fmt.Sprintf("Dropped by app: %d", droppedByApp))
	}
	return strings.Join(parts, " | ")
}

// SnapshotFromAcquisition converts acquisition stats into a Snapshot. If
// showWhenStopped is false and the engine is not Running, it returns
// (Snapshot{}, false).
func SnapshotFromAcquisition(stats acquisition.Stats, droppedByApp uint64, showWhenStopped bool) (Snapshot, bool) {
	if !showWhenStopped && stats.State != acquisition.StateRunning {
		return Snapshot{}, false
	}
	return Snapshot{
		SampleRateHz:      stats.SamplesPerSecond,
		BufferFillPercent: stats.RingStats.FillRatio() * 100.0,
		PacketsLost:       stats.PacketsLost,
		DroppedByApp:      droppedByApp,
		WarningMessage:    BuildWarning(stats, droppedByApp),
	}, true
}
