package rdt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWrapSafeLossAccounting(t *testing.T) {
	c := &Client{lastRdtSequence: -1}

	c.recordArrival(0xFFFFFFFE)
	c.recordArrival(0xFFFFFFFF)
	c.recordArrival(1) // the 0 was skipped

	stats := c.Statistics()
	require.EqualValues(t, 3, stats.PacketsReceived)
	require.EqualValues(t, 1, stats.PacketsLost)
	require.EqualValues(t, 1, stats.LastRdtSequence)
}

func TestNoLossOnContiguousSequence(t *testing.T) {
	c := &Client{lastRdtSequence: -1}
	for i := uint32(0); i < 100; i++ {
		c.recordArrival(i)
	}
	stats := c.Statistics()
	require.EqualValues(t, 100, stats.PacketsReceived)
	require.EqualValues(t, 0, stats.PacketsLost)
}

func TestQuantifiedLossSumMatchesFormula(t *testing.T) {
	seqs := []uint32{10, 15, 16, 20, 21, 22}
	c := &Client{lastRdtSequence: -1}
	var wantLost uint64
	var prev uint32
	for i, s := range seqs {
		if i > 0 {
			wantLost += uint64(s - prev - 1)
		}
		c.recordArrival(s)
		prev = s
	}
	stats := c.Statistics()
	require.Equal(t, wantLost, stats.PacketsLost)
}
