package tiered

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTierAggregationCountsMinMax(t *testing.T) {
	b := NewBuffer()
	for i := 0; i < 10_000; i++ {
		v := int32(i % 100)
		b.AddSample(uint64(i), [6]int32{v, 0, 0, 0, 0, 0})
	}

	stats := b.Stats()
	require.Equal(t, 100, stats[Tier1.Name].Size)
	require.Equal(t, 1, stats[Tier2.Name].Size)

	t2, err := b.GetTierData(Tier2.Name, 0, 0, false, false)
	require.NoError(t, err)
	require.Len(t, t2, 1)
	require.EqualValues(t, 0, t2[0].CountsMin[0])
	require.EqualValues(t, 99, t2[0].CountsMax[0])
	require.EqualValues(t, 10_000, t2[0].SampleCount)
}

func TestSelectTierForWindow(t *testing.T) {
	b := NewBuffer()
	require.Equal(t, "raw", b.SelectTierForWindow(1, 60_000, 1000))
	require.Equal(t, "tier1", b.SelectTierForWindow(3600, 60_000, 1000))
	require.Equal(t, "tier2", b.SelectTierForWindow(3601, 60_000, 1000))
	require.Equal(t, "tier2", b.SelectTierForWindow(86400, 60_000, 1000))
	require.Equal(t, "tier3", b.SelectTierForWindow(86401, 60_000, 1000))
}

func TestGetTierDataWindowFilter(t *testing.T) {
	b := NewBuffer()
	for i := 0; i < 1000; i++ {
		b.AddSample(uint64(i)*1_000_000, [6]int32{int32(i), 0, 0, 0, 0, 0})
	}
	buckets, err := b.GetTierData(Tier1.Name, 500_000_000, 600_000_000, true, true)
	require.NoError(t, err)
	for _, bk := range buckets {
		require.LessOrEqual(t, bk.TStartNs, uint64(600_000_000))
		require.GreaterOrEqual(t, bk.TEndNs, uint64(500_000_000))
	}
}

func TestClearResetsTiers(t *testing.T) {
	b := NewBuffer()
	for i := 0; i < 10_000; i++ {
		b.AddSample(uint64(i), [6]int32{int32(i % 5), 0, 0, 0, 0, 0})
	}
	b.Clear()
	stats := b.Stats()
	require.Zero(t, stats[Tier1.Name].Size)
	require.Zero(t, stats[Tier2.Name].Size)
	require.Zero(t, stats[Tier3.Name].Size)
}

func TestUnknownTierNameErrors(t *testing.T) {
	b := NewBuffer()
	_, err := b.GetTierData("bogus", 0, 0, false, false)
	require.Error(t, err)
}
