package tiered

import (
	"fmt"
	"sync"
)

// Buffer cascades raw samples through three resolution tiers (T1, T2, T3).
// A single mutex guards all three; AddSample is the only write path and
// completes in a handful of comparisons plus, on decimation boundaries, a
// cascade of at most two downstream finalizations.
type Buffer struct {
	mu sync.Mutex

	t1, t2, t3 *tierBuffer
}

// NewBuffer constructs a Buffer using the standard Tier1/Tier2/Tier3
// configuration.
func NewBuffer() *Buffer {
	return &Buffer{
		t1: newTierBuffer(Tier1),
		t2: newTierBuffer(Tier2),
		t3: newTierBuffer(Tier3),
	}
}

// AddSample folds one raw sample into T1, cascading the resulting bucket
// into T2 and then T3 whenever a lower tier finalizes.
func (b *Buffer) AddSample(tNs uint64, counts [6]int32) {
	b.mu.Lock()
	defer b.mu.Unlock()

	bucket1, done1 := b.t1.accumulate(tNs, tNs, counts, counts, 1)
	if !done1 {
		return
	}
	bucket2, done2 := b.t2.accumulate(bucket1.TStartNs, bucket1.TEndNs, bucket1.CountsMin, bucket1.CountsMax, bucket1.SampleCount)
	if !done2 {
		return
	}
	b.t3.accumulate(bucket2.TStartNs, bucket2.TEndNs, bucket2.CountsMin, bucket2.CountsMax, bucket2.SampleCount)
}

// GetTierData returns all buckets in the named tier overlapping
// [startNs, endNs] in chronological order. Either bound may be disabled by
// passing hasStart/hasEnd=false.
func (b *Buffer) GetTierData(name string, startNs, endNs uint64, hasStart, hasEnd bool) ([]Bucket, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, err := b.tierByName(name)
	if err != nil {
		return nil, err
	}
	return t.windowed(startNs, endNs, hasStart, hasEnd), nil
}

func (b *Buffer) tierByName(name string) (*tierBuffer, error) {
	switch name {
	case Tier1.Name:
		return b.t1, nil
	case Tier2.Name:
		return b.t2, nil
	case Tier3.Name:
		return b.t3, nil
	default:
		return nil, fmt.Errorf("tiered: unknown tier %q", name)
	}
}

// SelectTierForWindow chooses the finest tier whose capacity covers a
// window of windowSeconds, given the raw ring's own window capacity
// (rawCapacity/sampleRateHz). Returns "raw" when the raw ring alone
// covers the window.
func (b *Buffer) SelectTierForWindow(windowSeconds float64, rawCapacity int, rawSampleRateHz float64) string {
	rawDurationSeconds := float64(rawCapacity) / rawSampleRateHz
	if windowSeconds <= rawDurationSeconds {
		return "raw"
	}
	switch {
	case windowSeconds <= 3600:
		return Tier1.Name
	case windowSeconds <= 86400:
		return Tier2.Name
	default:
		return Tier3.Name
	}
}

// Stats returns bookkeeping snapshots for all three tiers, keyed by name.
func (b *Buffer) Stats() map[string]Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return map[string]Stats{
		Tier1.Name: b.t1.stats(),
		Tier2.Name: b.t2.stats(),
		Tier3.Name: b.t3.stats(),
	}
}

// MemoryBytes estimates the fixed memory footprint of the three tiers'
// preallocated bucket storage: each Bucket is 8+8+24+24+4 = 68 bytes.
func (b *Buffer) MemoryBytes() int64 {
	const bucketBytes = 68
	return int64(Tier1.Capacity+Tier2.Capacity+Tier3.Capacity) * bucketBytes
}

// Clear resets all three tiers' counters and accumulators.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.t1.clear()
	b.t2.clear()
	b.t3.clear()
}
