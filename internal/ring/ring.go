// Package ring implements the fixed-capacity, overwrite-oldest columnar
// ring buffer that backs the acquisition engine's raw sample storage.
//
// Unlike the lock-free rings used elsewhere in this codebase's lineage,
// this ring is guarded by a single mutex: appends are microsecond-scale and
// reads are infrequent, so simplicity dominates micro-contention here.
package ring

import (
	"sync"

	"github.com/LoomDeBWiles/cof-tester-sub000/api"
)

// Stats is a snapshot of ring bookkeeping counters.
type Stats struct {
	Capacity     int
	Size         int
	TotalWritten uint64
	Overwrites   uint64
}

// FillRatio returns Size/Capacity, or 0 if Capacity is 0.
func (s Stats) FillRatio() float64 {
	if s.Capacity == 0 {
		return 0
	}
	return float64(s.Size) / float64(s.Capacity)
}

// IsFull reports whether the ring has reached capacity.
func (s Stats) IsFull() bool {
	return s.Size >= s.Capacity
}

// Ring is a fixed-capacity circular buffer of samples stored column-wise:
// each field lives in its own parallel slice, so readers can copy exactly
// the columns they need.
type Ring struct {
	mu sync.Mutex

	capacity int

	tMonotonicNs []uint64
	rdtSequence  []uint32
	ftSequence   []uint32
	status       []uint32
	counts       [][6]int32

	head         int
	size         int
	totalWritten uint64
	overwrites   uint64
}

// New constructs a Ring with the given capacity. Capacity must be > 0.
func New(capacity int) *Ring {
	if capacity <= 0 {
		panic("ring: capacity must be positive")
	}
	return &Ring{
		capacity:     capacity,
		tMonotonicNs: make([]uint64, capacity),
		rdtSequence:  make([]uint32, capacity),
		ftSequence:   make([]uint32, capacity),
		status:       make([]uint32, capacity),
		counts:       make([][6]int32, capacity),
	}
}

// Capacity returns the fixed ring capacity.
func (r *Ring) Capacity() int {
	return r.capacity
}

// Append writes sample at the head position and advances it, overwriting
// the oldest entry once the ring is full. O(1), single critical section.
func (r *Ring) Append(s api.Sample) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.head
	r.tMonotonicNs[i] = s.TMonotonicNs
	r.rdtSequence[i] = s.RdtSequence
	r.ftSequence[i] = s.FtSequence
	r.status[i] = s.Status
	r.counts[i] = s.Counts

	r.head = (r.head + 1) % r.capacity
	r.totalWritten++
	if r.size < r.capacity {
		r.size++
	} else {
		r.overwrites++
	}
}

// Stats returns a snapshot of the ring's bookkeeping counters.
func (r *Ring) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Stats{
		Capacity:     r.capacity,
		Size:         r.size,
		TotalWritten: r.totalWritten,
		Overwrites:   r.overwrites,
	}
}

// GetLatest returns the n most recently appended samples in chronological
// order (oldest first). n is clamped to the current size; n<=0 returns nil.
func (r *Ring) GetLatest(n int) []api.Sample {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n <= 0 {
		return nil
	}
	if n > r.size {
		n = r.size
	}
	return r.getLatestLocked(n)
}

// GetAll returns every currently valid sample in chronological order.
func (r *Ring) GetAll() []api.Sample {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getLatestLocked(r.size)
}

// getLatestLocked assumes r.mu is held. It computes the wrapped index range
// covering the n most recent samples and copies them out in order.
func (r *Ring) getLatestLocked(n int) []api.Sample {
	if n <= 0 {
		return nil
	}
	out := make([]api.Sample, n)
	// Logical index of the oldest sample to return.
	start := (r.head - n + r.capacity) % r.capacity
	for j := 0; j < n; j++ {
		i := (start + j) % r.capacity
		out[j] = api.Sample{
			TMonotonicNs: r.tMonotonicNs[i],
			RdtSequence:  r.rdtSequence[i],
			FtSequence:   r.ftSequence[i],
			Status:       r.status[i],
			Counts:       r.counts[i],
		}
	}
	return out
}

// Clear resets head, size, and the cumulative counters. Storage is not
// zeroed — size is the sole validity marker, so stale slots are simply
// unreachable until overwritten again.
//
// Resetting TotalWritten and Overwrites here means callers that rely on
// session-cumulative statistics must read Stats before calling Clear.
func (r *Ring) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.head = 0
	r.size = 0
	r.totalWritten = 0
	r.overwrites = 0
}
