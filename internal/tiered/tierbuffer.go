package tiered

// tierBuffer holds one resolution tier: a fixed-capacity ring of finalized
// buckets plus an in-progress accumulator. It has no lock of its own —
// Buffer serializes all access with a single mutex, matching the raw
// ring's monitor-lock model.
type tierBuffer struct {
	cfg Config

	buckets      []Bucket
	head         int
	size         int
	totalWritten uint64

	accumCount       int
	accumSampleCount uint32
	accumTStart      uint64
	accumTEnd        uint64
	accumMin         [6]int32
	accumMax         [6]int32
}

func newTierBuffer(cfg Config) *tierBuffer {
	return &tierBuffer{
		cfg:     cfg,
		buckets: make([]Bucket, cfg.Capacity),
	}
}

// accumulate folds one input — either a single raw sample (tStart==tEnd,
// countsMin==countsMax, sampleCount==1) or an upstream bucket — into the
// in-progress accumulator, finalizing and returning a bucket once the
// tier's decimation factor worth of inputs has been folded in.
func (t *tierBuffer) accumulate(tStart, tEnd uint64, countsMin, countsMax [6]int32, sampleCount uint32) (Bucket, bool) {
	if t.accumCount == 0 {
		t.accumTStart = tStart
		t.accumTEnd = tEnd
		t.accumMin = countsMin
		t.accumMax = countsMax
		t.accumSampleCount = sampleCount
	} else {
		t.accumTEnd = tEnd
		for i := 0; i < 6; i++ {
			if countsMin[i] < t.accumMin[i] {
				t.accumMin[i] = countsMin[i]
			}
			if countsMax[i] > t.accumMax[i] {
				t.accumMax[i] = countsMax[i]
			}
		}
		t.accumSampleCount += sampleCount
	}
	t.accumCount++

	if t.accumCount < t.cfg.DecimationFactor {
		return Bucket{}, false
	}
	return t.finalize(), true
}

func (t *tierBuffer) finalize() Bucket {
	b := Bucket{
		TStartNs:    t.accumTStart,
		TEndNs:      t.accumTEnd,
		CountsMin:   t.accumMin,
		CountsMax:   t.accumMax,
		SampleCount: t.accumSampleCount,
	}
	t.buckets[t.head] = b
	t.head = (t.head + 1) % t.cfg.Capacity
	t.totalWritten++
	if t.size < t.cfg.Capacity {
		t.size++
	}

	t.accumCount = 0
	t.accumSampleCount = 0
	t.accumTStart = 0
	t.accumTEnd = 0
	t.accumMin = [6]int32{}
	t.accumMax = [6]int32{}

	return b
}

// chronological returns buckets oldest-first.
func (t *tierBuffer) chronological() []Bucket {
	out := make([]Bucket, t.size)
	start := (t.head - t.size + t.cfg.Capacity) % t.cfg.Capacity
	for j := 0; j < t.size; j++ {
		out[j] = t.buckets[(start+j)%t.cfg.Capacity]
	}
	return out
}

// windowed filters chronological buckets to those overlapping [startNs,
// endNs]; a side whose hasStart/hasEnd flag is false is unbounded.
func (t *tierBuffer) windowed(startNs, endNs uint64, hasStart, hasEnd bool) []Bucket {
	all := t.chronological()
	out := make([]Bucket, 0, len(all))
	for _, b := range all {
		if hasEnd && b.TStartNs > endNs {
			continue
		}
		if hasStart && b.TEndNs < startNs {
			continue
		}
		out = append(out, b)
	}
	return out
}

func (t *tierBuffer) stats() Stats {
	return Stats{Capacity: t.cfg.Capacity, Size: t.size, TotalWritten: t.totalWritten}
}

func (t *tierBuffer) clear() {
	t.head = 0
	t.size = 0
	t.totalWritten = 0
	t.accumCount = 0
	t.accumSampleCount = 0
}
