// Package tiered implements the multi-resolution down-sampling buffer: raw
// samples cascade through three fixed-capacity tiers (T1, T2, T3), each
// storing chronological min/max buckets, so that windows from one hour to
// seven days can be served without scanning the full raw ring.
package tiered

// Config describes one tier's capacity and how many inputs (raw samples
// for T1, upstream buckets for T2/T3) feed a single output bucket.
type Config struct {
	Name             string
	Capacity         int
	DecimationFactor int
	SampleRateHz     float64
}

// Standard tier configuration. T1 aggregates 100 raw samples (1kHz) into
// one 10Hz bucket; T2 aggregates 100 T1 buckets into one 0.1Hz bucket; T3
// aggregates 10 T2 buckets into one 0.01Hz bucket.
var (
	Tier1 = Config{Name: "tier1", Capacity: 36_000, DecimationFactor: 100, SampleRateHz: 10.0}
	Tier2 = Config{Name: "tier2", Capacity: 8_640, DecimationFactor: 100, SampleRateHz: 0.1}
	Tier3 = Config{Name: "tier3", Capacity: 6_048, DecimationFactor: 10, SampleRateHz: 0.01}
)

// Bucket is one aggregated min/max record for a contiguous time slice.
type Bucket struct {
	TStartNs    uint64
	TEndNs      uint64
	CountsMin   [6]int32
	CountsMax   [6]int32
	SampleCount uint32
}

// Stats is a snapshot of one tier's bookkeeping counters.
type Stats struct {
	Capacity     int
	Size         int
	TotalWritten uint64
}
