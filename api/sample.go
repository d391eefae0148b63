// Package api holds the data types and error taxonomy shared across the
// acquisition, processing, and logging subsystems.
package api

// Sample is a single force/torque reading received from the sensor.
//
// TMonotonicNs is captured at receive time and is invariant within a run:
// it never regresses and is never rewritten once the sample is stored.
// Counts holds the six raw channel values in fixed order [Fx, Fy, Fz, Tx,
// Ty, Tz]. ForceN and TorqueNm are populated only downstream of the
// processing engine; a Sample fresh off the wire leaves them nil.
type Sample struct {
	TMonotonicNs uint64
	RdtSequence  uint32
	FtSequence   uint32
	Status       uint32
	Counts       [6]int32
	ForceN       *[3]float64
	TorqueNm     *[3]float64
}

// WithConverted returns a copy of s with ForceN/TorqueNm set, leaving the
// original sample (and its nil converted fields) untouched.
func (s Sample) WithConverted(counts [6]int32, forceN, torqueNm [3]float64) Sample {
	out := s
	out.Counts = counts
	out.ForceN = &forceN
	out.TorqueNm = &torqueNm
	return out
}

// SoftZeroOffsets are application-level offsets subtracted from raw counts
// before SI conversion, independent of any hardware tare.
type SoftZeroOffsets struct {
	ForceCounts  [3]int32
	TorqueCounts [3]int32
}

// FromSample derives offsets that would zero out the given sample's current
// reading, i.e. a soft-zero captured at this instant.
func FromSample(s Sample) SoftZeroOffsets {
	return SoftZeroOffsets{
		ForceCounts:  [3]int32{s.Counts[0], s.Counts[1], s.Counts[2]},
		TorqueCounts: [3]int32{s.Counts[3], s.Counts[4], s.Counts[5]},
	}
}

// Apply subtracts the offsets from counts element-wise, returning the
// adjusted six-channel array. A zero-value SoftZeroOffsets is the identity.
func (o SoftZeroOffsets) Apply(counts [6]int32) [6]int32 {
	var out [6]int32
	out[0] = counts[0] - o.ForceCounts[0]
	out[1] = counts[1] - o.ForceCounts[1]
	out[2] = counts[2] - o.ForceCounts[2]
	out[3] = counts[3] - o.TorqueCounts[0]
	out[4] = counts[4] - o.TorqueCounts[1]
	out[5] = counts[5] - o.TorqueCounts[2]
	return out
}
