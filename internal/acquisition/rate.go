package acquisition

import "math"

// storeRate and samplesPerSecond shuttle a float64 rate through an
// atomic.Uint64 so the rate can be read from Statistics without taking
// rateMu (which is held only by the receive worker's own updates).
func (e *Engine) storeRate(rate float64) {
	e.currentRate.Store(math.Float64bits(rate))
}

func (e *Engine) samplesPerSecond() float64 {
	return math.Float64frombits(e.currentRate.Load())
}
