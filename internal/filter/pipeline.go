package filter

// NumChannels is the fixed channel count: three force axes, three torque
// axes.
const NumChannels = 6

// Pipeline wraps one LowPass filter per channel and tracks whether the
// next sample needs to prime (bumpless start) rather than advance.
type Pipeline struct {
	enabled      bool
	cutoffHz     float64
	sampleRateHz float64
	channels     [NumChannels]*LowPass
	needsPrime   bool
}

// NewPipeline constructs a disabled pipeline at the given cutoff/sample
// rate; enable it with SetEnabled(true).
func NewPipeline(cutoffHz, sampleRateHz float64) (*Pipeline, error) {
	p := &Pipeline{cutoffHz: cutoffHz, sampleRateHz: sampleRateHz}
	if err := p.rebuild(); err != nil {
		return nil, err
	}
	p.needsPrime = true
	return p, nil
}

func (p *Pipeline) rebuild() error {
	coef, err := ComputeCoefficients(p.cutoffHz, p.sampleRateHz)
	if err != nil {
		return err
	}
	for i := range p.channels {
		p.channels[i] = NewLowPass(coef)
	}
	return nil
}

// SetEnabled toggles filtering. Enabling always re-primes on the next
// sample to avoid a transient.
func (p *Pipeline) SetEnabled(enabled bool) {
	p.enabled = enabled
	if enabled {
		p.needsPrime = true
	}
}

// Enabled reports whether filtering is currently active.
func (p *Pipeline) Enabled() bool {
	return p.enabled
}

// SetCutoffHz changes the cutoff frequency, rebuilding coefficients and
// requiring a re-prime.
func (p *Pipeline) SetCutoffHz(cutoffHz float64) error {
	prev := p.cutoffHz
	p.cutoffHz = cutoffHz
	if err := p.rebuild(); err != nil {
		p.cutoffHz = prev
		return err
	}
	p.needsPrime = true
	return nil
}

// SetSampleRateHz changes the sample rate, rebuilding coefficients and
// requiring a re-prime.
func (p *Pipeline) SetSampleRateHz(sampleRateHz float64) error {
	prev := p.sampleRateHz
	p.sampleRateHz = sampleRateHz
	if err := p.rebuild(); err != nil {
		p.sampleRateHz = prev
		return err
	}
	p.needsPrime = true
	return nil
}

// Reset forces the next Apply to prime instead of advance.
func (p *Pipeline) Reset() {
	p.needsPrime = true
}

// Apply runs one six-channel sample through the pipeline. If the filter is
// disabled, x is returned unchanged. On the first call after Reset/enable,
// the filter primes from x and returns x unchanged (bumpless start);
// subsequent calls advance the filter and return its output.
func (p *Pipeline) Apply(x [NumChannels]float64) [NumChannels]float64 {
	if !p.enabled {
		return x
	}
	if p.needsPrime {
		for i, ch := range p.channels {
			ch.Prime(x[i])
		}
		p.needsPrime = false
		return x
	}
	var out [NumChannels]float64
	for i, ch := range p.channels {
		out[i] = ch.Process(x[i])
	}
	return out
}
