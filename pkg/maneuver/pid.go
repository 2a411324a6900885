package maneuver

// PIDConfig holds controller gains and limits.
type PIDConfig struct {
	Kp            float64 `yaml:"kp"`
	Ki            float64 `yaml:"ki"`
	Kd            float64 `yaml:"kd"`
	IntegralLimit float64 `yaml:"integral_limit"`
	OutputLimit   float64 `yaml:"output_limit"`
}

// DefaultPIDConfig returns the nose-down balance gains.
func DefaultPIDConfig() PIDConfig {
	return PIDConfig{Kp: 1.2, Ki: 0.4, Kd: 0.15, IntegralLimit: 0.5, OutputLimit: 1.0}
}

// PID is a rate-damped PID controller. The derivative term uses the
// measured rate rather than a differenced error.
type PID struct {
	cfg      PIDConfig
	integral float64
	prevErr  float64
}

// NewPID creates a controller.
func NewPID(cfg PIDConfig) *PID {
	return &PID{cfg: cfg}
}

// Update advances the controller by dt seconds. rate is the measured rate
// of the controlled quantity, so the error derivative is -rate.
func (p *PID) Update(err, rate, dt float64) float64 {
	if dt > 0 {
		p.integral = clamp(p.integral+err*dt, p.cfg.IntegralLimit)
	}
	p.prevErr = err
	out := p.cfg.Kp*err + p.cfg.Ki*p.integral - p.cfg.Kd*rate
	return clamp(out, p.cfg.OutputLimit)
}

// Reset clears the integrator and previous error.
func (p *PID) Reset() {
	p.integral = 0
	p.prevErr = 0
}

// Integral returns the accumulated integral.
func (p *PID) Integral() float64 { return p.integral }

// PrevError returns the error from the last update.
func (p *PID) PrevError() float64 { return p.prevErr }
