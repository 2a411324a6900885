// Package orientation estimates body pitch from raw accelerometer and
// gyro samples.
package orientation

import (
	"math"
	"sync"
	"time"

	"github.com/teslashibe/go-jumpstick/internal/handoff"
)

// Reading is the orientation consumed by posture control. Pitch is
// positive when the nose points down.
type Reading struct {
	Pitch      float64   // rad, 0 = level
	Rate       float64   // rad/s
	UpsideDown bool      // hysteresis applied
	At         time.Time // zero when no sample has arrived
}

// Sample is one raw IMU measurement. Acceleration is in g, rotation in
// rad/s.
type Sample struct {
	Ax, Ay, Az float64
	Gx, Gy, Gz float64
	At         time.Time
}

// Config tunes the complementary filter.
type Config struct {
	Alpha float64 `yaml:"alpha"` // gyro weight

	// Upside-down is entered below FlipEnter and left above FlipExit
	// (vertical acceleration, g).
	FlipEnter float64 `yaml:"flip_enter"`
	FlipExit  float64 `yaml:"flip_exit"`

	// A gap longer than MaxGap reseeds the filter from the accelerometer.
	MaxGap time.Duration `yaml:"max_gap"`
}

// DefaultConfig returns the default filter settings.
func DefaultConfig() Config {
	return Config{
		Alpha:     0.98,
		FlipEnter: -0.5,
		FlipExit:  0.3,
		MaxGap:    500 * time.Millisecond,
	}
}

// Estimator fuses samples into a Reading. It is not safe for concurrent
// use; see Feed.
type Estimator struct {
	cfg     Config
	reading Reading
	seeded  bool
}

// NewEstimator creates an estimator.
func NewEstimator(cfg Config) *Estimator {
	return &Estimator{cfg: cfg}
}

// AccelPitch returns the pitch implied by gravity alone.
func AccelPitch(ax, az float64) float64 {
	return math.Atan2(-ax, az)
}

// Update folds one sample into the estimate.
func (e *Estimator) Update(s Sample) Reading {
	accel := AccelPitch(s.Ax, s.Az)
	dt := s.At.Sub(e.reading.At).Seconds()

	if !e.seeded || dt <= 0 || s.At.Sub(e.reading.At) > e.cfg.MaxGap {
		e.reading.Pitch = accel
		e.seeded = true
	} else {
		a := e.cfg.Alpha
		e.reading.Pitch = a*(e.reading.Pitch+s.Gy*dt) + (1-a)*accel
	}

	switch {
	case s.Az < e.cfg.FlipEnter:
		e.reading.UpsideDown = true
	case s.Az > e.cfg.FlipExit:
		e.reading.UpsideDown = false
	}

	e.reading.Rate = s.Gy
	e.reading.At = s.At
	return e.reading
}

// Reading returns the current estimate.
func (e *Estimator) Reading() Reading { return e.reading }

// Feed owns an Estimator for a producer goroutine and publishes each
// result for the control loop.
type Feed struct {
	mu  sync.Mutex
	est *Estimator
	out handoff.Value[Reading]
}

// NewFeed creates a feed.
func NewFeed(cfg Config) *Feed {
	return &Feed{est: NewEstimator(cfg)}
}

// Push filters s and publishes the new reading.
func (f *Feed) Push(s Sample) Reading {
	f.mu.Lock()
	r := f.est.Update(s)
	f.mu.Unlock()
	f.out.Store(r)
	return r
}

// Load returns the latest published reading, or a zero Reading.
func (f *Feed) Load() Reading {
	r, _ := f.out.Load()
	return r
}
