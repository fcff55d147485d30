package spring

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/charmbracelet/harmonica"
)

// Params mirrors the damping/stiffness/mass triple clients use to describe a spring.
type Params struct {
	Damping   float64
	Stiffness float64
	Mass      float64
}

// settle thresholds
const (
	restDelta    = 0.01
	restVelocity = 0.01
)

// Coefficients converts Params to harmonica's angular frequency and damping ratio.
// Mass defaults to 1.
func (p Params) Coefficients() (angularFreq, dampingRatio float64) {
	m := p.Mass
	if m <= 0 {
		m = 1
	}
	if p.Stiffness <= 0 {
		return 0, 1
	}
	angularFreq = math.Sqrt(p.Stiffness / m)
	dampingRatio = p.Damping / (2 * math.Sqrt(p.Stiffness*m))
	return angularFreq, dampingRatio
}

type Engine struct {
	mu     sync.Mutex
	fps    int
	dt     float64
	values []*Value
	frame  int
}

func NewEngine(fps int) *Engine {
	if fps <= 0 {
		fps = 60
	}
	return &Engine{fps: fps, dt: harmonica.FPS(fps)}
}

// Value is one animated scalar owned by an Engine.
type Value struct {
	e *Engine

	pos, vel float64
	target   float64
	params   Params
	spring   harmonica.Spring
	moving   bool
}

func (e *Engine) NewValue(initial float64) *Value {
	e.mu.Lock()
	defer e.mu.Unlock()
	v := &Value{e: e, pos: initial, target: initial}
	e.values = append(e.values, v)
	return v
}

// AnimateTo retargets v. An animation already in flight keeps its velocity and
// continues toward the new target with the new params.
func (v *Value) AnimateTo(target float64, p Params) {
	v.e.mu.Lock()
	defer v.e.mu.Unlock()
	if p != v.params || !v.moving {
		freq, ratio := p.Coefficients()
		v.spring = harmonica.NewSpring(v.e.dt, freq, ratio)
		v.params = p
	}
	v.target = target
	v.moving = true
}

// Jump places v at x with no motion.
func (v *Value) Jump(x float64) {
	v.e.mu.Lock()
	defer v.e.mu.Unlock()
	v.pos, v.target, v.vel = x, x, 0
	v.moving = false
}

func (v *Value) Value() float64 {
	v.e.mu.Lock()
	defer v.e.mu.Unlock()
	return v.pos
}

func (v *Value) Target() float64 {
	v.e.mu.Lock()
	defer v.e.mu.Unlock()
	return v.target
}

func (v *Value) Settled() bool {
	v.e.mu.Lock()
	defer v.e.mu.Unlock()
	return !v.moving
}

// Step advances every value by one frame.
func (e *Engine) Step() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.frame++
	for _, v := range e.values {
		if !v.moving {
			continue
		}
		v.pos, v.vel = v.spring.Update(v.pos, v.vel, v.target)
		if math.Abs(v.pos-v.target) < restDelta && math.Abs(v.vel) < restVelocity {
			v.pos, v.vel = v.target, 0
			v.moving = false
		}
	}
}

func (e *Engine) Frame() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frame
}

// Run steps the engine at its frame rate until ctx is done.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second / time.Duration(e.fps))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Step()
		}
	}
}
