package sensor

import (
	"context"
	"errors"
	"sync"
	"time"

	"tiltball/motion"
)

var ErrNotAvailable = errors.New("device reported no gyroscope")

// ControlFunc tells the device how (and whether) to stream gyroscope readings.
type ControlFunc func(interval time.Duration, streaming bool) error

// Remote is the gyroscope of a connected device. Availability is whatever the
// device claimed in its hello; samples come in through Deliver.
type Remote struct {
	control ControlFunc

	mu        sync.Mutex
	available bool
	interval  time.Duration
	streaming bool
	fn        func(motion.OrientationSample)
	gen       uint64
}

func NewRemote(available bool, control ControlFunc) *Remote {
	if control == nil {
		control = func(time.Duration, bool) error { return nil }
	}
	return &Remote{
		control:   control,
		available: available,
		interval:  motion.SampleInterval,
	}
}

func (r *Remote) IsAvailable(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.available, nil
}

func (r *Remote) SetInterval(d time.Duration) {
	r.mu.Lock()
	r.interval = d
	streaming := r.streaming
	r.mu.Unlock()
	if streaming {
		_ = r.control(d, true)
	}
}

func (r *Remote) Subscribe(fn func(motion.OrientationSample)) (motion.Subscription, error) {
	r.mu.Lock()
	if !r.available {
		r.mu.Unlock()
		return nil, ErrNotAvailable
	}
	interval := r.interval
	r.mu.Unlock()

	if err := r.control(interval, true); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.gen++
	r.fn = fn
	r.streaming = true
	return &remoteSub{r: r, gen: r.gen}, nil
}

// Deliver hands one reading to the live subscriber. Readings that arrive with
// nobody subscribed are dropped.
func (r *Remote) Deliver(s motion.OrientationSample) bool {
	r.mu.Lock()
	fn := r.fn
	r.mu.Unlock()
	if fn == nil {
		return false
	}
	fn(s)
	return true
}

func (r *Remote) Streaming() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.streaming
}

type remoteSub struct {
	r    *Remote
	gen  uint64
	once sync.Once
}

func (s *remoteSub) Cancel() {
	s.once.Do(func() {
		r := s.r
		r.mu.Lock()
		if r.gen != s.gen {
			// superseded by a newer subscription
			r.mu.Unlock()
			return
		}
		r.fn = nil
		r.streaming = false
		interval := r.interval
		r.mu.Unlock()
		_ = r.control(interval, false)
	})
}
