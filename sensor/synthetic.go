package sensor

import (
	"context"
	"sync"
	"time"

	"tiltball/motion"
)

// Pattern yields the i-th reading of a synthetic stream, starting at 0.
type Pattern func(i int) motion.OrientationSample

func Flat() Pattern {
	return func(int) motion.OrientationSample {
		return motion.OrientationSample{Z: -motion.RestBiasZ}
	}
}

func Tilt(x, y float64) Pattern {
	return func(int) motion.OrientationSample {
		return motion.OrientationSample{X: x, Y: y}
	}
}

type Step struct {
	Count  int
	Sample motion.OrientationSample
}

// Sequence plays each step Count times and then loops.
func Sequence(steps ...Step) Pattern {
	total := 0
	for _, s := range steps {
		total += s.Count
	}
	return func(i int) motion.OrientationSample {
		if total == 0 {
			return motion.OrientationSample{}
		}
		i %= total
		for _, s := range steps {
			if i < s.Count {
				return s.Sample
			}
			i -= s.Count
		}
		return motion.OrientationSample{}
	}
}

// Synthetic generates readings in-process on its own goroutine.
type Synthetic struct {
	pattern Pattern

	mu       sync.Mutex
	interval time.Duration
}

func NewSynthetic(p Pattern) *Synthetic {
	return &Synthetic{pattern: p, interval: motion.SampleInterval}
}

func (s *Synthetic) IsAvailable(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return s.pattern != nil, nil
}

func (s *Synthetic) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	s.mu.Lock()
	s.interval = d
	s.mu.Unlock()
}

func (s *Synthetic) Subscribe(fn func(motion.OrientationSample)) (motion.Subscription, error) {
	if s.pattern == nil {
		return nil, ErrNotAvailable
	}
	s.mu.Lock()
	interval := s.interval
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	sub := &syntheticSub{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(sub.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for i := 0; ; i++ {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn(s.pattern(i))
			}
		}
	}()
	return sub, nil
}

type syntheticSub struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Cancel stops the generator and waits until no reading is in flight.
func (s *syntheticSub) Cancel() {
	s.once.Do(func() {
		s.cancel()
		<-s.done
	})
}
