package motion

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Controller turns a gyroscope stream into a smoothed, bounded ball position.
type Controller struct {
	source   SensorSource
	smoother Smoother
	feedback FeedbackSink
	log      *zap.Logger

	mu       sync.Mutex
	checked  bool
	availErr error
}

func NewController(source SensorSource, smoother Smoother, feedback FeedbackSink, log *zap.Logger) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{
		source:   source,
		smoother: smoother,
		feedback: feedback,
		log:      log,
	}
}

// CheckAvailability probes the sensor source once. The answer, including a
// failed probe, holds for the controller's lifetime.
func (c *Controller) CheckAvailability(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.checked {
		return c.availErr
	}
	c.checked = true

	ok, err := c.source.IsAvailable(ctx)
	switch {
	case err != nil:
		c.availErr = fmt.Errorf("%w: %v", ErrSensorUnavailable, err)
	case !ok:
		c.availErr = ErrSensorUnavailable
	}
	if c.availErr != nil {
		c.log.Warn("sensor not available", zap.Error(c.availErr))
	}
	return c.availErr
}

func (c *Controller) ready() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.checked {
		return fmt.Errorf("%w: availability not confirmed", ErrSensorUnavailable)
	}
	return c.availErr
}

// NewSession returns an idle session for area with the ball at its center.
func (c *Controller) NewSession(area GameArea) (*Session, error) {
	if err := area.Validate(); err != nil {
		return nil, err
	}
	center := ComputeCenter(area)
	return &Session{
		ID:     uuid.NewString(),
		Area:   area,
		state:  Idle,
		target: center,
		x:      c.smoother.NewTrack(center.X),
		y:      c.smoother.NewTrack(center.Y),
	}, nil
}

// Start resets score and position and subscribes to the sensor. Starting an
// active session does nothing.
func (c *Controller) Start(s *Session) error {
	if err := c.ready(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.state == Active {
		s.mu.Unlock()
		return nil
	}
	center := ComputeCenter(s.Area)
	s.state = Active
	s.score = 0
	s.target = center
	s.x.Jump(center.X)
	s.y.Jump(center.Y)
	s.mu.Unlock()

	c.source.SetInterval(SampleInterval)
	sub, err := c.source.Subscribe(func(sample OrientationSample) {
		c.OnSample(s, sample)
	})
	if err != nil {
		s.mu.Lock()
		s.state = Idle
		s.mu.Unlock()
		c.log.Error("sensor subscribe failed", zap.String("session", s.ID), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrSubscriptionFailed, err)
	}

	s.mu.Lock()
	if s.state != Active {
		// stopped while subscribing
		s.mu.Unlock()
		sub.Cancel()
		return nil
	}
	s.sub = sub
	s.mu.Unlock()

	c.log.Debug("session started", zap.String("session", s.ID), zap.Float64("x", center.X), zap.Float64("y", center.Y))
	c.feedback.Notify(Success)
	return nil
}

// OnSample applies one reading and returns the new target. A sample arriving
// after Stop is ignored and reported with false.
func (c *Controller) OnSample(s *Session, sample OrientationSample) (Position, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Active {
		return s.target, false
	}

	if math.Abs(sample.Z+RestBiasZ) < FlatThreshold {
		center := ComputeCenter(s.Area)
		s.target = center
		s.x.AnimateTo(center.X, SettleProfile)
		s.y.AnimateTo(center.Y, SettleProfile)
		return center, true
	}

	// roll moves the ball sideways, pitch moves it up and down
	next := Clamp(s.Area, Position{
		X: s.target.X + sample.Y*Sensitivity,
		Y: s.target.Y + sample.X*Sensitivity,
	})
	s.target = next
	s.x.AnimateTo(next.X, DefaultProfile)
	s.y.AnimateTo(next.Y, DefaultProfile)
	return next, true
}

// MaybeEmitFeedback pulses the sink when more than Cooldown has passed since
// the last pulse. Callers detect the contact; this only gates it.
func (c *Controller) MaybeEmitFeedback(s *Session, now time.Time) bool {
	s.mu.Lock()
	if s.state != Active || now.Sub(s.lastFeedbackAt) <= Cooldown {
		s.mu.Unlock()
		return false
	}
	s.lastFeedbackAt = now
	s.mu.Unlock()

	c.feedback.Pulse(Medium)
	return true
}

// Stop releases the subscription. Safe to call on an idle session.
func (c *Controller) Stop(s *Session) {
	s.mu.Lock()
	if s.state != Active {
		s.mu.Unlock()
		return
	}
	s.state = Idle
	sub := s.sub
	s.sub = nil
	s.mu.Unlock()

	if sub != nil {
		sub.Cancel()
	}
	c.log.Debug("session stopped", zap.String("session", s.ID), zap.Int("score", s.Score()))
	c.feedback.Notify(Warning)
}
