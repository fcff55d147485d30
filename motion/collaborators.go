package motion

import (
	"context"
	"errors"
	"time"

	"tiltball/spring"
)

var (
	ErrSensorUnavailable  = errors.New("sensor unavailable")
	ErrSubscriptionFailed = errors.New("sensor subscription failed")
	ErrInvalidArea        = errors.New("invalid game area")
)

type Subscription interface {
	Cancel()
}

// SensorSource delivers orientation samples one at a time, in order, until the
// subscription is cancelled.
type SensorSource interface {
	IsAvailable(ctx context.Context) (bool, error)
	SetInterval(d time.Duration)
	Subscribe(fn func(OrientationSample)) (Subscription, error)
}

// Track is one animated axis. AnimateTo retargets; it never queues.
type Track interface {
	AnimateTo(target float64, p spring.Params)
	Jump(v float64)
	Value() float64
}

type Smoother interface {
	NewTrack(initial float64) Track
}

type Intensity uint8

const (
	Light Intensity = iota
	Medium
	Strong
)

func (i Intensity) String() string {
	switch i {
	case Light:
		return "light"
	case Medium:
		return "medium"
	case Strong:
		return "strong"
	}
	return "unknown"
}

type Notification uint8

const (
	Success Notification = iota
	Warning
)

func (n Notification) String() string {
	if n == Success {
		return "success"
	}
	return "warning"
}

// FeedbackSink is fire-and-forget; implementations swallow their own failures.
type FeedbackSink interface {
	Pulse(Intensity)
	Notify(Notification)
}

type engineSmoother struct {
	e *spring.Engine
}

func (s engineSmoother) NewTrack(initial float64) Track {
	return s.e.NewValue(initial)
}

// SpringSmoother adapts a spring.Engine.
func SpringSmoother(e *spring.Engine) Smoother {
	return engineSmoother{e: e}
}
