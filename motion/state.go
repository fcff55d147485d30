package motion

import (
	"fmt"
	"sync"
	"time"
)

type State uint8

const (
	Idle State = iota
	Active
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Active:
		return "active"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// GameArea is the rectangle the ball may occupy. Top offsets the playfield
// below the score header.
type GameArea struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Top    float64 `json:"top"`
}

func (a GameArea) Validate() error {
	if a.Width < BallSize || a.Height < BallSize {
		return fmt.Errorf("%w: %gx%g smaller than ball %g", ErrInvalidArea, a.Width, a.Height, BallSize)
	}
	return nil
}

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// OrientationSample is one gyroscope reading, rotation rate about each axis.
type OrientationSample struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type Viewport struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type Insets struct {
	Top    float64 `json:"top"`
	Bottom float64 `json:"bottom"`
}

// Session is one play session. It owns the commanded target and is its only writer.
type Session struct {
	ID   string
	Area GameArea

	mu             sync.Mutex
	state          State
	score          int
	target         Position
	lastFeedbackAt time.Time
	x, y           Track
	sub            Subscription
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Score() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.score
}

func (s *Session) AddScore(n int) {
	if n <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Active {
		s.score += n
	}
}

// Target is the last commanded position.
func (s *Session) Target() Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.target
}

// Rendered is where the smoother currently has the ball.
func (s *Session) Rendered() Position {
	return Position{X: s.x.Value(), Y: s.y.Value()}
}

func (s *Session) LastFeedbackAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastFeedbackAt
}
