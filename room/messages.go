package room

import (
	"time"

	"tiltball/motion"
	"tiltball/protocol"
)

type Conn interface {
	Send([]byte) error
	Close() error
}

// Join: issued once after hello parsed
type Join struct {
	Conn  Conn
	Hello protocol.Hello
	Reply chan<- JoinResult
}

type JoinResult struct {
	ClientID string
	Role     string
	Err      *protocol.Error
}

// StartPlay / StopPlay: device pressed the start or stop button
type StartPlay struct {
	ClientID string
}

type StopPlay struct {
	ClientID string
}

// Sample: one gyroscope reading from the device
type Sample struct {
	ClientID string
	Sample   motion.OrientationSample
}

// Contact: the device's renderer saw the ball hit a wall
type Contact struct {
	ClientID string
	At       time.Time
}

// Leave: issued on disconnect
type Leave struct {
	ClientID string
}
