package protocol

import "tiltball/motion"

// messages coming in from the phone or a viewer

type Hello struct {
	V         int             `json:"v"`
	Name      string          `json:"name,omitempty"`
	Role      string          `json:"role"`
	Viewport  motion.Viewport `json:"viewport"`
	Insets    motion.Insets   `json:"insets"`
	Gyroscope bool            `json:"gyroscope"` // result of the device's own availability probe
}

type Sample struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (s Sample) Orientation() motion.OrientationSample {
	return motion.OrientationSample{X: s.X, Y: s.Y, Z: s.Z}
}

// Contact is sent when the device's own renderer sees the ball hit a wall.
type Contact struct {
	At int64 `json:"at"` // unix millis on the device clock
}
