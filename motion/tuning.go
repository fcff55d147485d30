package motion

import (
	"time"

	"tiltball/spring"
)

const (
	BallSize       = 40.0
	Sensitivity    = 8.0 // position units per unit of rotation rate per sample
	RestBiasZ      = 4.5 // z reading of a phone lying flat
	FlatThreshold  = 1.0
	Cooldown       = 500 * time.Millisecond // between haptic pulses
	SampleInterval = 16 * time.Millisecond
	HeaderReserve  = 60.0  // score line above the playfield
	ChromeReserve  = 120.0 // score line + start/stop button
	EdgeEpsilon    = 0.5
)

var (
	DefaultProfile = spring.Params{Damping: 12, Stiffness: 80, Mass: 1}
	SettleProfile  = spring.Params{Damping: 15, Stiffness: 50, Mass: 1}
)
