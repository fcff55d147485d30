package protocol

import "tiltball/motion"

type Welcome struct {
	ClientID string          `json:"clientId"`
	RoomCode string          `json:"roomCode"`
	Role     string          `json:"role"`
	FrameHz  int             `json:"frameHz"`
	Area     motion.GameArea `json:"area"`
}

// SensorConfig tells the device how to drive its gyroscope listener.
type SensorConfig struct {
	IntervalMs int  `json:"intervalMs"`
	Streaming  bool `json:"streaming"`
}

type Target struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type State struct {
	Frame   int             `json:"frame"`
	Playing bool            `json:"playing"`
	Score   int             `json:"score"`
	Ball    motion.Position `json:"ball"`
	Target  motion.Position `json:"target"`
	Area    motion.GameArea `json:"area"`
	Viewers int             `json:"viewers"`
}

type Haptic struct {
	Kind  string `json:"kind"`
	Style string `json:"style"`
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}
