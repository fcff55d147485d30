package protocol

import (
	"encoding/json"
)

const (
	// client -> server
	MsgHello   = "hello"
	MsgStart   = "start"
	MsgStop    = "stop"
	MsgSample  = "sample"
	MsgContact = "contact"

	// server -> client
	MsgWelcome = "welcome"
	MsgSensor  = "sensor"
	MsgTarget  = "target"
	MsgState   = "state"
	MsgHaptic  = "haptic"
	MsgError   = "error"
)

const (
	FrameHz          = 60
	BroadcastHz      = 20
	SampleIntervalMs = 16
	Version          = 1
)

const (
	RoleDevice = "device"
	RoleViewer = "viewer"
)

const (
	ErrCodeSensorUnavailable  = "sensor_unavailable"
	ErrCodeSubscriptionFailed = "subscription_failed"
	ErrCodeNotDevice          = "not_device"
	ErrCodeBadMessage         = "bad_message"
	ErrCodeRoomFull           = "room_full"
)

type Envelope struct {
	T string          `json:"t"`
	P json.RawMessage `json:"p,omitempty"` // raw payload bytes
}
