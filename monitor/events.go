package monitor

import (
	"fmt"
	"time"

	"github.com/cwbudde/voicegate/dsp/vad"
	"github.com/cwbudde/voicegate/monitor/topology"
)

// ConnectionState is the device binding state of the engine.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connected
)

func (c ConnectionState) String() string {
	switch c {
	case Disconnected:
		return "disconnected"
	case Connected:
		return "connected"
	}
	return fmt.Sprintf("ConnectionState(%d)", int(c))
}

// EventKind tells which field of an Event is set.
type EventKind int

const (
	EventConnection EventKind = iota
	EventVoice
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventConnection:
		return "connection"
	case EventVoice:
		return "voice"
	case EventError:
		return "error"
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Event is a status notification for the collaborator layer.
type Event struct {
	Kind       EventKind
	Time       time.Time
	Connection ConnectionState
	Mode       topology.Mode
	Voice      vad.Decision
	Err        *Error
}

// Status is a point-in-time snapshot of the engine.
type Status struct {
	Connection ConnectionState
	// Mode is the mode of the live session, or of the last one.
	Mode topology.Mode
	// PendingMode is used by the next Restart.
	PendingMode   topology.Mode
	Volume        float64
	Muted         bool
	Sensitivity   float64
	EffectiveGain float64
	Voice         vad.Decision
	GateGain      float64
	Peak          float64
	LastError     *Error
}
