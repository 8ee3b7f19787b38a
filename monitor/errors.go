package monitor

import (
	"errors"
	"fmt"

	"github.com/cwbudde/voicegate/device"
)

// ErrorKind classifies failures reported by the engine.
type ErrorKind int

const (
	KindPermissionDenied ErrorKind = iota + 1
	KindDeviceUnavailable
	KindUnsupportedConfiguration
	KindDeviceLost
	KindProcessingFault
)

var kindNames = map[ErrorKind]string{
	KindPermissionDenied:         "permission-denied",
	KindDeviceUnavailable:        "device-unavailable",
	KindUnsupportedConfiguration: "unsupported-configuration",
	KindDeviceLost:               "device-lost",
	KindProcessingFault:          "processing-fault",
}

func (k ErrorKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Sentinels matched by errors.Is against an *Error of the same kind.
var (
	ErrPermissionDenied         = errors.New("microphone access denied")
	ErrDeviceUnavailable        = errors.New("no microphone available")
	ErrUnsupportedConfiguration = errors.New("audio configuration not supported")
	ErrDeviceLost               = errors.New("audio device disconnected")
	ErrProcessingFault          = errors.New("audio processing fault")
)

// Command errors that are not session failures.
var (
	ErrInvalidArgument = errors.New("monitor: invalid argument")
	ErrNothingToRetry  = errors.New("monitor: no permission failure to retry")
	ErrClosed          = errors.New("monitor: engine closed")
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindPermissionDenied:
		return ErrPermissionDenied
	case KindDeviceUnavailable:
		return ErrDeviceUnavailable
	case KindUnsupportedConfiguration:
		return ErrUnsupportedConfiguration
	case KindDeviceLost:
		return ErrDeviceLost
	case KindProcessingFault:
		return ErrProcessingFault
	}
	return nil
}

// Error is a failure of start or of a running session.
type Error struct {
	Kind ErrorKind
	// Param names the rejected parameter for KindUnsupportedConfiguration.
	Param string
	Err   error
}

func (e *Error) Error() string {
	msg := "monitor: " + e.Message()
	if e.Param != "" {
		msg += " (" + e.Param + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Message returns the human-readable cause shown to the user.
func (e *Error) Message() string {
	switch e.Kind {
	case KindPermissionDenied:
		return "microphone access denied; allow access and retry"
	case KindDeviceUnavailable:
		return "no microphone found on this device"
	case KindUnsupportedConfiguration:
		return "audio configuration not supported"
	case KindDeviceLost:
		return "microphone disconnected"
	case KindProcessingFault:
		return "audio processing fault; session stopped"
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel of e's kind.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// Retryable reports whether RetryPermission applies to e.
func (e *Error) Retryable() bool { return e.Kind == KindPermissionDenied }

// classify maps a start or stream failure onto an *Error.
func classify(err error) *Error {
	var me *Error
	if errors.As(err, &me) {
		return me
	}

	switch {
	case errors.Is(err, device.ErrPermissionDenied):
		return &Error{Kind: KindPermissionDenied, Err: err}
	case errors.Is(err, device.ErrUnsupportedConfig):
		e := &Error{Kind: KindUnsupportedConfiguration, Err: err}
		var ce *device.ConfigError
		if errors.As(err, &ce) {
			e.Param = ce.Param
		}
		return e
	case errors.Is(err, device.ErrDeviceLost):
		return &Error{Kind: KindDeviceLost, Err: err}
	}
	return &Error{Kind: KindDeviceUnavailable, Err: err}
}

func invalidArgument(name string, value any, err error) error {
	if err != nil {
		return fmt.Errorf("%w: %s %v: %w", ErrInvalidArgument, name, value, err)
	}
	return fmt.Errorf("%w: %s %v", ErrInvalidArgument, name, value)
}
