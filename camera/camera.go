// Package camera abstracts the capture hardware used by a recording: a
// Device is opened once per attempt and yields a Stream whose segments are
// delivered in order until capture stops.
package camera

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrDeviceUnavailable means this host has no usable capture capability.
	ErrDeviceUnavailable = errors.New("camera unavailable")
	// ErrPermissionDenied means the device exists but access was refused.
	ErrPermissionDenied = errors.New("camera permission denied")
	// ErrAcquisition covers every other failure to open or start capture.
	ErrAcquisition = errors.New("camera acquisition failed")
)

// AcquireError ties a failure to its device and its taxonomy sentinel.
type AcquireError struct {
	Device string
	Kind   error
	Err    error
}

func (e *AcquireError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Device, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Device, e.Kind, e.Err)
}

func (e *AcquireError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Constraints is the requested capture format. Facing is advisory; drivers
// that cannot select a facing ignore it.
type Constraints struct {
	Width  int
	Height int
	Facing string
}

type Device interface {
	Open(ctx context.Context, c Constraints) (Stream, error)
}

// Stream is an opened camera. Start begins capture and returns the segment
// channel, which is closed once capture has stopped and every buffered
// segment has been delivered. Close stops all tracks and is safe to call
// more than once.
type Stream interface {
	Start(ctx context.Context) (<-chan []byte, error)
	StopCapture() error
	Close() error
}
