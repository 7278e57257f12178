package camera

import (
	"fmt"

	"github.com/gofrs/flock"
)

// ownership holds the host-wide camera lock so two capture processes never
// stream from the same device.
type ownership struct {
	lock *flock.Flock
}

func acquireOwnership(device, path string) (*ownership, error) {
	if path == "" {
		return &ownership{}, nil
	}
	l := flock.New(path)
	ok, err := l.TryLock()
	if err != nil {
		return nil, &AcquireError{Device: device, Kind: ErrAcquisition, Err: fmt.Errorf("lock %s: %w", path, err)}
	}
	if !ok {
		return nil, &AcquireError{Device: device, Kind: ErrAcquisition, Err: fmt.Errorf("camera in use by another process (%s)", path)}
	}
	return &ownership{lock: l}, nil
}

func (o *ownership) release() error {
	if o == nil || o.lock == nil {
		return nil
	}
	return o.lock.Unlock()
}
