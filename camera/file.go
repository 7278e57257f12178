package camera

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"sync"
	"time"
)

// File replays a pre-recorded clip as if it were a live camera. Segments
// are paced by Interval so a countdown sees data arrive over time.
type File struct {
	Path     string
	Chunk    int
	Interval time.Duration
	LockPath string
}

func (f *File) Open(ctx context.Context, _ Constraints) (Stream, error) {
	fd, err := os.Open(f.Path)
	if err != nil {
		kind := ErrAcquisition
		switch {
		case errors.Is(err, fs.ErrNotExist):
			kind = ErrDeviceUnavailable
		case errors.Is(err, fs.ErrPermission):
			kind = ErrPermissionDenied
		}
		return nil, &AcquireError{Device: f.Path, Kind: kind, Err: err}
	}
	own, err := acquireOwnership(f.Path, f.LockPath)
	if err != nil {
		_ = fd.Close()
		return nil, err
	}
	chunk := f.Chunk
	if chunk <= 0 {
		chunk = segmentSize
	}
	return &fileStream{fd: fd, chunk: chunk, every: f.Interval, own: own, stop: make(chan struct{})}, nil
}

type fileStream struct {
	fd    *os.File
	chunk int
	every time.Duration
	own   *ownership

	mu       sync.Mutex
	started  bool
	stopOnce sync.Once
	stop     chan struct{}
	closed   bool
}

func (s *fileStream) Start(ctx context.Context) (<-chan []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, &AcquireError{Device: s.fd.Name(), Kind: ErrAcquisition, Err: errors.New("stream closed")}
	}
	if s.started {
		return nil, &AcquireError{Device: s.fd.Name(), Kind: ErrAcquisition, Err: errors.New("capture already started")}
	}
	s.started = true

	segs := make(chan []byte, 16)
	go func() {
		defer close(segs)
		for {
			buf := make([]byte, s.chunk)
			n, err := s.fd.Read(buf)
			if n > 0 {
				select {
				case segs <- buf[:n]:
				case <-s.stop:
					return
				}
			}
			if err != nil {
				return
			}
			if s.every > 0 {
				select {
				case <-time.After(s.every):
				case <-s.stop:
					return
				}
			} else {
				select {
				case <-s.stop:
					return
				default:
				}
			}
		}
	}()
	return segs, nil
}

func (s *fileStream) StopCapture() error {
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}

func (s *fileStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.stopOnce.Do(func() { close(s.stop) })
	err := s.fd.Close()
	if rerr := s.own.release(); err == nil {
		err = rerr
	}
	return err
}
