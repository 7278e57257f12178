package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"
)

const segmentSize = 64 << 10

// FFmpeg captures a V4L2 device through an ffmpeg subprocess that encodes
// WebM to stdout.
type FFmpeg struct {
	Binary   string
	Device   string
	LockPath string
	Log      logrus.FieldLogger
}

func (f *FFmpeg) Open(ctx context.Context, c Constraints) (Stream, error) {
	bin, err := exec.LookPath(f.binary())
	if err != nil {
		return nil, &AcquireError{Device: f.Device, Kind: ErrDeviceUnavailable, Err: err}
	}
	if err := checkDevice(f.Device); err != nil {
		return nil, err
	}
	own, err := acquireOwnership(f.Device, f.LockPath)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		_ = own.release()
		return nil, &AcquireError{Device: f.Device, Kind: ErrAcquisition, Err: err}
	}
	return &ffmpegStream{
		bin:    bin,
		device: f.Device,
		c:      c,
		own:    own,
		log:    f.logger().WithField("device", f.Device),
	}, nil
}

func (f *FFmpeg) binary() string {
	if f.Binary == "" {
		return "ffmpeg"
	}
	return f.Binary
}

func (f *FFmpeg) logger() logrus.FieldLogger {
	if f.Log == nil {
		return logrus.StandardLogger()
	}
	return f.Log
}

// checkDevice opens the device node once to classify missing hardware and
// refused access before any process is spawned.
func checkDevice(device string) error {
	fd, err := os.OpenFile(device, os.O_RDONLY, 0)
	switch {
	case err == nil:
		return fd.Close()
	case errors.Is(err, fs.ErrNotExist):
		return &AcquireError{Device: device, Kind: ErrDeviceUnavailable, Err: err}
	case errors.Is(err, fs.ErrPermission):
		return &AcquireError{Device: device, Kind: ErrPermissionDenied, Err: err}
	default:
		return &AcquireError{Device: device, Kind: ErrAcquisition, Err: err}
	}
}

type ffmpegStream struct {
	bin    string
	device string
	c      Constraints
	own    *ownership
	log    logrus.FieldLogger

	mu     sync.Mutex
	cmd    *exec.Cmd
	stderr bytes.Buffer
	done   chan struct{}
	closed bool
}

func (s *ffmpegStream) args() []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-f", "v4l2"}
	if s.c.Width > 0 && s.c.Height > 0 {
		args = append(args, "-video_size", strconv.Itoa(s.c.Width)+"x"+strconv.Itoa(s.c.Height))
	}
	return append(args,
		"-i", s.device,
		"-an",
		"-c:v", "libvpx", "-deadline", "realtime", "-b:v", "1M",
		"-f", "webm", "pipe:1",
	)
}

func (s *ffmpegStream) Start(ctx context.Context) (<-chan []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, &AcquireError{Device: s.device, Kind: ErrAcquisition, Err: errors.New("stream closed")}
	}
	if s.cmd != nil {
		return nil, &AcquireError{Device: s.device, Kind: ErrAcquisition, Err: errors.New("capture already started")}
	}

	cmd := exec.Command(s.bin, s.args()...)
	cmd.Stderr = &s.stderr
	out, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &AcquireError{Device: s.device, Kind: ErrAcquisition, Err: err}
	}
	if err := cmd.Start(); err != nil {
		return nil, &AcquireError{Device: s.device, Kind: ErrAcquisition, Err: fmt.Errorf("start ffmpeg: %w", err)}
	}
	s.cmd = cmd
	s.done = make(chan struct{})
	s.log.WithField("pid", cmd.Process.Pid).Debug("capture started")

	segs := make(chan []byte, 16)
	go s.pump(out, segs)
	return segs, nil
}

func (s *ffmpegStream) pump(out io.Reader, segs chan<- []byte) {
	defer close(segs)
	buf := make([]byte, segmentSize)
	for {
		n, err := out.Read(buf)
		if n > 0 {
			seg := make([]byte, n)
			copy(seg, buf[:n])
			segs <- seg
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.log.WithError(err).Warn("capture read failed")
			}
			break
		}
	}
	if err := s.cmd.Wait(); err != nil {
		s.log.WithError(err).WithField("stderr", s.stderr.String()).Debug("ffmpeg exited")
	}
	close(s.done)
}

// StopCapture asks ffmpeg to finish the container; the segment channel
// closes once it has flushed.
func (s *ffmpegStream) StopCapture() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd == nil || s.cmd.Process == nil {
		return nil
	}
	select {
	case <-s.done:
		return nil
	default:
	}
	if err := s.cmd.Process.Signal(os.Interrupt); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("stop ffmpeg: %w", err)
	}
	return nil
}

func (s *ffmpegStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.cmd != nil && s.cmd.Process != nil {
		select {
		case <-s.done:
		default:
			_ = s.cmd.Process.Kill()
		}
	}
	s.log.Debug("camera released")
	return s.own.release()
}
