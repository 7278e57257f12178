package orchestrator

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sudo-sidd/Face-Data-collection-and-Gallery-management-application/camera"
)

// Handoff receives the finalised artifact. It must return once the artifact
// has been accepted, not once it has been uploaded.
type Handoff func(ctx context.Context, a Artifact) error

type RecorderOptions struct {
	Total       int           // countdown length in ticks
	Tick        time.Duration // countdown resolution
	Constraints camera.Constraints
	Schedule    Schedule
	// Abort is told when a stop started by the countdown fails. The
	// recorder has already released the camera by then.
	Abort func(err error)
}

// Recorder owns the camera for one attempt and runs the timed recording.
//
//	Idle -> CameraReady -> Recording -> Stopping -> Idle
type Recorder struct {
	opts    RecorderOptions
	dev     camera.Device
	sink    Sink
	log     logrus.FieldLogger
	handoff Handoff

	mu      sync.Mutex
	state   RecState
	stream  camera.Stream
	chunks  [][]byte
	elapsed int
	quit    chan struct{}
	drained chan struct{}
}

func NewRecorder(dev camera.Device, opts RecorderOptions, sink Sink, log logrus.FieldLogger, h Handoff) *Recorder {
	if opts.Total <= 0 {
		opts.Total = 8
	}
	if opts.Tick <= 0 {
		opts.Tick = time.Second
	}
	if sink == nil {
		sink = NopSink{}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Recorder{opts: opts, dev: dev, sink: sink, log: log, handoff: h, state: RecIdle}
}

func (r *Recorder) State() RecState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// AcquireCamera opens the device. On failure any partially opened stream is
// closed and the recorder stays Idle.
func (r *Recorder) AcquireCamera(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != RecIdle {
		return fmt.Errorf("%w: camera already acquired (state %s)", ErrPrecondition, r.state)
	}
	s, err := r.dev.Open(ctx, r.opts.Constraints)
	if err != nil {
		if s != nil {
			_ = s.Close()
		}
		return fmt.Errorf("acquire camera: %w", err)
	}
	r.stream = s
	r.state = RecCameraReady
	r.log.WithFields(logrus.Fields{
		"width":  r.opts.Constraints.Width,
		"height": r.opts.Constraints.Height,
	}).Debug("camera ready")
	return nil
}

func (r *Recorder) StartRecording(ctx context.Context) error {
	r.mu.Lock()
	if r.state != RecCameraReady || r.stream == nil {
		st := r.state
		r.mu.Unlock()
		return fmt.Errorf("%w: recorder not initialized (state %s)", ErrPrecondition, st)
	}
	r.chunks = nil
	r.elapsed = 0
	segs, err := r.stream.Start(ctx)
	if err != nil {
		r.mu.Unlock()
		return fmt.Errorf("start capture: %w", err)
	}
	r.state = RecRecording
	r.quit = make(chan struct{})
	r.drained = make(chan struct{})
	quit, drained := r.quit, r.drained
	r.mu.Unlock()

	go r.collect(segs, drained)
	go r.countdown(ctx, quit)

	r.sink.Progress(r.opts.Total, 0)
	r.sink.Instruction(r.opts.Schedule.Select(r.opts.Total))
	r.log.WithField("seconds", r.opts.Total).Info("recording started")
	return nil
}

// collect appends segments in arrival order until the stream closes the
// channel. drained identifies the attempt the segments belong to.
func (r *Recorder) collect(segs <-chan []byte, drained chan struct{}) {
	defer close(drained)
	for seg := range segs {
		r.mu.Lock()
		if r.drained == drained {
			r.chunks = append(r.chunks, seg)
		}
		r.mu.Unlock()
	}
}

func (r *Recorder) countdown(ctx context.Context, quit chan struct{}) {
	t := time.NewTicker(r.opts.Tick)
	defer t.Stop()
	for {
		select {
		case <-quit:
			return
		case <-t.C:
			remaining, ok := r.tick(quit)
			if !ok {
				return
			}
			r.sink.Progress(remaining, Progress(r.opts.Total-remaining, r.opts.Total))
			r.sink.Instruction(r.opts.Schedule.Select(remaining))
			if remaining <= 0 {
				if err := r.Stop(ctx); err != nil {
					r.log.WithError(err).Warn("auto-stop failed")
					if r.opts.Abort != nil {
						r.opts.Abort(err)
					}
				}
				return
			}
		}
	}
}

func (r *Recorder) tick(quit chan struct{}) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.quit != quit || r.state != RecRecording {
		return 0, false
	}
	r.elapsed++
	return r.opts.Total - r.elapsed, true
}

// Stop finalises the recording and hands it off. It is a no-op unless the
// recorder is Recording, so a second call returns nil without side effects.
func (r *Recorder) Stop(ctx context.Context) error {
	r.mu.Lock()
	if r.state != RecRecording {
		r.mu.Unlock()
		return nil
	}
	r.state = RecStopping
	close(r.quit)
	stream, drained := r.stream, r.drained
	r.mu.Unlock()

	if err := stream.StopCapture(); err != nil {
		r.log.WithError(err).Warn("stop capture")
	}
	select {
	case <-drained:
	case <-ctx.Done():
		r.Release()
		return fmt.Errorf("stop recording: %w", ctx.Err())
	}

	r.mu.Lock()
	a := Artifact{Data: bytes.Join(r.chunks, nil), MIME: "video/webm", Chunks: len(r.chunks)}
	r.stream = nil
	r.mu.Unlock()

	if err := stream.Close(); err != nil {
		r.log.WithError(err).Warn("release camera")
	}
	r.log.WithFields(logrus.Fields{"bytes": len(a.Data), "chunks": a.Chunks}).Info("recording finalised")

	var err error
	if r.handoff != nil {
		err = r.handoff(ctx, a)
	}

	r.mu.Lock()
	if r.state == RecStopping {
		r.state = RecIdle
		r.chunks = nil
	}
	r.mu.Unlock()
	return err
}

// Release stops the countdown and every camera track from any state. It is
// the cleanup used by restart and failure paths.
func (r *Recorder) Release() {
	r.mu.Lock()
	if r.state == RecRecording {
		close(r.quit)
	}
	stream := r.stream
	r.stream = nil
	r.state = RecIdle
	r.chunks = nil
	r.elapsed = 0
	r.drained = nil
	r.mu.Unlock()

	if stream != nil {
		if err := stream.Close(); err != nil {
			r.log.WithError(err).Warn("release camera")
		}
	}
}

func (r *Recorder) progress() (elapsed, chunks int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.elapsed, len(r.chunks)
}
