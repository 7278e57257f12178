package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/sudo-sidd/Face-Data-collection-and-Gallery-management-application/camera"
	"github.com/sudo-sidd/Face-Data-collection-and-Gallery-management-application/clients"
	cfg "github.com/sudo-sidd/Face-Data-collection-and-Gallery-management-application/config"
)

// Backend is the capture API the workflow drives.
type Backend interface {
	Uploads
	StartSession(ctx context.Context, req clients.SessionReq) (*clients.SessionResp, error)
	Batches(ctx context.Context) (*clients.BatchesResp, error)
}

// Journal records capture attempts. Begin returns an attempt id that is
// passed back to Finish.
type Journal interface {
	Begin(ctx context.Context, s Session) (string, error)
	Finish(ctx context.Context, id, outcome string, size int, cause error) error
}

const (
	OutcomeCompleted    = "completed"
	OutcomeUploadFailed = "upload_failed"
	OutcomeCameraFailed = "camera_failed"
	OutcomeRestarted    = "restarted"
)

type Batches struct {
	Years       []string
	Departments []clients.Department
	Fallback    bool
}

// Workflow owns one student's capture from registration to completion.
// It is the only writer of session and stage; the UI learns about changes
// through the Sink.
type Workflow struct {
	cfg     *cfg.Root
	be      Backend
	rec     *Recorder
	up      *Uploader
	sink    Sink
	log     logrus.FieldLogger
	journal Journal
	archive *Archive

	mu      sync.Mutex
	stage   Stage
	session Session
	attempt string
	result  *Result
	done    chan error
	gen     uint64             // bumped by every recording and restart
	cancel  context.CancelFunc // aborts the in-flight upload
	uploads sync.WaitGroup
}

func NewWorkflow(c *cfg.Root, be Backend, dev camera.Device, sink Sink, log logrus.FieldLogger) *Workflow {
	if sink == nil {
		sink = NopSink{}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	w := &Workflow{cfg: c, be: be, sink: sink, log: log, stage: StageRegistration}
	w.rec = NewRecorder(dev, RecorderOptions{
		Total: c.Recording.Seconds,
		Tick:  cfg.DurMillis(c.Recording.TickMillis),
		Constraints: camera.Constraints{
			Width:  c.Recording.Width,
			Height: c.Recording.Height,
			Facing: c.Recording.Facing,
		},
		Schedule: DefaultSchedule(),
		Abort:    w.abort,
	}, sink, log, w.handoff)
	w.up = NewUploader(be, sink, log, cfg.DurMillis(c.Recording.StatusMillis))
	if c.Paths.Outputs != "" {
		w.archive = NewArchive(c.Paths.Outputs)
	}
	return w
}

func (w *Workflow) WithJournal(j Journal) *Workflow {
	w.journal = j
	return w
}

func (w *Workflow) Snapshot() Snapshot {
	w.mu.Lock()
	st, s := w.stage, w.session
	w.mu.Unlock()
	elapsed, chunks := w.rec.progress()
	return Snapshot{
		Stage:    st,
		Session:  s,
		Recorder: w.rec.State(),
		Elapsed:  elapsed,
		Total:    w.rec.opts.Total,
		Chunks:   chunks,
	}
}

func (w *Workflow) setStage(s Stage) {
	w.mu.Lock()
	w.stage = s
	w.mu.Unlock()
	w.sink.Stage(s)
}

func (w *Workflow) requireStage(want Stage) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stage != want {
		return fmt.Errorf("%w: stage is %s, want %s", ErrPrecondition, w.stage, want)
	}
	return nil
}

// Register starts a backend session for id and acquires the camera. A
// rejected session leaves the workflow on registration; a camera failure
// restarts it.
func (w *Workflow) Register(ctx context.Context, id Identity) error {
	if err := w.requireStage(StageRegistration); err != nil {
		return err
	}
	if err := id.Validate(); err != nil {
		w.sink.Alert(LevelWarning, "All student details are required: "+err.Error())
		return fmt.Errorf("register: %w", err)
	}

	resp, err := w.be.StartSession(ctx, clients.SessionReq{
		StudentID: id.StudentID,
		Name:      id.Name,
		Year:      id.Year,
		Dept:      id.Dept,
	})
	if err != nil {
		if errors.Is(err, clients.ErrNetwork) {
			w.sink.Alert(LevelError, "Failed to connect to the server. Please try again.")
		} else {
			w.sink.Alert(LevelError, "Error: "+rejectionMessage(err, "Failed to start session"))
		}
		return fmt.Errorf("register: %w", err)
	}

	w.mu.Lock()
	w.session = Session{ID: resp.SessionID, Identity: id}
	w.mu.Unlock()
	w.log.WithFields(logrus.Fields{"session": resp.SessionID, "student": id.StudentID}).Info("session started")

	return w.openCamera(ctx)
}

// openCamera begins a journal attempt and moves to CameraReady.
func (w *Workflow) openCamera(ctx context.Context) error {
	w.begin(ctx)
	if err := w.rec.AcquireCamera(ctx); err != nil {
		w.log.WithError(err).Error("camera acquisition failed")
		w.sink.Alert(LevelError, cameraMessage(err))
		w.finish(ctx, OutcomeCameraFailed, 0, err)
		w.reset(0, err)
		return err
	}
	w.setStage(StageCameraReady)
	return nil
}

// Record starts the timed recording. Without an acquired camera it fails
// with ErrPrecondition.
func (w *Workflow) Record(ctx context.Context) error {
	if err := w.requireStage(StageCameraReady); err != nil {
		w.sink.Alert(LevelError, "Camera not ready. Please reload and try again.")
		return err
	}
	w.mu.Lock()
	w.gen++
	gen := w.gen
	w.done = make(chan error, 1)
	w.result = nil
	w.mu.Unlock()
	w.setStage(StageRecording)

	if err := w.rec.StartRecording(ctx); err != nil {
		if errors.Is(err, ErrPrecondition) {
			w.sink.Alert(LevelError, "Camera not ready. Please reload and try again.")
		} else {
			w.sink.Alert(LevelError, cameraMessage(err))
		}
		// Record reports the failure itself, there is nothing to wait for
		w.mu.Lock()
		w.done = nil
		w.mu.Unlock()
		w.finish(ctx, OutcomeCameraFailed, 0, err)
		w.reset(gen, err)
		return err
	}
	return nil
}

// Stop ends the recording early. Calling it when nothing is recording is a
// no-op. If the recording cannot be finalised before ctx is done the attempt
// is dropped and the workflow restarts.
func (w *Workflow) Stop(ctx context.Context) error {
	if err := w.rec.Stop(ctx); err != nil {
		w.abort(err)
		return err
	}
	return nil
}

// abort ends a recording that could not be finalised. It does nothing once
// the attempt has moved past recording.
func (w *Workflow) abort(err error) {
	w.mu.Lock()
	recording, gen := w.stage == StageRecording, w.gen
	w.mu.Unlock()
	if !recording {
		return
	}
	w.log.WithError(err).Error("recording could not be finalised")
	w.sink.Alert(LevelError, "Recording failed. Please try again.")
	w.finish(context.Background(), OutcomeCameraFailed, 0, err)
	w.reset(gen, err)
}

// handoff accepts the recorder's artifact and uploads it in the background.
// The upload outlives ctx and is only cancelled by a restart.
func (w *Workflow) handoff(ctx context.Context, a Artifact) error {
	w.mu.Lock()
	if w.stage != StageRecording {
		st := w.stage
		w.mu.Unlock()
		return fmt.Errorf("%w: artifact received in stage %s", ErrPrecondition, st)
	}
	w.stage = StageUploading
	s, gen := w.session, w.gen
	uctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	w.cancel = cancel
	w.uploads.Add(1)
	w.mu.Unlock()
	w.sink.Stage(StageUploading)

	if w.archive != nil {
		if path, err := w.archive.Save(s, a); err != nil {
			w.log.WithError(err).Warn("archive recording")
		} else {
			w.log.WithField("path", path).Debug("recording archived")
		}
	}

	go w.upload(uctx, cancel, a, s, gen)
	return nil
}

// upload sends the artifact for attempt gen. A result that arrives after a
// restart superseded the attempt is dropped.
func (w *Workflow) upload(ctx context.Context, cancel context.CancelFunc, a Artifact, s Session, gen uint64) {
	defer w.uploads.Done()
	defer cancel()

	if len(a.Data) == 0 {
		err := fmt.Errorf("%w: recording produced no data", camera.ErrAcquisition)
		if !w.current(gen) {
			return
		}
		w.sink.Status("Error: No video was recorded.")
		w.sink.Alert(LevelError, "No video was recorded. Please try again.")
		w.finish(ctx, OutcomeCameraFailed, 0, err)
		w.reset(gen, err)
		return
	}

	res, err := w.up.Upload(ctx, a, s)
	if !w.current(gen) {
		w.log.WithField("session", s.ID).Debug("upload outcome dropped, attempt was restarted")
		return
	}
	if err != nil {
		if errors.Is(err, clients.ErrNetwork) {
			w.sink.Status("Error: Connection issue.")
			w.sink.Alert(LevelError, "Failed to upload video. Please check your connection and try again.")
		} else {
			w.sink.Status("Error: Failed to process video.")
			w.sink.Alert(LevelError, "Failed to upload video. Please try again.")
		}
		w.finish(ctx, OutcomeUploadFailed, len(a.Data), err)
		w.reset(gen, err)
		return
	}

	w.mu.Lock()
	if w.gen != gen || w.stage != StageUploading {
		w.mu.Unlock()
		return
	}
	w.result = res
	w.stage = StageCompletion
	w.cancel = nil
	done := w.done
	w.mu.Unlock()

	w.sink.Status("Processing complete! Face images extracted successfully.")
	w.finish(ctx, OutcomeCompleted, len(a.Data), nil)
	w.sink.Stage(StageCompletion)
	deliver(done, nil)
}

// current reports whether attempt gen is still being uploaded.
func (w *Workflow) current(gen uint64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.gen == gen && w.stage == StageUploading
}

func deliver(done chan error, err error) {
	if done == nil {
		return
	}
	select {
	case done <- err:
	default:
	}
}

// Wait blocks until the current attempt's upload succeeds or fails. An
// attempt dropped by Restart ends with ErrAttemptAbandoned.
func (w *Workflow) Wait(ctx context.Context) (*Result, error) {
	w.mu.Lock()
	done := w.done
	w.mu.Unlock()
	if done == nil {
		return nil, fmt.Errorf("%w: nothing is recording", ErrPrecondition)
	}
	select {
	case err := <-done:
		// keep the outcome readable for later callers
		done <- err
		if err != nil {
			return nil, err
		}
		w.mu.Lock()
		defer w.mu.Unlock()
		return w.result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Retry discards the session's captured faces and re-acquires the camera,
// keeping the registered identity. It is only valid after completion.
func (w *Workflow) Retry(ctx context.Context) error {
	if err := w.requireStage(StageCompletion); err != nil {
		return err
	}
	w.mu.Lock()
	s := w.session
	w.mu.Unlock()

	if err := w.up.Reset(ctx, s); err != nil {
		w.log.WithError(err).WithField("session", s.ID).Error("reset faces failed")
		w.sink.Alert(LevelError, "Failed to reset. Please try again.")
		return fmt.Errorf("retry: %w", err)
	}

	w.rec.Release()
	w.mu.Lock()
	w.result = nil
	w.done = nil
	w.mu.Unlock()
	return w.openCamera(ctx)
}

// Restart releases the camera and returns to registration with no session.
// An upload still in flight is cancelled and its outcome discarded.
func (w *Workflow) Restart() { w.reset(0, ErrAttemptAbandoned) }

// Close restarts the workflow and waits for a cancelled upload to return.
func (w *Workflow) Close() {
	w.Restart()
	w.uploads.Wait()
}

// reset returns to registration. A non-zero gen makes it a no-op unless that
// attempt is still the latest one. An unfinished attempt ends with cause.
func (w *Workflow) reset(gen uint64, cause error) {
	w.mu.Lock()
	if gen != 0 && gen != w.gen {
		w.mu.Unlock()
		return
	}
	w.gen++
	attempt, cancel, done := w.attempt, w.cancel, w.done
	inFlight := w.stage == StageRecording || w.stage == StageUploading
	if !inFlight {
		w.done = nil
	}
	w.stage = StageRegistration
	w.session = Session{}
	w.result = nil
	w.cancel = nil
	w.mu.Unlock()

	w.rec.Release()
	if cancel != nil {
		cancel()
	}
	if attempt != "" {
		w.finish(context.Background(), OutcomeRestarted, 0, nil)
	}
	w.sink.Stage(StageRegistration)
	if inFlight {
		deliver(done, cause)
	}
}

// Batches lists selectable years and departments, falling back to the
// configured options when the backend cannot answer.
func (w *Workflow) Batches(ctx context.Context) Batches {
	resp, err := w.be.Batches(ctx)
	if err == nil {
		return Batches{Years: resp.Years, Departments: resp.Departments}
	}
	w.log.WithError(err).Warn("failed to fetch batch data, using fallback options")
	out := Batches{Years: append([]string(nil), w.cfg.Batches.FallbackYears...), Fallback: true}
	for _, d := range w.cfg.Batches.FallbackDepartments {
		out.Departments = append(out.Departments, clients.Department{ID: d.ID, Name: d.Name})
	}
	return out
}

func (w *Workflow) begin(ctx context.Context) {
	if w.journal == nil {
		return
	}
	w.mu.Lock()
	s := w.session
	w.mu.Unlock()
	id, err := w.journal.Begin(ctx, s)
	if err != nil {
		w.log.WithError(err).Warn("journal begin")
		return
	}
	w.mu.Lock()
	w.attempt = id
	w.mu.Unlock()
}

func (w *Workflow) finish(ctx context.Context, outcome string, size int, cause error) {
	w.mu.Lock()
	id := w.attempt
	w.attempt = ""
	w.mu.Unlock()
	if w.journal == nil || id == "" {
		return
	}
	if err := w.journal.Finish(context.WithoutCancel(ctx), id, outcome, size, cause); err != nil {
		w.log.WithError(err).Warn("journal finish")
	}
}

func rejectionMessage(err error, fallback string) string {
	var rej *clients.RejectedError
	if errors.As(err, &rej) && rej.Message != "" {
		return rej.Message
	}
	return fallback
}

func cameraMessage(err error) string {
	switch {
	case errors.Is(err, camera.ErrDeviceUnavailable):
		return "Camera API not available on this host. Connect a camera or configure a capture file."
	case errors.Is(err, camera.ErrPermissionDenied):
		return "Camera access was denied. Grant access to the camera and try again."
	default:
		return "Failed to access camera. Please try again."
	}
}
