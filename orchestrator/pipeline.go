package orchestrator

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sudo-sidd/Face-Data-collection-and-Gallery-management-application/clients"
)

// UploadSteps are shown in rotation while an upload is in flight. They do
// not track real server progress.
var UploadSteps = []string{
	"Uploading video to server...",
	"Converting video format...",
	"Analyzing video frames...",
	"Detecting faces in frames...",
	"Processing and saving face images...",
}

// Uploads is the slice of the backend the upload pipeline needs.
type Uploads interface {
	UploadVideo(ctx context.Context, sessionID string, in clients.UploadReq) (*clients.UploadResp, error)
	ResetFaces(ctx context.Context, sessionID string, req clients.ResetReq) (*clients.ResetResp, error)
}

type Uploader struct {
	be    Uploads
	sink  Sink
	log   logrus.FieldLogger
	every time.Duration
	steps []string
}

func NewUploader(be Uploads, sink Sink, log logrus.FieldLogger, every time.Duration) *Uploader {
	if every <= 0 {
		every = 2 * time.Second
	}
	if sink == nil {
		sink = NopSink{}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Uploader{be: be, sink: sink, log: log, every: every, steps: UploadSteps}
}

// Upload sends the artifact with the session's identity fields. The status
// rotation is stopped before Upload returns.
func (u *Uploader) Upload(ctx context.Context, a Artifact, s Session) (*Result, error) {
	stop := u.rotate()
	resp, err := u.be.UploadVideo(ctx, s.ID, clients.UploadReq{
		Filename:  clients.VideoFilename(s.StudentID),
		Video:     bytes.NewReader(a.Data),
		StudentID: s.StudentID,
		Name:      s.Name,
		Year:      s.Year,
		Dept:      s.Dept,
	})
	stop()
	if err != nil {
		u.log.WithError(err).WithField("session", s.ID).Error("upload failed")
		return nil, err
	}
	u.log.WithFields(logrus.Fields{"session": s.ID, "faces": resp.FacesCount}).Info("upload accepted")
	return &Result{FacesCount: resp.FacesCount, GalleryPath: resp.GalleryPath, Message: resp.Message}, nil
}

// Reset asks the backend to discard the session's captured faces while
// keeping its identity.
func (u *Uploader) Reset(ctx context.Context, s Session) error {
	_, err := u.be.ResetFaces(ctx, s.ID, clients.ResetReq{StudentID: s.StudentID, Year: s.Year, Dept: s.Dept})
	return err
}

// rotate shows the first step immediately and advances every u.every. The
// returned func stops the rotation and waits for it to exit.
func (u *Uploader) rotate() func() {
	steps := u.steps
	if len(steps) == 0 {
		return func() {}
	}
	u.sink.Status(steps[0])

	quit := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(u.every)
		defer t.Stop()
		i := 0
		for {
			select {
			case <-quit:
				return
			case <-t.C:
				i = (i + 1) % len(steps)
				u.sink.Status(steps[i])
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(quit)
			wg.Wait()
		})
	}
}
