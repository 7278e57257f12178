package orchestrator

import (
	"errors"
	"strings"
)

// ErrPrecondition is returned when an operation is invoked in a state that
// does not allow it, e.g. recording before the camera is ready.
var ErrPrecondition = errors.New("precondition violated")

// ErrAttemptAbandoned ends a recording or upload that Restart interrupted.
var ErrAttemptAbandoned = errors.New("attempt abandoned by restart")

type Identity struct {
	StudentID string `json:"studentId"`
	Name      string `json:"name"`
	Year      string `json:"year"`
	Dept      string `json:"dept"`
}

func (id Identity) Validate() error {
	var missing []string
	if strings.TrimSpace(id.StudentID) == "" {
		missing = append(missing, "studentId")
	}
	if strings.TrimSpace(id.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(id.Year) == "" {
		missing = append(missing, "year")
	}
	if strings.TrimSpace(id.Dept) == "" {
		missing = append(missing, "dept")
	}
	if len(missing) > 0 {
		return errors.New("missing " + strings.Join(missing, ", "))
	}
	return nil
}

// Session is one capture attempt's identity. ID is empty until the backend
// has accepted the session.
type Session struct {
	ID string
	Identity
}

// Stage is the screen the workflow is on.
type Stage string

const (
	StageRegistration Stage = "registration"
	StageCameraReady  Stage = "camera_ready"
	StageRecording    Stage = "recording"
	StageUploading    Stage = "uploading"
	StageCompletion   Stage = "completion"
)

// RecState is the RecordingController's state.
type RecState string

const (
	RecIdle        RecState = "idle"
	RecCameraReady RecState = "camera_ready"
	RecRecording   RecState = "recording"
	RecStopping    RecState = "stopping"
)

// Artifact is the finalised recording handed to the upload pipeline.
type Artifact struct {
	Data   []byte
	MIME   string
	Chunks int
}

// Result is what the backend reported for an accepted upload.
type Result struct {
	FacesCount  int
	GalleryPath string
	Message     string
}

// Snapshot is a copy of the workflow's observable state.
type Snapshot struct {
	Stage    Stage
	Session  Session
	Recorder RecState
	Elapsed  int
	Total    int
	Chunks   int
}
