package orchestrator

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/sudo-sidd/Face-Data-collection-and-Gallery-management-application/clients"
)

func TestUploadSendsVideoAndIdentity(t *testing.T) {
	be := newMockBackend(t)
	u := NewUploader(be.client(), nil, quietLogger(), time.Second)

	s := Session{ID: "abc123", Identity: student}
	res, err := u.Upload(context.Background(), Artifact{Data: []byte("webm-bytes"), MIME: "video/webm"}, s)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if res.FacesCount != 42 || res.GalleryPath != "gallery/CS_2027/S1" {
		t.Errorf("result = %+v", res)
	}

	be.mu.Lock()
	defer be.mu.Unlock()
	if string(be.lastVideo) != "webm-bytes" {
		t.Errorf("video part = %q", be.lastVideo)
	}
	want := map[string]string{"session": "abc123", "studentId": "S1", "name": "A", "year": "2027", "dept": "CS"}
	for k, v := range want {
		if be.lastForm[k] != v {
			t.Errorf("form %s = %q, want %q", k, be.lastForm[k], v)
		}
	}
}

func TestUploadRotatesStatusWhileInFlight(t *testing.T) {
	be := newMockBackend(t)
	be.uploadDelay = 60 * time.Millisecond
	sink := &recordingSink{}
	u := NewUploader(be.client(), sink, quietLogger(), 5*time.Millisecond)

	if _, err := u.Upload(context.Background(), Artifact{Data: []byte("v")}, Session{ID: "abc123", Identity: student}); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	after := sink.statusCount()
	if after < 2 {
		t.Fatalf("statuses = %d, want the rotation to have advanced", after)
	}

	sink.mu.Lock()
	for i, st := range sink.statuses {
		if want := UploadSteps[i%len(UploadSteps)]; st != want {
			t.Errorf("status %d = %q, want %q", i, st, want)
		}
	}
	sink.mu.Unlock()

	time.Sleep(30 * time.Millisecond)
	if n := sink.statusCount(); n != after {
		t.Errorf("rotation kept running after Upload returned: %d -> %d", after, n)
	}
}

func TestUploadRejected(t *testing.T) {
	be := newMockBackend(t)
	be.uploadStatus = http.StatusInternalServerError
	u := NewUploader(be.client(), nil, quietLogger(), time.Second)

	_, err := u.Upload(context.Background(), Artifact{Data: []byte("v")}, Session{ID: "abc123", Identity: student})
	if !errors.Is(err, clients.ErrServerRejected) {
		t.Fatalf("expected ErrServerRejected, got %v", err)
	}
	var rej *clients.RejectedError
	if !errors.As(err, &rej) || rej.Code != http.StatusInternalServerError || rej.Message != "Error processing video" {
		t.Errorf("rejection = %+v", rej)
	}
}

func TestUploadNetworkFailure(t *testing.T) {
	be := newMockBackend(t)
	c := be.client()
	be.Close()

	u := NewUploader(c, nil, quietLogger(), time.Second)
	_, err := u.Upload(context.Background(), Artifact{Data: []byte("v")}, Session{ID: "abc123", Identity: student})
	if !errors.Is(err, clients.ErrNetwork) {
		t.Fatalf("expected ErrNetwork, got %v", err)
	}
}

func TestResetSendsIdentity(t *testing.T) {
	be := newMockBackend(t)
	u := NewUploader(be.client(), nil, quietLogger(), time.Second)
	if err := u.Reset(context.Background(), Session{ID: "abc123", Identity: student}); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	be.mu.Lock()
	defer be.mu.Unlock()
	want := clients.ResetReq{StudentID: "S1", Year: "2027", Dept: "CS"}
	if be.lastReset != want {
		t.Errorf("reset body = %+v, want %+v", be.lastReset, want)
	}
}
