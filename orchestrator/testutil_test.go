package orchestrator

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sudo-sidd/Face-Data-collection-and-Gallery-management-application/camera"
	"github.com/sudo-sidd/Face-Data-collection-and-Gallery-management-application/clients"
	cfg "github.com/sudo-sidd/Face-Data-collection-and-Gallery-management-application/config"
)

// fakeStream delivers its segments as soon as capture starts and closes the
// channel when capture is stopped. With hang set only Close ends the channel.
type fakeStream struct {
	segments [][]byte
	startErr error
	hang     bool

	mu      sync.Mutex
	ch      chan []byte
	stopped bool
	closes  atomic.Int32
}

func (s *fakeStream) Start(context.Context) (<-chan []byte, error) {
	if s.startErr != nil {
		return nil, s.startErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ch = make(chan []byte, len(s.segments))
	for _, seg := range s.segments {
		s.ch <- seg
	}
	return s.ch, nil
}

func (s *fakeStream) StopCapture() error {
	if s.hang {
		return nil
	}
	s.shutdown()
	return nil
}

func (s *fakeStream) Close() error {
	s.closes.Add(1)
	s.shutdown()
	return nil
}

func (s *fakeStream) shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ch != nil && !s.stopped {
		s.stopped = true
		close(s.ch)
	}
}

type fakeDevice struct {
	segments [][]byte
	openErr  error
	startErr error
	hang     bool

	mu      sync.Mutex
	streams []*fakeStream
}

func (d *fakeDevice) Open(context.Context, camera.Constraints) (camera.Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.openErr != nil {
		return nil, d.openErr
	}
	s := &fakeStream{segments: d.segments, startErr: d.startErr, hang: d.hang}
	d.streams = append(d.streams, s)
	return s, nil
}

func (d *fakeDevice) opens() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.streams)
}

func (d *fakeDevice) last() *fakeStream {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.streams[len(d.streams)-1]
}

type progressEvent struct {
	remaining int
	fraction  float64
}

type alertEvent struct {
	level Level
	msg   string
}

type recordingSink struct {
	mu           sync.Mutex
	stages       []Stage
	progress     []progressEvent
	instructions []string
	statuses     []string
	alerts       []alertEvent
}

func (s *recordingSink) Stage(st Stage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stages = append(s.stages, st)
}

func (s *recordingSink) Progress(remaining int, fraction float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = append(s.progress, progressEvent{remaining, fraction})
}

func (s *recordingSink) Instruction(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.instructions = append(s.instructions, text)
}

func (s *recordingSink) Status(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, text)
}

func (s *recordingSink) Alert(level Level, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, alertEvent{level, msg})
}

func (s *recordingSink) alertsAt(level Level) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, a := range s.alerts {
		if a.level == level {
			out = append(out, a.msg)
		}
	}
	return out
}

func (s *recordingSink) stageCount(st Stage) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, x := range s.stages {
		if x == st {
			n++
		}
	}
	return n
}

func (s *recordingSink) statusCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.statuses)
}

// mockBackend is an httptest capture API with per-endpoint status overrides
// and request counters.
type mockBackend struct {
	*httptest.Server

	sessionStatus int
	uploadStatus  int
	resetStatus   int
	batchesStatus int
	uploadDelay   time.Duration

	sessions atomic.Int32
	uploads  atomic.Int32
	resets   atomic.Int32

	mu        sync.Mutex
	lastReset clients.ResetReq
	lastVideo []byte
	lastForm  map[string]string
}

func newMockBackend(t *testing.T) *mockBackend {
	t.Helper()
	m := &mockBackend{
		sessionStatus: http.StatusOK,
		uploadStatus:  http.StatusOK,
		resetStatus:   http.StatusOK,
		batchesStatus: http.StatusOK,
	}
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/session/start", func(w http.ResponseWriter, r *http.Request) {
		m.sessions.Add(1)
		var req clients.SessionReq
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		if m.sessionStatus != http.StatusOK {
			w.WriteHeader(m.sessionStatus)
			w.Write([]byte(`{"error":"All student details are required"}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"sessionId": "abc123", "studentId": req.StudentID})
	})

	mux.HandleFunc("POST /api/upload/{id}", func(w http.ResponseWriter, r *http.Request) {
		m.uploads.Add(1)
		if m.uploadDelay > 0 {
			time.Sleep(m.uploadDelay)
		}
		if err := r.ParseMultipartForm(10 << 20); err == nil {
			f, _, ferr := r.FormFile("video")
			m.mu.Lock()
			m.lastForm = map[string]string{
				"session":   r.PathValue("id"),
				"studentId": r.FormValue("studentId"),
				"name":      r.FormValue("name"),
				"year":      r.FormValue("year"),
				"dept":      r.FormValue("dept"),
			}
			if ferr == nil {
				m.lastVideo, _ = io.ReadAll(f)
				f.Close()
			}
			m.mu.Unlock()
		}
		w.Header().Set("Content-Type", "application/json")
		if m.uploadStatus != http.StatusOK {
			w.WriteHeader(m.uploadStatus)
			w.Write([]byte(`{"success":false,"message":"Error processing video"}`))
			return
		}
		w.Write([]byte(`{"success":true,"message":"Video processed successfully.","facesCount":42,"facesOrganized":true,"galleryPath":"gallery/CS_2027/S1"}`))
	})

	mux.HandleFunc("POST /api/reset-faces/{id}", func(w http.ResponseWriter, r *http.Request) {
		m.resets.Add(1)
		var req clients.ResetReq
		_ = json.NewDecoder(r.Body).Decode(&req)
		m.mu.Lock()
		m.lastReset = req
		m.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		if m.resetStatus != http.StatusOK {
			w.WriteHeader(m.resetStatus)
			w.Write([]byte(`{"error":"Faces directory not found"}`))
			return
		}
		w.Write([]byte(`{"success":true,"message":"Face data reset successfully"}`))
	})

	mux.HandleFunc("GET /api/batches", func(w http.ResponseWriter, r *http.Request) {
		if m.batchesStatus != http.StatusOK {
			http.Error(w, "boom", m.batchesStatus)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"years":["2026","2027"],"departments":[{"id":"CS","name":"Computer Science"}]}`))
	})

	m.Server = httptest.NewServer(mux)
	t.Cleanup(m.Close)
	return m
}

func (m *mockBackend) client() *clients.HTTP {
	return clients.NewHTTP(strings.TrimRight(m.URL, "/")+"/api", 5*time.Second)
}

func testConfig() *cfg.Root {
	c := &cfg.Root{}
	c.API.BaseURL = "http://unused/api"
	c.Recording.Seconds = 8
	c.Recording.TickMillis = 1
	c.Recording.StatusMillis = 1000
	c.Recording.Width = 640
	c.Recording.Height = 480
	c.Recording.Facing = "user"
	c.Camera.Driver = "file"
	c.Camera.File = "unused.webm"
	return c
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

var student = Identity{StudentID: "S1", Name: "A", Year: "2027", Dept: "CS"}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
