package clients

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newServer(t *testing.T, mux *http.ServeMux) *HTTP {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return NewHTTP(srv.URL+"/api/", 5*time.Second)
}

func TestStartSession(t *testing.T) {
	mux := http.NewServeMux()
	var got SessionReq
	mux.HandleFunc("POST /api/session/start", func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"sessionId":"abc123","studentId":"S1"}`))
	})
	h := newServer(t, mux)

	resp, err := h.StartSession(context.Background(), SessionReq{StudentID: "S1", Name: "A", Year: "2027", Dept: "CS"})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if resp.SessionID != "abc123" {
		t.Errorf("session id = %q", resp.SessionID)
	}
	if got != (SessionReq{StudentID: "S1", Name: "A", Year: "2027", Dept: "CS"}) {
		t.Errorf("request body = %+v", got)
	}
}

func TestStartSessionWithoutID(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/session/start", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"studentId":"S1"}`))
	})
	h := newServer(t, mux)
	if _, err := h.StartSession(context.Background(), SessionReq{StudentID: "S1"}); err == nil {
		t.Fatal("expected an error for a response without sessionId")
	}
}

func TestRejectedMessage(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"error field", `{"error":"All student details are required"}`, "All student details are required"},
		{"message field", `{"success":false,"message":"Error processing video"}`, "Error processing video"},
		{"detail field", `{"detail":"Not found"}`, "Not found"},
		{"plain text", "bad gateway\n", "bad gateway"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("POST /api/session/start", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				io.WriteString(w, tc.body)
			})
			h := newServer(t, mux)

			_, err := h.StartSession(context.Background(), SessionReq{})
			if !errors.Is(err, ErrServerRejected) {
				t.Fatalf("expected ErrServerRejected, got %v", err)
			}
			var rej *RejectedError
			if !errors.As(err, &rej) {
				t.Fatalf("expected *RejectedError, got %T", err)
			}
			if rej.Code != http.StatusBadRequest || rej.Message != tc.want {
				t.Errorf("rejection = %+v, want message %q", rej, tc.want)
			}
		})
	}
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NewServeMux())
	h := NewHTTP(srv.URL, time.Second)
	srv.Close()

	_, err := h.Batches(context.Background())
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected ErrNetwork, got %v", err)
	}
	if errors.Is(err, ErrServerRejected) {
		t.Error("a network error must not read as a rejection")
	}
}

func TestUploadVideo(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/upload/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "abc 123" {
			t.Errorf("session id = %q", r.PathValue("id"))
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
			return
		}
		f, hdr, err := r.FormFile("video")
		if err != nil {
			t.Errorf("video part: %v", err)
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		if string(data) != "webm" || hdr.Filename != "student_S1_video.webm" {
			t.Errorf("video = %q filename = %q", data, hdr.Filename)
		}
		for k, want := range map[string]string{"studentId": "S1", "name": "A", "year": "2027", "dept": "CS"} {
			if got := r.FormValue(k); got != want {
				t.Errorf("%s = %q, want %q", k, got, want)
			}
		}
		w.Write([]byte(`{"success":true,"facesCount":7,"galleryPath":"gallery/CS_2027/S1"}`))
	})
	h := newServer(t, mux)

	resp, err := h.UploadVideo(context.Background(), "abc 123", UploadReq{
		Filename:  VideoFilename("S1"),
		Video:     strings.NewReader("webm"),
		StudentID: "S1",
		Name:      "A",
		Year:      "2027",
		Dept:      "CS",
	})
	if err != nil {
		t.Fatalf("UploadVideo: %v", err)
	}
	if resp.FacesCount != 7 || resp.GalleryPath != "gallery/CS_2027/S1" {
		t.Errorf("response = %+v", resp)
	}
}

func TestResetFaces(t *testing.T) {
	mux := http.NewServeMux()
	var got ResetReq
	mux.HandleFunc("POST /api/reset-faces/{id}", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"success":true,"message":"Face data reset successfully"}`))
	})
	h := newServer(t, mux)

	resp, err := h.ResetFaces(context.Background(), "abc123", ResetReq{StudentID: "S1", Year: "2027", Dept: "CS"})
	if err != nil {
		t.Fatalf("ResetFaces: %v", err)
	}
	if !resp.Success || got.StudentID != "S1" || got.Year != "2027" || got.Dept != "CS" {
		t.Errorf("resp = %+v body = %+v", resp, got)
	}
}

func TestControlPlane(t *testing.T) {
	api := http.NewServeMux()
	api.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("control request reached the capture API: %s", r.URL.Path)
	})
	ctl := http.NewServeMux()
	ctl.HandleFunc("POST /start-collection-app", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"message":"started","process_name":"collect"}`))
	})
	ctl.HandleFunc("POST /stop-collection-app", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"message":"Collection app is not running"}`))
	})
	ctl.HandleFunc("GET /collection-app-status", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"running":true,"process_name":"collect"}`))
	})
	ctl.HandleFunc("GET /collection-app-config", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"host":"0.0.0.0","port":5002}`))
	})
	apiSrv := httptest.NewServer(api)
	t.Cleanup(apiSrv.Close)
	ctlSrv := httptest.NewServer(ctl)
	t.Cleanup(ctlSrv.Close)

	h := NewHTTP(apiSrv.URL, time.Second).WithControl(ctlSrv.URL + "/")
	ctx := context.Background()

	if resp, err := h.StartApp(ctx); err != nil || resp.Message != "started" {
		t.Errorf("StartApp = %+v, %v", resp, err)
	}
	_, err := h.StopApp(ctx)
	var rej *RejectedError
	if !errors.As(err, &rej) || rej.Message != "Collection app is not running" {
		t.Errorf("StopApp error = %v", err)
	}
	if st, err := h.AppStatus(ctx); err != nil || !st.Running {
		t.Errorf("AppStatus = %+v, %v", st, err)
	}
	if c, err := h.AppConfig(ctx); err != nil || c.Host != "0.0.0.0" || c.Port != 5002 {
		t.Errorf("AppConfig = %+v, %v", c, err)
	}
}

func TestAppStatusErrorField(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/collection-app-status", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"running":false,"error":"permission denied reading /proc"}`))
	})
	h := newServer(t, mux)

	_, err := h.AppStatus(context.Background())
	if !errors.Is(err, ErrServerRejected) {
		t.Fatalf("expected ErrServerRejected, got %v", err)
	}
	if !strings.Contains(err.Error(), "permission denied") {
		t.Errorf("error = %v", err)
	}
}
