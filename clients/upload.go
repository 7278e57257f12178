package clients

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
)

// --- Upload (/upload/{sessionId}) ---
type UploadReq struct {
	Filename  string
	Video     io.Reader
	StudentID string
	Name      string
	Year      string
	Dept      string
}
type UploadResp struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	FacesCount     int    `json:"facesCount"`
	FacesOrganized bool   `json:"facesOrganized"`
	GalleryPath    string `json:"galleryPath"`
}

func (h *HTTP) UploadVideo(ctx context.Context, sessionID string, in UploadReq) (*UploadResp, error) {
	var b bytes.Buffer
	w := multipart.NewWriter(&b)

	fw, err := w.CreateFormFile("video", in.Filename)
	if err != nil {
		return nil, err
	}
	if _, err = io.Copy(fw, in.Video); err != nil {
		return nil, err
	}
	fields := [][2]string{
		{"studentId", in.StudentID},
		{"name", in.Name},
		{"year", in.Year},
		{"dept", in.Dept},
	}
	for _, f := range fields {
		if err = w.WriteField(f[0], f[1]); err != nil {
			return nil, err
		}
	}
	if err = w.Close(); err != nil {
		return nil, err
	}

	u := h.url("upload/" + url.PathEscape(sessionID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, &b)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var out UploadResp
	if err := h.do(req, "upload", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VideoFilename is the part filename the backend expects for a student.
func VideoFilename(studentID string) string {
	return fmt.Sprintf("student_%s_video.webm", studentID)
}
