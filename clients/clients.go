package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrNetwork marks a request that never produced a response.
	ErrNetwork = errors.New("network error")
	// ErrServerRejected marks a response with a non-success status or an
	// explicit {"success": false} body.
	ErrServerRejected = errors.New("server rejected request")
)

// RejectedError carries the status and message of a rejected request.
type RejectedError struct {
	Op      string
	Code    int
	Message string
}

func (e *RejectedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: status %d", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.Code, e.Message)
}

func (e *RejectedError) Is(target error) bool { return target == ErrServerRejected }

// HTTP talks to the capture backend. base is the API root, e.g.
// http://host:5001/api; ctl is the root of the collection-app control
// plane and defaults to base.
type HTTP struct {
	c    *http.Client
	base string
	ctl  string
}

func NewHTTP(base string, timeout time.Duration) *HTTP {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	base = strings.TrimRight(base, "/")
	return &HTTP{c: &http.Client{Timeout: timeout}, base: base, ctl: base}
}

// WithControl points the collection-app control requests at another root.
func (h *HTTP) WithControl(root string) *HTTP {
	if root = strings.TrimRight(root, "/"); root != "" {
		h.ctl = root
	}
	return h
}

func (h *HTTP) url(path string) string { return h.base + "/" + strings.TrimLeft(path, "/") }

func (h *HTTP) controlURL(path string) string {
	return h.ctl + "/" + strings.TrimLeft(path, "/")
}

// do sends req and decodes a 200 JSON body into out (when out is non-nil).
func (h *HTTP) do(req *http.Request, op string, out any) error {
	resp, err := h.c.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", op, ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &RejectedError{Op: op, Code: resp.StatusCode, Message: readErrorBody(resp.Body)}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s decode: %w", op, err)
	}
	return nil
}

func (h *HTTP) postJSON(ctx context.Context, url, op string, in, out any) error {
	var body io.Reader = http.NoBody
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s encode: %w", op, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return h.do(req, op, out)
}

func (h *HTTP) getJSON(ctx context.Context, url, op string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	return h.do(req, op, out)
}

// readErrorBody prefers the backend's {"error": ...} or {"message": ...}
// fields and falls back to the raw text.
func readErrorBody(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 4096))
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if json.Unmarshal(b, &body) == nil {
		switch {
		case body.Error != "":
			return body.Error
		case body.Message != "":
			return body.Message
		case body.Detail != "":
			return body.Detail
		}
	}
	return strings.TrimSpace(string(b))
}
