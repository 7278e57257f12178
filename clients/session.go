package clients

import (
	"context"
	"errors"
)

// --- Session (/session/start) ---
type SessionReq struct {
	StudentID string `json:"studentId"`
	Name      string `json:"name"`
	Year      string `json:"year"`
	Dept      string `json:"dept"`
}
type SessionResp struct {
	SessionID string `json:"sessionId"`
	StudentID string `json:"studentId"`
}

func (h *HTTP) StartSession(ctx context.Context, req SessionReq) (*SessionResp, error) {
	var out SessionResp
	if err := h.postJSON(ctx, h.url("session/start"), "session start", req, &out); err != nil {
		return nil, err
	}
	if out.SessionID == "" {
		return nil, errors.New("session start: response has no sessionId")
	}
	return &out, nil
}
