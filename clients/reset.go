package clients

import (
	"context"
	"net/url"
)

// --- Reset faces (/reset-faces/{sessionId}) ---
type ResetReq struct {
	StudentID string `json:"studentId"`
	Year      string `json:"year"`
	Dept      string `json:"dept"`
}
type ResetResp struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (h *HTTP) ResetFaces(ctx context.Context, sessionID string, req ResetReq) (*ResetResp, error) {
	var out ResetResp
	u := h.url("reset-faces/" + url.PathEscape(sessionID))
	if err := h.postJSON(ctx, u, "reset faces", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
