package clients

import (
	"context"
	"net/http"
)

// --- Collection app control plane ---
type ControlResp struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	ProcessName string `json:"process_name"`
}
type AppStatusResp struct {
	Running     bool   `json:"running"`
	ProcessName string `json:"process_name"`
	Details     string `json:"details"`
	Error       string `json:"error"`
}
type AppConfigResp struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

func (h *HTTP) StartApp(ctx context.Context) (*ControlResp, error) {
	return h.control(ctx, "start-collection-app", "start collection app")
}

func (h *HTTP) StopApp(ctx context.Context) (*ControlResp, error) {
	return h.control(ctx, "stop-collection-app", "stop collection app")
}

func (h *HTTP) control(ctx context.Context, path, op string) (*ControlResp, error) {
	var out ControlResp
	if err := h.postJSON(ctx, h.controlURL(path), op, nil, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, &RejectedError{Op: op, Code: http.StatusOK, Message: out.Message}
	}
	return &out, nil
}

// AppStatus reports the running flag. The backend answers 200 with an
// "error" field when it could not inspect the process; that is surfaced as
// a rejection so callers do not read it as stopped.
func (h *HTTP) AppStatus(ctx context.Context) (*AppStatusResp, error) {
	var out AppStatusResp
	if err := h.getJSON(ctx, h.controlURL("collection-app-status"), "collection app status", &out); err != nil {
		return nil, err
	}
	if out.Error != "" {
		return nil, &RejectedError{Op: "collection app status", Code: http.StatusOK, Message: out.Error}
	}
	return &out, nil
}

func (h *HTTP) AppConfig(ctx context.Context) (*AppConfigResp, error) {
	var out AppConfigResp
	if err := h.getJSON(ctx, h.controlURL("collection-app-config"), "collection app config", &out); err != nil {
		return nil, err
	}
	return &out, nil
}
