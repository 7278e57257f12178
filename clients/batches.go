package clients

import "context"

// --- Batches (/batches) ---
type Department struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
type BatchesResp struct {
	Years       []string     `json:"years"`
	Departments []Department `json:"departments"`
}

func (h *HTTP) Batches(ctx context.Context) (*BatchesResp, error) {
	var out BatchesResp
	if err := h.getJSON(ctx, h.url("batches"), "batches", &out); err != nil {
		return nil, err
	}
	return &out, nil
}
