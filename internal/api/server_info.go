package api

import (
	"net/http"
)

// ServerInfoHandler exposes the public settings a checkout page needs.
type ServerInfoHandler struct {
	info ServerInfoResponse
}

func NewServerInfoHandler(name, paymentKeyID, currency string, uploadMax int64) *ServerInfoHandler {
	return &ServerInfoHandler{info: ServerInfoResponse{
		Name:           name,
		PaymentKeyID:   paymentKeyID,
		Currency:       currency,
		UploadMaxBytes: uploadMax,
	}}
}

type ServerInfoResponse struct {
	Name           string `json:"name"`
	PaymentKeyID   string `json:"paymentKeyId"`
	Currency       string `json:"currency"`
	UploadMaxBytes int64  `json:"uploadMaxBytes"`
}

// GET /server/info
func (h *ServerInfoHandler) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.info)
}
