package api

import (
	"encoding/json"
	"net/http"

	"github.com/opsorch/adminlog/logger"
	"github.com/opsorch/adminlog/orcherr"
)

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, err orcherr.OpsOrchError) {
	logger.FromContext(r.Context()).Warn("api error", "status", status, "code", err.Code, "message", err.Message)
	writeJSON(w, status, map[string]string{"code": err.Code, "message": err.Message})
}

func writeBadRequest(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, http.StatusBadRequest, orcherr.BadRequest(err.Error()))
}

// writeProviderError maps typed errors to HTTP statuses; anything untyped is a provider failure.
func writeProviderError(w http.ResponseWriter, r *http.Request, err error) {
	if oe, ok := orcherr.As(err); ok {
		status := http.StatusBadGateway
		switch oe.Code {
		case orcherr.CodeNotFound:
			status = http.StatusNotFound
		case orcherr.CodeBadRequest, orcherr.CodeInvalidWindowDuration:
			status = http.StatusBadRequest
		}
		if oe.Err != nil {
			oe.Message = oe.Message + ": " + oe.Err.Error()
		}
		writeError(w, r, status, oe)
		return
	}
	logger.FromContext(r.Context()).Error("provider error", "err", err)
	writeError(w, r, http.StatusBadGateway, orcherr.New(orcherr.CodeProviderError, err.Error(), nil))
}
