package http

import (
	"net/http"

	"github.com/quantumauth-io/quantum-swap-agent/internal/errs"
)

// Handler is a convenience type so we can wrap common behavior.
type Handler func(http.ResponseWriter, *http.Request)

func requireMethod(method string, next Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			http.Error(w, HTTPErrorMethodNotAllowedText, http.StatusMethodNotAllowed)
			return
		}
		next(w, r)
	}
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := readJSONBody(r, dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{OK: false, Stage: string(errs.StageValidate), Error: HTTPErrorInvalidJSONText + ": " + err.Error()})
		return false
	}
	return true
}
