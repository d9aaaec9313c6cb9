package endpoints

import (
	"encoding/json"
	"net/http"

	"github.com/jackzampolin/rapor/internal/api"
)

// ErrorResponse is the body of every failed request. Document failures
// fill Kind, Document and Detail.
type ErrorResponse = api.ErrorResponse

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
