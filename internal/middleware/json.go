package middleware

import (
	"encoding/json"
	"net/http"

	"go-charity-backoffice/internal/model"
)

// writeJSONError writes the API error envelope for failures raised before a
// handler runs.
func writeJSONError(w http.ResponseWriter, status int, code string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: false,
		Error:   &model.APIError{Code: code, Message: message},
	})
}
