package middleware

import (
	"encoding/json"
	"net/http"
)

// errorBody matches the handler package's error envelope so clients parse
// middleware rejections and handler failures the same way.
type errorBody struct {
	Error     string `json:"error"`
	ErrorCode string `json:"error_code"`
}

func writeJSONError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: msg, ErrorCode: code})
}
