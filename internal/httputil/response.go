// Package httputil holds the response helpers shared by the HTTP handlers.
package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/banshee-data/mstid/internal/monitoring"
)

var logf = monitoring.Component("HTTP")

// JSON writes v as a JSON body with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logf("failed to encode json response: %v", err)
	}
}

// OK writes v as a 200 JSON body.
func OK(w http.ResponseWriter, v interface{}) {
	JSON(w, http.StatusOK, v)
}

// Errorf writes {"error": msg} with the given status code.
func Errorf(w http.ResponseWriter, status int, format string, args ...interface{}) {
	JSON(w, status, map[string]string{"error": fmt.Sprintf(format, args...)})
}

// Body writes a non-JSON body with its content type.
func Body(w http.ResponseWriter, contentType string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		logf("failed to write %s response: %v", contentType, err)
	}
}
