package server

import (
	"encoding/json"
	"math"
	"net/http"
	"time"

	"github.com/marcus/mailgrab/pkg/types"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, code, message, help string, elapsed time.Duration) {
	writeJSON(w, status, types.ErrorResponse{
		Success:         false,
		Error:           code,
		Message:         message,
		Help:            help,
		DurationSeconds: roundSeconds(elapsed),
	})
}

// roundSeconds reports an elapsed duration in seconds with two-decimal
// precision.
func roundSeconds(d time.Duration) float64 {
	return math.Round(d.Seconds()*100) / 100
}
