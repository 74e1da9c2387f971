package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/cmlabs-hris/attendance-backend-go/internal/handler/http/response"
)

const maxJSONBody = 1 << 20

// decodeJSON reads a single JSON object into dst and answers 400 itself on
// failure. Field validation is left to the service.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			response.BadRequest(w, "Request body is required", nil)
		case errors.As(err, &tooLarge):
			response.BadRequest(w, "Request body is too large", nil)
		default:
			slog.Debug("Rejected malformed JSON body", "path", r.URL.Path, "error", err)
			response.BadRequest(w, "Invalid request format", nil)
		}
		return false
	}
	return true
}
