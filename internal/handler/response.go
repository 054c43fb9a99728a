package handler

import (
	"net/http"
	"time"

	"github.com/dealroom/deal-server-go/internal/httputil"
)

// linkInvalidMessage is the single soft message for every token failure on
// brand-facing pages. Which condition applied (missing, expired, revoked,
// used) is never revealed.
const linkInvalidMessage = "This link is no longer valid."

func writeJSON(w http.ResponseWriter, status int, data any) {
	httputil.WriteJSON(w, status, data)
}

// writeLinkInvalid collapses any token error into the soft brand-facing
// response.
func writeLinkInvalid(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]any{
		"valid":   false,
		"message": linkInvalidMessage,
	})
}

func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
}
