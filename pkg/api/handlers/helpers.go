package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/shelfd/shelfd/pkg/api/middleware"
	"github.com/shelfd/shelfd/pkg/library"
)

// decodeJSONBody decodes a JSON request body into the provided pointer.
// Returns true if successful, false if decoding fails (error response is
// written automatically).
func decodeJSONBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		BadRequest(w, "Invalid request body")
		return false
	}
	return true
}

// actorID returns the authenticated subject, or empty when the route is
// unauthenticated.
func actorID(r *http.Request) string {
	if id := middleware.IdentityFromContext(r.Context()); id != nil {
		return id.Subject
	}
	return ""
}

// callerActor builds the service-level actor from the authenticated
// identity, carrying the admin role when the token grants it.
func callerActor(r *http.Request) library.Actor {
	id := middleware.IdentityFromContext(r.Context())
	if id == nil {
		return library.Actor{}
	}
	return library.Actor{ID: id.Subject, Admin: id.HasRole("admin")}
}

// optionalID turns an empty string into a nil pointer. Directory and
// parent scoping uses nil for the library root.
func optionalID(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// limitParam parses a ?limit query parameter with a default and cap.
func limitParam(r *http.Request, def, max int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
