// Package middleware provides HTTP middleware for the shelfd API.
package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/shelfd/shelfd/internal/logger"
)

// CorrelationIDHeader carries the per-request correlation id. Clients
// may supply one; absent, the server mints a UUID. The id is echoed on
// the response and stamped into every log line and audit event the
// request produces.
const CorrelationIDHeader = "X-Correlation-ID"

// VersionedMediaType is the versioned Accept media type for the v1 API.
const VersionedMediaType = "application/vnd.shelfd.v1+json"

// CorrelationID establishes the request's logging context: correlation
// id, client IP and start time.
func CorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cid := r.Header.Get(CorrelationIDHeader)
		if cid == "" {
			cid = uuid.NewString()
		}
		w.Header().Set(CorrelationIDHeader, cid)

		lc := logger.NewLogContext(cid)
		lc.ClientIP = clientIP(r.RemoteAddr)

		next.ServeHTTP(w, r.WithContext(logger.WithContext(r.Context(), lc)))
	})
}

// clientIP strips the port from a remote address when present.
func clientIP(remoteAddr string) string {
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}

// RequireVersion negotiates the API version from the Accept header.
//
// Accepted: no Accept header, */*, application/json, or the versioned
// media type. Any other vnd.shelfd version is rejected with 406 so
// clients pinned to a future version fail fast instead of misparsing
// v1 payloads.
func RequireVersion(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accept := r.Header.Get("Accept")
		if accept == "" || acceptable(accept) {
			next.ServeHTTP(w, r)
			return
		}
		writeProblem(w, http.StatusNotAcceptable, "Not Acceptable",
			"unsupported API version; use "+VersionedMediaType)
	})
}

func acceptable(accept string) bool {
	for _, part := range strings.Split(accept, ",") {
		mediaType := strings.TrimSpace(part)
		if i := strings.IndexByte(mediaType, ';'); i >= 0 {
			mediaType = strings.TrimSpace(mediaType[:i])
		}
		switch mediaType {
		case "*/*", "application/*", "application/json", VersionedMediaType:
			return true
		}
	}
	return false
}

// writeProblem is a local RFC 7807 writer. The middleware package
// cannot import handlers without a cycle.
func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"type":   "about:blank",
		"title":  title,
		"status": status,
		"detail": detail,
	})
}
