package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// FormatSSE renders one server-sent event frame. data is written on a
// single data line; callers pass compact JSON.
func FormatSSE(eventType string, data []byte) []byte {
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", eventType, data))
}

// defaultHeartbeat keeps idle connections alive through proxies.
const defaultHeartbeat = 30 * time.Second

// ServeSSE streams a subscriber's events to an HTTP response until the
// client disconnects or ctx ends. It emits a `connected` event first
// and a comment heartbeat every interval (default 30s). The caller
// still owns the subscriber and must Unsubscribe afterwards.
func ServeSSE(ctx context.Context, w http.ResponseWriter, sub *Subscriber, heartbeat time.Duration) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("response writer does not support streaming")
	}
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	connected, _ := json.Marshal(map[string]string{"channel": sub.Channel()})
	if _, err := w.Write(FormatSSE("connected", connected)); err != nil {
		return err
	}
	flusher.Flush()

	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := io.WriteString(w, ": heartbeat\n\n"); err != nil {
				return err
			}
			flusher.Flush()
		case event, ok := <-sub.Events():
			if !ok {
				return nil
			}
			payload, err := json.Marshal(event)
			if err != nil {
				continue
			}
			if _, err := w.Write(FormatSSE(event.Type, payload)); err != nil {
				return err
			}
			flusher.Flush()
		}
	}
}
