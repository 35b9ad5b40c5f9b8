package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/aristath/portfolio-qubo/internal/events"
)

const (
	heartbeatInterval = 30 * time.Second
	wsWriteTimeout    = 5 * time.Second
)

// EventsStreamHandler streams bus events to clients over SSE or websocket.
// Both transports accept an optional comma-separated ?types= filter.
type EventsStreamHandler struct {
	eventBus *events.Bus
	log      zerolog.Logger
}

// NewEventsStreamHandler creates a new events stream handler.
func NewEventsStreamHandler(eventBus *events.Bus, log zerolog.Logger) *EventsStreamHandler {
	return &EventsStreamHandler{
		eventBus: eventBus,
		log:      log.With().Str("component", "events_stream").Logger(),
	}
}

// streamMessage is the JSON shape sent for every event.
type streamMessage struct {
	Type      string                 `json:"type"`
	Module    string                 `json:"module,omitempty"`
	Timestamp string                 `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

func newStreamMessage(event events.Event) streamMessage {
	return streamMessage{
		Type:      string(event.Type),
		Module:    event.Module,
		Timestamp: event.Timestamp.Format(time.RFC3339),
		Data:      event.Data,
	}
}

// parseTypesFilter returns nil when every type is allowed.
func parseTypesFilter(raw string) map[events.EventType]bool {
	if raw == "" {
		return nil
	}
	allowed := make(map[events.EventType]bool)
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			allowed[events.EventType(t)] = true
		}
	}
	return allowed
}

// ServeHTTP handles GET /api/events/stream requests (SSE).
func (h *EventsStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	allowed := parseTypesFilter(r.URL.Query().Get("types"))
	eventChan, unsubscribe := h.eventBus.Subscribe()
	defer unsubscribe()

	h.log.Info().Str("types_filter", r.URL.Query().Get("types")).Msg("Client connected to event stream")

	h.writeSSE(w, streamMessage{Type: "connected", Timestamp: time.Now().Format(time.RFC3339)})
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			h.log.Info().Msg("Client disconnected from event stream")
			return

		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if allowed != nil && !allowed[event.Type] {
				continue
			}
			h.writeSSE(w, newStreamMessage(event))
			flusher.Flush()

		case <-heartbeat.C:
			h.writeSSE(w, streamMessage{Type: "heartbeat", Timestamp: time.Now().Format(time.RFC3339)})
			flusher.Flush()
		}
	}
}

func (h *EventsStreamHandler) writeSSE(w http.ResponseWriter, msg streamMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to marshal event")
		data = []byte(`{"error":"failed to encode event"}`)
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
}

// ServeWebSocket handles GET /api/events/ws requests.
// The stream is write-only; client messages are discarded.
func (h *EventsStreamHandler) ServeWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket handshake failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	allowed := parseTypesFilter(r.URL.Query().Get("types"))
	eventChan, unsubscribe := h.eventBus.Subscribe()
	defer unsubscribe()

	// CloseRead handles control frames and cancels ctx once the client goes away
	ctx := conn.CloseRead(r.Context())

	h.log.Info().Msg("Client connected to websocket event stream")

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		var msg streamMessage
		select {
		case <-ctx.Done():
			h.log.Info().Msg("Client disconnected from websocket event stream")
			conn.Close(websocket.StatusNormalClosure, "")
			return

		case event, ok := <-eventChan:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}
			if allowed != nil && !allowed[event.Type] {
				continue
			}
			msg = newStreamMessage(event)

		case <-heartbeat.C:
			msg = streamMessage{Type: "heartbeat", Timestamp: time.Now().Format(time.RFC3339)}
		}

		if err := h.writeWS(ctx, conn, msg); err != nil {
			if websocket.CloseStatus(err) == -1 {
				h.log.Warn().Err(err).Msg("Failed to write websocket message")
			}
			return
		}
	}
}

func (h *EventsStreamHandler) writeWS(ctx context.Context, conn *websocket.Conn, msg streamMessage) error {
	ctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, msg)
}
