package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// handleHealth reports healthy only when every database answers a ping
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	databases := make(map[string]string)
	for _, db := range s.container.Databases() {
		if err := db.Conn().PingContext(ctx); err != nil {
			databases[db.Name()] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		databases[db.Name()] = "ok"
	}

	response := map[string]interface{}{
		"status":    "healthy",
		"service":   "portfolio-qubo",
		"databases": databases,
	}
	if status != http.StatusOK {
		response["status"] = "unhealthy"
	}

	writeJSON(w, status, response, s.log)
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data interface{}, log zerolog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
