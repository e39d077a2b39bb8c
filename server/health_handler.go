package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"StuffChat/core/room"
)

// StatsSource hub 运行概况
type StatsSource interface {
	Stats(ctx context.Context) (room.Stats, error)
}

// HealthHandler GET /api/health
func HealthHandler(src StatsSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		stats, err := src.Stats(ctx)
		if err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]interface{}{"status": "unavailable", "error": err.Error()})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"status": "ok", "hub": stats})
	}
}
