// Package api serves the current ETA snapshot and traffic state as JSON.
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sort"
	"strings"

	"fleet-eta/internal/fleet"
	"fleet-eta/internal/traffic"
)

// Source is the read-only view the handlers need.
type Source interface {
	ETA(tripID string) (fleet.ETARecord, bool)
	Snapshot() map[string]fleet.ETARecord
	Traffic() *traffic.Model
}

type trafficResponse struct {
	SpeedFactor float64        `json:"speedFactor"`
	Zones       []traffic.Zone `json:"zones"`
}

// Routes returns the handlers keyed by mux pattern.
func Routes(src Source) map[string]http.Handler {
	return map[string]http.Handler{
		"/etas":    listETAs(src),
		"/etas/":   getETA(src),
		"/traffic": getTraffic(src),
	}
}

func listETAs(src Source) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		snap := src.Snapshot()
		out := make([]fleet.ETARecord, 0, len(snap))
		for _, rec := range snap {
			out = append(out, rec)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].TripID < out[j].TripID })
		writeJSON(w, http.StatusOK, out)
	})
}

func getETA(src Source) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		id := strings.TrimPrefix(r.URL.Path, "/etas/")
		if id == "" || strings.Contains(id, "/") {
			http.NotFound(w, r)
			return
		}
		rec, ok := src.ETA(id)
		if !ok {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	})
}

func getTraffic(src Source) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		m := src.Traffic()
		writeJSON(w, http.StatusOK, trafficResponse{SpeedFactor: m.SpeedFactor(), Zones: m.Zones()})
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response error: %v", err)
	}
}
