package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/nicktill/skilltrend/pkg/config"
	"github.com/nicktill/skilltrend/pkg/events"
	"github.com/nicktill/skilltrend/pkg/httpx"
	"github.com/nicktill/skilltrend/pkg/live"
	"github.com/nicktill/skilltrend/pkg/metrics"
	"github.com/nicktill/skilltrend/pkg/progression"
	"github.com/nicktill/skilltrend/pkg/server/monitor"
	"github.com/nicktill/skilltrend/pkg/snapshot"
	"github.com/nicktill/skilltrend/pkg/storage"
	"github.com/nicktill/skilltrend/pkg/trend"
)

var startTime = time.Now()

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status     string                   `json:"status"`
	Version    string                   `json:"version"`
	Uptime     string                   `json:"uptime"`
	Compaction monitor.CompactionStatus `json:"compaction"`
}

// handleHealth returns service health status.
func handleHealth(compactionMonitor *monitor.CompactionMonitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		overallStatus := "healthy"
		statusCode := http.StatusOK
		if !compactionMonitor.IsHealthy() {
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		httpx.RespondJSON(w, statusCode, HealthResponse{
			Status:     overallStatus,
			Version:    "1.0.0",
			Uptime:     time.Since(startTime).String(),
			Compaction: compactionMonitor.Status(),
		})
	}
}

// handleStats returns storage statistics.
func handleStats(store storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := store.Stats(r.Context())
		if err != nil {
			httpx.RespondError(w, http.StatusInternalServerError, err)
			return
		}
		httpx.RespondJSON(w, http.StatusOK, stats)
	}
}

// handleTrend resolves a trend query:
//
//	GET /v1/trend?player=<id>&series=power|<skill>&days=7
//	GET /v1/trend?player=<id>&all=true
//
// The result status maps to the HTTP code: success 200, no_data 404,
// error 500 (400 for parameter problems caught before the query).
func handleTrend(svc *trend.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		playerID := r.URL.Query().Get("player")
		if playerID == "" {
			httpx.RespondErrorString(w, http.StatusBadRequest, "player query parameter is required")
			return
		}

		series := progression.SeriesPower
		if s := r.URL.Query().Get("series"); s != "" {
			series = progression.Series(s)
		}

		tf := trend.Timeframe{}
		if r.URL.Query().Get("all") == "true" {
			tf.AllTime = true
		} else {
			days, err := strconv.Atoi(r.URL.Query().Get("days"))
			if err != nil {
				httpx.RespondErrorString(w, http.StatusBadRequest, "days must be an integer (or pass all=true)")
				return
			}
			tf.Days = days
		}

		ctx, cancel := context.WithTimeout(r.Context(), config.TrendQueryTimeout)
		defer cancel()

		result := svc.GetTrend(ctx, playerID, series, tf)
		switch result.Status {
		case trend.StatusSuccess:
			httpx.RespondJSON(w, http.StatusOK, result)
		case trend.StatusNoData:
			httpx.RespondJSON(w, http.StatusNotFound, result)
		default:
			httpx.RespondJSON(w, http.StatusInternalServerError, result)
		}
	}
}

// handleProfileUpsert receives a live profile push from the game-side
// integration and marks the player online.
func handleProfileUpsert(registry *live.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var profile snapshot.Profile
		if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
			httpx.RespondError(w, http.StatusBadRequest, err)
			return
		}
		if err := registry.Upsert(profile); err != nil {
			httpx.RespondError(w, http.StatusBadRequest, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleProfileRemove marks a player offline.
func handleProfileRemove(registry *live.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		registry.Remove(mux.Vars(r)["player"])
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleLevelUp appends one level-up event from the event source.
func handleLevelUp(recorder *events.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var ev progression.LevelUpEvent
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
			httpx.RespondError(w, http.StatusBadRequest, err)
			return
		}
		if err := recorder.Record(r.Context(), ev); err != nil {
			httpx.RespondError(w, http.StatusBadRequest, err)
			return
		}
		httpx.RespondJSON(w, http.StatusAccepted, map[string]string{"status": "recorded"})
	}
}

// SetupRoutes configures all HTTP routes for the daemon.
func SetupRoutes(
	router *mux.Router,
	store storage.Store,
	registry *live.Registry,
	trendService *trend.Service,
	recorder *events.Recorder,
	feed *events.Feed,
	compactionMonitor *monitor.CompactionMonitor,
) {
	api := router.PathPrefix("/v1").Subrouter()

	// Live state pushed by the game-side integration
	api.HandleFunc("/profiles", handleProfileUpsert(registry)).Methods("POST")
	api.HandleFunc("/profiles/{player}", handleProfileRemove(registry)).Methods("DELETE")

	// Level-up events
	api.HandleFunc("/events/levelup", handleLevelUp(recorder)).Methods("POST")
	api.HandleFunc("/feed/ws", feed.HandleWebSocket()).Methods("GET")

	// Trend queries for the presentation layer
	api.HandleFunc("/trend", handleTrend(trendService)).Methods("GET")

	// Operational surface
	api.HandleFunc("/health", handleHealth(compactionMonitor)).Methods("GET")
	api.HandleFunc("/stats", handleStats(store)).Methods("GET")
	router.Handle("/metrics", metrics.Handler()).Methods("GET")
}
