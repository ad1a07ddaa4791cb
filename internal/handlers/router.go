package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter настраивает маршруты API. ws может быть nil
func NewRouter(h *Handler, ws http.Handler) *mux.Router {
	router := mux.NewRouter()

	// API эндпоинты
	router.HandleFunc("/samples", h.SamplesHandler).Methods("POST")
	router.HandleFunc("/actuator", h.ActuatorHandler).Methods("POST")
	router.HandleFunc("/config", h.ConfigHandler).Methods("POST")
	router.HandleFunc("/preferences", h.GetPreferencesHandler).Methods("GET")
	router.HandleFunc("/preferences", h.PutPreferencesHandler).Methods("PUT")
	router.HandleFunc("/skin-temp", h.SkinTempHandler).Methods("POST")
	router.HandleFunc("/thermal/clear", h.ClearFaultHandler).Methods("POST")
	router.HandleFunc("/autonomous", h.AutonomousHandler).Methods("PUT")
	router.HandleFunc("/session/reset", h.ResetSessionHandler).Methods("POST")
	router.HandleFunc("/metrics/latest", h.LatestMetricsHandler).Methods("GET")
	router.HandleFunc("/coherence/recent", h.RecentCoherenceHandler).Methods("GET")
	router.HandleFunc("/cues/stats", h.CueStatsHandler).Methods("GET")
	router.HandleFunc("/health", h.HealthHandler).Methods("GET")
	router.HandleFunc("/stats", h.StatsHandler).Methods("GET")

	// Живой поток событий
	if ws != nil {
		router.Handle("/ws", ws)
	}

	// Prometheus метрики
	router.Handle("/prometheus", promhttp.Handler())

	return router
}
