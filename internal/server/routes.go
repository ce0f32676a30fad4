package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bobmcallan/pulse/internal/common"
)

// registerRoutes sets up all REST API routes on the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// System
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/version", s.handleVersion)
	mux.Handle("/metrics", promhttp.Handler())

	// Holdings
	mux.HandleFunc("/api/holdings/", s.handleHoldingItem)
	mux.HandleFunc("/api/holdings", s.handleHoldings)

	// Watchlist
	mux.HandleFunc("/api/watchlist/", s.handleWatchlistItem)
	mux.HandleFunc("/api/watchlist", s.handleWatchlist)

	// Portfolio
	mux.HandleFunc("/api/portfolio/valuation/chart", s.handleValuationChart)
	mux.HandleFunc("/api/portfolio/valuation", s.handleValuation)
	mux.HandleFunc("/api/portfolio/summary", s.handlePortfolioSummary)

	// Alerts
	mux.HandleFunc("/api/alerts/scan", s.handleAlertScan)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"build":   common.GetBuild(),
		"commit":  common.GetGitCommit(),
	})
}
