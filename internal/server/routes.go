package server

import (
	"net/http"
	"strings"
)

// registerRoutes sets up all REST API routes on the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// System
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/version", s.handleVersion)
	mux.HandleFunc("/api/shutdown", s.handleShutdown)

	// Portfolios
	mux.HandleFunc("/api/portfolios/", s.routePortfolios)
	mux.HandleFunc("/api/portfolios", s.handlePortfolioList)
}

// routePortfolios dispatches /api/portfolios/{name}/* to the appropriate handler.
func (s *Server) routePortfolios(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/portfolios/")
	if path == "" {
		s.handlePortfolioList(w, r)
		return
	}

	parts := strings.SplitN(path, "/", 2)
	name := parts[0]
	subpath := ""
	if len(parts) > 1 {
		subpath = parts[1]
	}

	switch subpath {
	case "":
		s.handlePortfolio(w, r, name)
	case "targets":
		s.handleTargets(w, r, name)
	case "risk":
		s.handleRisk(w, r, name)
	case "chart":
		s.handleChart(w, r, name)
	case "rebalance":
		s.handleRebalance(w, r, name)
	case "recommendations":
		s.handleRecommendations(w, r, name)
	default:
		WriteError(w, http.StatusNotFound, "Not found")
	}
}
