package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/harborfin/drift/internal/common"
	"github.com/harborfin/drift/internal/interfaces"
	"github.com/harborfin/drift/internal/models"
	"github.com/harborfin/drift/internal/services/portfolio"
	"github.com/harborfin/drift/internal/services/rebalance"
)

// --- System handlers ---

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

// handleShutdown handles POST /api/shutdown (dev mode only).
func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	if s.app.Config.IsProduction() {
		WriteError(w, http.StatusForbidden, "Shutdown endpoint disabled in production")
		return
	}

	s.logger.Info().Msg("Shutdown requested via HTTP endpoint")

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Shutting down gracefully...\n"))

	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}

	if s.shutdownChan != nil {
		go func() {
			time.Sleep(100 * time.Millisecond)
			s.shutdownChan <- struct{}{}
		}()
	}
}

// --- Portfolio handlers ---

func (s *Server) handlePortfolioList(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	portfolios, err := s.app.PortfolioService.ListPortfolios(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, fmt.Sprintf("Error listing portfolios: %v", err))
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"portfolios": portfolios,
	})
}

// handlePortfolio serves GET (portfolio with positions) and PUT (upsert).
func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request, name string) {
	switch r.Method {
	case http.MethodGet:
		s.handlePortfolioGet(w, r, name)
	case http.MethodPut:
		s.handlePortfolioUpsert(w, r, name)
	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPut)
	}
}

func (s *Server) handlePortfolioGet(w http.ResponseWriter, r *http.Request, name string) {
	p, err := s.app.PortfolioService.GetPortfolio(r.Context(), name)
	if err != nil {
		WriteError(w, http.StatusNotFound, fmt.Sprintf("Portfolio not found: %v", err))
		return
	}

	snapshot, err := s.app.PositionService.GetSnapshot(r.Context(), name)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, fmt.Sprintf("Error building positions: %v", err))
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"portfolio": p,
		"positions": snapshot.Positions,
	})
}

func (s *Server) handlePortfolioUpsert(w http.ResponseWriter, r *http.Request, name string) {
	var req struct {
		Holdings    []models.Holding `json:"holdings"`
		CashBalance float64          `json:"cash_balance"`
		Currency    string           `json:"currency"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}

	p := &models.Portfolio{
		Name:        name,
		Holdings:    req.Holdings,
		CashBalance: req.CashBalance,
		Currency:    req.Currency,
	}

	saved, err := s.app.PortfolioService.UpsertPortfolio(r.Context(), p)
	if err != nil {
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("Upsert failed: %v", err))
		return
	}

	WriteJSON(w, http.StatusOK, saved)
}

// handleTargets serves GET and PUT for target allocations.
func (s *Server) handleTargets(w http.ResponseWriter, r *http.Request, name string) {
	switch r.Method {
	case http.MethodGet:
		targets, err := s.app.PortfolioService.GetTargets(r.Context(), name)
		if err != nil {
			WriteError(w, http.StatusNotFound, fmt.Sprintf("Targets not found: %v", err))
			return
		}
		WriteJSON(w, http.StatusOK, targets)

	case http.MethodPut:
		var req struct {
			Targets map[string]float64 `json:"targets"`
		}
		if !DecodeJSON(w, r, &req) {
			return
		}
		if len(req.Targets) == 0 {
			WriteError(w, http.StatusBadRequest, "targets are required")
			return
		}

		targets, err := s.app.PortfolioService.SetTargets(r.Context(), name, req.Targets)
		if err != nil {
			WriteError(w, http.StatusBadRequest, fmt.Sprintf("Set targets failed: %v", err))
			return
		}
		WriteJSON(w, http.StatusOK, targets)

	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPut)
	}
}

func (s *Server) handleRisk(w http.ResponseWriter, r *http.Request, name string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	stats, err := s.app.RiskService.ComputeRisk(r.Context(), name)
	if err != nil {
		WriteError(w, http.StatusNotFound, fmt.Sprintf("Risk unavailable: %v", err))
		return
	}

	WriteJSON(w, http.StatusOK, stats)
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request, name string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	snapshot, err := s.app.PositionService.GetSnapshot(r.Context(), name)
	if err != nil {
		WriteError(w, http.StatusNotFound, fmt.Sprintf("Portfolio not found: %v", err))
		return
	}

	png, err := portfolio.RenderAllocationChart(name, snapshot.Positions)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, fmt.Sprintf("Chart render failed: %v", err))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// --- Rebalance handlers ---

func (s *Server) handleRebalance(w http.ResponseWriter, r *http.Request, name string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		InvestmentAmount float64 `json:"investment_amount"`
		MaxActions       *int    `json:"max_actions"`
		UseAdvisor       bool    `json:"use_advisor"`
	}
	if r.ContentLength != 0 {
		if !DecodeJSON(w, r, &req) {
			return
		}
	}

	if req.InvestmentAmount < 0 {
		WriteError(w, http.StatusBadRequest, "investment_amount must not be negative")
		return
	}
	maxActions := 0
	if req.MaxActions != nil {
		if *req.MaxActions <= 0 {
			WriteError(w, http.StatusBadRequest, "max_actions must be positive")
			return
		}
		maxActions = *req.MaxActions
	}

	if _, err := s.app.PortfolioService.GetPortfolio(r.Context(), name); err != nil {
		WriteError(w, http.StatusNotFound, fmt.Sprintf("Portfolio not found: %v", err))
		return
	}

	plan, err := s.app.RebalanceService.Rebalance(r.Context(), name, interfaces.RebalanceOptions{
		InvestmentAmount: req.InvestmentAmount,
		MaxActions:       maxActions,
		UseAdvisor:       req.UseAdvisor,
	})
	if err != nil {
		if errors.Is(err, rebalance.ErrInvalidRequest) {
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		WriteError(w, http.StatusInternalServerError, fmt.Sprintf("Rebalance failed: %v", err))
		return
	}

	WriteJSON(w, http.StatusOK, plan)
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request, name string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			WriteError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	plans, err := s.app.Storage.RecommendationStorage().ListPlans(r.Context(), name, limit)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, fmt.Sprintf("Error listing plans: %v", err))
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"portfolio":       name,
		"recommendations": plans,
	})
}
