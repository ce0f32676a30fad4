package server

import (
	"net/http"
	"strconv"

	"github.com/bobmcallan/pulse/internal/common"
	"github.com/bobmcallan/pulse/internal/models"
	"github.com/bobmcallan/pulse/internal/services/valuation"
)

// resolveRange reads ?range=, defaulting to the configured range.
func (s *Server) resolveRange(w http.ResponseWriter, r *http.Request) (models.ValuationRange, bool) {
	raw := r.URL.Query().Get("range")
	if raw == "" {
		raw = s.app.Config.Valuation.DefaultRange
	}
	vr, err := models.ParseValuationRange(raw)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return vr, true
}

func (s *Server) handleValuation(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	vr, ok := s.resolveRange(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	result, err := s.app.ValuationService.GetValuation(ctx, common.ResolveUserID(ctx), vr)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

func (s *Server) handleValuationChart(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	vr, ok := s.resolveRange(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	result, err := s.app.ValuationService.GetValuation(ctx, common.ResolveUserID(ctx), vr)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	png, err := valuation.RenderValuationChart(result)
	if err != nil {
		WriteError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.Header().Set("X-Valuation-Partial", strconv.FormatBool(result.IsError))
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

func (s *Server) handlePortfolioSummary(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	ctx := r.Context()
	summary, err := s.app.PortfolioService.GetPortfolioSummary(ctx, common.ResolveUserID(ctx))
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, summary)
}

func (s *Server) handleAlertScan(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	ctx := r.Context()
	alerts, err := s.app.AlertService.Scan(ctx, common.ResolveUserID(ctx))
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"alerts": alerts})
}
