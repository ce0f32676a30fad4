package server

import (
	"net/http"

	"github.com/bobmcallan/pulse/internal/common"
	"github.com/bobmcallan/pulse/internal/models"
)

// holdingRequest is the body of POST /api/holdings.
type holdingRequest struct {
	Symbol        string           `json:"symbol"`
	AssetType     models.AssetType `json:"asset_type"`
	Quantity      float64          `json:"quantity"`
	PurchasePrice float64          `json:"purchase_price"`
	PurchaseDate  string           `json:"purchase_date"`
}

func (s *Server) handleHoldings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := common.ResolveUserID(ctx)

	switch r.Method {
	case http.MethodGet:
		holdings, err := s.app.PortfolioService.ListHoldings(ctx, userID)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		if holdings == nil {
			holdings = []models.Holding{}
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{"holdings": holdings})

	case http.MethodPost:
		var req holdingRequest
		if !DecodeJSON(w, r, &req) {
			return
		}
		h, err := s.app.PortfolioService.AddHolding(ctx, userID, models.Holding{
			Symbol:        req.Symbol,
			AssetType:     req.AssetType,
			Quantity:      req.Quantity,
			PurchasePrice: req.PurchasePrice,
			PurchaseDate:  req.PurchaseDate,
		})
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, h)

	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPost)
	}
}

func (s *Server) handleHoldingItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := common.ResolveUserID(ctx)

	id := PathParam(r, "/api/holdings/", "")
	if id == "" {
		WriteError(w, http.StatusBadRequest, "holding id is required in path")
		return
	}

	switch r.Method {
	case http.MethodPatch:
		var update models.HoldingUpdate
		if !DecodeJSON(w, r, &update) {
			return
		}
		h, err := s.app.PortfolioService.UpdateHolding(ctx, userID, id, update)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, h)

	case http.MethodDelete:
		if err := s.app.PortfolioService.RemoveHolding(ctx, userID, id); err != nil {
			WriteServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		RequireMethod(w, r, http.MethodPatch, http.MethodDelete)
	}
}
