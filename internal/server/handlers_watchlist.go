package server

import (
	"net/http"

	"github.com/bobmcallan/pulse/internal/common"
	"github.com/bobmcallan/pulse/internal/models"
)

func (s *Server) handleWatchlist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := common.ResolveUserID(ctx)

	switch r.Method {
	case http.MethodGet:
		items, err := s.app.WatchlistService.GetWatchlist(ctx, userID)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		if items == nil {
			items = []models.WatchlistItem{}
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{"items": items})

	case http.MethodPost:
		var item models.WatchlistItem
		if !DecodeJSON(w, r, &item) {
			return
		}
		saved, err := s.app.WatchlistService.AddOrUpdateItem(ctx, userID, item)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, saved)

	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPost)
	}
}

// handleWatchlistItem handles DELETE /api/watchlist/{symbol}[?asset_type=stock|crypto].
func (s *Server) handleWatchlistItem(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodDelete) {
		return
	}

	symbol := PathParam(r, "/api/watchlist/", "")
	if symbol == "" {
		WriteError(w, http.StatusBadRequest, "symbol is required in path")
		return
	}

	ctx := r.Context()
	assetType := models.AssetType(r.URL.Query().Get("asset_type"))
	if err := s.app.WatchlistService.RemoveItem(ctx, common.ResolveUserID(ctx), symbol, assetType); err != nil {
		WriteServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
