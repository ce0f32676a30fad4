package models

// AlertDirection is the sign of a price move.
type AlertDirection string

const (
	DirectionUp   AlertDirection = "up"
	DirectionDown AlertDirection = "down"
)

// PriceAlert is an ephemeral notification candidate for a watchlist symbol.
type PriceAlert struct {
	Symbol       string         `json:"symbol"`
	Name         string         `json:"name"`
	ChangePct    float64        `json:"change_pct"`
	CurrentPrice float64        `json:"current_price"`
	Direction    AlertDirection `json:"direction"`
	AssetType    AssetType      `json:"asset_type"`
}
