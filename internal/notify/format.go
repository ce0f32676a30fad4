package notify

import (
	"fmt"

	"github.com/bobmcallan/pulse/internal/models"
)

func formatSubject(a models.PriceAlert) string {
	verb := "up"
	if a.Direction == models.DirectionDown {
		verb = "down"
	}
	return fmt.Sprintf("%s is %s %.2f%%", a.Symbol, verb, abs(a.ChangePct))
}

func formatBody(a models.PriceAlert) string {
	return fmt.Sprintf("%s (%s) moved %+.2f%% and is now trading at %.2f.", a.Name, a.Symbol, a.ChangePct, a.CurrentPrice)
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
