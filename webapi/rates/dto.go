package rates

import (
	"github.com/rezkym/fx-exchange/pkg/currency"
	"github.com/rezkym/fx-exchange/pkg/provider"
)

// WindowRequest represents the request body for changing the history window.
type WindowRequest struct {
	Length     int    `json:"length" validate:"required,min=1,max=1000"`
	Unit       string `json:"unit" validate:"required,oneof=minute hour day week month"`
	Resolution string `json:"resolution" validate:"required,oneof=minute hour day"`
}

// ToWindow converts the request to the provider window.
func (r *WindowRequest) ToWindow() provider.HistoryWindow {
	return provider.HistoryWindow{Length: r.Length, Unit: r.Unit, Resolution: r.Resolution}
}

// PairsResponse lists the watched pairs.
type PairsResponse struct {
	Pairs []string `json:"pairs"`
}

func toPairsResponse(pairs []currency.Pair) PairsResponse {
	out := PairsResponse{Pairs: make([]string, 0, len(pairs))}
	for _, p := range pairs {
		out.Pairs = append(out.Pairs, p.String())
	}
	return out
}
