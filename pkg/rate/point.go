// Package rate holds rate observations for a currency pair and the store
// that merges scheduled history with live ticks into one monotonic series.
package rate

import (
	"errors"
	"fmt"
	"time"

	"github.com/rezkym/fx-exchange/pkg/currency"
)

// ErrUnorderedHistory is returned by CheckOrdered when a history slice is
// not sorted by time.
var ErrUnorderedHistory = errors.New("rate history is not time-ordered")

// Point is a single rate observation: 1 Source = Value Target at Time.
type Point struct {
	Time   time.Time     `json:"time"`
	Value  float64       `json:"value"`
	Source currency.Code `json:"source"`
	Target currency.Code `json:"target"`
}

// Pair returns the currency pair the point is quoted on.
func (p Point) Pair() currency.Pair {
	return currency.Pair{Source: p.Source, Target: p.Target}
}

// CheckOrdered verifies that points are non-decreasing in time. Stores accept
// history as-is; callers use this to surface broken upstream data.
func CheckOrdered(points []Point) error {
	for i := 1; i < len(points); i++ {
		if points[i].Time.Before(points[i-1].Time) {
			return fmt.Errorf("%w: index %d (%s) precedes index %d (%s)",
				ErrUnorderedHistory,
				i, points[i].Time.Format(time.RFC3339),
				i-1, points[i-1].Time.Format(time.RFC3339),
			)
		}
	}
	return nil
}
