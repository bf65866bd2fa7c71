// Package change derives rate deltas from a series snapshot and the current
// value. All functions are pure.
package change

import "github.com/rezkym/fx-exchange/pkg/rate"

// Kind classifies the sign of a delta.
type Kind string

const (
	Positive Kind = "positive"
	Negative Kind = "negative"
	Neutral  Kind = "neutral"
)

// Result is a delta and its classification.
type Result struct {
	Delta float64 `json:"delta"`
	Kind  Kind    `json:"kind"`
}

// KindOf maps a delta to its Kind.
func KindOf(delta float64) Kind {
	switch {
	case delta > 0:
		return Positive
	case delta < 0:
		return Negative
	default:
		return Neutral
	}
}

func newResult(delta float64) Result {
	return Result{Delta: delta, Kind: KindOf(delta)}
}

// Current compares current against the most recent point whose value
// differs from it, scanning backward. Equal trailing samples therefore do
// not produce a zero change. Series shorter than two points, or with no
// differing value, yield a neutral zero.
func Current(series []rate.Point, current float64) Result {
	if len(series) < 2 {
		return newResult(0)
	}
	for i := len(series) - 1; i >= 0; i-- {
		if series[i].Value != current {
			return newResult(current - series[i].Value)
		}
	}
	return newResult(0)
}

// Window compares current against the oldest point whose value differs from
// it, scanning forward. When every point equals current the oldest point is
// used, which yields zero.
func Window(series []rate.Point, current float64) Result {
	if len(series) == 0 {
		return newResult(0)
	}
	comparison := series[0].Value
	for _, p := range series {
		if p.Value != current {
			comparison = p.Value
			break
		}
	}
	return newResult(current - comparison)
}
