package main

import (
	"strconv"

	"github.com/fatih/color"
	"github.com/rezkym/fx-exchange/pkg/change"
)

var (
	bold  = color.New(color.Bold)
	warn  = color.New(color.FgYellow)
	green = color.New(color.FgGreen)
	red   = color.New(color.FgRed)
)

func formatRate(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// formatChange colours positive deltas green and negative ones red.
func formatChange(r change.Result) string {
	switch r.Kind {
	case change.Positive:
		return green.Sprint("+" + formatRate(r.Delta))
	case change.Negative:
		return red.Sprint(formatRate(r.Delta))
	default:
		return formatRate(r.Delta)
	}
}
