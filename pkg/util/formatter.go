package util

import (
	"fmt"
	"math"
)

// FormatBytes renders a byte count with a binary prefix.
func FormatBytes(n int) string {
	switch {
	case n >= 1<<30:
		return fmt.Sprintf("%.2f GiB", float64(n)/(1<<30))
	case n >= 1<<20:
		return fmt.Sprintf("%.2f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.2f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

// FormatResidual renders a relative residual for column aligned solve logs.
func FormatResidual(value float64) string {
	return fmt.Sprintf("%10.3e", value) // e.g. " 4.217e-09"
}

// FormatReduction reports the geometric mean residual reduction per
// iteration of a recorded history.
func FormatReduction(history []float64) string {
	if len(history) < 2 || history[0] == 0 {
		return "n/a"
	}
	steps := float64(len(history) - 1)
	rate := math.Pow(history[len(history)-1]/history[0], 1/steps)
	return fmt.Sprintf("%.3f", rate)
}
