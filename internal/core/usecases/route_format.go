package usecases

import (
	"fmt"
	"math"
)

// FormatDistance renders meters as "400m" below one kilometer and "1.2km" above.
func FormatDistance(meters float64) string {
	if meters < 1000 {
		return fmt.Sprintf("%dm", int(math.Round(meters)))
	}
	return fmt.Sprintf("%.1fkm", meters/1000)
}

// FormatDuration renders seconds as "N min" below an hour and "Hh Mmin" above.
func FormatDuration(seconds float64) string {
	minutes := int(math.Floor(seconds / 60))
	if minutes < 60 {
		return fmt.Sprintf("%d min", minutes)
	}
	return fmt.Sprintf("%dh %dmin", minutes/60, minutes%60)
}
