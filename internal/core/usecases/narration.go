package usecases

import (
	"fmt"
	"strings"

	"github.com/samirrijal/tourguide/internal/core/domain"
)

// ComposeNarration builds the arrival text for place, d meters from the visitor.
// It names the place and distance, then adds the description and the first fact.
func ComposeNarration(place domain.Place, d float64) (title, text string) {
	title = "Welcome to " + place.Name

	var b strings.Builder
	if d < 1 {
		fmt.Fprintf(&b, "You have arrived at %s.", place.Name)
	} else {
		fmt.Fprintf(&b, "You are near %s, about %s away.", place.Name, FormatDistance(d))
	}
	if desc := strings.TrimSpace(place.Description); desc != "" {
		b.WriteString(" ")
		b.WriteString(desc)
	}
	if len(place.Facts) > 0 {
		b.WriteString(" Did you know? ")
		b.WriteString(place.Facts[0])
	}
	return title, b.String()
}
