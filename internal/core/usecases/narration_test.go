package usecases_test

import (
	"strings"
	"testing"

	"github.com/samirrijal/tourguide/internal/core/domain"
	"github.com/samirrijal/tourguide/internal/core/usecases"
)

func TestComposeNarration(t *testing.T) {
	p := domain.Place{
		Name:        "Helmond Castle",
		Description: "A moated castle.",
		Facts:       []string{"The moat is over 700 years old.", "unused"},
	}

	title, text := usecases.ComposeNarration(p, 400)
	if title != "Welcome to Helmond Castle" {
		t.Errorf("unexpected title %q", title)
	}
	for _, want := range []string{"about 400m away", "A moated castle.", "700 years"} {
		if !strings.Contains(text, want) {
			t.Errorf("narration %q missing %q", text, want)
		}
	}
	if strings.Contains(text, "unused") {
		t.Error("only the first fact should be narrated")
	}

	_, text = usecases.ComposeNarration(domain.Place{Name: "Nuenen"}, 0)
	if text != "You have arrived at Nuenen." {
		t.Errorf("unexpected narration at zero distance: %q", text)
	}
}
