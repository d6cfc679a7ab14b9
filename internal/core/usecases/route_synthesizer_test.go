package usecases_test

import (
	"math/rand/v2"
	"testing"

	"github.com/samirrijal/tourguide/internal/core/domain"
	"github.com/samirrijal/tourguide/internal/core/usecases"
)

var (
	eindhoven = domain.Coordinate{Latitude: 51.4416, Longitude: 5.4697}
	nuenen    = domain.Coordinate{Latitude: 51.4583, Longitude: 5.5583}
)

func seeded(seed uint64) usecases.SynthesizerOption {
	return usecases.WithRand(rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)))
}

func TestRouteSynthesizer_EndpointsExact(t *testing.T) {
	s := usecases.NewRouteSynthesizer(seeded(1))
	r := s.Synthesize(eindhoven, nuenen, domain.TravelModeWalking)

	if r.Start() != eindhoven {
		t.Errorf("path starts at %v; want %v", r.Start(), eindhoven)
	}
	if r.End() != nuenen {
		t.Errorf("path ends at %v; want %v", r.End(), nuenen)
	}
	if r.Source != domain.RouteSourceSynthesized {
		t.Errorf("source = %q; want %q", r.Source, domain.RouteSourceSynthesized)
	}
}

func TestRouteSynthesizer_DistanceBounds(t *testing.T) {
	direct := eindhoven.DistanceTo(nuenen)
	for seed := uint64(0); seed < 50; seed++ {
		r := usecases.NewRouteSynthesizer(seeded(seed)).Synthesize(eindhoven, nuenen, "")
		if r.Distance < direct*1.2 || r.Distance > direct*1.5 {
			t.Fatalf("seed %d: distance %.1f outside [%.1f, %.1f]", seed, r.Distance, direct*1.2, direct*1.5)
		}
		if r.Duration <= 0 {
			t.Fatalf("seed %d: expected positive duration, got %f", seed, r.Duration)
		}
	}
}

func TestRouteSynthesizer_PointCount(t *testing.T) {
	cases := []struct {
		name string
		end  domain.Coordinate
		want int
	}{
		{"same point", eindhoven, 2},
		{"short hop", domain.Coordinate{Latitude: 51.4430, Longitude: 5.4697}, 2},
		{"eindhoven to nuenen", nuenen, int(eindhoven.DistanceTo(nuenen) / 500)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := usecases.NewRouteSynthesizer(seeded(7)).Synthesize(eindhoven, tc.end, "")
			if len(r.Coordinates) != tc.want {
				t.Fatalf("expected %d points, got %d", tc.want, len(r.Coordinates))
			}
		})
	}
}

func TestRouteSynthesizer_ZeroDistance(t *testing.T) {
	r := usecases.NewRouteSynthesizer(seeded(3)).Synthesize(nuenen, nuenen, "")
	if r.Distance != 0 || r.Duration != 0 {
		t.Fatalf("expected zero distance and duration, got %f / %f", r.Distance, r.Duration)
	}
}

func TestRouteSynthesizer_Deterministic(t *testing.T) {
	a := usecases.NewRouteSynthesizer(seeded(42)).Synthesize(eindhoven, nuenen, "")
	b := usecases.NewRouteSynthesizer(seeded(42)).Synthesize(eindhoven, nuenen, "")

	if a.Distance != b.Distance || len(a.Coordinates) != len(b.Coordinates) {
		t.Fatal("same seed produced different routes")
	}
	for i := range a.Coordinates {
		if a.Coordinates[i] != b.Coordinates[i] {
			t.Fatalf("point %d differs: %v vs %v", i, a.Coordinates[i], b.Coordinates[i])
		}
	}
}

func TestRouteSynthesizer_JitterBounded(t *testing.T) {
	s := usecases.NewRouteSynthesizer(seeded(9))
	r := s.Synthesize(eindhoven, nuenen, "")
	n := len(r.Coordinates)

	for i := 1; i < n-1; i++ {
		f := float64(i) / float64(n-1)
		lat := eindhoven.Latitude + (nuenen.Latitude-eindhoven.Latitude)*f
		lon := eindhoven.Longitude + (nuenen.Longitude-eindhoven.Longitude)*f
		p := r.Coordinates[i]
		if d := p.Latitude - lat; d > 0.0005 || d < -0.0005 {
			t.Fatalf("point %d latitude jitter %f exceeds 0.0005", i, d)
		}
		if d := p.Longitude - lon; d > 0.0005 || d < -0.0005 {
			t.Fatalf("point %d longitude jitter %f exceeds 0.0005", i, d)
		}
	}

	straight := usecases.NewRouteSynthesizer(seeded(9), usecases.WithJitter(0)).Synthesize(eindhoven, nuenen, "")
	mid := straight.Coordinates[n/2]
	f := float64(n/2) / float64(n-1)
	if mid.Latitude != eindhoven.Latitude+(nuenen.Latitude-eindhoven.Latitude)*f {
		t.Error("expected a straight line without jitter")
	}
}

func TestRouteSynthesizer_Modes(t *testing.T) {
	walk := usecases.NewRouteSynthesizer(seeded(5)).Synthesize(eindhoven, nuenen, domain.TravelModeWalking)
	drive := usecases.NewRouteSynthesizer(seeded(5)).Synthesize(eindhoven, nuenen, domain.TravelModeDriving)

	if walk.Distance != drive.Distance {
		t.Fatal("mode must not change the distance for the same seed")
	}
	if walk.Duration <= drive.Duration {
		t.Errorf("walking (%f s) should take longer than driving (%f s)", walk.Duration, drive.Duration)
	}
	if walk.Mode != domain.TravelModeWalking || drive.Mode != domain.TravelModeDriving {
		t.Errorf("modes not recorded: %q, %q", walk.Mode, drive.Mode)
	}

	def := usecases.NewRouteSynthesizer(seeded(5), usecases.WithDefaultMode(domain.TravelModeDriving)).
		Synthesize(eindhoven, nuenen, "")
	if def.Mode != domain.TravelModeDriving {
		t.Errorf("expected default mode driving, got %q", def.Mode)
	}
}

func TestFormatDistance(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0, "0m"},
		{400, "400m"},
		{399.6, "400m"},
		{1000, "1.0km"},
		{1234, "1.2km"},
		{15750, "15.8km"},
	}
	for _, tc := range cases {
		if got := usecases.FormatDistance(tc.in); got != tc.want {
			t.Errorf("FormatDistance(%v) = %q; want %q", tc.in, got, tc.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0, "0 min"},
		{59, "0 min"},
		{60, "1 min"},
		{3599, "59 min"},
		{3600, "1h 0min"},
		{3700, "1h 1min"},
		{7380, "2h 3min"},
	}
	for _, tc := range cases {
		if got := usecases.FormatDuration(tc.in); got != tc.want {
			t.Errorf("FormatDuration(%v) = %q; want %q", tc.in, got, tc.want)
		}
	}
}
