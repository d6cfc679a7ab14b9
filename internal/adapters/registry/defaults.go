package registry

import "github.com/samirrijal/tourguide/internal/core/domain"

// defaultPlaces is the built-in tour around Eindhoven.
func defaultPlaces() []domain.Place {
	return []domain.Place{
		{
			ID:          "1",
			Name:        "Nuenen",
			Description: "The village where Vincent van Gogh lived and worked from 1883 to 1885. Today, it features many references to the famous painter.",
			Category:    "historical",
			Address:     "Nuenen, Netherlands",
			Coordinates: domain.Coordinate{Latitude: 51.4583, Longitude: 5.5583},
			Radius:      2000,
			Facts: []string{
				"Vincent van Gogh created over 500 paintings, drawings, and sketches while living in Nuenen.",
				"Van Gogh painted The Potato Eaters while residing in Nuenen.",
			},
		},
		{
			ID:          "2",
			Name:        "Eindhoven - Philips Museum",
			Description: "A museum dedicated to the history of Philips and its technological innovations, located in the first factory of Philips in the center of Eindhoven.",
			Category:    "museum",
			Address:     "Emmasingel 31, 5611 AZ Eindhoven, Netherlands",
			Coordinates: domain.Coordinate{Latitude: 51.4382, Longitude: 5.4784},
			Radius:      500,
			Facts: []string{
				"Philips was founded in Eindhoven in 1891 by Gerard Philips.",
				"Light bulb production earned Eindhoven the name City of Light.",
			},
		},
		{
			ID:          "3",
			Name:        "Helmond Castle",
			Description: "One of the largest moated castles in the Netherlands, dating back to the 14th century. Now houses the Museum Helmond.",
			Category:    "historical",
			Address:     "Kasteelplein 1, 5701 PP Helmond, Netherlands",
			Coordinates: domain.Coordinate{Latitude: 51.4826, Longitude: 5.6552},
			Radius:      1000,
			Facts: []string{
				"The castle moat is over 700 years old.",
			},
		},
	}
}
