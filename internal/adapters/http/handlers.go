package http

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/tourguide/internal/adapters/valkey"
	"github.com/samirrijal/tourguide/internal/core/domain"
	"github.com/samirrijal/tourguide/internal/core/usecases"
	"github.com/samirrijal/tourguide/internal/workflows"
)

const maxNearbyRadius = 50000.0 // meters

// queryCoord reads a required coordinate pair from the query string.
func queryCoord(c *fiber.Ctx, latKey, lonKey string) (domain.Coordinate, error) {
	lat, err := queryFloat(c, latKey)
	if err != nil {
		return domain.Coordinate{}, err
	}
	lon, err := queryFloat(c, lonKey)
	if err != nil {
		return domain.Coordinate{}, err
	}
	coord := domain.Coordinate{Latitude: lat, Longitude: lon}
	return coord, coord.Validate()
}

func queryFloat(c *fiber.Ctx, key string) (float64, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number", key)
	}
	return v, nil
}

// ListPlacesHandler returns the registered places, paginated.
func ListPlacesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		places, err := deps.Places.List(c.UserContext())
		if err != nil {
			return errFromDomain(c, err)
		}

		offset, limit := pageParams(c)
		page, pg := paginate(places, offset, limit)
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: page, Pagination: pg})
	}
}

// GetPlaceHandler returns a single place by ID.
func GetPlaceHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		place, err := deps.Places.GetByID(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(place)
	}
}

// NearbyPlacesHandler returns places around a point, closest first.
// With category set, the default radius widens and no limit applies.
func NearbyPlacesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		at, err := queryCoord(c, "lat", "lon")
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		radius := c.QueryFloat("radius", 0)
		if radius < 0 || radius > maxNearbyRadius {
			return errBadRequest(c, fmt.Sprintf("radius must be between 0 and %.0f meters", maxNearbyRadius))
		}

		var places []domain.NearbyPlace
		if category := c.Query("category"); category != "" {
			places, err = deps.Places.FindByCategory(c.UserContext(), at, category, radius)
		} else {
			places, err = deps.Places.FindNearby(c.UserContext(), at, radius, c.QueryInt("limit", 0))
		}
		if err != nil {
			return errFromDomain(c, err)
		}
		if places == nil {
			places = []domain.NearbyPlace{}
		}
		return c.JSON(places)
	}
}

// routeResponse is a route plus human-readable estimates.
type routeResponse struct {
	domain.RouteInfo
	DistanceText string        `json:"distance_text"`
	DurationText string        `json:"duration_text"`
	Polyline     string        `json:"polyline,omitempty"`
	Place        *domain.Place `json:"place,omitempty"`
}

// GetRouteHandler returns a route from a point to either a coordinate or a place.
// format selects json (default), geojson or polyline output.
func GetRouteHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		from, err := queryCoord(c, "from_lat", "from_lon")
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		mode, err := domain.ParseTravelMode(c.Query("mode"))
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		format := c.Query("format", "json")
		switch format {
		case "json", "geojson", "polyline":
		default:
			return errBadRequest(c, "format must be json, geojson or polyline")
		}

		var (
			route *domain.RouteInfo
			place *domain.Place
		)
		if placeID := c.Query("to_place"); placeID != "" {
			route, place, err = deps.Routes.RouteToPlace(c.UserContext(), from, placeID, mode)
		} else {
			to, cerr := queryCoord(c, "to_lat", "to_lon")
			if cerr != nil {
				return errBadRequest(c, cerr.Error())
			}
			route, err = deps.Routes.GetRoute(c.UserContext(), from, to, mode)
		}
		if err != nil {
			return errFromDomain(c, err)
		}

		switch format {
		case "geojson":
			c.Set(fiber.HeaderContentType, "application/geo+json")
			return c.JSON(route.GeoJSON())
		case "polyline":
			return c.JSON(routeResponse{
				RouteInfo:    domain.RouteInfo{Distance: route.Distance, Duration: route.Duration, Mode: route.Mode, Source: route.Source},
				DistanceText: usecases.FormatDistance(route.Distance),
				DurationText: usecases.FormatDuration(route.Duration),
				Polyline:     route.Polyline(),
				Place:        place,
			})
		}
		return c.JSON(routeResponse{
			RouteInfo:    *route,
			DistanceText: usecases.FormatDistance(route.Distance),
			DurationText: usecases.FormatDuration(route.Duration),
			Place:        place,
		})
	}
}

// DistanceResponse is the straight-line distance between two points.
type DistanceResponse struct {
	Distance     float64           `json:"distance"` // meters
	DistanceText string            `json:"distance_text"`
	Duration     float64           `json:"duration"` // seconds at the mode's speed
	DurationText string            `json:"duration_text"`
	Mode         domain.TravelMode `json:"mode"`
}

// DistanceHandler returns the great-circle distance between two points.
func DistanceHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		from, err := queryCoord(c, "from_lat", "from_lon")
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		to, err := queryCoord(c, "to_lat", "to_lon")
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		mode, err := domain.ParseTravelMode(c.Query("mode"))
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		d := from.DistanceTo(to)
		secs := d / mode.Speed()
		return c.JSON(DistanceResponse{
			Distance:     d,
			DistanceText: usecases.FormatDistance(d),
			Duration:     secs,
			DurationText: usecases.FormatDuration(secs),
			Mode:         mode,
		})
	}
}

// FixRequest is a position fix pushed by a device.
type FixRequest struct {
	Latitude  *float64       `json:"latitude"`
	Longitude *float64       `json:"longitude"`
	Accuracy  float64        `json:"accuracy"`
	Timestamp *time.Time     `json:"timestamp"`
	Metadata  map[string]any `json:"metadata"`
}

// TrackingResponse describes a device's proximity state.
type TrackingResponse struct {
	Device        string            `json:"device"`
	Nearby        []string          `json:"nearby"`
	LastNarration *domain.Narration `json:"last_narration,omitempty"`
}

// PostFixHandler feeds a fix to the device's tracker and returns the
// transitions it caused.
func PostFixHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		device := c.Params("device")

		var req FixRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid JSON body")
		}
		if req.Latitude == nil || req.Longitude == nil {
			return errBadRequest(c, "latitude and longitude are required")
		}

		fix := domain.PositionFix{
			Coordinates: domain.Coordinate{Latitude: *req.Latitude, Longitude: *req.Longitude},
			Accuracy:    req.Accuracy,
			DeviceID:    device,
			Metadata:    req.Metadata,
		}
		if req.Timestamp != nil {
			fix.Timestamp = *req.Timestamp
		}

		events, err := deps.Tracking.Ingest(c.UserContext(), fix)
		if err != nil {
			return errFromDomain(c, err)
		}
		if events == nil {
			events = []domain.TransitionEvent{}
		}

		c.Set("Cache-Control", "no-store")
		return c.JSON(fiber.Map{
			"device":      device,
			"transitions": events,
			"nearby":      deps.Tracking.Nearby(device),
		})
	}
}

// GetTrackingHandler returns the places a device is inside and, when the
// cache is available, the last narration delivered to it.
func GetTrackingHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		device := c.Params("device")
		resp := TrackingResponse{Device: device, Nearby: deps.Tracking.Nearby(device)}

		if deps.Cache != nil {
			data, err := deps.Cache.Get(c.UserContext(), workflows.NarrationKey(device))
			switch {
			case err == nil:
				var n domain.Narration
				if jerr := json.Unmarshal(data, &n); jerr == nil {
					resp.LastNarration = &n
				}
			case !valkey.IsMiss(err):
				LoggerFromCtx(c.UserContext()).Warn("load last narration", "device_id", device, "error", err)
			}
		}

		c.Set("Cache-Control", "no-store")
		return c.JSON(resp)
	}
}

// DeleteTrackingHandler stops and resets a device's tracker.
func DeleteTrackingHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !deps.Tracking.Forget(c.Params("device")) {
			return errNotFound(c, "no tracker for device")
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
