package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/tourguide/internal/core/domain"
	"github.com/samirrijal/tourguide/internal/core/usecases"
)

func coordMap(c domain.Coordinate) map[string]any {
	return map[string]any{"latitude": c.Latitude, "longitude": c.Longitude}
}

func placeMap(p domain.Place) map[string]any {
	return map[string]any{
		"id":          p.ID,
		"name":        p.Name,
		"description": p.Description,
		"category":    p.Category,
		"address":     p.Address,
		"image_url":   p.ImageURL,
		"facts":       p.Facts,
		"coordinates": coordMap(p.Coordinates),
		"radius":      p.EffectiveRadius(),
	}
}

func routeMap(r *domain.RouteInfo) map[string]any {
	coords := make([]map[string]any, len(r.Coordinates))
	for i, c := range r.Coordinates {
		coords[i] = coordMap(c)
	}
	return map[string]any{
		"distance":      r.Distance,
		"duration":      r.Duration,
		"distance_text": usecases.FormatDistance(r.Distance),
		"duration_text": usecases.FormatDuration(r.Duration),
		"mode":          string(r.Mode),
		"source":        r.Source,
		"polyline":      r.Polyline(),
		"coordinates":   coords,
	}
}

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	coordinateType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Coordinate",
		Fields: graphql.Fields{
			"latitude":  &graphql.Field{Type: graphql.Float},
			"longitude": &graphql.Field{Type: graphql.Float},
		},
	})

	placeType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Place",
		Fields: graphql.Fields{
			"id":          &graphql.Field{Type: graphql.String},
			"name":        &graphql.Field{Type: graphql.String},
			"description": &graphql.Field{Type: graphql.String},
			"category":    &graphql.Field{Type: graphql.String},
			"address":     &graphql.Field{Type: graphql.String},
			"image_url":   &graphql.Field{Type: graphql.String},
			"facts":       &graphql.Field{Type: graphql.NewList(graphql.String)},
			"coordinates": &graphql.Field{Type: coordinateType},
			"radius":      &graphql.Field{Type: graphql.Float, Description: "Detection radius in meters"},
			"distance":    &graphql.Field{Type: graphql.Float, Description: "Meters from the query point, nearby queries only"},
		},
	})

	routeType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Route",
		Fields: graphql.Fields{
			"distance":      &graphql.Field{Type: graphql.Float},
			"duration":      &graphql.Field{Type: graphql.Float},
			"distance_text": &graphql.Field{Type: graphql.String},
			"duration_text": &graphql.Field{Type: graphql.String},
			"mode":          &graphql.Field{Type: graphql.String},
			"source":        &graphql.Field{Type: graphql.String},
			"polyline":      &graphql.Field{Type: graphql.String},
			"coordinates":   &graphql.Field{Type: graphql.NewList(coordinateType)},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"places": &graphql.Field{
				Type:        graphql.NewList(placeType),
				Description: "List all registered places",
				Resolve: func(p graphql.ResolveParams) (any, error) {
					places, err := deps.Places.List(p.Context)
					if err != nil {
						return nil, err
					}
					out := make([]map[string]any, len(places))
					for i, pl := range places {
						out[i] = placeMap(pl)
					}
					return out, nil
				},
			},
			"place": &graphql.Field{
				Type:        placeType,
				Description: "Get a place by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					place, err := deps.Places.GetByID(p.Context, p.Args["id"].(string))
					if err != nil {
						return nil, err
					}
					return placeMap(*place), nil
				},
			},
			"nearbyPlaces": &graphql.Field{
				Type:        graphql.NewList(placeType),
				Description: "Places near a location, closest first",
				Args: graphql.FieldConfigArgument{
					"lat":      &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lon":      &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"radius":   &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: 0.0},
					"limit":    &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
					"category": &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					at := domain.Coordinate{Latitude: p.Args["lat"].(float64), Longitude: p.Args["lon"].(float64)}
					radius := p.Args["radius"].(float64)

					var (
						nearby []domain.NearbyPlace
						err    error
					)
					if category := p.Args["category"].(string); category != "" {
						nearby, err = deps.Places.FindByCategory(p.Context, at, category, radius)
					} else {
						nearby, err = deps.Places.FindNearby(p.Context, at, radius, p.Args["limit"].(int))
					}
					if err != nil {
						return nil, err
					}
					out := make([]map[string]any, len(nearby))
					for i, n := range nearby {
						m := placeMap(n.Place)
						m["distance"] = n.Distance
						out[i] = m
					}
					return out, nil
				},
			},
			"route": &graphql.Field{
				Type:        routeType,
				Description: "Route to a coordinate or to a place",
				Args: graphql.FieldConfigArgument{
					"fromLat": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"fromLon": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"toLat":   &graphql.ArgumentConfig{Type: graphql.Float},
					"toLon":   &graphql.ArgumentConfig{Type: graphql.Float},
					"toPlace": &graphql.ArgumentConfig{Type: graphql.String},
					"mode":    &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					from := domain.Coordinate{Latitude: p.Args["fromLat"].(float64), Longitude: p.Args["fromLon"].(float64)}
					mode, err := domain.ParseTravelMode(p.Args["mode"].(string))
					if err != nil {
						return nil, err
					}

					var route *domain.RouteInfo
					if placeID, ok := p.Args["toPlace"].(string); ok && placeID != "" {
						route, _, err = deps.Routes.RouteToPlace(p.Context, from, placeID, mode)
					} else {
						lat, okLat := p.Args["toLat"].(float64)
						lon, okLon := p.Args["toLon"].(float64)
						if !okLat || !okLon {
							return nil, errors.New("either toPlace or toLat and toLon are required")
						}
						route, err = deps.Routes.GetRoute(p.Context, from, domain.Coordinate{Latitude: lat, Longitude: lon}, mode)
					}
					if err != nil {
						return nil, err
					}
					return routeMap(route), nil
				},
			},
			"distance": &graphql.Field{
				Type:        graphql.Float,
				Description: "Great-circle distance in meters",
				Args: graphql.FieldConfigArgument{
					"fromLat": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"fromLon": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"toLat":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"toLon":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					from := domain.Coordinate{Latitude: p.Args["fromLat"].(float64), Longitude: p.Args["fromLon"].(float64)}
					to := domain.Coordinate{Latitude: p.Args["toLat"].(float64), Longitude: p.Args["toLon"].(float64)}
					if err := from.Validate(); err != nil {
						return nil, err
					}
					if err := to.Validate(); err != nil {
						return nil, err
					}
					return from.DistanceTo(to), nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// Programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string         `json:"query"`
		OperationName string         `json:"operationName"`
		Variables     map[string]any `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		c.Set(fiber.HeaderCacheControl, "private, max-age=0")
		return c.JSON(result)
	}
}
