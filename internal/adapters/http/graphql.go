package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/transiteye/tracker/internal/core/domain"
)

// buildSchema creates the read-only GraphQL schema over the fleet service.
// Field names follow the JSON tags of the domain types.
func buildSchema(fleet FleetReader) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lng": &graphql.Field{Type: graphql.Float},
		},
	})

	vehicleType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Vehicle",
		Fields: graphql.Fields{
			"vehicle_id":              &graphql.Field{Type: graphql.Int},
			"label":                   &graphql.Field{Type: graphql.String},
			"location":                &graphql.Field{Type: geoPointType},
			"route_id":                &graphql.Field{Type: graphql.Int},
			"current_passenger_count": &graphql.Field{Type: graphql.Int},
			"total_passenger_count":   &graphql.Field{Type: graphql.Int},
			"last_seen_at":            &graphql.Field{Type: graphql.DateTime},
		},
	})

	tripType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Trip",
		Fields: graphql.Fields{
			"trip_id":    &graphql.Field{Type: graphql.Int},
			"vehicle_id": &graphql.Field{Type: graphql.Int},
			"start_time": &graphql.Field{Type: graphql.DateTime},
			"start":      &graphql.Field{Type: geoPointType},
			"status":     &graphql.Field{Type: graphql.String},
		},
	})

	requestType := graphql.NewObject(graphql.ObjectConfig{
		Name: "PassengerRequest",
		Fields: graphql.Fields{
			"request_id":   &graphql.Field{Type: graphql.Int},
			"passenger_id": &graphql.Field{Type: graphql.Int},
			"pickup":       &graphql.Field{Type: geoPointType},
			"dropoff":      &graphql.Field{Type: geoPointType},
			"vehicle_id":   &graphql.Field{Type: graphql.Int},
			"status":       &graphql.Field{Type: graphql.String},
			"created_at":   &graphql.Field{Type: graphql.DateTime},
		},
	})

	tripCountType := graphql.NewObject(graphql.ObjectConfig{
		Name: "VehicleTripCount",
		Fields: graphql.Fields{
			"vehicle_id": &graphql.Field{Type: graphql.Int},
			"trips":      &graphql.Field{Type: graphql.Int},
		},
	})

	hourType := graphql.NewObject(graphql.ObjectConfig{
		Name: "HourlyActivity",
		Fields: graphql.Fields{
			"hour":  &graphql.Field{Type: graphql.Int},
			"buses": &graphql.Field{Type: graphql.Int},
		},
	})

	dateArg := graphql.FieldConfigArgument{
		"date": &graphql.ArgumentConfig{Type: graphql.String, Description: "YYYY-MM-DD, default today"},
	}

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"vehicles": &graphql.Field{
				Type:        graphql.NewList(vehicleType),
				Description: "Every vehicle with its latest position",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return fleet.Vehicles(p.Context)
				},
			},
			"activeTrips": &graphql.Field{
				Type:        graphql.NewList(tripType),
				Description: "Trips without an end time",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return fleet.ActiveTrips(p.Context)
				},
			},
			"passengerRequests": &graphql.Field{
				Type:        graphql.NewList(requestType),
				Description: "Passenger requests by status",
				Args: graphql.FieldConfigArgument{
					"status": &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: string(domain.RequestPending)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					status, _ := p.Args["status"].(string)
					return fleet.Requests(p.Context, domain.RequestStatus(status))
				},
			},
			"tripsPerVehicle": &graphql.Field{
				Type:        graphql.NewList(tripCountType),
				Description: "Completed trips per vehicle on a date",
				Args:        dateArg,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					day, err := argDate(p)
					if err != nil {
						return nil, err
					}
					return fleet.TripsPerVehicle(p.Context, day)
				},
			},
			"activityByHour": &graphql.Field{
				Type:        graphql.NewList(hourType),
				Description: "Distinct vehicles starting a trip per hour on a date",
				Args:        dateArg,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					day, err := argDate(p)
					if err != nil {
						return nil, err
					}
					return fleet.ActivityByHour(p.Context, day)
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

func argDate(p graphql.ResolveParams) (time.Time, error) {
	raw, _ := p.Args["date"].(string)
	if raw == "" {
		return time.Now(), nil
	}
	return time.ParseInLocation(dateLayout, raw, time.Local)
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps.Fleet)
	if err != nil {
		// A schema build failure is a programming error.
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
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

		return c.JSON(result)
	}
}
