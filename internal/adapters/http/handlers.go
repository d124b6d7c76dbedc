package http

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	natsadapter "github.com/transiteye/tracker/internal/adapters/nats"
	"github.com/transiteye/tracker/internal/core/domain"
)

// SourceHTTP labels positions posted to the REST endpoint.
const SourceHTTP = "http"

const dateLayout = "2006-01-02"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// PostPositionsHandler ingests a single reading or a batch.
func PostPositionsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		msgs, err := natsadapter.DecodePositionMessages(c.Body())
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		if len(msgs) == 0 {
			return errBadRequest(c, "no positions in request")
		}

		updates := make([]domain.PositionUpdate, len(msgs))
		for i, m := range msgs {
			if err := validate.Struct(m); err != nil {
				return errBadRequest(c, fmt.Sprintf("position %d: %s", i, describe(err)))
			}
			updates[i] = m.Update()
		}

		res, err := deps.Positions.Apply(c.UserContext(), SourceHTTP, updates)
		if err != nil {
			return fromError(c, err)
		}
		return c.Status(fiber.StatusAccepted).JSON(res)
	}
}

// TriggerHandler runs a scheduled task now and returns its result.
func TriggerHandler(deps *Dependencies, task string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		res, err := deps.Scheduler.Trigger(c.UserContext(), task)
		if err != nil {
			return fromError(c, err)
		}
		return c.JSON(fiber.Map{"task": task, "result": res})
	}
}

// ListVehiclesHandler returns every vehicle with its latest position.
func ListVehiclesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		vehicles, err := deps.Fleet.Vehicles(c.UserContext())
		if err != nil {
			return fromError(c, err)
		}
		return c.JSON(nonNil(vehicles))
	}
}

// ActiveTripsHandler returns trips without an end time.
func ActiveTripsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		trips, err := deps.Fleet.ActiveTrips(c.UserContext())
		if err != nil {
			return fromError(c, err)
		}
		return c.JSON(nonNil(trips))
	}
}

// PassengerTripsHandler lists requests by status (default pending).
func PassengerTripsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		status := domain.RequestStatus(c.Query("status", string(domain.RequestPending)))
		reqs, err := deps.Fleet.Requests(c.UserContext(), status)
		if err != nil {
			return fromError(c, err)
		}
		return c.JSON(nonNil(reqs))
	}
}

// TripsPerVehicleHandler counts completed trips per vehicle for ?date= (default today).
func TripsPerVehicleHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		day, err := queryDate(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		counts, err := deps.Fleet.TripsPerVehicle(c.UserContext(), day)
		if err != nil {
			return fromError(c, err)
		}
		return c.JSON(fiber.Map{"date": day.Format(dateLayout), "vehicles": nonNil(counts)})
	}
}

// ActivityByHourHandler returns distinct active vehicles per hour for ?date=.
func ActivityByHourHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		day, err := queryDate(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		hours, err := deps.Fleet.ActivityByHour(c.UserContext(), day)
		if err != nil {
			return fromError(c, err)
		}
		return c.JSON(fiber.Map{"date": day.Format(dateLayout), "hours": nonNil(hours)})
	}
}

func queryDate(c *fiber.Ctx) (time.Time, error) {
	raw := c.Query("date")
	if raw == "" {
		return time.Now(), nil
	}
	day, err := time.ParseInLocation(dateLayout, raw, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("date must be YYYY-MM-DD")
	}
	return day, nil
}

// describe flattens validator errors into "field rule" pairs.
func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, ", ")
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
