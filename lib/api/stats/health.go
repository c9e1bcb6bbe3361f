package stats

import (
	"time"

	"github.com/ether/collabpads-go/lib/api/constants"
	"github.com/ether/collabpads-go/lib/db"
	"github.com/ether/collabpads-go/lib/ws"
	"github.com/gofiber/fiber/v2"
)

type DBChecker struct {
	db db.DataStore
}

func (d DBChecker) Name() string {
	return "database:connection"
}

func (d DBChecker) Check() Check {
	err := d.db.Ping()

	if err != nil {
		return Check{
			Status:    StatusFail,
			Component: "datastore",
			Output:    err.Error(),
		}
	}

	return Check{
		Status:     StatusPass,
		Component:  "datastore",
		Observed:   "ok",
		ObservedAt: time.Now().UTC().Format(time.RFC3339),
	}
}

// HubChecker reports how many sockets the hub currently holds.
type HubChecker struct {
	registry ws.ConnectionRegistry
}

func (h HubChecker) Name() string {
	return "hub:connections"
}

func (h HubChecker) Check() Check {
	count := h.registry.Count()
	if count < 0 {
		return Check{
			Status: StatusFail,
			Output: "invalid connection count",
		}
	}

	return Check{
		Status:     StatusPass,
		Component:  "component",
		Observed:   count,
		ObservedAt: time.Now().UTC().Format(time.RFC3339),
	}
}

// Handler godoc
// @Summary Health check endpoint
// @Description Returns the health status of the service (RFC Health Check Draft)
// @Tags Health
// @Produce json
// @Success 200 {object} HealthResponse "Service is healthy"
// @Failure 503 {object} HealthResponse "Service is unhealthy"
// @Router /health [get]
func Handler(
	version string,
	releaseID string,
	serviceID string,
	checkers []Checker,
) fiber.Handler {
	return func(c *fiber.Ctx) error {
		resp := HealthResponse{
			Status:    StatusPass,
			Version:   version,
			ReleaseID: releaseID,
			ServiceID: serviceID,
			Checks:    map[string][]Check{},
		}

		httpStatus := fiber.StatusOK

		for _, checker := range checkers {
			check := checker.Check()
			resp.Checks[checker.Name()] = []Check{check}

			switch check.Status {
			case StatusFail:
				resp.Status = StatusFail
				httpStatus = fiber.StatusServiceUnavailable
			case StatusWarn:
				if resp.Status != StatusFail {
					resp.Status = StatusWarn
				}
			}
		}

		if err := c.Status(httpStatus).JSON(resp); err != nil {
			return err
		}
		c.Set(fiber.HeaderContentType, constants.ContentTypeHealthJSON)
		return nil
	}
}
