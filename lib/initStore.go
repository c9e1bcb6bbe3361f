package lib

import (
	"github.com/ether/collabpads-go/lib/db"
	"github.com/ether/collabpads-go/lib/settings"
	"github.com/ether/collabpads-go/lib/ws"
	"github.com/ether/collabpads-go/lib/ws/ratelimiter"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// InitStore carries the components of one server generation to the route initialisers.
type InitStore struct {
	C                 *fiber.App
	RetrievedSettings *settings.Settings
	Store             db.DataStore
	Hub               *ws.Hub
	Limiter           *ratelimiter.RateLimiter
	Logger            *zap.SugaredLogger
	// Collectors are exported on /metrics next to the hub metrics.
	Collectors []prometheus.Collector
}
