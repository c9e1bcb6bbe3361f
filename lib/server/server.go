package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/ether/collabpads-go/lib"
	"github.com/ether/collabpads-go/lib/api"
	apierrors "github.com/ether/collabpads-go/lib/api/errors"
	"github.com/ether/collabpads-go/lib/author"
	"github.com/ether/collabpads-go/lib/db"
	settings2 "github.com/ether/collabpads-go/lib/settings"
	"github.com/ether/collabpads-go/lib/utils"
	"github.com/ether/collabpads-go/lib/ws"
	"github.com/ether/collabpads-go/lib/ws/ratelimiter"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

var errServerStopped = errors.New("server stopped")

// StoreOpener opens the data store of one server generation.
type StoreOpener func(settings settings2.Settings, logger *zap.SugaredLogger) (db.DataStore, error)

// generation is everything one Running period owns: the store, the hub and the HTTP app.
type generation struct {
	store   db.DataStore
	hub     *ws.Hub
	handler *ws.MessageHandler
	app     *fiber.App
	logger  *zap.SugaredLogger
}

// newGeneration opens the store, clears every connection left over from the previous run
// and wires the hub and the routes.
func newGeneration(settings *settings2.Settings, openStore StoreOpener, logger *zap.SugaredLogger) (*generation, error) {
	dataStore, err := openStore(*settings, logger)
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}
	if err := dataStore.ClearAllConnections(); err != nil {
		_ = dataStore.Close()
		return nil, fmt.Errorf("error clearing connections: %w", err)
	}

	hub := ws.NewHub(logger)
	authorManager := author.NewManager(dataStore)
	handler := ws.NewMessageHandler(dataStore, authorManager, hub, logger)

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          apierrors.Handler,
	})

	api.InitAPI(&lib.InitStore{
		C:                 app,
		RetrievedSettings: settings,
		Store:             dataStore,
		Hub:               hub,
		Limiter:           ratelimiter.New(settings.CommitRateLimiting),
		Logger:            logger,
		Collectors:        Collectors(),
	})

	return &generation{
		store:   dataStore,
		hub:     hub,
		handler: handler,
		app:     app,
		logger:  logger,
	}, nil
}

// serve runs the hub and the HTTP server on ln until ctx ends or either of them fails.
func (g *generation) serve(ctx context.Context, ln net.Listener) error {
	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()

	hubErr := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				hubErr <- fmt.Errorf("hub panic: %v", r)
			}
		}()
		hubErr <- g.hub.Run(hubCtx, g.handler)
	}()
	httpErr := make(chan error, 1)
	go func() { httpErr <- g.app.Listener(ln) }()

	var err error
	select {
	case <-ctx.Done():
		err = ctx.Err()
	case err = <-hubErr:
	case err = <-httpErr:
		if err == nil {
			err = errServerStopped
		}
	}

	stopHub()
	if shutdownErr := g.app.ShutdownWithTimeout(shutdownTimeout); shutdownErr != nil {
		g.logger.Warnw("Error shutting down http server", "error", shutdownErr)
	}
	_ = ln.Close()
	<-g.hub.Done()
	if closeErr := g.store.Close(); closeErr != nil {
		g.logger.Warnw("Error closing database", "error", closeErr)
	}
	return err
}

// RunOnce is a single Running period: it builds a generation, binds the port and serves
// until something fails.
func RunOnce(ctx context.Context, settings *settings2.Settings, openStore StoreOpener, logger *zap.SugaredLogger) error {
	g, err := newGeneration(settings, openStore, logger)
	if err != nil {
		return err
	}
	address := settings.ListenAddress()
	ln, err := net.Listen("tcp", address)
	if err != nil {
		_ = g.store.Close()
		return fmt.Errorf("error binding %s: %w", address, err)
	}
	logger.Infof("Listening on %s", ln.Addr())
	return g.serve(ctx, ln)
}

// InitServer runs the hub under the supervisor until ctx is cancelled.
func InitServer(ctx context.Context, setupLogger *zap.SugaredLogger, settings *settings2.Settings) error {
	settings.Version = settings2.GitVersion()
	setupLogger.Info("Starting CollabPads hub...")
	setupLogger.Infof("Version %s, log level %s, port %s", settings.Version, settings.LogLevel, settings.Port)

	supervisor := NewSupervisor(settings.RetryDelay(), setupLogger, func(ctx context.Context) error {
		return RunOnce(ctx, settings, utils.GetDB, setupLogger)
	})
	return supervisor.Run(ctx)
}
