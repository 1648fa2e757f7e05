package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Temutjin2k/trip-dispatch/config"
	"github.com/Temutjin2k/trip-dispatch/internal/adapter/http/handler"
	"github.com/Temutjin2k/trip-dispatch/internal/adapter/http/middleware"
	"github.com/Temutjin2k/trip-dispatch/pkg/logger"
	wrap "github.com/Temutjin2k/trip-dispatch/pkg/logger/wrapper"
	"github.com/Temutjin2k/trip-dispatch/pkg/wshub"
)

const serverIPAddress = "%s:%s"

const serviceName = "dispatch"

type API struct {
	mux    *http.Server
	routes *handlers
	m      *middleware.Middleware

	addr string
	cfg  config.Config
	log  logger.Logger
}

type handlers struct {
	trip   *handler.Trip
	driver *handler.Driver
	demand *handler.Demand
	health *handler.Health
}

func New(
	cfg config.Config,
	tripService handler.TripService,
	assignmentService handler.AssignmentService,
	matchService handler.MatchService,
	settlementService handler.SettlementService,
	driverService handler.DriverService,
	demandService handler.DemandService,
	verifier middleware.TokenVerifier,
	hub *wshub.ConnectionHub,
	log logger.Logger,
) (*API, error) {
	if verifier == nil {
		return nil, errors.New("token verifier is required")
	}

	routes := &handlers{
		trip:   handler.NewTrip(tripService, assignmentService, matchService, settlementService, log),
		driver: handler.NewDriver(driverService, hub, log),
		demand: handler.NewDemand(demandService, log),
		health: handler.NewHealth(serviceName, log),
	}

	mid := middleware.NewMiddleware(verifier, log)
	addr := fmt.Sprintf(serverIPAddress, "0.0.0.0", cfg.Server.Port)

	mux := http.NewServeMux()
	setupRoutes(mux, routes, mid)

	api := &API{
		routes: routes,
		m:      mid,
		addr:   addr,
		cfg:    cfg,
		log:    log,
	}

	api.mux = &http.Server{
		Addr:    addr,
		Handler: api.withMiddleware(mux),
	}

	return api, nil
}

func (a *API) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	ctx = wrap.WithAction(ctx, "http_server_stop")

	a.log.Debug(ctx, "shutting down HTTP server...", "address", a.addr)
	if err := a.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("error shutting down server: %w", err)
	}
	a.log.Debug(ctx, "shutting down HTTP server completed")

	return nil
}

func (a *API) Run(ctx context.Context, errCh chan<- error) {
	go func() {
		ctx = wrap.WithAction(ctx, "http_server_start")
		a.log.Info(ctx, "started http server", "address", a.addr)
		if err := a.mux.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("failed to start HTTP server: %w", err)
			return
		}
	}()
}

// withMiddleware applies middlewares to the mux
func (a *API) withMiddleware(mux http.Handler) http.Handler {
	return a.m.Recover(a.m.RequestID(a.m.Metrics(serviceName)(a.m.Logging(a.m.Auth(mux)))))
}
