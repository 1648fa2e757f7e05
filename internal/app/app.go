package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Temutjin2k/trip-dispatch/config"
	"github.com/Temutjin2k/trip-dispatch/internal/adapter/http/server"
	rabbitadapter "github.com/Temutjin2k/trip-dispatch/internal/adapter/rabbit"
	"github.com/Temutjin2k/trip-dispatch/internal/adapter/redisgeo"
	repo "github.com/Temutjin2k/trip-dispatch/internal/adapter/postgres"
	"github.com/Temutjin2k/trip-dispatch/internal/adapter/trust"
	assignmentsvc "github.com/Temutjin2k/trip-dispatch/internal/service/assignment"
	demandsvc "github.com/Temutjin2k/trip-dispatch/internal/service/demand"
	driversvc "github.com/Temutjin2k/trip-dispatch/internal/service/driver"
	"github.com/Temutjin2k/trip-dispatch/internal/service/identity"
	matchingsvc "github.com/Temutjin2k/trip-dispatch/internal/service/matching"
	settlementsvc "github.com/Temutjin2k/trip-dispatch/internal/service/settlement"
	tripsvc "github.com/Temutjin2k/trip-dispatch/internal/service/trip"
	"github.com/Temutjin2k/trip-dispatch/pkg/logger"
	"github.com/Temutjin2k/trip-dispatch/pkg/postgres"
	"github.com/Temutjin2k/trip-dispatch/pkg/rabbit"
	"github.com/Temutjin2k/trip-dispatch/pkg/trm"
	"github.com/Temutjin2k/trip-dispatch/pkg/wshub"
)

// App wires every adapter and service of the dispatch process together.
type App struct {
	postgresDB *postgres.PostgreDB
	rabbitMQ   *rabbit.RabbitMQ
	geoIndex   *redisgeo.Index
	httpServer *server.API
	hub        *wshub.ConnectionHub

	cfg config.Config
	log logger.Logger
}

func NewApplication(ctx context.Context, cfg config.Config, log logger.Logger) (*App, error) {
	postgresDB, err := postgres.New(ctx, cfg.Database)
	if err != nil {
		log.Error(ctx, "Failed to setup database", err)
		return nil, err
	}

	rabbitMQ, err := rabbit.New(ctx, cfg.RabbitMQ.GetDSN(), log)
	if err != nil {
		log.Error(ctx, "Failed to setup rabbitmq", err)
		return nil, err
	}

	// The live location index is optional; matching falls back to the
	// last stored Postgres positions when Redis is down.
	geoIndex, err := redisgeo.New(cfg.Redis.GetAddr(), cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Warn(ctx, "Failed to setup redis location index, continuing without it", "err", err.Error())
		geoIndex = nil
	}

	// repositories
	tripRepo := repo.NewTripRepo(postgresDB.Pool)
	driverRepo := repo.NewDriverRepo(postgresDB.Pool)
	assignmentRepo := repo.NewAssignmentRepo(postgresDB.Pool)
	fareRuleRepo := repo.NewFareRuleRepo(postgresDB.Pool)
	settlementRepo := repo.NewSettlementRepo(postgresDB.Pool)
	companyRepo := repo.NewCompanyRepo(postgresDB.Pool)
	rejectionRepo := repo.NewRejectionRepo(postgresDB.Pool)

	txManager := trm.New(postgresDB.Pool)

	notifier := rabbitadapter.NewNotifier(rabbitMQ)
	hub := wshub.NewConnHub(log)

	var trustProvider matchingsvc.TrustProvider = trust.Nop{}
	if cfg.Trust.BaseURL != "" {
		trustProvider = trust.New(cfg.Trust.BaseURL, cfg.Trust.APIKey)
	}

	// A typed-nil *redisgeo.Index must not leak into the interfaces,
	// the services treat a nil interface as "no live index".
	var (
		matchIndex  matchingsvc.LocationIndex
		demandIndex demandsvc.LocationIndex
		driverIndex driversvc.LocationIndex
	)
	if geoIndex != nil {
		matchIndex = geoIndex
		demandIndex = geoIndex
		driverIndex = geoIndex
	}

	// services
	settlementService := settlementsvc.New(fareRuleRepo, settlementRepo, companyRepo, log)
	assignmentService := assignmentsvc.New(tripRepo, driverRepo, assignmentRepo, rejectionRepo, notifier, txManager, log)
	matchingService := matchingsvc.New(tripRepo, driverRepo, rejectionRepo, matchIndex, trustProvider, matchingsvc.Config{
		RadiusKm:  cfg.Matching.RadiusKm,
		Freshness: cfg.Matching.Freshness,
	}, log)
	demandService := demandsvc.New(tripRepo, driverRepo, demandIndex, cfg.Demand.Freshness, log)
	tripService := tripsvc.New(tripRepo, driverRepo, assignmentRepo, settlementService, notifier, hub, txManager, log)
	driverService := driversvc.New(driverRepo, assignmentRepo, driverIndex, txManager, log)

	verifier := identity.NewVerifier(cfg.Auth.JWTSecret, log)

	httpServer, err := server.New(
		cfg,
		tripService,
		assignmentService,
		matchingService,
		settlementService,
		driverService,
		demandService,
		verifier,
		hub,
		log,
	)
	if err != nil {
		log.Error(ctx, "Failed to setup http server", err)
		return nil, err
	}

	return &App{
		postgresDB: postgresDB,
		rabbitMQ:   rabbitMQ,
		geoIndex:   geoIndex,
		httpServer: httpServer,
		hub:        hub,
		cfg:        cfg,
		log:        log,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	a.httpServer.Run(ctx, errCh)
	defer func() {
		a.close(ctx)
		a.log.Info(ctx, "dispatch service closed")
	}()

	// Waiting signal
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	a.log.Info(ctx, "dispatch service started")

	select {
	case errRun := <-errCh:
		return errRun
	case sig := <-shutdownCh:
		a.log.Info(ctx, "shutting down application", "signal", sig.String())
		return nil
	}
}

func (a *App) close(ctx context.Context) {
	if a.httpServer != nil {
		if err := a.httpServer.Stop(ctx); err != nil {
			a.log.Warn(ctx, "Failed to gracefully close http server", "error", err.Error())
		}
	}

	if a.hub != nil {
		a.hub.Close()
	}

	if a.rabbitMQ != nil {
		if err := a.rabbitMQ.Close(ctx); err != nil {
			a.log.Warn(ctx, "Failed to close rabbitmq connection", "error", err.Error())
		}
	}

	if a.geoIndex != nil {
		if err := a.geoIndex.Close(); err != nil {
			a.log.Warn(ctx, "Failed to close redis client", "error", err.Error())
		}
	}

	if a.postgresDB != nil {
		a.postgresDB.Close()
	}
}
