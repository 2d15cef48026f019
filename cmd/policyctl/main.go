// Command policyctl is the controller's entry point: it wires the
// state store, actor host, metric subscription manager, policy
// engine, global controller supervisor and REST surface together,
// reloads persisted state, and serves until a shutdown signal
// arrives, mirroring cmd/marble/main.go's construct-then-serve shape.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"

	"github.com/sdslabs/policyctl/internal/actorhost"
	"github.com/sdslabs/policyctl/internal/bandwidth"
	"github.com/sdslabs/policyctl/internal/config"
	"github.com/sdslabs/policyctl/internal/dsl"
	"github.com/sdslabs/policyctl/internal/enforcement"
	"github.com/sdslabs/policyctl/internal/globalcontroller"
	"github.com/sdslabs/policyctl/internal/metrics"
	"github.com/sdslabs/policyctl/internal/metricsub"
	"github.com/sdslabs/policyctl/internal/policyengine"
	"github.com/sdslabs/policyctl/internal/restapi"
	"github.com/sdslabs/policyctl/internal/store"
	"github.com/sdslabs/policyctl/internal/store/redisstore"
	"github.com/sdslabs/policyctl/internal/tenantdir"
	"github.com/sdslabs/policyctl/pkg/logger"
)

func main() {
	cfg, err := config.Load(os.Getenv("POLICYCTL_ENV_FILE"))
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Store.RedisAddr,
		Password: cfg.Store.RedisPassword,
		DB:       cfg.Store.RedisDB,
	})
	st := store.StateStore(redisstore.New(rdb))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := st.Ping(ctx); err != nil {
		log.WithField("error", err).Fatal("state store unreachable at startup")
	}

	telemetry := metrics.New()

	host := actorhost.New(cfg.ActorStopDeadline, log)
	source := metricsub.NewRedisSource(rdb, log)
	metricSub := metricsub.New(host, source, log)

	parser := dsl.SimpleParser{}
	engine := policyengine.New(st, host, parser, metricSub, log)
	engine.Telemetry = telemetry

	notifier := enforcement.NewLimiterNotifier()
	constants := bandwidth.Constants{
		DiskCapMbps:  cfg.Bandwidth.DiskCapMbps,
		ProxyCapMbps: cfg.Bandwidth.ProxyCapMbps,
		NumProxies:   cfg.Bandwidth.NumProxies,
	}
	factory := globalcontroller.DefaultFactory(st, notifier, constants, telemetry, log)
	controllers := globalcontroller.New(st, host, metricSub, factory, 10*time.Second, log)

	tenantDir := tenantdir.New(nil)

	seedState(ctx, cfg, st, log)

	if err := engine.ReloadOnStart(ctx); err != nil {
		log.WithField("error", err).Error("reloading persisted policies")
	}
	if err := controllers.ReloadOnStart(ctx); err != nil {
		log.WithField("error", err).Error("reloading persisted controllers")
	}

	validator := buildValidator(cfg, log)
	srv := &restapi.Server{
		Store:       st,
		Engine:      engine,
		Controllers: controllers,
		Host:        host,
		Metrics:     metricSub,
		TenantDir:   tenantDir,
		Config:      cfg,
		Validator:   validator,
		Log:         log,
		Telemetry:   telemetry,
	}
	router := restapi.NewRouter(srv)

	httpSrv := &http.Server{
		Addr:              cfg.REST.BindAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.WithField("addr", cfg.REST.BindAddr).Info("policyctl listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithField("error", err).Fatal("http server error")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.WithField("error", err).Error("http shutdown error")
	}
	host.StopAll(shutdownCtx)
	log.Info("stopped")
}

// seedState applies the optional controllers/object-types seed files
// (§ ambient config) without ever overwriting an existing record.
func seedState(ctx context.Context, cfg *config.Config, st store.StateStore, log *logger.Logger) {
	controllerSeed, err := config.LoadControllerSeed(cfg.ControllerSeedPath)
	if err != nil {
		log.WithField("error", err).Warn("skipping controller seed")
	}
	existing, err := st.ListControllers(ctx)
	if err != nil {
		log.WithField("error", err).Warn("skipping controller seed")
		controllerSeed = nil
	}
seedLoop:
	for _, entry := range controllerSeed {
		c := entry.ToDomain()
		for _, ex := range existing {
			if ex.DSLFilter == c.DSLFilter && ex.MethodType == c.MethodType {
				continue seedLoop
			}
		}
		id, err := st.Next(ctx, store.CounterController)
		if err != nil {
			log.WithField("error", err).Error("allocating seeded controller id")
			continue
		}
		c.ID = id
		if err := st.PutController(ctx, c); err != nil {
			log.WithField("error", err).Error("persisting seeded controller")
		}
	}

	objectTypeSeed, err := config.LoadObjectTypeSeed(cfg.ObjectTypeSeedPath)
	if err != nil {
		log.WithField("error", err).Warn("skipping object type seed")
	}
	for _, entry := range objectTypeSeed {
		if _, err := st.GetObjectType(ctx, entry.Name); err == nil {
			continue
		}
		if err := st.ReplaceObjectType(ctx, entry.Name, entry.Extensions); err != nil {
			log.WithField("error", err).Error("persisting seeded object type")
		}
	}
}

// buildValidator constructs the JWT validator from a configured public
// key path; with none configured every non-public request is rejected
// unless auth is explicitly disabled, matching authMiddleware's
// default-deny posture.
func buildValidator(cfg *config.Config, log *logger.Logger) restapi.Validator {
	if cfg.REST.JWTPublicKeyPath == "" {
		if !cfg.REST.AuthDisabled {
			log.Warn("no JWT public key configured; all authenticated routes will reject")
		}
		return nil
	}
	raw, err := os.ReadFile(cfg.REST.JWTPublicKeyPath)
	if err != nil {
		log.WithField("error", err).Fatal("reading JWT public key")
	}
	key, err := jwt.ParseRSAPublicKeyFromPEM(raw)
	if err != nil {
		log.WithField("error", err).Fatal("parsing JWT public key")
	}
	return &restapi.KeyfuncValidator{
		Keyfunc: func(token *jwt.Token) (interface{}, error) {
			return key, nil
		},
	}
}
