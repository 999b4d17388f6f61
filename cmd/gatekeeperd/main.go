// Command gatekeeperd runs the repository-gatekeeping policy engine: the
// change-request store, tier classifier, requirement resolver, signature
// aggregator, economic node registry, veto engine, policy evaluator, status
// publisher, audit log, and Merkle anchorer described in spec.md §2, wired
// into one long-running process.
//
// Forge webhook delivery, REST surface, and OAuth/app identity mechanics are
// out of scope (spec.md §1); gatekeeperd exposes only the read-only status
// and metrics surface (C9), the token-protected /admin endpoints for tier
// override and emergency-mode activation, and the background anchoring
// loop (C11). A real
// deployment fronts it with the forge-integration layer that calls
// gatekeeper.Service's methods directly.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"gorm.io/gorm"

	"github.com/forgepolicy/gatekeeper/aggregator"
	"github.com/forgepolicy/gatekeeper/anchor"
	"github.com/forgepolicy/gatekeeper/audit"
	"github.com/forgepolicy/gatekeeper/authz"
	"github.com/forgepolicy/gatekeeper/changerequest"
	"github.com/forgepolicy/gatekeeper/classifier"
	"github.com/forgepolicy/gatekeeper/config"
	"github.com/forgepolicy/gatekeeper/econnode"
	"github.com/forgepolicy/gatekeeper/enforcement"
	"github.com/forgepolicy/gatekeeper/evaluator"
	"github.com/forgepolicy/gatekeeper/gatekeeper"
	"github.com/forgepolicy/gatekeeper/observability/logging"
	telemetry "github.com/forgepolicy/gatekeeper/observability/otel"
	"github.com/forgepolicy/gatekeeper/publisher"
	"github.com/forgepolicy/gatekeeper/store"
	"github.com/forgepolicy/gatekeeper/timestamp"
	"github.com/forgepolicy/gatekeeper/veto"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "config.yaml", "path to gatekeeperd config")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("GATEKEEPER_ENV"))
	logger := logging.Setup("gatekeeperd", env)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	otlpEndpoint := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	if otlpEndpoint == "" {
		otlpEndpoint = cfg.Observability.OTLPEndpoint
	}
	insecure := cfg.Observability.OTLPInsecure
	if value := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_INSECURE")); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			insecure = parsed
		}
	}
	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		ServerID:    cfg.ServerID,
		Environment: cfg.Observability.Environment,
		Endpoint:    otlpEndpoint,
		Insecure:    insecure,
		Headers:     cfg.Observability.OTLPHeaders,
		Metrics:     cfg.Observability.MetricsEnabled,
		Traces:      cfg.Observability.TracesEnabled,
	})
	if err != nil {
		log.Fatalf("init telemetry: %v", err)
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	now := time.Now().UTC()

	crDB, err := store.NewLevelDB(cfg.Storage.ChangeRequestDBPath)
	if err != nil {
		log.Fatalf("open change request store: %v", err)
	}
	defer crDB.Close()
	maintainers := changerequest.NewMaintainerRegistry(crDB)
	crStore := changerequest.New(crDB, maintainers)

	econDB, err := gorm.Open(sqlite.Open(cfg.Storage.EconNodeDSN), &gorm.Config{})
	if err != nil {
		log.Fatalf("open economic node database: %v", err)
	}
	econRegistry, err := econnode.Open(econDB)
	if err != nil {
		log.Fatalf("open economic node registry: %v", err)
	}

	vetoDB, err := store.NewLevelDB(cfg.Storage.VetoDBPath)
	if err != nil {
		log.Fatalf("open veto signal store: %v", err)
	}
	defer vetoDB.Close()
	vetoEngine := veto.New(vetoDB, gatekeeper.NewEconNodeLookup(econRegistry))

	auditLog, err := audit.Open(cfg.Audit.LogPath, cfg.ServerID, now)
	if err != nil {
		log.Fatalf("open audit log: %v", err)
	}
	defer auditLog.Close()

	tsService := timestamp.NewHTTPService(cfg.Timestamping.URL, cfg.Timestamping.RateLimitPerSec, cfg.Timestamping.Burst)
	anchorer, err := anchor.Open(cfg.Storage.AnchorDBPath, cfg.ServerID, auditLog, tsService)
	if err != nil {
		log.Fatalf("open merkle anchorer: %v", err)
	}
	defer anchorer.Close()

	tracer := otel.Tracer("gatekeeper")
	eval := evaluator.New(auditLog, tracer)

	sigAggregator := aggregator.New(maintainers, 0)

	memStore := publisher.NewMemStore()
	metrics := publisher.ModuleMetrics()

	var enforcementLogger *enforcement.Logger
	if cfg.Enforcement.Enabled {
		enforcementLogger = enforcement.New(cfg.DryRun, true, cfg.Enforcement.LogPath, cfg.Enforcement.MaxSizeMB, cfg.Enforcement.MaxBackups, cfg.Enforcement.MaxAgeDays, logger)
		defer enforcementLogger.Close()
	}

	verifier := authz.NewVerifier([]byte(cfg.Admin.JWTSecret))

	svc := gatekeeper.New(gatekeeper.Config{
		ChangeRequests: crStore,
		Rules:          classifier.DefaultRuleSet(),
		Aggregator:     sigAggregator,
		EconNodes:      econRegistry,
		Veto:           vetoEngine,
		Evaluator:      eval,
		Publisher:      memStore,
		Metrics:        metrics,
		Enforcement:    enforcementLogger,
		Logger:         logger,
		DryRun:         cfg.DryRun,
	})

	router := chi.NewRouter()
	router.Mount("/admin", adminRouter(svc, verifier))
	router.Mount("/", publisher.New(publisher.Config{Store: memStore, Metrics: metrics}).Handler())

	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	anchorCtx, cancelAnchor := context.WithCancel(rootCtx)
	defer cancelAnchor()
	go anchorer.Run(anchorCtx, cfg.Timestamping.AnchorInterval, anchor.MonthWindow, func(a anchor.MerkleAnchor, err error) {
		if err != nil {
			logger.Warn("merkle anchor window failed", "error", err)
			return
		}
		logger.Info("merkle anchor persisted", "window", a.WindowLabel, "entries", a.EntryCount, "root", a.MerkleRoot)
		metrics.SetAnchorLagSeconds(time.Since(a.CreatedAt).Seconds())
	})

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("gatekeeperd listening", "addr", cfg.Listen)
		serverErr <- httpServer.ListenAndServe()
	}()

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("graceful http shutdown failed", "error", err)
		}
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("serve http: %v", err)
		}
	}
}
