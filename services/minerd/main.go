package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"contribmine/core/events"
	"contribmine/core/state"
	"contribmine/native/bank"
	"contribmine/native/community"
	nativecommon "contribmine/native/common"
	"contribmine/native/mining"
	"contribmine/native/staking"
	"contribmine/native/treasury"
	"contribmine/observability/logging"
	"contribmine/observability/metrics"
	telemetry "contribmine/observability/otel"
	"contribmine/services/minerd/clock"
	"contribmine/services/minerd/config"
	"contribmine/services/minerd/index"
	"contribmine/services/minerd/server"
	"contribmine/storage"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "services/minerd/config.yaml", "path to minerd configuration file (.yaml or .toml)")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("minerd: load config: %v", err)
	}
	env := strings.TrimSpace(os.Getenv("CONTRIBMINE_ENV"))
	if env == "" {
		env = cfg.Environment
	}
	logOpts := logging.Options{Level: logging.ParseLevel(cfg.Logging.Level)}
	if cfg.Logging.File != "" {
		logOpts.File = &logging.FileSink{
			Path:       cfg.Logging.File,
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAgeDays: cfg.Logging.MaxAgeDays,
			Compress:   cfg.Logging.Compress,
		}
	}
	logger := logging.SetupWithOptions("minerd", env, logOpts)

	endpoint := cfg.Telemetry.Endpoint
	if v := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")); v != "" {
		endpoint = v
	}
	insecure := cfg.Telemetry.Insecure
	if value := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_INSECURE")); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			insecure = parsed
		}
	}
	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: "minerd",
		Environment: env,
		Endpoint:    endpoint,
		Insecure:    insecure,
		Headers:     telemetry.ParseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS")),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		log.Fatalf("minerd: init telemetry: %v", err)
	}
	defer func() {
		_ = shutdownTelemetry(context.Background())
	}()

	if err := run(cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("minerd exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openStorage(cfg.Storage)
	if err != nil {
		return err
	}
	defer db.Close()

	indexDB, err := index.Open(cfg.Index.Driver, cfg.Index.DSN)
	if err != nil {
		return err
	}
	indexer := index.New(indexDB, logger)
	stream := server.NewBroadcaster()

	params, err := cfg.Params()
	if err != nil {
		return err
	}
	genesis, err := cfg.GenesisTime()
	if err != nil {
		return err
	}
	wall := clockwork.NewRealClock()
	blocks := clock.New(wall, genesis, cfg.Chain.BlockInterval.Duration)

	ledger := bank.NewLedger(db)
	vault := treasury.New(params.TreasuryAccount)
	for _, rate := range cfg.Treasury.Rates {
		num, _ := config.ParseAmount(rate.Numerator)
		den, _ := config.ParseAmount(rate.Denominator)
		if err := vault.SetRate(rate.Asset, num, den); err != nil {
			return fmt.Errorf("treasury rate %s: %w", rate.Asset, err)
		}
	}
	registry := community.NewRegistry()
	for _, c := range cfg.Communities {
		addr, _ := config.ParseAddress(c.Address)
		if err := registry.Register(addr, c.Name, c.Asset); err != nil {
			return fmt.Errorf("register community %s: %w", c.Name, err)
		}
	}
	pauses := nativecommon.NewPauses()
	stakes := staking.NewModule(db, ledger, params.StakingAccount, params.RewardAsset)

	engine, err := mining.NewEngine(state.NewStore(db), blocks,
		mining.WithTreasury(vault),
		mining.WithCommunities(registry),
		mining.WithStaking(stakes),
		mining.WithAssets(ledger),
		mining.WithPauses(pauses),
		mining.WithEmitter(events.MultiEmitter{stream, indexer}),
		mining.WithLogger(logger),
		mining.WithMetrics(metrics.Mining()),
	)
	if err != nil {
		return fmt.Errorf("mining engine: %w", err)
	}
	stakes.SetNotifier(engine)

	firstRate, err := cfg.FirstRewardPerBlock()
	if err != nil {
		return err
	}
	switch err := engine.Initialize(rootCtx, params, cfg.Chain.StartBlock, firstRate); {
	case err == nil:
		logger.Info("reward ledger initialized", "startBlock", cfg.Chain.StartBlock, "rewardPerBlock", firstRate.String())
		if err := allocate(ledger, cfg.Allocations); err != nil {
			return err
		}
	case errors.Is(err, mining.ErrAlreadyInitialized):
		logger.Info("reward ledger resumed")
	default:
		return fmt.Errorf("initialize ledger: %w", err)
	}

	quotaValue, err := cfg.QuotaValue()
	if err != nil {
		return err
	}
	srv, err := server.New(server.Config{
		ListenAddress: cfg.ListenAddress,
		Auth: server.AuthConfig{
			HMACSecret: cfg.Auth.HMACSecret,
			Issuer:     cfg.Auth.Issuer,
			Audience:   cfg.Auth.Audience,
			ClockSkew:  cfg.Auth.ClockSkew.Duration,
		},
		RateLimit: server.RateLimit{
			RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
			Burst:             cfg.RateLimit.Burst,
			TrustProxyHeaders: cfg.RateLimit.TrustProxyHeaders,
		},
		Quota: nativecommon.Quota{
			MaxRequestsPerPeriod: cfg.Quota.MaxContributionsPerPeriod,
			MaxValuePerPeriod:    quotaValue,
		},
	}, server.Deps{
		Engine:   engine,
		Staking:  stakes,
		Balances: ledger,
		History:  indexer,
		Stream:   stream,
		Pauses:   pauses,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	go func() {
		if err := indexer.Run(rootCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("indexer exited", "error", err)
			stop()
		}
	}()
	go advanceLoop(rootCtx, wall, engine, cfg.Chain.BlockInterval.Duration, logger)

	return srv.Run(rootCtx)
}

func openStorage(cfg config.StorageConfig) (storage.Database, error) {
	switch cfg.Backend {
	case "memory":
		return storage.NewMemDB(), nil
	case "bolt":
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o750); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
		db, err := storage.NewBoltDB(cfg.Path, nil)
		if err != nil {
			return nil, fmt.Errorf("open bolt state: %w", err)
		}
		return db, nil
	default:
		db, err := storage.NewLevelDB(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("open leveldb state: %w", err)
		}
		return db, nil
	}
}

func allocate(ledger *bank.Ledger, allocations []config.Allocation) error {
	for _, alloc := range allocations {
		account, _ := config.ParseAddress(alloc.Account)
		amount, _ := config.ParseAmount(alloc.Amount)
		if amount.Sign() == 0 {
			continue
		}
		if err := ledger.Mint(alloc.Asset, account, amount); err != nil {
			return fmt.Errorf("allocate %s %s: %w", alloc.Asset, alloc.Account, err)
		}
	}
	return nil
}

// advanceLoop materializes due periods so idle stretches roll over even when
// no request arrives.
func advanceLoop(ctx context.Context, wall clockwork.Clock, engine *mining.Engine, interval time.Duration, logger *slog.Logger) {
	ticker := wall.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if err := engine.Advance(ctx); err != nil && !errors.Is(err, nativecommon.ErrModulePaused) {
				logger.Warn("advance reward ledger", "error", err)
			}
		}
	}
}
