// Package server exposes the contribution mining ledger over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	nativecommon "contribmine/native/common"
	"contribmine/native/mining"
	"contribmine/observability"
	"contribmine/services/minerd/index"
)

const moduleName = "minerd"

// StakingService is the staking collaborator exposed to holders.
type StakingService interface {
	Stake(ctx context.Context, holder common.Address, amount *big.Int) error
	Unstake(ctx context.Context, holder common.Address, amount *big.Int) error
	Totals(holder common.Address) (*big.Int, *big.Int, error)
}

// Balances reads account balances.
type Balances interface {
	BalanceOf(asset string, account common.Address) (*big.Int, error)
}

// History serves indexed contribution and settlement history.
type History interface {
	History(ctx context.Context, contributor string, limit int) ([]index.ContributionRow, []index.SettlementRow, error)
	ExportContributions(ctx context.Context, w io.Writer, from, to uint64) (int, error)
}

// Config defines HTTP server parameters.
type Config struct {
	ListenAddress string
	Auth          AuthConfig
	RateLimit     RateLimit
	Quota         nativecommon.Quota
}

// Deps bundles the collaborators served by the API. Only Engine is required.
type Deps struct {
	Engine   *mining.Engine
	Staking  StakingService
	Balances Balances
	History  History
	Stream   *Broadcaster
	Pauses   *nativecommon.Pauses
	Logger   *slog.Logger
}

// Server hosts the public, staking and admin endpoints of minerd.
type Server struct {
	cfg      Config
	engine   *mining.Engine
	staking  StakingService
	balances Balances
	history  History
	stream   *Broadcaster
	pauses   *nativecommon.Pauses
	logger   *slog.Logger
	auth     *Authenticator
	limiter  *RateLimiter
	quota    *contributionQuota
}

// New constructs a server.
func New(cfg Config, deps Deps) (*Server, error) {
	if deps.Engine == nil {
		return nil, fmt.Errorf("mining engine required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:      cfg,
		engine:   deps.Engine,
		staking:  deps.Staking,
		balances: deps.Balances,
		history:  deps.History,
		stream:   deps.Stream,
		pauses:   deps.Pauses,
		logger:   logger,
		auth:     NewAuthenticator(cfg.Auth, logger),
		limiter:  NewRateLimiter(cfg.RateLimit),
		quota:    newContributionQuota(cfg.Quota),
	}, nil
}

// Handler builds the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	if s.cfg.RateLimit.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.limiter.Middleware)
		r.Get("/params", s.instrument("params", s.handleParams))
		r.Get("/periods/current", s.instrument("period_current", s.handleCurrentPeriod))
		r.Get("/periods/{n}", s.instrument("period", s.handlePeriod))
		r.Get("/periods/{n}/contributors/{addr}", s.instrument("period_contributor", s.handlePeriodContributor))
		r.Get("/contributors/{addr}", s.instrument("contributor", s.handleContributor))
		r.Get("/contributors/{addr}/window", s.instrument("window", s.handleWindow))
		r.Get("/contributors/{addr}/claimable", s.instrument("claimable", s.handleClaimable))
		r.Get("/contributors/{addr}/estimate", s.instrument("estimate", s.handleEstimate))
		r.Get("/contributors/{addr}/apr", s.instrument("apr", s.handleAPR))
		r.Get("/contributors/{addr}/history", s.instrument("history", s.handleHistory))
		r.Get("/contributions/{id}", s.instrument("contribution", s.handleContribution))
		r.Get("/accounts/{addr}/balances/{asset}", s.instrument("balance", s.handleBalance))
		r.Get("/staking/{addr}", s.instrument("staking_position", s.handleStakePosition))
		r.Get("/events/ws", s.handleEventStream)

		r.Group(func(r chi.Router) {
			r.Use(s.auth.Require())
			r.Post("/contributions", s.instrument("contribute", s.handleContribute))
			r.Post("/claims", s.instrument("claim", s.handleClaim))
			r.Post("/staking/stake", s.instrument("stake", s.handleStake))
			r.Post("/staking/unstake", s.instrument("unstake", s.handleUnstake))
		})
	})

	r.Route("/admin", func(r chi.Router) {
		r.With(s.auth.Require(ScopeStaking)).Post("/stake-notifications", s.instrument("stake_notify", s.handleStakeNotifications))
		r.Group(func(r chi.Router) {
			r.Use(s.auth.Require(ScopeAdmin))
			r.Put("/params", s.instrument("params_update", s.handleUpdateParams))
			r.Post("/advance", s.instrument("advance", s.handleAdvance))
			r.Put("/pauses", s.instrument("pauses", s.handlePauses))
			r.Get("/export/contributions.parquet", s.instrument("export", s.handleExport))
		})
	})
	return otelhttp.NewHandler(r, moduleName)
}

// Run starts the HTTP server and blocks until context cancellation.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.cfg.ListenAddress, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("http server listening", "addr", s.cfg.ListenAddress)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return ctx.Err()
}

func (s *Server) instrument(route string, fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		fn(recorder, r)
		observability.ModuleMetrics().Observe(moduleName, route, recorder.status, time.Since(start))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	count, err := s.engine.PeriodCount(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "periods": count})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}
