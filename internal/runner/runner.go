// internal/runner/runner.go
package runner

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/launchpad-engine/internal/authz"
	"github.com/rovshanmuradov/launchpad-engine/internal/config"
	"github.com/rovshanmuradov/launchpad-engine/internal/events"
	"github.com/rovshanmuradov/launchpad-engine/internal/launch"
	"github.com/rovshanmuradov/launchpad-engine/internal/ledger"
	"github.com/rovshanmuradov/launchpad-engine/internal/logger"
	"github.com/rovshanmuradov/launchpad-engine/internal/sign"
	"github.com/rovshanmuradov/launchpad-engine/internal/storage"
	"github.com/rovshanmuradov/launchpad-engine/internal/storage/models"
	"github.com/rovshanmuradov/launchpad-engine/internal/storage/postgres"
	"github.com/rovshanmuradov/launchpad-engine/internal/types"
	"github.com/rovshanmuradov/launchpad-engine/internal/vesting"
)

// EngineAccount is the engine's own account on every ledger it touches.
var EngineAccount = types.AddressFromSeed([]byte("launchpad/engine"))

// VestingAccount holds vesting escrow, separate from the engine account so
// graduation never sweeps escrowed tokens into the pool.
var VestingAccount = types.AddressFromSeed([]byte("launchpad/vesting"))

// TreasuryAccount holds the base-currency float in the in-memory wiring.
var TreasuryAccount = types.AddressFromSeed([]byte("launchpad/treasury"))

// Runner wires the engine's components together and owns their lifecycle.
type Runner struct {
	logger       *logger.Logger
	cfg          *config.Config
	bus          *events.Bus
	store        storage.Storage
	vesting      *vesting.Engine
	orchestrator *launch.Orchestrator
	auth         *authz.Table
	registry     *ledger.Registry
	shutdownCh   chan os.Signal
}

func NewRunner(log *logger.Logger) *Runner {
	return &Runner{
		logger:     log,
		shutdownCh: make(chan os.Signal, 1),
	}
}

// Orchestrator exposes the wired orchestrator for embedding callers.
func (r *Runner) Orchestrator() *launch.Orchestrator { return r.orchestrator }

// Vesting exposes the wired vesting engine.
func (r *Runner) Vesting() *vesting.Engine { return r.vesting }

// Auth exposes the permission table so the operator can grant roles.
func (r *Runner) Auth() *authz.Table { return r.auth }

// Initialize loads configuration and builds every component. Storage is
// optional: without a postgres_url the engine runs with the in-memory
// replay set only.
func (r *Runner) Initialize(ctx context.Context, configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	r.cfg = cfg

	r.bus = events.NewBus(r.logger.Logger, cfg.EventBufferSize)

	if cfg.PostgresURL != "" {
		store, err := r.connectStorage(ctx, cfg.PostgresURL)
		if err != nil {
			return fmt.Errorf("connect storage: %w", err)
		}
		if err := store.RunMigrations(); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		r.store = store
		r.journalVestingClaims()
	}

	params, err := r.buildParams(cfg)
	if err != nil {
		return fmt.Errorf("build params: %w", err)
	}

	r.registry = ledger.NewRegistry()
	r.auth = authz.NewTable()
	r.vesting = vesting.NewEngine(r.logger.Logger, r.bus, r.registry, VestingAccount)

	base := ledger.NewMemory("Base Currency", "BASE", 1<<62, EngineAccount, TreasuryAccount)
	deps := launch.Deps{
		Logger:   r.logger.Logger,
		Bus:      r.bus,
		Store:    r.store,
		Deployer: ledger.NewMemoryDeployer(r.logger.Logger),
		Registry: r.registry,
		Base:     base,
		Pool:     ledger.NewMemoryPool(r.logger.Logger),
		Verifier: sign.Secp256k1{},
		Auth:     r.auth,
		Vesting:  r.vesting,
		Account:  EngineAccount,
	}
	r.orchestrator, err = launch.New(params, deps)
	if err != nil {
		return fmt.Errorf("build orchestrator: %w", err)
	}
	if err := r.orchestrator.RestoreConsumedRequests(ctx); err != nil {
		return fmt.Errorf("restore replay ledger: %w", err)
	}

	r.logger.Info("Engine initialized",
		zap.String("chain_id", cfg.ChainID),
		zap.Bool("persistence", r.store != nil))
	return nil
}

// journalVestingClaims persists every claim payout flowing over the bus.
func (r *Runner) journalVestingClaims() {
	r.bus.SubscribeFunc(events.VestingClaimed, func(ctx context.Context, ev events.Event) error {
		claimed, ok := ev.(*events.VestingClaimedEvent)
		if !ok {
			return nil
		}
		return r.store.SaveVestingClaim(ctx, &models.VestingClaim{
			Asset:       claimed.Asset.String(),
			Beneficiary: claimed.Beneficiary.String(),
			ScheduleID:  claimed.ScheduleID,
			Amount:      claimed.Amount,
		})
	})
}

// connectStorage dials postgres with exponential backoff; a cold database
// at boot is expected in orchestrated deployments.
func (r *Runner) connectStorage(ctx context.Context, dsn string) (storage.Storage, error) {
	operation := func() (storage.Storage, error) {
		return postgres.NewStorage(dsn, r.logger.Logger)
	}
	notify := func(err error, next time.Duration) {
		r.logger.Warn("Storage connection failed, retrying",
			zap.Duration("next_attempt_in", next), zap.Error(err))
	}
	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(10),
		backoff.WithNotify(notify),
	)
}

func (r *Runner) buildParams(cfg *config.Config) (launch.Params, error) {
	params := launch.DefaultParams()
	params.ChainID = cfg.ChainID
	params.CreationFee = cfg.CreationFee
	params.MaxCreationFee = cfg.MaxCreationFee
	params.TradingFeeBp = cfg.TradingFeeBp
	params.PlatformFeeBp = cfg.PlatformFeeBp
	params.CreatorFeeBp = cfg.CreatorFeeBp
	params.MaxInitialBuyBp = cfg.MaxInitialBuyBp
	params.GraduationThresholdBp = cfg.GraduationThresholdBp
	params.VirtualBaseReserve = cfg.VirtualBaseReserve
	params.VirtualTokenReserveBp = cfg.VirtualTokenReserveBp
	params.BaseDecimals = cfg.BaseDecimals
	params.TokenDecimals = cfg.TokenDecimals
	params.RequestExpiry = cfg.RequestExpiry()
	params.MaxDeadlineDrift = cfg.MaxDeadlineDrift()

	for _, bind := range []struct {
		raw    string
		target *types.Address
		label  string
	}{
		{cfg.FeeReceiver, &params.FeeReceiver, "fee_receiver"},
		{cfg.MarginReceiver, &params.MarginReceiver, "margin_receiver"},
		{cfg.PlatformReceiver, &params.PlatformReceiver, "platform_receiver"},
		{cfg.FallbackReceiver, &params.FallbackReceiver, "fallback_receiver"},
	} {
		if bind.raw == "" {
			continue
		}
		addr, err := types.AddressFromHex(bind.raw)
		if err != nil {
			return launch.Params{}, fmt.Errorf("invalid %s: %w", bind.label, err)
		}
		*bind.target = addr
	}
	return params, params.Validate()
}

// Run blocks until the context is canceled or a shutdown signal arrives,
// then drains the event bus.
func (r *Runner) Run(ctx context.Context) error {
	signal.Notify(r.shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		select {
		case sig := <-r.shutdownCh:
			r.logger.Info("Signal received", zap.String("signal", sig.String()))
			return context.Canceled
		case <-gCtx.Done():
			return gCtx.Err()
		}
	})

	err := g.Wait()
	r.Shutdown()
	if err != nil && err != context.Canceled {
		return err
	}
	return nil
}

// Shutdown drains the event bus and flushes the logger.
func (r *Runner) Shutdown() {
	r.logger.Info("Engine shutting down gracefully")
	if r.bus != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.bus.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("Event bus did not drain before timeout", zap.Error(err))
		}
	}
	if err := r.logger.Sync(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to sync logger during shutdown: %v\n", err)
	}
}
