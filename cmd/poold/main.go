// cmd/poold serves a minipool lending pool over HTTP.
//
// The pool, its custodied token and the participant balances live in
// process memory. Every committed operation is appended to the audit
// journal, in PostgreSQL when database.url is set.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmerrifield20/minipool/internal/asset"
	"github.com/jmerrifield20/minipool/internal/handler"
	"github.com/jmerrifield20/minipool/internal/health"
	"github.com/jmerrifield20/minipool/internal/identity"
	"github.com/jmerrifield20/minipool/internal/journal"
	"github.com/jmerrifield20/minipool/internal/pool"
	"github.com/jmerrifield20/minipool/pkg/address"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	if err := run(logger); err != nil {
		logger.Fatal("poold exited with error", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	// ── Configuration ────────────────────────────────────────────────────────
	viper.SetConfigName("poold")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("configs")
	viper.AddConfigPath(".")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		var cfgNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgNotFound) {
			return fmt.Errorf("read config: %w", err)
		}
		logger.Warn("no config file found, using defaults and env vars")
	}

	gate, err := pool.ParseGate(viper.GetString("pool.gate"))
	if err != nil {
		return err
	}
	if !gate.IsSafe() {
		return fmt.Errorf("refusing to serve with gate %q: withdrawals would release value before committing", gate)
	}
	if !gate.Guarded {
		logger.Warn("reentrancy guard disabled; relying on commit-then-release ordering alone",
			zap.Stringer("gate", gate))
	}

	tokens, err := identity.NewTokenIssuer(
		[]byte(viper.GetString("auth.jwt_secret")),
		viper.GetString("auth.issuer"),
		viper.GetDuration("auth.token_ttl"),
	)
	if err != nil {
		return fmt.Errorf("auth.jwt_secret: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Journal ──────────────────────────────────────────────────────────────
	var audit journal.Journal
	if dbURL := viper.GetString("database.url"); dbURL != "" {
		db, err := pgxpool.New(ctx, dbURL)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer db.Close()
		if err := db.Ping(ctx); err != nil {
			return fmt.Errorf("ping postgres: %w", err)
		}
		audit = journal.NewPostgresJournal(db, logger)
		logger.Info("connected to PostgreSQL journal")
	} else {
		audit = journal.New()
		logger.Warn("database.url not set, journal is in-memory only")
	}
	if err := audit.Verify(ctx); err != nil {
		return fmt.Errorf("journal failed verification at startup: %w", err)
	}

	// ── Asset and pool ───────────────────────────────────────────────────────
	tok := asset.New(viper.GetString("asset.symbol"), logger)
	if err := mintGenesis(tok, viper.GetStringMapString("asset.genesis"), logger); err != nil {
		return err
	}

	custody := address.FromSeed(viper.GetString("pool.address_seed"))
	p := pool.New(custody, asset.NewAccount(tok, custody), gate, logger)
	p.SetRecorder(journal.Recorder(audit, logger))

	logger.Info("pool ready",
		zap.Stringer("custody", custody),
		zap.Stringer("gate", gate),
		zap.String("asset", tok.Symbol()),
		zap.Uint64("supply", tok.TotalSupply()),
	)

	// ── Background: reconcile, verify the journal, publish gauges ───────────
	checker := health.New(health.Config{
		CheckInterval: viper.GetDuration("pool.reconcile_interval"),
		FailThreshold: viper.GetInt("pool.health_fail_threshold"),
	}, logger)
	seq := pool.NewSequencer()
	checker.Add("reconcile", func(ctx context.Context) error {
		// Same sequencer as GET /pool/reconcile: checks read an idle pool.
		return seq.Do(ctx, func(ctx context.Context) error {
			return handler.ObservePool(ctx, p, logger)
		})
	})
	checker.Add("journal", audit.Verify)
	checker.SetTransition(func(name, status string, _ error) {
		handler.SetCheckDegraded(name, status == health.StatusDegraded)
	})
	checker.CheckAll(ctx)
	go checker.Start(ctx)

	// ── HTTP server ──────────────────────────────────────────────────────────
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handler.NewRouter(ctx, handler.RouterConfig{
		CORSOrigins:  viper.GetStringSlice("pool.cors_origins"),
		RateLimitRPS: viper.GetInt("pool.rate_limit_rps"),
	}, logger,
		handler.NewPoolHandler(p, seq, tokens, logger),
		handler.NewAssetHandler(tok, custody, tokens, logger),
		handler.NewJournalHandler(audit, logger),
		handler.NewHealthHandler(checker),
	)

	port := viper.GetInt("pool.port")
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("poold HTTP listening", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// ── Graceful shutdown ──────────────────────────────────────────────────────
	select {
	case err := <-errCh:
		return fmt.Errorf("HTTP listen: %w", err)
	case <-ctx.Done():
	}
	logger.Info("shutting down poold...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", zap.Error(err))
	}

	logger.Info("poold stopped",
		zap.Uint64("total_deposited", p.TotalDeposited()),
		zap.Int("participants", len(p.Participants())),
	)
	return nil
}

func setDefaults() {
	viper.SetDefault("pool.port", 8090)
	viper.SetDefault("pool.gate", "safe")
	viper.SetDefault("pool.address_seed", "minipool/custody")
	viper.SetDefault("pool.rate_limit_rps", 20)
	viper.SetDefault("pool.cors_origins", []string{"http://localhost:3000"})
	viper.SetDefault("pool.reconcile_interval", "30s")
	viper.SetDefault("pool.health_fail_threshold", 1)
	viper.SetDefault("database.url", "")
	viper.SetDefault("auth.jwt_secret", "")
	viper.SetDefault("auth.issuer", "minipool")
	viper.SetDefault("auth.token_ttl", "1h")
	viper.SetDefault("asset.symbol", "MINI")
	viper.SetDefault("asset.genesis", map[string]string{})
}

// mintGenesis credits the configured opening balances. Keys are hex
// addresses, values decimal amounts.
func mintGenesis(tok *asset.Token, genesis map[string]string, logger *zap.Logger) error {
	for holder, raw := range genesis {
		addr, err := address.Parse(holder)
		if err != nil {
			return fmt.Errorf("asset.genesis %q: %w", holder, err)
		}
		amount, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return fmt.Errorf("asset.genesis %q: amount %q: %w", holder, raw, err)
		}
		if err := tok.Mint(addr, amount); err != nil {
			return fmt.Errorf("asset.genesis %q: %w", holder, err)
		}
		logger.Info("genesis mint", zap.Stringer("holder", addr), zap.Uint64("amount", amount))
	}
	return nil
}
