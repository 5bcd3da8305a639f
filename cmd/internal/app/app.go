// Package app wires the Chirp server runtime: config, logging, persistence,
// the HTTP API and the realtime gateway.
package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"time"

	"chirp/cmd/identity"
	authapi "chirp/cmd/internal/auth/api"
	"chirp/cmd/internal/auth/token"
	"chirp/cmd/internal/chat"
	"chirp/cmd/internal/message"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// App is the Chirp server runtime. It owns the HTTP server, the store
// lifecycles and the realtime hub.
type App struct {
	cfg Config
	log Logger

	pool      *pgxpool.Pool
	dbEnabled bool

	accounts identity.Store
	messages message.Store

	hub     *chat.Hub
	gateway *chat.Gateway
	reg     *prometheus.Registry

	auth *authapi.Handler
	msgs *message.Handler
}

// New constructs a fully wired App from config and logger.
func New(cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}

	a := &App{cfg: cfg, log: log}

	if err := a.initStores(context.Background()); err != nil {
		return nil, err
	}

	secret := cfg.JWTSecret
	if secret == "" {
		// Dev fallback: sessions die with the process. Production must set
		// CHIRP_JWT_SECRET.
		generated, err := randomSecret()
		if err != nil {
			return nil, err
		}
		secret = generated
		log.Warn("auth.jwt_secret.generated", "hint", "set CHIRP_JWT_SECRET to keep sessions across restarts")
	}
	tokens, err := token.NewManager(token.Config{Secret: secret, TTL: cfg.JWTTTL})
	if err != nil {
		a.closeStores()
		return nil, err
	}

	authCfg := authapi.LoadConfigFromEnv()
	a.auth, err = authapi.NewHandler(log, a.accounts, tokens, authCfg)
	if err != nil {
		a.closeStores()
		return nil, err
	}

	a.reg = prometheus.NewRegistry()
	a.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a.hub = chat.NewHub(log, chat.NewRegistry(), chat.NewMetrics(a.reg))
	a.gateway = chat.NewGateway(log, a.hub)

	a.msgs, err = message.NewHandler(log, a.messages, a.accounts, a.hub, authCfg.MaxBodyBytes)
	if err != nil {
		a.closeStores()
		return nil, err
	}

	return a, nil
}

// Run starts the HTTP server and blocks until context cancellation or a
// fatal server error.
func (a *App) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	registerHTTP(mux, a)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           WithRequestLogging(mux, a.log),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 30*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 30*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "db_enabled", a.dbEnabled)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	a.closeStores()
	a.log.Info("server.stopped")
	return nil
}

// initStores decides between Postgres-backed persistence and the in-memory
// dev stores.
func (a *App) initStores(ctx context.Context) error {
	if a.cfg.DatabaseURL == "" {
		a.log.Info("db.disabled.inmemory_stores")
		a.accounts = identity.NewMemoryStore()
		a.messages = message.NewMemoryStore()
		return nil
	}

	pool, err := NewDBPool(ctx, a.cfg)
	if err != nil {
		return err
	}

	accounts, err := identity.NewPostgresStore(pool)
	if err != nil {
		pool.Close()
		return err
	}
	messages, err := message.NewPostgresStore(pool)
	if err != nil {
		pool.Close()
		return err
	}

	a.log.Info("db.enabled.postgres_stores")
	a.pool = pool
	a.dbEnabled = true
	a.accounts = accounts
	a.messages = messages
	return nil
}

// closeStores releases store resources. The pool is owned here; the Postgres
// stores' Close is a no-op.
func (a *App) closeStores() {
	if a.accounts != nil {
		_ = a.accounts.Close()
	}
	if a.messages != nil {
		_ = a.messages.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
