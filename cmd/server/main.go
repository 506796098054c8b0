// Package main runs the P&L server: per-wallet ingestion from the Blend
// indexer, reactive recompute, and an HTTP API serving the results.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"blend-pnl-lab/internal/config"
	"blend-pnl-lab/internal/domain"
	"blend-pnl-lab/internal/engine"
	"blend-pnl-lab/internal/ingestion"
	"blend-pnl-lab/internal/ledger"
	"blend-pnl-lab/internal/observability"
	"blend-pnl-lab/internal/service"
	"blend-pnl-lab/internal/storage"
	chstore "blend-pnl-lab/internal/storage/clickhouse"
	"blend-pnl-lab/internal/storage/memory"
	"blend-pnl-lab/internal/storage/migrations"
	pgstore "blend-pnl-lab/internal/storage/postgres"
)

// Server wires ingestion sessions and the HTTP API together.
type Server struct {
	cfg     *config.Config
	client  *ledger.Client
	stores  *allStores
	metrics *observability.Metrics
	logger  *zap.Logger

	mu       sync.Mutex
	sessions map[string]*session
	started  time.Time
}

// session is one wallet's live ingestion and recompute pair.
type session struct {
	svc    *service.Service
	cancel context.CancelFunc
}

// allStores holds the persistence backends.
type allStores struct {
	eventStore storage.EventStore
	priceStore storage.PriceStore
}

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	var logger *zap.Logger
	if cfg.DebugLogging {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, cleanup, err := createStores(ctx, cfg)
	if err != nil {
		logger.Fatal("create stores", zap.Error(err))
	}
	defer cleanup()

	server := &Server{
		cfg:      cfg,
		client:   ledger.NewClient(cfg.IndexerURL),
		stores:   stores,
		metrics:  observability.NewMetrics(""),
		logger:   logger,
		sessions: make(map[string]*session),
		started:  time.Now(),
	}

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server.routes(),
	}

	// Graceful shutdown on SIGINT/SIGTERM, forced on a second signal.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("shutting down", zap.String("signal", sig.String()))
		cancel()
		server.stopSessions()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		select {
		case <-sigCh:
			logger.Warn("second signal, forcing exit")
			os.Exit(1)
		case <-shutdownCtx.Done():
		}
	}()

	logger.Info("server listening", zap.String("addr", cfg.ListenAddr))
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("http server", zap.Error(err))
	}

	logger.Info("shutdown complete")
}

// createStores creates the persistence backends. Postgres holds the raw
// event log; the daily price history goes to ClickHouse when a DSN is
// configured, otherwise to a mirror table in Postgres.
func createStores(ctx context.Context, cfg *config.Config) (*allStores, func(), error) {
	if cfg.UseMemoryStorage {
		stores := &allStores{
			eventStore: memory.NewEventStore(),
			priceStore: memory.NewPriceStore(),
		}
		return stores, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.PostgresURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	stores := &allStores{eventStore: pgstore.NewEventStore(pool)}

	if cfg.ClickHouseDSN == "" {
		stores.priceStore = pgstore.NewPriceStore(pool)
		return stores, pool.Close, nil
	}

	chConn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickHouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}
	stores.priceStore = chstore.NewPriceStore(chConn)

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}
	return stores, cleanup, nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("GET /pnl/{account}", s.handlePnl)

	return mux
}

// handlePnl serves the computed P&L for one wallet. The first request for
// an account starts its ingestion session; 503 is returned until the
// event log and live snapshot have both loaded.
func (s *Server) handlePnl(w http.ResponseWriter, r *http.Request) {
	account := r.PathValue("account")
	if err := ledger.ValidateAccount(account); err != nil {
		httpError(w, http.StatusBadRequest, "invalid account: not a valid ed25519 public key")
		return
	}

	sess := s.getOrCreateSession(account)

	if prefs, ok := prefsFromQuery(r, sess.svc.Preferences()); ok {
		sess.svc.SetPreferences(prefs)
	}

	result, err := sess.svc.Result()
	if err != nil {
		if errors.Is(err, engine.ErrNotReady) {
			httpError(w, http.StatusServiceUnavailable, "position data still loading, retry shortly")
			return
		}
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// getOrCreateSession returns the account's session, starting ingestion on
// first use.
func (s *Server) getOrCreateSession(account string) *session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[account]; ok {
		return sess
	}

	prefs := domain.Preferences{
		ShowPriceChanges:        s.cfg.ShowPriceChanges,
		UseHistoricalBlndPrices: s.cfg.UseHistoricalBlndPrices,
	}
	svc := service.New(account, s.cfg.PeggedAssets, prefs, s.logger,
		service.WithMetrics(s.metrics),
		service.WithSnapshotMaxLag(time.Duration(s.cfg.SnapshotMaxLagSecs)*time.Second),
	)

	ctx, cancel := context.WithCancel(context.Background())

	var stream *ledger.ActivityStream
	if s.cfg.IndexerWSURL != "" {
		var err error
		stream, err = ledger.NewActivityStream(ctx, s.cfg.IndexerWSURL, account)
		if err != nil {
			// Polling alone keeps the session correct, just slower.
			s.logger.Warn("activity stream unavailable",
				zap.String("account", account), zap.Error(err))
			stream = nil
		}
	}

	runner := ingestion.NewRunner(ingestion.RunnerOptions{
		Account:          account,
		Client:           s.client,
		Stream:           stream,
		EventStore:       s.stores.eventStore,
		PriceStore:       s.stores.priceStore,
		Sink:             svc,
		EventInterval:    time.Duration(s.cfg.EventPollSeconds) * time.Second,
		SnapshotInterval: time.Duration(s.cfg.SnapshotPollSeconds) * time.Second,
		Metrics:          s.metrics,
		Logger:           s.logger.Named("ingestion"),
	})

	go func() {
		if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("ingestion stopped",
				zap.String("account", account), zap.Error(err))
		}
		if stream != nil {
			stream.Close()
		}
	}()

	sess := &session{svc: svc, cancel: cancel}
	s.sessions[account] = sess
	s.logger.Info("session started", zap.String("account", account))
	return sess
}

// stopSessions cancels every ingestion runner.
func (s *Server) stopSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		sess.cancel()
	}
}

// prefsFromQuery reads the display toggles from query parameters. Absent
// parameters leave the session's current preferences untouched.
func prefsFromQuery(r *http.Request, current domain.Preferences) (domain.Preferences, bool) {
	q := r.URL.Query()
	showRaw := q.Get("show_price_changes")
	histRaw := q.Get("use_historical_blnd_prices")
	if showRaw == "" && histRaw == "" {
		return current, false
	}

	prefs := current
	if showRaw != "" {
		prefs.ShowPriceChanges, _ = strconv.ParseBool(showRaw)
	}
	if histRaw != "" {
		prefs.UseHistoricalBlndPrices, _ = strconv.ParseBool(histRaw)
	}
	return prefs, true
}

// StatusResponse is the JSON response for the /status endpoint.
type StatusResponse struct {
	Status   string   `json:"status"`
	Uptime   string   `json:"uptime"`
	Sessions int      `json:"sessions"`
	Accounts []string `json:"accounts"`
	Ready    int      `json:"ready"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp := StatusResponse{
		Status:   "running",
		Uptime:   time.Since(s.started).String(),
		Sessions: len(s.sessions),
	}
	for account, sess := range s.sessions {
		resp.Accounts = append(resp.Accounts, account)
		if sess.svc.Ready() {
			resp.Ready++
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func httpError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
