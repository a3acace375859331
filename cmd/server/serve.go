package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/prxgr4mmer/coin-dashboard-service/internal/adapters/binance"
	"github.com/prxgr4mmer/coin-dashboard-service/internal/adapters/coingecko"
	"github.com/prxgr4mmer/coin-dashboard-service/internal/adapters/cryptocompare"
	httpAdapter "github.com/prxgr4mmer/coin-dashboard-service/internal/adapters/http"
	"github.com/prxgr4mmer/coin-dashboard-service/internal/adapters/memory"
	"github.com/prxgr4mmer/coin-dashboard-service/internal/adapters/openai"
	"github.com/prxgr4mmer/coin-dashboard-service/internal/adapters/postgres"
	"github.com/prxgr4mmer/coin-dashboard-service/internal/config"
	"github.com/prxgr4mmer/coin-dashboard-service/internal/domain"
	"github.com/prxgr4mmer/coin-dashboard-service/internal/ports"
	"github.com/prxgr4mmer/coin-dashboard-service/internal/resilience"
	"github.com/prxgr4mmer/coin-dashboard-service/internal/services"
	"github.com/prxgr4mmer/coin-dashboard-service/internal/telemetry"
	"github.com/prxgr4mmer/coin-dashboard-service/internal/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the live price poller",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		logger.Info("starting coin dashboard service", "version", version)

		app, err := buildApplication(ctx, cfg, logger)
		if err != nil {
			return fmt.Errorf("failed to build application: %w", err)
		}
		return app.Run(ctx)
	},
}

// Application holds all components
type Application struct {
	db         *postgres.DB
	httpServer *httpAdapter.Server
	poller     *worker.Poller
	favorites  *services.FavoritesService
	market     *services.MarketService
	logger     *slog.Logger
}

// clients are the upstream adapters shared by the serve and one-shot commands
type clients struct {
	market    *coingecko.Client
	quotes    ports.QuoteClient
	inference *openai.Client
}

func buildClients(cfg *config.Config, metrics *telemetry.Metrics, logger *slog.Logger) (*clients, error) {
	clk := clock.New()

	// One policy instance carries the cache, throttle and lock for every detail lookup
	policy, err := resilience.New[domain.PriceDetail](resilience.DefaultConfig(),
		resilience.WithClock(clk),
		resilience.WithLogger(logger),
		resilience.WithObserver(metrics),
	)
	if err != nil {
		return nil, err
	}

	marketClient, err := coingecko.NewClient(
		coingecko.WithBaseURL(cfg.MarketData.BaseURL),
		coingecko.WithTimeout(cfg.MarketData.Timeout),
		coingecko.WithAPIKey(cfg.MarketData.APIKey),
		coingecko.WithPolicy(policy),
		coingecko.WithMetrics(metrics),
		coingecko.WithClock(clk),
		coingecko.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	quoteClient := cryptocompare.NewClient(
		cryptocompare.WithBaseURL(cfg.Quote.BaseURL),
		cryptocompare.WithTimeout(cfg.Quote.Timeout),
		cryptocompare.WithRetry(cfg.Quote.MaxRetries, cfg.Quote.RetryBackoff),
		cryptocompare.WithMetrics(metrics),
		cryptocompare.WithLogger(logger),
	)

	var fallback ports.QuoteClient
	if cfg.Quote.FallbackEnabled {
		fallback = binance.NewClient(
			binance.WithBaseURL(cfg.Quote.FallbackBaseURL),
			binance.WithTimeout(cfg.Quote.Timeout),
			binance.WithRetry(cfg.Quote.MaxRetries, cfg.Quote.RetryBackoff),
			binance.WithMetrics(metrics),
			binance.WithLogger(logger),
		)
	}

	inferenceClient := openai.NewClient(cfg.Inference.APIKey,
		openai.WithBaseURL(cfg.Inference.BaseURL),
		openai.WithModel(cfg.Inference.Model),
		openai.WithTimeout(cfg.Inference.Timeout),
		openai.WithMetrics(metrics),
		openai.WithLogger(logger),
	)

	return &clients{
		market:    marketClient,
		quotes:    services.NewQuoteChain(quoteClient, fallback, logger),
		inference: inferenceClient,
	}, nil
}

func buildApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Application, error) {
	logger.Info("building application")

	metrics := telemetry.New()

	// 1. Infrastructure Layer - State store
	var (
		db    *postgres.DB
		store ports.StateRepository
	)
	if cfg.Database.URL != "" {
		var err error
		db, err = postgres.NewDB(ctx, cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, err
		}
		store = postgres.NewStateRepository(db)
	} else {
		logger.Warn("no database configured, favorites will not survive a restart")
		store = memory.NewStateStore()
	}

	// 2. Infrastructure Layer - Upstream clients
	c, err := buildClients(cfg, metrics, logger)
	if err != nil {
		if db != nil {
			db.Close()
		}
		return nil, err
	}

	// 3. Service Layer
	clk := clock.New()
	metricsService := services.NewMetricsService(logger)
	marketService := services.NewMarketService(c.market, logger)
	favoritesService := services.NewFavoritesService(store, metrics, logger)

	liveService := services.NewLivePriceService(
		favoritesService,
		marketService,
		c.quotes,
		metricsService,
		metrics,
		cfg.Poller.HistorySize,
		clk,
		logger,
	)

	recommendationService := services.NewRecommendationService(
		favoritesService,
		marketService,
		c.inference,
		clk,
		logger,
	)

	// 4. Background Workers
	poller := worker.NewPoller(
		liveService,
		cfg.Poller.Interval,
		logger,
		worker.WithClock(clk),
		worker.WithOnActivate(liveService.Reset),
	)
	favoritesService.Subscribe(poller.Update)

	metricsService.Attach(marketService, favoritesService, liveService, poller)

	// 5. Transport Layer - HTTP Server
	handler := httpAdapter.NewHandler(
		marketService,
		favoritesService,
		liveService,
		recommendationService,
		metricsService,
		store,
		logger,
	)
	router := httpAdapter.NewRouter(handler, metrics.Handler(), logger)
	httpServer := httpAdapter.NewServer(cfg.Server, router, logger)

	logger.Info("application built successfully")

	return &Application{
		db:         db,
		httpServer: httpServer,
		poller:     poller,
		favorites:  favoritesService,
		market:     marketService,
		logger:     logger,
	}, nil
}

// Run loads the startup state and serves until ctx is cancelled
func (a *Application) Run(ctx context.Context) error {
	a.logger.Info("starting application components")

	a.favorites.Load(ctx)

	if _, err := a.market.LoadCoins(ctx); err != nil {
		// The list can be reloaded through POST /coins/refresh
		a.logger.Error("initial coin list load failed", "error", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.poller.Run(gctx)
	})

	g.Go(func() error {
		return a.httpServer.Start()
	})

	g.Go(func() error {
		<-gctx.Done()
		a.shutdown()
		return nil
	})

	a.logger.Info("application started", "http_addr", a.httpServer.Addr())

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return err
}

func (a *Application) shutdown() {
	a.logger.Info("shutting down application")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Stop poller first
	if err := a.poller.Stop(); err != nil {
		a.logger.Error("failed to stop poller", "error", err)
	}

	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.logger.Error("failed to shutdown http server", "error", err)
	}

	if a.db != nil {
		a.db.Close()
	}

	a.logger.Info("application shutdown complete")
}

