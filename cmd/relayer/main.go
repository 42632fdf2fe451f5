// Command relayer runs the cross-chain swap coordinator: the lifecycle
// controller, its HTTP control plane, and the reaper that turns elapsed
// deadlines into lifecycle events.
package main

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/goex/swaprelayer/internal/bus"
	"github.com/goex/swaprelayer/internal/config"
	"github.com/goex/swaprelayer/internal/gateway/ethgateway"
	"github.com/goex/swaprelayer/internal/httpapi"
	"github.com/goex/swaprelayer/internal/lifecycle"
	"github.com/goex/swaprelayer/internal/lock"
	"github.com/goex/swaprelayer/internal/oracle"
	"github.com/goex/swaprelayer/internal/reaper"
	"github.com/goex/swaprelayer/internal/resolverauth"
	"github.com/goex/swaprelayer/internal/signing"
	"github.com/goex/swaprelayer/internal/store/pgstore"
	libsbus "github.com/goex/swaprelayer/libs/bus"
	"github.com/goex/swaprelayer/libs/health"
	"github.com/goex/swaprelayer/libs/httpmiddleware"
	"github.com/goex/swaprelayer/libs/logging"
	"github.com/goex/swaprelayer/libs/metrics"
	"github.com/goex/swaprelayer/libs/resolverkey"
	"github.com/goex/swaprelayer/libs/trace"
)

const retentionDays = 30

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.App.LogLevel, cfg.App.ServiceName, cfg.App.Env)
	shutdownTracer, err := trace.InitTracer(cfg.App.ServiceName, cfg.App.Env)
	if err != nil {
		logger.Error("tracer init failed", "error", err)
	} else {
		defer func() {
			_ = shutdownTracer(context.Background())
		}()
	}

	if cfg.App.Env == "dev" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.Register(registry)
	producerMetrics := libsbus.NewProducerMetrics(registry)

	ready := health.NewManager(false)

	pool, err := connectDB(cfg)
	if err != nil {
		logger.Error("db connection failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	orderStore := pgstore.New(pool)

	producer, err := libsbus.NewSyncProducer(cfg.Bus.Brokers, logger, producerMetrics)
	if err != nil {
		logger.Error("bus producer init failed", "error", err)
		os.Exit(1)
	}
	defer producer.Close()
	dlqPublisher := libsbus.NewDLQPublisher(producer, producer, cfg.Bus.DLQTopic, logger)
	swapBus := bus.NewKafkaBus(dlqPublisher)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	locker := lock.NewRedisLocker(redisClient, 30*time.Second, "")

	chainClients, escrowFactories, err := buildChainClients(cfg)
	if err != nil {
		logger.Error("chain client init failed", "error", err)
		os.Exit(1)
	}
	ethGateway := ethgateway.New(chainClients...)

	verifier := signing.NewVerifier(func(srcChain uint64) (common.Address, error) {
		addr, ok := escrowFactories[srcChain]
		if !ok {
			return common.Address{}, fmt.Errorf("no escrow factory configured for chain %d", srcChain)
		}
		return addr, nil
	})

	priceOracle := oracle.NewStaticCache(logger)

	lcCfg := lifecycle.Config{
		DefaultOrderDuration:     cfg.Lifecycle.DefaultOrderDuration,
		FastAuctionDuration:      cfg.Lifecycle.FastAuctionDuration,
		ResolverCommitmentWindow: cfg.Lifecycle.ResolverCommitmentWindow,
		SecretRevealDelay:        cfg.Lifecycle.SecretRevealDelay,
		CompetitionWindow:        cfg.Lifecycle.CompetitionWindow,
		DefaultConfirmations:     cfg.Lifecycle.DefaultConfirmations,
		ConfirmationsPerChain:    confirmationsPerChain(cfg),
		MinSafetyDepositPerChain: minSafetyDepositPerChain(cfg),
	}

	ctrl := lifecycle.NewController(
		orderStore,
		ethGateway,
		swapBus,
		verifier,
		priceOracle,
		locker,
		func(srcChain uint64) (string, error) {
			addr, ok := escrowFactories[srcChain]
			if !ok {
				return "", fmt.Errorf("no escrow factory configured for chain %d", srcChain)
			}
			return addr.Hex(), nil
		},
		lcCfg,
		logger,
	)
	defer ctrl.Close()

	resolverRegistry := resolverauth.NewMemRegistry()
	if cfg.Resolvers.BootstrapPrefix != "" && cfg.Resolvers.BootstrapHash != "" {
		resolverRegistry.Add(cfg.Resolvers.BootstrapPrefix, resolverkey.Record{
			Resolver: cfg.Resolvers.BootstrapAddr,
			KeyHash:  cfg.Resolvers.BootstrapHash,
		})
	}

	reaperCtx, reaperCancel := context.WithCancel(context.Background())
	defer reaperCancel()
	r := reaper.New(orderStore, ctrl, retentionDays, logger)
	go r.Run(reaperCtx)

	handler := httpapi.New(ctrl, logger)
	router := gin.New()
	router.Use(httpmiddleware.RequestID())
	router.Use(httpmiddleware.Logger(logger))
	router.Use(httpmiddleware.Recovery(logger))
	router.Use(trace.Middleware(cfg.App.ServiceName))

	router.GET("/healthz", health.LivenessHandler)
	router.GET("/readyz", health.ReadinessHandler(ready))
	router.GET(cfg.App.MetricsPath, gin.WrapH(metrics.Handler(registry)))

	handler.Register(router, resolverRegistry)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.App.HTTP.Host, cfg.App.HTTP.Port),
		Handler:      router,
		ReadTimeout:  cfg.App.HTTP.ReadTimeout,
		WriteTimeout: cfg.App.HTTP.WriteTimeout,
		IdleTimeout:  cfg.App.HTTP.IdleTimeout,
	}

	ready.SetReady(true)

	go func() {
		logger.Info("relayer http starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "error", err)
		}
	}()

	waitForShutdown(httpServer, ready, reaperCancel, logger)
}

func connectDB(cfg *config.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DB.DSN())
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// buildChainClients constructs one ethgateway.ChainClient per configured
// chain, and returns the escrow-factory address table signing and admit
// both need keyed the same way.
func buildChainClients(cfg *config.Config) ([]*ethgateway.ChainClient, map[uint64]common.Address, error) {
	clients := make([]*ethgateway.ChainClient, 0, len(cfg.Chains))
	factories := make(map[uint64]common.Address, len(cfg.Chains))

	for chainID, chainCfg := range cfg.Chains {
		var signerKey *ecdsa.PrivateKey
		if chainCfg.SignerKeyHex != "" {
			key, err := crypto.HexToECDSA(chainCfg.SignerKeyHex)
			if err != nil {
				return nil, nil, fmt.Errorf("chain %d signer key: %w", chainID, err)
			}
			signerKey = key
		}

		client, err := ethgateway.NewChainClient(ethgateway.ChainClientConfig{
			ChainID:          chainID,
			RPCEndpoint:      chainCfg.RPCEndpoint,
			SignerKey:        signerKey,
			EscrowFactory:    common.HexToAddress(chainCfg.EscrowFactory),
			CallTimeout:      30 * time.Second,
			BreakerThreshold: 5,
			BreakerCooldown:  30 * time.Second,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("chain %d client: %w", chainID, err)
		}
		clients = append(clients, client)
		factories[chainID] = common.HexToAddress(chainCfg.EscrowFactory)
	}

	return clients, factories, nil
}

func confirmationsPerChain(cfg *config.Config) map[uint64]uint64 {
	out := make(map[uint64]uint64, len(cfg.Chains))
	for id, c := range cfg.Chains {
		out[id] = c.Confirmations
	}
	return out
}

func minSafetyDepositPerChain(cfg *config.Config) map[uint64]*big.Int {
	out := make(map[uint64]*big.Int, len(cfg.Chains))
	for id, c := range cfg.Chains {
		out[id] = c.MinSafetyDeposit
	}
	return out
}

func waitForShutdown(httpServer *http.Server, ready *health.Manager, cancel context.CancelFunc, logger *slog.Logger) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutdown started")
	ready.SetReady(false)
	cancel()

	ctx, cancelTimeout := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelTimeout()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("http shutdown error", "error", err)
	}
	logger.Info("shutdown complete")
}
