package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quantumauth-io/quantum-go-utils/log"
	"github.com/redis/go-redis/v9"

	agentconfig "github.com/quantumauth-io/quantum-swap-agent/cmd/quantum-swap-agent/config"
	"github.com/quantumauth-io/quantum-swap-agent/internal/aggregator"
	"github.com/quantumauth-io/quantum-swap-agent/internal/assets"
	"github.com/quantumauth-io/quantum-swap-agent/internal/chains"
	"github.com/quantumauth-io/quantum-swap-agent/internal/config"
	"github.com/quantumauth-io/quantum-swap-agent/internal/ethwallet/txsender"
	"github.com/quantumauth-io/quantum-swap-agent/internal/ethwallet/userwallet"
	"github.com/quantumauth-io/quantum-swap-agent/internal/helpers"
	apihttp "github.com/quantumauth-io/quantum-swap-agent/internal/http"
	"github.com/quantumauth-io/quantum-swap-agent/internal/notify"
	"github.com/quantumauth-io/quantum-swap-agent/internal/pricefeed"
	"github.com/quantumauth-io/quantum-swap-agent/internal/sizing"
	"github.com/quantumauth-io/quantum-swap-agent/internal/swap"
	"github.com/quantumauth-io/quantum-swap-agent/internal/trader"
	"github.com/quantumauth-io/quantum-swap-agent/internal/units"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	log.Info("quantum-swap-agent",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := agentconfig.Load()
	if err != nil {
		log.Fatal("failed to parse config", "error", err)
	}

	chainSvc, err := chains.NewService(ctx, chains.ChainConfig{
		Chains:           &cfg.Chains,
		Network:          cfg.Agent.Network,
		PreferredRPCName: cfg.Agent.PreferredRPC,
		HeaderRefresh:    cfg.Agent.HeaderRefresh,
	})
	if err != nil {
		log.Error("chain init failed", "error", err)
		return
	}
	defer func() {
		if err := chainSvc.Close(); err != nil {
			log.Error("chain close failed", "error", err)
		}
	}()
	network := chainSvc.Network()
	chainID := chainSvc.ChainID()

	node, err := chainSvc.Node()
	if err != nil {
		log.Error("no node client", "error", err)
		return
	}

	registry, err := assets.NewRegistry(cfg.Assets)
	if err != nil {
		log.Error("asset registry invalid", "error", err)
		return
	}
	tokens, err := assets.NewTokenReader(node, cfg.Agent.DecimalsCacheSize)
	if err != nil {
		log.Error("token reader init failed", "error", err)
		return
	}
	if cfg.Agent.VerifyAssets {
		if err := registry.Verify(ctx, tokens); err != nil {
			log.Error("asset verification failed", "error", err)
			return
		}
	}
	balances := assets.NewReader(registry, node, tokens, chainID, cfg.Agent.BalanceConcurrency)

	feed, closeFeed := newPriceSource(ctx, cfg)
	defer closeFeed()

	wallet, err := loadWallet(cfg)
	if err != nil {
		log.Error("signing key unavailable", "error", err)
		return
	}
	sender, err := txsender.New(node, wallet, chainID, cfg.Signer)
	if err != nil {
		log.Error("signer init failed", "error", err)
		return
	}

	agg := aggregator.NewClient(cfg.Aggregator, chainID)
	if spender, err := agg.Spender(ctx); err != nil {
		log.Warn("aggregator spender lookup failed", "error", err)
	} else {
		log.Info("aggregator router", "spender", spender.Hex())
	}

	queue, closeSinks := newNotifier(cfg)
	queue.Start(context.WithoutCancel(ctx))
	defer func() {
		queue.Close()
		closeSinks()
	}()

	traderSvc := trader.NewService(trader.Deps{
		Registry:  registry,
		Balances:  balances,
		Sizer:     sizing.NewSizer(feed, cfg.Sizing),
		Converter: units.NewConverter(tokens),
		Swapper:   swap.NewOrchestrator(agg, sender, chainID, cfg.Swap),
		Notifier:  queue,
	}, trader.Config{
		Wallet:        wallet.Address(),
		ChainID:       chainID,
		SlippageBps:   cfg.Swap.SlippageBps,
		ExplorerTxURL: network.ExplorerTxURL,
	})

	if snap, err := traderSvc.Balances(ctx); err != nil {
		log.Warn("initial balance read failed", "error", err)
	} else {
		log.Info("wallet balances", "wallet", snap.Wallet.Hex(), "network", network.NetworkName, "balances", snap.Balances)
	}

	handler := apihttp.NewServer(cfg.HTTP, traderSvc, apihttp.Identity{
		Network: network.NetworkName,
		ChainID: chainID,
		Wallet:  wallet.Address().Hex(),
	})

	addr := net.JoinHostPort(cfg.HTTP.Host, cfg.HTTP.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
	}

	go func() {
		log.Info("HTTP server listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")

	// in-flight swaps may be waiting on a confirmation
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Signer.ConfirmTimeout+5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", "error", err)
	} else {
		log.Info("HTTP server gracefully stopped")
	}
}

func newPriceSource(ctx context.Context, cfg *config.Config) (pricefeed.Source, func()) {
	client := pricefeed.NewClient(cfg.PriceFeed.Config)
	rs := cfg.PriceFeed.Redis
	if rs.Addr == "" {
		return client, func() {}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     rs.Addr,
		Password: rs.Password,
		DB:       rs.DB,
	})
	closeFn := func() {
		if err := rdb.Close(); err != nil {
			log.Warn("redis close failed", "error", err)
		}
	}
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn("redis unreachable, price series cache disabled", "addr", rs.Addr, "error", err)
		closeFn()
		return client, func() {}
	}
	log.Info("price series cache enabled", "addr", rs.Addr, "ttl", rs.TTL)
	return pricefeed.NewCachedSource(client, rdb, rs.TTL), closeFn
}

func loadWallet(cfg *config.Config) (*userwallet.Wallet, error) {
	if cfg.Secrets.PrivateKey != "" {
		w, err := userwallet.FromPrivateKeyHex(cfg.Secrets.PrivateKey)
		if err != nil {
			return nil, err
		}
		log.Info("signing key from environment", "address", w.Address().Hex())
		return w, nil
	}

	store, err := userwallet.NewStore(cfg.Agent.KeystorePath)
	if err != nil {
		return nil, err
	}

	var pw []byte
	if cfg.Secrets.KeystorePassword != "" {
		pw = []byte(cfg.Secrets.KeystorePassword)
	} else {
		pw, err = helpers.PromptPassword("Keystore password: ")
		if err != nil {
			return nil, err
		}
	}
	defer helpers.ZeroBytes(pw)

	w, err := store.Ensure(pw)
	if err != nil {
		return nil, err
	}
	log.Info("signing key from keystore", "address", w.Address().Hex(), "keystore", store.Path)
	return w, nil
}

func newNotifier(cfg *config.Config) (*notify.Queue, func()) {
	var sinks []notify.Sink
	var closers []func() error

	if cfg.Notify.Log {
		sinks = append(sinks, notify.LogSink{})
	}
	if cfg.Notify.Telegram.ChatID != "" {
		tg, err := notify.NewTelegramSink(cfg.Notify.Telegram)
		if err != nil {
			log.Warn("telegram notifications disabled", "error", err)
		} else {
			sinks = append(sinks, tg)
		}
	}
	if cfg.Notify.AMQP.URL != "" {
		mq, err := notify.NewAMQPSink(cfg.Notify.AMQP)
		if err != nil {
			log.Warn("amqp notifications disabled", "error", err)
		} else {
			sinks = append(sinks, mq)
			closers = append(closers, mq.Close)
		}
	}
	log.Info("notification sinks", "count", len(sinks))

	return notify.NewQueue(cfg.Notify.QueueConfig, sinks...), func() {
		for _, c := range closers {
			if err := c(); err != nil {
				log.Warn("notification sink close failed", "error", err)
			}
		}
	}
}
