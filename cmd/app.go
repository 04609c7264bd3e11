package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"moleswap/config"
	"moleswap/pkg/approval"
	"moleswap/pkg/balance"
	"moleswap/pkg/directory"
	"moleswap/pkg/history"
	"moleswap/pkg/metrics"
	"moleswap/pkg/oneclick"
	"moleswap/pkg/quote"
	"moleswap/pkg/relay"
	"moleswap/pkg/swap"
	"moleswap/pkg/types"
	"moleswap/pkg/wallet"
)

// solanaChainID is the directory id of Solana mainnet
const solanaChainID = 792703809

// aggregator quotes, executes and tracks swaps
type aggregator interface {
	quote.Fetcher
	swap.Aggregator
	GetStatus(ctx context.Context, requestID string) (*types.SwapStatus, error)
}

// app holds the components shared by commands
type app struct {
	cfg        *config.Config
	logger     *logrus.Logger
	jsonOutput bool
	verbose    bool

	metrics    *metrics.Metrics
	relay      *relay.Client
	oneclick   *oneclick.Client
	aggregator aggregator
	directory  *directory.Directory
	evm        *balance.EVMAdapter
	balances   *balance.Resolver
	session    *wallet.Session
	redis      *redis.Client

	cancel context.CancelFunc
}

// newApp loads configuration and wires the components. The returned context
// is cancelled on SIGINT/SIGTERM and by Close.
func newApp(cmd *cobra.Command) (*app, context.Context, error) {
	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger := setupLogging(cfg, verbose)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	a := &app{
		cfg:        cfg,
		logger:     logger,
		jsonOutput: jsonOutput,
		verbose:    verbose,
		metrics:    metrics.New(),
		cancel:     cancel,
	}

	a.relay = relay.NewClient(cfg.RelayBaseURL,
		relay.WithRetryMax(cfg.RetryMax),
		relay.WithCheckPolling(cfg.CheckInterval, cfg.CheckTimeout),
		relay.WithLogger(logger),
	)
	a.aggregator = a.relay
	if cfg.Aggregator == config.AggregatorOneClick {
		a.oneclick = oneclick.NewClient(cfg.OneClickJWT,
			oneclick.WithBaseURL(cfg.OneClickBaseURL),
			oneclick.WithLogger(logger),
		)
		a.aggregator = a.oneclick
	}

	var source directory.ChainSource = a.relay
	if cfg.RedisAddr != "" {
		if cached, err := a.cachedSource(ctx, source); err != nil {
			logger.WithError(err).Warn("Redis unavailable, loading chains without cache")
		} else {
			source = cached
		}
	}
	a.directory = directory.New(source, logger)

	a.evm = balance.NewEVMAdapter(cfg.RPC, logger)
	registry := balance.NewRegistry(a.evm)
	if cfg.SolanaRPCURL != "" {
		registry.Register(balance.NewSVMAdapter(cfg.SolanaRPCURL, cfg.SolanaCommitment, solanaChainID))
	}
	a.balances = balance.NewResolver(registry, logger)

	a.session = wallet.NewSession(func(ctx context.Context) (wallet.Signer, error) {
		if cfg.PrivateKey == "" {
			return nil, fmt.Errorf("%w: set MOLESWAP_WALLET_PRIVATE_KEY or wallet.private_key", wallet.ErrNotConnected)
		}
		signer, err := wallet.NewKeySigner(cfg.PrivateKey, cfg.RPC, wallet.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		return signer, nil
	})

	if cfg.MetricsAddr != "" {
		go func() {
			if err := a.metrics.Serve(ctx, cfg.MetricsAddr, logger); err != nil {
				logger.WithError(err).Error("Metrics server failed")
			}
		}()
	}

	return a, ctx, nil
}

func (a *app) cachedSource(ctx context.Context, source directory.ChainSource) (directory.ChainSource, error) {
	client := redis.NewClient(&redis.Options{Addr: a.cfg.RedisAddr})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	a.redis = client
	return directory.NewCachedSource(source, client, a.cfg.RedisCacheTTL, a.cfg.Network, a.logger)
}

// Close releases network resources
func (a *app) Close() {
	a.cancel()
	if err := a.session.Close(); err != nil {
		a.logger.WithError(err).Debug("Failed to close wallet session")
	}
	a.evm.Close()
	if a.redis != nil {
		_ = a.redis.Close()
	}
}

func (a *app) aggregatorName() string {
	return a.cfg.Aggregator
}

// newQuoteManager builds a quote manager over the configured aggregator
func (a *app) newQuoteManager() *quote.Manager {
	return quote.NewManager(a.aggregator,
		quote.WithTTL(a.cfg.QuoteTTL),
		quote.WithRefreshInterval(a.cfg.QuoteRefreshInterval),
		quote.WithMinInterval(a.cfg.QuoteMinInterval),
		quote.WithLogger(a.logger),
		quote.WithMetrics(a.metrics),
	)
}

// newExecutor builds a swap executor with hooks
func (a *app) newExecutor(hooks swap.Hooks) *swap.Executor {
	gate := approval.NewGate(
		approval.WithPolling(a.cfg.ApprovalPollInterval, a.cfg.ApprovalTimeout),
		approval.WithLogger(a.logger),
		approval.WithMetrics(a.metrics),
	)
	return swap.NewExecutor(a.aggregator, gate,
		swap.WithHooks(hooks),
		swap.WithLogger(a.logger),
		swap.WithMetrics(a.metrics),
	)
}

func (a *app) openHistory() (*history.Storage, error) {
	return history.NewStorage(a.cfg.HistoryPath)
}

// walletAddress returns the connected wallet address, or "" without a key
func (a *app) walletAddress(ctx context.Context) string {
	if a.cfg.PrivateKey == "" {
		return ""
	}
	signer, err := a.session.Signer(ctx)
	if err != nil {
		a.logger.WithError(err).Warn("Wallet not available")
		return ""
	}
	addr, err := signer.Address(ctx)
	if err != nil {
		return ""
	}
	return addr.Hex()
}

// defaultChainID is used when a command names no chain
func (a *app) defaultChainID() int64 {
	if a.cfg.Network == config.NetworkTestnet {
		return 11155111
	}
	return 1
}
