// Package balance reads wallet balances through chain-family adapters.
package balance

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"moleswap/pkg/types"

	"github.com/sirupsen/logrus"
)

// Result is a balance lookup outcome. Unavailable lookups carry no value.
type Result struct {
	Value     *big.Int
	Available bool
}

// Adapter fetches balances for one VM family
type Adapter interface {
	VMType() string
	SupportsChain(chain *types.Chain) bool
	GetBalance(ctx context.Context, chain *types.Chain, wallet, token string) (*big.Int, error)
}

// Registry selects adapters by VM family
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry creates a registry. Chains without a vm type use the evm adapter.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter)}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

// Register adds or replaces the adapter for its VM family
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[strings.ToLower(a.VMType())] = a
}

// For returns the adapter for chain's VM family
func (r *Registry) For(chain *types.Chain) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	family := chain.Family()
	if a, ok := r.adapters[family]; ok {
		return a, nil
	}
	return nil, fmt.Errorf("no balance adapter for vm type %q", family)
}

// Resolver looks up balances and folds every failure into an unavailable result
type Resolver struct {
	registry *Registry
	logger   *logrus.Logger
}

// NewResolver creates a resolver over registry
func NewResolver(registry *Registry, logger *logrus.Logger) *Resolver {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Resolver{registry: registry, logger: logger}
}

// GetBalance returns wallet's balance of token on chain. An empty token means
// the native balance.
func (r *Resolver) GetBalance(ctx context.Context, chain *types.Chain, wallet, token string) Result {
	log := r.logger.WithFields(logrus.Fields{"chain_id": chain.ID, "token": token})

	adapter, err := r.registry.For(chain)
	if err != nil {
		log.WithError(err).Debug("Balance unavailable")
		return Result{}
	}
	if !adapter.SupportsChain(chain) {
		log.Debug("Balance unavailable: chain not supported by adapter")
		return Result{}
	}

	v, err := adapter.GetBalance(ctx, chain, wallet, token)
	if err != nil || v == nil {
		log.WithError(err).Debug("Balance unavailable")
		return Result{}
	}
	return Result{Value: v, Available: true}
}

// GetBalances fetches every token concurrently and hands each result to apply
// as soon as it arrives. It returns once all lookups are done.
func (r *Resolver) GetBalances(ctx context.Context, chain *types.Chain, wallet string, tokens []types.Token, apply func(key string, res Result)) {
	var wg sync.WaitGroup
	for _, t := range tokens {
		wg.Add(1)
		go func(t types.Token) {
			defer wg.Done()
			apply(Key(chain.ID, t.Address), r.GetBalance(ctx, chain, wallet, t.Address))
		}(t)
	}
	wg.Wait()
}

// Key identifies a balance within a batch
func Key(chainID int64, token string) string {
	return fmt.Sprintf("%d-%s", chainID, strings.ToLower(token))
}
