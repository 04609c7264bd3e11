package balance

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"moleswap/pkg/types"
	"moleswap/pkg/wallet"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sirupsen/logrus"
)

var errNotContract = errors.New("address is not a contract")

// EVMClient is the node access the EVM adapter needs
type EVMClient interface {
	BlockNumber(ctx context.Context) (uint64, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	Close()
}

// EVMDialer connects to an endpoint
type EVMDialer func(ctx context.Context, url string) (EVMClient, error)

func dialEthClient(ctx context.Context, url string) (EVMClient, error) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// EVMAdapter reads balances from EVM chains through an ordered endpoint list
type EVMAdapter struct {
	endpoints    map[int64][]string
	dial         EVMDialer
	probeTimeout time.Duration
	logger       *logrus.Logger

	mu      sync.Mutex
	clients map[int64]EVMClient
}

// NewEVMAdapter creates an adapter for the given per-chain endpoints
func NewEVMAdapter(endpoints map[int64][]string, logger *logrus.Logger) *EVMAdapter {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &EVMAdapter{
		endpoints:    endpoints,
		dial:         dialEthClient,
		probeTimeout: 3 * time.Second,
		logger:       logger,
		clients:      make(map[int64]EVMClient),
	}
}

// WithDialer overrides how endpoints are dialed
func (a *EVMAdapter) WithDialer(d EVMDialer) *EVMAdapter {
	a.dial = d
	return a
}

func (a *EVMAdapter) VMType() string { return types.VMTypeEVM }

// SupportsChain reports whether any endpoint is configured for chain
func (a *EVMAdapter) SupportsChain(chain *types.Chain) bool {
	return len(a.endpoints[chain.ID]) > 0
}

// GetBalance implements Adapter
func (a *EVMAdapter) GetBalance(ctx context.Context, chain *types.Chain, walletAddr, token string) (*big.Int, error) {
	if !common.IsHexAddress(walletAddr) {
		return nil, fmt.Errorf("invalid wallet address: %s", walletAddr)
	}
	owner := common.HexToAddress(walletAddr)

	client, err := a.client(ctx, chain.ID)
	if err != nil {
		return nil, err
	}

	var balance *big.Int
	if types.IsNativeAddress(token) {
		balance, err = client.BalanceAt(ctx, owner, nil)
	} else {
		balance, err = a.tokenBalance(ctx, client, token, owner)
	}
	if err != nil {
		if !nodeAnswered(err) {
			a.drop(chain.ID, client)
		}
		return nil, err
	}
	return balance, nil
}

// nodeAnswered reports whether err was returned by a reachable node, in which
// case the cached client stays.
func nodeAnswered(err error) bool {
	var rpcErr rpc.Error
	return errors.Is(err, errNotContract) ||
		errors.Is(err, wallet.ErrBadResult) ||
		errors.As(err, &rpcErr) ||
		wallet.IsRevert(err)
}

func (a *EVMAdapter) tokenBalance(ctx context.Context, client EVMClient, token string, owner common.Address) (*big.Int, error) {
	if !common.IsHexAddress(token) {
		return nil, fmt.Errorf("invalid token address: %s", token)
	}
	tokenAddr := common.HexToAddress(token)

	code, err := client.CodeAt(ctx, tokenAddr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get code: %w", err)
	}
	if len(code) == 0 {
		return nil, fmt.Errorf("%s: %w", token, errNotContract)
	}

	balance, err := wallet.BalanceOf(ctx, contractCaller{client}, tokenAddr, owner)
	if wallet.IsRevert(err) {
		a.logger.WithField("token", token).WithError(err).Debug("balanceOf reverted, reading as zero")
		return new(big.Int), nil
	}
	return balance, err
}

// client returns a cached healthy client, probing endpoints in order otherwise.
func (a *EVMAdapter) client(ctx context.Context, chainID int64) (EVMClient, error) {
	a.mu.Lock()
	if c, ok := a.clients[chainID]; ok {
		a.mu.Unlock()
		return c, nil
	}
	a.mu.Unlock()

	urls := a.endpoints[chainID]
	if len(urls) == 0 {
		return nil, fmt.Errorf("no RPC endpoints configured for chain %d", chainID)
	}

	var lastErr error
	for _, url := range urls {
		c, err := a.probe(ctx, url)
		if err != nil {
			a.logger.WithFields(logrus.Fields{"chain_id": chainID, "endpoint": url}).WithError(err).Debug("RPC endpoint failed")
			lastErr = err
			continue
		}

		a.mu.Lock()
		if existing, ok := a.clients[chainID]; ok {
			a.mu.Unlock()
			c.Close()
			return existing, nil
		}
		a.clients[chainID] = c
		a.mu.Unlock()
		return c, nil
	}
	return nil, fmt.Errorf("all RPC endpoints failed for chain %d: %w", chainID, lastErr)
}

func (a *EVMAdapter) probe(ctx context.Context, url string) (EVMClient, error) {
	ctx, cancel := context.WithTimeout(ctx, a.probeTimeout)
	defer cancel()

	c, err := a.dial(ctx, url)
	if err != nil {
		return nil, err
	}
	if _, err := c.BlockNumber(ctx); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (a *EVMAdapter) drop(chainID int64, c EVMClient) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.clients[chainID] == c {
		delete(a.clients, chainID)
		c.Close()
	}
}

// Close releases all cached clients
func (a *EVMAdapter) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for id, c := range a.clients {
		c.Close()
		delete(a.clients, id)
	}
}

type contractCaller struct {
	client EVMClient
}

func (c contractCaller) CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	return c.client.CallContract(ctx, msg, nil)
}
