package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"moleswap/pkg/types"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"
)

// Backend is the subset of an Ethereum node client the signer uses
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	TransactionReceipt(ctx context.Context, hash common.Hash) (*ethtypes.Receipt, error)
	Close()
}

// Dialer connects to an RPC endpoint
type Dialer func(ctx context.Context, url string) (Backend, error)

// DialEthClient dials an endpoint with go-ethereum's ethclient
func DialEthClient(ctx context.Context, url string) (Backend, error) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// KeySigner signs transactions locally with a private key and submits them to
// the RPC endpoints configured for the active chain
type KeySigner struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	endpoints  map[int64][]string
	dial       Dialer
	logger     *logrus.Logger

	mu      sync.Mutex
	chainID int64
	client  Backend
}

// KeySignerOption configures a KeySigner
type KeySignerOption func(*KeySigner)

// WithDialer overrides how endpoints are dialed
func WithDialer(d Dialer) KeySignerOption {
	return func(s *KeySigner) { s.dial = d }
}

// WithLogger sets the signer's logger
func WithLogger(l *logrus.Logger) KeySignerOption {
	return func(s *KeySigner) { s.logger = l }
}

// NewKeySigner creates a signer from a hex private key and per-chain RPC endpoints
func NewKeySigner(hexKey string, endpoints map[int64][]string, opts ...KeySignerOption) (*KeySigner, error) {
	if hexKey == "" {
		return nil, fmt.Errorf("private key not configured")
	}

	// Parse private key
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	s := &KeySigner{
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(privateKey.PublicKey),
		endpoints:  endpoints,
		dial:       DialEthClient,
		logger:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Address returns the signer's account
func (s *KeySigner) Address(ctx context.Context) (common.Address, error) {
	return s.address, nil
}

// ChainID returns the active chain
func (s *KeySigner) ChainID(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		return 0, ErrNotConnected
	}
	return s.chainID, nil
}

// SwitchChain connects to the first working endpoint of chainID.
// Chains without configured endpoints yield ErrUnrecognizedChain.
func (s *KeySigner) SwitchChain(ctx context.Context, chainID int64) error {
	urls := s.endpoints[chainID]
	if len(urls) == 0 {
		return fmt.Errorf("chain %d: %w", chainID, ErrUnrecognizedChain)
	}

	var lastErr error
	for _, url := range urls {
		client, err := s.dial(ctx, url)
		if err != nil {
			lastErr = err
			continue
		}

		// Verify the endpoint serves the chain we asked for
		id, err := client.ChainID(ctx)
		if err != nil {
			client.Close()
			lastErr = err
			continue
		}
		if id.Int64() != chainID {
			client.Close()
			lastErr = fmt.Errorf("endpoint %s serves chain %d", url, id.Int64())
			continue
		}

		s.mu.Lock()
		if s.client != nil {
			s.client.Close()
		}
		s.client = client
		s.chainID = chainID
		s.mu.Unlock()

		s.logger.WithFields(logrus.Fields{"chain_id": chainID, "endpoint": url}).Debug("Switched chain")
		return nil
	}

	return fmt.Errorf("failed to connect to chain %d: %w", chainID, lastErr)
}

func (s *KeySigner) backend() (Backend, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		return nil, 0, ErrNotConnected
	}
	return s.client, s.chainID, nil
}

// CallContract executes a read-only call on the active chain
func (s *KeySigner) CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	client, _, err := s.backend()
	if err != nil {
		return nil, err
	}
	return client.CallContract(ctx, msg, nil)
}

// TransactionReceipt looks up a receipt on the active chain
func (s *KeySigner) TransactionReceipt(ctx context.Context, hash common.Hash) (*ethtypes.Receipt, error) {
	client, _, err := s.backend()
	if err != nil {
		return nil, err
	}
	return client.TransactionReceipt(ctx, hash)
}

// SendTransaction signs req and broadcasts it on the active chain
func (s *KeySigner) SendTransaction(ctx context.Context, req types.TxRequest) (common.Hash, error) {
	client, chainID, err := s.backend()
	if err != nil {
		return common.Hash{}, err
	}
	if req.ChainID != 0 && req.ChainID != chainID {
		return common.Hash{}, fmt.Errorf("transaction targets chain %d but wallet is on chain %d", req.ChainID, chainID)
	}

	tx, err := s.buildTransaction(ctx, client, chainID, req)
	if err != nil {
		return common.Hash{}, err
	}

	// Sign transaction
	signedTx, err := ethtypes.SignTx(tx, ethtypes.LatestSignerForChainID(big.NewInt(chainID)), s.privateKey)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	// Send transaction
	if err := client.SendTransaction(ctx, signedTx); err != nil {
		return common.Hash{}, fmt.Errorf("failed to send transaction: %w", err)
	}

	s.logger.WithFields(logrus.Fields{"chain_id": chainID, "tx": signedTx.Hash().Hex()}).Info("Transaction sent")
	return signedTx.Hash(), nil
}

func (s *KeySigner) buildTransaction(ctx context.Context, client Backend, chainID int64, req types.TxRequest) (*ethtypes.Transaction, error) {
	if !common.IsHexAddress(req.To) {
		return nil, fmt.Errorf("invalid destination address: %s", req.To)
	}
	to := common.HexToAddress(req.To)

	value, err := parseQuantity(req.Value)
	if err != nil {
		return nil, fmt.Errorf("invalid value: %w", err)
	}

	var data []byte
	if req.Data != "" && req.Data != "0x" {
		data, err = hexutil.Decode(req.Data)
		if err != nil {
			return nil, fmt.Errorf("invalid call data: %w", err)
		}
	}

	// Get nonce
	nonce, err := client.PendingNonceAt(ctx, s.address)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}

	// Use the provided gas limit, otherwise estimate with a 20% buffer
	gasLimit, err := parseUint(req.Gas)
	if err != nil {
		return nil, fmt.Errorf("invalid gas limit: %w", err)
	}
	if gasLimit == 0 {
		estimated, err := client.EstimateGas(ctx, ethereum.CallMsg{From: s.address, To: &to, Value: value, Data: data})
		if err != nil {
			return nil, fmt.Errorf("failed to estimate gas: %w", err)
		}
		gasLimit = estimated * 120 / 100
	}

	maxFee, err := parseQuantity(req.MaxFeePerGas)
	if err != nil {
		return nil, fmt.Errorf("invalid max fee: %w", err)
	}

	// Legacy pricing unless the request carries EIP-1559 fees
	if maxFee.Sign() == 0 {
		gasPrice, err := client.SuggestGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get gas price: %w", err)
		}
		return ethtypes.NewTx(&ethtypes.LegacyTx{
			Nonce:    nonce,
			To:       &to,
			Value:    value,
			Gas:      gasLimit,
			GasPrice: gasPrice,
			Data:     data,
		}), nil
	}

	tip, err := parseQuantity(req.MaxPriorityFeePerGas)
	if err != nil {
		return nil, fmt.Errorf("invalid priority fee: %w", err)
	}
	if tip.Sign() == 0 {
		tip, err = client.SuggestGasTipCap(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get gas tip: %w", err)
		}
	}

	return ethtypes.NewTx(&ethtypes.DynamicFeeTx{
		ChainID:   big.NewInt(chainID),
		Nonce:     nonce,
		To:        &to,
		Value:     value,
		Gas:       gasLimit,
		GasFeeCap: maxFee,
		GasTipCap: tip,
		Data:      data,
	}), nil
}

// Close closes the client connection
func (s *KeySigner) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		s.client.Close()
		s.client = nil
	}
	return nil
}

// parseQuantity reads a decimal or 0x-prefixed hex integer; empty means zero.
func parseQuantity(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return new(big.Int), nil
	}
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s, base = s[2:], 16
		if s == "" {
			return new(big.Int), nil
		}
	}
	v, ok := new(big.Int).SetString(s, base)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid quantity %q", s)
	}
	return v, nil
}

func parseUint(s string) (uint64, error) {
	v, err := parseQuantity(s)
	if err != nil {
		return 0, err
	}
	if !v.IsUint64() {
		return 0, fmt.Errorf("quantity %s overflows uint64", v)
	}
	return v.Uint64(), nil
}
