package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/rpc"
)

// ApproveSelector is the 4-byte selector of approve(address,uint256)
const ApproveSelector = "0x095ea7b3"

// ERC20 functions used by the swap flow
const erc20ABI = `[
{"constant":true,"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"balance","type":"uint256"}],"type":"function"},
{"constant":true,"inputs":[{"name":"_owner","type":"address"},{"name":"_spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"type":"function"},
{"constant":false,"inputs":[{"name":"_spender","type":"address"},{"name":"_value","type":"uint256"}],"name":"approve","outputs":[{"name":"","type":"bool"}],"type":"function"},
{"constant":false,"inputs":[{"name":"_to","type":"address"},{"name":"_value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"type":"function"}
]`

var parsedERC20 = mustParseABI(erc20ABI)

// ErrBadResult is returned when a contract answers a read with data that does
// not decode as the expected value.
var ErrBadResult = errors.New("unexpected contract result")

// IsRevert reports whether err is a node reporting that a call reverted.
func IsRevert(err error) bool {
	if err == nil {
		return false
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == 3 {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "execution reverted")
}

// MaxUint256 is the largest unsigned 256-bit value
var MaxUint256 = new(big.Int).Set(math.MaxBig256)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("failed to parse ERC20 ABI: %v", err))
	}
	return parsed
}

// PackApprove encodes approve(spender, amount)
func PackApprove(spender common.Address, amount *big.Int) ([]byte, error) {
	return parsedERC20.Pack("approve", spender, amount)
}

// PackTransfer encodes transfer(to, amount)
func PackTransfer(to common.Address, amount *big.Int) ([]byte, error) {
	return parsedERC20.Pack("transfer", to, amount)
}

// BalanceOf reads an ERC20 balance
func BalanceOf(ctx context.Context, r ContractReader, token, owner common.Address) (*big.Int, error) {
	data, err := parsedERC20.Pack("balanceOf", owner)
	if err != nil {
		return nil, fmt.Errorf("failed to pack balanceOf data: %w", err)
	}
	return callUint256(ctx, r, token, data, "balanceOf")
}

// Allowance reads an ERC20 allowance
func Allowance(ctx context.Context, r ContractReader, token, owner, spender common.Address) (*big.Int, error) {
	data, err := parsedERC20.Pack("allowance", owner, spender)
	if err != nil {
		return nil, fmt.Errorf("failed to pack allowance data: %w", err)
	}
	return callUint256(ctx, r, token, data, "allowance")
}

func callUint256(ctx context.Context, r ContractReader, token common.Address, data []byte, method string) (*big.Int, error) {
	result, err := r.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data})
	if err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", method, err)
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("%w: %s returned no data", ErrBadResult, method)
	}

	values, err := parsedERC20.Unpack(method, result)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to unpack %s result: %v", ErrBadResult, method, err)
	}
	v, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%w: %s result type %T", ErrBadResult, method, values[0])
	}
	return v, nil
}

// ApproveSpender extracts the spender from approve() call data.
func ApproveSpender(callData string) (common.Address, bool) {
	if !strings.HasPrefix(strings.ToLower(callData), ApproveSelector) {
		return common.Address{}, false
	}
	b, err := hexutil.Decode(callData)
	if err != nil || len(b) < 4+32 {
		return common.Address{}, false
	}
	return common.BytesToAddress(b[4:36]), true
}
