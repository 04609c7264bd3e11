package oneclick

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"moleswap/pkg/amount"
	"moleswap/pkg/payload"
	"moleswap/pkg/types"
	"moleswap/pkg/wallet"

	sdk "github.com/defuse-protocol/one-click-sdk-go"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// DepositStepID names the single step of a 1Click quote
const DepositStepID = "deposit"

// GetQuote requests a quote. A request without a connected wallet is quoted
// dry, so no deposit address is reserved for it.
func (c *Client) GetQuote(ctx context.Context, req types.QuoteRequest) (*types.Quote, error) {
	origin, err := c.FindToken(ctx, req.OriginChainID, req.OriginCurrency)
	if err != nil {
		return nil, fmt.Errorf("source token error: %w", err)
	}
	dest, err := c.FindToken(ctx, req.DestinationChainID, req.DestinationCurrency)
	if err != nil {
		return nil, fmt.Errorf("destination token error: %w", err)
	}

	dry := strings.EqualFold(req.User, types.PlaceholderUser)
	recipient := req.Recipient
	if recipient == "" {
		recipient = req.User
	}

	quoteReq := sdk.NewQuoteRequest(
		dry,                          // dry
		"EXACT_INPUT",                // swapType
		100,                          // slippageTolerance (1%)
		origin.GetAssetId(),          // originAsset
		"ORIGIN_CHAIN",               // depositType
		dest.GetAssetId(),            // destinationAsset
		req.Amount,                   // amount in smallest unit
		req.User,                     // refundTo
		"ORIGIN_CHAIN",               // refundType
		recipient,                    // recipient
		"DESTINATION_CHAIN",          // recipientType
		time.Now().Add(24*time.Hour), // deadline
	)

	resp, httpResp, err := c.api.OneClickAPI.GetQuote(c.authorize(ctx)).QuoteRequest(*quoteReq).Execute()
	if err != nil {
		return nil, apiError("failed to get quote from API", httpResp, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, fmt.Errorf("API returned status code %d", httpResp.StatusCode)
	}
	if resp == nil {
		return nil, fmt.Errorf("empty quote response")
	}

	q := resp.GetQuote()
	offer := Offer{
		DepositAddress:     q.GetDepositAddress(),
		AmountInFormatted:  q.GetAmountInFormatted(),
		AmountOutFormatted: q.GetAmountOutFormatted(),
		AmountInUSD:        q.GetAmountInUsd(),
		AmountOutUSD:       q.GetAmountOutUsd(),
		TimeEstimate:       int(math.Ceil(float64(q.GetTimeEstimate()))),
	}
	if q.HasDepositMemo() {
		offer.DepositMemo = q.GetDepositMemo()
	}

	return offer.Quote(req, int(dest.GetDecimals()))
}

// Offer is the part of a 1Click quote the swap flow uses
type Offer struct {
	DepositAddress     string
	DepositMemo        string
	AmountInFormatted  string
	AmountOutFormatted string
	AmountInUSD        string
	AmountOutUSD       string
	TimeEstimate       int
}

// Quote converts the offer into a quote whose only step sends req.Amount of
// the origin currency to the deposit address.
func (o Offer) Quote(req types.QuoteRequest, destDecimals int) (*types.Quote, error) {
	details := map[string]payload.Value{
		"depositAddress":     payload.NewString(o.DepositAddress),
		"amountInFormatted":  payload.NewString(o.AmountInFormatted),
		"amountOutFormatted": payload.NewString(o.AmountOutFormatted),
		"sender":             payload.NewString(req.User),
		"recipient":          payload.NewString(req.Recipient),
	}
	if o.DepositMemo != "" {
		details["depositMemo"] = payload.NewString(o.DepositMemo)
	}

	quote := &types.Quote{
		ExpectedOutput: amount.ToBaseUnits(o.AmountOutFormatted, destDecimals),
		TimeEstimate:   o.TimeEstimate,
		Route:          "NEAR Intents",
		Operation:      "swap",
		InputUSD:       o.AmountInUSD,
		OutputUSD:      o.AmountOutUSD,
		User:           req.User,
		Recipient:      req.Recipient,
		Details:        payload.NewObject(details),
	}

	if o.DepositAddress == "" {
		return quote, nil
	}
	step, err := DepositStep(req, o.DepositAddress)
	if err != nil {
		return nil, err
	}
	quote.Steps = []types.Step{step}
	return quote, nil
}

// DepositStep builds the transfer of req.Amount to depositAddress: a plain
// value transfer for native currency, an ERC-20 transfer otherwise.
func DepositStep(req types.QuoteRequest, depositAddress string) (types.Step, error) {
	if !common.IsHexAddress(depositAddress) {
		return types.Step{}, fmt.Errorf("deposit address %q is not an EVM address", depositAddress)
	}
	value, ok := amount.Parse(req.Amount)
	if !ok {
		return types.Step{}, fmt.Errorf("invalid amount %q", req.Amount)
	}

	tx := map[string]payload.Value{
		"from":    payload.NewString(req.User),
		"chainId": payload.NewNumber(jsonInt(req.OriginChainID)),
	}
	if types.IsNativeAddress(req.OriginCurrency) {
		tx["to"] = payload.NewString(common.HexToAddress(depositAddress).Hex())
		tx["value"] = payload.NewString(value.String())
		tx["data"] = payload.NewString("0x")
	} else {
		data, err := wallet.PackTransfer(common.HexToAddress(depositAddress), value)
		if err != nil {
			return types.Step{}, fmt.Errorf("failed to pack transfer data: %w", err)
		}
		tx["to"] = payload.NewString(common.HexToAddress(req.OriginCurrency).Hex())
		tx["value"] = payload.NewString("0")
		tx["data"] = payload.NewString(hexutil.Encode(data))
	}

	return types.Step{
		ID:          DepositStepID,
		Name:        "Deposit",
		Action:      "Confirm deposit",
		Description: "Send funds to the 1Click deposit address",
		Kind:        "transaction",
		RequestID:   depositAddress,
		CallData:    tx["data"].Str(),
		Items: []types.StepItem{{
			Status: "incomplete",
			Data:   payload.NewObject(tx),
		}},
	}, nil
}

func jsonInt(v int64) json.Number {
	return json.Number(strconv.FormatInt(v, 10))
}

func sameAsset(listed, wanted string) bool {
	if types.IsNativeAddress(wanted) {
		return listed == "" || types.IsNativeAddress(listed)
	}
	return strings.EqualFold(listed, wanted)
}
