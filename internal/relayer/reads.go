package relayer

import (
	"context"
	"fmt"
	"math/big"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/lyncz-relay/relay/internal/config"
)

// call packs method, performs a read-only eth_call against the escrow
// contract, and unpacks the result.
func (g *Gateway) call(ctx context.Context, method string, params ...interface{}) ([]interface{}, error) {
	callData, err := g.escrowABI.Pack(method, params...)
	if err != nil {
		return nil, fmt.Errorf("pack %s call: %w", method, err)
	}
	result, err := g.client.CallContract(ctx, ethereum.CallMsg{
		To:   &g.escrowAddr,
		Data: callData,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	outputs, err := g.escrowABI.Unpack(method, result)
	if err != nil {
		return nil, fmt.Errorf("unpack %s result: %w", method, err)
	}
	return outputs, nil
}

// orderField positions, named for readability at call sites below. The
// order tuple's field layout: 0 orderId, 1 seller, 2 token, 3 totalAmount,
// 4 remainingAmount, 5 exchangeRate, 6 rail, 7 accountLinesHash,
// 8 isPublic, 9 createdAt, 10 tokenDecimals.
const (
	orderFieldRemainingAmount = 4
	orderFieldAccountLinesHash = 7
)

// tradeField positions: 0 tradeId, 1 orderId, 2 buyer, 3 tokenAmount, 4 status.
const tradeFieldTokenAmount = 3

// OrderExists reports whether orderID has a remaining balance on-chain.
func (g *Gateway) OrderExists(ctx context.Context, orderID [32]byte) (bool, error) {
	out, err := g.call(ctx, "order", orderID)
	if err != nil {
		return false, err
	}
	remaining, ok := out[orderFieldRemainingAmount].(*big.Int)
	if !ok {
		return false, fmt.Errorf("order() field %d: unexpected type", orderFieldRemainingAmount)
	}
	return remaining.Sign() > 0, nil
}

// GetOrderHash returns the order's on-chain accountLinesHash (H_account),
// read directly from the contract rather than from the local projection —
// the validate step must compare against what the contract itself will
// check, not a possibly-stale copy.
func (g *Gateway) GetOrderHash(ctx context.Context, orderID [32]byte) ([32]byte, error) {
	out, err := g.call(ctx, "order", orderID)
	if err != nil {
		return [32]byte{}, err
	}
	hash, ok := out[orderFieldAccountLinesHash].([32]byte)
	if !ok {
		return [32]byte{}, fmt.Errorf("order() field %d: unexpected type", orderFieldAccountLinesHash)
	}
	return hash, nil
}

// TradeExists reports whether tradeID was actually created on-chain.
func (g *Gateway) TradeExists(ctx context.Context, tradeID [32]byte) (bool, error) {
	out, err := g.call(ctx, "trade", tradeID)
	if err != nil {
		return false, err
	}
	tokenAmount, ok := out[tradeFieldTokenAmount].(*big.Int)
	if !ok {
		return false, fmt.Errorf("trade() field %d: unexpected type", tradeFieldTokenAmount)
	}
	return tokenAmount.Sign() > 0, nil
}

// alipayRail is the rail index the verifiers() mapping uses for Alipay,
// the only rail implemented end to end today.
const alipayRail = uint8(0)

// GetAlipayPublicKeyHash fetches the currently registered signer
// fingerprint from the AlipayVerifier contract the escrow points at.
func (g *Gateway) GetAlipayPublicKeyHash(ctx context.Context) ([32]byte, error) {
	out, err := g.call(ctx, "verifiers", alipayRail)
	if err != nil {
		return [32]byte{}, err
	}
	verifierAddr, ok := out[0].(common.Address)
	if !ok {
		return [32]byte{}, fmt.Errorf("verifiers() result: unexpected type")
	}

	callData, err := g.verifierABI.Pack("publicKeyHash")
	if err != nil {
		return [32]byte{}, fmt.Errorf("pack publicKeyHash call: %w", err)
	}
	result, err := g.client.CallContract(ctx, ethereum.CallMsg{To: &verifierAddr, Data: callData}, nil)
	if err != nil {
		return [32]byte{}, fmt.Errorf("call publicKeyHash: %w", err)
	}
	out2, err := g.verifierABI.Unpack("publicKeyHash", result)
	if err != nil {
		return [32]byte{}, fmt.Errorf("unpack publicKeyHash result: %w", err)
	}
	hash, ok := out2[0].([32]byte)
	if !ok {
		return [32]byte{}, fmt.Errorf("publicKeyHash() result: unexpected type")
	}
	return hash, nil
}

// ReadParams implements config.ContractReader, backing the relay's
// ConfigCache with the escrow contract's own tunables.
func (g *Gateway) ReadParams(ctx context.Context) (*config.ContractParams, error) {
	out, err := g.call(ctx, "config")
	if err != nil {
		return nil, err
	}
	minTradeValue, ok1 := out[0].(*big.Int)
	maxTradeValue, ok2 := out[1].(*big.Int)
	paymentWindowSeconds, ok3 := out[2].(*big.Int)
	if !ok1 || !ok2 || !ok3 {
		return nil, fmt.Errorf("config() result: unexpected type")
	}
	return &config.ContractParams{
		MinTradeValue: minTradeValue,
		MaxTradeValue: maxTradeValue,
		PaymentWindow: time.Duration(paymentWindowSeconds.Int64()) * time.Second,
	}, nil
}
