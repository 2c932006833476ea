// Package reconciler polls the escrow contract's event log and replays it
// into the local store, keeping Order and Trade projections current and
// driving the activity timeline and notification dispatch.
package reconciler

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// escrowEventsABI describes every event this reconciler understands on the
// LyncZ escrow contract. Only the events are listed; the reconciler never
// calls into the contract, so no methods are needed here.
const escrowEventsABI = `[
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "name": "orderId", "type": "bytes32"},
			{"indexed": true, "name": "seller", "type": "address"},
			{"indexed": true, "name": "token", "type": "address"},
			{"indexed": false, "name": "totalAmount", "type": "uint256"},
			{"indexed": false, "name": "exchangeRate", "type": "uint256"},
			{"indexed": false, "name": "rail", "type": "uint8"},
			{"indexed": false, "name": "accountLinesHash", "type": "bytes32"},
			{"indexed": false, "name": "isPublic", "type": "bool"}
		],
		"name": "OrderCreated",
		"type": "event"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "name": "orderId", "type": "bytes32"},
			{"indexed": false, "name": "withdrawnAmount", "type": "uint256"},
			{"indexed": false, "name": "remainingAmount", "type": "uint256"}
		],
		"name": "OrderWithdrawn",
		"type": "event"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "name": "orderId", "type": "bytes32"},
			{"indexed": false, "name": "oldRate", "type": "uint256"},
			{"indexed": false, "name": "newRate", "type": "uint256"}
		],
		"name": "ExchangeRateUpdated",
		"type": "event"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "name": "orderId", "type": "bytes32"},
			{"indexed": false, "name": "oldHash", "type": "bytes32"},
			{"indexed": false, "name": "newHash", "type": "bytes32"}
		],
		"name": "AccountLinesHashUpdated",
		"type": "event"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "name": "tradeId", "type": "bytes32"},
			{"indexed": true, "name": "orderId", "type": "bytes32"},
			{"indexed": true, "name": "buyer", "type": "address"},
			{"indexed": false, "name": "token", "type": "address"},
			{"indexed": false, "name": "tokenAmount", "type": "uint256"},
			{"indexed": false, "name": "feeAmount", "type": "uint256"},
			{"indexed": false, "name": "fiatAmount", "type": "uint256"},
			{"indexed": false, "name": "expiresAt", "type": "uint256"}
		],
		"name": "TradeCreated",
		"type": "event"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "name": "tradeId", "type": "bytes32"},
			{"indexed": false, "name": "txIdHash", "type": "bytes32"}
		],
		"name": "TradeSettled",
		"type": "event"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "name": "tradeId", "type": "bytes32"},
			{"indexed": true, "name": "orderId", "type": "bytes32"},
			{"indexed": false, "name": "totalReturned", "type": "uint256"}
		],
		"name": "TradeExpired",
		"type": "event"
	}
]`

func parseEscrowABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(escrowEventsABI))
}

type orderCreatedEvent struct {
	OrderID          common.Hash
	Seller           common.Address
	Token            common.Address
	TotalAmount      *big.Int
	ExchangeRate     *big.Int
	Rail             uint8
	AccountLinesHash common.Hash
	IsPublic         bool
}

type orderWithdrawnEvent struct {
	OrderID          common.Hash
	WithdrawnAmount  *big.Int
	RemainingAmount  *big.Int
}

type exchangeRateUpdatedEvent struct {
	OrderID common.Hash
	OldRate *big.Int
	NewRate *big.Int
}

type accountLinesHashUpdatedEvent struct {
	OrderID common.Hash
	OldHash common.Hash
	NewHash common.Hash
}

type tradeCreatedEvent struct {
	TradeID     common.Hash
	OrderID     common.Hash
	Buyer       common.Address
	Token       common.Address
	TokenAmount *big.Int
	FeeAmount   *big.Int
	FiatAmount  *big.Int
	ExpiresAt   *big.Int
}

type tradeSettledEvent struct {
	TradeID  common.Hash
	TxIDHash common.Hash
}

type tradeExpiredEvent struct {
	TradeID       common.Hash
	OrderID       common.Hash
	TotalReturned *big.Int
}

func decodeOrderCreated(contractABI abi.ABI, log types.Log) (*orderCreatedEvent, error) {
	var out orderCreatedEvent
	if len(log.Topics) < 4 {
		return nil, errMalformedLog("OrderCreated", log)
	}
	out.OrderID = log.Topics[1]
	out.Seller = common.BytesToAddress(log.Topics[2].Bytes())
	out.Token = common.BytesToAddress(log.Topics[3].Bytes())

	values, err := contractABI.Unpack("OrderCreated", log.Data)
	if err != nil {
		return nil, err
	}
	out.TotalAmount, _ = values[0].(*big.Int)
	out.ExchangeRate, _ = values[1].(*big.Int)
	out.Rail, _ = values[2].(uint8)
	out.AccountLinesHash, _ = values[3].([32]byte)
	out.IsPublic, _ = values[4].(bool)
	return &out, nil
}

func decodeOrderWithdrawn(contractABI abi.ABI, log types.Log) (*orderWithdrawnEvent, error) {
	var out orderWithdrawnEvent
	if len(log.Topics) < 2 {
		return nil, errMalformedLog("OrderWithdrawn", log)
	}
	out.OrderID = log.Topics[1]
	values, err := contractABI.Unpack("OrderWithdrawn", log.Data)
	if err != nil {
		return nil, err
	}
	out.WithdrawnAmount, _ = values[0].(*big.Int)
	out.RemainingAmount, _ = values[1].(*big.Int)
	return &out, nil
}

func decodeExchangeRateUpdated(contractABI abi.ABI, log types.Log) (*exchangeRateUpdatedEvent, error) {
	var out exchangeRateUpdatedEvent
	if len(log.Topics) < 2 {
		return nil, errMalformedLog("ExchangeRateUpdated", log)
	}
	out.OrderID = log.Topics[1]
	values, err := contractABI.Unpack("ExchangeRateUpdated", log.Data)
	if err != nil {
		return nil, err
	}
	out.OldRate, _ = values[0].(*big.Int)
	out.NewRate, _ = values[1].(*big.Int)
	return &out, nil
}

func decodeAccountLinesHashUpdated(contractABI abi.ABI, log types.Log) (*accountLinesHashUpdatedEvent, error) {
	var out accountLinesHashUpdatedEvent
	if len(log.Topics) < 2 {
		return nil, errMalformedLog("AccountLinesHashUpdated", log)
	}
	out.OrderID = log.Topics[1]
	values, err := contractABI.Unpack("AccountLinesHashUpdated", log.Data)
	if err != nil {
		return nil, err
	}
	out.OldHash, _ = values[0].([32]byte)
	out.NewHash, _ = values[1].([32]byte)
	return &out, nil
}

func decodeTradeCreated(contractABI abi.ABI, log types.Log) (*tradeCreatedEvent, error) {
	var out tradeCreatedEvent
	if len(log.Topics) < 4 {
		return nil, errMalformedLog("TradeCreated", log)
	}
	out.TradeID = log.Topics[1]
	out.OrderID = log.Topics[2]
	out.Buyer = common.BytesToAddress(log.Topics[3].Bytes())

	values, err := contractABI.Unpack("TradeCreated", log.Data)
	if err != nil {
		return nil, err
	}
	out.Token, _ = values[0].(common.Address)
	out.TokenAmount, _ = values[1].(*big.Int)
	out.FeeAmount, _ = values[2].(*big.Int)
	out.FiatAmount, _ = values[3].(*big.Int)
	out.ExpiresAt, _ = values[4].(*big.Int)
	return &out, nil
}

func decodeTradeSettled(contractABI abi.ABI, log types.Log) (*tradeSettledEvent, error) {
	var out tradeSettledEvent
	if len(log.Topics) < 2 {
		return nil, errMalformedLog("TradeSettled", log)
	}
	out.TradeID = log.Topics[1]
	values, err := contractABI.Unpack("TradeSettled", log.Data)
	if err != nil {
		return nil, err
	}
	out.TxIDHash, _ = values[0].([32]byte)
	return &out, nil
}

func decodeTradeExpired(contractABI abi.ABI, log types.Log) (*tradeExpiredEvent, error) {
	var out tradeExpiredEvent
	if len(log.Topics) < 3 {
		return nil, errMalformedLog("TradeExpired", log)
	}
	out.TradeID = log.Topics[1]
	out.OrderID = log.Topics[2]
	values, err := contractABI.Unpack("TradeExpired", log.Data)
	if err != nil {
		return nil, err
	}
	out.TotalReturned, _ = values[0].(*big.Int)
	return &out, nil
}

func errMalformedLog(eventName string, log types.Log) error {
	return &malformedLogError{EventName: eventName, TxHash: log.TxHash.Hex()}
}

type malformedLogError struct {
	EventName string
	TxHash    string
}

func (e *malformedLogError) Error() string {
	return "reconciler: malformed " + e.EventName + " log in tx " + e.TxHash
}
