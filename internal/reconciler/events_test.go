package reconciler

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

func TestParseEscrowABI_AllEventsPresent(t *testing.T) {
	contractABI, err := parseEscrowABI()
	if err != nil {
		t.Fatalf("parseEscrowABI: %v", err)
	}
	want := []string{
		"OrderCreated", "OrderWithdrawn", "ExchangeRateUpdated",
		"AccountLinesHashUpdated", "TradeCreated", "TradeSettled", "TradeExpired",
	}
	for _, name := range want {
		if _, ok := contractABI.Events[name]; !ok {
			t.Errorf("missing event %s in parsed ABI", name)
		}
	}
}

func TestDecodeOrderWithdrawn(t *testing.T) {
	contractABI, err := parseEscrowABI()
	if err != nil {
		t.Fatalf("parseEscrowABI: %v", err)
	}
	event := contractABI.Events["OrderWithdrawn"]

	data, err := event.Inputs.NonIndexed().Pack(big.NewInt(200), big.NewInt(800))
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	orderID := common.HexToHash("0x01")

	l := types.Log{
		Topics: []common.Hash{event.ID, orderID},
		Data:   data,
	}

	out, err := decodeOrderWithdrawn(contractABI, l)
	if err != nil {
		t.Fatalf("decodeOrderWithdrawn: %v", err)
	}
	if out.OrderID != orderID {
		t.Errorf("OrderID = %s, want %s", out.OrderID.Hex(), orderID.Hex())
	}
	if out.WithdrawnAmount.Cmp(big.NewInt(200)) != 0 {
		t.Errorf("WithdrawnAmount = %s, want 200", out.WithdrawnAmount)
	}
	if out.RemainingAmount.Cmp(big.NewInt(800)) != 0 {
		t.Errorf("RemainingAmount = %s, want 800", out.RemainingAmount)
	}
}

func TestDecodeOrderWithdrawn_MalformedLog(t *testing.T) {
	contractABI, err := parseEscrowABI()
	if err != nil {
		t.Fatalf("parseEscrowABI: %v", err)
	}
	l := types.Log{Topics: []common.Hash{contractABI.Events["OrderWithdrawn"].ID}}

	if _, err := decodeOrderWithdrawn(contractABI, l); err == nil {
		t.Error("expected an error for a log missing its orderId topic")
	}
}

func TestDecodeTradeSettled(t *testing.T) {
	contractABI, err := parseEscrowABI()
	if err != nil {
		t.Fatalf("parseEscrowABI: %v", err)
	}
	event := contractABI.Events["TradeSettled"]

	var txIDHash [32]byte
	copy(txIDHash[:], []byte("fake-tx-id-hash-for-test-xxxxxx"))
	data, err := event.Inputs.NonIndexed().Pack(txIDHash)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	tradeID := common.HexToHash("0x02")

	l := types.Log{
		Topics: []common.Hash{event.ID, tradeID},
		Data:   data,
	}

	out, err := decodeTradeSettled(contractABI, l)
	if err != nil {
		t.Fatalf("decodeTradeSettled: %v", err)
	}
	if out.TradeID != tradeID {
		t.Errorf("TradeID = %s, want %s", out.TradeID.Hex(), tradeID.Hex())
	}
	if out.TxIDHash != txIDHash {
		t.Errorf("TxIDHash mismatch")
	}
}

func TestDivideBy100(t *testing.T) {
	cases := []struct {
		in   *big.Int
		want string
	}{
		{big.NewInt(720), "7.20"},
		{big.NewInt(5), "0.05"},
		{big.NewInt(10000), "100.00"},
	}
	for _, c := range cases {
		if got := divideBy100(c.in); got != c.want {
			t.Errorf("divideBy100(%s) = %s, want %s", c.in, got, c.want)
		}
	}
}
