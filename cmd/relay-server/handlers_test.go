package main

import (
	"database/sql"
	"testing"
	"time"

	"github.com/lyncz-relay/relay/internal/store"
)

func TestNullStr(t *testing.T) {
	if got := nullStr(sql.NullString{}); got != "" {
		t.Fatalf("nullStr(zero value) = %q, want empty", got)
	}
	if got := nullStr(sql.NullString{String: "abc", Valid: true}); got != "abc" {
		t.Fatalf("nullStr(valid) = %q, want abc", got)
	}
}

func TestToOrderDTO(t *testing.T) {
	o := &store.Order{
		OrderID:         "0xorder",
		Seller:          "0xseller",
		Token:           "0xtoken",
		TotalAmount:     "1000",
		RemainingAmount: "500",
		ExchangeRate:    "720",
		Rail:            store.RailAlipay,
		AccountName:     sql.NullString{String: "Jane Doe", Valid: true},
		IsPublic:        true,
	}
	dto := toOrderDTO(o)
	if dto.AccountName != "Jane Doe" || dto.RemainingAmount != "500" || !dto.IsPublic {
		t.Fatalf("unexpected dto: %+v", dto)
	}
}

func TestToTradeDTO(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	tr := &store.Trade{
		TradeID:          "0xtrade",
		OrderID:          "0xorder",
		Buyer:            "0xbuyer",
		TokenAmount:      "100",
		CNYAmount:        "720",
		FeeAmount:        "1",
		Status:           store.TradeStatusSettled,
		CreatedAt:        now,
		ExpiresAt:        now.Unix() + 1800,
		SettlementTxHash: sql.NullString{String: "0xtx", Valid: true},
	}
	dto := toTradeDTO(tr)
	if dto.SettlementTxHash != "0xtx" || dto.Status != int32(store.TradeStatusSettled) {
		t.Fatalf("unexpected dto: %+v", dto)
	}
	if dto.CreatedAt != now.Unix() {
		t.Fatalf("createdAt = %d, want %d", dto.CreatedAt, now.Unix())
	}
}
