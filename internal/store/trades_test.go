package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func seedOrderForTrades(t *testing.T, ctx context.Context, client *Client) string {
	t.Helper()
	orderID := "order-" + uuid.New().String()
	err := NewOrderRepository(client).Create(ctx, &Order{
		OrderID: orderID, Seller: "0xseller", Token: "0xtoken",
		TotalAmount: "1000", RemainingAmount: "1000", ExchangeRate: "7.2",
		CreatedAt: time.Now().UTC(), IsPublic: true,
	})
	if err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return orderID
}

func TestTradeRepository_CreateAndGet(t *testing.T) {
	client := requireTestDB(t)
	ctx := context.Background()
	orderID := seedOrderForTrades(t, ctx, client)
	repo := NewTradeRepository(client)

	tradeID := "trade-" + uuid.New().String()
	trade := &Trade{
		TradeID: tradeID, OrderID: orderID, Buyer: "0xbuyer",
		TokenAmount: "100", CNYAmount: "720", FeeAmount: "1",
		CreatedAt: time.Now().UTC(), ExpiresAt: time.Now().Add(time.Hour).Unix(),
		Status: TradeStatusPending,
	}
	if err := repo.Create(ctx, trade); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.Get(ctx, tradeID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != TradeStatusPending || got.Buyer != "0xbuyer" {
		t.Errorf("unexpected trade: %+v", got)
	}
}

func TestTradeRepository_SettlementLifecycle(t *testing.T) {
	client := requireTestDB(t)
	ctx := context.Background()
	orderID := seedOrderForTrades(t, ctx, client)
	repo := NewTradeRepository(client)

	tradeID := "trade-" + uuid.New().String()
	trade := &Trade{
		TradeID: tradeID, OrderID: orderID, Buyer: "0xbuyer",
		TokenAmount: "100", CNYAmount: "720", FeeAmount: "1",
		CreatedAt: time.Now().UTC(), ExpiresAt: time.Now().Add(time.Hour).Unix(),
		Status: TradeStatusPending,
	}
	if err := repo.Create(ctx, trade); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := repo.SavePDF(ctx, tradeID, []byte("%PDF-1.4 fixture"), "receipt.pdf"); err != nil {
		t.Fatalf("SavePDF: %v", err)
	}
	if err := repo.UpdatePaymentInfo(ctx, tradeID, "txn-12345", "2026-07-31 10:00:00"); err != nil {
		t.Fatalf("UpdatePaymentInfo: %v", err)
	}
	if err := repo.SaveProof(ctx, tradeID, []byte{1}, []byte{2}, []byte{3}, "axiom-1", `{"ok":true}`); err != nil {
		t.Fatalf("SaveProof: %v", err)
	}
	if err := repo.UpdateStatus(ctx, tradeID, TradeStatusSettled); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if err := repo.UpdateSettlementTx(ctx, tradeID, "0xsettletx"); err != nil {
		t.Fatalf("UpdateSettlementTx: %v", err)
	}

	got, err := repo.Get(ctx, tradeID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != TradeStatusSettled {
		t.Errorf("status = %v, want settled", got.Status)
	}
	if got.TransactionID.String != "txn-12345" {
		t.Errorf("transactionId not persisted: %+v", got.TransactionID)
	}
	if got.AxiomProofID.String != "axiom-1" {
		t.Errorf("axiom proof id not persisted: %+v", got.AxiomProofID)
	}

	used, err := repo.IsTransactionIDUsed(ctx, "txn-12345")
	if err != nil {
		t.Fatalf("IsTransactionIDUsed: %v", err)
	}
	if !used {
		t.Error("expected transaction id to be marked used after settlement")
	}
}

func TestTradeRepository_ClearPDFAfterFailedValidation(t *testing.T) {
	client := requireTestDB(t)
	ctx := context.Background()
	orderID := seedOrderForTrades(t, ctx, client)
	repo := NewTradeRepository(client)

	tradeID := "trade-" + uuid.New().String()
	trade := &Trade{
		TradeID: tradeID, OrderID: orderID, Buyer: "0xbuyer",
		TokenAmount: "100", CNYAmount: "720", FeeAmount: "1",
		CreatedAt: time.Now().UTC(), ExpiresAt: time.Now().Add(time.Hour).Unix(),
		Status: TradeStatusPending,
	}
	if err := repo.Create(ctx, trade); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := repo.SavePDF(ctx, tradeID, []byte("bad pdf"), "receipt.pdf"); err != nil {
		t.Fatalf("SavePDF: %v", err)
	}
	if err := repo.UpdatePaymentInfo(ctx, tradeID, "txn-bad", "2026-07-31 10:00:00"); err != nil {
		t.Fatalf("UpdatePaymentInfo: %v", err)
	}

	if err := repo.ClearPDF(ctx, tradeID); err != nil {
		t.Fatalf("ClearPDF: %v", err)
	}

	got, err := repo.Get(ctx, tradeID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.PDFFile != nil || got.TransactionID.Valid {
		t.Errorf("expected pdf and transactionId cleared, got %+v", got)
	}
}

func TestTradeRepository_GetExpiredPendingTrades(t *testing.T) {
	client := requireTestDB(t)
	ctx := context.Background()
	orderID := seedOrderForTrades(t, ctx, client)
	repo := NewTradeRepository(client)

	tradeID := "trade-" + uuid.New().String()
	trade := &Trade{
		TradeID: tradeID, OrderID: orderID, Buyer: "0xbuyer",
		TokenAmount: "100", CNYAmount: "720", FeeAmount: "1",
		CreatedAt: time.Now().UTC(), ExpiresAt: time.Now().Add(-time.Minute).Unix(),
		Status: TradeStatusPending,
	}
	if err := repo.Create(ctx, trade); err != nil {
		t.Fatalf("Create: %v", err)
	}

	expired, err := repo.GetExpiredPendingTrades(ctx)
	if err != nil {
		t.Fatalf("GetExpiredPendingTrades: %v", err)
	}
	found := false
	for _, tr := range expired {
		if tr.TradeID == tradeID {
			found = true
		}
	}
	if !found {
		t.Error("expected newly created expired trade to appear in expired list")
	}
}
