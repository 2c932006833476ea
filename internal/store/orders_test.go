package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestOrderRepository_CreateAndGet(t *testing.T) {
	client := requireTestDB(t)
	repo := NewOrderRepository(client)
	ctx := context.Background()

	orderID := "order-" + uuid.New().String()
	order := &Order{
		OrderID:         orderID,
		Seller:          "0xseller",
		Token:           "0xtoken",
		TotalAmount:     "1000",
		RemainingAmount: "1000",
		ExchangeRate:    "7.2",
		Rail:            RailAlipay,
		CreatedAt:       time.Now().UTC(),
		IsPublic:        true,
	}

	if err := repo.Create(ctx, order); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.Get(ctx, orderID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Seller != order.Seller || got.RemainingAmount != "1000" {
		t.Errorf("unexpected order: %+v", got)
	}
}

func TestOrderRepository_CreatePreservesPaymentInfoOnReplay(t *testing.T) {
	client := requireTestDB(t)
	repo := NewOrderRepository(client)
	ctx := context.Background()

	orderID := "order-" + uuid.New().String()
	order := &Order{
		OrderID: orderID, Seller: "0xseller", Token: "0xtoken",
		TotalAmount: "1000", RemainingAmount: "1000", ExchangeRate: "7.2",
		CreatedAt: time.Now().UTC(), IsPublic: true,
	}
	if err := repo.Create(ctx, order); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.UpdatePaymentInfo(ctx, orderID, "alice@example.com", "ALICE"); err != nil {
		t.Fatalf("UpdatePaymentInfo: %v", err)
	}

	// Replay of the same creation event must not clobber the payment info
	// set after it.
	if err := repo.Create(ctx, order); err != nil {
		t.Fatalf("Create (replay): %v", err)
	}

	got, err := repo.Get(ctx, orderID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.AccountID.String != "alice@example.com" {
		t.Errorf("expected accountId to survive replay, got %q", got.AccountID.String)
	}
}

func TestOrderRepository_AdjustRemainingAmount(t *testing.T) {
	client := requireTestDB(t)
	repo := NewOrderRepository(client)
	ctx := context.Background()

	orderID := "order-" + uuid.New().String()
	order := &Order{
		OrderID: orderID, Seller: "0xseller", Token: "0xtoken",
		TotalAmount: "1000", RemainingAmount: "1000", ExchangeRate: "7.2",
		CreatedAt: time.Now().UTC(), IsPublic: true,
	}
	if err := repo.Create(ctx, order); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := repo.AdjustRemainingAmount(ctx, orderID, "-300"); err != nil {
		t.Fatalf("AdjustRemainingAmount: %v", err)
	}
	got, err := repo.Get(ctx, orderID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.RemainingAmount != "700" {
		t.Errorf("remainingAmount = %s, want 700", got.RemainingAmount)
	}
}

func TestOrderRepository_GetNotFound(t *testing.T) {
	client := requireTestDB(t)
	repo := NewOrderRepository(client)
	if _, err := repo.Get(context.Background(), "no-such-order"); err != ErrOrderNotFound {
		t.Errorf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestOrderRepository_SetVisibility(t *testing.T) {
	client := requireTestDB(t)
	repo := NewOrderRepository(client)
	ctx := context.Background()

	orderID := "order-" + uuid.New().String()
	order := &Order{
		OrderID: orderID, Seller: "0xseller", Token: "0xtoken",
		TotalAmount: "1000", RemainingAmount: "1000", ExchangeRate: "7.2",
		CreatedAt: time.Now().UTC(), IsPublic: true,
	}
	if err := repo.Create(ctx, order); err != nil {
		t.Fatalf("Create: %v", err)
	}

	code, err := repo.SetVisibility(ctx, orderID, false)
	if err != nil {
		t.Fatalf("SetVisibility: %v", err)
	}
	if len(code) != 6 {
		t.Errorf("expected a 6-digit private code, got %q", code)
	}

	byCode, err := repo.GetByPrivateCode(ctx, code)
	if err != nil {
		t.Fatalf("GetByPrivateCode: %v", err)
	}
	if byCode.OrderID != orderID {
		t.Errorf("GetByPrivateCode returned wrong order: %s", byCode.OrderID)
	}
}
