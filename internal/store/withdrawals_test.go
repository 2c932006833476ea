package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestWithdrawalRepository_CreateAndGetByOrder(t *testing.T) {
	client := requireTestDB(t)
	ctx := context.Background()

	orderID := "order-" + uuid.New().String()
	err := NewOrderRepository(client).Create(ctx, &Order{
		OrderID: orderID, Seller: "0xseller", Token: "0xtoken",
		TotalAmount: "1000", RemainingAmount: "1000", ExchangeRate: "7.2",
		CreatedAt: time.Now().UTC(), IsPublic: true,
	})
	if err != nil {
		t.Fatalf("seed order: %v", err)
	}

	repo := NewWithdrawalRepository(client)
	if err := repo.Create(ctx, orderID, "200", "800", "0xwithdrawtx"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.Create(ctx, orderID, "100", "700", ""); err != nil {
		t.Fatalf("Create (no tx hash): %v", err)
	}

	list, err := repo.GetByOrder(ctx, orderID)
	if err != nil {
		t.Fatalf("GetByOrder: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 withdrawals, got %d", len(list))
	}
	// Newest first.
	if list[0].Amount != "100" || list[1].Amount != "200" {
		t.Errorf("unexpected ordering: %+v", list)
	}
	if list[1].TxHash.String != "0xwithdrawtx" {
		t.Errorf("tx hash not persisted: %+v", list[1])
	}
	if list[0].TxHash.Valid {
		t.Errorf("expected empty tx hash to be stored as NULL, got %+v", list[0].TxHash)
	}
}
