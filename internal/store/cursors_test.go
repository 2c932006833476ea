package store

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestCursorRepository_GetAdvance(t *testing.T) {
	client := requireTestDB(t)
	repo := NewCursorRepository(client)
	ctx := context.Background()

	contract := "0x" + uuid.New().String()

	if _, ok, err := repo.Get(ctx, contract); err != nil {
		t.Fatalf("Get: %v", err)
	} else if ok {
		t.Fatal("expected no cursor for a fresh contract address")
	}

	if err := repo.Advance(ctx, contract, 100); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	block, ok, err := repo.Get(ctx, contract)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok || block != 100 {
		t.Fatalf("expected cursor at 100, got %d (ok=%v)", block, ok)
	}

	// Monotonicity: advancing backwards must not regress the cursor.
	if err := repo.Advance(ctx, contract, 50); err != nil {
		t.Fatalf("Advance (regress attempt): %v", err)
	}
	block, _, err = repo.Get(ctx, contract)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if block != 100 {
		t.Errorf("cursor regressed to %d, want it pinned at 100", block)
	}
}
