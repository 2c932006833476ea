package store

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestAccountEmailRepository_UpsertGetDelete(t *testing.T) {
	client := requireTestDB(t)
	repo := NewAccountEmailRepository(client)
	ctx := context.Background()

	wallet := "0x" + uuid.New().String()

	if _, err := repo.Upsert(ctx, wallet, "alice@example.com", LanguageEnglish); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, err := repo.Get(ctx, wallet)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Email != "alice@example.com" || got.Language != LanguageEnglish || !got.Enabled {
		t.Errorf("unexpected account email: %+v", got)
	}

	// Wallet lookups must be case-insensitive (always lowercased).
	got2, err := repo.Get(ctx, toUpper(wallet))
	if err != nil {
		t.Fatalf("Get (uppercased wallet): %v", err)
	}
	if got2.Wallet != got.Wallet {
		t.Errorf("case-insensitive lookup mismatch: %+v vs %+v", got2, got)
	}

	if err := repo.SetEnabled(ctx, wallet, false); err != nil {
		t.Fatalf("SetEnabled: %v", err)
	}
	if enabled, err := repo.GetIfEnabled(ctx, wallet); err != nil {
		t.Fatalf("GetIfEnabled: %v", err)
	} else if enabled != nil {
		t.Error("expected GetIfEnabled to return nil once disabled")
	}

	if err := repo.Delete(ctx, wallet); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.Get(ctx, wallet); err != ErrAccountEmailNotSet {
		t.Errorf("expected ErrAccountEmailNotSet after delete, got %v", err)
	}
}

func toUpper(s string) string {
	out := []byte(s)
	for i, c := range out {
		if c >= 'a' && c <= 'z' {
			out[i] = c - ('a' - 'A')
		}
	}
	return string(out)
}
