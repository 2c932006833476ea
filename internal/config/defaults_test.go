package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadStaticDefaults_MissingFileIsNotAnError(t *testing.T) {
	d, err := LoadStaticDefaults(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.ContractParams() != nil {
		t.Fatal("expected nil ContractParams from an empty StaticDefaults")
	}
}

func TestLoadStaticDefaults_ParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "defaults.yaml")
	content := `
contract:
  min_trade_value: "1000"
  max_trade_value: "500000"
  payment_window: 30m
gas:
  price_cap_wei: 50000000
reconciler:
  batch_blocks: 200
  poll_interval: 6s
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	d, err := LoadStaticDefaults(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Gas.PriceCapWei != 50000000 {
		t.Fatalf("gas price cap = %d, want 50000000", d.Gas.PriceCapWei)
	}
	if d.Reconciler.BatchBlocks != 200 {
		t.Fatalf("batch blocks = %d, want 200", d.Reconciler.BatchBlocks)
	}
	if time.Duration(d.Reconciler.PollInterval) != 6*time.Second {
		t.Fatalf("poll interval = %s, want 6s", time.Duration(d.Reconciler.PollInterval))
	}

	params := d.ContractParams()
	if params == nil {
		t.Fatal("expected non-nil ContractParams")
	}
	if params.MinTradeValue.String() != "1000" || params.MaxTradeValue.String() != "500000" {
		t.Fatalf("unexpected bounds: %+v", params)
	}
	if params.PaymentWindow != 30*time.Minute {
		t.Fatalf("payment window = %s, want 30m", params.PaymentWindow)
	}
}
