package config

import (
	"fmt"
	"math/big"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML defaults files can use
// human-readable values ("30s", "2m") instead of raw nanoseconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// StaticDefaults holds the non-secret tunables this relay can start with
// before its first successful on-chain read (contract trade bounds and
// payment window), plus values with no on-chain analogue at all (gas
// policy, reconciler batching). Only the Contract section is used, to seed
// the ContractCache; the Gas and Reconciler sections are parsed but no
// component reads them. Every field is optional; a zero value is not an
// error.
type StaticDefaults struct {
	Contract struct {
		MinTradeValue string   `yaml:"min_trade_value"`
		MaxTradeValue string   `yaml:"max_trade_value"`
		PaymentWindow Duration `yaml:"payment_window"`
	} `yaml:"contract"`
	Gas struct {
		PriceCapWei int64 `yaml:"price_cap_wei"`
	} `yaml:"gas"`
	Reconciler struct {
		BatchBlocks  int      `yaml:"batch_blocks"`
		PollInterval Duration `yaml:"poll_interval"`
	} `yaml:"reconciler"`
}

// LoadStaticDefaults reads a YAML defaults file at path. A missing file is
// not an error — callers treat an empty StaticDefaults as "nothing
// configured, use hardcoded values everywhere".
func LoadStaticDefaults(path string) (*StaticDefaults, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &StaticDefaults{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read static defaults %s: %w", path, err)
	}
	var d StaticDefaults
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse static defaults %s: %w", path, err)
	}
	return &d, nil
}

// ContractParams converts the YAML contract bounds into a ContractCache
// seed snapshot, or nil if neither bound was configured.
func (d *StaticDefaults) ContractParams() *ContractParams {
	if d.Contract.MinTradeValue == "" && d.Contract.MaxTradeValue == "" {
		return nil
	}
	min, ok := new(big.Int).SetString(d.Contract.MinTradeValue, 10)
	if !ok {
		min = big.NewInt(0)
	}
	max, ok := new(big.Int).SetString(d.Contract.MaxTradeValue, 10)
	if !ok {
		max = big.NewInt(0)
	}
	return &ContractParams{
		MinTradeValue: min,
		MaxTradeValue: max,
		PaymentWindow: time.Duration(d.Contract.PaymentWindow),
	}
}
