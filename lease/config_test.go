package lease

import (
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

// defaultParamsFixture mirrors the shape of the protocol's published risk
// defaults, expressed as YAML the way the lending services configs are, so a
// reviewer can diff the golden values against the live EnsureDefaults table
// without reading Go literals.
const defaultParamsFixture = `
liability:
  initial_bps: 5000
  healthy_bps: 7000
  first_liq_warn_bps: 8500
  second_liq_warn_bps: 8700
  third_liq_warn_bps: 8900
  max_bps: 9000
  recalc_hours: 24
default_slippage_bps: 50
`

type liabilityFixture struct {
	InitialBps       uint32 `yaml:"initial_bps"`
	HealthyBps       uint32 `yaml:"healthy_bps"`
	FirstLiqWarnBps  uint32 `yaml:"first_liq_warn_bps"`
	SecondLiqWarnBps uint32 `yaml:"second_liq_warn_bps"`
	ThirdLiqWarnBps  uint32 `yaml:"third_liq_warn_bps"`
	MaxBps           uint32 `yaml:"max_bps"`
	RecalcHours      uint32 `yaml:"recalc_hours"`
}

type paramsFixture struct {
	Liability          liabilityFixture `yaml:"liability"`
	DefaultSlippageBps uint32           `yaml:"default_slippage_bps"`
}

func TestConfigDefaultsMatchPublishedFixture(t *testing.T) {
	var want paramsFixture
	if err := yaml.Unmarshal([]byte(defaultParamsFixture), &want); err != nil {
		t.Fatalf("failed to decode fixture: %v", err)
	}

	var cfg Config
	cfg.EnsureDefaults()

	got := cfg.DefaultLiability
	if got.InitialBps != want.Liability.InitialBps ||
		got.HealthyBps != want.Liability.HealthyBps ||
		got.FirstLiqWarnBps != want.Liability.FirstLiqWarnBps ||
		got.SecondLiqWarnBps != want.Liability.SecondLiqWarnBps ||
		got.ThirdLiqWarnBps != want.Liability.ThirdLiqWarnBps ||
		got.MaxBps != want.Liability.MaxBps {
		t.Fatalf("default liability thresholds drifted from published fixture: got %+v, want %+v", got, want.Liability)
	}
	if got.RecalcTime != time.Duration(want.Liability.RecalcHours)*time.Hour {
		t.Fatalf("default recalc window drifted: got %s, want %dh", got.RecalcTime, want.Liability.RecalcHours)
	}
	if cfg.DefaultSlippageBps != want.DefaultSlippageBps {
		t.Fatalf("default slippage drifted: got %d, want %d", cfg.DefaultSlippageBps, want.DefaultSlippageBps)
	}
}
