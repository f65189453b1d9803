package lease

import "time"

// Config bundles the lease-specific sections the runtime config layer loads
// alongside the shared ambient Config (listen address, data dir, ...): risk
// defaults applied to new leases, DEX connection parameters, the default
// slippage policy, protocol fee routing, and the alarm recalculation
// window. Decoded from the same TOML file via a `[lease]` table.
type Config struct {
	DefaultLiability     Liability     `toml:"DefaultLiability"`
	DefaultSlippageBps   uint32        `toml:"DefaultSlippageBps"`
	ProtocolFeeBps       uint32        `toml:"ProtocolFeeBps"`
	DeveloperFeeBps      uint32        `toml:"DeveloperFeeBps"`
	MaxSubmitAttempts    uint32        `toml:"MaxSubmitAttempts"`
	AlarmRecalcWindow    time.Duration `toml:"AlarmRecalcWindow"`
	DexConnectionID      string        `toml:"DexConnectionID"`
	DexChannelID         string        `toml:"DexChannelID"`
}

// EnsureDefaults fills unset fields with the protocol's published defaults,
// following the lending module's config.EnsureDefaults pattern.
func (c *Config) EnsureDefaults() {
	if c.DefaultLiability == (Liability{}) {
		c.DefaultLiability = Liability{
			InitialBps:       5000,
			HealthyBps:       7000,
			FirstLiqWarnBps:  8500,
			SecondLiqWarnBps: 8700,
			ThirdLiqWarnBps:  8900,
			MaxBps:           9000,
			RecalcTime:       24 * time.Hour,
		}
	}
	if c.DefaultSlippageBps == 0 {
		c.DefaultSlippageBps = 50 // 0.5%
	}
	if c.MaxSubmitAttempts == 0 {
		c.MaxSubmitAttempts = maxSubmitAttempts
	}
	if c.AlarmRecalcWindow == 0 {
		c.AlarmRecalcWindow = c.DefaultLiability.RecalcTime
	}
}

// DefaultSlippage returns the protocol-wide default slippage calculator.
func (c Config) DefaultSlippage() SlippageCalculator {
	return AcceptUpToMaxSlippage{ToleranceBps: c.DefaultSlippageBps}
}
