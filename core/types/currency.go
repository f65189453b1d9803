package types

import (
	"fmt"
	"math/big"
)

// Currency is a tagged enum over the tickers this module understands. It
// replaces a visitor-style dispatch with a single switch at the two points
// that actually need typed behaviour: asset-denominated amounts and
// Lpn-denominated amounts.
type Currency uint8

const (
	// CurrencyUnknown is the zero value and is never valid on a persisted Coin.
	CurrencyUnknown Currency = iota
	CurrencyUSDC
	CurrencyATOM
	CurrencyOSMO
	CurrencyNHB
)

func (c Currency) String() string {
	switch c {
	case CurrencyUSDC:
		return "USDC"
	case CurrencyATOM:
		return "ATOM"
	case CurrencyOSMO:
		return "OSMO"
	case CurrencyNHB:
		return "NHB"
	default:
		return "UNKNOWN"
	}
}

// Decimals reports the number of minimal-unit decimal places used on the wire
// for the ticker, e.g. USDC trades in 6dp minimal units.
func (c Currency) Decimals() uint8 {
	switch c {
	case CurrencyUSDC:
		return 6
	case CurrencyATOM:
		return 6
	case CurrencyOSMO:
		return 6
	case CurrencyNHB:
		return 18
	default:
		return 0
	}
}

// ParseCurrency maps a bank or dex-native denom symbol to a Currency via the
// registry. Unknown tickers return CurrencyUnknown with an error so callers
// can surface a validation failure rather than silently mistyping an amount.
func ParseCurrency(symbol string) (Currency, error) {
	switch symbol {
	case "USDC":
		return CurrencyUSDC, nil
	case "ATOM":
		return CurrencyATOM, nil
	case "OSMO":
		return CurrencyOSMO, nil
	case "NHB":
		return CurrencyNHB, nil
	default:
		return CurrencyUnknown, fmt.Errorf("types: unknown currency %q", symbol)
	}
}

// Coin pairs a minimal-unit amount with its currency tag. Arithmetic helpers
// on Coin never mix currencies; callers that need cross-currency conversion
// go through a price quote explicitly.
type Coin struct {
	Amount   *big.Int
	Currency Currency
}

// NewCoin constructs a Coin, cloning amount so the caller's big.Int remains
// mutable without aliasing the stored value.
func NewCoin(amount *big.Int, currency Currency) Coin {
	if amount == nil {
		amount = big.NewInt(0)
	}
	return Coin{Amount: new(big.Int).Set(amount), Currency: currency}
}

// ZeroCoin returns a zero-valued coin in the given currency.
func ZeroCoin(currency Currency) Coin {
	return Coin{Amount: big.NewInt(0), Currency: currency}
}

// IsZero reports whether the coin amount is zero.
func (c Coin) IsZero() bool {
	return c.Amount == nil || c.Amount.Sign() == 0
}

// Add returns c+other. Panics if the currencies differ; callers are expected
// to have already validated currency compatibility at the boundary.
func (c Coin) Add(other Coin) Coin {
	if c.Currency != other.Currency {
		panic(fmt.Sprintf("types: currency mismatch %s != %s", c.Currency, other.Currency))
	}
	return NewCoin(new(big.Int).Add(c.Amount, other.Amount), c.Currency)
}

// Sub returns c-other, clamped at zero. Panics on currency mismatch.
func (c Coin) Sub(other Coin) Coin {
	if c.Currency != other.Currency {
		panic(fmt.Sprintf("types: currency mismatch %s != %s", c.Currency, other.Currency))
	}
	diff := new(big.Int).Sub(c.Amount, other.Amount)
	if diff.Sign() < 0 {
		diff.SetInt64(0)
	}
	return NewCoin(diff, c.Currency)
}

// Cmp compares amounts of two coins in the same currency.
func (c Coin) Cmp(other Coin) int {
	if c.Currency != other.Currency {
		panic(fmt.Sprintf("types: currency mismatch %s != %s", c.Currency, other.Currency))
	}
	return c.Amount.Cmp(other.Amount)
}

func (c Coin) String() string {
	if c.Amount == nil {
		return "0" + c.Currency.String()
	}
	return c.Amount.String() + c.Currency.String()
}
