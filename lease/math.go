package lease

import "math/big"

// Fixed-point helpers at ray (1e27) precision, ported from the liquidity
// pool's interest accrual math so LTV/interest arithmetic here uses the same
// rounding rules the lending engine already relies on.
var (
	bps     = big.NewInt(10_000)
	ray     = mustBigInt("1000000000000000000000000000")
	halfRay = new(big.Int).Rsh(ray, 1)

	secondsPerYear = big.NewInt(365 * 24 * 60 * 60)
)

func mustBigInt(value string) *big.Int {
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		panic("lease: invalid big integer constant " + value)
	}
	return v
}

func halfUp(x *big.Int) *big.Int {
	if x == nil || x.Sign() <= 0 {
		return big.NewInt(0)
	}
	half := new(big.Int).Add(x, big.NewInt(1))
	half.Rsh(half, 1)
	return half
}

// rayMul multiplies two ray-scaled fixed point values, rounding half up.
func rayMul(a, b *big.Int) *big.Int {
	if a == nil || b == nil {
		return big.NewInt(0)
	}
	product := new(big.Int).Mul(a, b)
	product.Add(product, halfRay)
	product.Quo(product, ray)
	return product
}

// rayDiv divides two ray-scaled fixed point values, rounding half up.
func rayDiv(a, b *big.Int) *big.Int {
	if a == nil || b == nil || b.Sign() == 0 {
		return big.NewInt(0)
	}
	numerator := new(big.Int).Mul(a, ray)
	numerator.Add(numerator, halfUp(b))
	numerator.Quo(numerator, b)
	return numerator
}

// bpsOf returns amount*bpsValue/10000, rounded half up. Used for LTV ratios
// and fee/collateral routing splits expressed in basis points.
func bpsOf(amount *big.Int, bpsValue uint32) *big.Int {
	if amount == nil || amount.Sign() == 0 || bpsValue == 0 {
		return big.NewInt(0)
	}
	scaled := new(big.Int).Mul(amount, big.NewInt(int64(bpsValue)))
	scaled.Add(scaled, halfUp(bps))
	scaled.Quo(scaled, bps)
	return scaled
}

// ltvBps computes the loan-to-value ratio of due over assetValue, expressed
// in basis points (10000 == 100%). Returns 0 when assetValue is zero.
func ltvBps(due, assetValue *big.Int) uint32 {
	if due == nil || due.Sign() <= 0 || assetValue == nil || assetValue.Sign() <= 0 {
		return 0
	}
	scaled := new(big.Int).Mul(due, bps)
	scaled.Add(scaled, halfUp(assetValue))
	scaled.Quo(scaled, assetValue)
	if !scaled.IsUint64() || scaled.Uint64() > uint64(^uint32(0)) {
		return ^uint32(0)
	}
	return uint32(scaled.Uint64())
}

// computeInterest computes principal accrued over elapsed seconds at the
// given annual rate (in basis points), using a big.Rat intermediate so the
// division by seconds-per-year never truncates prematurely. Mirrors the
// lending engine's accrueInterest widened-rational-intermediate approach.
func computeInterest(principal *big.Int, annualRateBps uint32, elapsedSeconds uint64) (*big.Int, error) {
	if principal == nil || principal.Sign() <= 0 || annualRateBps == 0 || elapsedSeconds == 0 {
		return big.NewInt(0), nil
	}
	if principal.BitLen() > 512 {
		return nil, ErrFinanceOverflow
	}
	rate := new(big.Rat).SetFrac(big.NewInt(int64(annualRateBps)), bps)
	elapsed := new(big.Rat).SetUint64(elapsedSeconds)
	perSecond := new(big.Rat).Quo(rate, new(big.Rat).SetInt(secondsPerYear))
	factor := new(big.Rat).Mul(perSecond, elapsed)
	interest := new(big.Rat).Mul(factor, new(big.Rat).SetInt(principal))
	if interest.Sign() < 0 {
		return big.NewInt(0), nil
	}
	num := interest.Num()
	den := interest.Denom()
	if den.Sign() == 0 {
		return nil, ErrFinanceOverflow
	}
	result := new(big.Int).Quo(new(big.Int).Add(num, halfUp(den)), den)
	if result.BitLen() > 512 {
		return nil, ErrFinanceOverflow
	}
	return result, nil
}

func minBigInt(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}
