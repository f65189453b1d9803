package lease

import (
	"math/big"
	"time"

	"leased/core/types"
)

// Zone is the half-open LTV interval, in basis points, a lease currently
// occupies. Used to pick the next price-alarm band.
type Zone struct {
	LowerBps uint32
	UpperBps uint32 // exclusive; zoneFor never returns an edge above MaxBps
}

// Liability encodes the five monotonically ordered LTV thresholds that
// govern warnings and liquidation, plus the periodic recalculation window.
type Liability struct {
	InitialBps        uint32
	HealthyBps        uint32
	FirstLiqWarnBps   uint32
	SecondLiqWarnBps  uint32
	ThirdLiqWarnBps   uint32
	MaxBps            uint32
	RecalcTime        time.Duration
}

// Validate checks the ordering invariant: initial < healthy < first < second
// < third < max.
func (l Liability) Validate() error {
	thresholds := []uint32{l.InitialBps, l.HealthyBps, l.FirstLiqWarnBps, l.SecondLiqWarnBps, l.ThirdLiqWarnBps, l.MaxBps}
	for i := 1; i < len(thresholds); i++ {
		if thresholds[i-1] >= thresholds[i] {
			return Validationf("liability thresholds must be strictly increasing, got %v", thresholds)
		}
	}
	if l.MaxBps > 10_000 {
		return Validationf("liability max %d exceeds 100%%", l.MaxBps)
	}
	return nil
}

// ClosePolicy carries the customer-configurable take-profit/stop-loss LTV
// triggers. Either may be unset (nil).
type ClosePolicy struct {
	TakeProfitBps *uint32
	StopLossBps   *uint32
}

// Validate enforces tp < sl < liability.max, and that sl is bounded by 100%.
func (p ClosePolicy) Validate(liability Liability) error {
	if p.StopLossBps != nil {
		if *p.StopLossBps >= liability.MaxBps {
			return Validationf("stop_loss %d must be strictly below liability max %d", *p.StopLossBps, liability.MaxBps)
		}
		if *p.StopLossBps > 10_000 {
			return Validationf("stop_loss %d exceeds 100%%", *p.StopLossBps)
		}
	}
	if p.TakeProfitBps != nil {
		if *p.TakeProfitBps > 10_000 {
			return Validationf("take_profit %d exceeds 100%%", *p.TakeProfitBps)
		}
		if p.StopLossBps != nil && *p.TakeProfitBps >= *p.StopLossBps {
			return Validationf("take_profit %d must be strictly below stop_loss %d", *p.TakeProfitBps, *p.StopLossBps)
		}
	}
	return nil
}

// CloseTrigger identifies which close-policy condition fired.
type CloseTrigger uint8

const (
	CloseTriggerNone CloseTrigger = iota
	CloseTriggerTakeProfit
	CloseTriggerStopLoss
)

// LiquidationCause distinguishes a bad-debt liquidation from an overdue
// collection that exceeded the dust floor.
type LiquidationCause uint8

const (
	LiquidationCauseBadDebt LiquidationCause = iota
	LiquidationCauseOverdue
)

func (c LiquidationCause) String() string {
	switch c {
	case LiquidationCauseBadDebt:
		return "bad_debt"
	case LiquidationCauseOverdue:
		return "overdue"
	default:
		return "unknown"
	}
}

// Liquidation describes the amount the position must sell and whether the
// liquidation covers only part of the position or the whole of it.
type Liquidation struct {
	Full   bool
	Amount types.Coin // in Asset currency; ignored (whole position) when Full
	Cause  LiquidationCause
}

// DebtStatus is the classification returned by Position.Debt.
type DebtStatus struct {
	// Paid is true when the liability has been fully paid off.
	Paid bool
	// Zone is populated when Paid is false and no liquidation is due.
	Zone Zone
	// Liquidation is populated when the position is in a bad-debt or
	// overdue state that requires selling asset.
	Liquidation *Liquidation
}

// Spec bundles the policy parameters attached to a Position.
type Spec struct {
	Liability     Liability
	Close         ClosePolicy
	MinAsset      types.Coin // in Asset currency
	MinTransaction types.Coin // in Asset currency
}

// Position is the asset-denominated holding managed on the remote DEX via
// the lease's ICA account, together with its liquidation/close policy.
type Position struct {
	Amount types.Coin // held on the DEX, in Asset currency
	Spec   Spec
}

// assetValue converts the position amount to Lpn using assetPriceRay
// (minimal Lpn units per one minimal Asset unit, ray-scaled).
func (p Position) assetValue(assetPriceRay *big.Int) *big.Int {
	return rayMul(p.Amount.Amount, assetPriceRay)
}

// Debt classifies the current liability against the position's liability
// thresholds. due is the total outstanding (principal + accrued margin +
// accrued interest) in Lpn. assetPriceRay is the Asset/Lpn price, ray-scaled.
func (p Position) Debt(due *big.Int, assetPriceRay *big.Int) DebtStatus {
	if due == nil || due.Sign() <= 0 {
		return DebtStatus{Paid: true}
	}
	assetValue := p.assetValue(assetPriceRay)
	currentBps := ltvBps(due, assetValue)

	if currentBps < p.Spec.Liability.MaxBps {
		return DebtStatus{Zone: zoneFor(currentBps, p.Spec.Liability)}
	}

	liq := p.computeLiquidation(due, assetValue, assetPriceRay, LiquidationCauseBadDebt)
	return DebtStatus{Liquidation: &liq}
}

// zoneFor returns the half-open [lower, upper) LTV interval the ratio falls
// into among the liability's ordered thresholds.
func zoneFor(currentBps uint32, l Liability) Zone {
	edges := []uint32{0, l.InitialBps, l.HealthyBps, l.FirstLiqWarnBps, l.SecondLiqWarnBps, l.ThirdLiqWarnBps, l.MaxBps}
	for i := len(edges) - 1; i >= 0; i-- {
		if currentBps >= edges[i] {
			upper := l.MaxBps
			if i+1 < len(edges) {
				upper = edges[i+1]
			}
			return Zone{LowerBps: edges[i], UpperBps: upper}
		}
	}
	return Zone{LowerBps: 0, UpperBps: edges[1]}
}

// computeLiquidation computes the minimum asset amount that restores LTV
// from the current ratio down to healthy: target = (due - healthy*value) /
// (1 - healthy), expressed in Lpn then converted back to Asset via price.
// If the remaining position would drop below MinAsset, or the liquidation
// transaction itself is below MinTransaction, the liquidation is upgraded to
// Full.
func (p Position) computeLiquidation(due, assetValue, assetPriceRay *big.Int, cause LiquidationCause) Liquidation {
	healthyBps := big.NewInt(int64(p.Spec.Liability.HealthyBps))
	healthyValue := new(big.Int).Mul(assetValue, healthyBps)
	healthyValue.Quo(healthyValue, bps)

	numerator := new(big.Int).Sub(due, healthyValue)
	if numerator.Sign() <= 0 {
		return Liquidation{Full: false, Amount: types.ZeroCoin(p.Amount.Currency), Cause: cause}
	}
	denomBps := new(big.Int).Sub(bps, healthyBps)
	if denomBps.Sign() <= 0 {
		return Liquidation{Full: true, Cause: cause}
	}
	liquidationLpn := new(big.Int).Mul(numerator, bps)
	liquidationLpn.Quo(liquidationLpn, denomBps)

	liquidationAsset := rayDiv(liquidationLpn, assetPriceRay)
	if liquidationAsset.Cmp(p.Amount.Amount) >= 0 {
		return Liquidation{Full: true, Cause: cause}
	}

	remaining := new(big.Int).Sub(p.Amount.Amount, liquidationAsset)
	if p.Spec.MinAsset.Amount != nil && remaining.Cmp(p.Spec.MinAsset.Amount) < 0 {
		return Liquidation{Full: true, Cause: cause}
	}
	if p.Spec.MinTransaction.Amount != nil && liquidationAsset.Cmp(p.Spec.MinTransaction.Amount) < 0 {
		return Liquidation{Full: true, Cause: cause}
	}

	return Liquidation{
		Full:   false,
		Amount: types.NewCoin(liquidationAsset, p.Amount.Currency),
		Cause:  cause,
	}
}

// CheckOverdue evaluates an overdue-only liquidation path: triggered when
// accrued overdue, converted to Asset at the current price, reaches
// MinTransaction, independent of the LTV thresholds. The liquidation sells
// the overdue amount, upgraded to Full when the remainder would fall below
// MinAsset.
func (p Position) CheckOverdue(overdueDue *big.Int, assetPriceRay *big.Int) *Liquidation {
	if overdueDue == nil || overdueDue.Sign() <= 0 {
		return nil
	}
	if p.Spec.MinTransaction.Amount == nil {
		return nil
	}
	overdueAsset := rayDiv(overdueDue, assetPriceRay)
	if overdueAsset.Cmp(p.Spec.MinTransaction.Amount) < 0 {
		return nil
	}
	liq := Liquidation{Full: false, Amount: types.NewCoin(overdueAsset, p.Amount.Currency), Cause: LiquidationCauseOverdue}
	remaining := new(big.Int).Sub(p.Amount.Amount, overdueAsset)
	if remaining.Sign() <= 0 || (p.Spec.MinAsset.Amount != nil && remaining.Cmp(p.Spec.MinAsset.Amount) < 0) {
		liq = Liquidation{Full: true, Cause: LiquidationCauseOverdue}
	}
	return &liq
}

// CheckClose evaluates the customer's take-profit/stop-loss policy against
// the current LTV. Priority versus bad-debt liquidation is enforced by the
// caller (Debt is checked first).
func (p Position) CheckClose(due *big.Int, assetPriceRay *big.Int) CloseTrigger {
	if due == nil || due.Sign() <= 0 {
		return CloseTriggerNone
	}
	assetValue := p.assetValue(assetPriceRay)
	currentBps := ltvBps(due, assetValue)

	if p.Spec.Close.StopLossBps != nil && currentBps >= *p.Spec.Close.StopLossBps {
		return CloseTriggerStopLoss
	}
	if p.Spec.Close.TakeProfitBps != nil && currentBps <= *p.Spec.Close.TakeProfitBps {
		return CloseTriggerTakeProfit
	}
	return CloseTriggerNone
}

// ChangeClosePolicy validates a requested policy change against the current
// LTV and the liability's ordering rules, rejecting any change that would
// immediately fire.
func (p *Position) ChangeClosePolicy(next ClosePolicy, due *big.Int, assetPriceRay *big.Int) error {
	if err := next.Validate(p.Spec.Liability); err != nil {
		return err
	}
	trial := *p
	trial.Spec.Close = next
	if due != nil && due.Sign() > 0 {
		if trigger := trial.CheckClose(due, assetPriceRay); trigger != CloseTriggerNone {
			return ErrClosePolicyFires
		}
	}
	p.Spec.Close = next
	return nil
}
