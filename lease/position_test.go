package lease

import (
	"math/big"
	"testing"
	"time"

	"leased/core/types"
)

func testLiability() Liability {
	return Liability{
		InitialBps:       5000,
		HealthyBps:       7000,
		FirstLiqWarnBps:  8500,
		SecondLiqWarnBps: 8700,
		ThirdLiqWarnBps:  8900,
		MaxBps:           9000,
		RecalcTime:       24 * time.Hour,
	}
}

func rayFromDecimal(t *testing.T, decimal string) *big.Int {
	t.Helper()
	r, ok := new(big.Rat).SetString(decimal)
	if !ok {
		t.Fatalf("invalid decimal %q", decimal)
	}
	return ratToRayForTest(r)
}

func ratToRayForTest(r *big.Rat) *big.Int {
	scaled := new(big.Rat).Mul(r, new(big.Rat).SetInt(ray))
	num := scaled.Num()
	den := scaled.Denom()
	return new(big.Int).Quo(num, den)
}

func TestPositionDebtHealthyZone(t *testing.T) {
	pos := Position{
		Amount: types.NewCoin(big.NewInt(300_000), types.CurrencyATOM),
		Spec: Spec{
			Liability:      testLiability(),
			MinAsset:       types.NewCoin(big.NewInt(1_000), types.CurrencyATOM),
			MinTransaction: types.NewCoin(big.NewInt(100), types.CurrencyATOM),
		},
	}
	due := big.NewInt(2_000_000)
	price := rayFromDecimal(t, "10") // 1 ATOM = 10 USDC

	status := pos.Debt(due, price)
	if status.Liquidation != nil {
		t.Fatalf("expected no liquidation, got %+v", status.Liquidation)
	}
	if status.Paid {
		t.Fatalf("expected unpaid debt")
	}
}

func TestPositionDebtPartialLiquidationOnPriceDrop(t *testing.T) {
	pos := Position{
		Amount: types.NewCoin(big.NewInt(300_000), types.CurrencyATOM),
		Spec: Spec{
			Liability:      testLiability(),
			MinAsset:       types.NewCoin(big.NewInt(1_000), types.CurrencyATOM),
			MinTransaction: types.NewCoin(big.NewInt(100), types.CurrencyATOM),
		},
	}
	due := big.NewInt(2_040_000) // principal + accrued margin/interest
	price := rayFromDecimal(t, "7.5")

	status := pos.Debt(due, price)
	if status.Liquidation == nil {
		t.Fatalf("expected a liquidation to be triggered")
	}
	if status.Liquidation.Full {
		t.Fatalf("expected partial liquidation, got full")
	}
	if status.Liquidation.Amount.Amount.Sign() <= 0 {
		t.Fatalf("expected a positive liquidation amount")
	}
}

func TestPositionDebtBelowMinAssetUpgradesToFull(t *testing.T) {
	pos := Position{
		Amount: types.NewCoin(big.NewInt(10_000), types.CurrencyATOM),
		Spec: Spec{
			Liability:      testLiability(),
			MinAsset:       types.NewCoin(big.NewInt(9_000), types.CurrencyATOM),
			MinTransaction: types.NewCoin(big.NewInt(1), types.CurrencyATOM),
		},
	}
	due := big.NewInt(90_000)
	price := rayFromDecimal(t, "10")

	status := pos.Debt(due, price)
	if status.Liquidation == nil || !status.Liquidation.Full {
		t.Fatalf("expected a full liquidation when remaining position would drop below min_asset, got %+v", status.Liquidation)
	}
}

func TestCheckCloseTakeProfitAndStopLoss(t *testing.T) {
	tp := uint32(3000)
	sl := uint32(8500)
	pos := Position{
		Amount: types.NewCoin(big.NewInt(300_000), types.CurrencyATOM),
		Spec: Spec{
			Liability: testLiability(),
			Close:     ClosePolicy{TakeProfitBps: &tp, StopLossBps: &sl},
		},
	}
	price := rayFromDecimal(t, "10")

	if trigger := pos.CheckClose(big.NewInt(250_000), price); trigger != CloseTriggerTakeProfit {
		t.Fatalf("expected take-profit trigger, got %v", trigger)
	}
	if trigger := pos.CheckClose(big.NewInt(2_560_000), price); trigger != CloseTriggerStopLoss {
		t.Fatalf("expected stop-loss trigger, got %v", trigger)
	}
	if trigger := pos.CheckClose(big.NewInt(2_000_000), price); trigger != CloseTriggerNone {
		t.Fatalf("expected no trigger, got %v", trigger)
	}
}

func TestClosePolicyValidateRejectsTakeProfitOver100PercentWithNoStopLoss(t *testing.T) {
	tooHigh := uint32(10_001)
	policy := ClosePolicy{TakeProfitBps: &tooHigh}

	if err := policy.Validate(testLiability()); err == nil {
		t.Fatalf("expected take_profit above 100%% to be rejected even with stop_loss unset")
	}
}

func TestClosePolicyValidateAcceptsTakeProfitAt100PercentWithNoStopLoss(t *testing.T) {
	atMax := uint32(10_000)
	policy := ClosePolicy{TakeProfitBps: &atMax}

	if err := policy.Validate(testLiability()); err != nil {
		t.Fatalf("expected take_profit at exactly 100%% to be accepted, got %v", err)
	}
}

func TestChangeClosePolicyRejectsImmediateFire(t *testing.T) {
	pos := Position{
		Amount: types.NewCoin(big.NewInt(300_000), types.CurrencyATOM),
		Spec:   Spec{Liability: testLiability()},
	}
	price := rayFromDecimal(t, "10")
	due := big.NewInt(2_000_000) // LTV ~6667bps

	tooHigh := uint32(7000) // would fire immediately (6667 <= 7000)
	err := pos.ChangeClosePolicy(ClosePolicy{TakeProfitBps: &tooHigh}, due, price)
	if err == nil {
		t.Fatalf("expected ChangeClosePolicy to reject an immediately-firing policy")
	}
}

func TestChangeClosePolicyRejectsBadOrdering(t *testing.T) {
	pos := Position{
		Amount: types.NewCoin(big.NewInt(300_000), types.CurrencyATOM),
		Spec:   Spec{Liability: testLiability()},
	}
	price := rayFromDecimal(t, "10")
	due := big.NewInt(2_000_000)

	sl := testLiability().MaxBps // sl must be strictly below max
	err := pos.ChangeClosePolicy(ClosePolicy{StopLossBps: &sl}, due, price)
	if err == nil {
		t.Fatalf("expected rejection of stop_loss == liability.max")
	}
}
