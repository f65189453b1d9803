package lease

import "fmt"

// StateTransitioned is emitted on every successful stimulus, recording the
// state the lease left and the state it entered.
type StateTransitioned struct {
	LeaseID string
	From    string
	To      string
	Reason  string
}

func (e StateTransitioned) EventType() string { return "lease.state_transitioned" }

// LiquidationTriggered is emitted when Debt() returns a Liquidation, whether
// partial or full.
type LiquidationTriggered struct {
	LeaseID string
	Full    bool
	Cause   LiquidationCause
	Amount  string
}

func (e LiquidationTriggered) EventType() string { return "lease.liquidation_triggered" }

// ClosePolicyFired is emitted when a take-profit or stop-loss trigger fires.
type ClosePolicyFired struct {
	LeaseID string
	Trigger CloseTrigger
}

func (e ClosePolicyFired) EventType() string { return "lease.close_policy_fired" }

// RepaymentApplied is emitted after a repay stimulus is processed.
type RepaymentApplied struct {
	LeaseID string
	Receipt RepayReceipt
}

func (e RepaymentApplied) EventType() string { return "lease.repayment_applied" }

func (r RepayReceipt) String() string {
	return fmt.Sprintf("overdue_margin=%s overdue_interest=%s due_margin=%s due_interest=%s principal=%s change=%s close=%t",
		r.OverdueMarginPaid, r.OverdueInterestPaid, r.DueMarginPaid, r.DueInterestPaid, r.PrincipalPaid, r.Change, r.Close)
}

// DexAnomaly is emitted whenever the anomaly handler is invoked on a swap
// error or a below-minimum decoded out-amount.
type DexAnomaly struct {
	LeaseID  string
	Decision string // "retry" or "exit"
}

func (e DexAnomaly) EventType() string { return "lease.dex_anomaly" }

// ChannelRecovery is emitted when a DEX timeout is judged broken-channel and
// the lease enters InRecovery/IcaConnector.
type ChannelRecovery struct {
	LeaseID string
	Wrapped string // name of the substate being wrapped
}

func (e ChannelRecovery) EventType() string { return "lease.channel_recovery" }
