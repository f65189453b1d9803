package lease

import (
	"fmt"
	"math/big"
	"time"
)

// ConnectionParams are the persisted IBC connection/channel identifiers and
// ICA host account used for every DEX submit this lease issues.
type ConnectionParams struct {
	ConnectionID string
	ChannelID    string
	IcaAddress   string
}

// DexTaskKind identifies which leg of the open/close pipeline a DexTask
// represents. Every substate owns its data by value; none hold a
// self-referential pointer to a parent state, per the hierarchical-state
// design note.
type DexTaskKind uint8

const (
	DexTaskIcaOpen DexTaskKind = iota
	DexTaskTransferOut
	DexTaskSwap
	DexTaskTransferIn
)

func (k DexTaskKind) String() string {
	switch k {
	case DexTaskIcaOpen:
		return "IcaOpen"
	case DexTaskTransferOut:
		return "TransferOut"
	case DexTaskSwap:
		return "Swap"
	case DexTaskTransferIn:
		return "TransferIn"
	default:
		return "Unknown"
	}
}

// maxSubmitAttempts bounds the EntryDelay nonce-advance retry loop before a
// timeout is treated as a suspected broken channel rather than a transient
// one.
const maxSubmitAttempts = 3

// DexTask is the in-flight substate for one ICA transaction: which leg it
// is, how many submit attempts have been made (the EntryDelay nonce), and
// the minimum acceptable output for a Swap leg.
type DexTask struct {
	Kind        DexTaskKind
	Attempts    uint32
	Conn        ConnectionParams
	MinOutput   *big.Int // only meaningful for DexTaskSwap
	SubmittedAt time.Time

	// LiquidatedAmount/LiquidatedFull are only meaningful for the
	// DexTaskSwap issued out of Liquidating: the asset amount being sold
	// and whether the triggering Liquidation was a full close. Carried on
	// the task itself so SettleLiquidation does not depend on its caller
	// re-deriving or re-supplying them.
	LiquidatedAmount *big.Int
	LiquidatedFull   bool
}

// InRecovery wraps a DexTask whose channel is suspected broken; an
// IcaConnector reopen must succeed before the wrapped task resumes.
type InRecovery struct {
	Wrapped DexTask
}

// SlippageCalculator computes the min_output a swap request must carry.
type SlippageCalculator interface {
	MinOutput(quotedOutput *big.Int) *big.Int
}

// AcceptAnyNonZeroSwap accepts any strictly-positive out-amount.
type AcceptAnyNonZeroSwap struct{}

func (AcceptAnyNonZeroSwap) MinOutput(quotedOutput *big.Int) *big.Int {
	return big.NewInt(1)
}

// AcceptUpToMaxSlippage rejects swaps whose out-amount falls short of the
// quoted amount by more than ToleranceBps, grounded on the escrow engine's
// ensureSlippage cross-multiplication check.
type AcceptUpToMaxSlippage struct {
	ToleranceBps uint32
}

func (c AcceptUpToMaxSlippage) MinOutput(quotedOutput *big.Int) *big.Int {
	if quotedOutput == nil || quotedOutput.Sign() <= 0 {
		return big.NewInt(0)
	}
	keepBps := uint32(10_000)
	if c.ToleranceBps < keepBps {
		keepBps -= c.ToleranceBps
	} else {
		keepBps = 0
	}
	return bpsOf(quotedOutput, keepBps)
}

// ensureSlippage reports an error if actualOutput falls below minOutput.
// Mirrors native/escrow's ensureSlippage bound check.
func ensureSlippage(actualOutput, minOutput *big.Int) error {
	if actualOutput == nil || minOutput == nil {
		return fmt.Errorf("%w: missing swap amounts", ErrDecode)
	}
	if actualOutput.Cmp(minOutput) < 0 {
		return fmt.Errorf("%w: swap output %s below minimum %s", ErrDexError, actualOutput, minOutput)
	}
	return nil
}

// SwapResult is the handler-defined outcome an AnomalyHandler may resolve
// an anomaly into when it chooses to Exit rather than Retry.
type SwapResult struct {
	Aborted bool
	Reason  string
}

// AnomalyDecision is returned by AnomalyHandler.OnAnomaly: either retry the
// same task (possibly with a fresh nonce) or exit with a result.
type AnomalyDecision struct {
	Retry  bool
	Task   DexTask
	Result SwapResult
}

// AnomalyHandler decides how to respond to a swap error or a decoded
// out-amount that fails the slippage bound.
type AnomalyHandler interface {
	OnAnomaly(task DexTask, err error) AnomalyDecision
}

// RetryThenExit retries up to MaxAttempts, then exits, grounded on the
// oracle aggregator's priority-fallback-then-give-up behavior.
type RetryThenExit struct {
	MaxAttempts uint32
}

func (h RetryThenExit) OnAnomaly(task DexTask, err error) AnomalyDecision {
	if h.MaxAttempts == 0 {
		h.MaxAttempts = maxSubmitAttempts
	}
	if task.Attempts < h.MaxAttempts {
		next := task
		next.Attempts++
		return AnomalyDecision{Retry: true, Task: next}
	}
	return AnomalyDecision{Retry: false, Result: SwapResult{Aborted: true, Reason: err.Error()}}
}

// onTimeout implements the §4.2 timeout policy: retry with a fresh
// timestamp while channel health is presumed fine (attempts below the
// EntryDelay bound), otherwise wrap the task for channel recovery.
func onTimeout(task DexTask, now time.Time) (retry DexTask, recover bool) {
	if task.Attempts+1 < maxSubmitAttempts {
		next := task
		next.Attempts++
		next.SubmittedAt = now
		return next, false
	}
	return task, true
}
