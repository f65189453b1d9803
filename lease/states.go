package lease

import (
	"leased/core/events"
)

// StateKind tags which lifecycle variant is persisted. Exactly one is at
// rest for a given Lease at any time (§3 invariant: exactly one persisted
// state variant at rest). Stored alongside a schema version so a future
// migration function can rewrite variants in place on contract upgrade.
type StateKind uint8

const (
	StateRequestLoan StateKind = iota
	StateOpeningIcaOpen
	StateOpeningTransferOut
	StateOpeningSwap
	StateOpenedActive
	StateOpenedRepay
	StateOpenedClose
	StateLiquidating
	StatePaidActive
	StateClosingTransferIn
	StateClosed
	StateLiquidated
)

func (k StateKind) String() string {
	switch k {
	case StateRequestLoan:
		return "RequestLoan"
	case StateOpeningIcaOpen:
		return "OpeningIcaOpen"
	case StateOpeningTransferOut:
		return "OpeningTransferOut"
	case StateOpeningSwap:
		return "OpeningSwap"
	case StateOpenedActive:
		return "OpenedActive"
	case StateOpenedRepay:
		return "OpenedRepay"
	case StateOpenedClose:
		return "OpenedClose"
	case StateLiquidating:
		return "Liquidating"
	case StatePaidActive:
		return "PaidActive"
	case StateClosingTransferIn:
		return "ClosingTransferIn"
	case StateClosed:
		return "Closed"
	case StateLiquidated:
		return "Liquidated"
	default:
		return "Unknown"
	}
}

// IsTerminal reports whether the state only accepts queries (Closed or
// Liquidated).
func (k StateKind) IsTerminal() bool {
	return k == StateClosed || k == StateLiquidated
}

// IsDexInFlight reports whether the state has an outstanding DEX submit and
// therefore enforces the single-in-flight rule against customer stimuli.
func (k StateKind) IsDexInFlight() bool {
	switch k {
	case StateOpeningIcaOpen, StateOpeningTransferOut, StateOpeningSwap,
		StateOpenedRepay, StateOpenedClose, StateLiquidating, StateClosingTransferIn:
		return true
	default:
		return false
	}
}

// State is the schema-versioned tagged union persisted for one lease. Every
// substate owns its data by value; no self-referential pointers.
type State struct {
	Version uint32
	Kind    StateKind

	// Task is populated whenever Kind.IsDexInFlight(), describing which ICA
	// leg is outstanding. RecoveryTask is populated instead when the task is
	// wrapped for channel recovery.
	Task         *DexTask
	RecoveryTask *InRecovery

	// Pending is set by the handler that submits a DEX leg together with its
	// self-addressed reply message; the next handler for the lease builds
	// its State without it (DexResponseTransferOut sets a fresh one for the
	// swap leg).
	Pending *ResponseDelivery
}

// Response is what every stimulus handler returns: the outgoing batch and
// the next persisted state. Built atomically; the runtime must observe
// both the batch and the state write, or neither.
type Response struct {
	Batch Batch
	Next  State
}

func newResponse(next State) Response {
	return Response{Next: next}
}

func (r *Response) emit(e events.Event) {
	r.Batch.Emit(e)
}

func (r *Response) send(m Message) {
	r.Batch.Add(m)
}
