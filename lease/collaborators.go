package lease

import (
	"strconv"

	"leased/crypto"
)

// A collaborator handle carries only an address and a small configuration
// snapshot; it never owns the collaborator's storage and never mutates the
// lease directly. Construction validates the address; every subsequent call
// just packages an outgoing Message. The collaborator's own implementation
// may evolve independently of this module.

// LppHandle addresses the liquidity pool that supplied the loan and accepts
// repayment.
type LppHandle struct {
	Address crypto.Address
}

// OpenLoan builds the outgoing OpenLoan{amount} message.
func (h LppHandle) OpenLoan(amountLpn string) Message {
	return Message{To: h.Address, Kind: MsgOpenLoan, Payload: map[string]string{"amount": amountLpn}}
}

// RepayLoan builds the outgoing RepayLoan{} message.
func (h LppHandle) RepayLoan(amountLpn string) Message {
	return Message{To: h.Address, Kind: MsgRepayLoan, Payload: map[string]string{"amount": amountLpn}}
}

// OracleHandle addresses the price oracle: spot/base price queries and price
// alarm subscription.
type OracleHandle struct {
	Address crypto.Address
}

// AddPriceAlarm builds the outgoing AddPriceAlarm{above, below} message for
// the given zone edges (in basis points).
func (h OracleHandle) AddPriceAlarm(zone Zone) Message {
	return Message{To: h.Address, Kind: MsgAddPriceAlarm, Payload: map[string]string{
		"below": bpsToString(zone.LowerBps),
		"above": bpsToString(zone.UpperBps),
	}}
}

// TimeAlarmsHandle addresses the scheduled wake-up service.
type TimeAlarmsHandle struct {
	Address crypto.Address
}

// AddAlarm builds the outgoing AddAlarm{time} message, time expressed as an
// absolute unix timestamp in seconds.
func (h TimeAlarmsHandle) AddAlarm(unixSeconds int64) Message {
	return Message{To: h.Address, Kind: MsgAddTimeAlarm, Payload: map[string]string{"time": int64ToString(unixSeconds)}}
}

// ProfitHandle addresses the sink for interest/margin proceeds. It accepts
// bank sends in any currency; no reply is expected.
type ProfitHandle struct {
	Address crypto.Address
}

func (h ProfitHandle) Send(amount string, currencySymbol string) Message {
	return Message{To: h.Address, Kind: MsgBankSend, Payload: map[string]string{"amount": amount, "currency": currencySymbol}}
}

// ReserveHandle addresses the loss-coverage sink invoked only when a full
// liquidation's proceeds are insufficient to cover the outstanding debt.
type ReserveHandle struct {
	Address crypto.Address
}

func (h ReserveHandle) CoverLiquidationLosses(shortfallLpn string) Message {
	return Message{To: h.Address, Kind: MsgCoverLosses, Payload: map[string]string{"amount": shortfallLpn}}
}

// LeaserHandle (also the finalizer) is notified on terminal lifecycle events
// and is queried for the leaser-configured slippage tolerance.
type LeaserHandle struct {
	Address crypto.Address
}

func (h LeaserHandle) FinalizeLease(customer crypto.Address) Message {
	return Message{To: h.Address, Kind: MsgFinalizeLease, Payload: map[string]string{"customer": customer.String()}}
}

func bpsToString(v uint32) string {
	return strconv.FormatUint(uint64(v), 10)
}

func int64ToString(v int64) string {
	return strconv.FormatInt(v, 10)
}
