package lease

import (
	"math/big"
	"time"

	"leased/core/types"
)

// Querier is the read-only view a handler consults to stay a pure function
// of (state, stimulus, now, querier_view): the current Asset/Lpn price and
// the leaser-configured slippage tolerance. The lease trusts this value
// rather than re-validating DEX-side pair minimums (§9 open question,
// resolved in DESIGN.md).
type Querier interface {
	AssetPriceRay() (*big.Int, error)
	MaxSlippage() SlippageCalculator
}

// Engine is the lease state machine runtime. It holds no per-lease state:
// each handler operates on the Lease passed to it, so one Engine can serve
// many leases. Scheduling is single-threaded cooperative, each stimulus
// processed to completion with no preemption (§5).
type Engine struct {
	now     func() time.Time
	anomaly AnomalyHandler
	cfg     Config
}

// NewEngine constructs an Engine with an injectable clock, following the
// escrow trade engine's nowFn pattern so tests can drive deterministic time.
func NewEngine(now func() time.Time, cfg Config) *Engine {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	cfg.EnsureDefaults()
	return &Engine{now: now, anomaly: RetryThenExit{MaxAttempts: cfg.MaxSubmitAttempts}, cfg: cfg}
}

// Instantiate handles the initial stimulus: records the customer, policy,
// collaborator handles and DEX connection on the lease, emits the OpenLoan
// request for the downpayment amount, and enters RequestLoan. The move to
// OpeningIcaOpen happens in ReceiveLoan, once the loan reply arrives.
func (e *Engine) Instantiate(l *Lease, msg NewLeaseContract) (Response, error) {
	l.Customer = msg.Customer
	l.Position = Position{
		Amount: types.ZeroCoin(msg.AssetCurrency),
		Spec:   msg.Spec,
	}
	l.Oracle = OracleHandle{Address: msg.OracleAddr}
	l.TimeAlarms = TimeAlarmsHandle{Address: msg.TimeAlarmsAddr}
	l.Profit = ProfitHandle{Address: msg.ProfitAddr}
	l.Reserve = ReserveHandle{Address: msg.ReserveAddr}
	l.Lpp = LppHandle{Address: msg.LppAddr}
	l.Leaser = LeaserHandle{Address: msg.LeaserAddr}
	l.Dex = msg.Dex

	resp := newResponse(State{Version: 1, Kind: StateRequestLoan})
	resp.send(l.Lpp.OpenLoan(msg.Downpayment.Amount.String()))
	resp.emit(StateTransitioned{LeaseID: l.Address.String(), From: "none", To: StateRequestLoan.String(), Reason: "instantiate"})
	return resp, nil
}

// ReceiveLoan handles reply(OpenLoan): the LPP has confirmed the principal.
// Builds the ICA registration request and moves to OpeningIcaOpen.
func (e *Engine) ReceiveLoan(l *Lease, principal types.Coin, annualMarginBps, lppRateBps uint32, duePeriod time.Duration) (Response, error) {
	if l.State.Kind != StateRequestLoan {
		return Response{}, Unsupportedf("reply(OpenLoan) in state %s", l.State.Kind)
	}
	lpn := principal.Currency
	l.Loan = Loan{
		PrincipalDue:    principal,
		AnnualMarginBps: annualMarginBps,
		LppLoanRateBps:  lppRateBps,
		DuePeriod:       duePeriod,
		PeriodStartAt:   e.now(),
		AccruedMargin:   types.ZeroCoin(lpn),
		AccruedInterest: types.ZeroCoin(lpn),
		OverdueMargin:   types.ZeroCoin(lpn),
		OverdueInterest: types.ZeroCoin(lpn),
	}

	task := DexTask{Kind: DexTaskIcaOpen, Conn: l.Dex, SubmittedAt: e.now()}
	resp := newResponse(State{Version: 1, Kind: StateOpeningIcaOpen, Task: &task})
	resp.send(Message{Kind: MsgIcaRegister, Payload: map[string]string{"connection_id": l.Dex.ConnectionID}})
	resp.emit(StateTransitioned{LeaseID: l.Address.String(), From: StateRequestLoan.String(), To: StateOpeningIcaOpen.String(), Reason: "reply(OpenLoan)"})
	return resp, nil
}

// IcaOpenAck handles the ICA channel-open acknowledgement: builds the
// TransferOut message and schedules a response delivery for its ack.
func (e *Engine) IcaOpenAck(l *Lease) (Response, error) {
	if l.State.Kind != StateOpeningIcaOpen {
		return Response{}, Unsupportedf("ica_open_ack in state %s", l.State.Kind)
	}
	task := DexTask{Kind: DexTaskTransferOut, Conn: l.Dex, SubmittedAt: e.now()}
	delivery := NewResponseDelivery(l.Address.String(), task)
	resp := newResponse(State{Version: 1, Kind: StateOpeningTransferOut, Task: &task, Pending: &delivery})
	resp.send(Message{Kind: MsgIbcTransfer, Payload: map[string]string{"channel_id": l.Dex.ChannelID}})
	resp.send(delivery.SelfReplyMessage(l.Address.String()))
	resp.emit(StateTransitioned{LeaseID: l.Address.String(), From: StateOpeningIcaOpen.String(), To: StateOpeningTransferOut.String(), Reason: "ica_open_ack"})
	return resp, nil
}

// handleDexTimeout implements §4.2's timeout policy for any in-flight task:
// retry with a fresh nonce, or wrap into InRecovery when attempts are
// exhausted (suspected broken channel).
func (e *Engine) handleDexTimeout(l *Lease) (Response, error) {
	task := l.State.Task
	if task == nil {
		return Response{}, Unsupportedf("dex_timeout with no in-flight task")
	}
	retryTask, recover := onTimeout(*task, e.now())
	if !recover {
		resp := newResponse(State{Version: 1, Kind: l.State.Kind, Task: &retryTask})
		resp.send(Message{Kind: MsgIbcTransfer, Payload: map[string]string{"retry": "true"}})
		return resp, nil
	}
	wrapped := InRecovery{Wrapped: *task}
	resp := newResponse(State{Version: 1, Kind: l.State.Kind, RecoveryTask: &wrapped})
	resp.emit(ChannelRecovery{LeaseID: l.Address.String(), Wrapped: task.Kind.String()})
	resp.send(Message{Kind: MsgIcaRegister, Payload: map[string]string{"connection_id": l.Dex.ConnectionID, "reopen": "true"}})
	return resp, nil
}

// DexTimeout is the public entry point for a dex_timeout stimulus.
func (e *Engine) DexTimeout(l *Lease) (Response, error) {
	return e.handleDexTimeout(l)
}

// IcaConnectorReopened completes channel recovery: resumes the wrapped
// task from the top.
func (e *Engine) IcaConnectorReopened(l *Lease) (Response, error) {
	if l.State.RecoveryTask == nil {
		return Response{}, Unsupportedf("ica connector reopened with no recovery task pending")
	}
	resumed := l.State.RecoveryTask.Wrapped
	resumed.Attempts = 0
	resumed.SubmittedAt = e.now()
	resp := newResponse(State{Version: 1, Kind: l.State.Kind, Task: &resumed})
	resp.send(Message{Kind: MsgIbcTransfer, Payload: map[string]string{"resumed": resumed.Kind.String()}})
	return resp, nil
}

// DexError handles an explicit error ack from the DEX, consulting the
// anomaly handler to decide retry vs exit.
func (e *Engine) DexError(l *Lease, reason error) (Response, error) {
	task := l.State.Task
	if task == nil {
		return Response{}, Unsupportedf("dex_error with no in-flight task")
	}
	decision := e.anomaly.OnAnomaly(*task, reason)
	if decision.Retry {
		resp := newResponse(State{Version: 1, Kind: l.State.Kind, Task: &decision.Task})
		resp.emit(DexAnomaly{LeaseID: l.Address.String(), Decision: "retry"})
		resp.send(Message{Kind: MsgDexSwap, Payload: map[string]string{"retry": "true"}})
		return resp, nil
	}
	resp := newResponse(State{Version: 1, Kind: StateLiquidated})
	resp.emit(DexAnomaly{LeaseID: l.Address.String(), Decision: "exit"})
	return resp, nil
}

// DexResponseTransferOut handles a successful transfer-out ack: builds the
// swap request with a slippage-bounded min_output and moves to OpeningSwap.
func (e *Engine) DexResponseTransferOut(l *Lease, q Querier) (Response, error) {
	if l.State.Kind != StateOpeningTransferOut {
		return Response{}, Unsupportedf("dex_response(transfer_out) in state %s", l.State.Kind)
	}
	price, err := q.AssetPriceRay()
	if err != nil {
		return Response{}, err
	}
	quoted := rayDiv(l.Loan.PrincipalDue.Amount, price)
	minOut := q.MaxSlippage().MinOutput(quoted)

	task := DexTask{Kind: DexTaskSwap, Conn: l.Dex, MinOutput: minOut, SubmittedAt: e.now()}
	delivery := NewResponseDelivery(l.Address.String(), task)
	resp := newResponse(State{Version: 1, Kind: StateOpeningSwap, Task: &task, Pending: &delivery})
	resp.send(Message{Kind: MsgDexSwap, Payload: map[string]string{"min_output": minOut.String()}})
	resp.send(delivery.SelfReplyMessage(l.Address.String()))
	resp.emit(StateTransitioned{LeaseID: l.Address.String(), From: StateOpeningTransferOut.String(), To: StateOpeningSwap.String(), Reason: "dex_response"})
	return resp, nil
}

// DexResponseSwap handles the swap ack: decodes the out-amount, checks
// slippage, opens the Position, computes the initial close status,
// reschedules alarms, and moves to OpenedActive. On a decode failure or a
// below-minimum out-amount it routes through DexError instead.
func (e *Engine) DexResponseSwap(l *Lease, ackData []byte, q Querier) (Response, error) {
	if l.State.Kind != StateOpeningSwap || l.State.Task == nil {
		return Response{}, Unsupportedf("dex_response(swap) in state %s", l.State.Kind)
	}
	outAmount, err := DecodeSwapOutAmount(ackData)
	if err != nil {
		return e.DexError(l, err)
	}
	if err := ensureSlippage(outAmount, l.State.Task.MinOutput); err != nil {
		return e.DexError(l, err)
	}

	l.Position.Amount = l.Position.Amount.Add(types.NewCoin(outAmount, l.Position.Amount.Currency))

	resp := newResponse(State{Version: 1, Kind: StateOpenedActive})
	resp.emit(StateTransitioned{LeaseID: l.Address.String(), From: StateOpeningSwap.String(), To: StateOpenedActive.String(), Reason: "dex_response"})

	if err := e.rescheduleAlarms(l, &resp, q); err != nil {
		return Response{}, err
	}
	return resp, nil
}

// rescheduleAlarms re-evaluates debt/close status and attaches the
// resulting time+price alarm messages to resp. Shared by OpenedActive entry
// points (swap completion, time_alarm and price_alarm via OpenedActiveTick,
// and heal).
func (e *Engine) rescheduleAlarms(l *Lease, resp *Response, q Querier) error {
	price, err := q.AssetPriceRay()
	if err != nil {
		return err
	}
	due := l.Loan.TotalDue()
	status := l.Position.Debt(due, price)

	zone := status.Zone
	if status.Paid {
		zone = Zone{}
	}
	schedule := Reschedule(e.now(), l.Loan.PeriodStartAt, l.Loan.DuePeriod, l.Position.Spec.Liability, zone)
	resp.send(l.TimeAlarms.AddAlarm(schedule.TimeAlarmAt.Unix()))
	if !status.Paid {
		resp.send(l.Oracle.AddPriceAlarm(schedule.PriceZone))
	}
	return nil
}

// OpenedActiveTick is the shared decision point for time_alarm and
// price_alarm while in OpenedActive: accrue the loan, re-evaluate debt
// and close-policy, and transition into a closing/liquidating pipeline when
// bad debt or a close trigger fires. Priority: bad-debt liquidation >
// close-policy trigger > warning zone (§4.3).
func (e *Engine) OpenedActiveTick(l *Lease, q Querier) (Response, error) {
	if l.State.Kind != StateOpenedActive {
		return Response{}, Unsupportedf("tick in state %s", l.State.Kind)
	}
	price, err := q.AssetPriceRay()
	if err != nil {
		return Response{}, err
	}
	if err := l.Loan.Accrue(e.now()); err != nil {
		return Response{}, err
	}
	due := l.Loan.TotalDue()
	status := l.Position.Debt(due, price)

	if status.Liquidation != nil {
		return e.enterLiquidating(l, *status.Liquidation)
	}
	if overdue := l.Position.CheckOverdue(l.Loan.OverdueTotal(), price); overdue != nil {
		return e.enterLiquidating(l, *overdue)
	}
	if trigger := l.Position.CheckClose(due, price); trigger != CloseTriggerNone {
		resp := newResponse(State{Version: 1, Kind: StateOpenedClose})
		resp.emit(ClosePolicyFired{LeaseID: l.Address.String(), Trigger: trigger})
		task := DexTask{Kind: DexTaskSwap, Conn: l.Dex, SubmittedAt: e.now()}
		resp.Next.Task = &task
		resp.send(Message{Kind: MsgDexSwap, Payload: map[string]string{"reason": "close_policy"}})
		return resp, nil
	}

	resp := newResponse(State{Version: 1, Kind: StateOpenedActive})
	if err := e.rescheduleAlarms(l, &resp, q); err != nil {
		return Response{}, err
	}
	return resp, nil
}

func (e *Engine) enterLiquidating(l *Lease, liq Liquidation) (Response, error) {
	liquidatedAmount := new(big.Int).Set(l.Position.Amount.Amount)
	amount := "full"
	if !liq.Full {
		liquidatedAmount = new(big.Int).Set(liq.Amount.Amount)
		amount = liquidatedAmount.String()
	}
	task := DexTask{
		Kind:             DexTaskSwap,
		Conn:             l.Dex,
		SubmittedAt:      e.now(),
		LiquidatedAmount: liquidatedAmount,
		LiquidatedFull:   liq.Full,
	}
	resp := newResponse(State{Version: 1, Kind: StateLiquidating, Task: &task})
	resp.emit(LiquidationTriggered{LeaseID: l.Address.String(), Full: liq.Full, Cause: liq.Cause, Amount: amount})
	resp.send(Message{Kind: MsgDexSwap, Payload: map[string]string{"liquidation_amount": amount}})
	return resp, nil
}

// SettleLiquidation handles the swap-ack completing a liquidation: proceeds
// pay down the loan via the fixed repayment cascade, any surplus routes to
// Profit, and a full-liquidation shortfall invokes Reserve. Never invoked on
// a partial-liquidation shortfall (§9 open question, resolved in
// DESIGN.md). The liquidated asset amount and whether the triggering
// liquidation was full are read off the in-flight DexTask (set by
// enterLiquidating), not re-supplied by the caller, and are subtracted from
// Position.Amount so a partial liquidation returns to OpenedActive against
// the correctly reduced position.
func (e *Engine) SettleLiquidation(l *Lease, proceedsLpn *big.Int) (Response, error) {
	if l.State.Kind != StateLiquidating {
		return Response{}, Unsupportedf("liquidation settlement in state %s", l.State.Kind)
	}
	if l.State.Task == nil || l.State.Task.LiquidatedAmount == nil {
		return Response{}, ErrNilState
	}
	wasFull := l.State.Task.LiquidatedFull
	liquidatedAmount := l.State.Task.LiquidatedAmount

	due := l.Loan.TotalDue()
	receipt := l.Loan.Repay(proceedsLpn)

	remaining := new(big.Int).Sub(l.Position.Amount.Amount, liquidatedAmount)
	if remaining.Sign() < 0 {
		remaining = big.NewInt(0)
	}
	l.Position.Amount.Amount = remaining

	resp := newResponse(State{Version: 1, Kind: StateOpenedActive})
	resp.emit(RepaymentApplied{LeaseID: l.Address.String(), Receipt: receipt})

	if wasFull {
		shortfall := new(big.Int).Sub(due, proceedsLpn)
		if shortfall.Sign() > 0 {
			resp.send(l.Reserve.CoverLiquidationLosses(shortfall.String()))
		}
		resp.Next = State{Version: 1, Kind: StateLiquidated}
		resp.send(l.Leaser.FinalizeLease(l.Customer))
		return resp, nil
	}
	if receipt.Change.Sign() > 0 {
		resp.send(l.Profit.Send(receipt.Change.String(), l.Loan.PrincipalDue.Currency.String()))
	}
	return resp, nil
}

// Repay handles execute(Repay): only accepted in OpenedActive/PaidActive,
// applies the payment via the fixed cascade, and transitions to PaidActive
// once the principal reaches zero.
func (e *Engine) Repay(l *Lease, payment *big.Int) (Response, error) {
	if l.State.Kind != StateOpenedActive && l.State.Kind != StatePaidActive {
		return Response{}, Unsupportedf("repay in state %s", l.State.Kind)
	}
	if l.State.Kind.IsDexInFlight() {
		return Response{}, Unsupportedf("repay while dex in-flight")
	}
	receipt := l.Loan.Repay(payment)
	nextKind := l.State.Kind
	if receipt.Close {
		nextKind = StatePaidActive
	}
	resp := newResponse(State{Version: 1, Kind: nextKind})
	resp.emit(RepaymentApplied{LeaseID: l.Address.String(), Receipt: receipt})
	if receipt.Close {
		resp.emit(StateTransitioned{LeaseID: l.Address.String(), From: l.State.Kind.String(), To: StatePaidActive.String(), Reason: "repay"})
	}
	return resp, nil
}

// ClosePosition handles execute(ClosePosition{Partial|Full}), validating
// the requested amount against min_transaction/min_asset before issuing the
// closing swap.
func (e *Engine) ClosePosition(l *Lease, partial *big.Int) (Response, error) {
	if l.State.Kind != StateOpenedActive {
		return Response{}, Unsupportedf("close_position in state %s", l.State.Kind)
	}
	if partial != nil {
		if l.Position.Spec.MinTransaction.Amount != nil && partial.Cmp(l.Position.Spec.MinTransaction.Amount) < 0 {
			return Response{}, ErrBelowMinTransaction
		}
		remaining := new(big.Int).Sub(l.Position.Amount.Amount, partial)
		if l.Position.Spec.MinAsset.Amount != nil && remaining.Cmp(l.Position.Spec.MinAsset.Amount) < 0 {
			return Response{}, ErrBelowMinAsset
		}
	}
	task := DexTask{Kind: DexTaskSwap, Conn: l.Dex, SubmittedAt: e.now()}
	resp := newResponse(State{Version: 1, Kind: StateOpenedClose, Task: &task})
	resp.send(Message{Kind: MsgDexSwap, Payload: map[string]string{"reason": "customer_close"}})
	return resp, nil
}

// ChangeClosePolicy handles execute(ChangeClosePolicy), delegating
// validation to Position.ChangeClosePolicy.
func (e *Engine) ChangeClosePolicy(l *Lease, next ClosePolicy, q Querier) (Response, error) {
	if l.State.Kind != StateOpenedActive {
		return Response{}, Unsupportedf("change_close_policy in state %s", l.State.Kind)
	}
	price, err := q.AssetPriceRay()
	if err != nil {
		return Response{}, err
	}
	due := l.Loan.TotalDue()
	if err := l.Position.ChangeClosePolicy(next, due, price); err != nil {
		return Response{}, err
	}
	return newResponse(State{Version: 1, Kind: StateOpenedActive}), nil
}

// TimeAlarm and PriceAlarm both re-enter the OpenedActive decision engine;
// sender authorization is enforced by the caller (RPC/sudo layer) comparing
// against l.TimeAlarms.Address / l.Oracle.Address.
func (e *Engine) TimeAlarm(l *Lease, q Querier) (Response, error) {
	return e.OpenedActiveTick(l, q)
}

func (e *Engine) PriceAlarm(l *Lease, q Querier) (Response, error) {
	return e.OpenedActiveTick(l, q)
}

// Heal re-emits pending alarms without changing state. Implemented as
// "time out and retry" rather than a DEX history re-query (§9 open
// question, resolved in DESIGN.md): if a DEX task is in flight it is
// resubmitted with a fresh nonce; otherwise alarms are rebuilt from
// persisted state.
func (e *Engine) Heal(l *Lease, q Querier) (Response, error) {
	if l.State.Kind.IsDexInFlight() && l.State.Task != nil {
		retryTask, recover := onTimeout(*l.State.Task, e.now())
		if recover {
			return e.handleDexTimeout(l)
		}
		resp := newResponse(State{Version: 1, Kind: l.State.Kind, Task: &retryTask})
		resp.send(Message{Kind: MsgDexSwap, Payload: map[string]string{"heal_retry": "true"}})
		return resp, nil
	}
	resp := newResponse(l.State)
	if l.State.Kind == StateOpenedActive {
		if err := e.rescheduleAlarms(l, &resp, q); err != nil {
			return Response{}, err
		}
	}
	return resp, nil
}

// Close handles execute(Close), only accepted in PaidActive: transfers the
// residual asset back to the customer via a closing transfer-in.
func (e *Engine) Close(l *Lease) (Response, error) {
	if l.State.Kind != StatePaidActive {
		return Response{}, Unsupportedf("close in state %s", l.State.Kind)
	}
	task := DexTask{Kind: DexTaskTransferIn, Conn: l.Dex, SubmittedAt: e.now()}
	resp := newResponse(State{Version: 1, Kind: StateClosingTransferIn, Task: &task})
	resp.send(Message{Kind: MsgIbcTransfer, Payload: map[string]string{"to": l.Customer.String()}})
	return resp, nil
}

// DexResponseTransferIn completes the closing transfer-in: the lease has no
// further obligations and enters the terminal Closed state.
func (e *Engine) DexResponseTransferIn(l *Lease) (Response, error) {
	if l.State.Kind != StateClosingTransferIn {
		return Response{}, Unsupportedf("dex_response(transfer_in) in state %s", l.State.Kind)
	}
	resp := newResponse(State{Version: 1, Kind: StateClosed})
	resp.emit(StateTransitioned{LeaseID: l.Address.String(), From: StateClosingTransferIn.String(), To: StateClosed.String(), Reason: "dex_response"})
	resp.send(l.Leaser.FinalizeLease(l.Customer))
	return resp, nil
}
