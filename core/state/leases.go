package state

import (
	"fmt"
	"math/big"
	"time"

	"leased/core/types"
	"leased/crypto"
	"leased/lease"
)

var (
	leaseRecordPrefix = []byte("lease/record/")
	leaseIndexKey     = []byte("lease/index")
)

func leaseKey(addr crypto.Address) []byte {
	return append(append([]byte(nil), leaseRecordPrefix...), addr.Bytes()...)
}

type storedDexTask struct {
	Kind             uint8
	Attempts         uint32
	ConnectionID     string
	ChannelID        string
	IcaAddress       string
	MinOutput        *big.Int
	SubmittedAt      int64
	HasLiquidation   bool
	LiquidatedAmount *big.Int
	LiquidatedFull   bool
}

func newStoredDexTask(t lease.DexTask) storedDexTask {
	minOut := big.NewInt(0)
	if t.MinOutput != nil {
		minOut = new(big.Int).Set(t.MinOutput)
	}
	s := storedDexTask{
		Kind:             uint8(t.Kind),
		Attempts:         t.Attempts,
		ConnectionID:     t.Conn.ConnectionID,
		ChannelID:        t.Conn.ChannelID,
		IcaAddress:       t.Conn.IcaAddress,
		MinOutput:        minOut,
		SubmittedAt:      t.SubmittedAt.Unix(),
		LiquidatedAmount: big.NewInt(0),
		LiquidatedFull:   t.LiquidatedFull,
	}
	if t.LiquidatedAmount != nil {
		s.HasLiquidation = true
		s.LiquidatedAmount = new(big.Int).Set(t.LiquidatedAmount)
	}
	return s
}

func (s storedDexTask) toDexTask() lease.DexTask {
	t := lease.DexTask{
		Kind:     lease.DexTaskKind(s.Kind),
		Attempts: s.Attempts,
		Conn: lease.ConnectionParams{
			ConnectionID: s.ConnectionID,
			ChannelID:    s.ChannelID,
			IcaAddress:   s.IcaAddress,
		},
		MinOutput:      new(big.Int).Set(s.MinOutput),
		SubmittedAt:    time.Unix(s.SubmittedAt, 0).UTC(),
		LiquidatedFull: s.LiquidatedFull,
	}
	if s.HasLiquidation {
		t.LiquidatedAmount = new(big.Int).Set(s.LiquidatedAmount)
	}
	return t
}

type storedPending struct {
	ReplyID string
	Task    storedDexTask
}

// storedLease is the flat, RLP-friendly mirror of a lease.Lease. Time values
// are stored as unix seconds and durations as seconds; pointer fields are
// stored by value with a presence flag rather than relying on RLP's
// "nil" pointer support. The RLP encoding is positional, so the stored
// layout depends on field order.
type storedLease struct {
	Address  [20]byte
	Customer [20]byte

	PositionAmount   *big.Int
	PositionCurrency uint8

	LiabilityInitialBps  uint32
	LiabilityHealthyBps  uint32
	LiabilityFirstWarn   uint32
	LiabilitySecondWarn  uint32
	LiabilityThirdWarn   uint32
	LiabilityMaxBps      uint32
	LiabilityRecalcSecs  int64

	HasTakeProfit  bool
	TakeProfitBps  uint32
	HasStopLoss    bool
	StopLossBps    uint32
	MinAsset       *big.Int
	MinTransaction *big.Int

	LoanPrincipal       *big.Int
	LoanCurrency        uint8
	LoanAnnualMarginBps uint32
	LoanLppRateBps      uint32
	LoanDuePeriodSecs   int64
	LoanPeriodStartAt   int64
	LoanLastAccruedAt   int64
	LoanAccruedMargin   *big.Int
	LoanAccruedInterest *big.Int
	LoanOverdueMargin   *big.Int
	LoanOverdueInterest *big.Int

	OracleAddress     [20]byte
	TimeAlarmsAddress [20]byte
	ProfitAddress     [20]byte
	ReserveAddress    [20]byte
	LppAddress        [20]byte
	LeaserAddress     [20]byte

	DexConnectionID string
	DexChannelID    string
	DexIcaAddress   string

	StateVersion uint32
	StateKind    uint8

	HasTask         bool
	Task            storedDexTask
	HasRecoveryTask bool
	RecoveryTask    storedDexTask
	HasPending      bool
	Pending         storedPending
}

// loanLastAccruedAtUnix stores LastAccruedAt as 0 when unset, rather than
// the large negative Unix seconds of the zero time.Time, so toLease can
// round-trip it back to a zero time.Time and preserve Loan.Accrue's
// first-call seeding behavior.
func loanLastAccruedAtUnix(l lease.Loan) int64 {
	if l.LastAccruedAt.IsZero() {
		return 0
	}
	return l.LastAccruedAt.Unix()
}

func toAddrArray(addr crypto.Address) [20]byte {
	var out [20]byte
	copy(out[:], addr.Bytes())
	return out
}

func loanLastAccruedAtFromUnix(secs int64) time.Time {
	if secs == 0 {
		return time.Time{}
	}
	return time.Unix(secs, 0).UTC()
}

func fromAddrArray(b [20]byte) crypto.Address {
	return crypto.MustNewAddress(crypto.NHBPrefix, append([]byte(nil), b[:]...))
}

func newStoredLease(l *lease.Lease) *storedLease {
	s := &storedLease{
		Address:  toAddrArray(l.Address),
		Customer: toAddrArray(l.Customer),

		PositionAmount:   big.NewInt(0),
		PositionCurrency: uint8(l.Position.Amount.Currency),

		LiabilityInitialBps: l.Position.Spec.Liability.InitialBps,
		LiabilityHealthyBps: l.Position.Spec.Liability.HealthyBps,
		LiabilityFirstWarn:  l.Position.Spec.Liability.FirstLiqWarnBps,
		LiabilitySecondWarn: l.Position.Spec.Liability.SecondLiqWarnBps,
		LiabilityThirdWarn:  l.Position.Spec.Liability.ThirdLiqWarnBps,
		LiabilityMaxBps:     l.Position.Spec.Liability.MaxBps,
		LiabilityRecalcSecs: int64(l.Position.Spec.Liability.RecalcTime.Seconds()),

		MinAsset:       big.NewInt(0),
		MinTransaction: big.NewInt(0),

		LoanPrincipal:       big.NewInt(0),
		LoanCurrency:        uint8(l.Loan.PrincipalDue.Currency),
		LoanAnnualMarginBps: l.Loan.AnnualMarginBps,
		LoanLppRateBps:      l.Loan.LppLoanRateBps,
		LoanDuePeriodSecs:   int64(l.Loan.DuePeriod.Seconds()),
		LoanPeriodStartAt:   l.Loan.PeriodStartAt.Unix(),
		LoanLastAccruedAt:   loanLastAccruedAtUnix(l.Loan),
		LoanAccruedMargin:   big.NewInt(0),
		LoanAccruedInterest: big.NewInt(0),
		LoanOverdueMargin:   big.NewInt(0),
		LoanOverdueInterest: big.NewInt(0),

		OracleAddress:     toAddrArray(l.Oracle.Address),
		TimeAlarmsAddress: toAddrArray(l.TimeAlarms.Address),
		ProfitAddress:     toAddrArray(l.Profit.Address),
		ReserveAddress:    toAddrArray(l.Reserve.Address),
		LppAddress:        toAddrArray(l.Lpp.Address),
		LeaserAddress:     toAddrArray(l.Leaser.Address),

		DexConnectionID: l.Dex.ConnectionID,
		DexChannelID:    l.Dex.ChannelID,
		DexIcaAddress:   l.Dex.IcaAddress,

		StateVersion: l.State.Version,
		StateKind:    uint8(l.State.Kind),
	}
	if l.Position.Amount.Amount != nil {
		s.PositionAmount = new(big.Int).Set(l.Position.Amount.Amount)
	}
	if tp := l.Position.Spec.Close.TakeProfitBps; tp != nil {
		s.HasTakeProfit = true
		s.TakeProfitBps = *tp
	}
	if sl := l.Position.Spec.Close.StopLossBps; sl != nil {
		s.HasStopLoss = true
		s.StopLossBps = *sl
	}
	if l.Position.Spec.MinAsset.Amount != nil {
		s.MinAsset = new(big.Int).Set(l.Position.Spec.MinAsset.Amount)
	}
	if l.Position.Spec.MinTransaction.Amount != nil {
		s.MinTransaction = new(big.Int).Set(l.Position.Spec.MinTransaction.Amount)
	}
	if l.Loan.PrincipalDue.Amount != nil {
		s.LoanPrincipal = new(big.Int).Set(l.Loan.PrincipalDue.Amount)
	}
	if l.Loan.AccruedMargin.Amount != nil {
		s.LoanAccruedMargin = new(big.Int).Set(l.Loan.AccruedMargin.Amount)
	}
	if l.Loan.AccruedInterest.Amount != nil {
		s.LoanAccruedInterest = new(big.Int).Set(l.Loan.AccruedInterest.Amount)
	}
	if l.Loan.OverdueMargin.Amount != nil {
		s.LoanOverdueMargin = new(big.Int).Set(l.Loan.OverdueMargin.Amount)
	}
	if l.Loan.OverdueInterest.Amount != nil {
		s.LoanOverdueInterest = new(big.Int).Set(l.Loan.OverdueInterest.Amount)
	}
	if l.State.Task != nil {
		s.HasTask = true
		s.Task = newStoredDexTask(*l.State.Task)
	}
	if l.State.RecoveryTask != nil {
		s.HasRecoveryTask = true
		s.RecoveryTask = newStoredDexTask(l.State.RecoveryTask.Wrapped)
	}
	if l.State.Pending != nil {
		s.HasPending = true
		s.Pending = storedPending{ReplyID: l.State.Pending.ReplyID, Task: newStoredDexTask(l.State.Pending.Pending)}
	}
	return s
}

func (s *storedLease) toLease() *lease.Lease {
	positionCurrency := types.Currency(s.PositionCurrency)
	loanCurrency := types.Currency(s.LoanCurrency)

	l := &lease.Lease{
		Address:  fromAddrArray(s.Address),
		Customer: fromAddrArray(s.Customer),
		Position: lease.Position{
			Amount: types.NewCoin(s.PositionAmount, positionCurrency),
			Spec: lease.Spec{
				Liability: lease.Liability{
					InitialBps:       s.LiabilityInitialBps,
					HealthyBps:       s.LiabilityHealthyBps,
					FirstLiqWarnBps:  s.LiabilityFirstWarn,
					SecondLiqWarnBps: s.LiabilitySecondWarn,
					ThirdLiqWarnBps:  s.LiabilityThirdWarn,
					MaxBps:           s.LiabilityMaxBps,
					RecalcTime:       time.Duration(s.LiabilityRecalcSecs) * time.Second,
				},
				MinAsset:       types.NewCoin(s.MinAsset, positionCurrency),
				MinTransaction: types.NewCoin(s.MinTransaction, positionCurrency),
			},
		},
		Loan: lease.Loan{
			PrincipalDue:    types.NewCoin(s.LoanPrincipal, loanCurrency),
			AnnualMarginBps: s.LoanAnnualMarginBps,
			LppLoanRateBps:  s.LoanLppRateBps,
			DuePeriod:       time.Duration(s.LoanDuePeriodSecs) * time.Second,
			PeriodStartAt:   time.Unix(s.LoanPeriodStartAt, 0).UTC(),
			LastAccruedAt:   loanLastAccruedAtFromUnix(s.LoanLastAccruedAt),
			AccruedMargin:   types.NewCoin(s.LoanAccruedMargin, loanCurrency),
			AccruedInterest: types.NewCoin(s.LoanAccruedInterest, loanCurrency),
			OverdueMargin:   types.NewCoin(s.LoanOverdueMargin, loanCurrency),
			OverdueInterest: types.NewCoin(s.LoanOverdueInterest, loanCurrency),
		},
		Oracle:     lease.OracleHandle{Address: fromAddrArray(s.OracleAddress)},
		TimeAlarms: lease.TimeAlarmsHandle{Address: fromAddrArray(s.TimeAlarmsAddress)},
		Profit:     lease.ProfitHandle{Address: fromAddrArray(s.ProfitAddress)},
		Reserve:    lease.ReserveHandle{Address: fromAddrArray(s.ReserveAddress)},
		Lpp:        lease.LppHandle{Address: fromAddrArray(s.LppAddress)},
		Leaser:     lease.LeaserHandle{Address: fromAddrArray(s.LeaserAddress)},
		Dex: lease.ConnectionParams{
			ConnectionID: s.DexConnectionID,
			ChannelID:    s.DexChannelID,
			IcaAddress:   s.DexIcaAddress,
		},
		State: lease.State{
			Version: s.StateVersion,
			Kind:    lease.StateKind(s.StateKind),
		},
	}
	if s.HasTakeProfit {
		tp := s.TakeProfitBps
		l.Position.Spec.Close.TakeProfitBps = &tp
	}
	if s.HasStopLoss {
		sl := s.StopLossBps
		l.Position.Spec.Close.StopLossBps = &sl
	}
	if s.HasTask {
		t := s.Task.toDexTask()
		l.State.Task = &t
	}
	if s.HasRecoveryTask {
		l.State.RecoveryTask = &lease.InRecovery{Wrapped: s.RecoveryTask.toDexTask()}
	}
	if s.HasPending {
		l.State.Pending = &lease.ResponseDelivery{ReplyID: s.Pending.ReplyID, Pending: s.Pending.Task.toDexTask()}
	}
	return l
}

// PutLease persists the lease aggregate keyed by its address, indexing the
// address if this is the first time it has been seen.
func (m *Manager) PutLease(l *lease.Lease) error {
	if l == nil {
		return fmt.Errorf("state: lease must not be nil")
	}
	if err := m.KVPut(leaseKey(l.Address), newStoredLease(l)); err != nil {
		return err
	}
	return m.KVAppend(leaseIndexKey, l.Address.Bytes())
}

// GetLease loads the lease aggregate for the supplied address. The boolean
// return indicates whether a record was found.
func (m *Manager) GetLease(addr crypto.Address) (*lease.Lease, bool, error) {
	var stored storedLease
	ok, err := m.KVGet(leaseKey(addr), &stored)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return stored.toLease(), true, nil
}

// ListLeaseAddresses returns every lease address that has been persisted.
func (m *Manager) ListLeaseAddresses() ([]crypto.Address, error) {
	var raw [][]byte
	if err := m.KVGetList(leaseIndexKey, &raw); err != nil {
		return nil, err
	}
	addrs := make([]crypto.Address, 0, len(raw))
	for _, b := range raw {
		if len(b) != 20 {
			continue
		}
		addrs = append(addrs, crypto.MustNewAddress(crypto.NHBPrefix, b))
	}
	return addrs, nil
}

