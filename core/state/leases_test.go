package state

import (
	"math/big"
	"testing"
	"time"

	"leased/core/types"
	"leased/crypto"
	"leased/lease"
	"leased/storage"

	"github.com/stretchr/testify/require"
)

func testAddress(b byte) crypto.Address {
	raw := make([]byte, 20)
	raw[19] = b
	return crypto.MustNewAddress(crypto.NHBPrefix, raw)
}

func TestPutGetLeaseRoundTrip(t *testing.T) {
	db := storage.NewMemDB()
	m := NewManager(db)

	takeProfit := uint32(300)
	l := &lease.Lease{
		Address:  testAddress(1),
		Customer: testAddress(2),
		Position: lease.Position{
			Amount: types.NewCoin(big.NewInt(300_000), types.CurrencyATOM),
			Spec: lease.Spec{
				Liability: lease.Liability{
					InitialBps: 500, HealthyBps: 700, FirstLiqWarnBps: 850,
					SecondLiqWarnBps: 870, ThirdLiqWarnBps: 890, MaxBps: 900,
					RecalcTime: 24 * time.Hour,
				},
				Close:          lease.ClosePolicy{TakeProfitBps: &takeProfit},
				MinAsset:       types.NewCoin(big.NewInt(1_000), types.CurrencyATOM),
				MinTransaction: types.NewCoin(big.NewInt(100), types.CurrencyATOM),
			},
		},
		Loan: lease.Loan{
			PrincipalDue:    types.NewCoin(big.NewInt(2_000_000), types.CurrencyUSDC),
			AnnualMarginBps: 300,
			LppLoanRateBps:  500,
			DuePeriod:       30 * 24 * time.Hour,
			PeriodStartAt:   time.Unix(1_700_000_000, 0).UTC(),
			AccruedMargin:   types.NewCoin(big.NewInt(10_000), types.CurrencyUSDC),
			AccruedInterest: types.ZeroCoin(types.CurrencyUSDC),
			OverdueMargin:   types.ZeroCoin(types.CurrencyUSDC),
			OverdueInterest: types.ZeroCoin(types.CurrencyUSDC),
		},
		Oracle:     lease.OracleHandle{Address: testAddress(3)},
		TimeAlarms: lease.TimeAlarmsHandle{Address: testAddress(4)},
		Profit:     lease.ProfitHandle{Address: testAddress(5)},
		Reserve:    lease.ReserveHandle{Address: testAddress(6)},
		Lpp:        lease.LppHandle{Address: testAddress(7)},
		Leaser:     lease.LeaserHandle{Address: testAddress(8)},
		Dex:        lease.ConnectionParams{ConnectionID: "connection-0", ChannelID: "channel-0"},
		State:      lease.State{Version: 1, Kind: lease.StateOpenedActive},
	}

	require.NoError(t, m.PutLease(l))

	loaded, ok, err := m.GetLease(l.Address)
	require.NoError(t, err)
	require.True(t, ok, "expected lease to be found")
	require.Equal(t, 0, loaded.Position.Amount.Amount.Cmp(big.NewInt(300_000)), "position amount mismatch: %s", loaded.Position.Amount.Amount)
	require.NotNil(t, loaded.Position.Spec.Close.TakeProfitBps)
	require.EqualValues(t, 300, *loaded.Position.Spec.Close.TakeProfitBps)
	require.Nil(t, loaded.Position.Spec.Close.StopLossBps, "expected no stop_loss to round-trip")
	require.Equal(t, 0, loaded.Loan.PrincipalDue.Amount.Cmp(big.NewInt(2_000_000)), "principal mismatch: %s", loaded.Loan.PrincipalDue.Amount)
	require.Equal(t, lease.StateOpenedActive, loaded.State.Kind)
	require.Equal(t, l.Address.String(), loaded.Address.String())

	addrs, err := m.ListLeaseAddresses()
	require.NoError(t, err)
	require.Len(t, addrs, 1)
	require.Equal(t, l.Address.String(), addrs[0].String())
}

func TestGetLeaseMissingReturnsNotFound(t *testing.T) {
	db := storage.NewMemDB()
	m := NewManager(db)

	_, ok, err := m.GetLease(testAddress(9))
	require.NoError(t, err)
	require.False(t, ok, "expected no lease to be found")
}
