package lease

import (
	"leased/core/types"
	"leased/crypto"
)

// Lease is the root aggregate: one long-lived actor whose persisted state
// is exactly one of the finite lifecycle states in StateKind. It exclusively
// owns its Position and Loan; the oracle/time_alarms/profit/reserve/leaser
// references are shared handles that only build outgoing message batches
// and never mutate the lease.
type Lease struct {
	Address  crypto.Address
	Customer crypto.Address

	Position Position
	Loan     Loan

	Oracle     OracleHandle
	TimeAlarms TimeAlarmsHandle
	Profit     ProfitHandle
	Reserve    ReserveHandle
	Lpp        LppHandle
	Leaser     LeaserHandle

	Dex   ConnectionParams
	State State
}

// NewLeaseContract is the instantiate payload: the customer's downpayment
// plus the policy and collaborator addresses the Leaser supplies at
// creation time.
type NewLeaseContract struct {
	Customer      crypto.Address
	Downpayment   types.Coin // in Lpn
	LpnCurrency   types.Currency
	AssetCurrency types.Currency
	Spec          Spec

	OracleAddr     crypto.Address
	TimeAlarmsAddr crypto.Address
	ProfitAddr     crypto.Address
	ReserveAddr    crypto.Address
	LppAddr        crypto.Address
	LeaserAddr     crypto.Address
	Dex            ConnectionParams
}
