package lease

import (
	"leased/core/events"
	"leased/crypto"
)

// MessageKind tags the outgoing message variants a handler can accumulate.
// Kept as a small closed set rather than an interface hierarchy so a Batch
// can be compared/serialized deterministically for the alarm-determinism
// property (same state+now must rebuild byte-identical batches).
type MessageKind uint8

const (
	MsgOpenLoan MessageKind = iota
	MsgRepayLoan
	MsgAddPriceAlarm
	MsgAddTimeAlarm
	MsgBankSend
	MsgCoverLosses
	MsgFinalizeLease
	MsgIcaRegister
	MsgIbcTransfer
	MsgDexSwap
	MsgSelfReply
)

// Message is one outgoing instruction produced by a state handler: an IBC
// transaction, a bank send, an alarm subscription, or a self-addressed reply
// dispatch.
type Message struct {
	To      crypto.Address
	Kind    MessageKind
	Payload map[string]string
}

// Batch accumulates the messages and events a handler produces, built
// incrementally and returned atomically alongside the next persisted state.
// Mirrors the lending engine's stage-then-persist discipline: the caller
// never schedules I/O between building the batch and writing the new state.
type Batch struct {
	Messages []Message
	Events   []events.Event
}

// Add appends a message to the batch.
func (b *Batch) Add(m Message) {
	b.Messages = append(b.Messages, m)
}

// Emit appends an event to the batch.
func (b *Batch) Emit(e events.Event) {
	b.Events = append(b.Events, e)
}
