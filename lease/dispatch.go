package lease

import (
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

// ResponseDelivery is the "reply pending" marker for a submitted DEX leg: the
// handler that submits the leg (IcaOpenAck, DexResponseTransferOut) stores it
// in State.Pending and returns a self-addressed MsgSelfReply message carrying
// its ReplyID. No handler in this package consumes that message; the leg's
// dex_response handler completes the transition directly and builds its next
// State without this marker.
type ResponseDelivery struct {
	// ReplyID correlates the self-dispatched message with the pending task
	// it resumes. Derived deterministically from the lease id, the task
	// kind, and the attempt counter so duplicate deliveries of the same
	// underlying ack produce the same id (idempotent re-delivery).
	ReplyID string
	Pending DexTask
}

// NewResponseDelivery derives a deterministic reply id via keccak256, the
// same identifier derivation the escrow trade engine uses for trade ids.
func NewResponseDelivery(leaseID string, task DexTask) ResponseDelivery {
	seed := fmt.Sprintf("%s:%s:%d", leaseID, task.Kind, task.Attempts)
	hash := crypto.Keccak256Hash([]byte(seed))
	return ResponseDelivery{
		ReplyID: hash.Hex(),
		Pending: task,
	}
}

// SelfReplyMessage builds the self-addressed Message the outer handler
// returns in its Batch so the runtime re-enters this lease for the inner
// completion step.
func (r ResponseDelivery) SelfReplyMessage(selfAddress string) Message {
	return Message{
		Kind: MsgSelfReply,
		Payload: map[string]string{
			"reply_id":     r.ReplyID,
			"task_kind":    r.Pending.Kind.String(),
			"attempt":      int64ToString(int64(r.Pending.Attempts)),
			"self_address": selfAddress,
		},
	}
}
