package lease

import (
	"math/big"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"
)

func encodeSwapResponseFrame(t *testing.T, fieldNum protowire.Number, amount string) []byte {
	t.Helper()
	var field []byte
	field = protowire.AppendTag(field, fieldNum, protowire.BytesType)
	field = protowire.AppendBytes(field, []byte(amount))

	var frame []byte
	frame = protowire.AppendVarint(frame, uint64(len(field)))
	frame = append(frame, field...)
	return frame
}

func TestDecodeSwapOutAmountOsmosisField(t *testing.T) {
	data := encodeSwapResponseFrame(t, 2, "300000")
	amount, err := DecodeSwapOutAmount(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if amount.Cmp(big.NewInt(300_000)) != 0 {
		t.Fatalf("expected 300000, got %s", amount)
	}
}

func TestDecodeSwapOutAmountUnknownFieldFails(t *testing.T) {
	data := encodeSwapResponseFrame(t, 9, "300000")
	if _, err := DecodeSwapOutAmount(data); err == nil {
		t.Fatalf("expected an error for an unrecognized field number")
	}
}

func TestAcceptUpToMaxSlippageMinOutput(t *testing.T) {
	calc := AcceptUpToMaxSlippage{ToleranceBps: 50} // 0.5%
	min := calc.MinOutput(big.NewInt(1_000_000))
	// 1_000_000 * 9950/10000 = 995_000
	if min.Cmp(big.NewInt(995_000)) != 0 {
		t.Fatalf("expected min output 995000, got %s", min)
	}
}

func TestEnsureSlippageRejectsBelowMinimum(t *testing.T) {
	if err := ensureSlippage(big.NewInt(900), big.NewInt(1000)); err == nil {
		t.Fatalf("expected slippage bound violation")
	}
	if err := ensureSlippage(big.NewInt(1000), big.NewInt(1000)); err != nil {
		t.Fatalf("expected exact match to pass: %v", err)
	}
}

func TestRetryThenExitBoundedAttempts(t *testing.T) {
	handler := RetryThenExit{MaxAttempts: 2}
	task := DexTask{Kind: DexTaskSwap}

	decision := handler.OnAnomaly(task, errTestAnomaly)
	if !decision.Retry || decision.Task.Attempts != 1 {
		t.Fatalf("expected first anomaly to retry with attempts=1, got %+v", decision)
	}

	decision = handler.OnAnomaly(decision.Task, errTestAnomaly)
	if !decision.Retry || decision.Task.Attempts != 2 {
		t.Fatalf("expected second anomaly to retry with attempts=2, got %+v", decision)
	}

	decision = handler.OnAnomaly(decision.Task, errTestAnomaly)
	if decision.Retry {
		t.Fatalf("expected third anomaly to exit, got retry")
	}
	if !decision.Result.Aborted {
		t.Fatalf("expected aborted result on exit")
	}
}

var errTestAnomaly = Validationf("test anomaly")
