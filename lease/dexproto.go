package lease

import (
	"fmt"
	"math/big"

	"google.golang.org/protobuf/encoding/protowire"
)

// DEX ack responses arrive as a length-prefixed sequence of protobuf
// MsgResponse frames; this module only ever needs one scalar field out of
// the first frame (token_out_amount for Osmosis, return_amount for
// Astroport), so it walks the wire format directly with protowire rather
// than depending on generated message types for a single field.

// swapOutAmountFieldNumbers lists the protobuf field numbers known to carry
// the swapped-out amount across the DEX protocols this module talks to.
var swapOutAmountFieldNumbers = []protowire.Number{
	protowire.Number(2), // Osmosis MsgSwapExactAmountInResponse.token_out_amount
	protowire.Number(1), // Astroport-style single-field response.return_amount
}

// DecodeSwapOutAmount extracts the decimal out-amount string from the first
// length-prefixed MsgResponse frame in data, returning it as a *big.Int.
func DecodeSwapOutAmount(data []byte) (*big.Int, error) {
	frame, _, err := decodeFirstFrame(data)
	if err != nil {
		return nil, err
	}
	for len(frame) > 0 {
		num, typ, n := protowire.ConsumeTag(frame)
		if n < 0 {
			return nil, fmt.Errorf("%w: malformed field tag", ErrDecode)
		}
		frame = frame[n:]
		if typ != protowire.BytesType {
			skip := protowire.ConsumeFieldValue(num, typ, frame)
			if skip < 0 {
				return nil, fmt.Errorf("%w: malformed field value", ErrDecode)
			}
			frame = frame[skip:]
			continue
		}
		value, n := protowire.ConsumeBytes(frame)
		if n < 0 {
			return nil, fmt.Errorf("%w: malformed bytes field", ErrDecode)
		}
		frame = frame[n:]
		if !isSwapOutField(num) {
			continue
		}
		amount, ok := new(big.Int).SetString(string(value), 10)
		if !ok {
			return nil, fmt.Errorf("%w: non-decimal swap amount %q", ErrDecode, value)
		}
		return amount, nil
	}
	return nil, fmt.Errorf("%w: no recognized out-amount field", ErrDecode)
}

func isSwapOutField(num protowire.Number) bool {
	for _, candidate := range swapOutAmountFieldNumbers {
		if candidate == num {
			return true
		}
	}
	return false
}

// decodeFirstFrame reads the first length-prefixed MsgResponse frame off
// data and returns its bytes plus the number of bytes consumed.
func decodeFirstFrame(data []byte) ([]byte, int, error) {
	if len(data) == 0 {
		return nil, 0, fmt.Errorf("%w: empty dex response", ErrDecode)
	}
	length, n := protowire.ConsumeVarint(data)
	if n < 0 {
		return nil, 0, fmt.Errorf("%w: malformed frame length", ErrDecode)
	}
	data = data[n:]
	if uint64(len(data)) < length {
		return nil, 0, fmt.Errorf("%w: truncated frame", ErrDecode)
	}
	return data[:length], n + int(length), nil
}
