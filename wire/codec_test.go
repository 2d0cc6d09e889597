package wire

import (
	"encoding/binary"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTripAllMessageTypes(t *testing.T) {
	messages := []Message{
		Ping{},
		NewOrder{ClientID: 7, ClOrdID: 1001, Side: SideBuy, Price: 101000, Qty: 5000, Tif: TifGTC},
		NewOrder{ClientID: 9, ClOrdID: 1002, Side: SideSell, Price: 99950, Qty: 1, Tif: TifIOC},
		Cancel{ClientID: 7, ClOrdID: 1001},
		Ack{ClOrdID: 1001, Text: "pong"},
		Ack{ClOrdID: 0, Text: ""},
		Trade{Price: 101000, Qty: 2000, TakerClientID: 3, MakerClientID: 2},
		BookDelta{Side: SideSell, Price: 101000, LevelQty: 3000},
		BookDelta{Side: SideBuy, Price: 99000, LevelQty: 0},
		Reject{ClOrdID: 55, Reason: "not found"},
	}

	for _, msg := range messages {
		frame := Encode(msg)

		decoded, consumed, err := Decode(frame)
		require.NoError(t, err, "decode %T", msg)
		require.Equal(t, len(frame), consumed, "decode %T must consume the whole frame", msg)
		require.Equal(t, msg, decoded)

		// Re-encoding the decoded value must reproduce the original bytes.
		assert.Equal(t, frame, Encode(decoded), "re-encode %T", msg)
	}
}

func TestDecodeIncompleteFrame(t *testing.T) {
	frame := Encode(NewOrder{ClientID: 1, ClOrdID: 2, Side: SideBuy, Price: 10, Qty: 1, Tif: TifGTC})

	// Every strict prefix is "incomplete", never an error, never consumed.
	for i := 0; i < len(frame); i++ {
		msg, consumed, err := Decode(frame[:i])
		require.NoError(t, err, "prefix of %d bytes", i)
		assert.Nil(t, msg)
		assert.Zero(t, consumed)
	}
}

func TestDecodeRetainsRemainder(t *testing.T) {
	first := Encode(Ack{ClOrdID: 1, Text: "pong"})
	second := Encode(Trade{Price: 5, Qty: 6, TakerClientID: 7, MakerClientID: 8})
	buf := append(append([]byte{}, first...), second...)
	// Trailing partial third frame.
	buf = append(buf, Encode(Ping{})[:3]...)

	msg, consumed, err := Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, Ack{ClOrdID: 1, Text: "pong"}, msg)
	assert.Equal(t, len(first), consumed)

	buf = buf[consumed:]
	msg, consumed, err = Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, Trade{Price: 5, Qty: 6, TakerClientID: 7, MakerClientID: 8}, msg)
	assert.Equal(t, len(second), consumed)

	msg, consumed, err = Decode(buf[consumed:])
	require.NoError(t, err)
	assert.Nil(t, msg)
	assert.Zero(t, consumed)
}

func TestDecodeFrameTooLarge(t *testing.T) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], MaxFrameBytes+1)

	_, _, err := Decode(buf[:])
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestDecodeUnknownType(t *testing.T) {
	frame := Encode(Ping{})
	binary.LittleEndian.PutUint16(frame[4:6], 9999)

	_, _, err := Decode(frame)
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestDecodeLengthMismatch(t *testing.T) {
	frame := Encode(Cancel{ClientID: 1, ClOrdID: 2})
	// Declare a body shorter than total_length implies.
	binary.LittleEndian.PutUint16(frame[6:8], 4)

	_, _, err := Decode(frame)
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestDecodeBadBodySize(t *testing.T) {
	// A CANCEL frame whose body is one byte short of the fixed layout.
	body := make([]byte, cancelBodyLen-1)
	frame := make([]byte, 0, 8+len(body))
	frame = binary.LittleEndian.AppendUint32(frame, uint32(headerSize+len(body)))
	frame = binary.LittleEndian.AppendUint16(frame, MsgCancel)
	frame = binary.LittleEndian.AppendUint16(frame, uint16(len(body)))
	frame = append(frame, body...)

	_, _, err := Decode(frame)
	assert.ErrorIs(t, err, ErrBadBody)
}

func TestOversizedTextTailIsClamped(t *testing.T) {
	long := strings.Repeat("x", 2*MaxFrameBytes)

	for _, msg := range []Message{
		Ack{ClOrdID: 7, Text: long},
		Reject{ClOrdID: 7, Reason: long},
	} {
		frame := Encode(msg)
		require.LessOrEqual(t, len(frame), 4+MaxFrameBytes, "%T frame within limit", msg)

		decoded, n, err := Decode(frame)
		require.NoError(t, err, "%T still round-trips", msg)
		assert.Equal(t, len(frame), n)
		switch m := decoded.(type) {
		case Ack:
			assert.Equal(t, long[:maxTailBytes], m.Text)
		case Reject:
			assert.Equal(t, long[:maxTailBytes], m.Reason)
		}
	}
}

func TestDecodeTruncatedTextTail(t *testing.T) {
	// REJECT declaring more reason bytes than the body carries.
	body := make([]byte, 8+2)
	binary.LittleEndian.PutUint16(body[8:10], 50)
	frame := make([]byte, 0, 8+len(body))
	frame = binary.LittleEndian.AppendUint32(frame, uint32(headerSize+len(body)))
	frame = binary.LittleEndian.AppendUint16(frame, MsgReject)
	frame = binary.LittleEndian.AppendUint16(frame, uint16(len(body)))
	frame = append(frame, body...)

	_, _, err := Decode(frame)
	assert.ErrorIs(t, err, ErrBadBody)
}
