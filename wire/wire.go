// Package wire implements the length-prefixed binary framing used between
// clients and the gateway. All multi-byte integers are little-endian. A frame
// is [u32 total_length][u16 message_type][u16 body_length][body], where
// total_length counts everything after itself (type + body_length + body).
package wire

import "errors"

// Message type identifiers.
const (
	MsgPing      uint16 = 1
	MsgNewOrder  uint16 = 10
	MsgCancel    uint16 = 11
	MsgAck       uint16 = 100
	MsgTrade     uint16 = 101
	MsgBookDelta uint16 = 102
	MsgReject    uint16 = 199
)

// headerSize is the fixed prefix before the body: type (2) + body_length (2).
const headerSize = 4

// MaxFrameBytes caps the declared total_length of a frame. The largest
// legitimate body is a NEW_ORDER at 34 bytes; text payloads are bounded by
// their u16 length field. Anything declaring more than this is garbage.
const MaxFrameBytes = 4096

// Side values on the wire.
const (
	SideBuy  uint8 = 0
	SideSell uint8 = 1
)

// Time-in-force values on the wire.
const (
	TifGTC uint8 = 0
	TifIOC uint8 = 1
)

// Framing errors. All of them are fatal to the connection that produced the
// frame: the stream position is ambiguous once a frame is malformed, so the
// gateway's policy is to drop the connection.
var (
	ErrFrameTooLarge  = errors.New("wire: declared frame length exceeds maximum")
	ErrLengthMismatch = errors.New("wire: body length disagrees with total length")
	ErrUnknownType    = errors.New("wire: unknown message type")
	ErrBadBody        = errors.New("wire: body size does not match message layout")
)

// Message is any frame payload that can cross the wire.
type Message interface {
	// MsgType returns the message type identifier from the frame header.
	MsgType() uint16
	// appendBody serializes the body after dst and returns the extended slice.
	appendBody(dst []byte) []byte
	// bodyLen reports the serialized body size in bytes.
	bodyLen() int
}

// Ping requests a gateway-level liveness acknowledgement. Empty body.
type Ping struct{}

// NewOrder submits a limit order.
type NewOrder struct {
	ClientID uint64
	ClOrdID  uint64
	Side     uint8
	Price    int64
	Qty      int64
	Tif      uint8
}

// Cancel requests removal of a resting order identified by its owner.
type Cancel struct {
	ClientID uint64
	ClOrdID  uint64
}

// Ack reports that a command was processed (not necessarily filled).
type Ack struct {
	ClOrdID uint64
	Text    string
}

// Trade reports one match. Price is always the maker's resting price.
type Trade struct {
	Price         int64
	Qty           int64
	TakerClientID uint64
	MakerClientID uint64
}

// BookDelta reports the new aggregate resting quantity at a price level.
// LevelQty of zero means the level is gone.
type BookDelta struct {
	Side     uint8
	Price    int64
	LevelQty int64
}

// Reject reports that a command was refused, with a human-readable reason.
type Reject struct {
	ClOrdID uint64
	Reason  string
}

func (Ping) MsgType() uint16      { return MsgPing }
func (NewOrder) MsgType() uint16  { return MsgNewOrder }
func (Cancel) MsgType() uint16    { return MsgCancel }
func (Ack) MsgType() uint16       { return MsgAck }
func (Trade) MsgType() uint16     { return MsgTrade }
func (BookDelta) MsgType() uint16 { return MsgBookDelta }
func (Reject) MsgType() uint16    { return MsgReject }

// Fixed body sizes for layout validation during decode.
const (
	newOrderBodyLen  = 8 + 8 + 1 + 8 + 8 + 1
	cancelBodyLen    = 8 + 8
	tradeBodyLen     = 8 + 8 + 8 + 8
	bookDeltaBodyLen = 1 + 8 + 8
)
