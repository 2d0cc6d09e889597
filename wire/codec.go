package wire

import "encoding/binary"

// Decode parses the first complete frame in buf. It returns the decoded
// message and the number of bytes consumed. When buf does not yet hold a
// complete frame it returns (nil, 0, nil) so the caller can retain the
// remainder and read more. A non-nil error means the stream is malformed and
// the connection should be dropped; no bytes are considered consumed.
func Decode(buf []byte) (Message, int, error) {
	if len(buf) < 4 {
		return nil, 0, nil
	}
	total := binary.LittleEndian.Uint32(buf[0:4])
	if total > MaxFrameBytes {
		return nil, 0, ErrFrameTooLarge
	}
	if total < headerSize {
		return nil, 0, ErrLengthMismatch
	}
	if len(buf) < 4+int(total) {
		return nil, 0, nil
	}

	msgType := binary.LittleEndian.Uint16(buf[4:6])
	bodyLen := binary.LittleEndian.Uint16(buf[6:8])
	if int(total) != headerSize+int(bodyLen) {
		return nil, 0, ErrLengthMismatch
	}
	body := buf[8 : 8+int(bodyLen)]
	consumed := 4 + int(total)

	msg, err := decodeBody(msgType, body)
	if err != nil {
		return nil, 0, err
	}
	return msg, consumed, nil
}

func decodeBody(msgType uint16, body []byte) (Message, error) {
	switch msgType {
	case MsgPing:
		if len(body) != 0 {
			return nil, ErrBadBody
		}
		return Ping{}, nil

	case MsgNewOrder:
		if len(body) != newOrderBodyLen {
			return nil, ErrBadBody
		}
		return NewOrder{
			ClientID: binary.LittleEndian.Uint64(body[0:8]),
			ClOrdID:  binary.LittleEndian.Uint64(body[8:16]),
			Side:     body[16],
			Price:    int64(binary.LittleEndian.Uint64(body[17:25])),
			Qty:      int64(binary.LittleEndian.Uint64(body[25:33])),
			Tif:      body[33],
		}, nil

	case MsgCancel:
		if len(body) != cancelBodyLen {
			return nil, ErrBadBody
		}
		return Cancel{
			ClientID: binary.LittleEndian.Uint64(body[0:8]),
			ClOrdID:  binary.LittleEndian.Uint64(body[8:16]),
		}, nil

	case MsgAck:
		text, err := decodeTail(body, 8)
		if err != nil {
			return nil, err
		}
		return Ack{
			ClOrdID: binary.LittleEndian.Uint64(body[0:8]),
			Text:    text,
		}, nil

	case MsgTrade:
		if len(body) != tradeBodyLen {
			return nil, ErrBadBody
		}
		return Trade{
			Price:         int64(binary.LittleEndian.Uint64(body[0:8])),
			Qty:           int64(binary.LittleEndian.Uint64(body[8:16])),
			TakerClientID: binary.LittleEndian.Uint64(body[16:24]),
			MakerClientID: binary.LittleEndian.Uint64(body[24:32]),
		}, nil

	case MsgBookDelta:
		if len(body) != bookDeltaBodyLen {
			return nil, ErrBadBody
		}
		return BookDelta{
			Side:     body[0],
			Price:    int64(binary.LittleEndian.Uint64(body[1:9])),
			LevelQty: int64(binary.LittleEndian.Uint64(body[9:17])),
		}, nil

	case MsgReject:
		reason, err := decodeTail(body, 8)
		if err != nil {
			return nil, err
		}
		return Reject{
			ClOrdID: binary.LittleEndian.Uint64(body[0:8]),
			Reason:  reason,
		}, nil
	}
	return nil, ErrUnknownType
}

// decodeTail reads a [u16 len][bytes] string that starts at offset and must
// run exactly to the end of the body.
func decodeTail(body []byte, offset int) (string, error) {
	if len(body) < offset+2 {
		return "", ErrBadBody
	}
	n := int(binary.LittleEndian.Uint16(body[offset : offset+2]))
	if len(body) != offset+2+n {
		return "", ErrBadBody
	}
	return string(body[offset+2 : offset+2+n]), nil
}

// Encode serializes msg into a fresh frame.
func Encode(msg Message) []byte {
	return Append(nil, msg)
}

// Append serializes msg as a frame onto dst and returns the extended slice.
// Callers on the write path reuse one buffer across frames to avoid
// per-message allocation.
func Append(dst []byte, msg Message) []byte {
	bodyLen := msg.bodyLen()
	dst = binary.LittleEndian.AppendUint32(dst, uint32(headerSize+bodyLen))
	dst = binary.LittleEndian.AppendUint16(dst, msg.MsgType())
	dst = binary.LittleEndian.AppendUint16(dst, uint16(bodyLen))
	return msg.appendBody(dst)
}

// maxTailBytes caps the variable text tail of ACK and REJECT so the encoded
// frame never exceeds MaxFrameBytes and the declared u16 tail length always
// matches the bytes appended. Longer text is truncated.
const maxTailBytes = MaxFrameBytes - headerSize - 8 - 2

func clampTail(s string) string {
	if len(s) > maxTailBytes {
		return s[:maxTailBytes]
	}
	return s
}

func (Ping) bodyLen() int      { return 0 }
func (NewOrder) bodyLen() int  { return newOrderBodyLen }
func (Cancel) bodyLen() int    { return cancelBodyLen }
func (m Ack) bodyLen() int     { return 8 + 2 + len(clampTail(m.Text)) }
func (Trade) bodyLen() int     { return tradeBodyLen }
func (BookDelta) bodyLen() int { return bookDeltaBodyLen }
func (m Reject) bodyLen() int  { return 8 + 2 + len(clampTail(m.Reason)) }

func (Ping) appendBody(dst []byte) []byte { return dst }

func (m NewOrder) appendBody(dst []byte) []byte {
	dst = binary.LittleEndian.AppendUint64(dst, m.ClientID)
	dst = binary.LittleEndian.AppendUint64(dst, m.ClOrdID)
	dst = append(dst, m.Side)
	dst = binary.LittleEndian.AppendUint64(dst, uint64(m.Price))
	dst = binary.LittleEndian.AppendUint64(dst, uint64(m.Qty))
	return append(dst, m.Tif)
}

func (m Cancel) appendBody(dst []byte) []byte {
	dst = binary.LittleEndian.AppendUint64(dst, m.ClientID)
	return binary.LittleEndian.AppendUint64(dst, m.ClOrdID)
}

func (m Ack) appendBody(dst []byte) []byte {
	text := clampTail(m.Text)
	dst = binary.LittleEndian.AppendUint64(dst, m.ClOrdID)
	dst = binary.LittleEndian.AppendUint16(dst, uint16(len(text)))
	return append(dst, text...)
}

func (m Trade) appendBody(dst []byte) []byte {
	dst = binary.LittleEndian.AppendUint64(dst, uint64(m.Price))
	dst = binary.LittleEndian.AppendUint64(dst, uint64(m.Qty))
	dst = binary.LittleEndian.AppendUint64(dst, m.TakerClientID)
	return binary.LittleEndian.AppendUint64(dst, m.MakerClientID)
}

func (m BookDelta) appendBody(dst []byte) []byte {
	dst = append(dst, m.Side)
	dst = binary.LittleEndian.AppendUint64(dst, uint64(m.Price))
	return binary.LittleEndian.AppendUint64(dst, uint64(m.LevelQty))
}

func (m Reject) appendBody(dst []byte) []byte {
	reason := clampTail(m.Reason)
	dst = binary.LittleEndian.AppendUint64(dst, m.ClOrdID)
	dst = binary.LittleEndian.AppendUint16(dst, uint16(len(reason)))
	return append(dst, reason...)
}
