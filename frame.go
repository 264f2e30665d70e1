package go_bcapi

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
)

// BCAPI wire framing
//
// Every message travels as one frame:
//
//	[length:4][flags:1][reserved:3][sequence:4][kind:1][payload...]
//
// All integers are big-endian. The length field counts every byte after
// itself, so a frame with an empty payload declares length 9. The flags
// byte carries BCAPI_FLAG_DEFLATE when the payload is zlib-compressed;
// the three reserved bytes are always zero, which the resync scan uses
// when hunting for a frame boundary in a corrupted stream.

const (
	// Bytes of frame body that precede the payload: flags, reserved,
	// sequence, kind.
	frameHeaderSize = 9
	// Bytes needed before the length field can be examined.
	frameLengthSize = 4
)

// EncodeFrame serializes a message into a wire frame. When compress is
// true and the payload is non-empty, the payload is zlib-compressed and
// the deflate flag set; the node inflates it transparently.
func EncodeFrame(msg *Message, compress bool) (*Stream, error) {
	if msg == nil {
		return nil, ErrInvalidArgument
	}
	payload := msg.Payload
	flags := uint8(0)
	if compress && len(payload) > 0 {
		var buf bytes.Buffer
		zw := zlib.NewWriter(&buf)
		if _, err := zw.Write(payload); err != nil {
			zw.Close()
			return nil, NewFrameError(msg.Kind, "compressing", err)
		}
		if err := zw.Close(); err != nil {
			return nil, NewFrameError(msg.Kind, "compressing", err)
		}
		// Incompressible payloads stay uncompressed; the flag byte tells
		// the node which form it received.
		if buf.Len() < len(payload) {
			payload = buf.Bytes()
			flags = BCAPI_FLAG_DEFLATE
		}
	}

	length := uint32(frameHeaderSize + len(payload))
	if length > BCAPI_MAX_FRAME_SIZE {
		return nil, NewFrameError(msg.Kind, "encoding", ErrFrameTooLarge)
	}

	frame := NewStreamPooled(frameLengthSize + int(length))
	if err := frame.WriteUint32(length); err != nil {
		return nil, err
	}
	if err := frame.WriteByte(flags); err != nil {
		return nil, err
	}
	if _, err := frame.Write([]byte{0, 0, 0}); err != nil {
		return nil, err
	}
	if err := frame.WriteUint32(msg.Sequence); err != nil {
		return nil, err
	}
	if err := frame.WriteByte(msg.Kind); err != nil {
		return nil, err
	}
	if _, err := frame.Write(payload); err != nil {
		return nil, err
	}
	return frame, nil
}

// FrameDecoder is an incremental frame parser. Feed it byte chunks of any
// size, in any split, and it emits every complete message in order.
//
// The decoder never gives up on the stream: a frame declaring an
// impossible length or carrying non-zero reserved bytes is treated as
// corruption, and the decoder discards bytes one at a time until it finds
// the next plausible frame boundary. Sound frames of an unknown kind are
// skipped whole. Both conditions are reported through OnError when set,
// and counted either way.
//
// FrameDecoder is not safe for concurrent use; the session pump is its
// only caller.
type FrameDecoder struct {
	buf *bytes.Buffer

	// OnError receives a ProtocolError or FrameError for each recovered
	// fault. Optional; faults are logged and counted regardless.
	OnError func(error)

	skippedFrames  uint64
	discardedBytes uint64
	resyncing      bool
}

// NewFrameDecoder creates an empty decoder.
func NewFrameDecoder() *FrameDecoder {
	return &FrameDecoder{buf: new(bytes.Buffer)}
}

// Feed appends data to the decoder and returns every message completed by
// it, in wire order. Partial frames stay buffered for the next call.
// Corruption never fails the stream; it is skipped and reported.
func (d *FrameDecoder) Feed(data []byte) []*Message {
	d.buf.Write(data)
	var msgs []*Message
	for {
		msg, ok := d.next()
		if !ok {
			break
		}
		if msg != nil {
			msgs = append(msgs, msg)
		}
	}
	return msgs
}

// Buffered returns the number of bytes held for an incomplete frame.
func (d *FrameDecoder) Buffered() int {
	return d.buf.Len()
}

// SkippedFrames returns the number of structurally sound frames dropped
// for carrying an unknown kind or an undecodable payload.
func (d *FrameDecoder) SkippedFrames() uint64 {
	return d.skippedFrames
}

// DiscardedBytes returns the number of bytes thrown away while hunting
// for a frame boundary after corruption.
func (d *FrameDecoder) DiscardedBytes() uint64 {
	return d.discardedBytes
}

// next attempts to parse one frame from the buffer. It returns (msg, true)
// for a decoded message, (nil, true) when a frame was consumed but yielded
// nothing (skipped), and (nil, false) when more bytes are needed.
func (d *FrameDecoder) next() (*Message, bool) {
	for {
		raw := d.buf.Bytes()
		if len(raw) < frameLengthSize {
			return nil, false
		}

		length := binary.BigEndian.Uint32(raw)
		if length < frameHeaderSize || length > BCAPI_MAX_FRAME_SIZE {
			d.resync(fmt.Sprintf("implausible frame length %d", length))
			continue
		}

		// The reserved bytes are always zero on the wire. Anything else
		// means the length field we just trusted was payload data, so
		// reject before waiting for length bytes that may never arrive.
		if len(raw) < 8 {
			return nil, false
		}
		if raw[5] != 0 || raw[6] != 0 || raw[7] != 0 {
			d.resync("non-zero reserved bytes")
			continue
		}

		total := frameLengthSize + int(length)
		if len(raw) < total {
			return nil, false
		}

		flags := raw[4]
		sequence := binary.BigEndian.Uint32(raw[8:12])
		kind := raw[12]
		body := raw[13:total]
		d.resyncing = false

		if kind == BCAPI_MSG_ANY || kind > BCAPI_MSG_ERROR {
			d.skipFrame(total, NewProtocolError(fmt.Sprintf("unknown message kind %d", kind), int(kind), false))
			return nil, true
		}

		payload := make([]byte, len(body))
		copy(payload, body)
		d.buf.Next(total)

		if flags&BCAPI_FLAG_DEFLATE != 0 {
			inflated, err := inflatePayload(payload)
			if err != nil {
				d.skippedFrames++
				d.report(NewFrameError(kind, "decompressing", err))
				return nil, true
			}
			payload = inflated
		}

		Debug("Decoded %s frame, seq=%d, %d payload bytes", getMessageKindName(kind), sequence, len(payload))
		return NewMessage(kind, sequence, payload), true
	}
}

// resync drops a single byte and re-examines the stream from the next
// one. A run of garbage is reported once when it starts, then consumed
// silently until the next genuine frame boundary.
func (d *FrameDecoder) resync(reason string) {
	d.buf.Next(1)
	d.discardedBytes++
	if !d.resyncing {
		d.resyncing = true
		d.report(NewProtocolError(reason+", scanning for next frame", 0, false))
	}
}

// skipFrame consumes a whole structurally valid frame without decoding it.
func (d *FrameDecoder) skipFrame(total int, err error) {
	d.buf.Next(total)
	d.skippedFrames++
	d.report(err)
}

func (d *FrameDecoder) report(err error) {
	Warning("Frame decoder: %v", err)
	if d.OnError != nil {
		d.OnError(err)
	}
}

// inflatePayload zlib-decompresses a frame payload, refusing to expand
// past the frame size limit.
func inflatePayload(data []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	var out bytes.Buffer
	// +1 so a payload inflating exactly to the limit passes and anything
	// larger is caught.
	n, err := io.Copy(&out, io.LimitReader(zr, BCAPI_MAX_FRAME_SIZE+1))
	if err != nil {
		return nil, err
	}
	if n > BCAPI_MAX_FRAME_SIZE {
		return nil, ErrFrameTooLarge
	}
	return out.Bytes(), nil
}
