package bridge

import (
	"io"

	"github.com/fxamacker/cbor/v2"

	"modesp/bus"
	"modesp/errcode"
)

// Wire format, one frame per bus message:
//
//	0x7E | len (u16 BE) | CBOR([topic..., retained, payload]) | CRC-16 (u16 BE)
//
// CRC-16-CCITT (init 0xFFFF, poly 0x1021) over the length bytes and the CBOR
// body. The delimiter is not escaped; the decoder resynchronizes on it after
// any corrupt or truncated frame.
const (
	frameDelimiter = 0x7E
	maxFrameLen    = 1024
	crcInit        = 0xFFFF
	crcPoly        = 0x1021
)

func crc16(crc uint16, p []byte) uint16 {
	for _, b := range p {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ crcPoly
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// EncodeFrame serializes a bus message into a single frame.
func EncodeFrame(topic bus.Topic, payload any, retained bool) ([]byte, error) {
	body := make([]any, 0, len(topic)+2)
	for _, part := range topic {
		body = append(body, part)
	}
	body = append(body, retained, payload)

	enc, err := cbor.Marshal(body)
	if err != nil {
		return nil, &errcode.E{C: errcode.Error, Op: "bridge.EncodeFrame", Msg: "cbor encode", Err: err}
	}
	if len(enc) > maxFrameLen {
		return nil, &errcode.E{C: errcode.Error, Op: "bridge.EncodeFrame", Msg: "frame too large"}
	}

	frame := make([]byte, 0, len(enc)+5)
	frame = append(frame, frameDelimiter, byte(len(enc)>>8), byte(len(enc)))
	frame = append(frame, enc...)
	crc := crc16(crcInit, frame[1:])
	return append(frame, byte(crc>>8), byte(crc)), nil
}

// WriteFrame encodes and writes one message to the stream.
func WriteFrame(w io.Writer, topic bus.Topic, payload any, retained bool) error {
	frame, err := EncodeFrame(topic, payload, retained)
	if err != nil {
		return err
	}
	_, err = w.Write(frame)
	return err
}

// Decoder is an incremental frame parser. Feed it arbitrary byte chunks;
// complete valid frames come out of Next. Garbage between frames and frames
// with bad CRCs are skipped and counted.
type Decoder struct {
	state    decodeState
	length   int
	body     []byte
	crcBytes [2]byte

	CRCErrors uint32
	BadFrames uint32
	frames    []decodedFrame
}

type decodeState uint8

const (
	stateHunt decodeState = iota
	stateLenHigh
	stateLenLow
	stateBody
	stateCRCHigh
	stateCRCLow
)

type decodedFrame struct {
	topic    bus.Topic
	payload  any
	retained bool
}

// Feed consumes a chunk of stream bytes.
func (d *Decoder) Feed(p []byte) {
	for _, b := range p {
		d.feedByte(b)
	}
}

func (d *Decoder) feedByte(b byte) {
	switch d.state {
	case stateHunt:
		if b == frameDelimiter {
			d.state = stateLenHigh
		}
	case stateLenHigh:
		d.length = int(b) << 8
		d.state = stateLenLow
	case stateLenLow:
		d.length |= int(b)
		if d.length == 0 || d.length > maxFrameLen {
			d.BadFrames++
			d.state = stateHunt
			return
		}
		d.body = d.body[:0]
		d.state = stateBody
	case stateBody:
		d.body = append(d.body, b)
		if len(d.body) == d.length {
			d.state = stateCRCHigh
		}
	case stateCRCHigh:
		d.crcBytes[0] = b
		d.state = stateCRCLow
	case stateCRCLow:
		d.crcBytes[1] = b
		d.state = stateHunt
		d.finishFrame()
	}
}

func (d *Decoder) finishFrame() {
	crc := crc16(crcInit, []byte{byte(d.length >> 8), byte(d.length)})
	crc = crc16(crc, d.body)
	if crc != uint16(d.crcBytes[0])<<8|uint16(d.crcBytes[1]) {
		d.CRCErrors++
		return
	}

	var body []any
	if err := cbor.Unmarshal(d.body, &body); err != nil || len(body) < 3 {
		d.BadFrames++
		return
	}
	retained, ok := body[len(body)-2].(bool)
	if !ok {
		d.BadFrames++
		return
	}
	topic := make(bus.Topic, 0, len(body)-2)
	for _, part := range body[:len(body)-2] {
		s, ok := part.(string)
		if !ok {
			d.BadFrames++
			return
		}
		topic = append(topic, s)
	}
	d.frames = append(d.frames, decodedFrame{
		topic:    topic,
		payload:  body[len(body)-1],
		retained: retained,
	})
}

// Next pops the oldest complete frame.
func (d *Decoder) Next() (topic bus.Topic, payload any, retained bool, ok bool) {
	if len(d.frames) == 0 {
		return nil, nil, false, false
	}
	f := d.frames[0]
	d.frames = d.frames[1:]
	return f.topic, f.payload, f.retained, true
}
