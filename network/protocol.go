package network

import (
	"encoding/binary"
	"errors"
	"io"
)

// MessageType identifies the semantic meaning of a message
type MessageType uint8

const (
	// Control messages
	MsgHeartbeat  MessageType = 0x01
	MsgHello      MessageType = 0x02 // Server greeting: engine, version, mode, seed
	MsgDisconnect MessageType = 0x03

	// Feed messages
	MsgToken    MessageType = 0x10 // One token, flat JSON
	MsgSnapshot MessageType = 0x11 // Diagnostics snapshot JSON
)

func (t MessageType) String() string {
	switch t {
	case MsgHeartbeat:
		return "heartbeat"
	case MsgHello:
		return "hello"
	case MsgDisconnect:
		return "disconnect"
	case MsgToken:
		return "token"
	case MsgSnapshot:
		return "snapshot"
	default:
		return "unknown"
	}
}

// Header precedes every message on the wire
// Fixed 12 bytes: [Type:1][Flags:1][Seq:4][Ack:4][Len:2]
const HeaderSize = 12

// MaxPayload is the largest payload the 16-bit length field can carry
const MaxPayload = 65535

// Header flags
const (
	FlagNone    uint8 = 0x00
	FlagReplay  uint8 = 0x01 // Message originates from a replay run
	FlagPartial uint8 = 0x02 // Snapshot had its point cloud dropped to fit
)

// ErrPayloadTooLarge is returned by Encode for payloads over MaxPayload
var ErrPayloadTooLarge = errors.New("payload exceeds maximum size")

// Message represents a framed network message
type Message struct {
	Type    MessageType
	Flags   uint8
	Seq     uint32 // Feed sequence for token and snapshot messages, 0 otherwise
	Ack     uint32 // Reserved; the feed is one-way and leaves it zero
	Payload []byte
}

// Encode writes the header and payload
func (m *Message) Encode(w io.Writer) error {
	payloadLen := len(m.Payload)
	if payloadLen > MaxPayload {
		return ErrPayloadTooLarge
	}

	header := make([]byte, HeaderSize)
	header[0] = byte(m.Type)
	header[1] = m.Flags
	binary.BigEndian.PutUint32(header[2:6], m.Seq)
	binary.BigEndian.PutUint32(header[6:10], m.Ack)
	binary.BigEndian.PutUint16(header[10:12], uint16(payloadLen))

	if _, err := w.Write(header); err != nil {
		return err
	}

	if payloadLen > 0 {
		if _, err := w.Write(m.Payload); err != nil {
			return err
		}
	}

	return nil
}

// Decode reads a message from a reader
func Decode(r io.Reader) (*Message, error) {
	header := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}

	payloadLen := binary.BigEndian.Uint16(header[10:12])

	m := &Message{
		Type:  MessageType(header[0]),
		Flags: header[1],
		Seq:   binary.BigEndian.Uint32(header[2:6]),
		Ack:   binary.BigEndian.Uint32(header[6:10]),
	}

	if payloadLen > 0 {
		m.Payload = make([]byte, payloadLen)
		if _, err := io.ReadFull(r, m.Payload); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// NewMessage creates a message with the given type and payload
func NewMessage(t MessageType, payload []byte) *Message {
	return &Message{
		Type:    t,
		Flags:   FlagNone,
		Payload: payload,
	}
}

// Hello is the greeting payload sent to every new peer
type Hello struct {
	Engine  string `json:"engine"`
	Version string `json:"version"`
	Mode    string `json:"mode"`
	Seed    uint64 `json:"seed"`
}
