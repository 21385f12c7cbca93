package link

import (
	"encoding/binary"
	"math/rand"
)

// Packet types carried in header byte 2.
const (
	PacketData = 59
	PacketAck  = 77
)

const HeaderLen = 8

// Header is the fixed 8-byte frame header.
// Layout: PacketID(2, big-endian) | Type(1) | filler(5)
// The filler bytes carry no meaning; they are transmitted as random bytes.
type Header [HeaderLen]byte

// EncodeHeader builds a header for the given packet id and type.
func EncodeHeader(pid uint16, ptype byte) Header {
	var h Header
	binary.BigEndian.PutUint16(h[0:2], pid)
	h[2] = ptype
	for i := 3; i < HeaderLen; i++ {
		h[i] = byte(rand.Intn(256))
	}
	return h
}

func (h Header) PacketID() uint16 {
	return uint16(h[0])<<8 | uint16(h[1])
}

func (h Header) Type() byte {
	return h[2]
}

// SignalStats are the receive-side signal estimates reported with each frame.
type SignalStats struct {
	RSSI float64 // received signal strength [dB]
	SNR  float64 // signal-to-noise estimate [dB]
}

// ReceivedFrame is one received-and-parsed frame. Header and payload validity
// are independent: the header can check out while the payload is corrupted,
// and the other way around.
type ReceivedFrame struct {
	Header       Header
	HeaderValid  bool
	Payload      []byte
	PayloadValid bool
	Stats        SignalStats
}

// FrameConfig selects modulation/coding parameters for transmission. The ARQ
// layer treats it as opaque; transceivers interpret what they support.
type FrameConfig struct {
	Check     string // data validity check, e.g. "crc32"
	ModScheme string // modulation scheme, e.g. "qpsk"
	InnerFEC  string // inner FEC scheme, e.g. "h74"
	OuterFEC  string // outer FEC scheme, e.g. "none"
}

// DefaultFrameConfig returns the scheme selection used when nothing else is
// requested.
func DefaultFrameConfig() FrameConfig {
	return FrameConfig{
		Check:     "crc32",
		ModScheme: "qpsk",
		InnerFEC:  "h74",
		OuterFEC:  "none",
	}
}

// RandomPayload fills a fresh payload of length n with random bytes.
func RandomPayload(n int) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = byte(rand.Intn(256))
	}
	return p
}
