package link

import (
	"io"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// DLT_USER0; the capture holds raw frame images, not a standard link type.
const captureLinkType = layers.LinkType(147)

// Capture wraps a transceiver and records every transmitted and received
// frame image to a pcap stream for offline diagnosis.
type Capture struct {
	Transceiver

	mu      sync.Mutex
	w       *pcapgo.Writer
	lastErr error
}

func NewCapture(inner Transceiver, out io.Writer) (*Capture, error) {
	w := pcapgo.NewWriter(out)
	if err := w.WriteFileHeader(4096, captureLinkType); err != nil {
		return nil, err
	}
	return &Capture{Transceiver: inner, w: w}, nil
}

func (c *Capture) Transmit(header Header, payload []byte, cfg FrameConfig) error {
	c.record(encodeFrameImage(header, payload))
	return c.Transceiver.Transmit(header, payload, cfg)
}

func (c *Capture) Receive(timeout time.Duration) (*ReceivedFrame, error) {
	frame, err := c.Transceiver.Receive(timeout)
	if frame != nil {
		c.record(encodeFrameImage(frame.Header, frame.Payload))
	}
	return frame, err
}

// Err reports the first write error, if any.
func (c *Capture) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Capture) record(image []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ci := gopacket.CaptureInfo{
		Timestamp:     time.Now(),
		CaptureLength: len(image),
		Length:        len(image),
	}
	if err := c.w.WritePacket(ci, image); err != nil && c.lastErr == nil {
		c.lastErr = err
	}
}
