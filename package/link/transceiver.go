package link

import (
	"errors"
	"time"
)

var (
	// ErrUnderflow is returned by Transmit when sample production could not
	// keep up with the output. It is a diagnostic, not a protocol failure.
	ErrUnderflow = errors.New("transmit underflow")
	// ErrOverflow is returned by Receive when incoming samples were dropped
	// because processing fell behind.
	ErrOverflow = errors.New("receive overflow")
	// ErrNotStarted is returned by Receive before StartReceiver was called.
	ErrNotStarted = errors.New("receiver not started")
)

// Transceiver is the half-duplex link under the ARQ layer. Transmit blocks
// until the frame has been handed to the medium; Receive blocks up to the
// given timeout and returns (nil, nil) when no frame arrived in time.
type Transceiver interface {
	Configure(frequency, sampleRate, gain float64) error
	StartReceiver() error
	StopReceiver() error
	Transmit(header Header, payload []byte, cfg FrameConfig) error
	Receive(timeout time.Duration) (*ReceivedFrame, error)
}
