package link

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"time"
)

// PipeConfig shapes the simulated medium between two paired transceivers.
// Rates are probabilities in [0,1] applied per frame.
type PipeConfig struct {
	DropRate       float64 // frame lost outright
	HeaderErrRate  float64 // frame delivered with HeaderValid=false
	PayloadErrRate float64 // frame delivered with PayloadValid=false
	SelfHearing    bool    // sender also hears its own transmission
	Seed           int64
}

// Pipe is one end of an in-memory transceiver pair. It models the lossy
// half-duplex medium without any audio hardware; the CLI self-test mode and
// the session tests run over it.
type Pipe struct {
	peer     *Pipe
	queue    chan *ReceivedFrame
	cfg      PipeConfig
	mu       *sync.Mutex
	rng      *rand.Rand
	started  bool
	overflow atomic.Bool
}

// NewPair returns two connected pipe ends sharing one medium configuration.
func NewPair(cfg PipeConfig) (*Pipe, *Pipe) {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	mu := &sync.Mutex{}
	rng := rand.New(rand.NewSource(seed))
	a := &Pipe{queue: make(chan *ReceivedFrame, 64), cfg: cfg, mu: mu, rng: rng}
	b := &Pipe{queue: make(chan *ReceivedFrame, 64), cfg: cfg, mu: mu, rng: rng}
	a.peer = b
	b.peer = a
	return a, b
}

func (p *Pipe) Configure(frequency, sampleRate, gain float64) error { return nil }

func (p *Pipe) StartReceiver() error {
	p.started = true
	return nil
}

func (p *Pipe) StopReceiver() error {
	p.started = false
	return nil
}

func (p *Pipe) Transmit(header Header, payload []byte, cfg FrameConfig) error {
	p.deliver(p.peer, header, payload)
	if p.cfg.SelfHearing {
		// own energy folded back into the receive path, validity untouched
		p.enqueue(p, cleanFrame(header, payload))
	}
	return nil
}

func (p *Pipe) deliver(to *Pipe, header Header, payload []byte) {
	p.mu.Lock()
	drop := p.rng.Float64() < p.cfg.DropRate
	headerErr := p.rng.Float64() < p.cfg.HeaderErrRate
	payloadErr := p.rng.Float64() < p.cfg.PayloadErrRate
	p.mu.Unlock()

	if drop {
		return
	}
	frame := cleanFrame(header, payload)
	if headerErr {
		frame.HeaderValid = false
	}
	if payloadErr {
		frame.PayloadValid = false
	}
	p.enqueue(to, frame)
}

func (p *Pipe) enqueue(to *Pipe, frame *ReceivedFrame) {
	select {
	case to.queue <- frame:
	default:
		to.overflow.Store(true)
	}
}

func (p *Pipe) Receive(timeout time.Duration) (*ReceivedFrame, error) {
	if !p.started {
		return nil, ErrNotStarted
	}
	if p.overflow.Swap(false) {
		return nil, ErrOverflow
	}
	select {
	case frame := <-p.queue:
		return frame, nil
	case <-time.After(timeout):
		return nil, nil
	}
}

func cleanFrame(header Header, payload []byte) *ReceivedFrame {
	buf := make([]byte, len(payload))
	copy(buf, payload)
	return &ReceivedFrame{
		Header:       header,
		HeaderValid:  true,
		Payload:      buf,
		PayloadValid: true,
		Stats:        SignalStats{RSSI: -12.0, SNR: 22.5},
	}
}
