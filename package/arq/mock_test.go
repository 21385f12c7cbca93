package arq

import (
	"sync"
	"time"

	"radio_link/package/link"
)

type txRecord struct {
	header  link.Header
	payload []byte
}

// mockTrx is a scripted transceiver: transmissions are logged, receptions
// are served from an injected queue, and an empty queue reads as a timeout.
type mockTrx struct {
	mu         sync.Mutex
	tx         []txRecord
	rx         []*link.ReceivedFrame
	rxErrs     []error
	txErrs     []error
	onTransmit func(m *mockTrx, header link.Header, payload []byte)
	configured int
	started    int
	stopped    int
}

func (m *mockTrx) Configure(frequency, sampleRate, gain float64) error {
	m.configured++
	return nil
}

func (m *mockTrx) StartReceiver() error {
	m.started++
	return nil
}

func (m *mockTrx) StopReceiver() error {
	m.stopped++
	return nil
}

func (m *mockTrx) Transmit(header link.Header, payload []byte, cfg link.FrameConfig) error {
	m.mu.Lock()
	buf := make([]byte, len(payload))
	copy(buf, payload)
	m.tx = append(m.tx, txRecord{header: header, payload: buf})
	cb := m.onTransmit
	var err error
	if len(m.txErrs) > 0 {
		err = m.txErrs[0]
		m.txErrs = m.txErrs[1:]
	}
	m.mu.Unlock()
	if cb != nil {
		cb(m, header, buf)
	}
	return err
}

func (m *mockTrx) Receive(timeout time.Duration) (*link.ReceivedFrame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.rxErrs) > 0 {
		err := m.rxErrs[0]
		m.rxErrs = m.rxErrs[1:]
		return nil, err
	}
	if len(m.rx) > 0 {
		frame := m.rx[0]
		m.rx = m.rx[1:]
		return frame, nil
	}
	return nil, nil
}

func (m *mockTrx) inject(frame *link.ReceivedFrame) {
	m.mu.Lock()
	m.rx = append(m.rx, frame)
	m.mu.Unlock()
}

func (m *mockTrx) injectErr(err error) {
	m.mu.Lock()
	m.rxErrs = append(m.rxErrs, err)
	m.mu.Unlock()
}

func (m *mockTrx) transmissions() []txRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]txRecord, len(m.tx))
	copy(out, m.tx)
	return out
}

func goodFrame(pid uint16, ptype byte, payloadLen int) *link.ReceivedFrame {
	return &link.ReceivedFrame{
		Header:       link.EncodeHeader(pid, ptype),
		HeaderValid:  true,
		Payload:      link.RandomPayload(payloadLen),
		PayloadValid: true,
		Stats:        link.SignalStats{RSSI: -10, SNR: 18},
	}
}

// autoAck makes the mock answer every DATA transmission with a matching ACK.
func autoAck(m *mockTrx, header link.Header, payload []byte) {
	if header.Type() == link.PacketData {
		m.inject(goodFrame(header.PacketID(), link.PacketAck, ackPayloadLen))
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.SettleDelayMs = 0
	cfg.StartupDelayMs = 0
	cfg.AckTimeoutMs = 10
	cfg.PollIntervalUs = 1000
	cfg.IdleTimeoutMs = 20
	return cfg
}

func quietReporter() *Reporter {
	return NewReporter(false, &nopWriter{})
}

type nopWriter struct{}

func (*nopWriter) Write(p []byte) (int, error) { return len(p), nil }
