package link

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/xthexder/go-jack"
)

// Physical-layer parameters of the audio link.
const (
	SampleRate     = 48000
	ChirpStartFreq = 2000
	ChirpEndFreq   = 10000
	PreambleLen    = 480 // samples
	samplesPerBit  = 4
	syncThreshold  = 0.2 // minimum preamble correlation to accept sync
	syncHoldoff    = 240 // samples past the correlation peak before decoding
	syncPeakWindow = 16  // peak search span after the first threshold crossing
	MaxPayloadLen  = 1024
)

// wire image after the preamble, all CRC8-guarded sections independent:
//   payloadLen(2) | header(8) | headerCRC(1) | payload(n) | payloadCRC(1)
const framePrefixBits = 8 * (2 + HeaderLen + 1)

// Modem is the acoustic transceiver: frames are line-coded onto audio
// samples moving through the JACK input/output channels, with a chirp
// preamble for synchronisation. A radio front-end rendered on a sound card.
type Modem struct {
	input    chan jack.AudioSample
	output   chan jack.AudioSample
	preamble []jack.AudioSample

	frames    chan *ReceivedFrame
	stop      chan struct{}
	started   bool
	overflow  atomic.Bool
	underflow atomic.Bool
}

func NewModem(output, input chan jack.AudioSample) *Modem {
	return &Modem{
		input:    input,
		output:   output,
		preamble: ChirpPreamble(),
		frames:   make(chan *ReceivedFrame, 16),
	}
}

// Configure is a no-op for the audio front-end: the sample rate is pinned by
// the JACK server and there is no carrier to tune.
func (m *Modem) Configure(frequency, sampleRate, gain float64) error {
	return nil
}

func (m *Modem) StartReceiver() error {
	if m.started {
		return nil
	}
	m.started = true
	m.stop = make(chan struct{})
	go m.run()
	return nil
}

func (m *Modem) StopReceiver() error {
	if !m.started {
		return nil
	}
	m.started = false
	close(m.stop)
	return nil
}

func (m *Modem) run() {
	d := newDemodulator(m.preamble)
	for {
		select {
		case <-m.stop:
			return
		case sample := <-m.input:
			frame := d.push(float64(sample))
			if frame == nil {
				continue
			}
			select {
			case m.frames <- frame:
			default:
				// decode outpaced the consumer
				m.overflow.Store(true)
			}
		}
	}
}

// Transmit modulates the frame onto the output channel. Samples that do not
// fit are dropped and reported as an underflow.
func (m *Modem) Transmit(header Header, payload []byte, cfg FrameConfig) error {
	dropped := false
	for _, sample := range ModulateFrame(m.preamble, header, payload) {
		select {
		case m.output <- sample:
		default:
			dropped = true
		}
	}
	if dropped || m.underflow.Swap(false) {
		return ErrUnderflow
	}
	return nil
}

func (m *Modem) Receive(timeout time.Duration) (*ReceivedFrame, error) {
	if !m.started {
		return nil, ErrNotStarted
	}
	if m.overflow.Swap(false) {
		return nil, ErrOverflow
	}
	select {
	case frame := <-m.frames:
		return frame, nil
	case <-time.After(timeout):
		return nil, nil
	}
}

// Underflow lets the JACK process callback flag a starved output buffer.
func (m *Modem) Underflow() {
	m.underflow.Store(true)
}

// Overflow lets the JACK process callback flag dropped input samples.
func (m *Modem) Overflow() {
	m.overflow.Store(true)
}

// ChirpPreamble generates the synchronisation preamble: frequency sweeps
// ChirpStartFreq -> ChirpEndFreq over the first half and back down over the
// second, integrated with the trapezoidal rule.
func ChirpPreamble() []jack.AudioSample {
	n := PreambleLen
	half := n / 2
	dt := 1.0 / SampleRate

	fp := make([]float64, n)
	for i := 0; i < half; i++ {
		f := ChirpStartFreq + (ChirpEndFreq-ChirpStartFreq)*float64(i)/float64(half)
		fp[i] = f
		fp[n-1-i] = f
	}

	omega := 0.0
	preamble := make([]jack.AudioSample, n)
	for i := 1; i < n; i++ {
		omega += 0.5 * (fp[i] + fp[i-1]) * 2 * math.Pi * dt
		preamble[i] = jack.AudioSample(math.Sin(omega))
	}
	return preamble
}

// ModulateFrame produces the on-air samples for one frame: preamble, then
// the length/header/payload sections with their CRCs, line-coded at
// samplesPerBit samples per bit (bit 0 -> +1, bit 1 -> -1).
func ModulateFrame(preamble []jack.AudioSample, header Header, payload []byte) []jack.AudioSample {
	bits := UnpackBits(encodeFrameImage(header, payload))
	wave := make([]jack.AudioSample, 0, len(preamble)+samplesPerBit*len(bits))
	wave = append(wave, preamble...)
	for _, bit := range bits {
		level := jack.AudioSample(1)
		if bit == 1 {
			level = -1
		}
		for k := 0; k < samplesPerBit; k++ {
			wave = append(wave, level)
		}
	}
	return wave
}

// demodulator is the sample-by-sample receive state machine: track signal
// power, correlate against the preamble until sync, then slice bits until a
// whole frame is in.
type demodulator struct {
	preamble []jack.AudioSample

	power       float64
	noiseFloor  float64
	syncFIFO    []float64
	syncPeak    float64
	syncStart   int
	firstSync   int // sample index of the first threshold crossing
	sampleIndex int
	syncing     bool
	pending     []float64 // samples seen since the correlation peak
	decodeFIFO  []float64
	payloadBits int // -1 until the length section is decoded
}

func newDemodulator(preamble []jack.AudioSample) *demodulator {
	return &demodulator{
		preamble:    preamble,
		syncFIFO:    make([]float64, len(preamble)),
		syncing:     true,
		payloadBits: -1,
	}
}

// push consumes one sample and returns a frame once fully decoded.
func (d *demodulator) push(sample float64) *ReceivedFrame {
	d.sampleIndex++
	d.power = d.power*(1-1.0/64) + sample*sample/64

	if d.syncing {
		d.syncFIFO = append(d.syncFIFO[1:], sample)
		corr := d.correlate() / 20
		// the compressed chirp pulse is only a few samples wide, so the true
		// peak sits right after the first threshold crossing; line-coded data
		// can correlate above the peak and must not re-arm the search
		armed := d.syncStart == 0 || d.sampleIndex-d.firstSync <= syncPeakWindow
		if armed && corr > 2*d.power && corr > d.syncPeak && corr > syncThreshold {
			if d.syncStart == 0 {
				d.firstSync = d.sampleIndex
			}
			d.syncPeak = corr
			d.syncStart = d.sampleIndex
			d.pending = d.pending[:0]
		} else if d.syncStart != 0 {
			// everything past the peak is already frame data
			d.pending = append(d.pending, sample)
			if d.sampleIndex-d.syncStart > syncHoldoff {
				d.syncing = false
				d.noiseFloor = d.power
				d.decodeFIFO = append(d.decodeFIFO[:0], d.pending...)
			}
		}
		return nil
	}

	d.decodeFIFO = append(d.decodeFIFO, sample)
	if d.payloadBits < 0 {
		if len(d.decodeFIFO) < samplesPerBit*framePrefixBits {
			return nil
		}
		prefix := PackBits(d.sliceBits(framePrefixBits))
		plen := int(prefix[0])<<8 | int(prefix[1])
		if plen > MaxPayloadLen {
			// garbled length section, drop sync and hunt again
			d.reset()
			return nil
		}
		d.payloadBits = 8 * (plen + 1)
		return nil
	}
	if len(d.decodeFIFO) < samplesPerBit*(framePrefixBits+d.payloadBits) {
		return nil
	}

	image := PackBits(d.sliceBits(framePrefixBits + d.payloadBits))
	frame := d.assemble(image)
	d.reset()
	return frame
}

func (d *demodulator) assemble(image []byte) *ReceivedFrame {
	frame := decodeFrameImage(image)
	if frame == nil {
		return nil
	}
	frame.Stats = SignalStats{
		RSSI: 10 * math.Log10(d.syncPeak+1e-12),
		SNR:  10 * math.Log10((d.syncPeak+1e-12)/(d.noiseFloor+1e-12)),
	}
	return frame
}

func (d *demodulator) sliceBits(n int) []int {
	bits := make([]int, n)
	for j := 0; j < n; j++ {
		var sum float64
		for k := 0; k < samplesPerBit; k++ {
			sum += d.decodeFIFO[j*samplesPerBit+k]
		}
		if sum < 0 {
			bits[j] = 1
		}
	}
	return bits
}

func (d *demodulator) correlate() float64 {
	var sum float64
	for i, s := range d.syncFIFO {
		sum += s * float64(d.preamble[i])
	}
	return sum
}

func (d *demodulator) reset() {
	d.syncing = true
	d.syncPeak = 0
	d.syncStart = 0
	d.firstSync = 0
	d.payloadBits = -1
	d.pending = d.pending[:0]
	d.decodeFIFO = d.decodeFIFO[:0]
	for i := range d.syncFIFO {
		d.syncFIFO[i] = 0
	}
}
