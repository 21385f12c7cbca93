package arq

import (
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"radio_link/package/link"
)

// Master drives the initiator side of the stop-and-wait exchange: build a
// DATA packet, transmit, poll for the matching ACK, retransmit on timeout
// until the attempt budget runs out. Exactly one packet is in flight at any
// time.
type Master struct {
	trx link.Transceiver
	cfg Config
	rep *Reporter
}

func NewMaster(trx link.Transceiver, cfg Config, rep *Reporter) *Master {
	return &Master{trx: trx, cfg: cfg, rep: rep}
}

// Run performs the whole session and returns the number of payload bytes
// acknowledged. ErrAttemptBudget reports the single fatal condition: a
// packet that no attempt could deliver.
func (m *Master) Run() (uint64, error) {
	fc := m.cfg.FrameConfig()
	var bytesAcked uint64

	for seq := 0; seq < m.cfg.NumPackets; seq++ {
		pid := uint16(seq) // Validate bounds NumPackets to the 16-bit id space
		header := link.EncodeHeader(pid, link.PacketData)
		payload := link.RandomPayload(m.cfg.PayloadLen)

		acked := false
		for attempt := 1; attempt <= m.cfg.MaxAttempts && !acked; attempt++ {
			retransmit := " "
			if attempt > 1 {
				retransmit = "*"
			}
			m.rep.Tracef("transmitting packet %6d/%6d (attempt %4d/%4d) %s",
				seq, m.cfg.NumPackets, attempt, m.cfg.MaxAttempts, retransmit)

			// let the RF chain settle before keying up
			time.Sleep(m.cfg.SettleDelay())

			// retransmission is a verbatim resend of header and payload
			if err := m.trx.Transmit(header, payload, fc); err != nil {
				if !errors.Is(err, link.ErrUnderflow) {
					return bytesAcked, err
				}
				m.rep.Event(EventTxUnderflow, log.Fields{"pid": seq})
			}

			ok, err := m.awaitAck(pid)
			if err != nil {
				return bytesAcked, err
			}
			if ok {
				acked = true
				bytesAcked += uint64(len(payload))
			} else {
				m.rep.Event(EventAckTimeout, log.Fields{"pid": seq, "attempt": attempt})
			}
		}

		if !acked {
			m.rep.Infof("transmitter reached maximum number of attempts; bailing")
			return bytesAcked, ErrAttemptBudget
		}
	}
	return bytesAcked, nil
}

// awaitAck polls the receiver in PollInterval slices until the matching ACK
// arrives or the accumulated wait reaches AckTimeout. Frames handed over
// within a slice are always inspected before the timeout can be declared.
func (m *Master) awaitAck(pid uint16) (bool, error) {
	poll := m.cfg.PollInterval()
	for waited := time.Duration(0); waited < m.cfg.AckTimeout(); waited += poll {
		frame, err := m.trx.Receive(poll)
		if err != nil {
			if errors.Is(err, link.ErrOverflow) {
				m.rep.Event(EventRxOverflow, log.Fields{"pid": pid})
				continue
			}
			return false, err
		}
		if frame == nil {
			continue
		}

		switch {
		case !frame.HeaderValid:
			m.rep.Event(EventHeaderError, log.Fields{"pid": pid})
		case frame.Header.Type() != link.PacketAck:
			// our own transmitted signal folded back through the receiver;
			// the type check alone filters it
		case !frame.PayloadValid:
			m.rep.Event(EventPayloadError, log.Fields{"pid": pid})
		case frame.Header.PacketID() != pid:
			m.rep.Event(EventUnexpectedID, log.Fields{
				"pid": pid,
				"got": frame.Header.PacketID(),
			})
		default:
			m.rep.Event(EventSuccess, log.Fields{
				"pid":  pid,
				"rssi": frame.Stats.RSSI,
				"snr":  frame.Stats.SNR,
			})
			return true, nil
		}
	}
	return false, nil
}
