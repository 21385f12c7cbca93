package arq

import (
	"errors"
	"time"

	"github.com/kelindar/bitmap"
	log "github.com/sirupsen/logrus"

	"radio_link/package/link"
)

// ackPayloadLen is the fixed filler carried by ACK frames; the content is
// irrelevant to the protocol.
const ackPayloadLen = 10

// Slave is the responder: wait for a DATA packet, validate it, acknowledge
// it with the echoed packet id. The session length is known a priori and the
// loop ends after acknowledging pid NumPackets-1, or after IdleTimeout of
// total silence.
type Slave struct {
	trx link.Transceiver
	cfg Config
	rep *Reporter
}

func NewSlave(trx link.Transceiver, cfg Config, rep *Reporter) *Slave {
	return &Slave{trx: trx, cfg: cfg, rep: rep}
}

// Run returns the number of distinct payload bytes accepted.
func (s *Slave) Run() (uint64, error) {
	fc := s.cfg.FrameConfig()
	finalID := uint16(s.cfg.NumPackets - 1)
	poll := s.cfg.PollInterval()

	var accepted bitmap.Bitmap // packet ids already counted
	var bytesReceived uint64
	var idle time.Duration

	for {
		frame, err := s.trx.Receive(poll)
		if err != nil {
			if errors.Is(err, link.ErrOverflow) {
				s.rep.Event(EventRxOverflow, nil)
				continue
			}
			return bytesReceived, err
		}
		if frame == nil {
			idle += poll
			if s.cfg.IdleTimeout() > 0 && idle >= s.cfg.IdleTimeout() {
				return bytesReceived, ErrIdleTimeout
			}
			continue
		}
		idle = 0

		if !frame.HeaderValid {
			s.rep.Event(EventHeaderError, nil)
			continue
		}
		if frame.Header.Type() != link.PacketData {
			// our own ACK heard back through the receiver; drop silently
			continue
		}
		pid := frame.Header.PacketID()
		if !frame.PayloadValid {
			s.rep.Event(EventPayloadError, log.Fields{"pid": pid})
			continue
		}

		if accepted.Contains(uint32(pid)) {
			// the master retransmitted because our ACK got lost;
			// acknowledge again but count the bytes only once
			s.rep.Tracef("duplicate data packet [%4d], re-acknowledging", pid)
		} else {
			accepted.Set(uint32(pid))
			bytesReceived += uint64(len(frame.Payload))
			s.rep.Event(EventSuccess, log.Fields{
				"pid":   pid,
				"bytes": len(frame.Payload),
				"rssi":  frame.Stats.RSSI,
				"snr":   frame.Stats.SNR,
			})
		}

		ack := link.EncodeHeader(pid, link.PacketAck)
		time.Sleep(s.cfg.SettleDelay())
		if err := s.trx.Transmit(ack, link.RandomPayload(ackPayloadLen), fc); err != nil {
			if !errors.Is(err, link.ErrUnderflow) {
				return bytesReceived, err
			}
			s.rep.Event(EventTxUnderflow, log.Fields{"pid": pid})
		}

		if pid == finalID {
			return bytesReceived, nil
		}
	}
}
