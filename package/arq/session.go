package arq

import (
	"errors"
	"io"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"radio_link/package/link"
)

// Stats summarises one completed (or abandoned) session.
type Stats struct {
	Runtime            time.Duration
	BytesTransferred   uint64
	DataRate           float64 // bits per second
	SpectralEfficiency float64 // bits per second per Hz
	GaveUp             bool
}

// Session owns the transceiver lifecycle around one ARQ run: configure,
// start the receive path, run the role engine, stop the receive path exactly
// once, and aggregate timing into the final statistics.
type Session struct {
	trx link.Transceiver
	cfg Config
	rep *Reporter
}

func NewSession(trx link.Transceiver, cfg Config, rep *Reporter) *Session {
	return &Session{trx: trx, cfg: cfg, rep: rep}
}

// Run completes the session. Stats are returned even when the error is
// ErrAttemptBudget or ErrIdleTimeout; both leave the transfer summary
// meaningful.
func (s *Session) Run() (*Stats, error) {
	if err := s.trx.Configure(s.cfg.Frequency, s.cfg.Bandwidth, s.cfg.Gain); err != nil {
		return nil, err
	}
	if err := s.trx.StartReceiver(); err != nil {
		return nil, err
	}
	defer s.trx.StopReceiver()

	s.rep.Infof("starting node as %s", s.cfg.Role)

	// give the capture/generation side time to spin up
	time.Sleep(s.cfg.StartupDelay())

	start := time.Now()
	var bytes uint64
	var err error
	switch s.cfg.Role {
	case RoleMaster:
		bytes, err = NewMaster(s.trx, s.cfg, s.rep).Run()
	default:
		bytes, err = NewSlave(s.trx, s.cfg, s.rep).Run()
	}
	runtime := time.Since(start)

	stats := &Stats{
		Runtime:          runtime,
		BytesTransferred: bytes,
		GaveUp:           errors.Is(err, ErrAttemptBudget),
	}
	if sec := runtime.Seconds(); sec > 0 {
		stats.DataRate = 8 * float64(bytes) / sec
		stats.SpectralEfficiency = stats.DataRate / s.cfg.Bandwidth
	}
	return stats, err
}

// Report prints the run summary the way the verbose terminal output expects
// it, with grouped digits for long transfers.
func (s *Stats) Report(w io.Writer) {
	p := message.NewPrinter(language.English)
	p.Fprintf(w, "\ndone.\n")
	if s.GaveUp {
		p.Fprintf(w, "    session abandoned early (attempt budget exhausted)\n")
	}
	p.Fprintf(w, "    bytes transferred   : %d\n", s.BytesTransferred)
	p.Fprintf(w, "    execution time      : %12.8f s\n", s.Runtime.Seconds())
	p.Fprintf(w, "    data rate           : %12.8f kbps\n", s.DataRate*1e-3)
	p.Fprintf(w, "    spectral efficiency : %12.8f b/s/Hz\n", s.SpectralEfficiency)
}
