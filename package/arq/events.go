package arq

import (
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"
)

// Event classifies everything the engines can observe during an exchange.
type Event int

const (
	EventSuccess Event = iota // ACK matched (master) / DATA accepted (slave)
	EventHeaderError
	EventPayloadError
	EventUnexpectedID
	EventAckTimeout
	EventTxUnderflow
	EventRxOverflow
)

// Symbol is the single-character diagnostic code emitted in quiet mode.
func (e Event) Symbol() byte {
	switch e {
	case EventSuccess:
		return '.'
	case EventHeaderError:
		return 'x'
	case EventPayloadError:
		return 'X'
	case EventUnexpectedID:
		return '?'
	case EventAckTimeout:
		return 'T'
	case EventTxUnderflow:
		return 'U'
	case EventRxOverflow:
		return 'O'
	}
	return '!'
}

func (e Event) String() string {
	switch e {
	case EventSuccess:
		return "success"
	case EventHeaderError:
		return "header integrity failure"
	case EventPayloadError:
		return "payload integrity failure"
	case EventUnexpectedID:
		return "unexpected packet id"
	case EventAckTimeout:
		return "ack timeout"
	case EventTxUnderflow:
		return "transmit underflow"
	case EventRxOverflow:
		return "receive overflow"
	}
	return "unknown"
}

// Reporter renders events either as structured log lines (verbose) or as the
// compact one-character-per-event stream (quiet).
type Reporter struct {
	verbose bool
	out     io.Writer
	log     *log.Logger
}

func NewReporter(verbose bool, out io.Writer) *Reporter {
	logger := log.New()
	logger.SetOutput(out)
	logger.SetFormatter(&log.TextFormatter{
		ForceColors: true,
	})
	return &Reporter{verbose: verbose, out: out, log: logger}
}

func (r *Reporter) Event(e Event, fields log.Fields) {
	if !r.verbose {
		fmt.Fprintf(r.out, "%c", e.Symbol())
		return
	}
	entry := r.log.WithFields(fields)
	switch e {
	case EventSuccess:
		entry.Info(e.String())
	default:
		entry.Warn(e.String())
	}
}

// Tracef logs progress lines that have no quiet-mode symbol, like per-attempt
// transmit notices or duplicate DATA observations.
func (r *Reporter) Tracef(format string, args ...interface{}) {
	if r.verbose {
		r.log.Infof(format, args...)
	}
}

// Infof logs lifecycle messages in both modes.
func (r *Reporter) Infof(format string, args ...interface{}) {
	if r.verbose {
		r.log.Infof(format, args...)
		return
	}
	fmt.Fprintf(r.out, "\n"+format+"\n", args...)
}
