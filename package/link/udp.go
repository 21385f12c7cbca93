package link

import (
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/jackpal/gateway"
)

// UDP is the bench transceiver: the frame image carried in datagrams so two
// nodes can exercise the protocol across a LAN without any audio or radio
// hardware. Datagram loss stands in for channel loss.
type UDP struct {
	conn     *net.UDPConn
	remote   *net.UDPAddr
	frames   chan *ReceivedFrame
	stop     chan struct{}
	started  bool
	overflow atomic.Bool
}

// NewUDP binds the local address and records the peer. An empty local host
// defaults to the interface holding the default route.
func NewUDP(local, remote string) (*UDP, error) {
	host, port, err := net.SplitHostPort(local)
	if err != nil {
		return nil, fmt.Errorf("local address: %w", err)
	}
	if host == "" {
		ip, err := gateway.DiscoverInterface()
		if err != nil {
			return nil, fmt.Errorf("discover outbound interface: %w", err)
		}
		host = ip.String()
	}
	localAddr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(host, port))
	if err != nil {
		return nil, fmt.Errorf("local address: %w", err)
	}
	remoteAddr, err := net.ResolveUDPAddr("udp", remote)
	if err != nil {
		return nil, fmt.Errorf("remote address: %w", err)
	}
	conn, err := net.ListenUDP("udp", localAddr)
	if err != nil {
		return nil, err
	}
	return &UDP{
		conn:   conn,
		remote: remoteAddr,
		frames: make(chan *ReceivedFrame, 16),
	}, nil
}

// LocalAddr reports the bound address (useful when the port was 0).
func (u *UDP) LocalAddr() *net.UDPAddr {
	return u.conn.LocalAddr().(*net.UDPAddr)
}

// SetRemote repoints the peer address.
func (u *UDP) SetRemote(addr *net.UDPAddr) { u.remote = addr }

func (u *UDP) Configure(frequency, sampleRate, gain float64) error { return nil }

func (u *UDP) StartReceiver() error {
	if u.started {
		return nil
	}
	u.started = true
	u.stop = make(chan struct{})
	go u.readLoop()
	return nil
}

func (u *UDP) StopReceiver() error {
	if !u.started {
		return nil
	}
	u.started = false
	close(u.stop)
	return u.conn.Close()
}

func (u *UDP) readLoop() {
	buf := make([]byte, 4096)
	for {
		n, _, err := u.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-u.stop:
				return
			default:
				continue
			}
		}
		frame := decodeFrameImage(buf[:n])
		if frame == nil {
			continue
		}
		select {
		case u.frames <- frame:
		default:
			u.overflow.Store(true)
		}
	}
}

func (u *UDP) Transmit(header Header, payload []byte, cfg FrameConfig) error {
	_, err := u.conn.WriteToUDP(encodeFrameImage(header, payload), u.remote)
	if err != nil {
		return ErrUnderflow
	}
	return nil
}

func (u *UDP) Receive(timeout time.Duration) (*ReceivedFrame, error) {
	if !u.started {
		return nil, ErrNotStarted
	}
	if u.overflow.Swap(false) {
		return nil, ErrOverflow
	}
	select {
	case frame := <-u.frames:
		return frame, nil
	case <-time.After(timeout):
		return nil, nil
	}
}
