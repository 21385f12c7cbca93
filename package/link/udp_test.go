package link

import (
	"bytes"
	"testing"
	"time"
)

func TestUDPExchange(t *testing.T) {
	a, err := NewUDP("127.0.0.1:0", "127.0.0.1:9")
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewUDP("127.0.0.1:0", "127.0.0.1:9")
	if err != nil {
		t.Fatal(err)
	}
	a.SetRemote(b.LocalAddr())
	b.SetRemote(a.LocalAddr())

	a.StartReceiver()
	b.StartReceiver()
	defer a.StopReceiver()
	defer b.StopReceiver()

	header := EncodeHeader(21, PacketData)
	payload := RandomPayload(50)
	if err := a.Transmit(header, payload, DefaultFrameConfig()); err != nil {
		t.Fatal(err)
	}

	frame, err := b.Receive(500 * time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if frame == nil {
		t.Fatal("no datagram within timeout")
	}
	if !frame.HeaderValid || !frame.PayloadValid {
		t.Errorf("validity = (%v, %v)", frame.HeaderValid, frame.PayloadValid)
	}
	if frame.Header.PacketID() != 21 || !bytes.Equal(frame.Payload, payload) {
		t.Error("received frame does not match transmission")
	}

	// the reply direction
	if err := b.Transmit(EncodeHeader(21, PacketAck), RandomPayload(10), DefaultFrameConfig()); err != nil {
		t.Fatal(err)
	}
	reply, err := a.Receive(500 * time.Millisecond)
	if err != nil || reply == nil {
		t.Fatalf("reply = (%v, %v)", reply, err)
	}
	if reply.Header.Type() != PacketAck {
		t.Errorf("reply type = %d; want ACK", reply.Header.Type())
	}
}
