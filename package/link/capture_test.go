package link

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/gopacket/pcapgo"
)

func TestCaptureRecordsBothDirections(t *testing.T) {
	a, b := NewPair(PipeConfig{Seed: 1})

	var buf bytes.Buffer
	cap, err := NewCapture(a, &buf)
	if err != nil {
		t.Fatal(err)
	}
	cap.StartReceiver()
	b.StartReceiver()

	header := EncodeHeader(4, PacketData)
	payload := []byte{0xAA, 0xBB}
	if err := cap.Transmit(header, payload, DefaultFrameConfig()); err != nil {
		t.Fatal(err)
	}

	b.Transmit(EncodeHeader(4, PacketAck), []byte{1}, DefaultFrameConfig())
	if frame, _ := cap.Receive(100 * time.Millisecond); frame == nil {
		t.Fatal("no frame received through capture wrapper")
	}

	if err := cap.Err(); err != nil {
		t.Fatal(err)
	}

	r, err := pcapgo.NewReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	var records [][]byte
	for {
		data, _, err := r.ReadPacketData()
		if err != nil {
			break
		}
		records = append(records, data)
	}
	if len(records) != 2 {
		t.Fatalf("captured %d records; want 2", len(records))
	}
	if !bytes.Equal(records[0], encodeFrameImage(header, payload)) {
		t.Error("first record does not match the transmitted frame image")
	}
}
