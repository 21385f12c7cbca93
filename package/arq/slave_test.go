package arq

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"radio_link/package/link"
)

func TestSlaveAcceptsAndAcknowledges(t *testing.T) {
	trx := &mockTrx{}
	trx.inject(goodFrame(0, link.PacketData, 200))

	cfg := testConfig()
	cfg.NumPackets = 1

	var out bytes.Buffer
	n, err := NewSlave(trx, cfg, NewReporter(false, &out)).Run()
	require.NoError(t, err)
	assert.Equal(t, uint64(200), n)

	tx := trx.transmissions()
	require.Len(t, tx, 1)
	assert.Equal(t, byte(link.PacketAck), tx[0].header.Type())
	assert.Equal(t, uint16(0), tx[0].header.PacketID(), "ACK must echo the DATA id")
	assert.Len(t, tx[0].payload, ackPayloadLen)
	assert.Equal(t, ".", out.String())
}

func TestSlaveRunsToFinalID(t *testing.T) {
	trx := &mockTrx{}
	for pid := uint16(0); pid < 4; pid++ {
		trx.inject(goodFrame(pid, link.PacketData, 50))
	}
	cfg := testConfig()
	cfg.NumPackets = 4

	n, err := NewSlave(trx, cfg, quietReporter()).Run()
	require.NoError(t, err)
	assert.Equal(t, uint64(4*50), n)
	assert.Len(t, trx.transmissions(), 4)
}

func TestSlaveHeaderErrorKeepsWaiting(t *testing.T) {
	trx := &mockTrx{}
	bad := goodFrame(0, link.PacketData, 50)
	bad.HeaderValid = false
	trx.inject(bad)
	trx.inject(goodFrame(0, link.PacketData, 50))

	cfg := testConfig()
	cfg.NumPackets = 1

	var out bytes.Buffer
	n, err := NewSlave(trx, cfg, NewReporter(false, &out)).Run()
	require.NoError(t, err)
	assert.Equal(t, uint64(50), n, "the corrupted frame must not be counted")
	assert.Equal(t, "x.", out.String())
	assert.Len(t, trx.transmissions(), 1, "no ACK for a corrupted header")
}

func TestSlavePayloadErrorKeepsWaiting(t *testing.T) {
	trx := &mockTrx{}
	bad := goodFrame(0, link.PacketData, 50)
	bad.PayloadValid = false
	trx.inject(bad)
	trx.inject(goodFrame(0, link.PacketData, 50))

	cfg := testConfig()
	cfg.NumPackets = 1

	var out bytes.Buffer
	n, err := NewSlave(trx, cfg, NewReporter(false, &out)).Run()
	require.NoError(t, err)
	assert.Equal(t, uint64(50), n)
	assert.Equal(t, "X.", out.String())
}

func TestSlaveIgnoresOwnAckLoopback(t *testing.T) {
	trx := &mockTrx{}
	trx.inject(goodFrame(0, link.PacketAck, ackPayloadLen)) // own earlier ACK heard back
	trx.inject(goodFrame(0, link.PacketData, 50))

	cfg := testConfig()
	cfg.NumPackets = 1

	var out bytes.Buffer
	n, err := NewSlave(trx, cfg, NewReporter(false, &out)).Run()
	require.NoError(t, err)
	assert.Equal(t, uint64(50), n)
	assert.Equal(t, ".", out.String(), "loopback must be dropped silently, no event")
	assert.Len(t, trx.transmissions(), 1)
}

func TestSlaveDuplicateDataReacknowledgedNotRecounted(t *testing.T) {
	trx := &mockTrx{}
	trx.inject(goodFrame(0, link.PacketData, 80))
	trx.inject(goodFrame(0, link.PacketData, 80)) // retransmit: our ACK was lost
	trx.inject(goodFrame(1, link.PacketData, 80))

	cfg := testConfig()
	cfg.NumPackets = 2

	n, err := NewSlave(trx, cfg, quietReporter()).Run()
	require.NoError(t, err)
	assert.Equal(t, uint64(2*80), n, "duplicate bytes must be counted once")

	tx := trx.transmissions()
	require.Len(t, tx, 3, "every valid DATA frame gets an ACK, duplicates included")
	assert.Equal(t, uint16(0), tx[0].header.PacketID())
	assert.Equal(t, uint16(0), tx[1].header.PacketID())
	assert.Equal(t, uint16(1), tx[2].header.PacketID())
}

func TestSlaveIdleTimeout(t *testing.T) {
	trx := &mockTrx{}
	cfg := testConfig()
	cfg.NumPackets = 1
	cfg.IdleTimeoutMs = 5

	n, err := NewSlave(trx, cfg, quietReporter()).Run()
	require.ErrorIs(t, err, ErrIdleTimeout)
	assert.Zero(t, n)
}

func TestSlaveIdleResetByAnyFrame(t *testing.T) {
	// junk frames keep arriving; the idle timer must restart on each one
	trx := &mockTrx{}
	for i := 0; i < 3; i++ {
		bad := goodFrame(0, link.PacketData, 10)
		bad.HeaderValid = false
		trx.inject(bad)
	}
	trx.inject(goodFrame(0, link.PacketData, 10))

	cfg := testConfig()
	cfg.NumPackets = 1
	cfg.IdleTimeoutMs = 5

	n, err := NewSlave(trx, cfg, quietReporter()).Run()
	require.NoError(t, err)
	assert.Equal(t, uint64(10), n)
}
