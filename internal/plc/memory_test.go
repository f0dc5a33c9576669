package plc

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemBusRoundTrip(t *testing.T) {
	ctx := context.Background()
	bus := NewMemBus()

	v, err := bus.ReadBool(ctx, "ns=4;i=16")
	require.NoError(t, err)
	assert.False(t, v)

	require.NoError(t, bus.WriteBool(ctx, "ns=4;i=16", true))
	v, err = bus.ReadBool(ctx, "ns=4;i=16")
	require.NoError(t, err)
	assert.True(t, v)

	require.NoError(t, bus.WriteString(ctx, "ns=4;i=3", "0007003120B000000005"))
	s, err := bus.ReadString(ctx, "ns=4;i=3")
	require.NoError(t, err)
	assert.Equal(t, "0007003120B000000005", s)

	bus.SetInt32("ns=4;i=21", 123456)
	n, err := bus.ReadInt32(ctx, "ns=4;i=21")
	require.NoError(t, err)
	assert.Equal(t, int32(123456), n)
}

func TestMemBusOnWriteHook(t *testing.T) {
	ctx := context.Background()
	bus := NewMemBus()

	// The hook models the PLC reacting to the strobe; it must be able to
	// call back into the bus without deadlocking.
	bus.OnWrite = func(nodeID string, value interface{}) {
		if nodeID == "strobe" && value == true {
			bus.SetBool("ack", true)
		}
	}

	require.NoError(t, bus.WriteBool(ctx, "strobe", true))
	ack, err := bus.ReadBool(ctx, "ack")
	require.NoError(t, err)
	assert.True(t, ack)
}

func TestMemBusFailNode(t *testing.T) {
	ctx := context.Background()
	bus := NewMemBus()

	boom := errors.New("link down")
	bus.FailNode("ns=4;i=18", boom)

	_, err := bus.ReadBool(ctx, "ns=4;i=18")
	assert.ErrorIs(t, err, boom)

	bus.FailNode("ns=4;i=18", nil)
	_, err = bus.ReadBool(ctx, "ns=4;i=18")
	assert.NoError(t, err)
}

func TestMemBusHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	bus := NewMemBus()
	_, err := bus.ReadBool(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDefaultNodesDistinct(t *testing.T) {
	n := DefaultNodes()
	assert.NotEmpty(t, n.Command)
	assert.NotEqual(t, n.Command, n.SendStrobe)
	assert.NotEqual(t, n.Ack, n.Complete)
	// The clear handshake shares lines with the completion handshake on
	// this PLC program; both pairs must still be populated.
	assert.NotEmpty(t, n.ClearRequest)
	assert.NotEmpty(t, n.ClearReply)
}
