package _switch

import (
	"context"
	"testing"
	"time"

	"github.com/adwski/pairchat/backend/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSwitch() *Switch {
	logger := zerolog.Nop()
	return NewSwitch(&logger)
}

func TestSwitch_Deliver(t *testing.T) {
	sw := newTestSwitch()
	wire := model.NewWire()
	sw.Connect("c1", wire, func() {})

	got := make(chan model.Event, 1)
	go func() {
		got <- <-wire.TX
	}()

	ok := sw.Deliver(context.Background(), "c1", model.Event{Type: model.EventWaitingForPartner})
	require.True(t, ok)

	select {
	case ev := <-got:
		assert.Equal(t, model.EventWaitingForPartner, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("event not received")
	}
}

func TestSwitch_DeliverUnknownConnection(t *testing.T) {
	sw := newTestSwitch()
	assert.False(t, sw.Deliver(context.Background(), "nope", model.Event{Type: model.EventWaitingForPartner}))
}

func TestSwitch_DeliverCanceledContext(t *testing.T) {
	sw := newTestSwitch()
	sw.Connect("c1", model.NewWire(), func() {}) // nobody reads TX

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, sw.Deliver(ctx, "c1", model.Event{Type: model.EventWaitingForPartner}))
}

func TestSwitch_Disconnect(t *testing.T) {
	sw := newTestSwitch()
	sw.Connect("c1", model.NewWire(), func() {})
	sw.Disconnect("c1")

	assert.False(t, sw.Deliver(context.Background(), "c1", model.Event{Type: model.EventWaitingForPartner}))
}

func TestSwitch_Drop(t *testing.T) {
	sw := newTestSwitch()
	canceled := make(chan struct{})
	sw.Connect("c1", model.NewWire(), func() { close(canceled) })

	sw.Drop("c1")

	select {
	case <-canceled:
	case <-time.After(time.Second):
		t.Fatal("transport cancel not invoked")
	}
	assert.False(t, sw.Deliver(context.Background(), "c1", model.Event{Type: model.EventWaitingForPartner}))

	t.Run("idempotent", func(t *testing.T) {
		sw.Drop("c1")
	})
}
