package realtime

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestClientSendAfterCloseIsSafe(t *testing.T) {
	c := &Client{
		hub:           NewHub(discardLogger()),
		send:          make(chan BaseMessage, 1),
		subscriptions: make(map[string]subscription),
	}
	c.closeSend()
	c.closeSend()

	assert.NotPanics(t, func() { c.trySend(BaseMessage{Type: TypeSubscribeAck}) })
	assert.NotPanics(t, func() { c.sendError("s1", "late error") })
	assert.NotPanics(t, func() { c.handleMessage(BaseMessage{ID: "s1", Type: TypeSubscribe}) })
}

func TestHubShutdownDetachesClients(t *testing.T) {
	hub := NewHub(discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	c := &Client{
		hub:           hub,
		send:          make(chan BaseMessage, 1),
		subscriptions: make(map[string]subscription),
	}
	hub.register <- c
	cancel()
	<-done

	// The hub closed the outbound queue; a frame still in flight on the
	// read pump must not panic the connection.
	assert.NotPanics(t, func() { c.handleMessage(BaseMessage{ID: "s1", Type: TypeSubscribe}) })

	_, open := <-c.send
	assert.False(t, open, "send queue closed on shutdown")
}
