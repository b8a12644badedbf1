package server

import (
	"testing"
	"time"

	"boardgame-server/pkg/api"
)

func TestForwardUpdatesDeliversAndClosesSend(t *testing.T) {
	updates := make(chan api.ServerMessage, 2)
	send := make(chan api.ServerMessage, 2)
	done := make(chan struct{})

	updates <- api.ServerMessage{Type: api.MessageUpdate, Cursor: 1}
	updates <- api.ServerMessage{Type: api.MessageUpdate, Cursor: 2}
	close(updates)

	forwardUpdates(updates, send, done)

	for want := 1; want <= 2; want++ {
		msg, ok := <-send
		if !ok || msg.Cursor != want {
			t.Fatalf("message %d: ok=%v msg=%+v", want, ok, msg)
		}
	}
	if _, ok := <-send; ok {
		t.Error("send should be closed after updates drain")
	}
}

func TestForwardUpdatesExitsWhenClientDies(t *testing.T) {
	updates := make(chan api.ServerMessage)
	// Буфер нулевой и читателя нет: отправка блокируется сразу.
	send := make(chan api.ServerMessage)
	done := make(chan struct{})

	finished := make(chan struct{})
	go func() {
		forwardUpdates(updates, send, done)
		close(finished)
	}()

	updates <- api.ServerMessage{Type: api.MessageUpdate}
	close(done)

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("forwarder did not exit after done closed")
	}
}
