package network

import (
	"testing"

	"boardgame-server/pkg/api"
)

func TestBroadcastReachesOnlyMatchSubscribers(t *testing.T) {
	b := NewBroadcaster()

	chA := b.Register("match-a", "c1")
	chB := b.Register("match-b", "c2")

	b.Broadcast("match-a", api.ServerMessage{Type: api.MessageUpdate, MatchID: "match-a"})

	select {
	case msg := <-chA:
		if msg.MatchID != "match-a" {
			t.Errorf("unexpected message: %+v", msg)
		}
	default:
		t.Error("match-a subscriber should receive the message")
	}

	select {
	case msg := <-chB:
		t.Errorf("match-b subscriber should not receive: %+v", msg)
	default:
	}
}

func TestSendToUnicast(t *testing.T) {
	b := NewBroadcaster()

	ch1 := b.Register("m", "c1")
	ch2 := b.Register("m", "c2")

	b.SendTo("m", "c2", api.ServerMessage{Type: api.MessageError, Error: "nope"})

	select {
	case <-ch1:
		t.Error("unicast leaked to another client")
	default:
	}
	select {
	case msg := <-ch2:
		if msg.Error != "nope" {
			t.Errorf("message = %+v", msg)
		}
	default:
		t.Error("target client did not receive the message")
	}
}

func TestUnregisterClosesChannel(t *testing.T) {
	b := NewBroadcaster()

	ch := b.Register("m", "c1")
	b.Unregister("m", "c1")

	if _, ok := <-ch; ok {
		t.Error("channel should be closed")
	}
	if n := b.SubscriberCount("m"); n != 0 {
		t.Errorf("subscriber count = %d", n)
	}

	// Рассылка в пустой матч не паникует.
	b.Broadcast("m", api.ServerMessage{})
}

func TestReRegisterClosesOldChannel(t *testing.T) {
	b := NewBroadcaster()

	old := b.Register("m", "c1")
	fresh := b.Register("m", "c1")

	if _, ok := <-old; ok {
		t.Error("old channel should be closed on re-register")
	}

	b.Broadcast("m", api.ServerMessage{Type: api.MessageUpdate})
	select {
	case <-fresh:
	default:
		t.Error("fresh channel should receive broadcasts")
	}
	if n := b.SubscriberCount("m"); n != 1 {
		t.Errorf("subscriber count = %d", n)
	}
}
