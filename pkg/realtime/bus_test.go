package realtime

import (
	"strings"
	"testing"
	"time"
)

func TestChannelNames(t *testing.T) {
	if got := LibraryChannel("lib-1"); got != "library:lib-1" {
		t.Errorf("got %q", got)
	}
	if got := UserChannel("u-1"); got != "user:u-1" {
		t.Errorf("got %q", got)
	}
}

func TestPublishDeliversInOrder(t *testing.T) {
	bus := NewBus(8)
	sub := bus.Subscribe("library:lib-1")
	defer bus.Unsubscribe(sub)

	bus.Publish("library:lib-1", "file_uploaded", map[string]string{"file_id": "f1"})
	bus.Publish("library:lib-1", "file_deleted", map[string]string{"file_id": "f1"})

	first := <-sub.Events()
	second := <-sub.Events()
	if first.Type != "file_uploaded" || second.Type != "file_deleted" {
		t.Errorf("expected publish order, got %s then %s", first.Type, second.Type)
	}
	if first.Timestamp.IsZero() || first.Timestamp.Location() != time.UTC {
		t.Errorf("expected UTC timestamp, got %v", first.Timestamp)
	}
}

func TestPublishToOtherChannelNotDelivered(t *testing.T) {
	bus := NewBus(8)
	sub := bus.Subscribe("library:lib-1")
	defer bus.Unsubscribe(sub)

	bus.Publish("library:lib-2", "file_uploaded", nil)

	select {
	case e := <-sub.Events():
		t.Errorf("unexpected event %v", e)
	default:
	}
}

func TestPublishNeverBlocks(t *testing.T) {
	bus := NewBus(1)
	sub := bus.Subscribe("library:lib-1")
	defer bus.Unsubscribe(sub)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			bus.Publish("library:lib-1", "event", i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber queue")
	}
	if bus.Dropped() == 0 {
		t.Error("expected drops on overflow")
	}
}

func TestUnsubscribeClosesQueue(t *testing.T) {
	bus := NewBus(8)
	sub := bus.Subscribe("library:lib-1")

	bus.Unsubscribe(sub)
	bus.Unsubscribe(sub) // idempotent

	if _, ok := <-sub.Events(); ok {
		t.Error("expected closed queue after unsubscribe")
	}
	if bus.SubscriberCount("library:lib-1") != 0 {
		t.Error("expected empty channel after unsubscribe")
	}
}

func TestFormatSSE(t *testing.T) {
	frame := string(FormatSSE("connected", []byte(`{"channel":"library:lib-1"}`)))
	if !strings.HasPrefix(frame, "event: connected\n") {
		t.Errorf("bad frame %q", frame)
	}
	if !strings.Contains(frame, `data: {"channel":"library:lib-1"}`) {
		t.Errorf("bad frame %q", frame)
	}
	if !strings.HasSuffix(frame, "\n\n") {
		t.Errorf("frame must end with blank line: %q", frame)
	}
}
