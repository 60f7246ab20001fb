package eventbus

import (
	"testing"
	"time"
)

type event struct {
	ID int
}

func TestPublishSubscribe(t *testing.T) {
	b := New[event]()
	sub := b.Subscribe()
	b.Publish(event{ID: 1})
	select {
	case e := <-sub:
		if e.ID != 1 {
			t.Fatalf("unexpected event %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestFanOut(t *testing.T) {
	b := New[event]()
	s1 := b.Subscribe()
	s2 := b.Subscribe()
	b.Publish(event{ID: 7})
	for i, sub := range []<-chan event{s1, s2} {
		select {
		case e := <-sub:
			if e.ID != 7 {
				t.Fatalf("subscriber %d: unexpected event %+v", i, e)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d: timed out", i)
		}
	}
}

func TestSlowSubscriberDropsEvents(t *testing.T) {
	b := New[event]()
	sub := b.Subscribe()
	// Channel capacity is 64; everything beyond is dropped, and Publish
	// must not block.
	for i := 0; i < 200; i++ {
		b.Publish(event{ID: i})
	}
	count := 0
	for {
		select {
		case <-sub:
			count++
		default:
			if count != 64 {
				t.Fatalf("expected 64 buffered events, got %d", count)
			}
			return
		}
	}
}

func TestUnsubscribeCloses(t *testing.T) {
	b := New[event]()
	sub := b.Subscribe()
	b.Unsubscribe(sub)
	if _, ok := <-sub; ok {
		t.Fatal("expected closed channel after unsubscribe")
	}
	// Publishing after unsubscribe must not panic.
	b.Publish(event{ID: 1})
}

func TestCloseTerminatesSubscribers(t *testing.T) {
	b := New[event]()
	sub := b.Subscribe()
	b.Close()
	if _, ok := <-sub; ok {
		t.Fatal("expected closed channel after bus close")
	}
	// Subscribing after close yields a closed channel.
	late := b.Subscribe()
	if _, ok := <-late; ok {
		t.Fatal("expected closed channel for late subscriber")
	}
	b.Publish(event{ID: 1})
}
