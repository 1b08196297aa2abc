package gateway

import (
	"testing"
	"time"
)

func TestBroadcastEnqueueDropsWhenFull(t *testing.T) {
	c := &client{send: make(chan []byte, 1)}
	if !c.enqueue([]byte("first")) {
		t.Fatal("enqueue into empty buffer failed")
	}
	if c.enqueue([]byte("second")) {
		t.Fatal("enqueue into full buffer must drop")
	}
}

func TestResponseEnqueueWaitsForBufferSpace(t *testing.T) {
	c := &client{send: make(chan []byte, 1)}
	c.send <- []byte("broadcast")

	delivered := make(chan bool, 1)
	go func() { delivered <- c.enqueueWait([]byte("response"), 2*time.Second) }()

	// Drain the broadcast; the pending response must then land instead of
	// having been dropped.
	if got := string(<-c.send); got != "broadcast" {
		t.Fatalf("drained %q, want the buffered broadcast", got)
	}
	if !<-delivered {
		t.Fatal("response was dropped despite buffer space opening up")
	}
	if got := string(<-c.send); got != "response" {
		t.Fatalf("buffered %q, want the response", got)
	}
}

func TestResponseEnqueueTimesOutOnStalledClient(t *testing.T) {
	c := &client{send: make(chan []byte, 1)}
	c.send <- []byte("stuck")
	if c.enqueueWait([]byte("response"), 20*time.Millisecond) {
		t.Fatal("expected timeout against a never-drained buffer")
	}
}
