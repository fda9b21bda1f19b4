package hub

import (
	"context"
	"testing"
	"time"

	"github.com/D0liphin/Testnice/internal/model"
)

func TestBroadcastToAllSubscribers(t *testing.T) {
	input := make(chan model.Completion)
	h := New(input)

	sub1 := h.Subscribe()
	sub2 := h.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Start(ctx)

	input <- model.Completion{PID: 4242, Source: "a.log"}

	for i, sub := range []<-chan model.Completion{sub1, sub2} {
		select {
		case c := <-sub:
			if c.PID != 4242 {
				t.Errorf("subscriber %d: expected pid 4242, got %d", i, c.PID)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("subscriber %d: timed out", i)
		}
	}
}

func TestDroppedOnFullSubscriber(t *testing.T) {
	input := make(chan model.Completion)
	h := New(input)
	h.Subscribe() // never read from

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Start(ctx)

	// Overflow the subscriber buffer by one.
	for i := 0; i < subscriberBuffer+1; i++ {
		input <- model.Completion{PID: int32(i)}
	}

	deadline := time.Now().Add(2 * time.Second)
	for h.Dropped() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if h.Dropped() != 1 {
		t.Errorf("expected exactly 1 dropped completion, got %d", h.Dropped())
	}
}

func TestClosesSubscribersOnCancel(t *testing.T) {
	input := make(chan model.Completion)
	h := New(input)
	sub := h.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	go h.Start(ctx)
	cancel()

	select {
	case _, ok := <-sub:
		if ok {
			t.Error("expected subscriber channel to be closed, got a value")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber channel never closed")
	}
}
