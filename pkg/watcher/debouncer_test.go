package watcher

import (
	"context"
	"testing"
	"time"
)

func TestDebouncerBatchesBurst(t *testing.T) {
	input := make(chan ChangeEvent, 10)
	d := NewDebouncer(input, 20*time.Millisecond, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	input <- ChangeEvent{Paths: []string{"model.json"}, Timestamp: time.Now()}
	input <- ChangeEvent{Paths: []string{"model.json", "scenario.yaml"}, Timestamp: time.Now()}

	select {
	case event := <-d.Output():
		if len(event.Paths) != 2 {
			t.Errorf("Expected 2 deduplicated paths, got %v", event.Paths)
		}
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for debounced event")
	}

	// The burst is done; nothing else should flush
	select {
	case event := <-d.Output():
		t.Errorf("Received unexpected extra event %v", event.Paths)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDebouncerMaxWaitBoundsDelay(t *testing.T) {
	input := make(chan ChangeEvent, 100)
	d := NewDebouncer(input, 250*time.Millisecond, 100*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	// Keep resetting the quiet period; maxWait must still force a flush
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 20; i++ {
			input <- ChangeEvent{Paths: []string{"model.json"}, Timestamp: time.Now()}
			time.Sleep(25 * time.Millisecond)
		}
	}()

	select {
	case event := <-d.Output():
		if len(event.Paths) != 1 {
			t.Errorf("Expected deduplicated single path, got %v", event.Paths)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout: maxWait did not force a flush")
	}

	cancel()
	<-done
}

func TestDebouncerFlushesOnClose(t *testing.T) {
	input := make(chan ChangeEvent, 10)
	d := NewDebouncer(input, time.Minute, time.Hour)

	d.Start(context.Background())

	input <- ChangeEvent{Paths: []string{"model.json"}, Timestamp: time.Now()}
	// Give the debouncer a moment to pick the event up before closing
	time.Sleep(50 * time.Millisecond)
	close(input)

	select {
	case event, ok := <-d.Output():
		if !ok {
			t.Fatal("Output closed without flushing pending event")
		}
		if len(event.Paths) != 1 || event.Paths[0] != "model.json" {
			t.Errorf("Unexpected flushed event %v", event.Paths)
		}
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for flush on close")
	}

	if _, ok := <-d.Output(); ok {
		t.Error("Expected output channel to be closed after input closed")
	}
}
