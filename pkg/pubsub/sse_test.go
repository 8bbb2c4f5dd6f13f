package pubsub

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestEventBuffer(t *testing.T) {
	pub := NewSSEPublisher()
	defer pub.Close()

	pub.ConfigureTopic(TopicSimulationStatus, TopicConfig{
		BufferSize: 3,
		ReplayAll:  true,
	})

	for i := 1; i <= 5; i++ {
		err := pub.Publish(TopicSimulationStatus, "running", SimulationStatus{State: "running"})
		if err != nil {
			t.Fatalf("Failed to publish event %d: %v", i, err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	sub, err := pub.Subscribe(ctx, TopicSimulationStatus)
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}
	defer sub.Close()

	// A late joiner replays the last 3 of the 5 published events
	receivedCount := 0
	for receivedCount < 3 {
		select {
		case event := <-sub.Events():
			receivedCount++
			expectedVersion := receivedCount + 2
			if event.Version != expectedVersion {
				t.Errorf("Expected version %d, got %d", expectedVersion, event.Version)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("Timeout waiting for event %d", receivedCount+1)
		}
	}

	if receivedCount != 3 {
		t.Errorf("Expected 3 replayed events, got %d", receivedCount)
	}
}

func TestReplayLastOnly(t *testing.T) {
	pub := NewSSEPublisher()
	defer pub.Close()

	pub.ConfigureTopic(TopicSimulationStatus, TopicConfig{
		BufferSize: 5,
		ReplayAll:  false,
	})

	for i := 1; i <= 3; i++ {
		err := pub.Publish(TopicSimulationStatus, "running", SimulationStatus{State: "running"})
		if err != nil {
			t.Fatalf("Failed to publish event %d: %v", i, err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	sub, err := pub.Subscribe(ctx, TopicSimulationStatus)
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}
	defer sub.Close()

	// ReplayAll=false delivers only the newest buffered event
	select {
	case event := <-sub.Events():
		if event.Version != 3 {
			t.Errorf("Expected version 3, got %d", event.Version)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Timeout waiting for event")
	}

	select {
	case event := <-sub.Events():
		t.Errorf("Received unexpected extra event version %d", event.Version)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestNoBuffer(t *testing.T) {
	pub := NewSSEPublisher()
	defer pub.Close()

	pub.ConfigureTopic(TopicSimulationStatus, TopicConfig{
		BufferSize: 0,
		ReplayAll:  false,
	})

	for i := 1; i <= 3; i++ {
		err := pub.Publish(TopicSimulationStatus, "running", SimulationStatus{State: "running"})
		if err != nil {
			t.Fatalf("Failed to publish event %d: %v", i, err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	sub, err := pub.Subscribe(ctx, TopicSimulationStatus)
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}
	defer sub.Close()

	// Nothing buffered, so nothing replays
	select {
	case event := <-sub.Events():
		t.Errorf("Received unexpected replayed event version %d", event.Version)
	case <-time.After(50 * time.Millisecond):
	}

	// Live events still flow
	err = pub.Publish(TopicSimulationStatus, "completed", SimulationStatus{State: "completed"})
	if err != nil {
		t.Fatalf("Failed to publish new event: %v", err)
	}

	select {
	case event := <-sub.Events():
		if event.Version != 4 {
			t.Errorf("Expected version 4, got %d", event.Version)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Timeout waiting for new event")
	}
}

func TestStatusPayloadRoundTrip(t *testing.T) {
	pub := NewSSEPublisher()
	defer pub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	sub, err := pub.Subscribe(ctx, TopicSimulationStatus)
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}
	defer sub.Close()

	status := SimulationStatus{State: "failed", Message: "value became non-finite", RequestID: "abc123"}
	if err := pub.Publish(TopicSimulationStatus, "failed", status); err != nil {
		t.Fatalf("Failed to publish: %v", err)
	}

	select {
	case event := <-sub.Events():
		if event.Type != "failed" {
			t.Errorf("Expected type %q, got %q", "failed", event.Type)
		}
		var got SimulationStatus
		if err := json.Unmarshal(event.Data, &got); err != nil {
			t.Fatalf("Failed to decode payload: %v", err)
		}
		if got != status {
			t.Errorf("Payload mismatch: got %+v, want %+v", got, status)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Timeout waiting for event")
	}
}

func TestWriteSSEFormat(t *testing.T) {
	event := Event{
		Topic:   TopicSimulationStatus,
		Type:    "completed",
		Data:    json.RawMessage(`{"state":"completed"}`),
		Version: 7,
	}

	var sb strings.Builder
	if err := WriteSSE(&sb, event); err != nil {
		t.Fatalf("WriteSSE failed: %v", err)
	}

	out := sb.String()
	if !strings.HasPrefix(out, "data: ") {
		t.Errorf("Expected output to start with %q, got %q", "data: ", out)
	}
	if !strings.HasSuffix(out, "\n\n") {
		t.Errorf("Expected output to end with a blank line, got %q", out)
	}

	var decoded Event
	if err := json.Unmarshal([]byte(strings.TrimSpace(strings.TrimPrefix(out, "data: "))), &decoded); err != nil {
		t.Fatalf("Failed to decode SSE payload: %v", err)
	}
	if decoded.Version != 7 || decoded.Topic != TopicSimulationStatus {
		t.Errorf("Decoded event mismatch: %+v", decoded)
	}
}
