package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/pithecene-io/ferry/adapter"
	"github.com/pithecene-io/ferry/iox"
)

func testEvent() *adapter.ScenarioCompletedEvent {
	return &adapter.ScenarioCompletedEvent{
		EventType:      adapter.EventType,
		Mode:           "spawn",
		Operation:      "download",
		VolumeMB:       100,
		ServerWorkers:  1,
		ClientWorkers:  50,
		AvgSeconds:     3.5,
		ThroughputBps:  29959314,
		Success:        49,
		Fail:           1,
		ElapsedSeconds: 4.2,
		Timestamp:      "2026-08-25T12:00:00Z",
	}
}

func TestPublish_Success(t *testing.T) {
	mr := miniredis.RunT(t)

	a, err := New(Config{URL: "redis://" + mr.Addr(), Retries: 0})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer iox.DiscardClose(a)

	// Subscribe before publishing so the message is observable.
	sub := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer iox.DiscardClose(sub)
	pubsub := sub.Subscribe(t.Context(), DefaultChannel)
	defer iox.DiscardClose(pubsub)
	if _, err := pubsub.Receive(t.Context()); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := a.Publish(t.Context(), testEvent()); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case msg := <-pubsub.Channel():
		var got adapter.ScenarioCompletedEvent
		if err := json.Unmarshal([]byte(msg.Payload), &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got.Mode != "spawn" || got.Operation != "download" {
			t.Errorf("scenario fields lost: %+v", got)
		}
		if got.Fail != 1 {
			t.Errorf("expected 1 failure, got %d", got.Fail)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
}

func TestPublish_CustomChannel(t *testing.T) {
	mr := miniredis.RunT(t)

	a, err := New(Config{URL: "redis://" + mr.Addr(), Channel: "results", Retries: 0})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer iox.DiscardClose(a)

	sub := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer iox.DiscardClose(sub)
	pubsub := sub.Subscribe(t.Context(), "results")
	defer iox.DiscardClose(pubsub)
	if _, err := pubsub.Receive(t.Context()); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := a.Publish(t.Context(), testEvent()); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case <-pubsub.Channel():
	case <-time.After(2 * time.Second):
		t.Fatal("no message on custom channel")
	}
}

func TestPublish_RetriesOnConnectionError(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	a, err := New(Config{URL: "redis://" + addr, Retries: 1, Timeout: 200 * time.Millisecond})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer iox.DiscardClose(a)

	start := time.Now()
	if err := a.Publish(t.Context(), testEvent()); err == nil {
		t.Fatal("expected error against closed server")
	}
	// One retry means at least one backoff interval elapsed.
	if elapsed := time.Since(start); elapsed < 500*time.Millisecond {
		t.Errorf("expected backoff before retry, elapsed %v", elapsed)
	}
}

func TestPublish_ContextCanceled(t *testing.T) {
	mr := miniredis.RunT(t)

	a, err := New(Config{URL: "redis://" + mr.Addr(), Retries: 0})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer iox.DiscardClose(a)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := a.Publish(ctx, testEvent()); err == nil {
		t.Fatal("expected error with canceled context")
	}
}

func TestNew_RequiresURL(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error for empty URL")
	}
}

func TestNew_RejectsInvalidURL(t *testing.T) {
	if _, err := New(Config{URL: "://bad"}); err == nil {
		t.Fatal("expected error for invalid URL")
	}
}
