//go:build redis_integration

package api

import (
	"context"
	"os"
	"testing"
	"time"

	"evdarp/internal/planner"
)

func TestRedisBrokerRoundTrip(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	b, err := NewRedisBroker(url)
	if err != nil {
		t.Fatalf("NewRedisBroker: %v", err)
	}
	defer b.Close()
	if err := b.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
	ch := b.Subscribe("it-run")
	b.Publish("it-run", planner.Event{Type: planner.EventSolved, Data: map[string]any{"runId": "it-run"}})
	select {
	case evt := <-ch:
		if evt.Type != planner.EventSolved || evt.Data["runId"] != "it-run" {
			t.Fatalf("got %+v", evt)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for event")
	}
	b.Unsubscribe("it-run", ch)
	b.Unsubscribe("it-run", ch)
}
