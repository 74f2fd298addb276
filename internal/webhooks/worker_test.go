package webhooks

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"evdarp/internal/planner"
)

type recorder struct {
	mu     sync.Mutex
	bodies [][]byte
	sigs   []string
	types  []string
}

func (r *recorder) handler(code int) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		b, _ := io.ReadAll(req.Body)
		r.mu.Lock()
		r.bodies = append(r.bodies, b)
		r.sigs = append(r.sigs, req.Header.Get(SignatureHeader))
		r.types = append(r.types, req.Header.Get("X-Event-Type"))
		r.mu.Unlock()
		w.WriteHeader(code)
	}
}

// posts returns copies of what the server received so far.
func (r *recorder) posts() (bodies [][]byte, sigs, types []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append(bodies, r.bodies...), append(sigs, r.sigs...), append(types, r.types...)
}

func TestWorkerProcessOnce_SuccessAndSignature(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(rec.handler(200))
	defer srv.Close()

	w := NewWorker(srv.URL, "secret", 3)
	w.HTTP = srv.Client()
	w.Publish("run-1", planner.Event{Type: planner.EventStarted})
	w.Publish("run-1", planner.Event{Type: planner.EventSolved, Data: map[string]any{"objective": 3.0}})
	if w.Pending() != 1 {
		t.Fatalf("pending = %d, want only the terminal event", w.Pending())
	}

	w.processOnce()

	bodies, sigs, types := rec.posts()
	if len(bodies) != 1 || types[0] != planner.EventSolved {
		t.Fatalf("deliveries: %v", types)
	}
	if err := Verify("secret", sigs[0], bodies[0], time.Now(), time.Minute); err != nil {
		t.Fatalf("signature %q: %v", sigs[0], err)
	}
	var payload map[string]any
	if err := json.Unmarshal(bodies[0], &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload["runId"] != "run-1" || payload["type"] != planner.EventSolved {
		t.Fatalf("payload = %v", payload)
	}
	if w.Pending() != 0 {
		t.Fatalf("pending after success = %d", w.Pending())
	}
}

func TestWorkerRetriesThenDrops(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(rec.handler(500))
	defer srv.Close()

	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	w := NewWorker(srv.URL, "", 2)
	w.HTTP = srv.Client()
	w.now = func() time.Time { return clock }
	w.Publish("run-1", planner.Event{Type: planner.EventFailed})

	w.processOnce()
	bodies, sigs, _ := rec.posts()
	if w.Pending() != 1 || len(bodies) != 1 {
		t.Fatalf("after first attempt: pending=%d posts=%d", w.Pending(), len(bodies))
	}
	if sigs[0] != "" {
		t.Fatal("no secret, no signature")
	}
	// not due yet
	w.processOnce()
	if bodies, _, _ = rec.posts(); len(bodies) != 1 {
		t.Fatalf("retried before backoff: posts=%d", len(bodies))
	}
	clock = clock.Add(nextBackoff(1))
	w.processOnce()
	if bodies, _, _ = rec.posts(); len(bodies) != 2 || w.Pending() != 0 {
		t.Fatalf("after last attempt: pending=%d posts=%d", w.Pending(), len(bodies))
	}
}

func TestNextBackoff(t *testing.T) {
	if nextBackoff(-1) != time.Second || nextBackoff(3) != 8*time.Second {
		t.Fatalf("backoff: %v %v", nextBackoff(-1), nextBackoff(3))
	}
	if nextBackoff(50) != 1024*time.Second {
		t.Fatalf("capped backoff: %v", nextBackoff(50))
	}
}

func TestStartClose(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(rec.handler(204))
	defer srv.Close()
	w := NewWorker(srv.URL, "k", 1)
	w.HTTP = srv.Client()
	w.Start()
	w.Publish("run-2", planner.Event{Type: planner.EventInfeasible})
	w.Close()
	if bodies, _, _ := rec.posts(); len(bodies) != 1 {
		t.Fatalf("posts = %d", len(bodies))
	}
}

func TestSignVerify(t *testing.T) {
	at := time.Unix(1700000000, 0)
	body := []byte(`{"runId":"r"}`)
	h := Sign("k", at, body)
	if !strings.HasPrefix(h, "t=1700000000,v1=") {
		t.Fatalf("header %q", h)
	}
	if err := Verify("k", h, body, at.Add(time.Second), time.Minute); err != nil {
		t.Fatalf("verify: %v", err)
	}
	cases := []struct {
		name, secret, header string
		body                 []byte
		now                  time.Time
		want                 error
	}{
		{"wrong secret", "x", h, body, at, ErrSignature},
		{"tampered body", "k", h, []byte(`{}`), at, ErrSignature},
		{"garbage", "k", "nonsense", body, at, ErrSignature},
		{"missing mac", "k", "t=1700000000", body, at, ErrSignature},
		{"stale", "k", h, body, at.Add(time.Hour), ErrStale},
	}
	for _, c := range cases {
		if err := Verify(c.secret, c.header, c.body, c.now, time.Minute); !errors.Is(err, c.want) {
			t.Fatalf("%s: got %v, want %v", c.name, err, c.want)
		}
	}
}
