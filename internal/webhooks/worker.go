// Package webhooks posts the outcome of every run to a configured URL,
// signed with HMAC-SHA256 and retried with exponential backoff.
package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"evdarp/internal/metrics"
	"evdarp/internal/planner"
)

// Delivery is one queued notification.
type Delivery struct {
	ID        string
	RunID     string
	EventType string
	Payload   []byte
	Attempts  int
	Next      time.Time
}

// Worker implements planner.Publisher. Terminal run events are queued and
// delivered by the loop started with Start.
type Worker struct {
	URL         string
	Secret      string
	HTTP        *http.Client
	MaxAttempts int

	mu    sync.Mutex
	queue []*Delivery
	stop  chan struct{}
	done  chan struct{}
	now   func() time.Time
}

func NewWorker(url, secret string, maxAttempts int) *Worker {
	if maxAttempts < 1 {
		maxAttempts = 10
	}
	return &Worker{
		URL:         url,
		Secret:      secret,
		HTTP:        &http.Client{Timeout: 5 * time.Second},
		MaxAttempts: maxAttempts,
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
		now:         time.Now,
	}
}

// Publish queues solved, infeasible and failed events; the others are
// dropped.
func (w *Worker) Publish(runID string, evt planner.Event) {
	switch evt.Type {
	case planner.EventSolved, planner.EventInfeasible, planner.EventFailed:
	default:
		return
	}
	id := "evt_" + uuid.New().String()
	body, err := json.Marshal(map[string]any{
		"id":    id,
		"type":  evt.Type,
		"runId": runID,
		"ts":    w.now().UTC().Format(time.RFC3339),
		"data":  evt.Data,
	})
	if err != nil {
		log.Printf("webhook: encode run=%s err=%v", runID, err)
		return
	}
	w.mu.Lock()
	w.queue = append(w.queue, &Delivery{ID: id, RunID: runID, EventType: evt.Type, Payload: body, Next: w.now()})
	w.mu.Unlock()
}

// Pending is the number of queued deliveries.
func (w *Worker) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.queue)
}

func (w *Worker) Start() {
	go func() {
		defer close(w.done)
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-w.stop:
				return
			case <-ticker.C:
				w.processOnce()
			}
		}
	}()
}

// Close stops the loop started by Start and flushes what is due.
func (w *Worker) Close() {
	close(w.stop)
	<-w.done
	w.processOnce()
}

// due removes and returns the deliveries whose next attempt has come.
func (w *Worker) due() []*Delivery {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := w.now()
	var out []*Delivery
	keep := w.queue[:0]
	for _, d := range w.queue {
		if d.Next.After(now) {
			keep = append(keep, d)
		} else {
			out = append(out, d)
		}
	}
	w.queue = keep
	return out
}

func (w *Worker) processOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, d := range w.due() {
		code, err := w.deliver(ctx, d)
		d.Attempts++
		switch {
		case err == nil && code >= 200 && code < 300:
			metrics.WebhookDeliveries.WithLabelValues("delivered").Inc()
			continue
		case d.Attempts >= w.MaxAttempts:
			metrics.WebhookDeliveries.WithLabelValues("dropped").Inc()
			log.Printf("webhook: drop id=%s run=%s attempts=%d code=%d err=%v", d.ID, d.RunID, d.Attempts, code, err)
			continue
		}
		metrics.WebhookDeliveries.WithLabelValues("retried").Inc()
		d.Next = w.now().Add(nextBackoff(d.Attempts))
		w.mu.Lock()
		w.queue = append(w.queue, d)
		w.mu.Unlock()
	}
}

func (w *Worker) deliver(ctx context.Context, d *Delivery) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(d.Payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Type", d.EventType)
	if w.Secret != "" {
		req.Header.Set(SignatureHeader, Sign(w.Secret, w.now(), d.Payload))
	}
	resp, err := w.HTTP.Do(req)
	if err != nil {
		return 0, err
	}
	_ = resp.Body.Close()
	return resp.StatusCode, nil
}

func nextBackoff(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 10 {
		attempts = 10
	}
	base := time.Second * time.Duration(1<<attempts)
	if base > time.Hour {
		base = time.Hour
	}
	return base
}
