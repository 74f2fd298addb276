package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"evdarp/internal/planner"
	"evdarp/internal/store"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
)

// wsPing is how often the server pings an idle WebSocket.
var wsPing = 20 * time.Second

// RunEventsWSHandler handles GET /v1/runs/{id}/ws. Every message is a JSON
// encoded planner.Event; the connection closes after the terminal event.
func (s *Server) RunEventsWSHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ch := s.Broker.Subscribe(id)
	defer s.Broker.Unsubscribe(id, ch)
	run, ok := s.run(w, r)
	if !ok {
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	// the read loop only serves control frames and notices a client close
	conn.SetReadLimit(1 << 10)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(wsPongWait)) })
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	write := func(evt planner.Event) error {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteJSON(evt)
	}
	closing := func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run finished")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteWait))
	}

	if err := write(snapshot(run)); err != nil {
		return
	}
	if run.Status != store.StatusRunning {
		closing()
		return
	}
	tick := time.NewTicker(wsPing)
	defer tick.Stop()
	for {
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			if err := write(evt); err != nil {
				return
			}
			if terminal(evt) {
				closing()
				return
			}
		case <-tick.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}
