package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"evdarp/internal/config"
	"evdarp/internal/planner"
	"evdarp/internal/store"
)

// lineInstance places one request on the x axis: origin 0, pickup 1,
// delivery 2, destination 3 and a station at 10. The optimum is 3.
const lineInstance = `{
	"name": "line", "resources": 1, "maxRide": 50,
	"origin": {"x": 0, "y": 0, "earliest": 0, "latest": 100, "service": 0},
	"destination": {"x": 3, "y": 0, "earliest": 0, "latest": 100, "service": 0},
	"requests": [{
		"pickup": {"x": 1, "y": 0, "earliest": 0, "latest": 100, "demand": [1], "service": 0},
		"delivery": {"x": 2, "y": 0, "earliest": 0, "latest": 100, "service": 0}
	}],
	"stations": [{"x": 10, "y": 0, "earliest": 0, "latest": 100, "service": 0}],
	"vehicles": [{"name": "v1", "capacity": [1], "maxDuration": 100, "tank": 100}]
}`

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.Solver = config.SolverBnB
	cfg.LPExport = ""
	cfg.Burst = 100
	s, err := NewServer(cfg)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return s
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	h.ServeHTTP(rr, req)
	return rr
}

func solve(t *testing.T, h http.Handler, extra string) SolveResponse {
	t.Helper()
	rr := do(t, h, http.MethodPost, "/v1/solve", `{"instance":`+lineInstance+extra+`}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("solve: got %d %s", rr.Code, rr.Body.String())
	}
	var res SolveResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return res
}

func TestHealthReadyVersion(t *testing.T) {
	h := newTestServer(t).Routes()
	for _, path := range []string{"/healthz", "/readyz", "/version"} {
		if rr := do(t, h, http.MethodGet, path, ""); rr.Code != http.StatusOK {
			t.Fatalf("%s: got %d", path, rr.Code)
		}
	}
	rr := do(t, h, http.MethodGet, "/version", "")
	var v map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode version: %v", err)
	}
	if v["solver"] != "bnb" {
		t.Fatalf("solver = %v", v["solver"])
	}
}

func TestOpenAPI(t *testing.T) {
	h := newTestServer(t).Routes()
	rr := do(t, h, http.MethodGet, "/openapi.yaml", "")
	if rr.Code != http.StatusOK || !strings.HasPrefix(rr.Body.String(), "openapi:") {
		t.Fatalf("yaml: got %d", rr.Code)
	}
	rr = do(t, h, http.MethodGet, "/openapi.yaml?format=json", "")
	var doc struct {
		Paths map[string]any `json:"paths"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &doc); err != nil {
		t.Fatalf("json: %v", err)
	}
	if _, ok := doc.Paths["/v1/solve"]; !ok {
		t.Fatalf("paths missing /v1/solve: %v", doc.Paths)
	}
}

func TestSolveAndRunLookups(t *testing.T) {
	h := newTestServer(t).Routes()
	res := solve(t, h, "")
	if res.Status != "optimal" || res.Objective == nil || *res.Objective < 3-1e-6 || *res.Objective > 3+1e-6 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(res.Routes) != 1 || res.Vars == 0 || res.Rows == 0 {
		t.Fatalf("unexpected routes or sizes: %+v", res)
	}

	rr := do(t, h, http.MethodGet, "/v1/runs/"+res.RunID, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("get run: %d", rr.Code)
	}
	var run store.Run
	_ = json.Unmarshal(rr.Body.Bytes(), &run)
	if run.Status != store.StatusOptimal || run.Solver != "bnb" {
		t.Fatalf("run = %+v", run)
	}

	rr = do(t, h, http.MethodGet, "/v1/runs?limit=5", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), res.RunID) {
		t.Fatalf("list runs: %d %s", rr.Code, rr.Body.String())
	}

	rr = do(t, h, http.MethodGet, "/v1/runs/"+res.RunID+"/lp", "")
	if rr.Code != http.StatusOK || !strings.HasPrefix(rr.Body.String(), `\Problem name: line`) {
		t.Fatalf("lp: %d %q", rr.Code, rr.Body.String())
	}

	rr = do(t, h, http.MethodGet, "/v1/runs/"+res.RunID+"/report", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "distance=3.00") {
		t.Fatalf("report: %d %s", rr.Code, rr.Body.String())
	}

	rr = do(t, h, http.MethodGet, "/v1/runs/"+res.RunID+"/events", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "event: run.snapshot") {
		t.Fatalf("events: %d %s", rr.Code, rr.Body.String())
	}

	if rr = do(t, h, http.MethodDelete, "/v1/runs/"+res.RunID, ""); rr.Code != http.StatusNoContent {
		t.Fatalf("delete: %d", rr.Code)
	}
	if rr = do(t, h, http.MethodGet, "/v1/runs/"+res.RunID, ""); rr.Code != http.StatusNotFound {
		t.Fatalf("get after delete: %d", rr.Code)
	}
}

func TestSolveInfeasibleHasNoReport(t *testing.T) {
	h := newTestServer(t).Routes()
	infeasible := strings.Replace(lineInstance, `"capacity": [1]`, `"capacity": [0]`, 1)
	rr := do(t, h, http.MethodPost, "/v1/solve", `{"instance":`+infeasible+`}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("solve: %d %s", rr.Code, rr.Body.String())
	}
	var res SolveResponse
	_ = json.Unmarshal(rr.Body.Bytes(), &res)
	if res.Status != "infeasible" || res.Objective != nil || len(res.Routes) != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if rr = do(t, h, http.MethodGet, "/v1/runs/"+res.RunID+"/report", ""); rr.Code != http.StatusConflict {
		t.Fatalf("report: %d", rr.Code)
	}
}

func TestSolveFeatureOverride(t *testing.T) {
	h := newTestServer(t).Routes()
	res := solve(t, h, `,"features":{"fuel":false,"dummyStations":false,"objective":"distance","bigM":"horizon","tour":"closed","range":"arc"}`)
	if res.Status != "optimal" {
		t.Fatalf("status = %s", res.Status)
	}
	arcs := res.Routes[0].Arcs
	if last := arcs[len(arcs)-1]; last != [2]int{4, 0} {
		t.Fatalf("closed tour should end on the closing arc, got %v", last)
	}
}

func TestSolveBadRequests(t *testing.T) {
	h := newTestServer(t).Routes()
	cases := map[string]string{
		"malformed":       `{"instance":`,
		"unknown field":   `{"instance":` + lineInstance + `,"bogus":1}`,
		"missing":         `{}`,
		"no vehicles":     `{"instance":` + strings.Replace(lineInstance, `"vehicles": [{"name": "v1", "capacity": [1], "maxDuration": 100, "tank": 100}]`, `"vehicles": []`, 1) + `}`,
		"bad feature":     `{"instance":` + lineInstance + `,"features":{"tour":"sideways"}}`,
		"trailing data":   `{"instance":` + lineInstance + `} {}`,
		"invalid windows": `{"instance":` + strings.Replace(lineInstance, `"x": 1, "y": 0, "earliest": 0, "latest": 100`, `"x": 1, "y": 0, "earliest": 50, "latest": 10`, 1) + `}`,
	}
	for name, body := range cases {
		rr := do(t, h, http.MethodPost, "/v1/solve", body)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: got %d %s", name, rr.Code, rr.Body.String())
		}
		if ct := rr.Header().Get("Content-Type"); ct != "application/problem+json" {
			t.Fatalf("%s: content type %q", name, ct)
		}
	}
}

func TestSolveRateLimited(t *testing.T) {
	s := newTestServer(t)
	s.Limiter = rate.NewLimiter(0, 0)
	rr := do(t, s.Routes(), http.MethodPost, "/v1/solve", `{"instance":`+lineInstance+`}`)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("got %d", rr.Code)
	}
}

func TestNotFoundAndBadLimit(t *testing.T) {
	h := newTestServer(t).Routes()
	for _, path := range []string{"/v1/runs/nope", "/v1/runs/nope/lp", "/v1/runs/nope/report", "/v1/runs/nope/events"} {
		if rr := do(t, h, http.MethodGet, path, ""); rr.Code != http.StatusNotFound {
			t.Fatalf("%s: got %d", path, rr.Code)
		}
	}
	if rr := do(t, h, http.MethodDelete, "/v1/runs/nope", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("delete: got %d", rr.Code)
	}
	if rr := do(t, h, http.MethodGet, "/v1/runs?limit=0", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("limit: got %d", rr.Code)
	}
}

func TestAsyncSolve(t *testing.T) {
	s := newTestServer(t)
	h := s.Routes()
	rr := do(t, h, http.MethodPost, "/v1/solve", `{"async":true,"instance":`+lineInstance+`}`)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("solve: %d %s", rr.Code, rr.Body.String())
	}
	var acc map[string]string
	_ = json.Unmarshal(rr.Body.Bytes(), &acc)
	id := acc["runId"]
	if rr.Header().Get("Location") != "/v1/runs/"+id {
		t.Fatalf("location = %q", rr.Header().Get("Location"))
	}
	// the run is recorded before the response is written
	if rr = do(t, h, http.MethodGet, "/v1/runs/"+id, ""); rr.Code != http.StatusOK {
		t.Fatalf("get run: %d", rr.Code)
	}
	s.Wait()
	rr = do(t, h, http.MethodGet, "/v1/runs/"+id, "")
	var run store.Run
	_ = json.Unmarshal(rr.Body.Bytes(), &run)
	if run.Status != store.StatusOptimal || len(run.Routes) != 1 {
		t.Fatalf("run = %+v", run)
	}
}

func TestWaitCoversConcurrentAsyncSolves(t *testing.T) {
	s := newTestServer(t)
	h := s.Routes()
	ids := make([]string, 4)
	var clients sync.WaitGroup
	for i := range ids {
		clients.Add(1)
		go func(i int) {
			defer clients.Done()
			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/v1/solve", strings.NewReader(`{"async":true,"instance":`+lineInstance+`}`))
			h.ServeHTTP(rr, req)
			var acc map[string]string
			_ = json.Unmarshal(rr.Body.Bytes(), &acc)
			ids[i] = acc["runId"]
		}(i)
	}
	clients.Wait()
	s.Wait()
	for _, id := range ids {
		run, err := s.Store.GetRun(context.Background(), id)
		if err != nil {
			t.Fatalf("get %q: %v", id, err)
		}
		if run.Status != store.StatusOptimal {
			t.Fatalf("run %s status = %s after Wait", id, run.Status)
		}
	}
}

func TestRunEventsStream(t *testing.T) {
	s := newTestServer(t)
	// a running record with no outcome yet, driven by hand below
	if _, err := s.Store.CreateRun(context.Background(), store.Run{ID: "live", Status: store.StatusRunning}); err != nil {
		t.Fatalf("create: %v", err)
	}
	srv := httptest.NewServer(s.Routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/runs/live/events")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	buf := make([]byte, 4096)
	n, _ := resp.Body.Read(buf)
	if !bytes.Contains(buf[:n], []byte("event: run.snapshot")) {
		t.Fatalf("first frame %q", buf[:n])
	}
	s.Broker.Publish("live", planner.Event{Type: planner.EventSolved, Data: map[string]any{"runId": "live"}})
	var rest bytes.Buffer
	if _, err := rest.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(rest.String(), "event: run.solved") {
		t.Fatalf("stream %q", rest.String())
	}
}

func TestRunEventsWebSocket(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.Routes())
	defer srv.Close()
	res := solve(t, s.Routes(), "")

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/runs/" + res.RunID + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	var evt planner.Event
	if err := conn.ReadJSON(&evt); err != nil {
		t.Fatalf("read: %v", err)
	}
	if evt.Type != "run.snapshot" || evt.Data["status"] != store.StatusOptimal {
		t.Fatalf("snapshot = %+v", evt)
	}
	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Fatalf("want normal close, got %v", err)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestServer(t).Routes()
	do(t, h, http.MethodGet, "/healthz", "")
	rr := do(t, h, http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "http_requests_total") {
		t.Fatalf("metrics: %d", rr.Code)
	}
}

func TestSolveNotifiesWebhook(t *testing.T) {
	got := make(chan string, 4)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- r.Header.Get("X-Event-Type")
	}))
	defer hook.Close()

	cfg := config.Default()
	cfg.Solver = config.SolverBnB
	cfg.Burst = 100
	cfg.WebhookURL = hook.URL
	s, err := NewServer(cfg)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	solve(t, s.Routes(), "")
	s.Close()
	select {
	case typ := <-got:
		if typ != planner.EventSolved {
			t.Fatalf("event type %q", typ)
		}
	default:
		t.Fatal("no webhook delivered")
	}
}
