package shipper

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/obsidianstack/trafficpulse/pkg/traffic"
	"github.com/obsidianstack/trafficpulse/reporter/internal/config"
)

// mockServer records reports POSTed to the receiver route.
type mockServer struct {
	mu       sync.Mutex
	received []traffic.Report
	failN    int // fail the first N calls with 503
	status   int // fixed status for every call when non-zero
}

func (m *mockServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r.URL.Path != ReportsPath || r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	if m.status != 0 {
		w.WriteHeader(m.status)
		return
	}
	if m.failN > 0 {
		m.failN--
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	var rep traffic.Report
	if err := json.NewDecoder(r.Body).Decode(&rep); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	m.received = append(m.received, rep)
	w.WriteHeader(http.StatusAccepted)
}

func (m *mockServer) reports() []traffic.Report {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]traffic.Report, len(m.received))
	copy(out, m.received)
	return out
}

func newTestShipper(t *testing.T, srv *mockServer, bufferSize int) *Shipper {
	t.Helper()
	hs := httptest.NewServer(srv)
	t.Cleanup(hs.Close)

	s := New(config.ReporterConfig{ServerEndpoint: hs.URL + "/", BufferSize: bufferSize}, hs.Client())
	// Retry immediately in tests.
	s.wait = func(time.Duration) <-chan time.Time {
		ch := make(chan time.Time, 1)
		ch <- time.Now()
		return ch
	}
	return s
}

func makeReport(name string) *traffic.Report {
	return &traffic.Report{
		ID:   "id-" + name,
		Name: name,
		Events: []traffic.ScoredEvent{
			{EventID: "shop.checkout", DisplayName: "checkout", Score: -90, Status: traffic.StatusCritical},
		},
		Stats:       traffic.DashboardStats{Critical: 1, Total: 1},
		GeneratedAt: time.Date(2026, 1, 8, 12, 0, 0, 0, time.UTC),
	}
}

// waitFor polls cond until it returns true or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestShipper_DeliversReport(t *testing.T) {
	srv := &mockServer{}
	s := newTestShipper(t, srv, 10)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	s.Ship(makeReport("checkout"))
	waitFor(t, func() bool { return len(srv.reports()) == 1 })

	got := srv.reports()[0]
	if got.Name != "checkout" || got.ID != "id-checkout" {
		t.Errorf("delivered report: got %+v", got)
	}
	if got.Stats.Critical != 1 || len(got.Events) != 1 {
		t.Errorf("payload lost fields: %+v", got)
	}
}

func TestShipper_RetriesTransientFailures(t *testing.T) {
	srv := &mockServer{failN: 2}
	s := newTestShipper(t, srv, 10)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	s.Ship(makeReport("checkout"))
	waitFor(t, func() bool { return len(srv.reports()) == 1 })
}

func TestShipper_DiscardsOnPermanentError(t *testing.T) {
	srv := &mockServer{status: http.StatusUnauthorized}
	s := newTestShipper(t, srv, 10)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	s.Ship(makeReport("a"))
	waitFor(t, func() bool { return s.Pending() == 0 })

	// Give Run a moment to requeue if it wrongly treated 401 as transient.
	time.Sleep(50 * time.Millisecond)
	if n := s.Pending(); n != 0 {
		t.Errorf("pending after 401: got %d, want 0", n)
	}
}

func TestShipper_BufferEvictsOldest(t *testing.T) {
	s := New(config.ReporterConfig{ServerEndpoint: "http://unused", BufferSize: 2}, http.DefaultClient)

	s.Ship(makeReport("first"))
	s.Ship(makeReport("second"))
	s.Ship(makeReport("third"))

	if n := s.Pending(); n != 2 {
		t.Fatalf("pending: got %d, want 2", n)
	}
	if got := (<-s.buf).Name; got != "second" {
		t.Errorf("oldest surviving report: got %q, want second", got)
	}
}

func TestIsPermanentStatus(t *testing.T) {
	for _, code := range []int{400, 401, 403, 422} {
		if !isPermanentStatus(code) {
			t.Errorf("status %d should be permanent", code)
		}
	}
	for _, code := range []int{404, 429, 500, 502, 503} {
		if isPermanentStatus(code) {
			t.Errorf("status %d should be transient", code)
		}
	}
}

func TestBackoff_Bounds(t *testing.T) {
	b := newBackoff()
	for i := 0; i < 20; i++ {
		d := b.next()
		if d < 0 || d > backoffMax+backoffMax/4 {
			t.Fatalf("step %d: backoff %v out of bounds", i, d)
		}
	}
	if b.current != backoffMax {
		t.Errorf("current after many steps: got %v, want %v", b.current, backoffMax)
	}
	b.reset()
	if b.current != backoffInitial {
		t.Errorf("after reset: got %v, want %v", b.current, backoffInitial)
	}
}
