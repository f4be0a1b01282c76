package shipper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/obsidianstack/trafficpulse/pkg/traffic"
	"github.com/obsidianstack/trafficpulse/reporter/internal/config"
)

const (
	backoffInitial    = 1 * time.Second
	backoffMax        = 60 * time.Second
	backoffMultiplier = 2.0
	sendTimeout       = 10 * time.Second

	// ReportsPath is the receiver route on trafficpulse-server.
	ReportsPath = "/api/v1/reports"
)

// Shipper buffers reports and POSTs them to trafficpulse-server.
// Ship() is non-blocking; when the buffer is full the oldest report is evicted.
// Run() must be called in a goroutine to drain the buffer.
type Shipper struct {
	url    string
	client *http.Client
	buf    chan *traffic.Report
	wait   func(time.Duration) <-chan time.Time // injectable for tests
}

// New creates a Shipper for the given reporter config. The client carries the
// server auth settings (see scraper.NewHTTPClient).
func New(cfg config.ReporterConfig, client *http.Client) *Shipper {
	return &Shipper{
		url:    strings.TrimRight(cfg.ServerEndpoint, "/") + ReportsPath,
		client: client,
		buf:    make(chan *traffic.Report, cfg.BufferSize),
		wait:   time.After,
	}
}

// Ship enqueues rep. If the buffer is full the oldest entry is evicted.
func (s *Shipper) Ship(rep *traffic.Report) {
	select {
	case s.buf <- rep:
	default:
		select {
		case old := <-s.buf:
			slog.Warn("shipper: buffer full, evicted oldest report",
				"report", old.Name, "buffer_cap", cap(s.buf))
		default:
		}
		s.buf <- rep
	}
}

// Pending returns the number of buffered reports.
func (s *Shipper) Pending() int { return len(s.buf) }

// Run drains the buffer until ctx is cancelled. Transient failures requeue
// the report and back off; permanent rejections discard it.
func (s *Shipper) Run(ctx context.Context) {
	bo := newBackoff()

	for {
		select {
		case <-ctx.Done():
			return

		case rep := <-s.buf:
			err := s.send(ctx, rep)
			if err == nil {
				bo.reset()
				slog.Debug("shipper: report delivered", "report", rep.Name, "id", rep.ID)
				continue
			}
			if ctx.Err() != nil {
				return
			}

			var perm *permanentError
			if errors.As(err, &perm) {
				slog.Error("shipper: permanent send error, discarding report",
					"report", rep.Name, "err", err)
				continue
			}

			// Requeue unless newer reports already filled the buffer.
			select {
			case s.buf <- rep:
			default:
			}

			wait := bo.next()
			slog.Warn("shipper: send failed, will retry",
				"url", s.url, "err", err, "retry_in", wait)
			select {
			case <-ctx.Done():
				return
			case <-s.wait(wait):
			}
		}
	}
}

// permanentError marks a server rejection that retrying cannot fix.
type permanentError struct {
	status int
	body   string
}

func (e *permanentError) Error() string {
	return fmt.Sprintf("server rejected report: status %d: %s", e.status, e.body)
}

func (s *Shipper) send(ctx context.Context, rep *traffic.Report) error {
	body, err := json.Marshal(rep)
	if err != nil {
		return &permanentError{body: err.Error()}
	}

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return &permanentError{body: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))

	switch {
	case resp.StatusCode/100 == 2:
		return nil
	case isPermanentStatus(resp.StatusCode):
		return &permanentError{status: resp.StatusCode, body: strings.TrimSpace(string(msg))}
	default:
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
}

// isPermanentStatus returns true for statuses that indicate the report itself
// or the credentials are invalid.
func isPermanentStatus(code int) bool {
	switch code {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden,
		http.StatusUnprocessableEntity:
		return true
	}
	return false
}

// backoff implements truncated exponential backoff with jitter.
type backoff struct {
	current time.Duration
}

func newBackoff() *backoff {
	return &backoff{current: backoffInitial}
}

// next returns the current backoff duration and advances the internal state.
func (b *backoff) next() time.Duration {
	d := b.current
	// ±25% jitter.
	jitter := time.Duration(float64(b.current) * 0.25 * (rand.Float64()*2 - 1)) //nolint:gosec // not crypto
	d += jitter
	if d < 0 {
		d = 0
	}

	b.current = time.Duration(float64(b.current) * backoffMultiplier)
	if b.current > backoffMax {
		b.current = backoffMax
	}
	return d
}

func (b *backoff) reset() {
	b.current = backoffInitial
}
