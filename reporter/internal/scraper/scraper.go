package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/obsidianstack/trafficpulse/pkg/traffic"
	"github.com/obsidianstack/trafficpulse/reporter/internal/config"
)

// maxBodyBytes caps how much of a search reply is read into memory.
const maxBodyBytes = 64 << 20

// Result is the raw output of one scrape for a single report.
type Result struct {
	Report     string
	Body       []byte
	StatusCode int
	FetchedAt  time.Time

	// Err is non-nil when the search could not be completed (connectivity,
	// auth, non-JSON error page). A JSON error body from the backend is not
	// an Err: it is returned in Body so the engine reports it as an
	// UpstreamError.
	Err error
}

// Scraper fetches the raw terms aggregation for one report.
type Scraper struct {
	report  config.ReportConfig
	proc    traffic.ProcessingConfig
	url     string
	timeout time.Duration
	client  *http.Client
	now     func() time.Time
}

// New builds a Scraper for rc against the given backend. It validates the
// report's scoring settings once and reuses the resulting ProcessingConfig.
func New(backend config.BackendConfig, rc config.ReportConfig) (*Scraper, error) {
	pc, err := rc.Processing()
	if err != nil {
		return nil, fmt.Errorf("scraper %q: %w", rc.Name, err)
	}
	client, err := NewHTTPClient(backend.Auth, backend.TLS)
	if err != nil {
		return nil, fmt.Errorf("scraper %q: build http client: %w", rc.Name, err)
	}
	return &Scraper{
		report:  rc,
		proc:    pc,
		url:     searchURL(backend.Endpoint, rc.Index),
		timeout: backend.Timeout,
		client:  client,
		now:     time.Now,
	}, nil
}

// Name returns the report name.
func (s *Scraper) Name() string { return s.report.Name }

// Processing returns the validated scoring configuration for the report.
func (s *Scraper) Processing() traffic.ProcessingConfig { return s.proc }

// Scrape runs the search. The returned error is reserved for request
// construction failures; transport problems are reported in Result.Err.
func (s *Scraper) Scrape(ctx context.Context) (*Result, error) {
	body, err := BuildQuery(s.report, s.proc)
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	res := &Result{Report: s.report.Name, FetchedAt: s.now().UTC()}

	resp, err := s.client.Do(req)
	if err != nil {
		res.Err = fmt.Errorf("http post: %w", err)
		return res, nil
	}
	defer resp.Body.Close()

	res.StatusCode = resp.StatusCode
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		res.Err = fmt.Errorf("read body: %w", err)
		return res, nil
	}

	if resp.StatusCode/100 != 2 && !hasErrorObject(data) {
		res.Err = fmt.Errorf("unexpected status %d", resp.StatusCode)
		return res, nil
	}
	res.Body = data
	return res, nil
}

// hasErrorObject reports whether data is a JSON document with a top-level
// "error" member.
func hasErrorObject(data []byte) bool {
	var probe struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return false
	}
	return len(probe.Error) > 0 && string(probe.Error) != "null"
}

func searchURL(endpoint, index string) string {
	return strings.TrimRight(endpoint, "/") + "/" + url.PathEscape(index) + "/_search"
}
