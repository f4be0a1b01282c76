package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/obsidianstack/trafficpulse/pkg/traffic"
	"github.com/obsidianstack/trafficpulse/reporter/internal/config"
	"github.com/obsidianstack/trafficpulse/reporter/internal/scraper"
	"github.com/obsidianstack/trafficpulse/reporter/internal/shipper"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	input := flag.String("input", "", "score a saved search response (file path or - for stdin) and exit")
	reportName := flag.String("report", "", "report whose scoring settings apply to -input (default: first)")
	format := flag.String("format", "table", "output format for -input: table|json")
	logLevel := flag.String("log-level", "info", "log level: debug|info|warn|error")
	flag.Parse()

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "invalid -log-level %q\n", *logLevel)
		os.Exit(2)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	if *input != "" {
		if err := runOnce(cfg, *input, *reportName, *format, os.Stdout); err != nil {
			slog.Error("analysis failed", "err", err)
			os.Exit(1)
		}
		return
	}

	slog.Info("trafficpulse-reporter starting",
		"config", *configPath,
		"server_endpoint", cfg.Reporter.ServerEndpoint,
		"reports", len(cfg.Reporter.Reports),
		"interval", cfg.Reporter.Interval,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var ship *shipper.Shipper
	if cfg.Reporter.ServerEndpoint != "" {
		client, err := scraper.NewHTTPClient(cfg.Reporter.ServerAuth, config.TLSConfig{})
		if err != nil {
			slog.Error("failed to build server client", "err", err)
			os.Exit(1)
		}
		ship = shipper.New(cfg.Reporter, client)
		go ship.Run(ctx)
	} else {
		slog.Warn("no server_endpoint configured, reports will only be logged")
	}

	reg := &registry{}
	reg.load(cfg.Reporter)

	go func() {
		if err := config.Watch(ctx, *configPath, func(updated *config.Config) {
			reg.load(updated.Reporter)
		}); err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	ticker := time.NewTicker(cfg.Reporter.Interval)
	defer ticker.Stop()

	runCycle(ctx, reg, ship)
	for {
		select {
		case <-ctx.Done():
			slog.Info("trafficpulse-reporter shutting down")
			return
		case <-ticker.C:
			runCycle(ctx, reg, ship)
		}
	}
}

// registry holds the scrapers for the active config and swaps them on reload.
type registry struct {
	mu       sync.RWMutex
	scrapers []*scraper.Scraper
}

func (r *registry) load(rc config.ReporterConfig) {
	var scrapers []*scraper.Scraper
	for _, rep := range rc.Reports {
		s, err := scraper.New(rc.Backend, rep)
		if err != nil {
			slog.Error("skipping report, could not build scraper", "report", rep.Name, "err", err)
			continue
		}
		scrapers = append(scrapers, s)
		slog.Info("registered report", "report", rep.Name, "index", rep.Index,
			"strategy", s.Processing().Strategy())
	}
	if len(scrapers) == 0 {
		slog.Warn("no reports configured, reporter will idle")
	}

	r.mu.Lock()
	r.scrapers = scrapers
	r.mu.Unlock()
}

func (r *registry) snapshot() []*scraper.Scraper {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.scrapers
}

// runCycle scrapes, scores and ships every report once. A failing report is
// logged and does not stop the others.
func runCycle(ctx context.Context, reg *registry, ship *shipper.Shipper) {
	for _, s := range reg.snapshot() {
		res, err := s.Scrape(ctx)
		if err != nil {
			slog.Warn("scrape error", "report", s.Name(), "err", err)
			continue
		}
		if res.Err != nil {
			slog.Warn("scrape failed", "report", s.Name(), "status", res.StatusCode, "err", res.Err)
			continue
		}

		rep, err := traffic.AnalyzeJSON(res.Body, s.Processing(), res.FetchedAt)
		if err != nil {
			slog.Error("analysis failed", "report", s.Name(), "err", err)
			continue
		}
		rep.ID = uuid.NewString()
		rep.Name = s.Name()

		slog.Info("report scored",
			"report", rep.Name,
			"critical", rep.Stats.Critical,
			"warning", rep.Stats.Warning,
			"total", rep.Stats.Total,
			"factor", rep.Metadata.NormalizationFactor,
		)
		if ship != nil {
			ship.Ship(rep)
		}
	}
}

// runOnce scores a saved search response with the named report's settings.
func runOnce(cfg *config.Config, input, reportName, format string, w io.Writer) error {
	rc, err := pickReport(cfg.Reporter.Reports, reportName)
	if err != nil {
		return err
	}
	pc, err := rc.Processing()
	if err != nil {
		return err
	}

	var data []byte
	if input == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(input)
	}
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	rep, err := traffic.AnalyzeJSON(data, pc, time.Now())
	if err != nil {
		return err
	}
	rep.ID = uuid.NewString()
	rep.Name = rc.Name

	switch strings.ToLower(format) {
	case "json":
		return writeJSON(w, rep)
	case "table":
		return writeTable(w, rep)
	default:
		return fmt.Errorf("unknown format %q: want table|json", format)
	}
}

func pickReport(reports []config.ReportConfig, name string) (config.ReportConfig, error) {
	if len(reports) == 0 {
		return config.ReportConfig{}, fmt.Errorf("no reports configured")
	}
	if name == "" {
		return reports[0], nil
	}
	for _, r := range reports {
		if r.Name == name {
			return r, nil
		}
	}
	return config.ReportConfig{}, fmt.Errorf("report %q not found in config", name)
}
