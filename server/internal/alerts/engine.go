package alerts

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/obsidianstack/trafficpulse/pkg/traffic"
	"github.com/obsidianstack/trafficpulse/server/internal/config"
)

const (
	defaultCooldown = 15 * time.Minute
	maxHistoryLen   = 200
	recentWindow    = time.Hour
)

// Alert represents a single alert event produced by the rule engine.
type Alert struct {
	ID         string     `json:"id"`
	RuleName   string     `json:"rule_name"`
	Report     string     `json:"report"`
	Severity   string     `json:"severity"`
	Message    string     `json:"message"`
	Value      float64    `json:"value"`
	FiredAt    time.Time  `json:"fired_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	State      string     `json:"state"` // "firing" | "resolved"
}

type rule struct {
	config.AlertRule
	cond Condition
}

// Engine evaluates alert rules against incoming reports and delivers webhook
// notifications when rules fire or resolve.
//
// Engine is safe for concurrent use.
type Engine struct {
	rules    []rule
	webhooks []config.WebhookConfig

	mu       sync.Mutex
	active   map[string]*Alert    // key: "ruleName:report"
	lastFire map[string]time.Time // last fire time per key (for cooldown)
	history  []*Alert             // recently resolved alerts
	client   *http.Client
	now      func() time.Time
	deliverF func(*Alert) // injectable for tests
}

// New creates an Engine from the server alert configuration. Rules whose
// condition does not parse are logged and skipped.
func New(cfg config.AlertsConfig) *Engine {
	e := &Engine{
		webhooks: cfg.Webhooks,
		active:   make(map[string]*Alert),
		lastFire: make(map[string]time.Time),
		client:   &http.Client{Timeout: 10 * time.Second},
		now:      time.Now,
	}
	e.deliverF = e.deliver
	for _, r := range cfg.Rules {
		cond, err := ParseCondition(r.Condition)
		if err != nil {
			slog.Error("alerts: skipping rule", "rule", r.Name, "err", err)
			continue
		}
		e.rules = append(e.rules, rule{AlertRule: r, cond: cond})
	}
	return e
}

// Evaluate tests all configured rules against rep.
// Alerts that fire are stored and webhook delivery is triggered asynchronously.
// Alerts that were firing but whose condition is now false are resolved.
func (e *Engine) Evaluate(rep *traffic.Report) {
	if len(e.rules) == 0 || rep == nil {
		return
	}

	now := e.now()
	for _, r := range e.rules {
		if r.Report != "" && r.Report != rep.Name {
			continue
		}
		key := r.Name + ":" + rep.Name
		fires, value := r.cond.Eval(rep)

		e.mu.Lock()
		var notify *Alert
		switch a, active := e.active[key]; {
		case fires && !active:
			cooldown := r.Cooldown
			if cooldown <= 0 {
				cooldown = defaultCooldown
			}
			if last, ok := e.lastFire[key]; ok && now.Sub(last) < cooldown {
				break
			}
			sev := r.Severity
			if sev == "" {
				sev = "warning"
			}
			a = &Alert{
				ID:       uuid.NewString(),
				RuleName: r.Name,
				Report:   rep.Name,
				Severity: sev,
				Value:    value,
				Message: fmt.Sprintf("[%s] %s fired on %s: %s (value %g)",
					sev, r.Name, rep.Name, r.cond, value),
				FiredAt: now,
				State:   "firing",
			}
			e.active[key] = a
			e.lastFire[key] = now
			cp := *a
			notify = &cp
			slog.Warn("alert fired", "rule", r.Name, "report", rep.Name, "value", value, "severity", sev)

		case fires && active:
			a.Value = value

		case !fires && active:
			resolved := now
			a.State = "resolved"
			a.ResolvedAt = &resolved
			delete(e.active, key)

			e.history = append(e.history, a)
			if len(e.history) > maxHistoryLen {
				e.history = e.history[len(e.history)-maxHistoryLen:]
			}
			cp := *a
			notify = &cp
			slog.Info("alert resolved", "rule", r.Name, "report", rep.Name)
		}
		e.mu.Unlock()

		if notify != nil {
			go e.deliverF(notify)
		}
	}
}

// Active returns copies of all currently firing alerts plus any alerts
// resolved within the past hour, newest first.
func (e *Engine) Active() []*Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := e.now().Add(-recentWindow)
	out := make([]*Alert, 0, len(e.active))

	for _, a := range e.active {
		cp := *a
		out = append(out, &cp)
	}
	for _, a := range e.history {
		if a.ResolvedAt != nil && a.ResolvedAt.After(cutoff) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FiredAt.After(out[j].FiredAt) })
	return out
}

// FiringCount returns the number of currently firing alerts.
func (e *Engine) FiringCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.active)
}
