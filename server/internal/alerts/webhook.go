package alerts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
)

// deliver sends a to every configured webhook. Errors are logged and do not
// affect the caller.
func (e *Engine) deliver(a *Alert) {
	for _, wh := range e.webhooks {
		url := wh.URL()
		if url == "" {
			continue
		}

		body, err := payloadFor(wh.Type, a)
		if err != nil {
			slog.Warn("alerts: skipping webhook", "type", wh.Type, "err", err)
			continue
		}

		if err := e.post(url, body); err != nil {
			slog.Error("alerts: webhook delivery failed",
				"type", wh.Type, "rule", a.RuleName, "report", a.Report, "err", err)
			continue
		}
		slog.Debug("alerts: webhook delivered",
			"type", wh.Type, "rule", a.RuleName, "state", a.State)
	}
}

// payloadFor renders a in the body format expected by a webhook type.
func payloadFor(kind string, a *Alert) ([]byte, error) {
	switch kind {
	case "slack":
		return json.Marshal(map[string]any{
			"text": fmt.Sprintf("*%s* %s", stateLabel(a), a.Message),
			"attachments": []map[string]any{{
				"color": "#" + severityColor(a.Severity),
				"fields": []map[string]any{
					{"title": "Report", "value": a.Report, "short": true},
					{"title": "Value", "value": strconv.FormatFloat(a.Value, 'f', -1, 64), "short": true},
				},
			}},
		})
	case "teams":
		return json.Marshal(map[string]any{
			"@type":      "MessageCard",
			"@context":   "http://schema.org/extensions",
			"themeColor": severityColor(a.Severity),
			"summary":    a.RuleName,
			"title":      fmt.Sprintf("Traffic alert %s: %s on %s", a.State, a.RuleName, a.Report),
			"text":       a.Message,
		})
	case "http":
		return json.Marshal(map[string]any{"alert": a})
	default:
		return nil, fmt.Errorf("unknown webhook type %q", kind)
	}
}

func (e *Engine) post(url string, body []byte) error {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}

func stateLabel(a *Alert) string {
	if a.State == "resolved" {
		return "[RESOLVED]"
	}
	switch a.Severity {
	case "critical":
		return "[CRITICAL]"
	case "warning":
		return "[WARNING]"
	default:
		return "[INFO]"
	}
}

func severityColor(s string) string {
	switch s {
	case "critical":
		return "FF4F6A"
	case "warning":
		return "FFAB40"
	default:
		return "00D4FF"
	}
}
