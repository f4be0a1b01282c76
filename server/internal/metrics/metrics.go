package metrics

import (
	"log/slog"
	"net/http"
	"sort"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"

	"github.com/obsidianstack/trafficpulse/pkg/traffic"
	"github.com/obsidianstack/trafficpulse/server/internal/store"
)

// Metric family names.
const (
	EventsFamily  = "trafficpulse_events"
	FactorFamily  = "trafficpulse_normalization_factor"
	ScoreFamily   = "trafficpulse_event_score"
	ReportsFamily = "trafficpulse_reports"
	CacheFamily   = "trafficpulse_analyze_cache_requests_total"
)

// Handler exposes live reports in the Prometheus exposition format.
type Handler struct {
	store *store.Store
	cache *store.Cache
}

// New returns a Handler reading from st. cache may be nil.
func New(st *store.Store, cache *store.Cache) *Handler {
	return &Handler{store: st, cache: cache}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	format := expfmt.Negotiate(r.Header)
	w.Header().Set("Content-Type", string(format))

	enc := expfmt.NewEncoder(w, format)
	for _, mf := range h.Gather() {
		if err := enc.Encode(mf); err != nil {
			slog.Error("metrics: encode", "family", mf.GetName(), "err", err)
			return
		}
	}
	if c, ok := enc.(expfmt.Closer); ok {
		c.Close() //nolint:errcheck
	}
}

// Gather builds the metric families for every live report.
func (h *Handler) Gather() []*dto.MetricFamily {
	entries := h.store.List()

	events := family(EventsFamily, "Scored events per report and status.", dto.MetricType_GAUGE)
	factor := family(FactorFamily, "Baseline to comparison window duration ratio.", dto.MetricType_GAUGE)
	score := family(ScoreFamily, "Deviation score of each event, -100 to 100.", dto.MetricType_GAUGE)
	reports := family(ReportsFamily, "Number of live reports.", dto.MetricType_GAUGE)
	reports.Metric = append(reports.Metric, gauge(float64(len(entries))))

	for _, e := range entries {
		rep := e.Report
		st := rep.Stats
		for _, c := range []struct {
			status traffic.Status
			n      int
		}{
			{traffic.StatusCritical, st.Critical},
			{traffic.StatusWarning, st.Warning},
			{traffic.StatusNormal, st.Normal},
			{traffic.StatusIncreased, st.Increased},
		} {
			events.Metric = append(events.Metric,
				gauge(float64(c.n), "report", rep.Name, "status", string(c.status)))
		}

		factor.Metric = append(factor.Metric,
			gauge(rep.Metadata.NormalizationFactor, "report", rep.Name))

		for _, ev := range rep.Events {
			score.Metric = append(score.Metric,
				gauge(float64(ev.Score), "report", rep.Name, "event", ev.EventID))
		}
	}

	out := []*dto.MetricFamily{events, factor, score, reports}
	if h.cache != nil {
		hits, misses := h.cache.Stats()
		cache := family(CacheFamily, "Analyze requests by cache result.", dto.MetricType_COUNTER)
		cache.Metric = append(cache.Metric,
			counter(float64(hits), "result", "hit"),
			counter(float64(misses), "result", "miss"))
		out = append(out, cache)
	}

	// Families with no samples are omitted from the exposition.
	kept := out[:0]
	for _, mf := range out {
		if len(mf.Metric) > 0 {
			kept = append(kept, mf)
		}
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].GetName() < kept[j].GetName() })
	return kept
}

func family(name, help string, typ dto.MetricType) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name: proto.String(name),
		Help: proto.String(help),
		Type: typ.Enum(),
	}
}

func gauge(v float64, labels ...string) *dto.Metric {
	return &dto.Metric{Label: labelPairs(labels), Gauge: &dto.Gauge{Value: proto.Float64(v)}}
}

func counter(v float64, labels ...string) *dto.Metric {
	return &dto.Metric{Label: labelPairs(labels), Counter: &dto.Counter{Value: proto.Float64(v)}}
}

// labelPairs turns alternating name, value strings into label pairs.
func labelPairs(kv []string) []*dto.LabelPair {
	out := make([]*dto.LabelPair, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, &dto.LabelPair{Name: proto.String(kv[i]), Value: proto.String(kv[i+1])})
	}
	return out
}
