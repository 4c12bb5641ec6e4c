package api

import (
	"net/http"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/fangwater/feedrace/internal/engine"
	"github.com/fangwater/feedrace/internal/feed"
)

// metrics returns GET /metrics — the engine's lifetime counters and current
// diff aggregates in the Prometheus text exposition format.
func (h *Handler) metrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	snap, err := h.eng.Snapshot(r.Context())
	if err != nil {
		http.Error(w, "engine unavailable", http.StatusServiceUnavailable)
		return
	}
	sa, sb := h.feedA.Stats(), h.feedB.Stats()

	format := expfmt.NewFormat(expfmt.TypeTextPlain)
	w.Header().Set("Content-Type", string(format))
	enc := expfmt.NewEncoder(w, format)
	for _, mf := range buildFamilies(snap, sa, sb) {
		if err := enc.Encode(mf); err != nil {
			return
		}
	}
}

// buildFamilies maps a snapshot onto client_model metric families. Source
// labels carry the configured feed names so dashboards stay readable when
// endpoints are swapped.
func buildFamilies(snap engine.Snapshot, sa, sb feed.Stats) []*dto.MetricFamily {
	return []*dto.MetricFamily{
		counterFamily("feedrace_arrivals_total",
			"Lifetime arrivals per feed.",
			sample(float64(snap.A.Arrivals), "feed", sa.Name),
			sample(float64(snap.B.Arrivals), "feed", sb.Name),
		),
		counterFamily("feedrace_wins_total",
			"Lifetime first-arrival wins per feed.",
			sample(float64(snap.A.Wins), "feed", sa.Name),
			sample(float64(snap.B.Wins), "feed", sb.Name),
		),
		counterFamily("feedrace_completed_pairs_total",
			"Lifetime completed correlation pairs.",
			sample(float64(snap.Completed)),
		),
		counterFamily("feedrace_decode_failures_total",
			"Messages dropped because they failed to decode.",
			sample(float64(sa.DecodeFailures), "feed", sa.Name),
			sample(float64(sb.DecodeFailures), "feed", sb.Name),
		),
		counterFamily("feedrace_reconnects_total",
			"Feed transport reconnections.",
			sample(float64(sa.Reconnects), "feed", sa.Name),
			sample(float64(sb.Reconnects), "feed", sb.Name),
		),
		gaugeFamily("feedrace_pending_keys",
			"Keys currently seen on exactly one feed.",
			sample(float64(snap.Pending)),
		),
		gaugeFamily("feedrace_diff_avg_ms",
			"Average inter-arrival gap over the completed-history window.",
			sample(snap.AvgDiffMs),
		),
		gaugeFamily("feedrace_diff_max_ms",
			"Maximum inter-arrival gap over the completed-history window.",
			sample(snap.MaxDiffMs),
		),
	}
}

// sample builds one metric point with optional name/value label pairs.
func sample(value float64, labels ...string) metricPoint {
	p := metricPoint{value: value}
	for i := 0; i+1 < len(labels); i += 2 {
		p.labels = append(p.labels, &dto.LabelPair{
			Name:  strPtr(labels[i]),
			Value: strPtr(labels[i+1]),
		})
	}
	return p
}

type metricPoint struct {
	value  float64
	labels []*dto.LabelPair
}

func counterFamily(name, help string, points ...metricPoint) *dto.MetricFamily {
	mf := &dto.MetricFamily{
		Name: strPtr(name),
		Help: strPtr(help),
		Type: dto.MetricType_COUNTER.Enum(),
	}
	for _, p := range points {
		mf.Metric = append(mf.Metric, &dto.Metric{
			Label:   p.labels,
			Counter: &dto.Counter{Value: f64Ptr(p.value)},
		})
	}
	return mf
}

func gaugeFamily(name, help string, points ...metricPoint) *dto.MetricFamily {
	mf := &dto.MetricFamily{
		Name: strPtr(name),
		Help: strPtr(help),
		Type: dto.MetricType_GAUGE.Enum(),
	}
	for _, p := range points {
		mf.Metric = append(mf.Metric, &dto.Metric{
			Label: p.labels,
			Gauge: &dto.Gauge{Value: f64Ptr(p.value)},
		})
	}
	return mf
}

func strPtr(s string) *string   { return &s }
func f64Ptr(f float64) *float64 { return &f }
