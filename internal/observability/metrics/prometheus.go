package metrics

import (
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/target/eligibility-api/internal/observability/statsd"
)

// PrometheusSink mirrors Sink writes into Prometheus collectors so the same
// call sites feed both the StatsD push path and the /metrics scrape endpoint.
//
// Each metric name becomes one vector. Its label set is fixed by the first write;
// later writes fill missing labels with "" and drop unknown ones.
type PrometheusSink struct {
	namespace string
	registry  *prometheus.Registry

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
	labels     map[string][]string
}

var _ statsd.Sink = (*PrometheusSink)(nil)

// NewPrometheusSink creates a sink with its own registry, including the Go and process collectors.
func NewPrometheusSink(namespace string) *PrometheusSink {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &PrometheusSink{
		namespace:  promName(namespace),
		registry:   reg,
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
		labels:     make(map[string][]string),
	}
}

// Handler serves the registry in the exposition format.
func (p *PrometheusSink) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

// Registry exposes the underlying registry, mainly for tests.
func (p *PrometheusSink) Registry() *prometheus.Registry {
	return p.registry
}

func (p *PrometheusSink) Count(name string, value int64, tags map[string]string) {
	if value < 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	key := promName(name) + "_total"
	vec, ok := p.counters[key]
	if !ok {
		vec = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Name:      key,
			Help:      "Counter mirrored from " + name,
		}, p.labelNames(key, tags))
		if !p.register(vec) {
			return
		}
		p.counters[key] = vec
	}
	vec.WithLabelValues(p.labelValues(key, tags)...).Add(float64(value))
}

func (p *PrometheusSink) Gauge(name string, value float64, tags map[string]string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := promName(name)
	vec, ok := p.gauges[key]
	if !ok {
		vec = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Name:      key,
			Help:      "Gauge mirrored from " + name,
		}, p.labelNames(key, tags))
		if !p.register(vec) {
			return
		}
		p.gauges[key] = vec
	}
	vec.WithLabelValues(p.labelValues(key, tags)...).Set(value)
}

func (p *PrometheusSink) Timing(name string, value time.Duration, tags map[string]string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := promName(name) + "_seconds"
	vec, ok := p.histograms[key]
	if !ok {
		vec = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Name:      key,
			Help:      "Timing mirrored from " + name,
			Buckets:   prometheus.DefBuckets,
		}, p.labelNames(key, tags))
		if !p.register(vec) {
			return
		}
		p.histograms[key] = vec
	}
	vec.WithLabelValues(p.labelValues(key, tags)...).Observe(value.Seconds())
}

func (p *PrometheusSink) register(c prometheus.Collector) bool {
	return p.registry.Register(c) == nil
}

func (p *PrometheusSink) labelNames(key string, tags map[string]string) []string {
	names := make([]string, 0, len(tags))
	for k := range tags {
		if n := promName(k); n != "" {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	names = dedupe(names)
	p.labels[key] = names
	return names
}

func (p *PrometheusSink) labelValues(key string, tags map[string]string) []string {
	names := p.labels[key]
	normalized := make(map[string]string, len(tags))
	for k, v := range tags {
		normalized[promName(k)] = v
	}
	values := make([]string, len(names))
	for i, n := range names {
		values[i] = normalized[n]
	}
	return values
}

func dedupe(sorted []string) []string {
	out := sorted[:0]
	for i, s := range sorted {
		if i > 0 && sorted[i-1] == s {
			continue
		}
		out = append(out, s)
	}
	return out
}

// promName maps a dotted StatsD name onto the Prometheus charset.
func promName(name string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return strings.Trim(b.String(), "_")
}
