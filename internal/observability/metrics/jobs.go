// Package metrics names the metrics the service emits and adapts them onto the sinks.
package metrics

import (
	"time"

	obserrors "github.com/target/eligibility-api/internal/observability/errors"
	"github.com/target/eligibility-api/internal/observability/statsd"
)

// Result tag values.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// Item transitions reported by the dispatcher.
const (
	TransitionClaimed  = "claimed"
	TransitionRunning  = "running"
	TransitionDone     = "done"
	TransitionProgress = "progress"
	TransitionNotify   = "notify"
)

// ItemMetric describes one job item lifecycle step.
type ItemMetric struct {
	Transition string
	Result     string
	Duration   time.Duration
	Err        error
}

// EmitItemLifecycle counts the transition and, when a duration is set, records it as a timing.
func EmitItemLifecycle(sink statsd.Sink, in ItemMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"transition": in.Transition,
		"result":     in.Result,
	}
	if in.Err != nil && in.Result == ResultError {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("job.item_transition", 1, tags)
	if in.Duration > 0 {
		sink.Timing("job.item_duration", in.Duration, CloneTags(tags))
	}
}

// EmitJobCompleted records a job reaching done == total.
func EmitJobCompleted(sink statsd.Sink, total int) {
	if sink == nil {
		return
	}
	sink.Count("job.completed", 1, nil)
	sink.Gauge("job.last_completed_items", float64(total), nil)
}

// EmitRateLimitDecision counts one admission decision.
func EmitRateLimitDecision(sink statsd.Sink, allowed bool) {
	if sink == nil {
		return
	}
	result := "allowed"
	if !allowed {
		result = "denied"
	}
	sink.Count("ratelimit.decision", 1, map[string]string{"result": result})
}

// EmitHTTPRequest records one served request.
func EmitHTTPRequest(sink statsd.Sink, route string, status int, elapsed time.Duration) {
	if sink == nil {
		return
	}
	tags := map[string]string{"route": route, "status_class": statusClass(status)}
	sink.Count("http.request", 1, tags)
	sink.Timing("http.request_duration", elapsed, CloneTags(tags))
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

// CloneTags returns a shallow copy so sinks may retain the map.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
