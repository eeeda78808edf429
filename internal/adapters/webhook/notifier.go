// Package webhook delivers signed job-completion callbacks.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/target/eligibility-api/internal/core"
	"github.com/target/eligibility-api/internal/domain/model"
	"github.com/target/eligibility-api/internal/observability/metrics"
	"github.com/target/eligibility-api/internal/observability/statsd"
)

// SignatureHeader carries the hex HMAC-SHA256 of the request body.
const SignatureHeader = "x-signature"

const defaultTimeout = 10 * time.Second

// Payload is the exact body POSTed to the webhook URL.
type Payload struct {
	JobID  string          `json:"job_id"`
	Status model.JobStatus `json:"status"`
	Total  int             `json:"total"`
	Done   int             `json:"done"`
}

// Options configures the Notifier.
type Options struct {
	// SigningKey enables the signature header. Empty sends unsigned callbacks.
	SigningKey string
	Timeout    time.Duration
	Client     *http.Client
	Logger     *slog.Logger
	Metrics    statsd.Sink
}

// Notifier POSTs one callback per completed job. Delivery is best effort:
// no retry, and failures are only logged.
type Notifier struct {
	key     []byte
	timeout time.Duration
	client  *http.Client
	logger  *slog.Logger
	metrics statsd.Sink
}

var _ core.CompletionNotifier = (*Notifier)(nil)

// NewNotifier constructs a Notifier.
func NewNotifier(opts Options) *Notifier {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	n := &Notifier{
		timeout: timeout,
		client:  client,
		logger:  logger.With("component", "webhook_notifier"),
		metrics: opts.Metrics,
	}
	if opts.SigningKey != "" {
		n.key = []byte(opts.SigningKey)
	}
	return n
}

// Sign returns the hex HMAC-SHA256 of body under key.
func Sign(key, body []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Notify delivers the completion callback for job. It is a no-op without a webhook URL.
func (n *Notifier) Notify(ctx context.Context, job *model.Job) {
	if !job.HasWebhook() {
		return
	}

	start := time.Now()
	err := n.deliver(ctx, job)

	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
		n.logger.WarnContext(ctx, "webhook delivery failed", "job_id", job.ID, "error", err)
	} else {
		n.logger.InfoContext(ctx, "webhook delivered", "job_id", job.ID, "elapsed", time.Since(start))
	}
	metrics.EmitItemLifecycle(n.metrics, metrics.ItemMetric{
		Transition: metrics.TransitionNotify,
		Result:     result,
		Duration:   time.Since(start),
		Err:        err,
	})
}

func (n *Notifier) deliver(ctx context.Context, job *model.Job) error {
	body, err := json.Marshal(Payload{
		JobID:  job.ID,
		Status: job.Status,
		Total:  job.Total,
		Done:   job.Done,
	})
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, *job.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if n.key != nil {
		req.Header.Set(SignatureHeader, Sign(n.key, body))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
