// Package webhook delivers signed job-completion callbacks with retry on
// transient failures and a circuit breaker per destination host.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/benidevo/matchcore/internal/common/logger"
	"github.com/benidevo/matchcore/internal/matchcore/matcherr"
	"github.com/benidevo/matchcore/internal/matchcore/resilience"
)

// receiverTimeout is how long a webhook receiver has to respond.
const receiverTimeout = 10 * time.Second

// maxAttempts bounds delivery tries; 5xx and network errors retry, 4xx is
// terminal.
const maxAttempts = 5

// ErrorBody is the error half of a failure notification.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Payload is the JSON body POSTed to webhook receivers.
type Payload struct {
	JobID       string          `json:"jobId"`
	Status      string          `json:"status"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       *ErrorBody      `json:"error,omitempty"`
	CompletedAt time.Time       `json:"completedAt"`
	Timestamp   int64           `json:"timestamp"`
}

// Sign computes the hex-encoded HMAC-SHA256 of body under secret, exactly as
// carried in X-Webhook-Signature.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature matches body under secret.
func Verify(secret string, body []byte, signature string) bool {
	return hmac.Equal([]byte(Sign(secret, body)), []byte(signature))
}

// Dispatcher posts signed notifications. Safe for concurrent use.
type Dispatcher struct {
	client  *http.Client
	retry   resilience.RetryPolicy
	circuit circuitSettings

	mu       sync.Mutex
	breakers map[string]*resilience.CircuitBreaker

	log zerolog.Logger
}

// circuitSettings holds the per-host breaker tuning.
type circuitSettings struct {
	threshold       int
	timeout         time.Duration
	successesNeeded int
}

// NewDispatcher builds a Dispatcher with the supplied retry policy and
// per-host breaker tuning.
func NewDispatcher(retry resilience.RetryPolicy, breakerThreshold int, breakerTimeout time.Duration, breakerSuccesses int) *Dispatcher {
	return &Dispatcher{
		client: &http.Client{Timeout: receiverTimeout},
		retry:  retry,
		circuit: circuitSettings{
			threshold:       breakerThreshold,
			timeout:         breakerTimeout,
			successesNeeded: breakerSuccesses,
		},
		breakers: make(map[string]*resilience.CircuitBreaker),
		log:      logger.GetLogger("matchcore.webhook"),
	}
}

// breakerFor returns (creating if needed) the destination host's breaker.
func (d *Dispatcher) breakerFor(host string) *resilience.CircuitBreaker {
	d.mu.Lock()
	defer d.mu.Unlock()

	if b, ok := d.breakers[host]; ok {
		return b
	}
	b := resilience.NewCircuitBreaker("webhook:"+host, d.circuit.threshold, d.circuit.timeout, d.circuit.successesNeeded)
	d.breakers[host] = b
	return b
}

// Dispatch signs and delivers payload to webhookURL. Transient failures are
// retried with backoff up to maxAttempts; exhaustion is logged and swallowed
// (the returned error is for callers that want to count drops).
func (d *Dispatcher) Dispatch(ctx context.Context, webhookURL, secret string, payload Payload) error {
	if webhookURL == "" {
		return nil
	}

	parsed, err := url.Parse(webhookURL)
	if err != nil || parsed.Host == "" {
		return matcherr.Validation("invalid webhook URL %q", webhookURL)
	}

	if payload.Timestamp == 0 {
		payload.Timestamp = time.Now().Unix()
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return matcherr.Internal(fmt.Errorf("marshal webhook payload: %w", err))
	}

	signature := Sign(secret, body)
	breaker := d.breakerFor(parsed.Host)

	retryPolicy := d.retry
	retryPolicy.MaxRetries = maxAttempts - 1

	_, err = resilience.RetryWithBackoff(ctx, retryPolicy, matcherr.IsRetryable, func(ctx context.Context) (struct{}, error) {
		return resilience.Execute(breaker, func() (struct{}, error) {
			return struct{}{}, d.post(ctx, webhookURL, body, signature, payload.Timestamp)
		})
	})
	if err != nil {
		d.log.Error().Err(err).Str("host", parsed.Host).Str("job_id", payload.JobID).
			Msg("webhook delivery dropped after retries")
		return err
	}
	return nil
}

func (d *Dispatcher) post(ctx context.Context, webhookURL string, body []byte, signature string, timestamp int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return matcherr.Internal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Signature", signature)
	req.Header.Set("X-Webhook-Timestamp", strconv.FormatInt(timestamp, 10))

	resp, err := d.client.Do(req)
	if err != nil {
		return matcherr.Transient(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		// Terminal: the receiver rejected the payload, retrying won't help.
		return matcherr.Validation("webhook receiver returned %d", resp.StatusCode)
	default:
		return matcherr.Transient(fmt.Errorf("webhook receiver returned %d", resp.StatusCode))
	}
}
