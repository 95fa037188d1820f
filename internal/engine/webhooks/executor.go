package webhooks

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"beacon/internal/platform/config"
	"beacon/internal/platform/models"
)

const (
	DefaultTimeout = 30 * time.Second

	maxResponseBody = 1000
	maxErrorMessage = 500
)

// Executor performs single outbound HTTP calls and normalizes their result.
// It holds no per-call state and is safe for concurrent use.
type Executor struct {
	client          *http.Client
	timeout         time.Duration
	userAgent       string
	headerPrefix    string
	signatureHeader string
}

func NewExecutor(cfg config.WebhooksConfig) *Executor {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	product := cfg.Product
	if product == "" {
		product = "Beacon"
	}
	version := cfg.Version
	if version == "" {
		version = "1.0"
	}

	// canonical form so custom header names compare against it after
	// http.CanonicalHeaderKey whatever the configured product casing
	prefix := http.CanonicalHeaderKey("X-" + product + "-")
	return &Executor{
		client:          &http.Client{Timeout: timeout},
		timeout:         timeout,
		userAgent:       fmt.Sprintf("%s-Webhook/%s", product, version),
		headerPrefix:    prefix,
		signatureHeader: prefix + "Signature",
	}
}

func (e *Executor) UserAgent() string {
	return e.userAgent
}

func (e *Executor) SignatureHeader() string {
	return e.signatureHeader
}

func (e *Executor) EventHeader() string {
	return e.headerPrefix + "Event"
}

func (e *Executor) DeliveryHeader() string {
	return e.headerPrefix + "Delivery"
}

// Delivery identifies one ledger row and the exact bytes stored for it.
type Delivery struct {
	ID        string
	EventType string
	Payload   []byte
}

// Deliver sends d.Payload to the webhook. Custom headers are merged first so
// they can never replace the event, delivery or signature headers.
func (e *Executor) Deliver(ctx context.Context, webhook *models.Webhook, d Delivery) models.DeliveryOutcome {
	headers := make(map[string]string, len(webhook.Headers)+3)
	for name, value := range webhook.Headers {
		if strings.HasPrefix(http.CanonicalHeaderKey(name), e.headerPrefix) {
			continue
		}
		headers[name] = value
	}

	headers[e.EventHeader()] = d.EventType
	if d.ID != "" {
		headers[e.DeliveryHeader()] = d.ID
	}
	if webhook.Secret != "" {
		headers[e.signatureHeader] = Sign(webhook.Secret, d.Payload)
	}

	return e.Post(ctx, webhook.URL, d.Payload, headers)
}

// Post sends body as JSON to url. It never returns an error: transport
// failures come back as an unsuccessful outcome. The call runs on a context
// detached from ctx's cancellation so an abandoned caller does not abort a
// request mid-write; the executor timeout still bounds it.
func (e *Executor) Post(ctx context.Context, url string, body []byte, headers map[string]string) models.DeliveryOutcome {
	reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
	defer cancel()

	start := time.Now()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return models.DeliveryOutcome{Error: truncate(err.Error(), maxErrorMessage)}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", e.userAgent)
	for name, value := range headers {
		switch http.CanonicalHeaderKey(name) {
		case "Content-Type", "User-Agent":
			continue
		}
		req.Header.Set(name, value)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return models.DeliveryOutcome{
			Error:      truncate(err.Error(), maxErrorMessage),
			DurationMs: time.Since(start).Milliseconds(),
		}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody+utf8.UTFMax))

	return models.DeliveryOutcome{
		Success:    resp.StatusCode >= 200 && resp.StatusCode < 300,
		StatusCode: resp.StatusCode,
		Body:       truncate(string(respBody), maxResponseBody),
		DurationMs: time.Since(start).Milliseconds(),
	}
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
