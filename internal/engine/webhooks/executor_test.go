package webhooks

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"beacon/internal/platform/config"
	"beacon/internal/platform/models"
)

type capture struct {
	mu      sync.Mutex
	headers http.Header
	body    []byte
}

func (c *capture) handler(status int, respBody string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		c.mu.Lock()
		c.headers = r.Header.Clone()
		c.body = body
		c.mu.Unlock()
		w.WriteHeader(status)
		io.WriteString(w, respBody)
	}
}

func (c *capture) Headers() http.Header {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.headers
}

func (c *capture) Body() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.body
}

func newTestExecutor(timeout time.Duration) *Executor {
	return NewExecutor(config.WebhooksConfig{Product: "Beacon", Version: "1.0", Timeout: timeout})
}

func TestExecutor_DeliverSignsExactBody(t *testing.T) {
	c := &capture{}
	srv := httptest.NewServer(c.handler(http.StatusOK, "ok"))
	defer srv.Close()

	exec := newTestExecutor(5 * time.Second)
	webhook := &models.Webhook{
		URL:     srv.URL,
		Secret:  "s3cr3t",
		Headers: map[string]string{"X-Team": "ops", "X-Beacon-Signature": "forged", "Content-Type": "text/plain"},
	}
	payload := []byte(`{"event":"issue.created","timestamp":"2026-01-01T00:00:00Z","data":{"title":"disk full"}}`)

	outcome := exec.Deliver(context.Background(), webhook, Delivery{ID: "dlv_1", EventType: "issue.created", Payload: payload})

	if !outcome.Success || outcome.StatusCode != http.StatusOK || outcome.Body != "ok" {
		t.Fatalf("outcome = %+v", outcome)
	}
	if string(c.Body()) != string(payload) {
		t.Errorf("body = %s, want %s", c.Body(), payload)
	}
	if got := c.Headers().Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := c.Headers().Get("User-Agent"); got != "Beacon-Webhook/1.0" {
		t.Errorf("User-Agent = %q", got)
	}
	if got := c.Headers().Get("X-Team"); got != "ops" {
		t.Errorf("custom header X-Team = %q", got)
	}
	if got := c.Headers().Get("X-Beacon-Event"); got != "issue.created" {
		t.Errorf("X-Beacon-Event = %q", got)
	}
	if got := c.Headers().Get("X-Beacon-Delivery"); got != "dlv_1" {
		t.Errorf("X-Beacon-Delivery = %q", got)
	}
	sig := c.Headers().Get("X-Beacon-Signature")
	if sig != Sign("s3cr3t", payload) {
		t.Errorf("signature = %q, want %q", sig, Sign("s3cr3t", payload))
	}
	if !Verify("s3cr3t", c.Body(), sig) {
		t.Error("receiver-side verification failed")
	}
}

func TestExecutor_NoSecretNoSignature(t *testing.T) {
	c := &capture{}
	srv := httptest.NewServer(c.handler(http.StatusNoContent, ""))
	defer srv.Close()

	outcome := newTestExecutor(time.Second).Deliver(context.Background(), &models.Webhook{URL: srv.URL}, Delivery{EventType: "a", Payload: []byte(`{}`)})
	if !outcome.Success || outcome.StatusCode != http.StatusNoContent {
		t.Fatalf("outcome = %+v", outcome)
	}
	if _, ok := c.Headers()["X-Beacon-Signature"]; ok {
		t.Error("signature header must be absent without a secret")
	}
}

func TestExecutor_ReservedHeadersIgnoreProductCasing(t *testing.T) {
	c := &capture{}
	srv := httptest.NewServer(c.handler(http.StatusOK, ""))
	defer srv.Close()

	exec := NewExecutor(config.WebhooksConfig{Product: "ACME", Timeout: time.Second})
	if got := exec.SignatureHeader(); got != "X-Acme-Signature" {
		t.Fatalf("SignatureHeader() = %q", got)
	}

	webhook := &models.Webhook{
		URL:    srv.URL,
		Secret: "s",
		Headers: map[string]string{
			"X-Acme-Signature": "forged",
			"x-acme-event":     "forged",
			"X-ACME-Delivery":  "forged",
			"X-Team":           "ops",
		},
	}
	payload := []byte(`{"event":"a"}`)

	// header map iteration order varies, so repeat to catch an override
	for i := 0; i < 25; i++ {
		exec.Deliver(context.Background(), webhook, Delivery{ID: "dlv_1", EventType: "a", Payload: payload})

		h := c.Headers()
		if got := h.Values("X-Acme-Signature"); len(got) != 1 || got[0] != Sign("s", payload) {
			t.Fatalf("attempt %d: signature = %v", i, got)
		}
		if got := h.Get("X-Acme-Event"); got != "a" {
			t.Fatalf("attempt %d: event header = %q", i, got)
		}
		if got := h.Get("X-Acme-Delivery"); got != "dlv_1" {
			t.Fatalf("attempt %d: delivery header = %q", i, got)
		}
		if got := h.Get("X-Team"); got != "ops" {
			t.Fatalf("attempt %d: X-Team = %q", i, got)
		}
	}
}

func TestExecutor_StatusClassification(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{200, true},
		{201, true},
		{299, true},
		{301, false},
		{400, false},
		{500, false},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			outcome := newTestExecutor(time.Second).Post(context.Background(), srv.URL, []byte(`{}`), nil)
			if outcome.Success != tt.want || outcome.StatusCode != tt.status {
				t.Errorf("status %d: outcome = %+v, want success=%v", tt.status, outcome, tt.want)
			}
		})
	}
}

func TestExecutor_TruncatesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, strings.Repeat("x", 5000))
	}))
	defer srv.Close()

	outcome := newTestExecutor(time.Second).Post(context.Background(), srv.URL, []byte(`{}`), nil)
	if outcome.Success {
		t.Error("500 must not be a success")
	}
	if len(outcome.Body) != 1000 {
		t.Errorf("len(Body) = %d, want 1000", len(outcome.Body))
	}
}

func TestExecutor_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	outcome := newTestExecutor(time.Second).Post(context.Background(), url, []byte(`{}`), nil)
	if outcome.Success {
		t.Fatal("expected failure against closed listener")
	}
	if !strings.Contains(outcome.Error, "connection refused") {
		t.Errorf("Error = %q, want connection refused", outcome.Error)
	}
	if len(outcome.Error) > 500 {
		t.Errorf("len(Error) = %d, want <= 500", len(outcome.Error))
	}
}

func TestExecutor_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	outcome := newTestExecutor(50*time.Millisecond).Post(context.Background(), srv.URL, []byte(`{}`), nil)
	if outcome.Success || outcome.Error == "" {
		t.Errorf("outcome = %+v, want timeout failure", outcome)
	}
}

func TestExecutor_CallerCancelDoesNotAbortRequest(t *testing.T) {
	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	outcome := newTestExecutor(5*time.Second).Post(ctx, srv.URL, []byte(`{}`), nil)
	if !outcome.Success {
		t.Errorf("outcome = %+v, want the request to finish despite caller cancel", outcome)
	}
}

func TestExecutor_InvalidURL(t *testing.T) {
	outcome := newTestExecutor(time.Second).Post(context.Background(), "://bad", []byte(`{}`), nil)
	if outcome.Success || outcome.Error == "" {
		t.Errorf("outcome = %+v, want error", outcome)
	}
}

func TestTruncate_RuneBoundary(t *testing.T) {
	s := strings.Repeat("é", 10) // 2 bytes each
	got := truncate(s, 5)
	if got != "éé" {
		t.Errorf("truncate() = %q, want %q", got, "éé")
	}
}

func TestNewEnvelope(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))
	body, err := NewEnvelope("issue.created", map[string]string{"title": "disk full"}, at).Marshal()
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `{"event":"issue.created","timestamp":"2026-03-01T11:00:00Z","data":{"title":"disk full"}}`
	if string(body) != want {
		t.Errorf("envelope = %s, want %s", body, want)
	}
}
