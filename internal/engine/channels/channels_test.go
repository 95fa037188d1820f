package channels

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"beacon/internal/engine/webhooks"
	"beacon/internal/platform/config"
	"beacon/internal/platform/models"
)

func testPoster() Poster {
	return webhooks.NewExecutor(config.WebhooksConfig{Timeout: 2 * time.Second})
}

func testNotification() Notification {
	return Notification{
		Event:     "issue.created",
		Timestamp: "2026-01-01T00:00:00Z",
		Data:      map[string]interface{}{"title": "disk full"},
	}
}

type recorder struct {
	mu   sync.Mutex
	body []byte
}

func (r *recorder) Body() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.body
}

func recordingServer(t *testing.T, status int, rec *recorder) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		rec.mu.Lock()
		rec.body = body
		rec.mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDefaultRegistry_CoversEveryChannel(t *testing.T) {
	reg := NewDefaultRegistry(testPoster(), config.ChannelsConfig{}, zerolog.Nop())
	if missing := reg.Missing(); len(missing) != 0 {
		t.Errorf("channels without adapter: %v", missing)
	}

	required := map[models.Channel]string{
		models.ChannelEmail:     "to",
		models.ChannelSlack:     "webhook_url",
		models.ChannelTeams:     "webhook_url",
		models.ChannelPagerDuty: "routing_key",
	}
	for channel, key := range required {
		keys, ok := reg.RequiredConfig(channel)
		if !ok || len(keys) != 1 || keys[0] != key {
			t.Errorf("RequiredConfig(%s) = %v, %v; want [%s]", channel, keys, ok, key)
		}
	}
}

func TestRegistry_UnsupportedChannel(t *testing.T) {
	reg := NewRegistry()
	res := reg.Send(context.Background(), models.Channel("fax"), nil, testNotification())
	if res.Success || !strings.Contains(res.Detail, "unsupported") {
		t.Errorf("Send() = %+v", res)
	}
}

func TestEmailAdapter_IsSimulated(t *testing.T) {
	res := NewEmailAdapter(zerolog.Nop()).Send(context.Background(), map[string]string{"to": "ops@example.test"}, testNotification())
	if !res.Success || !res.Simulated {
		t.Errorf("Send() = %+v, want simulated success", res)
	}
	if res.Channel != models.ChannelEmail {
		t.Errorf("Channel = %s", res.Channel)
	}
}

func TestChatAdapter(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		success bool
	}{
		{"accepted with 200", http.StatusOK, true},
		{"204 is not 200", http.StatusNoContent, false},
		{"server error", http.StatusInternalServerError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			srv := recordingServer(t, tt.status, rec)

			res := NewSlackAdapter(testPoster()).Send(context.Background(), map[string]string{"webhook_url": srv.URL}, testNotification())
			if res.Success != tt.success {
				t.Errorf("Success = %v, want %v (%+v)", res.Success, tt.success, res)
			}
			if res.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", res.StatusCode, tt.status)
			}

			var msg map[string]string
			if err := json.Unmarshal(rec.Body(), &msg); err != nil {
				t.Fatalf("body is not JSON: %s", rec.Body())
			}
			var rendered Notification
			if err := json.Unmarshal([]byte(msg["text"]), &rendered); err != nil {
				t.Fatalf("text is not the JSON payload: %q", msg["text"])
			}
			if rendered.Event != "issue.created" {
				t.Errorf("rendered event = %q", rendered.Event)
			}
			if !strings.Contains(msg["text"], "\n  ") {
				t.Error("text should be pretty-printed")
			}
		})
	}
}

func TestChatAdapter_MissingURL(t *testing.T) {
	res := NewTeamsAdapter(testPoster()).Send(context.Background(), map[string]string{}, testNotification())
	if res.Success || res.Channel != models.ChannelTeams {
		t.Errorf("Send() = %+v", res)
	}
}

func TestPagerDutyAdapter(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		success bool
	}{
		{"accepted with 202", http.StatusAccepted, true},
		{"200 is not 202", http.StatusOK, false},
		{"bad request", http.StatusBadRequest, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			srv := recordingServer(t, tt.status, rec)

			adapter := NewPagerDutyAdapter(testPoster(), srv.URL, "beacon-test")
			res := adapter.Send(context.Background(), map[string]string{"routing_key": "rk_1", "severity": "critical"}, testNotification())
			if res.Success != tt.success {
				t.Errorf("Success = %v, want %v (%+v)", res.Success, tt.success, res)
			}

			var event struct {
				RoutingKey  string `json:"routing_key"`
				EventAction string `json:"event_action"`
				Payload     struct {
					Summary       string                 `json:"summary"`
					Source        string                 `json:"source"`
					Severity      string                 `json:"severity"`
					CustomDetails map[string]interface{} `json:"custom_details"`
				} `json:"payload"`
			}
			if err := json.Unmarshal(rec.Body(), &event); err != nil {
				t.Fatalf("body is not JSON: %s", rec.Body())
			}
			if event.RoutingKey != "rk_1" || event.EventAction != "trigger" {
				t.Errorf("event = %+v", event)
			}
			if event.Payload.Summary != "[issue.created] disk full" {
				t.Errorf("Summary = %q", event.Payload.Summary)
			}
			if event.Payload.Source != "beacon-test" || event.Payload.Severity != "critical" {
				t.Errorf("Source/Severity = %q/%q", event.Payload.Source, event.Payload.Severity)
			}
			if event.Payload.CustomDetails["event"] != "issue.created" {
				t.Errorf("CustomDetails = %v", event.Payload.CustomDetails)
			}
		})
	}
}

func TestPagerDutyAdapter_DefaultsSeverity(t *testing.T) {
	rec := &recorder{}
	srv := recordingServer(t, http.StatusAccepted, rec)

	NewPagerDutyAdapter(testPoster(), srv.URL, "").Send(context.Background(), map[string]string{"routing_key": "rk", "severity": "catastrophic"}, Notification{Event: "x"})

	body := rec.Body()
	if !strings.Contains(string(body), `"severity":"info"`) || !strings.Contains(string(body), `"source":"beacon"`) {
		t.Errorf("body = %s", body)
	}
	if !strings.Contains(string(body), `"summary":"Beacon event: x"`) {
		t.Errorf("summary fallback missing: %s", body)
	}
}

func TestPagerDutyAdapter_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	res := NewPagerDutyAdapter(testPoster(), url, "").Send(context.Background(), map[string]string{"routing_key": "rk"}, testNotification())
	if res.Success || res.Detail == "" {
		t.Errorf("Send() = %+v, want failure with detail", res)
	}
}
