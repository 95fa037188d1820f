package alerting

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"beacon/internal/engine/webhooks"
	"beacon/internal/platform/config"
	"beacon/internal/platform/models"
)

type alertReceiver struct {
	mu      sync.Mutex
	paths   []string
	batches [][]Alert
}

func (r *alertReceiver) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	body, _ := io.ReadAll(req.Body)
	var batch []Alert
	if err := json.Unmarshal(body, &batch); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	r.mu.Lock()
	r.paths = append(r.paths, req.URL.Path)
	r.batches = append(r.batches, batch)
	r.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (r *alertReceiver) Batches() [][]Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]Alert(nil), r.batches...)
}

func newTestBridge(url string) *Bridge {
	poster := webhooks.NewExecutor(config.WebhooksConfig{Timeout: 2 * time.Second})
	return NewBridge(poster, config.AlertingConfig{ReceiverURL: url}, nil, zerolog.Nop())
}

func testIssue() *models.Issue {
	return &models.Issue{
		ID:          "42",
		Title:       "Disk full on db-1",
		Description: "/var is at 100%",
		Priority:    "high",
		AssignedTo:  "sam",
		Entities:    []string{"db-1", "db-2"},
		URL:         "https://beacon.example.test/issues/42",
		OpenedAt:    1700000000,
	}
}

func TestBridge_FireResolveCorrelate(t *testing.T) {
	rec := &alertReceiver{}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	b := newTestBridge(srv.URL + "/")
	org := &models.Organization{ID: "7"}

	if !b.Fire(context.Background(), testIssue(), org) {
		t.Fatal("Fire() = false")
	}
	if !b.Resolve(context.Background(), testIssue(), org) {
		t.Fatal("Resolve() = false")
	}

	batches := rec.Batches()
	if len(batches) != 2 || len(batches[0]) != 1 || len(batches[1]) != 1 {
		t.Fatalf("batches = %+v", batches)
	}
	for _, p := range rec.paths {
		if p != "/api/v2/alerts" {
			t.Errorf("path = %s", p)
		}
	}

	fired, resolved := batches[0][0], batches[1][0]
	for _, key := range []string{"alertname", "issue_id", "organization_id", "component"} {
		if fired.Labels[key] != resolved.Labels[key] {
			t.Errorf("label %s: fire %q, resolve %q", key, fired.Labels[key], resolved.Labels[key])
		}
	}
	if fired.Labels["issue_id"] != "42" || fired.Labels["organization_id"] != "7" || fired.Labels["component"] != "incident" {
		t.Errorf("labels = %v", fired.Labels)
	}
	if fired.EndsAt != nil {
		t.Error("fire must not set endsAt")
	}
	if resolved.EndsAt == nil {
		t.Error("resolve must set endsAt")
	}
	if !fired.StartsAt.Equal(time.Unix(1700000000, 0)) {
		t.Errorf("startsAt = %v", fired.StartsAt)
	}
	if fired.GeneratorURL != testIssue().URL {
		t.Errorf("generatorURL = %s", fired.GeneratorURL)
	}
	if fired.Annotations["entities"] != "db-1, db-2" || fired.Annotations["summary"] != "Disk full on db-1" {
		t.Errorf("annotations = %v", fired.Annotations)
	}
}

func TestBridge_LabelSetsIdentical(t *testing.T) {
	b := newTestBridge("http://alertmanager.test")
	org := &models.Organization{ID: "7"}
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	b.now = func() time.Time { return fixed }

	fired := b.alert(testIssue(), org, nil)
	resolved := b.alert(testIssue(), org, &fixed)

	if len(fired.Labels) != len(resolved.Labels) {
		t.Fatalf("label sets differ: %v vs %v", fired.Labels, resolved.Labels)
	}
	for k, v := range fired.Labels {
		if resolved.Labels[k] != v {
			t.Errorf("label %s differs", k)
		}
	}
}

func TestSeverity(t *testing.T) {
	tests := []struct {
		priority string
		want     string
	}{
		{"low", "warning"},
		{"medium", "warning"},
		{"high", "high"},
		{"critical", "critical"},
		{"CRITICAL", "critical"},
		{"", "warning"},
		{"urgent", "warning"},
	}
	for _, tt := range tests {
		t.Run(tt.priority, func(t *testing.T) {
			if got := Severity(tt.priority); got != tt.want {
				t.Errorf("Severity(%q) = %q, want %q", tt.priority, got, tt.want)
			}
		})
	}
}

func TestBridge_OptionalLabels(t *testing.T) {
	b := newTestBridge("http://alertmanager.test")
	issue := &models.Issue{ID: "1", Title: "t", Priority: "low"}

	a := b.alert(issue, &models.Organization{ID: "1"}, nil)
	if _, ok := a.Labels["assigned_to"]; ok {
		t.Error("assigned_to should be omitted when unassigned")
	}
	if _, ok := a.Annotations["entities"]; ok {
		t.Error("entities should be omitted when empty")
	}
	if a.Labels["severity"] != "warning" {
		t.Errorf("severity = %s", a.Labels["severity"])
	}
}

func TestBridge_NetworkFailureReturnsFalse(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := l.Addr().String()
	l.Close()

	b := newTestBridge("http://" + addr)
	if b.Fire(context.Background(), testIssue(), &models.Organization{ID: "7"}) {
		t.Error("Fire() = true against a dead receiver")
	}
}

func TestBridge_RejectedByReceiver(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	b := newTestBridge(srv.URL)
	if b.Resolve(context.Background(), testIssue(), &models.Organization{ID: "7"}) {
		t.Error("Resolve() = true on HTTP 400")
	}
}

func TestBridge_Disabled(t *testing.T) {
	b := newTestBridge("")
	if b.Enabled() {
		t.Error("bridge without receiver should be disabled")
	}
	if b.Fire(context.Background(), testIssue(), &models.Organization{ID: "7"}) {
		t.Error("disabled bridge reported success")
	}
}
