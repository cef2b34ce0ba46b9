package digitalocean

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spuff-dev/spuff/internal/provider"
	"github.com/spuff-dev/spuff/internal/schema"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	timeouts := schema.DefaultTimeouts()
	timeouts.PollInterval = 10 * time.Millisecond
	timeouts.InstanceReady = 2 * time.Second

	p, err := New("test-token", timeouts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	dp := p.(*Provider)
	dp.baseURL = srv.URL
	return dp
}

func writeDroplet(w http.ResponseWriter, status, ip string) {
	body := map[string]any{
		"droplet": map[string]any{
			"id":         123,
			"status":     status,
			"created_at": "2024-01-01T00:00:00Z",
			"networks": map[string]any{
				"v4": []map[string]any{{"ip_address": ip, "type": "public"}},
			},
		},
	}
	_ = json.NewEncoder(w).Encode(body)
}

func TestDoClassifiesUnauthorized(t *testing.T) {
	var requests atomic.Int64
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, _, err := p.GetInstance(context.Background(), "123")
	var pe *provider.Error
	if !errors.As(err, &pe) || pe.Type != provider.ErrAuthentication {
		t.Fatalf("expected ErrAuthentication, got %v", err)
	}
	if n := requests.Load(); n != 1 {
		t.Fatalf("authentication failures must not be retried, got %d requests", n)
	}
}

func TestNotFoundMapsToBooleanAndIdempotentDestroy(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, ok, err := p.GetInstance(context.Background(), "gone")
	if err != nil {
		t.Fatalf("GetInstance must map 404 to ok=false, got error %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for a 404")
	}

	if err := p.DestroyInstance(context.Background(), "gone"); err != nil {
		t.Fatalf("DestroyInstance must absorb 404 as success, got %v", err)
	}
	if err := p.DeleteSnapshot(context.Background(), "gone"); err != nil {
		t.Fatalf("DeleteSnapshot must absorb 404 as success, got %v", err)
	}
}

func TestDoHonorsRateLimitRetryAfter(t *testing.T) {
	var requests atomic.Int64
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) <= 2 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		writeDroplet(w, "active", "203.0.113.5")
	})

	start := time.Now()
	inst, ok, err := p.GetInstance(context.Background(), "123")
	elapsed := time.Since(start)

	if err != nil || !ok {
		t.Fatalf("expected success after two 429s, got ok=%v err=%v", ok, err)
	}
	if inst.ID != "123" {
		t.Fatalf("got instance id %q", inst.ID)
	}
	if n := requests.Load(); n != 3 {
		t.Fatalf("expected exactly 3 requests, got %d", n)
	}
	if elapsed < 2*time.Second {
		t.Fatalf("expected the two Retry-After: 1 hints to be honored, elapsed %v", elapsed)
	}
}

func TestDoRejectsInvalidRequestWithoutRetry(t *testing.T) {
	var requests atomic.Int64
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(422)
	})

	_, err := p.CreateInstance(context.Background(), schema.InstanceRequest{Name: "spuff-test"})
	var pe *provider.Error
	if !errors.As(err, &pe) || pe.Type != provider.ErrInvalidConfig {
		t.Fatalf("expected ErrInvalidConfig for a 422, got %v", err)
	}
	if n := requests.Load(); n != 1 {
		t.Fatalf("invalid-config failures must not be retried, got %d requests", n)
	}
}

func TestWaitReadyPollsUntilActiveWithIP(t *testing.T) {
	var requests atomic.Int64
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) <= 2 {
			writeDroplet(w, "new", "")
			return
		}
		writeDroplet(w, "active", "203.0.113.5")
	})

	inst, err := p.WaitReady(context.Background(), "123")
	if err != nil {
		t.Fatalf("WaitReady() error = %v", err)
	}
	if !inst.Ready() {
		t.Fatalf("WaitReady returned a non-ready instance: %+v", inst)
	}
	if n := requests.Load(); n < 3 {
		t.Fatalf("expected at least 3 polls before readiness, got %d", n)
	}
}

func TestCreateInstanceSendsUserDataAndAuth(t *testing.T) {
	var gotAuth string
	var gotBody createDropletRequest
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/droplets" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		writeDroplet(w, "new", "")
	})

	req := schema.InstanceRequest{
		Name:     "spuff-abcd1234",
		Region:   "nyc3",
		Size:     "s-2vcpu-4gb",
		Image:    schema.UbuntuImage("22.04"),
		UserData: "#cloud-config\n",
	}
	inst, err := p.CreateInstance(context.Background(), req)
	if err != nil {
		t.Fatalf("CreateInstance() error = %v", err)
	}

	if gotAuth != "Bearer test-token" {
		t.Errorf("Authorization header = %q", gotAuth)
	}
	if gotBody.Name != req.Name || gotBody.UserData != req.UserData {
		t.Errorf("request body did not round-trip: %+v", gotBody)
	}
	if gotBody.Image != "ubuntu-22.04-x64" {
		t.Errorf("image slug = %v", gotBody.Image)
	}
	if inst.ID != "123" || inst.Status != schema.StatusNew {
		t.Errorf("parsed instance = %+v", inst)
	}
	if inst.IPAssigned() {
		t.Error("a droplet with no public v4 address must report IP unassigned")
	}
}
