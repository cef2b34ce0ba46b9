package agentclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spuff-dev/spuff/internal/schema"
)

func TestClientRejectsMissingToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Spuff-Token") != "expected" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(schema.ErrorResponse{Error: "unauthorized"})
			return
		}
		_ = json.NewEncoder(w).Encode(schema.StatusResponse{Hostname: "devbox"})
	}))
	defer srv.Close()

	client := newClient(srv.URL, "wrong-token")
	if _, err := client.Status(context.Background()); err == nil {
		t.Fatal("expected an error for a mismatched token")
	}

	client = newClient(srv.URL, "expected")
	resp, err := client.Status(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Hostname != "devbox" {
		t.Fatalf("got hostname %q, want %q", resp.Hostname, "devbox")
	}
}

func TestClientSurfacesServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(schema.ErrorResponse{Error: "boom"})
	}))
	defer srv.Close()

	client := newClient(srv.URL, "token")
	_, err := client.Metrics(context.Background())
	if err == nil {
		t.Fatal("expected an error")
	}
}

func TestTriggerSetupAcceptsStatusAccepted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(schema.SetupResponse{Status: "started"})
	}))
	defer srv.Close()

	client := newClient(srv.URL, "token")
	resp, err := client.TriggerSetup(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Status != "started" {
		t.Fatalf("got status %q, want %q", resp.Status, "started")
	}
}

func TestFreePortReturnsNonZeroPorts(t *testing.T) {
	a, err := freePort()
	if err != nil {
		t.Fatalf("freePort: %v", err)
	}
	b, err := freePort()
	if err != nil {
		t.Fatalf("freePort: %v", err)
	}
	if a == 0 || b == 0 {
		t.Fatal("freePort returned port 0")
	}
}
