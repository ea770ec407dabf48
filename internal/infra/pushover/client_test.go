package pushover_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"tuya-switch/internal/domain"
	"tuya-switch/internal/infra/pushover"
)

func sampleChange() domain.StateChange {
	return domain.StateChange{
		DeviceID: "abc",
		Command:  domain.CommandToggle,
		Previous: false,
		State:    true,
		Time:     time.Date(2022, 4, 4, 12, 30, 0, 0, time.UTC),
	}
}

func TestClient_Notify(t *testing.T) {
	var form url.Values

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		form = r.PostForm
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := pushover.NewClientWithURL("app-token", "user-key", server.URL)

	if err := client.Notify(context.Background(), sampleChange()); err != nil {
		t.Fatalf("Notify error: %v", err)
	}

	if got := form.Get("message"); got != "Device abc turned on (toggle)" {
		t.Errorf("message: got %q", got)
	}
	if got := form.Get("token"); got != "app-token" {
		t.Errorf("token: got %q, want app-token", got)
	}
	if got := form.Get("timestamp"); got != "1649075400" {
		t.Errorf("timestamp: got %q, want 1649075400", got)
	}
}

func TestClient_NotifyError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid token", http.StatusBadRequest)
	}))
	defer server.Close()

	client := pushover.NewClientWithURL("bad", "user-key", server.URL)

	if err := client.Notify(context.Background(), sampleChange()); err == nil {
		t.Fatal("expected error for 400 response")
	}
}

func TestClient_NotConfigured(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	client := pushover.NewClientWithURL("", "", server.URL)

	if err := client.Notify(context.Background(), sampleChange()); err != nil {
		t.Fatalf("Notify error: %v", err)
	}
	if called {
		t.Error("request sent without credentials")
	}
}
