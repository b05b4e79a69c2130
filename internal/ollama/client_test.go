package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestVersion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/version" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"version": "0.5.1"})
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	v, err := c.Version(context.Background())
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if v != "0.5.1" {
		t.Fatalf("version = %q", v)
	}
}

func TestVersionDaemonDown(t *testing.T) {
	c := New("http://127.0.0.1:1", 100*time.Millisecond)
	if _, err := c.Version(context.Background()); err == nil {
		t.Fatalf("expected connection error")
	}
}

func TestPullStreamsProgress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/pull" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name != "llama3.1:8b" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		enc := json.NewEncoder(w)
		_ = enc.Encode(PullProgress{Status: "pulling manifest"})
		_ = enc.Encode(PullProgress{Status: "downloading", Digest: "sha256:abc", Total: 100, Completed: 50})
		_ = enc.Encode(PullProgress{Status: "success"})
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	var seen []string
	err := c.Pull(context.Background(), "llama3.1:8b", func(p PullProgress) {
		seen = append(seen, p.Status)
	})
	if err != nil {
		t.Fatalf("pull: %v", err)
	}
	if len(seen) != 3 || seen[2] != "success" {
		t.Fatalf("progress = %v", seen)
	}
}

func TestPullErrorLineFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		enc := json.NewEncoder(w)
		_ = enc.Encode(PullProgress{Status: "pulling manifest"})
		_ = enc.Encode(PullProgress{Error: "pull model manifest: file does not exist"})
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	err := c.Pull(context.Background(), "nope:latest", nil)
	if err == nil || !strings.Contains(err.Error(), "file does not exist") {
		t.Fatalf("expected stream error, got %v", err)
	}
}

func TestPullHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	if err := c.Pull(context.Background(), "m", nil); err == nil {
		t.Fatalf("expected http error")
	}
}
