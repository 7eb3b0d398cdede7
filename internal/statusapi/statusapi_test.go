package statusapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/baccuslab/blds/internal/coordinator"
)

func testCoordinator(t *testing.T) *coordinator.Coordinator {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := coordinator.Config{DefaultSaveDirectory: t.TempDir()}
	coord := coordinator.New(cfg, logger)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go coord.Run(ctx)
	return coord
}

func TestStatusGET(t *testing.T) {
	coord := testCoordinator(t)
	srv := httptest.NewServer(NewHandlers(coord).NewServeMux())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/status")
	if err != nil {
		t.Fatalf("GET /status: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := body["source-exists"]; !ok {
		t.Errorf("body missing source-exists field: %v", body)
	}
}

func TestStatusHEAD(t *testing.T) {
	coord := testCoordinator(t)
	srv := httptest.NewServer(NewHandlers(coord).NewServeMux())
	defer srv.Close()

	resp, err := http.Head(srv.URL + "/status")
	if err != nil {
		t.Fatalf("HEAD /status: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if len(body) != 0 {
		t.Errorf("HEAD response had a body: %q", body)
	}
}

func TestStatusMethodNotAllowed(t *testing.T) {
	coord := testCoordinator(t)
	srv := httptest.NewServer(NewHandlers(coord).NewServeMux())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/status", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /status: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", resp.StatusCode)
	}
}

func TestSourceNotFoundWhenAbsent(t *testing.T) {
	coord := testCoordinator(t)
	srv := httptest.NewServer(NewHandlers(coord).NewServeMux())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/source")
	if err != nil {
		t.Fatalf("GET /source: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestUnknownPath404(t *testing.T) {
	coord := testCoordinator(t)
	srv := httptest.NewServer(NewHandlers(coord).NewServeMux())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/nope")
	if err != nil {
		t.Fatalf("GET /nope: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}
