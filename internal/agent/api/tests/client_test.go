package tests

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tiomoreno/requiety-sub000/internal/agent/api"
	"github.com/tiomoreno/requiety-sub000/internal/agent/runner"
	serr "github.com/tiomoreno/requiety-sub000/internal/shared/errors"
)

func TestClient_PostJSON_SetsHeaders_AndDecodesResponse(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/x", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected method POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected Content-Type application/json, got %q", ct)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer token-1" {
			t.Errorf("expected Authorization Bearer token-1, got %q", auth)
		}

		var got map[string]any
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if got["a"] != float64(1) { // json numbers decode as float64 into map
			t.Errorf("expected a=1, got %#v", got["a"])
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"ok": true})
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := api.NewClient(srv.URL+"/", "token-1")

	var resp map[string]any
	if err := c.PostJSON(context.Background(), "/x", map[string]any{"a": 1}, &resp); err != nil {
		t.Fatalf("PostJSON returned error: %v", err)
	}
	if resp["ok"] != true {
		t.Fatalf("expected ok=true, got %#v", resp["ok"])
	}
}

func TestClient_WithoutToken_DoesNotSetAuthorization(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "" {
			t.Errorf("expected empty Authorization, got %q", auth)
		}
		if ct := r.Header.Get("Content-Type"); ct != "" {
			t.Errorf("expected no Content-Type without body, got %q", ct)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	if err := api.NewClient(srv.URL, "").Health(context.Background()); err != nil {
		t.Fatalf("Health returned error: %v", err)
	}
}

func TestClient_Non2xx_ParsesErrorBody(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/runner/start", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		io.WriteString(w, `{"error":"collection run already active"}`)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := api.NewClient(srv.URL, "t")
	_, err := c.StartRun(context.Background(), runner.Target{ID: "fld_1", Kind: runner.TargetFolder})
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	if !errors.Is(err, serr.ErrAlreadyActive) {
		t.Fatalf("expected ErrAlreadyActive, got %v", err)
	}

	var apiErr *api.Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *api.Error, got %T", err)
	}
	if apiErr.Message != "collection run already active" {
		t.Fatalf("unexpected message %q", apiErr.Message)
	}
}

func TestClient_Non2xx_PlainBody_And_EmptyBody(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/plain", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid token", http.StatusUnauthorized)
	})
	mux.HandleFunc("/empty", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()
	c := api.NewClient(srv.URL, "t")

	err := c.GetJSON(context.Background(), "/plain", nil)
	if !errors.Is(err, serr.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	var apiErr *api.Error
	if !errors.As(err, &apiErr) || apiErr.Message != "invalid token" {
		t.Fatalf("expected plain text message, got %v", err)
	}

	err = c.GetJSON(context.Background(), "/empty", nil)
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusInternalServerError {
		t.Fatalf("expected 500 api error, got %v", err)
	}
	if apiErr.Message != "500 Internal Server Error" {
		t.Fatalf("expected status text for empty body, got %q", apiErr.Message)
	}
	if errors.Unwrap(err) != nil {
		t.Fatalf("500 must not map to a domain error")
	}
}

func TestClient_EmptyBody_IsOK(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/x", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	var resp map[string]any
	if err := api.NewClient(srv.URL, "").GetJSON(context.Background(), "/x", &resp); err != nil {
		t.Fatalf("expected EOF to be treated as success, got %v", err)
	}
}

func TestClient_RunnerCalls(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/runner/status", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(runner.Snapshot{State: runner.StatusRunning,
			Progress: &runner.Progress{Total: 4, Completed: 1}})
	})
	mux.HandleFunc("/runner/stop", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(runner.Snapshot{State: runner.StatusRunning})
	})
	mux.HandleFunc("/requests/req_1/send", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"result": runner.ExecResult{StatusCode: 201}})
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()
	c := api.NewClient(srv.URL, "t")
	ctx := context.Background()

	snap, err := c.RunStatus(ctx)
	if err != nil {
		t.Fatalf("RunStatus: %v", err)
	}
	if snap.State != runner.StatusRunning || snap.Progress.Total != 4 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}

	if _, err := c.StopRun(ctx); err != nil {
		t.Fatalf("StopRun: %v", err)
	}

	res, err := c.SendRequest(ctx, "req_1")
	if err != nil {
		t.Fatalf("SendRequest: %v", err)
	}
	if res.StatusCode != 201 {
		t.Fatalf("expected 201, got %d", res.StatusCode)
	}
}

func TestClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	if _, err := api.NewClient(url, "").ListWorkspaces(context.Background()); err == nil {
		t.Fatalf("expected transport error")
	}
}
