package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pixelprobe/pixelprobe/internal/classify"
)

// testBackend records which endpoint was hit and answers with a canned
// backend response.
func testBackend(t *testing.T, result, model string) (*httptest.Server, *string) {
	t.Helper()
	var hitPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hitPath = r.URL.Path

		var req taskRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode backend request: %v", err)
		}
		json.NewEncoder(w).Encode(taskResponse{
			Result:    result,
			Latency:   0.05,
			ModelName: model,
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &hitPath
}

func TestRun_RoutesByTask(t *testing.T) {
	tests := []struct {
		task     classify.Task
		wantPath string
	}{
		{classify.TaskCaptioning, "/task/caption"},
		{classify.TaskVQA, "/task/vqa"},
		{classify.TaskMedical, "/task/medical"},
		{classify.TaskOther, "/task/other"},
	}

	for _, tt := range tests {
		t.Run(string(tt.task), func(t *testing.T) {
			srv, hitPath := testBackend(t, "ok", "m")
			r := NewHTTPRunner(srv.URL, 0)

			out, err := r.Run(context.Background(), tt.task, "/tmp/x.png", "q")
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if *hitPath != tt.wantPath {
				t.Errorf("backend path = %s, want %s", *hitPath, tt.wantPath)
			}
			if out.ResultText != "ok" || out.Model != "m" {
				t.Errorf("outcome = %+v", out)
			}
			if out.LatencySeconds < 0 {
				t.Errorf("negative latency %v", out.LatencySeconds)
			}
		})
	}
}

func TestRun_OCRPicksEngine(t *testing.T) {
	srv, hitPath := testBackend(t, "text", "")
	r := NewHTTPRunner(srv.URL, 0)
	r.pickOCR = func() backendRoute { return backendRoute{"simocr", "paddle-ocr"} }

	out, err := r.Run(context.Background(), classify.TaskOCR, "/tmp/x.png", "read")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if *hitPath != "/task/simocr" {
		t.Errorf("backend path = %s, want /task/simocr", *hitPath)
	}
	// Empty model_name in the response falls back to the route's model.
	if out.Model != "paddle-ocr" {
		t.Errorf("model = %q, want paddle-ocr", out.Model)
	}
}

func TestRun_UnknownTaskFallsBackToOther(t *testing.T) {
	srv, hitPath := testBackend(t, "ok", "none")
	r := NewHTTPRunner(srv.URL, 0)

	if _, err := r.Run(context.Background(), classify.Task("Style Transfer"), "/tmp/x.png", "q"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if *hitPath != "/task/other" {
		t.Errorf("backend path = %s, want /task/other", *hitPath)
	}
}

func TestRun_BackendDownDegrades(t *testing.T) {
	r := NewHTTPRunner("http://127.0.0.1:1", 200*time.Millisecond)

	out, err := r.Run(context.Background(), classify.TaskVQA, "/tmp/x.png", "q")
	if err != nil {
		t.Fatalf("Run must not error on backend failure, got %v", err)
	}
	if out.Model != "error" {
		t.Errorf("model = %q, want error", out.Model)
	}
	if out.ResultText == "" {
		t.Error("expected apology text")
	}
}

func TestRun_BackendNon200Degrades(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	r := NewHTTPRunner(srv.URL, 0)
	out, err := r.Run(context.Background(), classify.TaskCaptioning, "/tmp/x.png", "q")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Model != "error" {
		t.Errorf("model = %q, want error", out.Model)
	}
}
