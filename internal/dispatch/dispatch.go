// Package dispatch routes a classified task to an inference backend.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"time"

	"github.com/pixelprobe/pixelprobe/internal/classify"
)

// DefaultTimeout bounds one backend call.
const DefaultTimeout = 30 * time.Second

// Outcome is what an inference backend produced for one request.
type Outcome struct {
	ResultText     string
	Model          string
	LatencySeconds float64
}

// Runner executes a classified task against an inference backend.
type Runner interface {
	Run(ctx context.Context, task classify.Task, imagePath, question string) (Outcome, error)
}

// backendRoute names the backend endpoint and the model it fronts.
type backendRoute struct {
	endpoint string
	model    string
}

// routes maps each task to its backend. OCR is special-cased in Run: the
// demo alternates between the two OCR engines.
var routes = map[classify.Task]backendRoute{
	classify.TaskCaptioning: {"caption", "blip2"},
	classify.TaskVQA:        {"vqa", "blip2"},
	classify.TaskMedical:    {"medical", "resnet-50"},
	classify.TaskOther:      {"other", "none"},
}

// ocrRoutes are the two OCR engines the demo flips a coin between.
var ocrRoutes = []backendRoute{
	{"ocr", "pytesseract"},
	{"simocr", "paddle-ocr"},
}

// HTTPRunner calls task backends over HTTP, POSTing
// {image_path, question} to <base>/task/<endpoint>.
type HTTPRunner struct {
	base   string
	client *http.Client
	// pickOCR selects one of the OCR engines; overridable in tests.
	pickOCR func() backendRoute
}

// NewHTTPRunner builds a runner against the given backend base URL.
// A zero timeout means DefaultTimeout.
func NewHTTPRunner(base string, timeout time.Duration) *HTTPRunner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPRunner{
		base:   base,
		client: &http.Client{Timeout: timeout},
		pickOCR: func() backendRoute {
			return ocrRoutes[rand.Intn(len(ocrRoutes))]
		},
	}
}

// taskRequest is the wire format backends accept.
type taskRequest struct {
	ImagePath string `json:"image_path"`
	Question  string `json:"question"`
}

type taskResponse struct {
	Result    string  `json:"result"`
	Latency   float64 `json:"latency"`
	ModelName string  `json:"model_name"`
}

// Run dispatches the task to its backend. A backend failure degrades to a
// fixed apology string with model "error" rather than an error: the analyze
// flow still answers, it just reports the miss.
func (r *HTTPRunner) Run(ctx context.Context, task classify.Task, imagePath, question string) (Outcome, error) {
	route, ok := routes[task]
	if task == classify.TaskOCR {
		route, ok = r.pickOCR(), true
	}
	if !ok {
		route = routes[classify.TaskOther]
	}

	start := time.Now()
	resp, err := r.call(ctx, route.endpoint, imagePath, question)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		log.Printf("dispatch: backend %s: %v", route.endpoint, err)
		return Outcome{
			ResultText:     "Task handling failed due to an error",
			Model:          "error",
			LatencySeconds: elapsed,
		}, nil
	}

	model := resp.ModelName
	if model == "" {
		model = route.model
	}
	return Outcome{
		ResultText:     resp.Result,
		Model:          model,
		LatencySeconds: elapsed,
	}, nil
}

func (r *HTTPRunner) call(ctx context.Context, endpoint, imagePath, question string) (*taskResponse, error) {
	body, err := json.Marshal(taskRequest{ImagePath: imagePath, Question: question})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/task/%s", r.base, endpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", url, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("call %s: status %d", url, httpResp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	var parsed taskResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if parsed.Result == "" {
		parsed.Result = "Task completed successfully"
	}
	return &parsed, nil
}
