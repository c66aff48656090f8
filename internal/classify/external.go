package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// DefaultTimeout bounds an external classification call when the config
// doesn't set one.
const DefaultTimeout = 30 * time.Second

const promptTemplate = `Classify the AI task based on the question and image description.

Question: %s
Image: %s

Respond with exactly one of these options:
- OCR
- Image Captioning
- Visual QA
- Medical Diagnosis
- Other

Task:`

// externalStrategy asks a configured model endpoint to classify the task.
// Every failure mode (transport error, timeout, non-2xx, unparseable body)
// is a tier miss, never an error: the chain falls through to local rules.
type externalStrategy struct {
	url         string
	apiKey      string
	maxTokens   int
	temperature float64
	client      *http.Client
}

func newExternalStrategy(opts Opts) *externalStrategy {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &externalStrategy{
		url:         opts.EndpointURL,
		apiKey:      opts.APIKey,
		maxTokens:   opts.MaxTokens,
		temperature: opts.Temperature,
		client:      &http.Client{Timeout: timeout},
	}
}

// predictRequest is the wire format of the external classification endpoint.
type predictRequest struct {
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

type predictResponse struct {
	Response string `json:"response"`
	Text     string `json:"text"`
}

func (s *externalStrategy) Attempt(ctx context.Context, req Request) (Result, bool) {
	answer, err := s.call(ctx, req)
	if err != nil {
		log.Printf("classify: external tier: %v", err)
		return Result{}, false
	}
	if task, ok := ParseTask(answer); ok {
		return Result{Task: task, Source: SourceExternal}, true
	}
	if task, ok := matchKeywords(answer); ok {
		return Result{Task: task, Source: SourceExternal}, true
	}
	return Result{}, false
}

func (s *externalStrategy) call(ctx context.Context, req Request) (string, error) {
	imageContext := req.ImageContext
	if imageContext == "" {
		imageContext = "No image context provided"
	}
	body, err := json.Marshal(predictRequest{
		Prompt:      fmt.Sprintf(promptTemplate, req.Question, imageContext),
		MaxTokens:   s.maxTokens,
		Temperature: s.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if s.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("call %s: %w", s.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("call %s: status %d", s.url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	var parsed predictResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if parsed.Response != "" {
		return parsed.Response, nil
	}
	if parsed.Text != "" {
		return parsed.Text, nil
	}
	return "", fmt.Errorf("empty response body")
}
