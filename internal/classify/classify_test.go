package classify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClassify_LocalRules(t *testing.T) {
	tests := []struct {
		name     string
		question string
		want     Task
	}{
		{"ocr keyword", "Run OCR on this receipt", TaskOCR},
		{"extract text", "Please extract text from the sign", TaskOCR},
		{"uppercase", "EXTRACT TEXT NOW", TaskOCR},
		{"caption", "Write a caption for this photo", TaskCaptioning},
		{"describe", "Describe the scene", TaskCaptioning},
		{"medical beats ocr", "Read this medical scan", TaskMedical},
		{"xray", "Is this x-ray normal?", TaskMedical},
		{"how many", "how many dogs are visible?", TaskVQA},
		{"is there", "Tell me: is there a cat here?", TaskVQA},
		{"question prefix", "What is in this picture?", TaskVQA},
		{"where prefix", "Where was this taken?", TaskVQA},
	}

	c := New(Opts{}) // no external endpoint configured
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(context.Background(), Request{Question: tt.question})
			if got.Task != tt.want {
				t.Errorf("Classify(%q).Task = %q, want %q", tt.question, got.Task, tt.want)
			}
			if got.Source != SourceRules {
				t.Errorf("Classify(%q).Source = %q, want %q", tt.question, got.Source, SourceRules)
			}
		})
	}
}

func TestClassify_DefaultTier(t *testing.T) {
	c := New(Opts{})
	got := c.Classify(context.Background(), Request{Question: "greetings"})
	if got.Task != TaskOther || got.Source != SourceDefault {
		t.Errorf("Classify = %+v, want {%q %q}", got, TaskOther, SourceDefault)
	}
}

func TestClassify_ExternalTier(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"response": "Image Captioning"}`))
	}))
	defer srv.Close()

	c := New(Opts{EndpointURL: srv.URL, APIKey: "sk-test"})
	got := c.Classify(context.Background(), Request{Question: "hmm"})
	if got.Task != TaskCaptioning {
		t.Errorf("Task = %q, want %q", got.Task, TaskCaptioning)
	}
	if got.Source != SourceExternal {
		t.Errorf("Source = %q, want %q", got.Source, SourceExternal)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer sk-test")
	}
}

func TestClassify_ExternalUnreachable(t *testing.T) {
	// Endpoint configured but nothing listening: must degrade to the same
	// answer local rules give, never error.
	c := New(Opts{
		EndpointURL: "http://127.0.0.1:1/predict",
		Timeout:     200 * time.Millisecond,
	})

	got := c.Classify(context.Background(), Request{Question: "extract text from this"})
	if got.Task != TaskOCR || got.Source != SourceRules {
		t.Errorf("Classify = %+v, want {%q %q}", got, TaskOCR, SourceRules)
	}

	got = c.Classify(context.Background(), Request{Question: "greetings"})
	if got.Task != TaskOther || got.Source != SourceDefault {
		t.Errorf("Classify = %+v, want {%q %q}", got, TaskOther, SourceDefault)
	}
}

func TestClassify_ExternalNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(Opts{EndpointURL: srv.URL})
	got := c.Classify(context.Background(), Request{Question: "describe this"})
	if got.Task != TaskCaptioning || got.Source != SourceRules {
		t.Errorf("Classify = %+v, want {%q %q}", got, TaskCaptioning, SourceRules)
	}
}

func TestClassify_ExternalMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	c := New(Opts{EndpointURL: srv.URL})
	got := c.Classify(context.Background(), Request{Question: "read the words"})
	if got.Task != TaskOCR || got.Source != SourceRules {
		t.Errorf("Classify = %+v, want {%q %q}", got, TaskOCR, SourceRules)
	}
}

func TestClassify_ExternalTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	c := New(Opts{EndpointURL: srv.URL, Timeout: 100 * time.Millisecond})
	start := time.Now()
	got := c.Classify(context.Background(), Request{Question: "caption it"})
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("classification took %v, timeout not enforced", elapsed)
	}
	if got.Task != TaskCaptioning || got.Source != SourceRules {
		t.Errorf("Classify = %+v, want {%q %q}", got, TaskCaptioning, SourceRules)
	}
}

func TestClassify_ExternalFallbackTextField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"text": "Medical Diagnosis"}`))
	}))
	defer srv.Close()

	c := New(Opts{EndpointURL: srv.URL})
	got := c.Classify(context.Background(), Request{Question: "hm"})
	if got.Task != TaskMedical || got.Source != SourceExternal {
		t.Errorf("Classify = %+v, want {%q %q}", got, TaskMedical, SourceExternal)
	}
}

func TestParseTask(t *testing.T) {
	tests := []struct {
		answer string
		want   Task
		ok     bool
	}{
		{"OCR", TaskOCR, true},
		{"OCR.", TaskOCR, true},
		{"The task is: Visual QA!", TaskVQA, true},
		{"image captioning", TaskCaptioning, true},
		{"Medical Diagnosis", TaskMedical, true},
		{"Other", TaskOther, true},
		{"no idea", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseTask(tt.answer)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ParseTask(%q) = (%q, %v), want (%q, %v)", tt.answer, got, ok, tt.want, tt.ok)
		}
	}
}

// stubStrategy is a test double for one chain tier.
type stubStrategy struct {
	res    Result
	ok     bool
	called int
}

func (s *stubStrategy) Attempt(context.Context, Request) (Result, bool) {
	s.called++
	return s.res, s.ok
}

func TestNewChain_FirstHitWins(t *testing.T) {
	first := &stubStrategy{res: Result{Task: TaskOCR, Source: SourceExternal}, ok: true}
	second := &stubStrategy{}
	c := NewChain(first, second)

	got := c.Classify(context.Background(), Request{Question: "x"})
	if got.Task != TaskOCR {
		t.Errorf("Task = %q, want %q", got.Task, TaskOCR)
	}
	if second.called != 0 {
		t.Errorf("second tier called %d times, want 0", second.called)
	}
}

func TestNewChain_AlwaysAnswers(t *testing.T) {
	c := NewChain(&stubStrategy{}, &stubStrategy{})
	got := c.Classify(context.Background(), Request{Question: "x"})
	if got.Task != TaskOther || got.Source != SourceDefault {
		t.Errorf("Classify = %+v, want default answer", got)
	}
}
