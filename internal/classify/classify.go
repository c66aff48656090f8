package classify

import (
	"context"
	"time"
)

// Request carries one classification question and an optional hint about the
// image's contents (a caption produced upstream, when available).
type Request struct {
	Question     string
	ImageContext string
}

// Result is the outcome of a classification. Source records which tier of
// the fallback chain answered.
type Result struct {
	Task   Task
	Source Source
}

// Strategy is one tier of the fallback chain. Attempt returns ok=false when
// the tier cannot produce an answer; it never returns an error because a
// failed tier only means the next one runs.
type Strategy interface {
	Attempt(ctx context.Context, req Request) (Result, bool)
}

// Classifier runs an ordered chain of strategies and returns the first hit.
type Classifier struct {
	chain []Strategy
}

// Opts holds configuration for building a Classifier.
type Opts struct {
	// EndpointURL enables the external tier when non-empty.
	EndpointURL string
	// APIKey is attached as a bearer credential on external calls.
	APIKey string
	// Timeout bounds each external call. Zero means DefaultTimeout.
	Timeout time.Duration
	// MaxTokens and Temperature are forwarded verbatim to the external
	// endpoint.
	MaxTokens   int
	Temperature float64
}

// New builds the standard chain: external endpoint (when configured), then
// local keyword rules, then the unconditional default.
func New(opts Opts) *Classifier {
	var chain []Strategy
	if opts.EndpointURL != "" {
		chain = append(chain, newExternalStrategy(opts))
	}
	chain = append(chain, rulesStrategy{}, defaultStrategy{})
	return &Classifier{chain: chain}
}

// NewChain builds a Classifier from an explicit strategy list, for tests and
// callers that assemble their own tiers. The default tier is always appended
// so Classify can never come back empty.
func NewChain(strategies ...Strategy) *Classifier {
	return &Classifier{chain: append(strategies, defaultStrategy{})}
}

// Classify runs the chain and returns the first strategy's answer. It never
// fails: the default tier answers when everything above it misses.
func (c *Classifier) Classify(ctx context.Context, req Request) Result {
	for _, s := range c.chain {
		if res, ok := s.Attempt(ctx, req); ok {
			return res
		}
	}
	// Unreachable with the default tier in place, but keep the contract
	// honest if a caller builds an empty chain by hand.
	return Result{Task: TaskOther, Source: SourceDefault}
}

// rulesStrategy applies the local keyword table to the raw question.
type rulesStrategy struct{}

func (rulesStrategy) Attempt(_ context.Context, req Request) (Result, bool) {
	task, ok := matchKeywords(req.Question)
	if !ok {
		return Result{}, false
	}
	return Result{Task: task, Source: SourceRules}, true
}

// defaultStrategy terminates the chain.
type defaultStrategy struct{}

func (defaultStrategy) Attempt(context.Context, Request) (Result, bool) {
	return Result{Task: TaskOther, Source: SourceDefault}, true
}
