// Package mock provides a test double for the analysis.Analyzer interface.
//
// Each method delegates to the corresponding Func field when set and falls
// back to the fixed-value fields otherwise. Calls are recorded for inspection.
package mock

import (
	"context"
	"sync"

	"github.com/lectern-ai/lectern/internal/analysis"
)

// Compile-time interface check.
var _ analysis.Analyzer = (*Analyzer)(nil)

// AnalyzeCall records one invocation of Analyze.
type AnalyzeCall struct {
	Transcript string
}

// DefineBatchCall records one invocation of DefineBatch.
type DefineBatchCall struct {
	Terms       []analysis.Term
	ContextTail string
}

// DeepResearchCall records one invocation of DeepResearch.
type DeepResearchCall struct {
	Topic       string
	ContextText string
}

// SummarizeCall records one invocation of Summarize.
type SummarizeCall struct {
	Transcript string
}

// Analyzer is a mock implementation of analysis.Analyzer.
type Analyzer struct {
	mu sync.Mutex

	// AnalyzeFunc, if set, handles Analyze calls.
	AnalyzeFunc func(ctx context.Context, transcript string) (*analysis.Result, error)

	// AnalyzeResult and AnalyzeErr are returned when AnalyzeFunc is nil.
	AnalyzeResult *analysis.Result
	AnalyzeErr    error

	// DefineBatchFunc, if set, handles DefineBatch calls.
	DefineBatchFunc func(ctx context.Context, terms []analysis.Term, contextTail string) ([]analysis.Definition, error)

	// DefineBatchResult and DefineBatchErr are returned when DefineBatchFunc is nil.
	DefineBatchResult []analysis.Definition
	DefineBatchErr    error

	// DeepResearchFunc, if set, handles DeepResearch calls.
	DeepResearchFunc func(ctx context.Context, topic, contextText string) (*analysis.Research, error)

	// DeepResearchResult and DeepResearchErr are returned when DeepResearchFunc is nil.
	DeepResearchResult *analysis.Research
	DeepResearchErr    error

	// SummarizeFunc, if set, handles Summarize calls.
	SummarizeFunc func(ctx context.Context, transcript string) (string, error)

	// SummarizeResult and SummarizeErr are returned when SummarizeFunc is nil.
	SummarizeResult string
	SummarizeErr    error

	// Call records, in order.
	AnalyzeCalls      []AnalyzeCall
	DefineBatchCalls  []DefineBatchCall
	DeepResearchCalls []DeepResearchCall
	SummarizeCalls    []SummarizeCall
}

// Analyze implements analysis.Analyzer.
func (a *Analyzer) Analyze(ctx context.Context, transcript string) (*analysis.Result, error) {
	a.mu.Lock()
	a.AnalyzeCalls = append(a.AnalyzeCalls, AnalyzeCall{Transcript: transcript})
	fn := a.AnalyzeFunc
	a.mu.Unlock()

	if fn != nil {
		return fn(ctx, transcript)
	}
	if a.AnalyzeErr != nil {
		return nil, a.AnalyzeErr
	}
	if a.AnalyzeResult != nil {
		return a.AnalyzeResult, nil
	}
	return &analysis.Result{EmphasisLevel: 0.5}, nil
}

// DefineBatch implements analysis.Analyzer.
func (a *Analyzer) DefineBatch(ctx context.Context, terms []analysis.Term, contextTail string) ([]analysis.Definition, error) {
	a.mu.Lock()
	a.DefineBatchCalls = append(a.DefineBatchCalls, DefineBatchCall{Terms: terms, ContextTail: contextTail})
	fn := a.DefineBatchFunc
	a.mu.Unlock()

	if fn != nil {
		return fn(ctx, terms, contextTail)
	}
	return a.DefineBatchResult, a.DefineBatchErr
}

// DeepResearch implements analysis.Analyzer.
func (a *Analyzer) DeepResearch(ctx context.Context, topic, contextText string) (*analysis.Research, error) {
	a.mu.Lock()
	a.DeepResearchCalls = append(a.DeepResearchCalls, DeepResearchCall{Topic: topic, ContextText: contextText})
	fn := a.DeepResearchFunc
	a.mu.Unlock()

	if fn != nil {
		return fn(ctx, topic, contextText)
	}
	if a.DeepResearchErr != nil {
		return nil, a.DeepResearchErr
	}
	if a.DeepResearchResult != nil {
		return a.DeepResearchResult, nil
	}
	return &analysis.Research{Content: "mock research"}, nil
}

// Summarize implements analysis.Analyzer.
func (a *Analyzer) Summarize(ctx context.Context, transcript string) (string, error) {
	a.mu.Lock()
	a.SummarizeCalls = append(a.SummarizeCalls, SummarizeCall{Transcript: transcript})
	fn := a.SummarizeFunc
	a.mu.Unlock()

	if fn != nil {
		return fn(ctx, transcript)
	}
	return a.SummarizeResult, a.SummarizeErr
}

// AnalyzeCallCount returns the number of recorded Analyze calls. Thread-safe.
func (a *Analyzer) AnalyzeCallCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.AnalyzeCalls)
}

// DeepResearchCallCount returns the number of recorded DeepResearch calls. Thread-safe.
func (a *Analyzer) DeepResearchCallCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.DeepResearchCalls)
}

// Reset clears all recorded calls. Thread-safe.
func (a *Analyzer) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.AnalyzeCalls = nil
	a.DefineBatchCalls = nil
	a.DeepResearchCalls = nil
	a.SummarizeCalls = nil
}
