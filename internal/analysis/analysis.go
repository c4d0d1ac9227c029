// Package analysis turns raw lecture transcript text into structured insight:
// extracted terms, the current topic with its emphasis, takeaways, rolling
// summaries, term definitions, and deep-research briefs.
//
// The [Analyzer] interface decouples the session pipeline from any concrete
// model; [Adapter] implements it over two [llm.Provider] backends, a fast one
// for extraction and summaries and a search-capable one for research.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/lectern-ai/lectern/internal/lecture"
	"github.com/lectern-ai/lectern/pkg/provider/llm"
)

// TermType classifies what kind of thing an extracted term refers to.
type TermType string

const (
	TypeConcept TermType = "concept"
	TypePerson  TermType = "person"
	TypeEvent   TermType = "event"
)

// IsValid reports whether t is a recognised term type.
func (t TermType) IsValid() bool {
	switch t {
	case TypeConcept, TypePerson, TypeEvent:
		return true
	}
	return false
}

// Badge maps the term type to its display badge.
func (t TermType) Badge() lecture.Badge {
	switch t {
	case TypePerson:
		return lecture.BadgePerson
	case TypeEvent:
		return lecture.BadgeEvent
	default:
		return lecture.BadgeConcept
	}
}

// Term is a technical term extracted from the transcript.
type Term struct {
	Term string
	Type TermType
}

// Result is the outcome of a single Analyze call. Topic, Takeaway, and
// Summary are empty when the model did not produce them.
type Result struct {
	Terms         []Term
	Topic         string
	EmphasisLevel float64
	Takeaway      string
	Summary       string
}

// Definition is a short generated definition for one term.
type Definition struct {
	Term    string
	Content string
	Badge   lecture.Badge
}

// Research is a deep-research brief with its web sources.
type Research struct {
	Content   string
	Citations []lecture.Citation
}

// Analyzer is the model-facing surface of the analysis pipeline.
//
// Implementations must be safe for concurrent use. Every method propagates
// upstream model errors unchanged; callers treat them as transient.
type Analyzer interface {
	// Analyze extracts terms, topic, emphasis, takeaway, and a segment summary
	// from the most recent transcript text.
	Analyze(ctx context.Context, transcript string) (*Result, error)

	// DefineBatch generates a definition per term concurrently. Terms whose
	// definition fails are dropped; the survivors keep input order.
	DefineBatch(ctx context.Context, terms []Term, contextTail string) ([]Definition, error)

	// DeepResearch produces a structured research brief on topic, grounded in
	// web search when the backing model supports it.
	DeepResearch(ctx context.Context, topic, contextText string) (*Research, error)

	// Summarize produces a 3-5 sentence rolling summary of the transcript.
	Summarize(ctx context.Context, transcript string) (string, error)
}

const (
	// analyzeWindow bounds how much recent transcript feeds a single Analyze call.
	analyzeWindow = 1500

	// summaryWindow bounds the transcript tail used for rolling summaries.
	summaryWindow = 4000

	// definitionContextWindow bounds the context tail appended to definition prompts.
	definitionContextWindow = 200

	// researchContextWindow bounds the context passed to deep-research prompts.
	researchContextWindow = 400

	// maxCitations caps how many web sources a research brief carries.
	maxCitations = 5
)

const analyzePrompt = `You are a lecture assistant analyzing the live transcript of a lecture.
The following is the most recent portion of the transcript.

Your task:
1. Identify the **current topic** being discussed at the very end of the transcript.
2. Extract 2-3 **current** key technical terms/concepts from the recent context (last few sentences) that need defining.
3. Determine the emphasis level of the current topic.
4. Extract a takeaway if the speaker just finished a key point.
5. Provide a **concise summary** of this specific segment.

Return ONLY this JSON:
{"terms": [{"term": "...", "type": "concept"}], "topic": "...", "emphasis_level": 0.7, "takeaway": "..." or null, "summary": "..."}

Transcript:
%s`

const summaryPrompt = `You are a lecture assistant. Produce a concise, 3-5 sentence summary of the following lecture transcript so far. Focus on the main topics covered.
Transcript:
%s`

const definitionPrompt = `Define this term in 1-3 sentences using the lecture context.

Term: %s
Context: %s

Brief definition only - no citations needed.`

const deepResearchPrompt = `Explain this topic concisely for a student. Keep it SHORT (max 150 words).

Topic: %s
Lecture Context: %s

Format your answer as:

**What it is:** Define in 1-2 sentences.

**Why it matters:** 1-2 sentences on relevance.

**Example:** One concrete real-world case.

That's it. Be concise.`

// Compile-time interface check.
var _ Analyzer = (*Adapter)(nil)

// Adapter implements [Analyzer] over two LLM providers: extract serves
// Analyze, DefineBatch, and Summarize; research serves DeepResearch and
// should point at a search-capable model.
type Adapter struct {
	extract  llm.Provider
	research llm.Provider
	log      *slog.Logger
}

// NewAdapter creates an Adapter. Both providers must be non-nil; pass the
// same provider twice to run everything against one backend.
func NewAdapter(extract, research llm.Provider) *Adapter {
	return &Adapter{
		extract:  extract,
		research: research,
		log:      slog.Default().With("component", "analysis"),
	}
}

// analysisPayload is the JSON schema the extraction model must return.
type analysisPayload struct {
	Terms []struct {
		Term string `json:"term"`
		Type string `json:"type"`
	} `json:"terms"`
	Topic         *string  `json:"topic"`
	EmphasisLevel *float64 `json:"emphasis_level"`
	Takeaway      *string  `json:"takeaway"`
	Summary       *string  `json:"summary"`
}

// Analyze implements [Analyzer].
func (a *Adapter) Analyze(ctx context.Context, transcript string) (*Result, error) {
	if strings.TrimSpace(transcript) == "" {
		return &Result{EmphasisLevel: 0.5}, nil
	}

	resp, err := a.extract.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: "user", Content: fmt.Sprintf(analyzePrompt, tail(transcript, analyzeWindow))},
		},
		Temperature: 0.3,
	})
	if err != nil {
		return nil, fmt.Errorf("analyze: %w", err)
	}

	result, err := parseAnalysis(resp.Content)
	if err != nil {
		return nil, fmt.Errorf("analyze: %w", err)
	}
	return result, nil
}

// parseAnalysis validates the model output against the strict schema.
// Schema violations (bad JSON, unknown term types, emphasis out of range)
// fail the whole call; terms with a blank name are merely dropped.
func parseAnalysis(raw string) (*Result, error) {
	var payload analysisPayload
	if err := json.Unmarshal([]byte(stripFences(raw)), &payload); err != nil {
		return nil, fmt.Errorf("parse model output: %w", err)
	}

	result := &Result{
		Terms:         make([]Term, 0, len(payload.Terms)),
		EmphasisLevel: 0.5,
	}
	for _, t := range payload.Terms {
		if strings.TrimSpace(t.Term) == "" {
			continue
		}
		typ := TermType(t.Type)
		if !typ.IsValid() {
			return nil, fmt.Errorf("parse model output: unknown term type %q", t.Type)
		}
		result.Terms = append(result.Terms, Term{Term: strings.TrimSpace(t.Term), Type: typ})
	}

	if payload.Topic != nil {
		result.Topic = strings.TrimSpace(*payload.Topic)
	}
	if payload.EmphasisLevel != nil {
		if *payload.EmphasisLevel < 0 || *payload.EmphasisLevel > 1 {
			return nil, fmt.Errorf("parse model output: emphasis_level %v out of range", *payload.EmphasisLevel)
		}
		result.EmphasisLevel = *payload.EmphasisLevel
	}
	if payload.Takeaway != nil {
		result.Takeaway = strings.TrimSpace(*payload.Takeaway)
	}
	if payload.Summary != nil {
		result.Summary = strings.TrimSpace(*payload.Summary)
	}
	return result, nil
}

// DefineBatch implements [Analyzer]. Definitions run concurrently; a failed
// term is logged and dropped so one bad definition does not sink the batch.
func (a *Adapter) DefineBatch(ctx context.Context, terms []Term, contextTail string) ([]Definition, error) {
	if len(terms) == 0 {
		return nil, nil
	}

	results := make([]*Definition, len(terms))
	g, gctx := errgroup.WithContext(ctx)
	for i, term := range terms {
		g.Go(func() error {
			def, err := a.defineOne(gctx, term, contextTail)
			if err != nil {
				a.log.Warn("definition failed", "term", term.Term, "error", err)
				return nil
			}
			results[i] = def
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("define batch: %w", err)
	}

	defs := make([]Definition, 0, len(terms))
	for _, d := range results {
		if d != nil {
			defs = append(defs, *d)
		}
	}
	return defs, nil
}

// defineOne generates a single definition card body.
func (a *Adapter) defineOne(ctx context.Context, term Term, contextTail string) (*Definition, error) {
	resp, err := a.extract.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: "user", Content: fmt.Sprintf(definitionPrompt, term.Term, tail(contextTail, definitionContextWindow))},
		},
		Temperature: 0.7,
		MaxTokens:   256,
	})
	if err != nil {
		return nil, err
	}

	content := strings.TrimSpace(resp.Content)
	if content == "" {
		return nil, fmt.Errorf("empty definition")
	}
	return &Definition{
		Term:    term.Term,
		Content: content,
		Badge:   term.Type.Badge(),
	}, nil
}

// DeepResearch implements [Analyzer].
func (a *Adapter) DeepResearch(ctx context.Context, topic, contextText string) (*Research, error) {
	if strings.TrimSpace(topic) == "" {
		return nil, fmt.Errorf("deep research: empty topic")
	}

	resp, err := a.research.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: "user", Content: fmt.Sprintf(deepResearchPrompt, topic, head(contextText, researchContextWindow))},
		},
		Temperature: 0.7,
		MaxTokens:   1024,
	})
	if err != nil {
		return nil, fmt.Errorf("deep research: %w", err)
	}

	content := strings.TrimSpace(resp.Content)
	if content == "" {
		return nil, fmt.Errorf("deep research: empty response")
	}

	return &Research{
		Content:   content,
		Citations: citationsFromSearch(resp.SearchResults),
	}, nil
}

// Summarize implements [Analyzer].
func (a *Adapter) Summarize(ctx context.Context, transcript string) (string, error) {
	if strings.TrimSpace(transcript) == "" {
		return "", nil
	}

	resp, err := a.extract.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: "user", Content: fmt.Sprintf(summaryPrompt, tail(transcript, summaryWindow))},
		},
		Temperature: 0.3,
	})
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	return strings.TrimSpace(resp.Content), nil
}

// citationsFromSearch converts provider search results into display citations,
// keeping at most maxCitations entries with both a title and a URL.
func citationsFromSearch(results []llm.SearchResult) []lecture.Citation {
	citations := make([]lecture.Citation, 0, maxCitations)
	for _, r := range results {
		if r.Title == "" || r.URL == "" {
			continue
		}
		citations = append(citations, lecture.Citation{
			Title:  r.Title,
			URL:    r.URL,
			Domain: domainOf(r.URL),
		})
		if len(citations) == maxCitations {
			break
		}
	}
	return citations
}

// domainOf extracts the host from a URL, or returns "" when unparsable.
func domainOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}

var (
	fenceOpen  = regexp.MustCompile("^```(?:json)?\\s*")
	fenceClose = regexp.MustCompile("\\s*```$")
)

// stripFences removes a surrounding markdown code fence, which some models
// wrap around JSON output despite instructions.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = fenceOpen.ReplaceAllString(s, "")
	s = fenceClose.ReplaceAllString(s, "")
	return s
}

// tail returns the last n bytes of s.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// head returns the first n bytes of s.
func head(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
