package session

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/lectern-ai/lectern/internal/analysis"
	"github.com/lectern-ai/lectern/internal/lecture"
	"github.com/lectern-ai/lectern/internal/observe"
	"github.com/lectern-ai/lectern/internal/termcache"
	"github.com/lectern-ai/lectern/internal/transcript"
	"github.com/lectern-ai/lectern/pkg/provider/stt"
)

// contextFallbackWindow is how much transcript tail substitutes for an empty
// utterance buffer when a retry fires with nothing new buffered.
const contextFallbackWindow = 300

// defineContextWindow is how much transcript tail accompanies definition
// requests so the model can disambiguate terms.
const defineContextWindow = 500

// SchedulerConfig holds the pacing knobs of the analysis pipeline.
type SchedulerConfig struct {
	// PipelineInterval is the minimum spacing between pipeline runs.
	PipelineInterval time.Duration

	// RetryBackoff is the delay before a failed run is retried.
	RetryBackoff time.Duration

	// DeepResearchInterval is the minimum spacing between automatic
	// deep-research jobs.
	DeepResearchInterval time.Duration

	// EmphasisThreshold is the emphasis level above which the current topic
	// becomes a deep-research candidate.
	EmphasisThreshold float64

	// TickInterval is how often the scheduler re-evaluates its triggers when
	// no new utterances arrive. Defaults to one second.
	TickInterval time.Duration
}

func (c *SchedulerConfig) applyDefaults() {
	if c.PipelineInterval <= 0 {
		c.PipelineInterval = 20 * time.Second
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 20 * time.Second
	}
	if c.DeepResearchInterval <= 0 {
		c.DeepResearchInterval = 30 * time.Second
	}
	if c.EmphasisThreshold <= 0 {
		c.EmphasisThreshold = 0.6
	}
	if c.TickInterval <= 0 {
		c.TickInterval = time.Second
	}
}

// Scheduler drives the periodic analysis pipeline for one lecture. It buffers
// finalized utterances, runs the analyze/define/research chain at most once
// per PipelineInterval, and retries failed runs with the text they covered so
// no speech is silently skipped.
//
// All state is owned by the single goroutine inside [Scheduler.Run]; the
// struct has no locks and must not be shared.
type Scheduler struct {
	lectureID  string
	analyzer   analysis.Analyzer
	store      lecture.Store
	transcript *transcript.Log
	cache      *termcache.Cache
	emit       Emitter
	cfg        SchedulerConfig
	metrics    *observe.Metrics
	log        *slog.Logger

	now func() time.Time

	buffer []string
	// retained carries the combined text of a failed run into its retry, so
	// a retry analyzes that text plus whatever arrived since.
	retained     string
	retryPending bool
	retryAfter   time.Time
	lastPipeline time.Time

	lastDeepResearch time.Time
	researched       map[string]struct{}
}

// NewScheduler builds a scheduler for one lecture session.
func NewScheduler(lectureID string, analyzer analysis.Analyzer, store lecture.Store, log *transcript.Log, emit Emitter, cfg SchedulerConfig, logger *slog.Logger) *Scheduler {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		lectureID:  lectureID,
		analyzer:   analyzer,
		store:      store,
		transcript: log,
		cache:      termcache.New(512),
		emit:       emit,
		cfg:        cfg,
		metrics:    observe.DefaultMetrics(),
		log:        logger.With("component", "scheduler", "lecture_id", lectureID),
		now:        time.Now,
		researched: make(map[string]struct{}),
	}
}

// Run consumes finalized transcript segments until ctx is cancelled. Segments
// are buffered and the pipeline triggers are re-evaluated on every segment and
// on a steady tick, so retries fire even through silence.
//
// The segments channel may be closed by the producer; the scheduler then keeps
// ticking (draining retries) until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context, segments <-chan stt.Segment) {
	// The first run happens a full interval after the session starts, not on
	// the first utterance.
	if s.lastPipeline.IsZero() {
		s.lastPipeline = s.now()
	}

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case seg, ok := <-segments:
			if !ok {
				segments = nil
				continue
			}
			if text := strings.TrimSpace(seg.Text); text != "" {
				s.buffer = append(s.buffer, text)
			}
			s.evaluate(ctx)
		case <-ticker.C:
			s.evaluate(ctx)
		}
	}
}

// evaluate fires the pipeline when either the regular trigger (buffered text
// plus an elapsed interval) or a due retry is satisfied.
func (s *Scheduler) evaluate(ctx context.Context) {
	now := s.now()

	regular := len(s.buffer) > 0 && now.Sub(s.lastPipeline) >= s.cfg.PipelineInterval
	retry := s.retryPending && !now.Before(s.retryAfter)
	if !regular && !retry {
		return
	}

	fresh := strings.Join(s.buffer, " ")
	s.buffer = s.buffer[:0]

	combined := fresh
	if s.retained != "" {
		combined = strings.TrimSpace(s.retained + " " + fresh)
	}
	if combined == "" {
		combined = s.transcript.Tail(contextFallbackWindow)
	}
	if combined == "" {
		return
	}

	s.lastPipeline = now
	s.retryPending = false

	start := now
	if err := s.runPipeline(ctx, combined); err != nil {
		s.retained = combined
		s.retryPending = true
		s.retryAfter = s.now().Add(s.cfg.RetryBackoff)
		s.metrics.RecordPipelineRun(ctx, "error")
		s.log.Warn("pipeline run failed, scheduling retry",
			"error", err,
			"retry_after", s.retryAfter,
		)
		return
	}
	s.retained = ""
	s.metrics.RecordPipelineRun(ctx, "ok")
	s.metrics.PipelineDuration.Record(ctx, s.now().Sub(start).Seconds())
}

// runPipeline executes one analyze/define/research chain over combined.
// Only the initial analysis call can fail the run; later stages log and
// degrade so one bad definition never costs the whole batch a retry.
func (s *Scheduler) runPipeline(ctx context.Context, combined string) error {
	analyzeStart := s.now()
	result, err := s.analyzer.Analyze(ctx, combined)
	s.metrics.LLMDuration.Record(ctx, s.now().Sub(analyzeStart).Seconds(),
		metric.WithAttributes(observe.Attr("op", "analyze")),
	)
	if err != nil {
		return err
	}

	ts := int(s.transcript.ElapsedSeconds())
	contextTail := s.transcript.Tail(defineContextWindow)

	if result.Topic != "" {
		s.emit.Emit(TopicUpdate(result.Topic, result.EmphasisLevel))
	}

	if result.Takeaway != "" {
		takeaway, err := s.store.InsertTakeaway(ctx, lecture.NewTakeaway{
			LectureID:        s.lectureID,
			Text:             result.Takeaway,
			TimestampSeconds: ts,
		})
		if err != nil {
			s.log.Error("failed to store takeaway", "error", err)
		} else {
			s.emit.Emit(NewTakeaway(takeaway))
		}
	}

	if result.Summary != "" {
		if err := s.store.UpdateSummary(ctx, s.lectureID, result.Summary); err != nil {
			s.log.Error("failed to store summary", "error", err)
		} else {
			s.emit.Emit(SummaryUpdate(result.Summary))
		}
	}

	s.defineNewTerms(ctx, result.Terms, contextTail, ts)
	s.maybeDeepResearch(ctx, result, contextTail, ts)
	return nil
}

// defineNewTerms filters already-seen terms through the session cache,
// generates definitions for the rest, and persists each as an auto_define
// card before announcing it. Repeated spellings of one normalized term within
// a single batch collapse to the first occurrence, so one analysis result
// never yields two cards for the same term.
func (s *Scheduler) defineNewTerms(ctx context.Context, terms []analysis.Term, contextTail string, ts int) {
	fresh := make([]analysis.Term, 0, len(terms))
	seen := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		if t.Term == "" || s.cache.Contains(t.Term) {
			continue
		}
		key := termcache.Normalize(t.Term)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		fresh = append(fresh, t)
	}
	if len(fresh) == 0 {
		return
	}

	defs, err := s.analyzer.DefineBatch(ctx, fresh, contextTail)
	if err != nil {
		s.log.Error("definition batch failed", "error", err, "terms", len(fresh))
		return
	}

	for _, def := range defs {
		card, err := s.store.InsertCard(ctx, lecture.NewCard{
			LectureID:        s.lectureID,
			Kind:             lecture.KindAutoDefine,
			Term:             def.Term,
			Content:          def.Content,
			Badge:            def.Badge,
			TimestampSeconds: ts,
		})
		if err != nil {
			s.log.Error("failed to store definition card", "error", err, "term", def.Term)
			continue
		}
		s.cache.Put(def.Term)
		s.metrics.RecordCardCreated(ctx, string(lecture.KindAutoDefine))
		s.emit.Emit(NewCard(card))
	}
}

// maybeDeepResearch launches at most one automatic deep-research job per
// DeepResearchInterval, preferring an emphasized topic and falling back to
// the longest un-researched extracted term.
func (s *Scheduler) maybeDeepResearch(ctx context.Context, result *analysis.Result, contextTail string, ts int) {
	if s.now().Sub(s.lastDeepResearch) < s.cfg.DeepResearchInterval {
		return
	}

	topic := s.pickResearchTopic(result)
	if topic == "" {
		return
	}

	// Mark before the call so a failing topic is not retried forever.
	s.lastDeepResearch = s.now()
	s.researched[termcache.Normalize(topic)] = struct{}{}

	researchStart := s.now()
	research, err := s.analyzer.DeepResearch(ctx, topic, contextTail)
	s.metrics.LLMDuration.Record(ctx, s.now().Sub(researchStart).Seconds(),
		metric.WithAttributes(observe.Attr("op", "research")),
	)
	if err != nil {
		s.log.Warn("automatic deep research failed", "error", err, "topic", topic)
		return
	}

	card, err := s.store.InsertCard(ctx, lecture.NewCard{
		LectureID:        s.lectureID,
		Kind:             lecture.KindDeepResearch,
		Term:             topic,
		Content:          research.Content,
		Citations:        research.Citations,
		Badge:            lecture.BadgeConcept,
		TimestampSeconds: ts,
	})
	if err != nil {
		s.log.Error("failed to store research card", "error", err, "topic", topic)
		return
	}
	s.metrics.RecordCardCreated(ctx, string(lecture.KindDeepResearch))
	s.emit.Emit(DeepResearchResult(card))
}

// pickResearchTopic chooses the next automatic research subject: the current
// topic when its emphasis clears the threshold, otherwise the longest
// extracted term that has not been researched yet.
func (s *Scheduler) pickResearchTopic(result *analysis.Result) string {
	candidates := make([]string, 0, len(result.Terms)+1)
	if result.Topic != "" && result.EmphasisLevel > s.cfg.EmphasisThreshold {
		candidates = append(candidates, result.Topic)
	}

	terms := make([]string, 0, len(result.Terms))
	for _, t := range result.Terms {
		if t.Term != "" {
			terms = append(terms, t.Term)
		}
	}
	sort.SliceStable(terms, func(i, j int) bool { return len(terms[i]) > len(terms[j]) })
	candidates = append(candidates, terms...)

	for _, c := range candidates {
		if _, done := s.researched[termcache.Normalize(c)]; !done {
			return c
		}
	}
	return ""
}
