package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/lectern-ai/lectern/internal/analysis"
	"github.com/lectern-ai/lectern/internal/lecture"
	"github.com/lectern-ai/lectern/internal/observe"
	"github.com/lectern-ai/lectern/internal/transcript"
	"github.com/lectern-ai/lectern/pkg/provider/stt"
)

// ErrAlreadyActive is returned when a second live session is requested for a
// lecture that already has one.
var ErrAlreadyActive = errors.New("session: already active")

const (
	// defaultOutboundBuffer bounds the event queue toward the client. A client
	// that cannot drain this many frames is considered gone and the session is
	// torn down rather than letting the queue grow without bound.
	defaultOutboundBuffer = 64

	// defaultSnapshotInterval is how often the accumulated transcript is
	// persisted while the session is live.
	defaultSnapshotInterval = 3 * time.Second
)

// RuntimeConfig configures one live session.
type RuntimeConfig struct {
	Scheduler        SchedulerConfig
	OutboundBuffer   int
	SnapshotInterval time.Duration
}

func (c *RuntimeConfig) applyDefaults() {
	if c.OutboundBuffer <= 0 {
		c.OutboundBuffer = defaultOutboundBuffer
	}
	if c.SnapshotInterval <= 0 {
		c.SnapshotInterval = defaultSnapshotInterval
	}
}

// Runtime is one live lecture session. It owns the STT stream, the transcript
// log, the pipeline scheduler, and the outbound event queue the WebSocket
// handler drains. Whatever path ends the session, the lecture row is
// finalized exactly once.
type Runtime struct {
	lectureID  string
	store      lecture.Store
	analyzer   analysis.Analyzer
	stt        stt.SessionHandle
	transcript *transcript.Log
	scheduler  *Scheduler
	metrics    *observe.Metrics
	log        *slog.Logger
	cfg        RuntimeConfig

	outbound    chan []byte
	schedFinals chan stt.Segment

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	finalizeOnce sync.Once
	closeOnce    sync.Once
	done         chan struct{}
}

// Compile-time interface check.
var _ Emitter = (*Runtime)(nil)

// NewRuntime assembles a session runtime around an open STT session.
func NewRuntime(lectureID string, store lecture.Store, analyzer analysis.Analyzer, handle stt.SessionHandle, cfg RuntimeConfig, logger *slog.Logger) *Runtime {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "session", "lecture_id", lectureID)

	r := &Runtime{
		lectureID:   lectureID,
		store:       store,
		analyzer:    analyzer,
		stt:         handle,
		transcript:  transcript.New(time.Now),
		metrics:     observe.DefaultMetrics(),
		log:         logger,
		cfg:         cfg,
		outbound:    make(chan []byte, cfg.OutboundBuffer),
		schedFinals: make(chan stt.Segment),
		done:        make(chan struct{}),
	}
	r.scheduler = NewScheduler(lectureID, analyzer, store, r.transcript, r, cfg.Scheduler, logger)
	return r
}

// Start marks the lecture active and launches the session goroutines: the
// interim and final transcript forwarders, the pipeline scheduler, and the
// periodic transcript snapshot. It returns immediately.
func (r *Runtime) Start(ctx context.Context) {
	r.ctx, r.cancel = context.WithCancel(context.WithoutCancel(ctx))

	if err := r.store.UpdateStatus(ctx, r.lectureID, lecture.StatusActive); err != nil {
		r.log.Error("failed to mark lecture active", "error", err)
	}

	r.wg.Add(4)
	go r.forwardInterims()
	go r.forwardFinals()
	go func() {
		defer r.wg.Done()
		r.scheduler.Run(r.ctx, r.schedFinals)
	}()
	go r.snapshotLoop()
}

// Outbound exposes the queue of marshalled events for the connection writer.
// The channel is closed when the session shuts down.
func (r *Runtime) Outbound() <-chan []byte {
	return r.outbound
}

// Done is closed once the session has fully shut down.
func (r *Runtime) Done() <-chan struct{} {
	return r.done
}

// SendAudio forwards one binary audio chunk to the STT stream.
func (r *Runtime) SendAudio(chunk []byte) error {
	return r.stt.SendAudio(chunk)
}

// Pause gates the audio stream and marks the lecture paused. Buffered
// analysis keeps running so already-spoken content is still processed.
func (r *Runtime) Pause() {
	r.stt.Pause()
	if err := r.store.UpdateStatus(r.ctx, r.lectureID, lecture.StatusPaused); err != nil {
		r.log.Error("failed to mark lecture paused", "error", err)
	}
}

// Resume reopens the audio stream and marks the lecture active again.
func (r *Runtime) Resume() {
	r.stt.Resume()
	if err := r.store.UpdateStatus(r.ctx, r.lectureID, lecture.StatusActive); err != nil {
		r.log.Error("failed to mark lecture active", "error", err)
	}
}

// Emit queues one event toward the client. It never blocks: when the queue is
// full the client has stopped draining, so the event is dropped and the
// session is torn down in the background.
func (r *Runtime) Emit(event Event) {
	frame, err := event.Marshal()
	if err != nil {
		r.log.Error("failed to encode event", "error", err, "type", event.Type)
		return
	}
	select {
	case r.outbound <- frame:
		r.metrics.RecordEventSent(r.ctx, string(event.Type))
	default:
		r.metrics.EventsDropped.Add(r.ctx, 1,
			metric.WithAttributes(observe.Attr("type", string(event.Type))),
		)
		r.log.Error("outbound queue full, closing session", "type", event.Type)
		go r.Shutdown(context.WithoutCancel(r.ctx))
	}
}

// UserResearch runs a client-requested deep-research job. It executes
// concurrently with the scheduler so an in-flight pipeline run never delays
// the answer, and it does not consume the scheduler's automatic research
// budget.
func (r *Runtime) UserResearch(selectedText, contextText string) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		r.Emit(DeepResearchStart(selectedText))

		start := time.Now()
		research, err := r.analyzer.DeepResearch(r.ctx, selectedText, contextText)
		r.metrics.LLMDuration.Record(r.ctx, time.Since(start).Seconds(),
			metric.WithAttributes(observe.Attr("op", "research")),
		)
		if err != nil {
			r.log.Warn("user deep research failed", "error", err, "selected_text", selectedText)
			return
		}

		card, err := r.store.InsertCard(r.ctx, lecture.NewCard{
			LectureID:        r.lectureID,
			Kind:             lecture.KindDeepResearch,
			Term:             selectedText,
			Content:          research.Content,
			Citations:        research.Citations,
			Badge:            lecture.BadgeResearch,
			TimestampSeconds: int(r.transcript.ElapsedSeconds()),
		})
		if err != nil {
			r.log.Error("failed to store research card", "error", err, "selected_text", selectedText)
			return
		}
		r.metrics.RecordCardCreated(r.ctx, string(lecture.KindDeepResearch))
		r.Emit(DeepResearchResult(card))
	}()
}

// End terminates the session on an explicit end_session request: it produces
// a final summary over the full transcript, finalizes the lecture with it,
// emits the summary to the client, and shuts the session down.
func (r *Runtime) End(ctx context.Context) {
	full := r.transcript.Full()

	var summary string
	if full != "" {
		start := time.Now()
		s, err := r.analyzer.Summarize(ctx, full)
		r.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(observe.Attr("op", "summarize")),
		)
		if err != nil {
			r.log.Warn("final summary failed", "error", err)
		} else {
			summary = s
		}
	}

	r.finalize(ctx, summary)
	if summary != "" {
		r.Emit(SummaryUpdate(summary))
	}
	r.Shutdown(ctx)
}

// Shutdown stops the session: it cancels the goroutines, closes the STT
// stream, waits for everything to drain, finalizes the lecture if no earlier
// path already did, and closes the outbound queue. Safe to call more than
// once and from any goroutine.
func (r *Runtime) Shutdown(ctx context.Context) {
	r.closeOnce.Do(func() {
		r.cancel()
		if err := r.stt.Close(); err != nil {
			r.log.Warn("failed to close transcription stream", "error", err)
		}
		r.wg.Wait()

		// Disconnect without end_session: finalize without a summary so the
		// transcript and duration survive.
		r.finalize(ctx, "")

		close(r.outbound)
		close(r.done)
		r.log.Info("session closed")
	})
}

// finalize persists the terminal lecture state exactly once.
func (r *Runtime) finalize(ctx context.Context, summary string) {
	r.finalizeOnce.Do(func() {
		duration := int(r.transcript.ElapsedSeconds())
		if err := r.store.FinalizeLecture(ctx, r.lectureID, duration, summary, r.transcript.Full()); err != nil {
			r.log.Error("failed to finalize lecture", "error", err)
		}
	})
}

// forwardInterims relays volatile interim transcripts straight to the client.
func (r *Runtime) forwardInterims() {
	defer r.wg.Done()
	for seg := range r.stt.Interims() {
		if text := strings.TrimSpace(seg.Text); text != "" {
			r.Emit(TranscriptInterim(text))
		}
	}
}

// forwardFinals appends finalized utterances to the transcript log, announces
// them to the client, and hands them to the scheduler. The transcript append
// happens first so a pipeline run triggered by the segment sees it.
func (r *Runtime) forwardFinals() {
	defer r.wg.Done()
	defer close(r.schedFinals)

	for seg := range r.stt.Finals() {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}

		r.transcript.Append(text)

		ts := int(seg.ElapsedSeconds)
		if seg.ElapsedSeconds <= 0 {
			ts = int(r.transcript.ElapsedSeconds())
		}
		r.Emit(TranscriptFinal(text, ts))

		select {
		case r.schedFinals <- seg:
		case <-r.ctx.Done():
			return
		}
	}
}

// snapshotLoop persists the accumulated transcript periodically so a crash
// loses at most a few seconds of text.
func (r *Runtime) snapshotLoop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cfg.SnapshotInterval)
	defer ticker.Stop()

	lastLen := 0
	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			if n := r.transcript.Len(); n != lastLen {
				lastLen = n
				if err := r.store.UpdateTranscript(r.ctx, r.lectureID, r.transcript.Full()); err != nil {
					r.log.Warn("transcript snapshot failed", "error", err)
				}
			}
		}
	}
}
