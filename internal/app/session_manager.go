package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lectern-ai/lectern/internal/analysis"
	"github.com/lectern-ai/lectern/internal/lecture"
	"github.com/lectern-ai/lectern/internal/observe"
	"github.com/lectern-ai/lectern/internal/session"
	"github.com/lectern-ai/lectern/pkg/provider/stt"
)

// ErrSessionExists is returned when a live session is already attached to the
// requested lecture. Each lecture carries at most one session at a time.
// It wraps [session.ErrAlreadyActive].
var ErrSessionExists = fmt.Errorf("app: %w", session.ErrAlreadyActive)

// SessionManager tracks the live session per lecture and owns session
// creation: it opens the STT stream, assembles the runtime, and unregisters
// the session when it ends. All exported methods are safe for concurrent use.
type SessionManager struct {
	store      lecture.Store
	analyzer   analysis.Analyzer
	stt        stt.Provider
	sttCfg     stt.SessionConfig
	runtimeCfg session.RuntimeConfig
	metrics    *observe.Metrics
	log        *slog.Logger

	mu       sync.Mutex
	sessions map[string]*session.Runtime
}

// NewSessionManager builds a session manager over the given backends.
func NewSessionManager(store lecture.Store, analyzer analysis.Analyzer, provider stt.Provider, sttCfg stt.SessionConfig, runtimeCfg session.RuntimeConfig, logger *slog.Logger) *SessionManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionManager{
		store:      store,
		analyzer:   analyzer,
		stt:        provider,
		sttCfg:     sttCfg,
		runtimeCfg: runtimeCfg,
		metrics:    observe.DefaultMetrics(),
		log:        logger.With("component", "sessions"),
		sessions:   make(map[string]*session.Runtime),
	}
}

// StartSession opens a live session for the lecture: it starts the STT
// stream, launches the runtime, and registers it. Returns [ErrSessionExists]
// when the lecture already has one.
func (m *SessionManager) StartSession(ctx context.Context, lectureID string) (*session.Runtime, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, live := m.sessions[lectureID]; live {
		return nil, fmt.Errorf("%w: %s", ErrSessionExists, lectureID)
	}

	handle, err := m.stt.StartSession(ctx, m.sttCfg)
	if err != nil {
		return nil, fmt.Errorf("app: start transcription stream: %w", err)
	}

	r := session.NewRuntime(lectureID, m.store, m.analyzer, handle, m.runtimeCfg, m.log)
	r.Start(ctx)
	m.sessions[lectureID] = r
	m.metrics.ActiveSessions.Add(ctx, 1)
	m.log.Info("session started", "lecture_id", lectureID)

	go m.reap(lectureID, r)
	return r, nil
}

// reap unregisters the session once its runtime has fully shut down.
func (m *SessionManager) reap(lectureID string, r *session.Runtime) {
	<-r.Done()

	m.mu.Lock()
	if m.sessions[lectureID] == r {
		delete(m.sessions, lectureID)
	}
	m.mu.Unlock()

	m.metrics.ActiveSessions.Add(context.Background(), -1)
	m.log.Info("session ended", "lecture_id", lectureID)
}

// Get returns the live session for a lecture, if any.
func (m *SessionManager) Get(lectureID string) (*session.Runtime, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.sessions[lectureID]
	return r, ok
}

// ActiveCount returns the number of live sessions.
func (m *SessionManager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// DrainAll shuts down every live session and waits for them to finish or for
// ctx to expire. Sessions finalize their lectures on the way down.
func (m *SessionManager) DrainAll(ctx context.Context) {
	m.mu.Lock()
	live := make([]*session.Runtime, 0, len(m.sessions))
	for _, r := range m.sessions {
		live = append(live, r)
	}
	m.mu.Unlock()

	if len(live) == 0 {
		return
	}
	m.log.Info("draining sessions", "count", len(live))

	for _, r := range live {
		go r.Shutdown(ctx)
	}
	deadline := time.After(10 * time.Second)
	for _, r := range live {
		select {
		case <-r.Done():
		case <-ctx.Done():
			return
		case <-deadline:
			m.log.Warn("session drain timed out")
			return
		}
	}
}
