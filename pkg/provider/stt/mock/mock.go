// Package mock provides test doubles for the stt package interfaces.
//
// Use Provider to verify that the caller starts sessions with the expected
// SessionConfig. Use Session to feed controlled Segment values and inspect
// which audio chunks were delivered.
//
// Example:
//
//	sess := &mock.Session{
//	    InterimsCh: make(chan stt.Segment, 1),
//	    FinalsCh:   make(chan stt.Segment, 1),
//	}
//	p := &mock.Provider{Session: sess}
//	handle, _ := p.StartSession(ctx, cfg)
package mock

import (
	"context"
	"sync"

	"github.com/lectern-ai/lectern/pkg/provider/stt"
)

// StartSessionCall records a single invocation of Provider.StartSession.
type StartSessionCall struct {
	// Ctx is the context passed to StartSession.
	Ctx context.Context
	// Cfg is the SessionConfig passed to StartSession.
	Cfg stt.SessionConfig
}

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// Session is the SessionHandle returned by StartSession. If nil, StartSession
	// returns a new default Session with buffered channels.
	Session stt.SessionHandle

	// StartSessionErr, if non-nil, is returned as the error from StartSession.
	StartSessionErr error

	// Caps is returned by Capabilities.
	Caps stt.Capabilities

	// StartSessionCalls records every call to StartSession.
	StartSessionCalls []StartSessionCall
}

// StartSession records the call and returns Session, StartSessionErr.
func (p *Provider) StartSession(ctx context.Context, cfg stt.SessionConfig) (stt.SessionHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.StartSessionCalls = append(p.StartSessionCalls, StartSessionCall{Ctx: ctx, Cfg: cfg})
	if p.StartSessionErr != nil {
		return nil, p.StartSessionErr
	}
	if p.Session != nil {
		return p.Session, nil
	}
	return &Session{
		InterimsCh: make(chan stt.Segment, 16),
		FinalsCh:   make(chan stt.Segment, 16),
	}, nil
}

// Capabilities returns Caps.
func (p *Provider) Capabilities() stt.Capabilities {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Caps
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.StartSessionCalls = nil
}

// Ensure Provider implements stt.Provider at compile time.
var _ stt.Provider = (*Provider)(nil)

// SendAudioCall records a single invocation of Session.SendAudio.
type SendAudioCall struct {
	// Chunk is a copy of the audio bytes that were passed to SendAudio.
	Chunk []byte
}

// Session is a mock implementation of stt.SessionHandle.
// Callers should pre-populate InterimsCh and FinalsCh with the Segment values
// they want the consumer to receive, then close them when done.
type Session struct {
	mu sync.Mutex

	// InterimsCh is the channel returned by Interims(). Callers own this channel
	// and are responsible for sending to and closing it in tests.
	InterimsCh chan stt.Segment

	// FinalsCh is the channel returned by Finals(). Callers own this channel.
	FinalsCh chan stt.Segment

	// SendAudioErr, if non-nil, is returned by every SendAudio call.
	SendAudioErr error

	// CloseErr, if non-nil, is returned by Close.
	CloseErr error

	// CloseFunc, if non-nil, runs once on the first Close call. Tests use it to
	// close InterimsCh and FinalsCh the way a real session would.
	CloseFunc func()

	closeOnce sync.Once

	// --- Call records ---

	// SendAudioCalls records every call to SendAudio in order.
	SendAudioCalls []SendAudioCall

	// PauseCallCount is the number of times Pause was called.
	PauseCallCount int

	// ResumeCallCount is the number of times Resume was called.
	ResumeCallCount int

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int

	// Paused mirrors the gate state after the latest Pause/Resume call.
	Paused bool
}

// SendAudio records the call and returns SendAudioErr. Chunks sent while
// Paused are dropped without being recorded, matching real session behaviour.
func (s *Session) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Paused {
		return nil
	}
	cp := make([]byte, len(chunk))
	copy(cp, chunk)
	s.SendAudioCalls = append(s.SendAudioCalls, SendAudioCall{Chunk: cp})
	return s.SendAudioErr
}

// Pause records the call and closes the gate.
func (s *Session) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.PauseCallCount++
	s.Paused = true
}

// Resume records the call and reopens the gate.
func (s *Session) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ResumeCallCount++
	s.Paused = false
}

// Interims returns InterimsCh. The caller must have initialised InterimsCh
// before calling this method.
func (s *Session) Interims() <-chan stt.Segment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.InterimsCh
}

// Finals returns FinalsCh.
func (s *Session) Finals() <-chan stt.Segment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.FinalsCh
}

// SendAudioCallCount returns the number of recorded SendAudio calls. Thread-safe.
func (s *Session) SendAudioCallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.SendAudioCalls)
}

// PauseCount returns PauseCallCount. Thread-safe.
func (s *Session) PauseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.PauseCallCount
}

// ResumeCount returns ResumeCallCount. Thread-safe.
func (s *Session) ResumeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ResumeCallCount
}

// Close records the call, runs CloseFunc once, and returns CloseErr.
func (s *Session) Close() error {
	s.mu.Lock()
	s.CloseCallCount++
	fn := s.CloseFunc
	err := s.CloseErr
	s.mu.Unlock()

	if fn != nil {
		s.closeOnce.Do(fn)
	}
	return err
}

// ResetCalls clears all recorded calls. Thread-safe.
func (s *Session) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SendAudioCalls = nil
	s.PauseCallCount = 0
	s.ResumeCallCount = 0
	s.CloseCallCount = 0
}

// Ensure Session implements stt.SessionHandle at compile time.
var _ stt.SessionHandle = (*Session)(nil)
