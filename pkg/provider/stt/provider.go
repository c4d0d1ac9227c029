// Package stt defines the Provider interface for streaming Speech-to-Text backends.
//
// An STT provider wraps a real-time transcription service (e.g., Smallest.ai
// Pulse) and exposes a uniform streaming interface. The central abstraction is
// SessionHandle: once opened, a session accepts raw audio chunks and emits two
// streams of Segment values: low-latency interims for responsiveness and
// authoritative finals for the lecture transcript.
//
// Implementations must be safe for concurrent use. Audio input and segment
// output channels are goroutine-safe by construction.
package stt

import (
	"context"
	"errors"
)

// ErrSessionClosed is returned by SendAudio once a session has been closed or
// its upstream connection has been lost.
var ErrSessionClosed = errors.New("stt: session is closed")

// SessionConfig describes the audio format and recognition hints for a new STT
// session. Zero values fall back to the provider's configured defaults.
type SessionConfig struct {
	// Language is the language code for recognition (e.g., "en").
	Language string

	// Encoding is the raw audio encoding (e.g., "linear16").
	Encoding string

	// SampleRate is the audio sample rate in Hz (e.g., 16000).
	SampleRate int
}

// SessionHandle represents an open STT streaming session. It is an interface so
// that test code can provide mock implementations without requiring a live
// provider connection.
//
// Callers must call Close when the session is no longer needed. Failing to do so
// may leak goroutines and network connections inside the provider implementation.
// All methods must be safe for concurrent use.
type SessionHandle interface {
	// SendAudio delivers a chunk of raw audio bytes to the provider for
	// transcription. The chunk must match the encoding and sample rate agreed in
	// SessionConfig. While the session is paused the chunk is silently dropped.
	// Calling SendAudio after Close returns ErrSessionClosed.
	SendAudio(chunk []byte) error

	// Pause stops forwarding audio upstream. Chunks passed to SendAudio while
	// paused are discarded, not buffered. Segments for audio already sent may
	// still arrive.
	Pause()

	// Resume reopens the audio gate after a Pause.
	Resume()

	// Interims returns a read-only channel that emits low-latency interim Segment
	// values as the provider makes preliminary guesses. These are suitable for
	// live captioning but must not be written to the transcript log.
	// The channel is closed when the session ends.
	Interims() <-chan Segment

	// Finals returns a read-only channel that emits authoritative Segment values
	// once the provider has committed to a recognition result. These are the
	// values that belong in the transcript log and drive analysis.
	// The channel is closed when the session ends.
	Finals() <-chan Segment

	// Close terminates the session, asks the provider to flush pending audio,
	// and releases all associated resources. After Close returns, the Interims
	// and Finals channels are closed. Calling Close more than once is safe and
	// returns nil.
	Close() error
}

// Provider is the abstraction over any streaming STT backend.
//
// Implementations must be safe for concurrent use. Multiple sessions may be open
// simultaneously (one per live lecture).
type Provider interface {
	// StartSession opens a new streaming transcription session with the given
	// audio format configuration. The returned SessionHandle is ready to accept
	// audio immediately.
	//
	// Returns an error if the provider cannot establish the session (e.g.,
	// authentication failure, unsupported configuration, or ctx already cancelled).
	// The caller owns the SessionHandle and must call Close when done.
	StartSession(ctx context.Context, cfg SessionConfig) (SessionHandle, error)

	// Capabilities returns static metadata about the backing vendor.
	Capabilities() Capabilities
}
