// Package pulse provides a Smallest.ai-backed STT provider using the Pulse
// streaming WebSocket API. It implements the stt.Provider interface.
package pulse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	"github.com/lectern-ai/lectern/pkg/provider/stt"
)

const (
	pulseEndpoint     = "wss://waves-api.smallest.ai/api/v1/pulse/get_text"
	defaultLanguage   = "en"
	defaultEncoding   = "linear16"
	defaultSampleRate = 16000

	// drainWindow bounds how long Close waits for the vendor to flush its tail
	// hypothesis after the finalize frame.
	drainWindow = 3 * time.Second
)

// finalizeFrame asks Pulse to commit any buffered audio as a final segment.
var finalizeFrame = []byte(`{"type":"finalize"}`)

// Option is a functional option for configuring the Pulse Provider.
type Option func(*Provider)

// WithBaseURL overrides the default Pulse WebSocket endpoint. Intended for
// tests and self-hosted gateways.
func WithBaseURL(u string) Option {
	return func(p *Provider) {
		p.baseURL = u
	}
}

// WithLanguage sets the default recognition language (e.g., "en").
func WithLanguage(language string) Option {
	return func(p *Provider) {
		p.language = language
	}
}

// WithEncoding sets the default raw audio encoding (e.g., "linear16").
func WithEncoding(encoding string) Option {
	return func(p *Provider) {
		p.encoding = encoding
	}
}

// WithSampleRate sets the default audio sample rate in Hz.
func WithSampleRate(rate int) Option {
	return func(p *Provider) {
		p.sampleRate = rate
	}
}

// WithWordTimestamps toggles word-level timestamps in vendor responses.
func WithWordTimestamps(enabled bool) Option {
	return func(p *Provider) {
		p.wordTimestamps = enabled
	}
}

// Provider implements stt.Provider backed by the Smallest.ai Pulse streaming API.
type Provider struct {
	apiKey         string
	baseURL        string
	language       string
	encoding       string
	sampleRate     int
	wordTimestamps bool
}

// New creates a new Pulse Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("pulse: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:         apiKey,
		baseURL:        pulseEndpoint,
		language:       defaultLanguage,
		encoding:       defaultEncoding,
		sampleRate:     defaultSampleRate,
		wordTimestamps: true,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Capabilities implements stt.Provider.
func (p *Provider) Capabilities() stt.Capabilities {
	return stt.Capabilities{
		Vendor:         "smallest-pulse",
		Streaming:      true,
		InterimResults: true,
	}
}

// StartSession opens a streaming transcription session with Pulse.
// It respects cfg.Language, cfg.Encoding, and cfg.SampleRate.
func (p *Provider) StartSession(ctx context.Context, cfg stt.SessionConfig) (stt.SessionHandle, error) {
	wsURL, err := p.buildURL(cfg)
	if err != nil {
		return nil, fmt.Errorf("pulse: build URL: %w", err)
	}

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+p.apiKey)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: headers,
	})
	if err != nil {
		return nil, fmt.Errorf("pulse: dial: %w", err)
	}

	sess := &session{
		conn:     conn,
		interims: make(chan stt.Segment, 64),
		finals:   make(chan stt.Segment, 64),
		audio:    make(chan []byte, 256),
		done:     make(chan struct{}),
		readDone: make(chan struct{}),
		started:  time.Now(),
	}

	sess.wg.Add(2)
	go sess.readLoop(ctx)
	go sess.writeLoop(ctx)

	return sess, nil
}

// buildURL constructs the Pulse streaming endpoint URL for the given config.
func (p *Provider) buildURL(cfg stt.SessionConfig) (string, error) {
	u, err := url.Parse(p.baseURL)
	if err != nil {
		return "", err
	}

	lang := cfg.Language
	if lang == "" {
		lang = p.language
	}
	enc := cfg.Encoding
	if enc == "" {
		enc = p.encoding
	}
	sr := cfg.SampleRate
	if sr == 0 {
		sr = p.sampleRate
	}

	q := u.Query()
	q.Set("language", lang)
	q.Set("encoding", enc)
	q.Set("sample_rate", strconv.Itoa(sr))
	q.Set("word_timestamps", strconv.FormatBool(p.wordTimestamps))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ---- session ----

// pulseResponse is the JSON structure Pulse sends for a transcription result.
// A missing is_final field means the segment is final.
type pulseResponse struct {
	Transcript string `json:"transcript"`
	IsFinal    *bool  `json:"is_final"`
}

// session is a live Pulse streaming session. It implements stt.SessionHandle.
type session struct {
	conn     *websocket.Conn
	interims chan stt.Segment
	finals   chan stt.Segment
	audio    chan []byte

	started time.Time
	paused  atomic.Bool

	done     chan struct{}
	readDone chan struct{}
	once     sync.Once
	wg       sync.WaitGroup
}

// SendAudio queues a raw audio chunk for delivery to Pulse. Chunks are dropped
// while the session is paused.
func (s *session) SendAudio(chunk []byte) error {
	if s.paused.Load() {
		return nil
	}
	select {
	case <-s.done:
		return stt.ErrSessionClosed
	default:
	}
	select {
	case s.audio <- chunk:
		return nil
	case <-s.done:
		return stt.ErrSessionClosed
	}
}

// Pause closes the audio gate. Subsequent SendAudio calls discard their chunks.
func (s *session) Pause() { s.paused.Store(true) }

// Resume reopens the audio gate.
func (s *session) Resume() { s.paused.Store(false) }

// Interims returns the channel of interim segments.
func (s *session) Interims() <-chan stt.Segment { return s.interims }

// Finals returns the channel of final segments.
func (s *session) Finals() <-chan stt.Segment { return s.finals }

// Close terminates the session cleanly. It sends the finalize frame so Pulse
// flushes its tail hypothesis, waits up to drainWindow for the remaining
// segments, then tears the connection down.
func (s *session) Close() error {
	s.once.Do(func() {
		close(s.done)
		_ = s.conn.Write(context.Background(), websocket.MessageText, finalizeFrame)
		select {
		case <-s.readDone:
		case <-time.After(drainWindow):
		}
		s.conn.Close(websocket.StatusNormalClosure, "session closed")
		s.wg.Wait()
	})
	return nil
}

// writeLoop reads from the audio channel and sends binary messages to Pulse.
func (s *session) writeLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case chunk, ok := <-s.audio:
			if !ok {
				return
			}
			if err := s.conn.Write(ctx, websocket.MessageBinary, chunk); err != nil {
				return
			}
		case <-s.done:
			// Drain already-queued audio before exiting so the finalize frame
			// commits everything the caller sent.
			for {
				select {
				case chunk, ok := <-s.audio:
					if !ok {
						return
					}
					_ = s.conn.Write(ctx, websocket.MessageBinary, chunk)
				default:
					return
				}
			}
		}
	}
}

// readLoop receives JSON messages from Pulse and dispatches them to the
// interims and finals channels.
func (s *session) readLoop(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.readDone)
	defer close(s.interims)
	defer close(s.finals)

	for {
		_, msg, err := s.conn.Read(ctx)
		if err != nil {
			// Normal close or context cancellation.
			return
		}

		seg, ok := parsePulseResponse(msg)
		if !ok {
			continue
		}
		seg.ElapsedSeconds = time.Since(s.started).Seconds()

		if seg.Final {
			select {
			case s.finals <- seg:
			case <-s.done:
			}
		} else {
			select {
			case s.interims <- seg:
			case <-s.done:
			}
		}
	}
}

// parsePulseResponse parses a raw Pulse WebSocket message into a Segment.
// Returns (Segment, true) on success, or (zero, false) if the message should be
// ignored (acknowledgements, empty transcripts, unparsable frames).
func parsePulseResponse(data []byte) (stt.Segment, bool) {
	var resp pulseResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return stt.Segment{}, false
	}
	if resp.Transcript == "" {
		return stt.Segment{}, false
	}

	final := true
	if resp.IsFinal != nil {
		final = *resp.IsFinal
	}

	return stt.Segment{
		Text:  resp.Transcript,
		Final: final,
	}, true
}
