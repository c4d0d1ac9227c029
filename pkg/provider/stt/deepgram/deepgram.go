// Package deepgram provides a Deepgram-backed STT provider using the Deepgram
// live streaming WebSocket API. It implements the stt.Provider interface.
package deepgram

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
	deepgramEndpoint  = "wss://api.deepgram.com/v1/listen"
	defaultModel      = "nova-3"
	defaultLanguage   = "en"
	defaultEncoding   = "linear16"
	defaultSampleRate = 16000

	// drainWindow bounds how long Close waits for Deepgram to flush its tail
	// results after the CloseStream frame.
	drainWindow = 3 * time.Second
)

// closeStreamFrame asks Deepgram to commit any buffered audio as final results.
var closeStreamFrame = []byte(`{"type":"CloseStream"}`)

// Option is a functional option for configuring the Deepgram Provider.
type Option func(*Provider)

// WithBaseURL overrides the default Deepgram WebSocket endpoint. Intended for
// tests and self-hosted gateways.
func WithBaseURL(u string) Option {
	return func(p *Provider) {
		p.baseURL = u
	}
}

// WithModel sets the Deepgram model to use (e.g., "nova-3", "base").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithLanguage sets the BCP-47 language code for recognition (e.g., "en", "de-DE").
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

// Provider implements stt.Provider backed by the Deepgram streaming API.
type Provider struct {
	apiKey     string
	baseURL    string
	model      string
	language   string
	encoding   string
	sampleRate int
}

// New creates a new Deepgram Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		baseURL:    deepgramEndpoint,
		model:      defaultModel,
		language:   defaultLanguage,
		encoding:   defaultEncoding,
		sampleRate: defaultSampleRate,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Capabilities implements stt.Provider.
func (p *Provider) Capabilities() stt.Capabilities {
	return stt.Capabilities{
		Vendor:         "deepgram",
		Streaming:      true,
		InterimResults: true,
	}
}

// StartSession opens a streaming transcription session with Deepgram.
// It respects cfg.Language, cfg.Encoding, and cfg.SampleRate.
func (p *Provider) StartSession(ctx context.Context, cfg stt.SessionConfig) (stt.SessionHandle, error) {
	wsURL, err := p.buildURL(cfg)
	if err != nil {
		return nil, fmt.Errorf("deepgram: build URL: %w", err)
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+p.apiKey)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: headers,
	})
	if err != nil {
		return nil, fmt.Errorf("deepgram: dial: %w", err)
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

// buildURL constructs the Deepgram streaming endpoint URL for the given config.
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
	q.Set("model", p.model)
	q.Set("language", lang)
	q.Set("encoding", enc)
	q.Set("punctuate", "true")
	q.Set("interim_results", "true")
	q.Set("sample_rate", strconv.Itoa(sr))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ---- session ----

// deepgramResponse is the JSON structure Deepgram sends for a Results event.
type deepgramResponse struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// session is a live Deepgram streaming session. It implements stt.SessionHandle.
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

// SendAudio queues a raw audio chunk for delivery to Deepgram. Chunks are
// dropped while the session is paused.
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

// Close terminates the session cleanly. It sends the CloseStream frame so
// Deepgram flushes pending audio, waits up to drainWindow for the remaining
// results, then tears the connection down.
func (s *session) Close() error {
	s.once.Do(func() {
		close(s.done)
		_ = s.conn.Write(context.Background(), websocket.MessageText, closeStreamFrame)
		select {
		case <-s.readDone:
		case <-time.After(drainWindow):
		}
		s.conn.Close(websocket.StatusNormalClosure, "session closed")
		s.wg.Wait()
	})
	return nil
}

// writeLoop reads from the audio channel and sends binary messages to Deepgram.
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
			// Drain already-queued audio before exiting so CloseStream commits
			// everything the caller sent.
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

// readLoop receives JSON messages from Deepgram and dispatches them to the
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

		seg, ok := parseDeepgramResponse(msg)
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

// parseDeepgramResponse parses a raw Deepgram WebSocket message into a Segment.
// Returns (Segment, true) on success, or (zero, false) if the message should be
// ignored (metadata events, empty transcripts, unparsable frames).
func parseDeepgramResponse(data []byte) (stt.Segment, bool) {
	var resp deepgramResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return stt.Segment{}, false
	}
	if resp.Type != "Results" {
		return stt.Segment{}, false
	}
	if len(resp.Channel.Alternatives) == 0 {
		return stt.Segment{}, false
	}

	alt := resp.Channel.Alternatives[0]
	if alt.Transcript == "" {
		return stt.Segment{}, false
	}

	return stt.Segment{
		Text:  alt.Transcript,
		Final: resp.IsFinal,
	}, true
}
