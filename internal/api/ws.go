package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"

	"github.com/lectern-ai/lectern/internal/lecture"
	"github.com/lectern-ai/lectern/internal/session"
)

// writeTimeout bounds a single outbound frame write.
const writeTimeout = 10 * time.Second

// clientMessage is an inbound text frame on the session socket.
type clientMessage struct {
	Type         string `json:"type"`
	SelectedText string `json:"selected_text"`
	Context      string `json:"context"`
}

// handleSession upgrades the connection and bridges it to a live session
// runtime: binary frames carry audio toward the STT stream, text frames carry
// control messages, and the runtime's outbound queue flows back as text
// frames. Validation failures are answered with plain HTTP before the
// upgrade.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if _, err := s.store.GetLecture(r.Context(), id); err != nil {
		if errors.Is(err, lecture.ErrNotFound) {
			writeError(w, http.StatusNotFound, "lecture not found")
			return
		}
		s.log.Error("get lecture failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to load lecture")
		return
	}

	rt, err := s.sessions.StartSession(r.Context(), id)
	if errors.Is(err, session.ErrAlreadyActive) {
		writeError(w, http.StatusConflict, "lecture already has a live session")
		return
	}
	if err != nil {
		s.log.Error("start session failed", "err", err, "lecture_id", id)
		writeError(w, http.StatusBadGateway, "failed to start transcription stream")
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.cfg.AllowedOrigins,
	})
	if err != nil {
		s.log.Warn("websocket upgrade failed", "err", err, "lecture_id", id)
		rt.Shutdown(context.WithoutCancel(r.Context()))
		return
	}

	ctx := r.Context()
	s.log.Info("session socket open", "lecture_id", id)

	// Writer: drain the runtime's outbound queue onto the socket. When the
	// queue closes the session is over and the socket is closed cleanly.
	// The handler waits on writerDone before returning so the request
	// context cannot be cancelled while buffered events (the final
	// summary_update among them) are still in flight. Each write carries its
	// own deadline so a client that stops reading cannot pin the handler.
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		wctx := context.WithoutCancel(ctx)
		for frame := range rt.Outbound() {
			fctx, cancel := context.WithTimeout(wctx, writeTimeout)
			err := conn.Write(fctx, websocket.MessageText, frame)
			cancel()
			if err != nil {
				rt.Shutdown(wctx)
				return
			}
		}
		conn.Close(websocket.StatusNormalClosure, "session ended")
	}()

	// Reader: audio chunks and control messages until the client goes away.
read:
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			break
		}
		switch typ {
		case websocket.MessageBinary:
			if err := rt.SendAudio(data); err != nil {
				s.log.Warn("audio forward failed", "err", err, "lecture_id", id)
			}
		case websocket.MessageText:
			if s.dispatch(ctx, rt, data) {
				// end_session: the writer drains the remaining events and
				// closes the socket.
				break read
			}
		}
	}

	rt.Shutdown(context.WithoutCancel(ctx))
	<-writerDone
	s.log.Info("session socket closed", "lecture_id", id)
}

// dispatch handles one control message. It reports whether the session was
// ended. Malformed or unknown messages are ignored.
func (s *Server) dispatch(ctx context.Context, rt *session.Runtime, data []byte) (ended bool) {
	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.log.Debug("ignoring malformed control message", "err", err)
		return false
	}

	switch msg.Type {
	case "pause":
		rt.Pause()
	case "resume":
		rt.Resume()
	case "deep_research":
		selected := strings.TrimSpace(msg.SelectedText)
		if selected == "" {
			s.log.Debug("ignoring deep_research without selected_text")
			return false
		}
		rt.UserResearch(selected, msg.Context)
	case "end_session":
		rt.End(context.WithoutCancel(ctx))
		return true
	default:
		s.log.Debug("ignoring unknown control message", "type", msg.Type)
	}
	return false
}
