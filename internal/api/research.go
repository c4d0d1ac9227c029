package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/lectern-ai/lectern/internal/lecture"
)

// deepResearchRequest is the body of POST /api/research/deep. Context is
// optional surrounding transcript text that grounds the research.
type deepResearchRequest struct {
	LectureID    string `json:"lecture_id"`
	SelectedText string `json:"selected_text"`
	Context      string `json:"context"`
}

// handleDeepResearch runs a synchronous deep-research job for clients that
// are not on a live session, typically when reviewing a past lecture. The
// resulting card is persisted and returned.
func (s *Server) handleDeepResearch(w http.ResponseWriter, r *http.Request) {
	var req deepResearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	selected := strings.TrimSpace(req.SelectedText)
	if selected == "" {
		writeError(w, http.StatusBadRequest, "selected_text is required")
		return
	}

	if _, err := s.store.GetLecture(r.Context(), req.LectureID); err != nil {
		if errors.Is(err, lecture.ErrNotFound) {
			writeError(w, http.StatusNotFound, "lecture not found")
			return
		}
		s.log.Error("get lecture failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to load lecture")
		return
	}

	research, err := s.analyzer.DeepResearch(r.Context(), selected, req.Context)
	if err != nil {
		s.log.Warn("deep research failed", "err", err, "selected_text", selected)
		writeError(w, http.StatusBadGateway, "research backend unavailable")
		return
	}

	card, err := s.store.InsertCard(r.Context(), lecture.NewCard{
		LectureID: req.LectureID,
		Kind:      lecture.KindDeepResearch,
		Term:      selected,
		Content:   research.Content,
		Citations: research.Citations,
		Badge:     lecture.BadgeResearch,
	})
	if err != nil {
		s.log.Error("store research card failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to store card")
		return
	}

	writeJSON(w, http.StatusCreated, card)
}
