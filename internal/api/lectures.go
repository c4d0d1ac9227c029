package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/lectern-ai/lectern/internal/lecture"
)

// createLectureRequest is the body of POST /api/lectures.
type createLectureRequest struct {
	Title string `json:"title"`
}

// updateLectureRequest is the body of PATCH /api/lectures/{id}.
// Absent fields are left untouched.
type updateLectureRequest struct {
	Title           *string `json:"title"`
	Status          *string `json:"status"`
	Summary         *string `json:"summary"`
	DurationSeconds *int    `json:"duration_seconds"`
}

// exportPayload is the JSON export document of one lecture.
type exportPayload struct {
	Lecture   lecture.Lecture    `json:"lecture"`
	Cards     []lecture.Card     `json:"cards"`
	Takeaways []lecture.Takeaway `json:"takeaways"`
}

func (s *Server) handleListLectures(w http.ResponseWriter, r *http.Request) {
	lectures, err := s.store.ListLectures(r.Context())
	if err != nil {
		s.log.Error("list lectures failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to list lectures")
		return
	}
	if lectures == nil {
		lectures = []lecture.Lecture{}
	}
	writeJSON(w, http.StatusOK, lectures)
}

func (s *Server) handleCreateLecture(w http.ResponseWriter, r *http.Request) {
	var req createLectureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	created, err := s.store.CreateLecture(r.Context(), title)
	if err != nil {
		s.log.Error("create lecture failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to create lecture")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetLecture(w http.ResponseWriter, r *http.Request) {
	got, err := s.store.GetLecture(r.Context(), r.PathValue("id"))
	if errors.Is(err, lecture.ErrNotFound) {
		writeError(w, http.StatusNotFound, "lecture not found")
		return
	}
	if err != nil {
		s.log.Error("get lecture failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to load lecture")
		return
	}
	writeJSON(w, http.StatusOK, got)
}

func (s *Server) handleUpdateLecture(w http.ResponseWriter, r *http.Request) {
	var req updateLectureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	patch := lecture.Patch{
		Title:           req.Title,
		Summary:         req.Summary,
		DurationSeconds: req.DurationSeconds,
	}
	if req.Status != nil {
		status := lecture.Status(*req.Status)
		if !status.IsValid() {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid status %q", *req.Status))
			return
		}
		patch.Status = &status
	}

	updated, err := s.store.UpdateLecture(r.Context(), r.PathValue("id"), patch)
	if errors.Is(err, lecture.ErrNotFound) {
		writeError(w, http.StatusNotFound, "lecture not found")
		return
	}
	if err != nil {
		s.log.Error("update lecture failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to update lecture")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteLecture(w http.ResponseWriter, r *http.Request) {
	err := s.store.DeleteLecture(r.Context(), r.PathValue("id"))
	if errors.Is(err, lecture.ErrNotFound) {
		writeError(w, http.StatusNotFound, "lecture not found")
		return
	}
	if err != nil {
		s.log.Error("delete lecture failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to delete lecture")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListCards(w http.ResponseWriter, r *http.Request) {
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

	cards, err := s.store.ListCards(r.Context(), id)
	if err != nil {
		s.log.Error("list cards failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to list cards")
		return
	}
	if cards == nil {
		cards = []lecture.Card{}
	}
	writeJSON(w, http.StatusOK, cards)
}

func (s *Server) handleListTakeaways(w http.ResponseWriter, r *http.Request) {
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

	takeaways, err := s.store.ListTakeaways(r.Context(), id)
	if err != nil {
		s.log.Error("list takeaways failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to list takeaways")
		return
	}
	if takeaways == nil {
		takeaways = []lecture.Takeaway{}
	}
	writeJSON(w, http.StatusOK, takeaways)
}

func (s *Server) handleExportLecture(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "markdown" {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported format %q", format))
		return
	}

	lec, err := s.store.GetLecture(r.Context(), id)
	if errors.Is(err, lecture.ErrNotFound) {
		writeError(w, http.StatusNotFound, "lecture not found")
		return
	}
	if err != nil {
		s.log.Error("get lecture failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to load lecture")
		return
	}

	cards, err := s.store.ListCards(r.Context(), id)
	if err != nil {
		s.log.Error("list cards failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to export lecture")
		return
	}
	takeaways, err := s.store.ListTakeaways(r.Context(), id)
	if err != nil {
		s.log.Error("list takeaways failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to export lecture")
		return
	}

	switch format {
	case "markdown":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "lecture-"+id+".md"))
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(exportMarkdown(lec, cards, takeaways))); err != nil {
			s.log.Warn("failed to write export", "err", err)
		}
	default:
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "lecture-"+id+".json"))
		writeJSON(w, http.StatusOK, exportPayload{Lecture: lec, Cards: cards, Takeaways: takeaways})
	}
}

// exportMarkdown renders a lecture with its artifacts as a markdown document.
func exportMarkdown(lec lecture.Lecture, cards []lecture.Card, takeaways []lecture.Takeaway) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", lec.Title)
	fmt.Fprintf(&b, "- Status: %s\n", lec.Status)
	fmt.Fprintf(&b, "- Duration: %s\n", formatDuration(lec.DurationSeconds))
	fmt.Fprintf(&b, "- Created: %s\n\n", lec.CreatedAt.Format("2006-01-02 15:04"))

	if lec.Summary != "" {
		b.WriteString("## Summary\n\n")
		b.WriteString(lec.Summary)
		b.WriteString("\n\n")
	}

	if len(takeaways) > 0 {
		b.WriteString("## Key Takeaways\n\n")
		for _, t := range takeaways {
			fmt.Fprintf(&b, "- [%s] %s\n", formatDuration(t.TimestampSeconds), t.Text)
		}
		b.WriteString("\n")
	}

	if len(cards) > 0 {
		b.WriteString("## Cards\n\n")
		for _, c := range cards {
			fmt.Fprintf(&b, "### %s\n\n", c.Term)
			fmt.Fprintf(&b, "*%s, at %s*\n\n", c.Badge, formatDuration(c.TimestampSeconds))
			b.WriteString(c.Content)
			b.WriteString("\n\n")
			if len(c.Citations) > 0 {
				b.WriteString("Sources:\n")
				for _, cit := range c.Citations {
					fmt.Fprintf(&b, "- [%s](%s)\n", cit.Title, cit.URL)
				}
				b.WriteString("\n")
			}
		}
	}

	if lec.Transcript != "" {
		b.WriteString("## Transcript\n\n")
		b.WriteString(lec.Transcript)
		b.WriteString("\n")
	}

	return b.String()
}

// formatDuration renders whole seconds as m:ss or h:mm:ss.
func formatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	sec := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%d:%02d", m, sec)
}
