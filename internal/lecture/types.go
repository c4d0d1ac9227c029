// Package lecture defines the persistent domain model of the lecture
// assistant (lectures, definition cards, and takeaways) together with the
// [Store] interface and its PostgreSQL and in-memory implementations.
//
// A Lecture owns its Cards and Takeaways; deleting a lecture cascades to both.
// Cards and Takeaways are immutable once inserted.
package lecture

import "time"

// Status is the lifecycle state of a lecture.
// It progresses monotonically: idle → active → (paused ↔ active)* → completed.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
)

// IsValid reports whether s is a recognised lecture status.
func (s Status) IsValid() bool {
	switch s {
	case StatusIdle, StatusActive, StatusPaused, StatusCompleted:
		return true
	}
	return false
}

// CardKind identifies which path produced a card.
type CardKind string

const (
	// KindAutoDefine marks cards generated by the scheduled definition pipeline.
	KindAutoDefine CardKind = "auto_define"

	// KindDeepResearch marks cards generated by deep research, whether
	// scheduler-initiated or user-triggered.
	KindDeepResearch CardKind = "deep_research"

	// KindConcept marks manually curated concept cards.
	KindConcept CardKind = "concept"
)

// IsValid reports whether k is a recognised card kind.
func (k CardKind) IsValid() bool {
	switch k {
	case KindAutoDefine, KindDeepResearch, KindConcept:
		return true
	}
	return false
}

// Badge categorises what a card is about for display purposes.
type Badge string

const (
	BadgeConcept  Badge = "concept"
	BadgePerson   Badge = "person"
	BadgeEvent    Badge = "event"
	BadgeResearch Badge = "research"
)

// IsValid reports whether b is a recognised badge.
func (b Badge) IsValid() bool {
	switch b {
	case BadgeConcept, BadgePerson, BadgeEvent, BadgeResearch:
		return true
	}
	return false
}

// Citation is a web source attached to a card.
type Citation struct {
	Title  string `json:"title"`
	URL    string `json:"url"`
	Domain string `json:"domain"`
}

// Lecture is a recorded lecture session and its derived state.
// Summary and Transcript grow while the session is live and are frozen by
// FinalizeLecture. CardCount is computed at query time, never stored.
type Lecture struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Status          Status    `json:"status"`
	Summary         string    `json:"summary,omitempty"`
	Transcript      string    `json:"transcript,omitempty"`
	DurationSeconds int       `json:"duration_seconds"`
	CardCount       int       `json:"card_count"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Card is a definition or research result produced during a lecture.
// TimestampSeconds is the lecture-relative time at which the card was created.
type Card struct {
	ID               string     `json:"id"`
	LectureID        string     `json:"lecture_id"`
	Kind             CardKind   `json:"type"`
	Term             string     `json:"term"`
	Content          string     `json:"content"`
	Citations        []Citation `json:"citations"`
	Badge            Badge      `json:"badge_type"`
	TimestampSeconds int        `json:"lecture_timestamp_seconds"`
	CreatedAt        time.Time  `json:"created_at"`
}

// Takeaway is a key point a student should remember, extracted live.
type Takeaway struct {
	ID               string    `json:"id"`
	LectureID        string    `json:"lecture_id"`
	Text             string    `json:"text"`
	TimestampSeconds int       `json:"lecture_timestamp_seconds"`
	CreatedAt        time.Time `json:"created_at"`
}
