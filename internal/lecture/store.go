package lecture

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Store operations that reference a lecture,
// card, or takeaway that does not exist.
var ErrNotFound = errors.New("lecture: not found")

// Patch carries the optional fields of a partial lecture update.
// Nil fields are left untouched.
type Patch struct {
	Title           *string
	Status          *Status
	Summary         *string
	DurationSeconds *int
}

// NewCard carries everything needed to insert a card. The store assigns
// ID and CreatedAt.
type NewCard struct {
	LectureID        string
	Kind             CardKind
	Term             string
	Content          string
	Citations        []Citation
	Badge            Badge
	TimestampSeconds int
}

// NewTakeaway carries everything needed to insert a takeaway.
type NewTakeaway struct {
	LectureID        string
	Text             string
	TimestampSeconds int
}

// Store persists lectures and their derived artifacts.
//
// Implementations must be safe for concurrent use. Operations that reference
// a missing lecture return an error wrapping [ErrNotFound].
type Store interface {
	// CreateLecture inserts a new lecture with status idle and returns it.
	CreateLecture(ctx context.Context, title string) (Lecture, error)

	// GetLecture returns the lecture with the given id, CardCount included.
	GetLecture(ctx context.Context, id string) (Lecture, error)

	// ListLectures returns all lectures ordered by most recently updated first,
	// CardCount included.
	ListLectures(ctx context.Context) ([]Lecture, error)

	// UpdateLecture applies the non-nil fields of patch and returns the
	// updated lecture.
	UpdateLecture(ctx context.Context, id string, patch Patch) (Lecture, error)

	// DeleteLecture removes the lecture and, cascading, its cards and takeaways.
	DeleteLecture(ctx context.Context, id string) error

	// UpdateStatus sets the lecture's status.
	UpdateStatus(ctx context.Context, id string, status Status) error

	// UpdateTranscript replaces the lecture's stored transcript. The live
	// session calls this periodically so a crash loses at most a few seconds.
	UpdateTranscript(ctx context.Context, id string, transcript string) error

	// UpdateSummary replaces the lecture's rolling summary.
	UpdateSummary(ctx context.Context, id string, summary string) error

	// FinalizeLecture marks the lecture completed and freezes its duration.
	// Empty summary or transcript arguments leave the stored values untouched,
	// so a failed final summary does not erase the last rolling one.
	FinalizeLecture(ctx context.Context, id string, durationSeconds int, summary, transcript string) error

	// InsertCard stores a card and returns it with ID and CreatedAt assigned.
	InsertCard(ctx context.Context, c NewCard) (Card, error)

	// InsertTakeaway stores a takeaway and returns it with ID and CreatedAt
	// assigned.
	InsertTakeaway(ctx context.Context, t NewTakeaway) (Takeaway, error)

	// ListCards returns the lecture's cards ordered by creation time.
	ListCards(ctx context.Context, lectureID string) ([]Card, error)

	// ListTakeaways returns the lecture's takeaways ordered by creation time.
	ListTakeaways(ctx context.Context, lectureID string) ([]Takeaway, error)

	// Ping reports whether the backing storage is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the store.
	Close()
}
