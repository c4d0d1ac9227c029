package lecture

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *MemoryStore {
	t.Helper()
	s := NewMemoryStore()

	// Deterministic clock: each call advances by one second so UpdatedAt
	// ordering is stable.
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		base = base.Add(time.Second)
		return base
	}
	return s
}

func TestMemoryStoreCreateAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.CreateLecture(ctx, "Operating Systems 101")
	if err != nil {
		t.Fatalf("CreateLecture: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected non-empty lecture ID")
	}
	if created.Status != StatusIdle {
		t.Errorf("expected status %q, got %q", StatusIdle, created.Status)
	}

	got, err := s.GetLecture(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetLecture: %v", err)
	}
	if got.Title != "Operating Systems 101" {
		t.Errorf("expected title round-trip, got %q", got.Title)
	}
	if got.CardCount != 0 {
		t.Errorf("expected zero card count, got %d", got.CardCount)
	}
}

func TestMemoryStoreGetUnknownLecture(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetLecture(context.Background(), "no-such-id")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreListOrdersByUpdatedAt(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, _ := s.CreateLecture(ctx, "first")
	second, _ := s.CreateLecture(ctx, "second")

	// Touching the older lecture must move it to the front.
	if err := s.UpdateStatus(ctx, first.ID, StatusActive); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	list, err := s.ListLectures(ctx)
	if err != nil {
		t.Fatalf("ListLectures: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 lectures, got %d", len(list))
	}
	if list[0].ID != first.ID || list[1].ID != second.ID {
		t.Errorf("expected most recently updated first, got [%s %s]", list[0].Title, list[1].Title)
	}
}

func TestMemoryStoreUpdateLecturePatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	l, _ := s.CreateLecture(ctx, "draft title")

	title := "Distributed Systems"
	status := StatusPaused
	updated, err := s.UpdateLecture(ctx, l.ID, Patch{Title: &title, Status: &status})
	if err != nil {
		t.Fatalf("UpdateLecture: %v", err)
	}
	if updated.Title != title {
		t.Errorf("expected title %q, got %q", title, updated.Title)
	}
	if updated.Status != StatusPaused {
		t.Errorf("expected status %q, got %q", StatusPaused, updated.Status)
	}
	if updated.Summary != "" {
		t.Errorf("summary must stay untouched by a nil patch field, got %q", updated.Summary)
	}
}

func TestMemoryStoreDeleteCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	l, _ := s.CreateLecture(ctx, "to delete")
	if _, err := s.InsertCard(ctx, NewCard{
		LectureID: l.ID, Kind: KindAutoDefine, Term: "paging",
		Content: "Paging divides memory into fixed-size frames.", Badge: BadgeConcept,
	}); err != nil {
		t.Fatalf("InsertCard: %v", err)
	}
	if _, err := s.InsertTakeaway(ctx, NewTakeaway{LectureID: l.ID, Text: "memory is virtual"}); err != nil {
		t.Fatalf("InsertTakeaway: %v", err)
	}

	if err := s.DeleteLecture(ctx, l.ID); err != nil {
		t.Fatalf("DeleteLecture: %v", err)
	}
	if _, err := s.GetLecture(ctx, l.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if _, err := s.ListCards(ctx, l.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected cascade to remove cards, got %v", err)
	}
}

func TestMemoryStoreFinalizeKeepsLastValuesOnEmptyArgs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	l, _ := s.CreateLecture(ctx, "finalize")
	if err := s.UpdateSummary(ctx, l.ID, "rolling summary"); err != nil {
		t.Fatalf("UpdateSummary: %v", err)
	}
	if err := s.UpdateTranscript(ctx, l.ID, "the transcript so far"); err != nil {
		t.Fatalf("UpdateTranscript: %v", err)
	}

	// Empty summary and transcript must not erase the stored values.
	if err := s.FinalizeLecture(ctx, l.ID, 125, "", ""); err != nil {
		t.Fatalf("FinalizeLecture: %v", err)
	}

	got, err := s.GetLecture(ctx, l.ID)
	if err != nil {
		t.Fatalf("GetLecture: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Errorf("expected status completed, got %q", got.Status)
	}
	if got.DurationSeconds != 125 {
		t.Errorf("expected duration 125, got %d", got.DurationSeconds)
	}
	if got.Summary != "rolling summary" {
		t.Errorf("finalize with empty summary overwrote stored summary: %q", got.Summary)
	}
	if got.Transcript != "the transcript so far" {
		t.Errorf("finalize with empty transcript overwrote stored transcript: %q", got.Transcript)
	}
}

func TestMemoryStoreFinalizeReplacesWithNonEmptyArgs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	l, _ := s.CreateLecture(ctx, "finalize")
	if err := s.FinalizeLecture(ctx, l.ID, 60, "final summary", "full transcript"); err != nil {
		t.Fatalf("FinalizeLecture: %v", err)
	}

	got, _ := s.GetLecture(ctx, l.ID)
	if got.Summary != "final summary" || got.Transcript != "full transcript" {
		t.Errorf("expected final values stored, got summary=%q transcript=%q", got.Summary, got.Transcript)
	}
}

func TestMemoryStoreCardsAndCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	l, _ := s.CreateLecture(ctx, "cards")

	card, err := s.InsertCard(ctx, NewCard{
		LectureID: l.ID,
		Kind:      KindDeepResearch,
		Term:      "Raft",
		Content:   "**What it is:** a consensus algorithm.",
		Citations: []Citation{{Title: "Raft paper", URL: "https://raft.github.io/raft.pdf", Domain: "raft.github.io"}},
		Badge:     BadgeResearch,

		TimestampSeconds: 42,
	})
	if err != nil {
		t.Fatalf("InsertCard: %v", err)
	}
	if card.ID == "" || card.CreatedAt.IsZero() {
		t.Fatal("expected store to assign ID and CreatedAt")
	}

	cards, err := s.ListCards(ctx, l.ID)
	if err != nil {
		t.Fatalf("ListCards: %v", err)
	}
	if len(cards) != 1 || cards[0].Term != "Raft" {
		t.Fatalf("unexpected cards: %+v", cards)
	}

	got, _ := s.GetLecture(ctx, l.ID)
	if got.CardCount != 1 {
		t.Errorf("expected card count 1, got %d", got.CardCount)
	}
}

func TestMemoryStoreInsertCardNilCitations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	l, _ := s.CreateLecture(ctx, "nil citations")
	card, err := s.InsertCard(ctx, NewCard{
		LectureID: l.ID, Kind: KindAutoDefine, Term: "mutex",
		Content: "A mutual exclusion lock.", Badge: BadgeConcept,
	})
	if err != nil {
		t.Fatalf("InsertCard: %v", err)
	}
	if card.Citations == nil {
		t.Error("expected empty citations slice, not nil, so JSON encodes [] rather than null")
	}
}

func TestMemoryStoreInsertForUnknownLecture(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.InsertCard(ctx, NewCard{LectureID: "missing"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("InsertCard: expected ErrNotFound, got %v", err)
	}
	if _, err := s.InsertTakeaway(ctx, NewTakeaway{LectureID: "missing"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("InsertTakeaway: expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreTakeaways(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	l, _ := s.CreateLecture(ctx, "takeaways")
	for _, text := range []string{"first point", "second point"} {
		if _, err := s.InsertTakeaway(ctx, NewTakeaway{LectureID: l.ID, Text: text, TimestampSeconds: 10}); err != nil {
			t.Fatalf("InsertTakeaway: %v", err)
		}
	}

	takeaways, err := s.ListTakeaways(ctx, l.ID)
	if err != nil {
		t.Fatalf("ListTakeaways: %v", err)
	}
	if len(takeaways) != 2 {
		t.Fatalf("expected 2 takeaways, got %d", len(takeaways))
	}
	if takeaways[0].Text != "first point" || takeaways[1].Text != "second point" {
		t.Errorf("expected insertion order preserved, got %+v", takeaways)
	}
}

func TestStatusAndKindValidation(t *testing.T) {
	for _, s := range []Status{StatusIdle, StatusActive, StatusPaused, StatusCompleted} {
		if !s.IsValid() {
			t.Errorf("status %q should be valid", s)
		}
	}
	if Status("running").IsValid() {
		t.Error("unknown status should be invalid")
	}

	for _, k := range []CardKind{KindAutoDefine, KindDeepResearch, KindConcept} {
		if !k.IsValid() {
			t.Errorf("kind %q should be valid", k)
		}
	}
	if CardKind("summary").IsValid() {
		t.Error("unknown kind should be invalid")
	}

	for _, b := range []Badge{BadgeConcept, BadgePerson, BadgeEvent, BadgeResearch} {
		if !b.IsValid() {
			t.Errorf("badge %q should be valid", b)
		}
	}
	if Badge("misc").IsValid() {
		t.Error("unknown badge should be invalid")
	}
}
