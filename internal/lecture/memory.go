package lecture

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Compile-time interface check.
var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-memory Store implementation for development and tests.
// Data does not survive a restart. All operations are safe for concurrent use.
type MemoryStore struct {
	mu        sync.RWMutex
	lectures  map[string]*Lecture
	cards     map[string][]Card     // lecture ID -> cards in insertion order
	takeaways map[string][]Takeaway // lecture ID -> takeaways in insertion order
	now       func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		lectures:  make(map[string]*Lecture),
		cards:     make(map[string][]Card),
		takeaways: make(map[string][]Takeaway),
		now:       time.Now,
	}
}

// CreateLecture implements Store.
func (m *MemoryStore) CreateLecture(_ context.Context, title string) (Lecture, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	l := Lecture{
		ID:        uuid.NewString(),
		Title:     title,
		Status:    StatusIdle,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.lectures[l.ID] = &l
	return l, nil
}

// GetLecture implements Store.
func (m *MemoryStore) GetLecture(_ context.Context, id string) (Lecture, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	l, ok := m.lectures[id]
	if !ok {
		return Lecture{}, fmt.Errorf("get lecture %q: %w", id, ErrNotFound)
	}
	out := *l
	out.CardCount = len(m.cards[id])
	return out, nil
}

// ListLectures implements Store.
func (m *MemoryStore) ListLectures(_ context.Context) ([]Lecture, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Lecture, 0, len(m.lectures))
	for id, l := range m.lectures {
		cp := *l
		cp.CardCount = len(m.cards[id])
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

// UpdateLecture implements Store.
func (m *MemoryStore) UpdateLecture(_ context.Context, id string, patch Patch) (Lecture, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.lectures[id]
	if !ok {
		return Lecture{}, fmt.Errorf("update lecture %q: %w", id, ErrNotFound)
	}
	if patch.Title != nil {
		l.Title = *patch.Title
	}
	if patch.Status != nil {
		l.Status = *patch.Status
	}
	if patch.Summary != nil {
		l.Summary = *patch.Summary
	}
	if patch.DurationSeconds != nil {
		l.DurationSeconds = *patch.DurationSeconds
	}
	l.UpdatedAt = m.now().UTC()

	out := *l
	out.CardCount = len(m.cards[id])
	return out, nil
}

// DeleteLecture implements Store.
func (m *MemoryStore) DeleteLecture(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.lectures[id]; !ok {
		return fmt.Errorf("delete lecture %q: %w", id, ErrNotFound)
	}
	delete(m.lectures, id)
	delete(m.cards, id)
	delete(m.takeaways, id)
	return nil
}

// UpdateStatus implements Store.
func (m *MemoryStore) UpdateStatus(_ context.Context, id string, status Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.lectures[id]
	if !ok {
		return fmt.Errorf("update status of lecture %q: %w", id, ErrNotFound)
	}
	l.Status = status
	l.UpdatedAt = m.now().UTC()
	return nil
}

// UpdateTranscript implements Store.
func (m *MemoryStore) UpdateTranscript(_ context.Context, id string, transcript string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.lectures[id]
	if !ok {
		return fmt.Errorf("update transcript of lecture %q: %w", id, ErrNotFound)
	}
	l.Transcript = transcript
	l.UpdatedAt = m.now().UTC()
	return nil
}

// UpdateSummary implements Store.
func (m *MemoryStore) UpdateSummary(_ context.Context, id string, summary string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.lectures[id]
	if !ok {
		return fmt.Errorf("update summary of lecture %q: %w", id, ErrNotFound)
	}
	l.Summary = summary
	l.UpdatedAt = m.now().UTC()
	return nil
}

// FinalizeLecture implements Store.
func (m *MemoryStore) FinalizeLecture(_ context.Context, id string, durationSeconds int, summary, transcript string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.lectures[id]
	if !ok {
		return fmt.Errorf("finalize lecture %q: %w", id, ErrNotFound)
	}
	l.Status = StatusCompleted
	l.DurationSeconds = durationSeconds
	if summary != "" {
		l.Summary = summary
	}
	if transcript != "" {
		l.Transcript = transcript
	}
	l.UpdatedAt = m.now().UTC()
	return nil
}

// InsertCard implements Store.
func (m *MemoryStore) InsertCard(_ context.Context, c NewCard) (Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.lectures[c.LectureID]
	if !ok {
		return Card{}, fmt.Errorf("insert card for lecture %q: %w", c.LectureID, ErrNotFound)
	}

	citations := c.Citations
	if citations == nil {
		citations = []Citation{}
	}
	card := Card{
		ID:               uuid.NewString(),
		LectureID:        c.LectureID,
		Kind:             c.Kind,
		Term:             c.Term,
		Content:          c.Content,
		Citations:        citations,
		Badge:            c.Badge,
		TimestampSeconds: c.TimestampSeconds,
		CreatedAt:        m.now().UTC(),
	}
	m.cards[c.LectureID] = append(m.cards[c.LectureID], card)
	l.UpdatedAt = card.CreatedAt
	return card, nil
}

// InsertTakeaway implements Store.
func (m *MemoryStore) InsertTakeaway(_ context.Context, t NewTakeaway) (Takeaway, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.lectures[t.LectureID]
	if !ok {
		return Takeaway{}, fmt.Errorf("insert takeaway for lecture %q: %w", t.LectureID, ErrNotFound)
	}

	takeaway := Takeaway{
		ID:               uuid.NewString(),
		LectureID:        t.LectureID,
		Text:             t.Text,
		TimestampSeconds: t.TimestampSeconds,
		CreatedAt:        m.now().UTC(),
	}
	m.takeaways[t.LectureID] = append(m.takeaways[t.LectureID], takeaway)
	l.UpdatedAt = takeaway.CreatedAt
	return takeaway, nil
}

// ListCards implements Store.
func (m *MemoryStore) ListCards(_ context.Context, lectureID string) ([]Card, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.lectures[lectureID]; !ok {
		return nil, fmt.Errorf("list cards for lecture %q: %w", lectureID, ErrNotFound)
	}
	out := make([]Card, len(m.cards[lectureID]))
	copy(out, m.cards[lectureID])
	return out, nil
}

// ListTakeaways implements Store.
func (m *MemoryStore) ListTakeaways(_ context.Context, lectureID string) ([]Takeaway, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.lectures[lectureID]; !ok {
		return nil, fmt.Errorf("list takeaways for lecture %q: %w", lectureID, ErrNotFound)
	}
	out := make([]Takeaway, len(m.takeaways[lectureID]))
	copy(out, m.takeaways[lectureID])
	return out, nil
}

// Ping implements Store. It never fails.
func (m *MemoryStore) Ping(context.Context) error { return nil }

// Close implements Store. It is a no-op.
func (m *MemoryStore) Close() {}
