package lecture

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)

const ddlLectures = `
CREATE TABLE IF NOT EXISTS lectures (
    id               UUID         PRIMARY KEY DEFAULT gen_random_uuid(),
    title            TEXT         NOT NULL,
    status           TEXT         NOT NULL DEFAULT 'idle'
        CHECK (status IN ('idle', 'active', 'paused', 'completed')),
    summary          TEXT         NOT NULL DEFAULT '',
    transcript       TEXT         NOT NULL DEFAULT '',
    duration_seconds INTEGER      NOT NULL DEFAULT 0,
    created_at       TIMESTAMPTZ  NOT NULL DEFAULT now(),
    updated_at       TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_lectures_updated_at
    ON lectures (updated_at DESC);
`

const ddlCards = `
CREATE TABLE IF NOT EXISTS cards (
    id                        UUID         PRIMARY KEY DEFAULT gen_random_uuid(),
    lecture_id                UUID         NOT NULL REFERENCES lectures (id) ON DELETE CASCADE,
    kind                      TEXT         NOT NULL
        CHECK (kind IN ('auto_define', 'deep_research', 'concept')),
    term                      TEXT         NOT NULL,
    content                   TEXT         NOT NULL,
    citations                 JSONB        NOT NULL DEFAULT '[]',
    badge                     TEXT         NOT NULL
        CHECK (badge IN ('concept', 'person', 'event', 'research')),
    lecture_timestamp_seconds INTEGER      NOT NULL DEFAULT 0,
    created_at                TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_cards_lecture_id
    ON cards (lecture_id, created_at);
`

const ddlTakeaways = `
CREATE TABLE IF NOT EXISTS takeaways (
    id                        UUID         PRIMARY KEY DEFAULT gen_random_uuid(),
    lecture_id                UUID         NOT NULL REFERENCES lectures (id) ON DELETE CASCADE,
    text                      TEXT         NOT NULL,
    lecture_timestamp_seconds INTEGER      NOT NULL DEFAULT 0,
    created_at                TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_takeaways_lecture_id
    ON takeaways (lecture_id, created_at);
`

// Migrate creates or ensures all required tables and indexes exist. It is
// idempotent and safe to call on every application start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	statements := []string{
		ddlLectures,
		ddlCards,
		ddlTakeaways,
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("lecture migrate: %w", err)
		}
	}
	return nil
}

// PostgresStore is the production Store implementation backed by a single
// [pgxpool.Pool]. All operations are safe for concurrent use.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore establishes a connection pool to the PostgreSQL database at
// dsn, verifies connectivity, and runs [Migrate].
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("lecture store: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("lecture store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("lecture store: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("lecture store: migrate: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// lectureColumns selects a full lecture row with its computed card count.
const lectureColumns = `
	SELECT l.id, l.title, l.status, l.summary, l.transcript,
	       l.duration_seconds, l.created_at, l.updated_at,
	       COALESCE(c.n, 0) AS card_count
	FROM   lectures l
	LEFT JOIN (
	    SELECT lecture_id, COUNT(*) AS n FROM cards GROUP BY lecture_id
	) c ON c.lecture_id = l.id`

// CreateLecture implements Store.
func (s *PostgresStore) CreateLecture(ctx context.Context, title string) (Lecture, error) {
	const q = `
		INSERT INTO lectures (title)
		VALUES ($1)
		RETURNING id, title, status, summary, transcript,
		          duration_seconds, created_at, updated_at`

	var l Lecture
	err := s.pool.QueryRow(ctx, q, title).Scan(
		&l.ID, &l.Title, &l.Status, &l.Summary, &l.Transcript,
		&l.DurationSeconds, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return Lecture{}, fmt.Errorf("lecture store: create: %w", err)
	}
	return l, nil
}

// GetLecture implements Store.
func (s *PostgresStore) GetLecture(ctx context.Context, id string) (Lecture, error) {
	q := lectureColumns + "\nWHERE l.id = $1"

	var l Lecture
	err := s.pool.QueryRow(ctx, q, id).Scan(
		&l.ID, &l.Title, &l.Status, &l.Summary, &l.Transcript,
		&l.DurationSeconds, &l.CreatedAt, &l.UpdatedAt, &l.CardCount,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lecture{}, fmt.Errorf("lecture store: get %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return Lecture{}, fmt.Errorf("lecture store: get %q: %w", id, err)
	}
	return l, nil
}

// ListLectures implements Store.
func (s *PostgresStore) ListLectures(ctx context.Context) ([]Lecture, error) {
	q := lectureColumns + "\nORDER BY l.updated_at DESC"

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("lecture store: list: %w", err)
	}

	lectures, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Lecture, error) {
		var l Lecture
		err := row.Scan(
			&l.ID, &l.Title, &l.Status, &l.Summary, &l.Transcript,
			&l.DurationSeconds, &l.CreatedAt, &l.UpdatedAt, &l.CardCount,
		)
		return l, err
	})
	if err != nil {
		return nil, fmt.Errorf("lecture store: scan lectures: %w", err)
	}
	if lectures == nil {
		lectures = []Lecture{}
	}
	return lectures, nil
}

// UpdateLecture implements Store.
func (s *PostgresStore) UpdateLecture(ctx context.Context, id string, patch Patch) (Lecture, error) {
	args := []any{id} // $1 = lecture id
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	assignments := []string{"updated_at = now()"}
	if patch.Title != nil {
		assignments = append(assignments, "title = "+next(*patch.Title))
	}
	if patch.Status != nil {
		assignments = append(assignments, "status = "+next(string(*patch.Status)))
	}
	if patch.Summary != nil {
		assignments = append(assignments, "summary = "+next(*patch.Summary))
	}
	if patch.DurationSeconds != nil {
		assignments = append(assignments, "duration_seconds = "+next(*patch.DurationSeconds))
	}

	q := "UPDATE lectures SET " + strings.Join(assignments, ", ") + "\n" +
		"WHERE id = $1\n" +
		"RETURNING id"

	var updated string
	err := s.pool.QueryRow(ctx, q, args...).Scan(&updated)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lecture{}, fmt.Errorf("lecture store: update %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return Lecture{}, fmt.Errorf("lecture store: update %q: %w", id, err)
	}
	return s.GetLecture(ctx, id)
}

// DeleteLecture implements Store. Cards and takeaways cascade at the schema level.
func (s *PostgresStore) DeleteLecture(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM lectures WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("lecture store: delete %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("lecture store: delete %q: %w", id, ErrNotFound)
	}
	return nil
}

// UpdateStatus implements Store.
func (s *PostgresStore) UpdateStatus(ctx context.Context, id string, status Status) error {
	const q = `UPDATE lectures SET status = $2, updated_at = now() WHERE id = $1`

	tag, err := s.pool.Exec(ctx, q, id, string(status))
	if err != nil {
		return fmt.Errorf("lecture store: update status of %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("lecture store: update status of %q: %w", id, ErrNotFound)
	}
	return nil
}

// UpdateTranscript implements Store.
func (s *PostgresStore) UpdateTranscript(ctx context.Context, id string, transcript string) error {
	const q = `UPDATE lectures SET transcript = $2, updated_at = now() WHERE id = $1`

	tag, err := s.pool.Exec(ctx, q, id, transcript)
	if err != nil {
		return fmt.Errorf("lecture store: update transcript of %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("lecture store: update transcript of %q: %w", id, ErrNotFound)
	}
	return nil
}

// UpdateSummary implements Store.
func (s *PostgresStore) UpdateSummary(ctx context.Context, id string, summary string) error {
	const q = `UPDATE lectures SET summary = $2, updated_at = now() WHERE id = $1`

	tag, err := s.pool.Exec(ctx, q, id, summary)
	if err != nil {
		return fmt.Errorf("lecture store: update summary of %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("lecture store: update summary of %q: %w", id, ErrNotFound)
	}
	return nil
}

// FinalizeLecture implements Store. NULLIF keeps the stored summary and
// transcript when the corresponding argument is empty.
func (s *PostgresStore) FinalizeLecture(ctx context.Context, id string, durationSeconds int, summary, transcript string) error {
	const q = `
		UPDATE lectures
		SET    status           = 'completed',
		       duration_seconds = $2,
		       summary          = COALESCE(NULLIF($3, ''), summary),
		       transcript       = COALESCE(NULLIF($4, ''), transcript),
		       updated_at       = now()
		WHERE  id = $1`

	tag, err := s.pool.Exec(ctx, q, id, durationSeconds, summary, transcript)
	if err != nil {
		return fmt.Errorf("lecture store: finalize %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("lecture store: finalize %q: %w", id, ErrNotFound)
	}
	return nil
}

// InsertCard implements Store.
func (s *PostgresStore) InsertCard(ctx context.Context, c NewCard) (Card, error) {
	citations := c.Citations
	if citations == nil {
		citations = []Citation{}
	}
	citationsJSON, err := json.Marshal(citations)
	if err != nil {
		return Card{}, fmt.Errorf("lecture store: marshal citations: %w", err)
	}

	const q = `
		INSERT INTO cards
		    (lecture_id, kind, term, content, citations, badge, lecture_timestamp_seconds)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	card := Card{
		LectureID:        c.LectureID,
		Kind:             c.Kind,
		Term:             c.Term,
		Content:          c.Content,
		Citations:        citations,
		Badge:            c.Badge,
		TimestampSeconds: c.TimestampSeconds,
	}
	err = s.pool.QueryRow(ctx, q,
		c.LectureID, string(c.Kind), c.Term, c.Content,
		citationsJSON, string(c.Badge), c.TimestampSeconds,
	).Scan(&card.ID, &card.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return Card{}, fmt.Errorf("lecture store: insert card for %q: %w", c.LectureID, ErrNotFound)
		}
		return Card{}, fmt.Errorf("lecture store: insert card: %w", err)
	}
	return card, nil
}

// InsertTakeaway implements Store.
func (s *PostgresStore) InsertTakeaway(ctx context.Context, t NewTakeaway) (Takeaway, error) {
	const q = `
		INSERT INTO takeaways (lecture_id, text, lecture_timestamp_seconds)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	takeaway := Takeaway{
		LectureID:        t.LectureID,
		Text:             t.Text,
		TimestampSeconds: t.TimestampSeconds,
	}
	err := s.pool.QueryRow(ctx, q, t.LectureID, t.Text, t.TimestampSeconds).
		Scan(&takeaway.ID, &takeaway.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return Takeaway{}, fmt.Errorf("lecture store: insert takeaway for %q: %w", t.LectureID, ErrNotFound)
		}
		return Takeaway{}, fmt.Errorf("lecture store: insert takeaway: %w", err)
	}
	return takeaway, nil
}

// ListCards implements Store.
func (s *PostgresStore) ListCards(ctx context.Context, lectureID string) ([]Card, error) {
	const q = `
		SELECT id, lecture_id, kind, term, content, citations, badge,
		       lecture_timestamp_seconds, created_at
		FROM   cards
		WHERE  lecture_id = $1
		ORDER  BY created_at`

	rows, err := s.pool.Query(ctx, q, lectureID)
	if err != nil {
		return nil, fmt.Errorf("lecture store: list cards: %w", err)
	}

	cards, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Card, error) {
		var (
			c             Card
			citationsJSON []byte
		)
		if err := row.Scan(
			&c.ID, &c.LectureID, &c.Kind, &c.Term, &c.Content,
			&citationsJSON, &c.Badge, &c.TimestampSeconds, &c.CreatedAt,
		); err != nil {
			return Card{}, err
		}
		if err := json.Unmarshal(citationsJSON, &c.Citations); err != nil {
			return Card{}, fmt.Errorf("unmarshal citations: %w", err)
		}
		return c, nil
	})
	if err != nil {
		return nil, fmt.Errorf("lecture store: scan cards: %w", err)
	}
	if cards == nil {
		cards = []Card{}
	}
	return cards, nil
}

// ListTakeaways implements Store.
func (s *PostgresStore) ListTakeaways(ctx context.Context, lectureID string) ([]Takeaway, error) {
	const q = `
		SELECT id, lecture_id, text, lecture_timestamp_seconds, created_at
		FROM   takeaways
		WHERE  lecture_id = $1
		ORDER  BY created_at`

	rows, err := s.pool.Query(ctx, q, lectureID)
	if err != nil {
		return nil, fmt.Errorf("lecture store: list takeaways: %w", err)
	}

	takeaways, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Takeaway, error) {
		var t Takeaway
		err := row.Scan(&t.ID, &t.LectureID, &t.Text, &t.TimestampSeconds, &t.CreatedAt)
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("lecture store: scan takeaways: %w", err)
	}
	if takeaways == nil {
		takeaways = []Takeaway{}
	}
	return takeaways, nil
}

// Ping implements Store.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close implements Store. It releases all pooled connections.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// isForeignKeyViolation reports whether err is a PostgreSQL foreign key
// violation (SQLSTATE 23503).
func isForeignKeyViolation(err error) bool {
	var code interface{ SQLState() string }
	return errors.As(err, &code) && code.SQLState() == "23503"
}
