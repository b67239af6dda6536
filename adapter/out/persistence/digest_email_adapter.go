// Package persistence provides database adapters implementing outbound ports.
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"digest_server/core/domain"
	"digest_server/core/port/out"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// insertChunkSize keeps multi-row inserts well under driver parameter limits.
const insertChunkSize = 200

const emailColumns = `id, sender, subject, body, content_hash, summary, category, keywords,
	summary_count, created_at, updated_at, last_summarized_at`

// EmailAdapter implements out.EmailRepository over sqlx for Postgres or SQLite.
type EmailAdapter struct {
	db      *sqlx.DB
	dialect Dialect
}

var _ out.EmailRepository = (*EmailAdapter)(nil)

func NewEmailAdapter(db *sqlx.DB, dialect Dialect) *EmailAdapter {
	return &EmailAdapter{db: db, dialect: dialect}
}

// emailRow represents the database row for emails.
type emailRow struct {
	ID               uuid.UUID      `db:"id"`
	Sender           string         `db:"sender"`
	Subject          string         `db:"subject"`
	Body             string         `db:"body"`
	ContentHash      string         `db:"content_hash"`
	Summary          sql.NullString `db:"summary"`
	Category         string         `db:"category"`
	Keywords         keywordList    `db:"keywords"`
	SummaryCount     int            `db:"summary_count"`
	CreatedAt        time.Time      `db:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at"`
	LastSummarizedAt sql.NullTime   `db:"last_summarized_at"`
}

// emailRowWithCount carries COUNT(*) OVER() alongside each row.
type emailRowWithCount struct {
	emailRow
	TotalCount int `db:"total_count"`
}

func (r *emailRow) toEntity() *domain.Email {
	e := &domain.Email{
		ID:           r.ID,
		Sender:       r.Sender,
		Subject:      r.Subject,
		Body:         r.Body,
		ContentHash:  r.ContentHash,
		Category:     domain.Category(r.Category),
		Keywords:     []string(r.Keywords),
		SummaryCount: r.SummaryCount,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
	if e.Keywords == nil {
		e.Keywords = []string{}
	}
	if r.Summary.Valid {
		summary := r.Summary.String
		e.Summary = &summary
	}
	if r.LastSummarizedAt.Valid {
		at := r.LastSummarizedAt.Time.UTC()
		e.LastSummarizedAt = &at
	}
	return e
}

// InsertMany writes all emails in one transaction. Rows that collide on
// content_hash are skipped by the unique index and not counted.
func (a *EmailAdapter) InsertMany(ctx context.Context, emails []*domain.Email) (int, error) {
	if len(emails) == 0 {
		return 0, nil
	}

	tx, err := a.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	inserted := 0
	for start := 0; start < len(emails); start += insertChunkSize {
		end := start + insertChunkSize
		if end > len(emails) {
			end = len(emails)
		}
		n, err := a.insertChunk(ctx, tx, emails[start:end])
		if err != nil {
			return 0, err
		}
		inserted += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}
	return inserted, nil
}

func (a *EmailAdapter) insertChunk(ctx context.Context, tx *sqlx.Tx, emails []*domain.Email) (int, error) {
	const rowPlaceholders = "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"

	values := make([]string, 0, len(emails))
	args := make([]any, 0, len(emails)*12)
	for _, e := range emails {
		values = append(values, rowPlaceholders)
		args = append(args,
			e.ID, e.Sender, e.Subject, e.Body, e.ContentHash,
			nullStr(e.Summary), string(e.Category), a.dialect.keywords(nonNil(e.Keywords)),
			e.SummaryCount, e.CreatedAt, e.UpdatedAt, nullTime(e.LastSummarizedAt),
		)
	}

	query := a.db.Rebind(fmt.Sprintf(`
		INSERT INTO emails (%s)
		VALUES %s
		ON CONFLICT (content_hash) DO NOTHING
		RETURNING id`, emailColumns, strings.Join(values, ", ")))

	var ids []uuid.UUID
	if err := tx.SelectContext(ctx, &ids, query, args...); err != nil {
		return 0, fmt.Errorf("insert emails: %w", err)
	}
	return len(ids), nil
}

func (a *EmailAdapter) ExistingHashes(ctx context.Context, hashes []string) (map[string]struct{}, error) {
	found := make(map[string]struct{})
	if len(hashes) == 0 {
		return found, nil
	}

	clause, args, err := a.dialect.inClause("content_hash", hashes)
	if err != nil {
		return nil, err
	}
	query := a.db.Rebind("SELECT content_hash FROM emails WHERE " + clause)

	var existing []string
	if err := a.db.SelectContext(ctx, &existing, query, args...); err != nil {
		return nil, fmt.Errorf("select hashes: %w", err)
	}
	for _, h := range existing {
		found[h] = struct{}{}
	}
	return found, nil
}

func (a *EmailAdapter) GetByID(ctx context.Context, id uuid.UUID) (*domain.Email, error) {
	query := a.db.Rebind(fmt.Sprintf("SELECT %s FROM emails WHERE id = ?", emailColumns))

	var row emailRow
	if err := a.db.QueryRowxContext(ctx, query, id).StructScan(&row); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get email: %w", err)
	}
	return row.toEntity(), nil
}

func (a *EmailAdapter) List(ctx context.Context, q *domain.ListQuery) ([]*domain.Email, int, error) {
	if q == nil {
		q = &domain.ListQuery{}
	}
	q.Normalize()

	where, args := a.buildWhereClause(q)
	query := a.db.Rebind(fmt.Sprintf(`
		SELECT %s, COUNT(*) OVER() AS total_count
		FROM emails
		WHERE %s
		ORDER BY %s
		LIMIT ? OFFSET ?`, emailColumns, where, orderClause(q.Sort)))
	args = append(args, q.Limit, q.Offset())

	rows, err := a.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list emails: %w", err)
	}
	defer rows.Close()

	emails := make([]*domain.Email, 0, q.Limit)
	total := 0
	for rows.Next() {
		var row emailRowWithCount
		if err := rows.StructScan(&row); err != nil {
			return nil, 0, fmt.Errorf("scan email: %w", err)
		}
		total = row.TotalCount
		emails = append(emails, row.toEntity())
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list emails: %w", err)
	}

	// A page past the end returns no rows, so the window count is unavailable.
	if len(emails) == 0 && q.Offset() > 0 {
		countArgs := args[:len(args)-2]
		countQuery := a.db.Rebind("SELECT COUNT(*) FROM emails WHERE " + where)
		if err := a.db.GetContext(ctx, &total, countQuery, countArgs...); err != nil {
			return nil, 0, fmt.Errorf("count emails: %w", err)
		}
	}
	return emails, total, nil
}

func (a *EmailAdapter) buildWhereClause(q *domain.ListQuery) (string, []any) {
	conditions := []string{"1=1"}
	args := []any{}

	if q.Search != "" {
		pattern := "%" + escapeLike(q.Search) + "%"
		op := a.dialect.likeOp
		conditions = append(conditions, fmt.Sprintf(
			`(sender %[1]s ? ESCAPE '\' OR subject %[1]s ? ESCAPE '\' OR body %[1]s ? ESCAPE '\')`, op))
		args = append(args, pattern, pattern, pattern)
	}
	if q.Category != nil {
		conditions = append(conditions, "category = ?")
		args = append(args, string(*q.Category))
	}
	return strings.Join(conditions, " AND "), args
}

func orderClause(sort domain.SortKey) string {
	switch sort {
	case domain.SortOldest:
		return "created_at ASC, id ASC"
	case domain.SortCount:
		return "summary_count DESC, created_at DESC, id DESC"
	default:
		return "created_at DESC, id DESC"
	}
}

func (a *EmailAdapter) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.Email, error) {
	if len(ids) == 0 {
		return []*domain.Email{}, nil
	}
	strIDs := make([]string, len(ids))
	for i, id := range ids {
		strIDs[i] = id.String()
	}
	clause, args, err := a.dialect.inClause("id", strIDs)
	if err != nil {
		return nil, err
	}
	return a.selectEmails(ctx, "WHERE "+clause, args...)
}

func (a *EmailAdapter) ListAll(ctx context.Context) ([]*domain.Email, error) {
	return a.selectEmails(ctx, "")
}

func (a *EmailAdapter) selectEmails(ctx context.Context, where string, args ...any) ([]*domain.Email, error) {
	query := a.db.Rebind(fmt.Sprintf("SELECT %s FROM emails %s ORDER BY %s",
		emailColumns, where, orderClause(domain.SortNewest)))

	var rows []emailRow
	if err := a.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select emails: %w", err)
	}
	emails := make([]*domain.Email, len(rows))
	for i := range rows {
		emails[i] = rows[i].toEntity()
	}
	return emails, nil
}

// UpdateSummary sets the new summary and bumps summary_count in one statement,
// so concurrent updates of the same row never lose an increment.
func (a *EmailAdapter) UpdateSummary(ctx context.Context, id uuid.UUID, u *domain.SummaryUpdate) (*domain.Email, error) {
	var category any
	if u.Category != nil {
		category = string(*u.Category)
	}

	tx, err := a.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	update := a.db.Rebind(`
		UPDATE emails SET
			summary = ?,
			category = COALESCE(?, category),
			keywords = COALESCE(?, keywords),
			summary_count = summary_count + 1,
			last_summarized_at = ?,
			updated_at = ?
		WHERE id = ?`)
	result, err := tx.ExecContext(ctx, update,
		u.Summary, category, a.dialect.keywords(u.Keywords), u.At, u.At, id)
	if err != nil {
		return nil, fmt.Errorf("update summary: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return nil, fmt.Errorf("update summary: %w", err)
	} else if n == 0 {
		return nil, ErrNotFound
	}

	var row emailRow
	query := a.db.Rebind(fmt.Sprintf("SELECT %s FROM emails WHERE id = ?", emailColumns))
	if err := tx.QueryRowxContext(ctx, query, id).StructScan(&row); err != nil {
		return nil, fmt.Errorf("reload email: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return row.toEntity(), nil
}

func (a *EmailAdapter) Delete(ctx context.Context, id uuid.UUID) error {
	query := a.db.Rebind("DELETE FROM emails WHERE id = ?")
	result, err := a.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete email: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete email: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// Helper functions

func nullStr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
