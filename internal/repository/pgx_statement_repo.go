package repository

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/stephenafamo/bob"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/dialect"
	"github.com/stephenafamo/bob/dialect/psql/im"
	"github.com/stephenafamo/bob/dialect/psql/sm"
	"github.com/stephenafamo/bob/dialect/psql/um"

	"github.com/aleksfrolov/hackteams/internal/db"
)

type ProblemStatement struct {
	ID                    string     `db:"id"`
	Title                 string     `db:"title"`
	Description           string     `db:"description"`
	Domain                string     `db:"domain"`
	Topic                 *string    `db:"topic"`
	SuggestedTechnologies []string   `db:"suggested_technologies"`
	Visibility            string     `db:"visibility"`
	CreatedBy             *string    `db:"created_by"`
	SelectionCount        int        `db:"selection_count"`
	CreatedAt             *time.Time `db:"created_at"`
}

type StatementFilter struct {
	// ViewerID widens the catalog with the viewer's own custom entries.
	ViewerID string
	Domain   string
	Search   string
	Page     int
	PageSize int
}

type StatementRepository interface {
	Create(ctx context.Context, st *ProblemStatement) error
	Get(ctx context.Context, id string) (*ProblemStatement, error)
	List(ctx context.Context, filter *StatementFilter) ([]*ProblemStatement, int, error)
	// ReserveSlot increments selection_count only while it is below cap.
	// A single conditional write, so two racing callers cannot both take
	// the last slot.
	ReserveSlot(ctx context.Context, id string, cap int) error
	// ReleaseSlot decrements selection_count, floored at zero.
	ReleaseSlot(ctx context.Context, id string) error
}

type pgxStatementRepository struct {
	pool *pgxpool.Pool
}

func NewPgxStatementRepository(pool *pgxpool.Pool) StatementRepository {
	return &pgxStatementRepository{pool: pool}
}

const statementColumns = "id, title, description, domain, topic, suggested_technologies, visibility, created_by, selection_count, created_at"

func scanStatement(row pgx.Row) (*ProblemStatement, error) {
	st := &ProblemStatement{}
	err := row.Scan(
		&st.ID,
		&st.Title,
		&st.Description,
		&st.Domain,
		&st.Topic,
		&st.SuggestedTechnologies,
		&st.Visibility,
		&st.CreatedBy,
		&st.SelectionCount,
		&st.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return st, nil
}

func (p *pgxStatementRepository) Create(ctx context.Context, st *ProblemStatement) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Insert(
		im.Into("problem_statement",
			"id", "title", "description", "domain", "topic",
			"suggested_technologies", "visibility", "created_by"),
		im.Values(
			psql.Arg(st.ID), psql.Arg(st.Title), psql.Arg(st.Description),
			psql.Arg(st.Domain), psql.Arg(st.Topic),
			psql.Arg(st.SuggestedTechnologies), psql.Arg(st.Visibility),
			psql.Arg(st.CreatedBy)),
		im.Returning("selection_count", "created_at"),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	err = e.QueryRow(ctx, sql, args...).Scan(&st.SelectionCount, &st.CreatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrAlreadyExists
	}

	return err
}

func (p *pgxStatementRepository) Get(ctx context.Context, id string) (*ProblemStatement, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns(statementColumns),
		sm.From("problem_statement"),
		sm.Where(psql.Quote("id").EQ(psql.Arg(id))),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	st, err := scanStatement(e.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return st, nil
}

func (p *pgxStatementRepository) List(ctx context.Context, filter *StatementFilter) ([]*ProblemStatement, int, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	where := make([]bob.Mod[*dialect.SelectQuery], 0, 3)
	where = append(where, sm.Where(psql.Raw(
		"(visibility = 'catalog' OR created_by = ?)", filter.ViewerID)))

	if filter.Domain != "" {
		where = append(where, sm.Where(psql.Quote("domain").EQ(psql.Arg(filter.Domain))))
	}
	if filter.Search != "" {
		pattern := "%" + strings.TrimSpace(filter.Search) + "%"
		where = append(where, sm.Where(psql.Raw(
			"(title ILIKE ? OR description ILIKE ? OR domain ILIKE ? OR array_to_string(suggested_technologies, ' ') ILIKE ?)",
			pattern, pattern, pattern, pattern)))
	}

	countQ := psql.Select(
		sm.Columns("count(*)"),
		sm.From("problem_statement"),
	)
	countQ.Apply(where...)

	sql, args, err := countQ.Build(ctx)
	if err != nil {
		return nil, 0, err
	}

	var total int
	if err = e.QueryRow(ctx, sql, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := psql.Select(
		sm.Columns(statementColumns),
		sm.From("problem_statement"),
		sm.OrderBy("created_at"),
		sm.OrderBy("id"),
		sm.Limit(filter.PageSize),
		sm.Offset((filter.Page-1)*filter.PageSize),
	)
	q.Apply(where...)

	sql, args, err = q.Build(ctx)
	if err != nil {
		return nil, 0, err
	}

	rows, err := e.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	statements, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*ProblemStatement, error) {
		return scanStatement(row)
	})
	if err != nil {
		return nil, 0, err
	}

	return statements, total, nil
}

func (p *pgxStatementRepository) ReserveSlot(ctx context.Context, id string, cap int) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Update(
		um.Table("problem_statement"),
		um.SetCol("selection_count").To(psql.Raw("selection_count + 1")),
		um.Where(psql.Quote("id").EQ(psql.Arg(id)).
			And(psql.Quote("selection_count").LT(psql.Arg(cap)))),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	tag, err := e.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// Zero rows: either the statement is gone or the cap is reached.
	if _, err = p.Get(ctx, id); err != nil {
		return err
	}
	return ErrCapacityExceeded
}

func (p *pgxStatementRepository) ReleaseSlot(ctx context.Context, id string) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Update(
		um.Table("problem_statement"),
		um.SetCol("selection_count").To(psql.Raw("selection_count - 1")),
		um.Where(psql.Quote("id").EQ(psql.Arg(id)).
			And(psql.Quote("selection_count").GT(psql.Arg(0)))),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	if _, err = e.Exec(ctx, sql, args...); err != nil {
		return err
	}
	return nil
}
