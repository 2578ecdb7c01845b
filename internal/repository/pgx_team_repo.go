package repository

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/dm"
	"github.com/stephenafamo/bob/dialect/psql/im"
	"github.com/stephenafamo/bob/dialect/psql/sm"
	"github.com/stephenafamo/bob/dialect/psql/um"

	"github.com/aleksfrolov/hackteams/internal/db"
)

type Team struct {
	ID                 string     `db:"id"`
	Name               string     `db:"name"`
	Description        *string    `db:"description"`
	ProblemStatementID string     `db:"problem_statement_id"`
	CreatedAt          *time.Time `db:"created_at"`
}

type TeamMember struct {
	TeamID   string     `db:"team_id"`
	UserID   string     `db:"user_id"`
	Role     string     `db:"role"`
	JoinedAt *time.Time `db:"joined_at"`
	Position int64      `db:"position"`
}

type TeamRepository interface {
	Create(ctx context.Context, team *Team) error
	Get(ctx context.Context, id string) (*Team, error)
	// GetForUpdate locks the team row for the rest of the transaction,
	// serializing concurrent mutations of the same team.
	GetForUpdate(ctx context.Context, id string) (*Team, error)
	GetByMember(ctx context.Context, userID string) (*Team, error)
	List(ctx context.Context, search string) ([]*Team, error)
	Delete(ctx context.Context, id string) error

	AddMember(ctx context.Context, member *TeamMember) error
	RemoveMember(ctx context.Context, teamID, userID string) error
	SetRole(ctx context.Context, teamID, userID, role string) error
	// GetMembers returns members ordered by joined_at, then insertion
	// order, which is the leadership succession order.
	GetMembers(ctx context.Context, teamID string) ([]*TeamMember, error)
	MemberCounts(ctx context.Context) (map[string]int, error)
}

type pgxTeamRepository struct {
	pool *pgxpool.Pool
}

func NewPgxTeamRepository(pool *pgxpool.Pool) TeamRepository {
	return &pgxTeamRepository{pool: pool}
}

const teamColumns = "id, name, description, problem_statement_id, created_at"

func scanTeam(row pgx.Row) (*Team, error) {
	team := &Team{}
	err := row.Scan(&team.ID, &team.Name, &team.Description, &team.ProblemStatementID, &team.CreatedAt)
	if err != nil {
		return nil, err
	}
	return team, nil
}

func (p *pgxTeamRepository) Create(ctx context.Context, team *Team) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Insert(
		im.Into("team", "id", "name", "description", "problem_statement_id"),
		im.Values(psql.Arg(team.ID), psql.Arg(team.Name), psql.Arg(team.Description), psql.Arg(team.ProblemStatementID)),
		im.Returning("created_at"),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	err = e.QueryRow(ctx, sql, args...).Scan(&team.CreatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return ErrAlreadyExists
		case pgForeignKeyViolation: // problem statement does not exist
			return ErrNotFound
		}
	}

	return err
}

func (p *pgxTeamRepository) Get(ctx context.Context, id string) (*Team, error) {
	return p.get(ctx, id, false)
}

func (p *pgxTeamRepository) GetForUpdate(ctx context.Context, id string) (*Team, error) {
	return p.get(ctx, id, true)
}

func (p *pgxTeamRepository) get(ctx context.Context, id string, forUpdate bool) (*Team, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns(teamColumns),
		sm.From("team"),
		sm.Where(psql.Quote("id").EQ(psql.Arg(id))),
	)
	if forUpdate {
		q.Apply(sm.ForUpdate("team"))
	}

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	team, err := scanTeam(e.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return team, nil
}

func (p *pgxTeamRepository) GetByMember(ctx context.Context, userID string) (*Team, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns("t.id", "t.name", "t.description", "t.problem_statement_id", "t.created_at"),
		sm.From("team").As("t"),
		sm.InnerJoin("team_member").As("m").On(psql.Quote("m", "team_id").EQ(psql.Quote("t", "id"))),
		sm.Where(psql.Quote("m", "user_id").EQ(psql.Arg(userID))),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	team, err := scanTeam(e.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return team, nil
}

func (p *pgxTeamRepository) List(ctx context.Context, search string) ([]*Team, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns(teamColumns),
		sm.From("team"),
		sm.OrderBy("created_at"),
		sm.OrderBy("id"),
	)

	if search != "" {
		pattern := "%" + strings.TrimSpace(search) + "%"
		q.Apply(sm.Where(psql.Raw(
			"(name ILIKE ? OR coalesce(description, '') ILIKE ?)", pattern, pattern)))
	}

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := e.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	teams, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*Team, error) {
		return scanTeam(row)
	})
	if err != nil {
		return nil, err
	}

	return teams, nil
}

func (p *pgxTeamRepository) Delete(ctx context.Context, id string) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Delete(
		dm.From("team"),
		dm.Where(psql.Quote("id").EQ(psql.Arg(id))),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	tag, err := e.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *pgxTeamRepository) AddMember(ctx context.Context, member *TeamMember) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Insert(
		im.Into("team_member", "team_id", "user_id", "role"),
		im.Values(psql.Arg(member.TeamID), psql.Arg(member.UserID), psql.Arg(member.Role)),
		im.Returning("joined_at", "position"),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	err = e.QueryRow(ctx, sql, args...).Scan(&member.JoinedAt, &member.Position)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation: // user already belongs to a team
			return ErrAlreadyExists
		case pgForeignKeyViolation:
			return ErrNotFound
		}
	}

	return err
}

func (p *pgxTeamRepository) RemoveMember(ctx context.Context, teamID, userID string) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Delete(
		dm.From("team_member"),
		dm.Where(psql.Quote("team_id").EQ(psql.Arg(teamID)).
			And(psql.Quote("user_id").EQ(psql.Arg(userID)))),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	tag, err := e.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *pgxTeamRepository) SetRole(ctx context.Context, teamID, userID, role string) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Update(
		um.Table("team_member"),
		um.SetCol("role").ToArg(role),
		um.Where(psql.Quote("team_id").EQ(psql.Arg(teamID)).
			And(psql.Quote("user_id").EQ(psql.Arg(userID)))),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	tag, err := e.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *pgxTeamRepository) GetMembers(ctx context.Context, teamID string) ([]*TeamMember, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns("team_id", "user_id", "role", "joined_at", "position"),
		sm.From("team_member"),
		sm.Where(psql.Quote("team_id").EQ(psql.Arg(teamID))),
		sm.OrderBy("joined_at"),
		sm.OrderBy("position"),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := e.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*TeamMember, error) {
		member := &TeamMember{}
		if err = row.Scan(&member.TeamID, &member.UserID, &member.Role, &member.JoinedAt, &member.Position); err != nil {
			return nil, err
		}
		return member, nil
	})
	if err != nil {
		return nil, err
	}

	return members, nil
}

func (p *pgxTeamRepository) MemberCounts(ctx context.Context) (map[string]int, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns("team_id", "count(*)"),
		sm.From("team_member"),
		sm.GroupBy("team_id"),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := e.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var teamID string
		var count int
		if err = rows.Scan(&teamID, &count); err != nil {
			return nil, err
		}
		counts[teamID] = count
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	return counts, nil
}
