package repository

import (
	"context"
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

type Vote struct {
	ID          string     `db:"id"`
	VoterUserID string     `db:"voter_user_id"`
	TeamID      string     `db:"team_id"`
	Rating      int        `db:"rating"`
	Comment     string     `db:"comment"`
	CreatedAt   *time.Time `db:"created_at"`
	UpdatedAt   *time.Time `db:"updated_at"`
}

// TeamRating is recomputed fresh from the vote set; Rating is nil when
// the set is empty.
type TeamRating struct {
	Rating     *float64
	TotalVotes int
}

type VoteRepository interface {
	Create(ctx context.Context, vote *Vote) error
	// Update overwrites rating and comment for the (voter, team) pair.
	Update(ctx context.Context, vote *Vote) error
	Delete(ctx context.Context, voterID, teamID string) error
	Get(ctx context.Context, voterID, teamID string) (*Vote, error)
	ListByVoter(ctx context.Context, voterID string) ([]*Vote, error)
	TeamAggregate(ctx context.Context, teamID string) (*TeamRating, error)
	TeamAggregates(ctx context.Context) (map[string]*TeamRating, error)
}

type pgxVoteRepository struct {
	pool *pgxpool.Pool
}

func NewPgxVoteRepository(pool *pgxpool.Pool) VoteRepository {
	return &pgxVoteRepository{pool: pool}
}

const voteColumns = "id, voter_user_id, team_id, rating, comment, created_at, updated_at"

func scanVote(row pgx.Row) (*Vote, error) {
	vote := &Vote{}
	err := row.Scan(
		&vote.ID,
		&vote.VoterUserID,
		&vote.TeamID,
		&vote.Rating,
		&vote.Comment,
		&vote.CreatedAt,
		&vote.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return vote, nil
}

func (p *pgxVoteRepository) Create(ctx context.Context, vote *Vote) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Insert(
		im.Into("vote", "id", "voter_user_id", "team_id", "rating", "comment"),
		im.Values(psql.Arg(vote.ID), psql.Arg(vote.VoterUserID), psql.Arg(vote.TeamID), psql.Arg(vote.Rating), psql.Arg(vote.Comment)),
		im.Returning("created_at", "updated_at"),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	err = e.QueryRow(ctx, sql, args...).Scan(&vote.CreatedAt, &vote.UpdatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation: // vote for this (voter, team) already exists
			return ErrAlreadyExists
		case pgForeignKeyViolation: // team is gone
			return ErrNotFound
		}
	}

	return err
}

func (p *pgxVoteRepository) Update(ctx context.Context, vote *Vote) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Update(
		um.Table("vote"),
		um.SetCol("rating").ToArg(vote.Rating),
		um.SetCol("comment").ToArg(vote.Comment),
		um.SetCol("updated_at").To(psql.Raw("now()")),
		um.Where(psql.Quote("voter_user_id").EQ(psql.Arg(vote.VoterUserID)).
			And(psql.Quote("team_id").EQ(psql.Arg(vote.TeamID)))),
		um.Returning("id", "created_at", "updated_at"),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	err = e.QueryRow(ctx, sql, args...).Scan(&vote.ID, &vote.CreatedAt, &vote.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (p *pgxVoteRepository) Delete(ctx context.Context, voterID, teamID string) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Delete(
		dm.From("vote"),
		dm.Where(psql.Quote("voter_user_id").EQ(psql.Arg(voterID)).
			And(psql.Quote("team_id").EQ(psql.Arg(teamID)))),
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

func (p *pgxVoteRepository) Get(ctx context.Context, voterID, teamID string) (*Vote, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns(voteColumns),
		sm.From("vote"),
		sm.Where(psql.Quote("voter_user_id").EQ(psql.Arg(voterID)).
			And(psql.Quote("team_id").EQ(psql.Arg(teamID)))),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	vote, err := scanVote(e.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return vote, nil
}

func (p *pgxVoteRepository) ListByVoter(ctx context.Context, voterID string) ([]*Vote, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns(voteColumns),
		sm.From("vote"),
		sm.Where(psql.Quote("voter_user_id").EQ(psql.Arg(voterID))),
		sm.OrderBy("created_at"),
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

	votes, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*Vote, error) {
		return scanVote(row)
	})
	if err != nil {
		return nil, err
	}

	return votes, nil
}

func (p *pgxVoteRepository) TeamAggregate(ctx context.Context, teamID string) (*TeamRating, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns("round(avg(rating)::numeric, 1)::float8", "count(*)"),
		sm.From("vote"),
		sm.Where(psql.Quote("team_id").EQ(psql.Arg(teamID))),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	agg := &TeamRating{}
	if err = e.QueryRow(ctx, sql, args...).Scan(&agg.Rating, &agg.TotalVotes); err != nil {
		return nil, err
	}
	return agg, nil
}

func (p *pgxVoteRepository) TeamAggregates(ctx context.Context) (map[string]*TeamRating, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns("team_id", "round(avg(rating)::numeric, 1)::float8", "count(*)"),
		sm.From("vote"),
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

	aggregates := make(map[string]*TeamRating)
	for rows.Next() {
		var teamID string
		agg := &TeamRating{}
		if err = rows.Scan(&teamID, &agg.Rating, &agg.TotalVotes); err != nil {
			return nil, err
		}
		aggregates[teamID] = agg
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	return aggregates, nil
}
