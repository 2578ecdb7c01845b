package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/aleksfrolov/hackteams/internal/db"
	"github.com/aleksfrolov/hackteams/internal/model"
	"github.com/aleksfrolov/hackteams/internal/repository"
	"github.com/aleksfrolov/hackteams/pkg/logger"
)

const (
	ratingMin         = 1
	ratingMax         = 5
	voteCommentMaxLen = 500
)

type VoteService struct {
	tx db.Transactor

	votes repository.VoteRepository
	teams repository.TeamRepository
}

func NewVoteService(tx db.Transactor) *VoteService {
	return &VoteService{tx: tx}
}

// VoteResult pairs the written vote with the team aggregate recomputed
// from the full vote set inside the same transaction.
type VoteResult struct {
	Vote      *model.Vote       `json:"vote"`
	Aggregate *model.TeamRating `json:"aggregate"`
}

// SubmitVote records a first-time rating of a team by a non-member.
func (v *VoteService) SubmitVote(ctx context.Context, voterID, teamID string, rating int, comment string) (*VoteResult, *Error) {
	l := logger.FromContext(ctx)
	l.Info("submitting vote", zap.String("team_id", teamID), zap.String("user_id", voterID))

	comment = strings.TrimSpace(comment)
	if verr := validateVoteInput(rating, comment); verr != nil {
		return nil, verr
	}

	result := &VoteResult{}

	err := v.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		if _, err := v.teams.Get(txCtx, teamID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return NewError(ErrorCodeNotFound, "team not found")
			}
			l.Error("failed to get team", zap.String("team_id", teamID), zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to get team")
		}

		members, err := v.teams.GetMembers(txCtx, teamID)
		if err != nil {
			l.Error("failed to get team members", zap.String("team_id", teamID), zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to get team members")
		}
		if findMember(members, voterID) != nil {
			return NewError(ErrorCodeSelfVote, "cannot vote for your own team")
		}

		vote := &repository.Vote{
			ID:          uuid.NewString(),
			VoterUserID: voterID,
			TeamID:      teamID,
			Rating:      rating,
			Comment:     comment,
		}
		err = v.votes.Create(txCtx, vote)
		switch {
		case errors.Is(err, repository.ErrAlreadyExists):
			l.Warn("duplicate vote", zap.String("team_id", teamID), zap.String("user_id", voterID))
			return NewError(ErrorCodeDuplicateVote, "vote for this team already exists")
		case errors.Is(err, repository.ErrNotFound):
			return NewError(ErrorCodeNotFound, "team not found")
		case err != nil:
			l.Error("failed to create vote", zap.String("team_id", teamID), zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to create vote")
		}

		agg, err := v.votes.TeamAggregate(txCtx, teamID)
		if err != nil {
			l.Error("failed to recompute team rating", zap.String("team_id", teamID), zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to recompute team rating")
		}

		result.Vote = voteToModel(vote)
		result.Aggregate = aggregateToModel(agg)
		return nil
	})

	if err != nil {
		return nil, asServiceError(err)
	}

	return result, nil
}

// UpdateVote overwrites an existing vote's rating and comment.
func (v *VoteService) UpdateVote(ctx context.Context, voterID, teamID string, rating int, comment string) (*VoteResult, *Error) {
	l := logger.FromContext(ctx)
	l.Info("updating vote", zap.String("team_id", teamID), zap.String("user_id", voterID))

	comment = strings.TrimSpace(comment)
	if verr := validateVoteInput(rating, comment); verr != nil {
		return nil, verr
	}

	result := &VoteResult{}

	err := v.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		vote := &repository.Vote{
			VoterUserID: voterID,
			TeamID:      teamID,
			Rating:      rating,
			Comment:     comment,
		}
		err := v.votes.Update(txCtx, vote)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return NewError(ErrorCodeNotFound, "vote not found")
		case err != nil:
			l.Error("failed to update vote", zap.String("team_id", teamID), zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to update vote")
		}

		agg, err := v.votes.TeamAggregate(txCtx, teamID)
		if err != nil {
			l.Error("failed to recompute team rating", zap.String("team_id", teamID), zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to recompute team rating")
		}

		result.Vote = voteToModel(vote)
		result.Aggregate = aggregateToModel(agg)
		return nil
	})

	if err != nil {
		return nil, asServiceError(err)
	}

	return result, nil
}

// DeleteVote removes the caller's vote for a team. The returned
// aggregate has no rating when the vote set becomes empty.
func (v *VoteService) DeleteVote(ctx context.Context, voterID, teamID string) (*model.TeamRating, *Error) {
	l := logger.FromContext(ctx)
	l.Info("deleting vote", zap.String("team_id", teamID), zap.String("user_id", voterID))

	aggregate := &model.TeamRating{}

	err := v.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		err := v.votes.Delete(txCtx, voterID, teamID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return NewError(ErrorCodeNotFound, "vote not found")
		case err != nil:
			l.Error("failed to delete vote", zap.String("team_id", teamID), zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to delete vote")
		}

		agg, err := v.votes.TeamAggregate(txCtx, teamID)
		if err != nil {
			l.Error("failed to recompute team rating", zap.String("team_id", teamID), zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to recompute team rating")
		}

		*aggregate = *aggregateToModel(agg)
		return nil
	})

	if err != nil {
		return nil, asServiceError(err)
	}

	return aggregate, nil
}

// CheckUserVote reports whether the voter already rated the team, so
// callers can choose between submit and update flows.
func (v *VoteService) CheckUserVote(ctx context.Context, voterID, teamID string) (*model.VoteStatus, *Error) {
	l := logger.FromContext(ctx)
	l.Debug("checking vote", zap.String("team_id", teamID), zap.String("user_id", voterID))

	vote, err := v.votes.Get(ctx, voterID, teamID)
	if errors.Is(err, repository.ErrNotFound) {
		return &model.VoteStatus{HasVoted: false}, nil
	}
	if err != nil {
		l.Error("failed to get vote", zap.String("team_id", teamID), zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to get vote")
	}

	return &model.VoteStatus{HasVoted: true, Vote: voteToModel(vote)}, nil
}

// ListTeamsWithRatings returns every team except the voter's own, each
// annotated with its aggregate and the voter's own vote if present.
func (v *VoteService) ListTeamsWithRatings(ctx context.Context, voterID, search string) ([]*model.TeamWithRating, *Error) {
	l := logger.FromContext(ctx)
	l.Debug("listing teams with ratings", zap.String("user_id", voterID))

	repoTeams, err := v.teams.List(ctx, search)
	if err != nil {
		l.Error("failed to list teams", zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to list teams")
	}

	ownTeamID, serr := v.ownTeamID(ctx, voterID)
	if serr != nil {
		return nil, serr
	}

	counts, err := v.teams.MemberCounts(ctx)
	if err != nil {
		l.Error("failed to count members", zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to count members")
	}

	aggregates, err := v.votes.TeamAggregates(ctx)
	if err != nil {
		l.Error("failed to get team ratings", zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to get team ratings")
	}

	myVotes, err := v.votes.ListByVoter(ctx, voterID)
	if err != nil {
		l.Error("failed to list votes", zap.String("user_id", voterID), zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to list votes")
	}
	votesByTeam := make(map[string]*repository.Vote, len(myVotes))
	for _, vote := range myVotes {
		votesByTeam[vote.TeamID] = vote
	}

	teams := make([]*model.TeamWithRating, 0, len(repoTeams))
	for _, repoTeam := range repoTeams {
		if repoTeam.ID == ownTeamID {
			continue
		}
		entry := &model.TeamWithRating{
			TeamSummary: *teamToSummary(repoTeam, counts[repoTeam.ID], aggregates[repoTeam.ID]),
		}
		if vote, ok := votesByTeam[repoTeam.ID]; ok {
			entry.MyVote = voteToModel(vote)
		}
		teams = append(teams, entry)
	}

	return teams, nil
}

// VotingProgress derives the voter's completion state from current team
// and vote rows; nothing is persisted, so membership changes never leave
// a stale flag behind.
func (v *VoteService) VotingProgress(ctx context.Context, voterID string) (*model.VotingProgress, *Error) {
	l := logger.FromContext(ctx)
	l.Debug("computing voting progress", zap.String("user_id", voterID))

	repoTeams, err := v.teams.List(ctx, "")
	if err != nil {
		l.Error("failed to list teams", zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to list teams")
	}

	ownTeamID, serr := v.ownTeamID(ctx, voterID)
	if serr != nil {
		return nil, serr
	}

	votes, err := v.votes.ListByVoter(ctx, voterID)
	if err != nil {
		l.Error("failed to list votes", zap.String("user_id", voterID), zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to list votes")
	}

	eligible := make(map[string]bool, len(repoTeams))
	for _, repoTeam := range repoTeams {
		if repoTeam.ID != ownTeamID {
			eligible[repoTeam.ID] = true
		}
	}

	voted := 0
	for _, vote := range votes {
		if eligible[vote.TeamID] {
			voted++
		}
	}

	return &model.VotingProgress{
		EligibleTeams: len(eligible),
		VotedTeams:    voted,
		Completed:     len(eligible) > 0 && voted >= len(eligible),
	}, nil
}

// ListMyVotes backs GET /vote/mine: the voter's votes plus progress.
func (v *VoteService) ListMyVotes(ctx context.Context, voterID string) (*model.MyVotes, *Error) {
	votes, err := v.votes.ListByVoter(ctx, voterID)
	if err != nil {
		logger.FromContext(ctx).Error("failed to list votes", zap.String("user_id", voterID), zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to list votes")
	}

	progress, serr := v.VotingProgress(ctx, voterID)
	if serr != nil {
		return nil, serr
	}

	res := &model.MyVotes{
		Votes:    make([]*model.Vote, 0, len(votes)),
		Progress: progress,
	}
	for _, vote := range votes {
		res.Votes = append(res.Votes, voteToModel(vote))
	}
	return res, nil
}

func (v *VoteService) ownTeamID(ctx context.Context, voterID string) (string, *Error) {
	team, err := v.teams.GetByMember(ctx, voterID)
	if errors.Is(err, repository.ErrNotFound) {
		return "", nil // teamless voters are still eligible to vote
	}
	if err != nil {
		logger.FromContext(ctx).Error("failed to get own team", zap.String("user_id", voterID), zap.Error(err))
		return "", NewError(ErrorCodeUnspecified, "failed to get own team")
	}
	return team.ID, nil
}

func (v *VoteService) WithVoteRepo(r repository.VoteRepository) *VoteService {
	v.votes = r
	return v
}

func (v *VoteService) WithTeamRepo(r repository.TeamRepository) *VoteService {
	v.teams = r
	return v
}

func validateVoteInput(rating int, comment string) *Error {
	if rating < ratingMin || rating > ratingMax {
		return NewError(ErrorCodeValidation, "rating must be an integer from 1 to 5")
	}
	if comment == "" {
		return NewError(ErrorCodeValidation, "comment must not be empty")
	}
	if utf8.RuneCountInString(comment) > voteCommentMaxLen {
		return NewError(ErrorCodeValidation, "comment must be at most 500 characters")
	}
	return nil
}

func voteToModel(vote *repository.Vote) *model.Vote {
	return &model.Vote{
		ID:          vote.ID,
		VoterUserID: vote.VoterUserID,
		TeamID:      vote.TeamID,
		Rating:      vote.Rating,
		Comment:     vote.Comment,
		CreatedAt:   vote.CreatedAt,
		UpdatedAt:   vote.UpdatedAt,
	}
}

func aggregateToModel(agg *repository.TeamRating) *model.TeamRating {
	return &model.TeamRating{
		Rating:     agg.Rating,
		TotalVotes: agg.TotalVotes,
	}
}
