package service

import (
	"context"
	"regexp"
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
	teamNameMinLen = 3
	teamNameMaxLen = 50
	teamDescMaxLen = 200
)

var teamNamePattern = regexp.MustCompile(`^[\p{L}\p{N}][\p{L}\p{N} ._-]*$`)

type TeamService struct {
	tx db.Transactor

	teams      repository.TeamRepository
	statements repository.StatementRepository
	votes      repository.VoteRepository

	maxTeamSize  int
	selectionCap int
}

func NewTeamService(tx db.Transactor, maxTeamSize, selectionCap int) *TeamService {
	return &TeamService{
		tx:           tx,
		maxTeamSize:  maxTeamSize,
		selectionCap: selectionCap,
	}
}

// CreateTeam registers a new team led by the requester on the given
// problem statement. Slot reservation and team persistence commit
// together or not at all.
func (t *TeamService) CreateTeam(ctx context.Context, requesterID, name, description, statementID string) (*model.Team, *Error) {
	l := logger.FromContext(ctx)
	l.Info("creating team", zap.String("team_name", name), zap.String("user_id", requesterID))

	name = strings.TrimSpace(name)
	description = strings.TrimSpace(description)

	if verr := validateTeamName(name); verr != nil {
		return nil, verr
	}
	if utf8.RuneCountInString(description) > teamDescMaxLen {
		return nil, NewError(ErrorCodeValidation, "description must be at most 200 characters")
	}

	team := &model.Team{}

	err := t.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		if _, err := t.teams.GetByMember(txCtx, requesterID); err == nil {
			return NewError(ErrorCodeAlreadyInTeam, "user already belongs to a team")
		} else if !errors.Is(err, repository.ErrNotFound) {
			l.Error("failed to check membership", zap.String("user_id", requesterID), zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to check membership")
		}

		err := t.statements.ReserveSlot(txCtx, statementID, t.selectionCap)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			l.Warn("problem statement not found", zap.String("statement_id", statementID))
			return NewError(ErrorCodeNotFound, "problem statement not found")
		case errors.Is(err, repository.ErrCapacityExceeded):
			l.Warn("problem statement is full", zap.String("statement_id", statementID))
			return NewError(ErrorCodeStatementFull, "problem statement has no remaining team slots")
		case err != nil:
			l.Error("failed to reserve statement slot", zap.String("statement_id", statementID), zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to reserve statement slot")
		}

		repoTeam := &repository.Team{
			ID:                 uuid.NewString(),
			Name:               name,
			Description:        optional(description),
			ProblemStatementID: statementID,
		}
		err = t.teams.Create(txCtx, repoTeam)
		switch {
		case errors.Is(err, repository.ErrAlreadyExists):
			l.Warn("team name taken", zap.String("team_name", name))
			return NewError(ErrorCodeTeamExists, "team name is already taken")
		case errors.Is(err, repository.ErrNotFound):
			return NewError(ErrorCodeNotFound, "problem statement not found")
		case err != nil:
			l.Error("failed to create team", zap.String("team_name", name), zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to create team")
		}

		leader := &repository.TeamMember{
			TeamID: repoTeam.ID,
			UserID: requesterID,
			Role:   string(model.RoleLeader),
		}
		err = t.teams.AddMember(txCtx, leader)
		switch {
		case errors.Is(err, repository.ErrAlreadyExists):
			// The requester joined another team between the check and
			// the insert.
			return NewError(ErrorCodeAlreadyInTeam, "user already belongs to a team")
		case err != nil:
			l.Error("failed to add leader", zap.String("team_id", repoTeam.ID), zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to add team leader")
		}

		*team = *teamToModel(repoTeam, []*repository.TeamMember{leader}, nil)
		return nil
	})

	if err != nil {
		return nil, asServiceError(err)
	}

	l.Debug("team created", zap.String("team_id", team.ID))
	return team, nil
}

// JoinTeam appends the requester as a regular member, respecting the
// team size cap.
func (t *TeamService) JoinTeam(ctx context.Context, requesterID, teamID string) (*model.Team, *Error) {
	l := logger.FromContext(ctx)
	l.Info("joining team", zap.String("team_id", teamID), zap.String("user_id", requesterID))

	team := &model.Team{}

	err := t.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		repoTeam, err := t.teams.GetForUpdate(txCtx, teamID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return NewError(ErrorCodeNotFound, "team not found")
		case err != nil:
			l.Error("failed to get team", zap.String("team_id", teamID), zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to get team")
		}

		members, err := t.teams.GetMembers(txCtx, teamID)
		if err != nil {
			l.Error("failed to get team members", zap.String("team_id", teamID), zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to get team members")
		}
		if len(members) >= t.maxTeamSize {
			l.Warn("team is full", zap.String("team_id", teamID))
			return NewError(ErrorCodeTeamFull, "team is full")
		}

		member := &repository.TeamMember{
			TeamID: teamID,
			UserID: requesterID,
			Role:   string(model.RoleMember),
		}
		err = t.teams.AddMember(txCtx, member)
		switch {
		case errors.Is(err, repository.ErrAlreadyExists):
			return NewError(ErrorCodeAlreadyInTeam, "user already belongs to a team")
		case errors.Is(err, repository.ErrNotFound):
			return NewError(ErrorCodeNotFound, "team not found")
		case err != nil:
			l.Error("failed to add member", zap.String("team_id", teamID), zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to add member")
		}

		*team = *teamToModel(repoTeam, append(members, member), nil)
		return nil
	})

	if err != nil {
		return nil, asServiceError(err)
	}

	return team, nil
}

// LeaveTeam removes the requester from their team. A leaving leader
// hands leadership to an explicit target or to the earliest-joined
// remaining member; a solo leader disbands the team and frees the
// statement slot.
func (t *TeamService) LeaveTeam(ctx context.Context, requesterID, teamID string, transferToUserID string) (*model.LeaveResult, *Error) {
	l := logger.FromContext(ctx)
	l.Info("leaving team", zap.String("team_id", teamID), zap.String("user_id", requesterID))

	result := &model.LeaveResult{}

	err := t.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		repoTeam, err := t.teams.GetForUpdate(txCtx, teamID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return NewError(ErrorCodeNotFound, "team not found")
		case err != nil:
			l.Error("failed to get team", zap.String("team_id", teamID), zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to get team")
		}

		members, err := t.teams.GetMembers(txCtx, teamID)
		if err != nil {
			l.Error("failed to get team members", zap.String("team_id", teamID), zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to get team members")
		}

		requester := findMember(members, requesterID)
		if requester == nil {
			return NewError(ErrorCodeNotATeamMember, "user is not a member of this team")
		}

		// Case A: a regular member just leaves.
		if requester.Role != string(model.RoleLeader) {
			if err = t.teams.RemoveMember(txCtx, teamID, requesterID); err != nil {
				l.Error("failed to remove member", zap.String("team_id", teamID), zap.Error(err))
				return NewError(ErrorCodeUnspecified, "failed to remove member")
			}
			return nil
		}

		// Case C: a solo leader disbands the team.
		if len(members) == 1 {
			if err = t.teams.Delete(txCtx, teamID); err != nil {
				l.Error("failed to delete team", zap.String("team_id", teamID), zap.Error(err))
				return NewError(ErrorCodeUnspecified, "failed to delete team")
			}
			if err = t.statements.ReleaseSlot(txCtx, repoTeam.ProblemStatementID); err != nil {
				l.Error("failed to release statement slot",
					zap.String("statement_id", repoTeam.ProblemStatementID), zap.Error(err))
				return NewError(ErrorCodeUnspecified, "failed to release statement slot")
			}
			result.Disbanded = true
			return nil
		}

		// Case B: the leader leaves and leadership moves on.
		var successor *repository.TeamMember
		if transferToUserID != "" {
			successor = findMember(members, transferToUserID)
			if successor == nil || successor.Role == string(model.RoleLeader) {
				return NewError(ErrorCodeInvalidTransferTarget, "transfer target is not a regular member of this team")
			}
		} else {
			// Members are ordered by joined_at then insertion order, so
			// the first non-leader is the deterministic successor.
			for _, member := range members {
				if member.UserID != requesterID {
					successor = member
					break
				}
			}
		}

		if err = t.teams.SetRole(txCtx, teamID, successor.UserID, string(model.RoleLeader)); err != nil {
			l.Error("failed to transfer leadership", zap.String("team_id", teamID), zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to transfer leadership")
		}
		if err = t.teams.RemoveMember(txCtx, teamID, requesterID); err != nil {
			l.Error("failed to remove leader", zap.String("team_id", teamID), zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to remove member")
		}

		result.NewLeaderID = successor.UserID
		return nil
	})

	if err != nil {
		return nil, asServiceError(err)
	}

	l.Debug("left team",
		zap.String("team_id", teamID),
		zap.Bool("disbanded", result.Disbanded),
		zap.String("new_leader_id", result.NewLeaderID))
	return result, nil
}

// RemoveMember lets the leader expel another member.
func (t *TeamService) RemoveMember(ctx context.Context, requesterID, teamID, memberID string) *Error {
	l := logger.FromContext(ctx)
	l.Info("removing member",
		zap.String("team_id", teamID),
		zap.String("user_id", requesterID),
		zap.String("member_id", memberID))

	err := t.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		if _, err := t.teams.GetForUpdate(txCtx, teamID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return NewError(ErrorCodeNotFound, "team not found")
			}
			l.Error("failed to get team", zap.String("team_id", teamID), zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to get team")
		}

		members, err := t.teams.GetMembers(txCtx, teamID)
		if err != nil {
			l.Error("failed to get team members", zap.String("team_id", teamID), zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to get team members")
		}

		requester := findMember(members, requesterID)
		if requester == nil || requester.Role != string(model.RoleLeader) {
			return NewError(ErrorCodeForbidden, "only the team leader can remove members")
		}
		if memberID == requesterID {
			return NewError(ErrorCodeCannotRemoveSelf, "leader cannot remove themselves; leave or delete the team instead")
		}
		if findMember(members, memberID) == nil {
			return NewError(ErrorCodeNotFound, "member not found in this team")
		}

		if err = t.teams.RemoveMember(txCtx, teamID, memberID); err != nil {
			l.Error("failed to remove member", zap.String("team_id", teamID), zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to remove member")
		}
		return nil
	})

	if err != nil {
		return asServiceError(err)
	}
	return nil
}

// DeleteTeam removes the team entirely and frees its statement slot.
// Votes and memberships go with it.
func (t *TeamService) DeleteTeam(ctx context.Context, requesterID, teamID string) *Error {
	l := logger.FromContext(ctx)
	l.Info("deleting team", zap.String("team_id", teamID), zap.String("user_id", requesterID))

	err := t.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		repoTeam, err := t.teams.GetForUpdate(txCtx, teamID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return NewError(ErrorCodeNotFound, "team not found")
		case err != nil:
			l.Error("failed to get team", zap.String("team_id", teamID), zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to get team")
		}

		members, err := t.teams.GetMembers(txCtx, teamID)
		if err != nil {
			l.Error("failed to get team members", zap.String("team_id", teamID), zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to get team members")
		}

		requester := findMember(members, requesterID)
		if requester == nil || requester.Role != string(model.RoleLeader) {
			return NewError(ErrorCodeForbidden, "only the team leader can delete the team")
		}

		if err = t.teams.Delete(txCtx, teamID); err != nil {
			l.Error("failed to delete team", zap.String("team_id", teamID), zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to delete team")
		}
		if err = t.statements.ReleaseSlot(txCtx, repoTeam.ProblemStatementID); err != nil {
			l.Error("failed to release statement slot",
				zap.String("statement_id", repoTeam.ProblemStatementID), zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to release statement slot")
		}
		return nil
	})

	if err != nil {
		return asServiceError(err)
	}
	return nil
}

// GetMyTeam returns the caller's team with members and vote aggregate.
func (t *TeamService) GetMyTeam(ctx context.Context, userID string) (*model.Team, *Error) {
	l := logger.FromContext(ctx)
	l.Debug("getting own team", zap.String("user_id", userID))

	repoTeam, err := t.teams.GetByMember(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NewError(ErrorCodeNotFound, "user does not belong to a team")
	}
	if err != nil {
		l.Error("failed to get team", zap.String("user_id", userID), zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to get team")
	}

	members, err := t.teams.GetMembers(ctx, repoTeam.ID)
	if err != nil {
		l.Error("failed to get team members", zap.String("team_id", repoTeam.ID), zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to get team members")
	}

	agg, err := t.votes.TeamAggregate(ctx, repoTeam.ID)
	if err != nil {
		l.Error("failed to get team rating", zap.String("team_id", repoTeam.ID), zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to get team rating")
	}

	return teamToModel(repoTeam, members, agg), nil
}

// ListTeams returns all teams as summaries with member counts and vote
// aggregates, optionally filtered by free-text search.
func (t *TeamService) ListTeams(ctx context.Context, search string) ([]*model.TeamSummary, *Error) {
	l := logger.FromContext(ctx)
	l.Debug("listing teams", zap.String("search", search))

	repoTeams, err := t.teams.List(ctx, search)
	if err != nil {
		l.Error("failed to list teams", zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to list teams")
	}

	counts, err := t.teams.MemberCounts(ctx)
	if err != nil {
		l.Error("failed to count members", zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to count members")
	}

	aggregates, err := t.votes.TeamAggregates(ctx)
	if err != nil {
		l.Error("failed to get team ratings", zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to get team ratings")
	}

	summaries := make([]*model.TeamSummary, 0, len(repoTeams))
	for _, repoTeam := range repoTeams {
		summaries = append(summaries, teamToSummary(repoTeam, counts[repoTeam.ID], aggregates[repoTeam.ID]))
	}

	return summaries, nil
}

func (t *TeamService) WithTeamRepo(r repository.TeamRepository) *TeamService {
	t.teams = r
	return t
}

func (t *TeamService) WithStatementRepo(r repository.StatementRepository) *TeamService {
	t.statements = r
	return t
}

func (t *TeamService) WithVoteRepo(r repository.VoteRepository) *TeamService {
	t.votes = r
	return t
}

func validateTeamName(name string) *Error {
	length := utf8.RuneCountInString(name)
	if length < teamNameMinLen || length > teamNameMaxLen {
		return NewError(ErrorCodeValidation, "team name must be 3 to 50 characters")
	}
	if !teamNamePattern.MatchString(name) {
		return NewError(ErrorCodeValidation, "team name contains invalid characters")
	}
	return nil
}

func findMember(members []*repository.TeamMember, userID string) *repository.TeamMember {
	for _, member := range members {
		if member.UserID == userID {
			return member
		}
	}
	return nil
}

func teamToModel(team *repository.Team, members []*repository.TeamMember, agg *repository.TeamRating) *model.Team {
	res := &model.Team{
		ID:                 team.ID,
		Name:               team.Name,
		ProblemStatementID: team.ProblemStatementID,
		Members:            make([]*model.TeamMember, 0, len(members)),
		CreatedAt:          team.CreatedAt,
	}
	if team.Description != nil {
		res.Description = *team.Description
	}
	for _, member := range members {
		m := &model.TeamMember{
			UserID: member.UserID,
			Role:   model.Role(member.Role),
		}
		if member.JoinedAt != nil {
			m.JoinedAt = *member.JoinedAt
		}
		res.Members = append(res.Members, m)
	}
	if agg != nil {
		res.Rating = agg.Rating
		res.TotalVotes = agg.TotalVotes
	}
	return res
}

func teamToSummary(team *repository.Team, memberCount int, agg *repository.TeamRating) *model.TeamSummary {
	res := &model.TeamSummary{
		ID:                 team.ID,
		Name:               team.Name,
		ProblemStatementID: team.ProblemStatementID,
		MemberCount:        memberCount,
		CreatedAt:          team.CreatedAt,
	}
	if team.Description != nil {
		res.Description = *team.Description
	}
	if agg != nil {
		res.Rating = agg.Rating
		res.TotalVotes = agg.TotalVotes
	}
	return res
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// asServiceError unwraps the typed error from the transactor's wrapping;
// anything else becomes UNSPECIFIED so callers always see a typed code.
func asServiceError(err error) *Error {
	var res *Error
	if errors.As(err, &res) {
		return res
	}
	return NewError(ErrorCodeUnspecified, "internal error")
}
