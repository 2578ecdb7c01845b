package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/aleksfrolov/hackteams/internal/model"
	"github.com/aleksfrolov/hackteams/internal/repository"
)

const (
	testMaxTeamSize  = 6
	testSelectionCap = 4
)

func newTestTeamService(tr *MockTeamRepository, sr *MockStatementRepository, vr *MockVoteRepository) *TeamService {
	return NewTeamService(new(MockTransactor), testMaxTeamSize, testSelectionCap).
		WithTeamRepo(tr).
		WithStatementRepo(sr).
		WithVoteRepo(vr)
}

func member(teamID, userID, role string, joinedAt time.Time, position int64) *repository.TeamMember {
	return &repository.TeamMember{
		TeamID:   teamID,
		UserID:   userID,
		Role:     role,
		JoinedAt: &joinedAt,
		Position: position,
	}
}

func TestTeamService_CreateTeam(t *testing.T) {
	statementID := "7b2f8c3e-26b3-4d0a-9c41-2f4f3f1a9e01"

	tests := []struct {
		name          string
		teamName      string
		setupMocks    func(*MockTeamRepository, *MockStatementRepository)
		expectedError bool
		errorCode     ErrorCode
	}{
		{
			name:     "success",
			teamName: "Nova",
			setupMocks: func(tr *MockTeamRepository, sr *MockStatementRepository) {
				tr.On("GetByMember", mock.Anything, "user1").Return(nil, repository.ErrNotFound)
				sr.On("ReserveSlot", mock.Anything, statementID, testSelectionCap).Return(nil)
				tr.On("Create", mock.Anything, mock.MatchedBy(func(team *repository.Team) bool {
					return team.Name == "Nova" && team.ProblemStatementID == statementID
				})).Return(nil)
				tr.On("AddMember", mock.Anything, mock.MatchedBy(func(m *repository.TeamMember) bool {
					return m.UserID == "user1" && m.Role == string(model.RoleLeader)
				})).Return(nil)
			},
			expectedError: false,
		},
		{
			name:     "requester already in a team",
			teamName: "Nova",
			setupMocks: func(tr *MockTeamRepository, sr *MockStatementRepository) {
				tr.On("GetByMember", mock.Anything, "user1").Return(&repository.Team{ID: "t1"}, nil)
			},
			expectedError: true,
			errorCode:     ErrorCodeAlreadyInTeam,
		},
		{
			name:     "statement has no free slots",
			teamName: "Nova",
			setupMocks: func(tr *MockTeamRepository, sr *MockStatementRepository) {
				tr.On("GetByMember", mock.Anything, "user1").Return(nil, repository.ErrNotFound)
				sr.On("ReserveSlot", mock.Anything, statementID, testSelectionCap).Return(repository.ErrCapacityExceeded)
			},
			expectedError: true,
			errorCode:     ErrorCodeStatementFull,
		},
		{
			name:     "statement not found",
			teamName: "Nova",
			setupMocks: func(tr *MockTeamRepository, sr *MockStatementRepository) {
				tr.On("GetByMember", mock.Anything, "user1").Return(nil, repository.ErrNotFound)
				sr.On("ReserveSlot", mock.Anything, statementID, testSelectionCap).Return(repository.ErrNotFound)
			},
			expectedError: true,
			errorCode:     ErrorCodeNotFound,
		},
		{
			name:          "name too short",
			teamName:      "ab",
			setupMocks:    func(tr *MockTeamRepository, sr *MockStatementRepository) {},
			expectedError: true,
			errorCode:     ErrorCodeValidation,
		},
		{
			name:     "name already taken",
			teamName: "Nova",
			setupMocks: func(tr *MockTeamRepository, sr *MockStatementRepository) {
				tr.On("GetByMember", mock.Anything, "user1").Return(nil, repository.ErrNotFound)
				sr.On("ReserveSlot", mock.Anything, statementID, testSelectionCap).Return(nil)
				tr.On("Create", mock.Anything, mock.Anything).Return(repository.ErrAlreadyExists)
			},
			expectedError: true,
			errorCode:     ErrorCodeTeamExists,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockTeamRepo := new(MockTeamRepository)
			mockStatementRepo := new(MockStatementRepository)
			mockVoteRepo := new(MockVoteRepository)

			tt.setupMocks(mockTeamRepo, mockStatementRepo)

			service := newTestTeamService(mockTeamRepo, mockStatementRepo, mockVoteRepo)

			got, err := service.CreateTeam(context.Background(), "user1", tt.teamName, "", statementID)

			if tt.expectedError {
				assert.Error(t, err)
				assert.Equal(t, tt.errorCode, err.Code)
				assert.Nil(t, got)
			} else {
				assert.Nil(t, err)
				assert.Equal(t, "Nova", got.Name)
				assert.Len(t, got.Members, 1)
				assert.Equal(t, model.RoleLeader, got.Members[0].Role)
			}

			mockTeamRepo.AssertExpectations(t)
			mockStatementRepo.AssertExpectations(t)
		})
	}
}

func TestTeamService_JoinTeam(t *testing.T) {
	now := time.Now()
	team := &repository.Team{ID: "t1", Name: "Nova", ProblemStatementID: "ps1"}

	fullRoster := make([]*repository.TeamMember, 0, testMaxTeamSize)
	for i := 0; i < testMaxTeamSize; i++ {
		role := string(model.RoleMember)
		if i == 0 {
			role = string(model.RoleLeader)
		}
		fullRoster = append(fullRoster, member("t1", "u"+string(rune('1'+i)), role, now, int64(i)))
	}

	tests := []struct {
		name          string
		setupMocks    func(*MockTeamRepository)
		expectedError bool
		errorCode     ErrorCode
	}{
		{
			name: "success",
			setupMocks: func(tr *MockTeamRepository) {
				tr.On("GetForUpdate", mock.Anything, "t1").Return(team, nil)
				tr.On("GetMembers", mock.Anything, "t1").Return([]*repository.TeamMember{
					member("t1", "leader", string(model.RoleLeader), now, 1),
				}, nil)
				tr.On("AddMember", mock.Anything, mock.MatchedBy(func(m *repository.TeamMember) bool {
					return m.UserID == "newbie" && m.Role == string(model.RoleMember)
				})).Return(nil)
			},
			expectedError: false,
		},
		{
			name: "team not found",
			setupMocks: func(tr *MockTeamRepository) {
				tr.On("GetForUpdate", mock.Anything, "t1").Return(nil, repository.ErrNotFound)
			},
			expectedError: true,
			errorCode:     ErrorCodeNotFound,
		},
		{
			name: "team is full",
			setupMocks: func(tr *MockTeamRepository) {
				tr.On("GetForUpdate", mock.Anything, "t1").Return(team, nil)
				tr.On("GetMembers", mock.Anything, "t1").Return(fullRoster, nil)
			},
			expectedError: true,
			errorCode:     ErrorCodeTeamFull,
		},
		{
			name: "requester already in a team",
			setupMocks: func(tr *MockTeamRepository) {
				tr.On("GetForUpdate", mock.Anything, "t1").Return(team, nil)
				tr.On("GetMembers", mock.Anything, "t1").Return([]*repository.TeamMember{
					member("t1", "leader", string(model.RoleLeader), now, 1),
				}, nil)
				tr.On("AddMember", mock.Anything, mock.Anything).Return(repository.ErrAlreadyExists)
			},
			expectedError: true,
			errorCode:     ErrorCodeAlreadyInTeam,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockTeamRepo := new(MockTeamRepository)

			tt.setupMocks(mockTeamRepo)

			service := newTestTeamService(mockTeamRepo, new(MockStatementRepository), new(MockVoteRepository))

			got, err := service.JoinTeam(context.Background(), "newbie", "t1")

			if tt.expectedError {
				assert.Error(t, err)
				assert.Equal(t, tt.errorCode, err.Code)
				assert.Nil(t, got)
			} else {
				assert.Nil(t, err)
				assert.Len(t, got.Members, 2)
			}

			mockTeamRepo.AssertExpectations(t)
		})
	}
}

func TestTeamService_LeaveTeam(t *testing.T) {
	team := &repository.Team{ID: "t1", Name: "Nova", ProblemStatementID: "ps1"}
	t0 := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	// members ordered by joined_at then insertion order, as the repo returns them
	roster := func() []*repository.TeamMember {
		return []*repository.TeamMember{
			member("t1", "lead", string(model.RoleLeader), t0, 1),
			member("t1", "alice", string(model.RoleMember), t0.Add(time.Minute), 2),
			member("t1", "bob", string(model.RoleMember), t0.Add(2*time.Minute), 3),
		}
	}

	tests := []struct {
		name            string
		requesterID     string
		transferTo      string
		setupMocks      func(*MockTeamRepository, *MockStatementRepository)
		expectedError   bool
		errorCode       ErrorCode
		expectDisband   bool
		expectNewLeader string
	}{
		{
			name:        "regular member leaves",
			requesterID: "bob",
			setupMocks: func(tr *MockTeamRepository, sr *MockStatementRepository) {
				tr.On("GetForUpdate", mock.Anything, "t1").Return(team, nil)
				tr.On("GetMembers", mock.Anything, "t1").Return(roster(), nil)
				tr.On("RemoveMember", mock.Anything, "t1", "bob").Return(nil)
			},
		},
		{
			name:        "leader leaves, earliest-joined member succeeds",
			requesterID: "lead",
			setupMocks: func(tr *MockTeamRepository, sr *MockStatementRepository) {
				tr.On("GetForUpdate", mock.Anything, "t1").Return(team, nil)
				tr.On("GetMembers", mock.Anything, "t1").Return(roster(), nil)
				tr.On("SetRole", mock.Anything, "t1", "alice", string(model.RoleLeader)).Return(nil)
				tr.On("RemoveMember", mock.Anything, "t1", "lead").Return(nil)
			},
			expectNewLeader: "alice",
		},
		{
			name:        "leader leaves with explicit transfer target",
			requesterID: "lead",
			transferTo:  "bob",
			setupMocks: func(tr *MockTeamRepository, sr *MockStatementRepository) {
				tr.On("GetForUpdate", mock.Anything, "t1").Return(team, nil)
				tr.On("GetMembers", mock.Anything, "t1").Return(roster(), nil)
				tr.On("SetRole", mock.Anything, "t1", "bob", string(model.RoleLeader)).Return(nil)
				tr.On("RemoveMember", mock.Anything, "t1", "lead").Return(nil)
			},
			expectNewLeader: "bob",
		},
		{
			name:        "invalid transfer target",
			requesterID: "lead",
			transferTo:  "stranger",
			setupMocks: func(tr *MockTeamRepository, sr *MockStatementRepository) {
				tr.On("GetForUpdate", mock.Anything, "t1").Return(team, nil)
				tr.On("GetMembers", mock.Anything, "t1").Return(roster(), nil)
			},
			expectedError: true,
			errorCode:     ErrorCodeInvalidTransferTarget,
		},
		{
			name:        "solo leader disbands the team",
			requesterID: "lead",
			setupMocks: func(tr *MockTeamRepository, sr *MockStatementRepository) {
				tr.On("GetForUpdate", mock.Anything, "t1").Return(team, nil)
				tr.On("GetMembers", mock.Anything, "t1").Return([]*repository.TeamMember{
					member("t1", "lead", string(model.RoleLeader), t0, 1),
				}, nil)
				tr.On("Delete", mock.Anything, "t1").Return(nil)
				sr.On("ReleaseSlot", mock.Anything, "ps1").Return(nil)
			},
			expectDisband: true,
		},
		{
			name:        "requester is not a member",
			requesterID: "stranger",
			setupMocks: func(tr *MockTeamRepository, sr *MockStatementRepository) {
				tr.On("GetForUpdate", mock.Anything, "t1").Return(team, nil)
				tr.On("GetMembers", mock.Anything, "t1").Return(roster(), nil)
			},
			expectedError: true,
			errorCode:     ErrorCodeNotATeamMember,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockTeamRepo := new(MockTeamRepository)
			mockStatementRepo := new(MockStatementRepository)

			tt.setupMocks(mockTeamRepo, mockStatementRepo)

			service := newTestTeamService(mockTeamRepo, mockStatementRepo, new(MockVoteRepository))

			got, err := service.LeaveTeam(context.Background(), tt.requesterID, "t1", tt.transferTo)

			if tt.expectedError {
				assert.Error(t, err)
				assert.Equal(t, tt.errorCode, err.Code)
			} else {
				assert.Nil(t, err)
				assert.Equal(t, tt.expectDisband, got.Disbanded)
				assert.Equal(t, tt.expectNewLeader, got.NewLeaderID)
			}

			mockTeamRepo.AssertExpectations(t)
			mockStatementRepo.AssertExpectations(t)
		})
	}
}

func TestTeamService_RemoveMember(t *testing.T) {
	team := &repository.Team{ID: "t1", Name: "Nova", ProblemStatementID: "ps1"}
	now := time.Now()

	roster := []*repository.TeamMember{
		member("t1", "lead", string(model.RoleLeader), now, 1),
		member("t1", "alice", string(model.RoleMember), now, 2),
	}

	tests := []struct {
		name          string
		requesterID   string
		memberID      string
		setupMocks    func(*MockTeamRepository)
		expectedError bool
		errorCode     ErrorCode
	}{
		{
			name:        "success",
			requesterID: "lead",
			memberID:    "alice",
			setupMocks: func(tr *MockTeamRepository) {
				tr.On("GetForUpdate", mock.Anything, "t1").Return(team, nil)
				tr.On("GetMembers", mock.Anything, "t1").Return(roster, nil)
				tr.On("RemoveMember", mock.Anything, "t1", "alice").Return(nil)
			},
		},
		{
			name:        "requester is not the leader",
			requesterID: "alice",
			memberID:    "lead",
			setupMocks: func(tr *MockTeamRepository) {
				tr.On("GetForUpdate", mock.Anything, "t1").Return(team, nil)
				tr.On("GetMembers", mock.Anything, "t1").Return(roster, nil)
			},
			expectedError: true,
			errorCode:     ErrorCodeForbidden,
		},
		{
			name:        "leader removes themselves",
			requesterID: "lead",
			memberID:    "lead",
			setupMocks: func(tr *MockTeamRepository) {
				tr.On("GetForUpdate", mock.Anything, "t1").Return(team, nil)
				tr.On("GetMembers", mock.Anything, "t1").Return(roster, nil)
			},
			expectedError: true,
			errorCode:     ErrorCodeCannotRemoveSelf,
		},
		{
			name:        "member not found",
			requesterID: "lead",
			memberID:    "ghost",
			setupMocks: func(tr *MockTeamRepository) {
				tr.On("GetForUpdate", mock.Anything, "t1").Return(team, nil)
				tr.On("GetMembers", mock.Anything, "t1").Return(roster, nil)
			},
			expectedError: true,
			errorCode:     ErrorCodeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockTeamRepo := new(MockTeamRepository)

			tt.setupMocks(mockTeamRepo)

			service := newTestTeamService(mockTeamRepo, new(MockStatementRepository), new(MockVoteRepository))

			err := service.RemoveMember(context.Background(), tt.requesterID, "t1", tt.memberID)

			if tt.expectedError {
				assert.Error(t, err)
				assert.Equal(t, tt.errorCode, err.Code)
			} else {
				assert.Nil(t, err)
			}

			mockTeamRepo.AssertExpectations(t)
		})
	}
}

func TestTeamService_DeleteTeam(t *testing.T) {
	team := &repository.Team{ID: "t1", Name: "Nova", ProblemStatementID: "ps1"}
	now := time.Now()

	roster := []*repository.TeamMember{
		member("t1", "lead", string(model.RoleLeader), now, 1),
		member("t1", "alice", string(model.RoleMember), now, 2),
	}

	t.Run("success", func(t *testing.T) {
		mockTeamRepo := new(MockTeamRepository)
		mockStatementRepo := new(MockStatementRepository)

		mockTeamRepo.On("GetForUpdate", mock.Anything, "t1").Return(team, nil)
		mockTeamRepo.On("GetMembers", mock.Anything, "t1").Return(roster, nil)
		mockTeamRepo.On("Delete", mock.Anything, "t1").Return(nil)
		mockStatementRepo.On("ReleaseSlot", mock.Anything, "ps1").Return(nil)

		service := newTestTeamService(mockTeamRepo, mockStatementRepo, new(MockVoteRepository))

		err := service.DeleteTeam(context.Background(), "lead", "t1")
		assert.Nil(t, err)

		mockTeamRepo.AssertExpectations(t)
		mockStatementRepo.AssertExpectations(t)
	})

	t.Run("non-leader is rejected", func(t *testing.T) {
		mockTeamRepo := new(MockTeamRepository)

		mockTeamRepo.On("GetForUpdate", mock.Anything, "t1").Return(team, nil)
		mockTeamRepo.On("GetMembers", mock.Anything, "t1").Return(roster, nil)

		service := newTestTeamService(mockTeamRepo, new(MockStatementRepository), new(MockVoteRepository))

		err := service.DeleteTeam(context.Background(), "alice", "t1")
		assert.Error(t, err)
		assert.Equal(t, ErrorCodeForbidden, err.Code)

		mockTeamRepo.AssertExpectations(t)
	})

	t.Run("repo failure surfaces as unspecified", func(t *testing.T) {
		mockTeamRepo := new(MockTeamRepository)

		mockTeamRepo.On("GetForUpdate", mock.Anything, "t1").Return(nil, errors.New("db error"))

		service := newTestTeamService(mockTeamRepo, new(MockStatementRepository), new(MockVoteRepository))

		err := service.DeleteTeam(context.Background(), "lead", "t1")
		assert.Error(t, err)
		assert.Equal(t, ErrorCodeUnspecified, err.Code)
	})
}
