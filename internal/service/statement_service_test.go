package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/aleksfrolov/hackteams/internal/model"
	"github.com/aleksfrolov/hackteams/internal/repository"
)

func newTestStatementService(sr *MockStatementRepository) *StatementService {
	return NewStatementService(new(MockTransactor), 4).
		WithStatementRepo(sr)
}

func validCustomInput() *CustomStatementInput {
	return &CustomStatementInput{
		Title:       "Realtime delivery tracking",
		Description: strings.Repeat("Track couriers on a live map with eta updates. ", 3),
		Domain:      "logistics",
		Topic:       "geo",
	}
}

func TestStatementService_CreateCustom(t *testing.T) {
	tests := []struct {
		name          string
		input         func() *CustomStatementInput
		setupMocks    func(*MockStatementRepository)
		expectedError bool
		errorCode     ErrorCode
	}{
		{
			name:  "success",
			input: validCustomInput,
			setupMocks: func(sr *MockStatementRepository) {
				sr.On("Create", mock.Anything, mock.MatchedBy(func(st *repository.ProblemStatement) bool {
					return st.Visibility == string(model.VisibilityCustom) &&
						st.CreatedBy != nil && *st.CreatedBy == "u1" &&
						st.SuggestedTechnologies != nil
				})).Return(nil)
			},
		},
		{
			name:  "user already owns a custom statement",
			input: validCustomInput,
			setupMocks: func(sr *MockStatementRepository) {
				sr.On("Create", mock.Anything, mock.Anything).Return(repository.ErrAlreadyExists)
			},
			expectedError: true,
			errorCode:     ErrorCodeDuplicateCustomStatement,
		},
		{
			name: "title too short",
			input: func() *CustomStatementInput {
				in := validCustomInput()
				in.Title = "Short"
				return in
			},
			setupMocks:    func(sr *MockStatementRepository) {},
			expectedError: true,
			errorCode:     ErrorCodeValidation,
		},
		{
			name: "description too short",
			input: func() *CustomStatementInput {
				in := validCustomInput()
				in.Description = "Not enough detail here."
				return in
			},
			setupMocks:    func(sr *MockStatementRepository) {},
			expectedError: true,
			errorCode:     ErrorCodeValidation,
		},
		{
			name: "domain is required",
			input: func() *CustomStatementInput {
				in := validCustomInput()
				in.Domain = "   "
				return in
			},
			setupMocks:    func(sr *MockStatementRepository) {},
			expectedError: true,
			errorCode:     ErrorCodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockStatementRepo := new(MockStatementRepository)

			tt.setupMocks(mockStatementRepo)

			service := newTestStatementService(mockStatementRepo)

			got, err := service.CreateCustom(context.Background(), "u1", tt.input())

			if tt.expectedError {
				assert.Error(t, err)
				assert.Equal(t, tt.errorCode, err.Code)
				assert.Nil(t, got)
			} else {
				assert.Nil(t, err)
				assert.Equal(t, model.VisibilityCustom, got.Visibility)
				assert.Equal(t, "u1", got.CreatedBy)
				assert.Equal(t, 4, got.RemainingSlots)
			}

			mockStatementRepo.AssertExpectations(t)
		})
	}
}

func TestStatementService_List(t *testing.T) {
	statements := []*repository.ProblemStatement{
		{ID: "ps1", Title: "Smart parking assistant", Domain: "urban", Visibility: "catalog", SelectionCount: 4},
		{ID: "ps2", Title: "Crowdsourced air quality", Domain: "urban", Visibility: "catalog", SelectionCount: 1},
	}

	tests := []struct {
		name             string
		filter           *StatementListFilter
		expectedPage     int
		expectedPageSize int
	}{
		{
			name:             "defaults applied",
			filter:           &StatementListFilter{},
			expectedPage:     1,
			expectedPageSize: 20,
		},
		{
			name:             "page size clamped to maximum",
			filter:           &StatementListFilter{Page: 2, PageSize: 500},
			expectedPage:     2,
			expectedPageSize: 100,
		},
		{
			name:             "negative page reset to first",
			filter:           &StatementListFilter{Page: -3, PageSize: 10},
			expectedPage:     1,
			expectedPageSize: 10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockStatementRepo := new(MockStatementRepository)

			mockStatementRepo.On("List", mock.Anything, mock.MatchedBy(func(f *repository.StatementFilter) bool {
				return f.ViewerID == "u1" && f.Page == tt.expectedPage && f.PageSize == tt.expectedPageSize
			})).Return(statements, 2, nil)

			service := newTestStatementService(mockStatementRepo)

			got, err := service.List(context.Background(), "u1", tt.filter)
			assert.Nil(t, err)
			assert.Equal(t, 2, got.Total)
			assert.Equal(t, tt.expectedPage, got.Page)
			assert.Equal(t, tt.expectedPageSize, got.PageSize)
			assert.Len(t, got.Items, 2)

			// at the cap no slots remain, below it the difference is reported
			assert.Equal(t, 0, got.Items[0].RemainingSlots)
			assert.Equal(t, 3, got.Items[1].RemainingSlots)

			mockStatementRepo.AssertExpectations(t)
		})
	}
}

func TestStatementService_Get(t *testing.T) {
	owner := "u1"

	tests := []struct {
		name          string
		viewerID      string
		setupMocks    func(*MockStatementRepository)
		expectedError bool
		errorCode     ErrorCode
	}{
		{
			name:     "catalog statement visible to anyone",
			viewerID: "stranger",
			setupMocks: func(sr *MockStatementRepository) {
				sr.On("Get", mock.Anything, "ps1").Return(&repository.ProblemStatement{
					ID:         "ps1",
					Title:      "Smart parking assistant",
					Visibility: "catalog",
				}, nil)
			},
		},
		{
			name:     "custom statement visible to owner",
			viewerID: owner,
			setupMocks: func(sr *MockStatementRepository) {
				sr.On("Get", mock.Anything, "ps1").Return(&repository.ProblemStatement{
					ID:         "ps1",
					Title:      "Realtime delivery tracking",
					Visibility: "custom",
					CreatedBy:  &owner,
				}, nil)
			},
		},
		{
			name:     "custom statement hidden from others",
			viewerID: "stranger",
			setupMocks: func(sr *MockStatementRepository) {
				sr.On("Get", mock.Anything, "ps1").Return(&repository.ProblemStatement{
					ID:         "ps1",
					Title:      "Realtime delivery tracking",
					Visibility: "custom",
					CreatedBy:  &owner,
				}, nil)
			},
			expectedError: true,
			errorCode:     ErrorCodeNotFound,
		},
		{
			name:     "statement not found",
			viewerID: "stranger",
			setupMocks: func(sr *MockStatementRepository) {
				sr.On("Get", mock.Anything, "ps1").Return(nil, repository.ErrNotFound)
			},
			expectedError: true,
			errorCode:     ErrorCodeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockStatementRepo := new(MockStatementRepository)

			tt.setupMocks(mockStatementRepo)

			service := newTestStatementService(mockStatementRepo)

			got, err := service.Get(context.Background(), tt.viewerID, "ps1")

			if tt.expectedError {
				assert.Error(t, err)
				assert.Equal(t, tt.errorCode, err.Code)
				assert.Nil(t, got)
			} else {
				assert.Nil(t, err)
				assert.Equal(t, "ps1", got.ID)
			}

			mockStatementRepo.AssertExpectations(t)
		})
	}
}
