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
	customTitleMinLen = 10
	customDescMinLen  = 50

	defaultPageSize = 20
	maxPageSize     = 100
)

type StatementService struct {
	tx db.Transactor

	statements repository.StatementRepository

	selectionCap int
}

func NewStatementService(tx db.Transactor, selectionCap int) *StatementService {
	return &StatementService{
		tx:           tx,
		selectionCap: selectionCap,
	}
}

type CustomStatementInput struct {
	Title                 string
	Description           string
	Domain                string
	Topic                 string
	SuggestedTechnologies []string
}

// CreateCustom registers a private problem statement owned by the
// caller. Each user may own at most one.
func (s *StatementService) CreateCustom(ctx context.Context, userID string, input *CustomStatementInput) (*model.ProblemStatement, *Error) {
	l := logger.FromContext(ctx)
	l.Info("creating custom statement", zap.String("user_id", userID), zap.String("title", input.Title))

	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	domain := strings.TrimSpace(input.Domain)

	if utf8.RuneCountInString(title) < customTitleMinLen {
		return nil, NewError(ErrorCodeValidation, "title must be at least 10 characters")
	}
	if utf8.RuneCountInString(description) < customDescMinLen {
		return nil, NewError(ErrorCodeValidation, "description must be at least 50 characters")
	}
	if domain == "" {
		return nil, NewError(ErrorCodeValidation, "domain is required")
	}

	st := &repository.ProblemStatement{
		ID:                    uuid.NewString(),
		Title:                 title,
		Description:           description,
		Domain:                domain,
		Topic:                 optional(strings.TrimSpace(input.Topic)),
		SuggestedTechnologies: input.SuggestedTechnologies,
		Visibility:            string(model.VisibilityCustom),
		CreatedBy:             &userID,
	}
	if st.SuggestedTechnologies == nil {
		st.SuggestedTechnologies = []string{}
	}

	err := s.statements.Create(ctx, st)
	if errors.Is(err, repository.ErrAlreadyExists) {
		l.Warn("custom statement already exists", zap.String("user_id", userID))
		return nil, NewError(ErrorCodeDuplicateCustomStatement, "user already owns a custom problem statement")
	}
	if err != nil {
		l.Error("failed to create custom statement", zap.String("user_id", userID), zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to create custom statement")
	}

	return s.statementToModel(st), nil
}

type StatementListFilter struct {
	Domain   string
	Search   string
	Page     int
	PageSize int
}

// List returns catalog statements plus the viewer's own custom entries,
// paginated, each with its current selection count.
func (s *StatementService) List(ctx context.Context, viewerID string, filter *StatementListFilter) (*model.StatementPage, *Error) {
	l := logger.FromContext(ctx)
	l.Debug("listing statements",
		zap.String("user_id", viewerID),
		zap.String("domain", filter.Domain),
		zap.String("search", filter.Search))

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	statements, total, err := s.statements.List(ctx, &repository.StatementFilter{
		ViewerID: viewerID,
		Domain:   filter.Domain,
		Search:   filter.Search,
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		l.Error("failed to list statements", zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to list problem statements")
	}

	items := make([]*model.ProblemStatement, 0, len(statements))
	for _, st := range statements {
		items = append(items, s.statementToModel(st))
	}

	return &model.StatementPage{
		Items:    items,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

// Get returns a single statement, hiding other users' custom entries.
func (s *StatementService) Get(ctx context.Context, viewerID, id string) (*model.ProblemStatement, *Error) {
	l := logger.FromContext(ctx)
	l.Debug("getting statement", zap.String("statement_id", id))

	st, err := s.statements.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NewError(ErrorCodeNotFound, "problem statement not found")
	}
	if err != nil {
		l.Error("failed to get statement", zap.String("statement_id", id), zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to get problem statement")
	}

	if st.Visibility == string(model.VisibilityCustom) && (st.CreatedBy == nil || *st.CreatedBy != viewerID) {
		return nil, NewError(ErrorCodeNotFound, "problem statement not found")
	}

	return s.statementToModel(st), nil
}

func (s *StatementService) WithStatementRepo(r repository.StatementRepository) *StatementService {
	s.statements = r
	return s
}

func (s *StatementService) statementToModel(st *repository.ProblemStatement) *model.ProblemStatement {
	res := &model.ProblemStatement{
		ID:                    st.ID,
		Title:                 st.Title,
		Description:           st.Description,
		Domain:                st.Domain,
		SuggestedTechnologies: st.SuggestedTechnologies,
		Visibility:            model.Visibility(st.Visibility),
		SelectionCount:        st.SelectionCount,
		CreatedAt:             st.CreatedAt,
	}
	if st.Topic != nil {
		res.Topic = *st.Topic
	}
	if st.CreatedBy != nil {
		res.CreatedBy = *st.CreatedBy
	}
	if remaining := s.selectionCap - st.SelectionCount; remaining > 0 {
		res.RemainingSlots = remaining
	}
	return res
}
