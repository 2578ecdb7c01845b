package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/aleksfrolov/hackteams/internal/auth"
	"github.com/aleksfrolov/hackteams/internal/service"
)

type Handler struct {
	team       *service.TeamService
	statements *service.StatementService
	votes      *service.VoteService

	healthChecker HealthChecker

	logger *zap.Logger
}

func NewHandler(logger *zap.Logger) *Handler {
	return &Handler{
		logger: logger,
	}
}

func (h *Handler) WithHealthChecker(c HealthChecker) *Handler {
	h.healthChecker = c
	return h
}

func (h *Handler) WithTeamService(team *service.TeamService) *Handler {
	h.team = team
	return h
}

func (h *Handler) WithStatementService(statements *service.StatementService) *Handler {
	h.statements = statements
	return h
}

func (h *Handler) WithVoteService(votes *service.VoteService) *Handler {
	h.votes = votes
	return h
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.Validator = NewValidator()
	e.Use(middleware.RequestID())
	e.Use(ZapLoggerMiddleware(h.logger))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	e.GET("/health", h.healthChecker.HealthCheck())

	secured := e.Group("", AuthMiddleware(auth.RoleUser, auth.RoleAdmin))

	secured.POST("/team", h.CreateTeam)
	secured.GET("/team", h.ListTeams)
	secured.GET("/team/mine", h.GetMyTeam)
	secured.POST("/team/:id/join", h.JoinTeam)
	secured.POST("/team/:id/leave", h.LeaveTeam)
	secured.DELETE("/team/:id/members/:memberId", h.RemoveMember)
	secured.DELETE("/team/:id", h.DeleteTeam)

	secured.GET("/problemStatement", h.ListStatements)
	secured.GET("/problemStatement/:id", h.GetStatement)
	secured.POST("/problemStatement/custom", h.CreateCustomStatement)

	secured.GET("/vote/teams-with-ratings", h.ListTeamsWithRatings)
	secured.POST("/vote/teams/:teamId", h.SubmitVote)
	secured.PUT("/vote/teams/:teamId", h.UpdateVote)
	secured.DELETE("/vote/teams/:teamId", h.DeleteVote)
	secured.GET("/vote/teams/:teamId/check", h.CheckUserVote)
	secured.GET("/vote/mine", h.ListMyVotes)
}

func (h *Handler) decodeRequest(e echo.Context, req any) *service.Error {
	if err := e.Bind(req); err != nil {
		return service.NewError(service.ErrorCodeInvalidBody, "invalid request body")
	}

	if err := e.Validate(req); err != nil {
		return service.NewError(service.ErrorCodeInvalidBody, errors.Wrap(err, "request validation failed").Error())
	}
	return nil
}

func (h *Handler) transportError(e echo.Context, err *service.Error) error {
	response := struct {
		Error *service.Error `json:"error"`
	}{Error: err}

	switch err.Code {
	case service.ErrorCodeNotFound:
		return e.JSON(http.StatusNotFound, response)
	case service.ErrorCodeValidation, service.ErrorCodeInvalidBody:
		return e.JSON(http.StatusBadRequest, response)
	case service.ErrorCodeForbidden:
		return e.JSON(http.StatusForbidden, response)
	case service.ErrorCodeTeamExists, service.ErrorCodeTeamFull, service.ErrorCodeAlreadyInTeam,
		service.ErrorCodeNotATeamMember, service.ErrorCodeCannotRemoveSelf, service.ErrorCodeInvalidTransferTarget,
		service.ErrorCodeStatementFull, service.ErrorCodeDuplicateCustomStatement,
		service.ErrorCodeDuplicateVote, service.ErrorCodeSelfVote, service.ErrorCodeConflict:
		return e.JSON(http.StatusConflict, response)
	default:
		return e.JSON(http.StatusInternalServerError, response)
	}
}
