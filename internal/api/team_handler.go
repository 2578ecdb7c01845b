package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/aleksfrolov/hackteams/internal/service"
	"github.com/aleksfrolov/hackteams/pkg/logger"
)

func (h *Handler) CreateTeam(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	var req struct {
		Name               string `json:"name" validate:"required"`
		Description        string `json:"description"`
		ProblemStatementID string `json:"problem_statement_id" validate:"required,uuid4"`
	}

	if err := h.decodeRequest(e, &req); err != nil {
		l.Error("invalid request", zap.Any("error", err))
		return h.transportError(e, err)
	}

	userID := currentUserID(e)
	l.Info("creating team", zap.String("team_name", req.Name), zap.String("user_id", userID))

	team, err := h.team.CreateTeam(e.Request().Context(), userID, req.Name, req.Description, req.ProblemStatementID)
	if err != nil {
		l.Error("failed to create team", zap.String("team_name", req.Name), zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusCreated, team)
}

func (h *Handler) ListTeams(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	search := e.QueryParam("search")

	teams, err := h.team.ListTeams(e.Request().Context(), search)
	if err != nil {
		l.Error("failed to list teams", zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, teams)
}

func (h *Handler) GetMyTeam(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	team, err := h.team.GetMyTeam(e.Request().Context(), currentUserID(e))
	if err != nil {
		l.Warn("failed to get own team", zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, team)
}

func (h *Handler) JoinTeam(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	teamID := e.Param("id")
	userID := currentUserID(e)

	l.Info("joining team", zap.String("team_id", teamID), zap.String("user_id", userID))

	team, err := h.team.JoinTeam(e.Request().Context(), userID, teamID)
	if err != nil {
		l.Error("failed to join team", zap.String("team_id", teamID), zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, team)
}

func (h *Handler) LeaveTeam(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	var req struct {
		TransferToUserID string `json:"transfer_to_user_id"`
	}

	// The body is optional; an empty one means default succession.
	if err := e.Bind(&req); err != nil {
		l.Error("invalid request", zap.Error(err))
		return h.transportError(e, service.NewError(service.ErrorCodeInvalidBody, "invalid request body"))
	}

	teamID := e.Param("id")
	userID := currentUserID(e)

	l.Info("leaving team",
		zap.String("team_id", teamID),
		zap.String("user_id", userID),
		zap.String("transfer_to", req.TransferToUserID))

	result, err := h.team.LeaveTeam(e.Request().Context(), userID, teamID, req.TransferToUserID)
	if err != nil {
		l.Error("failed to leave team", zap.String("team_id", teamID), zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, result)
}

func (h *Handler) RemoveMember(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	teamID := e.Param("id")
	memberID := e.Param("memberId")
	userID := currentUserID(e)

	l.Info("removing member",
		zap.String("team_id", teamID),
		zap.String("member_id", memberID),
		zap.String("user_id", userID))

	if err := h.team.RemoveMember(e.Request().Context(), userID, teamID, memberID); err != nil {
		l.Error("failed to remove member", zap.String("team_id", teamID), zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.NoContent(http.StatusNoContent)
}

func (h *Handler) DeleteTeam(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	teamID := e.Param("id")
	userID := currentUserID(e)

	l.Info("deleting team", zap.String("team_id", teamID), zap.String("user_id", userID))

	if err := h.team.DeleteTeam(e.Request().Context(), userID, teamID); err != nil {
		l.Error("failed to delete team", zap.String("team_id", teamID), zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.NoContent(http.StatusNoContent)
}
