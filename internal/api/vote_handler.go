package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/aleksfrolov/hackteams/pkg/logger"
)

type voteRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"required,max=500"`
}

func (h *Handler) SubmitVote(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	var req voteRequest
	if err := h.decodeRequest(e, &req); err != nil {
		l.Error("invalid request", zap.Any("error", err))
		return h.transportError(e, err)
	}

	teamID := e.Param("teamId")
	userID := currentUserID(e)

	l.Info("submitting vote", zap.String("team_id", teamID), zap.String("user_id", userID))

	result, err := h.votes.SubmitVote(e.Request().Context(), userID, teamID, req.Rating, req.Comment)
	if err != nil {
		l.Error("failed to submit vote", zap.String("team_id", teamID), zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusCreated, result)
}

func (h *Handler) UpdateVote(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	var req voteRequest
	if err := h.decodeRequest(e, &req); err != nil {
		l.Error("invalid request", zap.Any("error", err))
		return h.transportError(e, err)
	}

	teamID := e.Param("teamId")
	userID := currentUserID(e)

	l.Info("updating vote", zap.String("team_id", teamID), zap.String("user_id", userID))

	result, err := h.votes.UpdateVote(e.Request().Context(), userID, teamID, req.Rating, req.Comment)
	if err != nil {
		l.Error("failed to update vote", zap.String("team_id", teamID), zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, result)
}

func (h *Handler) DeleteVote(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	teamID := e.Param("teamId")
	userID := currentUserID(e)

	l.Info("deleting vote", zap.String("team_id", teamID), zap.String("user_id", userID))

	aggregate, err := h.votes.DeleteVote(e.Request().Context(), userID, teamID)
	if err != nil {
		l.Error("failed to delete vote", zap.String("team_id", teamID), zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, aggregate)
}

func (h *Handler) CheckUserVote(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	teamID := e.Param("teamId")

	status, err := h.votes.CheckUserVote(e.Request().Context(), currentUserID(e), teamID)
	if err != nil {
		l.Error("failed to check vote", zap.String("team_id", teamID), zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, status)
}

func (h *Handler) ListTeamsWithRatings(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	teams, err := h.votes.ListTeamsWithRatings(e.Request().Context(), currentUserID(e), e.QueryParam("search"))
	if err != nil {
		l.Error("failed to list teams with ratings", zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, teams)
}

func (h *Handler) ListMyVotes(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	votes, err := h.votes.ListMyVotes(e.Request().Context(), currentUserID(e))
	if err != nil {
		l.Error("failed to list votes", zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, votes)
}
