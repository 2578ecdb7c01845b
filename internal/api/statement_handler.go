package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/aleksfrolov/hackteams/internal/service"
	"github.com/aleksfrolov/hackteams/pkg/logger"
)

func (h *Handler) ListStatements(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	filter := &service.StatementListFilter{
		Domain: e.QueryParam("domain"),
		Search: e.QueryParam("search"),
	}
	filter.Page, _ = strconv.Atoi(e.QueryParam("page"))
	filter.PageSize, _ = strconv.Atoi(e.QueryParam("page_size"))

	page, err := h.statements.List(e.Request().Context(), currentUserID(e), filter)
	if err != nil {
		l.Error("failed to list statements", zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, page)
}

func (h *Handler) GetStatement(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	id := e.Param("id")

	statement, err := h.statements.Get(e.Request().Context(), currentUserID(e), id)
	if err != nil {
		l.Warn("failed to get statement", zap.String("statement_id", id), zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, statement)
}

func (h *Handler) CreateCustomStatement(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	var req struct {
		Title                 string   `json:"title" validate:"required"`
		Description           string   `json:"description" validate:"required"`
		Domain                string   `json:"domain" validate:"required"`
		Topic                 string   `json:"topic"`
		SuggestedTechnologies []string `json:"suggested_technologies"`
	}

	if err := h.decodeRequest(e, &req); err != nil {
		l.Error("invalid request", zap.Any("error", err))
		return h.transportError(e, err)
	}

	userID := currentUserID(e)
	l.Info("creating custom statement", zap.String("user_id", userID), zap.String("title", req.Title))

	statement, err := h.statements.CreateCustom(e.Request().Context(), userID, &service.CustomStatementInput{
		Title:                 req.Title,
		Description:           req.Description,
		Domain:                req.Domain,
		Topic:                 req.Topic,
		SuggestedTechnologies: req.SuggestedTechnologies,
	})
	if err != nil {
		l.Error("failed to create custom statement", zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusCreated, statement)
}
