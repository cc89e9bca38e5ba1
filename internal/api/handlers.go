package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"ranklab/internal/apperr"
	"ranklab/internal/domain"
	"ranklab/internal/engine"
)

// Handler serves the evaluation endpoints backed by one engine.
type Handler struct {
	engine   *engine.Engine
	validate *validator.Validate
}

// NewHandler creates a Handler for eng.
func NewHandler(eng *engine.Engine) *Handler {
	return &Handler{
		engine:   eng,
		validate: validator.New(),
	}
}

// Register binds the evaluation routes onto g.
func (h *Handler) Register(g *echo.Group) {
	g.GET("/metrics", h.Snapshot)
	g.GET("/breakdown", h.Breakdown)
	g.GET("/opportunity", h.Opportunity)
	g.GET("/trends", h.Trends)
	g.GET("/sessions", h.Sessions)
	g.GET("/filters", h.Filters)
}

type snapshotRequest struct {
	DaysBack int    `query:"days_back" validate:"omitempty,min=1"`
	Surface  string `query:"surface"`
	Country  string `query:"country"`
	K        int    `query:"k" validate:"omitempty,min=1,max=100"`
	Mode     string `query:"mode" validate:"omitempty,oneof=graded binary"`
}

func (r snapshotRequest) query() engine.Query {
	return engine.Query{
		DaysBack: r.DaysBack,
		Surface:  r.Surface,
		Country:  r.Country,
		K:        r.K,
		Mode:     domain.ScoreMode(r.Mode),
	}
}

// Snapshot serves GET /metrics, the ungrouped window summary.
func (h *Handler) Snapshot(c echo.Context) error {
	var req snapshotRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}

	result, err := h.engine.Snapshot(c.Request().Context(), req.query())
	if err != nil {
		return mapEngineError(err)
	}
	return c.JSON(http.StatusOK, result)
}

type breakdownRequest struct {
	DaysBack    int    `query:"days_back" validate:"omitempty,min=1"`
	Surface     string `query:"surface"`
	Country     string `query:"country"`
	K           int    `query:"k" validate:"omitempty,min=1,max=100"`
	Mode        string `query:"mode" validate:"omitempty,oneof=graded binary"`
	Dimension   string `query:"dimension"`
	MinSessions int    `query:"min_sessions" validate:"omitempty,min=1"`
}

// Breakdown serves GET /breakdown, grouped metrics for one dimension.
// The dimension defaults to surface.
func (h *Handler) Breakdown(c echo.Context) error {
	var req breakdownRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}

	q := engine.Query{
		DaysBack: req.DaysBack,
		Surface:  req.Surface,
		Country:  req.Country,
		K:        req.K,
		Mode:     domain.ScoreMode(req.Mode),
	}
	result, err := h.engine.Breakdown(c.Request().Context(), q, dimensionOrDefault(req.Dimension), req.MinSessions)
	if err != nil {
		return mapEngineError(err)
	}
	return c.JSON(http.StatusOK, result)
}

type opportunityRequest struct {
	DaysBack    int     `query:"days_back" validate:"omitempty,min=1"`
	Surface     string  `query:"surface"`
	Country     string  `query:"country"`
	K           int     `query:"k" validate:"omitempty,min=1,max=100"`
	Mode        string  `query:"mode" validate:"omitempty,oneof=graded binary"`
	Dimension   string  `query:"dimension"`
	Uplift      float64 `query:"uplift" validate:"omitempty,gt=0"`
	Targets     string  `query:"targets"`
	MinSessions int     `query:"min_sessions" validate:"omitempty,min=1"`
}

// Opportunity serves GET /opportunity, the GMV gap model for one dimension.
func (h *Handler) Opportunity(c echo.Context) error {
	var req opportunityRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}

	targets, err := parseTargets(req.Targets)
	if err != nil {
		return err
	}

	q := engine.Query{
		DaysBack: req.DaysBack,
		Surface:  req.Surface,
		Country:  req.Country,
		K:        req.K,
		Mode:     domain.ScoreMode(req.Mode),
	}
	result, err := h.engine.Opportunity(c.Request().Context(), q, dimensionOrDefault(req.Dimension), req.Uplift, targets)
	if err != nil {
		return mapEngineError(err)
	}
	return c.JSON(http.StatusOK, result)
}

type trendsRequest struct {
	DaysBack int    `query:"days_back" validate:"omitempty,min=1"`
	Surface  string `query:"surface"`
	Country  string `query:"country"`
	K        int    `query:"k" validate:"omitempty,min=1,max=100"`
	Mode     string `query:"mode" validate:"omitempty,oneof=graded binary"`
}

// Trends serves GET /trends, the daily series over the window.
func (h *Handler) Trends(c echo.Context) error {
	var req trendsRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}

	q := engine.Query{
		DaysBack: req.DaysBack,
		Surface:  req.Surface,
		Country:  req.Country,
		K:        req.K,
		Mode:     domain.ScoreMode(req.Mode),
	}
	result, err := h.engine.Trends(c.Request().Context(), q)
	if err != nil {
		return mapEngineError(err)
	}
	return c.JSON(http.StatusOK, result)
}

type sessionsRequest struct {
	DaysBack int    `query:"days_back" validate:"omitempty,min=1"`
	Surface  string `query:"surface"`
	Country  string `query:"country"`
	K        int    `query:"k" validate:"omitempty,min=1,max=100"`
	Mode     string `query:"mode" validate:"omitempty,oneof=graded binary"`
	MinItems int    `query:"min_items" validate:"omitempty,min=1"`
	Limit    int    `query:"limit" validate:"omitempty,min=1"`
}

type sessionsResponse struct {
	Sessions []domain.SessionDetail `json:"sessions"`
	Count    int                    `json:"count"`
}

// Sessions serves GET /sessions, recent purchase sessions for inspection.
func (h *Handler) Sessions(c echo.Context) error {
	var req sessionsRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}

	q := engine.Query{
		DaysBack: req.DaysBack,
		Surface:  req.Surface,
		Country:  req.Country,
		K:        req.K,
		Mode:     domain.ScoreMode(req.Mode),
	}
	sessions, err := h.engine.Sessions(c.Request().Context(), q, req.MinItems, req.Limit)
	if err != nil {
		return mapEngineError(err)
	}
	if sessions == nil {
		sessions = []domain.SessionDetail{}
	}
	return c.JSON(http.StatusOK, sessionsResponse{Sessions: sessions, Count: len(sessions)})
}

type filtersRequest struct {
	DaysBack int    `query:"days_back" validate:"omitempty,min=1"`
	Surface  string `query:"surface"`
	Country  string `query:"country"`
}

// Filters serves GET /filters, the distinct filter values in the window.
func (h *Handler) Filters(c echo.Context) error {
	var req filtersRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}

	q := engine.Query{
		DaysBack: req.DaysBack,
		Surface:  req.Surface,
		Country:  req.Country,
	}
	result, err := h.engine.FilterOptions(c.Request().Context(), q)
	if err != nil {
		return mapEngineError(err)
	}
	return c.JSON(http.StatusOK, result)
}

// bind decodes query parameters into req and validates them.
func (h *Handler) bind(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return apperr.NewValidationWrap("invalid query parameters", err)
	}
	if err := h.validate.Struct(req); err != nil {
		return apperr.NewValidationWrap("invalid query parameters", err)
	}
	return nil
}

func dimensionOrDefault(raw string) domain.Dimension {
	if raw == "" {
		return domain.DimensionSurface
	}
	return domain.Dimension(raw)
}

// parseTargets decodes a comma-separated list of NDCG targets in (0, 1].
func parseTargets(raw string) ([]float64, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	targets := make([]float64, 0, len(parts))
	for _, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, apperr.NewValidationWrap("invalid targets parameter", err)
		}
		if v <= 0 || v > 1 {
			return nil, apperr.NewValidation(fmt.Sprintf("target %g outside (0, 1]", v))
		}
		targets = append(targets, v)
	}
	return targets, nil
}

// mapEngineError converts engine failures to HTTP error types. Unknown
// dimensions are caller mistakes; everything else is a store failure.
func mapEngineError(err error) error {
	if errors.Is(err, engine.ErrUnknownDimension) {
		return apperr.NewValidationWrap("unknown dimension", err)
	}
	return apperr.NewUpstream("impression store query failed", err)
}
