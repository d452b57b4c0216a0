package rest

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"myGreenStorefront/business/personalization"
	"myGreenStorefront/domain"
	"myGreenStorefront/internal/middleware"
	"myGreenStorefront/pkg/logger"

	"github.com/AMFarhan21/fres"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// ResponseError represent the response error struct
type ResponseError struct {
	Message string `json:"message"`
}

type (
	// PersonalizationService is the engine bound to one session.
	PersonalizationService interface {
		RecordEvent(ctx context.Context, path string, pageType domain.PageType, metadata map[string]any) bool
		RecordFeedback(ctx context.Context, sectionID, productID string, isRelevant bool) bool
		RecordImpressions(ctx context.Context, sectionID string, productIDs []string) bool
		RecordClick(ctx context.Context, sectionID, productID string) bool
		ExplainScore(ctx context.Context, productID string) domain.ScoreBreakdown
		SelectRecommendations(ctx context.Context, candidates []domain.Product, limit int, excludeIDs []string) []domain.Recommendation
		BuildSections(ctx context.Context, catalog []domain.Product) []domain.RecommendationSection
		GetProfile(ctx context.Context) domain.PersonalizationProfile
		UpdatePersonalizationProfile(ctx context.Context) bool
		History(ctx context.Context) []domain.BrowsingEvent
		GetMetrics(ctx context.Context) domain.PersonalizationMetrics
		GetSettings(ctx context.Context) domain.PersonalizationSettings
		UpdateSettings(ctx context.Context, patch personalization.SettingsPatch) (domain.PersonalizationSettings, error)
		ClearPersonalizationData(ctx context.Context) bool
	}

	// ScopeResolver returns the engine of a session id.
	ScopeResolver func(sessionID string) PersonalizationService

	PersonalizationHandler struct {
		validate *validator.Validate
		forScope ScopeResolver
		catalog  personalization.Catalog
		timeout  time.Duration
	}

	EventRequest struct {
		Path     string         `json:"path" validate:"required"`
		PageType string         `json:"page_type" validate:"required,oneof=page product category search"`
		Metadata map[string]any `json:"metadata"`
	}

	PersonalizationFeedbackRequest struct {
		SectionID  string `json:"section_id" validate:"required"`
		ProductID  string `json:"product_id" validate:"required"`
		IsRelevant *bool  `json:"is_relevant" validate:"required"`
	}

	ImpressionsRequest struct {
		SectionID  string   `json:"section_id" validate:"required"`
		ProductIDs []string `json:"product_ids" validate:"required,min=1,dive,required"`
	}

	ClickRequest struct {
		SectionID string `json:"section_id" validate:"required"`
		ProductID string `json:"product_id" validate:"required"`
	}

	RecommendationsQuery struct {
		N        int    `query:"n" validate:"gte=0,lte=100"`
		Exclude  string `query:"exclude"`
		Category string `query:"category"`
	}
)

const defaultRecommendations = 10

func NewPersonalizationHandler(forScope ScopeResolver, catalog personalization.Catalog) *PersonalizationHandler {
	return &PersonalizationHandler{
		validate: validator.New(),
		forScope: forScope,
		catalog:  catalog,
		timeout:  10 * time.Second,
	}
}

func (h *PersonalizationHandler) engine(c echo.Context) PersonalizationService {
	return h.forScope(middleware.SessionID(c))
}

func (h *PersonalizationHandler) bindAndValidate(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return err
	}
	return h.validate.Struct(dst)
}

// POST /api/v1/personalization/events
func (h *PersonalizationHandler) RecordEvent(c echo.Context) error {
	var req EventRequest
	if err := h.bindAndValidate(c, &req); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	if !h.engine(c).RecordEvent(ctx, req.Path, domain.PageType(req.PageType), req.Metadata) {
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: "failed to record event"})
	}

	return c.JSON(http.StatusCreated, fres.Response.StatusCreated("event recorded"))
}

// POST /api/v1/personalization/feedback
func (h *PersonalizationHandler) RecordFeedback(c echo.Context) error {
	var req PersonalizationFeedbackRequest
	if err := h.bindAndValidate(c, &req); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	if !h.engine(c).RecordFeedback(ctx, req.SectionID, req.ProductID, *req.IsRelevant) {
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: "failed to record feedback"})
	}

	return c.JSON(http.StatusCreated, fres.Response.StatusCreated("feedback recorded"))
}

// POST /api/v1/personalization/impressions
func (h *PersonalizationHandler) RecordImpressions(c echo.Context) error {
	var req ImpressionsRequest
	if err := h.bindAndValidate(c, &req); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	if !h.engine(c).RecordImpressions(ctx, req.SectionID, req.ProductIDs) {
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: "failed to record impressions"})
	}

	return c.JSON(http.StatusCreated, fres.Response.StatusCreated("impressions recorded"))
}

// POST /api/v1/personalization/clicks
func (h *PersonalizationHandler) RecordClick(c echo.Context) error {
	var req ClickRequest
	if err := h.bindAndValidate(c, &req); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	if !h.engine(c).RecordClick(ctx, req.SectionID, req.ProductID) {
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: "failed to record click"})
	}

	return c.JSON(http.StatusCreated, fres.Response.StatusCreated("click recorded"))
}

// GET /api/v1/personalization/score/:product_id
func (h *PersonalizationHandler) Score(c echo.Context) error {
	productID := strings.TrimSpace(c.Param("product_id"))
	if productID == "" {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: personalization.ErrEmptyProductID.Error()})
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(h.engine(c).ExplainScore(c.Request().Context(), productID)))
}

// GET /api/v1/personalization/recommendations?n=10&exclude=1,2&category=fruit
func (h *PersonalizationHandler) Recommendations(c echo.Context) error {
	var q RecommendationsQuery
	if err := h.bindAndValidate(c, &q); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}
	if q.N <= 0 {
		q.N = defaultRecommendations
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	products, err := h.catalog.FindAll(ctx)
	if err != nil {
		logger.Error("Failed to load catalog", "error", err)
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: err.Error()})
	}

	if q.Category != "" {
		products = filterCategory(products, q.Category)
	}

	recs := h.engine(c).SelectRecommendations(ctx, products, q.N, splitIDs(q.Exclude))
	return c.JSON(http.StatusOK, fres.Response.StatusOK(recs))
}

// GET /api/v1/personalization/sections
func (h *PersonalizationHandler) Sections(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	products, err := h.catalog.FindAll(ctx)
	if err != nil {
		logger.Error("Failed to load catalog", "error", err)
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: err.Error()})
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(h.engine(c).BuildSections(ctx, products)))
}

// GET /api/v1/personalization/profile
// A profile older than the refresh interval is recomputed before it is served.
func (h *PersonalizationHandler) Profile(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	eng := h.engine(c)
	profile := eng.GetProfile(ctx)

	stale := personalization.RefreshEvery(eng.GetSettings(ctx))
	if !profile.LastUpdated.IsZero() && time.Since(profile.LastUpdated) > stale {
		if eng.UpdatePersonalizationProfile(ctx) {
			profile = eng.GetProfile(ctx)
		}
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(profile))
}

// GET /api/v1/personalization/history
func (h *PersonalizationHandler) History(c echo.Context) error {
	return c.JSON(http.StatusOK, fres.Response.StatusOK(h.engine(c).History(c.Request().Context())))
}

// GET /api/v1/personalization/metrics
func (h *PersonalizationHandler) Metrics(c echo.Context) error {
	return c.JSON(http.StatusOK, fres.Response.StatusOK(h.engine(c).GetMetrics(c.Request().Context())))
}

// GET /api/v1/personalization/settings
func (h *PersonalizationHandler) GetSettings(c echo.Context) error {
	return c.JSON(http.StatusOK, fres.Response.StatusOK(h.engine(c).GetSettings(c.Request().Context())))
}

// PUT /api/v1/personalization/settings
func (h *PersonalizationHandler) UpdateSettings(c echo.Context) error {
	var patch personalization.SettingsPatch
	if err := c.Bind(&patch); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	cfg, err := h.engine(c).UpdateSettings(ctx, patch)
	if err != nil {
		if errors.Is(err, personalization.ErrInvalidSettings) {
			return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
		}
		logger.Error("Failed to update personalization settings", "error", err)
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: err.Error()})
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(cfg))
}

// DELETE /api/v1/personalization
func (h *PersonalizationHandler) Clear(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	if !h.engine(c).ClearPersonalizationData(ctx) {
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: "failed to clear personalization data"})
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK("personalization data cleared"))
}

func filterCategory(products []domain.Product, category string) []domain.Product {
	out := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if strings.EqualFold(p.ProductCategory, category) {
			out = append(out, p)
		}
	}
	return out
}

// splitIDs parses a comma separated id list, skipping blanks.
func splitIDs(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
