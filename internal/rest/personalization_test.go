package rest_test

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"myGreenStorefront/app/echo-server/router"
	"myGreenStorefront/business/personalization"
	"myGreenStorefront/domain"
	"myGreenStorefront/internal/middleware"
	"myGreenStorefront/internal/repository/memory"
	"myGreenStorefront/internal/rest"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ rest.PersonalizationService = (*personalization.Service)(nil)

type server struct {
	e        *echo.Echo
	provider *memory.Provider
}

func newServer(t *testing.T, catalog personalization.Catalog) *server {
	t.Helper()

	provider := memory.NewProvider()
	mgr := personalization.NewManager(provider, personalization.WithRand(rand.New(rand.NewPCG(1, 2))))
	h := rest.NewPersonalizationHandler(func(session string) rest.PersonalizationService {
		return mgr.ForScope(session)
	}, catalog)

	e := echo.New()
	router.SetupPersonalizationRoutes(e.Group("/api/v1"), h)
	return &server{e: e, provider: provider}
}

func (s *server) do(t *testing.T, method, path, session, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, "/api/v1/personalization"+path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if session != "" {
		req.Header.Set(middleware.HeaderSessionID, session)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func groceries() *memory.Catalog {
	return memory.NewCatalog([]domain.Product{
		{ID: 1, ProductName: "apple", ProductCategory: "fruit", Quantity: 5},
		{ID: 2, ProductName: "pear", ProductCategory: "fruit", Quantity: 5},
		{ID: 3, ProductName: "plum", ProductCategory: "fruit", Quantity: 5},
		{ID: 4, ProductName: "kale", ProductCategory: "veg", Quantity: 5},
		{ID: 5, ProductName: "leek", ProductCategory: "veg", Quantity: 5},
	})
}

func TestPersonalizationHandler_EventsAreScopedBySession(t *testing.T) {
	s := newServer(t, groceries())

	rec := s.do(t, http.MethodPost, "/events", "alice",
		`{"path":"/products/2","page_type":"product","metadata":{"productId":"2"}}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "alice", rec.Header().Get(middleware.HeaderSessionID))

	rec = s.do(t, http.MethodGet, "/score/2", "alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"view_count":1`)

	rec = s.do(t, http.MethodGet, "/score/2", "bob", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"view_count":0`)

	assert.Positive(t, s.provider.Scope("alice").Len())
	assert.Zero(t, s.provider.Scope("bob").Len())
}

func TestPersonalizationHandler_NewSessionIsIssued(t *testing.T) {
	s := newServer(t, groceries())

	rec := s.do(t, http.MethodGet, "/profile", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(middleware.HeaderSessionID))
}

func TestPersonalizationHandler_Validation(t *testing.T) {
	s := newServer(t, groceries())

	tests := []struct {
		name string
		path string
		body string
	}{
		{"unknown page type", "/events", `{"path":"/x","page_type":"checkout"}`},
		{"missing path", "/events", `{"page_type":"page"}`},
		{"feedback without verdict", "/feedback", `{"section_id":"recommended","product_id":"1"}`},
		{"empty impressions", "/impressions", `{"section_id":"recommended","product_ids":[]}`},
		{"click without product", "/clicks", `{"section_id":"recommended"}`},
		{"malformed json", "/events", `{"path":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, tt.path, "carol", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), `"message"`)
		})
	}
	assert.Zero(t, s.provider.Scope("carol").Len())
}

func TestPersonalizationHandler_Recommendations(t *testing.T) {
	s := newServer(t, groceries())

	for i := 0; i < 3; i++ {
		rec := s.do(t, http.MethodPost, "/events", "dana",
			`{"path":"/products/2","page_type":"product","metadata":{"productId":"2"}}`)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := s.do(t, http.MethodGet, "/recommendations?n=5&category=fruit&exclude=3,%2042", "dana", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `"id":1,`)
	assert.Contains(t, body, `"id":2,`)
	assert.NotContains(t, body, `"id":3,`)
	assert.NotContains(t, body, `"id":4,`)
	assert.Contains(t, body, `"is_personalized":true`)

	rec = s.do(t, http.MethodGet, "/recommendations?n=500", "dana", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type brokenCatalog struct{}

func (brokenCatalog) FindAll(context.Context) ([]domain.Product, error) {
	return nil, errors.New("catalog offline")
}

func (brokenCatalog) FindByID(context.Context, uint64) (domain.Product, error) {
	return domain.Product{}, errors.New("catalog offline")
}

func TestPersonalizationHandler_CatalogFailure(t *testing.T) {
	s := newServer(t, brokenCatalog{})

	for _, path := range []string{"/recommendations", "/sections"} {
		rec := s.do(t, http.MethodGet, path, "erin", "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), "catalog offline")
	}
}

func TestPersonalizationHandler_SectionMetrics(t *testing.T) {
	s := newServer(t, groceries())

	rec := s.do(t, http.MethodPost, "/impressions", "finn", `{"section_id":"recommended","product_ids":["1","2"]}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = s.do(t, http.MethodPost, "/clicks", "finn", `{"section_id":"recommended","product_id":"2"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = s.do(t, http.MethodPost, "/feedback", "finn", `{"section_id":"recommended","product_id":"2","is_relevant":false}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, http.MethodGet, "/metrics", "finn", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"impressions":2`)
	assert.Contains(t, rec.Body.String(), `"clicks":1`)
	assert.Contains(t, rec.Body.String(), `"notRelevant":1`)
}

func TestPersonalizationHandler_Settings(t *testing.T) {
	s := newServer(t, groceries())

	rec := s.do(t, http.MethodPut, "/settings", "gus", `{"decayRate":4}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPut, "/settings", "gus", `{"maxSections":5,"enabled":false}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/settings", "gus", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"maxSections":5`)
	assert.Contains(t, rec.Body.String(), `"enabled":false`)
	assert.Contains(t, rec.Body.String(), `"decayRate":0.95`)

	rec = s.do(t, http.MethodGet, "/sections", "gus", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), `"is_personalized":true`)
}

func TestPersonalizationHandler_Clear(t *testing.T) {
	s := newServer(t, groceries())

	rec := s.do(t, http.MethodPost, "/events", "hana", `{"path":"/search","page_type":"search","metadata":{"searchTerm":"kale"}}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Positive(t, s.provider.Scope("hana").Len())

	rec = s.do(t, http.MethodDelete, "", "hana", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, s.provider.Scope("hana").Len())

	rec = s.do(t, http.MethodGet, "/history", "hana", "")
	require.Equal(t, http.StatusOK, rec.Code)
}
