package domain

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// PageType classifies a browsing event.
type PageType string

const (
	PageTypePage     PageType = "page"
	PageTypeProduct  PageType = "product"
	PageTypeCategory PageType = "category"
	PageTypeSearch   PageType = "search"
)

// Valid reports whether t is one of the four recognised page types.
func (t PageType) Valid() bool {
	switch t {
	case PageTypePage, PageTypeProduct, PageTypeCategory, PageTypeSearch:
		return true
	}
	return false
}

// Metadata keys read by the aggregate maintainer.
const (
	MetaProductID  = "productId"
	MetaCategory   = "category"
	MetaSearchTerm = "searchTerm"
)

// BrowsingEvent is one entry of the newest-first browsing history.
type BrowsingEvent struct {
	Path      string         `json:"path"`
	PageType  PageType       `json:"pageType"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata"`
}

// ProductID returns metadata.productId when present as a non-empty string.
func (e BrowsingEvent) ProductID() string {
	return MetaString(e.Metadata, MetaProductID)
}

// ProductViewCount maps productId -> number of product-view events.
type ProductViewCount map[string]int

// CategoryPreference maps category name -> weight.
type CategoryPreference map[string]int

type SearchHistoryEntry struct {
	Term      string    `json:"term"`
	Timestamp time.Time `json:"timestamp"`
}

// FeedbackRecord is stored under the composite key "sectionId:productId".
type FeedbackRecord struct {
	SectionID  string    `json:"sectionId"`
	ProductID  string    `json:"productId"`
	IsRelevant bool      `json:"isRelevant"`
	Timestamp  time.Time `json:"timestamp"`
}

// FeedbackKey builds the composite key of a feedback record.
func FeedbackKey(sectionID, productID string) string {
	return sectionID + ":" + productID
}

// PersonalizationSettings holds the user-tunable knobs of the relevance engine.
type PersonalizationSettings struct {
	Enabled            bool    `json:"enabled" yaml:"enabled"`
	WeightRecency      float64 `json:"weightRecency" yaml:"weightRecency" validate:"gte=0,lte=1"`
	WeightFrequency    float64 `json:"weightFrequency" yaml:"weightFrequency" validate:"gte=0,lte=1"`
	WeightFeedback     float64 `json:"weightFeedback" yaml:"weightFeedback" validate:"gte=0,lte=1"`
	DecayRate          float64 `json:"decayRate" yaml:"decayRate" validate:"gt=0,lte=1"`
	MinRelevanceScore  float64 `json:"minRelevanceScore" yaml:"minRelevanceScore" validate:"gte=0,lte=1"`
	RefreshInterval    int     `json:"refreshInterval" yaml:"refreshInterval" validate:"gte=1"`
	MaxSections        int     `json:"maxSections" yaml:"maxSections" validate:"gte=1"`
	MaxItemsPerSection int     `json:"maxItemsPerSection" yaml:"maxItemsPerSection" validate:"gte=1"`
}

// PersonalizationProfile is the summary projection recomputed after every event.
type PersonalizationProfile struct {
	LastUpdated time.Time          `json:"lastUpdated"`
	Stats       ProfileStats       `json:"stats"`
	Preferences ProfilePreferences `json:"preferences"`
}

type ProfileStats struct {
	TotalPageViews int `json:"totalPageViews"`
	ProductViews   int `json:"productViews"`
	CategoryViews  int `json:"categoryViews"`
	SearchCount    int `json:"searchCount"`
}

type ProfilePreferences struct {
	TopCategories  []string `json:"topCategories"`
	TopProducts    []string `json:"topProducts"`
	RecentSearches []string `json:"recentSearches"`
}

// SectionMetrics counts what happened to one recommendation section.
type SectionMetrics struct {
	Impressions int `json:"impressions"`
	Clicks      int `json:"clicks"`
	Relevant    int `json:"relevant"`
	NotRelevant int `json:"notRelevant"`
}

// PersonalizationMetrics is the value stored under personalization_metrics.
type PersonalizationMetrics struct {
	LastUpdated time.Time                 `json:"lastUpdated"`
	Sections    map[string]SectionMetrics `json:"sections"`
}

// RelevanceScore is derived on demand and never persisted.
type RelevanceScore struct {
	ProductID string  `json:"productId"`
	Score     float64 `json:"score"`
}

// ScoreBreakdown exposes the components behind a relevance score.
type ScoreBreakdown struct {
	ProductID       string  `json:"product_id"`
	Enabled         bool    `json:"enabled"`
	Frequency       float64 `json:"frequency"`
	Recency         float64 `json:"recency"`
	Feedback        float64 `json:"feedback"`
	WeightFrequency float64 `json:"weight_frequency"`
	WeightRecency   float64 `json:"weight_recency"`
	WeightFeedback  float64 `json:"weight_feedback"`
	ViewCount       int     `json:"view_count"`
	FeedbackCount   int     `json:"feedback_count"`
	Score           float64 `json:"score"`
}

// Recommendation is a catalog product tagged with how it was selected.
type Recommendation struct {
	Product
	RelevanceScore float64 `json:"relevance_score"`
	IsPersonalized bool    `json:"is_personalized"`
}

// RecommendationSection is one titled row of recommendations.
type RecommendationSection struct {
	ID    string           `json:"id"`
	Title string           `json:"title"`
	Items []Recommendation `json:"items"`
}

// MetaString reads a metadata value as a string. Numeric ids decoded from JSON
// arrive as float64 and are formatted without a fraction.
func MetaString(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	switch v := m[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		if v == math.Trunc(v) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	}
	return ""
}
