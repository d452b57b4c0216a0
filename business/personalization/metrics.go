package personalization

import (
	"context"
	"fmt"
	"strings"

	"myGreenStorefront/domain"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	EventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "personalization_events_total",
			Help: "Count of browsing events by page_type and result.",
		},
		[]string{"page_type", "result"},
	)

	FeedbackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "personalization_feedback_total",
			Help: "Count of recommendation feedback records by relevance.",
		},
		[]string{"relevant"},
	)

	RecommendationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "personalization_recommendations_total",
			Help: "Count of recommended items by kind (personalized, backfill, random).",
		},
		[]string{"kind"},
	)

	SectionEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "personalization_section_events_total",
			Help: "Count of section impressions and clicks.",
		},
		[]string{"event"},
	)

	FallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "personalization_fallbacks_total",
			Help: "Count of operations that degraded to their safe default.",
		},
		[]string{"op"},
	)
)

func init() {
	prometheus.MustRegister(
		EventsTotal,
		FeedbackTotal,
		RecommendationsTotal,
		SectionEventsTotal,
		FallbacksTotal,
	)
}

// updateMetrics applies fn to the counters of sectionID and keeps at most
// SectionCap sections. Callers hold the scope lock.
func (s *Service) updateMetrics(ctx context.Context, sectionID string, fn func(sm *domain.SectionMetrics)) error {
	var metrics domain.PersonalizationMetrics
	if err := s.loadOrReset(ctx, KeyMetrics, &metrics); err != nil {
		return err
	}
	if metrics.Sections == nil {
		metrics.Sections = map[string]domain.SectionMetrics{}
	}

	sm := metrics.Sections[sectionID]
	fn(&sm)
	metrics.Sections[sectionID] = sm
	capSections(metrics.Sections, sectionID, s.m.limits.SectionCap)
	metrics.LastUpdated = s.now()

	if err := writeValue(ctx, s.store, KeyMetrics, metrics); err != nil {
		return fmt.Errorf("failed to save metrics: %w", err)
	}
	return nil
}

func sectionActivity(sm domain.SectionMetrics) int {
	return sm.Impressions + sm.Clicks + sm.Relevant + sm.NotRelevant
}

// capSections evicts the least active sections, ties by id, until at most
// limit remain. keep is never evicted.
func capSections(m map[string]domain.SectionMetrics, keep string, limit int) {
	if limit <= 0 || len(m) <= limit {
		return
	}
	others := make(map[string]int, len(m))
	for id, sm := range m {
		if id != keep {
			others[id] = sectionActivity(sm)
		}
	}
	ranked := rankCounts(others)
	for _, e := range ranked[limit-1:] {
		delete(m, e.key)
	}
}

// RecordImpressions counts one impression per product shown in a section.
func (s *Service) RecordImpressions(ctx context.Context, sectionID string, productIDs []string) (ok bool) {
	defer s.recoverTo(ctx, "record_impressions", func() { ok = false })

	sectionID = strings.TrimSpace(sectionID)
	if sectionID == "" {
		s.fail(ctx, "record_impressions", ErrEmptySectionID)
		return false
	}
	if len(productIDs) == 0 {
		return true
	}

	unlock := s.lock()
	defer unlock()

	err := s.updateMetrics(ctx, sectionID, func(sm *domain.SectionMetrics) {
		sm.Impressions += len(productIDs)
	})
	if err != nil {
		s.fail(ctx, "record_impressions", err)
		return false
	}
	SectionEventsTotal.WithLabelValues("impression").Add(float64(len(productIDs)))
	return true
}

// RecordClick counts a click on a recommended product.
func (s *Service) RecordClick(ctx context.Context, sectionID, productID string) (ok bool) {
	defer s.recoverTo(ctx, "record_click", func() { ok = false })

	sectionID = strings.TrimSpace(sectionID)
	if sectionID == "" {
		s.fail(ctx, "record_click", ErrEmptySectionID)
		return false
	}
	if strings.TrimSpace(productID) == "" {
		s.fail(ctx, "record_click", ErrEmptyProductID)
		return false
	}

	unlock := s.lock()
	defer unlock()

	err := s.updateMetrics(ctx, sectionID, func(sm *domain.SectionMetrics) {
		sm.Clicks++
	})
	if err != nil {
		s.fail(ctx, "record_click", err)
		return false
	}
	SectionEventsTotal.WithLabelValues("click").Inc()
	return true
}

// GetMetrics returns the per-section counters of the scope.
func (s *Service) GetMetrics(ctx context.Context) (metrics domain.PersonalizationMetrics) {
	empty := func() domain.PersonalizationMetrics {
		return domain.PersonalizationMetrics{Sections: map[string]domain.SectionMetrics{}}
	}
	metrics = empty()
	defer s.recoverTo(ctx, "get_metrics", func() { metrics = empty() })
	unlock := s.lock()
	defer unlock()

	if err := s.loadOrReset(ctx, KeyMetrics, &metrics); err != nil {
		s.fail(ctx, "get_metrics", err)
		return empty()
	}
	if metrics.Sections == nil {
		metrics.Sections = map[string]domain.SectionMetrics{}
	}
	return metrics
}
