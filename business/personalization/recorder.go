package personalization

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"myGreenStorefront/domain"
)

// RecordEvent appends a browsing event to the history, updates the aggregate
// matching its page type and recomputes the profile.
func (s *Service) RecordEvent(
	ctx context.Context,
	path string,
	pageType domain.PageType,
	metadata map[string]any,
) (ok bool) {
	defer s.recoverTo(ctx, "record_event", func() { ok = false })

	if err := s.recordEvent(ctx, path, pageType, metadata); err != nil {
		s.fail(ctx, "record_event", err)
		EventsTotal.WithLabelValues(string(pageType), "error").Inc()
		return false
	}
	EventsTotal.WithLabelValues(string(pageType), "ok").Inc()
	return true
}

func (s *Service) recordEvent(
	ctx context.Context,
	path string,
	pageType domain.PageType,
	metadata map[string]any,
) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return ErrEmptyPath
	}
	if !pageType.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidPageType, pageType)
	}
	if metadata == nil {
		metadata = map[string]any{}
	}

	unlock := s.lock()
	defer unlock()

	event := domain.BrowsingEvent{
		Path:      path,
		PageType:  pageType,
		Timestamp: s.now(),
		Metadata:  metadata,
	}

	// 1) event log, newest first
	var history []domain.BrowsingEvent
	if err := s.loadOrReset(ctx, KeyBrowsingHistory, &history); err != nil {
		return err
	}
	next := make([]domain.BrowsingEvent, 0, len(history)+1)
	next = append(next, event)
	next = append(next, history...)
	if limit := s.m.limits.HistorySize; limit > 0 && len(next) > limit {
		next = next[:limit]
	}
	if err := writeValue(ctx, s.store, KeyBrowsingHistory, next); err != nil {
		return err
	}

	// 2) aggregate for the page type; each update stands on its own
	var errs []error
	switch pageType {
	case domain.PageTypeCategory:
		if c := domain.MetaString(metadata, domain.MetaCategory); c != "" {
			if err := s.updateCategoryPreference(ctx, c); err != nil {
				errs = append(errs, fmt.Errorf("category preference: %w", err))
			}
		}
	case domain.PageTypeProduct:
		if pid := domain.MetaString(metadata, domain.MetaProductID); pid != "" {
			if err := s.incrementProductView(ctx, pid); err != nil {
				errs = append(errs, fmt.Errorf("product view: %w", err))
			}
		}
	case domain.PageTypeSearch:
		if term := domain.MetaString(metadata, domain.MetaSearchTerm); term != "" {
			if err := s.addSearchTerm(ctx, term); err != nil {
				errs = append(errs, fmt.Errorf("search term: %w", err))
			}
		}
	}

	// 3) profile projection
	if err := s.updateProfile(ctx); err != nil {
		errs = append(errs, fmt.Errorf("profile: %w", err))
	}

	s.debug("event recorded",
		"trace_id", TraceIDFromContext(ctx),
		"page_type", pageType,
		"path", path,
	)
	return errors.Join(errs...)
}

// RecordFeedback stores whether a recommended product was relevant. A later
// call for the same section and product replaces the earlier record.
func (s *Service) RecordFeedback(
	ctx context.Context,
	sectionID string,
	productID string,
	isRelevant bool,
) (ok bool) {
	defer s.recoverTo(ctx, "record_feedback", func() { ok = false })

	if err := s.recordFeedback(ctx, sectionID, productID, isRelevant); err != nil {
		s.fail(ctx, "record_feedback", err)
		return false
	}
	FeedbackTotal.WithLabelValues(strconv.FormatBool(isRelevant)).Inc()
	return true
}

func (s *Service) recordFeedback(ctx context.Context, sectionID, productID string, isRelevant bool) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}
	sectionID = strings.TrimSpace(sectionID)
	productID = strings.TrimSpace(productID)
	if sectionID == "" {
		return ErrEmptySectionID
	}
	if productID == "" {
		return ErrEmptyProductID
	}

	unlock := s.lock()
	defer unlock()

	feedback := map[string]domain.FeedbackRecord{}
	if err := s.loadOrReset(ctx, KeyFeedback, &feedback); err != nil {
		return err
	}
	if feedback == nil {
		feedback = map[string]domain.FeedbackRecord{}
	}

	now := s.now()
	feedback[domain.FeedbackKey(sectionID, productID)] = domain.FeedbackRecord{
		SectionID:  sectionID,
		ProductID:  productID,
		IsRelevant: isRelevant,
		Timestamp:  now,
	}
	capFeedback(feedback, s.m.limits.FeedbackCap)

	if err := writeValue(ctx, s.store, KeyFeedback, feedback); err != nil {
		return err
	}

	return s.updateMetrics(ctx, sectionID, func(sm *domain.SectionMetrics) {
		if isRelevant {
			sm.Relevant++
		} else {
			sm.NotRelevant++
		}
	})
}

// Feedback returns the stored feedback records keyed by "sectionId:productId".
func (s *Service) Feedback(ctx context.Context) (out map[string]domain.FeedbackRecord) {
	out = map[string]domain.FeedbackRecord{}
	defer s.recoverTo(ctx, "feedback", func() { out = map[string]domain.FeedbackRecord{} })
	unlock := s.lock()
	defer unlock()

	if err := s.loadOrReset(ctx, KeyFeedback, &out); err != nil {
		s.fail(ctx, "feedback", err)
		return map[string]domain.FeedbackRecord{}
	}
	if out == nil {
		out = map[string]domain.FeedbackRecord{}
	}
	return out
}
