package personalization

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"myGreenStorefront/domain"
)

type countEntry struct {
	key   string
	count int
}

// rankCounts orders a count map by count desc, then key asc.
func rankCounts(m map[string]int) []countEntry {
	entries := make([]countEntry, 0, len(m))
	for k, c := range m {
		entries = append(entries, countEntry{key: k, count: c})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count == entries[j].count {
			return entries[i].key < entries[j].key
		}
		return entries[i].count > entries[j].count
	})
	return entries
}

// topKeys returns up to n keys of m with the highest counts.
func topKeys(m map[string]int, n int) []string {
	ranked := rankCounts(m)
	if n < len(ranked) {
		ranked = ranked[:n]
	}
	out := make([]string, 0, len(ranked))
	for _, e := range ranked {
		out = append(out, e.key)
	}
	return out
}

// capCounts evicts the lowest-ranked entries until at most limit remain.
func capCounts(m map[string]int, limit int) {
	if limit <= 0 || len(m) <= limit {
		return
	}
	ranked := rankCounts(m)
	for _, e := range ranked[limit:] {
		delete(m, e.key)
	}
}

// capFeedback evicts the oldest records until at most limit remain.
func capFeedback(m map[string]domain.FeedbackRecord, limit int) {
	if limit <= 0 || len(m) <= limit {
		return
	}

	type info struct {
		key    string
		record domain.FeedbackRecord
	}
	infos := make([]info, 0, len(m))
	for k, r := range m {
		infos = append(infos, info{key: k, record: r})
	}

	// oldest first
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].record.Timestamp.Equal(infos[j].record.Timestamp) {
			return infos[i].key < infos[j].key
		}
		return infos[i].record.Timestamp.Before(infos[j].record.Timestamp)
	})

	toDrop := len(m) - limit
	for i := 0; i < toDrop; i++ {
		delete(m, infos[i].key)
	}
}

// bumpCount adds one to key inside the count map stored under storeKey.
func (s *Service) bumpCount(ctx context.Context, storeKey, key string, limit int) error {
	counts := map[string]int{}
	if err := s.loadOrReset(ctx, storeKey, &counts); err != nil {
		return err
	}
	if counts == nil {
		counts = map[string]int{}
	}

	counts[key]++
	capCounts(counts, limit)

	return writeValue(ctx, s.store, storeKey, counts)
}

func (s *Service) incrementProductView(ctx context.Context, productID string) error {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return ErrEmptyProductID
	}
	return s.bumpCount(ctx, KeyProductViews, productID, s.m.limits.ProductViewCap)
}

func (s *Service) updateCategoryPreference(ctx context.Context, category string) error {
	category = strings.TrimSpace(category)
	if category == "" {
		return fmt.Errorf("category is required")
	}
	return s.bumpCount(ctx, KeyCategoryPrefs, category, s.m.limits.CategoryCap)
}

func (s *Service) addSearchTerm(ctx context.Context, term string) error {
	term = strings.TrimSpace(term)
	if term == "" {
		return fmt.Errorf("search term is required")
	}

	var history []domain.SearchHistoryEntry
	if err := s.loadOrReset(ctx, KeySearchHistory, &history); err != nil {
		return err
	}

	next := make([]domain.SearchHistoryEntry, 0, len(history)+1)
	next = append(next, domain.SearchHistoryEntry{Term: term, Timestamp: s.now()})
	for _, h := range history {
		if h.Term == term {
			continue
		}
		next = append(next, h)
	}
	if limit := s.m.limits.SearchHistorySize; limit > 0 && len(next) > limit {
		next = next[:limit]
	}

	return writeValue(ctx, s.store, KeySearchHistory, next)
}

// IncrementProductView adds one view to productID, keeping only the
// top-ranked products once the cap is exceeded.
func (s *Service) IncrementProductView(ctx context.Context, productID string) (ok bool) {
	defer s.recoverTo(ctx, "increment_product_view", func() { ok = false })
	unlock := s.lock()
	defer unlock()

	if err := s.incrementProductView(ctx, productID); err != nil {
		s.fail(ctx, "increment_product_view", err)
		return false
	}
	return true
}

func (s *Service) UpdateCategoryPreference(ctx context.Context, category string) (ok bool) {
	defer s.recoverTo(ctx, "update_category_preference", func() { ok = false })
	unlock := s.lock()
	defer unlock()

	if err := s.updateCategoryPreference(ctx, category); err != nil {
		s.fail(ctx, "update_category_preference", err)
		return false
	}
	return true
}

// AddSearchTerm moves term to the front of the search history.
func (s *Service) AddSearchTerm(ctx context.Context, term string) (ok bool) {
	defer s.recoverTo(ctx, "add_search_term", func() { ok = false })
	unlock := s.lock()
	defer unlock()

	if err := s.addSearchTerm(ctx, term); err != nil {
		s.fail(ctx, "add_search_term", err)
		return false
	}
	return true
}

// ProductViews returns the stored view counts.
func (s *Service) ProductViews(ctx context.Context) (counts domain.ProductViewCount) {
	counts = domain.ProductViewCount{}
	defer s.recoverTo(ctx, "product_views", func() { counts = domain.ProductViewCount{} })
	unlock := s.lock()
	defer unlock()

	if err := s.loadOrReset(ctx, KeyProductViews, &counts); err != nil {
		s.fail(ctx, "product_views", err)
		return domain.ProductViewCount{}
	}
	if counts == nil {
		counts = domain.ProductViewCount{}
	}
	return counts
}
