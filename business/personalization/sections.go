package personalization

import (
	"context"

	"myGreenStorefront/domain"
)

const (
	SectionRecommended    = "recommended"
	SectionRecentlyViewed = "recently_viewed"
	sectionCategoryPrefix = "category:"
)

// BuildSections assembles up to maxSections rows of at most
// maxItemsPerSection products from catalog: a ranked "recommended" row, the
// recently viewed products, then one row per preferred category. A product
// shown in a ranked row is not repeated in a later ranked row.
func (s *Service) BuildSections(ctx context.Context, catalog []domain.Product) (sections []domain.RecommendationSection) {
	var pool []domain.Product
	defer s.recoverTo(ctx, "build_sections", func() {
		sections = s.randomSection(pool, s.m.defaults.MaxItemsPerSection)
	})

	pool = uniqueCandidates(catalog, nil)
	pool = s.filterEligible(ctx, pool)
	if len(pool) == 0 {
		return []domain.RecommendationSection{}
	}

	var (
		snap       *snapshot
		categories = map[string]int{}
	)
	err := s.withLock(func() error {
		var err error
		if snap, err = s.loadSnapshot(ctx); err != nil {
			return err
		}
		return s.loadOrReset(ctx, KeyCategoryPrefs, &categories)
	})
	if err != nil {
		s.fail(ctx, "build_sections", err)
		FallbacksTotal.WithLabelValues("build_sections").Inc()
		return s.randomSection(pool, s.m.defaults.MaxItemsPerSection)
	}

	cfg := snap.settings
	if !cfg.Enabled {
		return s.randomSection(pool, cfg.MaxItemsPerSection)
	}

	sections = []domain.RecommendationSection{}
	shown := map[string]struct{}{}
	add := func(sec domain.RecommendationSection, ranked bool) {
		if len(sec.Items) == 0 || len(sections) >= cfg.MaxSections {
			return
		}
		if ranked {
			for _, it := range sec.Items {
				shown[it.Key()] = struct{}{}
			}
		}
		sections = append(sections, sec)
	}

	add(domain.RecommendationSection{
		ID:    SectionRecommended,
		Title: "Recommended for you",
		Items: s.selectWith(ctx, snap, pool, cfg.MaxItemsPerSection),
	}, true)

	add(domain.RecommendationSection{
		ID:    SectionRecentlyViewed,
		Title: "Recently viewed",
		Items: snap.recentlyViewed(pool, cfg.MaxItemsPerSection),
	}, false)

	for _, cat := range topKeys(categories, cfg.MaxSections) {
		if len(sections) >= cfg.MaxSections {
			break
		}
		var catPool []domain.Product
		for _, p := range pool {
			if _, seen := shown[p.Key()]; seen || p.ProductCategory != cat {
				continue
			}
			catPool = append(catPool, p)
		}
		add(domain.RecommendationSection{
			ID:    sectionCategoryPrefix + cat,
			Title: "More in " + cat,
			Items: s.selectWith(ctx, snap, catPool, cfg.MaxItemsPerSection),
		}, true)
	}

	return sections
}

// recentlyViewed lists the distinct products of the history found in pool,
// newest first. An item counts as personalized only when its score clears
// the relevance cutoff.
func (snap *snapshot) recentlyViewed(pool []domain.Product, limit int) []domain.Recommendation {
	byKey := make(map[string]domain.Product, len(pool))
	for _, p := range pool {
		byKey[p.Key()] = p
	}

	out := []domain.Recommendation{}
	seen := map[string]struct{}{}
	for _, ev := range snap.history {
		if len(out) >= limit {
			break
		}
		if ev.PageType != domain.PageTypeProduct {
			continue
		}
		pid := ev.ProductID()
		if _, dup := seen[pid]; dup {
			continue
		}
		p, ok := byKey[pid]
		if !ok {
			continue
		}
		seen[pid] = struct{}{}
		score := snap.breakdown(pid).Score
		out = append(out, domain.Recommendation{
			Product:        p,
			RelevanceScore: score,
			IsPersonalized: score >= snap.settings.MinRelevanceScore,
		})
	}
	return out
}

// randomSection is the single non-personalized row used when
// personalization is off or unavailable.
func (s *Service) randomSection(pool []domain.Product, limit int) []domain.RecommendationSection {
	items := s.randomOnly(pool, limit)
	if len(items) == 0 {
		return []domain.RecommendationSection{}
	}
	return []domain.RecommendationSection{{
		ID:    SectionRecommended,
		Title: "Recommended for you",
		Items: items,
	}}
}
