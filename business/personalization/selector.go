package personalization

import (
	"context"
	"sort"

	"myGreenStorefront/domain"
	"myGreenStorefront/pkg/logger"
)

// SelectRecommendations picks up to limit products from candidates.
//
// Products scoring at least minRelevanceScore come first, best first, and
// are tagged personalized. Remaining slots are backfilled with a uniform
// random pick of the rest. When personalization is disabled, or scoring
// fails, the whole pick is random. Excluded ids never appear and duplicate
// candidates are collapsed.
func (s *Service) SelectRecommendations(
	ctx context.Context,
	candidates []domain.Product,
	limit int,
	excludeIDs []string,
) (recs []domain.Recommendation) {
	var pool []domain.Product
	defer s.recoverTo(ctx, "select_recommendations", func() {
		recs = s.randomOnly(pool, limit)
	})

	if limit <= 0 {
		return []domain.Recommendation{}
	}

	pool = uniqueCandidates(candidates, excludeIDs)
	pool = s.filterEligible(ctx, pool)
	if len(pool) == 0 {
		return []domain.Recommendation{}
	}

	snap, err := s.lockedSnapshot(ctx)
	if err != nil {
		s.fail(ctx, "select_recommendations", err)
		FallbacksTotal.WithLabelValues("select_recommendations").Inc()
		return s.randomOnly(pool, limit)
	}

	return s.selectWith(ctx, snap, pool, limit)
}

// selectWith ranks pool against an already loaded snapshot.
func (s *Service) selectWith(
	ctx context.Context,
	snap *snapshot,
	pool []domain.Product,
	limit int,
) []domain.Recommendation {
	if !snap.settings.Enabled {
		return s.randomOnly(pool, limit)
	}

	type scored struct {
		product domain.Product
		score   float64
	}

	ranked := make([]scored, 0, len(pool))
	for _, p := range pool {
		score := snap.breakdown(p.Key()).Score
		if score < snap.settings.MinRelevanceScore {
			continue
		}
		ranked = append(ranked, scored{product: p, score: score})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	out := make([]domain.Recommendation, 0, min(limit, len(pool)))
	selected := make(map[string]struct{}, len(ranked))
	for _, r := range ranked {
		out = append(out, domain.Recommendation{
			Product:        r.product,
			RelevanceScore: r.score,
			IsPersonalized: true,
		})
		selected[r.product.Key()] = struct{}{}
	}

	personalized := len(out)
	if len(out) < limit {
		rest := make([]domain.Product, 0, len(pool)-len(out))
		for _, p := range pool {
			if _, ok := selected[p.Key()]; !ok {
				rest = append(rest, p)
			}
		}
		out = append(out, s.randomPick(rest, limit-len(out))...)
	}

	RecommendationsTotal.WithLabelValues("personalized").Add(float64(personalized))
	RecommendationsTotal.WithLabelValues("backfill").Add(float64(len(out) - personalized))

	logger.Debug("recommendations selected",
		"trace_id", TraceIDFromContext(ctx),
		"scope", s.scope,
		"pool", len(pool),
		"limit", limit,
		"personalized", personalized,
		"backfilled", len(out)-personalized,
	)
	return out
}

// uniqueCandidates dedupes candidates by id and drops excluded ids. Order is
// preserved.
func uniqueCandidates(candidates []domain.Product, excludeIDs []string) []domain.Product {
	seen := make(map[string]struct{}, len(candidates)+len(excludeIDs))
	for _, id := range excludeIDs {
		seen[id] = struct{}{}
	}

	pool := make([]domain.Product, 0, len(candidates))
	for _, p := range candidates {
		key := p.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		pool = append(pool, p)
	}
	return pool
}

// filterEligible keeps the products the eligibility checker accepts.
func (s *Service) filterEligible(ctx context.Context, pool []domain.Product) []domain.Product {
	out := make([]domain.Product, 0, len(pool))
	for _, p := range pool {
		ok, err := s.m.eligChecker.IsEligible(ctx, p)
		if err != nil {
			logger.Debug("eligibility check failed", "product_id", p.Key(), "error", err)
			continue
		}
		if ok {
			out = append(out, p)
		}
	}
	return out
}

// randomOnly is the non-personalized path of a whole selection.
func (s *Service) randomOnly(pool []domain.Product, limit int) []domain.Recommendation {
	out := s.randomPick(pool, limit)
	RecommendationsTotal.WithLabelValues("random").Add(float64(len(out)))
	return out
}

// randomPick shuffles a copy of pool and tags up to n items as not personalized.
func (s *Service) randomPick(pool []domain.Product, n int) []domain.Recommendation {
	if n <= 0 || len(pool) == 0 {
		return []domain.Recommendation{}
	}

	shuffled := make([]domain.Product, len(pool))
	copy(shuffled, pool)
	s.m.shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	if n > len(shuffled) {
		n = len(shuffled)
	}

	out := make([]domain.Recommendation, 0, n)
	for _, p := range shuffled[:n] {
		out = append(out, domain.Recommendation{Product: p})
	}
	return out
}
