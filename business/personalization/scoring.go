package personalization

import (
	"context"
	"fmt"
	"math"
	"time"

	"myGreenStorefront/domain"

	"golang.org/x/sync/errgroup"
)

const neutralFeedback = 0.5

// snapshot holds every input of the relevance score for one scope.
type snapshot struct {
	settings domain.PersonalizationSettings
	views    map[string]int
	history  []domain.BrowsingEvent
	feedback map[string]domain.FeedbackRecord
	now      time.Time
}

// loadSnapshot reads the scorer inputs concurrently. Callers hold the scope lock.
func (s *Service) loadSnapshot(ctx context.Context) (*snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	snap := &snapshot{
		views:    map[string]int{},
		feedback: map[string]domain.FeedbackRecord{},
		now:      s.now(),
	}

	g, gctx := errgroup.WithContext(ctx)
	goRecover(g, func() error {
		cfg, err := s.loadSettings(gctx)
		if err != nil {
			return err
		}
		snap.settings = cfg
		return nil
	})
	goRecover(g, func() error {
		return s.loadOrReset(gctx, KeyProductViews, &snap.views)
	})
	goRecover(g, func() error {
		return s.loadOrReset(gctx, KeyBrowsingHistory, &snap.history)
	})
	goRecover(g, func() error {
		return s.loadOrReset(gctx, KeyFeedback, &snap.feedback)
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load scoring inputs: %w", err)
	}
	return snap, nil
}

// goRecover runs fn on g and turns a panic into the group's error. The
// service-level recover only covers the calling goroutine.
func goRecover(g *errgroup.Group, fn func() error) {
	g.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic while loading scoring inputs: %v", r)
			}
		}()
		return fn()
	})
}

// lockedSnapshot is loadSnapshot under the scope lock.
func (s *Service) lockedSnapshot(ctx context.Context) (*snapshot, error) {
	unlock := s.lock()
	defer unlock()
	return s.loadSnapshot(ctx)
}

// frequency is count / max(all counts, 1).
func (snap *snapshot) frequency(productID string) (float64, int) {
	maxViews := 1
	for _, c := range snap.views {
		if c > maxViews {
			maxViews = c
		}
	}
	count := snap.views[productID]
	return float64(count) / float64(maxViews), count
}

// recency decays the most recent product view of productID per elapsed hour.
func (snap *snapshot) recency(productID string) float64 {
	for _, ev := range snap.history {
		if ev.PageType != domain.PageTypeProduct || ev.ProductID() != productID {
			continue
		}
		hours := snap.now.Sub(ev.Timestamp).Hours()
		if hours < 0 {
			hours = 0
		}
		return math.Pow(snap.settings.DecayRate, hours)
	}
	return 0
}

// feedbackScore is the day-decayed mean of +1/-1 votes mapped to [0,1].
func (snap *snapshot) feedbackScore(productID string) (float64, int) {
	var sum, weights float64
	n := 0
	for _, r := range snap.feedback {
		if r.ProductID != productID {
			continue
		}
		n++
		days := snap.now.Sub(r.Timestamp).Hours() / 24
		if days < 0 {
			days = 0
		}
		w := math.Pow(snap.settings.DecayRate, days)
		v := -1.0
		if r.IsRelevant {
			v = 1.0
		}
		sum += w * v
		weights += w
	}
	if n == 0 || weights == 0 {
		return neutralFeedback, n
	}
	return (sum/weights + 1) / 2, n
}

// breakdown computes every component and the blended score of productID.
func (snap *snapshot) breakdown(productID string) domain.ScoreBreakdown {
	cfg := snap.settings
	b := domain.ScoreBreakdown{
		ProductID:       productID,
		Enabled:         cfg.Enabled,
		WeightFrequency: cfg.WeightFrequency,
		WeightRecency:   cfg.WeightRecency,
		WeightFeedback:  cfg.WeightFeedback,
	}
	if !cfg.Enabled {
		return b
	}

	b.Frequency, b.ViewCount = snap.frequency(productID)
	b.Recency = snap.recency(productID)
	b.Feedback, b.FeedbackCount = snap.feedbackScore(productID)
	b.Score = blend(b)
	return b
}

// blend is the weight-normalized sum of the three components, in [0,1].
func blend(b domain.ScoreBreakdown) float64 {
	total := b.WeightRecency + b.WeightFrequency + b.WeightFeedback
	if total <= 0 {
		return 0
	}
	score := (b.WeightRecency*b.Recency +
		b.WeightFrequency*b.Frequency +
		b.WeightFeedback*b.Feedback) / total
	return clamp01(score)
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// ScoreProduct returns the relevance of productID in [0,1]. It is 0 when
// personalization is disabled or the inputs cannot be read.
func (s *Service) ScoreProduct(ctx context.Context, productID string) (score float64) {
	defer s.recoverTo(ctx, "score_product", func() { score = 0 })

	snap, err := s.lockedSnapshot(ctx)
	if err != nil {
		s.fail(ctx, "score_product", err)
		return 0
	}
	return snap.breakdown(productID).Score
}

// ExplainScore returns the components behind ScoreProduct.
func (s *Service) ExplainScore(ctx context.Context, productID string) (b domain.ScoreBreakdown) {
	b = domain.ScoreBreakdown{ProductID: productID}
	defer s.recoverTo(ctx, "explain_score", func() { b = domain.ScoreBreakdown{ProductID: productID} })

	snap, err := s.lockedSnapshot(ctx)
	if err != nil {
		s.fail(ctx, "explain_score", err)
		return b
	}

	b = snap.breakdown(productID)
	s.debug("score explained",
		"trace_id", TraceIDFromContext(ctx),
		"product_id", productID,
		"frequency", b.Frequency,
		"recency", b.Recency,
		"feedback", b.Feedback,
		"score", b.Score,
	)
	return b
}
