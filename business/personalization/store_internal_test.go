package personalization

import (
	"context"
	"sync"
	"testing"
	"time"

	"myGreenStorefront/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newMapStore() *mapStore { return &mapStore{data: map[string]string{}} }

func (m *mapStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *mapStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *mapStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func TestReadValue(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		raw     string
		present bool
		want    []domain.SearchHistoryEntry
		corrupt bool
	}{
		{name: "absent"},
		{
			name:    "envelope",
			raw:     `{"schema":"personalization","version":1,"data":[{"term":"kale","timestamp":"2026-03-02T10:00:00Z"}]}`,
			present: true,
			want:    []domain.SearchHistoryEntry{{Term: "kale", Timestamp: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)}},
		},
		{
			name:    "bare legacy array",
			raw:     `[{"term":"kale","timestamp":"2026-03-02T10:00:00Z"}]`,
			present: true,
			want:    []domain.SearchHistoryEntry{{Term: "kale", Timestamp: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)}},
		},
		{name: "newer schema", raw: `{"schema":"personalization","version":2,"data":[]}`, present: true, corrupt: true},
		{name: "garbage", raw: `not json`, present: true, corrupt: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newMapStore()
			if tt.present {
				require.NoError(t, st.Set(ctx, KeySearchHistory, tt.raw))
			}

			var got []domain.SearchHistoryEntry
			ok, err := readValue(ctx, st, KeySearchHistory, &got)
			if tt.corrupt {
				assert.ErrorIs(t, err, ErrCorruptValue)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.present, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWriteValue_Envelope(t *testing.T) {
	ctx := context.Background()
	st := newMapStore()

	require.NoError(t, writeValue(ctx, st, KeyProductViews, map[string]int{"3": 2}))

	raw, ok, err := st.Get(ctx, KeyProductViews)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"schema":"personalization","version":1,"data":{"3":2}}`, raw)
}

func TestReadValue_LegacyObjectWithEnvelopeLikeKeys(t *testing.T) {
	ctx := context.Background()
	st := newMapStore()
	require.NoError(t, st.Set(ctx, KeyCategoryPrefs, `{"version":4,"data":2,"fruit":9}`))

	var got map[string]int
	ok, err := readValue(ctx, st, KeyCategoryPrefs, &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, map[string]int{"version": 4, "data": 2, "fruit": 9}, got)
}

func TestReadValue_FailedDecodeLeavesTargetUntouched(t *testing.T) {
	ctx := context.Background()
	st := newMapStore()
	require.NoError(t, st.Set(ctx, KeyProductViews, `{"1":50,"2":"oops","3":7}`))

	got := map[string]int{"seed": 1}
	_, err := readValue(ctx, st, KeyProductViews, &got)
	assert.ErrorIs(t, err, ErrCorruptValue)
	assert.Equal(t, map[string]int{"seed": 1}, got)
}

func TestRankCountsAndCap(t *testing.T) {
	counts := map[string]int{"b": 2, "a": 2, "c": 5, "d": 1}

	assert.Equal(t, []string{"c", "a", "b"}, topKeys(counts, 3))
	assert.Equal(t, []string{"c", "a", "b", "d"}, topKeys(counts, 10))

	capCounts(counts, 2)
	assert.Equal(t, map[string]int{"c": 5, "a": 2}, counts)

	capCounts(counts, 0)
	assert.Len(t, counts, 2)
}

func TestCapFeedback(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	fb := map[string]domain.FeedbackRecord{
		"s:1": {Timestamp: now.Add(-3 * time.Hour)},
		"s:2": {Timestamp: now.Add(-1 * time.Hour)},
		"s:3": {Timestamp: now.Add(-2 * time.Hour)},
	}

	capFeedback(fb, 2)
	assert.Len(t, fb, 2)
	assert.NotContains(t, fb, "s:1")
}

func TestBlend(t *testing.T) {
	b := domain.ScoreBreakdown{
		WeightRecency:   0.7,
		WeightFrequency: 0.5,
		WeightFeedback:  0.8,
		Recency:         1,
		Frequency:       1,
		Feedback:        1,
	}
	assert.InDelta(t, 1.0, blend(b), 1e-12)

	b.WeightRecency, b.WeightFrequency, b.WeightFeedback = 0, 0, 0
	assert.Equal(t, 0.0, blend(b))

	assert.Equal(t, 0.0, clamp01(-0.2))
	assert.Equal(t, 1.0, clamp01(1.3))
}

func TestScopeLockIsStable(t *testing.T) {
	m := NewManager(SingleStore(newMapStore()))
	assert.Same(t, m.scopeLock("session-a"), m.scopeLock("session-a"))
}

func TestCapSections(t *testing.T) {
	m := map[string]domain.SectionMetrics{
		"a":   {Impressions: 5},
		"b":   {Clicks: 1},
		"c":   {Impressions: 1},
		"new": {},
	}
	capSections(m, "new", 2)
	assert.Equal(t, map[string]domain.SectionMetrics{"a": {Impressions: 5}, "new": {}}, m)

	capSections(m, "new", 0)
	assert.Len(t, m, 2)
}
