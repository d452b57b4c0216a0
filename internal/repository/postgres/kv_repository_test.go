//go:build integration

package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"myGreenStorefront/business/personalization"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	pgdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestKV(t *testing.T) *KVRepository {
	t.Helper()

	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}

	db, err := gorm.Open(pgdriver.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	repo := NewKVRepository(db)
	require.NoError(t, repo.AutoMigrate(context.Background()))

	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	})
	return repo
}

func TestKVRepository_Upsert(t *testing.T) {
	repo := newTestKV(t)
	ctx := context.Background()

	scope := uuid.NewString()
	st := repo.ForScope(scope)
	t.Cleanup(func() {
		for _, k := range personalization.AllKeys {
			_ = st.Delete(ctx, k)
		}
	})

	_, ok, err := st.Get(ctx, personalization.KeyProductViews)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, st.Set(ctx, personalization.KeyProductViews, `{"version":1,"data":{"1":1}}`))
	require.NoError(t, st.Set(ctx, personalization.KeyProductViews, `{"version":1,"data":{"1":2}}`))

	got, ok, err := st.Get(ctx, personalization.KeyProductViews)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"version":1,"data":{"1":2}}`, got)

	// scopes do not see each other
	_, ok, err = repo.ForScope(uuid.NewString()).Get(ctx, personalization.KeyProductViews)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, st.Delete(ctx, personalization.KeyProductViews))
	_, ok, err = st.Get(ctx, personalization.KeyProductViews)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestKVRepository_EngineRoundTrip(t *testing.T) {
	repo := newTestKV(t)
	ctx := context.Background()

	svc := personalization.NewManager(repo).ForScope(uuid.NewString())
	t.Cleanup(func() { svc.ClearPersonalizationData(ctx) })

	require.True(t, svc.RecordEvent(ctx, "/products/9", "product", map[string]any{"productId": "9"}))
	assert.Equal(t, 1, svc.ProductViews(ctx)["9"])
	assert.Equal(t, 1, svc.ExplainScore(ctx, "9").ViewCount)
}

func TestKVRepository_PurgeBefore(t *testing.T) {
	repo := newTestKV(t)
	ctx := context.Background()

	scope := uuid.NewString()
	require.NoError(t, repo.Set(ctx, scope, personalization.KeySearchHistory, "[]"))

	require.NoError(t, repo.DB.WithContext(ctx).
		Model(&kvRow{}).
		Where("scope = ?", scope).
		Update("updated_at", time.Now().Add(-48*time.Hour)).Error)

	n, err := repo.PurgeBefore(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, int64(1))

	_, ok, err := repo.Get(ctx, scope, personalization.KeySearchHistory)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestKVRepository_PurgeBeforeKeepsActiveScopes(t *testing.T) {
	repo := newTestKV(t)
	ctx := context.Background()

	active := uuid.NewString()
	require.NoError(t, repo.Set(ctx, active, personalization.KeySettings, `{}`))
	require.NoError(t, repo.Set(ctx, active, personalization.KeyProductViews, `{}`))
	require.NoError(t, repo.DB.WithContext(ctx).
		Model(&kvRow{}).
		Where("scope = ? AND key = ?", active, personalization.KeySettings).
		Update("updated_at", time.Now().Add(-48*time.Hour)).Error)

	_, err := repo.PurgeBefore(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)

	got, ok, err := repo.Get(ctx, active, personalization.KeySettings)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{}`, got)

	_, ok, err = repo.Get(ctx, active, personalization.KeyProductViews)
	require.NoError(t, err)
	assert.True(t, ok)
}
