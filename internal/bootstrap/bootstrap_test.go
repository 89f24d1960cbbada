package bootstrap_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	infralogger "github.com/onronder/p-958660-sub000/infrastructure/logger"
	"github.com/onronder/p-958660-sub000/internal/apperr"
	"github.com/onronder/p-958660-sub000/internal/bootstrap"
	"github.com/onronder/p-958660-sub000/internal/config"
	"github.com/onronder/p-958660-sub000/internal/metrics"
	"github.com/onronder/p-958660-sub000/internal/preview"
	"github.com/onronder/p-958660-sub000/internal/tasks"
	"github.com/onronder/p-958660-sub000/internal/templates"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = mockDB.Close()
	})
	return sqlx.NewDb(mockDB, "postgres"), mock
}

func testConfig() *config.Config {
	return &config.Config{
		Shopify: config.ShopifyConfig{RateLimit: 4, RateBurst: 8, BreakerFailures: 5},
		Extraction: config.ExtractionConfig{
			DependentConcurrency: 5,
			Workers:              1,
			QueueSize:            8,
		},
	}
}

func builtinCatalog(t *testing.T) *templates.Catalog {
	t.Helper()
	catalog, err := templates.Builtin()
	require.NoError(t, err)
	return catalog
}

func TestSetupDeadLetters(t *testing.T) {
	t.Parallel()

	log := infralogger.NewNop()
	ctx := context.Background()

	logOnly := bootstrap.SetupDeadLetters(nil, log)
	logOnly.Record(ctx, tasks.DeadLetter{TaskID: "t1", Reason: tasks.ReasonFailed})
	letters, err := logOnly.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, letters)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	kept := bootstrap.SetupDeadLetters(client, log)
	kept.Record(ctx, tasks.DeadLetter{TaskID: "t1", Reason: tasks.ReasonFailed})
	letters, err = kept.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, letters, 1)
	assert.Equal(t, "t1", letters[0].TaskID)
}

func TestSetupRedis(t *testing.T) {
	t.Parallel()

	log := infralogger.NewNop()
	ctx := context.Background()

	assert.Nil(t, bootstrap.SetupRedis(ctx, config.RedisConfig{Enabled: false, Address: "localhost:6379"}, log))

	mr := miniredis.RunT(t)
	client := bootstrap.SetupRedis(ctx, config.RedisConfig{Enabled: true, Address: mr.Addr()}, log)
	require.NotNil(t, client)
	t.Cleanup(func() { _ = client.Close() })

	unreachable := bootstrap.SetupRedis(ctx, config.RedisConfig{Enabled: true, Address: "127.0.0.1:1"}, log)
	assert.Nil(t, unreachable)
}

func TestCreateLogger(t *testing.T) {
	t.Parallel()

	log, err := bootstrap.CreateLogger(&config.Config{Debug: true}, "test")
	require.NoError(t, err)
	assert.NotNil(t, log)
}

func TestSetupExtraction_UnknownSource(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	mock.ExpectQuery("FROM sources").WithArgs("missing").WillReturnError(sql.ErrNoRows)

	log := infralogger.NewNop()
	m := metrics.New()
	queue := bootstrap.SetupQueue(testConfig().Extraction, bootstrap.SetupDeadLetters(nil, log), m, log)

	svc := bootstrap.SetupExtraction(testConfig(), db, nil, builtinCatalog(t), queue, m, log)

	_, err := svc.TestConnection(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, apperr.CodeSourceNotFound, apperr.CodeOf(err))
}

func TestSetupPreviews_ClassifiesUnknownSource(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	mock.ExpectQuery("FROM sources").WithArgs("missing").WillReturnError(sql.ErrNoRows)

	log := infralogger.NewNop()
	m := metrics.New()
	cfg := testConfig()
	queue := bootstrap.SetupQueue(cfg.Extraction, bootstrap.SetupDeadLetters(nil, log), m, log)
	svc := bootstrap.SetupExtraction(cfg, db, nil, builtinCatalog(t), queue, m, log)

	coord := bootstrap.SetupPreviews(config.PreviewConfig{}, db, nil, svc, m, log)
	state, err := coord.Generate(context.Background(), preview.Request{
		SessionID: "s1", SourceID: "missing", DatasetType: preview.DatasetCustom, CustomQuery: "{ shop { name } }",
	})
	require.NoError(t, err)
	assert.Equal(t, preview.CategoryOther, state.Category)
	assert.Zero(t, state.RetryCount)
}
