package repository_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onronder/p-958660-sub000/internal/models"
	"github.com/onronder/p-958660-sub000/internal/repository"
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

var sourceColumns = []string{"id", "name", "source_type", "url", "credentials", "is_deleted", "deletion_marked_at"}

func TestSourceRepository_GetByID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository.NewSourceRepository(db)

	mock.ExpectQuery("SELECT .+ FROM sources WHERE id").
		WithArgs("src-1").
		WillReturnRows(sqlmock.NewRows(sourceColumns).
			AddRow("src-1", "Acme", "Shopify", "acme.myshopify.com", []byte(`{"store_name":"acme","api_token":"t"}`), false, nil))

	src, err := repo.GetByID(context.Background(), "src-1")
	require.NoError(t, err)
	assert.Equal(t, "Shopify", src.SourceType)
	assert.Equal(t, "acme", src.Credentials["store_name"])
}

func TestSourceRepository_GetByID_DeletedIsNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository.NewSourceRepository(db)

	marked := time.Now()
	mock.ExpectQuery("SELECT .+ FROM sources WHERE id").
		WithArgs("src-1").
		WillReturnRows(sqlmock.NewRows(sourceColumns).
			AddRow("src-1", "Acme", "Shopify", "acme", nil, true, marked))

	_, err := repo.GetByID(context.Background(), "src-1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSourceRepository_GetByID_Missing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository.NewSourceRepository(db)

	mock.ExpectQuery("SELECT .+ FROM sources WHERE id").
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows(sourceColumns))

	_, err := repo.GetByID(context.Background(), "nope")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestCredentialRepository_GetSharedCredential(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository.NewCredentialRepository(db)

	cols := []string{"id", "store_name", "api_token", "access_token", "api_key", "client_id", "api_secret", "client_secret"}
	mock.ExpectQuery("SELECT .+ FROM shared_credentials WHERE id").
		WithArgs("cred-1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("cred-1", "acme", "", "tok", "key", "", "", "sec"))

	cred, err := repo.GetSharedCredential(context.Background(), "cred-1")
	require.NoError(t, err)
	assert.Equal(t, "tok", cred.AccessToken)
	assert.Equal(t, "key", cred.APIKey)
}

func TestCredentialRepository_StorageError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository.NewCredentialRepository(db)

	mock.ExpectQuery("SELECT .+ FROM shared_credentials").
		WithArgs("cred-1").
		WillReturnError(errors.New("connection reset"))

	_, err := repo.GetSharedCredential(context.Background(), "cred-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, repository.ErrNotFound)
}

func TestLookups_MalformedIDIsNotFound(t *testing.T) {
	castErr := &pq.Error{Code: "22P02", Message: `invalid input syntax for type uuid: "legacy-7"`}

	tests := []struct {
		name   string
		table  string
		lookup func(db *sqlx.DB) error
	}{
		{"source", "sources", func(db *sqlx.DB) error {
			_, err := repository.NewSourceRepository(db).GetByID(context.Background(), "legacy-7")
			return err
		}},
		{"shared credential", "shared_credentials", func(db *sqlx.DB) error {
			_, err := repository.NewCredentialRepository(db).GetSharedCredential(context.Background(), "legacy-7")
			return err
		}},
		{"dataset template", "dataset_templates", func(db *sqlx.DB) error {
			_, err := repository.NewTemplateRepository(db).GetByID(context.Background(), "legacy-7")
			return err
		}},
		{"extraction", "extractions", func(db *sqlx.DB) error {
			_, err := repository.NewExtractionRepository(db).GetByID(context.Background(), "legacy-7")
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			mock.ExpectQuery("SELECT .+ FROM " + tt.table + " WHERE id").
				WithArgs("legacy-7").
				WillReturnError(castErr)

			assert.ErrorIs(t, tt.lookup(db), repository.ErrNotFound)
		})
	}
}

func TestLookups_OtherPostgresErrorsAreNotNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT .+ FROM sources WHERE id").
		WithArgs("src-1").
		WillReturnError(&pq.Error{Code: "57P01", Message: "terminating connection"})

	_, err := repository.NewSourceRepository(db).GetByID(context.Background(), "src-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, repository.ErrNotFound)
}

func TestTemplateRepository_GetByKey(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository.NewTemplateRepository(db)

	query := "{ shop { name } }"
	mock.ExpectQuery("SELECT .+ FROM dataset_templates WHERE template_key").
		WithArgs("shop_info").
		WillReturnRows(sqlmock.NewRows([]string{"id", "template_key", "name", "description", "query"}).
			AddRow("t-1", "shop_info", "Shop info", "", query))

	tmpl, err := repo.GetByKey(context.Background(), "shop_info")
	require.NoError(t, err)
	require.NotNil(t, tmpl.Query)
	assert.Equal(t, query, *tmpl.Query)
}

func TestTemplateRepository_GetByID_Missing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository.NewTemplateRepository(db)

	mock.ExpectQuery("SELECT .+ FROM dataset_templates WHERE id").
		WithArgs("t-9").
		WillReturnRows(sqlmock.NewRows([]string{"id", "template_key", "name", "description", "query"}))

	_, err := repo.GetByID(context.Background(), "t-9")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestExtractionRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository.NewExtractionRepository(db)

	now := time.Now()
	key := "recent_orders"
	mock.ExpectQuery("INSERT INTO extractions").
		WithArgs("ex-1", "src-1", &key, nil, nil, models.StatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	e := &models.Extraction{ID: "ex-1", SourceID: "src-1", TemplateKey: &key}
	require.NoError(t, repo.Create(context.Background(), e))
	assert.Equal(t, models.StatusPending, e.Status)
	assert.Equal(t, now, e.CreatedAt)
}

func TestExtractionRepository_Transition(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository.NewExtractionRepository(db)

	progress := 0
	started := time.Now()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE extractions")).
		WithArgs("ex-1", models.StatusRunning, &progress, nil, nil, nil, &started, nil,
			sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Transition(context.Background(), "ex-1", models.StatusUpdate{
		Status:    models.StatusRunning,
		Progress:  &progress,
		StartedAt: &started,
	})
	assert.NoError(t, err)
}

func TestExtractionRepository_Transition_Stale(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository.NewExtractionRepository(db)

	mock.ExpectExec("UPDATE extractions").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Transition(context.Background(), "ex-1", models.StatusUpdate{Status: models.StatusCompleted})
	assert.ErrorIs(t, err, repository.ErrStaleStatus)
}

func TestExtractionRepository_Transition_ToPendingRejected(t *testing.T) {
	db, _ := newMockDB(t)
	repo := repository.NewExtractionRepository(db)

	err := repo.Transition(context.Background(), "ex-1", models.StatusUpdate{Status: models.StatusPending})
	assert.Error(t, err)
}

func TestExtractionRepository_GetByID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository.NewExtractionRepository(db)

	now := time.Now()
	cols := []string{
		"id", "source_id", "template_key", "template_name", "custom_query",
		"status", "progress", "status_message", "result_data", "record_count",
		"started_at", "completed_at", "created_at", "updated_at",
	}
	mock.ExpectQuery("SELECT .+ FROM extractions WHERE id").
		WithArgs("ex-1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			"ex-1", "src-1", "products", nil, nil,
			"completed", 100, nil, []byte(`[{"id":"1"}]`), 1,
			now, now, now, now,
		))

	e, err := repo.GetByID(context.Background(), "ex-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, e.Status)
	assert.Equal(t, models.Records{{"id": "1"}}, e.ResultData)
}

func TestOperationLogRepository_Insert(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository.NewOperationLogRepository(db)

	mock.ExpectExec("INSERT INTO operation_logs").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Insert(context.Background(), &models.OperationLog{
		ID:          "log-1",
		Operation:   "extract",
		SourceID:    "src-1",
		StoreName:   "acme",
		RecordCount: 3,
		DurationMs:  120,
		Success:     true,
		CreatedAt:   time.Now(),
	})
	assert.NoError(t, err)
}
