package preview_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	infralogger "github.com/onronder/p-958660-sub000/infrastructure/logger"
	"github.com/onronder/p-958660-sub000/infrastructure/retry"
	"github.com/onronder/p-958660-sub000/internal/apperr"
	"github.com/onronder/p-958660-sub000/internal/models"
	"github.com/onronder/p-958660-sub000/internal/preview"
	"github.com/onronder/p-958660-sub000/internal/repository"
)

type mockExtractor struct {
	mock.Mock
}

func (m *mockExtractor) Extract(ctx context.Context, req models.ExtractionRequest) (*models.ExtractionResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ExtractionResponse), args.Error(1)
}

func (m *mockExtractor) ExtractDependent(ctx context.Context, req models.DependentRequest) (*models.ExtractionResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ExtractionResponse), args.Error(1)
}

func (m *mockExtractor) TestConnection(ctx context.Context, sourceID string) (*models.ConnectionTestResult, error) {
	args := m.Called(ctx, sourceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ConnectionTestResult), args.Error(1)
}

type templateTable map[string]string

func (t templateTable) GetByID(_ context.Context, id string) (*models.DatasetTemplate, error) {
	key, ok := t[id]
	if !ok {
		return nil, fmt.Errorf("template %s: %w", id, repository.ErrNotFound)
	}
	return &models.DatasetTemplate{ID: id, TemplateKey: key}, nil
}

type categoryCounter struct {
	mu   sync.Mutex
	seen []string
}

func (c *categoryCounter) ObservePreviewError(category string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen = append(c.seen, category)
}

var fastRetry = retry.Config{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}

var connected = &models.ConnectionTestResult{Success: true, Message: "Successfully connected to Acme"}

func newCoordinator(ext *mockExtractor, store preview.StateStore, opts ...preview.Option) *preview.Coordinator {
	opts = append([]preview.Option{preview.WithRetryConfig(fastRetry)}, opts...)
	return preview.NewCoordinator(ext, templateTable{"tmpl-1": "recent_orders"}, store, infralogger.NewNop(), opts...)
}

func sample(s string) *string { return &s }

func TestGenerate_PredefinedResolvesTemplateKey(t *testing.T) {
	t.Parallel()

	ext := new(mockExtractor)
	ext.On("TestConnection", mock.Anything, "src-1").Return(connected, nil).Once()
	ext.On("Extract", mock.Anything, models.ExtractionRequest{
		SourceID: "src-1", TemplateKey: "recent_orders", PreviewOnly: true, Limit: 5,
	}).Return(&models.ExtractionResponse{
		Results: []models.Record{{"id": "1"}}, Count: 1, Preview: true, Sample: sample(`[{"id":"1"}]`),
	}, nil).Once()

	c := newCoordinator(ext, preview.NewMemoryStore())
	state, err := c.Generate(context.Background(), preview.Request{
		SessionID: "s1", SourceID: "src-1", DatasetType: preview.DatasetPredefined, TemplateID: "tmpl-1", Limit: 5,
	})
	require.NoError(t, err)

	assert.False(t, state.Loading)
	assert.Nil(t, state.Error)
	assert.Len(t, state.Data, 1)
	assert.Equal(t, `[{"id":"1"}]`, *state.Sample)
	ext.AssertExpectations(t)
}

func TestGenerate_DispatchesByType(t *testing.T) {
	t.Parallel()

	ok := &models.ExtractionResponse{Results: []models.Record{}, Preview: true}

	t.Run("dependent", func(t *testing.T) {
		t.Parallel()
		ext := new(mockExtractor)
		ext.On("TestConnection", mock.Anything, "src-1").Return(connected, nil)
		ext.On("ExtractDependent", mock.Anything, models.DependentRequest{
			SourceID: "src-1", TemplateName: "customer_with_orders", PreviewOnly: true,
		}).Return(&models.ExtractionResponse{Preview: true, Note: "primary only"}, nil)

		state, err := newCoordinator(ext, preview.NewMemoryStore()).Generate(context.Background(), preview.Request{
			SessionID: "s", SourceID: "src-1", DatasetType: preview.DatasetDependent, TemplateName: "customer_with_orders",
		})
		require.NoError(t, err)
		assert.Equal(t, "primary only", state.Note)
		ext.AssertExpectations(t)
	})

	t.Run("custom", func(t *testing.T) {
		t.Parallel()
		ext := new(mockExtractor)
		ext.On("TestConnection", mock.Anything, "src-1").Return(connected, nil)
		ext.On("Extract", mock.Anything, models.ExtractionRequest{
			SourceID: "src-1", CustomQuery: "{ shop { name } }", PreviewOnly: true,
		}).Return(ok, nil)

		_, err := newCoordinator(ext, preview.NewMemoryStore()).Generate(context.Background(), preview.Request{
			SessionID: "s", SourceID: "src-1", DatasetType: preview.DatasetCustom, CustomQuery: "{ shop { name } }",
		})
		require.NoError(t, err)
		ext.AssertExpectations(t)
	})

	t.Run("unknown type is not classified", func(t *testing.T) {
		t.Parallel()
		ext := new(mockExtractor)
		ext.On("TestConnection", mock.Anything, "src-1").Return(connected, nil)

		_, err := newCoordinator(ext, preview.NewMemoryStore()).Generate(context.Background(), preview.Request{
			SessionID: "s", SourceID: "src-1", DatasetType: "spreadsheet",
		})
		assert.ErrorIs(t, err, preview.ErrUnknownDatasetType)
		ext.AssertNotCalled(t, "Extract", mock.Anything, mock.Anything)
	})
}

func TestGenerate_ConnectionFailureStopsBeforeQuery(t *testing.T) {
	t.Parallel()

	ext := new(mockExtractor)
	ext.On("TestConnection", mock.Anything, "src-1").Return(&models.ConnectionTestResult{
		Success: false, Message: "Request timed out after 5000ms", Code: "timeout",
	}, nil)

	counter := &categoryCounter{}
	state, err := newCoordinator(ext, preview.NewMemoryStore(), preview.WithRecorder(counter)).Generate(
		context.Background(), preview.Request{
			SessionID: "s", SourceID: "src-1", DatasetType: preview.DatasetCustom, CustomQuery: "{ shop { name } }",
		})
	require.NoError(t, err)

	ext.AssertNumberOfCalls(t, "TestConnection", 3)
	ext.AssertNotCalled(t, "Extract", mock.Anything, mock.Anything)
	assert.Equal(t, preview.CategoryConnectivity, state.Category)
	assert.Equal(t, 1, state.RetryCount)
	require.NotNil(t, state.Error)
	assert.Contains(t, *state.Error, "try refreshing")
	assert.Equal(t, []string{"connectivity"}, counter.seen)
}

func TestGenerate_AuthFailureIsNotRetried(t *testing.T) {
	t.Parallel()

	ext := new(mockExtractor)
	ext.On("TestConnection", mock.Anything, "src-1").Return(&models.ConnectionTestResult{
		Success: false, Message: "Shopify API error: 401 Unauthorized", Code: "shopify_api_error", Status: 401,
	}, nil)

	state, err := newCoordinator(ext, preview.NewMemoryStore()).Generate(context.Background(), preview.Request{
		SessionID: "s", SourceID: "src-1", DatasetType: preview.DatasetCustom, CustomQuery: "{ shop { name } }",
	})
	require.NoError(t, err)

	ext.AssertNumberOfCalls(t, "TestConnection", 1)
	assert.Equal(t, preview.CategoryAuth, state.Category)
	assert.Zero(t, state.RetryCount)
}

func TestRetryCount_AccumulatesAndResetsOnRetry(t *testing.T) {
	t.Parallel()

	ext := new(mockExtractor)
	ext.On("TestConnection", mock.Anything, "src-1").Return(connected, nil)
	ext.On("Extract", mock.Anything, mock.Anything).
		Return(nil, apperr.New(apperr.CodeTimeout, "Request timed out after 15000ms"))

	c := newCoordinator(ext, preview.NewMemoryStore())
	req := preview.Request{SessionID: "s", SourceID: "src-1", DatasetType: preview.DatasetCustom, CustomQuery: "{ shop { name } }"}
	ctx := context.Background()

	var state *preview.State
	var err error
	for range 3 {
		state, err = c.Generate(ctx, req)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, state.RetryCount)
	assert.Contains(t, *state.Error, "contact support")

	state, err = c.Retry(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 1, state.RetryCount)
	assert.Contains(t, *state.Error, "try refreshing")
}

func TestRetryCount_ConcurrentPreviewsBothCount(t *testing.T) {
	t.Parallel()

	ext := new(mockExtractor)
	ext.On("TestConnection", mock.Anything, "src-1").Return(connected, nil)
	ext.On("Extract", mock.Anything, mock.Anything).
		Return(nil, apperr.New(apperr.CodeTimeout, "Request timed out after 15000ms"))

	store := preview.NewMemoryStore()
	c := newCoordinator(ext, store)
	req := preview.Request{SessionID: "s", SourceID: "src-1", DatasetType: preview.DatasetCustom, CustomQuery: "{ shop { name } }"}

	var wg sync.WaitGroup
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Generate(context.Background(), req)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	state, err := c.Session(context.Background(), "s")
	require.NoError(t, err)
	assert.Equal(t, 2, state.RetryCount)
	assert.False(t, state.Loading)
}

func TestSession(t *testing.T) {
	t.Parallel()

	c := newCoordinator(new(mockExtractor), preview.NewMemoryStore())
	state, err := c.Session(context.Background(), "unknown")
	require.NoError(t, err)
	assert.Zero(t, state.RetryCount)

	_, err = newCoordinator(new(mockExtractor), failingStore{}).Session(context.Background(), "s")
	assert.Error(t, err)
}

func TestGenerate_SyntaxErrorDoesNotCount(t *testing.T) {
	t.Parallel()

	ext := new(mockExtractor)
	ext.On("TestConnection", mock.Anything, "src-1").Return(connected, nil)
	ext.On("Extract", mock.Anything, mock.Anything).
		Return(nil, apperr.New(apperr.CodeQueryResolution, "Invalid GraphQL syntax near line 3"))

	state, err := newCoordinator(ext, preview.NewMemoryStore()).Generate(context.Background(), preview.Request{
		SessionID: "s", SourceID: "src-1", DatasetType: preview.DatasetCustom, CustomQuery: "{",
	})
	require.NoError(t, err)
	assert.Equal(t, preview.CategorySyntax, state.Category)
	assert.Zero(t, state.RetryCount)
}

func TestGenerate_UnknownTemplateID(t *testing.T) {
	t.Parallel()

	ext := new(mockExtractor)
	ext.On("TestConnection", mock.Anything, "src-1").Return(connected, nil)

	state, err := newCoordinator(ext, preview.NewMemoryStore()).Generate(context.Background(), preview.Request{
		SessionID: "s", SourceID: "src-1", DatasetType: preview.DatasetPredefined, TemplateID: "tmpl-404",
	})
	require.NoError(t, err)
	assert.Equal(t, preview.CategoryOther, state.Category)
	assert.Contains(t, *state.Error, "tmpl-404")
}

type failingStore struct{}

func (failingStore) Load(context.Context, string) (*preview.State, error) {
	return nil, errors.New("redis: connection refused")
}

func (failingStore) Update(context.Context, string, func(*preview.State)) (*preview.State, error) {
	return nil, errors.New("redis: connection refused")
}

func TestGenerate_StoreLoadFailure(t *testing.T) {
	t.Parallel()

	_, err := newCoordinator(new(mockExtractor), failingStore{}).Generate(context.Background(), preview.Request{SessionID: "s"})
	assert.Error(t, err)
}
