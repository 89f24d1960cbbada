package logger_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onronder/p-958660-sub000/infrastructure/logger"
)

func TestNew_WritesToConfiguredPath(t *testing.T) {
	t.Parallel()

	out := filepath.Join(t.TempDir(), "log.json")
	l, err := logger.New(logger.Config{Level: "debug", OutputPaths: []string{out}})
	require.NoError(t, err)

	l.With(logger.String("service", "extractor")).Info("Extraction completed", logger.Int("record_count", 3))
	require.NoError(t, l.Sync())

	assert.FileExists(t, out)
}

func TestNew_RejectsBadOutputPath(t *testing.T) {
	t.Parallel()

	_, err := logger.New(logger.Config{OutputPaths: []string{"unknown-scheme://nowhere"}})
	assert.Error(t, err)
}

func TestContextRoundTrip(t *testing.T) {
	t.Parallel()

	l, err := logger.New(logger.Config{OutputPaths: []string{filepath.Join(t.TempDir(), "a.log")}})
	require.NoError(t, err)

	ctx := logger.WithContext(context.Background(), l)
	assert.Same(t, l, logger.FromContext(ctx))
}

func TestFromContext_Fallback(t *testing.T) {
	t.Parallel()

	l := logger.FromContext(context.Background())
	require.NotNil(t, l)
	assert.NotPanics(t, func() {
		l.Warn("no logger on context", logger.String("key", "value"))
	})
}

func TestNop(t *testing.T) {
	t.Parallel()

	l := logger.NewNop()
	assert.NotPanics(t, func() {
		l.With(logger.Bool("x", true)).Fatal("ignored")
	})
	assert.NoError(t, l.Sync())
}

func TestFromContextOr(t *testing.T) {
	t.Parallel()

	def := logger.NewNop()
	assert.Equal(t, def, logger.FromContextOr(context.Background(), def))

	l, err := logger.New(logger.Config{OutputPaths: []string{filepath.Join(t.TempDir(), "b.log")}})
	require.NoError(t, err)
	assert.Same(t, l, logger.FromContextOr(logger.WithContext(context.Background(), l), def))
}
