package apperr_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onronder/p-958660-sub000/internal/apperr"
)

func TestDefaultStatuses(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code apperr.Code
		want int
	}{
		{apperr.CodeInvalidSourceType, http.StatusBadRequest},
		{apperr.CodeIncompleteCredentials, http.StatusBadRequest},
		{apperr.CodeCredentialsFetchError, http.StatusInternalServerError},
		{apperr.CodeCredentialsNotFound, http.StatusNotFound},
		{apperr.CodeTemplateNotFound, http.StatusNotFound},
		{apperr.CodeTemplateLoadError, http.StatusInternalServerError},
		{apperr.CodeTimeout, http.StatusRequestTimeout},
		{apperr.CodeSizeLimitExceeded, http.StatusRequestEntityTooLarge},
		{apperr.Code("nonsense"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, apperr.New(tt.code, "x").Status)
		})
	}
}

func TestAsThroughWrapping(t *testing.T) {
	t.Parallel()

	base := apperr.New(apperr.CodeMissingQuery, "No query provided")
	wrapped := fmt.Errorf("prepare: %w", base)

	got, ok := apperr.As(wrapped)
	require.True(t, ok)
	assert.Same(t, base, got)
	assert.Equal(t, apperr.CodeMissingQuery, apperr.CodeOf(wrapped))
	assert.Equal(t, apperr.Code(""), apperr.CodeOf(errors.New("plain")))
}

func TestFrom(t *testing.T) {
	t.Parallel()

	assert.Nil(t, apperr.From(nil))
	assert.Equal(t, apperr.CodeTimeout, apperr.From(context.DeadlineExceeded).Code)
	assert.Equal(t, apperr.CodeUnexpected, apperr.From(errors.New("boom")).Code)

	e := apperr.Wrap(apperr.CodeAPIRequestError, "request failed", errors.New("dial tcp"))
	assert.Equal(t, "request failed: dial tcp", e.Error())
	assert.Same(t, e, apperr.From(e))
}

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"timeout", apperr.New(apperr.CodeTimeout, "t"), true},
		{"transport", apperr.New(apperr.CodeAPIRequestError, "t"), true},
		{"upstream 503", apperr.New(apperr.CodeShopifyAPIError, "t").WithStatus(http.StatusServiceUnavailable), true},
		{"upstream 429", apperr.New(apperr.CodeShopifyAPIError, "t").WithStatus(http.StatusTooManyRequests), true},
		{"graphql errors", apperr.New(apperr.CodeShopifyAPIError, "t").WithStatus(http.StatusBadRequest), false},
		{"credentials", apperr.New(apperr.CodeIncompleteCredentials, "t"), false},
		{"untyped", errors.New("timeout"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, apperr.IsRetryable(tt.err))
		})
	}
}
