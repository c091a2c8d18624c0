package ikerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorCategoryFallsBackToCanonicalString(t *testing.T) {
	e := New(MissingCredentials, "")
	assert.Equal(t, "missing_credentials: missing_credentials", e.Error()[:len("missing_credentials: missing_credentials")])
}

func TestRetryableCategories(t *testing.T) {
	retryable := []Category{RateLimit, Server, Timeout, Network}
	for _, c := range retryable {
		assert.True(t, c.Retryable(), "%s should be retryable", c)
	}
	nonRetryable := []Category{Auth, InvalidArg, NotFound, Parse, DbConnect, DbMigrate, MissingCredentials}
	for _, c := range nonRetryable {
		assert.False(t, c.Retryable(), "%s should not be retryable", c)
	}
}

func TestResultUnwrap(t *testing.T) {
	ok := Ok(42)
	v, err := ok.Unwrap()
	require.Nil(t, err)
	assert.Equal(t, 42, v)

	bad := Err[int](New(Internal, "boom"))
	_, err = bad.Unwrap()
	require.NotNil(t, err)
	assert.Equal(t, Internal, err.Cat)
}

func TestWrapUnwrapChain(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	e := Wrap(cause, Network, "connecting to provider")
	assert.ErrorIs(t, e, cause)
	assert.Equal(t, Network, CategoryOf(e))
}

func TestMustPanicsOnError(t *testing.T) {
	r := Err[int](New(OutOfMemory, "allocation failed"))
	assert.Panics(t, func() { r.Must() })
}
