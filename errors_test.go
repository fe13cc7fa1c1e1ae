package cachebay_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lockvoid/cachebay"
	"github.com/lockvoid/cachebay/document"
)

func TestCacheMissError(t *testing.T) {
	err := &cachebay.CacheMissError{Signature: "42|strict|{}"}
	assert.Contains(t, err.Error(), "42|strict|{}")
	assert.True(t, cachebay.IsCacheMiss(err))

	wrapped := fmt.Errorf("wrapper: %w", err)
	assert.True(t, cachebay.IsCacheMiss(wrapped))
	assert.False(t, cachebay.IsCacheMiss(errors.New("other")))
}

func TestStaleResponseErrorMatchesSentinel(t *testing.T) {
	err := &cachebay.StaleResponseError{Signature: "s", Epoch: 1, Current: 2}
	assert.True(t, errors.Is(err, cachebay.ErrStaleResponse))
	assert.True(t, cachebay.IsStale(err))
}

func TestCombinedErrorMessage(t *testing.T) {
	netErr := &cachebay.CombinedError{NetworkError: errors.New("timeout")}
	assert.Equal(t, "[Network] timeout", netErr.Error())

	gqlErr := &cachebay.CombinedError{GraphQLErrors: []cachebay.GraphQLError{
		{Message: "field not found"}, {Message: "second error"},
	}}
	assert.Equal(t, "[GraphQL] field not found; second error", gqlErr.Error())
}

func TestIsNormalizeErrorDelegatesToDocumentPackage(t *testing.T) {
	err := &document.Error{Kind: document.MissingTypename, Message: "boom"}
	assert.True(t, cachebay.IsNormalizeError(err, document.MissingTypename))
	assert.False(t, cachebay.IsNormalizeError(err, document.ShapeMismatch))
}
