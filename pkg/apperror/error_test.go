package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeSurvivesWrapping(t *testing.T) {
	err := InsufficientStock("item 1 has stock 0")
	wrapped := fmt.Errorf("decrement failed: %w", err)

	assert.True(t, IsCode(wrapped, CodeInsufficientStock))
	assert.Equal(t, CodeInsufficientStock, CodeOf(wrapped))
	assert.False(t, IsCode(wrapped, CodeNotFound))
}

func TestWithCauseUnwraps(t *testing.T) {
	cause := errors.New("connection refused")
	err := LockUnavailable("").WithCause(cause)

	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "connection refused")
	assert.True(t, IsCode(err, CodeLockUnavailable))
}

func TestIsBusiness(t *testing.T) {
	assert.True(t, IsBusiness(NotFound("")))
	assert.True(t, IsBusiness(InsufficientStock("")))
	assert.False(t, IsBusiness(LockTimeout("")))
	assert.False(t, IsBusiness(LockUnavailable("")))
	assert.False(t, IsBusiness(errors.New("plain")))
}

func TestDefaultMessages(t *testing.T) {
	assert.Equal(t, "resource not found", NotFound("").Error())
	assert.Equal(t, "custom", NotFound("custom").Error())
}
