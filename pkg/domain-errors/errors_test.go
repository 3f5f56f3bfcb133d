package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"ledger/pkg/platform/sentinel"
)

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeNotFound, CodeOf(New(CodeNotFound, "missing")))
	assert.Equal(t, CodeBadRequest, CodeOf(fmt.Errorf("outer: %w", New(CodeBadRequest, "bad"))))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
	assert.Equal(t, CodeConflict, CodeOf(&ConflictError{ResourceType: "DocumentLineItem", ResourceID: "1"}))
}

func TestWrap(t *testing.T) {
	assert.NoError(t, Wrap(nil, CodeInternal, "ignored"))

	err := Wrap(sentinel.ErrNotFound, CodeNotFound, "line item not found")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	assert.True(t, HasCode(err, CodeNotFound))
	assert.False(t, HasCode(nil, CodeNotFound))
}

func TestConflictError(t *testing.T) {
	err := error(&ConflictError{
		ResourceType: "DocumentLineItem",
		ResourceID:   "42",
		ExpectedETag: "AAA=",
		CurrentETag:  "AAE=",
	})
	assert.ErrorIs(t, err, sentinel.ErrConflict)

	var conflict *ConflictError
	assert.True(t, errors.As(fmt.Errorf("patch: %w", err), &conflict))
	assert.Equal(t, "AAE=", conflict.CurrentETag)
	assert.Contains(t, conflict.Detail(), "DocumentLineItem 42")
}
