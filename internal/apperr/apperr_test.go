package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIllegalTransition_IsValidation(t *testing.T) {
	err := fmt.Errorf("story STORY-1: %w", ErrIllegalTransition)

	assert.True(t, errors.Is(err, ErrIllegalTransition))
	assert.True(t, errors.Is(err, ErrValidation))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(ErrValidation, ErrIllegalTransition))
}
