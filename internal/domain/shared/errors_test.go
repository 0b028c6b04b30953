package shared

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Kinds(t *testing.T) {
	err := fmt.Errorf("postgres: %w: 99", ErrContextNotFound)

	assert.ErrorIs(t, err, ErrContextNotFound)
	assert.True(t, IsNotFound(err))
	assert.False(t, IsValidation(err))
	assert.Equal(t, "postgres: platform.HasCapability: context not found: 99", err.Error())

	assert.True(t, IsValidation(ErrUnknownTable))
	assert.True(t, IsValidation(fmt.Errorf("%w: 0", ErrInvalidCourseID)))
	assert.ErrorIs(t, ErrManagerUnavailable, ErrServiceUnavailable)
	assert.NotErrorIs(t, ErrManagerUnavailable, ErrContextNotFound)
}
