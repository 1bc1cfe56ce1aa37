package apperr

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := Internal("failed to persist ticket", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "disk full")
}

func TestFrom(t *testing.T) {
	coded := Validation("bad input")
	assert.Same(t, coded, From(coded))
	assert.Same(t, coded, From(fmt.Errorf("wrapped: %w", coded)))

	plain := From(errors.New("boom"))
	assert.Equal(t, CodeInternal, plain.Code)
}

func TestIsCode(t *testing.T) {
	err := RateLimited("slow down", time.Second)
	assert.True(t, IsCode(err, CodeRateLimited))
	assert.False(t, IsCode(err, CodeValidation))
	assert.False(t, IsCode(errors.New("boom"), CodeRateLimited))
	assert.Equal(t, time.Second, From(err).RetryAfter)
}
