package faults

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHelpersWrapTheirKind(t *testing.T) {
	tests := []struct {
		err  error
		kind error
	}{
		{Unavailablef("panel down"), ErrUnavailable},
		{Conflictf("address %s taken", "10.66.66.3"), ErrConflict},
		{Invalidf("unknown endpoint %d", 3), ErrInvalid},
		{NotFoundf("user %d", 42), ErrNotFound},
	}

	for _, tt := range tests {
		assert.ErrorIs(t, tt.err, tt.kind)
		assert.Contains(t, tt.err.Error(), tt.kind.Error())
	}
}

func TestKindSurvivesFurtherWrapping(t *testing.T) {
	inner := Conflictf("address taken")
	outer := fmt.Errorf("issue failed for user %d: %w", 42, inner)

	assert.True(t, errors.Is(outer, ErrConflict))
	assert.False(t, errors.Is(outer, ErrUnavailable))
}
