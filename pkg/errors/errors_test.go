package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsHelpers(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		checker func(error) bool
		want    bool
	}{
		{"not found direct", ErrNotFound, IsNotFound, true},
		{"not found wrapped", fmt.Errorf("meeting m-1: %w", ErrNotFound), IsNotFound, true},
		{"validation wrapped", fmt.Errorf("descriptor: %w", ErrValidation), IsValidation, true},
		{"invalid state wrapped", fmt.Errorf("start: %w", ErrInvalidState), IsInvalidState, true},
		{"unresolved wrapped", fmt.Errorf("match: %w", ErrUnresolved), IsUnresolved, true},
		{"attempts exhausted", ErrAttemptsExhausted, IsAttemptsExhausted, true},
		{"mismatched sentinel", ErrNotFound, IsValidation, false},
		{"unrelated error", fmt.Errorf("boom"), IsInvalidState, false},
		{"nil error", nil, IsUnresolved, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.checker(tt.err))
		})
	}
}
