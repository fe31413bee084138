package providers

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMatchConflict tests the remote conflict message pattern table.
func TestMatchConflict(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		expected error
	}{
		{name: "already declared", message: "This event has ALREADY been declared", expected: ErrDuplicateDeclaration},
		{name: "duplicate declaration", message: "error: duplicate declaration found", expected: ErrDuplicateDeclaration},
		{name: "french doublon", message: "Declaration en doublon detectee", expected: ErrDuplicateDeclaration},
		{name: "french ambiguous", message: "Plusieurs declarations possibles pour cet evenement", expected: ErrDuplicateDeclaration},
		{name: "unrelated message", message: "internal server error", expected: nil},
		{name: "empty message", message: "", expected: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MatchConflict(tt.message)
			if tt.expected == nil {
				assert.Nil(t, got)
				return
			}
			assert.Equal(t, tt.expected, got)
		})
	}
}

// TestIsBusiness tests the typed error detection through wrapping.
func TestIsBusiness(t *testing.T) {
	assert.True(t, IsBusiness(ErrWrongCredentials))
	assert.True(t, IsBusiness(fmt.Errorf("sync failed: %w", ErrTooMuchToRetrieve)))
	assert.False(t, IsBusiness(fmt.Errorf("plain failure")))
	assert.False(t, IsBusiness(&StatusError{StatusCode: 500, Body: "boom"}))
}

// TestValidatePayload tests strict shape validation of decoded payloads.
func TestValidatePayload(t *testing.T) {
	type payload struct {
		ID   string `validate:"required"`
		Name string `validate:"required"`
	}

	assert.NoError(t, ValidatePayload("test", payload{ID: "1", Name: "ok"}))

	err := ValidatePayload("test", payload{ID: "1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected test payload shape")
}

// TestStatusError tests the raw propagation format.
func TestStatusError(t *testing.T) {
	err := &StatusError{StatusCode: 503, Body: "maintenance"}
	assert.Equal(t, "unexpected status 503: maintenance", err.Error())
}
