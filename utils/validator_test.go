package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateStruct(t *testing.T) {
	type payload struct {
		Email  string  `validate:"required,email"`
		Name   string  `validate:"omitempty,max=5"`
		Status *string `validate:"omitempty,pipeline_stage"`
	}

	t.Run("valid payload passes", func(t *testing.T) {
		status := "qualified"
		assert.NoError(t, ValidateStruct(payload{Email: "ada@example.com", Name: "Ada", Status: &status}))
	})

	t.Run("missing required field", func(t *testing.T) {
		err := ValidateStruct(payload{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "email is required")
	})

	t.Run("bad email", func(t *testing.T) {
		err := ValidateStruct(payload{Email: "not-an-address"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "valid email address")
	})

	t.Run("max exceeded", func(t *testing.T) {
		err := ValidateStruct(payload{Email: "ada@example.com", Name: "too long a name"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exceeds the maximum of 5")
	})

	t.Run("unknown pipeline stage", func(t *testing.T) {
		status := "archived"
		err := ValidateStruct(payload{Email: "ada@example.com", Status: &status})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not a known pipeline stage")
	})

	t.Run("nil status skipped", func(t *testing.T) {
		assert.NoError(t, ValidateStruct(payload{Email: "ada@example.com"}))
	})

	t.Run("multiple errors are joined", func(t *testing.T) {
		status := "bogus"
		err := ValidateStruct(payload{Name: "far too long", Status: &status})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "; ")
	})
}
