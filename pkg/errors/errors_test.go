package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	cause := errors.New("deadline exceeded")
	err := New(ErrorTypeNavigationTimeout, "navigate", "album page never loaded", cause)
	err.Identifier = "ORL-100"

	assert.Equal(t, "navigation_timeout error at navigate (ORL-100): album page never loaded: deadline exceeded", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestTypeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"nil", nil, ""},
		{"plain error", errors.New("boom"), ErrorTypeUnexpected},
		{"typed", New(ErrorTypeExportTimeout, "await_zip", "", nil), ErrorTypeExportTimeout},
		{"wrapped typed", fmt.Errorf("outer: %w", New(ErrorTypeSession, "", "", nil)), ErrorTypeSession},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TypeOf(tt.err))
		})
	}
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(New(ErrorTypeSession, "", "browser closed", nil)))
	assert.True(t, IsFatal(New(ErrorTypeInput, "", "missing column", nil)))
	assert.False(t, IsFatal(New(ErrorTypeNavigationTimeout, "", "", nil)))
	assert.False(t, IsFatal(New(ErrorTypeDownloadTimeout, "", "", nil)))
	assert.False(t, IsFatal(errors.New("anything else")))
	assert.False(t, IsFatal(nil))
}

func TestIsTimeout(t *testing.T) {
	assert.True(t, IsTimeout(ErrorTypeNavigationTimeout))
	assert.True(t, IsTimeout(ErrorTypeExportTimeout))
	assert.True(t, IsTimeout(ErrorTypeDownloadTimeout))
	assert.False(t, IsTimeout(ErrorTypeControlNotFound))
	assert.False(t, IsTimeout(ErrorTypeUnexpected))
}
