package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMethod(t *testing.T) {
	tests := []struct {
		in   string
		want Method
	}{
		{"GET", MethodGet},
		{"get", MethodGet},
		{" Post ", MethodPost},
		{"put", MethodPut},
		{"delete", MethodDelete},
		{"HEAD", MethodHead},
		{"options", MethodOptions},
		{"PaTcH", MethodPatch},
		{"connect", MethodConnect},
		{"trace", MethodTrace},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			m, err := ParseMethod(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, m)
			assert.True(t, m.Valid())
		})
	}
}

func TestParseMethod_Invalid(t *testing.T) {
	for _, in := range []string{"", "FETCH", "PROPFIND", "GET /"} {
		_, err := ParseMethod(in)
		assert.ErrorIs(t, err, ErrInvalidMethod, "input %q", in)
	}
}

func TestMethod_ValidExpectsNormalizedForm(t *testing.T) {
	assert.False(t, Method("get").Valid())
	assert.Equal(t, "GET", MethodGet.String())
}
