package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvidenceSize(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		assert.True(t, ValidateEvidenceSize(MaxEvidenceBytes), "max size should work")
	})

	t.Run("ValidSmall", func(t *testing.T) {
		assert.True(t, ValidateEvidenceSize(10), "small size should work")
	})

	t.Run("InvalidTooBig", func(t *testing.T) {
		assert.False(t, ValidateEvidenceSize(MaxEvidenceBytes+1), "too big")
	})

	t.Run("InvalidEmpty", func(t *testing.T) {
		assert.False(t, ValidateEvidenceSize(0), "empty body is not evidence")
	})
}

func TestEvidenceURL(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		assert.True(t, ValidateEvidenceURL("https://cdn.example.com/att/123/photo.jpg"))
	})

	t.Run("ValidHTTP", func(t *testing.T) {
		assert.True(t, ValidateEvidenceURL("http://cdn.example.com/att/123/clip.mp4"))
	})

	t.Run("InvalidScheme", func(t *testing.T) {
		assert.False(t, ValidateEvidenceURL("ftp://cdn.example.com/att/123"))
	})

	t.Run("InvalidRelative", func(t *testing.T) {
		assert.False(t, ValidateEvidenceURL("/att/123/photo.jpg"))
	})
}

func TestParseScore(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		maxPoints int
		want      int
		ok        bool
	}{
		{name: "Valid", raw: "42", maxPoints: 50, want: 42, ok: true},
		{name: "ValidZero", raw: "0", maxPoints: 50, want: 0, ok: true},
		{name: "ValidMax", raw: "50", maxPoints: 50, want: 50, ok: true},
		{name: "InvalidOverMax", raw: "51", maxPoints: 50, ok: false},
		{name: "InvalidNegative", raw: "-1", maxPoints: 50, ok: false},
		{name: "InvalidNotANumber", raw: "fifty", maxPoints: 50, ok: false},
		{name: "InvalidEmpty", raw: "", maxPoints: 50, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseScore(tt.raw, tt.maxPoints)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
