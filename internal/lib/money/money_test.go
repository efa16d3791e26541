package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name     string
		minor    int64
		currency string
		want     string
	}{
		{name: "whole euros", minor: 200, currency: "EUR", want: "2.00"},
		{name: "cents only", minor: 5, currency: "EUR", want: "0.05"},
		{name: "mixed", minor: 1234, currency: "usd", want: "12.34"},
		{name: "zero", minor: 0, currency: "EUR", want: "0.00"},
		{name: "negative", minor: -150, currency: "EUR", want: "-1.50"},
		{name: "zero decimal currency", minor: 500, currency: "JPY", want: "500"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(tt.minor, tt.currency))
		})
	}
}

func TestFromMajor(t *testing.T) {
	assert.Equal(t, int64(200), FromMajor(2, "EUR"))
	assert.Equal(t, int64(1000), FromMajor(10, "EUR"))
	assert.Equal(t, int64(29), FromMajor(0.29, "EUR"))
	assert.Equal(t, int64(500), FromMajor(500, "JPY"))
}

func TestToMajor(t *testing.T) {
	assert.InDelta(t, 2.0, ToMajor(200, "EUR"), 1e-9)
	assert.InDelta(t, 0.29, ToMajor(29, "EUR"), 1e-9)
	assert.InDelta(t, 500.0, ToMajor(500, "JPY"), 1e-9)
}
