package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckAmount(t *testing.T) {
	tests := []struct {
		amount string
		ok     bool
	}{
		{"100", true},
		{"100.5", true},
		{"100.01", true},
		{"100.010", true},
		{"999999999999999999.99", true},
		{"0", false},
		{"-1", false},
		{"100.005", false},
		{"1000000000000000000", false},
	}
	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			err := CheckAmount(decimal.RequireFromString(tt.amount))
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestNormalizeCurrency(t *testing.T) {
	got, err := NormalizeCurrency("")
	require.NoError(t, err)
	assert.Equal(t, "USD", got)

	got, err = NormalizeCurrency(" eur ")
	require.NoError(t, err)
	assert.Equal(t, "EUR", got)

	for _, bad := range []string{"EURO", "US", "U$D", "ÉUR"} {
		_, err := NormalizeCurrency(bad)
		assert.Error(t, err, bad)
	}
}
