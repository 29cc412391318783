package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToMinorUnits(t *testing.T) {
	cases := []struct {
		name   string
		amount decimal.Decimal
		want   int64
	}{
		{name: "exact cents", amount: decimal.RequireFromString("19.99"), want: 1999},
		{name: "half rounds up", amount: decimal.RequireFromString("19.995"), want: 2000},
		{name: "below half rounds down", amount: decimal.RequireFromString("19.994"), want: 1999},
		{name: "whole amount", amount: decimal.NewFromInt(1200), want: 120000},
		{name: "from float", amount: decimal.NewFromFloat(19.995), want: 2000},
		{name: "zero", amount: decimal.Zero, want: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ToMinorUnits(tc.amount))
		})
	}
}

func TestParseMinorUnits(t *testing.T) {
	cents, err := ParseMinorUnits(" 1299.50 ")
	require.NoError(t, err)
	assert.Equal(t, int64(129950), cents)

	_, err = ParseMinorUnits("")
	require.Error(t, err)

	_, err = ParseMinorUnits("twelve")
	require.Error(t, err)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "12.50", Format(1250))
	assert.Equal(t, "0.05", Format(5))
	assert.Equal(t, "1999.00", Format(199900))

	assert.Nil(t, FormatPtr(nil))
	price := int64(999)
	require.NotNil(t, FormatPtr(&price))
	assert.Equal(t, "9.99", *FormatPtr(&price))
}

func TestRoundTrip(t *testing.T) {
	for _, cents := range []int64{0, 1, 99, 100, 123456} {
		assert.Equal(t, cents, ToMinorUnits(FromMinorUnits(cents)))
	}
}
