package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestSplitFee(t *testing.T) {
	tests := []struct {
		name    string
		gross   string
		pct     string
		wantFee string
		wantNet string
	}{
		{"ten percent", "100.00", "10", "10.00", "90.00"},
		{"zero fee", "49.99", "0", "0", "49.99"},
		{"full fee", "12.34", "100", "12.34", "0"},
		{"rounds fee half up", "9.99", "15", "1.50", "8.49"},
		{"fractional percentage", "19.99", "12.5", "2.50", "17.49"},
		{"sub cent gross", "0.01", "50", "0.01", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := SplitFee(d(tt.gross), d(tt.pct))
			require.NoError(t, err)
			assert.True(t, s.Fee.Equal(d(tt.wantFee)), "fee %s", s.Fee)
			assert.True(t, s.Net.Equal(d(tt.wantNet)), "net %s", s.Net)
			assert.True(t, s.Fee.Add(s.Net).Equal(s.Gross), "fee + net 必须等于 gross")
		})
	}
}

// 0-100 之间所有整数百分比都满足守恒
func TestSplitFee_Conservation(t *testing.T) {
	grosses := []string{"0.01", "0.99", "1", "3.33", "10.07", "999.99", "12345.67"}
	for _, g := range grosses {
		for pct := int64(0); pct <= 100; pct++ {
			s, err := SplitFee(d(g), decimal.NewFromInt(pct))
			require.NoError(t, err)
			assert.True(t, s.Fee.Add(s.Net).Equal(d(g)), "gross=%s pct=%d", g, pct)
			assert.False(t, s.Net.IsNegative())
			assert.False(t, s.Fee.IsNegative())
		}
	}
}

func TestSplitFee_Invalid(t *testing.T) {
	_, err := SplitFee(d("10"), d("100.01"))
	assert.ErrorIs(t, err, ErrInvalidPercentage)

	_, err = SplitFee(d("10"), d("-0.5"))
	assert.ErrorIs(t, err, ErrInvalidPercentage)

	_, err = SplitFee(d("-1"), d("10"))
	assert.ErrorIs(t, err, ErrNegativeAmount)
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(1999), ToMinorUnits(d("19.99")))
	assert.Equal(t, int64(1000), ToMinorUnits(d("10")))
	assert.Equal(t, int64(1), ToMinorUnits(d("0.005")))
	assert.True(t, FromMinorUnits(1999).Equal(d("19.99")))
	assert.True(t, Sum(d("1.10"), d("2.20"), d("3.30")).Equal(d("6.60")))
	assert.True(t, Sum().IsZero())
}
