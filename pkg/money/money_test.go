package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDollars(t *testing.T) {
	cases := map[string]Cents{
		"100":    10000,
		"50.00":  5000,
		"49.995": 5000,
		"0.004":  0,
		"19.99":  1999,
	}
	for in, want := range cases {
		got, err := ParseDollars(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseDollars("-1")
	require.Error(t, err)
	_, err = ParseDollars("abc")
	require.Error(t, err)
	_, err = ParseDollars("")
	require.Error(t, err)
}

func TestFromFloat(t *testing.T) {
	got, err := FromFloat(100.0)
	require.NoError(t, err)
	assert.Equal(t, Cents(10000), got)

	got, err = FromFloat(0.1 + 0.2)
	require.NoError(t, err)
	assert.Equal(t, Cents(30), got)
}

func TestApplyBpsRoundsHalfUp(t *testing.T) {
	assert.Equal(t, Cents(500), Cents(10000).ApplyBps(500))
	// 5% of 1.10 = 0.055 -> 0.06
	assert.Equal(t, Cents(6), Cents(110).ApplyBps(500))
	// 5% of 1.09 = 0.0545 -> 0.05
	assert.Equal(t, Cents(5), Cents(109).ApplyBps(500))
}

func TestSplitFeeSumsToGross(t *testing.T) {
	for _, gross := range []Cents{1, 99, 110, 10000, 12345, 999999} {
		split := SplitFee(gross, 500)
		assert.Equal(t, gross, split.PlatformFee+split.SellerNet, "gross %d", gross)
	}

	split := SplitFee(10000, 500)
	assert.Equal(t, Cents(500), split.PlatformFee)
	assert.Equal(t, Cents(9500), split.SellerNet)
}

func TestLineShares(t *testing.T) {
	fee, net := LineShares(10000, 500, 300)
	assert.Equal(t, Cents(500), fee)
	assert.Equal(t, Cents(9200), net)
}

func TestString(t *testing.T) {
	assert.Equal(t, "95.00", Cents(9500).String())
	assert.Equal(t, "0.05", Cents(5).String())
}
