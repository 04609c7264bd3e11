package amount

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToBaseUnits(t *testing.T) {
	tests := []struct {
		name     string
		human    string
		decimals int
		want     string
	}{
		{"half ether", "0.5", 18, "500000000000000000"},
		{"whole", "12", 6, "12000000"},
		{"truncates extra precision", "1.1234567", 6, "1123456"},
		{"leading dot", ".25", 2, "25"},
		{"leading dot reads as zero whole", ".5", 18, "500000000000000000"},
		{"trailing dot", "3.", 2, "300"},
		{"zero", "0.000", 18, "0"},
		{"below precision", "0.0000001", 6, "0"},
		{"leading zeros", "0007.5", 1, "75"},
		{"no decimals", "42", 0, "42"},
		{"empty", "", 18, ""},
		{"lone dot", ".", 18, ""},
		{"two dots", "1.2.3", 18, ""},
		{"negative", "-1", 18, ""},
		{"exponent", "1e18", 18, ""},
		{"letters", "abc", 18, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToBaseUnits(tt.human, tt.decimals))
		})
	}
}

func TestLeadingDotMatchesZeroPrefix(t *testing.T) {
	assert.Equal(t, ToBaseUnits("0.5", 6), ToBaseUnits(".5", 6))
	assert.Equal(t, ToBaseUnits("0.000001", 6), ToBaseUnits(".000001", 6))
}

func TestFromBaseUnits(t *testing.T) {
	assert.Equal(t, "0.5", FromBaseUnits("500000000000000000", 18))
	assert.Equal(t, "1", FromBaseUnits("1000000", 6))
	assert.Equal(t, "0.000001", FromBaseUnits("1", 6))
	assert.Equal(t, "0", FromBaseUnits("0", 6))
	assert.Equal(t, "123", FromBaseUnits("123", 0))
	assert.Equal(t, "", FromBaseUnits("12x", 6))
}

func TestRoundTrip(t *testing.T) {
	cases := []struct {
		human    string
		decimals int
		want     string
	}{
		{"1.50", 18, "1.5"},
		{"0.5", 18, "0.5"},
		{"100", 6, "100"},
		{"0.000001", 6, "0.000001"},
		{"123456789.123456789", 18, "123456789.123456789"},
		{"0.10", 2, "0.1"},
		{"7", 0, "7"},
	}

	for _, c := range cases {
		base := ToBaseUnits(c.human, c.decimals)
		require.NotEmpty(t, base, c.human)
		assert.Equal(t, c.want, FromBaseUnits(base, c.decimals), "round trip of %s at %d decimals", c.human, c.decimals)
	}
}

func TestIsPositive(t *testing.T) {
	assert.True(t, IsPositive("1"))
	assert.False(t, IsPositive("0"))
	assert.False(t, IsPositive(""))
	assert.False(t, IsPositive(ToBaseUnits("abc", 18)))
}

func TestRate(t *testing.T) {
	r, err := Rate("500000000000000000", 18, "1250000000", 6)
	require.NoError(t, err)
	assert.True(t, r.Equal(decimal.NewFromInt(2500)), r.String())

	_, err = Rate("0", 18, "1", 6)
	assert.Error(t, err)
}

func TestFormatUSD(t *testing.T) {
	assert.Equal(t, "$1.23", FormatUSD(decimal.RequireFromString("1.2345")))
	assert.Equal(t, "<$0.01", FormatUSD(decimal.RequireFromString("0.001")))
	assert.Equal(t, "$0.00", FormatUSD(decimal.Zero))
}

func TestOfBalance(t *testing.T) {
	tests := []struct {
		name     string
		balance  string
		decimals int
		share    Share
		want     string
		wantErr  error
	}{
		{"20 percent", "1000000000000000000", 18, Share20, "0.2", nil},
		{"50 percent", "3000000", 6, Share50, "1.5", nil},
		{"max", "1234567", 6, ShareMax, "1.234567", nil},
		{"rounds to six places", "1234567891234567891", 18, Share20, "0.246914", nil},
		{"half rounds up", "1000005000000000000", 18, Share50, "0.500003", nil},
		{"max truncates", "1999999999999999999", 18, ShareMax, "1.999999", nil},
		{"fewer decimals than six", "333", 2, Share50, "1.67", nil},
		{"no decimals", "7", 0, Share50, "4", nil},
		{"max of zero", "0", 18, ShareMax, "", ErrNoBalance},
		{"share of zero", "0", 6, Share20, "", ErrNoBalance},
		{"dust rounds to zero", "1", 18, Share20, "", ErrNoBalance},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := OfBalance(tt.balance, tt.decimals, tt.share)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := OfBalance("1.5", 6, ShareMax)
	assert.Error(t, err)
	_, err = OfBalance("100", 6, Share("75"))
	assert.Error(t, err)
}

func TestParseShare(t *testing.T) {
	for in, want := range map[string]Share{"20": Share20, "50%": Share50, "MAX": ShareMax, " max ": ShareMax} {
		got, err := ParseShare(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseShare("75")
	assert.Error(t, err)
}
