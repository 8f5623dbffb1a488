// Package money keeps all marketplace amounts in integer cents and does the
// decimal work (parsing, basis-point fees) at the edges.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Cents is an amount in the smallest USD unit.
type Cents int64

const basisPointsPerUnit = 10000

var hundred = decimal.NewFromInt(100)

// ParseDollars converts a decimal dollar string ("100", "49.995") to cents,
// rounding half-up at the third decimal.
func ParseDollars(value string) (Cents, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, fmt.Errorf("amount is required")
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	return FromDecimal(d)
}

// FromDecimal converts a dollar amount into cents using half-up rounding.
func FromDecimal(d decimal.Decimal) (Cents, error) {
	if d.IsNegative() {
		return 0, fmt.Errorf("amount must not be negative")
	}
	return Cents(d.Mul(hundred).Round(0).IntPart()), nil
}

// FromFloat converts a JSON number in dollars into cents.
func FromFloat(value float64) (Cents, error) {
	return FromDecimal(decimal.NewFromFloat(value))
}

// Decimal returns the amount expressed in dollars.
func (c Cents) Decimal() decimal.Decimal {
	return decimal.New(int64(c), -2)
}

// String renders the amount with two decimals, e.g. "95.00".
func (c Cents) String() string {
	return c.Decimal().StringFixed(2)
}

func (c Cents) Int64() int64 {
	return int64(c)
}

// Mul multiplies a unit price by a quantity.
func (c Cents) Mul(quantity int) Cents {
	return c * Cents(quantity)
}

// ApplyBps returns round_half_up(c * bps / 10000).
func (c Cents) ApplyBps(bps int64) Cents {
	share := decimal.NewFromInt(int64(c)).
		Mul(decimal.NewFromInt(bps)).
		Div(decimal.NewFromInt(basisPointsPerUnit)).
		Round(0)
	return Cents(share.IntPart())
}

// Split is a gross amount divided between the platform and a seller.
type Split struct {
	Gross       Cents
	PlatformFee Cents
	SellerNet   Cents
}

// SplitFee divides gross into the platform fee and the seller remainder so that
// PlatformFee + SellerNet == Gross exactly.
func SplitFee(gross Cents, feeBps int64) Split {
	fee := gross.ApplyBps(feeBps)
	return Split{
		Gross:       gross,
		PlatformFee: fee,
		SellerNet:   gross - fee,
	}
}

// LineShares stamps an order line with the platform fee and the seller net after
// the processing reserve. The reserve itself is not recorded anywhere.
func LineShares(lineTotal Cents, feeBps, reserveBps int64) (platformFee, sellerNet Cents) {
	platformFee = lineTotal.ApplyBps(feeBps)
	sellerNet = lineTotal - platformFee - lineTotal.ApplyBps(reserveBps)
	return platformFee, sellerNet
}
