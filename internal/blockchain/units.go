package blockchain

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// USDCDecimals is the number of decimals of the USDC token
const USDCDecimals = 6

// ToBaseUnits converts a human USDC amount to base units (1 USDC = 10^6).
// Amounts with more precision than the token supports are rejected.
func ToBaseUnits(amount decimal.Decimal) (*big.Int, error) {
	if amount.IsNegative() {
		return nil, fmt.Errorf("amount must not be negative: %s", amount)
	}
	shifted := amount.Shift(USDCDecimals)
	if !shifted.Equal(shifted.Truncate(0)) {
		return nil, fmt.Errorf("amount %s exceeds %d decimals", amount, USDCDecimals)
	}
	return shifted.BigInt(), nil
}

// FromBaseUnits converts base units to a human USDC amount
func FromBaseUnits(units *big.Int) decimal.Decimal {
	if units == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(units, -USDCDecimals)
}
