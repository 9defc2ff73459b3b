package utils

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/math"
)

// AmountPrefix tags integer strings in persisted blobs.
const AmountPrefix = "bigint:"

// FormatBigInt converts a raw amount into a human-readable decimal string.
// Example: amount=1234500000000000000, decimals=18 => "1.2345"
func FormatBigInt(amount *big.Int, decimals uint8) string {
	if amount == nil {
		return "0"
	}
	if decimals == 0 {
		return amount.String()
	}
	divisor := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	value := new(big.Float).SetPrec(256).Quo(new(big.Float).SetPrec(256).SetInt(amount), divisor)

	formatted := value.Text('f', int(decimals))
	if strings.Contains(formatted, ".") {
		formatted = strings.TrimRight(formatted, "0")
		formatted = strings.TrimRight(formatted, ".")
	}
	if formatted == "" || formatted == "-0" {
		return "0"
	}
	return formatted
}

// EncodeAmount renders amount as "bigint:<n>".
func EncodeAmount(amount *big.Int) string {
	if amount == nil {
		return AmountPrefix + "0"
	}
	return AmountPrefix + amount.String()
}

// ParseAmount parses a non-negative integer amount. The "bigint:" prefix is
// optional. Decimal input has no width limit; 0x-prefixed hex is capped at 256 bits.
func ParseAmount(s string) (*big.Int, error) {
	raw := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), AmountPrefix))
	if raw == "" {
		return nil, fmt.Errorf("empty amount %q", s)
	}
	var (
		v  *big.Int
		ok bool
	)
	if strings.HasPrefix(raw, "0x") || strings.HasPrefix(raw, "0X") {
		v, ok = math.ParseBig256(raw)
	} else {
		v, ok = new(big.Int).SetString(raw, 10)
	}
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("negative amount %q", s)
	}
	return v, nil
}
