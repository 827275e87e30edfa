package symfile

import (
	"fmt"
	"math"
	"strconv"
)

// parseHex64 parses an unsigned 64-bit hex field with no "0x" prefix.
// Lowercase and uppercase hex digits are both accepted.
func parseHex64(s string) (uint64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty hex field")
	}
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid hex field %q: %w", s, err)
	}
	return v, nil
}

// parseSignedDecimal parses a signed 64-bit decimal field, rejecting values
// outside the platform signed-long range and anything that is not a bare
// optionally-signed run of digits.
func parseSignedDecimal(s string) (int64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty decimal field")
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid decimal field %q: %w", s, err)
	}
	return v, nil
}

// parseNonNegative32 parses a signed decimal field and checks that it fits
// in a non-negative 32-bit signed range (file IDs, origin IDs, line
// numbers, nest levels).
func parseNonNegative32(s string) (int32, error) {
	v, err := parseSignedDecimal(s)
	if err != nil {
		return 0, err
	}
	if v < 0 || v > math.MaxInt32 {
		return 0, fmt.Errorf("value %d out of range [0,%d]", v, math.MaxInt32)
	}
	return int32(v), nil
}
