package wms

import (
	"fmt"
)

// CommandLength is the exact width of the PLC command register string.
// The device rejects anything else, so the encoder refuses to produce it.
const CommandLength = 20

// EncodeCommand builds the fixed-width command string written to the PLC
// command register:
//
//	iiii M XX YY Z bbbbbbbbbb
//
// where iiii is the 4-digit sequence id (wrapping at 10000), M the method
// digit, XX/YY the zero-padded column and row, Z the single-digit depth and
// bbbbbbbbbb the normalized basket id. Any input that would overflow its
// field yields an error; a command of the wrong length is never returned.
func EncodeCommand(seq int, method Method, x, y, z int, basket string) (string, error) {
	digit, err := method.Digit()
	if err != nil {
		return "", err
	}
	if seq < 0 {
		return "", fmt.Errorf("sequence id must be non-negative, got %d", seq)
	}
	if x < 0 || x > 99 {
		return "", fmt.Errorf("column %d overflows 2-digit field", x)
	}
	if y < 0 || y > 99 {
		return "", fmt.Errorf("row %d overflows 2-digit field", y)
	}
	if z < 0 || z > 9 {
		return "", fmt.Errorf("depth %d overflows 1-digit field", z)
	}
	if !IsNormalizedBasketID(basket) {
		return "", fmt.Errorf("basket %q is not a normalized 10-char id", basket)
	}

	cmd := fmt.Sprintf("%04d%s%02d%02d%d%s", seq%10000, digit, x, y, z, basket)
	if len(cmd) != CommandLength {
		return "", fmt.Errorf("encoded command is %d chars, want %d: %q", len(cmd), CommandLength, cmd)
	}
	return cmd, nil
}
