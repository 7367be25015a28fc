package grid

import (
	"fmt"
	"strconv"
	"strings"
)

// Encoding identifies how device addresses are represented on the wire.
type Encoding string

// Supported address encodings.
const (
	// EncodingBase10 is plain decimal ASCII, e.g. "13".
	EncodingBase10 Encoding = "base10"

	// EncodingBase2 is fixed-width binary ASCII, e.g. "1101" on a 4×4 grid.
	EncodingBase2 Encoding = "base2"
)

// IsValid reports whether the encoding is supported.
func (e Encoding) IsValid() bool {
	return e == EncodingBase10 || e == EncodingBase2
}

// addressBits returns the fixed bit-width binary addresses must have for a
// grid of the given cell count: the number of bits needed to index the
// highest valid address.
func addressBits(cells int) int {
	bits := 1
	for (1 << bits) < cells {
		bits++
	}
	return bits
}

// DecodeAddress converts a raw wire address into an integer grid index.
//
// Surrounding whitespace is tolerated (sensor firmware tends to append
// newlines). The result is not range-checked; callers decide how strictly
// to treat out-of-range values.
func DecodeAddress(raw string, encoding Encoding) (int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidAddress)
	}

	base := 10
	if encoding == EncodingBase2 {
		base = 2
	}

	value, err := strconv.ParseInt(trimmed, base, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not %s", ErrInvalidAddress, trimmed, encoding)
	}
	return int(value), nil
}

// decodeOperatorAddress decodes an operator-entered address with the strict
// checks applied at device-add time: base2 input must be exactly the grid's
// fixed bit-width.
func decodeOperatorAddress(raw string, encoding Encoding, cells int) (int, error) {
	trimmed := strings.TrimSpace(raw)
	if encoding == EncodingBase2 {
		want := addressBits(cells)
		if len(trimmed) != want {
			return 0, fmt.Errorf("%w: binary address must be exactly %d digits", ErrInvalidAddress, want)
		}
	}
	return DecodeAddress(trimmed, encoding)
}
