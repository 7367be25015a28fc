package grid

import "errors"

// Domain errors for the grid package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, grid.ErrDeviceExists) {
//	    // handle duplicate case
//	}
var (
	// ErrInvalidAddress is returned when a raw address cannot be decoded
	// under the configured encoding.
	ErrInvalidAddress = errors.New("grid: invalid address")

	// ErrAddressOutOfRange is returned when a decoded address does not fit
	// inside the grid (valid range 0..N²-1).
	ErrAddressOutOfRange = errors.New("grid: address out of range")

	// ErrDeviceExists is returned when placing a device at an address that
	// already has one.
	ErrDeviceExists = errors.New("grid: device already exists")

	// ErrTooManyDevices is returned when the grid already holds the maximum
	// number of devices (one per cell).
	ErrTooManyDevices = errors.New("grid: maximum number of devices reached")
)
