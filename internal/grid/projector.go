// Package grid derives the N×N occupancy grid shown on dashboards from the
// relay's device event stream and the operator's placed-device list.
//
// The projector keeps three address collections (placed, connected,
// triggered) and recomputes the full grid from them on every snapshot.
// Grid dimension and address encoding are a single configuration choice,
// never hardcoded constants.
package grid

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/watchgrid/watchgrid-core/internal/relay"
)

// Status is the derived state of one grid cell.
type Status string

// Cell statuses, in ascending display precedence.
const (
	StatusEmpty     Status = "empty"
	StatusPlaced    Status = "placed"
	StatusConnected Status = "connected"
	StatusAlarm     Status = "alarm"
)

// Logger is the logging interface used by the projector.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Config describes the grid a projector maintains.
type Config struct {
	Size     int // grid dimension N; valid addresses are 0..N²-1
	Encoding Encoding
}

// Validate checks the projector configuration.
func (c Config) Validate() error {
	if c.Size < 1 {
		return fmt.Errorf("grid size must be positive, got %d", c.Size)
	}
	if !c.Encoding.IsValid() {
		return fmt.Errorf("unknown address encoding %q", c.Encoding)
	}
	return nil
}

// Projector consumes relayed device events plus the locally managed list of
// placed devices and derives the occupancy grid.
//
// Connected and triggered are independently toggled flags layered on top of
// placed; a cell's status is a pure function of current membership in the
// three collections. Membership is a true set: repeated detection events
// without an intervening finish do not accumulate.
//
// All methods are safe for concurrent use from multiple goroutines.
type Projector struct {
	cfg    Config
	logger Logger

	mu        sync.RWMutex
	placed    map[int]struct{}
	connected map[int]struct{}
	triggered map[int]struct{}
}

// NewProjector creates a projector for the configured grid.
func NewProjector(cfg Config) (*Projector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid grid config: %w", err)
	}
	return &Projector{
		cfg:       cfg,
		logger:    noopLogger{},
		placed:    make(map[int]struct{}),
		connected: make(map[int]struct{}),
		triggered: make(map[int]struct{}),
	}, nil
}

// SetLogger sets the logger for the projector.
func (p *Projector) SetLogger(logger Logger) {
	p.logger = logger
}

// Size returns the grid dimension N.
func (p *Projector) Size() int {
	return p.cfg.Size
}

// Encoding returns the address encoding the projector decodes with.
func (p *Projector) Encoding() Encoding {
	return p.cfg.Encoding
}

// cells returns the number of addressable cells (N²).
func (p *Projector) cells() int {
	return p.cfg.Size * p.cfg.Size
}

// AddDevice places a device at the operator-entered address.
//
// The raw representation is decoded per the configured encoding (base2
// input must be exactly the grid's fixed bit-width), then checked for
// range, uniqueness, and the device cap. On rejection nothing is mutated
// and a sentinel error describes the failure for the operator.
//
// Returns the decoded address on success.
func (p *Projector) AddDevice(raw string) (int, error) {
	addr, err := decodeOperatorAddress(raw, p.cfg.Encoding, p.cells())
	if err != nil {
		return 0, err
	}
	if addr < 0 || addr >= p.cells() {
		return 0, fmt.Errorf("%w: %d not in 0..%d", ErrAddressOutOfRange, addr, p.cells()-1)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.placed) >= p.cells() {
		return 0, ErrTooManyDevices
	}
	if _, exists := p.placed[addr]; exists {
		return 0, fmt.Errorf("%w: address %d", ErrDeviceExists, addr)
	}

	p.placed[addr] = struct{}{}
	return addr, nil
}

// RemoveDevice removes a placed device. Reports whether a device was
// present at the address.
func (p *Projector) RemoveDevice(addr int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, existed := p.placed[addr]
	delete(p.placed, addr)
	return existed
}

// Devices returns the sorted addresses of all placed devices.
func (p *Projector) Devices() []int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]int, 0, len(p.placed))
	for addr := range p.placed {
		out = append(out, addr)
	}
	sort.Ints(out)
	return out
}

// HandleEvent applies one relayed device event to the membership
// collections.
//
// The relay forwards addresses verbatim, so validity is checked here:
// addresses that fail to decode or fall outside the grid are dropped with
// a logged warning rather than indexing out of bounds.
func (p *Projector) HandleEvent(kind relay.Kind, rawAddress string) {
	addr, err := DecodeAddress(rawAddress, p.cfg.Encoding)
	if err != nil {
		p.logger.Warn("dropping event with undecodable address",
			"kind", string(kind),
			"address", rawAddress,
			"error", err,
		)
		return
	}
	if addr < 0 || addr >= p.cells() {
		p.logger.Warn("dropping event with out-of-range address",
			"kind", string(kind),
			"address", addr,
			"cells", p.cells(),
		)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	switch kind {
	case relay.KindConnectionDetected:
		p.connected[addr] = struct{}{}
	case relay.KindConnectionFinished:
		delete(p.connected, addr)
	case relay.KindMotionDetected:
		p.triggered[addr] = struct{}{}
	case relay.KindMotionFinished:
		delete(p.triggered, addr)
	default:
		p.logger.Warn("dropping event with unknown kind", "kind", string(kind))
	}
}

// Snapshot recomputes the full N×N grid from the current membership
// collections. Precedence when an address appears in more than one set is
// alarm > connected > placed > empty, enforced by overwrite order.
func (p *Projector) Snapshot() [][]Status {
	n := p.cfg.Size
	matrix := make([][]Status, n)
	for i := range matrix {
		matrix[i] = make([]Status, n)
		for j := range matrix[i] {
			matrix[i][j] = StatusEmpty
		}
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	for addr := range p.placed {
		matrix[addr/n][addr%n] = StatusPlaced
	}
	for addr := range p.connected {
		matrix[addr/n][addr%n] = StatusConnected
	}
	for addr := range p.triggered {
		matrix[addr/n][addr%n] = StatusAlarm
	}

	return matrix
}

// StatusAt returns the derived status of a single address.
// Returns ErrAddressOutOfRange for addresses outside the grid.
func (p *Projector) StatusAt(addr int) (Status, error) {
	if addr < 0 || addr >= p.cells() {
		return StatusEmpty, fmt.Errorf("%w: %d", ErrAddressOutOfRange, addr)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	switch {
	case contains(p.triggered, addr):
		return StatusAlarm, nil
	case contains(p.connected, addr):
		return StatusConnected, nil
	case contains(p.placed, addr):
		return StatusPlaced, nil
	default:
		return StatusEmpty, nil
	}
}

func contains(set map[int]struct{}, addr int) bool {
	_, ok := set[addr]
	return ok
}

// IsValidationError reports whether an error from AddDevice should be shown
// to the operator as input validation feedback.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidAddress) ||
		errors.Is(err, ErrAddressOutOfRange) ||
		errors.Is(err, ErrDeviceExists) ||
		errors.Is(err, ErrTooManyDevices)
}
