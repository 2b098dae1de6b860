// Package transport defines the wireless capabilities the acquisition engine
// depends on: an advertisement scan primitive and a connected peripheral
// session. Concrete implementations live in the goble subpackage; tests use
// the fakes in internal/testutils.
package transport

import (
	"context"
	"time"

	"github.com/oxitrack/oxitrack/internal/berrymed"
)

// Advertisement is a single broadcast record observed during discovery.
type Advertisement interface {
	LocalName() string
	Addr() string
	RSSI() int
	Connectable() bool
}

// Scanner yields advertisements until the context is cancelled. The stream is
// lazy and possibly infinite; callers bound it with a deadline and may stop
// consuming early by cancelling the context.
type Scanner interface {
	Scan(ctx context.Context, allowDup bool, handler func(Advertisement)) error
}

// Identity holds the device-information strings a peripheral may expose.
type Identity struct {
	Manufacturer string
	ModelNumber  string
}

// ConnectOptions configures peripheral connection establishment.
type ConnectOptions struct {
	ConnectTimeout time.Duration
}

// Peripheral is a connectable pulse-oximeter session handle.
//
// LatestSample is the streaming accessor: it returns the most recent decoded
// sample not yet consumed, or ok=false when no new sample has arrived since
// the previous call. It never blocks.
type Peripheral interface {
	Connect(ctx context.Context, address string, opts *ConnectOptions) error
	Disconnect() error

	// IsConnected must re-derive its answer from the live link on every
	// call; the peripheral can drop out of range or power off without any
	// callback reaching us first.
	IsConnected() bool

	// Identity reads manufacturer and model strings. Returns
	// ErrIdentityUnavailable when the peripheral exposes no device
	// information service.
	Identity() (*Identity, error)

	LatestSample() (berrymed.Sample, bool)
}
