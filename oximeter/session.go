// Package oximeter implements the session and acquisition engine for a
// wireless pulse-oximeter peripheral: discovery by advertised name, the
// connection lifecycle state machine, the streaming read-filter-accumulate
// loop and its cooperative background execution.
package oximeter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/sirupsen/logrus"

	"github.com/oxitrack/oxitrack/internal/transport"
)

// Placeholder strings substituted for identity fields the peripheral does not
// expose.
const (
	PlaceholderManufacturer = "(manufacturer not specified)"
	PlaceholderModel        = "(model number not specified)"
)

const defaultScanTimeout = 15 * time.Second

// Config wires a session. ScannerFactory and PeripheralFactory default to
// nothing here; the CLI injects the go-ble implementations and tests inject
// fakes.
type Config struct {
	// Target is the exact advertised name to connect to, compared after
	// stripping embedded null terminators.
	Target string

	// Verbose enables advisory per-device and per-sample trace output.
	Verbose bool

	// Output receives advisory progress text (not part of any contract a
	// consumer should parse). Defaults to os.Stdout.
	Output io.Writer

	Logger *logrus.Logger

	ScannerFactory    func() (transport.Scanner, error)
	PeripheralFactory func(logger *logrus.Logger) transport.Peripheral
}

// Session owns the connection lifecycle of one pulse-oximeter peripheral.
// It exclusively owns its transport handle and identity fields. Concurrent
// Connect/Disconnect from a second goroutine while a background run is active
// is out of contract.
type Session struct {
	cfg    Config
	logger *logrus.Logger
	out    io.Writer

	mu         sync.RWMutex
	state      State
	peripheral transport.Peripheral
	identity   *transport.Identity
}

// NewSession creates a session in the Disconnected state.
func NewSession(cfg Config) (*Session, error) {
	if cfg.ScannerFactory == nil {
		return nil, fmt.Errorf("session config requires a ScannerFactory")
	}
	if cfg.PeripheralFactory == nil {
		return nil, fmt.Errorf("session config requires a PeripheralFactory")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.New()
	}
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	return &Session{
		cfg:    cfg,
		logger: logger,
		out:    out,
		state:  StateDisconnected,
	}, nil
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// IsConnected re-derives connectivity from the live transport on every call.
// It is deliberately not a cached flag: the peripheral can drop out of range
// or power off without the session being notified first.
func (s *Session) IsConnected() bool {
	s.mu.RLock()
	p := s.peripheral
	s.mu.RUnlock()
	return p != nil && p.IsConnected()
}

// Identity returns the identity read by ReadIdentity, or nil when none has
// been read (or the peripheral exposed none).
func (s *Session) Identity() *transport.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Session) notify(format string, args ...interface{}) {
	fmt.Fprintf(s.out, format+"\n", args...)
}

// Connect scans for an advertisement whose name, after stripping embedded
// null terminators, exactly equals the configured target, then establishes
// the session. Duplicate advertised names are resolved first-seen-wins: the
// scan stops on the first exact match. On timeout the session stays
// Disconnected and a *DiscoveryTimeoutError is returned.
func (s *Session) Connect(ctx context.Context, timeout time.Duration) error {
	s.mu.Lock()
	if s.state != StateDisconnected {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: cannot connect while %s", transport.ErrAlreadyConnected, state)
	}
	s.state = StateScanning
	s.mu.Unlock()

	if timeout <= 0 {
		timeout = defaultScanTimeout
	}
	target := s.cfg.Target

	scanner, err := s.cfg.ScannerFactory()
	if err != nil {
		s.setState(StateDisconnected)
		return fmt.Errorf("failed to create scanner: %w", err)
	}

	s.notify("Scanning for devices...\n- Target: %q", target)
	s.logger.WithFields(logrus.Fields{
		"target":  target,
		"timeout": timeout,
	}).Info("Starting discovery scan")

	scanCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	seen := hashmap.New[string, struct{}]()
	var matchMu sync.Mutex
	var matched transport.Advertisement

	handler := func(adv transport.Advertisement) {
		name := strings.Trim(adv.LocalName(), "\x00")
		if name == "" {
			return
		}

		if name == target {
			matchMu.Lock()
			if matched == nil {
				matched = adv
				cancel() // stop consuming the advertisement stream
			}
			matchMu.Unlock()
			return
		}

		// Report each distinct non-target name once when verbose.
		if s.cfg.Verbose {
			if _, loaded := seen.GetOrInsert(name, struct{}{}); !loaded {
				s.notify("Found %q.", name)
			}
		}
	}

	err = scanner.Scan(scanCtx, false, handler)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		s.setState(StateDisconnected)
		return fmt.Errorf("scan failed: %w", err)
	}

	matchMu.Lock()
	adv := matched
	matchMu.Unlock()

	if adv == nil {
		s.setState(StateDisconnected)
		s.notify("%q not found. Scan stopped.", target)
		return &DiscoveryTimeoutError{Target: target, Timeout: timeout}
	}

	s.notify("Establishing connection with %q...", target)
	p := s.cfg.PeripheralFactory(s.logger)
	if err := p.Connect(ctx, adv.Addr(), nil); err != nil {
		s.setState(StateDisconnected)
		return fmt.Errorf("failed to connect to %q: %w", target, err)
	}

	s.mu.Lock()
	s.peripheral = p
	s.state = StateConnected
	s.mu.Unlock()

	s.notify("=> Device connected")
	return nil
}

// ReadIdentity reads manufacturer and model strings from the peripheral,
// substituting a placeholder for each field it does not expose. Valid only
// once connected. A peripheral with no identity capability at all is recorded
// as such; it never fails the session.
func (s *Session) ReadIdentity() (*transport.Identity, error) {
	s.mu.RLock()
	state := s.state
	p := s.peripheral
	s.mu.RUnlock()

	if p == nil || state < StateConnected {
		return nil, fmt.Errorf("cannot read identity: %w", transport.ErrNotConnected)
	}

	id, err := p.Identity()
	if err != nil {
		if errors.Is(err, transport.ErrIdentityUnavailable) {
			s.notify("No device information available.")
			s.logger.Info("Peripheral exposes no device information service")
			return nil, nil
		}
		// Identity reads never fail the session; record the absence.
		s.logger.WithError(err).Warn("Identity read failed, continuing without it")
		return nil, nil
	}

	if id.Manufacturer == "" {
		id.Manufacturer = PlaceholderManufacturer
	}
	if id.ModelNumber == "" {
		id.ModelNumber = PlaceholderModel
	}

	s.mu.Lock()
	s.identity = id
	s.mu.Unlock()

	s.notify("Device: %s %s", id.Manufacturer, id.ModelNumber)
	return id, nil
}

// Disconnect closes the transport from any state. A transport-level "already
// disconnected" condition is a satisfied postcondition, not an error; the
// handle is discarded and the session returns to Disconnected unconditionally.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	p := s.peripheral
	s.peripheral = nil
	s.identity = nil
	s.state = StateDisconnected
	s.mu.Unlock()

	if p == nil {
		return nil
	}

	err := p.Disconnect()
	if err != nil && transport.IsConnectionState(err, transport.NotConnected) {
		return nil
	}
	return err
}
