// Package testutils provides deterministic fakes for the transport
// capabilities so the session and acquisition engine can be tested without a
// radio.
package testutils

import (
	"context"
	"sync"
	"time"

	"github.com/oxitrack/oxitrack/internal/berrymed"
	"github.com/oxitrack/oxitrack/internal/transport"
)

// FakeAdvertisement is a scripted advertisement record.
type FakeAdvertisement struct {
	Name    string
	Address string
	Rssi    int
}

func (a *FakeAdvertisement) LocalName() string { return a.Name }
func (a *FakeAdvertisement) Addr() string      { return a.Address }
func (a *FakeAdvertisement) RSSI() int         { return a.Rssi }
func (a *FakeAdvertisement) Connectable() bool { return true }

// FakeScanner replays scripted advertisements. After one pass it either
// repeats or parks until the context ends, mimicking a lazy, possibly
// infinite advertisement stream bounded by the caller's timeout.
type FakeScanner struct {
	Advertisements []transport.Advertisement
	Interval       time.Duration
	Repeat         bool
}

func (f *FakeScanner) Scan(ctx context.Context, _ bool, handler func(transport.Advertisement)) error {
	if len(f.Advertisements) == 0 {
		<-ctx.Done()
		return ctx.Err()
	}
	for {
		for _, adv := range f.Advertisements {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			handler(adv)
			if f.Interval > 0 {
				time.Sleep(f.Interval)
			}
		}
		if !f.Repeat {
			<-ctx.Done()
			return ctx.Err()
		}
	}
}

// FakePeripheral is a scripted pulse-oximeter: it emits one sample from its
// script per Interval once connected, cycling when the script runs out.
type FakePeripheral struct {
	Interval    time.Duration
	Samples     []berrymed.Sample
	IdentityVal *transport.Identity
	IdentityErr error
	ConnectErr  error

	mu              sync.Mutex
	connected       bool
	next            time.Time
	idx             int
	disconnectCalls int
	lastAddress     string
}

// NewFakePeripheral returns a peripheral emitting usable samples every 10ms
// by default.
func NewFakePeripheral() *FakePeripheral {
	return &FakePeripheral{
		Interval: 10 * time.Millisecond,
		Samples: []berrymed.Sample{
			{Valid: true, FingerPresent: true, PulseRate: 72, SpO2: 98, Pleth: 40},
		},
	}
}

func (p *FakePeripheral) Connect(_ context.Context, address string, _ *transport.ConnectOptions) error {
	if p.ConnectErr != nil {
		return p.ConnectErr
	}
	p.mu.Lock()
	p.connected = true
	p.next = time.Now()
	p.lastAddress = address
	p.mu.Unlock()
	return nil
}

// LastAddress reports the address passed to the most recent Connect.
func (p *FakePeripheral) LastAddress() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastAddress
}

func (p *FakePeripheral) Disconnect() error {
	p.mu.Lock()
	p.connected = false
	p.disconnectCalls++
	p.mu.Unlock()
	return nil
}

func (p *FakePeripheral) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// Drop simulates an asynchronous transport loss (out of range, battery).
func (p *FakePeripheral) Drop() {
	p.mu.Lock()
	p.connected = false
	p.mu.Unlock()
}

// DisconnectCalls reports how many times Disconnect was invoked.
func (p *FakePeripheral) DisconnectCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.disconnectCalls
}

func (p *FakePeripheral) Identity() (*transport.Identity, error) {
	if !p.IsConnected() {
		return nil, transport.ErrNotConnected
	}
	if p.IdentityErr != nil {
		return nil, p.IdentityErr
	}
	if p.IdentityVal == nil {
		return nil, transport.ErrIdentityUnavailable
	}
	id := *p.IdentityVal
	return &id, nil
}

func (p *FakePeripheral) LatestSample() (berrymed.Sample, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.connected || len(p.Samples) == 0 {
		return berrymed.Sample{}, false
	}
	if time.Now().Before(p.next) {
		return berrymed.Sample{}, false
	}
	p.next = p.next.Add(p.Interval)
	s := p.Samples[p.idx%len(p.Samples)]
	p.idx++
	return s, true
}
