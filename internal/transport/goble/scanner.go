package goble

import (
	"context"

	"github.com/go-ble/ble"

	"github.com/oxitrack/oxitrack/internal/transport"
)

// bleScanner wraps ble.Device to implement transport.Scanner.
type bleScanner struct {
	dev ble.Device
}

// Scan adapts a handler expecting transport.Advertisement to the raw
// ble.Advertisement handler the library invokes.
func (s *bleScanner) Scan(ctx context.Context, allowDup bool, handler func(transport.Advertisement)) error {
	bleHandler := func(adv ble.Advertisement) {
		handler(NewAdvertisement(adv))
	}
	return s.dev.Scan(ctx, allowDup, bleHandler)
}

// NewScanner creates a scanner backed by the platform HCI device.
func NewScanner() (transport.Scanner, error) {
	dev, err := DeviceFactory()
	if err != nil {
		return nil, err
	}
	ble.SetDefaultDevice(dev)
	return &bleScanner{dev: dev}, nil
}
