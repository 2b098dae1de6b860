package goble

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"

	"github.com/oxitrack/oxitrack/internal/berrymed"
	"github.com/oxitrack/oxitrack/internal/transport"
)

const defaultConnectTimeout = 30 * time.Second

// normalizeUUID converts a UUID string to the internal BLE library format
// (lowercase, no dashes). Handles both dashed and already normalized forms.
func normalizeUUID(uuid string) string {
	return strings.ToLower(strings.ReplaceAll(uuid, "-", ""))
}

// Peripheral is the go-ble backed pulse-oximeter session handle. It dials the
// device, discovers the GATT profile, subscribes to the BM1000 measurement
// characteristic and feeds every notification into a frame decoder.
type Peripheral struct {
	logger *logrus.Logger

	mu        sync.RWMutex
	client    ble.Client
	dataChar  *ble.Characteristic
	manufChar *ble.Characteristic
	modelChar *ble.Characteristic
	dec       *berrymed.Decoder
}

func NewPeripheral(logger *logrus.Logger) *Peripheral {
	if logger == nil {
		logger = logrus.New()
	}
	return &Peripheral{logger: logger}
}

// Connect dials the peripheral, discovers its profile and subscribes to the
// measurement stream. The data characteristic must exist; the device
// information characteristics are optional.
func (p *Peripheral) Connect(ctx context.Context, address string, opts *transport.ConnectOptions) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if strings.TrimSpace(address) == "" {
		return fmt.Errorf("failed to connect: device address is not set")
	}
	if p.client != nil {
		return fmt.Errorf("%w: disconnect before reconnecting", transport.ErrAlreadyConnected)
	}

	if opts == nil {
		opts = &transport.ConnectOptions{ConnectTimeout: defaultConnectTimeout}
	}

	dev, err := DeviceFactory()
	if err != nil {
		return fmt.Errorf("failed to create BLE device: %w", err)
	}
	ble.SetDefaultDevice(dev)

	connCtx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()

	p.logger.WithField("address", address).Info("Connecting to BLE device...")

	client, err := ble.Dial(connCtx, ble.NewAddr(address))
	if err != nil {
		return fmt.Errorf("failed to connect to device with address %q: %w", address, transport.NormalizeError(err))
	}

	profile, err := client.DiscoverProfile(true)
	if err != nil {
		client.CancelConnection()
		return fmt.Errorf("failed to discover profile: %w", transport.NormalizeError(err))
	}

	dataChar, manufChar, modelChar := locateCharacteristics(profile)
	if dataChar == nil {
		client.CancelConnection()
		return fmt.Errorf("device %q does not expose the pulse-oximeter data characteristic %s",
			address, berrymed.DataCharUUID)
	}

	dec := berrymed.NewDecoder()
	if err := client.Subscribe(dataChar, false, func(data []byte) {
		dec.Feed(data)
	}); err != nil {
		client.CancelConnection()
		return fmt.Errorf("failed to subscribe to measurement notifications: %w", transport.NormalizeError(err))
	}

	p.client = client
	p.dataChar = dataChar
	p.manufChar = manufChar
	p.modelChar = modelChar
	p.dec = dec

	p.logger.WithFields(logrus.Fields{
		"address":  address,
		"services": len(profile.Services),
	}).Info("BLE device connected")
	return nil
}

// locateCharacteristics walks the discovered profile for the measurement and
// device-information characteristics.
func locateCharacteristics(profile *ble.Profile) (data, manuf, model *ble.Characteristic) {
	for _, svc := range profile.Services {
		svcUUID := normalizeUUID(svc.UUID.String())
		for _, char := range svc.Characteristics {
			switch {
			case svcUUID == berrymed.DataServiceUUID &&
				normalizeUUID(char.UUID.String()) == berrymed.DataCharUUID:
				data = char
			case svcUUID == berrymed.DeviceInfoServiceUUID &&
				normalizeUUID(char.UUID.String()) == berrymed.ManufacturerCharUUID:
				manuf = char
			case svcUUID == berrymed.DeviceInfoServiceUUID &&
				normalizeUUID(char.UUID.String()) == berrymed.ModelNumberCharUUID:
				model = char
			}
		}
	}
	return data, manuf, model
}

// Disconnect tears the link down. An already-disconnected transport is a
// satisfied postcondition, not an error; the handle is discarded either way.
func (p *Peripheral) Disconnect() error {
	p.mu.Lock()
	client := p.client
	dataChar := p.dataChar
	p.client = nil
	p.dataChar = nil
	p.manufChar = nil
	p.modelChar = nil
	p.dec = nil
	p.mu.Unlock()

	if client == nil {
		p.logger.Info("Already disconnected")
		return nil
	}

	if dataChar != nil {
		if err := client.Unsubscribe(dataChar, false); err != nil {
			p.logger.WithError(err).Debug("Unsubscribe during disconnect failed")
		}
	}

	if err := client.CancelConnection(); err != nil {
		err = transport.NormalizeError(err)
		if transport.IsConnectionState(err, transport.NotConnected) {
			p.logger.Info("Device was already disconnected")
			return nil
		}
		return err
	}

	p.logger.Info("BLE device disconnected")
	return nil
}

// IsConnected re-derives connectivity from the live link on every call; the
// peripheral can drop asynchronously without notifying us first.
func (p *Peripheral) IsConnected() bool {
	p.mu.RLock()
	client := p.client
	p.mu.RUnlock()

	if client == nil {
		return false
	}
	select {
	case <-client.Disconnected():
		return false
	default:
		return true
	}
}

// Identity reads the manufacturer and model strings from the device
// information service. Missing individual characteristics yield empty fields;
// a device with no device information service at all yields
// transport.ErrIdentityUnavailable.
func (p *Peripheral) Identity() (*transport.Identity, error) {
	p.mu.RLock()
	client := p.client
	manufChar := p.manufChar
	modelChar := p.modelChar
	p.mu.RUnlock()

	if client == nil {
		return nil, transport.ErrNotConnected
	}
	if manufChar == nil && modelChar == nil {
		return nil, transport.ErrIdentityUnavailable
	}

	id := &transport.Identity{}
	if manufChar != nil {
		if data, err := client.ReadCharacteristic(manufChar); err == nil {
			id.Manufacturer = strings.TrimRight(string(data), "\x00")
		} else {
			p.logger.WithError(err).Debug("Manufacturer read failed")
		}
	}
	if modelChar != nil {
		if data, err := client.ReadCharacteristic(modelChar); err == nil {
			id.ModelNumber = strings.TrimRight(string(data), "\x00")
		} else {
			p.logger.WithError(err).Debug("Model number read failed")
		}
	}
	return id, nil
}

// LatestSample drains the decoder and returns the most recent frame, or
// ok=false when nothing new arrived since the previous call. Never blocks.
func (p *Peripheral) LatestSample() (berrymed.Sample, bool) {
	p.mu.RLock()
	dec := p.dec
	p.mu.RUnlock()

	if dec == nil {
		return berrymed.Sample{}, false
	}

	var latest berrymed.Sample
	ok := false
	for {
		s, more := dec.Next()
		if !more {
			return latest, ok
		}
		latest, ok = s, true
	}
}
