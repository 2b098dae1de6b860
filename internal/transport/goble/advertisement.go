package goble

import (
	"github.com/go-ble/ble"

	"github.com/oxitrack/oxitrack/internal/transport"
)

// bleAdvertisement adapts ble.Advertisement to transport.Advertisement.
type bleAdvertisement struct {
	adv ble.Advertisement
}

func NewAdvertisement(adv ble.Advertisement) transport.Advertisement {
	return &bleAdvertisement{adv: adv}
}

func (a *bleAdvertisement) LocalName() string { return a.adv.LocalName() }
func (a *bleAdvertisement) Addr() string      { return a.adv.Addr().String() }
func (a *bleAdvertisement) RSSI() int         { return a.adv.RSSI() }
func (a *bleAdvertisement) Connectable() bool { return a.adv.Connectable() }
