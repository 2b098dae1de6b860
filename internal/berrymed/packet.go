// Package berrymed implements the BerryMed BM1000 pulse-oximeter protocol:
// the GATT identifiers of its transparent-UART service and the 5-byte
// measurement frames it streams over the notify characteristic.
package berrymed

import "fmt"

// GATT identifiers of the BM1000 data path and the standard device
// information service used for the identity read.
const (
	// DataServiceUUID is the vendor transparent-UART service carrying
	// measurement frames.
	DataServiceUUID = "49535343fe7d4ae58fa99fafd205e455"
	// DataCharUUID is the notify characteristic within DataServiceUUID.
	DataCharUUID = "495353431e4d4bd9ba6123c647249616"

	DeviceInfoServiceUUID = "180a"
	ManufacturerCharUUID  = "2a29"
	ModelNumberCharUUID   = "2a24"
)

// NoReadingPulseRate is the sentinel the peripheral reports when it has no
// pulse reading (no-signal condition), not a clinical bound.
const NoReadingPulseRate = 255

// FrameSize is the fixed measurement frame length in bytes.
const FrameSize = 5

// Frame is a raw 5-byte measurement frame. Byte 0 carries the sync bit (MSB)
// and status flags; bytes 1-4 carry pleth, bargraph/flags, pulse rate low
// bits, and SpO2.
type Frame [FrameSize]byte

func (f *Frame) SignalStrength() uint8 { return f[0] & 7 }
func (f *Frame) NoSignal() bool        { return f[0]&(1<<4) != 0 }
func (f *Frame) ProbeUnplugged() bool  { return f[0]&(1<<5) != 0 }
func (f *Frame) PulseBeep() bool       { return f[0]&(1<<6) != 0 }
func (f *Frame) Pleth() uint8          { return f[1] }
func (f *Frame) BarGraph() uint8       { return f[2] & 7 }
func (f *Frame) NoFinger() bool        { return f[2]&(1<<4) != 0 }

// PulseRate assembles the 8-bit rate from the low 7 bits of byte 3 and the
// MSB stashed in bit 6 of byte 2.
func (f *Frame) PulseRate() uint16 { return uint16(f[3]&127) | uint16(f[2]&(1<<6))<<1 }

func (f *Frame) SpO2() uint8 { return f[4] }

// Sample is one decoded reading: the fixed 5-tuple the acquisition engine
// consumes. Ephemeral; the engine retains only validated values.
type Sample struct {
	Valid         bool
	SpO2          uint8
	PulseRate     uint16
	Pleth         uint8
	FingerPresent bool
}

// Usable reports whether the sample should be retained. The gate is the
// exact three-way conjunction: the peripheral flagged the reading valid, the
// finger was on the sensor, and the pulse rate is below the no-reading
// sentinel.
func (s Sample) Usable() bool {
	return s.Valid && s.FingerPresent && s.PulseRate < NoReadingPulseRate
}

func (s Sample) String() string {
	return fmt.Sprintf("pulse=%d spo2=%d pleth=%d valid=%v finger=%v",
		s.PulseRate, s.SpO2, s.Pleth, s.Valid, s.FingerPresent)
}

// Decode maps a raw frame onto the sample tuple.
func (f *Frame) Decode() Sample {
	return Sample{
		Valid:         !f.NoSignal(),
		SpO2:          f.SpO2(),
		PulseRate:     f.PulseRate(),
		Pleth:         f.Pleth(),
		FingerPresent: !f.NoFinger(),
	}
}
