// Package avs wraps the vendor AvaSpec library for Avantes fiber
// spectrographs. The vendor calls are abstracted behind the Library
// interface; the real binding (build tag "libavs") talks to
// libavs.so 0.2.0, and Simulator provides a deterministic stand-in.
package avs

import "fmt"

// Handle identifies an activated device within the vendor library.
type Handle int32

// Field sizes of the vendor identity struct, in bytes.
const (
	SerialLen = 10
	UserIDLen = 64
)

// DeviceStatusByte values for Identity.Status, from avaspec.h.
const (
	StatusUnknown      byte = 0
	StatusUSBAvailable byte = 1
	StatusUSBInUse     byte = 2
	StatusETHAvailable byte = 3
	StatusETHInUse     byte = 4
)

// Identity describes one attached spectrograph, mirroring the vendor
// AvsIdentityType struct.
type Identity struct {
	SerialNumber     string
	UserFriendlyName string
	Status           byte
}

func (id Identity) String() string {
	return fmt.Sprintf("Identity(%q, %q, %d)", id.SerialNumber, id.UserFriendlyName, id.Status)
}

// DeviceConfig carries the fields of the vendor DeviceConfigType struct
// that this service reads. The full struct is some 63 kB of calibration
// data; the rest is left with the device.
type DeviceConfig struct {
	UserFriendlyID string
	NrPixels       uint16
	// TemperatureFit holds the polynomial coefficients that convert the
	// thermistor analog-in voltage to degrees Celsius (Temperature_3 fit).
	TemperatureFit [5]float32
	TecEnabled     bool
	TecSetpoint    float32
}

// MeasureConfig mirrors the vendor MeasConfigType struct passed to
// AVS_PrepareMeasure.
type MeasureConfig struct {
	StartPixel                  uint16
	StopPixel                   uint16
	IntegrationTime             float32 // milliseconds
	IntegrationDelay            uint32  // FPGA clock cycles
	NrAverages                  uint32
	DynamicDarkEnable           uint8
	DynamicDarkForgetPercentage uint8
	SmoothPix                   uint16
	SmoothModel                 uint8
	SaturationDetection         uint8
	TriggerMode                 uint8
	TriggerSource               uint8
	TriggerSourceType           uint8
	StrobeControl               uint16
	LaserDelay                  uint32
	LaserWidth                  uint32
	LaserWavelength             float32
	StoreToRAM                  uint16
}

// VersionInfo holds the device and library software versions.
type VersionInfo struct {
	FPGA     string
	Firmware string
	Library  string
}

// Library is the surface of the vendor AvaSpec library used by this
// service. Implementations translate non-success vendor codes into
// *ReturnError values. All calls are blocking.
type Library interface {
	// Init initializes the vendor USB layer (port 0 means USB).
	Init(port int) error
	// Done closes the communication ports and releases internal storage.
	Done() error

	// UpdateUSBDevices returns the number of attached USB devices.
	UpdateUSBDevices() (int, error)
	// GetList returns the identities of up to n attached devices.
	GetList(n int) ([]Identity, error)
	// Activate opens a connection to the identified device.
	Activate(id Identity) (Handle, error)
	// Deactivate closes the connection; false means the vendor library
	// refused, which callers may treat as non-fatal.
	Deactivate(h Handle) bool

	GetNumPixels(h Handle) (int, error)
	GetParameter(h Handle) (DeviceConfig, error)
	GetVersionInfo(h Handle) (VersionInfo, error)
	// GetAnalogIn reads an analog input; input 0 is the thermistor.
	GetAnalogIn(h Handle, input int) (float32, error)

	PrepareMeasure(h Handle, cfg MeasureConfig) error
	// Measure starts nmsr measurements (no callback; polled readout).
	Measure(h Handle, nmsr int16) error
	// PollScan reports whether measured data is ready for readout.
	PollScan(h Handle) (bool, error)
	// GetScopeData reads the measured spectrum and its time label.
	GetScopeData(h Handle) (timeLabel uint32, spectrum []float64, err error)
	// GetLambda reads the per-pixel wavelength solution in nm.
	GetLambda(h Handle) ([]float64, error)
	StopMeasure(h Handle) error
}

// polyval evaluates a polynomial with coefficients in ascending order.
func polyval(coeffs [5]float32, x float32) float64 {
	result := 0.0
	pow := 1.0
	for _, c := range coeffs {
		result += float64(c) * pow
		pow *= float64(x)
	}
	return result
}
