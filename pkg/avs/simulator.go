package avs

import (
	"sync"
)

// Simulator is a deterministic, in-memory implementation of Library.
// It behaves as if a single healthy spectrograph is attached: every
// call succeeds, readout data is ready on the fourth poll, and the
// pixel count and temperature values match the real device so that
// simulated telemetry is not confusing.
//
// Individual calls can be overridden through the *Fn hooks to inject
// error conditions in tests.
type Simulator struct {
	SerialNumber        string
	Name                string
	Handle              Handle
	NDevices            int
	NPixels             int
	TemperatureSetpoint float32
	// TecCoefficients and TecVoltage produce a temperature of 5.0 C.
	TecCoefficients [5]float32
	TecVoltage      float32
	FPGAVersion     string
	FirmwareVersion string
	LibraryVersion  string
	Wavelength      []float64
	Spectrum        []float64
	// PollsUntilReady is how many PollScan calls return "not ready"
	// before data becomes available.
	PollsUntilReady int

	// Optional per-call overrides.
	InitFn             func(port int) error
	UpdateUSBDevicesFn func() (int, error)
	GetListFn          func(n int) ([]Identity, error)
	ActivateFn         func(id Identity) (Handle, error)
	DeactivateFn       func(h Handle) bool
	GetNumPixelsFn     func(h Handle) (int, error)
	GetParameterFn     func(h Handle) (DeviceConfig, error)
	GetVersionInfoFn   func(h Handle) (VersionInfo, error)
	GetAnalogInFn      func(h Handle, input int) (float32, error)
	PrepareMeasureFn   func(h Handle, cfg MeasureConfig) error
	MeasureFn          func(h Handle, nmsr int16) error
	PollScanFn         func(h Handle) (bool, error)
	GetScopeDataFn     func(h Handle) (uint32, []float64, error)
	GetLambdaFn        func(h Handle) ([]float64, error)
	StopMeasureFn      func(h Handle) error
	DoneFn             func() error

	mu sync.Mutex
	// Call bookkeeping for test assertions.
	LastMeasureConfig *MeasureConfig
	PollCount         int
	StopCount         int
	DeactivateCount   int
	DoneCount         int
}

// NewSimulator returns a Simulator configured as one healthy attached
// device: the red spectrograph, 2048 pixels, TEC set point 5.0 C.
func NewSimulator() *Simulator {
	sim := &Simulator{
		SerialNumber:        "1606190U1",
		Name:                "Fake Spectrograph",
		Handle:              314159,
		NDevices:            1,
		NPixels:             2048,
		TemperatureSetpoint: 5,
		TecCoefficients:     [5]float32{1, 2, 0, 0, 0},
		TecVoltage:          2,
		FPGAVersion:         "fpga12345678901",
		FirmwareVersion:     "firmware123456",
		LibraryVersion:      "library123456",
		PollsUntilReady:     3,
	}
	sim.Wavelength = make([]float64, sim.NPixels)
	sim.Spectrum = make([]float64, sim.NPixels)
	for i := range sim.Wavelength {
		sim.Wavelength[i] = float64(i)
		sim.Spectrum[i] = float64(i) * 2
	}
	return sim
}

// Temperature returns the simulated thermistor temperature, as computed
// from the voltage and polynomial coefficients.
func (s *Simulator) Temperature() float64 {
	return polyval(s.TecCoefficients, s.TecVoltage)
}

func (s *Simulator) identity() Identity {
	return Identity{
		SerialNumber:     s.SerialNumber,
		UserFriendlyName: s.Name,
		Status:           StatusUSBAvailable,
	}
}

func (s *Simulator) Init(port int) error {
	if s.InitFn != nil {
		return s.InitFn(port)
	}
	return nil
}

func (s *Simulator) Done() error {
	s.mu.Lock()
	s.DoneCount++
	s.mu.Unlock()
	if s.DoneFn != nil {
		return s.DoneFn()
	}
	return nil
}

func (s *Simulator) UpdateUSBDevices() (int, error) {
	if s.UpdateUSBDevicesFn != nil {
		return s.UpdateUSBDevicesFn()
	}
	return s.NDevices, nil
}

func (s *Simulator) GetList(n int) ([]Identity, error) {
	if s.GetListFn != nil {
		return s.GetListFn(n)
	}
	list := make([]Identity, 0, n)
	for i := 0; i < n && i < s.NDevices; i++ {
		list = append(list, s.identity())
	}
	return list, nil
}

func (s *Simulator) Activate(id Identity) (Handle, error) {
	if s.ActivateFn != nil {
		return s.ActivateFn(id)
	}
	return s.Handle, nil
}

func (s *Simulator) Deactivate(h Handle) bool {
	s.mu.Lock()
	s.DeactivateCount++
	s.mu.Unlock()
	if s.DeactivateFn != nil {
		return s.DeactivateFn(h)
	}
	return true
}

func (s *Simulator) GetNumPixels(h Handle) (int, error) {
	if s.GetNumPixelsFn != nil {
		return s.GetNumPixelsFn(h)
	}
	return s.NPixels, nil
}

func (s *Simulator) GetParameter(h Handle) (DeviceConfig, error) {
	if s.GetParameterFn != nil {
		return s.GetParameterFn(h)
	}
	return DeviceConfig{
		UserFriendlyID: s.Name,
		NrPixels:       uint16(s.NPixels),
		TemperatureFit: s.TecCoefficients,
		TecEnabled:     true,
		TecSetpoint:    s.TemperatureSetpoint,
	}, nil
}

func (s *Simulator) GetVersionInfo(h Handle) (VersionInfo, error) {
	if s.GetVersionInfoFn != nil {
		return s.GetVersionInfoFn(h)
	}
	return VersionInfo{
		FPGA:     s.FPGAVersion,
		Firmware: s.FirmwareVersion,
		Library:  s.LibraryVersion,
	}, nil
}

func (s *Simulator) GetAnalogIn(h Handle, input int) (float32, error) {
	if s.GetAnalogInFn != nil {
		return s.GetAnalogInFn(h, input)
	}
	if input == 0 {
		return s.TecVoltage, nil
	}
	return 0, nil
}

func (s *Simulator) PrepareMeasure(h Handle, cfg MeasureConfig) error {
	s.mu.Lock()
	c := cfg
	s.LastMeasureConfig = &c
	s.mu.Unlock()
	if s.PrepareMeasureFn != nil {
		return s.PrepareMeasureFn(h, cfg)
	}
	return nil
}

func (s *Simulator) Measure(h Handle, nmsr int16) error {
	s.mu.Lock()
	s.PollCount = 0
	s.mu.Unlock()
	if s.MeasureFn != nil {
		return s.MeasureFn(h, nmsr)
	}
	return nil
}

func (s *Simulator) PollScan(h Handle) (bool, error) {
	s.mu.Lock()
	s.PollCount++
	count := s.PollCount
	s.mu.Unlock()
	if s.PollScanFn != nil {
		return s.PollScanFn(h)
	}
	return count > s.PollsUntilReady, nil
}

func (s *Simulator) GetScopeData(h Handle) (uint32, []float64, error) {
	if s.GetScopeDataFn != nil {
		return s.GetScopeDataFn(h)
	}
	spectrum := make([]float64, len(s.Spectrum))
	copy(spectrum, s.Spectrum)
	return 0, spectrum, nil
}

func (s *Simulator) GetLambda(h Handle) ([]float64, error) {
	if s.GetLambdaFn != nil {
		return s.GetLambdaFn(h)
	}
	wavelength := make([]float64, len(s.Wavelength))
	copy(wavelength, s.Wavelength)
	return wavelength, nil
}

func (s *Simulator) StopMeasure(h Handle) error {
	s.mu.Lock()
	s.StopCount++
	s.mu.Unlock()
	if s.StopMeasureFn != nil {
		return s.StopMeasureFn(h)
	}
	return nil
}
