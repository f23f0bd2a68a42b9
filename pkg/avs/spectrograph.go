package avs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Exposure duration limits accepted by the device. The lower bound is
// the shortest integration time the detector supports; the upper bound
// is the vendor's documented maximum.
const (
	MinExposureDuration = time.Millisecond
	MaxExposureDuration = 600 * time.Second
)

// Interval between PollScan calls during readout. The Avantes manual
// warns against polling faster than 1 ms.
const pollInterval = time.Millisecond

var (
	// ErrExposureCancelled is returned by Expose when StopExposure or a
	// context cancellation interrupts a running exposure.
	ErrExposureCancelled = errors.New("exposure cancelled")
	// ErrExposureInProgress is returned when a new exposure is requested
	// while one is still running.
	ErrExposureInProgress = errors.New("cannot start new exposure: an exposure is already in progress")
)

// DeviceStatus is the current status of a connected spectrograph.
type DeviceStatus struct {
	NPixels         int
	FPGAVersion     string
	FirmwareVersion string
	LibraryVersion  string
	// TemperatureSetpoint is the detector TEC set point, degrees Celsius.
	TemperatureSetpoint float64
	// Temperature is measured at the optical bench thermistor, degrees
	// Celsius.
	Temperature float64
}

// Spectrograph owns the connection to one Avantes fiber spectrograph.
//
// A successful Open implies an established connection; there is no
// separate connect step. A failed device call invalidates the handle
// for good: Close the controller and Open a new one to recover.
type Spectrograph struct {
	lib     Library
	logger  log.FieldLogger
	handle  Handle
	device  Identity
	nPixels int

	mu       sync.Mutex
	exposing bool
	cancel   context.CancelFunc
}

// Open connects to a single USB spectrograph and returns its controller.
//
// serialNumber selects the device to connect to. If empty, the only
// attached device is used; an error is returned when several devices are
// attached and no serial number is given, or when the requested serial
// number is not attached.
func Open(lib Library, serialNumber string, logger log.FieldLogger) (*Spectrograph, error) {
	if logger == nil {
		logger = log.StandardLogger()
	}
	logger = logger.WithField("component", "spectrograph")

	// NOTE: Init(0) initializes the USB library, not device 0.
	if err := lib.Init(0); err != nil {
		return nil, fmt.Errorf("failed to initialize vendor library: %v", err)
	}

	nDevices, err := lib.UpdateUSBDevices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate USB devices: %v", err)
	}
	if nDevices == 0 {
		return nil, errors.New("no attached USB Avantes devices found")
	}
	logger.Debugf("Found %d attached USB Avantes device(s)", nDevices)

	list, err := lib.GetList(nDevices)
	if err != nil {
		return nil, fmt.Errorf("failed to get device list: %v", err)
	}
	logger.Debugf("Found devices: %v", list)

	var device Identity
	if serialNumber == "" {
		if len(list) > 1 {
			return nil, fmt.Errorf("multiple devices found, but no serial number specified; attached devices: %v", list)
		}
		device = list[0]
	} else {
		found := false
		for _, id := range list {
			if id.SerialNumber == serialNumber {
				device = id
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("device serial number %s not found in device list: %v", serialNumber, list)
		}
	}

	handle, err := lib.Activate(device)
	if err != nil {
		return nil, fmt.Errorf("failed to activate device %v: %v", device, err)
	}
	if handle == Handle(InvalidHandle) {
		return nil, fmt.Errorf("invalid device handle; cannot activate device %v", device)
	}
	logger.Infof("Activated connection (handle=%d) with USB device %v", handle, device)

	nPixels, err := lib.GetNumPixels(handle)
	if err != nil {
		lib.Deactivate(handle)
		lib.Done()
		return nil, fmt.Errorf("failed to get pixel count: %v", err)
	}

	return &Spectrograph{
		lib:     lib,
		logger:  logger,
		handle:  handle,
		device:  device,
		nPixels: nPixels,
	}, nil
}

// Device returns the identity of the connected spectrograph.
func (s *Spectrograph) Device() Identity { return s.device }

// NPixels returns the detector pixel count.
func (s *Spectrograph) NPixels() int { return s.nPixels }

// Status queries the versions and temperature of the connected device.
func (s *Spectrograph) Status() (DeviceStatus, error) {
	versions, err := s.lib.GetVersionInfo(s.handle)
	if err != nil {
		return DeviceStatus{}, err
	}

	config, err := s.lib.GetParameter(s.handle)
	if err != nil {
		return DeviceStatus{}, err
	}

	voltage, err := s.lib.GetAnalogIn(s.handle, 0)
	if err != nil {
		return DeviceStatus{}, err
	}

	return DeviceStatus{
		NPixels:             s.nPixels,
		FPGAVersion:         versions.FPGA,
		FirmwareVersion:     versions.Firmware,
		LibraryVersion:      versions.Library,
		TemperatureSetpoint: float64(config.TecSetpoint),
		Temperature:         polyval(config.TemperatureFit, voltage),
	}, nil
}

// CheckExposeOK reports why an exposure with the given duration cannot
// be started, or nil if it can.
func (s *Spectrograph) CheckExposeOK(duration time.Duration) error {
	if duration < MinExposureDuration || duration > MaxExposureDuration {
		return fmt.Errorf("exposure duration not in valid range [%v, %v]: %v",
			MinExposureDuration, MaxExposureDuration, duration)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exposing {
		return ErrExposureInProgress
	}
	return nil
}

// Expose takes one exposure and returns the wavelength solution and the
// measured spectrum. It blocks for at least duration plus readout time.
// Cancelling ctx, or calling StopExposure, aborts the exposure and
// returns ErrExposureCancelled.
func (s *Spectrograph) Expose(ctx context.Context, duration time.Duration) (wavelength, spectrum []float64, err error) {
	if err := s.CheckExposeOK(duration); err != nil {
		return nil, nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if s.exposing {
		s.mu.Unlock()
		return nil, nil, ErrExposureInProgress
	}
	s.exposing = true
	s.cancel = cancel
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.exposing = false
		s.cancel = nil
		s.mu.Unlock()
	}()

	cfg := MeasureConfig{
		StartPixel:      0,
		StopPixel:       uint16(s.nPixels - 1),
		IntegrationTime: float32(duration.Seconds() * 1000),
		NrAverages:      1,
	}
	s.logger.Debugf("Preparing %v measurement", duration)
	if err := s.lib.PrepareMeasure(s.handle, cfg); err != nil {
		return nil, nil, err
	}

	s.logger.Infof("Beginning %v measurement", duration)
	if err := s.lib.Measure(s.handle, 1); err != nil {
		return nil, nil, err
	}

	// Fetch the wavelength solution while the exposure integrates.
	wavelength, err = s.lib.GetLambda(s.handle)
	if err != nil {
		return nil, nil, err
	}

	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		s.logger.Info("Running exposure cancelled")
		return nil, nil, ErrExposureCancelled
	}

	for {
		s.logger.Debug("Polling for measurement")
		ready, err := s.lib.PollScan(s.handle)
		if err != nil {
			return nil, nil, err
		}
		if ready {
			break
		}
		select {
		case <-time.After(pollInterval):
		case <-ctx.Done():
			s.logger.Info("Running exposure cancelled during readout poll")
			return nil, nil, ErrExposureCancelled
		}
	}

	s.logger.Debug("Reading measured data from spectrograph")
	_, spectrum, err = s.lib.GetScopeData(s.handle)
	if err != nil {
		return nil, nil, err
	}
	return wavelength, spectrum, nil
}

// StopExposure cancels a currently running exposure and resets the
// device. It does nothing if no exposure is active.
func (s *Spectrograph) StopExposure() error {
	s.mu.Lock()
	cancel := s.cancel
	exposing := s.exposing
	s.mu.Unlock()

	if !exposing {
		return nil
	}
	s.logger.Info("Cancelling running exposure...")
	err := s.lib.StopMeasure(s.handle)
	if cancel != nil {
		cancel()
	}
	return err
}

// Close stops any running exposure and releases the device connection.
// The controller must not be used afterwards.
func (s *Spectrograph) Close() {
	if s.handle != 0 && s.handle != Handle(InvalidHandle) {
		if err := s.StopExposure(); err != nil {
			s.logger.Errorf("failed to stop exposure while disconnecting: %v", err)
		}
		if ok := s.lib.Deactivate(s.handle); !ok {
			s.logger.Errorf("Could not deactivate device %v with handle %d; assuming it is safe to close the communication port anyway", s.device, s.handle)
		}
		s.handle = 0
	}
	if err := s.lib.Done(); err != nil {
		s.logger.Errorf("failed to release vendor library: %v", err)
	}
}
