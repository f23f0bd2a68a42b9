package avs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenConnectsToSingleDevice(t *testing.T) {
	sim := NewSimulator()

	spec, err := Open(sim, "", nil)
	require.NoError(t, err)
	defer spec.Close()

	assert.Equal(t, sim.Handle, spec.handle)
	assert.Equal(t, sim.SerialNumber, spec.Device().SerialNumber)
	assert.Equal(t, sim.NPixels, spec.NPixels())
}

func TestOpenBySerialNumber(t *testing.T) {
	sim := NewSimulator()
	sim.NDevices = 2
	sim.GetListFn = func(n int) ([]Identity, error) {
		return []Identity{
			{SerialNumber: "54321", UserFriendlyName: "Other", Status: StatusUSBAvailable},
			sim.identity(),
		}, nil
	}

	spec, err := Open(sim, sim.SerialNumber, nil)
	require.NoError(t, err)
	defer spec.Close()
	assert.Equal(t, sim.SerialNumber, spec.Device().SerialNumber)
}

func TestOpenFailures(t *testing.T) {
	t.Run("No devices attached", func(t *testing.T) {
		sim := NewSimulator()
		sim.NDevices = 0
		_, err := Open(sim, "", nil)
		assert.ErrorContains(t, err, "no attached USB Avantes devices found")
	})

	t.Run("Multiple devices and no serial number", func(t *testing.T) {
		sim := NewSimulator()
		sim.NDevices = 2
		_, err := Open(sim, "", nil)
		assert.ErrorContains(t, err, "multiple devices found, but no serial number specified")
	})

	t.Run("Serial number not attached", func(t *testing.T) {
		sim := NewSimulator()
		_, err := Open(sim, "notarealserial", nil)
		assert.ErrorContains(t, err, "not found in device list")
	})

	t.Run("Activate returns error code", func(t *testing.T) {
		sim := NewSimulator()
		sim.ActivateFn = func(id Identity) (Handle, error) {
			return 0, &ReturnError{Code: ErrDLLInitialisation, What: "Activate"}
		}
		_, err := Open(sim, "", nil)
		assert.ErrorContains(t, err, "failed to activate device")
	})

	t.Run("Activate returns invalid handle", func(t *testing.T) {
		sim := NewSimulator()
		sim.ActivateFn = func(id Identity) (Handle, error) {
			return Handle(InvalidHandle), nil
		}
		_, err := Open(sim, "", nil)
		assert.ErrorContains(t, err, "invalid device handle")
	})
}

func TestStatus(t *testing.T) {
	sim := NewSimulator()
	spec, err := Open(sim, "", nil)
	require.NoError(t, err)
	defer spec.Close()

	status, err := spec.Status()
	require.NoError(t, err)
	assert.Equal(t, sim.NPixels, status.NPixels)
	assert.Equal(t, sim.FPGAVersion, status.FPGAVersion)
	assert.Equal(t, sim.FirmwareVersion, status.FirmwareVersion)
	assert.Equal(t, sim.LibraryVersion, status.LibraryVersion)
	assert.InDelta(t, 5.0, status.TemperatureSetpoint, 1e-9)
	// coefficients (1,2,0,0,0) at 2 V give 5.0 C
	assert.InDelta(t, 5.0, status.Temperature, 1e-9)
}

func TestStatusError(t *testing.T) {
	sim := NewSimulator()
	sim.GetVersionInfoFn = func(h Handle) (VersionInfo, error) {
		return VersionInfo{}, &ReturnError{Code: ErrInvalidDeviceID, What: "GetVersionInfo"}
	}
	spec, err := Open(sim, "", nil)
	require.NoError(t, err)
	defer spec.Close()

	_, err = spec.Status()
	var rerr *ReturnError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, ErrInvalidDeviceID, rerr.Code)
}

func TestExpose(t *testing.T) {
	sim := NewSimulator()
	spec, err := Open(sim, "", nil)
	require.NoError(t, err)
	defer spec.Close()

	duration := 10 * time.Millisecond
	wavelength, spectrum, err := spec.Expose(context.Background(), duration)
	require.NoError(t, err)

	assert.Equal(t, sim.Wavelength, wavelength)
	assert.Equal(t, sim.Spectrum, spectrum)
	// data was ready on the fourth poll
	assert.Equal(t, 4, sim.PollCount)

	require.NotNil(t, sim.LastMeasureConfig)
	assert.Equal(t, uint16(0), sim.LastMeasureConfig.StartPixel)
	assert.Equal(t, uint16(sim.NPixels-1), sim.LastMeasureConfig.StopPixel)
	assert.InDelta(t, 10.0, float64(sim.LastMeasureConfig.IntegrationTime), 1e-6) // ms
	assert.Equal(t, uint32(1), sim.LastMeasureConfig.NrAverages)
}

func TestExposeDurationLimits(t *testing.T) {
	sim := NewSimulator()
	spec, err := Open(sim, "", nil)
	require.NoError(t, err)
	defer spec.Close()

	_, _, err = spec.Expose(context.Background(), time.Microsecond)
	assert.ErrorContains(t, err, "exposure duration not in valid range")

	_, _, err = spec.Expose(context.Background(), 601*time.Second)
	assert.ErrorContains(t, err, "exposure duration not in valid range")
}

func TestCheckExposeOK(t *testing.T) {
	sim := NewSimulator()
	spec, err := Open(sim, "", nil)
	require.NoError(t, err)
	defer spec.Close()

	assert.NoError(t, spec.CheckExposeOK(2*time.Second))
	assert.ErrorContains(t, spec.CheckExposeOK(time.Microsecond), "exposure duration not in valid range")

	done := make(chan struct{})
	go func() {
		defer close(done)
		spec.Expose(context.Background(), 200*time.Millisecond)
	}()
	waitForExposing(t, spec)
	assert.ErrorIs(t, spec.CheckExposeOK(2*time.Second), ErrExposureInProgress)
	require.NoError(t, spec.StopExposure())
	<-done
}

func TestExposeWhileExposing(t *testing.T) {
	sim := NewSimulator()
	spec, err := Open(sim, "", nil)
	require.NoError(t, err)
	defer spec.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		spec.Expose(context.Background(), 200*time.Millisecond)
	}()
	waitForExposing(t, spec)

	_, _, err = spec.Expose(context.Background(), 10*time.Millisecond)
	assert.ErrorIs(t, err, ErrExposureInProgress)

	require.NoError(t, spec.StopExposure())
	<-done
}

func TestStopExposureCancelsExpose(t *testing.T) {
	sim := NewSimulator()
	spec, err := Open(sim, "", nil)
	require.NoError(t, err)
	defer spec.Close()

	errCh := make(chan error, 1)
	t0 := time.Now()
	go func() {
		_, _, err := spec.Expose(context.Background(), 5*time.Second)
		errCh <- err
	}()
	waitForExposing(t, spec)
	require.NoError(t, spec.StopExposure())

	err = <-errCh
	assert.ErrorIs(t, err, ErrExposureCancelled)
	// cancelling should end the exposure much sooner than the duration
	assert.Less(t, time.Since(t0), time.Second)
	assert.Equal(t, 1, sim.StopCount)
}

func TestStopExposureDuringPollLoop(t *testing.T) {
	sim := NewSimulator()
	// never report data ready, so the cancel lands inside the poll loop
	sim.PollScanFn = func(h Handle) (bool, error) { return false, nil }
	spec, err := Open(sim, "", nil)
	require.NoError(t, err)
	defer spec.Close()

	errCh := make(chan error, 1)
	go func() {
		_, _, err := spec.Expose(context.Background(), 10*time.Millisecond)
		errCh <- err
	}()
	waitForExposing(t, spec)
	time.Sleep(30 * time.Millisecond) // get past integration, into polling
	require.NoError(t, spec.StopExposure())
	assert.ErrorIs(t, <-errCh, ErrExposureCancelled)
}

func TestStopExposureWithNoActiveExposure(t *testing.T) {
	sim := NewSimulator()
	spec, err := Open(sim, "", nil)
	require.NoError(t, err)
	defer spec.Close()

	assert.NoError(t, spec.StopExposure())
	assert.Equal(t, 0, sim.StopCount)
}

func TestExposeContextCancel(t *testing.T) {
	sim := NewSimulator()
	spec, err := Open(sim, "", nil)
	require.NoError(t, err)
	defer spec.Close()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, _, err := spec.Expose(ctx, 5*time.Second)
		errCh <- err
	}()
	waitForExposing(t, spec)
	cancel()
	assert.ErrorIs(t, <-errCh, ErrExposureCancelled)
}

func TestExposeDeviceError(t *testing.T) {
	sim := NewSimulator()
	sim.MeasureFn = func(h Handle, nmsr int16) error {
		return &ReturnError{Code: ErrInvalidState, What: "Measure"}
	}
	spec, err := Open(sim, "", nil)
	require.NoError(t, err)
	defer spec.Close()

	_, _, err = spec.Expose(context.Background(), 10*time.Millisecond)
	var rerr *ReturnError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, ErrInvalidState, rerr.Code)

	// the failed exposure must not leave the controller "exposing"
	assert.NoError(t, spec.CheckExposeOK(2*time.Second))
}

func TestCloseReleasesDevice(t *testing.T) {
	sim := NewSimulator()
	spec, err := Open(sim, "", nil)
	require.NoError(t, err)

	spec.Close()
	assert.Equal(t, 1, sim.DeactivateCount)
	assert.Equal(t, 1, sim.DoneCount)
}

func TestCloseWithFailingDeactivate(t *testing.T) {
	sim := NewSimulator()
	sim.DeactivateFn = func(h Handle) bool { return false }
	spec, err := Open(sim, "", nil)
	require.NoError(t, err)

	// a refused Deactivate is logged, not fatal; Done still runs
	spec.Close()
	assert.Equal(t, 1, sim.DoneCount)
}

// waitForExposing polls until the controller reports a running exposure.
func waitForExposing(t *testing.T, spec *Spectrograph) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		spec.mu.Lock()
		exposing := spec.exposing
		spec.mu.Unlock()
		if exposing {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("timed out waiting for exposure to start")
}
