package csc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"fiberspec/pkg/avs"
	"fiberspec/pkg/lfa"
	"fiberspec/pkg/sal"
	"fiberspec/pkg/spectrum"
)

// DefaultTelemetryInterval is the period of the temperature telemetry
// loop.
const DefaultTelemetryInterval = 10 * time.Second

// ImageNameService allocates observation ids for saved exposures.
type ImageNameService interface {
	Next(ctx context.Context, n int) ([]ObsID, error)
}

// CSC is the fiber spectrograph control component.
//
// It starts in standby with no device connection. The start command
// moves it to disabled, constructing the device controller and the
// telemetry loop; enable allows exposure commands; standby releases
// the device again. Any device failure sends the CSC to fault and
// requires standby/start to recover, since a failed vendor call
// invalidates the device handle.
type CSC struct {
	index      SalIndex
	band       string
	serial     string
	generator  string
	simulation SimulationMode
	logger     log.FieldLogger
	bus        sal.Bus
	topics     sal.Topics
	store      *Store

	// TelemetryInterval may be lowered in tests. Set before Start.
	TelemetryInterval time.Duration
	// LocalFallbackDir receives FITS files when the LFA upload fails.
	LocalFallbackDir string
	// MockS3Dir is where the mock bucket stores objects (SimulateS3).
	MockS3Dir string
	// OpenLibrary provides the vendor library; the default honors
	// SimulateSpectrograph. Set before Start.
	OpenLibrary func() (avs.Library, error)
	// ImageNames is created from the configuration unless preset.
	ImageNames ImageNameService

	mu      sync.Mutex
	state   sal.SummaryState
	cfg     Config
	device  *avs.Spectrograph
	bucket  *lfa.Bucket
	manager spectrum.Manager
	lastTel sal.TemperatureTelemetry

	// devMu serializes device access, so an in-flight exposure readout
	// blocks the telemetry poll.
	devMu sync.Mutex

	telemetryCancel context.CancelFunc
	telemetryDone   chan struct{}
}

// New creates the CSC in standby. Call Start to attach it to the bus.
func New(index SalIndex, bus sal.Bus, store *Store, simulation SimulationMode, logger log.FieldLogger) (*CSC, error) {
	if !index.Valid() {
		return nil, fmt.Errorf("invalid index %d", int(index))
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	band := index.Band()

	c := &CSC{
		index:      index,
		band:       band,
		serial:     index.SerialNumber(),
		generator:  "fiberSpec" + band,
		simulation: simulation,
		logger:     logger.WithField("csc", fmt.Sprintf("%s:%d", Name, int(index))),
		bus:        bus,
		store:      store,

		TelemetryInterval: DefaultTelemetryInterval,
		LocalFallbackDir:  "/tmp",
		MockS3Dir:         filepath.Join(os.TempDir(), "lfa-mock"),

		state: sal.Standby,
		manager: spectrum.Manager{
			Instrument: fmt.Sprintf("%s.%s", Name, band),
			Origin:     Name + "Csc",
			Serial:     index.SerialNumber(),
		},
	}
	c.OpenLibrary = c.defaultOpenLibrary
	return c, nil
}

func (c *CSC) defaultOpenLibrary() (avs.Library, error) {
	if c.simulation&SimulateSpectrograph != 0 {
		return avs.NewSimulator(), nil
	}
	return avs.OpenLibrary()
}

// State returns the current summary state.
func (c *CSC) State() sal.SummaryState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start subscribes the command topics and announces the initial state.
// cfg.MQTT.TopicRoot must already be reflected in the bus the CSC was
// given; the topic root is read from the stored configuration.
func (c *CSC) Start() error {
	cfg, err := c.store.GetConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %v", err)
	}
	c.mu.Lock()
	c.cfg = cfg
	c.topics = sal.Topics{Root: cfg.MQTT.TopicRoot, Name: Name, Index: int(c.index)}
	c.mu.Unlock()

	commands := map[string]func(sal.Command) error{
		sal.CmdStart:          c.doStart,
		sal.CmdEnable:         c.doEnable,
		sal.CmdDisable:        c.doDisable,
		sal.CmdStandby:        c.doStandby,
		sal.CmdExpose:         c.doExpose,
		sal.CmdCancelExposure: c.doCancelExposure,
	}
	for name, handler := range commands {
		name, handler := name, handler
		err := c.bus.Subscribe(c.topics.Command(name), func(topic string, payload []byte) {
			var cmd sal.Command
			if err := json.Unmarshal(payload, &cmd); err != nil {
				c.logger.Errorf("Failed to unmarshal %s command: %v", name, err)
				return
			}
			// Handlers run concurrently so that a long exposure does
			// not block cancelExposure or state commands.
			go c.runCommand(name, cmd, handler)
		})
		if err != nil {
			return fmt.Errorf("failed to subscribe to %s command: %v", name, err)
		}
	}

	c.publishSummaryState()
	c.logger.Info("CSC started in STANDBY")
	return nil
}

func (c *CSC) runCommand(name string, cmd sal.Command, handler func(sal.Command) error) {
	c.logger.Debugf("Command %s: %+v", name, cmd)
	ack := sal.Ack{ID: cmd.ID, OK: true}
	if err := handler(cmd); err != nil {
		c.logger.Errorf("Command %s failed: %v", name, err)
		ack.OK = false
		ack.Error = err.Error()
	}
	if err := c.bus.Publish(c.topics.Ack(name), ack); err != nil {
		c.logger.Errorf("Failed to publish %s ack: %v", name, err)
	}
}

// Close releases the device and detaches from the bus.
func (c *CSC) Close() {
	c.logger.Info("Closing CSC")
	c.teardown()
	c.mu.Lock()
	topics := c.topics
	c.mu.Unlock()
	for _, name := range []string{
		sal.CmdStart, sal.CmdEnable, sal.CmdDisable,
		sal.CmdStandby, sal.CmdExpose, sal.CmdCancelExposure,
	} {
		if err := c.bus.Unsubscribe(topics.Command(name)); err != nil {
			c.logger.Errorf("Failed to unsubscribe %s: %v", name, err)
		}
	}
}

func (c *CSC) publishSummaryState() {
	c.mu.Lock()
	state := c.state
	topic := c.topics.Event(sal.EvtSummaryState)
	c.mu.Unlock()
	if err := c.bus.Publish(topic, sal.SummaryStateEvent{SummaryState: state}); err != nil {
		c.logger.Errorf("Failed to publish summary state: %v", err)
	}
}

func (c *CSC) publishEvent(name string, v any) {
	if err := c.bus.Publish(c.topics.Event(name), v); err != nil {
		c.logger.Errorf("Failed to publish %s event: %v", name, err)
	}
}

// fault moves the CSC to FAULT, reporting the error code, and releases
// the device. Recovery requires standby followed by start.
func (c *CSC) fault(code int, report string) {
	c.logger.Errorf("Fault %d: %s", code, report)
	c.publishEvent(sal.EvtErrorCode, sal.ErrorCodeEvent{ErrorCode: code, ErrorReport: report})
	c.teardown()
	c.mu.Lock()
	c.state = sal.Fault
	c.mu.Unlock()
	c.publishSummaryState()
}

// teardown stops the telemetry loop and releases the device and bucket.
// A running exposure is stopped first: it holds devMu, which the
// telemetry loop also needs, so waiting for the loop before aborting
// the exposure would stall for the full integration time.
func (c *CSC) teardown() {
	c.mu.Lock()
	cancel := c.telemetryCancel
	done := c.telemetryDone
	device := c.device
	c.telemetryCancel = nil
	c.telemetryDone = nil
	c.device = nil
	c.bucket = nil
	c.mu.Unlock()

	if device != nil {
		if err := device.StopExposure(); err != nil {
			c.logger.Errorf("Failed to stop exposure during teardown: %v", err)
		}
	}
	if cancel != nil {
		cancel()
		<-done
	}
	if device != nil {
		device.Close()
	}
}

func (c *CSC) doStart(cmd sal.Command) error {
	c.mu.Lock()
	if c.state != sal.Standby {
		c.mu.Unlock()
		return fmt.Errorf("start not allowed in state %s", c.state)
	}
	c.mu.Unlock()

	stored, err := c.store.GetConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %v", err)
	}
	cfg, err := ApplyOverride(stored, cmd.Override)
	if err != nil {
		return fmt.Errorf("failed to configure: %v", err)
	}

	c.mu.Lock()
	c.cfg = cfg
	if c.ImageNames == nil {
		c.ImageNames = NewImageNameClient(cfg.ImageServiceURL, Name, int(c.index))
	}
	c.mu.Unlock()

	if err := c.connect(); err != nil {
		return err
	}

	c.mu.Lock()
	c.state = sal.Disabled
	c.mu.Unlock()
	c.publishSummaryState()
	return nil
}

// connect builds the bucket handle, the device controller and the
// telemetry loop. On a device failure the CSC faults with code 1.
func (c *CSC) connect() error {
	c.mu.Lock()
	cfg := c.cfg
	haveBucket := c.bucket != nil
	haveDevice := c.device != nil
	c.mu.Unlock()

	if !haveBucket {
		name := lfa.MakeBucketName(cfg.S3Instance)
		var bucket *lfa.Bucket
		if c.simulation&SimulateS3 != 0 {
			bucket = lfa.NewMock(c.MockS3Dir, name, c.logger)
		} else {
			var err error
			bucket, err = lfa.New(cfg.S3Endpoint, cfg.S3Secure, name, c.logger)
			if err != nil {
				return fmt.Errorf("failed to create LFA bucket: %v", err)
			}
		}
		c.mu.Lock()
		c.bucket = bucket
		c.mu.Unlock()
	}

	if !haveDevice {
		lib, err := c.OpenLibrary()
		if err == nil {
			var device *avs.Spectrograph
			device, err = avs.Open(lib, c.serial, c.logger)
			if err == nil {
				c.mu.Lock()
				c.device = device
				c.mu.Unlock()
			}
		}
		if err != nil {
			msg := "failed to connect to fiber spectrograph"
			c.fault(faultCodeConnect, fmt.Sprintf("%s: %v", msg, err))
			return errors.New(msg)
		}
	}

	c.mu.Lock()
	device := c.device
	running := c.telemetryDone != nil
	if !running {
		ctx, cancel := context.WithCancel(context.Background())
		c.telemetryCancel = cancel
		c.telemetryDone = make(chan struct{})
		go c.telemetryLoop(ctx, device, c.telemetryDone)
	}
	c.mu.Unlock()

	c.devMu.Lock()
	status, err := device.Status()
	c.devMu.Unlock()
	if err != nil {
		c.fault(faultCodeConnect, fmt.Sprintf("failed to read device status: %v", err))
		return errors.New("failed to read device status")
	}
	c.publishEvent(sal.EvtDeviceInfo, sal.DeviceInfoEvent{
		NPixels:         status.NPixels,
		FPGAVersion:     status.FPGAVersion,
		FirmwareVersion: status.FirmwareVersion,
		LibraryVersion:  status.LibraryVersion,
	})
	return nil
}

// telemetryLoop publishes the detector temperature at regular
// intervals. The primary telemetry from the fiber spectrograph is the
// temperature.
func (c *CSC) telemetryLoop(ctx context.Context, device *avs.Spectrograph, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(c.TelemetryInterval)
	defer ticker.Stop()

	for {
		c.devMu.Lock()
		status, err := device.Status()
		c.devMu.Unlock()
		if err != nil {
			c.logger.Errorf("Failed to read telemetry: %v", err)
		} else {
			tel := sal.TemperatureTelemetry{
				Temperature: status.Temperature,
				Setpoint:    status.TemperatureSetpoint,
			}
			c.mu.Lock()
			c.lastTel = tel
			topic := c.topics.Telemetry(sal.TelTemperature)
			c.mu.Unlock()
			detectorTemperature.Set(tel.Temperature)
			if err := c.bus.Publish(topic, tel); err != nil {
				c.logger.Errorf("Failed to publish temperature telemetry: %v", err)
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (c *CSC) doEnable(cmd sal.Command) error {
	c.mu.Lock()
	if c.state != sal.Disabled {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("enable not allowed in state %s", state)
	}
	c.state = sal.Enabled
	c.mu.Unlock()
	c.publishSummaryState()
	return nil
}

func (c *CSC) doDisable(cmd sal.Command) error {
	c.mu.Lock()
	if c.state != sal.Enabled {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("disable not allowed in state %s", state)
	}
	c.state = sal.Disabled
	c.mu.Unlock()
	c.publishSummaryState()
	return nil
}

func (c *CSC) doStandby(cmd sal.Command) error {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()
	if state != sal.Disabled && state != sal.Fault {
		return fmt.Errorf("standby not allowed in state %s", state)
	}

	c.teardown()
	c.mu.Lock()
	c.state = sal.Standby
	c.mu.Unlock()
	c.publishSummaryState()
	return nil
}

func (c *CSC) doExpose(cmd sal.Command) error {
	c.mu.Lock()
	if c.state != sal.Enabled {
		c.mu.Unlock()
		return fmt.Errorf("expose not allowed in state %s", c.state)
	}
	device := c.device
	c.mu.Unlock()

	duration := time.Duration(cmd.Duration * float64(time.Second))
	if err := device.CheckExposeOK(duration); err != nil {
		return err
	}

	id := uuid.NewString()
	exposureState := func(status sal.ExposureState) {
		c.publishEvent(sal.EvtExposureState, sal.ExposureStateEvent{ID: id, Status: status})
	}

	dateBegin := spectrum.TAINow()
	exposureState(sal.Integrating)

	c.devMu.Lock()
	wavelength, spec, err := device.Expose(context.Background(), duration)
	c.devMu.Unlock()
	dateEnd := spectrum.TAINow()

	if err != nil {
		var rerr *avs.ReturnError
		switch {
		case errors.Is(err, avs.ErrExposureCancelled):
			exposureState(sal.Cancelled)
			exposuresTotal.WithLabelValues("cancelled").Inc()
			return err
		case errors.As(err, &rerr) && rerr.Code == avs.ErrTimeout:
			exposureState(sal.TimedOut)
			exposuresTotal.WithLabelValues("timedout").Inc()
			msg := fmt.Sprintf("timeout waiting for exposure: %v", err)
			c.fault(faultCodeExposure, msg)
			return errors.New(msg)
		default:
			exposureState(sal.Failed)
			exposuresTotal.WithLabelValues("failed").Inc()
			msg := fmt.Sprintf("failed to take exposure with fiber spectrograph: %v", err)
			c.fault(faultCodeExposure, msg)
			return errors.New(msg)
		}
	}

	c.mu.Lock()
	tel := c.lastTel
	released := c.bucket == nil
	c.mu.Unlock()

	// Teardown may have released the device and bucket while the
	// readout was finishing; the data has nowhere to go.
	if released {
		exposureState(sal.Cancelled)
		exposuresTotal.WithLabelValues("cancelled").Inc()
		return errors.New("exposure discarded: device released during readout")
	}

	exposureState(sal.Done)
	exposuresTotal.WithLabelValues("done").Inc()

	data := spectrum.Data{
		Wavelength:          wavelength,
		Spectrum:            spec,
		Duration:            duration,
		DateBegin:           dateBegin,
		DateEnd:             dateEnd,
		Type:                cmd.Type,
		Source:              cmd.Source,
		Temperature:         tel.Temperature,
		TemperatureSetpoint: tel.Setpoint,
		NPixels:             device.NPixels(),
	}
	return c.saveData(data)
}

// saveData writes the FITS file for one exposure and uploads it to the
// Large File Annex. If the upload fails the file is kept on local disk
// and a file:// URL is published instead; only losing both copies is an
// error.
func (c *CSC) saveData(data spectrum.Data) error {
	c.mu.Lock()
	cfg := c.cfg
	bucket := c.bucket
	imageNames := c.ImageNames
	c.mu.Unlock()
	if bucket == nil {
		return errors.New("exposure discarded: device released during readout")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	ids, err := imageNames.Next(ctx, 1)
	if err != nil {
		return fmt.Errorf("failed to get observation id: %v", err)
	}
	obs := spectrum.Observation{
		ObsID:      ids[0].Name,
		TelCode:    cfg.Location,
		SeqNum:     ids[0].SeqNum,
		Controller: ids[0].Controller(),
	}

	var buf bytes.Buffer
	if err := c.manager.Write(&buf, data, obs); err != nil {
		return fmt.Errorf("failed to assemble FITS file: %v", err)
	}

	key := lfa.MakeKey(Name, c.band, c.generator, data.DateBegin, ".fits")
	if err := bucket.Upload(ctx, key, bytes.NewReader(buf.Bytes()), int64(buf.Len())); err != nil {
		c.logger.Errorf("Could not upload FITS file %s to S3; trying to save to local disk: %v", key, err)
		uploadsTotal.WithLabelValues("failed").Inc()

		path := filepath.Join(c.LocalFallbackDir, bucket.Name, key)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			c.logger.Errorf("Could not save the FITS file locally, either; the data is lost: %v", err)
			return fmt.Errorf("failed to save exposure: %v", err)
		}
		if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
			c.logger.Errorf("Could not save the FITS file locally, either; the data is lost: %v", err)
			return fmt.Errorf("failed to save exposure: %v", err)
		}
		c.publishEvent(sal.EvtLargeFileObjectAvailable, sal.LargeFileObjectAvailableEvent{
			URL:       "file://" + path,
			Generator: c.generator,
		})
		return nil
	}

	uploadsTotal.WithLabelValues("ok").Inc()
	c.publishEvent(sal.EvtLargeFileObjectAvailable, sal.LargeFileObjectAvailableEvent{
		URL:       bucket.URL(key),
		Generator: c.generator,
	})
	return nil
}

func (c *CSC) doCancelExposure(cmd sal.Command) error {
	c.mu.Lock()
	if c.state != sal.Enabled {
		c.mu.Unlock()
		return fmt.Errorf("cancelExposure not allowed in state %s", c.state)
	}
	device := c.device
	c.mu.Unlock()
	return device.StopExposure()
}
