// Package sal binds the CSC to the observatory pub/sub middleware. It
// defines the topic scheme and message payloads, and provides an MQTT
// transport plus an in-memory one for tests and simulation.
package sal

import "fmt"

// SummaryState is the CSC summary state, with the middleware's standard
// numeric values.
type SummaryState int

const (
	Disabled SummaryState = 1
	Enabled  SummaryState = 2
	Fault    SummaryState = 3
	Offline  SummaryState = 4
	Standby  SummaryState = 5
)

func (s SummaryState) String() string {
	switch s {
	case Disabled:
		return "DISABLED"
	case Enabled:
		return "ENABLED"
	case Fault:
		return "FAULT"
	case Offline:
		return "OFFLINE"
	case Standby:
		return "STANDBY"
	}
	return fmt.Sprintf("SummaryState(%d)", int(s))
}

// ExposureState reports the progress of an exposure command.
type ExposureState int

const (
	Integrating ExposureState = 1
	Done        ExposureState = 2
	Failed      ExposureState = 3
	Cancelled   ExposureState = 4
	TimedOut    ExposureState = 5
)

func (s ExposureState) String() string {
	switch s {
	case Integrating:
		return "INTEGRATING"
	case Done:
		return "DONE"
	case Failed:
		return "FAILED"
	case Cancelled:
		return "CANCELLED"
	case TimedOut:
		return "TIMEDOUT"
	}
	return fmt.Sprintf("ExposureState(%d)", int(s))
}

// Command names accepted by the CSC.
const (
	CmdStart          = "start"
	CmdEnable         = "enable"
	CmdDisable        = "disable"
	CmdStandby        = "standby"
	CmdExpose         = "expose"
	CmdCancelExposure = "cancelExposure"
)

// Event and telemetry names published by the CSC.
const (
	EvtSummaryState             = "summaryState"
	EvtDeviceInfo               = "deviceInfo"
	EvtExposureState            = "exposureState"
	EvtErrorCode                = "errorCode"
	EvtLargeFileObjectAvailable = "largeFileObjectAvailable"
	TelTemperature              = "temperature"
)

// Command is the payload published to a cmd topic. Fields not used by a
// given command are left at their zero values.
type Command struct {
	// ID is a caller-chosen id echoed in the Ack.
	ID string `json:"id"`
	// Override names a configuration override file (start).
	Override string `json:"override,omitempty"`
	// Duration is the integration time in seconds (expose).
	Duration float64 `json:"duration,omitempty"`
	// Type is the measurement type (expose).
	Type string `json:"type,omitempty"`
	// Source is the light source being measured (expose).
	Source string `json:"source,omitempty"`
}

// Ack is the reply to a Command, published on the matching ack topic.
type Ack struct {
	ID    string `json:"id"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// SummaryStateEvent reports a summary state change.
type SummaryStateEvent struct {
	SummaryState SummaryState `json:"summaryState"`
}

// DeviceInfoEvent reports static device information after connecting.
type DeviceInfoEvent struct {
	NPixels         int    `json:"npixels"`
	FPGAVersion     string `json:"fpgaVersion"`
	FirmwareVersion string `json:"firmwareVersion"`
	LibraryVersion  string `json:"libraryVersion"`
}

// ExposureStateEvent reports exposure progress. ID identifies the
// exposure across its state changes.
type ExposureStateEvent struct {
	ID     string        `json:"id"`
	Status ExposureState `json:"status"`
}

// ErrorCodeEvent is published when the CSC faults.
type ErrorCodeEvent struct {
	ErrorCode   int    `json:"errorCode"`
	ErrorReport string `json:"errorReport"`
}

// LargeFileObjectAvailableEvent announces a file uploaded to the LFA.
type LargeFileObjectAvailableEvent struct {
	URL       string `json:"url"`
	Generator string `json:"generator"`
}

// TemperatureTelemetry is the periodic detector temperature sample.
type TemperatureTelemetry struct {
	// Temperature and Setpoint are in degrees Celsius.
	Temperature float64 `json:"temperature"`
	Setpoint    float64 `json:"setpoint"`
}
