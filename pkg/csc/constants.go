// Package csc implements the fiber spectrograph control component: a
// standby/disabled/enabled/fault state machine that owns the device
// controller, publishes telemetry and events on the middleware, and
// saves exposures to the Large File Annex.
package csc

import "fmt"

// Name is the component name on the middleware.
const Name = "FiberSpectrograph"

// SalIndex selects which spectrograph a CSC instance controls.
type SalIndex int

const (
	// IndexUnknown means "use the only attached spectrograph".
	IndexUnknown SalIndex = -1
	IndexBlue    SalIndex = 1
	IndexRed     SalIndex = 2
	IndexBroad   SalIndex = 3
)

// bandNames is a short name describing the range of each spectrograph.
var bandNames = map[SalIndex]string{
	IndexUnknown: "unknown",
	IndexBlue:    "Blue",
	IndexRed:     "Red",
	IndexBroad:   "Broad",
}

// serialNumbers are the fixed device serial numbers per index.
var serialNumbers = map[SalIndex]string{
	IndexUnknown: "",
	IndexBlue:    "1606192U1",
	IndexRed:     "1606190U1",
	IndexBroad:   "1606191U1",
}

// Valid reports whether the index is a known spectrograph selector.
func (i SalIndex) Valid() bool {
	_, ok := bandNames[i]
	return ok
}

// Band returns the short band name, for example "Red".
func (i SalIndex) Band() string { return bandNames[i] }

// SerialNumber returns the device serial number, empty for
// IndexUnknown.
func (i SalIndex) SerialNumber() string { return serialNumbers[i] }

func (i SalIndex) String() string {
	if name, ok := bandNames[i]; ok {
		return fmt.Sprintf("%s(%d)", name, int(i))
	}
	return fmt.Sprintf("SalIndex(%d)", int(i))
}

// SimulationMode is a bitmask of subsystems to simulate.
type SimulationMode int

const (
	// SimulateSpectrograph replaces the vendor library with the
	// deterministic simulator.
	SimulateSpectrograph SimulationMode = 1
	// SimulateS3 replaces the Large File Annex with local storage.
	SimulateS3 SimulationMode = 2
)

// Fault codes published in the errorCode event.
const (
	// faultCodeConnect: error connecting to the spectrograph.
	faultCodeConnect = 1
	// faultCodeExposure: error taking an exposure.
	faultCodeExposure = 20
)
