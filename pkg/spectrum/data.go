// Package spectrum packages exposure results from the fiber
// spectrograph into FITS files with a tabular (WCS-TAB) wavelength
// solution.
package spectrum

import "time"

// FormatVersion is the version of the FITS file layout produced by
// Manager, written as the FORMAT_V header card.
const FormatVersion = 1

// taiOffset is the current TAI-UTC offset. There has been no new leap
// second since 2017-01-01.
const taiOffset = 37 * time.Second

// TAINow returns the current time on the TAI scale.
func TAINow() time.Time {
	return time.Now().UTC().Add(taiOffset)
}

// Data holds the data and metadata of one fiber spectrograph exposure.
type Data struct {
	// Wavelength is the per-pixel wavelength solution in nm.
	Wavelength []float64
	// Spectrum is the measured flux in instrumental units.
	Spectrum []float64
	// Duration is the exposure integration time.
	Duration time.Duration
	// DateBegin and DateEnd bracket the exposure, on the TAI scale.
	DateBegin time.Time
	DateEnd   time.Time
	// Type is the measurement type (for example "science" or "dark").
	Type string
	// Source is the light source that was measured.
	Source string
	// Temperature and TemperatureSetpoint are the detector temperature
	// and its set point in degrees Celsius at readout time.
	Temperature         float64
	TemperatureSetpoint float64
	// NPixels is the detector pixel count.
	NPixels int
}

// Observation identifies the exposure within the observatory-wide
// image naming scheme; its fields become header cards at save time.
type Observation struct {
	ObsID      string // OBSID
	TelCode    string // TELCODE
	SeqNum     int    // SEQNUM
	Controller string // CONTRLLR
}
