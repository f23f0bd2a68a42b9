package spectrum

import (
	"fmt"
	"io"

	"github.com/astrogo/fitsio"
)

// FITS time format (no timezone suffix; TIMESYS names the scale).
const fitsTimeFormat = "2006-01-02T15:04:05.000"

// Names tying the primary header WCS cards to the lookup table
// extension. PS1_0 must match the EXTNAME, PV1_1 the EXTVER, and PS1_1
// the column name.
const (
	wcsTableName   = "WCS-TAB"
	wcsTableVer    = 1
	wcsColumnName  = "wavelength"
	wavelengthUnit = "nm"
)

// Manager assembles FITS files from fiber spectrograph exposures.
type Manager struct {
	// Instrument is the name of the instrument taking the data, for
	// example "FiberSpectrograph.Red".
	Instrument string
	// Origin is the name of the program that produced the data.
	Origin string
	// Serial is the device serial number.
	Serial string
}

// Write serializes one exposure as a two-HDU FITS file: the spectrum as
// the primary image, and the wavelength solution as a single-row binary
// table referenced from the primary header via the -TAB WCS convention.
func (m Manager) Write(w io.Writer, data Data, obs Observation) error {
	f, err := fitsio.Create(w)
	if err != nil {
		return fmt.Errorf("failed to create FITS file: %v", err)
	}
	defer f.Close()

	img := fitsio.NewImage(-64, []int{len(data.Spectrum)})
	defer img.Close()

	if err := img.Header().Append(m.headerCards(data, obs)...); err != nil {
		return fmt.Errorf("failed to build FITS header: %v", err)
	}
	if err := img.Write(&data.Spectrum); err != nil {
		return fmt.Errorf("failed to write spectrum HDU: %v", err)
	}
	if err := f.Write(img); err != nil {
		return fmt.Errorf("failed to write primary HDU: %v", err)
	}

	tbl, err := m.wavelengthTable(data)
	if err != nil {
		return err
	}
	defer tbl.Close()
	if err := f.Write(tbl); err != nil {
		return fmt.Errorf("failed to write wavelength HDU: %v", err)
	}
	return nil
}

func (m Manager) headerCards(data Data, obs Observation) []fitsio.Card {
	return []fitsio.Card{
		{Name: "FORMAT_V", Value: FormatVersion, Comment: "Spectrograph file format version"},
		{Name: "INSTRUME", Value: m.Instrument, Comment: "Instrument name"},
		{Name: "ORIGIN", Value: m.Origin, Comment: "Program that produced this file"},
		{Name: "SERIAL", Value: m.Serial, Comment: "Device serial number"},
		{Name: "DETSIZE", Value: data.NPixels, Comment: "Detector pixel count"},
		{Name: "DATE-BEG", Value: data.DateBegin.Format(fitsTimeFormat), Comment: "Exposure start time (TAI)"},
		{Name: "DATE-END", Value: data.DateEnd.Format(fitsTimeFormat), Comment: "Exposure end time (TAI)"},
		{Name: "EXPTIME", Value: data.Duration.Seconds(), Comment: "Exposure duration (s)"},
		{Name: "TIMESYS", Value: "TAI", Comment: "Time scale of DATE-BEG/DATE-END"},
		{Name: "IMGTYPE", Value: data.Type, Comment: "Measurement type"},
		{Name: "SOURCE", Value: data.Source, Comment: "Light source measured"},
		{Name: "TEMP_SET", Value: data.TemperatureSetpoint, Comment: "Detector temperature set point (C)"},
		{Name: "CCDTEMP", Value: data.Temperature, Comment: "Detector temperature (C)"},
		{Name: "OBSID", Value: obs.ObsID, Comment: "Observation id"},
		{Name: "TELCODE", Value: obs.TelCode, Comment: "Telescope location code"},
		{Name: "SEQNUM", Value: obs.SeqNum, Comment: "Observation sequence number"},
		{Name: "CONTRLLR", Value: obs.Controller, Comment: "Controller code from the obs id"},

		// -TAB WCS: wavelength by lookup table in the WCS-TAB extension.
		{Name: "WCSAXES", Value: 1, Comment: "Number of WCS axes"},
		{Name: "CRPIX1", Value: 0.0, Comment: "Reference pixel on axis 1"},
		{Name: "CRVAL1", Value: 0.0, Comment: "Value at ref. pixel on axis 1"},
		{Name: "CNAME1", Value: "Wavelength", Comment: "Axis name for labeling purposes"},
		{Name: "CTYPE1", Value: "WAVE-TAB", Comment: "Wavelength axis by lookup table"},
		{Name: "CDELT1", Value: 1.0, Comment: "Pixel size on axis 1"},
		{Name: "CUNIT1", Value: wavelengthUnit, Comment: "Units for axis 1"},
		{Name: "PV1_1", Value: wcsTableVer, Comment: "EXTVER of bintable extension for -TAB arrays"},
		{Name: "PS1_0", Value: wcsTableName, Comment: "EXTNAME of bintable extension for -TAB arrays"},
		{Name: "PS1_1", Value: wcsColumnName, Comment: "Wavelength coordinate array"},
	}
}

func (m Manager) wavelengthTable(data Data) (*fitsio.Table, error) {
	// The pixel count is only known at runtime, so the wavelength array
	// is stored as a variable-length (Q descriptor) column.
	tbl, err := fitsio.NewTable(wcsTableName, []fitsio.Column{
		{Name: wcsColumnName, Format: "QD", Unit: wavelengthUnit},
	}, fitsio.BINARY_TBL)
	if err != nil {
		return nil, fmt.Errorf("failed to create wavelength table: %v", err)
	}

	if err := tbl.Header().Append(fitsio.Card{
		Name: "EXTVER", Value: wcsTableVer, Comment: "Referenced by PV1_1 in the primary HDU",
	}); err != nil {
		tbl.Close()
		return nil, fmt.Errorf("failed to set wavelength table version: %v", err)
	}

	// A single row holding the whole wavelength array.
	row := struct {
		Wavelength []float64 `fits:"wavelength"`
	}{Wavelength: data.Wavelength}
	if err := tbl.Write(&row); err != nil {
		tbl.Close()
		return nil, fmt.Errorf("failed to write wavelength row: %v", err)
	}
	return tbl, nil
}
