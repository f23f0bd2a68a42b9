package spectrum

import (
	"bytes"
	"testing"
	"time"

	"github.com/astrogo/fitsio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testData(n int) Data {
	wavelength := make([]float64, n)
	spec := make([]float64, n)
	for i := range wavelength {
		wavelength[i] = float64(i)
		spec[i] = float64(i) * 2
	}
	begin := time.Date(2026, 8, 20, 3, 14, 15, 0, time.UTC)
	return Data{
		Wavelength:          wavelength,
		Spectrum:            spec,
		Duration:            2 * time.Second,
		DateBegin:           begin,
		DateEnd:             begin.Add(2 * time.Second),
		Type:                "science",
		Source:              "lamp",
		Temperature:         5.0,
		TemperatureSetpoint: 5.0,
		NPixels:             n,
	}
}

func testObservation() Observation {
	return Observation{
		ObsID:      "CC_O_20260820_000031",
		TelCode:    "CC",
		SeqNum:     31,
		Controller: "CC",
	}
}

func TestWriteFITS(t *testing.T) {
	const n = 16
	mgr := Manager{
		Instrument: "FiberSpectrograph.Red",
		Origin:     "fiberspectrographd",
		Serial:     "1606190U1",
	}

	var buf bytes.Buffer
	require.NoError(t, mgr.Write(&buf, testData(n), testObservation()))

	f, err := fitsio.Open(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	require.Equal(t, 2, len(f.HDUs()))

	// Primary HDU: the spectrum with identification and WCS cards.
	primary := f.HDU(0)
	hdr := primary.Header()

	check := func(name string, want any) {
		card := hdr.Get(name)
		require.NotNil(t, card, "missing card %s", name)
		assert.EqualValues(t, want, card.Value, "card %s", name)
	}
	check("FORMAT_V", FormatVersion)
	check("INSTRUME", "FiberSpectrograph.Red")
	check("ORIGIN", "fiberspectrographd")
	check("SERIAL", "1606190U1")
	check("DETSIZE", n)
	check("DATE-BEG", "2026-08-20T03:14:15.000")
	check("DATE-END", "2026-08-20T03:14:17.000")
	check("EXPTIME", 2.0)
	check("TIMESYS", "TAI")
	check("IMGTYPE", "science")
	check("SOURCE", "lamp")
	check("TEMP_SET", 5.0)
	check("CCDTEMP", 5.0)
	check("OBSID", "CC_O_20260820_000031")
	check("TELCODE", "CC")
	check("SEQNUM", 31)
	check("CONTRLLR", "CC")

	// -TAB WCS cards must reference the wavelength table extension.
	check("WCSAXES", 1)
	check("CTYPE1", "WAVE-TAB")
	check("CUNIT1", "nm")
	check("PV1_1", 1)
	check("PS1_0", "WCS-TAB")
	check("PS1_1", "wavelength")

	spec := make([]float64, n)
	img, ok := primary.(fitsio.Image)
	require.True(t, ok)
	require.NoError(t, img.Read(&spec))
	require.Len(t, spec, n)
	assert.Equal(t, 0.0, spec[0])
	assert.Equal(t, 2.0, spec[1])
	assert.Equal(t, float64(2*(n-1)), spec[n-1])
}

func TestWriteFITSWavelengthTable(t *testing.T) {
	const n = 16
	mgr := Manager{Instrument: "FiberSpectrograph.Blue", Origin: "test", Serial: "1606192U1"}

	var buf bytes.Buffer
	require.NoError(t, mgr.Write(&buf, testData(n), testObservation()))

	f, err := fitsio.Open(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	tbl, ok := f.HDU(1).(*fitsio.Table)
	require.True(t, ok, "second HDU must be a binary table")
	assert.Equal(t, "WCS-TAB", tbl.Name())
	assert.EqualValues(t, 1, tbl.Header().Get("EXTVER").Value)
	// the wavelength column is variable-length (Q descriptor)
	assert.EqualValues(t, "QD", tbl.Header().Get("TFORM1").Value)
	require.EqualValues(t, 1, tbl.NumRows())

	rows, err := tbl.Read(0, 1)
	require.NoError(t, err)
	defer rows.Close()
	require.True(t, rows.Next())

	var wavelength []float64
	require.NoError(t, rows.Scan(&wavelength))
	require.Len(t, wavelength, n)
	assert.Equal(t, 0.0, wavelength[0])
	assert.Equal(t, float64(n-1), wavelength[n-1])
}

func TestTAINow(t *testing.T) {
	utc := time.Now().UTC()
	tai := TAINow()
	diff := tai.Sub(utc)
	assert.GreaterOrEqual(t, diff, 36*time.Second)
	assert.LessOrEqual(t, diff, 38*time.Second)
}
