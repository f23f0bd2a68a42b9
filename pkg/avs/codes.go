package avs

import "fmt"

// ReturnCode is a status code returned by the AVS_* functions of the
// vendor AvaSpec library. The list was taken from avaspec.h and matches
// section 3.6.1 "Return Value Constants" of the Avantes Linux Library
// Manual, version 9.6.0.0.
type ReturnCode int32

const (
	Success ReturnCode = 0

	ErrInvalidParameter      ReturnCode = -1
	ErrOperationNotSupported ReturnCode = -2
	ErrDeviceNotFound        ReturnCode = -3
	ErrInvalidDeviceID       ReturnCode = -4
	ErrOperationPending      ReturnCode = -5
	ErrTimeout               ReturnCode = -6
	ErrInvalidPassword       ReturnCode = -7
	ErrInvalidMeasData       ReturnCode = -8
	ErrInvalidSize           ReturnCode = -9
	ErrInvalidPixelRange     ReturnCode = -10
	ErrInvalidIntTime        ReturnCode = -11
	ErrInvalidCombination    ReturnCode = -12
	ErrInvalidConfiguration  ReturnCode = -13
	ErrNoMeasBufferAvail     ReturnCode = -14
	ErrUnknown               ReturnCode = -15
	ErrCommunication         ReturnCode = -16
	ErrNoSpectraInRAM        ReturnCode = -17
	ErrInvalidDLLVersion     ReturnCode = -18
	ErrNoMemory              ReturnCode = -19
	ErrDLLInitialisation     ReturnCode = -20
	ErrInvalidState          ReturnCode = -21
	ErrInvalidReply          ReturnCode = -22
	ErrAccess                ReturnCode = -24

	// DeviceData check
	ErrInvalidParameterNrPixels  ReturnCode = -100
	ErrInvalidParameterADCGain   ReturnCode = -101
	ErrInvalidParameterADCOffset ReturnCode = -102

	// PrepareMeasurement check
	ErrInvalidMeasParamAvgSat2  ReturnCode = -110
	ErrInvalidMeasParamAvgRAM   ReturnCode = -111
	ErrInvalidMeasParamSyncRAM  ReturnCode = -112
	ErrInvalidMeasParamLevelRAM ReturnCode = -113
	ErrInvalidMeasParamSat2RAM  ReturnCode = -114
	ErrInvalidMeasParamFwVerRAM ReturnCode = -115
	ErrInvalidMeasParamDynDark  ReturnCode = -116

	// SetSensitivityMode check
	ErrNotSupportedBySensorType ReturnCode = -120
	ErrNotSupportedByFwVer      ReturnCode = -121
	ErrNotSupportedByFPGAVer    ReturnCode = -122

	// SuppressStrayLight check
	ErrSLCalibrationNotAvailable ReturnCode = -140
	ErrSLStartPixelNotInRange    ReturnCode = -141
	ErrSLEndPixelNotInRange      ReturnCode = -142
	ErrSLStartPixGTEndPix        ReturnCode = -143
	ErrSLMFactorOutOfRange       ReturnCode = -144

	// InvalidHandle is returned by AVS_Activate when the device could
	// not be activated. Note that it is positive.
	InvalidHandle ReturnCode = 1000
)

var returnCodeNames = map[ReturnCode]string{
	Success:                      "SUCCESS",
	ErrInvalidParameter:          "ERR_INVALID_PARAMETER",
	ErrOperationNotSupported:     "ERR_OPERATION_NOT_SUPPORTED",
	ErrDeviceNotFound:            "ERR_DEVICE_NOT_FOUND",
	ErrInvalidDeviceID:           "ERR_INVALID_DEVICE_ID",
	ErrOperationPending:          "ERR_OPERATION_PENDING",
	ErrTimeout:                   "ERR_TIMEOUT",
	ErrInvalidPassword:           "ERR_INVALID_PASSWORD",
	ErrInvalidMeasData:           "ERR_INVALID_MEAS_DATA",
	ErrInvalidSize:               "ERR_INVALID_SIZE",
	ErrInvalidPixelRange:         "ERR_INVALID_PIXEL_RANGE",
	ErrInvalidIntTime:            "ERR_INVALID_INT_TIME",
	ErrInvalidCombination:        "ERR_INVALID_COMBINATION",
	ErrInvalidConfiguration:      "ERR_INVALID_CONFIGURATION",
	ErrNoMeasBufferAvail:         "ERR_NO_MEAS_BUFFER_AVAIL",
	ErrUnknown:                   "ERR_UNKNOWN",
	ErrCommunication:             "ERR_COMMUNICATION",
	ErrNoSpectraInRAM:            "ERR_NO_SPECTRA_IN_RAM",
	ErrInvalidDLLVersion:         "ERR_INVALID_DLL_VERSION",
	ErrNoMemory:                  "ERR_NO_MEMORY",
	ErrDLLInitialisation:         "ERR_DLL_INITIALISATION",
	ErrInvalidState:              "ERR_INVALID_STATE",
	ErrInvalidReply:              "ERR_INVALID_REPLY",
	ErrAccess:                    "ERR_ACCESS",
	ErrInvalidParameterNrPixels:  "ERR_INVALID_PARAMETER_NR_PIXELS",
	ErrInvalidParameterADCGain:   "ERR_INVALID_PARAMETER_ADC_GAIN",
	ErrInvalidParameterADCOffset: "ERR_INVALID_PARAMETER_ADC_OFFSET",
	ErrInvalidMeasParamAvgSat2:   "ERR_INVALID_MEASPARAM_AVG_SAT2",
	ErrInvalidMeasParamAvgRAM:    "ERR_INVALID_MEASPARAM_AVG_RAM",
	ErrInvalidMeasParamSyncRAM:   "ERR_INVALID_MEASPARAM_SYNC_RAM",
	ErrInvalidMeasParamLevelRAM:  "ERR_INVALID_MEASPARAM_LEVEL_RAM",
	ErrInvalidMeasParamSat2RAM:   "ERR_INVALID_MEASPARAM_SAT2_RAM",
	ErrInvalidMeasParamFwVerRAM:  "ERR_INVALID_MEASPARAM_FWVER_RAM",
	ErrInvalidMeasParamDynDark:   "ERR_INVALID_MEASPARAM_DYNDARK",
	ErrNotSupportedBySensorType:  "ERR_NOT_SUPPORTED_BY_SENSOR_TYPE",
	ErrNotSupportedByFwVer:       "ERR_NOT_SUPPORTED_BY_FW_VER",
	ErrNotSupportedByFPGAVer:     "ERR_NOT_SUPPORTED_BY_FPGA_VER",
	ErrSLCalibrationNotAvailable: "ERR_SL_CALIBRATION_NOT_AVAILABLE",
	ErrSLStartPixelNotInRange:    "ERR_SL_STARTPIXEL_NOT_IN_RANGE",
	ErrSLEndPixelNotInRange:      "ERR_SL_ENDPIXEL_NOT_IN_RANGE",
	ErrSLStartPixGTEndPix:        "ERR_SL_STARTPIX_GT_ENDPIX",
	ErrSLMFactorOutOfRange:       "ERR_SL_MFACTOR_OUT_OF_RANGE",
	InvalidHandle:                "INVALID_HANDLE",
}

// Known reports whether the code appears in the vendor header list.
func (c ReturnCode) Known() bool {
	_, ok := returnCodeNames[c]
	return ok
}

func (c ReturnCode) String() string {
	if name, ok := returnCodeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("ReturnCode(%d)", int32(c))
}

// ReturnError is the error returned when an AVS_* function reports a
// non-success code. What identifies the vendor call that failed.
type ReturnError struct {
	Code ReturnCode
	What string
}

func (e *ReturnError) Error() string {
	if !e.Code.Known() {
		return fmt.Sprintf("unknown error (%d) calling `%s`; consult the Avantes documentation and extend the return code list", int32(e.Code), e.What)
	}
	if e.Code == ErrInvalidSize {
		return fmt.Sprintf("fatal error %s calling `%s`: allocated size too small for data", e.Code, e.What)
	}
	return fmt.Sprintf("error calling `%s` with return code %s", e.What, e.Code)
}

// assertCode converts a negative vendor return code into a ReturnError.
func assertCode(code ReturnCode, what string) error {
	if code < 0 {
		return &ReturnError{Code: code, What: what}
	}
	return nil
}
