package avs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReturnErrorMessages(t *testing.T) {
	tests := []struct {
		name     string
		err      *ReturnError
		contains string
	}{
		{
			name:     "Known code",
			err:      &ReturnError{Code: ErrDeviceNotFound, What: "Activate"},
			contains: "error calling `Activate` with return code ERR_DEVICE_NOT_FOUND",
		},
		{
			name:     "Invalid size is fatal",
			err:      &ReturnError{Code: ErrInvalidSize, What: "GetList (device list)"},
			contains: "allocated size too small for data",
		},
		{
			name:     "Unknown code",
			err:      &ReturnError{Code: ReturnCode(-999), What: "PollScan"},
			contains: "unknown error (-999) calling `PollScan`",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Contains(t, tc.err.Error(), tc.contains)
		})
	}
}

func TestAssertCode(t *testing.T) {
	assert.NoError(t, assertCode(Success, "Init"))
	assert.NoError(t, assertCode(ReturnCode(5), "UpdateUSBDevices"))

	err := assertCode(ErrTimeout, "Measure")
	assert.Error(t, err)
	var rerr *ReturnError
	assert.ErrorAs(t, err, &rerr)
	assert.Equal(t, ErrTimeout, rerr.Code)
	assert.Equal(t, "Measure", rerr.What)
}

func TestReturnCodeString(t *testing.T) {
	assert.Equal(t, "SUCCESS", Success.String())
	assert.Equal(t, "ERR_INVALID_INT_TIME", ErrInvalidIntTime.String())
	assert.Equal(t, "INVALID_HANDLE", InvalidHandle.String())
	assert.Equal(t, "ReturnCode(-77)", ReturnCode(-77).String())
}
