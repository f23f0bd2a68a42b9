//go:build libavs

package avs

// Real binding against the vendor AvaSpec library. Requires libavs.so
// 0.2.0 installed (the vendor packages put it in /usr/local/lib) and a
// build with -tags libavs. Everything else in this package, including
// the tests, builds without it.

/*
#cgo LDFLAGS: -L/usr/local/lib -lavs

#include <stdlib.h>
#include <string.h>

typedef long AvsHandle;

#pragma pack(push, 1)
typedef struct {
	char SerialNumber[10];
	char UserFriendlyName[64];
	unsigned char Status;
} AvsIdentityType;

typedef struct {
	unsigned short m_StartPixel;
	unsigned short m_StopPixel;
	float m_IntegrationTime;
	unsigned int m_IntegrationDelay;
	unsigned int m_NrAverages;
	unsigned char m_CorDynDark_m_Enable;
	unsigned char m_CorDynDark_m_ForgetPercentage;
	unsigned short m_Smoothing_m_SmoothPix;
	unsigned char m_Smoothing_m_SmoothModel;
	unsigned char m_SaturationDetection;
	unsigned char m_Trigger_m_Mode;
	unsigned char m_Trigger_m_Source;
	unsigned char m_Trigger_m_SourceType;
	unsigned short m_Control_m_StrobeControl;
	unsigned int m_Control_m_LaserDelay;
	unsigned int m_Control_m_LaserWidth;
	float m_Control_m_LaserWaveLength;
	unsigned short m_Control_m_StoreToRam;
} MeasConfigType;
#pragma pack(pop)

// Offsets into the 63484-byte DeviceConfigType blob for the handful of
// fields this service reads; see the Avantes Linux Library Manual.
#define DEVCONFIG_SIZE 63484
#define DEVCONFIG_USERID_OFF 4
#define DEVCONFIG_USERID_LEN 64
#define DEVCONFIG_NRPIXELS_OFF 69
#define DEVCONFIG_TEMP3FIT_OFF 62216
#define DEVCONFIG_TEC_ENABLE_OFF 62236
#define DEVCONFIG_TEC_SETPOINT_OFF 62237

extern int AVS_Init(long a_Port);
extern int AVS_Done(void);
extern int AVS_UpdateUSBDevices(void);
extern int AVS_GetList(unsigned int a_ListSize, unsigned int *a_pRequiredSize, AvsIdentityType *a_pList);
extern AvsHandle AVS_Activate(AvsIdentityType *a_pDeviceId);
extern unsigned char AVS_Deactivate(AvsHandle a_hDevice);
extern int AVS_GetNumPixels(AvsHandle a_hDevice, unsigned short *a_pNumPixels);
extern int AVS_GetParameter(AvsHandle a_hDevice, unsigned int a_Size, unsigned int *a_pRequiredSize, unsigned char *a_pData);
extern int AVS_GetVersionInfo(AvsHandle a_hDevice, char *a_pFPGAVersion, char *a_pFirmwareVersion, char *a_pDLLVersion);
extern int AVS_GetAnalogIn(AvsHandle a_hDevice, unsigned char a_AnalogInId, float *a_pAnalogIn);
extern int AVS_PrepareMeasure(AvsHandle a_hDevice, MeasConfigType *a_pMeasConfig);
extern int AVS_Measure(AvsHandle a_hDevice, void *a_hWnd, short a_Nmsr);
extern int AVS_PollScan(AvsHandle a_hDevice);
extern int AVS_GetScopeData(AvsHandle a_hDevice, unsigned int *a_pTimeLabel, double *a_pSpectrum);
extern int AVS_GetLambda(AvsHandle a_hDevice, double *a_pWaveLength);
extern int AVS_StopMeasure(AvsHandle a_hDevice);
*/
import "C"

import (
	"encoding/binary"
	"math"
	"strings"
	"unsafe"
)

// vendorLibrary implements Library on top of libavs via cgo.
type vendorLibrary struct {
	// nPixels is cached by GetNumPixels for sizing readout buffers.
	nPixels int
}

// OpenLibrary returns the real vendor library binding.
func OpenLibrary() (Library, error) {
	return &vendorLibrary{}, nil
}

func cString(b []byte) string {
	s := string(b)
	if i := strings.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	return s
}

func toCIdentity(id Identity) C.AvsIdentityType {
	var cid C.AvsIdentityType
	serial := []byte(id.SerialNumber)
	for i := 0; i < len(serial) && i < SerialLen; i++ {
		cid.SerialNumber[i] = C.char(serial[i])
	}
	name := []byte(id.UserFriendlyName)
	for i := 0; i < len(name) && i < UserIDLen; i++ {
		cid.UserFriendlyName[i] = C.char(name[i])
	}
	cid.Status = C.uchar(id.Status)
	return cid
}

func fromCIdentity(cid C.AvsIdentityType) Identity {
	serial := make([]byte, SerialLen)
	name := make([]byte, UserIDLen)
	for i := range serial {
		serial[i] = byte(cid.SerialNumber[i])
	}
	for i := range name {
		name[i] = byte(cid.UserFriendlyName[i])
	}
	return Identity{
		SerialNumber:     cString(serial),
		UserFriendlyName: cString(name),
		Status:           byte(cid.Status),
	}
}

func (l *vendorLibrary) Init(port int) error {
	return assertCode(ReturnCode(C.AVS_Init(C.long(port))), "Init")
}

func (l *vendorLibrary) Done() error {
	return assertCode(ReturnCode(C.AVS_Done()), "Done")
}

func (l *vendorLibrary) UpdateUSBDevices() (int, error) {
	n := C.AVS_UpdateUSBDevices()
	if err := assertCode(ReturnCode(n), "UpdateUSBDevices"); err != nil {
		return 0, err
	}
	return int(n), nil
}

func (l *vendorLibrary) GetList(n int) ([]Identity, error) {
	clist := make([]C.AvsIdentityType, n)
	required := C.uint(uintptr(n) * unsafe.Sizeof(clist[0]))
	code := C.AVS_GetList(required, &required, &clist[0])
	if err := assertCode(ReturnCode(code), "GetList (device list)"); err != nil {
		return nil, err
	}
	list := make([]Identity, 0, n)
	for i := 0; i < n; i++ {
		list = append(list, fromCIdentity(clist[i]))
	}
	return list, nil
}

func (l *vendorLibrary) Activate(id Identity) (Handle, error) {
	cid := toCIdentity(id)
	h := C.AVS_Activate(&cid)
	if err := assertCode(ReturnCode(h), "Activate"); err != nil {
		return 0, err
	}
	return Handle(h), nil
}

func (l *vendorLibrary) Deactivate(h Handle) bool {
	return C.AVS_Deactivate(C.AvsHandle(h)) != 0
}

func (l *vendorLibrary) GetNumPixels(h Handle) (int, error) {
	var n C.ushort
	code := C.AVS_GetNumPixels(C.AvsHandle(h), &n)
	if err := assertCode(ReturnCode(code), "GetNumPixels"); err != nil {
		return 0, err
	}
	l.nPixels = int(n)
	return int(n), nil
}

func (l *vendorLibrary) GetParameter(h Handle) (DeviceConfig, error) {
	buf := make([]byte, C.DEVCONFIG_SIZE)
	required := C.uint(len(buf))
	code := C.AVS_GetParameter(C.AvsHandle(h), C.uint(len(buf)), &required,
		(*C.uchar)(unsafe.Pointer(&buf[0])))
	if err := assertCode(ReturnCode(code), "GetParameter"); err != nil {
		return DeviceConfig{}, err
	}

	var cfg DeviceConfig
	cfg.UserFriendlyID = cString(buf[C.DEVCONFIG_USERID_OFF : C.DEVCONFIG_USERID_OFF+C.DEVCONFIG_USERID_LEN])
	cfg.NrPixels = binary.LittleEndian.Uint16(buf[C.DEVCONFIG_NRPIXELS_OFF:])
	for i := range cfg.TemperatureFit {
		bits := binary.LittleEndian.Uint32(buf[int(C.DEVCONFIG_TEMP3FIT_OFF)+4*i:])
		cfg.TemperatureFit[i] = math.Float32frombits(bits)
	}
	cfg.TecEnabled = buf[C.DEVCONFIG_TEC_ENABLE_OFF] != 0
	cfg.TecSetpoint = math.Float32frombits(binary.LittleEndian.Uint32(buf[C.DEVCONFIG_TEC_SETPOINT_OFF:]))
	return cfg, nil
}

func (l *vendorLibrary) GetVersionInfo(h Handle) (VersionInfo, error) {
	var fpga, firmware, library [16]C.char
	code := C.AVS_GetVersionInfo(C.AvsHandle(h), &fpga[0], &firmware[0], &library[0])
	if err := assertCode(ReturnCode(code), "GetVersionInfo"); err != nil {
		return VersionInfo{}, err
	}
	decode := func(v [16]C.char) string {
		b := make([]byte, len(v))
		for i := range v {
			b[i] = byte(v[i])
		}
		return cString(b)
	}
	return VersionInfo{
		FPGA:     decode(fpga),
		Firmware: decode(firmware),
		Library:  decode(library),
	}, nil
}

func (l *vendorLibrary) GetAnalogIn(h Handle, input int) (float32, error) {
	var v C.float
	code := C.AVS_GetAnalogIn(C.AvsHandle(h), C.uchar(input), &v)
	if err := assertCode(ReturnCode(code), "GetAnalogIn"); err != nil {
		return 0, err
	}
	return float32(v), nil
}

func (l *vendorLibrary) PrepareMeasure(h Handle, cfg MeasureConfig) error {
	ccfg := C.MeasConfigType{
		m_StartPixel:                    C.ushort(cfg.StartPixel),
		m_StopPixel:                     C.ushort(cfg.StopPixel),
		m_IntegrationTime:               C.float(cfg.IntegrationTime),
		m_IntegrationDelay:              C.uint(cfg.IntegrationDelay),
		m_NrAverages:                    C.uint(cfg.NrAverages),
		m_CorDynDark_m_Enable:           C.uchar(cfg.DynamicDarkEnable),
		m_CorDynDark_m_ForgetPercentage: C.uchar(cfg.DynamicDarkForgetPercentage),
		m_Smoothing_m_SmoothPix:         C.ushort(cfg.SmoothPix),
		m_Smoothing_m_SmoothModel:       C.uchar(cfg.SmoothModel),
		m_SaturationDetection:           C.uchar(cfg.SaturationDetection),
		m_Trigger_m_Mode:                C.uchar(cfg.TriggerMode),
		m_Trigger_m_Source:              C.uchar(cfg.TriggerSource),
		m_Trigger_m_SourceType:          C.uchar(cfg.TriggerSourceType),
		m_Control_m_StrobeControl:       C.ushort(cfg.StrobeControl),
		m_Control_m_LaserDelay:          C.uint(cfg.LaserDelay),
		m_Control_m_LaserWidth:          C.uint(cfg.LaserWidth),
		m_Control_m_LaserWaveLength:     C.float(cfg.LaserWavelength),
		m_Control_m_StoreToRam:          C.ushort(cfg.StoreToRAM),
	}
	return assertCode(ReturnCode(C.AVS_PrepareMeasure(C.AvsHandle(h), &ccfg)), "PrepareMeasure")
}

func (l *vendorLibrary) Measure(h Handle, nmsr int16) error {
	// No window callback; readout is polled.
	return assertCode(ReturnCode(C.AVS_Measure(C.AvsHandle(h), nil, C.short(nmsr))), "Measure")
}

func (l *vendorLibrary) PollScan(h Handle) (bool, error) {
	code := C.AVS_PollScan(C.AvsHandle(h))
	if err := assertCode(ReturnCode(code), "PollScan"); err != nil {
		return false, err
	}
	return code == 1, nil
}

func (l *vendorLibrary) GetScopeData(h Handle) (uint32, []float64, error) {
	var timeLabel C.uint
	spectrum := make([]float64, l.nPixels)
	code := C.AVS_GetScopeData(C.AvsHandle(h), &timeLabel, (*C.double)(unsafe.Pointer(&spectrum[0])))
	if err := assertCode(ReturnCode(code), "GetScopeData"); err != nil {
		return 0, nil, err
	}
	return uint32(timeLabel), spectrum, nil
}

func (l *vendorLibrary) GetLambda(h Handle) ([]float64, error) {
	wavelength := make([]float64, l.nPixels)
	code := C.AVS_GetLambda(C.AvsHandle(h), (*C.double)(unsafe.Pointer(&wavelength[0])))
	if err := assertCode(ReturnCode(code), "GetLambda"); err != nil {
		return nil, err
	}
	return wavelength, nil
}

func (l *vendorLibrary) StopMeasure(h Handle) error {
	return assertCode(ReturnCode(C.AVS_StopMeasure(C.AvsHandle(h))), "StopMeasure")
}
