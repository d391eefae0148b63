package wire

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/LoomDeBWiles/cof-tester-sub000/api"
)

// TCP stream command codes.
const (
	CmdReadFT         byte = 0x00
	CmdReadCalInfo    byte = 0x01
	CmdWriteTransform byte = 0x02
)

// Transform units, fixed by the protocol.
const (
	TransformDistMM      byte = 3
	TransformAngleDegree byte = 1
)

// DefaultTcpPort is the default port for the TCP stream command channel.
const DefaultTcpPort = 49151

// StreamResponseHeader is the fixed magic value in a READCALINFO response.
const StreamResponseHeader uint16 = 0x1234

const (
	CalInfoRequestSize  = 20
	CalInfoResponseSize = 24
	TransformRequestSize = 20
	ReadFTRequestSize    = 20
)

// BuildCalInfoRequest returns the 20-byte READCALINFO request: a zeroed
// frame with the command byte set.
func BuildCalInfoRequest() [CalInfoRequestSize]byte {
	var req [CalInfoRequestSize]byte
	req[0] = CmdReadCalInfo
	return req
}

// DecodeCalInfoResponse parses the 24-byte READCALINFO response:
// header:u16, forceUnits:u8, torqueUnits:u8, countsPerForce:u32,
// countsPerTorque:u32, six u16 scale factors (unused here), big-endian.
func DecodeCalInfoResponse(data []byte) (api.CalibrationInfo, error) {
	if len(data) != CalInfoResponseSize {
		return api.CalibrationInfo{}, api.Wrap(api.ErrMalformedPacket, nil,
			fmt.Sprintf("invalid calibration response size: expected %d, got %d", CalInfoResponseSize, len(data)))
	}
	header := binary.BigEndian.Uint16(data[0:2])
	if header != StreamResponseHeader {
		return api.CalibrationInfo{}, api.Wrap(api.ErrInvalidHeader, nil,
			fmt.Sprintf("expected header 0x%04X, got 0x%04X", StreamResponseHeader, header))
	}
	forceUnits := data[2]
	torqueUnits := data[3]
	cpf := binary.BigEndian.Uint32(data[4:8])
	cpt := binary.BigEndian.Uint32(data[8:12])

	cal, err := api.NewCalibrationInfo(float64(cpf), float64(cpt))
	if err != nil {
		return api.CalibrationInfo{}, api.Wrap(api.ErrCalibrationParse, err, "")
	}
	cal.ForceUnitsCode = int(forceUnits)
	cal.TorqueUnitsCode = int(torqueUnits)
	cal.HasForceUnits = true
	cal.HasTorqueUnits = true
	return cal, nil
}

// ToolTransform is the six tool-offset parameters forwarded verbatim to the
// sensor; this module does not model tool-transform kinematics itself.
type ToolTransform struct {
	Dx, Dy, Dz float64 // millimeters
	Rx, Ry, Rz float64 // degrees
}

// minTransformCoord and maxTransformCoord bound the representable
// int16-scaled-by-100 range: [-327.68, +327.67].
const (
	minTransformCoord = -327.68
	maxTransformCoord = 327.67
)

// BuildTransformRequest packs a WRITETRANSFORM request. Each coordinate is
// encoded as round(x*100) into a signed 16-bit big-endian field; a
// coordinate outside [-327.68, +327.67] is rejected.
func BuildTransformRequest(t ToolTransform) ([TransformRequestSize]byte, error) {
	var req [TransformRequestSize]byte
	req[0] = CmdWriteTransform
	req[1] = TransformDistMM
	req[2] = TransformAngleDegree

	coords := [6]float64{t.Dx, t.Dy, t.Dz, t.Rx, t.Ry, t.Rz}
	var scaled [6]int16
	for i, c := range coords {
		if c < minTransformCoord || c > maxTransformCoord {
			return req, fmt.Errorf("transform coordinate %v out of range [%v, %v]", c, minTransformCoord, maxTransformCoord)
		}
		scaled[i] = int16(math.Round(c * 100))
	}
	for i, v := range scaled {
		off := 3 + i*2
		binary.BigEndian.PutUint16(req[off:off+2], uint16(v))
	}
	return req, nil
}

// BuildBiasRequest packs a READFT request with the bias (tare) bit set: the
// TCP fallback form of hardware tare, used when the UDP SET_BIAS command
// cannot be delivered.
func BuildBiasRequest() [ReadFTRequestSize]byte {
	var req [ReadFTRequestSize]byte
	req[0] = CmdReadFT
	binary.BigEndian.PutUint16(req[16:18], 0x0000) // MCEnable
	binary.BigEndian.PutUint16(req[18:20], 0x0001) // sysCommands: bias bit
	return req
}
