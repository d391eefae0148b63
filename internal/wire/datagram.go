// Package wire implements the binary and XML layouts exchanged with an ATI
// NETrs-class six-axis force/torque sensor: the UDP streaming request and
// response frames, the 20-byte TCP command channel frames, and the XML
// calibration document.
package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/LoomDeBWiles/cof-tester-sub000/api"
)

// RDT command codes for the datagram streaming protocol.
const (
	RdtStop           uint16 = 0x0000
	RdtStartRealtime  uint16 = 0x0002
	RdtStartBuffered  uint16 = 0x0003
	RdtSetBias        uint16 = 0x0042
)

// RdtHeader is the fixed magic value at the start of every RDT request.
const RdtHeader uint16 = 0x1234

// RdtRequestSize and RdtResponseSize are the wire sizes of the request and
// response frames, in bytes.
const (
	RdtRequestSize  = 8
	RdtResponseSize = 36
)

// DefaultRdtPort is the default UDP port for the RDT streaming protocol.
const DefaultRdtPort = 49152

// EncodeRequest packs an RDT request: header:u16, command:u16, sampleCount:u32,
// all big-endian.
func EncodeRequest(command uint16, sampleCount uint32) [RdtRequestSize]byte {
	var buf [RdtRequestSize]byte
	binary.BigEndian.PutUint16(buf[0:2], RdtHeader)
	binary.BigEndian.PutUint16(buf[2:4], command)
	binary.BigEndian.PutUint32(buf[4:8], sampleCount)
	return buf
}

// RdtResponse is a parsed datagram response frame.
type RdtResponse struct {
	RdtSequence uint32
	FtSequence  uint32
	Status      uint32
	Counts      [6]int32
}

// DecodeResponse parses a 36-byte RDT response frame: rdt_seq:u32, ft_seq:u32,
// status:u32, six signed 32-bit counts, all big-endian.
func DecodeResponse(data []byte) (RdtResponse, error) {
	if len(data) != RdtResponseSize {
		return RdtResponse{}, api.Wrap(api.ErrMalformedPacket, nil,
			fmt.Sprintf("expected %d bytes, got %d", RdtResponseSize, len(data)))
	}
	var r RdtResponse
	r.RdtSequence = binary.BigEndian.Uint32(data[0:4])
	r.FtSequence = binary.BigEndian.Uint32(data[4:8])
	r.Status = binary.BigEndian.Uint32(data[8:12])
	for i := 0; i < 6; i++ {
		off := 12 + i*4
		r.Counts[i] = int32(binary.BigEndian.Uint32(data[off : off+4]))
	}
	return r, nil
}

// ToSample converts a parsed response into an api.Sample, stamping it with
// the given monotonic receive timestamp.
func (r RdtResponse) ToSample(tMonotonicNs uint64) api.Sample {
	return api.Sample{
		TMonotonicNs: tMonotonicNs,
		RdtSequence:  r.RdtSequence,
		FtSequence:   r.FtSequence,
		Status:       r.Status,
		Counts:       r.Counts,
	}
}
