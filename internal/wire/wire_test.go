package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeRequestWritesHeader(t *testing.T) {
	req := EncodeRequest(RdtStartRealtime, 0)
	require.Len(t, req, RdtRequestSize)
	require.Equal(t, byte(0x12), req[0])
	require.Equal(t, byte(0x34), req[1])
}

func TestDecodeResponseRejectsWrongSize(t *testing.T) {
	_, err := DecodeResponse(make([]byte, 10))
	require.Error(t, err)
}

func TestDecodeResponseParsesFields(t *testing.T) {
	enc := EncodeRequest(RdtStartRealtime, 5) // just to exercise encode path too
	require.Len(t, enc, RdtRequestSize)

	data := make([]byte, RdtResponseSize)
	// rdt_seq=1, ft_seq=2, status=3, counts = -1..4
	be := func(b []byte, v uint32) { b[0] = byte(v >> 24); b[1] = byte(v >> 16); b[2] = byte(v >> 8); b[3] = byte(v) }
	be(data[0:4], 1)
	be(data[4:8], 2)
	be(data[8:12], 3)
	for i := 0; i < 6; i++ {
		be(data[12+i*4:16+i*4], uint32(int32(i-1)))
	}

	resp, err := DecodeResponse(data)
	require.NoError(t, err)
	require.EqualValues(t, 1, resp.RdtSequence)
	require.EqualValues(t, 2, resp.FtSequence)
	require.EqualValues(t, 3, resp.Status)
	require.Equal(t, [6]int32{-1, 0, 1, 2, 3, 4}, resp.Counts)
}

func TestTransformBoundary(t *testing.T) {
	_, err := BuildTransformRequest(ToolTransform{Dx: 327.67})
	require.NoError(t, err)

	_, err = BuildTransformRequest(ToolTransform{Dx: 327.68})
	require.Error(t, err)
}

func TestCalInfoResponseRejectsBadHeaderAndSize(t *testing.T) {
	_, err := DecodeCalInfoResponse(make([]byte, 5))
	require.Error(t, err)

	data := make([]byte, CalInfoResponseSize)
	_, err = DecodeCalInfoResponse(data) // header is zero, not 0x1234
	require.Error(t, err)
}

func TestParseCalibrationXMLRequiresCpfAndCpt(t *testing.T) {
	xml := []byte(`<netft><cfgcpf>1000000</cfgcpf><cfgcpt>1000000</cfgcpt><setserial>FT12345</setserial></netft>`)
	cal, err := ParseCalibrationXML(xml)
	require.NoError(t, err)
	require.Equal(t, 1_000_000.0, cal.CountsPerForce)
	require.Equal(t, 1_000_000.0, cal.CountsPerTorque)
	require.Equal(t, "FT12345", cal.SerialNumber)

	_, err = ParseCalibrationXML([]byte(`<netft><cfgcpf>1000000</cfgcpf></netft>`))
	require.Error(t, err)
}

func TestParseCalibrationXMLAlternateElementNames(t *testing.T) {
	xml := []byte(`<root><countsPerForce>500</countsPerForce><cpt>250</cpt></root>`)
	cal, err := ParseCalibrationXML(xml)
	require.NoError(t, err)
	require.Equal(t, 500.0, cal.CountsPerForce)
	require.Equal(t, 250.0, cal.CountsPerTorque)
}
