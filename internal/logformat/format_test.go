package logformat

import (
	"strings"
	"testing"

	"github.com/LoomDeBWiles/cof-tester-sub000/api"
	"github.com/stretchr/testify/require"
)

func TestFormatRowCSVWithConvertedValues(t *testing.T) {
	forceN := [3]float64{1, 2, 3}
	torqueNm := [3]float64{4, 5, 6}
	s := api.Sample{
		TMonotonicNs: 1000,
		RdtSequence:  1,
		FtSequence:   2,
		Status:       0,
		Counts:       [6]int32{10, 20, 30, 40, 50, 60},
		ForceN:       &forceN,
		TorqueNm:     &torqueNm,
	}
	row := FormatRow(FormatCSV, s)
	require.Equal(t, "1000,1,2,0,10,20,30,40,50,60,1.000000,2.000000,3.000000,4.000000,5.000000,6.000000", row)
}

func TestFormatRowTSVUsesTabSeparator(t *testing.T) {
	s := api.Sample{Counts: [6]int32{1, 2, 3, 4, 5, 6}}
	row := FormatRow(FormatTSV, s)
	require.True(t, strings.Contains(row, "\t"))
	require.False(t, strings.Contains(row, ","))
}

func TestFormatRowEmptyPlaceholdersWhenUnconverted(t *testing.T) {
	s := api.Sample{Counts: [6]int32{1, 2, 3, 4, 5, 6}}
	row := FormatRow(FormatCSV, s)
	require.Equal(t, "0,0,0,0,1,2,3,4,5,6,,,,,,", row)
}

func TestColumnHeadersCount(t *testing.T) {
	headers := strings.Split(ColumnHeaders(FormatCSV), ",")
	require.Len(t, headers, 16)
}

func TestMetadataHeaderExcelHasBOMAndCRLF(t *testing.T) {
	cal, err := api.NewCalibrationInfo(1000000, 100000)
	require.NoError(t, err)
	header := MetadataHeader(FormatExcel, MetadataHeaderOptions{
		SerialNumber: "FT12345",
		Calibration:  &cal,
	})
	require.True(t, strings.HasPrefix(header, BOMUTF8))
	require.True(t, strings.Contains(header, "\r\n"))
	require.True(t, strings.Contains(header, "# Serial Number: FT12345"))
	require.True(t, strings.HasSuffix(header, ColumnHeaders(FormatExcel)))
}

func TestMetadataHeaderCSVNoBOMNoMetadataLines(t *testing.T) {
	header := MetadataHeader(FormatCSV, MetadataHeaderOptions{})
	require.False(t, strings.HasPrefix(header, BOMUTF8))
	require.Equal(t, ColumnHeaders(FormatCSV), header)
}

func TestMetadataHeaderOmitsEmptyFields(t *testing.T) {
	header := MetadataHeader(FormatCSV, MetadataHeaderOptions{SerialNumber: "X"})
	require.True(t, strings.Contains(header, "# Serial Number: X"))
	require.False(t, strings.Contains(header, "Firmware"))
}
