// Package logformat renders processed samples as CSV, TSV, or
// Excel-compatible rows, and builds the metadata header the writer emits
// once per file.
package logformat

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/LoomDeBWiles/cof-tester-sub000/api"
)

// Format selects the delimiter and line-ending convention for a log file.
type Format int

const (
	FormatCSV Format = iota
	FormatTSV
	FormatExcel
)

// BOMUTF8 is the byte-order-mark prefix Excel needs to detect UTF-8 CSVs.
const BOMUTF8 = "﻿"

func (f Format) separator() string {
	if f == FormatTSV {
		return "\t"
	}
	return ","
}

// LineTerminator returns the row terminator for the format: CRLF for
// Excel, LF otherwise.
func (f Format) LineTerminator() string {
	if f == FormatExcel {
		return "\r\n"
	}
	return "\n"
}

var columnHeaders = []string{
	"t_monotonic_ns", "rdt_sequence", "ft_sequence", "status",
	"Fx_counts", "Fy_counts", "Fz_counts", "Tx_counts", "Ty_counts", "Tz_counts",
	"Fx_N", "Fy_N", "Fz_N", "Tx_Nm", "Ty_Nm", "Tz_Nm",
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

// FormatRow renders one sample as a single delimited row, with no trailing
// line terminator.
func FormatRow(f Format, s api.Sample) string {
	values := make([]string, 0, 16)
	values = append(values,
		strconv.FormatUint(s.TMonotonicNs, 10),
		strconv.FormatUint(uint64(s.RdtSequence), 10),
		strconv.FormatUint(uint64(s.FtSequence), 10),
		strconv.FormatUint(uint64(s.Status), 10),
	)
	for _, c := range s.Counts {
		values = append(values, strconv.FormatInt(int64(c), 10))
	}
	if s.ForceN != nil {
		for _, v := range s.ForceN {
			values = append(values, formatFloat(v))
		}
	} else {
		values = append(values, "", "", "")
	}
	if s.TorqueNm != nil {
		for _, v := range s.TorqueNm {
			values = append(values, formatFloat(v))
		}
	} else {
		values = append(values, "", "", "")
	}
	return strings.Join(values, f.separator())
}

// ColumnHeaders returns the delimited column-header line for the format.
func ColumnHeaders(f Format) string {
	return strings.Join(columnHeaders, f.separator())
}

// MetadataHeaderOptions supplies the optional `# key: value` metadata lines
// preceding the column-header line.
type MetadataHeaderOptions struct {
	SerialNumber    string
	FirmwareVersion string
	Calibration     *api.CalibrationInfo
	Extra           map[string]string
}

// MetadataHeader builds the full header: BOM (Excel only), `# key: value`
// comment lines, then the column-header line, joined with the format's
// line terminator. It does not include a trailing terminator — the writer
// appends one if the header doesn't already end with one.
func MetadataHeader(f Format, opts MetadataHeaderOptions) string {
	var lines []string
	addComment := func(key, val string) {
		if val != "" {
			lines = append(lines, fmt.Sprintf("# %s: %s", key, val))
		}
	}

	addComment("Serial Number", opts.SerialNumber)
	addComment("Firmware Version", opts.FirmwareVersion)
	if opts.Calibration != nil {
		addComment("Counts Per Force", formatFloat(opts.Calibration.CountsPerForce))
		addComment("Counts Per Torque", formatFloat(opts.Calibration.CountsPerTorque))
		addComment("Force Units Code", strconv.Itoa(opts.Calibration.ForceUnitsCode))
		addComment("Torque Units Code", strconv.Itoa(opts.Calibration.TorqueUnitsCode))
	}
	for k, v := range opts.Extra {
		addComment(k, v)
	}

	terminator := f.LineTerminator()
	var b strings.Builder
	if f == FormatExcel {
		b.WriteString(BOMUTF8)
	}
	if len(lines) > 0 {
		b.WriteString(strings.Join(lines, terminator))
		b.WriteString(terminator)
	}
	b.WriteString(ColumnHeaders(f))
	return b.String()
}
