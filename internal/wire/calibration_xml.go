package wire

import (
	"encoding/xml"
	"strconv"
	"strings"

	"github.com/LoomDeBWiles/cof-tester-sub000/api"
)

// DefaultHTTPPort and CalibrationEndpoint locate the calibration document
// served by the sensor's embedded HTTP server.
const (
	DefaultHTTPPort     = 80
	CalibrationEndpoint = "/netftapi2.xml"
)

// calNode is a generic XML element tree: calibration documents vary in
// their element names across firmware revisions, so this module walks a
// flexible tree rather than binding to one fixed schema.
type calNode struct {
	XMLName  xml.Name
	Content  string    `xml:",chardata"`
	Children []calNode `xml:",any"`
}

func (n calNode) find(path []string) (calNode, bool) {
	cur := n
	for _, tag := range path {
		found := false
		for _, child := range cur.Children {
			if strings.EqualFold(child.XMLName.Local, tag) {
				cur = child
				found = true
				break
			}
		}
		if !found {
			return calNode{}, false
		}
	}
	return cur, true
}

// findText tries each candidate top-level element name (searched anywhere
// in the tree, not just direct children) in priority order and returns the
// first one with non-empty text content.
func findText(root calNode, names []string) (string, bool) {
	var walk func(n calNode, name string) (string, bool)
	walk = func(n calNode, name string) (string, bool) {
		if strings.EqualFold(n.XMLName.Local, name) {
			text := strings.TrimSpace(n.Content)
			if text != "" {
				return text, true
			}
		}
		for _, c := range n.Children {
			if text, ok := walk(c, name); ok {
				return text, ok
			}
		}
		return "", false
	}
	for _, name := range names {
		if text, ok := walk(root, name); ok {
			return text, true
		}
	}
	return "", false
}

// ParseCalibrationXML parses a calibration document, requiring both
// counts-per-force and counts-per-torque to be present and positive.
// Serial number, firmware version, and unit codes are optional; malformed
// optional fields are ignored rather than failing the parse.
func ParseCalibrationXML(content []byte) (api.CalibrationInfo, error) {
	var root calNode
	if err := xml.Unmarshal(content, &root); err != nil {
		return api.CalibrationInfo{}, api.Wrap(api.ErrCalibrationParse, err, "invalid XML")
	}

	cpfText, ok := findText(root, []string{"cfgcpf", "countsPerForce", "cpf"})
	if !ok {
		return api.CalibrationInfo{}, api.Wrap(api.ErrCalibrationParse, nil, "counts-per-force missing")
	}
	cpf, err := strconv.ParseFloat(cpfText, 64)
	if err != nil {
		return api.CalibrationInfo{}, api.Wrap(api.ErrCalibrationParse, err, "counts-per-force unparseable")
	}

	cptText, ok := findText(root, []string{"cfgcpt", "countsPerTorque", "cpt"})
	if !ok {
		return api.CalibrationInfo{}, api.Wrap(api.ErrCalibrationParse, nil, "counts-per-torque missing")
	}
	cpt, err := strconv.ParseFloat(cptText, 64)
	if err != nil {
		return api.CalibrationInfo{}, api.Wrap(api.ErrCalibrationParse, err, "counts-per-torque unparseable")
	}

	cal, err := api.NewCalibrationInfo(cpf, cpt)
	if err != nil {
		return api.CalibrationInfo{}, api.Wrap(api.ErrCalibrationParse, err, "")
	}

	if serial, ok := findText(root, []string{"setserial", "serial"}); ok {
		cal.SerialNumber = serial
	}
	if fw, ok := findText(root, []string{"setfwver", "firmware"}); ok {
		cal.FirmwareVersion = fw
	}
	if fu, ok := findText(root, []string{"cfgfu", "forceUnits"}); ok {
		if v, err := strconv.Atoi(fu); err == nil {
			cal.ForceUnitsCode = v
			cal.HasForceUnits = true
		}
	}
	if tu, ok := findText(root, []string{"cfgtu", "torqueUnits"}); ok {
		if v, err := strconv.Atoi(tu); err == nil {
			cal.TorqueUnitsCode = v
			cal.HasTorqueUnits = true
		}
	}

	return cal, nil
}
