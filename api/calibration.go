package api

import "fmt"

// CalibrationInfo is the sensor's calibration data, retrieved via the HTTP
// calibration document or the TCP READCALINFO command. It is immutable
// after fetch; callers that need to change it atomically swap in a new
// value rather than mutating fields.
type CalibrationInfo struct {
	CountsPerForce   float64
	CountsPerTorque  float64
	SerialNumber     string
	FirmwareVersion  string
	ForceUnitsCode   int
	TorqueUnitsCode  int
	HasForceUnits    bool
	HasTorqueUnits   bool
}

// NewCalibrationInfo validates and constructs a CalibrationInfo. Both
// counts-per-force and counts-per-torque must be strictly positive.
func NewCalibrationInfo(countsPerForce, countsPerTorque float64) (CalibrationInfo, error) {
	if countsPerForce <= 0 {
		return CalibrationInfo{}, fmt.Errorf("counts_per_force must be positive, got %v", countsPerForce)
	}
	if countsPerTorque <= 0 {
		return CalibrationInfo{}, fmt.Errorf("counts_per_torque must be positive, got %v", countsPerTorque)
	}
	return CalibrationInfo{CountsPerForce: countsPerForce, CountsPerTorque: countsPerTorque}, nil
}

// ConvertCountsToSI converts six raw counts to (force_N, torque_Nm) using
// this calibration's factors.
func (c CalibrationInfo) ConvertCountsToSI(counts [6]int32) (forceN [3]float64, torqueNm [3]float64) {
	for i := 0; i < 3; i++ {
		forceN[i] = float64(counts[i]) / c.CountsPerForce
	}
	for i := 0; i < 3; i++ {
		torqueNm[i] = float64(counts[3+i]) / c.CountsPerTorque
	}
	return forceN, torqueNm
}
