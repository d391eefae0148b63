// Package units converts force and torque values between engineering units.
// Internal canonical units are Newtons (N) for force and Newton-meters
// (N·m) for torque; every other unit pair converts through the canonical
// unit.
package units

import "fmt"

// ForceUnit identifies a supported force unit.
type ForceUnit int

const (
	ForceNewtons ForceUnit = iota
	ForcePoundsForce
	ForceKilogramsForce
)

// TorqueUnit identifies a supported torque unit.
type TorqueUnit int

const (
	TorqueNewtonMeters TorqueUnit = iota
	TorqueNewtonMillimeters
	TorquePoundsForceInches
	TorquePoundsForceFeet
)

// forceToNewtons holds the exact conversion factors to canonical Newtons.
var forceToNewtons = map[ForceUnit]float64{
	ForceNewtons:        1.0,
	ForcePoundsForce:    4.4482216152605,
	ForceKilogramsForce: 9.80665,
}

// torqueToNewtonMeters holds the exact conversion factors to canonical
// Newton-meters.
var torqueToNewtonMeters = map[TorqueUnit]float64{
	TorqueNewtonMeters:      1.0,
	TorqueNewtonMillimeters: 0.001,
	TorquePoundsForceInches: 0.1129848290276167,
	TorquePoundsForceFeet:   1.3558179483314004,
}

// ConvertForce converts a force value between supported units.
func ConvertForce(value float64, from, to ForceUnit) float64 {
	if from == to {
		return value
	}
	newtons := value * forceToNewtons[from]
	return newtons / forceToNewtons[to]
}

// ConvertTorque converts a torque value between supported units.
func ConvertTorque(value float64, from, to TorqueUnit) float64 {
	if from == to {
		return value
	}
	nm := value * torqueToNewtonMeters[from]
	return nm / torqueToNewtonMeters[to]
}

// ForceFromNewtons converts a Newtons value to the given unit.
func ForceFromNewtons(newtons float64, to ForceUnit) float64 {
	return newtons / forceToNewtons[to]
}

// ForceToNewtons converts a value in the given unit to Newtons.
func ForceToNewtons(value float64, from ForceUnit) float64 {
	return value * forceToNewtons[from]
}

// TorqueFromNewtonMeters converts a Newton-meters value to the given unit.
func TorqueFromNewtonMeters(nm float64, to TorqueUnit) float64 {
	return nm / torqueToNewtonMeters[to]
}

// TorqueToNewtonMeters converts a value in the given unit to Newton-meters.
func TorqueToNewtonMeters(value float64, from TorqueUnit) float64 {
	return value * torqueToNewtonMeters[from]
}

// ForceUnitFromSensorCode maps a calibration-document force unit code
// (1=lbf, 2=N, 5=kgf) to a ForceUnit.
func ForceUnitFromSensorCode(code int) (ForceUnit, error) {
	switch code {
	case 1:
		return ForcePoundsForce, nil
	case 2:
		return ForceNewtons, nil
	case 5:
		return ForceKilogramsForce, nil
	default:
		return 0, fmt.Errorf("unknown force unit code: %d", code)
	}
}

// TorqueUnitFromSensorCode maps a calibration-document torque unit code
// (1=lbf-in, 2=lbf-ft, 3=N-m, 4=N-mm) to a TorqueUnit.
func TorqueUnitFromSensorCode(code int) (TorqueUnit, error) {
	switch code {
	case 1:
		return TorquePoundsForceInches, nil
	case 2:
		return TorquePoundsForceFeet, nil
	case 3:
		return TorqueNewtonMeters, nil
	case 4:
		return TorqueNewtonMillimeters, nil
	default:
		return 0, fmt.Errorf("unknown torque unit code: %d", code)
	}
}
