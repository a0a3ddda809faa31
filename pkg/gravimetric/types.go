package gravimetric

const (
	// PointsPerAforo is the number of weighings per tested volume the
	// uncertainty model assumes.
	PointsPerAforo = 10
	// AforoCount is the number of tested volumes in a calibration
	// (≈10 %, 50 % and 100 % of capacity).
	AforoCount = 3
)

// EnvironmentalSnapshot is the environment recorded with one weighing.
// Units: °C, °C, hPa, %RH.
type EnvironmentalSnapshot struct {
	WaterTemperature   float64
	AmbientTemperature float64
	Pressure           float64
	Humidity           float64
}

// MeasurementPoint is one weighing. Masses are raw balance readings in grams.
type MeasurementPoint struct {
	Empty       float64
	Full        float64
	Environment EnvironmentalSnapshot
}

// Delta returns the dispensed mass in grams.
func (p MeasurementPoint) Delta() float64 { return p.Full - p.Empty }

// AforoSeries is one tested volume with its fixed set of weighings.
type AforoSeries struct {
	Nominal float64 // µL
	Points  [PointsPerAforo]MeasurementPoint
}

// Instrument describes the pipette under test.
type Instrument struct {
	// Class selects the EMT table, e.g. "default" or "multicanal".
	Class string
	// Material selects the tip expansion coefficient. Empty means the
	// constants' default material.
	Material string
	// Nominal is the full-scale volume in µL. Zero means the largest aforo.
	Nominal float64
	// Resolution is the smallest scale division in µL.
	Resolution float64
}

// InitialConditions are the as-found averages measured before any
// adjustment, one per aforo, in µL. A zero value means not measured.
type InitialConditions [AforoCount]float64

// Input is everything one calibration needs.
type Input struct {
	Instrument Instrument
	Aforos     [AforoCount]AforoSeries
	Initial    InitialConditions
}

// Percent is a relative figure that may be undefined.
type Percent struct {
	Value      float64
	Applicable bool
}

// NotApplicable is the Percent reported when the reference is zero.
var NotApplicable = Percent{}

// AforoResult is the outcome of one tested volume.
type AforoResult struct {
	Nominal     float64
	Volumes     [PointsPerAforo]float64
	Statistics  Statistics
	Environment EnvironmentalSnapshot // mean of the corrected snapshots
	Factors     Factors               // evaluated at Environment
	Budget      Budget
	Verdict     Verdict
}

// InitialResult echoes one as-found average with its error against nominal.
type InitialResult struct {
	Nominal  float64
	Measured float64
	Error    float64
}

// Result is the complete output of a calibration.
type Result struct {
	Aforos            [AforoCount]AforoResult
	FinalConditions   EnvironmentalSnapshot
	InitialConditions []InitialResult
	// Conforms is true when every aforo is within tolerance.
	Conforms bool
}
