package gravimetric

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// CoverageMode selects how the coverage factor k is obtained.
type CoverageMode string

const (
	// CoverageFixed always uses k = 2.
	CoverageFixed CoverageMode = "fixed"
	// CoverageEffectiveDOF takes k from the Student t distribution at the
	// Welch–Satterthwaite effective degrees of freedom, 95.45 % two-sided.
	// k = 2 once the degrees of freedom reach 100.
	CoverageEffectiveDOF CoverageMode = "effective"
)

const (
	defaultCoverage = 2.0
	coverageProb    = 0.9545
	largeDOF        = 100
)

// BudgetInputs are the declared Type B magnitudes of the laboratory. Masses
// in kg, densities in kg/m³, temperatures in °C, volumes in µL.
type BudgetInputs struct {
	BalanceRepeatability float64 `json:"balanceRepeatabilityKg"`
	BalanceCalibration   float64 `json:"balanceCalibrationKg"`
	BalanceEccentricity  float64 `json:"balanceEccentricityKg"`
	// WaterThermometer is u(t) of the water temperature reading.
	WaterThermometer float64 `json:"waterThermometerC"`
	// WaterDensityModel is the standard uncertainty of the density
	// equation itself.
	WaterDensityModel float64 `json:"waterDensityModelKgM3"`
	AirDensity        float64 `json:"airDensityKgM3"`
	// WeightDensityWidth is the full width of the rectangular distribution
	// of the weight density, relative to its value.
	WeightDensityWidth float64 `json:"weightDensityRelWidth"`
	// ExpansionWidth is the full width of the rectangular distribution of
	// the expansion coefficient, relative to its value.
	ExpansionWidth       float64      `json:"expansionRelWidth"`
	ContainerTemperature float64      `json:"containerTemperatureC"`
	Reproducibility      float64      `json:"reproducibilityUl"`
	Coverage             CoverageMode `json:"coverage"`
}

// DefaultBudgetInputs returns the magnitudes of a 0.1 mg balance, a
// 0.1 °C thermometer set and stainless steel weights. Reproducibility is
// lab specific and left at zero.
func DefaultBudgetInputs() BudgetInputs {
	return BudgetInputs{
		BalanceRepeatability: 2.8867e-8,
		BalanceCalibration:   7.5e-8,
		BalanceEccentricity:  2.31e-8,
		WaterThermometer:     0.0757,
		WaterDensityModel:    4.15e-4,
		AirDensity:           math.Sqrt(1.9688e-6),
		WeightDensityWidth:   0.03,
		ExpansionWidth:       0.2,
		ContainerTemperature: 0.0786,
		Coverage:             CoverageFixed,
	}
}

// Validate reports MalformedInput for negative or non-numeric magnitudes.
func (b BudgetInputs) Validate() error {
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"balanceRepeatabilityKg", b.BalanceRepeatability},
		{"balanceCalibrationKg", b.BalanceCalibration},
		{"balanceEccentricityKg", b.BalanceEccentricity},
		{"waterThermometerC", b.WaterThermometer},
		{"waterDensityModelKgM3", b.WaterDensityModel},
		{"airDensityKgM3", b.AirDensity},
		{"weightDensityRelWidth", b.WeightDensityWidth},
		{"expansionRelWidth", b.ExpansionWidth},
		{"containerTemperatureC", b.ContainerTemperature},
		{"reproducibilityUl", b.Reproducibility},
	} {
		if !isFinite(f.v) || f.v < 0 {
			return newError(KindMalformedInput, "incertidumbre."+f.name, "must be a non-negative number, got %g", f.v)
		}
	}
	switch b.Coverage {
	case "", CoverageFixed, CoverageEffectiveDOF:
	default:
		return newError(KindMalformedInput, "incertidumbre.coverage", "unknown coverage mode %q", b.Coverage)
	}
	return nil
}

// Source identifies one line of the uncertainty budget.
type Source string

const (
	SourceRepeatability        Source = "repetibilidad"
	SourceEmptyMass            Source = "masa_vacio"
	SourceFullMass             Source = "masa_lleno"
	SourceWaterDensity         Source = "densidad_agua"
	SourceAirDensity           Source = "densidad_aire"
	SourceWeightDensity        Source = "densidad_pesas"
	SourceExpansion            Source = "coeficiente_dilatacion"
	SourceContainerTemperature Source = "temperatura_recipiente"
	SourceResolution           Source = "resolucion"
	SourceReproducibility      Source = "reproducibilidad"
)

// Contribution is one line of the budget. Standard is u(xi) in the unit of
// the input quantity, Sensitivity is ∂V/∂xi in µL per that unit, and Value
// is |ci·u(xi)| in µL.
type Contribution struct {
	Source      Source
	TypeA       bool
	Standard    float64
	Sensitivity float64
	Value       float64
}

// Budget is the combined and expanded uncertainty of one aforo, in µL.
type Budget struct {
	Contributions []Contribution
	Combined      float64
	// EffectiveDOF is +Inf when the Type A term is zero.
	EffectiveDOF float64
	Coverage     float64
	Expanded     float64
}

// Contribution returns the line for src, or false if it is not present.
func (b Budget) Contribution(src Source) (Contribution, bool) {
	for _, c := range b.Contributions {
		if c.Source == src {
			return c, true
		}
	}
	return Contribution{}, false
}

// BudgetCase is the state of one aforo the budget is evaluated at.
type BudgetCase struct {
	Stats       Statistics
	MeanMass    float64 // g
	Factors     Factors
	Environment EnvironmentalSnapshot // corrected means
	Resolution  float64               // µL
	WaterModel  WaterDensity
	WeightRho   float64 // kg/m³
}

// ComputeBudget combines the Type A repeatability term with the Type B terms
// of in by root sum of squares, following the GUM law of propagation for
//
//	V20 = (Mi − Mo) · 1/(ρw − ρa) · (1 − ρa/ρb) · (1 − γ(t − 20)) + δrep + δres + δrepro
func ComputeBudget(in BudgetInputs, bc BudgetCase) (Budget, error) {
	if err := in.Validate(); err != nil {
		return Budget{}, err
	}
	if bc.Stats.N < 2 {
		return Budget{}, newError(KindInsufficientSamples, "", "need at least 2 volumes, got %d", bc.Stats.N)
	}

	v := bc.Stats.Mean
	rhoW, rhoA, rhoB := bc.Factors.WaterDensity, bc.Factors.AirDensity, bc.WeightRho
	gamma := bc.Factors.Expansion
	dt := bc.Environment.AmbientTemperature - ReferenceTemperature
	thermal := 1 - gamma*dt

	uA := bc.Stats.StdDev / math.Sqrt(float64(bc.Stats.N))
	uMass := math.Sqrt(sq(in.BalanceRepeatability) + sq(in.BalanceCalibration) + sq(in.BalanceEccentricity))
	uRhoW := math.Sqrt(sq(bc.WaterModel.Slope(bc.Environment.WaterTemperature)*in.WaterThermometer) + sq(in.WaterDensityModel))
	uRhoB := rhoB * in.WeightDensityWidth / math.Sqrt(12)
	uGamma := gamma * in.ExpansionWidth / math.Sqrt(12)
	uRes := bc.Resolution / math.Sqrt(12)

	// Sensitivities in µL per input unit. Mass is in kg, so V/m uses the
	// mean mass converted from grams.
	var cMass float64
	if m := bc.MeanMass / 1000; m != 0 {
		cMass = v / m
	}
	cRhoW := safeDiv(-v, rhoW-rhoA)
	cRhoA := v * (safeDiv(1, rhoW-rhoA) - safeDiv(1, rhoB-rhoA))
	cRhoB := safeDiv(v*rhoA, rhoB*(rhoB-rhoA))
	cGamma := safeDiv(-v*dt, thermal)
	cTemp := safeDiv(-v*gamma, thermal)

	lines := []Contribution{
		{Source: SourceRepeatability, TypeA: true, Standard: uA, Sensitivity: 1},
		{Source: SourceEmptyMass, Standard: uMass, Sensitivity: -cMass},
		{Source: SourceFullMass, Standard: uMass, Sensitivity: cMass},
		{Source: SourceWaterDensity, Standard: uRhoW, Sensitivity: cRhoW},
		{Source: SourceAirDensity, Standard: in.AirDensity, Sensitivity: cRhoA},
		{Source: SourceWeightDensity, Standard: uRhoB, Sensitivity: cRhoB},
		{Source: SourceExpansion, Standard: uGamma, Sensitivity: cGamma},
		{Source: SourceContainerTemperature, Standard: in.ContainerTemperature, Sensitivity: cTemp},
		{Source: SourceResolution, Standard: uRes, Sensitivity: 1},
		{Source: SourceReproducibility, Standard: in.Reproducibility, Sensitivity: 1},
	}

	var sum float64
	for i := range lines {
		lines[i].Value = math.Abs(lines[i].Sensitivity * lines[i].Standard)
		sum += sq(lines[i].Value)
	}
	uc := math.Sqrt(sum)

	dof := math.Inf(1)
	if uA > 0 {
		dof = math.Pow(uc, 4) / (math.Pow(uA, 4) / float64(bc.Stats.N-1))
	}

	k := CoverageFactor(in.Coverage, dof)
	return Budget{
		Contributions: lines,
		Combined:      uc,
		EffectiveDOF:  dof,
		Coverage:      k,
		Expanded:      k * uc,
	}, nil
}

// CoverageFactor returns k for the given mode and effective degrees of
// freedom.
func CoverageFactor(mode CoverageMode, dof float64) float64 {
	if mode != CoverageEffectiveDOF || math.IsInf(dof, 1) || math.IsNaN(dof) || dof >= largeDOF {
		return defaultCoverage
	}
	nu := math.Max(1, math.Round(dof))
	t := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: nu}
	return t.Quantile(1 - (1-coverageProb)/2)
}

func sq(x float64) float64 { return x * x }

func safeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}
