package gravimetric

// Factors are the intermediate quantities of one mass-to-volume conversion.
type Factors struct {
	WaterDensity float64 // kg/m³
	AirDensity   float64 // kg/m³
	// Z converts apparent mass to volume at the measurement temperature,
	// in mL/g (numerically µL/mg).
	Z float64
	// Thermal brings the container volume back to 20 °C.
	Thermal float64
	// Expansion is the cubic expansion coefficient used, 1/°C.
	Expansion float64
}

// Converter turns weighings into volumes at 20 °C.
type Converter struct {
	c     Constants
	gamma float64
}

// NewConverter returns a Converter for tips made of material.
func NewConverter(c Constants, material string) (*Converter, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	gamma, err := c.Expansion(material)
	if err != nil {
		return nil, err
	}
	return &Converter{c: c.Clone(), gamma: gamma}, nil
}

// FactorsAt evaluates the model at an already corrected snapshot.
//
//	Z       = 1/(ρw − ρa) · (1 − ρa/ρb)
//	Thermal = 1 − γ (t_amb − 20)
func (cv *Converter) FactorsAt(s EnvironmentalSnapshot) (Factors, error) {
	rhoW := cv.c.Water.At(s.WaterTemperature)
	rhoA := cv.c.Air.At(s.AmbientTemperature, s.Pressure, s.Humidity)
	if !isFinite(rhoW) || !isFinite(rhoA) || rhoA < 0 || rhoW <= rhoA {
		return Factors{}, newError(KindOutOfRangeEnvironment, "", "density model is undefined at t_agua=%g °C, t_amb=%g °C, p=%g hPa, hr=%g %%", s.WaterTemperature, s.AmbientTemperature, s.Pressure, s.Humidity)
	}
	// kg/m³ -> g/mL is a factor of 1000 on the density, so 1000/(ρw−ρa) is mL/g.
	z := 1000 / (rhoW - rhoA) * (1 - rhoA/cv.c.WeightDensity)
	return Factors{
		WaterDensity: rhoW,
		AirDensity:   rhoA,
		Z:            z,
		Thermal:      1 - cv.gamma*(s.AmbientTemperature-ReferenceTemperature),
		Expansion:    cv.gamma,
	}, nil
}

// Convert returns the volume in µL at 20 °C dispensed in one weighing.
func (cv *Converter) Convert(p MeasurementPoint) (float64, error) {
	v, _, err := cv.convert(p)
	return v, err
}

func (cv *Converter) convert(p MeasurementPoint) (float64, EnvironmentalSnapshot, error) {
	corrected, err := CheckPoint(cv.c, p)
	if err != nil {
		return 0, corrected, err
	}
	f, err := cv.FactorsAt(corrected)
	if err != nil {
		return 0, corrected, err
	}
	// g · 1000 mg/g · µL/mg
	return p.Delta() * 1000 * f.Z * f.Thermal, corrected, nil
}
