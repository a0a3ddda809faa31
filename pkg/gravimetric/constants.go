package gravimetric

import (
	"math"
	"sort"
	"strings"
)

// ReferenceTemperature is the temperature, in °C, calibrated volumes refer to.
const ReferenceTemperature = 20.0

// WaterDensity holds the coefficients of the Tanaka et al. (2001) equation
//
//	ρw(t) = A5 · [1 − (t + A1)² (t + A2) / (A3 (t + A4))]   kg/m³
type WaterDensity struct {
	A1 float64 `json:"a1"`
	A2 float64 `json:"a2"`
	A3 float64 `json:"a3"`
	A4 float64 `json:"a4"`
	A5 float64 `json:"a5"`
}

// At returns the density of air-free water at t °C in kg/m³.
func (w WaterDensity) At(t float64) float64 {
	num := (t + w.A1) * (t + w.A1) * (t + w.A2)
	den := w.A3 * (t + w.A4)
	return w.A5 * (1 - num/den)
}

// Slope returns dρw/dt at t, in kg/(m³·°C).
func (w WaterDensity) Slope(t float64) float64 {
	num := (t + w.A1) * (t + w.A1) * (t + w.A2)
	dnum := 2*(t+w.A1)*(t+w.A2) + (t+w.A1)*(t+w.A1)
	den := w.A3 * (t + w.A4)
	return -w.A5 * (dnum*den - num*w.A3) / (den * den)
}

// AirDensity holds the coefficients of the simplified CIPM air density
// formula
//
//	ρa = (K1·p − K2·hr·exp(K3·t)) / (273.15 + t)   kg/m³
//
// with p in hPa, hr in %RH and t in °C.
type AirDensity struct {
	K1 float64 `json:"k1"`
	K2 float64 `json:"k2"`
	K3 float64 `json:"k3"`
}

// At returns the air density in kg/m³.
func (a AirDensity) At(t, p, hr float64) float64 {
	return (a.K1*p - a.K2*hr*math.Exp(a.K3*t)) / (273.15 + t)
}

// Quadratic is a sensor correction polynomial taken from an instrument's
// calibration certificate. The corrected reading is x + (A·x² + B·x + C).
type Quadratic struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
	C float64 `json:"c"`
}

// Apply returns the corrected reading.
func (q Quadratic) Apply(x float64) float64 {
	return x + q.A*x*x + q.B*x + q.C
}

// SensorCorrections groups the corrections of the four auxiliary
// instruments used during a weighing.
type SensorCorrections struct {
	WaterTemperature   Quadratic `json:"waterTemperature"`
	AmbientTemperature Quadratic `json:"ambientTemperature"`
	Pressure           Quadratic `json:"pressure"`
	Humidity           Quadratic `json:"humidity"`
}

// Apply returns s with every reading corrected.
func (c SensorCorrections) Apply(s EnvironmentalSnapshot) EnvironmentalSnapshot {
	return EnvironmentalSnapshot{
		WaterTemperature:   c.WaterTemperature.Apply(s.WaterTemperature),
		AmbientTemperature: c.AmbientTemperature.Apply(s.AmbientTemperature),
		Pressure:           c.Pressure.Apply(s.Pressure),
		Humidity:           c.Humidity.Apply(s.Humidity),
	}
}

// Range is a closed interval.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

func (r Range) Contains(x float64) bool { return x >= r.Min && x <= r.Max }

// Domain is the validated domain of the density model. Corrected readings
// outside of it are rejected rather than extrapolated.
type Domain struct {
	WaterTemperature   Range `json:"waterTemperature"`
	AmbientTemperature Range `json:"ambientTemperature"`
	Pressure           Range `json:"pressure"`
	Humidity           Range `json:"humidity"`
}

// Constants is the full coefficient set of the conversion model. A value is
// never mutated once validated; copies are cheap and safe to share.
type Constants struct {
	Water       WaterDensity      `json:"water"`
	Air         AirDensity        `json:"air"`
	Corrections SensorCorrections `json:"corrections"`
	// Materials maps a lowercase material code to its cubic thermal
	// expansion coefficient in 1/°C.
	Materials       map[string]float64 `json:"materials"`
	DefaultMaterial string             `json:"defaultMaterial"`
	// WeightDensity is the conventional density of the reference weights,
	// kg/m³.
	WeightDensity float64 `json:"weightDensity"`
	Domain        Domain  `json:"domain"`
}

// DefaultConstants returns Tanaka water density, CIPM air density, no sensor
// correction, polypropylene tips and stainless steel weights.
func DefaultConstants() Constants {
	return Constants{
		Water: WaterDensity{
			A1: -3.983035,
			A2: 301.797,
			A3: 522528.9,
			A4: 69.34881,
			A5: 999.974950,
		},
		Air: AirDensity{
			K1: 0.34848,
			K2: 0.009,
			K3: 0.061,
		},
		Materials: map[string]float64{
			"pp":           2.4e-4,
			"ps":           2.1e-4,
			"borosilicato": 1.0e-5,
			"soda-cal":     2.5e-5,
		},
		DefaultMaterial: "pp",
		WeightDensity:   8000,
		Domain: Domain{
			WaterTemperature:   Range{Min: 15, Max: 30},
			AmbientTemperature: Range{Min: 15, Max: 30},
			Pressure:           Range{Min: 600, Max: 1100},
			Humidity:           Range{Min: 0, Max: 100},
		},
	}
}

// Clone returns a deep copy of c.
func (c Constants) Clone() Constants {
	cp := c
	cp.Materials = make(map[string]float64, len(c.Materials))
	for k, v := range c.Materials {
		cp.Materials[k] = v
	}
	return cp
}

// Expansion returns the cubic expansion coefficient for material, falling
// back to DefaultMaterial when material is empty.
func (c Constants) Expansion(material string) (float64, error) {
	key := strings.ToLower(strings.TrimSpace(material))
	if key == "" {
		key = c.DefaultMaterial
	}
	gamma, ok := c.Materials[key]
	if !ok {
		return 0, newError(KindMalformedInput, "material", "unknown material %q, expected one of %s", material, strings.Join(c.MaterialNames(), ", "))
	}
	return gamma, nil
}

// MaterialNames returns the known material codes, sorted.
func (c Constants) MaterialNames() []string {
	names := make([]string, 0, len(c.Materials))
	for k := range c.Materials {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Validate checks the coefficient set is usable. It reports MalformedInput.
func (c Constants) Validate() error {
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"water.a1", c.Water.A1},
		{"water.a2", c.Water.A2},
		{"water.a3", c.Water.A3},
		{"water.a4", c.Water.A4},
		{"water.a5", c.Water.A5},
		{"air.k1", c.Air.K1},
		{"air.k2", c.Air.K2},
		{"air.k3", c.Air.K3},
		{"weightDensity", c.WeightDensity},
	} {
		if !isFinite(f.v) {
			return newError(KindMalformedInput, "constantes."+f.name, "coefficient is not a finite number")
		}
	}
	if c.Water.A3 == 0 {
		return newError(KindMalformedInput, "constantes.water.a3", "must not be zero")
	}
	if c.Water.A5 <= 0 || c.Air.K1 <= 0 {
		return newError(KindMalformedInput, "constantes", "water and air density scales must be positive")
	}
	if c.WeightDensity <= 0 {
		return newError(KindMalformedInput, "constantes.weightDensity", "must be positive, got %g", c.WeightDensity)
	}
	for _, q := range []Quadratic{
		c.Corrections.WaterTemperature, c.Corrections.AmbientTemperature,
		c.Corrections.Pressure, c.Corrections.Humidity,
	} {
		if !isFinite(q.A) || !isFinite(q.B) || !isFinite(q.C) {
			return newError(KindMalformedInput, "constantes.corrections", "correction coefficient is not a finite number")
		}
	}
	if len(c.Materials) == 0 {
		return newError(KindMalformedInput, "constantes.materials", "at least one material is required")
	}
	for _, name := range c.MaterialNames() {
		if gamma := c.Materials[name]; !isFinite(gamma) || gamma < 0 {
			return newError(KindMalformedInput, "constantes.materials."+name, "expansion coefficient must be a non-negative number")
		}
	}
	if _, err := c.Expansion(""); err != nil {
		return newError(KindMalformedInput, "constantes.defaultMaterial", "default material %q is not in the materials table", c.DefaultMaterial)
	}
	for _, d := range []struct {
		name string
		r    Range
	}{
		{"waterTemperature", c.Domain.WaterTemperature},
		{"ambientTemperature", c.Domain.AmbientTemperature},
		{"pressure", c.Domain.Pressure},
		{"humidity", c.Domain.Humidity},
	} {
		name, r := d.name, d.r
		if !isFinite(r.Min) || !isFinite(r.Max) || r.Min > r.Max {
			return newError(KindMalformedInput, "constantes.domain."+name, "invalid range [%g, %g]", r.Min, r.Max)
		}
	}

	// The model must produce a physically meaningful Z over its whole domain.
	for _, t := range []float64{c.Domain.WaterTemperature.Min, c.Domain.WaterTemperature.Max} {
		if c.Water.A3*(t+c.Water.A4) == 0 {
			return newError(KindMalformedInput, "constantes.water", "density equation is singular at %g °C", t)
		}
		if rho := c.Water.At(t); !isFinite(rho) || rho <= 0 {
			return newError(KindMalformedInput, "constantes.water", "implausible water density %g kg/m³ at %g °C", rho, t)
		}
	}

	return nil
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
