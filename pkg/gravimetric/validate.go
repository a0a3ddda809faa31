package gravimetric

import "fmt"

// CheckSnapshot verifies s is numeric and, once the sensor corrections in c
// are applied, lies inside the model domain. It returns the corrected
// snapshot.
func CheckSnapshot(c Constants, s EnvironmentalSnapshot) (EnvironmentalSnapshot, error) {
	raw := []struct {
		field string
		v     float64
	}{
		{"temp_agua", s.WaterTemperature},
		{"temp_amb", s.AmbientTemperature},
		{"presion", s.Pressure},
		{"humedad", s.Humidity},
	}
	for _, r := range raw {
		if !isFinite(r.v) {
			return s, newError(KindMalformedInput, r.field, "not a number")
		}
	}

	corrected := c.Corrections.Apply(s)
	checks := []struct {
		field string
		v     float64
		r     Range
		unit  string
	}{
		{"temp_agua", corrected.WaterTemperature, c.Domain.WaterTemperature, "°C"},
		{"temp_amb", corrected.AmbientTemperature, c.Domain.AmbientTemperature, "°C"},
		{"presion", corrected.Pressure, c.Domain.Pressure, "hPa"},
		{"humedad", corrected.Humidity, c.Domain.Humidity, "%RH"},
	}
	for _, ch := range checks {
		if !ch.r.Contains(ch.v) {
			return s, newError(KindOutOfRangeEnvironment, ch.field,
				"%.4g %s is outside the validated range [%g, %g] %s", ch.v, ch.unit, ch.r.Min, ch.r.Max, ch.unit)
		}
	}
	return corrected, nil
}

// CheckPoint verifies one weighing: both masses numeric and non-negative,
// full ≥ empty, environment inside the domain. It returns the corrected
// snapshot.
func CheckPoint(c Constants, p MeasurementPoint) (EnvironmentalSnapshot, error) {
	if !isFinite(p.Empty) || !isFinite(p.Full) {
		return p.Environment, newError(KindMalformedInput, "masa", "not a number")
	}
	if p.Empty < 0 || p.Full < 0 {
		return p.Environment, newError(KindInvalidMeasurement, "masa", "balance readings must be non-negative (vacío %g g, lleno %g g)", p.Empty, p.Full)
	}
	if p.Delta() < 0 {
		return p.Environment, newError(KindInvalidMeasurement, "masa", "full-vessel mass %g g is below empty-vessel mass %g g", p.Full, p.Empty)
	}
	return CheckSnapshot(c, p.Environment)
}

// CheckInput is the validation gate of a whole calibration. It returns the
// first failure found, scanning aforos and points in order, so the same
// input always reports the same error.
func CheckInput(c Constants, in Input) error {
	if err := c.Validate(); err != nil {
		return err
	}
	ins := in.Instrument
	if !isFinite(ins.Nominal) || ins.Nominal < 0 {
		return newError(KindMalformedInput, "vol_nominal", "must be a non-negative number, got %g", ins.Nominal)
	}
	if !isFinite(ins.Resolution) || ins.Resolution < 0 {
		return newError(KindMalformedInput, "div_min_valor", "must be a non-negative number, got %g", ins.Resolution)
	}
	if _, err := c.Expansion(ins.Material); err != nil {
		return err
	}
	for i, v := range in.Initial {
		if !isFinite(v) {
			return newError(KindMalformedInput, fmt.Sprintf("condiciones_iniciales.promedio%d", i+1), "not a number")
		}
	}

	for i, a := range in.Aforos {
		prefix := fmt.Sprintf("aforo%d", i+1)
		if !isFinite(a.Nominal) {
			return newError(KindMalformedInput, prefix+".valor_nominal", "not a number")
		}
		if a.Nominal <= 0 {
			return newError(KindMalformedInput, prefix+".valor_nominal", "must be positive, got %g", a.Nominal)
		}
		for j, p := range a.Points {
			if _, err := CheckPoint(c, p); err != nil {
				return withPrefix(err, fmt.Sprintf("%s.punto%d", prefix, j+1))
			}
		}
	}
	return nil
}
