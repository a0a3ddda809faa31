package gravimetric

import "fmt"

// Settings configure an Engine.
type Settings struct {
	Constants Constants    `json:"constants"`
	Budget    BudgetInputs `json:"uncertainty"`
	EMT       EMTTables    `json:"emt"`
	Rule      DecisionRule `json:"decisionRule"`
}

// DefaultSettings returns the package defaults.
func DefaultSettings() Settings {
	return Settings{
		Constants: DefaultConstants(),
		Budget:    DefaultBudgetInputs(),
		EMT:       DefaultEMTTables(),
		Rule:      DecisionSimple,
	}
}

// Validate checks every part of s.
func (s Settings) Validate() error {
	if err := s.Constants.Validate(); err != nil {
		return err
	}
	if err := s.Budget.Validate(); err != nil {
		return err
	}
	if err := s.EMT.Validate(); err != nil {
		return err
	}
	switch s.Rule {
	case "", DecisionGuardBand, DecisionSimple:
	default:
		return newError(KindMalformedInput, "decisionRule", "unknown decision rule %q", s.Rule)
	}
	return nil
}

// Engine runs complete calibrations. It holds a private copy of its
// settings and never mutates them, so one Engine can serve concurrent
// callers.
type Engine struct {
	s Settings
}

// NewEngine validates s and returns an Engine bound to a copy of it.
func NewEngine(s Settings) (*Engine, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	s.Constants = s.Constants.Clone()
	s.EMT = s.EMT.Clone()
	if s.Rule == "" {
		s.Rule = DecisionSimple
	}
	if s.Budget.Coverage == "" {
		s.Budget.Coverage = CoverageFixed
	}
	return &Engine{s: s}, nil
}

// Settings returns a copy of the engine settings.
func (e *Engine) Settings() Settings {
	s := e.s
	s.Constants = s.Constants.Clone()
	s.EMT = s.EMT.Clone()
	return s
}

// WithConstants returns an Engine identical to e but using c.
func (e *Engine) WithConstants(c Constants) (*Engine, error) {
	s := e.Settings()
	s.Constants = c
	return NewEngine(s)
}

// Calibrate runs the full pipeline over the three aforos. On any failure it
// returns a single *Error and no result.
func (e *Engine) Calibrate(in Input) (*Result, error) {
	c := e.s.Constants
	if err := CheckInput(c, in); err != nil {
		return nil, err
	}
	conv, err := NewConverter(c, in.Instrument.Material)
	if err != nil {
		return nil, err
	}

	fullScale := in.Instrument.Nominal
	if fullScale == 0 {
		for _, a := range in.Aforos {
			fullScale = max(fullScale, a.Nominal)
		}
	}
	if err := CheckRange(fullScale, in.Aforos); err != nil {
		return nil, err
	}
	entry, err := e.s.EMT.Lookup(in.Instrument.Class, fullScale)
	if err != nil {
		return nil, err
	}

	res := &Result{Conforms: true}
	var final EnvironmentalSnapshot
	for i, a := range in.Aforos {
		ar, err := e.aforo(conv, entry, in.Instrument, a)
		if err != nil {
			return nil, withPrefix(err, fmt.Sprintf("aforo%d", i+1))
		}
		res.Aforos[i] = ar
		res.Conforms = res.Conforms && ar.Verdict.Within && ar.Verdict.SDWithin
		final = addSnapshot(final, ar.Environment)
	}
	res.FinalConditions = scaleSnapshot(final, 1/float64(AforoCount))

	for i, m := range in.Initial {
		if m == 0 {
			continue
		}
		nominal := in.Aforos[i].Nominal
		res.InitialConditions = append(res.InitialConditions, InitialResult{
			Nominal:  nominal,
			Measured: m,
			Error:    m - nominal,
		})
	}

	return res, nil
}

func (e *Engine) aforo(conv *Converter, entry EMTEntry, ins Instrument, a AforoSeries) (AforoResult, error) {
	ar := AforoResult{Nominal: a.Nominal}

	var env EnvironmentalSnapshot
	var mass float64
	for j, p := range a.Points {
		v, corrected, err := conv.convert(p)
		if err != nil {
			return ar, withPrefix(err, fmt.Sprintf("punto%d", j+1))
		}
		ar.Volumes[j] = v
		env = addSnapshot(env, corrected)
		mass += p.Delta()
	}
	ar.Environment = scaleSnapshot(env, 1/float64(PointsPerAforo))
	mass /= PointsPerAforo

	stats, err := Aggregate(a.Nominal, ar.Volumes[:])
	if err != nil {
		return ar, err
	}
	ar.Statistics = stats

	factors, err := conv.FactorsAt(ar.Environment)
	if err != nil {
		return ar, err
	}
	ar.Factors = factors

	budget, err := ComputeBudget(e.s.Budget, BudgetCase{
		Stats:       stats,
		MeanMass:    mass,
		Factors:     factors,
		Environment: ar.Environment,
		Resolution:  ins.Resolution,
		WaterModel:  e.s.Constants.Water,
		WeightRho:   e.s.Constants.WeightDensity,
	})
	if err != nil {
		return ar, err
	}
	ar.Budget = budget
	ar.Verdict = Evaluate(e.s.Rule, entry, stats, budget.Expanded)
	return ar, nil
}

func addSnapshot(a, b EnvironmentalSnapshot) EnvironmentalSnapshot {
	return EnvironmentalSnapshot{
		WaterTemperature:   a.WaterTemperature + b.WaterTemperature,
		AmbientTemperature: a.AmbientTemperature + b.AmbientTemperature,
		Pressure:           a.Pressure + b.Pressure,
		Humidity:           a.Humidity + b.Humidity,
	}
}

func scaleSnapshot(a EnvironmentalSnapshot, f float64) EnvironmentalSnapshot {
	return EnvironmentalSnapshot{
		WaterTemperature:   a.WaterTemperature * f,
		AmbientTemperature: a.AmbientTemperature * f,
		Pressure:           a.Pressure * f,
		Humidity:           a.Humidity * f,
	}
}
