package gravimetric

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func budgetCase(t *testing.T, sd float64) BudgetCase {
	t.Helper()
	conv := newTestConverter(t, DefaultConstants())
	env := EnvironmentalSnapshot{WaterTemperature: 19, AmbientTemperature: 19.1, Pressure: 783.4, Humidity: 53.3}
	f, err := conv.FactorsAt(env)
	require.NoError(t, err)
	c := DefaultConstants()
	return BudgetCase{
		Stats:       Statistics{N: 10, Mean: 2.0, StdDev: sd},
		MeanMass:    0.002,
		Factors:     f,
		Environment: env,
		Resolution:  0.02,
		WaterModel:  c.Water,
		WeightRho:   c.WeightDensity,
	}
}

func TestBudgetWithoutRepeatability(t *testing.T) {
	b, err := ComputeBudget(DefaultBudgetInputs(), budgetCase(t, 0))
	require.NoError(t, err)

	var typeB float64
	for _, c := range b.Contributions {
		if c.TypeA {
			assert.Zero(t, c.Value)
			continue
		}
		typeB += c.Value * c.Value
	}
	assert.InDelta(t, math.Sqrt(typeB), b.Combined, 1e-15)
	assert.InDelta(t, 2*math.Sqrt(typeB), b.Expanded, 1e-15)
	assert.True(t, math.IsInf(b.EffectiveDOF, 1))
	assert.Equal(t, 2.0, b.Coverage)
}

func TestBudgetLines(t *testing.T) {
	b, err := ComputeBudget(DefaultBudgetInputs(), budgetCase(t, 0.04))
	require.NoError(t, err)
	require.Len(t, b.Contributions, 10)

	order := []Source{
		SourceRepeatability, SourceEmptyMass, SourceFullMass, SourceWaterDensity,
		SourceAirDensity, SourceWeightDensity, SourceExpansion,
		SourceContainerTemperature, SourceResolution, SourceReproducibility,
	}
	for i, src := range order {
		assert.Equal(t, src, b.Contributions[i].Source)
	}

	res, ok := b.Contribution(SourceResolution)
	require.True(t, ok)
	assert.InDelta(t, 0.02/math.Sqrt(12), res.Value, 1e-15)

	rep, ok := b.Contribution(SourceRepeatability)
	require.True(t, ok)
	assert.True(t, rep.TypeA)
	assert.InDelta(t, 0.04/math.Sqrt(10), rep.Value, 1e-15)

	empty, _ := b.Contribution(SourceEmptyMass)
	full, _ := b.Contribution(SourceFullMass)
	assert.Equal(t, empty.Value, full.Value)
	assert.Equal(t, -empty.Sensitivity, full.Sensitivity)

	repro, _ := b.Contribution(SourceReproducibility)
	assert.Zero(t, repro.Value)

	_, ok = b.Contribution("nonexistent")
	assert.False(t, ok)
}

func TestBudgetMonotonicInStdDev(t *testing.T) {
	prev := 0.0
	for _, sd := range []float64{0, 0.01, 0.05, 0.1, 0.5} {
		b, err := ComputeBudget(DefaultBudgetInputs(), budgetCase(t, sd))
		require.NoError(t, err)
		assert.Greater(t, b.Expanded, prev, "sd=%g", sd)
		prev = b.Expanded
	}
}

func TestBudgetReproducibility(t *testing.T) {
	in := DefaultBudgetInputs()
	base, err := ComputeBudget(in, budgetCase(t, 0.04))
	require.NoError(t, err)

	in.Reproducibility = 0.23
	with, err := ComputeBudget(in, budgetCase(t, 0.04))
	require.NoError(t, err)
	assert.InDelta(t, math.Sqrt(base.Combined*base.Combined+0.23*0.23), with.Combined, 1e-12)
}

func TestBudgetEffectiveCoverage(t *testing.T) {
	in := DefaultBudgetInputs()
	in.Coverage = CoverageEffectiveDOF
	// A large spread makes the Type A term dominate, so few degrees of freedom.
	b, err := ComputeBudget(in, budgetCase(t, 2))
	require.NoError(t, err)
	assert.Less(t, b.EffectiveDOF, 15.0)
	assert.Greater(t, b.Coverage, 2.0)
	assert.InDelta(t, b.Coverage*b.Combined, b.Expanded, 1e-15)
}

func TestBudgetRejects(t *testing.T) {
	bc := budgetCase(t, 0.04)
	bc.Stats.N = 1
	_, err := ComputeBudget(DefaultBudgetInputs(), bc)
	assert.ErrorIs(t, err, ErrInsufficientSamples)

	in := DefaultBudgetInputs()
	in.WaterThermometer = -0.1
	_, err = ComputeBudget(in, budgetCase(t, 0.04))
	assert.ErrorIs(t, err, ErrMalformedInput)

	in = DefaultBudgetInputs()
	in.Coverage = "bayesian"
	_, err = ComputeBudget(in, budgetCase(t, 0.04))
	assert.ErrorIs(t, err, ErrMalformedInput)
}

func TestCoverageFactor(t *testing.T) {
	tests := []struct {
		name string
		mode CoverageMode
		dof  float64
		want float64
		tol  float64
	}{
		{"fixed ignores dof", CoverageFixed, 9, 2, 0},
		{"empty mode is fixed", "", 3, 2, 0},
		{"nine degrees", CoverageEffectiveDOF, 9, 2.32, 0.01},
		{"one degree", CoverageEffectiveDOF, 1, 13.97, 0.05},
		{"many degrees", CoverageEffectiveDOF, 150, 2, 0},
		{"infinite", CoverageEffectiveDOF, math.Inf(1), 2, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CoverageFactor(tt.mode, tt.dof), tt.tol)
		})
	}
}
