package gravimetric

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	tables := DefaultEMTTables()

	tests := []struct {
		name    string
		class   string
		nominal float64
		want    float64
		kind    Kind
	}{
		{"default table", "default", 20, 0.2, ""},
		{"unknown class falls back", "N.A.", 1000, 8, ""},
		{"class is case insensitive", " MULTICANAL ", 200, 3.2, ""},
		{"float noise tolerated", "", 10.000000000001, 0.12, ""},
		{"no interpolation", "default", 30, 0, KindUnsupportedRange},
		{"beyond table", "default", 20000, 0, KindUnsupportedRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := tables.Lookup(tt.class, tt.nominal)
			if tt.kind != "" {
				assert.Equal(t, tt.kind, KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, e.EMT, 1e-12)
		})
	}
}

func TestLookupWithoutDefault(t *testing.T) {
	tables := EMTTables{"multicanal": DefaultEMTTables()["multicanal"]}
	_, err := tables.Lookup("monocanal", 20)
	require.Error(t, err)
	var ge *Error
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, KindUnsupportedRange, ge.Kind)
	assert.Equal(t, "clase_instrumento", ge.Field)
}

func TestEMTTablesValidate(t *testing.T) {
	require.NoError(t, DefaultEMTTables().Validate())

	for _, row := range []EMTEntry{
		{Volume: 0, EMT: 1},
		{Volume: 10, EMT: 0},
		{Volume: 10, EMT: math.NaN()},
		{Volume: 10, EMT: 1, CV: -1},
	} {
		err := EMTTables{DefaultClass: {row}}.Validate()
		assert.ErrorIs(t, err, ErrMalformedInput, "%+v", row)
	}
}

func TestEMTTablesValidateReportsFirstClass(t *testing.T) {
	tables := DefaultEMTTables()
	tables["zeta"] = []EMTEntry{{Volume: 10, EMT: -1}}
	tables["alfa"] = []EMTEntry{{Volume: 10, EMT: -1}}
	for i := 0; i < 50; i++ {
		var e *Error
		require.ErrorAs(t, tables.Validate(), &e)
		assert.Equal(t, "emt.alfa", e.Field)
	}
}

func TestEMTTablesClone(t *testing.T) {
	tables := DefaultEMTTables()
	cp := tables.Clone()
	cp[DefaultClass][0].EMT = 99
	assert.Equal(t, 0.05, tables[DefaultClass][0].EMT)
	assert.Equal(t, []string{"default", "multicanal"}, tables.Classes())
}

func TestEvaluate(t *testing.T) {
	entry := EMTEntry{Volume: 20, EMT: 0.2, CV: 0.5}

	tests := []struct {
		name     string
		rule     DecisionRule
		err      float64
		sd       float64
		expanded float64
		within   bool
		sdWithin bool
	}{
		{"simple within", DecisionSimple, -0.15, 0.05, 0.1, true, true},
		{"simple at limit", DecisionSimple, 0.2, 0.05, 0.1, true, true},
		{"simple outside", DecisionSimple, 0.21, 0.05, 0.01, false, true},
		{"guard consumes margin", DecisionGuardBand, 0.15, 0.05, 0.1, false, true},
		{"guard within", DecisionGuardBand, 0.05, 0.05, 0.1, true, true},
		{"default rule is simple", "", 0.15, 0.05, 0.1, true, true},
		{"spread too large", DecisionSimple, 0, 0.11, 0.1, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Evaluate(tt.rule, entry, Statistics{Error: tt.err, StdDev: tt.sd}, tt.expanded)
			assert.Equal(t, tt.within, v.Within)
			assert.Equal(t, tt.sdWithin, v.SDWithin)
			assert.InDelta(t, 0.1, v.SDLimit, 1e-15)
			assert.InDelta(t, math.Abs(tt.err)+tt.expanded, v.Extent, 1e-15)
		})
	}
}

func TestEvaluateWithoutRandomLimit(t *testing.T) {
	v := Evaluate(DecisionSimple, EMTEntry{Volume: 20, EMT: 0.2}, Statistics{StdDev: 10}, 0.1)
	assert.True(t, v.SDWithin)
	assert.Zero(t, v.SDLimit)
}

func TestCheckRange(t *testing.T) {
	var aforos [AforoCount]AforoSeries
	aforos[0].Nominal, aforos[1].Nominal, aforos[2].Nominal = 2, 10, 20

	assert.NoError(t, CheckRange(20, aforos))
	assert.NoError(t, CheckRange(20+1e-12, aforos))

	err := CheckRange(10, aforos)
	var ge *Error
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, KindUnsupportedRange, ge.Kind)
	assert.Equal(t, "aforo3.valor_nominal", ge.Field)
}
