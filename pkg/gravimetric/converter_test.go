package gravimetric

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var reference = EnvironmentalSnapshot{
	WaterTemperature:   20,
	AmbientTemperature: 20,
	Pressure:           1013.25,
	Humidity:           50,
}

func newTestConverter(t *testing.T, c Constants) *Converter {
	t.Helper()
	conv, err := NewConverter(c, "pp")
	require.NoError(t, err)
	return conv
}

func TestConvert(t *testing.T) {
	conv := newTestConverter(t, DefaultConstants())

	tests := []struct {
		name  string
		point MeasurementPoint
		want  float64
		delta float64
	}{
		{
			name:  "reference conditions",
			point: MeasurementPoint{Full: 0.0019943138736680625, Environment: reference},
			want:  2.0,
			delta: 1e-9,
		},
		{
			name: "lab at altitude",
			point: MeasurementPoint{Full: 0.001985, Environment: EnvironmentalSnapshot{
				WaterTemperature: 19.0, AmbientTemperature: 19.1, Pressure: 783.4, Humidity: 53.1,
			}},
			want:  1.990215463251225,
			delta: 1e-9,
		},
		{
			name:  "tare is subtracted",
			point: MeasurementPoint{Empty: 12.5, Full: 12.5 + 0.0019943138736680625, Environment: reference},
			want:  2.0,
			delta: 1e-6,
		},
		{
			name:  "nothing dispensed",
			point: MeasurementPoint{Empty: 3, Full: 3, Environment: reference},
			want:  0,
			delta: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := conv.Convert(tt.point)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, tt.delta)
		})
	}
}

func TestConvertMonotonicInMass(t *testing.T) {
	conv := newTestConverter(t, DefaultConstants())
	prev := -1.0
	for m := 0.0; m <= 0.02; m += 0.001 {
		v, err := conv.Convert(MeasurementPoint{Full: m, Environment: reference})
		require.NoError(t, err)
		assert.Greater(t, v, prev)
		prev = v
	}
}

func TestConvertRejects(t *testing.T) {
	conv := newTestConverter(t, DefaultConstants())

	tests := []struct {
		name  string
		point MeasurementPoint
		kind  Kind
		field string
	}{
		{"negative delta", MeasurementPoint{Empty: 1, Full: 0.9, Environment: reference}, KindInvalidMeasurement, "masa"},
		{"negative reading", MeasurementPoint{Empty: -0.1, Full: 0.1, Environment: reference}, KindInvalidMeasurement, "masa"},
		{"nan mass", MeasurementPoint{Full: math.NaN(), Environment: reference}, KindMalformedInput, "masa"},
		{"nan pressure", MeasurementPoint{Full: 0.002, Environment: EnvironmentalSnapshot{
			WaterTemperature: 20, AmbientTemperature: 20, Pressure: math.NaN(), Humidity: 50,
		}}, KindMalformedInput, "presion"},
		{"hot water", MeasurementPoint{Full: 0.002, Environment: EnvironmentalSnapshot{
			WaterTemperature: 35, AmbientTemperature: 20, Pressure: 1013.25, Humidity: 50,
		}}, KindOutOfRangeEnvironment, "temp_agua"},
		{"humidity above 100", MeasurementPoint{Full: 0.002, Environment: EnvironmentalSnapshot{
			WaterTemperature: 20, AmbientTemperature: 20, Pressure: 1013.25, Humidity: 101,
		}}, KindOutOfRangeEnvironment, "humedad"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := conv.Convert(tt.point)
			require.Error(t, err)
			var ge *Error
			require.ErrorAs(t, err, &ge)
			assert.Equal(t, tt.kind, ge.Kind)
			assert.Equal(t, tt.field, ge.Field)
		})
	}
}

func TestConvertAppliesCorrectionsBeforeDomainCheck(t *testing.T) {
	c := DefaultConstants()
	// The thermometer reads 1 °C high.
	c.Corrections.WaterTemperature = Quadratic{C: -1}

	conv := newTestConverter(t, c)
	_, err := conv.Convert(MeasurementPoint{Full: 0.002, Environment: EnvironmentalSnapshot{
		WaterTemperature: 30.5, AmbientTemperature: 20, Pressure: 1013.25, Humidity: 50,
	}})
	assert.NoError(t, err, "30.5 °C corrects to 29.5 °C")

	_, err = conv.Convert(MeasurementPoint{Full: 0.002, Environment: EnvironmentalSnapshot{
		WaterTemperature: 15.5, AmbientTemperature: 20, Pressure: 1013.25, Humidity: 50,
	}})
	assert.ErrorIs(t, err, ErrOutOfRangeEnvironment, "15.5 °C corrects to 14.5 °C")
}

func TestConvertCorrectionChangesVolume(t *testing.T) {
	plain := newTestConverter(t, DefaultConstants())
	c := DefaultConstants()
	c.Corrections.WaterTemperature = Quadratic{C: 2}
	corrected := newTestConverter(t, c)

	p := MeasurementPoint{Full: 0.002, Environment: reference}
	v1, err := plain.Convert(p)
	require.NoError(t, err)
	v2, err := corrected.Convert(p)
	require.NoError(t, err)
	assert.Greater(t, v2, v1, "warmer water is less dense")
}

func TestThermalFactorUsesAmbientTemperature(t *testing.T) {
	conv := newTestConverter(t, DefaultConstants())
	f, err := conv.FactorsAt(EnvironmentalSnapshot{
		WaterTemperature: 20, AmbientTemperature: 25, Pressure: 1013.25, Humidity: 50,
	})
	require.NoError(t, err)
	assert.InDelta(t, 1-2.4e-4*5, f.Thermal, 1e-15)
	assert.Equal(t, 2.4e-4, f.Expansion)
}

func TestNewConverterUnknownMaterial(t *testing.T) {
	_, err := NewConverter(DefaultConstants(), "wood")
	assert.ErrorIs(t, err, ErrMalformedInput)
}
