// Package api holds the JSON shapes exchanged at the /calcular boundary and
// their mapping to engine types.
package api

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/volumetria/pipetcal/pkg/gravimetric"
)

// Coeficientes are the a, b, c terms of a quadratic sensor correction.
type Coeficientes struct {
	A *float64 `json:"a"`
	B *float64 `json:"b"`
	C *float64 `json:"c"`
}

// Constantes override the server's physical constants for one request.
// Every field is optional.
type Constantes struct {
	TanakaA1 *float64 `json:"tanaka_a1,omitempty"`
	TanakaA2 *float64 `json:"tanaka_a2,omitempty"`
	TanakaA3 *float64 `json:"tanaka_a3,omitempty"`
	TanakaA4 *float64 `json:"tanaka_a4,omitempty"`
	TanakaA5 *float64 `json:"tanaka_a5,omitempty"`

	RhoAireO51 *float64 `json:"rho_aire_o51,omitempty"`
	RhoAireO52 *float64 `json:"rho_aire_o52,omitempty"`
	RhoAireO53 *float64 `json:"rho_aire_o53,omitempty"`

	// AlphaMaterialPP replaces the polypropylene expansion coefficient. It
	// is rejected when the instrument material resolves to anything else.
	AlphaMaterialPP *float64 `json:"alpha_material_pp,omitempty"`
	RhoPesaN74      *float64 `json:"rho_pesa_n74,omitempty"`

	CorrTaY   *Coeficientes `json:"corr_ta_y,omitempty"`
	CorrTambY *Coeficientes `json:"corr_tamb_y,omitempty"`
	CorrPatmY *Coeficientes `json:"corr_patm_y,omitempty"`
	CorrHrY   *Coeficientes `json:"corr_hr_y,omitempty"`
}

type CondicionesIniciales struct {
	Promedio1 *float64 `json:"promedio1"`
	Promedio2 *float64 `json:"promedio2"`
	Promedio3 *float64 `json:"promedio3"`
}

// EntradasGenerales is the instrument metadata.
type EntradasGenerales struct {
	ClaseInstrumento string `json:"clase_instrumento"`
	// VolNominal is the full-scale volume in µL. Omitted means the largest
	// aforo.
	VolNominal           *float64              `json:"vol_nominal"`
	Material             string                `json:"material,omitempty"`
	DivMinValor          *float64              `json:"div_min_valor"`
	CondicionesIniciales *CondicionesIniciales `json:"condiciones_iniciales,omitempty"`
	// DebugMode adds the intermediate factors of each aforo to the response.
	DebugMode bool `json:"debug_mode,omitempty"`
}

// Ambiental is the environment recorded with one weighing.
type Ambiental struct {
	TempAgua *float64 `json:"temp_agua"`
	TempAmb  *float64 `json:"temp_amb"`
	Presion  *float64 `json:"presion"`
	Humedad  *float64 `json:"humedad"`
}

// Pesada is a raw pair of balance readings in grams.
type Pesada struct {
	Vacio *float64 `json:"vacio"`
	Lleno *float64 `json:"lleno"`
}

// Aforo is one tested volume. Either MedicionesMasa (already full − empty)
// or Pesadas must carry the ten weighings; Pesadas wins when both are set.
type Aforo struct {
	ValorNominal          *float64     `json:"valor_nominal"`
	MedicionesMasa        []*float64   `json:"mediciones_masa,omitempty"`
	MedicionesAmbientales []*Ambiental `json:"mediciones_ambientales"`
	Pesadas               []*Pesada    `json:"pesadas,omitempty"`
}

// Request is the body of POST /calcular.
type Request struct {
	Constantes        *Constantes        `json:"constantes,omitempty"`
	EntradasGenerales *EntradasGenerales `json:"entradas_generales"`
	Aforo1            *Aforo             `json:"aforo1"`
	Aforo2            *Aforo             `json:"aforo2"`
	Aforo3            *Aforo             `json:"aforo3"`
}

// Decode reads exactly one Request from r. Syntax and type errors, and any
// data after the object, are reported as MalformedInput.
func Decode(r io.Reader) (*Request, error) {
	var req Request
	dec := json.NewDecoder(r)
	if err := dec.Decode(&req); err != nil {
		if err == io.EOF {
			return nil, malformed("", "empty request body")
		}
		return nil, malformed("", "%v", err)
	}
	if dec.More() {
		return nil, malformed("", "unexpected data after the request object")
	}
	return &req, nil
}

// HasOverrides reports whether the request carries any constant override.
func (r *Request) HasOverrides() bool {
	return r.Constantes != nil && *r.Constantes != (Constantes{})
}

// ApplyOverrides returns base with the request's constant overrides applied.
// base is not modified.
func (r *Request) ApplyOverrides(base gravimetric.Constants) (gravimetric.Constants, error) {
	c := base.Clone()
	if r.Constantes == nil {
		return c, nil
	}
	o := r.Constantes

	set := func(dst *float64, v *float64) {
		if v != nil {
			*dst = *v
		}
	}
	set(&c.Water.A1, o.TanakaA1)
	set(&c.Water.A2, o.TanakaA2)
	set(&c.Water.A3, o.TanakaA3)
	set(&c.Water.A4, o.TanakaA4)
	set(&c.Water.A5, o.TanakaA5)
	set(&c.Air.K1, o.RhoAireO51)
	set(&c.Air.K2, o.RhoAireO52)
	set(&c.Air.K3, o.RhoAireO53)
	set(&c.WeightDensity, o.RhoPesaN74)
	if o.AlphaMaterialPP != nil {
		if m := r.material(base.DefaultMaterial); m != "pp" {
			return c, malformed("constantes.alpha_material_pp", "only applies to material pp, instrument material is %q", m)
		}
		c.Materials["pp"] = *o.AlphaMaterialPP
	}

	for _, q := range []struct {
		name string
		dst  *gravimetric.Quadratic
		src  *Coeficientes
	}{
		{"corr_ta_y", &c.Corrections.WaterTemperature, o.CorrTaY},
		{"corr_tamb_y", &c.Corrections.AmbientTemperature, o.CorrTambY},
		{"corr_patm_y", &c.Corrections.Pressure, o.CorrPatmY},
		{"corr_hr_y", &c.Corrections.Humidity, o.CorrHrY},
	} {
		if q.src == nil {
			continue
		}
		if q.src.A == nil || q.src.B == nil || q.src.C == nil {
			return c, malformed("constantes."+q.name, "a, b and c are required")
		}
		*q.dst = gravimetric.Quadratic{A: *q.src.A, B: *q.src.B, C: *q.src.C}
	}

	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

// Calculate runs the request on e. Constant overrides are rejected unless
// allowOverrides is set.
func (r *Request) Calculate(e *gravimetric.Engine, allowOverrides bool) (*gravimetric.Result, error) {
	if r.HasOverrides() {
		if !allowOverrides {
			return nil, malformed("constantes", "per-request constants are disabled")
		}
		consts, err := r.ApplyOverrides(e.Settings().Constants)
		if err != nil {
			return nil, err
		}
		if e, err = e.WithConstants(consts); err != nil {
			return nil, err
		}
	}

	in, err := r.Input()
	if err != nil {
		return nil, err
	}
	return e.Calibrate(in)
}

// material returns the lowercased instrument material, or def when unset.
func (r *Request) material(def string) string {
	var m string
	if r.EntradasGenerales != nil {
		m = strings.ToLower(strings.TrimSpace(r.EntradasGenerales.Material))
	}
	if m == "" {
		return def
	}
	return m
}

// Debug reports whether the caller asked for intermediate factors.
func (r *Request) Debug() bool {
	return r.EntradasGenerales != nil && r.EntradasGenerales.DebugMode
}

// Input maps the request onto the engine's input. Missing numbers are
// reported as MalformedInput, except missing masses which are
// InvalidMeasurement.
func (r *Request) Input() (gravimetric.Input, error) {
	var in gravimetric.Input

	eg := r.EntradasGenerales
	if eg == nil {
		return in, malformed("entradas_generales", "missing")
	}
	in.Instrument = gravimetric.Instrument{
		Class:    eg.ClaseInstrumento,
		Material: strings.TrimSpace(eg.Material),
	}
	if eg.VolNominal != nil {
		in.Instrument.Nominal = *eg.VolNominal
	}
	if eg.DivMinValor != nil {
		in.Instrument.Resolution = *eg.DivMinValor
	}
	if ci := eg.CondicionesIniciales; ci != nil {
		for i, p := range []*float64{ci.Promedio1, ci.Promedio2, ci.Promedio3} {
			if p != nil {
				in.Initial[i] = *p
			}
		}
	}

	for i, a := range []*Aforo{r.Aforo1, r.Aforo2, r.Aforo3} {
		name := fmt.Sprintf("aforo%d", i+1)
		s, err := a.series(name)
		if err != nil {
			return in, err
		}
		in.Aforos[i] = s
	}
	return in, nil
}

func (a *Aforo) series(name string) (gravimetric.AforoSeries, error) {
	var s gravimetric.AforoSeries
	if a == nil {
		return s, malformed(name, "missing")
	}
	if a.ValorNominal == nil {
		return s, malformed(name+".valor_nominal", "missing")
	}
	s.Nominal = *a.ValorNominal

	if err := arity(name+".mediciones_ambientales", len(a.MedicionesAmbientales)); err != nil {
		return s, err
	}
	if len(a.Pesadas) > 0 {
		if err := arity(name+".pesadas", len(a.Pesadas)); err != nil {
			return s, err
		}
	} else if err := arity(name+".mediciones_masa", len(a.MedicionesMasa)); err != nil {
		return s, err
	}

	for j := range s.Points {
		field := fmt.Sprintf("%s.punto%d", name, j+1)
		p := &s.Points[j]

		if len(a.Pesadas) > 0 {
			w := a.Pesadas[j]
			if w == nil || w.Vacio == nil || w.Lleno == nil {
				return s, invalid(field+".pesadas", "missing balance reading")
			}
			p.Empty, p.Full = *w.Vacio, *w.Lleno
		} else {
			m := a.MedicionesMasa[j]
			if m == nil {
				return s, invalid(field+".masa", "missing mass")
			}
			p.Full = *m
		}

		env := a.MedicionesAmbientales[j]
		if env == nil {
			return s, malformed(field+".mediciones_ambientales", "missing")
		}
		for _, r := range []struct {
			key string
			src *float64
			dst *float64
		}{
			{"temp_agua", env.TempAgua, &p.Environment.WaterTemperature},
			{"temp_amb", env.TempAmb, &p.Environment.AmbientTemperature},
			{"presion", env.Presion, &p.Environment.Pressure},
			{"humedad", env.Humedad, &p.Environment.Humidity},
		} {
			if r.src == nil {
				return s, malformed(field+"."+r.key, "missing")
			}
			*r.dst = *r.src
		}
	}
	return s, nil
}

func arity(field string, n int) error {
	switch {
	case n == gravimetric.PointsPerAforo:
		return nil
	case n < 2:
		return &gravimetric.Error{Kind: gravimetric.KindInsufficientSamples, Field: field, Detail: fmt.Sprintf("need %d points, got %d", gravimetric.PointsPerAforo, n)}
	default:
		return malformed(field, "need exactly %d points, got %d", gravimetric.PointsPerAforo, n)
	}
}

func malformed(field, format string, args ...any) error {
	return &gravimetric.Error{Kind: gravimetric.KindMalformedInput, Field: field, Detail: fmt.Sprintf(format, args...)}
}

func invalid(field, format string, args ...any) error {
	return &gravimetric.Error{Kind: gravimetric.KindInvalidMeasurement, Field: field, Detail: fmt.Sprintf(format, args...)}
}
