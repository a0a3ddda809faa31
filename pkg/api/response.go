package api

import (
	"math"

	"github.com/volumetria/pipetcal/pkg/gravimetric"
)

// Condiciones is an environmental snapshot as reported to the caller.
type Condiciones struct {
	TempLiquido  float64 `json:"temp_liquido"`
	TempAmbiente float64 `json:"temp_ambiente"`
	Presion      float64 `json:"presion"`
	Humedad      float64 `json:"humedad"`
}

// Contribucion is one line of the uncertainty budget.
type Contribucion struct {
	Fuente string `json:"fuente"`
	// Tipo is "A" or "B".
	Tipo                    string  `json:"tipo"`
	IncertidumbreEstandar   float64 `json:"incertidumbre_estandar"`
	CoeficienteSensibilidad float64 `json:"coeficiente_sensibilidad"`
	ContribucionUL          float64 `json:"contribucion_ul"`
}

// Depuracion carries the intermediate factors of one aforo.
type Depuracion struct {
	DensidadAgua  float64 `json:"densidad_agua"`
	DensidadAire  float64 `json:"densidad_aire"`
	FactorZ       float64 `json:"factor_z"`
	FactorTermico float64 `json:"factor_termico"`
	Dilatacion    float64 `json:"coeficiente_dilatacion"`
}

// AforoResultado is the outcome of one tested volume.
type AforoResultado struct {
	ValorNominal           float64   `json:"valor_nominal"`
	MedicionesVolumenUL    []float64 `json:"mediciones_volumen_ul"`
	PromedioVolumenUL      float64   `json:"promedio_volumen_ul"`
	DesviacionEstandarUL   float64   `json:"desviacion_estandar_ul"`
	CoeficienteVariacion   *float64  `json:"coeficiente_variacion"`
	ErrorMedidaUL          float64   `json:"error_medida_ul"`
	ErrorMedidaPorcentaje  *float64  `json:"error_medida_porcentaje"`
	IncertidumbreCombinada float64   `json:"incertidumbre_combinada"`
	IncertidumbreExpandida float64   `json:"incertidumbre_expandida"`
	FactorCobertura        float64   `json:"factor_cobertura"`
	// GradosLibertad is null when the degrees of freedom are infinite.
	GradosLibertad *float64 `json:"grados_libertad"`
	// EMT is the absolute maximum permissible error in µL.
	EMT                 float64        `json:"emt"`
	ReglaDecision       string         `json:"regla_decision"`
	Utilizacion         float64        `json:"utilizacion"`
	Cumple              bool           `json:"cumple"`
	DesviacionMaximaUL  float64        `json:"desviacion_maxima_ul,omitempty"`
	CumpleRepetibilidad bool           `json:"cumple_repetibilidad"`
	Condiciones         Condiciones    `json:"condiciones_promedio"`
	Presupuesto         []Contribucion `json:"presupuesto"`
	Depuracion          *Depuracion    `json:"depuracion,omitempty"`
}

// Inicial echoes one as-found average.
type Inicial struct {
	ValorNominal float64 `json:"valor_nominal"`
	Promedio     float64 `json:"promedio"`
	ErrorUL      float64 `json:"error_ul"`
}

// Response is the body of a successful POST /calcular.
type Response struct {
	Aforos               []AforoResultado `json:"aforos"`
	CondicionesFinales   Condiciones      `json:"condiciones_finales"`
	CondicionesIniciales []Inicial        `json:"condiciones_iniciales,omitempty"`
	Cumple               bool             `json:"cumple"`
}

// NewResponse renders an engine result. debug adds the intermediate factors.
func NewResponse(res *gravimetric.Result, debug bool) Response {
	out := Response{
		Aforos:             make([]AforoResultado, 0, len(res.Aforos)),
		CondicionesFinales: condiciones(res.FinalConditions),
		Cumple:             res.Conforms,
	}
	for _, a := range res.Aforos {
		out.Aforos = append(out.Aforos, aforo(a, debug))
	}
	for _, i := range res.InitialConditions {
		out.CondicionesIniciales = append(out.CondicionesIniciales, Inicial{
			ValorNominal: i.Nominal,
			Promedio:     i.Measured,
			ErrorUL:      i.Error,
		})
	}
	return out
}

func aforo(a gravimetric.AforoResult, debug bool) AforoResultado {
	r := AforoResultado{
		ValorNominal:           a.Nominal,
		MedicionesVolumenUL:    append([]float64(nil), a.Volumes[:]...),
		PromedioVolumenUL:      a.Statistics.Mean,
		DesviacionEstandarUL:   a.Statistics.StdDev,
		CoeficienteVariacion:   percent(a.Statistics.CV),
		ErrorMedidaUL:          a.Statistics.Error,
		ErrorMedidaPorcentaje:  percent(a.Statistics.ErrorPercent),
		IncertidumbreCombinada: a.Budget.Combined,
		IncertidumbreExpandida: a.Budget.Expanded,
		FactorCobertura:        a.Budget.Coverage,
		EMT:                    a.Verdict.EMT,
		ReglaDecision:          string(a.Verdict.Rule),
		Utilizacion:            a.Verdict.Ratio,
		Cumple:                 a.Verdict.Within,
		DesviacionMaximaUL:     a.Verdict.SDLimit,
		CumpleRepetibilidad:    a.Verdict.SDWithin,
		Condiciones:            condiciones(a.Environment),
		Presupuesto:            make([]Contribucion, 0, len(a.Budget.Contributions)),
	}
	if dof := a.Budget.EffectiveDOF; !math.IsInf(dof, 0) && !math.IsNaN(dof) {
		r.GradosLibertad = &dof
	}
	for _, c := range a.Budget.Contributions {
		tipo := "B"
		if c.TypeA {
			tipo = "A"
		}
		r.Presupuesto = append(r.Presupuesto, Contribucion{
			Fuente:                  string(c.Source),
			Tipo:                    tipo,
			IncertidumbreEstandar:   c.Standard,
			CoeficienteSensibilidad: c.Sensitivity,
			ContribucionUL:          c.Value,
		})
	}
	if debug {
		r.Depuracion = &Depuracion{
			DensidadAgua:  a.Factors.WaterDensity,
			DensidadAire:  a.Factors.AirDensity,
			FactorZ:       a.Factors.Z,
			FactorTermico: a.Factors.Thermal,
			Dilatacion:    a.Factors.Expansion,
		}
	}
	return r
}

func condiciones(s gravimetric.EnvironmentalSnapshot) Condiciones {
	return Condiciones{
		TempLiquido:  s.WaterTemperature,
		TempAmbiente: s.AmbientTemperature,
		Presion:      s.Pressure,
		Humedad:      s.Humidity,
	}
}

func percent(p gravimetric.Percent) *float64 {
	if !p.Applicable {
		return nil
	}
	v := p.Value
	return &v
}
