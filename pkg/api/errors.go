package api

import (
	"errors"
	"net/http"

	"github.com/volumetria/pipetcal/pkg/gravimetric"
)

// KindInternal tags failures that did not come from the engine.
const KindInternal gravimetric.Kind = "Internal"

var messages = map[gravimetric.Kind]string{
	gravimetric.KindMalformedInput:        "Datos inválidos o malformados",
	gravimetric.KindInvalidMeasurement:    "Medición de masa inválida",
	gravimetric.KindOutOfRangeEnvironment: "Condiciones ambientales fuera del intervalo validado",
	gravimetric.KindInsufficientSamples:   "Número de mediciones insuficiente",
	gravimetric.KindUnsupportedRange:      "Volumen fuera del alcance de la tabla de tolerancias",
	KindInternal:                          "Ocurrió un error interno en el servidor",
}

// ErrorResponse is the {"error": ...} envelope of every failed request.
type ErrorResponse struct {
	// Error is a stable message per Tipo.
	Error   string `json:"error"`
	Tipo    string `json:"tipo"`
	Campo   string `json:"campo,omitempty"`
	Detalle string `json:"detalle,omitempty"`
}

// NewErrorResponse maps err onto the envelope. Errors that are not engine
// errors are reported as internal without detail.
func NewErrorResponse(err error) ErrorResponse {
	kind := gravimetric.KindOf(err)
	if kind == "" {
		return ErrorResponse{Error: messages[KindInternal], Tipo: string(KindInternal)}
	}
	resp := ErrorResponse{Error: messages[kind], Tipo: string(kind)}
	var ge *gravimetric.Error
	if errors.As(err, &ge) {
		resp.Campo, resp.Detalle = ge.Field, ge.Detail
	}
	return resp
}

// StatusFor returns the HTTP status for err: 400 for malformed requests,
// 422 for well-formed requests the engine cannot evaluate and 500 for
// everything else.
func StatusFor(err error) int {
	switch gravimetric.KindOf(err) {
	case gravimetric.KindMalformedInput:
		return http.StatusBadRequest
	case gravimetric.KindInvalidMeasurement, gravimetric.KindOutOfRangeEnvironment,
		gravimetric.KindInsufficientSamples, gravimetric.KindUnsupportedRange:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
