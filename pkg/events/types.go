package events

import "encoding/json"

// Event names
const (
	CalibrationComputed = "calibration.computed"
	ConfigReloaded      = "config.reloaded"
	EMTUpdated          = "emt.updated"
)

// Event is a generic SSE event from daemon.
type Event struct {
	Name string          // SSE event name
	Data json.RawMessage // Raw JSON payload
}

// CalibrationComputedEvent is published for every POST /calcular. Tipo is
// the error kind when the request was rejected.
type CalibrationComputedEvent struct {
	Cumple  bool      `json:"cumple"`
	Medias  []float64 `json:"medias_ul,omitempty"`
	Tipo    string    `json:"tipo,omitempty"`
	Elapsed float64   `json:"elapsed_ms"`
	Ts      int64     `json:"ts"`
}

type ConfigReloadedEvent struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	Ts    int64  `json:"ts"`
}

type EMTUpdatedEvent struct {
	Clase string `json:"clase"`
	Rows  int    `json:"rows"`
	Ts    int64  `json:"ts"`
}

// DecodeAs decodes the event payload into T. It ignores the event name. If
// Data is empty, it returns the zero value of T with a nil error.
//
// Example:
//
//	payload, err := events.DecodeAs[events.CalibrationComputedEvent](ev)
//	if err != nil { /* handle */ }
//	fmt.Println(payload.Cumple, payload.Medias)
func DecodeAs[T any](e Event) (T, error) {
	var zero T
	if len(e.Data) == 0 {
		return zero, nil
	}
	var v T
	if err := json.Unmarshal(e.Data, &v); err != nil {
		return zero, err
	}
	return v, nil
}
